package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/sitepulse/sitepulse/internal/models"
)

var (
	seedInfoColor    = color.New(color.FgCyan)
	seedSuccessColor = color.New(color.FgGreen, color.Bold)
)

var (
	seedAddr   string
	seedEvents int
	seedWindow time.Duration
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed a running instance with realistic demo traffic",
	Long: `Registers a demo app against a running SitePulse instance and submits
a stream of generated analytics events through the public API.`,
	RunE: runSeed,
}

func init() {
	seedCmd.Flags().StringVar(&seedAddr, "addr", "http://localhost:8080", "base URL of the running instance")
	seedCmd.Flags().IntVar(&seedEvents, "events", 500, "number of events to generate")
	seedCmd.Flags().DurationVar(&seedWindow, "window", 24*time.Hour, "time window to spread events over")
	rootCmd.AddCommand(seedCmd)
}

var seedEventTypes = []string{
	"page_view", "click", "signup_form_cta_click", "login", "checkout", "search",
}

func runSeed(cmd *cobra.Command, args []string) error {
	client := &http.Client{Timeout: 10 * time.Second}

	// Register a fresh demo app; each run uses a unique owner email.
	regBody, _ := json.Marshal(models.RegisterRequest{
		Name:       gofakeit.AppName(),
		OwnerEmail: gofakeit.Email(),
	})
	resp, err := client.Post(seedAddr+"/auth/register", "application/json", bytes.NewReader(regBody))
	if err != nil {
		return fmt.Errorf("failed to register seed app: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("registration returned status %d", resp.StatusCode)
	}

	var reg models.RegisterResponse
	if err := json.NewDecoder(resp.Body).Decode(&reg); err != nil {
		return fmt.Errorf("failed to decode registration response: %w", err)
	}
	seedInfoColor.Printf("Registered app %s\n", reg.AppID)

	// A small pool of recurring users makes the unique-user counts realistic.
	users := make([]string, 25)
	for i := range users {
		users[i] = gofakeit.Username()
	}

	now := time.Now()
	sent := 0
	for i := 0; i < seedEvents; i++ {
		event := models.CollectRequest{
			Event:     seedEventTypes[rand.Intn(len(seedEventTypes))],
			URL:       gofakeit.URL(),
			Referrer:  gofakeit.URL(),
			Timestamp: eventTime(now, seedWindow, i, seedEvents).Format(time.RFC3339),
			Metadata: map[string]interface{}{
				"campaign": gofakeit.BuzzWord(),
			},
		}
		// Roughly a third of traffic is anonymous.
		if rand.Intn(3) != 0 {
			event.UserID = users[rand.Intn(len(users))]
		}

		body, _ := json.Marshal(event)
		req, err := http.NewRequest(http.MethodPost, seedAddr+"/analytics/collect", bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("x-api-key", reg.APIKey)
		req.Header.Set("User-Agent", gofakeit.UserAgent())

		r, err := client.Do(req)
		if err != nil {
			return fmt.Errorf("failed to submit event: %w", err)
		}
		r.Body.Close()
		if r.StatusCode == http.StatusCreated {
			sent++
		}
	}

	seedSuccessColor.Printf("✓ Submitted %d/%d events\n", sent, seedEvents)
	return nil
}

// eventTime spreads events backwards over the window with jitter so the
// timeline looks organic rather than uniform.
func eventTime(now time.Time, window time.Duration, index, total int) time.Time {
	baseInterval := float64(window) / float64(total)
	baseOffset := time.Duration(float64(index) * baseInterval)

	// Add jitter: ±40% of the base interval
	jitterRange := baseInterval * 0.4
	jitter := time.Duration((rand.Float64()*2.0 - 1.0) * jitterRange)

	totalOffset := baseOffset + jitter
	if totalOffset < 0 {
		totalOffset = 0
	}
	if totalOffset > window {
		totalOffset = window
	}

	return now.Add(-(window - totalOffset))
}
