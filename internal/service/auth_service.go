package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sitepulse/sitepulse/internal/apikey"
	"github.com/sitepulse/sitepulse/internal/metrics"
	"github.com/sitepulse/sitepulse/internal/models"
	"github.com/sitepulse/sitepulse/internal/repository"
)

var (
	ErrMissingKey = errors.New("missing API key")
	ErrInvalidKey = errors.New("invalid API key")
	ErrRevoked    = errors.New("API key revoked")
	ErrForbidden  = errors.New("appId does not belong to this app")
)

// AuthService issues, verifies and revokes app API keys.
type AuthService struct {
	repo repository.Repository
}

func NewAuthService(repo repository.Repository) *AuthService {
	return &AuthService{repo: repo}
}

// Register creates an app for ownerEmail and issues its API key. The raw key
// appears only in the returned response; the store keeps just the hash.
// Returns repository.ErrDuplicateOwner if an app already exists for the email.
func (s *AuthService) Register(ctx context.Context, req *models.RegisterRequest) (*models.RegisterResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	user, err := s.repo.GetOrCreateUserByEmail(ctx, &models.User{
		ID:    uuid.New().String(),
		Name:  req.Name,
		Email: req.OwnerEmail,
	})
	if err != nil {
		return nil, err
	}

	rawKey, err := apikey.GenerateRawKey()
	if err != nil {
		return nil, err
	}
	hash, err := apikey.HashKey(rawKey)
	if err != nil {
		return nil, err
	}

	app := &models.App{
		ID:         uuid.New().String(),
		Name:       req.Name,
		OwnerEmail: req.OwnerEmail,
		APIKeyHash: hash,
		UserID:     &user.ID,
	}

	// The unique constraints on owner_email and api_key_hash close the
	// check-then-create race; a concurrent duplicate surfaces here.
	if err := s.repo.CreateApp(ctx, app); err != nil {
		return nil, err
	}

	return &models.RegisterResponse{
		AppID:   app.ID,
		APIKey:  rawKey,
		Message: "Store the API key securely: it will not be shown again",
	}, nil
}

// lookupByKey scans all apps and bcrypt-compares the presented key against
// each stored hash, revoked apps included. The linear scan is acceptable for
// small app counts because the adaptive per-comparison cost dominates, so
// scan order leaks nothing beyond key presence; bcrypt itself compares in
// constant time, so no partial-match timing leak either. Known scaling
// bottleneck for large tenant counts.
func (s *AuthService) lookupByKey(ctx context.Context, rawKey string) (*models.App, error) {
	apps, err := s.repo.ListApps(ctx)
	if err != nil {
		return nil, err
	}
	for _, app := range apps {
		if apikey.CompareKey(rawKey, app.APIKeyHash) {
			return app, nil
		}
	}
	return nil, ErrInvalidKey
}

// VerifyKey resolves a raw key to its active app.
// Errors: ErrMissingKey (empty key), ErrInvalidKey (no match),
// ErrRevoked (matched but revoked).
func (s *AuthService) VerifyKey(ctx context.Context, rawKey string) (*models.App, error) {
	if rawKey == "" {
		metrics.KeyVerifications.WithLabelValues("missing").Inc()
		return nil, ErrMissingKey
	}

	app, err := s.lookupByKey(ctx, rawKey)
	if err != nil {
		if errors.Is(err, ErrInvalidKey) {
			metrics.KeyVerifications.WithLabelValues("invalid").Inc()
		}
		return nil, err
	}
	if !app.IsActive() {
		metrics.KeyVerifications.WithLabelValues("revoked").Inc()
		return nil, ErrRevoked
	}

	metrics.KeyVerifications.WithLabelValues("ok").Inc()
	return app, nil
}

// Revoke permanently disables the key for appID. The presented key must
// belong to the app being revoked. Irreversible.
func (s *AuthService) Revoke(ctx context.Context, appID, rawKey string) error {
	if rawKey == "" {
		return ErrMissingKey
	}

	app, err := s.lookupByKey(ctx, rawKey)
	if err != nil {
		return err
	}
	if app.ID != appID {
		return ErrForbidden
	}
	if app.Revoked {
		return repository.ErrAlreadyRevoked
	}

	return s.repo.RevokeApp(ctx, appID, time.Now())
}

// GetApp returns the public details of an app. Never includes key material.
func (s *AuthService) GetApp(ctx context.Context, appID string) (*models.AppResponse, error) {
	app, err := s.repo.GetAppByID(ctx, appID)
	if err != nil {
		return nil, err
	}
	return app.ToResponse(), nil
}
