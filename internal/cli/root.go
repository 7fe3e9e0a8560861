package cli

import (
	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "sitepulse",
	Short: "SitePulse event-collection API",
	Long: `sitepulse is a multi-tenant analytics event-collection service.

Registered apps receive an API key, submit analytics events tagged with
device and browser metadata, and query cached aggregate summaries.`,
	Version: "0.1.0",
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")
}
