package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/GEMDevEng/GradientLab/cli/api"
)

var (
	apiURL   string
	apiToken string
	client   *api.Client
)

var rootCmd = &cobra.Command{
	Use:   "gradctl",
	Short: "Fleet CLI for Gradient Sentry Nodes",
	Long: `gradctl — manage a fleet of Gradient Sentry Node VMs across cloud providers.

Provision VMs, start and stop them, inspect node health and reward
histories, and tail the realtime status stream from the terminal.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		client = api.New(apiURL, apiToken)
	},
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	defaultURL := os.Getenv("GRADIENT_URL")
	if defaultURL == "" {
		defaultURL = "http://localhost:8700"
	}
	rootCmd.PersistentFlags().StringVar(&apiURL, "api", defaultURL, "GradientLab API URL")
	rootCmd.PersistentFlags().StringVar(&apiToken, "token", os.Getenv("GRADIENT_TOKEN"), "Bearer token")
}
