// Command crmctl is the operator CLI: phone number tooling, cost estimates
// and one-off campaign sends against the configured sheet.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "crmctl",
		Short:         "CRM Pro operator tooling",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	defaultConfig := os.Getenv("CONFIG_FILE")
	if defaultConfig == "" {
		defaultConfig = "configs/config.yaml"
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", defaultConfig, "path to configuration file")

	root.AddCommand(newPhoneCmd())
	root.AddCommand(newCampaignCmd(opts))
	return root
}
