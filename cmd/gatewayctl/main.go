package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/froydpay/internal/config"
	"github.com/example/froydpay/internal/database"
	"github.com/example/froydpay/internal/providers"
	"github.com/example/froydpay/internal/services"
)

var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:          "gatewayctl",
		Short:        "Operator tooling for the payment gateway",
		Version:      Version,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(createMerchantCmd())
	rootCmd.AddCommand(sendEventCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the gateway tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadTooling()
			database.Connect(cfg.DatabaseURL)
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
}

func createMerchantCmd() *cobra.Command {
	var (
		alias          string
		provider       string
		providerConfig string
		webhookURL     string
	)

	cmd := &cobra.Command{
		Use:   "create-merchant [name]",
		Short: "Register a merchant and print its API key",
		Long: `Register a merchant and print its API key.

The key is shown once; only its hash is stored.

Examples:
  gatewayctl create-merchant "Acme Store" --webhook-url https://acme.example/payments
  gatewayctl create-merchant "Crypto Shop" --provider cryptomus --config '{"redirect_base_url":"https://pay.example"}'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var providerCfg map[string]any
			if providerConfig != "" {
				if err := json.Unmarshal([]byte(providerConfig), &providerCfg); err != nil {
					return fmt.Errorf("--config must be a JSON object: %w", err)
				}
			}

			cfg := config.LoadTooling()
			db := database.Connect(cfg.DatabaseURL)
			registry := providers.NewDefaultRegistry(providers.RegistryConfig{
				StubWebhookSecret: cfg.StubWebhookSecret,
				MockPayments:      cfg.MockPayments,
			})

			merchant, apiKey, err := services.NewMerchantRegistry(db, registry).Register(context.Background(), services.RegisterMerchantInput{
				Name:           args[0],
				Alias:          alias,
				Provider:       provider,
				ProviderConfig: providerCfg,
				WebhookURL:     webhookURL,
			})
			if err != nil {
				var se *services.Error
				if errors.As(err, &se) {
					for field, msg := range se.Fields {
						fmt.Fprintf(cmd.ErrOrStderr(), "  %s: %s\n", field, msg)
					}
				}
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "id:       %s\n", merchant.ID)
			fmt.Fprintf(out, "alias:    %s\n", merchant.AliasOrEmpty())
			fmt.Fprintf(out, "provider: %s\n", merchant.Provider)
			fmt.Fprintf(out, "api key:  %s\n", apiKey)
			return nil
		},
	}

	cmd.Flags().StringVar(&alias, "alias", "", "short alias (generated when empty)")
	cmd.Flags().StringVarP(&provider, "provider", "p", providers.Stripe, "payment provider")
	cmd.Flags().StringVarP(&providerConfig, "config", "c", "", "provider config as a JSON object")
	cmd.Flags().StringVarP(&webhookURL, "webhook-url", "w", "", "default callback URL")

	return cmd
}
