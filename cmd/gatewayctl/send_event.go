package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/example/froydpay/internal/config"
	"github.com/example/froydpay/internal/providers"
	"github.com/example/froydpay/internal/utils"
)

func sendEventCmd() *cobra.Command {
	var (
		baseURL   string
		provider  string
		eventType string
		eventID   string
		secret    string
	)

	cmd := &cobra.Command{
		Use:   "send-event [provider-tx-id]",
		Short: "Sign and post a stub provider event to a running gateway",
		Long: `Sign and post a stub provider event to a running gateway.

Examples:
  gatewayctl send-event crypt_3f9a1c0d2b7e4a55
  gatewayctl send-event nuv_0c1d2e3f4a5b6c7d --provider nuvei --type payment.failed`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				secret = config.LoadTooling().StubWebhookSecret
			}
			if secret == "" {
				return fmt.Errorf("no signing secret: pass --secret or set STUB_WEBHOOK_SECRET")
			}
			if eventID == "" {
				eventID = "evt_" + strings.ReplaceAll(uuid.NewString(), "-", "")
			}

			var ev providers.StubEvent
			ev.ID = eventID
			ev.Type = eventType
			ev.Data.PaymentRef = args[0]

			body, err := json.Marshal(ev)
			if err != nil {
				return err
			}

			url := strings.TrimRight(baseURL, "/") + "/api/webhooks/" + provider
			req, err := http.NewRequestWithContext(cmd.Context(), http.MethodPost, url, bytes.NewReader(body))
			if err != nil {
				return err
			}
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set(utils.SignatureHeader, utils.SignPayload(secret, time.Now(), body))

			resp, err := (&http.Client{Timeout: 15 * time.Second}).Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n%s\n", resp.Status, eventID, strings.TrimSpace(string(respBody)))
			if resp.StatusCode >= 300 {
				return fmt.Errorf("gateway answered %s", resp.Status)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&baseURL, "url", "http://localhost:8080", "gateway base URL")
	cmd.Flags().StringVarP(&provider, "provider", "p", providers.Cryptomus, "stub provider name")
	cmd.Flags().StringVarP(&eventType, "type", "t", providers.StubEventPaymentSucceeded, "event type")
	cmd.Flags().StringVar(&eventID, "id", "", "event id (random when empty)")
	cmd.Flags().StringVar(&secret, "secret", "", "signing secret (defaults to STUB_WEBHOOK_SECRET)")

	return cmd
}
