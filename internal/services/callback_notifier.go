package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/example/froydpay/internal/models"
	"github.com/example/froydpay/internal/utils"
)

// CallbackPayload is the JSON body POSTed to a merchant's callback URL once
// a transaction settles.
type CallbackPayload struct {
	Status        string      `json:"status"`
	Amount        json.Number `json:"amount"`
	Currency      string      `json:"currency"`
	RefID         string      `json:"ref_id"`
	TransactionID string      `json:"transaction_id"`
	ProviderTxID  string      `json:"provider_tx_id"`
	CustomerName  string      `json:"customer_name"`
	Timestamp     string      `json:"timestamp"`
}

// NewCallbackPayload builds the callback body for a settled transaction.
func NewCallbackPayload(txn *models.Transaction, now time.Time) CallbackPayload {
	return CallbackPayload{
		Status:        string(txn.Status),
		Amount:        json.Number(txn.Amount.String()),
		Currency:      txn.Currency,
		RefID:         txn.SourceRefID,
		TransactionID: txn.ID.String(),
		ProviderTxID:  txn.ProviderTxID,
		CustomerName:  txn.CustomerName,
		Timestamp:     now.UTC().Format(time.RFC3339),
	}
}

// CallbackNotifier delivers settlement callbacks to merchants. Each delivery
// is a single attempt.
type CallbackNotifier struct {
	client        *http.Client
	signingSecret string
	now           func() time.Time
}

// NewCallbackNotifier creates a notifier. When signingSecret is set every
// request carries an X-Gateway-Signature header.
func NewCallbackNotifier(client *http.Client, signingSecret string) *CallbackNotifier {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &CallbackNotifier{client: client, signingSecret: signingSecret, now: time.Now}
}

// Deliver POSTs the callback for txn and treats any non-2xx answer as a failure.
func (n *CallbackNotifier) Deliver(ctx context.Context, txn *models.Transaction) error {
	now := n.now()
	body, err := json.Marshal(NewCallbackPayload(txn, now))
	if err != nil {
		return DeliveryError(txn.CallbackURL, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, txn.CallbackURL, bytes.NewReader(body))
	if err != nil {
		return DeliveryError(txn.CallbackURL, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "froydpay-callback/1.0")
	if n.signingSecret != "" {
		req.Header.Set(utils.SignatureHeader, utils.SignPayload(n.signingSecret, now, body))
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return DeliveryError(txn.CallbackURL, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return DeliveryError(txn.CallbackURL, fmt.Errorf("merchant returned status %d", resp.StatusCode))
	}
	return nil
}
