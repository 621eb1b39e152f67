package services

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/example/froydpay/internal/models"
	"github.com/example/froydpay/internal/utils"
)

func settledTransaction(callbackURL string) *models.Transaction {
	txn := &models.Transaction{
		Amount:       decimal.RequireFromString("19.99"),
		Currency:     "USD",
		Status:       models.StatusSucceeded,
		Provider:     "stripe",
		ProviderTxID: "pi_123",
		SourceRefID:  "order-9",
		CustomerName: "Ada",
		CallbackURL:  callbackURL,
	}
	txn.ID = uuid.New()
	return txn
}

func TestCallbackNotifierDeliversSignedPayload(t *testing.T) {
	var (
		gotBody   []byte
		gotHeader string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type = %q", ct)
		}
		gotHeader = r.Header.Get(utils.SignatureHeader)
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	txn := settledTransaction(srv.URL)
	notifier := NewCallbackNotifier(srv.Client(), "cb_secret")
	if err := notifier.Deliver(context.Background(), txn); err != nil {
		t.Fatalf("Deliver() error: %v", err)
	}

	if err := utils.VerifySignature("cb_secret", gotHeader, gotBody, time.Now(), utils.DefaultSignatureTolerance); err != nil {
		t.Errorf("callback signature does not verify: %v", err)
	}

	var payload map[string]any
	dec := json.NewDecoder(bytes.NewReader(gotBody))
	dec.UseNumber()
	if err := dec.Decode(&payload); err != nil {
		t.Fatalf("decode callback: %v", err)
	}
	if payload["status"] != "succeeded" || payload["ref_id"] != "order-9" || payload["transaction_id"] != txn.ID.String() {
		t.Errorf("unexpected payload %v", payload)
	}
	if payload["amount"] != json.Number("19.99") {
		t.Errorf("amount = %v, want the JSON number 19.99", payload["amount"])
	}
	if _, err := time.Parse(time.RFC3339, payload["timestamp"].(string)); err != nil {
		t.Errorf("timestamp is not RFC3339: %v", payload["timestamp"])
	}
}

func TestCallbackNotifierUnsigned(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h := r.Header.Get(utils.SignatureHeader); h != "" {
			t.Errorf("unexpected signature header %q", h)
		}
	}))
	defer srv.Close()

	if err := NewCallbackNotifier(srv.Client(), "").Deliver(context.Background(), settledTransaction(srv.URL)); err != nil {
		t.Errorf("Deliver() error: %v", err)
	}
}

func TestCallbackNotifierNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := NewCallbackNotifier(srv.Client(), "").Deliver(context.Background(), settledTransaction(srv.URL))
	if KindOf(err) != KindDelivery {
		t.Errorf("error = %v, want delivery error", err)
	}
}
