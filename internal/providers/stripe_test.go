package providers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v76/webhook"
)

func newStripeTestServer(t *testing.T, handler http.HandlerFunc) *StripeAdapter {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewStripeAdapter(StripeConfig{
		SecretKey:     "sk_test_123",
		WebhookSecret: "whsec_test",
		APIURL:        srv.URL,
		HTTPClient:    srv.Client(),
	})
}

func TestStripeCreateIntent(t *testing.T) {
	adapter := newStripeTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/payment_intents" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		if got := r.PostForm.Get("amount"); got != "1999" {
			t.Errorf("amount = %q, want 1999", got)
		}
		if got := r.PostForm.Get("currency"); got != "usd" {
			t.Errorf("currency = %q, want usd", got)
		}
		if got := r.PostForm.Get("metadata[ref_id]"); got != "order-42" {
			t.Errorf("metadata[ref_id] = %q", got)
		}
		if got := r.PostForm.Get("automatic_payment_methods[enabled]"); got != "true" {
			t.Errorf("automatic_payment_methods[enabled] = %q", got)
		}
		if _, ok := r.PostForm["metadata[customer_phone]"]; ok {
			t.Error("empty customer_phone should not be sent")
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"pi_123","object":"payment_intent","client_secret":"pi_123_secret_abc"}`))
	})

	res, err := adapter.CreateIntent(context.Background(), IntentOptions{
		Amount:   decimal.RequireFromString("19.99"),
		Currency: "USD",
		RefID:    "order-42",
	})
	if err != nil {
		t.Fatalf("CreateIntent() error: %v", err)
	}
	if res.ProviderTxID != "pi_123" || res.ClientSecret != "pi_123_secret_abc" {
		t.Errorf("unexpected result %+v", res)
	}
	if res.NextAction != NextActionNone {
		t.Errorf("NextAction = %q", res.NextAction)
	}
}

func TestStripeCreateIntentAPIError(t *testing.T) {
	adapter := newStripeTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"type":"invalid_request_error","code":"amount_too_small","message":"Amount must be at least $0.50 usd"}}`))
	})

	_, err := adapter.CreateIntent(context.Background(), IntentOptions{
		Amount:   decimal.RequireFromString("0.10"),
		Currency: "USD",
	})
	if err == nil {
		t.Fatal("expected an error")
	}
	if !strings.Contains(err.Error(), "amount_too_small") {
		t.Errorf("error does not describe the stripe failure: %v", err)
	}
}

func TestStripeNotConfigured(t *testing.T) {
	adapter := NewStripeAdapter(StripeConfig{})
	_, err := adapter.CreateIntent(context.Background(), IntentOptions{
		Amount:   decimal.NewFromInt(1),
		Currency: "USD",
	})
	if !errors.Is(err, ErrNotConfigured) {
		t.Errorf("got %v, want ErrNotConfigured", err)
	}
}

func TestStripeVerifyEvent(t *testing.T) {
	adapter := NewStripeAdapter(StripeConfig{SecretKey: "sk_test", WebhookSecret: "whsec_test"})

	payload := []byte(`{"id":"evt_1","object":"event","type":"payment_intent.succeeded","data":{"object":{"id":"pi_123","object":"payment_intent"}}}`)
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{Payload: payload, Secret: "whsec_test"})

	ev, err := adapter.VerifyEvent(signed.Payload, signed.Header)
	if err != nil {
		t.Fatalf("VerifyEvent() error: %v", err)
	}
	if ev.ID != "evt_1" || ev.Outcome != OutcomeSucceeded || ev.ProviderTxID != "pi_123" {
		t.Errorf("unexpected event %+v", ev)
	}

	other := []byte(`{"id":"evt_2","object":"event","type":"charge.refunded","data":{"object":{"id":"ch_1"}}}`)
	signed = webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{Payload: other, Secret: "whsec_test"})
	ev, err = adapter.VerifyEvent(signed.Payload, signed.Header)
	if err != nil || ev.Outcome != OutcomeIgnored {
		t.Errorf("ignored event: %+v, %v", ev, err)
	}

	forged := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{Payload: payload, Secret: "whsec_other"})
	if _, err := adapter.VerifyEvent(forged.Payload, forged.Header); !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("forged event: got %v", err)
	}
}

func TestStripeVerifyEventUnprocessable(t *testing.T) {
	adapter := NewStripeAdapter(StripeConfig{SecretKey: "sk_test", WebhookSecret: "whsec_test"})

	noID := []byte(`{"id":"evt_3","object":"event","type":"payment_intent.succeeded","data":{"object":{"object":"payment_intent"}}}`)
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{Payload: noID, Secret: "whsec_test"})
	ev, err := adapter.VerifyEvent(signed.Payload, signed.Header)
	if !errors.Is(err, ErrUnprocessableEvent) || errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("missing intent id: got %v", err)
	}
	if ev.ID != "evt_3" || ev.Outcome != OutcomeUnprocessable {
		t.Errorf("partial event = %+v", ev)
	}

	signed = webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{Payload: []byte(`not json`), Secret: "whsec_test"})
	if _, err := adapter.VerifyEvent(signed.Payload, signed.Header); !errors.Is(err, ErrUnprocessableEvent) {
		t.Errorf("non-JSON body: got %v", err)
	}
}

func TestStripeValidateConfig(t *testing.T) {
	adapter := NewStripeAdapter(StripeConfig{})

	if err := adapter.ValidateConfig(Config{"statement_descriptor_suffix": "FROYD", "automatic_payment_methods": false}); err != nil {
		t.Errorf("valid config rejected: %v", err)
	}
	if err := adapter.ValidateConfig(Config{"statement_descriptor_suffix": strings.Repeat("x", 23)}); err == nil {
		t.Error("long suffix accepted")
	}
	if err := adapter.ValidateConfig(Config{"automatic_payment_methods": "yes"}); err == nil {
		t.Error("non-boolean automatic_payment_methods accepted")
	}
	if err := adapter.ValidateConfig(Config{"publishable_key": "pk"}); err == nil {
		t.Error("unknown key accepted")
	}
}
