package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/paymentintent"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/example/froydpay/internal/utils"
)

const (
	stripeEventSucceeded = "payment_intent.succeeded"
	stripeEventFailed    = "payment_intent.payment_failed"
	stripeSignatureName  = "Stripe-Signature"
	maxDescriptorSuffix  = 22
)

// StripeConfig configures the Stripe adapter.
type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	// APIURL overrides https://api.stripe.com, used against stripe-mock and in tests.
	APIURL     string
	HTTPClient *http.Client
}

// StripeAdapter creates PaymentIntents and verifies Stripe-Signature headers.
type StripeAdapter struct {
	intents       *paymentintent.Client
	secretKey     string
	webhookSecret string
}

// NewStripeAdapter builds a Stripe adapter with its own backend so the
// process-wide stripe.Key is never touched.
func NewStripeAdapter(cfg StripeConfig) *StripeAdapter {
	backendCfg := &stripe.BackendConfig{
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelError},
	}
	if cfg.APIURL != "" {
		backendCfg.URL = stripe.String(cfg.APIURL)
	}
	if cfg.HTTPClient != nil {
		backendCfg.HTTPClient = cfg.HTTPClient
	}

	backend := stripe.GetBackendWithConfig(stripe.APIBackend, backendCfg)
	return &StripeAdapter{
		intents:       &paymentintent.Client{B: backend, Key: cfg.SecretKey},
		secretKey:     cfg.SecretKey,
		webhookSecret: cfg.WebhookSecret,
	}
}

func (a *StripeAdapter) Name() string { return Stripe }

func (a *StripeAdapter) SignatureHeader() string { return stripeSignatureName }

func (a *StripeAdapter) CreateIntent(ctx context.Context, opts IntentOptions) (IntentResult, error) {
	if a.secretKey == "" {
		return IntentResult{}, fmt.Errorf("stripe: %w", ErrNotConfigured)
	}
	if err := a.ValidateConfig(opts.Config); err != nil {
		return IntentResult{}, err
	}

	minor, err := utils.ToMinorUnits(opts.Amount, opts.Currency)
	if err != nil {
		return IntentResult{}, fmt.Errorf("stripe amount: %w", err)
	}

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(minor),
		Currency: stripe.String(strings.ToLower(opts.Currency)),
	}
	params.Context = ctx

	automatic, _ := opts.Config.Bool("automatic_payment_methods", true)
	if automatic {
		params.AutomaticPaymentMethods = &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		}
	}
	if suffix, _ := opts.Config.String("statement_descriptor_suffix"); suffix != "" {
		params.StatementDescriptorSuffix = stripe.String(suffix)
	}
	if capture, _ := opts.Config.String("capture_method"); capture != "" {
		params.CaptureMethod = stripe.String(capture)
	}

	for key, value := range map[string]string{
		"merchant_id":    opts.MerchantID,
		"ref_id":         opts.RefID,
		"customer_name":  opts.CustomerName,
		"customer_phone": opts.CustomerPhone,
	} {
		if value != "" {
			params.AddMetadata(key, value)
		}
	}

	pi, err := a.intents.New(params)
	if err != nil {
		return IntentResult{}, fmt.Errorf("stripe create payment intent: %w", describeStripeError(err))
	}

	return IntentResult{
		ClientSecret: pi.ClientSecret,
		ProviderTxID: pi.ID,
		NextAction:   NextActionNone,
	}, nil
}

// CancelIntent voids a PaymentIntent that could not be recorded.
func (a *StripeAdapter) CancelIntent(ctx context.Context, providerTxID string) error {
	params := &stripe.PaymentIntentCancelParams{
		CancellationReason: stripe.String("abandoned"),
	}
	params.Context = ctx
	if _, err := a.intents.Cancel(providerTxID, params); err != nil {
		return fmt.Errorf("stripe cancel payment intent %s: %w", providerTxID, describeStripeError(err))
	}
	return nil
}

func (a *StripeAdapter) VerifyEvent(payload []byte, signature string) (Event, error) {
	if a.webhookSecret == "" {
		return Event{}, fmt.Errorf("%w: stripe webhook secret not configured", ErrInvalidSignature)
	}

	if err := webhook.ValidatePayloadWithTolerance(payload, signature, a.webhookSecret, webhook.DefaultTolerance); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	var event stripe.Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return Event{Outcome: OutcomeUnprocessable}, fmt.Errorf("%w: decode stripe event: %v", ErrUnprocessableEvent, err)
	}

	ev := Event{ID: event.ID, Type: string(event.Type), Outcome: OutcomeIgnored}
	switch ev.Type {
	case stripeEventSucceeded:
		ev.Outcome = OutcomeSucceeded
	case stripeEventFailed:
		ev.Outcome = OutcomeFailed
	default:
		return ev, nil
	}

	unprocessable := Event{ID: ev.ID, Type: ev.Type, Outcome: OutcomeUnprocessable}
	if event.Data == nil || len(event.Data.Raw) == 0 {
		return unprocessable, fmt.Errorf("%w: stripe event %s has no data object", ErrUnprocessableEvent, event.ID)
	}
	var object struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(event.Data.Raw, &object); err != nil {
		return unprocessable, fmt.Errorf("%w: decode stripe event %s: %v", ErrUnprocessableEvent, event.ID, err)
	}
	if object.ID == "" {
		return unprocessable, fmt.Errorf("%w: stripe event %s has no payment intent id", ErrUnprocessableEvent, event.ID)
	}
	ev.ProviderTxID = object.ID
	return ev, nil
}

func (a *StripeAdapter) ValidateConfig(cfg Config) error {
	if err := cfg.allowKeys(Stripe, "statement_descriptor_suffix", "capture_method", "automatic_payment_methods"); err != nil {
		return err
	}
	suffix, err := cfg.String("statement_descriptor_suffix")
	if err != nil {
		return err
	}
	if len(suffix) > maxDescriptorSuffix {
		return fmt.Errorf("provider_config.statement_descriptor_suffix must be at most %d characters", maxDescriptorSuffix)
	}
	capture, err := cfg.String("capture_method")
	if err != nil {
		return err
	}
	switch capture {
	case "", "automatic", "automatic_async", "manual":
	default:
		return fmt.Errorf("provider_config.capture_method %q is not supported", capture)
	}
	if _, err := cfg.Bool("automatic_payment_methods", true); err != nil {
		return err
	}
	return nil
}

func describeStripeError(err error) error {
	var se *stripe.Error
	if errors.As(err, &se) {
		return fmt.Errorf("%s (status %d, code %s): %w", se.Msg, se.HTTPStatusCode, se.Code, err)
	}
	return err
}
