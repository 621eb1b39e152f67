package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/example/froydpay/internal/utils"
)

// Event types understood by stub providers.
const (
	StubEventPaymentSucceeded = "payment.succeeded"
	StubEventPaymentFailed    = "payment.failed"
)

const defaultCryptomusBaseURL = "https://cryptomus.com"

// StubEvent is the wire format of stub provider webhooks.
type StubEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		PaymentRef string `json:"payment_ref"`
	} `json:"data"`
}

// StubAdapter stands in for providers that are not integrated yet. It never
// leaves the process: ids are synthesized and events are authenticated with
// the gateway's own HMAC scheme.
type StubAdapter struct {
	name          string
	idPrefix      string
	secretPrefix  string
	redirect      bool
	webhookSecret string
	now           func() time.Time
}

// NewStubAdapter builds the stub for a named provider.
func NewStubAdapter(name, webhookSecret string) *StubAdapter {
	s := &StubAdapter{
		name:          name,
		secretPrefix:  "mock_secret_",
		webhookSecret: webhookSecret,
		now:           time.Now,
	}

	switch name {
	case Cryptomus:
		s.idPrefix = "crypt_"
		s.secretPrefix = ""
		s.redirect = true
	default:
		prefix := name
		if len(prefix) > 3 {
			prefix = prefix[:3]
		}
		s.idPrefix = prefix + "_"
	}
	return s
}

// NewMockStripe serves the stripe slot when mock payments are enabled.
func NewMockStripe(webhookSecret string) *StubAdapter {
	s := NewStubAdapter(Stripe, webhookSecret)
	s.idPrefix = "mock_pi_"
	return s
}

func (s *StubAdapter) Name() string { return s.name }

func (s *StubAdapter) SignatureHeader() string { return utils.SignatureHeader }

func (s *StubAdapter) CreateIntent(ctx context.Context, opts IntentOptions) (IntentResult, error) {
	if err := ctx.Err(); err != nil {
		return IntentResult{}, err
	}
	if err := s.ValidateConfig(opts.Config); err != nil {
		return IntentResult{}, err
	}

	txID := s.idPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
	result := IntentResult{
		ClientSecret: s.secretPrefix + txID,
		ProviderTxID: txID,
		NextAction:   NextActionNone,
	}

	if s.redirect {
		base, _ := opts.Config.String("redirect_base_url")
		if base == "" {
			base = defaultCryptomusBaseURL
		}
		result.NextAction = NextActionRedirect
		result.RedirectURL = strings.TrimRight(base, "/") + "/pay/" + txID
	}

	return result, nil
}

func (s *StubAdapter) VerifyEvent(payload []byte, signature string) (Event, error) {
	if s.webhookSecret == "" {
		return Event{}, fmt.Errorf("%w: %s webhook secret not configured", ErrInvalidSignature, s.name)
	}
	if err := utils.VerifySignature(s.webhookSecret, signature, payload, s.now(), utils.DefaultSignatureTolerance); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	var raw StubEvent
	if err := json.Unmarshal(payload, &raw); err != nil {
		return Event{Outcome: OutcomeUnprocessable}, fmt.Errorf("%w: decode %s event: %v", ErrUnprocessableEvent, s.name, err)
	}

	ev := Event{ID: raw.ID, Type: raw.Type, ProviderTxID: raw.Data.PaymentRef, Outcome: OutcomeIgnored}
	switch raw.Type {
	case StubEventPaymentSucceeded:
		ev.Outcome = OutcomeSucceeded
	case StubEventPaymentFailed:
		ev.Outcome = OutcomeFailed
	}
	if ev.Outcome != OutcomeIgnored && ev.ProviderTxID == "" {
		return Event{ID: raw.ID, Type: raw.Type, Outcome: OutcomeUnprocessable},
			fmt.Errorf("%w: %s event %s has no payment_ref", ErrUnprocessableEvent, s.name, raw.ID)
	}
	return ev, nil
}

func (s *StubAdapter) ValidateConfig(cfg Config) error {
	if s.name != Cryptomus {
		return nil
	}
	if err := cfg.allowKeys(s.name, "redirect_base_url"); err != nil {
		return err
	}
	base, err := cfg.String("redirect_base_url")
	if err != nil {
		return err
	}
	if base != "" {
		return validateAbsoluteURL("redirect_base_url", base)
	}
	return nil
}
