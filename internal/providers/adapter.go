// Package providers contains the payment provider adapters used by the
// gateway. Every adapter satisfies the same contract so intent creation and
// settlement never branch on the provider.
package providers

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// NextAction tells the hosted checkout how the customer completes a payment.
type NextAction string

const (
	NextActionNone     NextAction = "none"
	NextActionRedirect NextAction = "redirect"
	NextActionIframe   NextAction = "iframe"
)

// Provider names known to the gateway.
const (
	Stripe       = "stripe"
	Cryptomus    = "cryptomus"
	Nuvei        = "nuvei"
	PayKings     = "paykings"
	HighRiskPay  = "highriskpay"
	PaymentCloud = "paymentcloud"
	SecurionPay  = "securionpay"
)

var (
	ErrUnsupportedProvider = errors.New("unsupported payment provider")
	ErrInvalidSignature    = errors.New("invalid event signature")
	ErrNotConfigured       = errors.New("provider is not configured")

	// ErrUnprocessableEvent marks an authentic event the gateway cannot act
	// on. The Event returned alongside it carries whatever could be read.
	ErrUnprocessableEvent = errors.New("unprocessable event")
)

// Config is the opaque per-merchant provider configuration. Each adapter
// validates the keys it understands.
type Config map[string]any

// IntentOptions are the inputs to CreateIntent.
type IntentOptions struct {
	Amount        decimal.Decimal
	Currency      string
	MerchantID    string
	RefID         string
	CustomerName  string
	CustomerPhone string
	CallbackURL   string
	Config        Config
}

// IntentResult is what a provider returns for a freshly created intent.
type IntentResult struct {
	ClientSecret string
	ProviderTxID string
	NextAction   NextAction
	RedirectURL  string
}

// Outcome is the normalized meaning of a provider event.
type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
	OutcomeIgnored   Outcome = "ignored"

	// OutcomeUnprocessable is reported for events that passed verification
	// but could not be decoded.
	OutcomeUnprocessable Outcome = "unprocessable"
)

// Event is a verified provider event reduced to what settlement needs.
type Event struct {
	ID           string
	Type         string
	Outcome      Outcome
	ProviderTxID string
}

// Adapter is implemented once per provider.
type Adapter interface {
	Name() string
	CreateIntent(ctx context.Context, opts IntentOptions) (IntentResult, error)
	// VerifyEvent authenticates payload against signature and only then
	// decodes it. A verification failure wraps ErrInvalidSignature; a signed
	// payload that cannot be decoded wraps ErrUnprocessableEvent.
	VerifyEvent(payload []byte, signature string) (Event, error)
	// SignatureHeader names the HTTP header carrying the event signature.
	SignatureHeader() string
	ValidateConfig(cfg Config) error
}

// Canceler is implemented by adapters that can void an intent which never
// made it into the ledger.
type Canceler interface {
	CancelIntent(ctx context.Context, providerTxID string) error
}
