package services

import (
	"context"
	"errors"
	"log"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"

	"github.com/example/froydpay/internal/models"
	"github.com/example/froydpay/internal/providers"
	"github.com/example/froydpay/internal/utils"
)

var currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)

// CreateIntentInput is a checkout request for one payment.
type CreateIntentInput struct {
	Amount        decimal.Decimal
	Currency      string
	MerchantID    string
	RefID         string
	CallbackURL   string
	CustomerName  string
	CustomerPhone string
}

// CreateIntentResult is returned to the hosted checkout page.
type CreateIntentResult struct {
	ClientSecret  string    `json:"clientSecret"`
	NextAction    string    `json:"nextAction"`
	RedirectURL   string    `json:"redirectUrl,omitempty"`
	Provider      string    `json:"provider"`
	ProviderTxID  string    `json:"providerTxId"`
	TransactionID uuid.UUID `json:"transactionId"`
}

// IntentService creates provider payment intents and records them as
// pending transactions.
type IntentService struct {
	merchants *MerchantRegistry
	providers *providers.Registry
	ledger    *Ledger
	timeout   time.Duration
}

// NewIntentService creates an IntentService. timeout bounds each provider call.
func NewIntentService(merchants *MerchantRegistry, registry *providers.Registry, ledger *Ledger, timeout time.Duration) *IntentService {
	return &IntentService{
		merchants: merchants,
		providers: registry,
		ledger:    ledger,
		timeout:   timeout,
	}
}

// CreateIntent runs the checkout flow: validate, resolve the merchant, call
// its provider, then record the pending transaction. No ledger row is written
// unless the provider call succeeded.
func (s *IntentService) CreateIntent(ctx context.Context, in CreateIntentInput) (*CreateIntentResult, error) {
	in.Currency = utils.NormalizeCurrency(in.Currency)
	in.MerchantID = strings.TrimSpace(in.MerchantID)
	in.CallbackURL = strings.TrimSpace(in.CallbackURL)
	if err := validateIntentInput(in); err != nil {
		return nil, err
	}

	merchant, err := s.merchants.Resolve(ctx, in.MerchantID)
	if err != nil {
		return nil, err
	}

	adapter, err := s.providers.Select(merchant.Provider)
	if err != nil {
		return nil, ProviderError(merchant.Provider, err)
	}

	callbackURL := in.CallbackURL
	if callbackURL == "" {
		callbackURL = merchant.WebhookURL
	}

	providerCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		providerCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	intent, err := adapter.CreateIntent(providerCtx, providers.IntentOptions{
		Amount:        in.Amount,
		Currency:      in.Currency,
		MerchantID:    merchant.ID.String(),
		RefID:         in.RefID,
		CustomerName:  in.CustomerName,
		CustomerPhone: in.CustomerPhone,
		CallbackURL:   callbackURL,
		Config:        providers.Config(merchant.ProviderConfig),
	})
	if err != nil {
		log.Printf("[Intent] %s create intent failed for merchant %s: %v", adapter.Name(), merchant.ID, err)
		return nil, ProviderError(adapter.Name(), err)
	}

	metadata := datatypes.JSONMap{"next_action": string(intent.NextAction)}
	if intent.RedirectURL != "" {
		metadata["redirect_url"] = intent.RedirectURL
	}

	merchantID := merchant.ID
	txn := &models.Transaction{
		MerchantID:    &merchantID,
		Amount:        in.Amount,
		Currency:      in.Currency,
		Status:        models.StatusPending,
		Provider:      adapter.Name(),
		ProviderTxID:  intent.ProviderTxID,
		SourceRefID:   in.RefID,
		CustomerName:  in.CustomerName,
		CustomerPhone: in.CustomerPhone,
		CallbackURL:   callbackURL,
		Metadata:      metadata,
	}

	if err := s.ledger.Insert(ctx, txn); err != nil {
		log.Printf("[Intent] orphaned %s intent %s: ledger insert failed: %v", adapter.Name(), intent.ProviderTxID, err)
		s.cancelOrphan(adapter, intent.ProviderTxID)
		var se *Error
		if errors.As(err, &se) {
			return nil, err
		}
		return nil, internalError("failed to record transaction", err)
	}

	log.Printf("[Intent] created %s intent %s for merchant %s (%s)", adapter.Name(), intent.ProviderTxID, merchant.ID, utils.FormatAmount(in.Amount, in.Currency))

	return &CreateIntentResult{
		ClientSecret:  intent.ClientSecret,
		NextAction:    string(intent.NextAction),
		RedirectURL:   intent.RedirectURL,
		Provider:      adapter.Name(),
		ProviderTxID:  intent.ProviderTxID,
		TransactionID: txn.ID,
	}, nil
}

func (s *IntentService) cancelOrphan(adapter providers.Adapter, providerTxID string) {
	canceler, ok := adapter.(providers.Canceler)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cancelTimeout())
	defer cancel()
	if err := canceler.CancelIntent(ctx, providerTxID); err != nil {
		log.Printf("[Intent] failed to cancel orphaned intent %s: %v", providerTxID, err)
		return
	}
	log.Printf("[Intent] cancelled orphaned intent %s", providerTxID)
}

func (s *IntentService) cancelTimeout() time.Duration {
	if s.timeout > 0 {
		return s.timeout
	}
	return 15 * time.Second
}

func validateIntentInput(in CreateIntentInput) error {
	fields := map[string]string{}

	if in.MerchantID == "" {
		fields["merchant_id"] = "required"
	}
	if in.Currency == "" {
		fields["currency"] = "required"
	} else if !currencyPattern.MatchString(in.Currency) {
		fields["currency"] = "must be a 3-letter ISO-4217 code"
	}
	if err := utils.ValidateAmount(in.Amount, in.Currency); err != nil {
		fields["amount"] = err.Error()
	}
	if in.CallbackURL != "" && !isAbsoluteURL(in.CallbackURL) {
		fields["callback_url"] = "must be an absolute http(s) URL"
	}

	if len(fields) > 0 {
		return ValidationError("invalid payment request", fields)
	}
	return nil
}
