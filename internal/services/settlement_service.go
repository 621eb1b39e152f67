package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/example/froydpay/internal/models"
	"github.com/example/froydpay/internal/providers"
)

// PaymentAlerter is notified about succeeded payments. TelegramService
// implements it.
type PaymentAlerter interface {
	NotifyPaymentSucceeded(ctx context.Context, txn *models.Transaction) error
}

// CallbackDeliverer sends the merchant callback for a settled transaction.
type CallbackDeliverer interface {
	Deliver(ctx context.Context, txn *models.Transaction) error
}

// SettlementOptions configures a SettlementService.
type SettlementOptions struct {
	Journal         EventJournal
	Notifier        CallbackDeliverer
	Alerts          PaymentAlerter
	NotifyOnFailure bool
	CallbackTimeout time.Duration
}

// SettlementResult describes what a provider event did to the ledger.
type SettlementResult struct {
	EventID       string                   `json:"event_id,omitempty"`
	EventType     string                   `json:"event_type,omitempty"`
	Outcome       providers.Outcome        `json:"outcome"`
	TransactionID *uuid.UUID               `json:"transaction_id,omitempty"`
	Status        models.TransactionStatus `json:"status,omitempty"`
	Applied       bool                     `json:"applied"`
}

// MockCompleteInput drives a stub payment to a terminal state.
type MockCompleteInput struct {
	Provider      string
	ProviderTxID  string
	Status        models.TransactionStatus
	CustomerName  string
	CustomerPhone string
}

// SettlementService applies provider events to the ledger and notifies
// merchants. Callback deliveries run in tracked goroutines; call Wait before
// shutting down.
type SettlementService struct {
	providers       *providers.Registry
	ledger          *Ledger
	journal         EventJournal
	notifier        CallbackDeliverer
	alerts          PaymentAlerter
	notifyOnFailure bool
	callbackTimeout time.Duration

	wg sync.WaitGroup
}

// NewSettlementService creates a SettlementService.
func NewSettlementService(registry *providers.Registry, ledger *Ledger, opts SettlementOptions) *SettlementService {
	timeout := opts.CallbackTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &SettlementService{
		providers:       registry,
		ledger:          ledger,
		journal:         opts.Journal,
		notifier:        opts.Notifier,
		alerts:          opts.Alerts,
		notifyOnFailure: opts.NotifyOnFailure,
		callbackTimeout: timeout,
	}
}

// SignatureHeader returns the header the named provider signs its events with.
func (s *SettlementService) SignatureHeader(provider string) (string, error) {
	adapter, err := s.adapterFor(provider)
	if err != nil {
		return "", err
	}
	return adapter.SignatureHeader(), nil
}

// HandleEvent verifies and applies one inbound provider event. Nothing is
// parsed or recorded until the signature checks out.
func (s *SettlementService) HandleEvent(ctx context.Context, provider string, payload []byte, signature string) (*SettlementResult, error) {
	adapter, err := s.adapterFor(provider)
	if err != nil {
		return nil, err
	}

	ev, err := adapter.VerifyEvent(payload, signature)
	if err != nil {
		if errors.Is(err, providers.ErrInvalidSignature) {
			log.Printf("[Settlement] rejected %s event: %v", adapter.Name(), err)
			return nil, &Error{Kind: KindAuth, Message: ErrInvalidSignature.Message, Err: err}
		}
		if errors.Is(err, providers.ErrUnprocessableEvent) {
			return s.recordUnprocessable(ctx, adapter.Name(), ev, payload, err), nil
		}
		return nil, &Error{Kind: KindValidation, Message: "malformed event payload", Err: err}
	}

	result := &SettlementResult{EventID: ev.ID, EventType: ev.Type, Outcome: ev.Outcome}
	s.record(ctx, adapter.Name(), ev, payload)

	if ev.Outcome == providers.OutcomeIgnored {
		log.Printf("[Settlement] ignoring %s event %s of type %s", adapter.Name(), ev.ID, ev.Type)
		s.markProcessed(ctx, adapter.Name(), ev.ID, nil)
		return result, nil
	}

	settled, err := s.Settle(ctx, adapter.Name(), ev.ProviderTxID, ev.Outcome)
	s.markProcessed(ctx, adapter.Name(), ev.ID, err)
	if err != nil {
		return nil, err
	}

	settled.EventID = ev.ID
	settled.EventType = ev.Type
	return settled, nil
}

// recordUnprocessable journals an authentic event that could not be decoded
// so the provider stops redelivering it.
func (s *SettlementService) recordUnprocessable(ctx context.Context, provider string, ev providers.Event, payload []byte, cause error) *SettlementResult {
	if ev.ID == "" {
		sum := sha256.Sum256(payload)
		ev.ID = "unprocessable_" + hex.EncodeToString(sum[:16])
	}
	ev.Outcome = providers.OutcomeUnprocessable
	log.Printf("[Settlement] unprocessable %s event %s: %v", provider, ev.ID, cause)

	s.record(ctx, provider, ev, payload)
	s.markProcessed(ctx, provider, ev.ID, cause)
	return &SettlementResult{EventID: ev.ID, EventType: ev.Type, Outcome: providers.OutcomeUnprocessable}
}

// Settle moves the transaction identified by providerTxID to the state
// implied by outcome. Unknown transactions and transactions that are already
// terminal are logged and left alone.
func (s *SettlementService) Settle(ctx context.Context, provider, providerTxID string, outcome providers.Outcome) (*SettlementResult, error) {
	result := &SettlementResult{Outcome: outcome}

	status, err := statusFor(outcome)
	if err != nil {
		return nil, err
	}

	txn, err := s.ledger.FindByProviderTxID(ctx, provider, providerTxID)
	if err != nil {
		if errors.Is(err, ErrTransactionNotFound) {
			log.Printf("[Settlement] no %s transaction for %s, discarding event", provider, providerTxID)
			return result, nil
		}
		return nil, err
	}
	result.TransactionID = &txn.ID

	applied, err := s.ledger.UpdateStatus(ctx, txn.ID, status)
	if err != nil {
		return nil, err
	}
	if !applied {
		log.Printf("[Settlement] transaction %s already settled, %s event for %s is a no-op", txn.ID, outcome, providerTxID)
		return result, nil
	}

	// Customer info may have changed while the row was still pending.
	if fresh, err := s.ledger.FindByID(ctx, txn.ID); err == nil {
		txn = fresh
	} else {
		log.Printf("[Settlement] reload of transaction %s failed, notifying with the pre-update row: %v", txn.ID, err)
	}
	txn.Status = status
	result.Status = status
	result.Applied = true
	log.Printf("[Settlement] transaction %s (%s %s) is now %s", txn.ID, provider, providerTxID, status)

	s.dispatch(txn)
	return result, nil
}

// CompleteMock settles a mock-mode payment through the regular settlement
// path. Customer details, when given, are stored first.
func (s *SettlementService) CompleteMock(ctx context.Context, in MockCompleteInput) (*SettlementResult, error) {
	providerTxID := strings.TrimSpace(in.ProviderTxID)
	if providerTxID == "" {
		return nil, ValidationError("invalid mock completion", map[string]string{"provider_tx_id": "required"})
	}

	status := in.Status
	if status == "" {
		status = models.StatusSucceeded
	}
	outcome := providers.OutcomeSucceeded
	switch status {
	case models.StatusSucceeded:
	case models.StatusFailed:
		outcome = providers.OutcomeFailed
	default:
		return nil, ValidationError("invalid mock completion", map[string]string{"status": "must be succeeded or failed"})
	}

	txn, err := s.ledger.resolveProviderTx(ctx, strings.ToLower(strings.TrimSpace(in.Provider)), providerTxID)
	if err != nil {
		return nil, err
	}

	if in.CustomerName != "" || in.CustomerPhone != "" {
		if _, err := s.ledger.UpdateCustomerInfo(ctx, txn.Provider, providerTxID, in.CustomerName, in.CustomerPhone); err != nil && !errors.Is(err, ErrTransactionNotPending) {
			return nil, err
		}
	}

	ev := providers.Event{
		ID:           "mock_" + uuid.NewString(),
		Type:         "mock.completed",
		Outcome:      outcome,
		ProviderTxID: providerTxID,
	}
	s.record(ctx, txn.Provider, ev, nil)

	result, err := s.Settle(ctx, txn.Provider, providerTxID, outcome)
	s.markProcessed(ctx, txn.Provider, ev.ID, err)
	if err != nil {
		return nil, err
	}
	result.EventID = ev.ID
	result.EventType = ev.Type
	return result, nil
}

// Wait blocks until every in-flight callback delivery has finished.
func (s *SettlementService) Wait() {
	s.wg.Wait()
}

func (s *SettlementService) dispatch(txn *models.Transaction) {
	deliver := s.notifier != nil && txn.CallbackURL != "" &&
		(txn.Status == models.StatusSucceeded || s.notifyOnFailure)
	alert := s.alerts != nil && txn.Status == models.StatusSucceeded
	if !deliver && !alert {
		return
	}

	snapshot := *txn
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		// Callback and alert run under separate deadlines.
		if deliver {
			s.deliverCallback(&snapshot)
		}
		if alert {
			s.sendAlert(&snapshot)
		}
	}()
}

func (s *SettlementService) deliverCallback(txn *models.Transaction) {
	ctx, cancel := context.WithTimeout(context.Background(), s.callbackTimeout)
	defer cancel()

	if err := s.notifier.Deliver(ctx, txn); err != nil {
		log.Printf("[Settlement] %v", err)
		return
	}
	log.Printf("[Settlement] delivered %s callback for %s to %s", txn.Status, txn.ID, txn.CallbackURL)
}

func (s *SettlementService) sendAlert(txn *models.Transaction) {
	ctx, cancel := context.WithTimeout(context.Background(), s.callbackTimeout)
	defer cancel()

	if err := s.alerts.NotifyPaymentSucceeded(ctx, txn); err != nil {
		log.Printf("[Settlement] ops alert for %s failed: %v", txn.ID, err)
	}
}

func (s *SettlementService) adapterFor(provider string) (providers.Adapter, error) {
	if strings.TrimSpace(provider) == "" {
		return nil, NotFoundError("unknown payment provider")
	}
	adapter, err := s.providers.Select(provider)
	if err != nil {
		return nil, NotFoundError(fmt.Sprintf("unknown payment provider %q", provider))
	}
	return adapter, nil
}

func (s *SettlementService) record(ctx context.Context, provider string, ev providers.Event, payload []byte) {
	if s.journal == nil || ev.ID == "" {
		return
	}
	duplicate, err := s.journal.Record(ctx, provider, ev, payload)
	if err != nil {
		log.Printf("[Settlement] failed to journal %s event %s: %v", provider, ev.ID, err)
		return
	}
	if duplicate {
		log.Printf("[Settlement] duplicate %s event %s", provider, ev.ID)
	}
}

func (s *SettlementService) markProcessed(ctx context.Context, provider, eventID string, processErr error) {
	if s.journal == nil || eventID == "" {
		return
	}
	if err := s.journal.MarkProcessed(ctx, provider, eventID, processErr); err != nil {
		log.Printf("[Settlement] failed to mark %s event %s processed: %v", provider, eventID, err)
	}
}

func statusFor(outcome providers.Outcome) (models.TransactionStatus, error) {
	switch outcome {
	case providers.OutcomeSucceeded:
		return models.StatusSucceeded, nil
	case providers.OutcomeFailed:
		return models.StatusFailed, nil
	default:
		return "", fmt.Errorf("outcome %q does not settle a transaction", outcome)
	}
}
