package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/example/froydpay/internal/models"
	"github.com/example/froydpay/internal/utils"
)

// Ledger is the persisted record of payment attempts and the only writer of
// transaction status.
type Ledger struct {
	db *gorm.DB
}

// NewLedger creates a Ledger.
func NewLedger(db *gorm.DB) *Ledger {
	return &Ledger{db: db}
}

// TransactionFilter narrows List and Count. Zero values are ignored.
type TransactionFilter struct {
	MerchantID *uuid.UUID
	Status     models.TransactionStatus
	Provider   string
	RefID      string
}

func (f TransactionFilter) apply(db *gorm.DB) *gorm.DB {
	if f.MerchantID != nil {
		db = db.Where("merchant_id = ?", *f.MerchantID)
	}
	if f.Status != "" {
		db = db.Where("status = ?", f.Status)
	}
	if f.Provider != "" {
		db = db.Where("provider = ?", f.Provider)
	}
	if f.RefID != "" {
		db = db.Where("source_ref_id = ?", f.RefID)
	}
	return db
}

// Insert stores a new pending transaction.
func (l *Ledger) Insert(ctx context.Context, txn *models.Transaction) error {
	if txn.Status == "" {
		txn.Status = models.StatusPending
	}
	if txn.Status != models.StatusPending {
		return fmt.Errorf("new transactions must be pending, got %s", txn.Status)
	}

	if err := l.db.WithContext(ctx).Create(txn).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ConflictError(fmt.Sprintf("transaction %s already recorded for %s", txn.ProviderTxID, txn.Provider))
		}
		return err
	}
	return nil
}

// FindByProviderTxID looks a transaction up by the provider's id. An empty
// provider matches any provider.
func (l *Ledger) FindByProviderTxID(ctx context.Context, provider, providerTxID string) (*models.Transaction, error) {
	query := l.db.WithContext(ctx).Where("provider_tx_id = ?", providerTxID)
	if provider != "" {
		query = query.Where("provider = ?", provider)
	}

	var txn models.Transaction
	if err := query.Order("created_at ASC").First(&txn).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, internalError("failed to load transaction", err)
	}
	return &txn, nil
}

// FindByID loads a transaction by its gateway id.
func (l *Ledger) FindByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	var txn models.Transaction
	if err := l.db.WithContext(ctx).First(&txn, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, internalError("failed to load transaction", err)
	}
	return &txn, nil
}

// UpdateStatus moves a pending transaction to a terminal status. It reports
// false when the row was not pending, which is how concurrent settlements of
// the same transaction are told apart: exactly one of them sees true.
func (l *Ledger) UpdateStatus(ctx context.Context, id uuid.UUID, status models.TransactionStatus) (bool, error) {
	if !status.IsTerminal() {
		return false, fmt.Errorf("status %q is not terminal", status)
	}

	res := l.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Where("id = ? AND status = ?", id, models.StatusPending).
		Update("status", status)
	if res.Error != nil {
		return false, internalError("failed to update transaction status", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// UpdateCustomerInfo sets the customer name and phone of a pending
// transaction. Empty values leave the stored value untouched. An empty
// provider is accepted only while providerTxID names a single transaction.
func (l *Ledger) UpdateCustomerInfo(ctx context.Context, provider, providerTxID, name, phone string) (*models.Transaction, error) {
	updates := map[string]any{}
	if name != "" {
		updates["customer_name"] = name
	}
	if phone != "" {
		updates["customer_phone"] = phone
	}
	if len(updates) == 0 {
		return nil, ValidationError("nothing to update", map[string]string{
			"customer_name":  "customer_name or customer_phone is required",
			"customer_phone": "customer_name or customer_phone is required",
		})
	}

	txn, err := l.resolveProviderTx(ctx, provider, providerTxID)
	if err != nil {
		return nil, err
	}

	res := l.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Where("id = ? AND status = ?", txn.ID, models.StatusPending).
		Updates(updates)
	if res.Error != nil {
		return nil, internalError("failed to update customer info", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrTransactionNotPending
	}

	return l.FindByID(ctx, txn.ID)
}

// resolveProviderTx finds the single transaction behind a provider id.
func (l *Ledger) resolveProviderTx(ctx context.Context, provider, providerTxID string) (*models.Transaction, error) {
	if provider != "" {
		return l.FindByProviderTxID(ctx, provider, providerTxID)
	}

	var txns []models.Transaction
	if err := l.db.WithContext(ctx).Where("provider_tx_id = ?", providerTxID).Limit(2).Find(&txns).Error; err != nil {
		return nil, internalError("failed to load transaction", err)
	}
	switch len(txns) {
	case 0:
		return nil, ErrTransactionNotFound
	case 1:
		return &txns[0], nil
	default:
		return nil, ValidationError(fmt.Sprintf("provider_tx_id %s is used by more than one provider", providerTxID),
			map[string]string{"provider": "required when provider_tx_id is ambiguous"})
	}
}

// List returns transactions newest first.
func (l *Ledger) List(ctx context.Context, filter TransactionFilter, page utils.Pagination) ([]models.Transaction, int64, error) {
	total, err := l.Count(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	var txns []models.Transaction
	err = filter.apply(l.db.WithContext(ctx)).
		Order("created_at DESC").
		Offset(page.Offset).
		Limit(page.Limit).
		Find(&txns).Error
	if err != nil {
		return nil, 0, internalError("failed to list transactions", err)
	}
	return txns, total, nil
}

// Count returns the number of transactions matching filter.
func (l *Ledger) Count(ctx context.Context, filter TransactionFilter) (int64, error) {
	var total int64
	if err := filter.apply(l.db.WithContext(ctx).Model(&models.Transaction{})).Count(&total).Error; err != nil {
		return 0, internalError("failed to count transactions", err)
	}
	return total, nil
}

// LedgerStats aggregates the ledger for the operator dashboard.
type LedgerStats struct {
	TotalTransactions int64                              `json:"total_transactions"`
	ByStatus          map[models.TransactionStatus]int64 `json:"by_status"`
	SucceededVolume   map[string]decimal.Decimal         `json:"succeeded_volume"`
}

// Stats counts transactions per status and sums succeeded amounts per currency.
func (l *Ledger) Stats(ctx context.Context, filter TransactionFilter) (*LedgerStats, error) {
	stats := &LedgerStats{
		ByStatus:        map[models.TransactionStatus]int64{},
		SucceededVolume: map[string]decimal.Decimal{},
	}

	var statusCounts []struct {
		Status models.TransactionStatus
		Count  int64
	}
	err := filter.apply(l.db.WithContext(ctx).Model(&models.Transaction{})).
		Select("status, count(*) as count").
		Group("status").
		Scan(&statusCounts).Error
	if err != nil {
		return nil, internalError("failed to aggregate transactions", err)
	}
	for _, sc := range statusCounts {
		stats.ByStatus[sc.Status] = sc.Count
		stats.TotalTransactions += sc.Count
	}

	var volumes []struct {
		Currency string
		Total    decimal.Decimal
	}
	err = filter.apply(l.db.WithContext(ctx).Model(&models.Transaction{})).
		Where("status = ?", models.StatusSucceeded).
		Select("currency, COALESCE(SUM(amount), 0) as total").
		Group("currency").
		Scan(&volumes).Error
	if err != nil {
		return nil, internalError("failed to aggregate volume", err)
	}
	for _, v := range volumes {
		stats.SucceededVolume[v.Currency] = v.Total
	}

	return stats, nil
}
