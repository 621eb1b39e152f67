package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// TransactionStatus is the lifecycle state of a payment attempt.
type TransactionStatus string

const (
	StatusPending   TransactionStatus = "pending"
	StatusSucceeded TransactionStatus = "succeeded"
	StatusFailed    TransactionStatus = "failed"
)

// IsTerminal reports whether no further transition is allowed.
func (s TransactionStatus) IsTerminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

// Transaction is one payment attempt in the ledger.
//
// ProviderTxID is fixed at creation and is the only key settlement uses
// to find the row. Status is only ever written through the ledger's
// guarded update.
type Transaction struct {
	BaseModel
	MerchantID    *uuid.UUID        `gorm:"type:uuid;index" json:"merchant_id"`
	Amount        decimal.Decimal   `gorm:"type:numeric(20,3);not null" json:"amount"`
	Currency      string            `gorm:"size:3;not null" json:"currency"`
	Status        TransactionStatus `gorm:"size:16;not null;index" json:"status"`
	Provider      string            `gorm:"size:32;not null;uniqueIndex:idx_transactions_provider_tx,priority:2" json:"provider"`
	ProviderTxID  string            `gorm:"column:provider_tx_id;size:255;not null;uniqueIndex:idx_transactions_provider_tx,priority:1" json:"provider_tx_id"`
	SourceRefID   string            `gorm:"size:255;index" json:"source_ref_id"`
	CustomerName  string            `gorm:"size:255" json:"customer_name"`
	CustomerPhone string            `gorm:"size:64" json:"customer_phone"`
	CallbackURL   string            `gorm:"size:2048" json:"callback_url"`
	Metadata      datatypes.JSONMap `json:"metadata"`
}
