package services

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/example/froydpay/internal/database"
	"github.com/example/froydpay/internal/models"
	"github.com/example/froydpay/internal/providers"
)

const testWebhookSecret = "whsec_test"

// newTestDB opens a migrated SQLite database in a temp dir.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "gateway.db") + "?_busy_timeout=5000"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newTestRegistry() *providers.Registry {
	return providers.NewDefaultRegistry(providers.RegistryConfig{
		StubWebhookSecret: testWebhookSecret,
		MockPayments:      true,
	})
}

// fakeAdapter is a provider whose behaviour is set per test.
type fakeAdapter struct {
	name         string
	createFn     func(ctx context.Context, opts providers.IntentOptions) (providers.IntentResult, error)
	verifyFn     func(payload []byte, signature string) (providers.Event, error)
	cancelFn     func(ctx context.Context, providerTxID string) error
	validateFn   func(cfg providers.Config) error
	cancelledIDs []string
}

func (f *fakeAdapter) Name() string { return f.name }

func (f *fakeAdapter) SignatureHeader() string { return "X-Fake-Signature" }

func (f *fakeAdapter) CreateIntent(ctx context.Context, opts providers.IntentOptions) (providers.IntentResult, error) {
	return f.createFn(ctx, opts)
}

func (f *fakeAdapter) VerifyEvent(payload []byte, signature string) (providers.Event, error) {
	return f.verifyFn(payload, signature)
}

func (f *fakeAdapter) ValidateConfig(cfg providers.Config) error {
	if f.validateFn == nil {
		return nil
	}
	return f.validateFn(cfg)
}

func (f *fakeAdapter) CancelIntent(ctx context.Context, providerTxID string) error {
	f.cancelledIDs = append(f.cancelledIDs, providerTxID)
	if f.cancelFn == nil {
		return nil
	}
	return f.cancelFn(ctx, providerTxID)
}

func mustRegisterMerchant(t *testing.T, merchants *MerchantRegistry, in RegisterMerchantInput) *models.Merchant {
	t.Helper()
	merchant, _, err := merchants.Register(context.Background(), in)
	if err != nil {
		t.Fatalf("register merchant: %v", err)
	}
	return merchant
}

func mustInsertPending(t *testing.T, ledger *Ledger, merchant *models.Merchant, provider, providerTxID, callbackURL string) *models.Transaction {
	t.Helper()
	txn := &models.Transaction{
		Amount:       decimal.RequireFromString("100"),
		Currency:     "TRY",
		Provider:     provider,
		ProviderTxID: providerTxID,
		SourceRefID:  "order-1",
		CallbackURL:  callbackURL,
	}
	if merchant != nil {
		id := merchant.ID
		txn.MerchantID = &id
	}
	if err := ledger.Insert(context.Background(), txn); err != nil {
		t.Fatalf("insert transaction: %v", err)
	}
	return txn
}
