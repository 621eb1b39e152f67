package handlers_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/example/froydpay/internal/config"
	"github.com/example/froydpay/internal/database"
	"github.com/example/froydpay/internal/handlers"
	"github.com/example/froydpay/internal/middleware"
	"github.com/example/froydpay/internal/providers"
	"github.com/example/froydpay/internal/routes"
	"github.com/example/froydpay/internal/services"
	"github.com/example/froydpay/internal/utils"
)

const (
	testAdminKey = "admin-key"
	testStubKey  = "whsec_stub"
)

type testServer struct {
	app        *fiber.App
	settlement *services.SettlementService
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "api.db")), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	cfg := &config.Config{
		JWTSecret:         "jwt-secret",
		TokenExpires:      time.Hour,
		AdminAPIKey:       testAdminKey,
		StubWebhookSecret: testStubKey,
		MockPayments:      true,
		ProviderTimeout:   time.Second,
		CallbackTimeout:   time.Second,
	}

	app := fiber.New(fiber.Config{ErrorHandler: handlers.ErrorHandler})
	settlement := routes.Register(app, db, cfg, routes.Options{})
	return &testServer{app: app, settlement: settlement}
}

func (s *testServer) do(t *testing.T, method, path string, body any, headers map[string]string) (int, map[string]any) {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case []byte:
		reader = bytes.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := s.app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	var out map[string]any
	raw, _ := io.ReadAll(resp.Body)
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &out); err != nil {
			t.Fatalf("%s %s: decode %q: %v", method, path, raw, err)
		}
	}
	return resp.StatusCode, out
}

func adminHeaders() map[string]string {
	return map[string]string{middleware.AdminKeyHeader: testAdminKey}
}

func (s *testServer) createMerchant(t *testing.T, body map[string]any) (id, apiKey string) {
	t.Helper()
	status, out := s.do(t, http.MethodPost, "/api/merchants", body, adminHeaders())
	if status != http.StatusCreated {
		t.Fatalf("create merchant status = %d: %v", status, out)
	}
	data := out["data"].(map[string]any)
	return data["id"].(string), out["api_key"].(string)
}

func TestCreatePaymentIntentValidation(t *testing.T) {
	s := newTestServer(t)

	status, out := s.do(t, http.MethodPost, "/api/create-payment-intent", map[string]any{}, nil)
	if status != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", status)
	}
	if out["success"] != false {
		t.Errorf("success = %v", out["success"])
	}
	fields, _ := out["fields"].(map[string]any)
	for _, f := range []string{"amount", "currency", "merchant_id"} {
		if _, ok := fields[f]; !ok {
			t.Errorf("missing field error for %s: %v", f, out)
		}
	}

	status, _ = s.do(t, http.MethodPost, "/api/create-payment-intent", []byte(`{"amount":`), nil)
	if status != http.StatusBadRequest {
		t.Errorf("malformed body status = %d, want 400", status)
	}

	status, out = s.do(t, http.MethodPost, "/api/create-payment-intent", map[string]any{
		"amount":      "100000000000000000000",
		"currency":    "USD",
		"merchant_id": "NOBODY",
	}, nil)
	fields, _ = out["fields"].(map[string]any)
	if _, ok := fields["amount"]; status != http.StatusBadRequest || !ok {
		t.Errorf("oversized amount = %d %v, want 400 on amount", status, out)
	}

	status, out = s.do(t, http.MethodPost, "/api/create-payment-intent", map[string]any{
		"amount":      "10.00",
		"currency":    "USD",
		"merchant_id": "NOBODY",
	}, nil)
	if status != http.StatusNotFound {
		t.Errorf("unknown merchant status = %d, want 404: %v", status, out)
	}
}

func TestCheckoutAndWebhookFlow(t *testing.T) {
	s := newTestServer(t)
	merchantID, apiKey := s.createMerchant(t, map[string]any{"name": "Shop", "alias": "SHOP1", "provider": "nuvei"})

	status, out := s.do(t, http.MethodPost, "/api/create-payment-intent", map[string]any{
		"amount":      100,
		"currency":    "TRY",
		"merchant_id": "shop1",
		"ref_id":      "order-1",
	}, nil)
	if status != http.StatusOK {
		t.Fatalf("create intent status = %d: %v", status, out)
	}
	intent := out["data"].(map[string]any)
	providerTxID := intent["providerTxId"].(string)
	if intent["provider"] != "nuvei" || intent["nextAction"] != "none" || !strings.HasPrefix(providerTxID, "nuv_") {
		t.Errorf("unexpected intent %v", intent)
	}

	status, _ = s.do(t, http.MethodPost, "/api/update-transaction-info", map[string]any{
		"provider_tx_id": providerTxID,
		"customer_name":  "Ada",
	}, nil)
	if status != http.StatusOK {
		t.Errorf("update info status = %d", status)
	}

	var ev providers.StubEvent
	ev.ID = "evt_1"
	ev.Type = providers.StubEventPaymentSucceeded
	ev.Data.PaymentRef = providerTxID
	payload, _ := json.Marshal(ev)

	forged := map[string]string{utils.SignatureHeader: utils.SignPayload("wrong", time.Now(), payload)}
	if status, _ := s.do(t, http.MethodPost, "/api/webhooks/nuvei", payload, forged); status != http.StatusBadRequest {
		t.Errorf("forged webhook status = %d, want 400", status)
	}

	malformed := []byte(`{"id":"evt_0","type":"payment.succeeded","data":{}}`)
	malformedSig := map[string]string{utils.SignatureHeader: utils.SignPayload(testStubKey, time.Now(), malformed)}
	status, out = s.do(t, http.MethodPost, "/api/webhooks/nuvei", malformed, malformedSig)
	if status != http.StatusOK || out["received"] != true || out["applied"] != false {
		t.Errorf("signed malformed webhook = %d %v, want 200 without applying", status, out)
	}

	signed := map[string]string{utils.SignatureHeader: utils.SignPayload(testStubKey, time.Now(), payload)}
	status, out = s.do(t, http.MethodPost, "/api/webhooks/nuvei", payload, signed)
	if status != http.StatusOK || out["received"] != true || out["applied"] != true {
		t.Fatalf("webhook = %d %v", status, out)
	}

	// Redelivery is acknowledged without changing anything.
	status, out = s.do(t, http.MethodPost, "/api/webhooks/nuvei", payload, signed)
	if status != http.StatusOK || out["applied"] != false {
		t.Errorf("redelivered webhook = %d %v", status, out)
	}
	s.settlement.Wait()

	if status, _ := s.do(t, http.MethodPost, "/api/webhooks/paypal", payload, signed); status != http.StatusNotFound {
		t.Errorf("unknown provider status = %d, want 404", status)
	}

	status, out = s.do(t, http.MethodPost, "/api/merchants/auth", map[string]any{"identifier": "SHOP1", "api_key": apiKey}, nil)
	if status != http.StatusOK {
		t.Fatalf("merchant auth status = %d: %v", status, out)
	}
	bearer := map[string]string{fiber.HeaderAuthorization: "Bearer " + out["token"].(string)}

	status, out = s.do(t, http.MethodGet, "/api/merchant/transactions", nil, bearer)
	if status != http.StatusOK {
		t.Fatalf("list transactions status = %d", status)
	}
	txns := out["data"].([]any)
	if len(txns) != 1 {
		t.Fatalf("got %d transactions, want 1", len(txns))
	}
	txn := txns[0].(map[string]any)
	if txn["status"] != "succeeded" || txn["customer_name"] != "Ada" || txn["merchant_id"] != merchantID {
		t.Errorf("unexpected transaction %v", txn)
	}

	status, _ = s.do(t, http.MethodGet, "/api/merchant/transactions/"+txn["id"].(string), nil, bearer)
	if status != http.StatusOK {
		t.Errorf("get own transaction status = %d", status)
	}

	if status, _ := s.do(t, http.MethodGet, "/api/merchant/transactions", nil, nil); status != http.StatusUnauthorized {
		t.Errorf("anonymous list status = %d, want 401", status)
	}
	if status, _ := s.do(t, http.MethodPost, "/api/merchants/auth", map[string]any{"identifier": "SHOP1", "api_key": "sk_gw_nope"}, nil); status != http.StatusUnauthorized {
		t.Errorf("bad credentials status = %d, want 401", status)
	}
}

func TestMockCompletePayment(t *testing.T) {
	s := newTestServer(t)
	s.createMerchant(t, map[string]any{"name": "Mock", "alias": "MOCK1"})

	status, out := s.do(t, http.MethodPost, "/api/create-payment-intent", map[string]any{
		"amount":      "19.99",
		"currency":    "usd",
		"merchant_id": "MOCK1",
	}, nil)
	if status != http.StatusOK {
		t.Fatalf("create intent status = %d: %v", status, out)
	}
	clientSecret := out["data"].(map[string]any)["clientSecret"].(string)

	status, out = s.do(t, http.MethodPost, "/api/mock-complete-payment", map[string]any{"clientSecret": clientSecret}, nil)
	if status != http.StatusOK {
		t.Fatalf("mock complete status = %d: %v", status, out)
	}
	result := out["data"].(map[string]any)
	if result["applied"] != true || result["status"] != "succeeded" {
		t.Errorf("unexpected result %v", result)
	}
	s.settlement.Wait()

	status, out = s.do(t, http.MethodGet, "/api/admin/stats", nil, adminHeaders())
	if status != http.StatusOK {
		t.Fatalf("stats status = %d", status)
	}
	stats := out["data"].(map[string]any)
	if stats["total_merchants"] != float64(1) || stats["total_transactions"] != float64(1) {
		t.Errorf("unexpected stats %v", stats)
	}
}

func TestAdminRoutesRequireKey(t *testing.T) {
	s := newTestServer(t)

	if status, _ := s.do(t, http.MethodGet, "/api/merchants", nil, nil); status != http.StatusUnauthorized {
		t.Errorf("no key status = %d, want 401", status)
	}
	if status, _ := s.do(t, http.MethodGet, "/api/merchants", nil, map[string]string{middleware.AdminKeyHeader: "guess"}); status != http.StatusUnauthorized {
		t.Errorf("wrong key status = %d, want 401", status)
	}

	id, _ := s.createMerchant(t, map[string]any{"name": "Ops"})

	status, out := s.do(t, http.MethodGet, "/api/merchants", nil, adminHeaders())
	if status != http.StatusOK || len(out["data"].([]any)) != 1 {
		t.Errorf("list merchants = %d %v", status, out)
	}
	if status, _ := s.do(t, http.MethodGet, "/api/merchants/not-a-uuid", nil, adminHeaders()); status != http.StatusBadRequest {
		t.Errorf("bad id status = %d, want 400", status)
	}
	if status, _ := s.do(t, http.MethodPatch, "/api/merchants/"+id, map[string]any{"provider": "paypal"}, adminHeaders()); status != http.StatusBadRequest {
		t.Errorf("unsupported provider status = %d, want 400", status)
	}
	if status, out := s.do(t, http.MethodPost, "/api/merchants/"+id+"/rotate-key", nil, adminHeaders()); status != http.StatusOK || out["api_key"] == "" {
		t.Errorf("rotate = %d %v", status, out)
	}
	if status, _ := s.do(t, http.MethodDelete, "/api/merchants/"+id, nil, adminHeaders()); status != http.StatusOK {
		t.Errorf("delete status = %d", status)
	}
	if status, _ := s.do(t, http.MethodGet, "/api/merchants/"+id, nil, adminHeaders()); status != http.StatusNotFound {
		t.Errorf("deleted merchant status = %d, want 404", status)
	}
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	status, out := s.do(t, http.MethodGet, "/api/healthz", nil, nil)
	if status != http.StatusOK || out["status"] != "ok" {
		t.Errorf("healthz = %d %v", status, out)
	}
}
