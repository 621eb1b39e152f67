package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/example/froydpay/internal/models"
	"github.com/example/froydpay/internal/providers"
	"github.com/example/froydpay/internal/services"
)

const mockSecretPrefix = "mock_secret_"

// CheckoutHandler serves the hosted checkout page's API.
type CheckoutHandler struct {
	intents      *services.IntentService
	ledger       *services.Ledger
	settlement   *services.SettlementService
	mockPayments bool
}

// NewCheckoutHandler constructs a CheckoutHandler.
func NewCheckoutHandler(intents *services.IntentService, ledger *services.Ledger, settlement *services.SettlementService, mockPayments bool) *CheckoutHandler {
	return &CheckoutHandler{
		intents:      intents,
		ledger:       ledger,
		settlement:   settlement,
		mockPayments: mockPayments,
	}
}

type createPaymentIntentRequest struct {
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency" validate:"required,len=3,alpha"`
	MerchantID    string          `json:"merchant_id" validate:"required,max=64"`
	RefID         string          `json:"ref_id" validate:"max=255"`
	CallbackURL   string          `json:"callback_url" validate:"omitempty,http_url,max=2048"`
	CustomerName  string          `json:"customer_name" validate:"max=255"`
	CustomerPhone string          `json:"customer_phone" validate:"max=64"`
}

// CreatePaymentIntent starts a payment with the merchant's provider.
func (h *CheckoutHandler) CreatePaymentIntent(c *fiber.Ctx) error {
	var req createPaymentIntentRequest
	extra := map[string]string{}
	if err := c.BodyParser(&req); err != nil {
		return services.ValidationError("invalid request body", nil)
	}
	if !req.Amount.IsPositive() {
		extra["amount"] = "must be greater than zero"
	}
	if err := validateStruct(&req, extra); err != nil {
		return err
	}

	result, err := h.intents.CreateIntent(c.UserContext(), services.CreateIntentInput{
		Amount:        req.Amount,
		Currency:      req.Currency,
		MerchantID:    req.MerchantID,
		RefID:         strings.TrimSpace(req.RefID),
		CallbackURL:   req.CallbackURL,
		CustomerName:  strings.TrimSpace(req.CustomerName),
		CustomerPhone: strings.TrimSpace(req.CustomerPhone),
	})
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    result,
	})
}

type updateTransactionInfoRequest struct {
	Provider      string `json:"provider" validate:"max=32"`
	ProviderTxID  string `json:"provider_tx_id"`
	StripeID      string `json:"stripe_id"`
	CustomerName  string `json:"customer_name" validate:"max=255"`
	CustomerPhone string `json:"customer_phone" validate:"max=64"`
}

// UpdateTransactionInfo stores the customer's name and phone while the
// payment is still pending.
func (h *CheckoutHandler) UpdateTransactionInfo(c *fiber.Ctx) error {
	var req updateTransactionInfoRequest
	if err := parseBody(c, &req, nil); err != nil {
		return err
	}

	providerTxID := strings.TrimSpace(req.ProviderTxID)
	if providerTxID == "" {
		providerTxID = strings.TrimSpace(req.StripeID)
	}
	if providerTxID == "" {
		return services.ValidationError("invalid request", map[string]string{"provider_tx_id": "required"})
	}

	provider := strings.ToLower(strings.TrimSpace(req.Provider))
	if provider == "" && req.ProviderTxID == "" && req.StripeID != "" {
		provider = providers.Stripe
	}

	txn, err := h.ledger.UpdateCustomerInfo(c.UserContext(), provider, providerTxID,
		strings.TrimSpace(req.CustomerName), strings.TrimSpace(req.CustomerPhone))
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    txn,
	})
}

type mockCompleteRequest struct {
	Provider      string `json:"provider" validate:"max=32"`
	ProviderTxID  string `json:"provider_tx_id"`
	ClientSecret  string `json:"clientSecret"`
	Status        string `json:"status" validate:"omitempty,oneof=succeeded failed"`
	CustomerName  string `json:"customer_name" validate:"max=255"`
	CustomerPhone string `json:"customer_phone" validate:"max=64"`
}

// MockCompletePayment finishes a mock payment as if the provider had sent
// its event. Only available when mock payments are enabled.
func (h *CheckoutHandler) MockCompletePayment(c *fiber.Ctx) error {
	if !h.mockPayments {
		return fiber.NewError(fiber.StatusForbidden, "mock payments are disabled")
	}

	var req mockCompleteRequest
	if err := parseBody(c, &req, nil); err != nil {
		return err
	}

	providerTxID := strings.TrimSpace(req.ProviderTxID)
	if providerTxID == "" {
		providerTxID = strings.TrimPrefix(strings.TrimSpace(req.ClientSecret), mockSecretPrefix)
	}

	result, err := h.settlement.CompleteMock(c.UserContext(), services.MockCompleteInput{
		Provider:      req.Provider,
		ProviderTxID:  providerTxID,
		Status:        models.TransactionStatus(req.Status),
		CustomerName:  strings.TrimSpace(req.CustomerName),
		CustomerPhone: strings.TrimSpace(req.CustomerPhone),
	})
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    result,
	})
}
