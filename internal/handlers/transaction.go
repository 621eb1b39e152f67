package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/example/froydpay/internal/middleware"
	"github.com/example/froydpay/internal/models"
	"github.com/example/froydpay/internal/services"
	"github.com/example/froydpay/internal/utils"
)

// TransactionHandler lists ledger entries for merchants and operators.
type TransactionHandler struct {
	ledger *services.Ledger
}

// NewTransactionHandler constructs a TransactionHandler.
func NewTransactionHandler(ledger *services.Ledger) *TransactionHandler {
	return &TransactionHandler{ledger: ledger}
}

// ListForMerchant returns the authenticated merchant's transactions.
func (h *TransactionHandler) ListForMerchant(c *fiber.Ctx) error {
	merchantID, ok := middleware.GetCurrentMerchantID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	filter, err := parseTransactionFilter(c)
	if err != nil {
		return err
	}
	filter.MerchantID = &merchantID

	return h.list(c, filter)
}

// GetForMerchant returns one of the authenticated merchant's transactions.
func (h *TransactionHandler) GetForMerchant(c *fiber.Ctx) error {
	merchantID, ok := middleware.GetCurrentMerchantID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	id, err := parseIDParam(c)
	if err != nil {
		return err
	}

	txn, err := h.ledger.FindByID(c.UserContext(), id)
	if err != nil {
		return err
	}
	if txn.MerchantID == nil || *txn.MerchantID != merchantID {
		return services.ErrTransactionNotFound
	}

	return c.JSON(fiber.Map{"success": true, "data": txn})
}

// ListAll returns the whole ledger, filterable by merchant.
func (h *TransactionHandler) ListAll(c *fiber.Ctx) error {
	filter, err := parseTransactionFilter(c)
	if err != nil {
		return err
	}

	if err := applyMerchantFilter(c, &filter); err != nil {
		return err
	}

	return h.list(c, filter)
}

func (h *TransactionHandler) list(c *fiber.Ctx, filter services.TransactionFilter) error {
	page := utils.ParsePagination(c)

	txns, total, err := h.ledger.List(c.UserContext(), filter, page)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success":    true,
		"data":       txns,
		"pagination": page.Meta(total),
	})
}

func applyMerchantFilter(c *fiber.Ctx, filter *services.TransactionFilter) error {
	raw := strings.TrimSpace(c.Query("merchant_id"))
	if raw == "" {
		return nil
	}
	merchantID, err := uuid.Parse(raw)
	if err != nil {
		return services.ValidationError("invalid filter", map[string]string{"merchant_id": "must be a UUID"})
	}
	filter.MerchantID = &merchantID
	return nil
}

func parseTransactionFilter(c *fiber.Ctx) (services.TransactionFilter, error) {
	filter := services.TransactionFilter{
		Provider: strings.ToLower(strings.TrimSpace(c.Query("provider"))),
		RefID:    strings.TrimSpace(c.Query("ref_id")),
	}

	if raw := strings.TrimSpace(c.Query("status")); raw != "" {
		status := models.TransactionStatus(strings.ToLower(raw))
		if status != models.StatusPending && !status.IsTerminal() {
			return filter, services.ValidationError("invalid filter", map[string]string{"status": "must be one of: pending succeeded failed"})
		}
		filter.Status = status
	}

	return filter, nil
}
