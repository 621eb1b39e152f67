package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/example/froydpay/internal/services"
)

// AdminHandler manages operator dashboard endpoints.
type AdminHandler struct {
	merchants *services.MerchantRegistry
	ledger    *services.Ledger
}

// NewAdminHandler constructs AdminHandler.
func NewAdminHandler(merchants *services.MerchantRegistry, ledger *services.Ledger) *AdminHandler {
	return &AdminHandler{merchants: merchants, ledger: ledger}
}

// DashboardStats returns aggregate statistics for the operator dashboard.
// The same filters as the transaction listing apply.
func (h *AdminHandler) DashboardStats(c *fiber.Ctx) error {
	filter, err := parseTransactionFilter(c)
	if err != nil {
		return err
	}
	if err := applyMerchantFilter(c, &filter); err != nil {
		return err
	}

	totalMerchants, err := h.merchants.Count(c.UserContext())
	if err != nil {
		return err
	}

	stats, err := h.ledger.Stats(c.UserContext(), filter)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"total_merchants":    totalMerchants,
			"total_transactions": stats.TotalTransactions,
			"by_status":          stats.ByStatus,
			"succeeded_volume":   stats.SucceededVolume,
		},
	})
}
