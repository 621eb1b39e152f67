package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/example/froydpay/internal/providers"
	"github.com/example/froydpay/internal/services"
)

// WebhookHandler receives provider settlement events.
type WebhookHandler struct {
	settlement *services.SettlementService
}

// NewWebhookHandler constructs a WebhookHandler.
func NewWebhookHandler(settlement *services.SettlementService) *WebhookHandler {
	return &WebhookHandler{settlement: settlement}
}

// Stripe handles events signed with the Stripe-Signature header.
func (h *WebhookHandler) Stripe(c *fiber.Ctx) error {
	return h.handle(c, providers.Stripe)
}

// Provider handles events for the provider named in the path.
func (h *WebhookHandler) Provider(c *fiber.Ctx) error {
	return h.handle(c, c.Params("provider"))
}

// handle answers 200 for every verified event, including unknown types,
// unknown transactions, repeats and events that cannot be decoded, so
// providers stop retrying. Only a bad signature is a 400.
func (h *WebhookHandler) handle(c *fiber.Ctx, provider string) error {
	header, err := h.settlement.SignatureHeader(provider)
	if err != nil {
		return err
	}

	payload := append([]byte(nil), c.Body()...)
	result, err := h.settlement.HandleEvent(c.UserContext(), provider, payload, c.Get(header))
	if err != nil {
		switch services.KindOf(err) {
		case services.KindAuth:
			return fiber.NewError(fiber.StatusBadRequest, "invalid signature")
		case services.KindValidation:
			return fiber.NewError(fiber.StatusBadRequest, "malformed event payload")
		}
		return err
	}

	return c.JSON(fiber.Map{
		"received": true,
		"applied":  result.Applied,
	})
}
