package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/example/froydpay/internal/config"
	"github.com/example/froydpay/internal/services"
	"github.com/example/froydpay/internal/utils"
)

// MerchantHandler exposes merchant administration and merchant login.
type MerchantHandler struct {
	merchants *services.MerchantRegistry
	cfg       *config.Config
}

// NewMerchantHandler constructs a MerchantHandler.
func NewMerchantHandler(merchants *services.MerchantRegistry, cfg *config.Config) *MerchantHandler {
	return &MerchantHandler{merchants: merchants, cfg: cfg}
}

type merchantAuthRequest struct {
	Identifier string `json:"identifier" validate:"required,max=64"`
	APIKey     string `json:"api_key" validate:"required,max=128"`
}

// Auth exchanges a merchant id or alias plus API key for a session token.
func (h *MerchantHandler) Auth(c *fiber.Ctx) error {
	var req merchantAuthRequest
	if err := parseBody(c, &req, nil); err != nil {
		return err
	}

	merchant, err := h.merchants.Authenticate(c.UserContext(), req.Identifier, req.APIKey)
	if err != nil {
		return err
	}

	token, err := utils.GenerateMerchantToken(h.cfg.JWTSecret, merchant.ID, h.cfg.TokenExpires)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to generate token")
	}

	return c.JSON(fiber.Map{
		"success":  true,
		"token":    token,
		"merchant": merchant,
	})
}

type createMerchantRequest struct {
	Name           string         `json:"name" validate:"required,max=255"`
	Alias          string         `json:"alias" validate:"omitempty,alphanum,max=16"`
	Provider       string         `json:"provider" validate:"max=32"`
	ProviderConfig map[string]any `json:"provider_config"`
	WebhookURL     string         `json:"webhook_url" validate:"omitempty,http_url,max=2048"`
}

// Create registers a merchant. The API key is only ever shown here and on rotation.
func (h *MerchantHandler) Create(c *fiber.Ctx) error {
	var req createMerchantRequest
	if err := parseBody(c, &req, nil); err != nil {
		return err
	}

	merchant, apiKey, err := h.merchants.Register(c.UserContext(), services.RegisterMerchantInput{
		Name:           req.Name,
		Alias:          req.Alias,
		Provider:       req.Provider,
		ProviderConfig: req.ProviderConfig,
		WebhookURL:     req.WebhookURL,
	})
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data":    merchant,
		"api_key": apiKey,
	})
}

// List returns merchants, newest first.
func (h *MerchantHandler) List(c *fiber.Ctx) error {
	page := utils.ParsePagination(c)

	merchants, total, err := h.merchants.List(c.UserContext(), page)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success":    true,
		"data":       merchants,
		"pagination": page.Meta(total),
	})
}

// Get returns one merchant.
func (h *MerchantHandler) Get(c *fiber.Ctx) error {
	id, err := parseIDParam(c)
	if err != nil {
		return err
	}

	merchant, err := h.merchants.Get(c.UserContext(), id)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": merchant})
}

type updateMerchantRequest struct {
	Name           *string        `json:"name" validate:"omitempty,max=255"`
	Provider       *string        `json:"provider" validate:"omitempty,max=32"`
	ProviderConfig map[string]any `json:"provider_config"`
	WebhookURL     *string        `json:"webhook_url" validate:"omitempty,max=2048"`
}

// Update changes merchant settings. Absent fields are left alone.
func (h *MerchantHandler) Update(c *fiber.Ctx) error {
	id, err := parseIDParam(c)
	if err != nil {
		return err
	}

	var req updateMerchantRequest
	if err := parseBody(c, &req, nil); err != nil {
		return err
	}

	merchant, err := h.merchants.Update(c.UserContext(), id, services.UpdateMerchantInput{
		Name:           req.Name,
		Provider:       req.Provider,
		ProviderConfig: req.ProviderConfig,
		WebhookURL:     req.WebhookURL,
	})
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": merchant})
}

// Delete removes a merchant; its transactions are kept.
func (h *MerchantHandler) Delete(c *fiber.Ctx) error {
	id, err := parseIDParam(c)
	if err != nil {
		return err
	}

	if err := h.merchants.Delete(c.UserContext(), id); err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true})
}

// RotateKey issues a new API key and invalidates the old one.
func (h *MerchantHandler) RotateKey(c *fiber.Ctx) error {
	id, err := parseIDParam(c)
	if err != nil {
		return err
	}

	apiKey, err := h.merchants.RotateAPIKey(c.UserContext(), id)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "api_key": apiKey})
}

func parseIDParam(c *fiber.Ctx) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return uuid.Nil, services.ValidationError("invalid id", map[string]string{"id": "must be a UUID"})
	}
	return id, nil
}
