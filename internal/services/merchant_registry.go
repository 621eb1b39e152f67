package services

import (
	"context"
	"crypto/rand"
	"errors"
	"log"
	"math/big"
	"net/url"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/froydpay/internal/models"
	"github.com/example/froydpay/internal/providers"
	"github.com/example/froydpay/internal/utils"
)

const (
	aliasLength      = 8
	aliasAlphabet    = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	maxAliasAttempts = 5
)

var aliasPattern = regexp.MustCompile(`^[A-Z0-9]{4,16}$`)

// MerchantRegistry owns merchant records and resolves identifiers to them.
type MerchantRegistry struct {
	db        *gorm.DB
	providers *providers.Registry
}

// NewMerchantRegistry creates a MerchantRegistry.
func NewMerchantRegistry(db *gorm.DB, registry *providers.Registry) *MerchantRegistry {
	return &MerchantRegistry{db: db, providers: registry}
}

// RegisterMerchantInput describes a new merchant. Alias is generated when empty.
type RegisterMerchantInput struct {
	Name           string
	Alias          string
	Provider       string
	ProviderConfig map[string]any
	WebhookURL     string
}

// UpdateMerchantInput carries the fields to change; nil means unchanged.
type UpdateMerchantInput struct {
	Name           *string
	Provider       *string
	ProviderConfig map[string]any
	WebhookURL     *string
}

// Resolve maps a merchant id or alias to the stored merchant.
func (r *MerchantRegistry) Resolve(ctx context.Context, identifier string) (*models.Merchant, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, ValidationError("merchant identifier is required", map[string]string{"merchant_id": "required"})
	}

	if len(identifier) == 36 {
		if id, err := uuid.Parse(identifier); err == nil {
			merchant, err := r.findByID(ctx, id)
			if err == nil {
				return merchant, nil
			}
			if !errors.Is(err, ErrMerchantNotFound) {
				return nil, err
			}
		}
	}

	var merchant models.Merchant
	err := r.db.WithContext(ctx).Where("alias = ?", strings.ToUpper(identifier)).First(&merchant).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMerchantNotFound
		}
		return nil, internalError("failed to load merchant", err)
	}
	return &merchant, nil
}

// Get loads a merchant by its canonical id.
func (r *MerchantRegistry) Get(ctx context.Context, id uuid.UUID) (*models.Merchant, error) {
	return r.findByID(ctx, id)
}

func (r *MerchantRegistry) findByID(ctx context.Context, id uuid.UUID) (*models.Merchant, error) {
	var merchant models.Merchant
	if err := r.db.WithContext(ctx).First(&merchant, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMerchantNotFound
		}
		return nil, internalError("failed to load merchant", err)
	}
	return &merchant, nil
}

// Register stores a new merchant and returns it together with the plaintext
// API key. Only the key's hash is persisted.
func (r *MerchantRegistry) Register(ctx context.Context, in RegisterMerchantInput) (*models.Merchant, string, error) {
	fields := map[string]string{}

	name := strings.TrimSpace(in.Name)
	if name == "" {
		fields["name"] = "required"
	}

	alias := strings.ToUpper(strings.TrimSpace(in.Alias))
	if alias != "" && !aliasPattern.MatchString(alias) {
		fields["alias"] = "must be 4-16 characters from A-Z and 0-9"
	}

	provider := strings.ToLower(strings.TrimSpace(in.Provider))
	if provider == "" {
		provider = r.providers.Primary()
	}
	r.validateProvider(provider, in.ProviderConfig, fields)

	webhookURL := strings.TrimSpace(in.WebhookURL)
	if webhookURL != "" && !isAbsoluteURL(webhookURL) {
		fields["webhook_url"] = "must be an absolute http(s) URL"
	}

	if len(fields) > 0 {
		return nil, "", ValidationError("invalid merchant", fields)
	}

	apiKey, err := utils.GenerateAPIKey()
	if err != nil {
		return nil, "", internalError("failed to generate api key", err)
	}
	hash, err := utils.HashAPIKey(apiKey)
	if err != nil {
		return nil, "", internalError("failed to hash api key", err)
	}

	for attempt := 0; attempt < maxAliasAttempts; attempt++ {
		candidate := alias
		if candidate == "" {
			if candidate, err = generateAlias(); err != nil {
				return nil, "", internalError("failed to generate alias", err)
			}
		}

		merchant := &models.Merchant{
			Alias:          &candidate,
			Name:           name,
			Provider:       provider,
			ProviderConfig: in.ProviderConfig,
			WebhookURL:     webhookURL,
			APIKeyHash:     hash,
		}

		err = r.db.WithContext(ctx).Create(merchant).Error
		if err == nil {
			log.Printf("[Merchants] registered %s (%s) with provider %s", merchant.ID, candidate, provider)
			return merchant, apiKey, nil
		}
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, "", internalError("failed to create merchant", err)
		}
		if alias != "" {
			return nil, "", ConflictError("alias is already in use")
		}
		log.Printf("[Merchants] alias %s collided, retrying", candidate)
	}

	return nil, "", internalError("failed to allocate a unique alias", err)
}

// Update changes a merchant's name, provider, provider config or webhook URL.
func (r *MerchantRegistry) Update(ctx context.Context, id uuid.UUID, in UpdateMerchantInput) (*models.Merchant, error) {
	merchant, err := r.findByID(ctx, id)
	if err != nil {
		return nil, err
	}

	fields := map[string]string{}
	if in.Name != nil {
		if name := strings.TrimSpace(*in.Name); name == "" {
			fields["name"] = "required"
		} else {
			merchant.Name = name
		}
	}
	if in.Provider != nil {
		merchant.Provider = strings.ToLower(strings.TrimSpace(*in.Provider))
		if merchant.Provider == "" {
			merchant.Provider = r.providers.Primary()
		}
	}
	if in.ProviderConfig != nil {
		merchant.ProviderConfig = in.ProviderConfig
	}
	if in.WebhookURL != nil {
		webhookURL := strings.TrimSpace(*in.WebhookURL)
		if webhookURL != "" && !isAbsoluteURL(webhookURL) {
			fields["webhook_url"] = "must be an absolute http(s) URL"
		}
		merchant.WebhookURL = webhookURL
	}
	r.validateProvider(merchant.Provider, merchant.ProviderConfig, fields)

	if len(fields) > 0 {
		return nil, ValidationError("invalid merchant", fields)
	}

	if err := r.db.WithContext(ctx).Save(merchant).Error; err != nil {
		return nil, internalError("failed to update merchant", err)
	}
	return merchant, nil
}

// Delete removes a merchant. Its transactions stay in the ledger with a
// NULL merchant_id.
func (r *MerchantRegistry) Delete(ctx context.Context, id uuid.UUID) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Transaction{}).
			Where("merchant_id = ?", id).
			Update("merchant_id", nil).Error; err != nil {
			return err
		}

		res := tx.Delete(&models.Merchant{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrMerchantNotFound
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrMerchantNotFound) {
			return err
		}
		return internalError("failed to delete merchant", err)
	}

	log.Printf("[Merchants] deleted %s, transactions orphaned", id)
	return nil
}

// List returns merchants newest first.
func (r *MerchantRegistry) List(ctx context.Context, page utils.Pagination) ([]models.Merchant, int64, error) {
	var (
		merchants []models.Merchant
		total     int64
	)

	if err := r.db.WithContext(ctx).Model(&models.Merchant{}).Count(&total).Error; err != nil {
		return nil, 0, internalError("failed to count merchants", err)
	}
	if err := r.db.WithContext(ctx).Order("created_at DESC").Offset(page.Offset).Limit(page.Limit).Find(&merchants).Error; err != nil {
		return nil, 0, internalError("failed to list merchants", err)
	}
	return merchants, total, nil
}

// Authenticate checks a merchant API key. Unknown merchants and wrong keys
// are indistinguishable to the caller.
func (r *MerchantRegistry) Authenticate(ctx context.Context, identifier, apiKey string) (*models.Merchant, error) {
	merchant, err := r.Resolve(ctx, identifier)
	if err != nil {
		if KindOf(err) == KindNotFound || KindOf(err) == KindValidation {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !utils.CheckAPIKey(merchant.APIKeyHash, apiKey) {
		return nil, ErrInvalidCredentials
	}
	return merchant, nil
}

// RotateAPIKey replaces the merchant's API key and returns the new plaintext.
func (r *MerchantRegistry) RotateAPIKey(ctx context.Context, id uuid.UUID) (string, error) {
	apiKey, err := utils.GenerateAPIKey()
	if err != nil {
		return "", internalError("failed to generate api key", err)
	}
	hash, err := utils.HashAPIKey(apiKey)
	if err != nil {
		return "", internalError("failed to hash api key", err)
	}

	res := r.db.WithContext(ctx).Model(&models.Merchant{}).Where("id = ?", id).Update("api_key", hash)
	if res.Error != nil {
		return "", internalError("failed to rotate api key", res.Error)
	}
	if res.RowsAffected == 0 {
		return "", ErrMerchantNotFound
	}

	log.Printf("[Merchants] rotated api key for %s", id)
	return apiKey, nil
}

func (r *MerchantRegistry) validateProvider(provider string, cfg map[string]any, fields map[string]string) {
	if _, err := r.providers.Select(provider); err != nil {
		fields["provider"] = err.Error()
		return
	}
	if err := r.providers.ValidateConfig(provider, providers.Config(cfg)); err != nil {
		fields["provider_config"] = err.Error()
	}
}

func generateAlias() (string, error) {
	n := big.NewInt(int64(len(aliasAlphabet)))
	buf := make([]byte, aliasLength)
	for i := range buf {
		idx, err := rand.Int(rand.Reader, n)
		if err != nil {
			return "", err
		}
		buf[i] = aliasAlphabet[idx.Int64()]
	}
	return string(buf), nil
}

func isAbsoluteURL(raw string) bool {
	parsed, err := url.Parse(raw)
	return err == nil && parsed.Host != "" && (parsed.Scheme == "http" || parsed.Scheme == "https")
}

// Count returns the number of registered merchants.
func (r *MerchantRegistry) Count(ctx context.Context) (int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&models.Merchant{}).Count(&total).Error; err != nil {
		return 0, internalError("failed to count merchants", err)
	}
	return total, nil
}
