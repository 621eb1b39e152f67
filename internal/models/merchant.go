package models

import "gorm.io/datatypes"

// Merchant is a registered gateway customer and its provider configuration.
type Merchant struct {
	BaseModel
	Alias          *string           `gorm:"size:16;uniqueIndex" json:"alias"`
	Name           string            `gorm:"size:255;not null" json:"name"`
	Provider       string            `gorm:"size:32;not null" json:"provider"`
	ProviderConfig datatypes.JSONMap `json:"provider_config"`
	WebhookURL     string            `gorm:"size:2048" json:"webhook_url"`
	APIKeyHash     string            `gorm:"column:api_key;size:255;not null" json:"-"`
}

// AliasOrEmpty returns the merchant alias or an empty string.
func (m *Merchant) AliasOrEmpty() string {
	if m.Alias == nil {
		return ""
	}
	return *m.Alias
}
