package models

import (
	"time"

	"gorm.io/datatypes"
)

// ProviderEvent journals every verified inbound provider event.
type ProviderEvent struct {
	BaseModel
	Provider     string         `gorm:"size:32;not null;uniqueIndex:idx_provider_events_provider_event,priority:1" json:"provider"`
	EventID      string         `gorm:"size:255;not null;uniqueIndex:idx_provider_events_provider_event,priority:2" json:"event_id"`
	EventType    string         `gorm:"size:128;not null" json:"event_type"`
	ProviderTxID string         `gorm:"column:provider_tx_id;size:255;index" json:"provider_tx_id"`
	Payload      datatypes.JSON `json:"payload"`
	ProcessedAt  *time.Time     `json:"processed_at"`
	ProcessError string         `gorm:"size:1024" json:"process_error"`
}
