package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/example/froydpay/internal/models"
	"github.com/example/froydpay/internal/providers"
)

// EventJournal records verified provider events for audit. Recording a
// duplicate is not an error; the caller is told and may log it.
type EventJournal interface {
	Record(ctx context.Context, provider string, ev providers.Event, payload []byte) (duplicate bool, err error)
	MarkProcessed(ctx context.Context, provider, eventID string, processErr error) error
}

// GormEventJournal stores events in the provider_events table.
type GormEventJournal struct {
	db  *gorm.DB
	now func() time.Time
}

// NewGormEventJournal creates a journal backed by the main database.
func NewGormEventJournal(db *gorm.DB) *GormEventJournal {
	return &GormEventJournal{db: db, now: time.Now}
}

func (j *GormEventJournal) Record(ctx context.Context, provider string, ev providers.Event, payload []byte) (bool, error) {
	row := &models.ProviderEvent{
		Provider:     provider,
		EventID:      ev.ID,
		EventType:    ev.Type,
		ProviderTxID: ev.ProviderTxID,
		Payload:      journalPayload(payload),
	}

	if err := j.db.WithContext(ctx).Create(row).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return true, nil
		}
		return false, err
	}
	return false, nil
}

func (j *GormEventJournal) MarkProcessed(ctx context.Context, provider, eventID string, processErr error) error {
	updates := map[string]any{"processed_at": j.now()}
	if processErr != nil {
		updates["process_error"] = truncate(processErr.Error(), 1024)
	}

	return j.db.WithContext(ctx).
		Model(&models.ProviderEvent{}).
		Where("provider = ? AND event_id = ?", provider, eventID).
		Updates(updates).Error
}

// journalPayload keeps bodies that are not JSON as a JSON string so the
// jsonb column accepts them.
func journalPayload(payload []byte) datatypes.JSON {
	if len(payload) == 0 || json.Valid(payload) {
		return datatypes.JSON(payload)
	}
	quoted, _ := json.Marshal(string(payload))
	return datatypes.JSON(quoted)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
