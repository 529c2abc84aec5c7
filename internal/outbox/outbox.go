// Package outbox queues guardian and commuter alerts for an external
// delivery worker. Rows are written in the same database transaction that
// finalizes a scan, so every terminal transaction enqueues exactly once.
package outbox

import (
	"encoding/json"

	"commutepay/internal/domain"

	"gorm.io/gorm"
)

// Outbox reads and transitions notification entries.
type Outbox struct {
	db *gorm.DB
}

// New returns an Outbox backed by db.
func New(db *gorm.DB) *Outbox {
	return &Outbox{db: db}
}

// Enqueue writes a queued entry on the caller's transaction. Passing the
// transaction in keeps the enqueue atomic with the writes that made the
// outcome terminal.
func Enqueue(tx *gorm.DB, recipientID uint, payload any) (uint, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return 0, err
	}
	entry := domain.OutboxEntry{
		RecipientID: recipientID,
		Payload:     string(b),
		Status:      domain.OutboxQueued,
	}
	if err := tx.Create(&entry).Error; err != nil {
		return 0, err
	}
	return entry.ID, nil
}

// ListQueued returns up to limit undelivered entries, oldest first.
func (o *Outbox) ListQueued(limit int) ([]domain.OutboxEntry, error) {
	var entries []domain.OutboxEntry
	err := o.db.Where("status = ?", domain.OutboxQueued).
		Order("created_at asc").
		Limit(limit).
		Find(&entries).Error
	return entries, err
}

// MarkSent records a successful delivery.
func (o *Outbox) MarkSent(id uint) error {
	return o.db.Model(&domain.OutboxEntry{}).Where("id = ?", id).
		Updates(map[string]any{
			"status":   domain.OutboxSent,
			"attempts": gorm.Expr("attempts + 1"),
		}).Error
}

// MarkFailed records a delivery failure with its cause. The worker decides
// whether to requeue; the engine only keeps the bookkeeping.
func (o *Outbox) MarkFailed(id uint, cause string) error {
	return o.db.Model(&domain.OutboxEntry{}).Where("id = ?", id).
		Updates(map[string]any{
			"status":   domain.OutboxFailed,
			"attempts": gorm.Expr("attempts + 1"),
			"error":    cause,
		}).Error
}

// Requeue puts a failed entry back in the queue for another attempt.
func (o *Outbox) Requeue(id uint) error {
	return o.db.Model(&domain.OutboxEntry{}).
		Where("id = ? AND status = ?", id, domain.OutboxFailed).
		Update("status", domain.OutboxQueued).Error
}
