package domain

// Outbox statuses
const (
	OutboxQueued = "queued"
	OutboxSent   = "sent"
	OutboxFailed = "failed"
)

// OutboxEntry Model. Written in the same transaction that finalizes a scan,
// consumed by an external delivery worker.
type OutboxEntry struct {
	ID          uint   `gorm:"primaryKey"`           // Primary key
	RecipientID uint   `gorm:"index;not null"`       // User the alert is addressed to
	Payload     string `gorm:"not null"`             // JSON summary of the transaction outcome
	Status      string `gorm:"index;default:queued"` // queued, sent or failed
	Attempts    int    `gorm:"default:0"`            // Delivery attempts so far
	Error       string // Last delivery error, empty until a failure
	CreatedAt   int64  `gorm:"autoCreateTime:milli"` // Timestamp of creation in milliseconds
}
