package domain

// Guardian link statuses
const (
	GuardianPending  = "pending"
	GuardianApproved = "approved"
	GuardianRejected = "rejected"
)

// GuardianLink Model. A guardian requests the link, the commuter approves or
// rejects it. Approved links receive a copy of every scan-outcome alert.
type GuardianLink struct {
	ID           uint   `gorm:"primaryKey"`           // Primary key
	GuardianID   uint   `gorm:"index;not null"`       // The requesting guardian User
	CommuterID   uint   `gorm:"index;not null"`       // The commuter being watched
	Relationship string // e.g. parent, guardian
	Status       string `gorm:"default:pending"`      // pending, approved or rejected
	CreatedAt    int64  `gorm:"autoCreateTime:milli"` // Timestamp of creation in milliseconds
}
