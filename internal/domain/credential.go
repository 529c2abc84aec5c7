package domain

// Credential Model. One row per commuter; rotating the credential replaces
// Value in place so the previous token stops resolving immediately.
type Credential struct {
	ID         uint   `gorm:"primaryKey"`           // Primary key
	CommuterID uint   `gorm:"uniqueIndex"`          // Foreign key to User
	Value      string `gorm:"uniqueIndex;not null"` // High-entropy token rendered as the QR payload
	IssuedAt   int64  `gorm:"not null"`             // Issue timestamp in milliseconds
	Revoked    bool   `gorm:"default:false"`        // Revoked credentials never resolve
}
