package domain

// Settlement statuses
const (
	SettlementUnpaid = "unpaid"
	SettlementPaid   = "paid"
)

// Settlement Model. Created 1:1 with every approved ScanTransaction and
// transitions unpaid -> paid exactly once, never back.
type Settlement struct {
	ID         uint    `gorm:"primaryKey"`           // Primary key
	OperatorID uint    `gorm:"index;not null"`       // Operator the amount is owed to
	TxID       uint    `gorm:"uniqueIndex;not null"` // The approved ScanTransaction this settles
	Reference  string  `gorm:"uniqueIndex;not null"` // External payout reference
	Amount     float64 `gorm:"not null"`             // Equals the transaction's fare amount
	RouteName  string  // Route copied from the transaction
	Status     string  `gorm:"index;default:unpaid"` // unpaid or paid
	Notes      string  // Admin notes recorded at payout time
	CreatedAt  int64   `gorm:"autoCreateTime:milli"` // Timestamp of creation in milliseconds
	PaidAt     *int64  // Payout timestamp in milliseconds, nil while unpaid
}
