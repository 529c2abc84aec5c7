package domain

// Ledger entry kinds
const (
	KindTopupCredit = "topup_credit" // Money in: top-up from the commuter
	KindFareDebit   = "fare_debit"   // Money out: an approved fare charge
)

// Wallet Model
type Wallet struct {
	ID      uint    `gorm:"primaryKey"`         // Primary key
	UserID  uint    `gorm:"uniqueIndex"`        // Foreign key to User
	Balance float64 `gorm:"not null;default:0"` // Cached balance, always equal to the sum of ledger entries
}

// LedgerEntry Model. Append-only: rows are never updated or deleted, the
// wallet balance is derivable by summing them.
type LedgerEntry struct {
	ID        uint    `gorm:"primaryKey"`           // Primary key
	WalletID  uint    `gorm:"index;not null"`       // Foreign key to Wallet
	Kind      string  `gorm:"not null"`             // topup_credit or fare_debit
	Amount    float64 `gorm:"not null"`             // Always positive, the kind carries the sign
	CreatedAt int64   `gorm:"autoCreateTime:milli"` // Timestamp of creation in milliseconds
}
