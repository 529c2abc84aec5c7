package domain

// Roles recognized by the auth middleware
const (
	RoleCommuter = "commuter" // Pays fares from a wallet
	RoleOperator = "operator" // Scans commuter credentials on a vehicle
	RoleAdmin    = "admin"    // Settles operator payouts, reviews verifications
)

// Passenger tiers used by the fare policy
const (
	TierCasual  = "casual"  // Full fare, no verification needed
	TierStudent = "student" // Discounted fare, verification required
	TierSenior  = "senior"  // Discounted fare, verification required
)

// Verification statuses set by the external verification subsystem
const (
	VerificationUnverified = "unverified"
	VerificationPending    = "pending"
	VerificationVerified   = "verified"
	VerificationRejected   = "rejected"
)

// User Model
type User struct {
	ID                 uint   `gorm:"primaryKey"`                                     // Primary key
	Phone              string `gorm:"uniqueIndex;not null"`                           // Phone number from the identity provider
	Role               string `gorm:"default:commuter"`                               // Role: commuter, operator or admin
	PassengerType      string `gorm:"default:casual"`                                 // Tier: casual, student or senior
	VerificationStatus string `gorm:"default:unverified"`                             // unverified, pending, verified or rejected
	PINHash            string // Hashed MPIN, empty until onboarding completes
	Active             bool   `gorm:"default:false"`                                  // Set when the MPIN is set and the wallet exists
	Wallet             Wallet `gorm:"constraint:OnUpdate:CASCADE,OnDelete:SET NULL;"` // One-to-one relationship with Wallet
}
