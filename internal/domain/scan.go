package domain

// Scan outcomes
const (
	ScanApproved = "approved"
	ScanDeclined = "declined"
)

// Decline reasons. Closed set: clients and tests match on these strings.
const (
	DeclineInvalidPayload    = "invalid_payload"
	DeclineInvalidCredential = "invalid_credential"
	DeclineInvalidVehicle    = "invalid_vehicle"
	DeclineInsufficientFunds = "insufficient_funds"
)

// ScanTransaction Model. One row per scan attempt, approved or declined,
// immutable after creation. Resolution fields are pointers because a decline
// can happen before the credential or vehicle resolved.
type ScanTransaction struct {
	ID              uint    `gorm:"primaryKey"`           // Primary key
	CredentialValue string  `gorm:"index"`                // Token as presented, kept even when it did not resolve
	CommuterID      *uint   `gorm:"index"`                // Resolved commuter, nil when the credential was unknown
	VehicleID       *uint   // Resolved vehicle, nil when the vehicle was unknown
	OperatorID      *uint   `gorm:"index"`                // Operator owning the vehicle
	RouteName       string  // Route the charge was made on
	DeviceID        string  `gorm:"index"`                // Scanning device, part of the debounce key
	FareAmount      float64 // Quoted fare, zero when declined before quoting
	Status          string  `gorm:"index;not null"`       // approved or declined
	DeclineReason   *string // One of the Decline* constants, nil when approved
	ScannedAt       int64   // Device-reported scan timestamp in milliseconds
	CreatedAt       int64   `gorm:"autoCreateTime:milli"` // Timestamp of creation in milliseconds
}
