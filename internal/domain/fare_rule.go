package domain

// FareRule Model. Configuration table keyed by route class and tier; fare
// amounts are data, never hard-coded in the engine.
type FareRule struct {
	ID         uint    `gorm:"primaryKey"`                       // Primary key
	RouteClass string  `gorm:"uniqueIndex:idx_route_tier"`       // Vehicle route class, e.g. standard
	Tier       string  `gorm:"uniqueIndex:idx_route_tier"`       // Passenger tier the amount applies to
	Amount     float64 `gorm:"not null"`                         // Fare amount for this class and tier
}
