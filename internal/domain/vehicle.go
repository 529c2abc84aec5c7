package domain

// Vehicle Model. Reference data owned by admins; the scan processor only
// reads it to resolve the operator and route for a charge.
type Vehicle struct {
	ID         uint   `gorm:"primaryKey"`           // Primary key
	OperatorID uint   `gorm:"index;not null"`       // Foreign key to the operator User
	PlateNo    string `gorm:"uniqueIndex;not null"` // Plate number
	RouteName  string `gorm:"not null"`             // Human-readable route, stamped onto transactions
	RouteClass string `gorm:"default:standard"`     // Fare rule key, e.g. standard or aircon
	CreatedAt  int64  `gorm:"autoCreateTime:milli"` // Timestamp of creation in milliseconds
}
