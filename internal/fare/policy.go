// Package fare maps a commuter's verified passenger tier to a fare amount
// for a vehicle's route class.
package fare

import (
	"errors"
	"fmt"

	"commutepay/internal/domain"

	"gorm.io/gorm"
)

// ErrNoFareRule means the fare_rules table has no row for the route class.
// That is a configuration gap, not a business decline.
var ErrNoFareRule = errors.New("no fare rule configured")

// Quote is the outcome of a fare lookup.
type Quote struct {
	Amount float64 // Amount to charge
	Tier   string  // Tier the commuter was billed at
}

// Policy reads fare rules and commuter verification state. Amounts live in
// the fare_rules table so routes and discounts change without a deploy.
type Policy struct {
	db *gorm.DB
}

// NewPolicy returns a Policy backed by db.
func NewPolicy(db *gorm.DB) *Policy {
	return &Policy{db: db}
}

// Quote returns the fare for the commuter on the given route class.
// Discounted tiers (student, senior) apply only with a verified status;
// an unverified, pending or rejected applicant is billed at the casual
// fare rather than declined, so they can still ride.
func (p *Policy) Quote(commuterID uint, routeClass string) (Quote, error) {
	var user domain.User
	if err := p.db.First(&user, commuterID).Error; err != nil {
		return Quote{}, fmt.Errorf("load commuter %d: %w", commuterID, err)
	}

	tier := user.PassengerType
	if tier != domain.TierCasual && user.VerificationStatus != domain.VerificationVerified {
		tier = domain.TierCasual
	}

	var rule domain.FareRule
	err := p.db.Where("route_class = ? AND tier = ?", routeClass, tier).First(&rule).Error
	if errors.Is(err, gorm.ErrRecordNotFound) && tier != domain.TierCasual {
		// A class may configure only the casual amount
		err = p.db.Where("route_class = ? AND tier = ?", routeClass, domain.TierCasual).First(&rule).Error
		tier = domain.TierCasual
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Quote{}, fmt.Errorf("%w: route class %q", ErrNoFareRule, routeClass)
	}
	if err != nil {
		return Quote{}, err
	}
	return Quote{Amount: rule.Amount, Tier: tier}, nil
}
