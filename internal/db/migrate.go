package db

import (
	"commutepay/internal/domain" // Importing domain models

	"github.com/sirupsen/logrus"

	"gorm.io/driver/mysql" // MySQL driver for GORM
	"gorm.io/gorm"         // GORM ORM library
	"gorm.io/gorm/clause"  // Upsert clauses for seeding
)

// DefaultFareRules seed the standard route class. Amounts are data: admins
// adjust them per route class and tier without a code change.
var DefaultFareRules = []domain.FareRule{
	{RouteClass: "standard", Tier: domain.TierCasual, Amount: 15},
	{RouteClass: "standard", Tier: domain.TierStudent, Amount: 12},
	{RouteClass: "standard", Tier: domain.TierSenior, Amount: 12},
}

// Migrate performs automatic migration for the database schema
func Migrate(dsn string) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{}) // Open a connection to the database
	if err != nil {
		logrus.Fatalf("failed to connect database: %v", err) // Log fatal error if connection fails
	}
	if err := AutoMigrate(db); err != nil {
		logrus.Fatalf("migration failed: %v", err) // Log fatal error if migration fails
	}
	logrus.Info("Migration completed.") // Log successful migration
}

// AutoMigrate creates tables, missing foreign keys, constraints, columns
// and indexes, then seeds default fare rules where none exist yet.
func AutoMigrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&domain.User{},
		&domain.Wallet{},
		&domain.LedgerEntry{},
		&domain.Credential{},
		&domain.Vehicle{},
		&domain.FareRule{},
		&domain.ScanTransaction{},
		&domain.Settlement{},
		&domain.GuardianLink{},
		&domain.OutboxEntry{},
	)
	if err != nil {
		return err
	}
	// Seed defaults without clobbering amounts an admin already changed
	rules := make([]domain.FareRule, len(DefaultFareRules))
	copy(rules, DefaultFareRules)
	return db.Clauses(clause.OnConflict{DoNothing: true}).Create(&rules).Error
}
