package fare

import (
	"fmt"
	"strings"
	"testing"

	"commutepay/internal/db"
	"commutepay/internal/domain"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.ReplaceAll(t.Name(), "/", "_")
	gdb, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(gdb))
	return gdb
}

func seedUser(t *testing.T, gdb *gorm.DB, tier, verification string) uint {
	t.Helper()
	u := domain.User{
		Phone:              fmt.Sprintf("+63%s-%s-%s", t.Name(), tier, verification),
		Role:               domain.RoleCommuter,
		PassengerType:      tier,
		VerificationStatus: verification,
		Active:             true,
	}
	require.NoError(t, gdb.Create(&u).Error)
	return u.ID
}

func TestQuoteByTierAndVerification(t *testing.T) {
	// Seeded rules: standard casual 15, student 12, senior 12
	tests := []struct {
		name         string
		tier         string
		verification string
		wantAmount   float64
		wantTier     string
	}{
		{"casual rides full fare", domain.TierCasual, domain.VerificationUnverified, 15, domain.TierCasual},
		{"verified student discounted", domain.TierStudent, domain.VerificationVerified, 12, domain.TierStudent},
		{"verified senior discounted", domain.TierSenior, domain.VerificationVerified, 12, domain.TierSenior},
		{"pending student billed casual", domain.TierStudent, domain.VerificationPending, 15, domain.TierCasual},
		{"unverified student billed casual", domain.TierStudent, domain.VerificationUnverified, 15, domain.TierCasual},
		{"rejected senior billed casual", domain.TierSenior, domain.VerificationRejected, 15, domain.TierCasual},
	}

	gdb := newTestDB(t)
	policy := NewPolicy(gdb)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id := seedUser(t, gdb, tt.tier, tt.verification)
			q, err := policy.Quote(id, "standard")
			require.NoError(t, err)
			require.Equal(t, tt.wantAmount, q.Amount)
			require.Equal(t, tt.wantTier, q.Tier)
		})
	}
}

func TestQuoteIsDeterministic(t *testing.T) {
	gdb := newTestDB(t)
	policy := NewPolicy(gdb)
	id := seedUser(t, gdb, domain.TierStudent, domain.VerificationVerified)

	first, err := policy.Quote(id, "standard")
	require.NoError(t, err)
	second, err := policy.Quote(id, "standard")
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestQuoteUnknownRouteClass(t *testing.T) {
	gdb := newTestDB(t)
	policy := NewPolicy(gdb)
	id := seedUser(t, gdb, domain.TierCasual, domain.VerificationUnverified)

	_, err := policy.Quote(id, "hovercraft")
	require.ErrorIs(t, err, ErrNoFareRule)
}

func TestQuoteFallsBackToCasualRule(t *testing.T) {
	gdb := newTestDB(t)
	// A class configured with only a casual amount
	require.NoError(t, gdb.Create(&domain.FareRule{RouteClass: "aircon", Tier: domain.TierCasual, Amount: 25}).Error)
	policy := NewPolicy(gdb)
	id := seedUser(t, gdb, domain.TierStudent, domain.VerificationVerified)

	q, err := policy.Quote(id, "aircon")
	require.NoError(t, err)
	require.Equal(t, 25.0, q.Amount)
	require.Equal(t, domain.TierCasual, q.Tier)
}
