package scan

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"commutepay/internal/credential"
	"commutepay/internal/db"
	"commutepay/internal/domain"
	"commutepay/internal/fare"
	"commutepay/internal/wallet"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// memoryCache is an in-process stand-in for the redis debounce cache.
type memoryCache struct {
	mu    sync.Mutex
	items map[string]memoryItem
}

type memoryItem struct {
	data    []byte
	expires time.Time
}

func newMemoryCache() *memoryCache {
	return &memoryCache{items: make(map[string]memoryItem)}
}

func (c *memoryCache) Get(_ context.Context, key string, dest any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	item, ok := c.items[key]
	if !ok || time.Now().After(item.expires) {
		return false, nil
	}
	return true, json.Unmarshal(item.data, dest)
}

func (c *memoryCache) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = memoryItem{data: b, expires: time.Now().Add(ttl)}
	return nil
}

func (c *memoryCache) Del(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
	return nil
}

type fixture struct {
	db          *gorm.DB
	credentials *credential.Store
	wallets     *wallet.Service
	processor   *Processor
	cache       *memoryCache
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	name := strings.ReplaceAll(t.Name(), "/", "_")
	gdb, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(gdb))

	locks := wallet.NewLockTable()
	wallets := wallet.NewService(gdb, locks)
	creds := credential.NewStore(gdb)
	cache := newMemoryCache()
	return &fixture{
		db:          gdb,
		credentials: creds,
		wallets:     wallets,
		processor:   NewProcessor(gdb, creds, fare.NewPolicy(gdb), wallets, cache, 2*time.Second),
		cache:       cache,
	}
}

// seedCommuter creates an onboarded commuter with a credential and the
// given wallet balance (funded through the ledger, not poked in directly).
func (f *fixture) seedCommuter(t *testing.T, tier, verification string, balance float64) (domain.User, string) {
	t.Helper()
	u := domain.User{
		Phone:              fmt.Sprintf("+63-9%03d", len(t.Name())+int(balance)),
		Role:               domain.RoleCommuter,
		PassengerType:      tier,
		VerificationStatus: verification,
		Active:             true,
	}
	require.NoError(t, f.db.Create(&u).Error)
	_, err := f.wallets.Create(u.ID)
	require.NoError(t, err)
	if balance > 0 {
		_, err = f.wallets.TopUp(u.ID, balance)
		require.NoError(t, err)
	}
	cred, err := f.credentials.Issue(u.ID)
	require.NoError(t, err)
	return u, cred.Value
}

func (f *fixture) seedVehicle(t *testing.T) domain.Vehicle {
	t.Helper()
	op := domain.User{Phone: "+63-operator-" + t.Name(), Role: domain.RoleOperator, Active: true}
	require.NoError(t, f.db.Create(&op).Error)
	v := domain.Vehicle{OperatorID: op.ID, PlateNo: "ABC-" + t.Name(), RouteName: "ROUTE A", RouteClass: "standard"}
	require.NoError(t, f.db.Create(&v).Error)
	return v
}

func (f *fixture) assertLedgerMatchesBalance(t *testing.T, userID uint) {
	t.Helper()
	w, err := f.wallets.Get(userID)
	require.NoError(t, err)
	require.NoError(t, f.wallets.VerifyBalance(w.ID))
}

func TestApprovedScanChargesAndSettles(t *testing.T) {
	f := newFixture(t)
	u, credValue := f.seedCommuter(t, domain.TierCasual, domain.VerificationUnverified, 100)
	v := f.seedVehicle(t)

	result, err := f.processor.Process(context.Background(), Request{
		CredentialValue: credValue,
		VehicleID:       v.ID,
		DeviceID:        "dev-1",
	})
	require.NoError(t, err)
	require.Equal(t, domain.ScanApproved, result.Status)
	require.Equal(t, 15.0, result.FareAmount)
	require.Equal(t, 85.0, result.BalanceAfter)
	require.Empty(t, result.Reason)

	// One fare_debit of 15 on the ledger
	var debits []domain.LedgerEntry
	require.NoError(t, f.db.Where("kind = ?", domain.KindFareDebit).Find(&debits).Error)
	require.Len(t, debits, 1)
	require.Equal(t, 15.0, debits[0].Amount)
	f.assertLedgerMatchesBalance(t, u.ID)

	// Exactly one unpaid settlement of equal amount, tied to the transaction
	var settlements []domain.Settlement
	require.NoError(t, f.db.Find(&settlements).Error)
	require.Len(t, settlements, 1)
	require.Equal(t, domain.SettlementUnpaid, settlements[0].Status)
	require.Equal(t, 15.0, settlements[0].Amount)
	require.Equal(t, result.TxID, settlements[0].TxID)
	require.Equal(t, v.OperatorID, settlements[0].OperatorID)

	// The outcome alert is queued for the commuter
	var alerts []domain.OutboxEntry
	require.NoError(t, f.db.Find(&alerts).Error)
	require.Len(t, alerts, 1)
	require.Equal(t, u.ID, alerts[0].RecipientID)
	require.Equal(t, domain.OutboxQueued, alerts[0].Status)
}

func TestInsufficientFundsDeclineLeavesWalletUntouched(t *testing.T) {
	f := newFixture(t)
	u, credValue := f.seedCommuter(t, domain.TierCasual, domain.VerificationUnverified, 10)
	v := f.seedVehicle(t)

	result, err := f.processor.Process(context.Background(), Request{
		CredentialValue: credValue,
		VehicleID:       v.ID,
		DeviceID:        "dev-1",
	})
	require.NoError(t, err)
	require.Equal(t, domain.ScanDeclined, result.Status)
	require.Equal(t, domain.DeclineInsufficientFunds, result.Reason)
	require.Equal(t, 10.0, result.BalanceAfter) // Current balance surfaced

	w, err := f.wallets.Get(u.ID)
	require.NoError(t, err)
	require.Equal(t, 10.0, w.Balance)
	f.assertLedgerMatchesBalance(t, u.ID)

	// Declines never create settlements or debits
	var count int64
	require.NoError(t, f.db.Model(&domain.Settlement{}).Count(&count).Error)
	require.EqualValues(t, 0, count)
	require.NoError(t, f.db.Model(&domain.LedgerEntry{}).Where("kind = ?", domain.KindFareDebit).Count(&count).Error)
	require.EqualValues(t, 0, count)

	// But the attempt itself is on the audit log
	var scanTx domain.ScanTransaction
	require.NoError(t, f.db.First(&scanTx, result.TxID).Error)
	require.Equal(t, domain.ScanDeclined, scanTx.Status)
	require.Equal(t, domain.DeclineInsufficientFunds, *scanTx.DeclineReason)
}

func TestUnknownCredentialDeclines(t *testing.T) {
	f := newFixture(t)
	v := f.seedVehicle(t)

	result, err := f.processor.Process(context.Background(), Request{
		CredentialValue: "not-a-real-token",
		VehicleID:       v.ID,
		DeviceID:        "dev-1",
	})
	require.NoError(t, err)
	require.Equal(t, domain.ScanDeclined, result.Status)
	require.Equal(t, domain.DeclineInvalidCredential, result.Reason)

	// Logged with no commuter resolution
	var scanTx domain.ScanTransaction
	require.NoError(t, f.db.First(&scanTx, result.TxID).Error)
	require.Nil(t, scanTx.CommuterID)
	require.Equal(t, "not-a-real-token", scanTx.CredentialValue)

	// No recipient, so no alert
	var count int64
	require.NoError(t, f.db.Model(&domain.OutboxEntry{}).Count(&count).Error)
	require.EqualValues(t, 0, count)
}

func TestRotatedCredentialStopsCharging(t *testing.T) {
	f := newFixture(t)
	u, oldValue := f.seedCommuter(t, domain.TierCasual, domain.VerificationUnverified, 100)
	v := f.seedVehicle(t)
	_, err := f.credentials.Issue(u.ID) // Rotate: oldValue superseded
	require.NoError(t, err)

	result, err := f.processor.Process(context.Background(), Request{
		CredentialValue: oldValue,
		VehicleID:       v.ID,
		DeviceID:        "dev-1",
	})
	require.NoError(t, err)
	require.Equal(t, domain.DeclineInvalidCredential, result.Reason)
}

func TestUnknownVehicleDeclines(t *testing.T) {
	f := newFixture(t)
	u, credValue := f.seedCommuter(t, domain.TierCasual, domain.VerificationUnverified, 100)

	result, err := f.processor.Process(context.Background(), Request{
		CredentialValue: credValue,
		VehicleID:       999,
		DeviceID:        "dev-1",
	})
	require.NoError(t, err)
	require.Equal(t, domain.ScanDeclined, result.Status)
	require.Equal(t, domain.DeclineInvalidVehicle, result.Reason)

	// The commuter resolved, so the attempt is attributed and alerted
	var scanTx domain.ScanTransaction
	require.NoError(t, f.db.First(&scanTx, result.TxID).Error)
	require.Equal(t, u.ID, *scanTx.CommuterID)
	var count int64
	require.NoError(t, f.db.Model(&domain.OutboxEntry{}).Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestMalformedPayloadDeclines(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		req  Request
	}{
		{"empty request", Request{}},
		{"missing credential", Request{VehicleID: 1, DeviceID: "dev-1"}},
		{"missing device", Request{CredentialValue: "x", VehicleID: 1}},
		{"missing vehicle", Request{CredentialValue: "x", DeviceID: "dev-1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := f.processor.Process(context.Background(), tt.req)
			require.NoError(t, err)
			require.Equal(t, domain.ScanDeclined, result.Status)
			require.Equal(t, domain.DeclineInvalidPayload, result.Reason)
			require.NotZero(t, result.TxID) // Even malformed attempts are logged
		})
	}
}

func TestDebounceReturnsPriorResultWithoutSecondCharge(t *testing.T) {
	f := newFixture(t)
	u, credValue := f.seedCommuter(t, domain.TierCasual, domain.VerificationUnverified, 100)
	v := f.seedVehicle(t)
	req := Request{CredentialValue: credValue, VehicleID: v.ID, DeviceID: "dev-1"}

	first, err := f.processor.Process(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, domain.ScanApproved, first.Status)

	// Same frame re-fired by the scanner: cached result, no reprocessing
	second, err := f.processor.Process(context.Background(), req)
	require.NoError(t, err)
	require.True(t, second.Duplicate)
	require.Equal(t, first.Status, second.Status)
	require.Equal(t, first.TxID, second.TxID)
	require.Equal(t, first.BalanceAfter, second.BalanceAfter)

	// Only one transaction and one debit exist
	var count int64
	require.NoError(t, f.db.Model(&domain.ScanTransaction{}).Count(&count).Error)
	require.EqualValues(t, 1, count)
	w, err := f.wallets.Get(u.ID)
	require.NoError(t, err)
	require.Equal(t, 85.0, w.Balance)

	// A different device is an independent attempt, not a duplicate
	third, err := f.processor.Process(context.Background(), Request{
		CredentialValue: credValue, VehicleID: v.ID, DeviceID: "dev-2",
	})
	require.NoError(t, err)
	require.False(t, third.Duplicate)
	require.NoError(t, f.db.Model(&domain.ScanTransaction{}).Count(&count).Error)
	require.EqualValues(t, 2, count)
}

func TestVerifiedStudentPaysDiscountedFare(t *testing.T) {
	f := newFixture(t)
	_, credValue := f.seedCommuter(t, domain.TierStudent, domain.VerificationVerified, 100)
	v := f.seedVehicle(t)

	result, err := f.processor.Process(context.Background(), Request{
		CredentialValue: credValue, VehicleID: v.ID, DeviceID: "dev-1",
	})
	require.NoError(t, err)
	require.Equal(t, 12.0, result.FareAmount)
	require.Equal(t, 88.0, result.BalanceAfter)
}

func TestPendingStudentBilledCasualFare(t *testing.T) {
	f := newFixture(t)
	_, credValue := f.seedCommuter(t, domain.TierStudent, domain.VerificationPending, 100)
	v := f.seedVehicle(t)

	result, err := f.processor.Process(context.Background(), Request{
		CredentialValue: credValue, VehicleID: v.ID, DeviceID: "dev-1",
	})
	require.NoError(t, err)
	require.Equal(t, domain.ScanApproved, result.Status) // Still rides
	require.Equal(t, 15.0, result.FareAmount)            // At the casual fare
}

func TestGuardianReceivesCopyOfAlert(t *testing.T) {
	f := newFixture(t)
	u, credValue := f.seedCommuter(t, domain.TierCasual, domain.VerificationUnverified, 100)
	v := f.seedVehicle(t)

	guardian := domain.User{Phone: "+63-guardian", Role: domain.RoleCommuter, Active: true}
	require.NoError(t, f.db.Create(&guardian).Error)
	require.NoError(t, f.db.Create(&domain.GuardianLink{
		GuardianID: guardian.ID, CommuterID: u.ID, Relationship: "parent", Status: domain.GuardianApproved,
	}).Error)
	// A pending link must not receive anything
	pending := domain.User{Phone: "+63-pending", Role: domain.RoleCommuter, Active: true}
	require.NoError(t, f.db.Create(&pending).Error)
	require.NoError(t, f.db.Create(&domain.GuardianLink{
		GuardianID: pending.ID, CommuterID: u.ID, Relationship: "parent", Status: domain.GuardianPending,
	}).Error)

	_, err := f.processor.Process(context.Background(), Request{
		CredentialValue: credValue, VehicleID: v.ID, DeviceID: "dev-1",
	})
	require.NoError(t, err)

	var alerts []domain.OutboxEntry
	require.NoError(t, f.db.Order("recipient_id asc").Find(&alerts).Error)
	require.Len(t, alerts, 2)
	recipients := []uint{alerts[0].RecipientID, alerts[1].RecipientID}
	require.Contains(t, recipients, u.ID)
	require.Contains(t, recipients, guardian.ID)
}

func TestConcurrentScansNeverOverdraw(t *testing.T) {
	f := newFixture(t)
	u, credValue := f.seedCommuter(t, domain.TierCasual, domain.VerificationUnverified, 40)
	v := f.seedVehicle(t)

	// 10 concurrent attempts at fare 15 against a balance of 40: the wallet
	// supports exactly two approvals, everything else must decline.
	const attempts = 10
	results := make([]Result, attempts)
	errs := make([]error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = f.processor.Process(context.Background(), Request{
				CredentialValue: credValue,
				VehicleID:       v.ID,
				DeviceID:        fmt.Sprintf("dev-%d", i), // Distinct devices: no debounce
			})
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}

	approved, declined := 0, 0
	for _, r := range results {
		switch r.Status {
		case domain.ScanApproved:
			approved++
		case domain.ScanDeclined:
			require.Equal(t, domain.DeclineInsufficientFunds, r.Reason)
			declined++
		}
	}
	require.Equal(t, 2, approved)
	require.Equal(t, 8, declined)

	w, err := f.wallets.Get(u.ID)
	require.NoError(t, err)
	require.Equal(t, 10.0, w.Balance) // 40 - 2x15, never negative
	f.assertLedgerMatchesBalance(t, u.ID)

	var count int64
	require.NoError(t, f.db.Model(&domain.Settlement{}).Count(&count).Error)
	require.EqualValues(t, 2, count) // One settlement per approval, none per decline
}
