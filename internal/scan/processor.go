// Package scan orchestrates a fare charge: resolve the presented credential,
// resolve the vehicle, quote the fare, debit the wallet and credit the
// operator settlement, all recorded as one immutable ScanTransaction.
package scan

import (
	"context"
	"errors"
	"fmt"
	"time"

	"commutepay/internal/credential"
	"commutepay/internal/domain"
	"commutepay/internal/fare"
	"commutepay/internal/outbox"
	"commutepay/internal/wallet"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Cache is the debounce store. Production wires utils.RedisCache; tests use
// an in-memory map.
type Cache interface {
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}

// Request is one scan attempt from an operator device.
type Request struct {
	CredentialValue string `json:"credential_value" binding:"required"` // Token from the commuter's QR
	VehicleID       uint   `json:"vehicle_id" binding:"required"`       // Vehicle the scan happened on
	RouteName       string `json:"route_name"`                          // Optional override of the vehicle's route
	DeviceID        string `json:"device_id" binding:"required"`        // Scanning device identity
	ScannedAt       int64  `json:"scanned_at"`                          // Device clock in milliseconds, optional
}

// Result is the synchronous answer to the operator device.
type Result struct {
	Status       string  `json:"status"`              // approved or declined
	FareAmount   float64 `json:"fare_amount"`         // Quoted fare, zero if declined before quoting
	BalanceAfter float64 `json:"balance_after"`       // Commuter balance after the attempt
	Reason       string  `json:"reason,omitempty"`    // Decline reason, empty when approved
	TxID         uint    `json:"tx_id,omitempty"`     // The recorded ScanTransaction
	Duplicate    bool    `json:"duplicate,omitempty"` // True when served from the debounce cache
	commuterID   uint    // Resolved commuter, for cache invalidation
}

// CommuterID reports the resolved commuter, zero when the credential never
// resolved.
func (r Result) CommuterID() uint { return r.commuterID }

// Processor runs the scan state machine. A single attempt moves
// received -> credential_resolved -> fare_quoted -> approved|declined;
// there is no retry inside an attempt, retries are new attempts.
type Processor struct {
	db          *gorm.DB
	credentials *credential.Store
	fares       *fare.Policy
	wallets     *wallet.Service
	cache       Cache
	window      time.Duration
}

// NewProcessor wires the processor. window is the duplicate-scan debounce
// interval.
func NewProcessor(db *gorm.DB, creds *credential.Store, fares *fare.Policy, wallets *wallet.Service, cache Cache, window time.Duration) *Processor {
	return &Processor{
		db:          db,
		credentials: creds,
		fares:       fares,
		wallets:     wallets,
		cache:       cache,
		window:      window,
	}
}

func debounceKey(req Request) string {
	return fmt.Sprintf("scan:debounce:%s:%s", req.CredentialValue, req.DeviceID)
}

func walletCacheKey(userID uint) string {
	return fmt.Sprintf("wallet:user:%d", userID)
}

// Process handles one scan attempt. Business declines come back inside the
// Result with a nil error; a non-nil error is an infra failure with no
// partial writes, and the caller should retry as a new attempt.
func (p *Processor) Process(ctx context.Context, req Request) (Result, error) {
	// 1. Malformed payloads decline immediately. The attempt is still
	// logged as a ScanTransaction for audit.
	if req.CredentialValue == "" || req.DeviceID == "" || req.VehicleID == 0 {
		return p.decline(ctx, req, nil, nil, 0, 0, domain.DeclineInvalidPayload)
	}

	// 2. Debounce: scanning hardware re-fires on the same frame, so an
	// identical (credential, device) pair inside the window gets the prior
	// terminal result back instead of a second charge.
	key := debounceKey(req)
	var prior Result
	if found, err := p.cache.Get(ctx, key, &prior); err != nil {
		logrus.WithField("key", key).WithError(err).Warn("Debounce lookup failed, processing anyway")
	} else if found {
		prior.Duplicate = true
		return prior, nil
	}

	// 3. Resolve the credential to a commuter.
	commuterID, err := p.credentials.Resolve(req.CredentialValue)
	if errors.Is(err, credential.ErrInvalidCredential) {
		return p.decline(ctx, req, nil, nil, 0, 0, domain.DeclineInvalidCredential)
	}
	if err != nil {
		return Result{}, err
	}

	// 4. Resolve the vehicle to an operator and route.
	var veh domain.Vehicle
	if err := p.db.First(&veh, req.VehicleID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return p.decline(ctx, req, &commuterID, nil, 0, 0, domain.DeclineInvalidVehicle)
		}
		return Result{}, err
	}
	if req.RouteName == "" {
		req.RouteName = veh.RouteName
	}

	// 5. Quote the fare.
	quote, err := p.fares.Quote(commuterID, veh.RouteClass)
	if err != nil {
		return Result{}, err
	}

	// A credential without a wallet means onboarding never completed;
	// from the operator's side that credential is not chargeable.
	w, err := p.wallets.Get(commuterID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return p.decline(ctx, req, &commuterID, &veh, 0, 0, domain.DeclineInvalidCredential)
		}
		return Result{}, err
	}

	// 6. Atomic charge. The per-wallet lock spans the balance re-read and
	// the debit, so concurrent scans for one commuter serialize here.
	if err := p.wallets.Locks().Lock(w.ID); err != nil {
		return Result{}, err
	}
	defer p.wallets.Locks().Unlock(w.ID)

	var result Result
	err = p.db.Transaction(func(tx *gorm.DB) error {
		var cur domain.Wallet
		if err := tx.First(&cur, w.ID).Error; err != nil {
			return err
		}
		if cur.Balance < quote.Amount {
			r, err := p.writeDecline(tx, req, &commuterID, &veh, quote.Amount, cur.Balance, domain.DeclineInsufficientFunds)
			if err != nil {
				return err
			}
			result = r
			return nil
		}

		// Debit: ledger entry plus cached balance, in lockstep
		entry := domain.LedgerEntry{
			WalletID: w.ID,
			Kind:     domain.KindFareDebit,
			Amount:   quote.Amount,
		}
		if err := tx.Create(&entry).Error; err != nil {
			return err
		}
		if err := tx.Model(&domain.Wallet{}).Where("id = ?", w.ID).
			Update("balance", gorm.Expr("balance - ?", quote.Amount)).Error; err != nil {
			return err
		}
		if err := tx.First(&cur, w.ID).Error; err != nil {
			return err
		}
		if cur.Balance < 0 {
			// Should be unreachable under the lock. Freeze the wallet
			// and abort the whole attempt rather than commit an overdraw.
			p.wallets.Locks().Halt(w.ID)
			logrus.WithFields(logrus.Fields{
				"wallet_id": w.ID,
				"balance":   cur.Balance,
			}).Error("Negative balance detected, wallet halted")
			return wallet.ErrWalletHalted
		}

		reqTx := domain.ScanTransaction{
			CredentialValue: req.CredentialValue,
			CommuterID:      &commuterID,
			VehicleID:       &veh.ID,
			OperatorID:      &veh.OperatorID,
			RouteName:       req.RouteName,
			DeviceID:        req.DeviceID,
			FareAmount:      quote.Amount,
			Status:          domain.ScanApproved,
			ScannedAt:       scannedAtOrNow(req),
		}
		if err := tx.Create(&reqTx).Error; err != nil {
			return err
		}
		if err := createSettlement(tx, &veh, &reqTx); err != nil {
			return err
		}
		if err := p.enqueueAlerts(tx, commuterID, &reqTx); err != nil {
			return err
		}
		result = Result{
			Status:       domain.ScanApproved,
			FareAmount:   quote.Amount,
			BalanceAfter: cur.Balance,
			TxID:         reqTx.ID,
			commuterID:   commuterID,
		}
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	p.finalize(ctx, key, result)
	logrus.WithFields(logrus.Fields{
		"tx_id":       result.TxID,
		"commuter_id": commuterID,
		"vehicle_id":  veh.ID,
		"route":       req.RouteName,
		"fare":        result.FareAmount,
		"status":      result.Status,
		"reason":      result.Reason,
	}).Info("Scan processed")
	return result, nil
}

// decline records a declined attempt outside the wallet transaction path.
func (p *Processor) decline(ctx context.Context, req Request, commuterID *uint, veh *domain.Vehicle, fareAmount, balance float64, reason string) (Result, error) {
	var result Result
	err := p.db.Transaction(func(tx *gorm.DB) error {
		r, err := p.writeDecline(tx, req, commuterID, veh, fareAmount, balance, reason)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	if req.CredentialValue != "" && req.DeviceID != "" {
		p.finalize(ctx, debounceKey(req), result)
	}
	logrus.WithFields(logrus.Fields{
		"tx_id":     result.TxID,
		"device_id": req.DeviceID,
		"reason":    reason,
	}).Info("Scan declined")
	return result, nil
}

// writeDecline appends the declined ScanTransaction and, when the commuter
// is known, the outcome alerts — on the caller's transaction. Declines
// never touch the wallet or the settlement ledger.
func (p *Processor) writeDecline(tx *gorm.DB, req Request, commuterID *uint, veh *domain.Vehicle, fareAmount, balance float64, reason string) (Result, error) {
	r := reason
	scanTx := domain.ScanTransaction{
		CredentialValue: req.CredentialValue,
		CommuterID:      commuterID,
		RouteName:       req.RouteName,
		DeviceID:        req.DeviceID,
		FareAmount:      fareAmount,
		Status:          domain.ScanDeclined,
		DeclineReason:   &r,
		ScannedAt:       scannedAtOrNow(req),
	}
	if veh != nil {
		scanTx.VehicleID = &veh.ID
		scanTx.OperatorID = &veh.OperatorID
		if scanTx.RouteName == "" {
			scanTx.RouteName = veh.RouteName
		}
	}
	if err := tx.Create(&scanTx).Error; err != nil {
		return Result{}, err
	}
	result := Result{
		Status:       domain.ScanDeclined,
		FareAmount:   fareAmount,
		BalanceAfter: balance,
		Reason:       reason,
		TxID:         scanTx.ID,
	}
	if commuterID != nil {
		result.commuterID = *commuterID
		if err := p.enqueueAlerts(tx, *commuterID, &scanTx); err != nil {
			return Result{}, err
		}
	}
	return result, nil
}

// enqueueAlerts writes the outcome notification for the commuter and for
// every approved guardian, on the finalizing transaction.
func (p *Processor) enqueueAlerts(tx *gorm.DB, commuterID uint, scanTx *domain.ScanTransaction) error {
	payload := map[string]any{
		"type":        "scan_result",
		"tx_id":       scanTx.ID,
		"status":      scanTx.Status,
		"fare_amount": scanTx.FareAmount,
		"route_name":  scanTx.RouteName,
		"scanned_at":  scanTx.ScannedAt,
	}
	if scanTx.DeclineReason != nil {
		payload["reason"] = *scanTx.DeclineReason
	}
	if _, err := outbox.Enqueue(tx, commuterID, payload); err != nil {
		return err
	}
	var links []domain.GuardianLink
	err := tx.Where("commuter_id = ? AND status = ?", commuterID, domain.GuardianApproved).
		Find(&links).Error
	if err != nil {
		return err
	}
	for _, link := range links {
		if _, err := outbox.Enqueue(tx, link.GuardianID, payload); err != nil {
			return err
		}
	}
	return nil
}

// finalize publishes the terminal result to the debounce cache and drops
// the commuter's stale wallet cache. Both are best effort: the transaction
// already committed.
func (p *Processor) finalize(ctx context.Context, key string, result Result) {
	if err := p.cache.Set(ctx, key, result, p.window); err != nil {
		logrus.WithField("key", key).WithError(err).Warn("Debounce store failed")
	}
	if result.commuterID != 0 && result.Status == domain.ScanApproved {
		_ = p.cache.Del(ctx, walletCacheKey(result.commuterID))
	}
}

func createSettlement(tx *gorm.DB, veh *domain.Vehicle, scanTx *domain.ScanTransaction) error {
	s := domain.Settlement{
		OperatorID: veh.OperatorID,
		TxID:       scanTx.ID,
		Reference:  newReference(),
		Amount:     scanTx.FareAmount,
		RouteName:  scanTx.RouteName,
		Status:     domain.SettlementUnpaid,
	}
	return tx.Create(&s).Error
}

func newReference() string {
	return uuid.NewString()
}

func scannedAtOrNow(req Request) int64 {
	if req.ScannedAt > 0 {
		return req.ScannedAt
	}
	return time.Now().UnixMilli()
}
