// Package wallet holds the single authoritative balance per commuter and
// its append-only ledger.
package wallet

import (
	"errors"
	"fmt"

	"commutepay/internal/domain"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ErrAmountNotPositive rejects zero and negative ledger amounts.
var ErrAmountNotPositive = errors.New("amount must be positive")

// Service manages wallets and ledger entries. The cached Wallet.Balance and
// the sum of LedgerEntry rows move together inside one transaction, never
// separately.
type Service struct {
	db    *gorm.DB
	locks *LockTable
}

// NewService returns a Service backed by db, serializing writes through locks.
func NewService(db *gorm.DB, locks *LockTable) *Service {
	return &Service{db: db, locks: locks}
}

// Locks exposes the per-wallet lock table shared with the scan processor.
func (s *Service) Locks() *LockTable {
	return s.locks
}

// Create returns the commuter's wallet, creating it with a zero balance on
// first call. Called when onboarding (MPIN setup) completes.
func (s *Service) Create(userID uint) (*domain.Wallet, error) {
	var w domain.Wallet
	err := s.db.Where("user_id = ?", userID).First(&w).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		w = domain.Wallet{UserID: userID, Balance: 0}
		if err := s.db.Create(&w).Error; err != nil {
			return nil, err
		}
		return &w, nil
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// Get loads the commuter's wallet.
func (s *Service) Get(userID uint) (*domain.Wallet, error) {
	var w domain.Wallet
	if err := s.db.Where("user_id = ?", userID).First(&w).Error; err != nil {
		return nil, err
	}
	return &w, nil
}

// TopUp credits the wallet: one topup_credit ledger entry plus the balance
// bump, committed together.
func (s *Service) TopUp(userID uint, amount float64) (*domain.Wallet, error) {
	if amount <= 0 {
		return nil, ErrAmountNotPositive
	}
	w, err := s.Get(userID)
	if err != nil {
		return nil, err
	}
	if err := s.locks.Lock(w.ID); err != nil {
		return nil, err
	}
	defer s.locks.Unlock(w.ID)

	err = s.db.Transaction(func(tx *gorm.DB) error {
		entry := domain.LedgerEntry{
			WalletID: w.ID,
			Kind:     domain.KindTopupCredit,
			Amount:   amount,
		}
		if err := tx.Create(&entry).Error; err != nil {
			return err
		}
		return tx.Model(&domain.Wallet{}).Where("id = ?", w.ID).
			Update("balance", gorm.Expr("balance + ?", amount)).Error
	})
	if err != nil {
		return nil, err
	}
	logrus.WithFields(logrus.Fields{
		"user_id": userID,
		"amount":  amount,
		"type":    domain.KindTopupCredit,
	}).Info("Wallet top-up")
	return s.Get(userID)
}

// Entries returns the wallet's ledger entries, newest first, paginated.
func (s *Service) Entries(userID uint, page, pageSize int) ([]domain.LedgerEntry, int64, error) {
	w, err := s.Get(userID)
	if err != nil {
		return nil, 0, err
	}
	var total int64
	if err := s.db.Model(&domain.LedgerEntry{}).Where("wallet_id = ?", w.ID).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var entries []domain.LedgerEntry
	err = s.db.Where("wallet_id = ?", w.ID).
		Order("created_at desc").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&entries).Error
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

// LedgerSum recomputes the balance from the ledger rows alone.
func (s *Service) LedgerSum(walletID uint) (float64, error) {
	var sum float64
	err := s.db.Model(&domain.LedgerEntry{}).
		Where("wallet_id = ?", walletID).
		Select("COALESCE(SUM(CASE WHEN kind = ? THEN amount ELSE -amount END), 0)", domain.KindTopupCredit).
		Scan(&sum).Error
	return sum, err
}

// VerifyBalance checks the cached balance against the ledger sum, halting
// the wallet on a mismatch.
func (s *Service) VerifyBalance(walletID uint) error {
	var w domain.Wallet
	if err := s.db.First(&w, walletID).Error; err != nil {
		return err
	}
	sum, err := s.LedgerSum(walletID)
	if err != nil {
		return err
	}
	if w.Balance != sum {
		s.locks.Halt(walletID)
		logrus.WithFields(logrus.Fields{
			"wallet_id":  walletID,
			"balance":    w.Balance,
			"ledger_sum": sum,
		}).Error("Wallet balance diverged from ledger")
		return fmt.Errorf("%w: balance %.2f, ledger sum %.2f", ErrWalletHalted, w.Balance, sum)
	}
	return nil
}
