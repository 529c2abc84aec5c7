// Package settlement tracks per-transaction amounts owed to operators and
// their unpaid -> paid transitions.
package settlement

import (
	"errors"
	"time"

	"commutepay/internal/domain"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ErrNotFound is returned when the settlement id does not exist.
var ErrNotFound = errors.New("settlement not found")

// Ledger reads and settles operator payouts.
type Ledger struct {
	db *gorm.DB
}

// NewLedger returns a Ledger backed by db.
func NewLedger(db *gorm.DB) *Ledger {
	return &Ledger{db: db}
}

// ListUnpaid returns unpaid settlements, optionally for one operator
// (operatorID == 0 means all), plus the unpaid total. The total is summed
// from the live rows on every call; there is no separately cached
// aggregate to drift from the source of truth.
func (l *Ledger) ListUnpaid(operatorID uint) ([]domain.Settlement, float64, error) {
	q := l.db.Model(&domain.Settlement{}).Where("status = ?", domain.SettlementUnpaid)
	if operatorID != 0 {
		q = q.Where("operator_id = ?", operatorID)
	}
	var items []domain.Settlement
	if err := q.Order("created_at desc").Find(&items).Error; err != nil {
		return nil, 0, err
	}
	var total float64
	for _, s := range items {
		total += s.Amount
	}
	return items, total, nil
}

// ListByOperator returns all of an operator's settlements, newest first,
// with the unpaid portion totalled. Backs the operator earnings view.
func (l *Ledger) ListByOperator(operatorID uint) ([]domain.Settlement, float64, error) {
	var items []domain.Settlement
	err := l.db.Where("operator_id = ?", operatorID).
		Order("created_at desc").
		Find(&items).Error
	if err != nil {
		return nil, 0, err
	}
	var unpaid float64
	for _, s := range items {
		if s.Status == domain.SettlementUnpaid {
			unpaid += s.Amount
		}
	}
	return items, unpaid, nil
}

// MarkPaid transitions a settlement to paid. Marking an already-paid
// settlement again is a no-op success: an administrator double-tap must not
// error. Paid never goes back to unpaid.
func (l *Ledger) MarkPaid(id uint, notes string) error {
	return l.db.Transaction(func(tx *gorm.DB) error {
		var s domain.Settlement
		if err := tx.First(&s, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if s.Status == domain.SettlementPaid {
			return nil // Already settled, idempotent
		}
		now := time.Now().UnixMilli()
		updates := map[string]any{
			"status":  domain.SettlementPaid,
			"paid_at": now,
		}
		if notes != "" {
			updates["notes"] = notes
		}
		if err := tx.Model(&s).Updates(updates).Error; err != nil {
			return err
		}
		logrus.WithFields(logrus.Fields{
			"settlement_id": s.ID,
			"operator_id":   s.OperatorID,
			"amount":        s.Amount,
		}).Info("Settlement marked paid")
		return nil
	})
}
