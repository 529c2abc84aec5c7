// Package credential issues and resolves the rotating QR tokens commuters
// present to pay a fare.
package credential

import (
	"errors"
	"time"

	"commutepay/internal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrInvalidCredential is returned for unknown and revoked token values.
// Routine lookup misses are values, not panics: the scan processor turns
// this into a declined transaction.
var ErrInvalidCredential = errors.New("invalid credential")

// Store persists one rotating credential per commuter.
type Store struct {
	db *gorm.DB
}

// NewStore returns a Store backed by db.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Issue mints a fresh token for the commuter. Any previously issued value
// stops resolving immediately: the commuter's single row is updated in
// place, so at most one value resolves at a time.
func (s *Store) Issue(commuterID uint) (*domain.Credential, error) {
	cred := domain.Credential{
		CommuterID: commuterID,
		Value:      uuid.NewString(), // v4, unguessable
		IssuedAt:   time.Now().UnixMilli(),
		Revoked:    false,
	}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var existing domain.Credential
		if err := tx.Where("commuter_id = ?", commuterID).First(&existing).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return tx.Create(&cred).Error // First issue for this commuter
			}
			return err
		}
		// Rotate: replace the value on the existing row
		cred.ID = existing.ID
		return tx.Model(&existing).Updates(map[string]any{
			"value":     cred.Value,
			"issued_at": cred.IssuedAt,
			"revoked":   false,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	return &cred, nil
}

// Current returns the commuter's active credential, issuing one on the
// first request.
func (s *Store) Current(commuterID uint) (*domain.Credential, error) {
	var cred domain.Credential
	err := s.db.Where("commuter_id = ? AND revoked = ?", commuterID, false).First(&cred).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return s.Issue(commuterID)
	}
	if err != nil {
		return nil, err
	}
	return &cred, nil
}

// Resolve maps a presented token value to its commuter. Unknown and revoked
// values both come back as ErrInvalidCredential; the unique index on value
// keeps the lookup O(log n).
func (s *Store) Resolve(value string) (uint, error) {
	var cred domain.Credential
	if err := s.db.Where("value = ?", value).First(&cred).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrInvalidCredential
		}
		return 0, err
	}
	if cred.Revoked {
		return 0, ErrInvalidCredential
	}
	return cred.CommuterID, nil
}

// Revoke invalidates the commuter's credential until the next Issue.
func (s *Store) Revoke(commuterID uint) error {
	return s.db.Model(&domain.Credential{}).
		Where("commuter_id = ?", commuterID).
		Update("revoked", true).Error
}
