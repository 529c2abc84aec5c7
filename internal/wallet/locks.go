package wallet

import (
	"errors"
	"sync"
)

// ErrWalletHalted means an integrity check failed for this wallet and all
// further charges are refused until an operator intervenes.
var ErrWalletHalted = errors.New("wallet halted: balance integrity violation")

// LockTable serializes charges per wallet: one active charge at a time, so
// two concurrent scans can never both read the same balance snapshot and
// jointly overdraw it. Unrelated wallets proceed in parallel.
type LockTable struct {
	mu     sync.Mutex
	locks  map[uint]*sync.Mutex
	halted map[uint]bool
}

// NewLockTable returns an empty LockTable.
func NewLockTable() *LockTable {
	return &LockTable{
		locks:  make(map[uint]*sync.Mutex),
		halted: make(map[uint]bool),
	}
}

func (t *LockTable) lockFor(walletID uint) *sync.Mutex {
	t.mu.Lock()
	defer t.mu.Unlock()
	m, ok := t.locks[walletID]
	if !ok {
		m = &sync.Mutex{}
		t.locks[walletID] = m
	}
	return m
}

// Lock acquires the wallet's charge lock, failing fast when the wallet has
// been halted.
func (t *LockTable) Lock(walletID uint) error {
	if t.IsHalted(walletID) {
		return ErrWalletHalted
	}
	t.lockFor(walletID).Lock()
	// A halt may have landed while we were waiting
	if t.IsHalted(walletID) {
		t.lockFor(walletID).Unlock()
		return ErrWalletHalted
	}
	return nil
}

// Unlock releases the wallet's charge lock.
func (t *LockTable) Unlock(walletID uint) {
	t.lockFor(walletID).Unlock()
}

// Halt freezes the wallet. Used when a detected invariant violation must
// stop processing for that wallet instead of silently proceeding.
func (t *LockTable) Halt(walletID uint) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.halted[walletID] = true
}

// IsHalted reports whether the wallet is frozen.
func (t *LockTable) IsHalted(walletID uint) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.halted[walletID]
}
