package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	interfaces "github.com/sheikh-saqib/network-ledger/internal/interfaces"
	"github.com/sheikh-saqib/network-ledger/internal/ledger"
	"github.com/sheikh-saqib/network-ledger/internal/models"
)

// LedgerStore is an in-memory LedgerRepository. It keeps snapshots, never the
// caller's aggregate, so concurrent handlers each work on their own copy.
type LedgerStore struct {
	mu      sync.Mutex                    // guards ledgers
	ledgers map[uuid.UUID]ledger.Snapshot // keyed by member id, which is also the ledger id
}

func NewLedgerStore() *LedgerStore {
	return &LedgerStore{
		ledgers: make(map[uuid.UUID]ledger.Snapshot),
	}
}

func (m *LedgerStore) FindByMemberID(ctx context.Context, memberID uuid.UUID) (*ledger.Ledger, error) {
	m.mu.Lock()         // lock to prevent reading while a save is in progress
	defer m.mu.Unlock() // unlock automatically when the function returns

	snap, ok := m.ledgers[memberID]
	if !ok {
		return nil, fmt.Errorf("ledger for member %s: %w", memberID, models.ErrNotFound)
	}
	return ledger.Restore(snap)
}

func (m *LedgerStore) Save(ctx context.Context, l *ledger.Ledger) error {
	if l == nil {
		return fmt.Errorf("%w: ledger is required", models.ErrInvalidArgument)
	}

	m.mu.Lock()         // lock the mutex to prevent concurrent writes
	defer m.mu.Unlock() // unlock automatically even when the version check fails

	stored, exists := m.ledgers[l.ID()]
	switch {
	case exists && stored.Version != l.Version():
		return fmt.Errorf("ledger %s at version %d, stored %d: %w", l.ID(), l.Version(), stored.Version, models.ErrVersionConflict)
	case !exists && l.Version() != 0:
		return fmt.Errorf("ledger %s at version %d was removed: %w", l.ID(), l.Version(), models.ErrVersionConflict)
	}

	snap := l.Snapshot() // copy so later mutations of l do not leak into the store
	snap.Version++       // stored version moves ahead of the caller's
	m.ledgers[l.ID()] = snap
	l.MarkSaved() // caller catches up to the stored version
	return nil
}

// Len returns the number of stored ledgers.
func (m *LedgerStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.ledgers)
}

// Compile-time check: ensure LedgerStore implements LedgerRepository
var _ interfaces.LedgerRepository = (*LedgerStore)(nil)
