package interfaces

import (
	"context"

	"github.com/google/uuid"
	"github.com/sheikh-saqib/network-ledger/internal/ledger"
	"github.com/sheikh-saqib/network-ledger/internal/models"
)

// LedgerRepository persists ledger aggregates keyed by member id.
// FindByMemberID returns models.ErrNotFound when no ledger exists.
// Save returns models.ErrVersionConflict when the stored version moved since
// the ledger was loaded, and calls MarkSaved on success.
type LedgerRepository interface {
	FindByMemberID(ctx context.Context, memberID uuid.UUID) (*ledger.Ledger, error)
	Save(ctx context.Context, l *ledger.Ledger) error
}

// MemberRepository persists the member network.
// GetByID returns models.ErrNotFound when the member is unknown.
type MemberRepository interface {
	GetByID(ctx context.Context, memberID uuid.UUID) (models.Member, error)
	Save(ctx context.Context, member models.Member) error
	Delete(ctx context.Context, memberID uuid.UUID) error
}
