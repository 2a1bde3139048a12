package storage

import (
	"context"

	"github.com/google/uuid"
	interfaces "github.com/sheikh-saqib/network-ledger/internal/interfaces"
	"github.com/sheikh-saqib/network-ledger/internal/ledger"
	"github.com/sheikh-saqib/network-ledger/internal/pkg/logger"
)

// PublishingLedgerRepository forwards a ledger's buffered domain events to the
// event bus once the wrapped repository has written it. The buffer is drained
// either way; a failed publish is logged and does not fail the save.
type PublishingLedgerRepository struct {
	next      interfaces.LedgerRepository
	publisher interfaces.EventPublisher
	log       *logger.Logger
}

func NewPublishingLedgerRepository(next interfaces.LedgerRepository, publisher interfaces.EventPublisher, log *logger.Logger) *PublishingLedgerRepository {
	return &PublishingLedgerRepository{
		next:      next,
		publisher: publisher,
		log:       log.With("component", "PublishingLedgerRepository"),
	}
}

func (r *PublishingLedgerRepository) FindByMemberID(ctx context.Context, memberID uuid.UUID) (*ledger.Ledger, error) {
	return r.next.FindByMemberID(ctx, memberID)
}

func (r *PublishingLedgerRepository) Save(ctx context.Context, l *ledger.Ledger) error {
	if err := r.next.Save(ctx, l); err != nil {
		return err
	}

	for _, event := range l.PullEvents() {
		if err := r.publisher.Publish(ctx, event); err != nil {
			r.log.Warn("publish ledger event failed",
				"ledger_id", l.ID(),
				"event", event.EventName(),
				"error", err,
			)
		}
	}
	return nil
}

var _ interfaces.LedgerRepository = (*PublishingLedgerRepository)(nil)
