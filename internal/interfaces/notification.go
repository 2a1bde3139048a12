package interfaces

import (
	"context"

	"github.com/google/uuid"
	"github.com/sheikh-saqib/network-ledger/internal/models"
)

// ContributionNotice describes a contribution for the notification collaborator.
type ContributionNotice struct {
	ContributionID string
	ContributorID  uuid.UUID
	ParentID       *uuid.UUID
	Amount         int64
}

// NotificationService delivers fire-and-forget notifications. Errors are
// reported to the caller but never affect ledger state.
type NotificationService interface {
	NotifyContributionToPay(ctx context.Context, notice ContributionNotice) error
	NotifyContributionPaid(ctx context.Context, notice ContributionNotice) error
	NotifyContributionConfirmed(ctx context.Context, notice ContributionNotice) error
	NotifyNewConnectionAdded(ctx context.Context, member models.Member) error
}
