package notification

import (
	"context"
	"time"

	"github.com/google/uuid"

	interfaces "github.com/sheikh-saqib/network-ledger/internal/interfaces"
	"github.com/sheikh-saqib/network-ledger/internal/models"
	"github.com/sheikh-saqib/network-ledger/internal/models/events"
	"github.com/sheikh-saqib/network-ledger/internal/pkg/logger"
)

const (
	KindContributionToPay     = "contribution_to_pay"
	KindContributionPaid      = "contribution_paid"
	KindContributionConfirmed = "contribution_confirmed"
	KindNewConnectionAdded    = "new_connection_added"
)

// Requested asks the notification service to message RecipientID.
type Requested struct {
	Kind           string     `json:"kind"`
	RecipientID    uuid.UUID  `json:"recipient_id"`
	ContributionID string     `json:"contribution_id,omitempty"`
	ContributorID  *uuid.UUID `json:"contributor_id,omitempty"`
	ParentID       *uuid.UUID `json:"parent_id,omitempty"`
	Amount         int64      `json:"amount,omitempty"`
	Children       int        `json:"children,omitempty"`
	RequestedAt    time.Time  `json:"requested_at"`
}

func (Requested) EventName() string      { return events.NameNotificationRequested }
func (r Requested) PartitionKey() string { return r.RecipientID.String() }

// Publisher turns notifications into Requested events on an EventPublisher,
// usually the kafka publisher.
type Publisher struct {
	publisher interfaces.EventPublisher
}

func NewPublisher(publisher interfaces.EventPublisher) *Publisher {
	return &Publisher{publisher: publisher}
}

// NotifyContributionToPay tells the contributor they owe their parent.
func (p *Publisher) NotifyContributionToPay(ctx context.Context, notice interfaces.ContributionNotice) error {
	return p.publisher.Publish(ctx, fromNotice(KindContributionToPay, notice.ContributorID, notice))
}

// NotifyContributionPaid tells the parent a payment was sent to them.
func (p *Publisher) NotifyContributionPaid(ctx context.Context, notice interfaces.ContributionNotice) error {
	recipient := notice.ContributorID
	if notice.ParentID != nil {
		recipient = *notice.ParentID
	}
	return p.publisher.Publish(ctx, fromNotice(KindContributionPaid, recipient, notice))
}

func (p *Publisher) NotifyContributionConfirmed(ctx context.Context, notice interfaces.ContributionNotice) error {
	return p.publisher.Publish(ctx, fromNotice(KindContributionConfirmed, notice.ContributorID, notice))
}

func (p *Publisher) NotifyNewConnectionAdded(ctx context.Context, member models.Member) error {
	return p.publisher.Publish(ctx, Requested{
		Kind:        KindNewConnectionAdded,
		RecipientID: member.ID,
		ParentID:    member.ParentID,
		Children:    len(member.Children),
		RequestedAt: time.Now().UTC(),
	})
}

func fromNotice(kind string, recipient uuid.UUID, notice interfaces.ContributionNotice) Requested {
	contributor := notice.ContributorID
	return Requested{
		Kind:           kind,
		RecipientID:    recipient,
		ContributionID: notice.ContributionID,
		ContributorID:  &contributor,
		ParentID:       notice.ParentID,
		Amount:         notice.Amount,
		RequestedAt:    time.Now().UTC(),
	}
}

// LogNotifier only logs. It stands in when no broker is configured.
type LogNotifier struct {
	log *logger.Logger
}

func NewLogNotifier(log *logger.Logger) *LogNotifier {
	return &LogNotifier{log: log.With("service", "LogNotifier")}
}

func (n *LogNotifier) NotifyContributionToPay(_ context.Context, notice interfaces.ContributionNotice) error {
	n.contribution(KindContributionToPay, notice)
	return nil
}

func (n *LogNotifier) NotifyContributionPaid(_ context.Context, notice interfaces.ContributionNotice) error {
	n.contribution(KindContributionPaid, notice)
	return nil
}

func (n *LogNotifier) NotifyContributionConfirmed(_ context.Context, notice interfaces.ContributionNotice) error {
	n.contribution(KindContributionConfirmed, notice)
	return nil
}

func (n *LogNotifier) NotifyNewConnectionAdded(_ context.Context, member models.Member) error {
	n.log.Info("notification", "kind", KindNewConnectionAdded, "member_id", member.ID, "children", len(member.Children))
	return nil
}

func (n *LogNotifier) contribution(kind string, notice interfaces.ContributionNotice) {
	n.log.Info("notification",
		"kind", kind,
		"contribution_id", notice.ContributionID,
		"contributor_id", notice.ContributorID,
		"amount", notice.Amount,
	)
}

var (
	_ interfaces.NotificationService = (*Publisher)(nil)
	_ interfaces.NotificationService = (*LogNotifier)(nil)
)
