package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"

	interfaces "github.com/sheikh-saqib/network-ledger/internal/interfaces"
	"github.com/sheikh-saqib/network-ledger/internal/models"
	"github.com/sheikh-saqib/network-ledger/internal/models/events"
	"github.com/sheikh-saqib/network-ledger/internal/pkg/logger"
)

const headerEventName = "event-name"

// ConsumedEvents are the event names the service reads from kafka.
var ConsumedEvents = []string{
	events.NameContributionMade,
	events.NameContributionPaid,
	events.NameContributionConfirmed,
	events.NameAccountRegistered,
	events.NameInvitationAccepted,
}

type ConsumerConfig struct {
	Brokers     []string
	GroupID     string
	TopicPrefix string
}

// Consumer reads upstream events and hands each one to target. Offsets are
// committed after target returns, whatever it returned: cascade failures are
// routed by the handlers, not redelivered by kafka.
type Consumer struct {
	reader *kafka.Reader
	target interfaces.EventPublisher
	prefix string
	log    *logger.Logger
}

func NewConsumer(cfg ConsumerConfig, target interfaces.EventPublisher, log *logger.Logger) *Consumer {
	topics := make([]string, 0, len(ConsumedEvents))
	for _, name := range ConsumedEvents {
		topics = append(topics, cfg.TopicPrefix+name)
	}
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:        cfg.Brokers,
			GroupID:        cfg.GroupID,
			GroupTopics:    topics,
			MinBytes:       1,
			MaxBytes:       10e6,
			MaxWait:        500 * time.Millisecond,
			CommitInterval: 0,
		}),
		target: target,
		prefix: cfg.TopicPrefix,
		log:    log.With("service", "KafkaConsumer"),
	}
}

// Run consumes until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("fetch message: %w", err)
		}

		c.handle(ctx, msg)

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("commit offset %d on %s: %w", msg.Offset, msg.Topic, err)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, msg kafka.Message) {
	name := eventName(msg, c.prefix)
	event, err := DecodeEvent(name, msg.Value)
	if err != nil {
		c.log.Error("dropping undecodable message",
			"topic", msg.Topic,
			"partition", msg.Partition,
			"offset", msg.Offset,
			"error", err,
		)
		return
	}
	if err := c.target.Publish(ctx, event); err != nil {
		c.log.Error("event handling failed", "event", name, "offset", msg.Offset, "error", err)
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}

func eventName(msg kafka.Message, prefix string) string {
	for _, h := range msg.Headers {
		if h.Key == headerEventName {
			return string(h.Value)
		}
	}
	return strings.TrimPrefix(msg.Topic, prefix)
}

var maxAmount = decimal.NewFromInt(1 << 62)

// contributionWire accepts amounts as JSON numbers or strings, e.g. 100,
// "100" or "100.00". Only whole non-negative values are valid.
type contributionWire struct {
	ContributionID string          `json:"contribution_id"`
	ContributorID  uuid.UUID       `json:"contributor_id"`
	CaseID         string          `json:"case_id"`
	Amount         decimal.Decimal `json:"amount"`
}

func (w contributionWire) amount() (int64, error) {
	if w.Amount.IsNegative() {
		return 0, fmt.Errorf("%w: amount %s is negative", models.ErrInvalidAmount, w.Amount)
	}
	if !w.Amount.IsInteger() {
		return 0, fmt.Errorf("%w: amount %s is not a whole unit", models.ErrInvalidAmount, w.Amount)
	}
	if w.Amount.GreaterThan(maxAmount) {
		return 0, fmt.Errorf("%w: amount %s out of range", models.ErrInvalidAmount, w.Amount)
	}
	return w.Amount.IntPart(), nil
}

// DecodeEvent turns a message body into the event registered under name.
func DecodeEvent(name string, data []byte) (events.Event, error) {
	switch name {
	case events.NameContributionMade, events.NameContributionPaid, events.NameContributionConfirmed:
		var w contributionWire
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, fmt.Errorf("decode %s: %w", name, err)
		}
		amount, err := w.amount()
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", name, err)
		}
		switch name {
		case events.NameContributionMade:
			return events.ContributionMade{ContributionID: w.ContributionID, ContributorID: w.ContributorID, CaseID: w.CaseID, Amount: amount}, nil
		case events.NameContributionPaid:
			return events.ContributionPaid{ContributionID: w.ContributionID, ContributorID: w.ContributorID, Amount: amount}, nil
		default:
			return events.ContributionConfirmed{ContributionID: w.ContributionID, ContributorID: w.ContributorID, Amount: amount}, nil
		}
	case events.NameAccountRegistered:
		var evt events.AccountRegistered
		if err := json.Unmarshal(data, &evt); err != nil {
			return nil, fmt.Errorf("decode %s: %w", name, err)
		}
		return evt, nil
	case events.NameInvitationAccepted:
		var evt events.InvitationAccepted
		if err := json.Unmarshal(data, &evt); err != nil {
			return nil, fmt.Errorf("decode %s: %w", name, err)
		}
		return evt, nil
	default:
		return nil, errors.New("unknown event " + name)
	}
}
