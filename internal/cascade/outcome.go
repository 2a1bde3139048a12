package cascade

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	interfaces "github.com/sheikh-saqib/network-ledger/internal/interfaces"
	"github.com/sheikh-saqib/network-ledger/internal/models"
	"github.com/sheikh-saqib/network-ledger/internal/models/events"
)

// Status summarizes how far a cascade got.
type Status string

const (
	// StatusApplied means every reachable ledger was updated. Ancestors with
	// no ledger are listed in Outcome.Skipped.
	StatusApplied Status = "applied"
	// StatusAborted means a precondition failed (member or ledger missing)
	// and nothing was written.
	StatusAborted Status = "aborted"
	// StatusFailed means an error occurred before any ledger was written.
	StatusFailed Status = "failed"
	// StatusPartial means some ledgers were written before an error stopped the cascade.
	StatusPartial Status = "partial"
)

// Outcome is the result of handling one contribution event.
type Outcome struct {
	Event          string
	ContributionID string
	ContributorID  uuid.UUID
	Status         Status
	Applied        int
	Skipped        []uuid.UUID
	Err            error
}

func (o Outcome) OK() bool { return o.Status == StatusApplied }

// Changed reports whether the run completed and wrote at least one step. A
// replay of an already settled event completes without changing anything.
func (o Outcome) Changed() bool { return o.OK() && o.Applied > 0 }

// FailureSink receives outcomes that did not apply, e.g. to route them to a
// dead-letter topic.
type FailureSink interface {
	Route(ctx context.Context, outcome Outcome) error
}

// DeadLetterSink publishes failed outcomes as CascadeFailed events.
type DeadLetterSink struct {
	publisher interfaces.EventPublisher
}

func NewDeadLetterSink(publisher interfaces.EventPublisher) *DeadLetterSink {
	return &DeadLetterSink{publisher: publisher}
}

func (s *DeadLetterSink) Route(ctx context.Context, outcome Outcome) error {
	msg := ""
	if outcome.Err != nil {
		msg = outcome.Err.Error()
	}
	return s.publisher.Publish(ctx, events.CascadeFailed{
		Event:          outcome.Event,
		ContributionID: outcome.ContributionID,
		ContributorID:  outcome.ContributorID,
		Status:         string(outcome.Status),
		ErrorKind:      models.ErrorKind(outcome.Err),
		Error:          msg,
		Skipped:        outcome.Skipped,
		OccurredAt:     time.Now().UTC(),
	})
}

const outcomeCounterName = "ledger_cascade_outcomes_total"

type outcomeMetrics struct {
	outcomes metric.Int64Counter
}

func newOutcomeMetrics(meter metric.Meter) (*outcomeMetrics, error) {
	counter, err := meter.Int64Counter(outcomeCounterName,
		metric.WithDescription("Contribution cascades handled, by event, status and error kind."),
	)
	if err != nil {
		return nil, err
	}
	return &outcomeMetrics{outcomes: counter}, nil
}

func (m *outcomeMetrics) record(ctx context.Context, outcome Outcome) {
	m.outcomes.Add(ctx, 1, metric.WithAttributes(
		attribute.String("event", outcome.Event),
		attribute.String("status", string(outcome.Status)),
		attribute.String("error_kind", models.ErrorKind(outcome.Err)),
	))
}
