package cascade

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sheikh-saqib/network-ledger/internal/events/bus"
	"github.com/sheikh-saqib/network-ledger/internal/models/events"
)

// Register subscribes the three contribution handlers on b. The callbacks run
// synchronously on the publishing goroutine and always return nil: outcomes
// are logged, counted and routed to the failure sink instead.
func (e *Engine) Register(b *bus.Bus) error {
	subscriptions := []struct {
		name    string
		handler bus.Handler
	}{
		{events.NameContributionMade, e.onEvent},
		{events.NameContributionPaid, e.onEvent},
		{events.NameContributionConfirmed, e.onEvent},
	}
	for _, sub := range subscriptions {
		if err := b.Subscribe(sub.name, sub.handler); err != nil {
			return fmt.Errorf("subscribe %s: %w", sub.name, err)
		}
	}
	return nil
}

func (e *Engine) onEvent(ctx context.Context, event events.Event) error {
	outcome, ok := e.dispatch(ctx, event)
	if !ok {
		e.log.Warn("unsupported event for cascade", "event", event.EventName())
		return nil
	}
	e.observe(ctx, outcome)
	return nil
}

// Handle runs the handler matching event and reports the outcome through the
// same logging, metric and failure path as bus deliveries.
func (e *Engine) Handle(ctx context.Context, event events.Event) (Outcome, bool) {
	outcome, ok := e.dispatch(ctx, event)
	if ok {
		e.observe(ctx, outcome)
	}
	return outcome, ok
}

func (e *Engine) dispatch(ctx context.Context, event events.Event) (Outcome, bool) {
	switch evt := event.(type) {
	case events.ContributionMade:
		return e.ContributionMade(ctx, evt), true
	case *events.ContributionMade:
		return e.ContributionMade(ctx, *evt), true
	case events.ContributionPaid:
		return e.ContributionPaid(ctx, evt), true
	case *events.ContributionPaid:
		return e.ContributionPaid(ctx, *evt), true
	case events.ContributionConfirmed:
		return e.ContributionConfirmed(ctx, evt), true
	case *events.ContributionConfirmed:
		return e.ContributionConfirmed(ctx, *evt), true
	default:
		return Outcome{}, false
	}
}

// ResumeIncomplete replays every cascade still held by the progress tracker,
// oldest first. Steps already applied are skipped by their ledger markers, so
// only the missing part of each cascade is written.
func (e *Engine) ResumeIncomplete(ctx context.Context) ([]Outcome, error) {
	if e.tracker == nil {
		return nil, nil
	}
	records, err := e.tracker.Incomplete(ctx)
	if err != nil {
		return nil, fmt.Errorf("list incomplete cascades: %w", err)
	}

	outcomes := make([]Outcome, 0, len(records))
	for _, record := range records {
		event, err := decodeRecord(record.EventName, record.Payload)
		if err != nil {
			e.log.Error("cannot replay cascade record", "key", record.Key, "error", err)
			continue
		}
		e.log.Info("resuming cascade", "key", record.Key, "completed_steps", len(record.CompletedSteps))
		outcome, _ := e.Handle(ctx, event)
		outcomes = append(outcomes, outcome)
	}
	return outcomes, nil
}

func decodeRecord(name string, payload json.RawMessage) (events.Event, error) {
	switch name {
	case events.NameContributionMade:
		var evt events.ContributionMade
		err := json.Unmarshal(payload, &evt)
		return evt, err
	case events.NameContributionPaid:
		var evt events.ContributionPaid
		err := json.Unmarshal(payload, &evt)
		return evt, err
	case events.NameContributionConfirmed:
		var evt events.ContributionConfirmed
		err := json.Unmarshal(payload, &evt)
		return evt, err
	default:
		return nil, fmt.Errorf("unknown cascade event %q", name)
	}
}
