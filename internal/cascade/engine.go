package cascade

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	interfaces "github.com/sheikh-saqib/network-ledger/internal/interfaces"
	"github.com/sheikh-saqib/network-ledger/internal/ledger"
	"github.com/sheikh-saqib/network-ledger/internal/models"
	"github.com/sheikh-saqib/network-ledger/internal/pkg/logger"
)

const (
	defaultMaxAttempts     = 5
	defaultInitialInterval = 20 * time.Millisecond
	defaultMaxInterval     = 500 * time.Millisecond
)

// Dependencies wires an Engine. Members, Ledgers and Log are required.
type Dependencies struct {
	Members  interfaces.MemberRepository
	Ledgers  interfaces.LedgerRepository
	Notifier interfaces.NotificationService
	Tracker  interfaces.ProgressTracker
	Failures FailureSink
	Meter    metric.Meter
	Log      *logger.Logger

	// MaxAttempts bounds reload-and-retry of one step on version conflicts.
	MaxAttempts     uint
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// Engine applies contribution events to the ledgers of a contributor and
// their ancestors. It holds no ledger state between calls: every step loads
// the ledger, mutates it and writes it back.
type Engine struct {
	members  interfaces.MemberRepository
	ledgers  interfaces.LedgerRepository
	notifier interfaces.NotificationService
	tracker  interfaces.ProgressTracker
	failures FailureSink
	metrics  *outcomeMetrics
	log      *logger.Logger
	locks    *memberLocks

	maxAttempts     uint
	initialInterval time.Duration
	maxInterval     time.Duration
}

func New(deps Dependencies) (*Engine, error) {
	if deps.Members == nil || deps.Ledgers == nil {
		return nil, fmt.Errorf("%w: member and ledger repositories are required", models.ErrInvalidArgument)
	}
	if deps.Log == nil {
		return nil, fmt.Errorf("%w: logger is required", models.ErrInvalidArgument)
	}
	meter := deps.Meter
	if meter == nil {
		meter = otel.Meter("github.com/sheikh-saqib/network-ledger/internal/cascade")
	}
	metrics, err := newOutcomeMetrics(meter)
	if err != nil {
		return nil, fmt.Errorf("cascade metrics: %w", err)
	}

	e := &Engine{
		members:         deps.Members,
		ledgers:         deps.Ledgers,
		notifier:        deps.Notifier,
		tracker:         deps.Tracker,
		failures:        deps.Failures,
		metrics:         metrics,
		log:             deps.Log.With("service", "CascadeEngine"),
		locks:           newMemberLocks(),
		maxAttempts:     deps.MaxAttempts,
		initialInterval: deps.InitialInterval,
		maxInterval:     deps.MaxInterval,
	}
	if e.maxAttempts == 0 {
		e.maxAttempts = defaultMaxAttempts
	}
	if e.initialInterval <= 0 {
		e.initialInterval = defaultInitialInterval
	}
	if e.maxInterval <= 0 {
		e.maxInterval = defaultMaxInterval
	}
	return e, nil
}

// errAlreadyApplied short-circuits a step whose marker is already on the ledger.
var errAlreadyApplied = errors.New("step already applied")

// run carries the state of one cascade while its steps execute.
type run struct {
	event          string
	contributionID string
	contributorID  uuid.UUID
	service        models.Service
	trackKey       string
	outcome        Outcome
}

func (e *Engine) newRun(event, contributionID string, contributorID uuid.UUID) *run {
	return &run{
		event:          event,
		contributionID: contributionID,
		contributorID:  contributorID,
		service:        models.ContributionService(contributionID),
		trackKey:       event + "/" + contributionID,
		outcome: Outcome{
			Event:          event,
			ContributionID: contributionID,
			ContributorID:  contributorID,
		},
	}
}

func (r *run) stepKey(step string, memberID uuid.UUID) string {
	return fmt.Sprintf("%s/%s/%s/%s", r.event, r.contributionID, step, memberID)
}

// abort ends the run without writing anything.
func (r *run) abort(err error) Outcome {
	r.outcome.Status = StatusAborted
	r.outcome.Err = err
	return r.outcome
}

// fail ends the run after an error; the status depends on whether any ledger
// was already written.
func (r *run) fail(err error) Outcome {
	r.outcome.Status = StatusFailed
	if r.outcome.Applied > 0 {
		r.outcome.Status = StatusPartial
	}
	r.outcome.Err = err
	return r.outcome
}

// stop ends a run on an error raised before or by the contributor's own
// step: a missing member or ledger aborts, anything else fails.
func (r *run) stop(err error) Outcome {
	if errors.Is(err, models.ErrNotFound) && r.outcome.Applied == 0 {
		return r.abort(err)
	}
	return r.fail(err)
}

func (r *run) done() Outcome {
	r.outcome.Status = StatusApplied
	return r.outcome
}

func (r *run) skip(memberID uuid.UUID) {
	r.outcome.Skipped = append(r.outcome.Skipped, memberID)
}

// applyStep loads memberID's ledger, runs mutate on it, marks the step and
// saves. A version conflict reloads and retries with backoff; any other
// error is returned as is. Replaying a step already marked on the ledger
// is a no-op.
func (e *Engine) applyStep(ctx context.Context, r *run, step string, memberID uuid.UUID, mutate func(*ledger.Ledger) error) error {
	key := r.stepKey(step, memberID)

	mu := e.locks.get(memberID)
	mu.Lock()         // one step per ledger at a time in this process
	defer mu.Unlock() // released once the step is saved or given up

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = e.initialInterval
	b.MaxInterval = e.maxInterval

	attempt := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		l, err := e.ledgers.FindByMemberID(ctx, memberID)
		if err != nil {
			return struct{}{}, backoff.Permanent(err)
		}
		if l.HasApplied(key) {
			return struct{}{}, backoff.Permanent(errAlreadyApplied) // replay, nothing to do
		}
		if err := mutate(l); err != nil {
			return struct{}{}, backoff.Permanent(err)
		}
		l.MarkApplied(key)

		err = e.ledgers.Save(ctx, l)
		if errors.Is(err, models.ErrVersionConflict) {
			e.log.Debug("ledger version conflict, retrying step",
				"member_id", memberID,
				"step", step,
				"attempt", attempt,
			)
			return struct{}{}, err // retried with a fresh load
		}
		if err != nil {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, nil
	}, backoff.WithBackOff(b), backoff.WithMaxTries(e.maxAttempts))

	switch {
	case errors.Is(err, errAlreadyApplied):
		e.log.Debug("cascade step already applied", "step", key)
	case err != nil:
		return fmt.Errorf("%s on ledger %s: %w", step, memberID, err)
	default:
		r.outcome.Applied++
	}

	e.advance(ctx, r, key)
	return nil
}

func (e *Engine) track(ctx context.Context, r *run, payload any) {
	if e.tracker == nil {
		return
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		e.log.Warn("encode cascade record failed", "key", r.trackKey, "error", err)
		return
	}
	err = e.tracker.Start(ctx, interfaces.CascadeRecord{
		Key:            r.trackKey,
		EventName:      r.event,
		ContributionID: r.contributionID,
		Payload:        raw,
	})
	if err != nil {
		e.log.Warn("start cascade record failed", "key", r.trackKey, "error", err)
	}
}

func (e *Engine) advance(ctx context.Context, r *run, step string) {
	if e.tracker == nil {
		return
	}
	if err := e.tracker.Advance(ctx, r.trackKey, step); err != nil {
		e.log.Warn("advance cascade record failed", "key", r.trackKey, "error", err)
	}
}

// settle closes the progress record unless the cascade may succeed on replay.
func (e *Engine) settle(ctx context.Context, r *run, outcome Outcome) {
	if e.tracker == nil {
		return
	}
	if retryable(outcome) {
		return
	}
	if err := e.tracker.Finish(ctx, r.trackKey); err != nil {
		e.log.Warn("finish cascade record failed", "key", r.trackKey, "error", err)
	}
}

// retryable reports whether replaying the same event could change the result:
// only storage trouble and exhausted conflict retries qualify.
func retryable(outcome Outcome) bool {
	switch outcome.Status {
	case StatusFailed, StatusPartial:
		kind := models.ErrorKind(outcome.Err)
		return kind == "unexpected" || kind == "version_conflict"
	default:
		return false
	}
}

// observe is the handler boundary: it logs, counts and routes the outcome,
// and never lets an error reach the publisher.
func (e *Engine) observe(ctx context.Context, outcome Outcome) {
	e.metrics.record(ctx, outcome)

	fields := []interface{}{
		"event", outcome.Event,
		"contribution_id", outcome.ContributionID,
		"contributor_id", outcome.ContributorID,
		"status", outcome.Status,
		"applied", outcome.Applied,
	}
	if len(outcome.Skipped) > 0 {
		fields = append(fields, "skipped", outcome.Skipped)
	}

	switch outcome.Status {
	case StatusApplied:
		e.log.Info("contribution cascade applied", fields...)
		return
	case StatusAborted:
		e.log.Error("contribution cascade aborted", append(fields, "error", outcome.Err)...)
	default:
		e.log.Error("contribution cascade failed", append(fields, "error_kind", models.ErrorKind(outcome.Err), "error", outcome.Err)...)
	}

	if e.failures == nil {
		return
	}
	if err := e.failures.Route(ctx, outcome); err != nil {
		e.log.Error("route failed cascade", "contribution_id", outcome.ContributionID, "error", err)
	}
}
