package memory

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	interfaces "github.com/sheikh-saqib/network-ledger/internal/interfaces"
)

// ProgressTracker keeps cascade records in a map. Records are lost on restart,
// so it only suits tests and single-process development.
type ProgressTracker struct {
	mu      sync.Mutex
	records map[string]interfaces.CascadeRecord
}

func NewProgressTracker() *ProgressTracker {
	return &ProgressTracker{records: make(map[string]interfaces.CascadeRecord)}
}

func (p *ProgressTracker) Start(ctx context.Context, record interfaces.CascadeRecord) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.records[record.Key]; exists {
		return nil // a replay keeps the steps already recorded
	}
	now := time.Now().UTC()
	if record.StartedAt.IsZero() {
		record.StartedAt = now
	}
	record.UpdatedAt = now
	record.CompletedSteps = slices.Clone(record.CompletedSteps)
	p.records[record.Key] = record
	return nil
}

func (p *ProgressTracker) Advance(ctx context.Context, key, step string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	record, ok := p.records[key]
	if !ok {
		return nil // already finished
	}
	if !slices.Contains(record.CompletedSteps, step) {
		record.CompletedSteps = append(slices.Clone(record.CompletedSteps), step)
	}
	record.UpdatedAt = time.Now().UTC()
	p.records[key] = record
	return nil
}

func (p *ProgressTracker) Finish(ctx context.Context, key string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.records, key)
	return nil
}

// Incomplete returns the tracked records, oldest first.
func (p *ProgressTracker) Incomplete(ctx context.Context) ([]interfaces.CascadeRecord, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]interfaces.CascadeRecord, 0, len(p.records))
	for _, record := range p.records {
		record.CompletedSteps = slices.Clone(record.CompletedSteps) // copy so callers can't modify internal state
		out = append(out, record)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return out, nil
}

var _ interfaces.ProgressTracker = (*ProgressTracker)(nil)
