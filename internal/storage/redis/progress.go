package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sort"
	"time"

	goredis "github.com/redis/go-redis/v9"

	interfaces "github.com/sheikh-saqib/network-ledger/internal/interfaces"
)

const defaultHashKey = "network-ledger:cascades"

// maxWatchRetries bounds optimistic retries of Advance under contention.
const maxWatchRetries = 10

// Connect opens a client for addr and pings it.
func Connect(ctx context.Context, addr, password string, db int) (*goredis.Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		Password:    password,
		DB:          db,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

// ProgressTracker stores cascade records as JSON values of a single hash,
// one field per cascade key, so they survive a restart of the process.
type ProgressTracker struct {
	rdb *goredis.Client
	key string
}

func NewProgressTracker(rdb *goredis.Client, hashKey string) *ProgressTracker {
	if hashKey == "" {
		hashKey = defaultHashKey
	}
	return &ProgressTracker{rdb: rdb, key: hashKey}
}

func (p *ProgressTracker) Start(ctx context.Context, record interfaces.CascadeRecord) error {
	now := time.Now().UTC()
	if record.StartedAt.IsZero() {
		record.StartedAt = now
	}
	record.UpdatedAt = now

	raw, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode cascade record %s: %w", record.Key, err)
	}
	if err := p.rdb.HSetNX(ctx, p.key, record.Key, raw).Err(); err != nil {
		return fmt.Errorf("start cascade record %s: %w", record.Key, err)
	}
	return nil
}

func (p *ProgressTracker) Advance(ctx context.Context, key, step string) error {
	update := func(tx *goredis.Tx) error {
		raw, err := tx.HGet(ctx, p.key, key).Bytes()
		if errors.Is(err, goredis.Nil) {
			return nil
		}
		if err != nil {
			return err
		}

		var record interfaces.CascadeRecord
		if err := json.Unmarshal(raw, &record); err != nil {
			return fmt.Errorf("decode cascade record %s: %w", key, err)
		}
		if !slices.Contains(record.CompletedSteps, step) {
			record.CompletedSteps = append(record.CompletedSteps, step)
		}
		record.UpdatedAt = time.Now().UTC()

		out, err := json.Marshal(record)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.HSet(ctx, p.key, key, out)
			return nil
		})
		return err
	}

	for i := 0; i < maxWatchRetries; i++ {
		err := p.rdb.Watch(ctx, update, p.key)
		if errors.Is(err, goredis.TxFailedErr) {
			continue
		}
		if err != nil {
			return fmt.Errorf("advance cascade record %s: %w", key, err)
		}
		return nil
	}
	return fmt.Errorf("advance cascade record %s: %w", key, goredis.TxFailedErr)
}

func (p *ProgressTracker) Finish(ctx context.Context, key string) error {
	if err := p.rdb.HDel(ctx, p.key, key).Err(); err != nil {
		return fmt.Errorf("finish cascade record %s: %w", key, err)
	}
	return nil
}

// Incomplete returns every stored record, oldest first. Values that no longer
// decode are skipped.
func (p *ProgressTracker) Incomplete(ctx context.Context) ([]interfaces.CascadeRecord, error) {
	values, err := p.rdb.HGetAll(ctx, p.key).Result()
	if err != nil {
		return nil, fmt.Errorf("list cascade records: %w", err)
	}

	records := make([]interfaces.CascadeRecord, 0, len(values))
	for _, raw := range values {
		var record interfaces.CascadeRecord
		if err := json.Unmarshal([]byte(raw), &record); err != nil {
			continue
		}
		records = append(records, record)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].StartedAt.Before(records[j].StartedAt)
	})
	return records, nil
}

var _ interfaces.ProgressTracker = (*ProgressTracker)(nil)
