package redis

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	interfaces "github.com/sheikh-saqib/network-ledger/internal/interfaces"
)

func newTracker(t *testing.T) (*ProgressTracker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewProgressTracker(rdb, "test:cascades"), mr
}

func TestConnect(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb, err := Connect(context.Background(), mr.Addr(), "", 0)
	require.NoError(t, err)
	require.NoError(t, rdb.Close())

	mr.Close()
	_, err = Connect(context.Background(), mr.Addr(), "", 0)
	assert.Error(t, err)
}

func TestProgressTracker_Lifecycle(t *testing.T) {
	tracker, mr := newTracker(t)
	ctx := context.Background()

	record := interfaces.CascadeRecord{
		Key:            "contribution.made/c-1",
		EventName:      "contribution.made",
		ContributionID: "c-1",
		Payload:        json.RawMessage(`{"contribution_id":"c-1"}`),
	}
	require.NoError(t, tracker.Start(ctx, record))
	require.NoError(t, tracker.Advance(ctx, record.Key, "step-1"))
	require.NoError(t, tracker.Advance(ctx, record.Key, "step-1"))
	require.NoError(t, tracker.Advance(ctx, record.Key, "step-2"))

	// restarting keeps progress
	require.NoError(t, tracker.Start(ctx, record))

	records, err := tracker.Incomplete(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, []string{"step-1", "step-2"}, records[0].CompletedSteps)
	assert.JSONEq(t, `{"contribution_id":"c-1"}`, string(records[0].Payload))
	assert.True(t, mr.Exists("test:cascades"))

	require.NoError(t, tracker.Finish(ctx, record.Key))
	records, err = tracker.Incomplete(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestProgressTracker_AdvanceUnknownKeyIsNoop(t *testing.T) {
	tracker, _ := newTracker(t)
	require.NoError(t, tracker.Advance(context.Background(), "missing", "step"))

	records, err := tracker.Incomplete(context.Background())
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestProgressTracker_IncompleteOrdersByStart(t *testing.T) {
	tracker, mr := newTracker(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, tracker.Start(ctx, interfaces.CascadeRecord{Key: "b", StartedAt: base.Add(time.Minute)}))
	require.NoError(t, tracker.Start(ctx, interfaces.CascadeRecord{Key: "a", StartedAt: base}))
	mr.HSet("test:cascades", "garbage", "{not json")

	records, err := tracker.Incomplete(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "a", records[0].Key)
	assert.Equal(t, "b", records[1].Key)
}
