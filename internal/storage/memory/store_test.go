package memory

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	interfaces "github.com/sheikh-saqib/network-ledger/internal/interfaces"
	"github.com/sheikh-saqib/network-ledger/internal/ledger"
	"github.com/sheikh-saqib/network-ledger/internal/models"
)

func TestLedgerStore_SaveBumpsVersion(t *testing.T) {
	store := NewLedgerStore()
	ctx := context.Background()
	memberID := uuid.New()

	_, err := store.FindByMemberID(ctx, memberID)
	assert.ErrorIs(t, err, models.ErrNotFound)

	l, err := ledger.New(memberID)
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, l))
	assert.Equal(t, int64(1), l.Version())

	loaded, err := store.FindByMemberID(ctx, memberID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), loaded.Version())
	assert.Equal(t, 1, store.Len())
}

func TestLedgerStore_StaleSaveConflicts(t *testing.T) {
	store := NewLedgerStore()
	ctx := context.Background()
	memberID := uuid.New()

	l, err := ledger.New(memberID)
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, l))

	first, err := store.FindByMemberID(ctx, memberID)
	require.NoError(t, err)
	second, err := store.FindByMemberID(ctx, memberID)
	require.NoError(t, err)

	due, err := models.MemberAmount(5)
	require.NoError(t, err)
	require.NoError(t, first.CreditDueAmount(due, models.ContributionService("c-1")))
	require.NoError(t, store.Save(ctx, first))

	require.NoError(t, second.CreditDueAmount(due, models.ContributionService("c-2")))
	assert.ErrorIs(t, store.Save(ctx, second), models.ErrVersionConflict)

	current, err := store.FindByMemberID(ctx, memberID)
	require.NoError(t, err)
	assert.Equal(t, int64(5), current.DueAmount().Value())

	fresh, err := ledger.New(memberID)
	require.NoError(t, err)
	assert.ErrorIs(t, store.Save(ctx, fresh), models.ErrVersionConflict)
	assert.ErrorIs(t, store.Save(ctx, nil), models.ErrInvalidArgument)
}

func TestLedgerStore_CallersDoNotShareState(t *testing.T) {
	store := NewLedgerStore()
	ctx := context.Background()
	memberID := uuid.New()

	l, err := ledger.New(memberID)
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, l))

	due, err := models.MemberAmount(9)
	require.NoError(t, err)
	require.NoError(t, l.CreditDueAmount(due, models.ContributionService("c-1")))

	loaded, err := store.FindByMemberID(ctx, memberID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), loaded.DueAmount().Value(), "unsaved changes are not visible")
}

func TestMemberStore(t *testing.T) {
	store := NewMemberStore()
	ctx := context.Background()

	root, err := models.NewRootMember(uuid.New())
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, root))

	loaded, err := store.GetByID(ctx, root.ID)
	require.NoError(t, err)
	loaded.AddChild(uuid.New())

	again, err := store.GetByID(ctx, root.ID)
	require.NoError(t, err)
	assert.Empty(t, again.Children)

	assert.ErrorIs(t, store.Save(ctx, models.Member{}), models.ErrInvalidArgument)
	require.NoError(t, store.Delete(ctx, root.ID))
	assert.ErrorIs(t, store.Delete(ctx, root.ID), models.ErrNotFound)
	_, err = store.GetByID(ctx, root.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestProgressTracker(t *testing.T) {
	tracker := NewProgressTracker()
	ctx := context.Background()

	require.NoError(t, tracker.Start(ctx, interfaces.CascadeRecord{Key: "k", EventName: "contribution.made"}))
	require.NoError(t, tracker.Advance(ctx, "k", "s1"))
	require.NoError(t, tracker.Advance(ctx, "k", "s1"))
	require.NoError(t, tracker.Start(ctx, interfaces.CascadeRecord{Key: "k"}))
	require.NoError(t, tracker.Advance(ctx, "unknown", "s1"))

	records, err := tracker.Incomplete(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "contribution.made", records[0].EventName)
	assert.Equal(t, []string{"s1"}, records[0].CompletedSteps)

	require.NoError(t, tracker.Finish(ctx, "k"))
	records, err = tracker.Incomplete(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)
}
