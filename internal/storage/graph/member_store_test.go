package graph

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sheikh-saqib/network-ledger/internal/models"
)

func TestMemberStore_SaveSendsSnapshot(t *testing.T) {
	client := NewMemoryClient()
	store := NewMemberStore(client)

	root, err := models.NewRootMember(uuid.New())
	require.NoError(t, err)
	child, err := models.NewChildMember(uuid.New(), root)
	require.NoError(t, err)

	require.NoError(t, store.Save(context.Background(), root))
	require.NoError(t, store.Save(context.Background(), child))

	calls := client.WriteCalls()
	require.Len(t, calls, 2)
	assert.Equal(t, saveMemberQuery, calls[0].Query)
	assert.Nil(t, calls[0].Params["parent_id"])
	assert.Equal(t, []string{}, calls[0].Params["ancestors"])

	assert.Equal(t, root.ID.String(), calls[1].Params["parent_id"])
	assert.Equal(t, []string{root.ID.String()}, calls[1].Params["ancestors"])

	assert.ErrorIs(t, store.Save(context.Background(), models.Member{}), models.ErrInvalidArgument)
}

func TestSaveMemberQuery_OnlyLinksExistingNodes(t *testing.T) {
	// a child saved before its parent must not leave a bare (:Member) behind
	assert.NotContains(t, saveMemberQuery, "MERGE (p:Member")
	assert.Contains(t, saveMemberQuery, "OPTIONAL MATCH (p:Member {id: $parent_id})")
	assert.Contains(t, saveMemberQuery, "MERGE (c)-[:CHILD_OF]->(m)")
}

func TestMemberStore_GetByID(t *testing.T) {
	client := NewMemoryClient()
	store := NewMemberStore(client)

	rootID, parentID, id, childID := uuid.New(), uuid.New(), uuid.New(), uuid.New()
	client.PushResult(Result{Records: []Record{{
		"id":        id.String(),
		"parent_id": parentID.String(),
		"ancestors": []any{rootID.String(), parentID.String()},
		"children":  []any{childID.String()},
	}}})

	member, err := store.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, id, member.ID)
	require.NotNil(t, member.ParentID)
	assert.Equal(t, parentID, *member.ParentID)
	assert.Equal(t, []uuid.UUID{rootID, parentID}, member.Ancestors)
	assert.Equal(t, []uuid.UUID{childID}, member.Children)

	reads := client.ReadCalls()
	require.Len(t, reads, 1)
	assert.Equal(t, id.String(), reads[0].Params["id"])
}

func TestMemberStore_GetByID_RootAndMissing(t *testing.T) {
	client := NewMemoryClient()
	store := NewMemberStore(client)
	id := uuid.New()

	client.PushResult(Result{Records: []Record{{"id": id.String(), "parent_id": nil, "ancestors": nil, "children": nil}}})
	member, err := store.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, member.IsRoot())
	assert.Empty(t, member.Ancestors)

	_, err = store.GetByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, models.ErrNotFound)

	client.PushResult(Result{Records: []Record{{"id": "not-a-uuid"}}})
	_, err = store.GetByID(context.Background(), id)
	assert.Error(t, err)
}

func TestMemberStore_Delete(t *testing.T) {
	client := NewMemoryClient()
	store := NewMemberStore(client)

	client.PushResult(Result{Records: []Record{{"deleted": int64(1)}}})
	assert.NoError(t, store.Delete(context.Background(), uuid.New()))

	client.PushResult(Result{Records: []Record{{"deleted": int64(0)}}})
	assert.ErrorIs(t, store.Delete(context.Background(), uuid.New()), models.ErrNotFound)
}

func TestMemberStore_PropagatesClientErrors(t *testing.T) {
	boom := errors.New("bolt unavailable")
	store := NewMemberStore(NewMemoryClient().WithError(boom))

	_, err := store.GetByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, models.ErrNotFound)
}
