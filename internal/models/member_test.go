package models

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRootMember(t *testing.T) {
	id := uuid.New()
	root, err := NewRootMember(id)
	require.NoError(t, err)

	assert.True(t, root.IsRoot())
	assert.Empty(t, root.Ancestors)
	_, ok := root.Parent()
	assert.False(t, ok)

	_, err = NewRootMember(uuid.Nil)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestNewChildMember_SnapshotsAncestors(t *testing.T) {
	root, err := NewRootMember(uuid.New())
	require.NoError(t, err)
	parent, err := NewChildMember(uuid.New(), root)
	require.NoError(t, err)
	child, err := NewChildMember(uuid.New(), parent)
	require.NoError(t, err)

	assert.Equal(t, []uuid.UUID{root.ID}, parent.Ancestors)
	assert.Equal(t, []uuid.UUID{root.ID, parent.ID}, child.Ancestors)

	got, ok := child.Parent()
	require.True(t, ok)
	assert.Equal(t, parent.ID, got)

	// later changes to the parent do not leak into the snapshot
	parent.Ancestors[0] = uuid.New()
	assert.Equal(t, root.ID, child.Ancestors[0])
}

func TestNewChildMember_RejectsCycles(t *testing.T) {
	root, err := NewRootMember(uuid.New())
	require.NoError(t, err)
	parent, err := NewChildMember(uuid.New(), root)
	require.NoError(t, err)

	_, err = NewChildMember(root.ID, parent)
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = NewChildMember(parent.ID, parent)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestMember_AddChildIsIdempotent(t *testing.T) {
	root, err := NewRootMember(uuid.New())
	require.NoError(t, err)
	child := uuid.New()

	assert.True(t, root.AddChild(child))
	assert.False(t, root.AddChild(child))
	assert.Equal(t, []uuid.UUID{child}, root.Children)
}

func TestMember_CloneIsDeep(t *testing.T) {
	root, err := NewRootMember(uuid.New())
	require.NoError(t, err)
	member, err := NewChildMember(uuid.New(), root)
	require.NoError(t, err)

	clone := member.Clone()
	clone.Ancestors[0] = uuid.New()
	*clone.ParentID = uuid.New()

	assert.Equal(t, root.ID, member.Ancestors[0])
	assert.Equal(t, root.ID, *member.ParentID)
}
