package models

import (
	"fmt"
	"slices"

	"github.com/google/uuid"
)

// Member is a node of the referral tree. Ancestors is a snapshot taken when
// the member joined (root first, direct parent last) and is never recomputed.
type Member struct {
	ID        uuid.UUID
	ParentID  *uuid.UUID
	Ancestors []uuid.UUID
	Children  []uuid.UUID
}

func NewRootMember(id uuid.UUID) (Member, error) {
	if id == uuid.Nil {
		return Member{}, fmt.Errorf("%w: member id is required", ErrInvalidArgument)
	}
	return Member{ID: id, Ancestors: []uuid.UUID{}, Children: []uuid.UUID{}}, nil
}

// NewChildMember creates a member invited by parent. The caller is expected to
// record the new child on the parent with AddChild and persist both.
func NewChildMember(id uuid.UUID, parent Member) (Member, error) {
	if id == uuid.Nil || parent.ID == uuid.Nil {
		return Member{}, fmt.Errorf("%w: member and parent ids are required", ErrInvalidArgument)
	}
	if id == parent.ID || slices.Contains(parent.Ancestors, id) {
		return Member{}, fmt.Errorf("%w: member %s cannot join below itself", ErrInvalidArgument, id)
	}

	ancestors := make([]uuid.UUID, 0, len(parent.Ancestors)+1)
	ancestors = append(ancestors, parent.Ancestors...)
	ancestors = append(ancestors, parent.ID)

	parentID := parent.ID
	return Member{
		ID:        id,
		ParentID:  &parentID,
		Ancestors: ancestors,
		Children:  []uuid.UUID{},
	}, nil
}

func (m Member) IsRoot() bool { return m.ParentID == nil }

// Parent returns the direct parent id, if any.
func (m Member) Parent() (uuid.UUID, bool) {
	if m.ParentID == nil {
		return uuid.Nil, false
	}
	return *m.ParentID, true
}

// AddChild appends child to the member's children. It reports false when the
// child was already recorded.
func (m *Member) AddChild(child uuid.UUID) bool {
	if slices.Contains(m.Children, child) {
		return false
	}
	m.Children = append(m.Children, child)
	return true
}

// Clone returns a deep copy so stores never share slices with callers.
func (m Member) Clone() Member {
	out := Member{
		ID:        m.ID,
		Ancestors: slices.Clone(m.Ancestors),
		Children:  slices.Clone(m.Children),
	}
	if m.ParentID != nil {
		parent := *m.ParentID
		out.ParentID = &parent
	}
	if out.Ancestors == nil {
		out.Ancestors = []uuid.UUID{}
	}
	if out.Children == nil {
		out.Children = []uuid.UUID{}
	}
	return out
}
