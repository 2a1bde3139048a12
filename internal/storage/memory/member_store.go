package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	interfaces "github.com/sheikh-saqib/network-ledger/internal/interfaces"
	"github.com/sheikh-saqib/network-ledger/internal/models"
)

// MemberStore is an in-memory MemberRepository.
type MemberStore struct {
	mu      sync.Mutex                  // protects members from concurrent access
	members map[uuid.UUID]models.Member // members by id
}

func NewMemberStore() *MemberStore {
	return &MemberStore{members: make(map[uuid.UUID]models.Member)}
}

func (m *MemberStore) GetByID(ctx context.Context, memberID uuid.UUID) (models.Member, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	member, ok := m.members[memberID]
	if !ok {
		return models.Member{}, fmt.Errorf("member %s: %w", memberID, models.ErrNotFound)
	}
	return member.Clone(), nil // clone so callers cannot edit the stored slices
}

func (m *MemberStore) Save(ctx context.Context, member models.Member) error {
	if member.ID == uuid.Nil {
		return fmt.Errorf("%w: member id is required", models.ErrInvalidArgument)
	}

	m.mu.Lock()         // lock the mutex to prevent concurrent writes
	defer m.mu.Unlock() // unlock automatically when the function exits
	m.members[member.ID] = member.Clone()
	return nil
}

func (m *MemberStore) Delete(ctx context.Context, memberID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.members[memberID]; !ok {
		return fmt.Errorf("member %s: %w", memberID, models.ErrNotFound)
	}
	delete(m.members, memberID)
	return nil
}

var _ interfaces.MemberRepository = (*MemberStore)(nil)
