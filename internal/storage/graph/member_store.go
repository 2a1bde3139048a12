package graph

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	interfaces "github.com/sheikh-saqib/network-ledger/internal/interfaces"
	"github.com/sheikh-saqib/network-ledger/internal/models"
)

// Members are (:Member) nodes linked child to parent by [:CHILD_OF]. The
// ancestor snapshot and child list are kept as node properties so one lookup
// rebuilds a models.Member. Saving a member never creates its parent node; the
// [:CHILD_OF] edge is drawn by whichever of the pair is saved second.
const (
	getMemberQuery = `MATCH (m:Member {id: $id})
RETURN m.id AS id, m.parent_id AS parent_id, m.ancestors AS ancestors, m.children AS children`

	saveMemberQuery = `MERGE (m:Member {id: $id})
SET m.parent_id = $parent_id, m.ancestors = $ancestors, m.children = $children
WITH m
OPTIONAL MATCH (p:Member {id: $parent_id})
FOREACH (_ IN CASE WHEN p IS NULL THEN [] ELSE [1] END |
  MERGE (m)-[:CHILD_OF]->(p))
WITH DISTINCT m
OPTIONAL MATCH (c:Member {parent_id: $id})
FOREACH (_ IN CASE WHEN c IS NULL THEN [] ELSE [1] END |
  MERGE (c)-[:CHILD_OF]->(m))`

	deleteMemberQuery = `MATCH (m:Member {id: $id})
DETACH DELETE m
RETURN count(m) AS deleted`
)

// MemberStore is a MemberRepository backed by a graph Client.
type MemberStore struct {
	client Client
}

func NewMemberStore(client Client) *MemberStore {
	return &MemberStore{client: client}
}

func (s *MemberStore) GetByID(ctx context.Context, memberID uuid.UUID) (models.Member, error) {
	res, err := s.client.ExecuteRead(ctx, getMemberQuery, map[string]any{"id": memberID.String()})
	if err != nil {
		return models.Member{}, fmt.Errorf("get member %s: %w", memberID, err)
	}
	if len(res.Records) == 0 {
		return models.Member{}, fmt.Errorf("member %s: %w", memberID, models.ErrNotFound)
	}
	return decodeMember(res.Records[0])
}

func (s *MemberStore) Save(ctx context.Context, member models.Member) error {
	if member.ID == uuid.Nil {
		return fmt.Errorf("%w: member id is required", models.ErrInvalidArgument)
	}

	var parent any
	if member.ParentID != nil {
		parent = member.ParentID.String()
	}
	params := map[string]any{
		"id":        member.ID.String(),
		"parent_id": parent,
		"ancestors": idStrings(member.Ancestors),
		"children":  idStrings(member.Children),
	}
	if _, err := s.client.ExecuteWrite(ctx, saveMemberQuery, params); err != nil {
		return fmt.Errorf("save member %s: %w", member.ID, err)
	}
	return nil
}

func (s *MemberStore) Delete(ctx context.Context, memberID uuid.UUID) error {
	res, err := s.client.ExecuteWrite(ctx, deleteMemberQuery, map[string]any{"id": memberID.String()})
	if err != nil {
		return fmt.Errorf("delete member %s: %w", memberID, err)
	}
	if len(res.Records) == 0 {
		return fmt.Errorf("member %s: %w", memberID, models.ErrNotFound)
	}
	if n, _ := res.Records[0]["deleted"].(int64); n == 0 {
		return fmt.Errorf("member %s: %w", memberID, models.ErrNotFound)
	}
	return nil
}

func decodeMember(rec Record) (models.Member, error) {
	id, err := parseID(rec["id"])
	if err != nil {
		return models.Member{}, fmt.Errorf("member id: %w", err)
	}
	member := models.Member{ID: id}

	if raw := rec["parent_id"]; raw != nil {
		parent, err := parseID(raw)
		if err != nil {
			return models.Member{}, fmt.Errorf("member %s parent: %w", id, err)
		}
		member.ParentID = &parent
	}
	if member.Ancestors, err = parseIDs(rec["ancestors"]); err != nil {
		return models.Member{}, fmt.Errorf("member %s ancestors: %w", id, err)
	}
	if member.Children, err = parseIDs(rec["children"]); err != nil {
		return models.Member{}, fmt.Errorf("member %s children: %w", id, err)
	}
	return member, nil
}

func parseID(v any) (uuid.UUID, error) {
	s, ok := v.(string)
	if !ok {
		return uuid.Nil, fmt.Errorf("%w: expected string id, got %T", models.ErrInvalidArgument, v)
	}
	return uuid.Parse(s)
}

// parseIDs accepts the []any the driver returns for list properties.
func parseIDs(v any) ([]uuid.UUID, error) {
	var items []any
	switch list := v.(type) {
	case nil:
		return []uuid.UUID{}, nil
	case []any:
		items = list
	case []string:
		for _, s := range list {
			items = append(items, s)
		}
	default:
		return nil, fmt.Errorf("%w: expected list, got %T", models.ErrInvalidArgument, v)
	}

	ids := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		id, err := parseID(item)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func idStrings(ids []uuid.UUID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.String())
	}
	return out
}

var _ interfaces.MemberRepository = (*MemberStore)(nil)
