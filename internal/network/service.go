package network

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/sheikh-saqib/network-ledger/internal/events/bus"
	interfaces "github.com/sheikh-saqib/network-ledger/internal/interfaces"
	"github.com/sheikh-saqib/network-ledger/internal/ledger"
	"github.com/sheikh-saqib/network-ledger/internal/models"
	"github.com/sheikh-saqib/network-ledger/internal/models/events"
	"github.com/sheikh-saqib/network-ledger/internal/pkg/logger"
)

// Service grows the member network and opens a ledger for every member that
// joins it. The tree is append-only: a member keeps the parent it joined under.
type Service struct {
	members  interfaces.MemberRepository
	ledgers  interfaces.LedgerRepository
	notifier interfaces.NotificationService
	log      *logger.Logger
}

func NewService(members interfaces.MemberRepository, ledgers interfaces.LedgerRepository, notifier interfaces.NotificationService, log *logger.Logger) *Service {
	return &Service{
		members:  members,
		ledgers:  ledgers,
		notifier: notifier,
		log:      log.With("service", "NetworkService"),
	}
}

// RegisterRoot adds memberID as a root of the network. Registering a member
// that already exists only makes sure its ledger is open.
func (s *Service) RegisterRoot(ctx context.Context, memberID uuid.UUID) (models.Member, error) {
	existing, err := s.members.GetByID(ctx, memberID)
	switch {
	case err == nil:
		return existing, s.ensureLedger(ctx, memberID)
	case !errors.Is(err, models.ErrNotFound):
		return models.Member{}, fmt.Errorf("load member %s: %w", memberID, err)
	}

	root, err := models.NewRootMember(memberID)
	if err != nil {
		return models.Member{}, err
	}
	if err := s.members.Save(ctx, root); err != nil {
		return models.Member{}, fmt.Errorf("save member %s: %w", memberID, err)
	}
	if err := s.ensureLedger(ctx, memberID); err != nil {
		return models.Member{}, err
	}

	s.log.Info("root member registered", "member_id", memberID)
	return root, nil
}

// RegisterInvite places inviteeID directly below inviterID, records the new
// child on the inviter and opens the invitee's ledger.
func (s *Service) RegisterInvite(ctx context.Context, inviterID, inviteeID uuid.UUID) (models.Member, error) {
	parent, err := s.members.GetByID(ctx, inviterID)
	if err != nil {
		return models.Member{}, fmt.Errorf("load inviter %s: %w", inviterID, err)
	}

	existing, err := s.members.GetByID(ctx, inviteeID)
	switch {
	case err == nil:
		if p, ok := existing.Parent(); !ok || p != inviterID {
			return models.Member{}, fmt.Errorf("%w: member %s already joined the network elsewhere", models.ErrInvalidArgument, inviteeID)
		}
		// an earlier attempt may have saved the invitee but not the inviter
		if err := s.linkChild(ctx, &parent, inviteeID); err != nil {
			return models.Member{}, err
		}
		return existing, s.ensureLedger(ctx, inviteeID)
	case !errors.Is(err, models.ErrNotFound):
		return models.Member{}, fmt.Errorf("load invitee %s: %w", inviteeID, err)
	}

	child, err := models.NewChildMember(inviteeID, parent)
	if err != nil {
		return models.Member{}, err
	}
	if err := s.members.Save(ctx, child); err != nil {
		return models.Member{}, fmt.Errorf("save member %s: %w", inviteeID, err)
	}
	if err := s.linkChild(ctx, &parent, inviteeID); err != nil {
		return models.Member{}, err
	}
	if err := s.ensureLedger(ctx, inviteeID); err != nil {
		return models.Member{}, err
	}

	if s.notifier != nil {
		if err := s.notifier.NotifyNewConnectionAdded(ctx, parent); err != nil {
			s.log.Warn("new connection notification failed", "member_id", inviterID, "error", err)
		}
	}

	s.log.Info("member joined network", "member_id", inviteeID, "parent_id", inviterID, "depth", len(child.Ancestors))
	return child, nil
}

// linkChild records childID on parent and saves parent when it changed.
func (s *Service) linkChild(ctx context.Context, parent *models.Member, childID uuid.UUID) error {
	if !parent.AddChild(childID) {
		return nil // already linked
	}
	if err := s.members.Save(ctx, *parent); err != nil {
		return fmt.Errorf("save inviter %s: %w", parent.ID, err)
	}
	return nil
}

// Remove deletes a member node. It does not touch ledgers or other members.
func (s *Service) Remove(ctx context.Context, memberID uuid.UUID) error {
	if err := s.members.Delete(ctx, memberID); err != nil {
		return fmt.Errorf("delete member %s: %w", memberID, err)
	}
	s.log.Info("member removed", "member_id", memberID)
	return nil
}

func (s *Service) ensureLedger(ctx context.Context, memberID uuid.UUID) error {
	_, err := s.ledgers.FindByMemberID(ctx, memberID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return fmt.Errorf("load ledger %s: %w", memberID, err)
	}

	l, err := ledger.New(memberID)
	if err != nil {
		return err
	}
	err = s.ledgers.Save(ctx, l)
	if errors.Is(err, models.ErrVersionConflict) {
		// opened concurrently
		return nil
	}
	if err != nil {
		return fmt.Errorf("open ledger %s: %w", memberID, err)
	}
	return nil
}

// Register subscribes the service to network events on b. Failures are
// logged and not reported to the publisher.
func (s *Service) Register(b *bus.Bus) error {
	if err := b.Subscribe(events.NameAccountRegistered, s.onAccountRegistered); err != nil {
		return err
	}
	return b.Subscribe(events.NameInvitationAccepted, s.onInvitationAccepted)
}

func (s *Service) onAccountRegistered(ctx context.Context, event events.Event) error {
	evt, ok := event.(events.AccountRegistered)
	if !ok {
		return nil
	}
	if _, err := s.RegisterRoot(ctx, evt.AccountID); err != nil {
		s.log.Error("register root member failed", "member_id", evt.AccountID, "error", err)
	}
	return nil
}

func (s *Service) onInvitationAccepted(ctx context.Context, event events.Event) error {
	evt, ok := event.(events.InvitationAccepted)
	if !ok {
		return nil
	}
	if _, err := s.RegisterInvite(ctx, evt.InviterID, evt.InviteeID); err != nil {
		s.log.Error("register invited member failed",
			"member_id", evt.InviteeID,
			"parent_id", evt.InviterID,
			"error", err,
		)
	}
	return nil
}
