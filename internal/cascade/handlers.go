package cascade

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	interfaces "github.com/sheikh-saqib/network-ledger/internal/interfaces"
	"github.com/sheikh-saqib/network-ledger/internal/ledger"
	"github.com/sheikh-saqib/network-ledger/internal/models"
	"github.com/sheikh-saqib/network-ledger/internal/models/events"
)

const (
	stepContributorCredit = "contributor.credit"
	stepContributorDebit  = "contributor.debit"
	stepAncestorCredit    = "ancestor.credit_network"
	stepAncestorDebit     = "ancestor.debit_network"
	stepParentReceive     = "parent.receive"
	stepParentCreditDue   = "parent.credit_due"
)

// ContributionMade credits the contributor's due and network due amounts and
// then credits the network due amount of every ancestor, root first.
// Ancestors without a ledger are skipped.
func (e *Engine) ContributionMade(ctx context.Context, evt events.ContributionMade) Outcome {
	r := e.newRun(evt.EventName(), evt.ContributionID, evt.ContributorID)

	due, network, err := r.amounts(evt.Amount)
	if err != nil {
		return r.fail(err)
	}
	member, err := e.contributor(ctx, evt.ContributorID)
	if err != nil {
		return r.stop(err)
	}

	e.track(ctx, r, evt)
	outcome := e.made(ctx, r, member, due, network)
	e.settle(ctx, r, outcome)

	if outcome.Changed() { // replays stay silent
		if parentID, ok := member.Parent(); ok {
			e.notify(ctx, "contribution_to_pay", r, func(n interfaces.NotificationService) error {
				return n.NotifyContributionToPay(ctx, notice(evt.ContributionID, member, parentID, evt.Amount))
			})
		}
	}
	return outcome
}

func (e *Engine) made(ctx context.Context, r *run, member models.Member, due, network models.Amount) Outcome {
	err := e.applyStep(ctx, r, stepContributorCredit, member.ID, func(l *ledger.Ledger) error {
		if err := l.CreditDueAmount(due, r.service); err != nil {
			return err
		}
		return l.CreditNetworkAmount(network, r.service)
	})
	if err != nil {
		return r.stop(err)
	}

	for _, ancestorID := range member.Ancestors {
		err := e.applyStep(ctx, r, stepAncestorCredit, ancestorID, func(l *ledger.Ledger) error {
			return l.CreditNetworkAmount(network, r.service)
		})
		if errors.Is(err, models.ErrNotFound) {
			e.log.Warn("ancestor ledger missing, skipping", "ancestor_id", ancestorID, "contribution_id", r.contributionID)
			r.skip(ancestorID)
			continue
		}
		if err != nil {
			return r.fail(err)
		}
	}
	return r.done()
}

// ContributionPaid settles one hop: the contributor no longer owes the amount
// and the direct parent has received it from its network and now owes it
// further up. Nothing beyond the parent is touched.
func (e *Engine) ContributionPaid(ctx context.Context, evt events.ContributionPaid) Outcome {
	r := e.newRun(evt.EventName(), evt.ContributionID, evt.ContributorID)

	due, network, err := r.amounts(evt.Amount)
	if err != nil {
		return r.fail(err)
	}
	member, err := e.contributor(ctx, evt.ContributorID)
	if err != nil {
		return r.stop(err)
	}
	if _, err := e.ledgers.FindByMemberID(ctx, member.ID); err != nil {
		return r.stop(err)
	}
	parentID, ok := member.Parent()
	if !ok {
		return r.abort(fmt.Errorf("member %s has no parent to pay: %w", member.ID, models.ErrNotFound))
	}
	if _, err := e.ledgers.FindByMemberID(ctx, parentID); err != nil {
		return r.stop(err)
	}

	e.track(ctx, r, evt)
	outcome := e.paid(ctx, r, member.ID, parentID, due, network)
	e.settle(ctx, r, outcome)

	if outcome.Changed() {
		e.notify(ctx, "contribution_paid", r, func(n interfaces.NotificationService) error {
			return n.NotifyContributionPaid(ctx, notice(evt.ContributionID, member, parentID, evt.Amount))
		})
	}
	return outcome
}

func (e *Engine) paid(ctx context.Context, r *run, contributorID, parentID uuid.UUID, due, network models.Amount) Outcome {
	err := e.applyStep(ctx, r, stepContributorDebit, contributorID, func(l *ledger.Ledger) error {
		return l.DebitDueAmount(due, r.service)
	})
	if err != nil {
		return r.fail(err)
	}

	err = e.applyStep(ctx, r, stepParentReceive, parentID, func(l *ledger.Ledger) error {
		if err := l.DebitNetworkAmount(network, r.service); err != nil {
			return err
		}
		return l.CreditDueAmount(due, r.service)
	})
	if err != nil {
		return r.fail(err)
	}
	return r.done()
}

// ContributionConfirmed closes the obligation at the contributor, debits the
// network due amount of every ancestor and opens a due amount on the direct
// parent, if any.
func (e *Engine) ContributionConfirmed(ctx context.Context, evt events.ContributionConfirmed) Outcome {
	r := e.newRun(evt.EventName(), evt.ContributionID, evt.ContributorID)

	due, network, err := r.amounts(evt.Amount)
	if err != nil {
		return r.fail(err)
	}
	member, err := e.contributor(ctx, evt.ContributorID)
	if err != nil {
		return r.stop(err)
	}

	e.track(ctx, r, evt)
	outcome := e.confirmed(ctx, r, member, due, network)
	e.settle(ctx, r, outcome)

	if outcome.Changed() {
		var parentID uuid.UUID
		if p, ok := member.Parent(); ok {
			parentID = p
		}
		e.notify(ctx, "contribution_confirmed", r, func(n interfaces.NotificationService) error {
			return n.NotifyContributionConfirmed(ctx, notice(evt.ContributionID, member, parentID, evt.Amount))
		})
	}
	return outcome
}

func (e *Engine) confirmed(ctx context.Context, r *run, member models.Member, due, network models.Amount) Outcome {
	err := e.applyStep(ctx, r, stepContributorDebit, member.ID, func(l *ledger.Ledger) error {
		if err := l.DebitDueAmount(due, r.service); err != nil {
			return err
		}
		return l.DebitNetworkAmount(network, r.service)
	})
	if err != nil {
		return r.stop(err)
	}

	for _, ancestorID := range member.Ancestors {
		err := e.applyStep(ctx, r, stepAncestorDebit, ancestorID, func(l *ledger.Ledger) error {
			return l.DebitNetworkAmount(network, r.service)
		})
		if errors.Is(err, models.ErrNotFound) {
			e.log.Warn("ancestor ledger missing, skipping", "ancestor_id", ancestorID, "contribution_id", r.contributionID)
			r.skip(ancestorID)
			continue
		}
		if err != nil {
			return r.fail(err)
		}
	}

	parentID, ok := member.Parent()
	if !ok {
		return r.done()
	}
	err = e.applyStep(ctx, r, stepParentCreditDue, parentID, func(l *ledger.Ledger) error {
		return l.CreditDueAmount(due, r.service)
	})
	if errors.Is(err, models.ErrNotFound) {
		// already reported by the ancestor loop
		return r.done()
	}
	if err != nil {
		return r.fail(err)
	}
	return r.done()
}

func (e *Engine) contributor(ctx context.Context, memberID uuid.UUID) (models.Member, error) {
	return e.members.GetByID(ctx, memberID)
}

func (e *Engine) notify(ctx context.Context, kind string, r *run, send func(interfaces.NotificationService) error) {
	if e.notifier == nil {
		return
	}
	if err := send(e.notifier); err != nil {
		e.log.Warn("notification failed",
			"kind", kind,
			"contribution_id", r.contributionID,
			"contributor_id", r.contributorID,
			"error", err,
		)
	}
}

func notice(contributionID string, member models.Member, parentID uuid.UUID, amount int64) interfaces.ContributionNotice {
	n := interfaces.ContributionNotice{
		ContributionID: contributionID,
		ContributorID:  member.ID,
		Amount:         amount,
	}
	if parentID != uuid.Nil {
		n.ParentID = &parentID
	}
	return n
}

// amounts validates the event and builds the two typed amounts it moves.
func (r *run) amounts(value int64) (models.Amount, models.Amount, error) {
	if r.contributionID == "" || r.contributorID == uuid.Nil {
		return models.Amount{}, models.Amount{}, fmt.Errorf("%w: contribution and contributor ids are required", models.ErrInvalidArgument)
	}
	due, err := models.MemberAmount(value)
	if err != nil {
		return models.Amount{}, models.Amount{}, err
	}
	network, err := models.NetworkAmount(value)
	if err != nil {
		return models.Amount{}, models.Amount{}, err
	}
	return due, network, nil
}
