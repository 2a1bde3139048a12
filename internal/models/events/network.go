package events

import "github.com/google/uuid"

// AccountRegistered is published when an account first becomes known to the
// network without an inviter.
type AccountRegistered struct {
	AccountID uuid.UUID `json:"account_id"`
}

// InvitationAccepted links an invitee below the inviter in the member tree.
type InvitationAccepted struct {
	InviterID uuid.UUID `json:"inviter_id"`
	InviteeID uuid.UUID `json:"invitee_id"`
}

func (AccountRegistered) EventName() string  { return NameAccountRegistered }
func (InvitationAccepted) EventName() string { return NameInvitationAccepted }

func (e AccountRegistered) PartitionKey() string  { return e.AccountID.String() }
func (e InvitationAccepted) PartitionKey() string { return e.InviteeID.String() }
