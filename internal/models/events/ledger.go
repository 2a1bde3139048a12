package events

import (
	"time"

	"github.com/google/uuid"
)

// DueAmountChanged is raised by a ledger whenever its due amount moves.
type DueAmountChanged struct {
	LedgerID   uuid.UUID `json:"ledger_id"`
	MemberID   uuid.UUID `json:"member_id"`
	Previous   int64     `json:"previous"`
	Current    int64     `json:"current"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NetworkDueAmountChanged is raised by a ledger whenever its network due amount moves.
type NetworkDueAmountChanged struct {
	LedgerID   uuid.UUID `json:"ledger_id"`
	MemberID   uuid.UUID `json:"member_id"`
	Previous   int64     `json:"previous"`
	Current    int64     `json:"current"`
	OccurredAt time.Time `json:"occurred_at"`
}

// TransactionCreated is raised for every transaction appended to a ledger.
type TransactionCreated struct {
	LedgerID             uuid.UUID `json:"ledger_id"`
	TransactionID        uuid.UUID `json:"transaction_id"`
	MemberID             uuid.UUID `json:"member_id"`
	Type                 string    `json:"type"`
	ServiceType          string    `json:"service_type"`
	ServiceTransactionID string    `json:"service_transaction_id"`
	Amount               int64     `json:"amount"`
	AmountType           string    `json:"amount_type"`
	OccurredAt           time.Time `json:"occurred_at"`
}

func (DueAmountChanged) EventName() string        { return NameDueAmountChanged }
func (NetworkDueAmountChanged) EventName() string { return NameNetworkDueAmountChanged }
func (TransactionCreated) EventName() string      { return NameTransactionCreated }

func (e DueAmountChanged) PartitionKey() string        { return e.LedgerID.String() }
func (e NetworkDueAmountChanged) PartitionKey() string { return e.LedgerID.String() }
func (e TransactionCreated) PartitionKey() string      { return e.LedgerID.String() }

// CascadeFailed is published to the dead-letter topic for cascades that did
// not fully apply, so they can be retried or reconciled out of band.
type CascadeFailed struct {
	Event          string      `json:"event"`
	ContributionID string      `json:"contribution_id"`
	ContributorID  uuid.UUID   `json:"contributor_id"`
	Status         string      `json:"status"`
	ErrorKind      string      `json:"error_kind"`
	Error          string      `json:"error"`
	Skipped        []uuid.UUID `json:"skipped_members,omitempty"`
	OccurredAt     time.Time   `json:"occurred_at"`
}

func (CascadeFailed) EventName() string      { return NameCascadeFailed }
func (e CascadeFailed) PartitionKey() string { return e.ContributorID.String() }
