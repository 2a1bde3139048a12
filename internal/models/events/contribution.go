package events

import "github.com/google/uuid"

// ContributionMade is published when a member pledges an amount to a case.
type ContributionMade struct {
	ContributionID string    `json:"contribution_id"`
	ContributorID  uuid.UUID `json:"contributor_id"`
	CaseID         string    `json:"case_id"`
	Amount         int64     `json:"amount"`
}

// ContributionPaid is published when the contributor has transferred the
// amount to their direct parent.
type ContributionPaid struct {
	ContributionID string    `json:"contribution_id"`
	ContributorID  uuid.UUID `json:"contributor_id"`
	Amount         int64     `json:"amount"`
}

// ContributionConfirmed is published when a completed contribution is confirmed.
type ContributionConfirmed struct {
	ContributionID string    `json:"contribution_id"`
	ContributorID  uuid.UUID `json:"contributor_id"`
	Amount         int64     `json:"amount"`
}

func (ContributionMade) EventName() string      { return NameContributionMade }
func (ContributionPaid) EventName() string      { return NameContributionPaid }
func (ContributionConfirmed) EventName() string { return NameContributionConfirmed }

func (e ContributionMade) PartitionKey() string      { return e.ContributorID.String() }
func (e ContributionPaid) PartitionKey() string      { return e.ContributorID.String() }
func (e ContributionConfirmed) PartitionKey() string { return e.ContributorID.String() }
