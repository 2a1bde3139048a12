package events

// Event is anything published on the event bus. EventName doubles as the
// subscription key and the suffix of the kafka topic.
type Event interface {
	EventName() string
}

// Keyed events carry a partition key so that all events of one aggregate
// land on the same kafka partition in order.
type Keyed interface {
	PartitionKey() string
}

const (
	NameContributionMade      = "contribution.made"
	NameContributionPaid      = "contribution.paid"
	NameContributionConfirmed = "contribution.confirmed"
	NameAccountRegistered     = "network.account_registered"
	NameInvitationAccepted    = "network.invitation_accepted"

	NameDueAmountChanged        = "ledger.due_amount_changed"
	NameNetworkDueAmountChanged = "ledger.network_due_amount_changed"
	NameTransactionCreated      = "ledger.transaction_created"
	NameCascadeFailed           = "ledger.cascade_failed"
)

const NameNotificationRequested = "notification.requested"
