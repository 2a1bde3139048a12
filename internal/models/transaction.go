package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TransactionType is the direction of a ledger movement.
type TransactionType string

const (
	Debit  TransactionType = "DEBIT"
	Credit TransactionType = "CREDIT"
)

// ServiceType names the business flow that caused a transaction.
type ServiceType string

const ServiceContribution ServiceType = "CONTRIBUTION"

// Service links a ledger transaction back to the operation that originated it.
type Service struct {
	Type          ServiceType `json:"service_type"`
	TransactionID string      `json:"service_transaction_id"`
}

// ContributionService tags a transaction with the contribution that caused it.
func ContributionService(contributionID string) Service {
	return Service{Type: ServiceContribution, TransactionID: contributionID}
}

func (s Service) validate() error {
	if s.Type == "" || s.TransactionID == "" {
		return fmt.Errorf("%w: service type and transaction id are required", ErrInvalidArgument)
	}
	return nil
}

// Transaction is an immutable audit record of a single debit or credit.
type Transaction struct {
	ID        uuid.UUID
	MemberID  uuid.UUID
	Type      TransactionType
	Service   Service
	Amount    Amount
	Timestamp time.Time
}

func NewDebit(memberID uuid.UUID, service Service, amount Amount) (Transaction, error) {
	return newTransaction(memberID, Debit, service, amount)
}

func NewCredit(memberID uuid.UUID, service Service, amount Amount) (Transaction, error) {
	return newTransaction(memberID, Credit, service, amount)
}

func newTransaction(memberID uuid.UUID, typ TransactionType, service Service, amount Amount) (Transaction, error) {
	if memberID == uuid.Nil {
		return Transaction{}, fmt.Errorf("%w: member id is required", ErrInvalidArgument)
	}
	if err := service.validate(); err != nil {
		return Transaction{}, err
	}
	if !amount.Type().Valid() {
		return Transaction{}, fmt.Errorf("%w: amount is required", ErrInvalidArgument)
	}
	return Transaction{
		ID:        uuid.New(),
		MemberID:  memberID,
		Type:      typ,
		Service:   service,
		Amount:    amount,
		Timestamp: time.Now().UTC(),
	}, nil
}
