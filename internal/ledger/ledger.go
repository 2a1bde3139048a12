package ledger

import (
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/sheikh-saqib/network-ledger/internal/models"
	"github.com/sheikh-saqib/network-ledger/internal/models/events"
)

// Ledger is the aggregate holding one member's balances and transaction log.
// Its id equals the member id. Balances only move through the mutation
// methods below; each successful mutation appends a transaction and buffers
// domain events until the repository drains them with PullEvents.
type Ledger struct {
	id               uuid.UUID
	memberID         uuid.UUID
	dueAmount        models.Amount
	dueNetworkAmount models.Amount
	transactions     []models.Transaction
	appliedSteps     map[string]struct{}
	version          int64
	pending          []events.Event

	savedTxCount int      // transactions already persisted
	newSteps     []string // steps marked since the last save
}

// New returns a zero-balance ledger for memberID.
func New(memberID uuid.UUID) (*Ledger, error) {
	if memberID == uuid.Nil {
		return nil, fmt.Errorf("%w: member id is required", models.ErrInvalidArgument)
	}
	due, _ := models.ZeroAmount(models.MemberDue)
	network, _ := models.ZeroAmount(models.NetworkDue)
	return &Ledger{
		id:               memberID,
		memberID:         memberID,
		dueAmount:        due,
		dueNetworkAmount: network,
		transactions:     []models.Transaction{},
		appliedSteps:     map[string]struct{}{},
	}, nil
}

// Snapshot is the persisted shape of a ledger.
type Snapshot struct {
	ID               uuid.UUID
	MemberID         uuid.UUID
	DueAmount        int64
	DueNetworkAmount int64
	Transactions     []models.Transaction
	AppliedSteps     []string
	Version          int64
}

// Restore rebuilds a ledger from storage.
func Restore(s Snapshot) (*Ledger, error) {
	if s.ID == uuid.Nil || s.ID != s.MemberID {
		return nil, fmt.Errorf("%w: ledger id %s does not match member %s", models.ErrInvalidArgument, s.ID, s.MemberID)
	}
	due, err := models.MemberAmount(s.DueAmount)
	if err != nil {
		return nil, fmt.Errorf("restore ledger %s: %w", s.ID, err)
	}
	network, err := models.NetworkAmount(s.DueNetworkAmount)
	if err != nil {
		return nil, fmt.Errorf("restore ledger %s: %w", s.ID, err)
	}

	steps := make(map[string]struct{}, len(s.AppliedSteps))
	for _, step := range s.AppliedSteps {
		steps[step] = struct{}{}
	}

	txs := slices.Clone(s.Transactions)
	if txs == nil {
		txs = []models.Transaction{}
	}

	return &Ledger{
		id:               s.ID,
		memberID:         s.MemberID,
		dueAmount:        due,
		dueNetworkAmount: network,
		transactions:     txs,
		appliedSteps:     steps,
		version:          s.Version,
		savedTxCount:     len(txs),
	}, nil
}

// Snapshot captures the ledger's persisted state. Pending events are not part of it.
func (l *Ledger) Snapshot() Snapshot {
	steps := make([]string, 0, len(l.appliedSteps))
	for step := range l.appliedSteps {
		steps = append(steps, step)
	}
	slices.Sort(steps)

	return Snapshot{
		ID:               l.id,
		MemberID:         l.memberID,
		DueAmount:        l.dueAmount.Value(),
		DueNetworkAmount: l.dueNetworkAmount.Value(),
		Transactions:     slices.Clone(l.transactions),
		AppliedSteps:     steps,
		Version:          l.version,
	}
}

func (l *Ledger) ID() uuid.UUID                   { return l.id }
func (l *Ledger) MemberID() uuid.UUID             { return l.memberID }
func (l *Ledger) DueAmount() models.Amount        { return l.dueAmount }
func (l *Ledger) DueNetworkAmount() models.Amount { return l.dueNetworkAmount }
func (l *Ledger) Version() int64                  { return l.version }

// Transactions returns a copy of the audit trail in append order.
func (l *Ledger) Transactions() []models.Transaction {
	return slices.Clone(l.transactions)
}

// CreditDueAmount increases what the member owes their parent.
func (l *Ledger) CreditDueAmount(amount models.Amount, service models.Service) error {
	return l.apply(models.Credit, models.MemberDue, amount, service)
}

// DebitDueAmount decreases what the member owes their parent.
func (l *Ledger) DebitDueAmount(amount models.Amount, service models.Service) error {
	return l.apply(models.Debit, models.MemberDue, amount, service)
}

// CreditNetworkAmount increases what the member's subtree is expected to deliver.
func (l *Ledger) CreditNetworkAmount(amount models.Amount, service models.Service) error {
	return l.apply(models.Credit, models.NetworkDue, amount, service)
}

// DebitNetworkAmount decreases what the member's subtree is expected to deliver.
func (l *Ledger) DebitNetworkAmount(amount models.Amount, service models.Service) error {
	return l.apply(models.Debit, models.NetworkDue, amount, service)
}

// ConvertToDueAmount moves value from the network due balance to the member
// due balance. Either both sides move or neither does.
func (l *Ledger) ConvertToDueAmount(value int64, service models.Service) error {
	memberAmount, err := models.MemberAmount(value)
	if err != nil {
		return err
	}
	networkAmount, err := models.NetworkAmount(value)
	if err != nil {
		return err
	}

	nextNetwork, err := l.dueNetworkAmount.Minus(networkAmount)
	if err != nil {
		return fmt.Errorf("convert on ledger %s: %w", l.id, err)
	}
	nextDue, err := l.dueAmount.Plus(memberAmount)
	if err != nil {
		return fmt.Errorf("convert on ledger %s: %w", l.id, err)
	}
	credit, err := models.NewCredit(l.memberID, service, memberAmount)
	if err != nil {
		return err
	}
	debit, err := models.NewDebit(l.memberID, service, networkAmount)
	if err != nil {
		return err
	}

	l.setBalance(models.MemberDue, nextDue)
	l.record(credit)
	l.setBalance(models.NetworkDue, nextNetwork)
	l.record(debit)
	return nil
}

// HasApplied reports whether a cascade step was already applied to this ledger.
func (l *Ledger) HasApplied(step string) bool {
	_, ok := l.appliedSteps[step]
	return ok
}

// MarkApplied records a cascade step so that replaying it is a no-op.
func (l *Ledger) MarkApplied(step string) {
	if step == "" {
		return
	}
	if _, ok := l.appliedSteps[step]; ok {
		return
	}
	l.appliedSteps[step] = struct{}{}
	l.newSteps = append(l.newSteps, step)
}

// UnsavedTransactions returns the transactions appended since the ledger was
// loaded or last saved, so a repository can write only those.
func (l *Ledger) UnsavedTransactions() []models.Transaction {
	return slices.Clone(l.transactions[l.savedTxCount:])
}

// UnsavedSteps returns the steps marked since the ledger was loaded or last saved.
func (l *Ledger) UnsavedSteps() []string {
	return slices.Clone(l.newSteps)
}

// PullEvents returns the buffered domain events and clears the buffer.
func (l *Ledger) PullEvents() []events.Event {
	out := l.pending
	l.pending = nil
	return out
}

// MarkSaved is called by repositories after a successful write.
func (l *Ledger) MarkSaved() {
	l.version++
	l.savedTxCount = len(l.transactions)
	l.newSteps = nil
}

func (l *Ledger) apply(kind models.TransactionType, want models.AmountType, amount models.Amount, service models.Service) error {
	if amount.Type() != want {
		return fmt.Errorf("%w: expected %s amount, got %q", models.ErrInvalidArgument, want, amount.Type())
	}

	tx, err := models.NewCredit(l.memberID, service, amount)
	if kind == models.Debit {
		tx, err = models.NewDebit(l.memberID, service, amount)
	}
	if err != nil {
		return err
	}

	current := l.balance(want)
	var next models.Amount
	if kind == models.Credit {
		next, err = current.Plus(amount)
	} else {
		next, err = current.Minus(amount)
	}
	if err != nil {
		return fmt.Errorf("%s %s on ledger %s: %w", kind, want, l.id, err)
	}

	l.setBalance(want, next)
	l.record(tx)
	return nil
}

func (l *Ledger) balance(typ models.AmountType) models.Amount {
	if typ == models.MemberDue {
		return l.dueAmount
	}
	return l.dueNetworkAmount
}

func (l *Ledger) setBalance(typ models.AmountType, next models.Amount) {
	now := time.Now().UTC()
	if typ == models.MemberDue {
		prev := l.dueAmount
		l.dueAmount = next
		l.pending = append(l.pending, events.DueAmountChanged{
			LedgerID:   l.id,
			MemberID:   l.memberID,
			Previous:   prev.Value(),
			Current:    next.Value(),
			OccurredAt: now,
		})
		return
	}
	prev := l.dueNetworkAmount
	l.dueNetworkAmount = next
	l.pending = append(l.pending, events.NetworkDueAmountChanged{
		LedgerID:   l.id,
		MemberID:   l.memberID,
		Previous:   prev.Value(),
		Current:    next.Value(),
		OccurredAt: now,
	})
}

func (l *Ledger) record(tx models.Transaction) {
	l.transactions = append(l.transactions, tx)
	l.pending = append(l.pending, events.TransactionCreated{
		LedgerID:             l.id,
		TransactionID:        tx.ID,
		MemberID:             tx.MemberID,
		Type:                 string(tx.Type),
		ServiceType:          string(tx.Service.Type),
		ServiceTransactionID: tx.Service.TransactionID,
		Amount:               tx.Amount.Value(),
		AmountType:           string(tx.Amount.Type()),
		OccurredAt:           tx.Timestamp,
	})
}
