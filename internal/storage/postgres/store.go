package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	interfaces "github.com/sheikh-saqib/network-ledger/internal/interfaces"
	"github.com/sheikh-saqib/network-ledger/internal/ledger"
	"github.com/sheikh-saqib/network-ledger/internal/models"
)

// Schema creates the tables used by PostgresLedgerStore.
const Schema = `
CREATE TABLE IF NOT EXISTS ledgers (
	id                 UUID PRIMARY KEY,
	member_id          UUID NOT NULL UNIQUE,
	due_amount         BIGINT NOT NULL CHECK (due_amount >= 0),
	due_network_amount BIGINT NOT NULL CHECK (due_network_amount >= 0),
	version            BIGINT NOT NULL,
	updated_at         TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS ledger_transactions (
	seq                    BIGSERIAL PRIMARY KEY,
	id                     UUID NOT NULL UNIQUE,
	ledger_id              UUID NOT NULL REFERENCES ledgers(id),
	member_id              UUID NOT NULL,
	type                   TEXT NOT NULL,
	service_type           TEXT NOT NULL,
	service_transaction_id TEXT NOT NULL,
	amount                 BIGINT NOT NULL,
	amount_type            TEXT NOT NULL,
	created_at             TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS ledger_transactions_ledger_idx ON ledger_transactions (ledger_id, seq);

CREATE TABLE IF NOT EXISTS ledger_applied_steps (
	ledger_id UUID NOT NULL REFERENCES ledgers(id),
	step      TEXT NOT NULL,
	PRIMARY KEY (ledger_id, step)
);
`

type PostgresLedgerStore struct {
	db *sql.DB
}

func NewPostgresLedgerStore(db *sql.DB) *PostgresLedgerStore {
	return &PostgresLedgerStore{
		db: db,
	}
}

// Migrate applies Schema.
func (p *PostgresLedgerStore) Migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, Schema)
	return err
}

func (p *PostgresLedgerStore) FindByMemberID(ctx context.Context, memberID uuid.UUID) (*ledger.Ledger, error) {
	const query = `SELECT id, member_id, due_amount, due_network_amount, version
	FROM ledgers WHERE member_id = $1`

	var snap ledger.Snapshot
	err := p.db.QueryRowContext(ctx, query, memberID).Scan(
		&snap.ID,
		&snap.MemberID,
		&snap.DueAmount,
		&snap.DueNetworkAmount,
		&snap.Version,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("ledger for member %s: %w", memberID, models.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	snap.Transactions, err = p.transactions(ctx, snap.ID)
	if err != nil {
		return nil, err
	}
	snap.AppliedSteps, err = p.appliedSteps(ctx, snap.ID)
	if err != nil {
		return nil, err
	}
	return ledger.Restore(snap)
}

func (p *PostgresLedgerStore) appliedSteps(ctx context.Context, ledgerID uuid.UUID) ([]string, error) {
	const query = `SELECT step FROM ledger_applied_steps WHERE ledger_id = $1`

	rows, err := p.db.QueryContext(ctx, query, ledgerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var steps []string
	for rows.Next() {
		var step string
		if err := rows.Scan(&step); err != nil {
			return nil, err
		}
		steps = append(steps, step)
	}
	return steps, rows.Err()
}

func (p *PostgresLedgerStore) transactions(ctx context.Context, ledgerID uuid.UUID) ([]models.Transaction, error) {
	const query = `SELECT id, member_id, type, service_type, service_transaction_id, amount, amount_type, created_at
	FROM ledger_transactions WHERE ledger_id = $1 ORDER BY seq`

	rows, err := p.db.QueryContext(ctx, query, ledgerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txs []models.Transaction
	for rows.Next() {
		var r transactionRow
		err := rows.Scan(
			&r.ID,
			&r.MemberID,
			&r.Type,
			&r.ServiceType,
			&r.ServiceTransactionID,
			&r.Amount,
			&r.AmountType,
			&r.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		tx, err := r.model()
		if err != nil {
			return nil, fmt.Errorf("ledger %s: %w", ledgerID, err)
		}
		txs = append(txs, tx)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return txs, nil
}

// Save writes the ledger row, the transactions appended since the ledger was
// loaded and its newly applied steps in one database transaction. The row is
// only updated when its stored version still equals the version the ledger was
// loaded at, so nothing already stored is written again.
func (p *PostgresLedgerStore) Save(ctx context.Context, l *ledger.Ledger) (err error) {
	if l == nil {
		return fmt.Errorf("%w: ledger is required", models.ErrInvalidArgument)
	}
	snap := l.Snapshot()

	dbTx, err := p.db.BeginTx(ctx, nil) // ledger row, transactions and steps commit together
	if err != nil {
		return err
	}

	defer func() {
		if err != nil {
			dbTx.Rollback() // undo everything if any write failed
		}
	}()

	if err = p.saveLedger(ctx, dbTx, snap); err != nil {
		return err
	}
	for _, tx := range l.UnsavedTransactions() { // only what this load appended
		if err = p.saveTransaction(ctx, dbTx, snap.ID, tx); err != nil {
			return err
		}
	}
	if err = p.saveSteps(ctx, dbTx, snap.ID, l.UnsavedSteps()); err != nil {
		return err
	}
	if err = dbTx.Commit(); err != nil {
		return err
	}

	l.MarkSaved() // only after commit, so a failed save can be retried as is
	return nil
}

func (p *PostgresLedgerStore) saveLedger(ctx context.Context, dbTx *sql.Tx, snap ledger.Snapshot) error {
	const insert = `INSERT INTO ledgers (id, member_id, due_amount, due_network_amount, version, updated_at)
	VALUES ($1,$2,$3,$4,1,$5)
	ON CONFLICT (id) DO NOTHING`

	const update = `UPDATE ledgers
	SET due_amount = $2, due_network_amount = $3, version = version + 1, updated_at = $4
	WHERE id = $1 AND version = $5`

	now := time.Now().UTC()

	var (
		res sql.Result
		err error
	)
	if snap.Version == 0 {
		res, err = dbTx.ExecContext(ctx, insert,
			snap.ID, snap.MemberID, snap.DueAmount, snap.DueNetworkAmount, now)
	} else {
		res, err = dbTx.ExecContext(ctx, update,
			snap.ID, snap.DueAmount, snap.DueNetworkAmount, now, snap.Version)
	}
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("ledger %s at version %d: %w", snap.ID, snap.Version, models.ErrVersionConflict)
	}
	return nil
}

// saveTransaction appends tx; transactions already stored are left alone.
func (p *PostgresLedgerStore) saveTransaction(ctx context.Context, dbTx *sql.Tx, ledgerID uuid.UUID, tx models.Transaction) error {
	const query = `INSERT INTO ledger_transactions
	(id, ledger_id, member_id, type, service_type, service_transaction_id, amount, amount_type, created_at)
	VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	ON CONFLICT (id) DO NOTHING`

	r := newTransactionRow(tx)
	_, err := dbTx.ExecContext(ctx, query,
		r.ID, ledgerID, r.MemberID, r.Type, r.ServiceType, r.ServiceTransactionID, r.Amount, r.AmountType, r.CreatedAt)
	return err
}

// saveSteps records steps in a single statement.
func (p *PostgresLedgerStore) saveSteps(ctx context.Context, dbTx *sql.Tx, ledgerID uuid.UUID, steps []string) error {
	const query = `INSERT INTO ledger_applied_steps (ledger_id, step)
	SELECT $1, unnest($2::text[])
	ON CONFLICT DO NOTHING`

	if len(steps) == 0 {
		return nil // nothing marked since the last save
	}
	_, err := dbTx.ExecContext(ctx, query, ledgerID, pq.Array(steps))
	return err
}

// transactionRow is the column layout of ledger_transactions.
type transactionRow struct {
	ID                   uuid.UUID
	MemberID             uuid.UUID
	Type                 string
	ServiceType          string
	ServiceTransactionID string
	Amount               int64
	AmountType           string
	CreatedAt            time.Time
}

func newTransactionRow(tx models.Transaction) transactionRow {
	return transactionRow{
		ID:                   tx.ID,
		MemberID:             tx.MemberID,
		Type:                 string(tx.Type),
		ServiceType:          string(tx.Service.Type),
		ServiceTransactionID: tx.Service.TransactionID,
		Amount:               tx.Amount.Value(),
		AmountType:           string(tx.Amount.Type()),
		CreatedAt:            tx.Timestamp,
	}
}

func (r transactionRow) model() (models.Transaction, error) {
	typ := models.TransactionType(r.Type)
	if typ != models.Debit && typ != models.Credit {
		return models.Transaction{}, fmt.Errorf("%w: transaction %s has type %q", models.ErrInvalidArgument, r.ID, r.Type)
	}
	amount, err := models.NewAmount(r.Amount, models.AmountType(r.AmountType))
	if err != nil {
		return models.Transaction{}, fmt.Errorf("transaction %s: %w", r.ID, err)
	}
	return models.Transaction{
		ID:       r.ID,
		MemberID: r.MemberID,
		Type:     typ,
		Service: models.Service{
			Type:          models.ServiceType(r.ServiceType),
			TransactionID: r.ServiceTransactionID,
		},
		Amount:    amount,
		Timestamp: r.CreatedAt.UTC(),
	}, nil
}

var _ interfaces.LedgerRepository = (*PostgresLedgerStore)(nil)
