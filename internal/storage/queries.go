package storage

import (
	"context"
	"database/sql"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

// TransactionRow mirrors one row of the transactions table.
type TransactionRow struct {
	ID          string
	Description string
	AmountCents int64
	Category    string
	Subcategory string
	RefMonth    int64
	RefYear     int64
	Installment string
	SyncStatus  string
	Version     int64
	CreatedAt   int64
	SyncedAt    sql.NullInt64
}

const transactionColumns = `id, description, amount_cents, category, subcategory, ref_month, ref_year, installment, sync_status, version, created_at, synced_at`

const createTransaction = `INSERT INTO transactions (
    id, description, amount_cents, category, subcategory, ref_month, ref_year, installment, created_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

type CreateTransactionParams struct {
	ID          string
	Description string
	AmountCents int64
	Category    string
	Subcategory string
	RefMonth    int64
	RefYear     int64
	Installment string
	CreatedAt   int64
}

func (q *Queries) CreateTransaction(ctx context.Context, arg CreateTransactionParams) error {
	_, err := q.db.ExecContext(ctx, createTransaction,
		arg.ID,
		arg.Description,
		arg.AmountCents,
		arg.Category,
		arg.Subcategory,
		arg.RefMonth,
		arg.RefYear,
		arg.Installment,
		arg.CreatedAt,
	)
	return err
}

const getTransaction = `SELECT ` + transactionColumns + ` FROM transactions WHERE id = ?`

func (q *Queries) GetTransaction(ctx context.Context, id string) (TransactionRow, error) {
	row := q.db.QueryRowContext(ctx, getTransaction, id)
	var i TransactionRow
	err := scanTransaction(row, &i)
	return i, err
}

const listTransactions = `SELECT ` + transactionColumns + ` FROM transactions ORDER BY created_at, rowid`

func (q *Queries) ListTransactions(ctx context.Context) ([]TransactionRow, error) {
	return q.queryTransactions(ctx, listTransactions)
}

const listTransactionsByPeriod = `SELECT ` + transactionColumns + ` FROM transactions
WHERE ref_year = ? AND ref_month = ?
ORDER BY created_at, rowid`

func (q *Queries) ListTransactionsByPeriod(ctx context.Context, year, month int64) ([]TransactionRow, error) {
	return q.queryTransactions(ctx, listTransactionsByPeriod, year, month)
}

const getPendingSync = `SELECT id, version, created_at FROM transactions
WHERE sync_status IN ('pending', 'error')
ORDER BY created_at, rowid
LIMIT ?`

type PendingSyncRow struct {
	ID        string
	Version   int64
	CreatedAt int64
}

func (q *Queries) GetPendingSync(ctx context.Context, limit int64) ([]PendingSyncRow, error) {
	rows, err := q.db.QueryContext(ctx, getPendingSync, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []PendingSyncRow
	for rows.Next() {
		var i PendingSyncRow
		if err := rows.Scan(&i.ID, &i.Version, &i.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	return items, rows.Err()
}

const markTransactionSynced = `UPDATE transactions SET sync_status = 'synced', synced_at = ?, claimed_at = NULL WHERE id = ?`

func (q *Queries) MarkTransactionSynced(ctx context.Context, syncedAt int64, id string) (int64, error) {
	res, err := q.db.ExecContext(ctx, markTransactionSynced, syncedAt, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const markTransactionSyncError = `UPDATE transactions SET sync_status = 'error', version = version + 1, claimed_at = NULL WHERE id = ?`

func (q *Queries) MarkTransactionSyncError(ctx context.Context, id string) (int64, error) {
	res, err := q.db.ExecContext(ctx, markTransactionSyncError, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const claimTransactionSync = `UPDATE transactions SET claimed_at = ?
WHERE id = ? AND sync_status IN ('pending', 'error')
AND (claimed_at IS NULL OR claimed_at < ?)`

func (q *Queries) ClaimTransactionSync(ctx context.Context, claimedAt int64, id string, staleBefore int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, claimTransactionSync, claimedAt, id, staleBefore)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const countTransactions = `SELECT COUNT(*) FROM transactions`

func (q *Queries) CountTransactions(ctx context.Context) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, countTransactions).Scan(&n)
	return n, err
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanTransaction(s scanner, i *TransactionRow) error {
	return s.Scan(
		&i.ID,
		&i.Description,
		&i.AmountCents,
		&i.Category,
		&i.Subcategory,
		&i.RefMonth,
		&i.RefYear,
		&i.Installment,
		&i.SyncStatus,
		&i.Version,
		&i.CreatedAt,
		&i.SyncedAt,
	)
}

func (q *Queries) queryTransactions(ctx context.Context, query string, args ...interface{}) ([]TransactionRow, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []TransactionRow
	for rows.Next() {
		var i TransactionRow
		if err := scanTransaction(rows, &i); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	return items, rows.Err()
}
