package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"financas/internal/core"
	ports "financas/internal/sheets"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a transaction ID is unknown.
var ErrNotFound = errors.New("transaction not found")

// Sync states stored in transactions.sync_status.
const (
	SyncPending = "pending"
	SyncSynced  = "synced"
	SyncError   = "error"
)

var (
	_ ports.TransactionWriter = (*SQLiteRepository)(nil)
	_ ports.TransactionLister = (*SQLiteRepository)(nil)
	_ ports.PeriodLister      = (*SQLiteRepository)(nil)
)

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	now     func() time.Time
}

// PendingSync is the minimal data needed to enqueue a sync message.
type PendingSync struct {
	ID        string
	Version   int64
	CreatedAt time.Time
}

// StoredTransaction is a transaction plus its persistence metadata.
type StoredTransaction struct {
	core.Transaction
	SyncStatus string
	Version    int64
	CreatedAt  time.Time
	SyncedAt   *time.Time
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
		now:     time.Now,
	}, nil
}

// SetClock replaces the time source used for created_at and synced_at.
func (r *SQLiteRepository) SetClock(now func() time.Time) {
	r.now = now
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping checks the database connection.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Append implements sheets.TransactionWriter. The returned reference is the
// transaction ID.
func (r *SQLiteRepository) Append(ctx context.Context, tx core.Transaction) (string, error) {
	id, err := r.create(ctx, r.queries, tx)
	if err != nil {
		return "", err
	}

	slog.InfoContext(ctx, "Transaction saved to SQLite",
		"id", id,
		"description", tx.Description,
		"amount_cents", tx.Amount.Cents,
		"year", tx.Year,
		"month", tx.Month)

	return id, nil
}

// AppendMany stores txs atomically and returns their IDs in order.
func (r *SQLiteRepository) AppendMany(ctx context.Context, txs []core.Transaction) ([]string, error) {
	dbTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer dbTx.Rollback()

	q := r.queries.WithTx(dbTx)
	ids := make([]string, 0, len(txs))
	for i, tx := range txs {
		id, err := r.create(ctx, q, tx)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		ids = append(ids, id)
	}
	if err := dbTx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	slog.InfoContext(ctx, "Transactions imported to SQLite", "count", len(ids))
	return ids, nil
}

func (r *SQLiteRepository) create(ctx context.Context, q *Queries, tx core.Transaction) (string, error) {
	if err := tx.Validate(); err != nil {
		return "", err
	}
	id := tx.ID
	if id == "" {
		id = uuid.NewString()
	}
	err := q.CreateTransaction(ctx, CreateTransactionParams{
		ID:          id,
		Description: tx.Description,
		AmountCents: tx.Amount.Cents,
		Category:    tx.Category,
		Subcategory: tx.Subcategory,
		RefMonth:    int64(tx.Month),
		RefYear:     int64(tx.Year),
		Installment: tx.Installment,
		CreatedAt:   r.now().UnixMilli(),
	})
	if err != nil {
		return "", fmt.Errorf("create transaction: %w", err)
	}
	return id, nil
}

// ListTransactions implements sheets.TransactionLister, in insertion order.
func (r *SQLiteRepository) ListTransactions(ctx context.Context) ([]core.Transaction, error) {
	rows, err := r.queries.ListTransactions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return toTransactions(rows), nil
}

// ListPeriod implements sheets.PeriodLister.
func (r *SQLiteRepository) ListPeriod(ctx context.Context, year int, month int) ([]core.Transaction, error) {
	if err := (core.Period{Year: year, Month: month}).Validate(); err != nil {
		return nil, err
	}
	rows, err := r.queries.ListTransactionsByPeriod(ctx, int64(year), int64(month))
	if err != nil {
		return nil, fmt.Errorf("list transactions by period: %w", err)
	}
	return toTransactions(rows), nil
}

// GetTransaction retrieves a single transaction by ID.
func (r *SQLiteRepository) GetTransaction(ctx context.Context, id string) (*StoredTransaction, error) {
	row, err := r.queries.GetTransaction(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get transaction by id: %w", err)
	}
	st := &StoredTransaction{
		Transaction: toTransaction(row),
		SyncStatus:  row.SyncStatus,
		Version:     row.Version,
		CreatedAt:   time.UnixMilli(row.CreatedAt).UTC(),
	}
	if row.SyncedAt.Valid {
		t := time.UnixMilli(row.SyncedAt.Int64).UTC()
		st.SyncedAt = &t
	}
	return st, nil
}

// Count returns the number of stored transactions.
func (r *SQLiteRepository) Count(ctx context.Context) (int64, error) {
	n, err := r.queries.CountTransactions(ctx)
	if err != nil {
		return 0, fmt.Errorf("count transactions: %w", err)
	}
	return n, nil
}

// GetPendingSync returns transactions not yet mirrored to Google Sheets,
// oldest first. Rows in error state are retried.
func (r *SQLiteRepository) GetPendingSync(ctx context.Context, limit int) ([]PendingSync, error) {
	rows, err := r.queries.GetPendingSync(ctx, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("get pending sync transactions: %w", err)
	}
	out := make([]PendingSync, len(rows))
	for i, row := range rows {
		out[i] = PendingSync{
			ID:        row.ID,
			Version:   row.Version,
			CreatedAt: time.UnixMilli(row.CreatedAt).UTC(),
		}
	}
	return out, nil
}

// ClaimLease bounds how long a sync claim blocks other workers. A claim older
// than this is treated as abandoned.
const ClaimLease = 5 * time.Minute

// ClaimForSync reserves an unsynced row for one append. It reports false when
// the row is already synced or another worker holds a live claim. MarkSynced
// and MarkSyncError release the claim.
func (r *SQLiteRepository) ClaimForSync(ctx context.Context, id string) (bool, error) {
	now := r.now()
	n, err := r.queries.ClaimTransactionSync(ctx, now.UnixMilli(), id, now.Add(-ClaimLease).UnixMilli())
	if err != nil {
		return false, fmt.Errorf("claim transaction for sync: %w", err)
	}
	return n == 1, nil
}

// MarkSynced marks a transaction as mirrored.
func (r *SQLiteRepository) MarkSynced(ctx context.Context, id string) error {
	n, err := r.queries.MarkTransactionSynced(ctx, r.now().UnixMilli(), id)
	if err != nil {
		return fmt.Errorf("mark transaction synced: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	slog.InfoContext(ctx, "Transaction marked as synced", "id", id)
	return nil
}

// MarkSyncError flags a failed sync attempt and bumps the row version.
func (r *SQLiteRepository) MarkSyncError(ctx context.Context, id string) error {
	n, err := r.queries.MarkTransactionSyncError(ctx, id)
	if err != nil {
		return fmt.Errorf("mark transaction sync error: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	slog.WarnContext(ctx, "Transaction marked with sync error", "id", id)
	return nil
}

func toTransaction(row TransactionRow) core.Transaction {
	return core.Transaction{
		ID:          row.ID,
		Description: row.Description,
		Amount:      core.Money{Cents: row.AmountCents},
		Category:    row.Category,
		Subcategory: row.Subcategory,
		Month:       int(row.RefMonth),
		Year:        int(row.RefYear),
		Installment: row.Installment,
	}
}

func toTransactions(rows []TransactionRow) []core.Transaction {
	out := make([]core.Transaction, len(rows))
	for i, row := range rows {
		out[i] = toTransaction(row)
	}
	return out
}
