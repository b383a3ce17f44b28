package adapters

import (
	"context"

	"financas/internal/core"
	"financas/internal/services"
	"financas/internal/sheets"
	"financas/internal/storage"
)

// Source is a read side: every transaction, or those of one month.
type Source interface {
	sheets.TransactionLister
	sheets.PeriodLister
}

// Store routes writes through a TransactionService and reads to the
// underlying source, so every backend gets validation, sync publishing and
// cache invalidation on write.
type Store struct {
	source  Source
	service *services.TransactionService
}

func NewStore(source Source, service *services.TransactionService) *Store {
	return &Store{source: source, service: service}
}

// Append implements sheets.TransactionWriter
func (s *Store) Append(ctx context.Context, tx core.Transaction) (string, error) {
	return s.service.CreateTransaction(ctx, tx)
}

// Import stores a batch of transactions
func (s *Store) Import(ctx context.Context, txs []core.Transaction) ([]string, error) {
	return s.service.ImportTransactions(ctx, txs)
}

// ListTransactions implements sheets.TransactionLister
func (s *Store) ListTransactions(ctx context.Context) ([]core.Transaction, error) {
	return s.source.ListTransactions(ctx)
}

// ListPeriod implements sheets.PeriodLister
func (s *Store) ListPeriod(ctx context.Context, year int, month int) ([]core.Transaction, error) {
	return s.source.ListPeriod(ctx, year, month)
}

// SQLiteAdapter adds the repository's health and lookup operations to Store.
type SQLiteAdapter struct {
	*Store
	storage *storage.SQLiteRepository
}

func NewSQLiteAdapter(storage *storage.SQLiteRepository, service *services.TransactionService) *SQLiteAdapter {
	return &SQLiteAdapter{
		Store:   NewStore(storage, service),
		storage: storage,
	}
}

// Ping reports whether the database is reachable
func (a *SQLiteAdapter) Ping(ctx context.Context) error {
	return a.storage.Ping(ctx)
}

// GetTransaction returns one stored transaction with its sync metadata
func (a *SQLiteAdapter) GetTransaction(ctx context.Context, id string) (*storage.StoredTransaction, error) {
	return a.storage.GetTransaction(ctx, id)
}
