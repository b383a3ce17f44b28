package memory

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"financas/internal/core"
	"financas/internal/log"
	ports "financas/internal/sheets"

	"github.com/google/uuid"
)

// SeedFile is the CSV read by NewFromFiles.
const SeedFile = "transactions.csv"

// maxLoggedRowErrors caps how many skipped seed rows are logged one by one.
const maxLoggedRowErrors = 5

var (
	_ ports.TransactionWriter = (*Store)(nil)
	_ ports.TransactionLister = (*Store)(nil)
	_ ports.PeriodLister      = (*Store)(nil)
)

type Store struct {
	mu    sync.Mutex
	items []core.Transaction
}

// New returns a store holding a copy of txs. Missing IDs are assigned.
func New(txs ...core.Transaction) *Store {
	s := &Store{items: make([]core.Transaction, 0, len(txs))}
	for _, tx := range txs {
		if tx.ID == "" {
			tx.ID = uuid.NewString()
		}
		s.items = append(s.items, tx)
	}
	return s
}

// NewFromFiles seeds the store from base/transactions.csv. A missing file
// yields an empty store; malformed rows are skipped and logged. A file that
// cannot be read keeps whatever rows were decoded before the failure.
func NewFromFiles(base string, logger *log.Logger) *Store {
	if logger == nil {
		logger = log.Discard()
	}
	path := filepath.Join(base, SeedFile)
	f, err := os.Open(path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn("Seed file not readable", "file", path, log.FieldError, err)
		}
		return New()
	}
	defer f.Close()

	txs, rowErrs, err := ReadCSV(f)
	if err != nil {
		logger.Error("Seed file read failed", "file", path, log.FieldError, err, log.FieldCount, len(txs))
	}
	if len(rowErrs) > 0 {
		logger.Warn("Skipped malformed seed rows", "file", path, log.FieldCount, len(rowErrs))
		for _, e := range rowErrs[:min(len(rowErrs), maxLoggedRowErrors)] {
			logger.Warn("Skipped seed row", "file", path, log.FieldError, e)
		}
	}
	return New(txs...)
}

// Append stores the transaction and returns a synthetic row reference.
func (s *Store) Append(_ context.Context, tx core.Transaction) (string, error) {
	if err := tx.Validate(); err != nil {
		return "", err
	}
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, tx)
	return fmt.Sprintf("mem:%d", len(s.items)), nil
}

func (s *Store) ListTransactions(_ context.Context) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Transaction(nil), s.items...), nil
}

func (s *Store) ListPeriod(_ context.Context, year int, month int) ([]core.Transaction, error) {
	if err := (core.Period{Year: year, Month: month}).Validate(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return ports.FilterPeriod(s.items, year, month), nil
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}
