package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"financas/internal/core"
	"financas/internal/sheets"
)

// SyncPublisher announces stored transactions to the sync worker.
type SyncPublisher interface {
	PublishTransactionSync(ctx context.Context, id string, version int64) error
	Close() error
}

// BatchWriter is implemented by stores that can persist many rows atomically.
type BatchWriter interface {
	AppendMany(ctx context.Context, txs []core.Transaction) ([]string, error)
}

// Invalidator drops derived data when the transaction set changes.
type Invalidator interface {
	Invalidate()
}

// TransactionService validates and persists transactions, then notifies the
// sync queue and any registered invalidator.
type TransactionService struct {
	writer    sheets.TransactionWriter
	publisher SyncPublisher

	mu           sync.RWMutex
	invalidators []Invalidator
}

func NewTransactionService(writer sheets.TransactionWriter, publisher SyncPublisher) *TransactionService {
	return &TransactionService{writer: writer, publisher: publisher}
}

// AddInvalidator registers inv to be called after every successful write.
func (s *TransactionService) AddInvalidator(inv Invalidator) {
	if inv == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invalidators = append(s.invalidators, inv)
}

// CreateTransaction stores tx and returns the store's reference for it.
// Publishing the sync message is best-effort: the row is already saved and
// the worker's pending sweep picks it up later.
func (s *TransactionService) CreateTransaction(ctx context.Context, tx core.Transaction) (string, error) {
	if err := tx.Validate(); err != nil {
		return "", err
	}
	ref, err := s.writer.Append(ctx, tx)
	if err != nil {
		return "", fmt.Errorf("save transaction: %w", err)
	}

	if err := s.publishSyncMessage(ctx, ref, 1); err != nil {
		slog.ErrorContext(ctx, "Failed to publish sync message", "id", ref, "error", err)
	}
	s.invalidate()
	return ref, nil
}

// Append implements sheets.TransactionWriter.
func (s *TransactionService) Append(ctx context.Context, tx core.Transaction) (string, error) {
	return s.CreateTransaction(ctx, tx)
}

// ImportTransactions stores txs, atomically when the writer supports it.
func (s *TransactionService) ImportTransactions(ctx context.Context, txs []core.Transaction) ([]string, error) {
	for i, tx := range txs {
		if err := tx.Validate(); err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
	}

	var refs []string
	if bw, ok := s.writer.(BatchWriter); ok {
		ids, err := bw.AppendMany(ctx, txs)
		if err != nil {
			return nil, fmt.Errorf("import transactions: %w", err)
		}
		refs = ids
	} else {
		refs = make([]string, 0, len(txs))
		for i, tx := range txs {
			ref, err := s.writer.Append(ctx, tx)
			if err != nil {
				s.invalidate()
				return refs, fmt.Errorf("row %d: %w", i+1, err)
			}
			refs = append(refs, ref)
		}
	}

	for _, ref := range refs {
		if err := s.publishSyncMessage(ctx, ref, 1); err != nil {
			slog.WarnContext(ctx, "Failed to publish sync message, leaving it to the pending sweep", "id", ref, "error", err)
			break
		}
	}
	s.invalidate()

	slog.InfoContext(ctx, "Transactions imported", "count", len(refs))
	return refs, nil
}

func (s *TransactionService) publishSyncMessage(ctx context.Context, id string, version int64) error {
	if s.publisher == nil {
		return nil
	}
	return s.publisher.PublishTransactionSync(ctx, id, version)
}

func (s *TransactionService) invalidate() {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, inv := range s.invalidators {
		inv.Invalidate()
	}
}

// Close closes the writer (when closable) and the publisher.
func (s *TransactionService) Close() error {
	var errs []error

	if c, ok := s.writer.(interface{ Close() error }); ok && c != nil {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}
	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close transaction service: %w", errors.Join(errs...))
	}
	return nil
}
