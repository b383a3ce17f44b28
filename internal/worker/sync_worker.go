package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"financas/internal/amqp"
	"financas/internal/sheets"
	"financas/internal/storage"
)

// SyncStore is the part of the local repository the worker needs.
type SyncStore interface {
	GetTransaction(ctx context.Context, id string) (*storage.StoredTransaction, error)
	GetPendingSync(ctx context.Context, limit int) ([]storage.PendingSync, error)
	ClaimForSync(ctx context.Context, id string) (bool, error)
	MarkSynced(ctx context.Context, id string) error
	MarkSyncError(ctx context.Context, id string) error
}

// SyncWorker mirrors transactions from SQLite to Google Sheets
type SyncWorker struct {
	storage   SyncStore
	sheets    sheets.TransactionWriter
	batchSize int
}

func NewSyncWorker(storage SyncStore, sheets sheets.TransactionWriter, batchSize int) *SyncWorker {
	if batchSize < 1 {
		batchSize = 10
	}
	return &SyncWorker{
		storage:   storage,
		sheets:    sheets,
		batchSize: batchSize,
	}
}

// HandleSyncMessage processes a single transaction sync message from AMQP.
// Rows that are already synced are acknowledged without a second append.
func (w *SyncWorker) HandleSyncMessage(ctx context.Context, msg *amqp.TransactionSyncMessage) error {
	slog.InfoContext(ctx, "Processing sync message",
		"id", msg.ID,
		"version", msg.Version)

	stored, err := w.storage.GetTransaction(ctx, msg.ID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			// Nothing to mirror; retrying would not help.
			slog.WarnContext(ctx, "Sync message for unknown transaction, dropping", "id", msg.ID)
			return nil
		}
		return fmt.Errorf("get transaction from storage: %w", err)
	}

	if stored.SyncStatus == storage.SyncSynced {
		slog.InfoContext(ctx, "Transaction already synced, skipping", "id", msg.ID)
		return nil
	}

	_, err = w.syncToSheets(ctx, stored)
	return err
}

// ProcessPending syncs one batch of rows that have not been mirrored yet.
// This is the backup path for lost AMQP messages.
func (w *SyncWorker) ProcessPending(ctx context.Context) (int, error) {
	synced, _, err := w.processBatch(ctx, w.batchSize)
	return synced, err
}

// StartupSyncCheck drains a larger backlog at worker startup
func (w *SyncWorker) StartupSyncCheck(ctx context.Context) error {
	synced, failed, err := w.processBatch(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("startup sync check: %w", err)
	}
	if synced+failed == 0 {
		slog.InfoContext(ctx, "No pending transactions found on startup")
		return nil
	}
	slog.InfoContext(ctx, "Startup sync completed",
		"total", synced+failed,
		"synced", synced,
		"errors", failed)
	return nil
}

func (w *SyncWorker) processBatch(ctx context.Context, limit int) (synced, failed int, err error) {
	pending, err := w.storage.GetPendingSync(ctx, limit)
	if err != nil {
		return 0, 0, fmt.Errorf("get pending transactions: %w", err)
	}
	if len(pending) == 0 {
		return 0, 0, nil
	}

	slog.InfoContext(ctx, "Processing pending transactions", "count", len(pending))

	for _, p := range pending {
		if ctx.Err() != nil {
			return synced, failed, ctx.Err()
		}
		stored, err := w.storage.GetTransaction(ctx, p.ID)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to get transaction", "id", p.ID, "error", err)
			if err := w.storage.MarkSyncError(ctx, p.ID); err != nil {
				slog.ErrorContext(ctx, "Failed to mark sync error", "id", p.ID, "error", err)
			}
			failed++
			continue
		}
		appended, err := w.syncToSheets(ctx, stored)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to sync transaction", "id", p.ID, "error", err)
			failed++
			continue
		}
		if appended {
			synced++
		}
	}
	return synced, failed, nil
}

// syncToSheets appends the row once it holds the sync claim. It reports false
// without error when the row is synced or claimed elsewhere.
func (w *SyncWorker) syncToSheets(ctx context.Context, stored *storage.StoredTransaction) (bool, error) {
	id := stored.ID

	claimed, err := w.storage.ClaimForSync(ctx, id)
	if err != nil {
		return false, err
	}
	if !claimed {
		slog.InfoContext(ctx, "Transaction synced or claimed by another worker, skipping", "id", id)
		return false, nil
	}

	ref, err := w.sheets.Append(ctx, stored.Transaction)
	if err != nil {
		if markErr := w.storage.MarkSyncError(ctx, id); markErr != nil {
			slog.ErrorContext(ctx, "Failed to mark sync error", "id", id, "error", markErr)
		}
		return false, fmt.Errorf("append to sheets: %w", err)
	}

	// The row is in the sheet; a failed status update only means a later
	// sweep may append it again.
	if err := w.storage.MarkSynced(ctx, id); err != nil {
		slog.ErrorContext(ctx, "Failed to mark as synced", "id", id, "error", err)
	}

	slog.InfoContext(ctx, "Successfully synced transaction",
		"id", id,
		"sheets_ref", ref,
		"description", stored.Description,
		"amount_cents", stored.Amount.Cents)
	return true, nil
}
