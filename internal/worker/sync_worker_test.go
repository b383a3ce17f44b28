package worker

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"financas/internal/amqp"
	"financas/internal/core"
	"financas/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSheet struct {
	mu   sync.Mutex
	rows []core.Transaction
	err  error
}

func (f *fakeSheet) Append(_ context.Context, tx core.Transaction) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.rows = append(f.rows, tx)
	return "Transacoes!A2", nil
}

func newRepo(t *testing.T) *storage.SQLiteRepository {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "worker.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func seed(t *testing.T, repo *storage.SQLiteRepository, desc string) string {
	t.Helper()
	id, err := repo.Append(context.Background(), core.Transaction{
		Description: desc,
		Amount:      core.Money{Cents: -4990},
		Category:    "Casa",
		Month:       3,
		Year:        2024,
		Installment: "parcela 2/10",
	})
	require.NoError(t, err)
	return id
}

func TestHandleSyncMessage(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	sheet := &fakeSheet{}
	w := NewSyncWorker(repo, sheet, 10)

	id := seed(t, repo, "Geladeira")
	require.NoError(t, w.HandleSyncMessage(ctx, amqp.NewTransactionSyncMessage(id, 1)))

	require.Len(t, sheet.rows, 1)
	assert.Equal(t, "Geladeira", sheet.rows[0].Description)
	assert.Equal(t, "parcela 2/10", sheet.rows[0].Installment)

	stored, err := repo.GetTransaction(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, storage.SyncSynced, stored.SyncStatus)

	// Redelivery must not append twice.
	require.NoError(t, w.HandleSyncMessage(ctx, amqp.NewTransactionSyncMessage(id, 1)))
	assert.Len(t, sheet.rows, 1)
}

func TestHandleSyncMessageUnknownID(t *testing.T) {
	w := NewSyncWorker(newRepo(t), &fakeSheet{}, 10)
	assert.NoError(t, w.HandleSyncMessage(context.Background(), amqp.NewTransactionSyncMessage("missing", 1)))
}

func TestHandleSyncMessageSheetFailure(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	w := NewSyncWorker(repo, &fakeSheet{err: errors.New("quota exceeded")}, 10)

	id := seed(t, repo, "Sofá")
	err := w.HandleSyncMessage(ctx, amqp.NewTransactionSyncMessage(id, 1))
	require.Error(t, err)

	stored, err := repo.GetTransaction(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, storage.SyncError, stored.SyncStatus)
	assert.Greater(t, stored.Version, int64(1))
}

func TestProcessPending(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	sheet := &fakeSheet{}
	w := NewSyncWorker(repo, sheet, 2)

	for _, d := range []string{"a", "b", "c"} {
		seed(t, repo, d)
	}

	n, err := w.ProcessPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = w.ProcessPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = w.ProcessPending(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Len(t, sheet.rows, 3)
}

// blockingSheet holds the first append open until released.
type blockingSheet struct {
	fakeSheet
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (b *blockingSheet) Append(ctx context.Context, tx core.Transaction) (string, error) {
	b.once.Do(func() {
		close(b.started)
		<-b.release
	})
	return b.fakeSheet.Append(ctx, tx)
}

func TestConcurrentSweepAndMessageAppendOnce(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	sheet := &blockingSheet{started: make(chan struct{}), release: make(chan struct{})}
	w := NewSyncWorker(repo, sheet, 10)

	id := seed(t, repo, "Notebook")

	msgErr := make(chan error, 1)
	go func() { msgErr <- w.HandleSyncMessage(ctx, amqp.NewTransactionSyncMessage(id, 1)) }()
	<-sheet.started

	// The row is still pending while the message handler appends it.
	n, err := w.ProcessPending(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	close(sheet.release)
	require.NoError(t, <-msgErr)

	assert.Len(t, sheet.rows, 1)
	stored, err := repo.GetTransaction(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, storage.SyncSynced, stored.SyncStatus)
}

func TestStartupSyncCheck(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	sheet := &fakeSheet{}
	w := NewSyncWorker(repo, sheet, 1)

	require.NoError(t, w.StartupSyncCheck(ctx))
	assert.Empty(t, sheet.rows)

	for _, d := range []string{"a", "b", "c"} {
		seed(t, repo, d)
	}
	require.NoError(t, w.StartupSyncCheck(ctx))
	assert.Len(t, sheet.rows, 3)

	pending, err := repo.GetPendingSync(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}
