package services

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// PendingSweeper mirrors a batch of unsynced transactions and reports how
// many were handled.
type PendingSweeper interface {
	ProcessPending(ctx context.Context) (int, error)
}

// SyncProcessorConfig holds configuration for the sync processor
type SyncProcessorConfig struct {
	// PollInterval is how often to sweep for pending rows (default: 30s)
	PollInterval time.Duration

	// MaxConsecutiveErrors stops the loop after this many failed sweeps in a
	// row; zero means never stop (default: 0)
	MaxConsecutiveErrors int
}

// DefaultSyncProcessorConfig returns sensible defaults
func DefaultSyncProcessorConfig() SyncProcessorConfig {
	return SyncProcessorConfig{
		PollInterval: 30 * time.Second,
	}
}

// ErrTooManyFailures is returned by Wait when the loop gave up.
var ErrTooManyFailures = errors.New("sync processor stopped after consecutive failures")

// SyncProcessor periodically asks a PendingSweeper to catch up on rows whose
// AMQP message was lost or failed.
type SyncProcessor struct {
	sweeper PendingSweeper
	config  SyncProcessorConfig

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
	err     error
}

func NewSyncProcessor(sweeper PendingSweeper, config SyncProcessorConfig) *SyncProcessor {
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultSyncProcessorConfig().PollInterval
	}
	return &SyncProcessor{sweeper: sweeper, config: config}
}

// Start begins the processing loop. Returns an error if already running.
func (p *SyncProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return errors.New("sync processor is already running")
	}
	if p.sweeper == nil {
		p.mu.Unlock()
		return errors.New("sync processor has no sweeper")
	}
	p.running = true
	p.err = nil
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.mu.Unlock()

	go p.runLoop(ctx)

	slog.InfoContext(ctx, "Sync processor started", "poll_interval", p.config.PollInterval)
	return nil
}

// Stop gracefully stops the processor and waits for completion.
func (p *SyncProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	stopCh, doneCh := p.stopCh, p.doneCh
	p.mu.Unlock()

	select {
	case <-stopCh:
	default:
		close(stopCh)
	}

	select {
	case <-doneCh:
		slog.InfoContext(ctx, "Sync processor stopped gracefully")
		return nil
	case <-ctx.Done():
		slog.WarnContext(ctx, "Sync processor stop timed out")
		return ctx.Err()
	}
}

// Wait blocks until the loop exits and returns why it stopped: nil after
// Stop, the context error on cancellation, or ErrTooManyFailures.
func (p *SyncProcessor) Wait() error {
	p.mu.Lock()
	doneCh := p.doneCh
	p.mu.Unlock()
	if doneCh == nil {
		return nil
	}
	<-doneCh
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

func (p *SyncProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *SyncProcessor) runLoop(ctx context.Context) {
	var exitErr error
	defer func() {
		p.mu.Lock()
		p.running = false
		p.err = exitErr
		p.mu.Unlock()
		close(p.doneCh)
	}()

	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	failures := 0
	sweep := func() bool {
		n, err := p.sweeper.ProcessPending(ctx)
		if err != nil {
			failures++
			slog.ErrorContext(ctx, "Pending sync sweep failed", "error", err, "consecutive_failures", failures)
			if p.config.MaxConsecutiveErrors > 0 && failures >= p.config.MaxConsecutiveErrors {
				exitErr = ErrTooManyFailures
				return false
			}
			return true
		}
		failures = 0
		if n > 0 {
			slog.InfoContext(ctx, "Pending sync sweep completed", "count", n)
		}
		return true
	}

	// Sweep immediately on startup
	if !sweep() {
		return
	}

	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			exitErr = ctx.Err()
			return
		case <-ticker.C:
			if !sweep() {
				return
			}
		}
	}
}
