package services

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"financas/internal/cache"
	"financas/internal/core"
	"financas/internal/log"
	"financas/internal/sheets"

	"golang.org/x/sync/singleflight"
)

// Clock returns the current time; injected so the as-of date is never read
// from a global inside the aggregation path.
type Clock func() time.Time

// OverviewService loads the full transaction set and runs the aggregator.
// Results are cached per as-of month; concurrent identical requests share a
// single computation.
type OverviewService struct {
	lister     sheets.TransactionLister
	aggregator core.Aggregator
	clock      Clock
	cache      cache.Cache[core.Overview]
	group      singleflight.Group
	generation atomic.Uint64
	logger     *log.Logger
}

type OverviewOption func(*OverviewService)

func WithClock(clock Clock) OverviewOption {
	return func(s *OverviewService) { s.clock = clock }
}

func WithCache(c cache.Cache[core.Overview]) OverviewOption {
	return func(s *OverviewService) { s.cache = c }
}

func WithLogger(l *log.Logger) OverviewOption {
	return func(s *OverviewService) { s.logger = l }
}

func NewOverviewService(lister sheets.TransactionLister, aggregator core.Aggregator, opts ...OverviewOption) *OverviewService {
	s := &OverviewService{
		lister:     lister,
		aggregator: aggregator,
		clock:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = log.NewDefault()
	}
	s.logger = s.logger.WithComponent(log.ComponentOverview)
	return s
}

// Now returns the service clock's current time.
func (s *OverviewService) Now() time.Time {
	return s.clock()
}

// Current computes the overview as of the service clock.
func (s *OverviewService) Current(ctx context.Context) (core.Overview, error) {
	return s.Overview(ctx, s.clock())
}

// Overview computes the overview as of asOf. Only its year and month matter.
func (s *OverviewService) Overview(ctx context.Context, asOf time.Time) (core.Overview, error) {
	key := cacheKey(asOf)
	if s.cache != nil {
		if ov, ok := s.cache.Get(key); ok {
			s.logger.DebugContext(ctx, "Overview served from cache", log.FieldAsOf, key)
			return ov, nil
		}
	}

	// A write bumps the generation; results computed from older data are
	// neither cached nor shared with requests that arrive after it.
	// The shared computation outlives any single caller's cancellation; each
	// caller stops waiting on its own context instead.
	gen := s.generation.Load()
	shareCtx := context.WithoutCancel(ctx)
	ch := s.group.DoChan(fmt.Sprintf("%s#%d", key, gen), func() (any, error) {
		start := time.Now()
		txs, err := s.lister.ListTransactions(shareCtx)
		if err != nil {
			return core.Overview{}, fmt.Errorf("list transactions: %w", err)
		}
		ov := s.aggregator.Overview(txs, asOf)
		if s.cache != nil && s.generation.Load() == gen {
			s.cache.Set(key, ov)
		}
		s.logger.InfoContext(shareCtx, "Overview computed",
			log.FieldAsOf, key,
			log.FieldCount, len(txs),
			log.FieldOperation, log.OpAggregate,
			log.FieldDuration, time.Since(start).Milliseconds())
		return ov, nil
	})

	select {
	case <-ctx.Done():
		return core.Overview{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return core.Overview{}, res.Err
		}
		if res.Shared {
			s.logger.DebugContext(ctx, "Overview computation shared", log.FieldAsOf, key)
		}
		return res.Val.(core.Overview), nil
	}
}

// Installments returns the ranked open installments of the last available
// period as of asOf.
func (s *OverviewService) Installments(ctx context.Context, asOf time.Time) (core.InstallmentReport, error) {
	ov, err := s.Overview(ctx, asOf)
	if err != nil {
		return core.InstallmentReport{}, err
	}
	return ov.Installments, nil
}

// Invalidate implements Invalidator.
func (s *OverviewService) Invalidate() {
	s.generation.Add(1)
	if s.cache != nil {
		s.cache.Purge()
	}
}

func cacheKey(asOf time.Time) string {
	return fmt.Sprintf("%04d-%02d", asOf.Year(), int(asOf.Month()))
}
