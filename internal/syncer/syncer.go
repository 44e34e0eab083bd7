// Package syncer drives the periodic background cycle: reconcile pending
// interactions, publish scheduled drafts, pull fresh feed pages into the
// cache, and purge posts past retention.
package syncer

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"socialhub/aggregator/internal/feed"
	"socialhub/aggregator/internal/platform"
)

// Store is the slice of the cache store the syncer needs.
type Store interface {
	PurgeOldPosts(ctx context.Context, retentionDays int) (int64, error)
}

// Reconciler replays pending interactions against their platforms.
type Reconciler interface {
	ReconcileAll(ctx context.Context) error
	Wait()
}

// Scheduler publishes drafts whose scheduled time has arrived.
type Scheduler interface {
	PublishDue(ctx context.Context) error
}

// Config tunes one sync cycle.
type Config struct {
	Interval      time.Duration // time between cycles
	PageSize      int           // items pulled per feed page
	MaxPages      int           // page budget per cycle
	RetentionDays int           // cache retention for unbookmarked posts
}

// Syncer runs the background maintenance loop.
type Syncer struct {
	store      Store
	engine     *feed.Engine
	reconciler Reconciler
	scheduler  Scheduler
	cfg        Config

	cycles       atomic.Int64
	fetchedTotal atomic.Int64
}

// New creates a syncer. The reconciler and scheduler may be nil to skip those
// phases.
func New(store Store, engine *feed.Engine, reconciler Reconciler, scheduler Scheduler, cfg Config) *Syncer {
	if cfg.Interval <= 0 {
		cfg.Interval = 15 * time.Minute
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 50
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 5
	}
	if cfg.RetentionDays <= 0 {
		cfg.RetentionDays = 30
	}
	return &Syncer{
		store:      store,
		engine:     engine,
		reconciler: reconciler,
		scheduler:  scheduler,
		cfg:        cfg,
	}
}

// Run executes one cycle immediately and then one per interval until the
// context is cancelled.
func (s *Syncer) Run(ctx context.Context) error {
	log.Info().
		Dur("interval", s.cfg.Interval).
		Int("page_size", s.cfg.PageSize).
		Int("max_pages", s.cfg.MaxPages).
		Msg("Starting sync loop")

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	if err := s.RunOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("Sync cycle failed")
	}

	for {
		select {
		case <-ctx.Done():
			log.Info().
				Int64("cycles", s.cycles.Load()).
				Int64("posts_fetched", s.fetchedTotal.Load()).
				Msg("Sync loop stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("Sync cycle failed")
			}
		}
	}
}

// RunOnce executes a single sync cycle.
func (s *Syncer) RunOnce(ctx context.Context) error {
	start := time.Now()
	s.cycles.Add(1)

	if s.reconciler != nil {
		if err := s.reconciler.ReconcileAll(ctx); err != nil {
			log.Warn().Err(err).Msg("Interaction reconcile failed")
		} else {
			s.reconciler.Wait()
		}
	}

	if s.scheduler != nil {
		if err := s.scheduler.PublishDue(ctx); err != nil {
			log.Warn().Err(err).Msg("Scheduled publish pass failed")
		}
	}

	fetched, err := s.pullPages(ctx)
	if err != nil {
		return err
	}
	s.fetchedTotal.Add(int64(fetched))

	purged, err := s.store.PurgeOldPosts(ctx, s.cfg.RetentionDays)
	if err != nil {
		log.Warn().Err(err).Msg("Retention purge failed")
	}

	log.Info().
		Int("posts_fetched", fetched).
		Int64("posts_purged", purged).
		Dur("elapsed", time.Since(start)).
		Msg("Sync cycle complete")
	return nil
}

// pullPages pages through the merged feed until a page comes back empty or
// the cycle budget runs out. The engine caches every fetched post, so the
// syncer only has to keep asking for more.
func (s *Syncer) pullPages(ctx context.Context) (int, error) {
	total := 0
	for page := 0; page < s.cfg.MaxPages; page++ {
		result, err := s.engine.FetchNextPage(ctx, feed.ScopeAggregated, s.cfg.PageSize)
		if err != nil {
			var agg *platform.AggregateFetchError
			if errors.As(err, &agg) {
				// Every platform down is not fatal for the loop; the next
				// cycle retries from the same cursors.
				log.Warn().Err(err).Msg("All platforms failed during sync")
				return total, nil
			}
			return total, err
		}
		total += len(result.Items)
		for _, w := range result.Warnings {
			log.Warn().
				Str("platform", string(w.Platform)).
				Str("reason", w.Reason).
				Bool("retryable", w.Retryable).
				Msg("Platform skipped during sync")
		}
		if len(result.Items) == 0 {
			break
		}
	}
	return total, nil
}
