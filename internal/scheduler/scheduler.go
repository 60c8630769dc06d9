// Package scheduler drives the indexing pipeline: ingest, then rollups,
// then rankings, as one logical run on a fixed interval.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/maruto/dlstats/pkg/ingest"
	"github.com/maruto/dlstats/pkg/metadata"
	"github.com/maruto/dlstats/pkg/ranking"
	"github.com/maruto/dlstats/pkg/rollup"
)

// ErrRunActive reports that an indexing run is already in progress.
var ErrRunActive = errors.New("indexing run already active")

// Scheduler runs the indexing pipeline periodically. The store supports a
// single writer, so overlapping runs are skipped rather than queued.
type Scheduler struct {
	meta     *metadata.Fetcher
	ingestor *ingest.Ingestor
	rollups  *rollup.Engine
	rankings *ranking.Engine
	interval time.Duration
	log      zerolog.Logger

	mu sync.Mutex // held for the duration of a run
}

// New creates a scheduler.
func New(meta *metadata.Fetcher, ing *ingest.Ingestor, rol *rollup.Engine, ran *ranking.Engine, interval time.Duration, log zerolog.Logger) *Scheduler {
	if interval <= 0 {
		interval = 6 * time.Hour
	}
	return &Scheduler{
		meta:     meta,
		ingestor: ing,
		rollups:  rol,
		rankings: ran,
		interval: interval,
		log:      log,
	}
}

// Run starts the scheduler loop, running the pipeline immediately and then
// on every tick. Blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.log.Info().Dur("interval", s.interval).Msg("scheduler: initial indexing run")
	if err := s.RunOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
		s.log.Error().Err(err).Msg("scheduler: indexing run failed")
	}

	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("scheduler: stopped")
			return ctx.Err()
		case <-ticker.C:
			err := s.RunOnce(ctx)
			switch {
			case errors.Is(err, ErrRunActive):
				s.log.Warn().Msg("scheduler: previous run still active, skipping tick")
			case err != nil && !errors.Is(err, context.Canceled):
				s.log.Error().Err(err).Msg("scheduler: indexing run failed")
			}
		}
	}
}

// RunOnce executes one full pipeline run: metadata fetch, ingestion,
// rollups, rankings. Returns ErrRunActive if a run is already in flight.
// A failed run leaves previously committed batches durable and is retried
// as a whole on the next tick.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	if !s.mu.TryLock() {
		return ErrRunActive
	}
	defer s.mu.Unlock()

	started := time.Now()
	lookup := s.meta.Fetch(ctx)

	if err := s.ingestor.Run(ctx, lookup); err != nil {
		return err
	}
	if err := s.rollups.Run(ctx); err != nil {
		return err
	}
	if err := s.rankings.Run(ctx); err != nil {
		return err
	}

	s.log.Info().Dur("elapsed", time.Since(started)).Msg("indexing run complete")
	return nil
}
