// Package scheduler runs the periodic maintenance jobs: the evidence orphan
// sweep and the in-transit digest.
package scheduler

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"branch-supply/internal/app"
	"branch-supply/internal/config"
)

// StaleAfter is how long an order may sit IN_TRANSIT before the digest reports it.
const StaleAfter = 48 * time.Hour

const jobTimeout = 5 * time.Minute

// Jobs is the part of the application service the scheduler drives.
type Jobs interface {
	SweepOrphanedEvidence(ctx context.Context, minAge time.Duration) (int, error)
	InTransitDigest(ctx context.Context, shippedBefore time.Time) (*app.DigestResult, error)
}

// Scheduler manages scheduled tasks.
type Scheduler struct {
	cron *cron.Cron
	jobs Jobs
	cfg  config.SchedulerConfig
	log  zerolog.Logger
	now  func() time.Time
}

// New creates a scheduler in cfg.Timezone. Schedules use the standard
// five-field cron syntax.
func New(cfg config.SchedulerConfig, jobs Jobs, log zerolog.Logger) (*Scheduler, error) {
	loc := time.UTC
	if cfg.Timezone != "" {
		l, err := time.LoadLocation(cfg.Timezone)
		if err != nil {
			return nil, fmt.Errorf("scheduler timezone %q: %w", cfg.Timezone, err)
		}
		loc = l
	}
	return &Scheduler{
		cron: cron.New(cron.WithLocation(loc)),
		jobs: jobs,
		cfg:  cfg,
		log:  log.With().Str("component", "scheduler").Logger(),
		now:  time.Now,
	}, nil
}

// Start registers the configured jobs and starts the cron loop. An empty
// schedule disables its job.
func (s *Scheduler) Start() error {
	if s.cfg.OrphanSweepSpec != "" {
		if _, err := s.cron.AddFunc(s.cfg.OrphanSweepSpec, s.runJob("orphan_sweep", s.SweepOrphans)); err != nil {
			return fmt.Errorf("schedule orphan sweep %q: %w", s.cfg.OrphanSweepSpec, err)
		}
	}
	if s.cfg.DigestSpec != "" {
		if _, err := s.cron.AddFunc(s.cfg.DigestSpec, s.runJob("in_transit_digest", s.Digest)); err != nil {
			return fmt.Errorf("schedule digest %q: %w", s.cfg.DigestSpec, err)
		}
	}
	s.log.Info().
		Str("orphan_sweep", s.cfg.OrphanSweepSpec).
		Str("digest", s.cfg.DigestSpec).
		Msg("starting scheduler")
	s.cron.Start()
	return nil
}

// Stop stops the scheduler and waits for running jobs to finish or ctx to end.
func (s *Scheduler) Stop(ctx context.Context) {
	s.log.Info().Msg("stopping scheduler")
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		s.log.Warn().Msg("scheduler jobs still running at shutdown")
	}
}

func (s *Scheduler) runJob(name string, fn func(context.Context) error) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()
		start := s.now()
		if err := fn(ctx); err != nil {
			s.log.Error().Err(err).Str("job", name).Msg("scheduled job failed")
			return
		}
		s.log.Debug().Str("job", name).Dur("duration", time.Since(start)).Msg("scheduled job finished")
	}
}

// SweepOrphans removes evidence blobs no order references.
func (s *Scheduler) SweepOrphans(ctx context.Context) error {
	n, err := s.jobs.SweepOrphanedEvidence(ctx, s.cfg.OrphanMinAge)
	if err != nil {
		return err
	}
	s.log.Info().Int("removed", n).Dur("min_age", s.cfg.OrphanMinAge).Msg("orphaned evidence swept")
	return nil
}

// Digest logs the orders that have been in transit longer than StaleAfter,
// one line per destination branch.
func (s *Scheduler) Digest(ctx context.Context) error {
	res, err := s.jobs.InTransitDigest(ctx, s.now().Add(-StaleAfter))
	if err != nil {
		return err
	}
	if len(res.Orders) == 0 {
		s.log.Info().Time("cutoff", res.Cutoff).Msg("no stale in-transit orders")
		return nil
	}

	branches := make([]int, 0, len(res.ByBranch))
	for id := range res.ByBranch {
		branches = append(branches, id)
	}
	sort.Ints(branches)
	for _, id := range branches {
		s.log.Warn().
			Int("branch_id", id).
			Int("orders", res.ByBranch[id]).
			Time("cutoff", res.Cutoff).
			Msg("orders awaiting receipt")
	}
	return nil
}
