package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"wordfeud_cdf/extractor/internal/config"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// ErrLockHeld is returned when another process is running an extraction for the same user
var ErrLockHeld = errors.New("extraction lock is held by another process")

// Runner performs one extraction
type Runner interface {
	Run(ctx context.Context) error
}

// Locker provides a cross-process lock
type Locker interface {
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (release func(), ok bool, err error)
}

// Scheduler triggers extraction runs on a cron schedule.
// Runs never overlap: cron skips a tick while the previous job is still
// running, and the lock keeps other processes out.
type Scheduler struct {
	cfg    *config.Config
	runner Runner
	locker Locker
	cron   *cron.Cron

	mu      sync.Mutex
	running bool
}

// NewScheduler creates a new scheduler instance. locker may be nil, in which
// case runs are only serialized within this process.
func NewScheduler(cfg *config.Config, runner Runner, locker Locker) *Scheduler {
	logger := cronLogger{}
	return &Scheduler{
		cfg:    cfg,
		runner: runner,
		locker: locker,
		cron: cron.New(
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
	}
}

// Start schedules the sync job and starts the cron scheduler
func (s *Scheduler) Start(ctx context.Context) error {
	log.Info().Msg("Scheduler starting...")

	if s.locker == nil {
		log.Warn().Msg("No lock configured, runs are only serialized within this process")
	}

	if _, err := s.cron.AddFunc(s.cfg.SyncCron, func() {
		if err := s.RunOnce(ctx); err != nil && !errors.Is(err, ErrLockHeld) {
			log.Error().Err(err).Msg("Scheduled sync failed")
		}
	}); err != nil {
		return fmt.Errorf("failed to schedule sync: %w", err)
	}

	s.cron.Start()
	s.mu.Lock()
	s.running = true
	s.mu.Unlock()

	log.Info().
		Str("schedule", s.cfg.SyncCron).
		Str("username", s.cfg.WordfeudUsername).
		Msg("Sync scheduled")

	return nil
}

// Stop stops the scheduler and waits for a running job to finish
func (s *Scheduler) Stop() {
	log.Info().Msg("Stopping scheduler...")

	s.mu.Lock()
	running := s.running
	s.running = false
	s.mu.Unlock()

	if running {
		<-s.cron.Stop().Done()
	}

	log.Info().Msg("Scheduler stopped")
}

// RunOnce runs one extraction while holding the user's lock
func (s *Scheduler) RunOnce(ctx context.Context) error {
	if s.locker != nil {
		key := s.lockKey()
		release, ok, err := s.locker.AcquireLock(ctx, key, s.cfg.SyncLockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire sync lock: %w", err)
		}
		if !ok {
			log.Info().Str("key", key).Msg("Sync already running elsewhere, skipping")
			return ErrLockHeld
		}
		defer release()
	}

	start := time.Now()
	err := s.runner.Run(ctx)
	log.Debug().
		Dur("duration", time.Since(start)).
		Bool("ok", err == nil).
		Msg("Sync job finished")
	return err
}

func (s *Scheduler) lockKey() string {
	return "wordfeud:lock:" + s.cfg.WordfeudUsername
}

// cronLogger routes cron's logging through zerolog
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	log.Debug().Fields(keysAndValues).Msg("cron: " + msg)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	log.Error().Err(err).Fields(keysAndValues).Msg("cron: " + msg)
}
