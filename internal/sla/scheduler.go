package sla

import (
	"context"
	"errors"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct{ l zerolog.Logger }

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debug().Fields(keysAndValues).Msg(msg)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Error().Err(err).Fields(keysAndValues).Msg(msg)
}

// Scheduler runs the sweep on a fixed interval. A tick that fires while the
// previous sweep is still running is skipped.
type Scheduler struct {
	cron    *cron.Cron
	sweeper *Sweeper
	timeout time.Duration
	logger  zerolog.Logger
}

func NewScheduler(sweeper *Sweeper, interval time.Duration, logger zerolog.Logger) (*Scheduler, error) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	cl := cronLogger{l: logger}
	s := &Scheduler{
		cron:    cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl))),
		sweeper: sweeper,
		timeout: interval,
		logger:  logger,
	}
	if sweeper.Locker != nil && sweeper.LockTTL > 0 && sweeper.LockTTL < interval {
		logger.Warn().
			Dur("lock_ttl", sweeper.LockTTL).
			Dur("interval", interval).
			Msg("sweep lock ttl is shorter than the sweep interval, runs are cut off before the lock expires")
	}
	if _, err := s.cron.AddFunc("@every "+interval.String(), s.tick); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Scheduler) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if _, err := s.sweeper.Run(ctx); err != nil {
		if errors.Is(err, ErrSweepInFlight) {
			s.logger.Info().Msg("sla sweep skipped, previous run in flight")
			return
		}
		s.logger.Error().Err(err).Msg("sla sweep failed")
	}
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts scheduling and waits for a running sweep to finish or ctx to end.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}
