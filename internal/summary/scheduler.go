package summary

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DefaultTickInterval is the wall-clock period between summary ticks while
// a session is in progress.
const DefaultTickInterval = 30 * time.Second

// Scheduler drives periodic ticks for one session. It is cancelled when
// the session leaves the in_progress state; the mandatory final tick is
// issued out of band by the owner after stopping the scheduler.
type Scheduler struct {
	pipeline *Pipeline
	interval time.Duration
	logger   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

// NewScheduler creates a tick scheduler for the given pipeline.
func NewScheduler(pipeline *Pipeline, interval time.Duration, logger *slog.Logger) *Scheduler {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		pipeline: pipeline,
		interval: interval,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start launches the periodic tick loop.
func (s *Scheduler) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				if err := s.pipeline.Tick(s.ctx); err != nil {
					// Aborted ticks retry automatically next interval.
					s.logger.Debug("Periodic tick failed",
						slog.String("error", err.Error()),
					)
				}
			}
		}
	}()
}

// Stop cancels the periodic loop and waits for it to exit. Idempotent.
func (s *Scheduler) Stop() {
	s.once.Do(func() {
		s.cancel()
		s.wg.Wait()
	})
}
