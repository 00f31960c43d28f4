/*
scheduler.go - Background reconciliation sweep

PURPOSE:
  Periodically runs the per-subject scheduling check for every subject with
  active schedules, so missed doses are caught and the device pointer stays
  fresh even when no companion app is polling.

DESIGN:
  - Runs a background goroutine with a configurable check interval
  - Sweeps subjects sequentially; each subject gets its own snapshot, so one
    reconciliation is in flight per subject at a time
  - A subject with no schedules is a valid empty state, not an error

USAGE:
  scheduler := NewReconcileScheduler(store, handler, logger)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: ReconcileSubject (shared code path with GET /api/schedule)
*/
package api

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pillbox/dispense-engine/engine"
)

// ReconcileScheduler sweeps all subjects on a fixed interval.
type ReconcileScheduler struct {
	Subjects      engine.SubjectLister
	Handler       *Handler
	CheckInterval time.Duration
	Enabled       bool

	logger *zap.Logger
	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewReconcileScheduler creates a scheduler with a 1 minute sweep interval.
func NewReconcileScheduler(subjects engine.SubjectLister, handler *Handler, logger *zap.Logger) *ReconcileScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReconcileScheduler{
		Subjects:      subjects,
		Handler:       handler,
		CheckInterval: time.Minute,
		Enabled:       true,
		logger:        logger,
		stop:          make(chan struct{}),
	}
}

// Start begins the sweep loop.
func (s *ReconcileScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.Enabled {
		s.logger.Info("reconcile scheduler disabled, not starting")
		return
	}

	s.ticker = time.NewTicker(s.CheckInterval)
	s.wg.Add(1)
	go s.run()

	s.logger.Info("reconcile scheduler started", zap.Duration("interval", s.CheckInterval))
}

// Stop halts the sweep loop and waits for the current sweep to finish.
func (s *ReconcileScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker != nil {
		s.ticker.Stop()
		close(s.stop)
		s.wg.Wait()
		s.logger.Info("reconcile scheduler stopped")
	}
}

func (s *ReconcileScheduler) run() {
	defer s.wg.Done()

	for {
		select {
		case <-s.ticker.C:
			s.sweep(context.Background())
		case <-s.stop:
			return
		}
	}
}

// sweep reconciles every subject once.
func (s *ReconcileScheduler) sweep(ctx context.Context) {
	subjects, err := s.Subjects.ListSubjects(ctx)
	if err != nil {
		s.logger.Error("failed to list subjects", zap.Error(err))
		return
	}

	for _, subject := range subjects {
		if _, err := s.Handler.ReconcileSubject(ctx, subject); err != nil {
			if errors.Is(err, engine.ErrNoActiveSchedules) {
				continue
			}
			s.logger.Error("subject reconciliation failed",
				zap.String("subject", string(subject)), zap.Error(err))
		}
	}
}
