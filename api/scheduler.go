/*
scheduler.go - Periodic missing-attendance check

PURPOSE:
  Periodically flags past planned shifts that never received attendance,
  so managers see them as changed without anyone triggering the check.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Runs once immediately on start
  - Each run has its own timeout so a stuck store cannot wedge the loop
  - Errors are logged; the next tick tries again

CONFIGURATION:
  - CheckInterval: How often to check (default: 1 hour)
  - Enabled: Whether scheduler is active (default: true)

USAGE:
  scheduler := NewMissingAttendanceScheduler(check, log)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: RunMissingAttendance endpoint (manual trigger)
  - schedule/missing.go: the check itself
*/
package api

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/warp/worktrack/core"
	"github.com/warp/worktrack/schedule"
)

// MissingAttendanceScheduler runs the missing-attendance check on a ticker.
type MissingAttendanceScheduler struct {
	Check         *schedule.MissingAttendanceCheck
	CheckInterval time.Duration
	RunTimeout    time.Duration
	Enabled       bool
	Log           logrus.FieldLogger
	Now           func() time.Time

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewMissingAttendanceScheduler creates a new scheduler.
func NewMissingAttendanceScheduler(check *schedule.MissingAttendanceCheck, log logrus.FieldLogger) *MissingAttendanceScheduler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &MissingAttendanceScheduler{
		Check:         check,
		CheckInterval: 1 * time.Hour,
		RunTimeout:    5 * time.Minute,
		Enabled:       true,
		Log:           log.WithField("component", "scheduler"),
		Now:           time.Now,
		stop:          make(chan struct{}),
	}
}

// Start begins the scheduler.
func (s *MissingAttendanceScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.Enabled || s.CheckInterval <= 0 {
		s.Log.Info("Scheduler disabled, not starting")
		return
	}
	if s.ticker != nil {
		return
	}

	s.ticker = time.NewTicker(s.CheckInterval)
	s.wg.Add(1)

	go s.run()

	s.Log.WithField("interval", s.CheckInterval.String()).Info("Scheduler started")
}

// Stop stops the scheduler and waits for a running check to finish.
func (s *MissingAttendanceScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker != nil {
		s.ticker.Stop()
		close(s.stop)
		s.wg.Wait()
		s.ticker = nil
		s.Log.Info("Scheduler stopped")
	}
}

func (s *MissingAttendanceScheduler) run() {
	defer s.wg.Done()

	// Run immediately on start
	s.RunNow()

	for {
		select {
		case <-s.ticker.C:
			s.RunNow()
		case <-s.stop:
			return
		}
	}
}

// RunNow performs one check and returns how many plans were flagged.
func (s *MissingAttendanceScheduler) RunNow() int {
	ctx, cancel := context.WithTimeout(context.Background(), s.RunTimeout)
	defer cancel()

	flagged, err := s.Check.Run(ctx, core.DateOf(s.Now()))
	if err != nil {
		s.Log.WithError(err).WithField("retryable", core.IsRetryable(err)).Error("Missing-attendance check failed")
		return 0
	}
	return flagged
}
