/*
Package resilient decorates a core.TxStore with a per-operation timeout and
a circuit breaker.

PURPOSE:
  A stuck or failing database should fail requests fast with a retryable
  error instead of piling them up. Every call (and every WithTx as a whole)
  gets a deadline and goes through one gobreaker.CircuitBreaker.

FAILURE ACCOUNTING:
  Only infrastructure failures count against the breaker: timeouts and
  core.StoreUnavailableError. Domain outcomes (not found, version conflict,
  validation and overlap errors returned from a WithTx callback) are
  successes as far as the breaker is concerned.

ERRORS:
  Deadline exceeded, breaker open and half-open overflow all surface as
  core.StoreUnavailableError, which the API maps to 503 + Retry-After.
  Nothing is retried here.

SEE ALSO:
  - store/sqlite: the store usually wrapped
  - core/errors.go: StoreUnavailableError
*/
package resilient

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/warp/worktrack/core"
)

// Settings tune the decorator. Zero values take the defaults below.
type Settings struct {
	Timeout     time.Duration // per operation, or per transaction
	MaxRequests uint32        // trial requests allowed while half-open
	Interval    time.Duration // closed-state count reset period
	OpenTimeout time.Duration // open -> half-open delay
	Failures    uint32        // consecutive failures that trip the breaker
}

func DefaultSettings() Settings {
	return Settings{
		Timeout:     5 * time.Second,
		MaxRequests: 1,
		Interval:    60 * time.Second,
		OpenTimeout: 30 * time.Second,
		Failures:    5,
	}
}

func (s Settings) withDefaults() Settings {
	d := DefaultSettings()
	if s.Timeout <= 0 {
		s.Timeout = d.Timeout
	}
	if s.MaxRequests == 0 {
		s.MaxRequests = d.MaxRequests
	}
	if s.Interval <= 0 {
		s.Interval = d.Interval
	}
	if s.OpenTimeout <= 0 {
		s.OpenTimeout = d.OpenTimeout
	}
	if s.Failures == 0 {
		s.Failures = d.Failures
	}
	return s
}

// Store implements core.TxStore around another TxStore.
type Store struct {
	inner   core.TxStore
	cb      *gobreaker.CircuitBreaker
	timeout time.Duration
}

var _ core.TxStore = (*Store)(nil)

func New(inner core.TxStore, settings Settings, log logrus.FieldLogger) *Store {
	settings = settings.withDefaults()
	if log == nil {
		log = logrus.StandardLogger()
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "store",
		MaxRequests: settings.MaxRequests,
		Interval:    settings.Interval,
		Timeout:     settings.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= settings.Failures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !isInfrastructure(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Circuit breaker state changed")
		},
	})

	return &Store{inner: inner, cb: cb, timeout: settings.Timeout}
}

// State reports the breaker state for health checks.
func (s *Store) State() gobreaker.State {
	return s.cb.State()
}

func isInfrastructure(err error) bool {
	return errors.Is(err, core.ErrStoreUnavailable) ||
		errors.Is(err, context.DeadlineExceeded)
}

// call runs fn under the timeout and the breaker.
func call[T any](ctx context.Context, s *Store, op string, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var zero T
	out, err := s.cb.Execute(func() (interface{}, error) {
		return fn(ctx)
	})
	if err != nil {
		return zero, classify(op, err)
	}
	return out.(T), nil
}

func exec(ctx context.Context, s *Store, op string, fn func(context.Context) error) error {
	_, err := call(ctx, s, op, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

func classify(op string, err error) error {
	switch {
	case errors.Is(err, core.ErrStoreUnavailable):
		return err
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return core.Unavailable(op, err)
	case errors.Is(err, context.DeadlineExceeded):
		return core.Unavailable(op, err)
	}
	return err
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx applies one deadline to the whole transaction. The callback gets
// the inner transaction store directly.
func (s *Store) WithTx(ctx context.Context, fn func(core.Store) error) error {
	return exec(ctx, s, "transaction", func(ctx context.Context) error {
		return s.inner.WithTx(ctx, fn)
	})
}

// Ping passes through when the inner store supports it.
func (s *Store) Ping(ctx context.Context) error {
	p, ok := s.inner.(interface{ Ping(context.Context) error })
	if !ok {
		return nil
	}
	return exec(ctx, s, "ping", p.Ping)
}

// =============================================================================
// DELEGATES
// =============================================================================

func (s *Store) InsertShift(ctx context.Context, sh *core.PlannedShift) error {
	return exec(ctx, s, "insert shift", func(ctx context.Context) error { return s.inner.InsertShift(ctx, sh) })
}

func (s *Store) UpdateShift(ctx context.Context, sh *core.PlannedShift) error {
	return exec(ctx, s, "update shift", func(ctx context.Context) error { return s.inner.UpdateShift(ctx, sh) })
}

func (s *Store) GetShift(ctx context.Context, id core.ShiftID) (core.PlannedShift, error) {
	return call(ctx, s, "get shift", func(ctx context.Context) (core.PlannedShift, error) { return s.inner.GetShift(ctx, id) })
}

func (s *Store) DeleteShift(ctx context.Context, id core.ShiftID) error {
	return exec(ctx, s, "delete shift", func(ctx context.Context) error { return s.inner.DeleteShift(ctx, id) })
}

func (s *Store) ListShifts(ctx context.Context, f core.ShiftFilter) ([]core.PlannedShift, error) {
	return call(ctx, s, "list shifts", func(ctx context.Context) ([]core.PlannedShift, error) { return s.inner.ListShifts(ctx, f) })
}

func (s *Store) InsertAttendance(ctx context.Context, a *core.Attendance) error {
	return exec(ctx, s, "insert attendance", func(ctx context.Context) error { return s.inner.InsertAttendance(ctx, a) })
}

func (s *Store) GetAttendance(ctx context.Context, id core.AttendanceID) (core.Attendance, error) {
	return call(ctx, s, "get attendance", func(ctx context.Context) (core.Attendance, error) { return s.inner.GetAttendance(ctx, id) })
}

func (s *Store) DeleteAttendance(ctx context.Context, id core.AttendanceID) error {
	return exec(ctx, s, "delete attendance", func(ctx context.Context) error { return s.inner.DeleteAttendance(ctx, id) })
}

func (s *Store) ListAttendance(ctx context.Context, f core.AttendanceFilter) ([]core.Attendance, error) {
	return call(ctx, s, "list attendance", func(ctx context.Context) ([]core.Attendance, error) { return s.inner.ListAttendance(ctx, f) })
}

type firstDate struct {
	date core.Date
	ok   bool
}

func (s *Store) FirstAttendanceDate(ctx context.Context, employee core.EmployeeID) (core.Date, bool, error) {
	r, err := call(ctx, s, "first attendance", func(ctx context.Context) (firstDate, error) {
		d, ok, err := s.inner.FirstAttendanceDate(ctx, employee)
		return firstDate{d, ok}, err
	})
	return r.date, r.ok, err
}

type latest struct {
	balance core.MonthBalance
	ok      bool
}

func (s *Store) LatestBalance(ctx context.Context, employee core.EmployeeID, before core.YearMonth) (core.MonthBalance, bool, error) {
	r, err := call(ctx, s, "latest balance", func(ctx context.Context) (latest, error) {
		b, ok, err := s.inner.LatestBalance(ctx, employee, before)
		return latest{b, ok}, err
	})
	return r.balance, r.ok, err
}

func (s *Store) SaveBalance(ctx context.Context, b core.MonthBalance) error {
	return exec(ctx, s, "save balance", func(ctx context.Context) error { return s.inner.SaveBalance(ctx, b) })
}

func (s *Store) InvalidateBalances(ctx context.Context, employee core.EmployeeID, from core.YearMonth) error {
	return exec(ctx, s, "invalidate balances", func(ctx context.Context) error { return s.inner.InvalidateBalances(ctx, employee, from) })
}

func (s *Store) AppendAudit(ctx context.Context, e core.AuditEntry) error {
	return exec(ctx, s, "append audit", func(ctx context.Context) error { return s.inner.AppendAudit(ctx, e) })
}

func (s *Store) ListAudit(ctx context.Context, f core.AuditFilter) ([]core.AuditEntry, error) {
	return call(ctx, s, "list audit", func(ctx context.Context) ([]core.AuditEntry, error) { return s.inner.ListAudit(ctx, f) })
}
