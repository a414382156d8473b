/*
Package sqlite provides a SQLite-backed implementation of core.TxStore.

PURPOSE:
  Persists planned shifts, attendance, cached month balances and the audit
  log. Every service operation runs inside WithTx, so a check-then-write
  sequence (overlap check then insert, pending check then decide) sees
  and commits one consistent state.

KEY TABLES:
  planned_shifts:  The plan, with flags, exchange state and version
  attendance:      Recorded work, optionally linked to a plan
  month_balances:  Ledger cache, one running total per employee and month
  audit_log:       Append-only record of every write

INDEXES:
  - idx_shifts_employee_date: overlap checks and month listings (hot path)
  - idx_attendance_employee_date: summaries and missing-attendance check
  - idx_audit_shift: per-shift audit trail

CONCURRENCY:
  SQLite has a single writer. The Store serializes every operation on a
  one-slot semaphore and keeps one open connection, so an in-memory
  database is shared and a transaction never waits on itself. Waiting for
  the slot honours ctx: a caller whose deadline passes gets a retryable
  StoreUnavailableError instead of blocking. The queries handed to WithTx
  callbacks run on the *sql.Tx and never take the slot.

ERRORS:
  sql.ErrNoRows becomes core.NotFoundError. SQLITE_BUSY / SQLITE_LOCKED and
  context deadlines become core.StoreUnavailableError (retryable).

TRACING:
  The connection is opened through otelsql, so every query is a span when
  a tracer provider is installed (see telemetry/).

USAGE:
  store, err := sqlite.New("./data/worktrack.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - core/store.go: Interface definitions
  - core/store/memory.go: In-memory implementation for testing
  - store/resilient: timeout and circuit breaker around this store
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/XSAM/otelsql"
	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"

	"github.com/warp/worktrack/core"
)

// Store implements core.TxStore using SQLite.
type Store struct {
	db  *sql.DB
	sem chan struct{} // one slot; held for a call or a whole transaction
}

var _ core.TxStore = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := otelsql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000",
		otelsql.WithAttributes(semconv.DBSystemSqlite),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{db: db, sem: make(chan struct{}, 1)}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the connection; used by the health endpoint.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return mapErr("ping", err)
	}
	return nil
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS planned_shifts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		employee_id INTEGER NOT NULL,
		date TEXT NOT NULL,
		shift_type_id INTEGER NOT NULL,
		start_time TEXT NOT NULL,
		end_time TEXT NOT NULL,
		note TEXT NOT NULL DEFAULT '',
		hidden INTEGER NOT NULL DEFAULT 0,
		transferred INTEGER NOT NULL DEFAULT 0,
		is_changed INTEGER NOT NULL DEFAULT 0,
		change_reason_id INTEGER,
		manager_note TEXT NOT NULL DEFAULT '',
		exchange_status TEXT NOT NULL DEFAULT 'none',
		exchange_target INTEGER,
		exchange_from INTEGER,
		exchange_reason INTEGER,
		exchange_actor INTEGER,
		exchange_at TEXT,
		version INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_shifts_employee_date
		ON planned_shifts(employee_id, date);
	CREATE INDEX IF NOT EXISTS idx_shifts_date
		ON planned_shifts(date);

	CREATE TABLE IF NOT EXISTS attendance (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		employee_id INTEGER NOT NULL,
		date TEXT NOT NULL,
		shift_type_id INTEGER,
		start_time TEXT NOT NULL,
		end_time TEXT NOT NULL,
		planned_shift_id INTEGER,
		change_reason_id INTEGER,
		note TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_attendance_employee_date
		ON attendance(employee_id, date);

	-- Ledger cache; month is year*12 + month-1
	CREATE TABLE IF NOT EXISTS month_balances (
		employee_id INTEGER NOT NULL,
		month INTEGER NOT NULL,
		total TEXT NOT NULL,
		fingerprint TEXT NOT NULL DEFAULT '',
		computed_at TEXT NOT NULL,
		PRIMARY KEY (employee_id, month)
	);

	CREATE TABLE IF NOT EXISTS audit_log (
		id TEXT PRIMARY KEY,
		at TEXT NOT NULL,
		actor_id INTEGER NOT NULL,
		action TEXT NOT NULL,
		shift_id INTEGER,
		employee_id INTEGER,
		payload_json TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_audit_shift
		ON audit_log(shift_id);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return err
	}

	// Databases created before the fingerprint column existed.
	_, err := s.db.Exec(`ALTER TABLE month_balances ADD COLUMN fingerprint TEXT NOT NULL DEFAULT ''`)
	if err != nil && !strings.Contains(err.Error(), "duplicate column name") {
		return err
	}
	return nil
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store core.Store) error) error {
	if err := s.acquire(ctx, "begin transaction"); err != nil {
		return err
	}
	defer s.release()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return mapErr("begin transaction", err)
	}
	defer sqlTx.Rollback()

	if err := fn(queries{db: sqlTx}); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return mapErr("commit", err)
	}
	return nil
}

// dbtx is the part of *sql.DB and *sql.Tx the queries need.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// queries implements core.Store on a connection or a transaction.
type queries struct {
	db dbtx
}

func (s *Store) q() queries { return queries{db: s.db} }

// =============================================================================
// LOCKED ENTRY POINTS
// =============================================================================

// acquire takes the store-wide slot or gives up when ctx ends.
func (s *Store) acquire(ctx context.Context, op string) error {
	select {
	case s.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return core.Unavailable(op, ctx.Err())
	}
}

func (s *Store) release() { <-s.sem }

func (s *Store) InsertShift(ctx context.Context, sh *core.PlannedShift) error {
	if err := s.acquire(ctx, "insert shift"); err != nil {
		return err
	}
	defer s.release()
	return s.q().InsertShift(ctx, sh)
}

func (s *Store) UpdateShift(ctx context.Context, sh *core.PlannedShift) error {
	if err := s.acquire(ctx, "update shift"); err != nil {
		return err
	}
	defer s.release()
	return s.q().UpdateShift(ctx, sh)
}

func (s *Store) GetShift(ctx context.Context, id core.ShiftID) (core.PlannedShift, error) {
	if err := s.acquire(ctx, "get shift"); err != nil {
		return core.PlannedShift{}, err
	}
	defer s.release()
	return s.q().GetShift(ctx, id)
}

func (s *Store) DeleteShift(ctx context.Context, id core.ShiftID) error {
	if err := s.acquire(ctx, "delete shift"); err != nil {
		return err
	}
	defer s.release()
	return s.q().DeleteShift(ctx, id)
}

func (s *Store) ListShifts(ctx context.Context, f core.ShiftFilter) ([]core.PlannedShift, error) {
	if err := s.acquire(ctx, "list shifts"); err != nil {
		return nil, err
	}
	defer s.release()
	return s.q().ListShifts(ctx, f)
}

func (s *Store) InsertAttendance(ctx context.Context, a *core.Attendance) error {
	if err := s.acquire(ctx, "insert attendance"); err != nil {
		return err
	}
	defer s.release()
	return s.q().InsertAttendance(ctx, a)
}

func (s *Store) GetAttendance(ctx context.Context, id core.AttendanceID) (core.Attendance, error) {
	if err := s.acquire(ctx, "get attendance"); err != nil {
		return core.Attendance{}, err
	}
	defer s.release()
	return s.q().GetAttendance(ctx, id)
}

func (s *Store) DeleteAttendance(ctx context.Context, id core.AttendanceID) error {
	if err := s.acquire(ctx, "delete attendance"); err != nil {
		return err
	}
	defer s.release()
	return s.q().DeleteAttendance(ctx, id)
}

func (s *Store) ListAttendance(ctx context.Context, f core.AttendanceFilter) ([]core.Attendance, error) {
	if err := s.acquire(ctx, "list attendance"); err != nil {
		return nil, err
	}
	defer s.release()
	return s.q().ListAttendance(ctx, f)
}

func (s *Store) FirstAttendanceDate(ctx context.Context, employee core.EmployeeID) (core.Date, bool, error) {
	if err := s.acquire(ctx, "first attendance"); err != nil {
		return core.Date{}, false, err
	}
	defer s.release()
	return s.q().FirstAttendanceDate(ctx, employee)
}

func (s *Store) LatestBalance(ctx context.Context, employee core.EmployeeID, before core.YearMonth) (core.MonthBalance, bool, error) {
	if err := s.acquire(ctx, "latest balance"); err != nil {
		return core.MonthBalance{}, false, err
	}
	defer s.release()
	return s.q().LatestBalance(ctx, employee, before)
}

func (s *Store) SaveBalance(ctx context.Context, b core.MonthBalance) error {
	if err := s.acquire(ctx, "save balance"); err != nil {
		return err
	}
	defer s.release()
	return s.q().SaveBalance(ctx, b)
}

func (s *Store) InvalidateBalances(ctx context.Context, employee core.EmployeeID, from core.YearMonth) error {
	if err := s.acquire(ctx, "invalidate balances"); err != nil {
		return err
	}
	defer s.release()
	return s.q().InvalidateBalances(ctx, employee, from)
}

func (s *Store) AppendAudit(ctx context.Context, e core.AuditEntry) error {
	if err := s.acquire(ctx, "append audit"); err != nil {
		return err
	}
	defer s.release()
	return s.q().AppendAudit(ctx, e)
}

func (s *Store) ListAudit(ctx context.Context, f core.AuditFilter) ([]core.AuditEntry, error) {
	if err := s.acquire(ctx, "list audit"); err != nil {
		return nil, err
	}
	defer s.release()
	return s.q().ListAudit(ctx, f)
}

// =============================================================================
// SHIFTS
// =============================================================================

const shiftColumns = `id, employee_id, date, shift_type_id, start_time, end_time, note,
	hidden, transferred, is_changed, change_reason_id, manager_note,
	exchange_status, exchange_target, exchange_from, exchange_reason, exchange_actor, exchange_at,
	version, created_at, updated_at`

func (q queries) InsertShift(ctx context.Context, sh *core.PlannedShift) error {
	now := time.Now().UTC()
	ex := exchangeColumns(sh.Exchange)

	res, err := q.db.ExecContext(ctx, `
		INSERT INTO planned_shifts
		(employee_id, date, shift_type_id, start_time, end_time, note,
		 hidden, transferred, is_changed, change_reason_id, manager_note,
		 exchange_status, exchange_target, exchange_from, exchange_reason, exchange_actor, exchange_at,
		 version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)
	`,
		sh.EmployeeID, sh.Date.String(), sh.ShiftTypeID, sh.Start.String(), sh.End.String(), sh.Note,
		sh.Hidden, sh.Transferred, sh.IsChanged, nullID(sh.ChangeReasonID), sh.ManagerNote,
		ex.status, ex.target, ex.from, ex.reason, ex.actor, ex.at,
		formatTime(now), formatTime(now),
	)
	if err != nil {
		return mapErr("insert shift", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return mapErr("insert shift", err)
	}

	sh.ID = core.ShiftID(id)
	sh.Version = 1
	sh.CreatedAt, sh.UpdatedAt = now, now
	if sh.Exchange == nil {
		sh.Exchange = core.NoExchange{}
	}
	return nil
}

func (q queries) UpdateShift(ctx context.Context, sh *core.PlannedShift) error {
	now := time.Now().UTC()
	ex := exchangeColumns(sh.Exchange)

	res, err := q.db.ExecContext(ctx, `
		UPDATE planned_shifts SET
			employee_id = ?, date = ?, shift_type_id = ?, start_time = ?, end_time = ?, note = ?,
			hidden = ?, transferred = ?, is_changed = ?, change_reason_id = ?, manager_note = ?,
			exchange_status = ?, exchange_target = ?, exchange_from = ?, exchange_reason = ?,
			exchange_actor = ?, exchange_at = ?,
			version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?
	`,
		sh.EmployeeID, sh.Date.String(), sh.ShiftTypeID, sh.Start.String(), sh.End.String(), sh.Note,
		sh.Hidden, sh.Transferred, sh.IsChanged, nullID(sh.ChangeReasonID), sh.ManagerNote,
		ex.status, ex.target, ex.from, ex.reason, ex.actor, ex.at,
		formatTime(now),
		sh.ID, sh.Version,
	)
	if err != nil {
		return mapErr("update shift", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return mapErr("update shift", err)
	}
	if n == 0 {
		if _, err := q.GetShift(ctx, sh.ID); err != nil {
			return err
		}
		return core.ErrVersionConflict
	}

	sh.Version++
	sh.UpdatedAt = now
	return nil
}

func (q queries) GetShift(ctx context.Context, id core.ShiftID) (core.PlannedShift, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+shiftColumns+` FROM planned_shifts WHERE id = ?`, id)
	sh, err := scanShift(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.PlannedShift{}, core.NotFound("shift", int64(id))
	}
	if err != nil {
		return core.PlannedShift{}, mapErr("get shift", err)
	}
	return sh, nil
}

func (q queries) DeleteShift(ctx context.Context, id core.ShiftID) error {
	res, err := q.db.ExecContext(ctx, `DELETE FROM planned_shifts WHERE id = ?`, id)
	if err != nil {
		return mapErr("delete shift", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.NotFound("shift", int64(id))
	}
	return nil
}

func (q queries) ListShifts(ctx context.Context, f core.ShiftFilter) ([]core.PlannedShift, error) {
	var where []string
	var args []any
	if f.EmployeeID != nil {
		where, args = append(where, "employee_id = ?"), append(args, *f.EmployeeID)
	}
	if !f.From.IsZero() {
		where, args = append(where, "date >= ?"), append(args, f.From.String())
	}
	if !f.To.IsZero() {
		where, args = append(where, "date <= ?"), append(args, f.To.String())
	}
	if !f.IncludeHidden {
		where = append(where, "hidden = 0")
	}

	query := `SELECT ` + shiftColumns + ` FROM planned_shifts` + whereClause(where) + ` ORDER BY date, start_time, id`
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapErr("list shifts", err)
	}
	defer rows.Close()

	var shifts []core.PlannedShift
	for rows.Next() {
		sh, err := scanShift(rows)
		if err != nil {
			return nil, mapErr("scan shift", err)
		}
		shifts = append(shifts, sh)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr("list shifts", err)
	}
	return shifts, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanShift(row scanner) (core.PlannedShift, error) {
	var (
		sh                         core.PlannedShift
		date, start, end           string
		reason                     sql.NullInt64
		exStatus                   string
		exTarget, exFrom, exReason sql.NullInt64
		exActor                    sql.NullInt64
		exAt                       sql.NullString
		createdAt, updatedAt       string
	)
	err := row.Scan(
		&sh.ID, &sh.EmployeeID, &date, &sh.ShiftTypeID, &start, &end, &sh.Note,
		&sh.Hidden, &sh.Transferred, &sh.IsChanged, &reason, &sh.ManagerNote,
		&exStatus, &exTarget, &exFrom, &exReason, &exActor, &exAt,
		&sh.Version, &createdAt, &updatedAt,
	)
	if err != nil {
		return core.PlannedShift{}, err
	}

	if sh.Date, err = core.ParseDate(date); err != nil {
		return core.PlannedShift{}, fmt.Errorf("shift %d date: %w", sh.ID, err)
	}
	if sh.Start, err = core.ParseClock(start); err != nil {
		return core.PlannedShift{}, fmt.Errorf("shift %d start: %w", sh.ID, err)
	}
	if sh.End, err = core.ParseClock(end); err != nil {
		return core.PlannedShift{}, fmt.Errorf("shift %d end: %w", sh.ID, err)
	}
	if reason.Valid {
		r := core.ReasonID(reason.Int64)
		sh.ChangeReasonID = &r
	}

	rec := core.ExchangeRecord{
		Status: core.ExchangeStatus(exStatus),
		Target: core.EmployeeID(exTarget.Int64),
		From:   core.EmployeeID(exFrom.Int64),
		Reason: core.ReasonID(exReason.Int64),
		Actor:  core.EmployeeID(exActor.Int64),
	}
	if exAt.Valid {
		rec.At = parseTime(exAt.String)
	}
	if sh.Exchange, err = core.DecodeExchange(rec); err != nil {
		return core.PlannedShift{}, fmt.Errorf("shift %d exchange: %w", sh.ID, err)
	}

	sh.CreatedAt = parseTime(createdAt)
	sh.UpdatedAt = parseTime(updatedAt)
	return sh, nil
}

type exchangeRow struct {
	status                      string
	target, from, reason, actor sql.NullInt64
	at                          sql.NullString
}

func exchangeColumns(st core.ExchangeState) exchangeRow {
	if st == nil {
		st = core.NoExchange{}
	}
	rec := core.EncodeExchange(st)
	row := exchangeRow{
		status: string(rec.Status),
		target: nullInt(int64(rec.Target)),
		from:   nullInt(int64(rec.From)),
		reason: nullInt(int64(rec.Reason)),
		actor:  nullInt(int64(rec.Actor)),
	}
	if !rec.At.IsZero() {
		row.at = sql.NullString{String: formatTime(rec.At), Valid: true}
	}
	return row
}

// =============================================================================
// ATTENDANCE
// =============================================================================

const attendanceColumns = `id, employee_id, date, shift_type_id, start_time, end_time,
	planned_shift_id, change_reason_id, note, created_at`

func (q queries) InsertAttendance(ctx context.Context, a *core.Attendance) error {
	now := time.Now().UTC()
	var shiftType, plan, reason sql.NullInt64
	if a.ShiftTypeID != nil {
		shiftType = nullInt(int64(*a.ShiftTypeID))
	}
	if a.PlannedShiftID != nil {
		plan = nullInt(int64(*a.PlannedShiftID))
	}
	reason = nullID(a.ChangeReasonID)

	res, err := q.db.ExecContext(ctx, `
		INSERT INTO attendance
		(employee_id, date, shift_type_id, start_time, end_time, planned_shift_id, change_reason_id, note, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		a.EmployeeID, a.Date.String(), shiftType, a.Start.String(), a.End.String(),
		plan, reason, a.Note, formatTime(now),
	)
	if err != nil {
		return mapErr("insert attendance", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return mapErr("insert attendance", err)
	}
	a.ID = core.AttendanceID(id)
	a.CreatedAt = now
	return nil
}

func (q queries) GetAttendance(ctx context.Context, id core.AttendanceID) (core.Attendance, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+attendanceColumns+` FROM attendance WHERE id = ?`, id)
	a, err := scanAttendance(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Attendance{}, core.NotFound("attendance", int64(id))
	}
	if err != nil {
		return core.Attendance{}, mapErr("get attendance", err)
	}
	return a, nil
}

func (q queries) DeleteAttendance(ctx context.Context, id core.AttendanceID) error {
	res, err := q.db.ExecContext(ctx, `DELETE FROM attendance WHERE id = ?`, id)
	if err != nil {
		return mapErr("delete attendance", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.NotFound("attendance", int64(id))
	}
	return nil
}

func (q queries) ListAttendance(ctx context.Context, f core.AttendanceFilter) ([]core.Attendance, error) {
	var where []string
	var args []any
	if f.EmployeeID != nil {
		where, args = append(where, "employee_id = ?"), append(args, *f.EmployeeID)
	}
	if !f.From.IsZero() {
		where, args = append(where, "date >= ?"), append(args, f.From.String())
	}
	if !f.To.IsZero() {
		where, args = append(where, "date <= ?"), append(args, f.To.String())
	}

	query := `SELECT ` + attendanceColumns + ` FROM attendance` + whereClause(where) + ` ORDER BY date, start_time, id`
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapErr("list attendance", err)
	}
	defer rows.Close()

	var out []core.Attendance
	for rows.Next() {
		a, err := scanAttendance(rows)
		if err != nil {
			return nil, mapErr("scan attendance", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr("list attendance", err)
	}
	return out, nil
}

func (q queries) FirstAttendanceDate(ctx context.Context, employee core.EmployeeID) (core.Date, bool, error) {
	var first sql.NullString
	err := q.db.QueryRowContext(ctx, `SELECT MIN(date) FROM attendance WHERE employee_id = ?`, employee).Scan(&first)
	if err != nil {
		return core.Date{}, false, mapErr("first attendance", err)
	}
	if !first.Valid {
		return core.Date{}, false, nil
	}
	d, err := core.ParseDate(first.String)
	if err != nil {
		return core.Date{}, false, fmt.Errorf("first attendance date: %w", err)
	}
	return d, true, nil
}

func scanAttendance(row scanner) (core.Attendance, error) {
	var (
		a                       core.Attendance
		date, start, end        string
		shiftType, plan, reason sql.NullInt64
		createdAt               string
	)
	err := row.Scan(&a.ID, &a.EmployeeID, &date, &shiftType, &start, &end, &plan, &reason, &a.Note, &createdAt)
	if err != nil {
		return core.Attendance{}, err
	}
	if a.Date, err = core.ParseDate(date); err != nil {
		return core.Attendance{}, fmt.Errorf("attendance %d date: %w", a.ID, err)
	}
	if a.Start, err = core.ParseClock(start); err != nil {
		return core.Attendance{}, fmt.Errorf("attendance %d start: %w", a.ID, err)
	}
	if a.End, err = core.ParseClock(end); err != nil {
		return core.Attendance{}, fmt.Errorf("attendance %d end: %w", a.ID, err)
	}
	if shiftType.Valid {
		t := core.ShiftTypeID(shiftType.Int64)
		a.ShiftTypeID = &t
	}
	if plan.Valid {
		p := core.ShiftID(plan.Int64)
		a.PlannedShiftID = &p
	}
	if reason.Valid {
		r := core.ReasonID(reason.Int64)
		a.ChangeReasonID = &r
	}
	a.CreatedAt = parseTime(createdAt)
	return a, nil
}

// =============================================================================
// BALANCE CACHE
// =============================================================================

func (q queries) LatestBalance(ctx context.Context, employee core.EmployeeID, before core.YearMonth) (core.MonthBalance, bool, error) {
	var (
		month                          int
		total, fingerprint, computedAt string
	)
	err := q.db.QueryRowContext(ctx, `
		SELECT month, total, fingerprint, computed_at FROM month_balances
		WHERE employee_id = ? AND month < ?
		ORDER BY month DESC LIMIT 1
	`, employee, before.Index()).Scan(&month, &total, &fingerprint, &computedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.MonthBalance{}, false, nil
	}
	if err != nil {
		return core.MonthBalance{}, false, mapErr("latest balance", err)
	}

	value, err := decimal.NewFromString(total)
	if err != nil {
		return core.MonthBalance{}, false, fmt.Errorf("balance %d/%d: %w", employee, month, err)
	}
	return core.MonthBalance{
		EmployeeID:  employee,
		Month:       monthFromIndex(month),
		Total:       value,
		Fingerprint: fingerprint,
		ComputedAt:  parseTime(computedAt),
	}, true, nil
}

func (q queries) SaveBalance(ctx context.Context, b core.MonthBalance) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO month_balances (employee_id, month, total, fingerprint, computed_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(employee_id, month) DO UPDATE SET
			total = excluded.total,
			fingerprint = excluded.fingerprint,
			computed_at = excluded.computed_at
	`, b.EmployeeID, b.Month.Index(), b.Total.String(), b.Fingerprint, formatTime(b.ComputedAt))
	if err != nil {
		return mapErr("save balance", err)
	}
	return nil
}

func (q queries) InvalidateBalances(ctx context.Context, employee core.EmployeeID, from core.YearMonth) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM month_balances WHERE employee_id = ? AND month >= ?`, employee, from.Index())
	if err != nil {
		return mapErr("invalidate balances", err)
	}
	return nil
}

func monthFromIndex(i int) core.YearMonth {
	return core.YearMonth{Year: i / 12, Month: time.Month(i%12 + 1)}
}

// =============================================================================
// AUDIT LOG
// =============================================================================

func (q queries) AppendAudit(ctx context.Context, e core.AuditEntry) error {
	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return fmt.Errorf("encode audit payload: %w", err)
	}
	_, err = q.db.ExecContext(ctx, `
		INSERT INTO audit_log (id, at, actor_id, action, shift_id, employee_id, payload_json)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, e.ID, formatTime(e.At), e.ActorID, string(e.Action), nullInt(int64(e.ShiftID)), nullInt(int64(e.EmployeeID)), string(payload))
	if err != nil {
		return mapErr("append audit", err)
	}
	return nil
}

func (q queries) ListAudit(ctx context.Context, f core.AuditFilter) ([]core.AuditEntry, error) {
	var where []string
	var args []any
	if f.ShiftID != nil {
		where, args = append(where, "shift_id = ?"), append(args, *f.ShiftID)
	}
	if f.EmployeeID != nil {
		where, args = append(where, "employee_id = ?"), append(args, *f.EmployeeID)
	}

	rows, err := q.db.QueryContext(ctx, `
		SELECT id, at, actor_id, action, shift_id, employee_id, payload_json
		FROM audit_log`+whereClause(where)+` ORDER BY at, id`, args...)
	if err != nil {
		return nil, mapErr("list audit", err)
	}
	defer rows.Close()

	var out []core.AuditEntry
	for rows.Next() {
		var (
			e               core.AuditEntry
			at, action      string
			shift, employee sql.NullInt64
			payload         sql.NullString
		)
		if err := rows.Scan(&e.ID, &at, &e.ActorID, &action, &shift, &employee, &payload); err != nil {
			return nil, mapErr("scan audit", err)
		}
		e.At = parseTime(at)
		e.Action = core.AuditAction(action)
		e.ShiftID = core.ShiftID(shift.Int64)
		e.EmployeeID = core.EmployeeID(employee.Int64)
		if payload.Valid && payload.String != "" && payload.String != "null" {
			if err := json.Unmarshal([]byte(payload.String), &e.Payload); err != nil {
				return nil, fmt.Errorf("decode audit payload %s: %w", e.ID, err)
			}
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr("list audit", err)
	}
	return out, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func whereClause(conds []string) string {
	if len(conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(conds, " AND ")
}

func nullInt(v int64) sql.NullInt64 {
	if v == 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: v, Valid: true}
}

func nullID(id *core.ReasonID) sql.NullInt64 {
	if id == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*id), Valid: true}
}

// timeLayout has a fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(timeLayout, s)
	return t
}

// mapErr classifies driver errors. Busy and locked databases and expired
// deadlines are transient; everything else is wrapped as is.
func mapErr(op string, err error) error {
	var se sqlite3.Error
	if errors.As(err, &se) && (se.Code == sqlite3.ErrBusy || se.Code == sqlite3.ErrLocked) {
		return core.Unavailable(op, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return core.Unavailable(op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
