// Package store provides Store implementations.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/warp/worktrack/core"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu    sync.RWMutex
	state *memoryState
}

type balanceKey struct {
	EmployeeID core.EmployeeID
	Month      int
}

type memoryState struct {
	shifts         map[core.ShiftID]core.PlannedShift
	attendance     map[core.AttendanceID]core.Attendance
	balances       map[balanceKey]core.MonthBalance
	audit          []core.AuditEntry
	nextShift      core.ShiftID
	nextAttendance core.AttendanceID
}

func NewMemory() *Memory {
	return &Memory{state: &memoryState{
		shifts:     make(map[core.ShiftID]core.PlannedShift),
		attendance: make(map[core.AttendanceID]core.Attendance),
		balances:   make(map[balanceKey]core.MonthBalance),
	}}
}

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
func (m *Memory) WithTx(ctx context.Context, fn func(core.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.state.clone()
	if err := fn(m.state); err != nil {
		m.state = snapshot
		return err
	}
	return nil
}

func (s *memoryState) clone() *memoryState {
	c := &memoryState{
		shifts:         make(map[core.ShiftID]core.PlannedShift, len(s.shifts)),
		attendance:     make(map[core.AttendanceID]core.Attendance, len(s.attendance)),
		balances:       make(map[balanceKey]core.MonthBalance, len(s.balances)),
		audit:          append([]core.AuditEntry{}, s.audit...),
		nextShift:      s.nextShift,
		nextAttendance: s.nextAttendance,
	}
	for k, v := range s.shifts {
		c.shifts[k] = v
	}
	for k, v := range s.attendance {
		c.attendance[k] = v
	}
	for k, v := range s.balances {
		c.balances[k] = v
	}
	return c
}

// =============================================================================
// LOCKED ENTRY POINTS (core.Store outside a transaction)
// =============================================================================

func (m *Memory) InsertShift(ctx context.Context, sh *core.PlannedShift) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.InsertShift(ctx, sh)
}

func (m *Memory) UpdateShift(ctx context.Context, sh *core.PlannedShift) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.UpdateShift(ctx, sh)
}

func (m *Memory) GetShift(ctx context.Context, id core.ShiftID) (core.PlannedShift, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.GetShift(ctx, id)
}

func (m *Memory) DeleteShift(ctx context.Context, id core.ShiftID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.DeleteShift(ctx, id)
}

func (m *Memory) ListShifts(ctx context.Context, f core.ShiftFilter) ([]core.PlannedShift, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.ListShifts(ctx, f)
}

func (m *Memory) InsertAttendance(ctx context.Context, a *core.Attendance) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.InsertAttendance(ctx, a)
}

func (m *Memory) GetAttendance(ctx context.Context, id core.AttendanceID) (core.Attendance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.GetAttendance(ctx, id)
}

func (m *Memory) DeleteAttendance(ctx context.Context, id core.AttendanceID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.DeleteAttendance(ctx, id)
}

func (m *Memory) ListAttendance(ctx context.Context, f core.AttendanceFilter) ([]core.Attendance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.ListAttendance(ctx, f)
}

func (m *Memory) FirstAttendanceDate(ctx context.Context, employee core.EmployeeID) (core.Date, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.FirstAttendanceDate(ctx, employee)
}

func (m *Memory) LatestBalance(ctx context.Context, employee core.EmployeeID, before core.YearMonth) (core.MonthBalance, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.LatestBalance(ctx, employee, before)
}

func (m *Memory) SaveBalance(ctx context.Context, b core.MonthBalance) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.SaveBalance(ctx, b)
}

func (m *Memory) InvalidateBalances(ctx context.Context, employee core.EmployeeID, from core.YearMonth) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.InvalidateBalances(ctx, employee, from)
}

func (m *Memory) AppendAudit(ctx context.Context, e core.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.AppendAudit(ctx, e)
}

func (m *Memory) ListAudit(ctx context.Context, f core.AuditFilter) ([]core.AuditEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.ListAudit(ctx, f)
}

// =============================================================================
// UNLOCKED STATE (also the transactional view)
// =============================================================================

func (s *memoryState) InsertShift(_ context.Context, sh *core.PlannedShift) error {
	s.nextShift++
	now := time.Now().UTC()
	sh.ID = s.nextShift
	sh.Version = 1
	sh.CreatedAt, sh.UpdatedAt = now, now
	if sh.Exchange == nil {
		sh.Exchange = core.NoExchange{}
	}
	s.shifts[sh.ID] = *sh
	return nil
}

func (s *memoryState) UpdateShift(_ context.Context, sh *core.PlannedShift) error {
	cur, ok := s.shifts[sh.ID]
	if !ok {
		return core.NotFound("shift", int64(sh.ID))
	}
	if cur.Version != sh.Version {
		return core.ErrVersionConflict
	}
	sh.Version++
	sh.UpdatedAt = time.Now().UTC()
	s.shifts[sh.ID] = *sh
	return nil
}

func (s *memoryState) GetShift(_ context.Context, id core.ShiftID) (core.PlannedShift, error) {
	sh, ok := s.shifts[id]
	if !ok {
		return core.PlannedShift{}, core.NotFound("shift", int64(id))
	}
	return sh, nil
}

func (s *memoryState) DeleteShift(_ context.Context, id core.ShiftID) error {
	if _, ok := s.shifts[id]; !ok {
		return core.NotFound("shift", int64(id))
	}
	delete(s.shifts, id)
	return nil
}

func (s *memoryState) ListShifts(_ context.Context, f core.ShiftFilter) ([]core.PlannedShift, error) {
	var out []core.PlannedShift
	for _, sh := range s.shifts {
		if sh.Hidden && !f.IncludeHidden {
			continue
		}
		if f.EmployeeID != nil && sh.EmployeeID != *f.EmployeeID {
			continue
		}
		if !inRange(sh.Date, f.From, f.To) {
			continue
		}
		out = append(out, sh)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		if a.Start != b.Start {
			return a.Start < b.Start
		}
		return a.ID < b.ID
	})
	return out, nil
}

func (s *memoryState) InsertAttendance(_ context.Context, a *core.Attendance) error {
	s.nextAttendance++
	a.ID = s.nextAttendance
	a.CreatedAt = time.Now().UTC()
	s.attendance[a.ID] = *a
	return nil
}

func (s *memoryState) GetAttendance(_ context.Context, id core.AttendanceID) (core.Attendance, error) {
	a, ok := s.attendance[id]
	if !ok {
		return core.Attendance{}, core.NotFound("attendance", int64(id))
	}
	return a, nil
}

func (s *memoryState) DeleteAttendance(_ context.Context, id core.AttendanceID) error {
	if _, ok := s.attendance[id]; !ok {
		return core.NotFound("attendance", int64(id))
	}
	delete(s.attendance, id)
	return nil
}

func (s *memoryState) ListAttendance(_ context.Context, f core.AttendanceFilter) ([]core.Attendance, error) {
	var out []core.Attendance
	for _, a := range s.attendance {
		if f.EmployeeID != nil && a.EmployeeID != *f.EmployeeID {
			continue
		}
		if !inRange(a.Date, f.From, f.To) {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		if a.Start != b.Start {
			return a.Start < b.Start
		}
		return a.ID < b.ID
	})
	return out, nil
}

func (s *memoryState) FirstAttendanceDate(_ context.Context, employee core.EmployeeID) (core.Date, bool, error) {
	var first core.Date
	found := false
	for _, a := range s.attendance {
		if a.EmployeeID != employee {
			continue
		}
		if !found || a.Date.Before(first) {
			first, found = a.Date, true
		}
	}
	return first, found, nil
}

func (s *memoryState) LatestBalance(_ context.Context, employee core.EmployeeID, before core.YearMonth) (core.MonthBalance, bool, error) {
	var best core.MonthBalance
	found := false
	for k, b := range s.balances {
		if k.EmployeeID != employee || k.Month >= before.Index() {
			continue
		}
		if !found || k.Month > best.Month.Index() {
			best, found = b, true
		}
	}
	return best, found, nil
}

func (s *memoryState) SaveBalance(_ context.Context, b core.MonthBalance) error {
	s.balances[balanceKey{EmployeeID: b.EmployeeID, Month: b.Month.Index()}] = b
	return nil
}

func (s *memoryState) InvalidateBalances(_ context.Context, employee core.EmployeeID, from core.YearMonth) error {
	for k := range s.balances {
		if k.EmployeeID == employee && k.Month >= from.Index() {
			delete(s.balances, k)
		}
	}
	return nil
}

func (s *memoryState) AppendAudit(_ context.Context, e core.AuditEntry) error {
	s.audit = append(s.audit, e)
	return nil
}

func (s *memoryState) ListAudit(_ context.Context, f core.AuditFilter) ([]core.AuditEntry, error) {
	var out []core.AuditEntry
	for _, e := range s.audit {
		if f.ShiftID != nil && e.ShiftID != *f.ShiftID {
			continue
		}
		if f.EmployeeID != nil && e.EmployeeID != *f.EmployeeID {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func inRange(d, from, to core.Date) bool {
	if !from.IsZero() && d.Before(from) {
		return false
	}
	if !to.IsZero() && d.After(to) {
		return false
	}
	return true
}
