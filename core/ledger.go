/*
ledger.go - Forward-computed, cached month balances

PURPOSE:
  A month's opening balance is the closing total of the month before it,
  which is recursive all the way back to the employee's first month. The
  Ledger turns that recursion into a forward walk over a persisted table
  of month totals: a query resumes from the newest cached month before the
  requested one, computes the missing months in ascending order and stores
  each total. Repeated queries cost one lookup.

CRITICAL INVARIANTS:
  1. total(M) == opening(M) + diff(M)
  2. opening(M+1) == total(M) while nothing in M or earlier changes
  3. Any write touching month M must call Invalidate(employee, M)

SEED:
  The chain starts at Seed.Start with Seed.Initial (the employee's
  initial_hours_balance). Months before the start carry the initial value.

FINGERPRINT:
  Seed.Fingerprint names every input of the chain that lives outside the
  plan (initial balance, shift type durations, fund rules). Each cached
  total stores it; a cached total with another fingerprint is ignored and
  the chain is recomputed from the start, overwriting the stale rows.

SEE ALSO:
  - store.go: BalanceStore
  - balance/aggregator.go: supplies the per-month diff
*/
package core

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Seed anchors the chain for one employee.
type Seed struct {
	Start       YearMonth
	HasStart    bool
	Initial     decimal.Decimal
	Fingerprint string
}

// MonthDiff computes worked-minus-fund for a single month.
type MonthDiff func(ctx context.Context, ym YearMonth) (decimal.Decimal, error)

// Ledger chains month totals on top of a BalanceStore.
type Ledger struct {
	Store BalanceStore
}

func NewLedger(store BalanceStore) Ledger {
	return Ledger{Store: store}
}

// Opening returns the balance carried into ym, computing and caching every
// missing month between the last cached one and ym.
func (l Ledger) Opening(ctx context.Context, employee EmployeeID, ym YearMonth, seed Seed, diff MonthDiff) (decimal.Decimal, error) {
	if !seed.HasStart || !seed.Start.Before(ym) {
		return seed.Initial, nil
	}

	total, cur := seed.Initial, seed.Start
	cached, ok, err := l.Store.LatestBalance(ctx, employee, ym)
	if err != nil {
		return decimal.Zero, fmt.Errorf("load cached balance: %w", err)
	}
	if ok && cached.Fingerprint == seed.Fingerprint && !cached.Month.Before(seed.Start) {
		total, cur = cached.Total, cached.Month.Next()
	}

	for cur.Before(ym) {
		d, err := diff(ctx, cur)
		if err != nil {
			return decimal.Zero, fmt.Errorf("diff for %s: %w", cur, err)
		}
		total = total.Add(d)
		if err := l.Record(ctx, employee, cur, total, seed.Fingerprint); err != nil {
			return decimal.Zero, err
		}
		cur = cur.Next()
	}
	return total, nil
}

// Record caches the closing total of ym under fingerprint.
func (l Ledger) Record(ctx context.Context, employee EmployeeID, ym YearMonth, total decimal.Decimal, fingerprint string) error {
	err := l.Store.SaveBalance(ctx, MonthBalance{
		EmployeeID:  employee,
		Month:       ym,
		Total:       total,
		Fingerprint: fingerprint,
		ComputedAt:  time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("cache balance %s: %w", ym, err)
	}
	return nil
}

// Invalidate drops cached totals from `from` onward.
func (l Ledger) Invalidate(ctx context.Context, employee EmployeeID, from YearMonth) error {
	if err := l.Store.InvalidateBalances(ctx, employee, from); err != nil {
		return fmt.Errorf("invalidate balances from %s: %w", from, err)
	}
	return nil
}
