/*
copy.go - Month-to-month plan copy

PURPOSE:
  Managers build next month's plan from the current one. Every non-hidden
  shift of the source month is re-created on the same day-of-month of the
  target month.

SKIP RULES (per item, never fatal to the batch):
  no_such_day  Day 31 copied into a 30-day month
  exists       The employee already has a non-hidden shift on that date
  overlap      The copied interval would intersect a neighbouring shift
  error        The store failed for this item

IDEMPOTENCE:
  Copying twice creates nothing the second time: every item hits "exists".

CONCURRENCY:
  Source shifts are grouped per employee and the groups run on an errgroup
  bounded by Workers. A group walks its shifts in source order (date, start
  time), so two shifts landing on the same target date, or a night shift
  meeting the next morning, always resolve the same way. A keyed lock on
  (employee, date) also serializes concurrent Copy calls, and each item
  commits in its own transaction, so a failure affects only that item.
*/
package schedule

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/warp/worktrack/core"
	"github.com/warp/worktrack/events"
)

const DefaultCopyWorkers = 4

type CopyStatus string

const (
	CopyCreated CopyStatus = "created"
	CopySkipped CopyStatus = "skipped"
	CopyOverlap CopyStatus = "overlap"
	CopyFailed  CopyStatus = "error"
)

const (
	ReasonNoSuchDay = "no_such_day"
	ReasonExists    = "exists"
	ReasonOverlap   = "overlap"
	ReasonError     = "error"
)

type CopyRequest struct {
	Source     core.YearMonth
	Target     core.YearMonth
	EmployeeID *core.EmployeeID // nil copies every employee
}

// CopyItem reports what happened to one source shift.
type CopyItem struct {
	SourceShiftID core.ShiftID
	EmployeeID    core.EmployeeID
	Date          core.Date // target date; zero for no_such_day
	Status        CopyStatus
	Reason        string
	NewShiftID    core.ShiftID
	ConflictingID int64
	Error         string
}

type CopyResult struct {
	Created    int
	Skipped    int
	Overlapped int
	Failed     int
	Items      []CopyItem
}

type PlanCopier struct {
	Deps
	Workers int

	locks *keyedMutex
}

func NewPlanCopier(d Deps, workers int) *PlanCopier {
	if workers <= 0 {
		workers = DefaultCopyWorkers
	}
	return &PlanCopier{Deps: d, Workers: workers, locks: newKeyedMutex()}
}

// Copy re-creates the source month's plan in the target month.
func (c *PlanCopier) Copy(ctx context.Context, actor core.Actor, req CopyRequest) (CopyResult, error) {
	var subject core.EmployeeID
	if req.EmployeeID != nil {
		subject = *req.EmployeeID
	}
	if err := actor.Authorize(core.CapCopyPlan, subject); err != nil {
		return CopyResult{}, err
	}

	source, err := c.Store.ListShifts(ctx, core.ShiftFilter{
		EmployeeID: req.EmployeeID,
		From:       req.Source.First(),
		To:         req.Source.Last(),
	})
	if err != nil {
		return CopyResult{}, fmt.Errorf("list source plan: %w", err)
	}

	items := make([]CopyItem, len(source))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.Workers)

	for _, group := range groupByEmployee(source) {
		g.Go(func() error {
			for _, i := range group {
				items[i] = c.copyOne(gctx, actor, source[i], req.Target)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return CopyResult{}, err
	}

	result := CopyResult{Items: items}
	for _, it := range items {
		switch it.Status {
		case CopyCreated:
			result.Created++
		case CopySkipped:
			result.Skipped++
		case CopyOverlap:
			result.Overlapped++
		case CopyFailed:
			result.Failed++
		}
	}

	c.logger().WithFields(logrus.Fields{
		"source":     req.Source.String(),
		"target":     req.Target.String(),
		"created":    result.Created,
		"skipped":    result.Skipped,
		"overlapped": result.Overlapped,
		"failed":     result.Failed,
	}).Info("plan copied")
	if result.Created > 0 {
		c.emit(ctx, events.PlanCopied, actor, map[string]any{
			"source":  req.Source.String(),
			"target":  req.Target.String(),
			"created": result.Created,
		})
	}
	return result, nil
}

// groupByEmployee returns the source indexes of each employee, in source
// order. Groups come out in order of first appearance.
func groupByEmployee(source []core.PlannedShift) [][]int {
	var groups [][]int
	pos := make(map[core.EmployeeID]int)
	for i, sh := range source {
		g, ok := pos[sh.EmployeeID]
		if !ok {
			g = len(groups)
			pos[sh.EmployeeID] = g
			groups = append(groups, nil)
		}
		groups[g] = append(groups[g], i)
	}
	return groups
}

func (c *PlanCopier) copyOne(ctx context.Context, actor core.Actor, src core.PlannedShift, target core.YearMonth) CopyItem {
	item := CopyItem{SourceShiftID: src.ID, EmployeeID: src.EmployeeID}

	date, ok := target.DayOf(src.Date.Day())
	if !ok {
		item.Status, item.Reason = CopySkipped, ReasonNoSuchDay
		return item
	}
	item.Date = date

	unlock := c.locks.Lock(fmt.Sprintf("%d/%s", src.EmployeeID, date))
	defer unlock()

	shift := core.PlannedShift{
		EmployeeID:  src.EmployeeID,
		Date:        date,
		ShiftTypeID: src.ShiftTypeID,
		Start:       src.Start,
		End:         src.End,
		Note:        src.Note,
		Exchange:    core.NoExchange{},
	}
	iv, err := shift.Interval()
	if err != nil {
		item.Status, item.Reason, item.Error = CopyFailed, ReasonError, err.Error()
		return item
	}

	err = c.Store.WithTx(ctx, func(tx core.Store) error {
		emp := src.EmployeeID
		existing, err := tx.ListShifts(ctx, core.ShiftFilter{EmployeeID: &emp, From: date, To: date})
		if err != nil {
			return fmt.Errorf("list target day: %w", err)
		}
		if len(existing) > 0 {
			item.Status, item.Reason = CopySkipped, ReasonExists
			return nil
		}
		if err := checkShiftOverlap(ctx, tx, emp, date, iv, 0); err != nil {
			return err
		}
		if err := tx.InsertShift(ctx, &shift); err != nil {
			return fmt.Errorf("insert copied shift: %w", err)
		}
		if err := invalidateFrom(ctx, tx, emp, date); err != nil {
			return err
		}
		item.Status, item.NewShiftID = CopyCreated, shift.ID
		return audit(ctx, tx, actor, core.AuditShiftCopied, shift.ID, emp, map[string]any{
			"source_shift_id": int64(src.ID),
		})
	})

	var oe *core.OverlapError
	switch {
	case err == nil:
	case errors.As(err, &oe):
		item.Status, item.Reason, item.ConflictingID = CopyOverlap, ReasonOverlap, oe.ConflictingID
	default:
		item.Status, item.Reason, item.NewShiftID, item.Error = CopyFailed, ReasonError, 0, err.Error()
		c.logger().WithError(err).WithFields(logrus.Fields{
			"source_shift_id": src.ID,
			"date":            date.String(),
		}).Warn("copy item failed")
	}
	return item
}
