/*
Package catalog is the reference-data collaborator: employees, shift types
and change reasons.

PURPOSE:
  The engine only reads reference data, through core.Catalog. This package
  keeps it in SQLite through GORM, auto-migrating its three tables, and can
  be populated from a YAML seed file at startup.

NOT FOUND:
  Unknown ids surface as core.NotFoundError so services and the HTTP layer
  treat them like any other missing entity.

SEE ALSO:
  - seed.go: YAML seed format
  - core/catalog.go: the interfaces implemented here
*/
package catalog

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/warp/worktrack/core"
)

// Store implements core.Catalog on GORM.
type Store struct {
	db *gorm.DB
}

var _ core.Catalog = (*Store)(nil)

// Open connects to the SQLite file at path and migrates the catalog tables.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}

	// An in-memory database exists per connection.
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	return New(db)
}

// New wraps an existing connection and migrates the catalog tables.
func New(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&employeeRow{}, &shiftTypeRow{}, &changeReasonRow{}); err != nil {
		return nil, fmt.Errorf("migrate catalog: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// =============================================================================
// READS
// =============================================================================

func (s *Store) Employee(ctx context.Context, id core.EmployeeID) (core.Employee, error) {
	var row employeeRow
	if err := s.first(ctx, &row, int64(id), "employee"); err != nil {
		return core.Employee{}, err
	}
	return row.toDomain()
}

func (s *Store) Employees(ctx context.Context) ([]core.Employee, error) {
	var rows []employeeRow
	if err := s.db.WithContext(ctx).Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list employees: %w", err)
	}
	out := make([]core.Employee, 0, len(rows))
	for _, r := range rows {
		e, err := r.toDomain()
		if err != nil {
			return nil, fmt.Errorf("employee %d: %w", r.ID, err)
		}
		out = append(out, e)
	}
	return out, nil
}

func (s *Store) ShiftType(ctx context.Context, id core.ShiftTypeID) (core.ShiftType, error) {
	var row shiftTypeRow
	if err := s.first(ctx, &row, int64(id), "shift_type"); err != nil {
		return core.ShiftType{}, err
	}
	return row.toDomain()
}

func (s *Store) ShiftTypes(ctx context.Context) ([]core.ShiftType, error) {
	var rows []shiftTypeRow
	if err := s.db.WithContext(ctx).Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list shift types: %w", err)
	}
	out := make([]core.ShiftType, 0, len(rows))
	for _, r := range rows {
		t, err := r.toDomain()
		if err != nil {
			return nil, fmt.Errorf("shift type %d: %w", r.ID, err)
		}
		out = append(out, t)
	}
	return out, nil
}

func (s *Store) ChangeReason(ctx context.Context, id core.ReasonID) (core.ChangeReason, error) {
	var row changeReasonRow
	if err := s.first(ctx, &row, int64(id), "change_reason"); err != nil {
		return core.ChangeReason{}, err
	}
	return row.toDomain(), nil
}

func (s *Store) ChangeReasons(ctx context.Context) ([]core.ChangeReason, error) {
	var rows []changeReasonRow
	if err := s.db.WithContext(ctx).Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list change reasons: %w", err)
	}
	out := make([]core.ChangeReason, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

func (s *Store) first(ctx context.Context, dest any, id int64, kind string) error {
	err := s.db.WithContext(ctx).First(dest, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return core.NotFound(kind, id)
	}
	if err != nil {
		return fmt.Errorf("load %s %d: %w", kind, id, err)
	}
	return nil
}

// =============================================================================
// WRITES
// =============================================================================

// Apply upserts every entry of seed in one transaction.
func (s *Store) Apply(ctx context.Context, seed Seed) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		upsert := clause.OnConflict{UpdateAll: true}
		for _, e := range seed.Employees {
			row := employeeFromDomain(e)
			if err := tx.Clauses(upsert).Create(&row).Error; err != nil {
				return fmt.Errorf("save employee %d: %w", e.ID, err)
			}
		}
		for _, t := range seed.ShiftTypes {
			row := shiftTypeFromDomain(t)
			if err := tx.Clauses(upsert).Create(&row).Error; err != nil {
				return fmt.Errorf("save shift type %d: %w", t.ID, err)
			}
		}
		for _, r := range seed.ChangeReasons {
			row := changeReasonFromDomain(r)
			if err := tx.Clauses(upsert).Create(&row).Error; err != nil {
				return fmt.Errorf("save change reason %d: %w", r.ID, err)
			}
		}
		return nil
	})
}
