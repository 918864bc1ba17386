// Package db implements the GORM-backed repository for the reporting engine:
// source-of-truth tables, reference lookups, and the aggregate report tables
// with their atomic counter operations.
package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	dbm "github.com/hrplane/reporting/internal/report/db/models"
	e "github.com/hrplane/reporting/internal/report/errors"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Repository wraps the database handle. All aggregate mutations go through
// here so counter updates stay database-level atomic expressions.
type Repository struct {
	db *gorm.DB
}

// Config holds the PostgreSQL connection settings.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// OrgUnit is the (branch, block, department) tuple every report row is
// scoped to.
type OrgUnit struct {
	BranchID     uuid.UUID
	BlockID      uuid.UUID
	DepartmentID uuid.UUID
}

func tables() []any {
	return []any{
		&dbm.Branch{},
		&dbm.Block{},
		&dbm.Department{},
		&dbm.Employee{},
		&dbm.RecruitmentSource{},
		&dbm.RecruitmentChannel{},
		&dbm.WorkHistoryEvent{},
		&dbm.RecruitmentCandidate{},
		&dbm.RecruitmentExpense{},
		&dbm.StaffGrowthReport{},
		&dbm.StaffGrowthEventLog{},
		&dbm.EmployeeStatusBreakdownReport{},
		&dbm.EmployeeResignedReasonReport{},
		&dbm.RecruitmentSourceReport{},
		&dbm.RecruitmentChannelReport{},
		&dbm.HiredCandidateReport{},
		&dbm.RecruitmentCostReport{},
	}
}

// NewRepository opens a PostgreSQL connection and migrates the schema.
func NewRepository(cfg *Config) (*Repository, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.AutoMigrate(tables()...); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Repository{db: db}, nil
}

// NewSQLiteRepository opens a SQLite database and migrates the schema.
// Used by tests and local development; production runs on PostgreSQL.
func NewSQLiteRepository(dsn string) (*Repository, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.AutoMigrate(tables()...); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Repository{db: db}, nil
}

// WithTransaction runs fn against a transactional repository.
func (r *Repository) WithTransaction(ctx context.Context, fn func(repo *Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Repository{db: tx})
	})
}

// Close releases the underlying connection pool.
func (r *Repository) Close() error {
	db, err := r.db.DB()
	if err != nil {
		return err
	}
	return db.Close()
}

func (r *Repository) first(ctx context.Context, dest any, id uuid.UUID) error {
	result := r.db.WithContext(ctx).First(dest, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return e.ErrNotFound
		}
		return result.Error
	}
	return nil
}

// GetEmployee looks up an employee by id.
func (r *Repository) GetEmployee(ctx context.Context, id uuid.UUID) (*dbm.Employee, error) {
	var emp dbm.Employee
	if err := r.first(ctx, &emp, id); err != nil {
		return nil, err
	}
	return &emp, nil
}

// GetDepartment looks up a department by id.
func (r *Repository) GetDepartment(ctx context.Context, id uuid.UUID) (*dbm.Department, error) {
	var dep dbm.Department
	if err := r.first(ctx, &dep, id); err != nil {
		return nil, err
	}
	return &dep, nil
}

// GetSource looks up a recruitment source by id.
func (r *Repository) GetSource(ctx context.Context, id uuid.UUID) (*dbm.RecruitmentSource, error) {
	var src dbm.RecruitmentSource
	if err := r.first(ctx, &src, id); err != nil {
		return nil, err
	}
	return &src, nil
}

// GetChannel looks up a recruitment channel by id.
func (r *Repository) GetChannel(ctx context.Context, id uuid.UUID) (*dbm.RecruitmentChannel, error) {
	var ch dbm.RecruitmentChannel
	if err := r.first(ctx, &ch, id); err != nil {
		return nil, err
	}
	return &ch, nil
}

// Create persists a source or reference row. Aggregate rows have dedicated
// upsert paths and must not go through here.
func (r *Repository) Create(ctx context.Context, value any) error {
	return r.db.WithContext(ctx).Create(value).Error
}

// Save overwrites a source row in place.
func (r *Repository) Save(ctx context.Context, value any) error {
	return r.db.WithContext(ctx).Save(value).Error
}

// GetWorkHistoryEvent fetches a work-history event by id.
func (r *Repository) GetWorkHistoryEvent(ctx context.Context, id uuid.UUID) (*dbm.WorkHistoryEvent, error) {
	var ev dbm.WorkHistoryEvent
	if err := r.first(ctx, &ev, id); err != nil {
		return nil, err
	}
	return &ev, nil
}

// DeleteWorkHistoryEvent removes an event row (administrative correction).
func (r *Repository) DeleteWorkHistoryEvent(ctx context.Context, id uuid.UUID) error {
	return r.deleteByID(ctx, &dbm.WorkHistoryEvent{}, id)
}

// GetCandidate fetches a recruitment candidate by id.
func (r *Repository) GetCandidate(ctx context.Context, id uuid.UUID) (*dbm.RecruitmentCandidate, error) {
	var c dbm.RecruitmentCandidate
	if err := r.first(ctx, &c, id); err != nil {
		return nil, err
	}
	return &c, nil
}

// DeleteCandidate removes a candidate row.
func (r *Repository) DeleteCandidate(ctx context.Context, id uuid.UUID) error {
	return r.deleteByID(ctx, &dbm.RecruitmentCandidate{}, id)
}

// GetExpense fetches a recruitment expense by id.
func (r *Repository) GetExpense(ctx context.Context, id uuid.UUID) (*dbm.RecruitmentExpense, error) {
	var ex dbm.RecruitmentExpense
	if err := r.first(ctx, &ex, id); err != nil {
		return nil, err
	}
	return &ex, nil
}

// DeleteExpense removes an expense row.
func (r *Repository) DeleteExpense(ctx context.Context, id uuid.UUID) error {
	return r.deleteByID(ctx, &dbm.RecruitmentExpense{}, id)
}

func (r *Repository) deleteByID(ctx context.Context, model any, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(model, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return e.ErrNotFound
	}
	return nil
}
