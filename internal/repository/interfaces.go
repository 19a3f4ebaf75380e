package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/pharmacy-api/internal/model"
)

// ErrNotFound is returned by every repository when a row does not exist.
var ErrNotFound = errors.New("record not found")

// All repository interfaces in one file
type (
	// Transactor runs fn in one database transaction. Repositories called with
	// the ctx passed to fn join that transaction.
	Transactor interface {
		WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
	}

	DoctorRepository interface {
		Create(ctx context.Context, doctor *model.Doctor) error
		Get(ctx context.Context, id uuid.UUID) (*model.Doctor, error)
		// GetByEmail matches case-insensitively.
		GetByEmail(ctx context.Context, email string) (*model.Doctor, error)
		GetByLicenseNumber(ctx context.Context, license string) (*model.Doctor, error)
		Update(ctx context.Context, doctor *model.Doctor) error
		Delete(ctx context.Context, id uuid.UUID) error
		List(ctx context.Context, filter model.DoctorFilter) ([]*model.Doctor, error)
		Count(ctx context.Context) (int64, error)
		References(ctx context.Context, id uuid.UUID) (model.DoctorRefs, error)
	}

	CustomerRepository interface {
		Create(ctx context.Context, customer *model.Customer) error
		Get(ctx context.Context, id uuid.UUID) (*model.Customer, error)
		GetByEmail(ctx context.Context, email string) (*model.Customer, error)
		Update(ctx context.Context, customer *model.Customer) error
		Delete(ctx context.Context, id uuid.UUID) error
		List(ctx context.Context, filter model.CustomerFilter) ([]*model.Customer, error)
		Count(ctx context.Context, activeOnly bool) (int64, error)
		// CountMatching counts the rows List would return without pagination.
		CountMatching(ctx context.Context, filter model.CustomerFilter) (int64, error)
	}

	MedicineRepository interface {
		Create(ctx context.Context, medicine *model.Medicine) error
		Get(ctx context.Context, id uuid.UUID) (*model.Medicine, error)
		Update(ctx context.Context, medicine *model.Medicine) error
		Delete(ctx context.Context, id uuid.UUID) error
		List(ctx context.Context, filter model.MedicineFilter) ([]*model.Medicine, error)
		Count(ctx context.Context, needsRecipeOnly bool) (int64, error)
		// MissingIDs returns the ids that have no medicine row, in input order.
		MissingIDs(ctx context.Context, ids []uuid.UUID) ([]uuid.UUID, error)
	}

	// RecipeRepository persists the recipe aggregate. Reads return the
	// medicine line-items and diagnoses in their original order.
	RecipeRepository interface {
		Create(ctx context.Context, recipe *model.Recipe) error
		Get(ctx context.Context, id uuid.UUID) (*model.Recipe, error)
		// Update replaces the recipe columns and both child collections.
		Update(ctx context.Context, recipe *model.Recipe) error
		Delete(ctx context.Context, id uuid.UUID) error
		List(ctx context.Context, filter model.RecipeFilter) ([]*model.Recipe, error)
		Count(ctx context.Context, filter model.RecipeFilter) (int64, error)
		CountByStatus(ctx context.Context, doctorID *uuid.UUID) (map[model.RecipeStatus]int64, error)
		// DiagnosisSummaries returns the distinct non-blank free-text summaries.
		DiagnosisSummaries(ctx context.Context) ([]string, error)
	}

	DiagnosisRepository interface {
		Create(ctx context.Context, diagnosis *model.Diagnosis) error
		Get(ctx context.Context, id uuid.UUID) (*model.Diagnosis, error)
		Update(ctx context.Context, diagnosis *model.Diagnosis) error
		Delete(ctx context.Context, id uuid.UUID) error
		List(ctx context.Context, filter model.DiagnosisFilter) ([]*model.Diagnosis, error)
		Count(ctx context.Context, primaryOnly bool) (int64, error)
		// ClearPrimary unsets is_primary on every diagnosis of the recipe except keep.
		ClearPrimary(ctx context.Context, recipeID, keep uuid.UUID) error
		DistinctNames(ctx context.Context) ([]string, error)
	}

	SickLeaveRepository interface {
		Create(ctx context.Context, leave *model.SickLeave) error
		Get(ctx context.Context, id uuid.UUID) (*model.SickLeave, error)
		GetByNumber(ctx context.Context, number string) (*model.SickLeave, error)
		Update(ctx context.Context, leave *model.SickLeave) error
		Delete(ctx context.Context, id uuid.UUID) error
		List(ctx context.Context, filter model.SickLeaveFilter) ([]*model.SickLeave, error)
		Count(ctx context.Context, filter model.SickLeaveFilter) (int64, error)
		HasActiveOn(ctx context.Context, customerID uuid.UUID, on model.Date) (bool, error)
	}

	// ReportRepository holds the read-only cross-entity aggregations.
	ReportRepository interface {
		PatientsByDiagnosis(ctx context.Context, term string) ([]*model.Customer, error)
		MostCommonDiagnoses(ctx context.Context, limit int) ([]model.DiagnosisCount, error)
		PatientCountByDiagnosis(ctx context.Context, name string) (int64, error)
		PatientCountPerPrimaryDoctor(ctx context.Context) ([]model.DoctorStatistics, error)
		VisitsPerDoctor(ctx context.Context) ([]model.DoctorStatistics, error)
		SickLeavesByMonth(ctx context.Context) ([]model.MonthlyStatistics, error)
		DoctorsBySickLeaves(ctx context.Context) ([]model.DoctorStatistics, error)
		CustomersByInsurance(ctx context.Context, on model.Date, valid bool) ([]*model.Customer, error)
	}

	OutboxRepository interface {
		Create(ctx context.Context, event *model.OutboxEvent) error
		// ClaimPending leases up to limit due events so concurrent workers skip them.
		ClaimPending(ctx context.Context, limit int, lease time.Duration) ([]*model.OutboxEvent, error)
		MarkProcessed(ctx context.Context, id uuid.UUID) error
		MarkRetry(ctx context.Context, id uuid.UUID, errMsg string, retryAt time.Time) error
		MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error
		DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
	}

	AuditRepository interface {
		Create(ctx context.Context, log *model.AuditLog) error
		List(ctx context.Context, filter model.AuditFilter) ([]*model.AuditLog, error)
		DeleteBefore(ctx context.Context, before time.Time) (int64, error)
	}
)
