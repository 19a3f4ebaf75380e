package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/pharmacy-api/internal/model"
	"github.com/jwalitptl/pharmacy-api/internal/repository"
)

type diagnosisRepository struct {
	BaseRepository
}

func NewDiagnosisRepository(base BaseRepository) repository.DiagnosisRepository {
	return &diagnosisRepository{base}
}

func (r *diagnosisRepository) Create(ctx context.Context, d *model.Diagnosis) error {
	query := `
		INSERT INTO diagnoses (id, recipe_id, icd10_code, name, description, diagnosis_date, is_primary,
			severity, notes, position, created_at, updated_at)
		VALUES (:id, :recipe_id, :icd10_code, :name, :description, :diagnosis_date, :is_primary,
			:severity, :notes, :position, :created_at, :updated_at)
	`
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	d.CreatedAt = time.Now().UTC()
	d.UpdatedAt = d.CreatedAt

	return r.WithinTx(ctx, func(ctx context.Context) error {
		if err := r.get(ctx, &d.Position,
			`SELECT COALESCE(MAX(position) + 1, 0) FROM diagnoses WHERE recipe_id = $1`, d.RecipeID); err != nil {
			return fmt.Errorf("failed to compute diagnosis position: %w", err)
		}
		if _, err := r.namedExec(ctx, query, d); err != nil {
			return fmt.Errorf("failed to create diagnosis: %w", err)
		}
		return nil
	})
}

func (r *diagnosisRepository) Get(ctx context.Context, id uuid.UUID) (*model.Diagnosis, error) {
	query := `SELECT ` + diagnosisColumns + ` FROM diagnoses d JOIN recipes r ON r.id = d.recipe_id WHERE d.id = $1`
	var d model.Diagnosis
	if err := r.get(ctx, &d, query, id); err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *diagnosisRepository) Update(ctx context.Context, d *model.Diagnosis) error {
	query := `
		UPDATE diagnoses
		SET recipe_id = :recipe_id, icd10_code = :icd10_code, name = :name, description = :description,
			diagnosis_date = :diagnosis_date, is_primary = :is_primary, severity = :severity,
			notes = :notes, updated_at = :updated_at
		WHERE id = :id
	`
	d.UpdatedAt = time.Now().UTC()
	res, err := r.namedExec(ctx, query, d)
	if err != nil {
		return fmt.Errorf("failed to update diagnosis: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *diagnosisRepository) Delete(ctx context.Context, id uuid.UUID) error {
	err := r.execAffecting(ctx, `DELETE FROM diagnoses WHERE id = $1`, id)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("failed to delete diagnosis: %w", err)
	}
	return err
}

func diagnosisWhere(f model.DiagnosisFilter) *where {
	w := &where{}
	if f.RecipeID != nil {
		w.add("d.recipe_id = ?", *f.RecipeID)
	}
	if f.CustomerID != nil {
		w.add("r.customer_id = ?", *f.CustomerID)
	}
	if f.DoctorID != nil {
		w.add("r.doctor_id = ?", *f.DoctorID)
	}
	if f.Name != "" {
		w.add("d.name ILIKE ?", likeContains(f.Name))
	}
	if f.ICD10Code != "" {
		w.add("UPPER(d.icd10_code) = UPPER(?)", f.ICD10Code)
	}
	if f.Severity != "" {
		w.add("d.severity = ?", f.Severity)
	}
	if f.PrimaryOnly {
		w.raw("d.is_primary")
	}
	if f.From != nil {
		w.add("d.diagnosis_date >= ?", *f.From)
	}
	if f.To != nil {
		w.add("d.diagnosis_date <= ?", *f.To)
	}
	return w
}

func (r *diagnosisRepository) List(ctx context.Context, f model.DiagnosisFilter) ([]*model.Diagnosis, error) {
	w := diagnosisWhere(f)
	p := f.Pagination.Normalize()
	query := `SELECT ` + diagnosisColumns + ` FROM diagnoses d JOIN recipes r ON r.id = d.recipe_id` +
		w.String() + ` ORDER BY d.diagnosis_date DESC NULLS LAST, d.recipe_id, d.position` + w.page(p.Limit, p.Offset)

	diagnoses := []*model.Diagnosis{}
	if err := r.selectAll(ctx, &diagnoses, query, w.args...); err != nil {
		return nil, fmt.Errorf("failed to list diagnoses: %w", err)
	}
	return diagnoses, nil
}

func (r *diagnosisRepository) Count(ctx context.Context, primaryOnly bool) (int64, error) {
	query := `SELECT COUNT(*) FROM diagnoses`
	if primaryOnly {
		query += ` WHERE is_primary`
	}
	var n int64
	if err := r.get(ctx, &n, query); err != nil {
		return 0, fmt.Errorf("failed to count diagnoses: %w", err)
	}
	return n, nil
}

func (r *diagnosisRepository) ClearPrimary(ctx context.Context, recipeID, keep uuid.UUID) error {
	_, err := r.conn(ctx).ExecContext(ctx,
		`UPDATE diagnoses SET is_primary = FALSE, updated_at = NOW() WHERE recipe_id = $1 AND id <> $2 AND is_primary`,
		recipeID, keep)
	if err != nil {
		return fmt.Errorf("failed to clear primary diagnosis: %w", err)
	}
	return nil
}

func (r *diagnosisRepository) DistinctNames(ctx context.Context) ([]string, error) {
	var names []string
	if err := r.selectAll(ctx, &names, `SELECT DISTINCT name FROM diagnoses`); err != nil {
		return nil, fmt.Errorf("failed to list diagnosis names: %w", err)
	}
	return names, nil
}
