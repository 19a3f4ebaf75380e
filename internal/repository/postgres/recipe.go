package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/pharmacy-api/internal/model"
	"github.com/jwalitptl/pharmacy-api/internal/repository"
)

const recipeColumns = `id, creation_date, doctor_id, customer_id, status, diagnosis, notes, expiration_date,
	sick_leave, sick_leave_days, sick_leave_start_date, created_at, updated_at`

const diagnosisColumns = `d.id, d.recipe_id, d.icd10_code, d.name, d.description, d.diagnosis_date, d.is_primary,
	d.severity, d.notes, d.position, d.created_at, d.updated_at, r.doctor_id, r.customer_id`

type recipeRepository struct {
	BaseRepository
}

func NewRecipeRepository(base BaseRepository) repository.RecipeRepository {
	return &recipeRepository{base}
}

func (r *recipeRepository) Create(ctx context.Context, recipe *model.Recipe) error {
	query := `
		INSERT INTO recipes (` + recipeColumns + `)
		VALUES (:id, :creation_date, :doctor_id, :customer_id, :status, :diagnosis, :notes, :expiration_date,
			:sick_leave, :sick_leave_days, :sick_leave_start_date, :created_at, :updated_at)
	`
	if recipe.ID == uuid.Nil {
		recipe.ID = uuid.New()
	}
	recipe.CreatedAt = time.Now().UTC()
	recipe.UpdatedAt = recipe.CreatedAt

	return r.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := r.namedExec(ctx, query, recipe); err != nil {
			return fmt.Errorf("failed to create recipe: %w", err)
		}
		return r.insertChildren(ctx, recipe)
	})
}

func (r *recipeRepository) Get(ctx context.Context, id uuid.UUID) (*model.Recipe, error) {
	var recipe model.Recipe
	if err := r.get(ctx, &recipe, `SELECT `+recipeColumns+` FROM recipes WHERE id = $1`, id); err != nil {
		return nil, err
	}
	if err := r.loadChildren(ctx, []*model.Recipe{&recipe}); err != nil {
		return nil, err
	}
	return &recipe, nil
}

func (r *recipeRepository) Update(ctx context.Context, recipe *model.Recipe) error {
	query := `
		UPDATE recipes
		SET creation_date = :creation_date, doctor_id = :doctor_id, customer_id = :customer_id,
			status = :status, diagnosis = :diagnosis, notes = :notes, expiration_date = :expiration_date,
			sick_leave = :sick_leave, sick_leave_days = :sick_leave_days,
			sick_leave_start_date = :sick_leave_start_date, updated_at = :updated_at
		WHERE id = :id
	`
	recipe.UpdatedAt = time.Now().UTC()

	return r.WithinTx(ctx, func(ctx context.Context) error {
		res, err := r.namedExec(ctx, query, recipe)
		if err != nil {
			return fmt.Errorf("failed to update recipe: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return repository.ErrNotFound
		}

		if _, err := r.conn(ctx).ExecContext(ctx, `DELETE FROM recipe_medicines WHERE recipe_id = $1`, recipe.ID); err != nil {
			return fmt.Errorf("failed to clear recipe medicines: %w", err)
		}
		if _, err := r.conn(ctx).ExecContext(ctx, `DELETE FROM diagnoses WHERE recipe_id = $1`, recipe.ID); err != nil {
			return fmt.Errorf("failed to clear recipe diagnoses: %w", err)
		}
		return r.insertChildren(ctx, recipe)
	})
}

func (r *recipeRepository) Delete(ctx context.Context, id uuid.UUID) error {
	err := r.execAffecting(ctx, `DELETE FROM recipes WHERE id = $1`, id)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("failed to delete recipe: %w", err)
	}
	return err
}

func recipeWhere(f model.RecipeFilter) *where {
	w := &where{}
	if f.DoctorID != nil {
		w.add("doctor_id = ?", *f.DoctorID)
	}
	if f.CustomerID != nil {
		w.add("customer_id = ?", *f.CustomerID)
	}
	if f.Status != "" {
		w.add("status = ?", f.Status)
	}
	if f.From != nil {
		w.add("creation_date >= ?", *f.From)
	}
	if f.To != nil {
		w.add("creation_date <= ?", *f.To)
	}
	return w
}

func (r *recipeRepository) List(ctx context.Context, f model.RecipeFilter) ([]*model.Recipe, error) {
	w := recipeWhere(f)
	order := ` ORDER BY creation_date, created_at, id`
	if f.Newest {
		order = ` ORDER BY creation_date DESC, created_at DESC, id`
	}
	p := f.Pagination.Normalize()
	query := `SELECT ` + recipeColumns + ` FROM recipes` + w.String() + order + w.page(p.Limit, p.Offset)

	recipes := []*model.Recipe{}
	if err := r.selectAll(ctx, &recipes, query, w.args...); err != nil {
		return nil, fmt.Errorf("failed to list recipes: %w", err)
	}
	if err := r.loadChildren(ctx, recipes); err != nil {
		return nil, err
	}
	return recipes, nil
}

func (r *recipeRepository) Count(ctx context.Context, f model.RecipeFilter) (int64, error) {
	w := recipeWhere(f)
	var n int64
	if err := r.get(ctx, &n, `SELECT COUNT(*) FROM recipes`+w.String(), w.args...); err != nil {
		return 0, fmt.Errorf("failed to count recipes: %w", err)
	}
	return n, nil
}

func (r *recipeRepository) CountByStatus(ctx context.Context, doctorID *uuid.UUID) (map[model.RecipeStatus]int64, error) {
	w := recipeWhere(model.RecipeFilter{DoctorID: doctorID})
	var rows []struct {
		Status model.RecipeStatus `db:"status"`
		Count  int64              `db:"count"`
	}
	query := `SELECT status, COUNT(*) AS count FROM recipes` + w.String() + ` GROUP BY status`
	if err := r.selectAll(ctx, &rows, query, w.args...); err != nil {
		return nil, fmt.Errorf("failed to count recipes by status: %w", err)
	}

	counts := make(map[model.RecipeStatus]int64, len(model.RecipeStatuses))
	for _, s := range model.RecipeStatuses {
		counts[s] = 0
	}
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

func (r *recipeRepository) DiagnosisSummaries(ctx context.Context) ([]string, error) {
	var out []string
	if err := r.selectAll(ctx, &out, `SELECT DISTINCT diagnosis FROM recipes WHERE TRIM(diagnosis) <> ''`); err != nil {
		return nil, fmt.Errorf("failed to list diagnosis summaries: %w", err)
	}
	return out, nil
}

func (r *recipeRepository) insertChildren(ctx context.Context, recipe *model.Recipe) error {
	for i := range recipe.Medicines {
		m := &recipe.Medicines[i]
		if m.ID == uuid.Nil {
			m.ID = uuid.New()
		}
		m.RecipeID = recipe.ID
		m.Position = i
	}
	if len(recipe.Medicines) > 0 {
		_, err := r.namedExec(ctx, `
			INSERT INTO recipe_medicines (id, recipe_id, medicine_id, dosage, duration_days, instructions, quantity, position)
			VALUES (:id, :recipe_id, :medicine_id, :dosage, :duration_days, :instructions, :quantity, :position)
		`, recipe.Medicines)
		if err != nil {
			return fmt.Errorf("failed to insert recipe medicines: %w", err)
		}
	}

	now := time.Now().UTC()
	for i := range recipe.Diagnoses {
		d := &recipe.Diagnoses[i]
		if d.ID == uuid.Nil {
			d.ID = uuid.New()
		}
		d.RecipeID = recipe.ID
		d.DoctorID = recipe.DoctorID
		d.CustomerID = recipe.CustomerID
		d.Position = i
		if d.CreatedAt.IsZero() {
			d.CreatedAt = now
		}
		d.UpdatedAt = now
	}
	if len(recipe.Diagnoses) > 0 {
		_, err := r.namedExec(ctx, `
			INSERT INTO diagnoses (id, recipe_id, icd10_code, name, description, diagnosis_date, is_primary,
				severity, notes, position, created_at, updated_at)
			VALUES (:id, :recipe_id, :icd10_code, :name, :description, :diagnosis_date, :is_primary,
				:severity, :notes, :position, :created_at, :updated_at)
		`, recipe.Diagnoses)
		if err != nil {
			return fmt.Errorf("failed to insert recipe diagnoses: %w", err)
		}
	}
	return nil
}

// loadChildren fills Medicines and Diagnoses for every recipe with two queries.
func (r *recipeRepository) loadChildren(ctx context.Context, recipes []*model.Recipe) error {
	if len(recipes) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, len(recipes))
	byID := make(map[uuid.UUID]*model.Recipe, len(recipes))
	for i, rec := range recipes {
		ids[i] = rec.ID
		byID[rec.ID] = rec
		rec.Medicines = []model.RecipeMedicine{}
		rec.Diagnoses = []model.Diagnosis{}
	}

	query, args, err := sqlx.In(`
		SELECT id, recipe_id, medicine_id, dosage, duration_days, instructions, quantity, position
		FROM recipe_medicines WHERE recipe_id IN (?) ORDER BY recipe_id, position`, ids)
	if err != nil {
		return fmt.Errorf("failed to build medicine query: %w", err)
	}
	var medicines []model.RecipeMedicine
	if err := r.selectAll(ctx, &medicines, r.db.Rebind(query), args...); err != nil {
		return fmt.Errorf("failed to load recipe medicines: %w", err)
	}
	for _, m := range medicines {
		byID[m.RecipeID].Medicines = append(byID[m.RecipeID].Medicines, m)
	}

	query, args, err = sqlx.In(`
		SELECT `+diagnosisColumns+`
		FROM diagnoses d JOIN recipes r ON r.id = d.recipe_id
		WHERE d.recipe_id IN (?) ORDER BY d.recipe_id, d.position, d.created_at`, ids)
	if err != nil {
		return fmt.Errorf("failed to build diagnosis query: %w", err)
	}
	var diagnoses []model.Diagnosis
	if err := r.selectAll(ctx, &diagnoses, r.db.Rebind(query), args...); err != nil {
		return fmt.Errorf("failed to load recipe diagnoses: %w", err)
	}
	for _, d := range diagnoses {
		byID[d.RecipeID].Diagnoses = append(byID[d.RecipeID].Diagnoses, d)
	}
	return nil
}
