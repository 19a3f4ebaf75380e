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

const medicineColumns = `id, name, age_appropriateness, needs_recipe, created_at, updated_at`

type medicineRepository struct {
	BaseRepository
}

func NewMedicineRepository(base BaseRepository) repository.MedicineRepository {
	return &medicineRepository{base}
}

func (r *medicineRepository) Create(ctx context.Context, m *model.Medicine) error {
	query := `
		INSERT INTO medicines (` + medicineColumns + `)
		VALUES (:id, :name, :age_appropriateness, :needs_recipe, :created_at, :updated_at)
	`
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	m.CreatedAt = time.Now().UTC()
	m.UpdatedAt = m.CreatedAt

	if _, err := r.namedExec(ctx, query, m); err != nil {
		return fmt.Errorf("failed to create medicine: %w", err)
	}
	return nil
}

func (r *medicineRepository) Get(ctx context.Context, id uuid.UUID) (*model.Medicine, error) {
	var m model.Medicine
	if err := r.get(ctx, &m, `SELECT `+medicineColumns+` FROM medicines WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *medicineRepository) Update(ctx context.Context, m *model.Medicine) error {
	m.UpdatedAt = time.Now().UTC()
	err := r.execAffecting(ctx,
		`UPDATE medicines SET name = $1, age_appropriateness = $2, needs_recipe = $3, updated_at = $4 WHERE id = $5`,
		m.Name, m.AgeAppropriateness, m.NeedsRecipe, m.UpdatedAt, m.ID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("failed to update medicine: %w", err)
	}
	return err
}

func (r *medicineRepository) Delete(ctx context.Context, id uuid.UUID) error {
	err := r.execAffecting(ctx, `DELETE FROM medicines WHERE id = $1`, id)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return translate(fmt.Errorf("failed to delete medicine: %w", err), nil)
	}
	return err
}

func (r *medicineRepository) List(ctx context.Context, f model.MedicineFilter) ([]*model.Medicine, error) {
	var w where
	if f.Name != "" {
		w.add("LOWER(name) = LOWER(?)", f.Name)
	}
	if f.NamePrefix != "" {
		w.add("name ILIKE ?", likePrefix(f.NamePrefix))
	}
	if f.MinAgeAbove != nil {
		w.add("age_appropriateness > ?", *f.MinAgeAbove)
	}
	if f.NeedsRecipe != nil {
		w.add("needs_recipe = ?", *f.NeedsRecipe)
	}

	p := f.Pagination.Normalize()
	query := `SELECT ` + medicineColumns + ` FROM medicines` + w.String() + ` ORDER BY name, id` + w.page(p.Limit, p.Offset)

	medicines := []*model.Medicine{}
	if err := r.selectAll(ctx, &medicines, query, w.args...); err != nil {
		return nil, fmt.Errorf("failed to list medicines: %w", err)
	}
	return medicines, nil
}

func (r *medicineRepository) Count(ctx context.Context, needsRecipeOnly bool) (int64, error) {
	query := `SELECT COUNT(*) FROM medicines`
	if needsRecipeOnly {
		query += ` WHERE needs_recipe`
	}
	var n int64
	if err := r.get(ctx, &n, query); err != nil {
		return 0, fmt.Errorf("failed to count medicines: %w", err)
	}
	return n, nil
}

func (r *medicineRepository) MissingIDs(ctx context.Context, ids []uuid.UUID) ([]uuid.UUID, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(`SELECT id FROM medicines WHERE id IN (?)`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to build medicine lookup: %w", err)
	}
	var found []uuid.UUID
	if err := r.selectAll(ctx, &found, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to look up medicines: %w", err)
	}

	present := make(map[uuid.UUID]struct{}, len(found))
	for _, id := range found {
		present[id] = struct{}{}
	}
	var missing []uuid.UUID
	for _, id := range ids {
		if _, ok := present[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing, nil
}
