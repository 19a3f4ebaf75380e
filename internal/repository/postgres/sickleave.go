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

const sickLeaveSelect = `
	SELECT s.id, s.leave_number, s.recipe_id, s.start_date, s.duration_days, s.end_date, s.reason,
		s.status, s.issue_date, s.notes, s.created_at, s.updated_at, r.doctor_id, r.customer_id
	FROM sick_leaves s JOIN recipes r ON r.id = s.recipe_id`

type sickLeaveRepository struct {
	BaseRepository
}

func NewSickLeaveRepository(base BaseRepository) repository.SickLeaveRepository {
	return &sickLeaveRepository{base}
}

func (r *sickLeaveRepository) Create(ctx context.Context, s *model.SickLeave) error {
	query := `
		INSERT INTO sick_leaves (id, leave_number, recipe_id, start_date, duration_days, end_date, reason,
			status, issue_date, notes, created_at, updated_at)
		VALUES (:id, :leave_number, :recipe_id, :start_date, :duration_days, :end_date, :reason,
			:status, :issue_date, :notes, :created_at, :updated_at)
	`
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	s.CalculateEndDate()
	s.CreatedAt = time.Now().UTC()
	s.UpdatedAt = s.CreatedAt

	if _, err := r.namedExec(ctx, query, s); err != nil {
		return translate(fmt.Errorf("failed to create sick leave: %w", err), func(string) string { return s.LeaveNumber })
	}
	return nil
}

func (r *sickLeaveRepository) Get(ctx context.Context, id uuid.UUID) (*model.SickLeave, error) {
	var s model.SickLeave
	if err := r.get(ctx, &s, sickLeaveSelect+` WHERE s.id = $1`, id); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *sickLeaveRepository) GetByNumber(ctx context.Context, number string) (*model.SickLeave, error) {
	var s model.SickLeave
	if err := r.get(ctx, &s, sickLeaveSelect+` WHERE s.leave_number = $1`, number); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *sickLeaveRepository) Update(ctx context.Context, s *model.SickLeave) error {
	query := `
		UPDATE sick_leaves
		SET start_date = :start_date, duration_days = :duration_days, end_date = :end_date, reason = :reason,
			status = :status, notes = :notes, updated_at = :updated_at
		WHERE id = :id
	`
	s.CalculateEndDate()
	s.UpdatedAt = time.Now().UTC()
	res, err := r.namedExec(ctx, query, s)
	if err != nil {
		return fmt.Errorf("failed to update sick leave: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *sickLeaveRepository) Delete(ctx context.Context, id uuid.UUID) error {
	err := r.execAffecting(ctx, `DELETE FROM sick_leaves WHERE id = $1`, id)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("failed to delete sick leave: %w", err)
	}
	return err
}

func sickLeaveWhere(f model.SickLeaveFilter) *where {
	w := &where{}
	if f.CustomerID != nil {
		w.add("r.customer_id = ?", *f.CustomerID)
	}
	if f.DoctorID != nil {
		w.add("r.doctor_id = ?", *f.DoctorID)
	}
	if f.RecipeID != nil {
		w.add("s.recipe_id = ?", *f.RecipeID)
	}
	if f.Status != "" {
		w.add("s.status = ?", f.Status)
	}
	if f.StartFrom != nil {
		w.add("s.start_date >= ?", *f.StartFrom)
	}
	if f.StartTo != nil {
		w.add("s.start_date <= ?", *f.StartTo)
	}
	if f.ActiveOn != nil {
		w.raw("s.status = 'ACTIVE'")
		w.add("s.end_date >= ?", *f.ActiveOn)
	}
	return w
}

func (r *sickLeaveRepository) List(ctx context.Context, f model.SickLeaveFilter) ([]*model.SickLeave, error) {
	w := sickLeaveWhere(f)
	order := ` ORDER BY s.start_date DESC, s.created_at DESC`
	if f.OrderBy == "issue_date" {
		order = ` ORDER BY s.issue_date DESC, s.created_at DESC`
	}
	p := f.Pagination.Normalize()
	query := sickLeaveSelect + w.String() + order + w.page(p.Limit, p.Offset)

	leaves := []*model.SickLeave{}
	if err := r.selectAll(ctx, &leaves, query, w.args...); err != nil {
		return nil, fmt.Errorf("failed to list sick leaves: %w", err)
	}
	return leaves, nil
}

func (r *sickLeaveRepository) Count(ctx context.Context, f model.SickLeaveFilter) (int64, error) {
	w := sickLeaveWhere(f)
	var n int64
	query := `SELECT COUNT(*) FROM sick_leaves s JOIN recipes r ON r.id = s.recipe_id` + w.String()
	if err := r.get(ctx, &n, query, w.args...); err != nil {
		return 0, fmt.Errorf("failed to count sick leaves: %w", err)
	}
	return n, nil
}

func (r *sickLeaveRepository) HasActiveOn(ctx context.Context, customerID uuid.UUID, on model.Date) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM sick_leaves s JOIN recipes r ON r.id = s.recipe_id
			WHERE r.customer_id = $1 AND s.status = 'ACTIVE' AND s.start_date <= $2 AND s.end_date >= $2
		)
	`
	var exists bool
	if err := r.get(ctx, &exists, query, customerID, on); err != nil {
		return false, fmt.Errorf("failed to check active sick leave: %w", err)
	}
	return exists, nil
}
