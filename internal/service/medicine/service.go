package medicine

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/pharmacy-api/internal/model"
	"github.com/jwalitptl/pharmacy-api/internal/repository"
	apperrors "github.com/jwalitptl/pharmacy-api/pkg/errors"
	"github.com/jwalitptl/pharmacy-api/pkg/validator"
)

type Service interface {
	CreateMedicine(ctx context.Context, req *model.MedicineRequest) (*model.Medicine, error)
	GetMedicine(ctx context.Context, id uuid.UUID) (*model.Medicine, error)
	UpdateMedicine(ctx context.Context, id uuid.UUID, req *model.MedicineRequest) (*model.Medicine, error)
	DeleteMedicine(ctx context.Context, id uuid.UUID) error
	ListMedicines(ctx context.Context, filter model.MedicineFilter) ([]*model.Medicine, error)
	CountMedicines(ctx context.Context, needsRecipeOnly bool) (int64, error)
}

type service struct {
	repo repository.MedicineRepository
}

func NewService(repo repository.MedicineRepository) Service {
	return &service{repo: repo}
}

func (s *service) CreateMedicine(ctx context.Context, req *model.MedicineRequest) (*model.Medicine, error) {
	if err := validator.Struct(req); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	m := &model.Medicine{
		Base:               model.Base{ID: uuid.New(), CreatedAt: now, UpdatedAt: now},
		Name:               strings.TrimSpace(req.Name),
		AgeAppropriateness: req.AgeAppropriateness,
		NeedsRecipe:        req.NeedsRecipe,
	}
	if err := s.repo.Create(ctx, m); err != nil {
		return nil, err
	}
	log.Ctx(ctx).Info().Str("medicine_id", m.ID.String()).Msg("medicine created")
	return m, nil
}

func (s *service) GetMedicine(ctx context.Context, id uuid.UUID) (*model.Medicine, error) {
	m, err := s.repo.Get(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewNotFoundError("Medicine", id)
	}
	return m, err
}

func (s *service) UpdateMedicine(ctx context.Context, id uuid.UUID, req *model.MedicineRequest) (*model.Medicine, error) {
	if err := validator.Struct(req); err != nil {
		return nil, err
	}
	m, err := s.GetMedicine(ctx, id)
	if err != nil {
		return nil, err
	}
	m.Name = strings.TrimSpace(req.Name)
	m.AgeAppropriateness = req.AgeAppropriateness
	m.NeedsRecipe = req.NeedsRecipe
	m.UpdatedAt = time.Now().UTC()

	if err := s.repo.Update(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *service) DeleteMedicine(ctx context.Context, id uuid.UUID) error {
	err := s.repo.Delete(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NewNotFoundError("Medicine", id)
	}
	return err
}

func (s *service) ListMedicines(ctx context.Context, filter model.MedicineFilter) ([]*model.Medicine, error) {
	filter.Pagination = filter.Pagination.Normalize()
	return s.repo.List(ctx, filter)
}

func (s *service) CountMedicines(ctx context.Context, needsRecipeOnly bool) (int64, error) {
	return s.repo.Count(ctx, needsRecipeOnly)
}
