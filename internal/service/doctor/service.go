package doctor

import (
	"context"
	"errors"
	"fmt"
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
	CreateDoctor(ctx context.Context, req *model.DoctorRequest) (*model.Doctor, error)
	GetDoctor(ctx context.Context, id uuid.UUID) (*model.Doctor, error)
	UpdateDoctor(ctx context.Context, id uuid.UUID, req *model.DoctorRequest) (*model.Doctor, error)
	DeleteDoctor(ctx context.Context, id uuid.UUID) error
	ListDoctors(ctx context.Context, filter model.DoctorFilter) ([]*model.Doctor, error)
	CountDoctors(ctx context.Context) (int64, error)

	// Lookups return nil without error when nothing matches.
	FindByEmail(ctx context.Context, email string) (*model.Doctor, error)
	FindByLicenseNumber(ctx context.Context, license string) (*model.Doctor, error)
}

type service struct {
	repo repository.DoctorRepository
}

func NewService(repo repository.DoctorRepository) Service {
	return &service{repo: repo}
}

func (s *service) CreateDoctor(ctx context.Context, req *model.DoctorRequest) (*model.Doctor, error) {
	if err := validator.Struct(req); err != nil {
		return nil, err
	}

	doctor := &model.Doctor{}
	apply(doctor, req)
	if err := s.checkUnique(ctx, doctor); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	doctor.ID = uuid.New()
	doctor.CreatedAt = now
	doctor.UpdatedAt = now

	if err := s.repo.Create(ctx, doctor); err != nil {
		return nil, err
	}
	log.Ctx(ctx).Info().Str("doctor_id", doctor.ID.String()).Msg("doctor created")
	return doctor, nil
}

func (s *service) GetDoctor(ctx context.Context, id uuid.UUID) (*model.Doctor, error) {
	doctor, err := s.repo.Get(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewNotFoundError("Doctor", id)
	}
	return doctor, err
}

func (s *service) UpdateDoctor(ctx context.Context, id uuid.UUID, req *model.DoctorRequest) (*model.Doctor, error) {
	if err := validator.Struct(req); err != nil {
		return nil, err
	}
	doctor, err := s.GetDoctor(ctx, id)
	if err != nil {
		return nil, err
	}

	apply(doctor, req)
	if err := s.checkUnique(ctx, doctor); err != nil {
		return nil, err
	}
	doctor.UpdatedAt = time.Now().UTC()

	if err := s.repo.Update(ctx, doctor); err != nil {
		return nil, err
	}
	log.Ctx(ctx).Info().Str("doctor_id", id.String()).Msg("doctor updated")
	return doctor, nil
}

// DeleteDoctor refuses while recipes or customers still reference the doctor.
func (s *service) DeleteDoctor(ctx context.Context, id uuid.UUID) error {
	if _, err := s.GetDoctor(ctx, id); err != nil {
		return err
	}
	refs, err := s.repo.References(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to check doctor references: %w", err)
	}
	if refs.Any() {
		return apperrors.NewConflict(fmt.Sprintf(
			"Doctor cannot be deleted: referenced by %d recipes and %d customers", refs.Recipes, refs.Customers))
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NewNotFoundError("Doctor", id)
		}
		return err
	}
	log.Ctx(ctx).Info().Str("doctor_id", id.String()).Msg("doctor deleted")
	return nil
}

func (s *service) ListDoctors(ctx context.Context, filter model.DoctorFilter) ([]*model.Doctor, error) {
	filter.Pagination = filter.Pagination.Normalize()
	return s.repo.List(ctx, filter)
}

func (s *service) CountDoctors(ctx context.Context) (int64, error) {
	return s.repo.Count(ctx)
}

func (s *service) FindByEmail(ctx context.Context, email string) (*model.Doctor, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, nil
	}
	return orNil(s.repo.GetByEmail(ctx, email))
}

func (s *service) FindByLicenseNumber(ctx context.Context, license string) (*model.Doctor, error) {
	license = strings.TrimSpace(license)
	if license == "" {
		return nil, nil
	}
	return orNil(s.repo.GetByLicenseNumber(ctx, license))
}

func (s *service) checkUnique(ctx context.Context, doctor *model.Doctor) error {
	existing, err := orNil(s.repo.GetByLicenseNumber(ctx, doctor.LicenseNumber))
	if err != nil {
		return err
	}
	if existing != nil && existing.ID != doctor.ID {
		return apperrors.NewDuplicate("license_number", "License number", doctor.LicenseNumber)
	}

	if doctor.Email == "" {
		return nil
	}
	existing, err = orNil(s.repo.GetByEmail(ctx, doctor.Email))
	if err != nil {
		return err
	}
	if existing != nil && existing.ID != doctor.ID {
		return apperrors.NewDuplicate("email", "Email", doctor.Email)
	}
	return nil
}

func apply(doctor *model.Doctor, req *model.DoctorRequest) {
	doctor.Name = strings.TrimSpace(req.Name)
	doctor.LicenseNumber = strings.TrimSpace(req.LicenseNumber)
	doctor.Specialty = strings.TrimSpace(req.Specialty)
	doctor.Email = strings.TrimSpace(req.Email)
	doctor.Phone = validator.NormalizePhone(req.Phone)
	if req.IsPrimaryDoctor != nil {
		doctor.IsPrimaryDoctor = *req.IsPrimaryDoctor
	}
}

func orNil(d *model.Doctor, err error) (*model.Doctor, error) {
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	return d, err
}
