package customer

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
	CreateCustomer(ctx context.Context, req *model.CustomerRequest) (*model.CustomerView, error)
	GetCustomer(ctx context.Context, id uuid.UUID) (*model.CustomerView, error)
	UpdateCustomer(ctx context.Context, id uuid.UUID, req *model.CustomerRequest) (*model.CustomerView, error)
	// DeactivateCustomer is the soft delete. Reactivation goes through UpdateCustomer.
	DeactivateCustomer(ctx context.Context, id uuid.UUID) error
	DeleteCustomer(ctx context.Context, id uuid.UUID) error
	ListCustomers(ctx context.Context, filter model.CustomerFilter) ([]*model.CustomerView, error)
	CountCustomers(ctx context.Context, activeOnly bool) (int64, error)
	FindByEmail(ctx context.Context, email string) (*model.CustomerView, error)
}

type service struct {
	repo    repository.CustomerRepository
	doctors repository.DoctorRepository
	today   func() model.Date
}

func NewService(repo repository.CustomerRepository, doctors repository.DoctorRepository) Service {
	return &service{repo: repo, doctors: doctors, today: model.Today}
}

func (s *service) CreateCustomer(ctx context.Context, req *model.CustomerRequest) (*model.CustomerView, error) {
	if err := s.validate(ctx, req); err != nil {
		return nil, err
	}
	if err := s.checkEmail(ctx, uuid.Nil, req.Email); err != nil {
		return nil, err
	}

	c := &model.Customer{Active: true}
	apply(c, req)
	now := time.Now().UTC()
	c.ID = uuid.New()
	c.CreatedAt = now
	c.UpdatedAt = now

	if err := s.repo.Create(ctx, c); err != nil {
		return nil, err
	}
	log.Ctx(ctx).Info().Str("customer_id", c.ID.String()).Msg("customer created")
	return model.NewCustomerView(c, s.today()), nil
}

func (s *service) GetCustomer(ctx context.Context, id uuid.UUID) (*model.CustomerView, error) {
	c, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	return model.NewCustomerView(c, s.today()), nil
}

func (s *service) UpdateCustomer(ctx context.Context, id uuid.UUID, req *model.CustomerRequest) (*model.CustomerView, error) {
	if err := s.validate(ctx, req); err != nil {
		return nil, err
	}
	c, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(strings.TrimSpace(req.Email), c.Email) {
		if err := s.checkEmail(ctx, c.ID, req.Email); err != nil {
			return nil, err
		}
	}

	apply(c, req)
	c.UpdatedAt = time.Now().UTC()
	if err := s.repo.Update(ctx, c); err != nil {
		return nil, err
	}
	log.Ctx(ctx).Info().Str("customer_id", id.String()).Bool("active", c.Active).Msg("customer updated")
	return model.NewCustomerView(c, s.today()), nil
}

func (s *service) DeactivateCustomer(ctx context.Context, id uuid.UUID) error {
	c, err := s.get(ctx, id)
	if err != nil {
		return err
	}
	if !c.Active {
		return nil
	}
	c.Active = false
	c.UpdatedAt = time.Now().UTC()
	if err := s.repo.Update(ctx, c); err != nil {
		return err
	}
	log.Ctx(ctx).Info().Str("customer_id", id.String()).Msg("customer deactivated")
	return nil
}

func (s *service) DeleteCustomer(ctx context.Context, id uuid.UUID) error {
	err := s.repo.Delete(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NewNotFoundError("Customer", id)
	}
	if err != nil {
		return err
	}
	log.Ctx(ctx).Info().Str("customer_id", id.String()).Msg("customer deleted")
	return nil
}

func (s *service) ListCustomers(ctx context.Context, filter model.CustomerFilter) ([]*model.CustomerView, error) {
	filter.Pagination = filter.Pagination.Normalize()
	today := s.today()
	if filter.AgeOn.IsZero() {
		filter.AgeOn = today
	}
	customers, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	views := make([]*model.CustomerView, 0, len(customers))
	for _, c := range customers {
		views = append(views, model.NewCustomerView(c, today))
	}
	return views, nil
}

func (s *service) CountCustomers(ctx context.Context, activeOnly bool) (int64, error) {
	return s.repo.Count(ctx, activeOnly)
}

// FindByEmail returns nil without error when no customer has the email.
func (s *service) FindByEmail(ctx context.Context, email string) (*model.CustomerView, error) {
	if strings.TrimSpace(email) == "" {
		return nil, nil
	}
	c, err := s.repo.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return model.NewCustomerView(c, s.today()), nil
}

func (s *service) get(ctx context.Context, id uuid.UUID) (*model.Customer, error) {
	c, err := s.repo.Get(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewNotFoundError("Customer", id)
	}
	return c, err
}

func (s *service) validate(ctx context.Context, req *model.CustomerRequest) error {
	if err := validator.Struct(req); err != nil {
		return err
	}
	if req.DateOfBirth != nil && req.DateOfBirth.After(s.today()) {
		return apperrors.NewValidation("date_of_birth", "Date of birth cannot be in the future")
	}
	if _, err := s.doctors.Get(ctx, req.PrimaryDoctorID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NewNotFoundError("Doctor", req.PrimaryDoctorID)
		}
		return err
	}
	return nil
}

func (s *service) checkEmail(ctx context.Context, self uuid.UUID, email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil
	}
	existing, err := s.repo.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if existing.ID != self {
		return apperrors.NewDuplicate("email", "Email", email)
	}
	return nil
}

func apply(c *model.Customer, req *model.CustomerRequest) {
	c.Name = strings.TrimSpace(req.Name)
	c.EGN = req.EGN
	c.Email = strings.TrimSpace(req.Email)
	c.Phone = validator.NormalizePhone(req.Phone)
	c.Address = strings.TrimSpace(req.Address)
	c.DateOfBirth = req.DateOfBirth
	c.Allergies = req.Allergies
	c.MedicalHistory = req.MedicalHistory
	c.InsuranceNumber = strings.TrimSpace(req.InsuranceNumber)
	c.InsurancePaidUntil = req.InsurancePaidUntil
	c.PrimaryDoctorID = req.PrimaryDoctorID
	if req.Active != nil {
		c.Active = *req.Active
	}
}
