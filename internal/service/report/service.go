// Package report holds the read-only projections and the dashboard.
package report

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/pharmacy-api/internal/model"
	"github.com/jwalitptl/pharmacy-api/internal/repository"
	"github.com/jwalitptl/pharmacy-api/internal/service/access"
	apperrors "github.com/jwalitptl/pharmacy-api/pkg/errors"
)

const (
	DefaultTopDiagnoses = 10
	recentRecipes       = 5
)

// CustomerNotLinkedMessage is shown when a customer-role identity has no customer record.
const CustomerNotLinkedMessage = "Customer account is not linked to a customer record. Please contact admin."

type Service interface {
	PatientsByDiagnosis(ctx context.Context, term string) ([]*model.CustomerView, error)
	MostCommonDiagnoses(ctx context.Context, limit int) ([]model.DiagnosisCount, error)
	PatientCountByDiagnosis(ctx context.Context, name string) (int64, error)
	PatientsByPrimaryDoctor(ctx context.Context, doctorID uuid.UUID, page model.Pagination) (*model.CustomerPage, error)
	PatientCountPerPrimaryDoctor(ctx context.Context) ([]model.DoctorStatistics, error)
	VisitsPerDoctor(ctx context.Context) ([]model.DoctorStatistics, error)
	PatientHistory(ctx context.Context, subject access.Subject, customerID uuid.UUID, page model.Pagination) (*model.PatientHistory, error)
	// MyHistory is PatientHistory for the customer whose email is the caller's.
	MyHistory(ctx context.Context, subject access.Subject, page model.Pagination) (*model.PatientHistory, error)
	Examinations(ctx context.Context, subject access.Subject, from, to model.Date, doctorID *uuid.UUID, page model.Pagination) (*model.RecipeList, error)
	SickLeavesByMonth(ctx context.Context) ([]model.MonthlyStatistics, error)
	DoctorsBySickLeaves(ctx context.Context) ([]model.DoctorStatistics, error)
	CustomersByInsurance(ctx context.Context, valid bool) ([]*model.CustomerView, error)
	Dashboard(ctx context.Context, subject access.Subject) (*model.Dashboard, error)
}

type Deps struct {
	Reports    repository.ReportRepository
	Customers  repository.CustomerRepository
	Doctors    repository.DoctorRepository
	Medicines  repository.MedicineRepository
	Recipes    repository.RecipeRepository
	Diagnoses  repository.DiagnosisRepository
	SickLeaves repository.SickLeaveRepository
}

type service struct {
	Deps
	today func() model.Date
}

func NewService(deps Deps) Service {
	return &service{Deps: deps, today: model.Today}
}

func (s *service) PatientsByDiagnosis(ctx context.Context, term string) ([]*model.CustomerView, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, apperrors.NewValidation("diagnosis", "Diagnosis is required")
	}
	customers, err := s.Reports.PatientsByDiagnosis(ctx, term)
	if err != nil {
		return nil, err
	}
	return s.views(customers), nil
}

func (s *service) MostCommonDiagnoses(ctx context.Context, limit int) ([]model.DiagnosisCount, error) {
	if limit <= 0 {
		limit = DefaultTopDiagnoses
	}
	if limit > model.MaxPageSize {
		limit = model.MaxPageSize
	}
	return s.Reports.MostCommonDiagnoses(ctx, limit)
}

func (s *service) PatientCountByDiagnosis(ctx context.Context, name string) (int64, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, apperrors.NewValidation("diagnosis", "Diagnosis is required")
	}
	return s.Reports.PatientCountByDiagnosis(ctx, name)
}

// PatientsByPrimaryDoctor pages through the doctor's active patients.
func (s *service) PatientsByPrimaryDoctor(ctx context.Context, doctorID uuid.UUID, page model.Pagination) (*model.CustomerPage, error) {
	if _, err := s.Doctors.Get(ctx, doctorID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFoundError("Doctor", doctorID)
		}
		return nil, err
	}
	filter := model.CustomerFilter{
		PrimaryDoctorID: &doctorID,
		ActiveOnly:      true,
		Pagination:      page.Normalize(),
	}
	total, err := s.Customers.CountMatching(ctx, filter)
	if err != nil {
		return nil, err
	}
	customers, err := s.Customers.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &model.CustomerPage{Items: s.views(customers), Total: total}, nil
}

func (s *service) PatientCountPerPrimaryDoctor(ctx context.Context) ([]model.DoctorStatistics, error) {
	return s.Reports.PatientCountPerPrimaryDoctor(ctx)
}

func (s *service) VisitsPerDoctor(ctx context.Context) ([]model.DoctorStatistics, error) {
	return s.Reports.VisitsPerDoctor(ctx)
}

// PatientHistory returns a page of the customer's recipes newest first. Doctors
// only see their own recipes; the rest are counted in Hidden.
func (s *service) PatientHistory(ctx context.Context, subject access.Subject, customerID uuid.UUID, page model.Pagination) (*model.PatientHistory, error) {
	if err := access.Require(subject); err != nil {
		return nil, err
	}
	customer, err := s.Customers.Get(ctx, customerID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewNotFoundError("Customer", customerID)
	}
	if err != nil {
		return nil, err
	}
	return s.history(ctx, subject, customer, page)
}

func (s *service) MyHistory(ctx context.Context, subject access.Subject, page model.Pagination) (*model.PatientHistory, error) {
	email := strings.TrimSpace(subject.Identity.Email)
	notLinked := &apperrors.AccountNotLinkedError{Email: email, Message: CustomerNotLinkedMessage}
	if email == "" {
		return nil, notLinked
	}
	customer, err := s.Customers.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, notLinked
	}
	if err != nil {
		return nil, err
	}
	return s.history(ctx, subject, customer, page)
}

// history scopes the query itself so a doctor's own recipes are never pushed
// off the page by other doctors' records. Hidden is the difference between the
// unscoped and the scoped count.
func (s *service) history(ctx context.Context, subject access.Subject, customer *model.Customer, page model.Pagination) (*model.PatientHistory, error) {
	scope, err := subject.DoctorScope()
	if err != nil {
		return nil, err
	}
	filter := model.RecipeFilter{CustomerID: &customer.ID, Newest: true}
	all, err := s.Recipes.Count(ctx, filter)
	if err != nil {
		return nil, err
	}
	total := all
	if scope != nil {
		filter.DoctorID = scope
		if total, err = s.Recipes.Count(ctx, filter); err != nil {
			return nil, err
		}
	}

	filter.Pagination = page.Normalize()
	recipes, err := s.Recipes.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	visible, _ := access.Filter(subject, recipes)
	today := s.today()
	for _, r := range visible {
		r.Expired = r.IsExpired(today)
	}
	return &model.PatientHistory{
		Customer: model.NewCustomerView(customer, today),
		Recipes:  visible,
		Total:    total,
		Hidden:   all - total,
	}, nil
}

func (s *service) Examinations(ctx context.Context, subject access.Subject, from, to model.Date, doctorID *uuid.UUID, page model.Pagination) (*model.RecipeList, error) {
	if from.IsZero() || to.IsZero() {
		return nil, apperrors.NewValidation("from", "Both start and end dates are required")
	}
	if to.Before(from) {
		return nil, apperrors.NewValidation("to", "End date cannot be before start date")
	}

	scope, err := subject.DoctorScope()
	if apperrors.IsAccountNotLinked(err) {
		return &model.RecipeList{Items: []*model.Recipe{}, DoctorNotLinked: true}, nil
	}
	if err != nil {
		return nil, err
	}
	if scope != nil {
		doctorID = scope
	}

	filter := model.RecipeFilter{
		DoctorID:   doctorID,
		From:       &from,
		To:         &to,
		Newest:     true,
		Pagination: page.Normalize(),
	}
	total, err := s.Recipes.Count(ctx, filter)
	if err != nil {
		return nil, err
	}
	recipes, err := s.Recipes.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	recipes, _ = access.Filter(subject, recipes)
	return &model.RecipeList{Items: recipes, Total: total}, nil
}

func (s *service) SickLeavesByMonth(ctx context.Context) ([]model.MonthlyStatistics, error) {
	stats, err := s.Reports.SickLeavesByMonth(ctx)
	if err != nil {
		return nil, err
	}
	for i := range stats {
		if stats[i].Month >= 1 && stats[i].Month <= 12 {
			stats[i].MonthName = time.Month(stats[i].Month).String()
		}
	}
	return stats, nil
}

func (s *service) DoctorsBySickLeaves(ctx context.Context) ([]model.DoctorStatistics, error) {
	return s.Reports.DoctorsBySickLeaves(ctx)
}

// CustomersByInsurance splits customers on insurance_paid_until >= today.
func (s *service) CustomersByInsurance(ctx context.Context, valid bool) ([]*model.CustomerView, error) {
	customers, err := s.Reports.CustomersByInsurance(ctx, s.today(), valid)
	if err != nil {
		return nil, err
	}
	return s.views(customers), nil
}

// Dashboard collects the headline counts. Recipe figures are scoped to the
// caller for doctors.
func (s *service) Dashboard(ctx context.Context, subject access.Subject) (*model.Dashboard, error) {
	scope, err := subject.DoctorScope()
	if err != nil {
		return nil, err
	}
	today := s.today()
	d := &model.Dashboard{}

	counters := []struct {
		dst *int64
		fn  func() (int64, error)
	}{
		{&d.TotalMedicines, func() (int64, error) { return s.Medicines.Count(ctx, false) }},
		{&d.MedicinesNeedingRecipe, func() (int64, error) { return s.Medicines.Count(ctx, true) }},
		{&d.TotalRecipes, func() (int64, error) { return s.Recipes.Count(ctx, model.RecipeFilter{DoctorID: scope}) }},
		{&d.TotalCustomers, func() (int64, error) { return s.Customers.Count(ctx, false) }},
		{&d.ActiveCustomers, func() (int64, error) { return s.Customers.Count(ctx, true) }},
		{&d.TotalDoctors, func() (int64, error) { return s.Doctors.Count(ctx) }},
		{&d.TotalDiagnoses, func() (int64, error) { return s.Diagnoses.Count(ctx, false) }},
		{&d.PrimaryDiagnoses, func() (int64, error) { return s.Diagnoses.Count(ctx, true) }},
		{&d.TotalSickLeaves, func() (int64, error) { return s.SickLeaves.Count(ctx, model.SickLeaveFilter{DoctorID: scope}) }},
		{&d.ActiveSickLeaves, func() (int64, error) {
			return s.SickLeaves.Count(ctx, model.SickLeaveFilter{DoctorID: scope, ActiveOn: &today})
		}},
	}
	for _, c := range counters {
		n, err := c.fn()
		if err != nil {
			return nil, err
		}
		*c.dst = n
	}

	if d.RecipesByStatus, err = s.Recipes.CountByStatus(ctx, scope); err != nil {
		return nil, err
	}
	recent, err := s.Recipes.List(ctx, model.RecipeFilter{
		DoctorID:   scope,
		Newest:     true,
		Pagination: model.Pagination{Limit: recentRecipes},
	})
	if err != nil {
		return nil, err
	}
	for _, r := range recent {
		r.Expired = r.IsExpired(today)
	}
	d.RecentRecipes = recent
	return d, nil
}

func (s *service) views(customers []*model.Customer) []*model.CustomerView {
	today := s.today()
	out := make([]*model.CustomerView, 0, len(customers))
	for _, c := range customers {
		out = append(out, model.NewCustomerView(c, today))
	}
	return out
}
