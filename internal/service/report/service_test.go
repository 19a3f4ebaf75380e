package report

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/pharmacy-api/internal/model"
	"github.com/jwalitptl/pharmacy-api/internal/repository"
	"github.com/jwalitptl/pharmacy-api/internal/service/access"
	"github.com/jwalitptl/pharmacy-api/pkg/auth"
	apperrors "github.com/jwalitptl/pharmacy-api/pkg/errors"
)

type fakeReports struct {
	repository.ReportRepository
	months []model.MonthlyStatistics
	limit  int
	valid  *bool
}

func (f *fakeReports) MostCommonDiagnoses(_ context.Context, limit int) ([]model.DiagnosisCount, error) {
	f.limit = limit
	return []model.DiagnosisCount{{Diagnosis: "flu", Count: 3}}, nil
}

func (f *fakeReports) SickLeavesByMonth(context.Context) ([]model.MonthlyStatistics, error) {
	return f.months, nil
}

func (f *fakeReports) CustomersByInsurance(_ context.Context, _ model.Date, valid bool) ([]*model.Customer, error) {
	f.valid = &valid
	return []*model.Customer{{Name: "Ivan"}}, nil
}

type fakeCustomers struct {
	repository.CustomerRepository
	rows   []*model.Customer
	filter model.CustomerFilter
}

func (f *fakeCustomers) Get(_ context.Context, id uuid.UUID) (*model.Customer, error) {
	for _, c := range f.rows {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeCustomers) GetByEmail(_ context.Context, email string) (*model.Customer, error) {
	for _, c := range f.rows {
		if c.Email == email {
			return c, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeCustomers) List(_ context.Context, filter model.CustomerFilter) ([]*model.Customer, error) {
	f.filter = filter
	return f.rows, nil
}

func (f *fakeCustomers) CountMatching(context.Context, model.CustomerFilter) (int64, error) {
	return int64(len(f.rows)), nil
}

func (f *fakeCustomers) Count(_ context.Context, activeOnly bool) (int64, error) {
	if activeOnly {
		return 1, nil
	}
	return int64(len(f.rows)), nil
}

type fakeDoctors struct {
	repository.DoctorRepository
	known uuid.UUID
}

func (f *fakeDoctors) Get(_ context.Context, id uuid.UUID) (*model.Doctor, error) {
	if id != f.known {
		return nil, repository.ErrNotFound
	}
	return &model.Doctor{Base: model.Base{ID: id}}, nil
}

func (f *fakeDoctors) Count(context.Context) (int64, error) { return 2, nil }

type fakeRecipes struct {
	repository.RecipeRepository
	rows   []*model.Recipe
	filter model.RecipeFilter
	scope  *uuid.UUID
}

// List returns the stored rows in order, paged like the database would.
func (f *fakeRecipes) List(_ context.Context, filter model.RecipeFilter) ([]*model.Recipe, error) {
	f.filter = filter
	out := f.match(filter)
	if filter.Offset >= len(out) {
		return []*model.Recipe{}, nil
	}
	out = out[filter.Offset:]
	if filter.Limit > 0 && filter.Limit < len(out) {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (f *fakeRecipes) match(filter model.RecipeFilter) []*model.Recipe {
	out := []*model.Recipe{}
	for _, r := range f.rows {
		if filter.DoctorID != nil && r.DoctorID != *filter.DoctorID {
			continue
		}
		if filter.CustomerID != nil && r.CustomerID != *filter.CustomerID {
			continue
		}
		cp := *r
		out = append(out, &cp)
	}
	return out
}

func (f *fakeRecipes) Count(_ context.Context, filter model.RecipeFilter) (int64, error) {
	return int64(len(f.match(filter))), nil
}

func (f *fakeRecipes) CountByStatus(_ context.Context, doctorID *uuid.UUID) (map[model.RecipeStatus]int64, error) {
	f.scope = doctorID
	return map[model.RecipeStatus]int64{model.RecipeStatusActive: 1}, nil
}

type fakeMedicines struct{ repository.MedicineRepository }

func (fakeMedicines) Count(_ context.Context, needsRecipe bool) (int64, error) {
	if needsRecipe {
		return 4, nil
	}
	return 10, nil
}

type fakeDiagnoses struct{ repository.DiagnosisRepository }

func (fakeDiagnoses) Count(_ context.Context, primaryOnly bool) (int64, error) {
	if primaryOnly {
		return 1, nil
	}
	return 3, nil
}

type fakeLeaves struct{ repository.SickLeaveRepository }

func (fakeLeaves) Count(_ context.Context, filter model.SickLeaveFilter) (int64, error) {
	if filter.ActiveOn != nil {
		return 1, nil
	}
	return 5, nil
}

type fixture struct {
	svc       Service
	reports   *fakeReports
	customers *fakeCustomers
	recipes   *fakeRecipes
	doctorID  uuid.UUID
	otherID   uuid.UUID
	customer  *model.Customer
}

func newFixture() *fixture {
	f := &fixture{doctorID: uuid.New(), otherID: uuid.New()}
	f.customer = &model.Customer{Base: model.Base{ID: uuid.New()}, Name: "Maria", Email: "maria@example.com"}
	f.reports = &fakeReports{}
	f.customers = &fakeCustomers{rows: []*model.Customer{f.customer}}
	expired := model.NewDate(2024, 1, 1)
	f.recipes = &fakeRecipes{rows: []*model.Recipe{
		{Base: model.Base{ID: uuid.New()}, DoctorID: f.doctorID, CustomerID: f.customer.ID, ExpirationDate: &expired},
		{Base: model.Base{ID: uuid.New()}, DoctorID: f.otherID, CustomerID: f.customer.ID},
	}}
	svc := NewService(Deps{
		Reports:    f.reports,
		Customers:  f.customers,
		Doctors:    &fakeDoctors{known: f.doctorID},
		Medicines:  fakeMedicines{},
		Recipes:    f.recipes,
		Diagnoses:  fakeDiagnoses{},
		SickLeaves: fakeLeaves{},
	})
	svc.(*service).today = func() model.Date { return model.NewDate(2025, 3, 1) }
	f.svc = svc
	return f
}

func (f *fixture) doctor() access.Subject {
	return access.Subject{
		Identity: auth.Identity{Email: "doc@example.com", Roles: []string{auth.RoleDoctor}},
		Doctor:   &model.Doctor{Base: model.Base{ID: f.doctorID}},
	}
}

func admin() access.Subject {
	return access.Subject{Identity: auth.Identity{Email: "admin@example.com", Roles: []string{auth.RoleAdmin}}}
}

func TestPatientHistoryHidesOtherDoctorsRecipes(t *testing.T) {
	f := newFixture()

	h, err := f.svc.PatientHistory(context.Background(), f.doctor(), f.customer.ID, model.Pagination{})
	require.NoError(t, err)
	require.Len(t, h.Recipes, 1)
	assert.Equal(t, f.doctorID, h.Recipes[0].DoctorID)
	assert.True(t, h.Recipes[0].Expired)
	assert.EqualValues(t, 1, h.Hidden)
	assert.EqualValues(t, 1, h.Total)
	assert.True(t, f.recipes.filter.Newest)
	assert.Equal(t, f.doctorID, *f.recipes.filter.DoctorID)

	h, err = f.svc.PatientHistory(context.Background(), admin(), f.customer.ID, model.Pagination{})
	require.NoError(t, err)
	assert.Len(t, h.Recipes, 2)
	assert.EqualValues(t, 2, h.Total)
	assert.Zero(t, h.Hidden)
}

func TestPatientHistoryDoctorSeesOwnRecipeBehindManyOthers(t *testing.T) {
	f := newFixture()
	rows := make([]*model.Recipe, 0, 601)
	for i := 0; i < 600; i++ {
		rows = append(rows, &model.Recipe{Base: model.Base{ID: uuid.New()}, DoctorID: f.otherID, CustomerID: f.customer.ID})
	}
	own := &model.Recipe{Base: model.Base{ID: uuid.New()}, DoctorID: f.doctorID, CustomerID: f.customer.ID}
	f.recipes.rows = append(rows, own)

	h, err := f.svc.PatientHistory(context.Background(), f.doctor(), f.customer.ID, model.Pagination{Limit: model.MaxPageSize})
	require.NoError(t, err)
	require.Len(t, h.Recipes, 1)
	assert.Equal(t, own.ID, h.Recipes[0].ID)
	assert.EqualValues(t, 1, h.Total)
	assert.EqualValues(t, 600, h.Hidden)

	h, err = f.svc.PatientHistory(context.Background(), admin(), f.customer.ID, model.Pagination{Limit: model.MaxPageSize})
	require.NoError(t, err)
	assert.Len(t, h.Recipes, model.MaxPageSize)
	assert.EqualValues(t, 601, h.Total)
	assert.Zero(t, h.Hidden)

	h, err = f.svc.PatientHistory(context.Background(), admin(), f.customer.ID, model.Pagination{Limit: model.MaxPageSize, Offset: 600})
	require.NoError(t, err)
	require.Len(t, h.Recipes, 1)
	assert.Equal(t, own.ID, h.Recipes[0].ID)
}

func TestExaminationsReportsTotalAcrossPages(t *testing.T) {
	f := newFixture()
	for i := 0; i < 60; i++ {
		f.recipes.rows = append(f.recipes.rows, &model.Recipe{Base: model.Base{ID: uuid.New()}, DoctorID: f.doctorID, CustomerID: f.customer.ID})
	}
	from, to := model.NewDate(2025, 1, 1), model.NewDate(2025, 1, 31)

	list, err := f.svc.Examinations(context.Background(), f.doctor(), from, to, nil, model.Pagination{})
	require.NoError(t, err)
	assert.Len(t, list.Items, model.DefaultPageSize)
	assert.EqualValues(t, 61, list.Total)
}

func TestPatientHistoryUnknownCustomer(t *testing.T) {
	f := newFixture()

	_, err := f.svc.PatientHistory(context.Background(), admin(), uuid.New(), model.Pagination{})
	assert.True(t, apperrors.IsNotFound(err))
}

func TestMyHistory(t *testing.T) {
	f := newFixture()
	me := access.Subject{Identity: auth.Identity{Email: "maria@example.com", Roles: []string{auth.RoleCustomer}}}

	h, err := f.svc.MyHistory(context.Background(), me, model.Pagination{})
	require.NoError(t, err)
	assert.Equal(t, "Maria", h.Customer.Name)
	assert.Len(t, h.Recipes, 2)

	stranger := access.Subject{Identity: auth.Identity{Email: "nobody@example.com", Roles: []string{auth.RoleCustomer}}}
	_, err = f.svc.MyHistory(context.Background(), stranger, model.Pagination{})
	require.True(t, apperrors.IsAccountNotLinked(err))
	assert.Equal(t, CustomerNotLinkedMessage, err.Error())
}

func TestExaminationsScopedToDoctor(t *testing.T) {
	f := newFixture()
	from, to := model.NewDate(2025, 1, 1), model.NewDate(2025, 1, 31)

	list, err := f.svc.Examinations(context.Background(), f.doctor(), from, to, &f.otherID, model.Pagination{})
	require.NoError(t, err)
	assert.Equal(t, f.doctorID, *f.recipes.filter.DoctorID)
	assert.Len(t, list.Items, 1)

	unlinked := access.Subject{Identity: auth.Identity{Email: "x@example.com", Roles: []string{auth.RoleDoctor}}}
	list, err = f.svc.Examinations(context.Background(), unlinked, from, to, nil, model.Pagination{})
	require.NoError(t, err)
	assert.True(t, list.DoctorNotLinked)
	assert.Empty(t, list.Items)

	_, err = f.svc.Examinations(context.Background(), admin(), to, from, nil, model.Pagination{})
	assert.True(t, apperrors.IsValidation(err))
}

func TestSickLeavesByMonthNamesMonths(t *testing.T) {
	f := newFixture()
	f.reports.months = []model.MonthlyStatistics{{Year: 2025, Month: 2, Count: 4}}

	stats, err := f.svc.SickLeavesByMonth(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "February", stats[0].MonthName)
}

func TestMostCommonDiagnosesDefaultsLimit(t *testing.T) {
	f := newFixture()

	_, err := f.svc.MostCommonDiagnoses(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultTopDiagnoses, f.reports.limit)
}

func TestPatientsByPrimaryDoctor(t *testing.T) {
	f := newFixture()

	page, err := f.svc.PatientsByPrimaryDoctor(context.Background(), f.doctorID, model.Pagination{Offset: 10})
	require.NoError(t, err)
	assert.Len(t, page.Items, 1)
	assert.EqualValues(t, 1, page.Total)
	assert.Equal(t, model.DefaultPageSize, f.customers.filter.Limit)
	assert.Equal(t, 10, f.customers.filter.Offset)
	assert.True(t, f.customers.filter.ActiveOnly)
	assert.Equal(t, f.doctorID, *f.customers.filter.PrimaryDoctorID)

	_, err = f.svc.PatientsByPrimaryDoctor(context.Background(), uuid.New(), model.Pagination{})
	assert.True(t, apperrors.IsNotFound(err))
}

func TestCustomersByInsurance(t *testing.T) {
	f := newFixture()

	views, err := f.svc.CustomersByInsurance(context.Background(), false)
	require.NoError(t, err)
	assert.Len(t, views, 1)
	assert.False(t, *f.reports.valid)
	assert.False(t, views[0].HasValidInsurance)
}

func TestDashboard(t *testing.T) {
	f := newFixture()

	d, err := f.svc.Dashboard(context.Background(), f.doctor())
	require.NoError(t, err)
	assert.EqualValues(t, 10, d.TotalMedicines)
	assert.EqualValues(t, 4, d.MedicinesNeedingRecipe)
	assert.EqualValues(t, 1, d.TotalRecipes)
	assert.EqualValues(t, 2, d.TotalDoctors)
	assert.EqualValues(t, 1, d.ActiveSickLeaves)
	assert.Equal(t, f.doctorID, *f.recipes.scope)
	assert.Len(t, d.RecentRecipes, 1)
	assert.Equal(t, 5, f.recipes.filter.Limit)

	d, err = f.svc.Dashboard(context.Background(), admin())
	require.NoError(t, err)
	assert.EqualValues(t, 2, d.TotalRecipes)
	assert.Nil(t, f.recipes.scope)
}
