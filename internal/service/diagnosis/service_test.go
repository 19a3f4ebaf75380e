package diagnosis

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/pharmacy-api/internal/model"
	"github.com/jwalitptl/pharmacy-api/internal/repository"
	"github.com/jwalitptl/pharmacy-api/internal/service/access"
	"github.com/jwalitptl/pharmacy-api/internal/service/audit"
	"github.com/jwalitptl/pharmacy-api/pkg/auth"
	apperrors "github.com/jwalitptl/pharmacy-api/pkg/errors"
)

type passTx struct{}

func (passTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type fakeDiagnoses struct {
	repository.DiagnosisRepository
	rows    map[uuid.UUID]*model.Diagnosis
	cleared []uuid.UUID
}

func (f *fakeDiagnoses) Create(_ context.Context, d *model.Diagnosis) error {
	cp := *d
	f.rows[d.ID] = &cp
	return nil
}

func (f *fakeDiagnoses) Get(_ context.Context, id uuid.UUID) (*model.Diagnosis, error) {
	if d, ok := f.rows[id]; ok {
		cp := *d
		return &cp, nil
	}
	return nil, repository.ErrNotFound
}

func (f *fakeDiagnoses) Update(_ context.Context, d *model.Diagnosis) error {
	cp := *d
	f.rows[d.ID] = &cp
	return nil
}

func (f *fakeDiagnoses) Delete(_ context.Context, id uuid.UUID) error {
	delete(f.rows, id)
	return nil
}

func (f *fakeDiagnoses) List(_ context.Context, filter model.DiagnosisFilter) ([]*model.Diagnosis, error) {
	var out []*model.Diagnosis
	for _, d := range f.rows {
		if filter.DoctorID != nil && d.DoctorID != *filter.DoctorID {
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

func (f *fakeDiagnoses) ClearPrimary(_ context.Context, recipeID, keep uuid.UUID) error {
	f.cleared = append(f.cleared, keep)
	for _, d := range f.rows {
		if d.RecipeID == recipeID && d.ID != keep {
			d.IsPrimary = false
		}
	}
	return nil
}

type fakeRecipes struct {
	repository.RecipeRepository
	rows map[uuid.UUID]*model.Recipe
}

func (f *fakeRecipes) Get(_ context.Context, id uuid.UUID) (*model.Recipe, error) {
	if r, ok := f.rows[id]; ok {
		return r, nil
	}
	return nil, repository.ErrNotFound
}

type nopAuditor struct{ actions []string }

func (n *nopAuditor) Log(_ context.Context, _, action, _ string, _ uuid.UUID, _ *audit.LogOptions) error {
	n.actions = append(n.actions, action)
	return nil
}

type fixture struct {
	svc       *service
	diagnoses *fakeDiagnoses
	auditor   *nopAuditor
	doctor    *model.Doctor
	own       *model.Recipe
	foreign   *model.Recipe
}

func newFixture() *fixture {
	doctor := &model.Doctor{Email: "petrov@clinic.bg"}
	doctor.ID = uuid.New()
	own := &model.Recipe{DoctorID: doctor.ID, CustomerID: uuid.New()}
	own.ID = uuid.New()
	foreign := &model.Recipe{DoctorID: uuid.New(), CustomerID: uuid.New()}
	foreign.ID = uuid.New()

	f := &fixture{
		diagnoses: &fakeDiagnoses{rows: make(map[uuid.UUID]*model.Diagnosis)},
		auditor:   &nopAuditor{},
		doctor:    doctor,
		own:       own,
		foreign:   foreign,
	}
	recipes := &fakeRecipes{rows: map[uuid.UUID]*model.Recipe{own.ID: own, foreign.ID: foreign}}
	f.svc = NewService(passTx{}, f.diagnoses, recipes, f.auditor).(*service)
	f.svc.today = func() model.Date { return model.NewDate(2026, time.April, 2) }
	return f
}

func (f *fixture) asDoctor() access.Subject {
	return access.Subject{Identity: auth.Identity{Email: f.doctor.Email, Roles: []string{auth.RoleDoctor}}, Doctor: f.doctor}
}

var primary = true

func admin() access.Subject {
	return access.Subject{Identity: auth.Identity{Email: "admin@clinic.bg", Roles: []string{auth.RoleAdmin}}}
}

func TestCreateDiagnosisDefaults(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	first, err := f.svc.CreateDiagnosis(ctx, f.asDoctor(), &model.DiagnosisRequest{RecipeID: f.own.ID, Name: "Migraine"})
	require.NoError(t, err)
	assert.True(t, first.IsPrimary)
	assert.Equal(t, model.NewDate(2026, time.April, 2), *first.DiagnosisDate)
	assert.Equal(t, f.doctor.ID, first.DoctorID)

	f.own.Diagnoses = []model.Diagnosis{*first}
	second, err := f.svc.CreateDiagnosis(ctx, f.asDoctor(), &model.DiagnosisRequest{RecipeID: f.own.ID, Name: "Insomnia"})
	require.NoError(t, err)
	assert.False(t, second.IsPrimary)
	assert.Equal(t, []string{model.AuditActionCreate, model.AuditActionCreate}, f.auditor.actions)
}

func TestCreateDiagnosisPrimaryClearsOthers(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	first, err := f.svc.CreateDiagnosis(ctx, admin(), &model.DiagnosisRequest{RecipeID: f.own.ID, Name: "Migraine"})
	require.NoError(t, err)
	f.own.Diagnoses = []model.Diagnosis{*first}

	second, err := f.svc.CreateDiagnosis(ctx, admin(), &model.DiagnosisRequest{RecipeID: f.own.ID, Name: "Insomnia", IsPrimary: &primary})
	require.NoError(t, err)
	assert.True(t, f.diagnoses.rows[second.ID].IsPrimary)
	assert.False(t, f.diagnoses.rows[first.ID].IsPrimary)
}

func TestDiagnosisValidation(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.svc.CreateDiagnosis(ctx, admin(), &model.DiagnosisRequest{RecipeID: f.own.ID, Name: "ab"})
	var verr *apperrors.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "name", verr.Field)

	_, err = f.svc.CreateDiagnosis(ctx, admin(), &model.DiagnosisRequest{RecipeID: f.own.ID, Name: "Migraine", Severity: "MEH"})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "severity", verr.Field)

	_, err = f.svc.CreateDiagnosis(ctx, admin(), &model.DiagnosisRequest{RecipeID: uuid.New(), Name: "Migraine"})
	assert.True(t, apperrors.IsNotFound(err))
}

func TestDiagnosisOwnership(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.svc.CreateDiagnosis(ctx, f.asDoctor(), &model.DiagnosisRequest{RecipeID: f.foreign.ID, Name: "Migraine"})
	var denied *apperrors.AccessDeniedError
	require.ErrorAs(t, err, &denied)
	assert.Equal(t, access.DeniedDiagnosis, denied.Reason)

	foreignDiagnosis, err := f.svc.CreateDiagnosis(ctx, admin(), &model.DiagnosisRequest{RecipeID: f.foreign.ID, Name: "Gastritis"})
	require.NoError(t, err)

	_, err = f.svc.GetDiagnosis(ctx, f.asDoctor(), foreignDiagnosis.ID)
	assert.True(t, apperrors.IsAccessDenied(err))
	assert.True(t, apperrors.IsAccessDenied(f.svc.DeleteDiagnosis(ctx, f.asDoctor(), foreignDiagnosis.ID)))

	list, err := f.svc.ListDiagnoses(ctx, f.asDoctor(), model.DiagnosisFilter{})
	require.NoError(t, err)
	assert.Empty(t, list.Items)

	unlinked := access.Subject{Identity: auth.Identity{Email: "x@clinic.bg", Roles: []string{auth.RoleDoctor}}}
	list, err = f.svc.ListDiagnoses(ctx, unlinked, model.DiagnosisFilter{})
	require.NoError(t, err)
	assert.True(t, list.DoctorNotLinked)
}

func TestUpdateDiagnosis(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	d, err := f.svc.CreateDiagnosis(ctx, f.asDoctor(), &model.DiagnosisRequest{RecipeID: f.own.ID, Name: "Migraine"})
	require.NoError(t, err)

	updated, err := f.svc.UpdateDiagnosis(ctx, f.asDoctor(), d.ID, &model.DiagnosisRequest{
		RecipeID: f.own.ID, Name: "Chronic migraine", ICD10Code: "G43.7", Severity: model.SeveritySevere, IsPrimary: &primary,
	})
	require.NoError(t, err)
	assert.Equal(t, "Chronic migraine", updated.Name)
	assert.Equal(t, "Chronic migraine", f.diagnoses.rows[d.ID].Name)
	assert.Contains(t, f.diagnoses.cleared, d.ID)

	_, err = f.svc.UpdateDiagnosis(ctx, f.asDoctor(), d.ID, &model.DiagnosisRequest{RecipeID: f.foreign.ID, Name: "Migraine"})
	assert.True(t, apperrors.IsAccessDenied(err))
}

func TestUpdateDiagnosisKeepsPrimaryWhenUnset(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	d, err := f.svc.CreateDiagnosis(ctx, f.asDoctor(), &model.DiagnosisRequest{RecipeID: f.own.ID, Name: "Migraine"})
	require.NoError(t, err)
	require.True(t, d.IsPrimary)

	updated, err := f.svc.UpdateDiagnosis(ctx, f.asDoctor(), d.ID, &model.DiagnosisRequest{RecipeID: f.own.ID, Name: "Chronic migraine"})
	require.NoError(t, err)
	assert.True(t, updated.IsPrimary)
	assert.True(t, f.diagnoses.rows[d.ID].IsPrimary)

	notPrimary := false
	updated, err = f.svc.UpdateDiagnosis(ctx, f.asDoctor(), d.ID, &model.DiagnosisRequest{RecipeID: f.own.ID, Name: "Chronic migraine", IsPrimary: &notPrimary})
	require.NoError(t, err)
	assert.False(t, updated.IsPrimary)
}
