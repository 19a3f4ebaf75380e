package recipe

import (
	"context"
	"errors"
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

type fakeTx struct{ calls int }

func (f *fakeTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	f.calls++
	return fn(ctx)
}

type fakeRecipes struct {
	repository.RecipeRepository
	rows map[uuid.UUID]*model.Recipe
}

func clone(r *model.Recipe) *model.Recipe {
	cp := *r
	cp.Medicines = append([]model.RecipeMedicine(nil), r.Medicines...)
	cp.Diagnoses = append([]model.Diagnosis(nil), r.Diagnoses...)
	return &cp
}

func (f *fakeRecipes) Create(_ context.Context, r *model.Recipe) error {
	f.rows[r.ID] = clone(r)
	return nil
}

func (f *fakeRecipes) Get(_ context.Context, id uuid.UUID) (*model.Recipe, error) {
	if r, ok := f.rows[id]; ok {
		return clone(r), nil
	}
	return nil, repository.ErrNotFound
}

func (f *fakeRecipes) Update(_ context.Context, r *model.Recipe) error {
	if _, ok := f.rows[r.ID]; !ok {
		return repository.ErrNotFound
	}
	f.rows[r.ID] = clone(r)
	return nil
}

func (f *fakeRecipes) Delete(_ context.Context, id uuid.UUID) error {
	delete(f.rows, id)
	return nil
}

func (f *fakeRecipes) List(_ context.Context, filter model.RecipeFilter) ([]*model.Recipe, error) {
	var out []*model.Recipe
	for _, r := range f.rows {
		if filter.DoctorID != nil && r.DoctorID != *filter.DoctorID {
			continue
		}
		out = append(out, clone(r))
	}
	return out, nil
}

func (f *fakeRecipes) DiagnosisSummaries(context.Context) ([]string, error) {
	return []string{"Flu, Covid"}, nil
}

type fakeDoctors struct {
	repository.DoctorRepository
	known map[uuid.UUID]bool
}

func (f *fakeDoctors) Get(_ context.Context, id uuid.UUID) (*model.Doctor, error) {
	if !f.known[id] {
		return nil, repository.ErrNotFound
	}
	d := &model.Doctor{}
	d.ID = id
	return d, nil
}

type fakeCustomers struct {
	repository.CustomerRepository
	known map[uuid.UUID]bool
}

func (f *fakeCustomers) Get(_ context.Context, id uuid.UUID) (*model.Customer, error) {
	if !f.known[id] {
		return nil, repository.ErrNotFound
	}
	c := &model.Customer{}
	c.ID = id
	return c, nil
}

type fakeMedicines struct {
	repository.MedicineRepository
	known map[uuid.UUID]bool
}

func (f *fakeMedicines) MissingIDs(_ context.Context, ids []uuid.UUID) ([]uuid.UUID, error) {
	var missing []uuid.UUID
	for _, id := range ids {
		if !f.known[id] {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

type fakeDiagnoses struct {
	repository.DiagnosisRepository
}

func (fakeDiagnoses) DistinctNames(context.Context) ([]string, error) {
	return []string{"asthma"}, nil
}

type auditEntry struct {
	actor, action string
	id            uuid.UUID
	opts          *audit.LogOptions
}

type fakeAuditor struct{ entries []auditEntry }

func (f *fakeAuditor) Log(_ context.Context, actor, action, _ string, id uuid.UUID, opts *audit.LogOptions) error {
	f.entries = append(f.entries, auditEntry{actor, action, id, opts})
	return nil
}

type fakeEvents struct {
	types []string
	err   error
}

func (f *fakeEvents) Emit(_ context.Context, eventType string, _ interface{}) error {
	if f.err != nil {
		return f.err
	}
	f.types = append(f.types, eventType)
	return nil
}

type fixture struct {
	svc       *service
	recipes   *fakeRecipes
	auditor   *fakeAuditor
	events    *fakeEvents
	doctor    *model.Doctor
	other     uuid.UUID
	customer  uuid.UUID
	medicines []uuid.UUID
}

func newFixture() *fixture {
	f := &fixture{
		recipes:   &fakeRecipes{rows: make(map[uuid.UUID]*model.Recipe)},
		auditor:   &fakeAuditor{},
		events:    &fakeEvents{},
		doctor:    &model.Doctor{Name: "Dr. Petrov", Email: "petrov@clinic.bg"},
		other:     uuid.New(),
		customer:  uuid.New(),
		medicines: []uuid.UUID{uuid.New(), uuid.New()},
	}
	f.doctor.ID = uuid.New()

	f.svc = NewService(Deps{
		Tx:        &fakeTx{},
		Recipes:   f.recipes,
		Doctors:   &fakeDoctors{known: map[uuid.UUID]bool{f.doctor.ID: true, f.other: true}},
		Customers: &fakeCustomers{known: map[uuid.UUID]bool{f.customer: true}},
		Medicines: &fakeMedicines{known: map[uuid.UUID]bool{f.medicines[0]: true, f.medicines[1]: true}},
		Diagnoses: fakeDiagnoses{},
		Auditor:   f.auditor,
		Events:    f.events,
	}).(*service)
	f.svc.today = func() model.Date { return today }
	return f
}

func (f *fixture) admin() access.Subject {
	return access.Subject{Identity: auth.Identity{Email: "admin@clinic.bg", Roles: []string{auth.RoleAdmin}}}
}

func (f *fixture) asDoctor() access.Subject {
	return access.Subject{Identity: auth.Identity{Email: f.doctor.Email, Roles: []string{auth.RoleDoctor}}, Doctor: f.doctor}
}

func (f *fixture) unlinked() access.Subject {
	return access.Subject{Identity: auth.Identity{Email: "new@clinic.bg", Roles: []string{auth.RoleDoctor}}}
}

func (f *fixture) request(doctorID uuid.UUID) *model.RecipeRequest {
	return &model.RecipeRequest{
		CreationDate: today,
		DoctorID:     doctorID,
		CustomerID:   f.customer,
		Status:       model.RecipeStatusActive,
		Diagnoses:    []model.DiagnosisInput{{Name: "Tonsillitis"}},
		Medicines: []*model.RecipeMedicineInput{
			{MedicineID: f.medicines[0], Dosage: "500mg", DurationDays: 7},
			{MedicineID: f.medicines[1], Dosage: "1 tablet", DurationDays: 3},
		},
	}
}

func TestCreateAndReadBack(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	created, err := f.svc.CreateRecipe(ctx, f.admin(), f.request(f.doctor.ID))
	require.NoError(t, err)

	got, err := f.svc.GetRecipe(ctx, f.admin(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, f.doctor.ID, got.DoctorID)
	assert.Equal(t, f.customer, got.CustomerID)
	assert.Equal(t, model.RecipeStatusActive, got.Status)
	require.Len(t, got.Medicines, 2)
	assert.Equal(t, f.medicines[0], got.Medicines[0].MedicineID)
	assert.Equal(t, f.medicines[1], got.Medicines[1].MedicineID)
	assert.Equal(t, 1, got.Medicines[1].Quantity)
	require.Len(t, got.Diagnoses, 1)
	assert.True(t, got.Diagnoses[0].IsPrimary)

	assert.Equal(t, []string{model.EventRecipeCreated}, f.events.types)
	require.Len(t, f.auditor.entries, 1)
	assert.Equal(t, "admin@clinic.bg", f.auditor.entries[0].actor)
}

func TestCreateForcesDoctorForDoctorRole(t *testing.T) {
	f := newFixture()

	created, err := f.svc.CreateRecipe(context.Background(), f.asDoctor(), f.request(f.other))
	require.NoError(t, err)
	assert.Equal(t, f.doctor.ID, created.DoctorID)
}

func TestCreateRejectsUnknownReferences(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	req := f.request(f.doctor.ID)
	req.CustomerID = uuid.New()
	_, err := f.svc.CreateRecipe(ctx, f.admin(), req)
	var nf *apperrors.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "Customer", nf.Kind)

	req = f.request(f.doctor.ID)
	unknown := uuid.New()
	req.Medicines[1].MedicineID = unknown
	_, err = f.svc.CreateRecipe(ctx, f.admin(), req)
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "Medicine", nf.Kind)
	assert.Equal(t, unknown.String(), nf.ID)
	assert.Empty(t, f.recipes.rows)
}

func TestUpdateReplacesChildrenIdempotently(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	created, err := f.svc.CreateRecipe(ctx, f.admin(), f.request(f.doctor.ID))
	require.NoError(t, err)

	req := f.request(f.doctor.ID)
	req.Medicines = req.Medicines[:1]
	req.Diagnosis = "Flu, flu, Covid"
	req.Diagnoses = nil

	for i := 0; i < 2; i++ {
		_, err := f.svc.UpdateRecipe(ctx, f.admin(), created.ID, req)
		require.NoError(t, err)

		stored := f.recipes.rows[created.ID]
		assert.Len(t, stored.Medicines, 1)
		assert.Equal(t, []string{"Flu", "Covid"}, names(stored.Diagnoses))
		assert.Equal(t, "Flu, Covid", stored.Diagnosis)
		assert.Equal(t, created.CreatedAt, stored.CreatedAt)
	}

	last := f.auditor.entries[len(f.auditor.entries)-1]
	assert.Equal(t, model.AuditActionUpdate, last.action)
}

func TestDoctorOwnership(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	foreign, err := f.svc.CreateRecipe(ctx, f.admin(), f.request(f.other))
	require.NoError(t, err)
	own, err := f.svc.CreateRecipe(ctx, f.asDoctor(), f.request(f.doctor.ID))
	require.NoError(t, err)

	_, err = f.svc.GetRecipe(ctx, f.asDoctor(), foreign.ID)
	assert.True(t, apperrors.IsAccessDenied(err))
	_, err = f.svc.UpdateRecipe(ctx, f.asDoctor(), foreign.ID, f.request(f.doctor.ID))
	assert.True(t, apperrors.IsAccessDenied(err))
	assert.True(t, apperrors.IsAccessDenied(f.svc.DeleteRecipe(ctx, f.asDoctor(), foreign.ID)))
	assert.Contains(t, f.recipes.rows, foreign.ID)

	_, err = f.svc.GetRecipe(ctx, f.asDoctor(), own.ID)
	assert.NoError(t, err)
	assert.NoError(t, f.svc.DeleteRecipe(ctx, f.asDoctor(), own.ID))
	assert.NotContains(t, f.recipes.rows, own.ID)
}

func TestUnlinkedDoctor(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	created, err := f.svc.CreateRecipe(ctx, f.admin(), f.request(f.doctor.ID))
	require.NoError(t, err)

	_, err = f.svc.CreateRecipe(ctx, f.unlinked(), f.request(f.doctor.ID))
	assert.True(t, apperrors.IsAccountNotLinked(err))
	_, err = f.svc.GetRecipe(ctx, f.unlinked(), created.ID)
	assert.True(t, apperrors.IsAccountNotLinked(err))
	assert.True(t, apperrors.IsAccountNotLinked(f.svc.DeleteRecipe(ctx, f.unlinked(), created.ID)))

	list, err := f.svc.ListRecipes(ctx, f.unlinked(), model.RecipeFilter{})
	require.NoError(t, err)
	assert.True(t, list.DoctorNotLinked)
	assert.Empty(t, list.Items)
}

func TestListScopedToDoctor(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	_, err := f.svc.CreateRecipe(ctx, f.admin(), f.request(f.other))
	require.NoError(t, err)
	_, err = f.svc.CreateRecipe(ctx, f.admin(), f.request(f.doctor.ID))
	require.NoError(t, err)

	list, err := f.svc.ListRecipes(ctx, f.asDoctor(), model.RecipeFilter{})
	require.NoError(t, err)
	require.Len(t, list.Items, 1)
	assert.Equal(t, f.doctor.ID, list.Items[0].DoctorID)

	list, err = f.svc.ListRecipes(ctx, f.asDoctor(), model.RecipeFilter{DoctorID: &f.other})
	require.NoError(t, err)
	assert.Empty(t, list.Items)

	list, err = f.svc.ListRecipes(ctx, f.admin(), model.RecipeFilter{})
	require.NoError(t, err)
	assert.Len(t, list.Items, 2)
}

func TestEventFailureAbortsWrite(t *testing.T) {
	f := newFixture()
	f.events.err = errors.New("outbox unavailable")

	_, err := f.svc.CreateRecipe(context.Background(), f.admin(), f.request(f.doctor.ID))
	assert.Error(t, err)
}

func TestExpiredFlag(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	req := f.request(f.doctor.ID)
	exp := today
	req.ExpirationDate = &exp
	created, err := f.svc.CreateRecipe(ctx, f.admin(), req)
	require.NoError(t, err)
	assert.False(t, created.Expired)

	f.svc.today = func() model.Date { return today.AddDays(1) }
	got, err := f.svc.GetRecipe(ctx, f.admin(), created.ID)
	require.NoError(t, err)
	assert.True(t, got.Expired)
}

func TestDiagnosisOptions(t *testing.T) {
	f := newFixture()
	opts, err := f.svc.DiagnosisOptions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"asthma", "Covid", "Flu"}, opts)
}

func TestCreatedAtPreserved(t *testing.T) {
	f := newFixture()
	created, err := f.svc.CreateRecipe(context.Background(), f.admin(), f.request(f.doctor.ID))
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), created.CreatedAt, time.Minute)
}
