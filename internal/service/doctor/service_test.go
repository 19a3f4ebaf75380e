package doctor

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/pharmacy-api/internal/model"
	"github.com/jwalitptl/pharmacy-api/internal/repository"
	apperrors "github.com/jwalitptl/pharmacy-api/pkg/errors"
)

type fakeRepo struct {
	doctors map[uuid.UUID]*model.Doctor
	refs    model.DoctorRefs
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{doctors: make(map[uuid.UUID]*model.Doctor)}
}

func (f *fakeRepo) Create(_ context.Context, d *model.Doctor) error {
	f.doctors[d.ID] = d
	return nil
}

func (f *fakeRepo) Get(_ context.Context, id uuid.UUID) (*model.Doctor, error) {
	if d, ok := f.doctors[id]; ok {
		cp := *d
		return &cp, nil
	}
	return nil, repository.ErrNotFound
}

func (f *fakeRepo) GetByEmail(_ context.Context, email string) (*model.Doctor, error) {
	for _, d := range f.doctors {
		if strings.EqualFold(d.Email, email) {
			return d, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeRepo) GetByLicenseNumber(_ context.Context, license string) (*model.Doctor, error) {
	for _, d := range f.doctors {
		if d.LicenseNumber == license {
			return d, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeRepo) Update(_ context.Context, d *model.Doctor) error {
	f.doctors[d.ID] = d
	return nil
}

func (f *fakeRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(f.doctors, id)
	return nil
}

func (f *fakeRepo) List(context.Context, model.DoctorFilter) ([]*model.Doctor, error) {
	out := make([]*model.Doctor, 0, len(f.doctors))
	for _, d := range f.doctors {
		out = append(out, d)
	}
	return out, nil
}

func (f *fakeRepo) Count(context.Context) (int64, error) {
	return int64(len(f.doctors)), nil
}

func (f *fakeRepo) References(context.Context, uuid.UUID) (model.DoctorRefs, error) {
	return f.refs, nil
}

func house() *model.DoctorRequest {
	primary := true
	return &model.DoctorRequest{
		Name:            "Gregory House",
		LicenseNumber:   "BG-1001",
		Specialty:       "Diagnostics",
		IsPrimaryDoctor: &primary,
		Email:           "house@clinic.bg",
		Phone:           "0888123456",
	}
}

func TestCreateDoctor(t *testing.T) {
	svc := NewService(newFakeRepo())

	d, err := svc.CreateDoctor(context.Background(), house())
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, d.ID)
	assert.True(t, d.IsPrimaryDoctor)
	assert.Equal(t, "+359888123456", d.Phone)
}

func TestCreateDoctorRejectsDuplicates(t *testing.T) {
	svc := NewService(newFakeRepo())
	ctx := context.Background()
	_, err := svc.CreateDoctor(ctx, house())
	require.NoError(t, err)

	sameLicense := house()
	sameLicense.Email = "wilson@clinic.bg"
	_, err = svc.CreateDoctor(ctx, sameLicense)
	var dup *apperrors.DuplicateError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "license_number", dup.Field)

	sameEmail := house()
	sameEmail.LicenseNumber = "BG-1002"
	sameEmail.Email = "HOUSE@clinic.bg"
	_, err = svc.CreateDoctor(ctx, sameEmail)
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "email", dup.Field)
}

func TestCreateDoctorValidates(t *testing.T) {
	req := house()
	req.Name = ""
	_, err := NewService(newFakeRepo()).CreateDoctor(context.Background(), req)

	var verr *apperrors.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "name", verr.Field)
}

func TestUpdateDoctorKeepsOwnLicense(t *testing.T) {
	svc := NewService(newFakeRepo())
	ctx := context.Background()
	d, err := svc.CreateDoctor(ctx, house())
	require.NoError(t, err)

	req := house()
	req.Specialty = "Nephrology"
	req.IsPrimaryDoctor = nil
	updated, err := svc.UpdateDoctor(ctx, d.ID, req)
	require.NoError(t, err)
	assert.Equal(t, "Nephrology", updated.Specialty)
	assert.True(t, updated.IsPrimaryDoctor)

	_, err = svc.UpdateDoctor(ctx, uuid.New(), req)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestDeleteDoctorRejectedWhileReferenced(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo)
	ctx := context.Background()
	d, err := svc.CreateDoctor(ctx, house())
	require.NoError(t, err)

	repo.refs = model.DoctorRefs{Recipes: 2}
	err = svc.DeleteDoctor(ctx, d.ID)
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.ErrConflict, appErr.Code)

	repo.refs = model.DoctorRefs{}
	require.NoError(t, svc.DeleteDoctor(ctx, d.ID))
	assert.Empty(t, repo.doctors)
}

func TestFindByEmail(t *testing.T) {
	svc := NewService(newFakeRepo())
	ctx := context.Background()
	_, err := svc.CreateDoctor(ctx, house())
	require.NoError(t, err)

	d, err := svc.FindByEmail(ctx, "House@Clinic.bg")
	require.NoError(t, err)
	require.NotNil(t, d)

	d, err = svc.FindByEmail(ctx, "")
	require.NoError(t, err)
	assert.Nil(t, d)

	d, err = svc.FindByEmail(ctx, "nobody@clinic.bg")
	require.NoError(t, err)
	assert.Nil(t, d)
}
