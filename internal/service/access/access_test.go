package access

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/pharmacy-api/internal/model"
	"github.com/jwalitptl/pharmacy-api/internal/repository"
	"github.com/jwalitptl/pharmacy-api/pkg/auth"
	apperrors "github.com/jwalitptl/pharmacy-api/pkg/errors"
)

type stubDoctors struct {
	byEmail map[string]*model.Doctor
	err     error
	calls   int
}

func (s *stubDoctors) GetByEmail(_ context.Context, email string) (*model.Doctor, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	if d, ok := s.byEmail[strings.ToLower(email)]; ok {
		return d, nil
	}
	return nil, repository.ErrNotFound
}

func doctorWithID(id uuid.UUID) *model.Doctor {
	d := &model.Doctor{Name: "Dr. House", Email: "house@clinic.bg"}
	d.ID = id
	return d
}

func doctorSubject(d *model.Doctor) Subject {
	return Subject{Identity: auth.Identity{Email: "house@clinic.bg", Roles: []string{auth.RoleDoctor}}, Doctor: d}
}

func TestResolver(t *testing.T) {
	house := doctorWithID(uuid.New())
	store := &stubDoctors{byEmail: map[string]*model.Doctor{"house@clinic.bg": house}}
	r := NewResolver(store)
	ctx := context.Background()

	t.Run("case insensitive match", func(t *testing.T) {
		d, err := r.ResolveDoctor(ctx, "House@Clinic.BG")
		require.NoError(t, err)
		assert.Equal(t, house, d)
	})

	t.Run("blank email is none", func(t *testing.T) {
		d, err := r.ResolveDoctor(ctx, "  ")
		require.NoError(t, err)
		assert.Nil(t, d)
	})

	t.Run("no match is none", func(t *testing.T) {
		d, err := r.ResolveDoctor(ctx, "wilson@clinic.bg")
		require.NoError(t, err)
		assert.Nil(t, d)
	})

	t.Run("store failure propagates", func(t *testing.T) {
		_, err := NewResolver(&stubDoctors{err: errors.New("db down")}).ResolveDoctor(ctx, "a@b.c")
		assert.Error(t, err)
	})

	t.Run("non-doctor skips lookup", func(t *testing.T) {
		before := store.calls
		s, err := r.Resolve(ctx, auth.Identity{Email: "house@clinic.bg", Roles: []string{auth.RoleAdmin}})
		require.NoError(t, err)
		assert.Nil(t, s.Doctor)
		assert.Equal(t, before, store.calls)
	})

	t.Run("doctor is linked", func(t *testing.T) {
		s, err := r.Resolve(ctx, auth.Identity{Email: "house@clinic.bg", Roles: []string{auth.RoleDoctor}})
		require.NoError(t, err)
		assert.Equal(t, house, s.Doctor)
		assert.False(t, s.DoctorNotLinked())
	})
}

func TestAuthorize(t *testing.T) {
	five, seven := uuid.New(), uuid.New()
	me := doctorSubject(doctorWithID(five))

	own := &model.Recipe{DoctorID: five}
	other := &model.Recipe{DoctorID: seven}

	t.Run("own record allowed", func(t *testing.T) {
		assert.NoError(t, Authorize(me, own))
		assert.NoError(t, Authorize(me, &model.SickLeave{DoctorID: five}))
		assert.NoError(t, Authorize(me, &model.Diagnosis{DoctorID: five}))
	})

	t.Run("foreign records denied with record specific reason", func(t *testing.T) {
		cases := []struct {
			rec    Owned
			reason string
		}{
			{other, DeniedRecipe},
			{&model.SickLeave{DoctorID: seven}, DeniedSickLeave},
			{&model.Diagnosis{DoctorID: seven}, DeniedDiagnosis},
		}
		for _, tc := range cases {
			err := Authorize(me, tc.rec)
			var denied *apperrors.AccessDeniedError
			require.ErrorAs(t, err, &denied)
			assert.Equal(t, tc.reason, denied.Reason)
		}
	})

	t.Run("unlinked doctor", func(t *testing.T) {
		err := Authorize(doctorSubject(nil), own)
		assert.True(t, apperrors.IsAccountNotLinked(err))
		assert.False(t, apperrors.IsAccessDenied(err))
		assert.True(t, apperrors.IsAccountNotLinked(Require(doctorSubject(nil))))
	})

	t.Run("other roles always allowed", func(t *testing.T) {
		for _, role := range []string{auth.RoleAdmin, auth.RoleSeller, auth.RoleCustomer} {
			s := Subject{Identity: auth.Identity{Email: "x@y.z", Roles: []string{role}}}
			assert.NoError(t, Authorize(s, other))
			assert.NoError(t, Require(s))
		}
	})
}

func TestFilter(t *testing.T) {
	five, seven := uuid.New(), uuid.New()
	recipes := []*model.Recipe{{DoctorID: five}, {DoctorID: seven}, {DoctorID: five}}

	kept, hidden := Filter(doctorSubject(doctorWithID(five)), recipes)
	assert.Len(t, kept, 2)
	assert.Equal(t, 1, hidden)

	kept, hidden = Filter(doctorSubject(nil), recipes)
	assert.Empty(t, kept)
	assert.Equal(t, 3, hidden)

	admin := Subject{Identity: auth.Identity{Roles: []string{auth.RoleAdmin}}}
	kept, hidden = Filter(admin, recipes)
	assert.Len(t, kept, 3)
	assert.Zero(t, hidden)
}

func TestDoctorScope(t *testing.T) {
	id := uuid.New()
	scope, err := doctorSubject(doctorWithID(id)).DoctorScope()
	require.NoError(t, err)
	assert.Equal(t, id, *scope)

	scope, err = Subject{Identity: auth.Identity{Roles: []string{auth.RoleSeller}}}.DoctorScope()
	require.NoError(t, err)
	assert.Nil(t, scope)

	_, err = doctorSubject(nil).DoctorScope()
	assert.True(t, apperrors.IsAccountNotLinked(err))
}
