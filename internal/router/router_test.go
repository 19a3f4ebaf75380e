package router

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/pharmacy-api/internal/handler/health"
	recipehandler "github.com/jwalitptl/pharmacy-api/internal/handler/recipe"
	"github.com/jwalitptl/pharmacy-api/internal/middleware"
	"github.com/jwalitptl/pharmacy-api/internal/model"
	"github.com/jwalitptl/pharmacy-api/internal/repository"
	"github.com/jwalitptl/pharmacy-api/internal/service/access"
	"github.com/jwalitptl/pharmacy-api/internal/service/rbac"
	"github.com/jwalitptl/pharmacy-api/internal/service/recipe"
	"github.com/jwalitptl/pharmacy-api/pkg/auth"
	apperrors "github.com/jwalitptl/pharmacy-api/pkg/errors"
	"github.com/jwalitptl/pharmacy-api/pkg/metrics"
)

const signingKey = "router-test-key"

type fakeDoctors struct{ doctor *model.Doctor }

func (f fakeDoctors) GetByEmail(_ context.Context, email string) (*model.Doctor, error) {
	if f.doctor != nil && f.doctor.Email == email {
		return f.doctor, nil
	}
	return nil, repository.ErrNotFound
}

type fakeRecipes struct {
	recipe.Service
	seen access.Subject
}

func (f *fakeRecipes) ListRecipes(_ context.Context, s access.Subject, _ model.RecipeFilter) (*model.RecipeList, error) {
	f.seen = s
	if s.DoctorNotLinked() {
		return &model.RecipeList{Items: []*model.Recipe{}, DoctorNotLinked: true}, nil
	}
	return &model.RecipeList{Items: []*model.Recipe{{Status: model.RecipeStatusActive}}}, nil
}

func (f *fakeRecipes) GetRecipe(context.Context, access.Subject, uuid.UUID) (*model.Recipe, error) {
	return nil, apperrors.NewAccessDenied(access.DeniedRecipe)
}

type fakePinger struct{ err error }

func (f fakePinger) PingContext(context.Context) error { return f.err }

type fixture struct {
	engine  *gin.Engine
	recipes *fakeRecipes
	doctor  *model.Doctor
}

func newFixture(t *testing.T, pingErr error) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	verifier, err := auth.NewVerifier(auth.Config{SigningKey: signingKey})
	require.NoError(t, err)
	policy, err := rbac.NewService(rbac.DefaultRules(BasePath))
	require.NoError(t, err)

	doc := &model.Doctor{Base: model.Base{ID: uuid.New()}, Email: "doc@clinic.bg"}
	f := &fixture{recipes: &fakeRecipes{}, doctor: doc}
	m, reg := metrics.New("test")

	r := NewRouter(
		middleware.NewAuthMiddleware(verifier, access.NewResolver(fakeDoctors{doctor: doc}), policy),
		health.NewHandler(fakePinger{err: pingErr}, reg),
		[]Handler{recipehandler.NewHandler(f.recipes)},
		m,
		zerolog.Nop(),
		RouterConfig{ServiceName: "test", CORSOrigins: []string{"*"}, RequestTimeout: 5 * time.Second, MaxBodyBytes: 1 << 20},
	)
	f.engine = r.Engine()
	return f
}

func token(t *testing.T, email string, roles ...string) string {
	t.Helper()
	rs := make([]interface{}, 0, len(roles))
	for _, r := range roles {
		rs = append(rs, r)
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":          "user-1",
		"email":        email,
		"exp":          time.Now().Add(time.Hour).Unix(),
		"realm_access": map[string]interface{}{"roles": rs},
	}).SignedString([]byte(signingKey))
	require.NoError(t, err)
	return signed
}

func (f *fixture) do(method, path, bearer string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Kind string `json:"kind"`
	} `json:"error"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var e envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &e))
	return e
}

func TestHealthIsPublic(t *testing.T) {
	f := newFixture(t, nil)

	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/api/v1/health/live", "").Code)
	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/api/v1/health/ready", "").Code)

	w := f.do(http.MethodGet, "/api/v1/health/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "test_http_requests_total")
}

func TestReadinessFailsWithoutDatabase(t *testing.T) {
	f := newFixture(t, errors.New("connection refused"))

	assert.Equal(t, http.StatusServiceUnavailable, f.do(http.MethodGet, "/api/v1/health/ready", "").Code)
}

func TestProtectedRoutesNeedToken(t *testing.T) {
	f := newFixture(t, nil)

	w := f.do(http.MethodGet, "/api/v1/recipes", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = f.do(http.MethodGet, "/api/v1/recipes", "not-a-jwt")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.NotEmpty(t, w.Header().Get(middleware.HeaderXRequestID))
}

func TestRoutePolicyRejectsSeller(t *testing.T) {
	f := newFixture(t, nil)

	w := f.do(http.MethodGet, "/api/v1/recipes", token(t, "seller@clinic.bg", "seller"))
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestDoctorListsRecipes(t *testing.T) {
	f := newFixture(t, nil)

	w := f.do(http.MethodGet, "/api/v1/recipes", token(t, "doc@clinic.bg", "doctor"))
	require.Equal(t, http.StatusOK, w.Code)

	require.NotNil(t, f.recipes.seen.Doctor)
	assert.Equal(t, f.doctor.ID, f.recipes.seen.Doctor.ID)

	var list struct {
		Count           int  `json:"count"`
		DoctorNotLinked bool `json:"doctor_not_linked"`
	}
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &list))
	assert.Equal(t, 1, list.Count)
	assert.False(t, list.DoctorNotLinked)
}

func TestUnlinkedDoctorGetsIndicator(t *testing.T) {
	f := newFixture(t, nil)

	w := f.do(http.MethodGet, "/api/v1/recipes", token(t, "stranger@clinic.bg", "doctor"))
	require.Equal(t, http.StatusOK, w.Code)

	var list struct {
		Count           int    `json:"count"`
		DoctorNotLinked bool   `json:"doctor_not_linked"`
		Notice          string `json:"notice"`
	}
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &list))
	assert.Zero(t, list.Count)
	assert.True(t, list.DoctorNotLinked)
	assert.Equal(t, apperrors.AccountNotLinkedMessage, list.Notice)
}

func TestAccessDeniedMessage(t *testing.T) {
	f := newFixture(t, nil)

	w := f.do(http.MethodGet, "/api/v1/recipes/"+uuid.NewString(), token(t, "doc@clinic.bg", "doctor"))
	require.Equal(t, http.StatusForbidden, w.Code)

	e := decode(t, w)
	assert.Equal(t, access.DeniedRecipe, e.Message)
	assert.Equal(t, "access_denied", e.Error.Kind)
}

func TestMalformedID(t *testing.T) {
	f := newFixture(t, nil)

	w := f.do(http.MethodGet, "/api/v1/recipes/42", token(t, "admin@clinic.bg", "admin"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
