package recipe

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/pharmacy-api/internal/model"
	apperrors "github.com/jwalitptl/pharmacy-api/pkg/errors"
)

var today = model.NewDate(2026, time.February, 10)

func validRequest() *model.RecipeRequest {
	qty := 2
	return &model.RecipeRequest{
		CreationDate: today,
		DoctorID:     uuid.New(),
		CustomerID:   uuid.New(),
		Status:       model.RecipeStatusActive,
		Medicines: []*model.RecipeMedicineInput{
			{MedicineID: uuid.New(), Dosage: "500mg", DurationDays: 7, Quantity: &qty},
		},
	}
}

func TestValidateRules(t *testing.T) {
	zero, negative := 0, -3
	cases := []struct {
		name    string
		mutate  func(r *model.RecipeRequest)
		field   string
		message string
	}{
		{"missing creation date", func(r *model.RecipeRequest) { r.CreationDate = model.Date{} }, "creation_date", "Creation date is required"},
		{"future creation date", func(r *model.RecipeRequest) { r.CreationDate = today.AddDays(1) }, "creation_date", "Creation date cannot be in the future"},
		{"missing doctor", func(r *model.RecipeRequest) { r.DoctorID = uuid.Nil }, "doctor_id", "Doctor is required"},
		{"missing customer", func(r *model.RecipeRequest) { r.CustomerID = uuid.Nil }, "customer_id", "Customer is required"},
		{"missing status", func(r *model.RecipeRequest) { r.Status = "" }, "status", "Status is required"},
		{"expiration before creation", func(r *model.RecipeRequest) {
			d := today.AddDays(-1)
			r.ExpirationDate = &d
		}, "expiration_date", "Expiration date cannot be before creation date"},
		{"nil medicine entry", func(r *model.RecipeRequest) { r.Medicines = append(r.Medicines, nil) }, "medicines[1]", "Recipe medicine entry is invalid"},
		{"missing medicine", func(r *model.RecipeRequest) { r.Medicines[0].MedicineID = uuid.Nil }, "medicines[0].medicine_id", "Medicine is required"},
		{"blank dosage", func(r *model.RecipeRequest) { r.Medicines[0].Dosage = "  " }, "medicines[0].dosage", "Dosage is required"},
		{"zero duration", func(r *model.RecipeRequest) { r.Medicines[0].DurationDays = 0 }, "medicines[0].duration_days", "Duration must be at least 1 day"},
		{"zero quantity", func(r *model.RecipeRequest) { r.Medicines[0].Quantity = &zero }, "medicines[0].quantity", "Quantity must be at least 1"},
		{"negative quantity", func(r *model.RecipeRequest) { r.Medicines[0].Quantity = &negative }, "medicines[0].quantity", "Quantity must be at least 1"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := validRequest()
			tc.mutate(req)

			err := Validate(req, today)
			var verr *apperrors.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tc.field, verr.Field)
			assert.Equal(t, tc.message, verr.Message)
		})
	}
}

func TestValidateFailFast(t *testing.T) {
	req := validRequest()
	req.DoctorID = uuid.Nil
	req.CustomerID = uuid.Nil
	req.Medicines[0].Dosage = ""

	var verr *apperrors.ValidationError
	require.ErrorAs(t, Validate(req, today), &verr)
	assert.Equal(t, "doctor_id", verr.Field)
}

func TestValidateAccepts(t *testing.T) {
	req := validRequest()
	req.Medicines[0].Quantity = nil
	exp := today
	req.ExpirationDate = &exp
	assert.NoError(t, Validate(req, today))

	assert.True(t, apperrors.IsValidation(Validate(nil, today)))
}

func TestValidateUnknownStatus(t *testing.T) {
	req := validRequest()
	req.Status = "PENDING"
	var verr *apperrors.ValidationError
	require.ErrorAs(t, Validate(req, today), &verr)
	assert.Equal(t, "status", verr.Field)
}
