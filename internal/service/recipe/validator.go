package recipe

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/jwalitptl/pharmacy-api/internal/model"
	apperrors "github.com/jwalitptl/pharmacy-api/pkg/errors"
	"github.com/jwalitptl/pharmacy-api/pkg/validator"
)

// Validate checks a recipe payload before it is persisted. The first failing
// rule is returned; later rules are not evaluated.
func Validate(req *model.RecipeRequest, today model.Date) error {
	if req == nil {
		return apperrors.NewValidation("recipe", "Recipe is required")
	}
	if req.CreationDate.IsZero() {
		return apperrors.NewValidation("creation_date", "Creation date is required")
	}
	if req.CreationDate.After(today) {
		return apperrors.NewValidation("creation_date", "Creation date cannot be in the future")
	}
	if req.DoctorID == uuid.Nil {
		return apperrors.NewValidation("doctor_id", "Doctor is required")
	}
	if req.CustomerID == uuid.Nil {
		return apperrors.NewValidation("customer_id", "Customer is required")
	}
	if req.Status == "" {
		return apperrors.NewValidation("status", "Status is required")
	}
	if !req.Status.Valid() {
		return apperrors.NewValidation("status", fmt.Sprintf("Status must be one of: %s, %s, %s, %s",
			model.RecipeStatusActive, model.RecipeStatusFulfilled, model.RecipeStatusExpired, model.RecipeStatusCancelled))
	}
	if req.ExpirationDate != nil && !req.ExpirationDate.IsZero() && req.ExpirationDate.Before(req.CreationDate) {
		return apperrors.NewValidation("expiration_date", "Expiration date cannot be before creation date")
	}

	for i, m := range req.Medicines {
		if err := validateMedicine(i, m); err != nil {
			return err
		}
	}

	// Length and enum limits declared on the payload.
	return validator.Struct(req)
}

func validateMedicine(i int, m *model.RecipeMedicineInput) error {
	field := func(name string) string {
		return fmt.Sprintf("medicines[%d].%s", i, name)
	}
	if m == nil {
		return apperrors.NewValidation(fmt.Sprintf("medicines[%d]", i), "Recipe medicine entry is invalid")
	}
	if m.MedicineID == uuid.Nil {
		return apperrors.NewValidation(field("medicine_id"), "Medicine is required")
	}
	if isBlank(m.Dosage) {
		return apperrors.NewValidation(field("dosage"), "Dosage is required")
	}
	if m.DurationDays < 1 {
		return apperrors.NewValidation(field("duration_days"), "Duration must be at least 1 day")
	}
	if m.Quantity != nil && *m.Quantity < 1 {
		return apperrors.NewValidation(field("quantity"), "Quantity must be at least 1")
	}
	return nil
}
