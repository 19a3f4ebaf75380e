package model

type Medicine struct {
	Base
	Name               string `db:"name" json:"name"`
	AgeAppropriateness int    `db:"age_appropriateness" json:"age_appropriateness"`
	NeedsRecipe        bool   `db:"needs_recipe" json:"needs_recipe"`
}

type MedicineRequest struct {
	Name               string `json:"name" validate:"required,max=100"`
	AgeAppropriateness int    `json:"age_appropriateness" validate:"gte=0,lte=150"`
	NeedsRecipe        bool   `json:"needs_recipe"`
}

type MedicineFilter struct {
	Name        string
	NamePrefix  string
	MinAgeAbove *int
	NeedsRecipe *bool
	Pagination
}
