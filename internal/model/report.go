package model

import "github.com/google/uuid"

type DiagnosisCount struct {
	Diagnosis string `db:"diagnosis" json:"diagnosis"`
	Count     int64  `db:"count" json:"count"`
}

type DoctorStatistics struct {
	DoctorID   uuid.UUID `db:"doctor_id" json:"doctor_id"`
	DoctorName string    `db:"doctor_name" json:"doctor_name"`
	Count      int64     `db:"count" json:"count"`
}

type MonthlyStatistics struct {
	Year      int    `db:"year" json:"year"`
	Month     int    `db:"month" json:"month"`
	MonthName string `db:"-" json:"month_name"`
	Count     int64  `db:"count" json:"count"`
}

// PatientHistory is one page of a customer's recipes, newest first.
type PatientHistory struct {
	Customer *CustomerView `json:"customer"`
	Recipes  []*Recipe     `json:"recipes"`
	// Total counts the recipes visible to the caller across all pages.
	Total int64 `json:"total"`
	// Hidden counts records withheld by ownership filtering.
	Hidden int64 `json:"hidden,omitempty"`
}

// CustomerPage is one page of customers with the unpaged total.
type CustomerPage struct {
	Items []*CustomerView
	Total int64
}

type Dashboard struct {
	TotalMedicines         int64                  `json:"total_medicines"`
	MedicinesNeedingRecipe int64                  `json:"medicines_needing_recipe"`
	TotalRecipes           int64                  `json:"total_recipes"`
	RecipesByStatus        map[RecipeStatus]int64 `json:"recipes_by_status"`
	TotalCustomers         int64                  `json:"total_customers"`
	ActiveCustomers        int64                  `json:"active_customers"`
	TotalDoctors           int64                  `json:"total_doctors"`
	TotalDiagnoses         int64                  `json:"total_diagnoses"`
	PrimaryDiagnoses       int64                  `json:"primary_diagnoses"`
	TotalSickLeaves        int64                  `json:"total_sick_leaves"`
	ActiveSickLeaves       int64                  `json:"active_sick_leaves"`
	RecentRecipes          []*Recipe              `json:"recent_recipes"`
}
