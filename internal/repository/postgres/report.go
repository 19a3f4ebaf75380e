package postgres

import (
	"context"
	"fmt"

	"github.com/jwalitptl/pharmacy-api/internal/model"
	"github.com/jwalitptl/pharmacy-api/internal/repository"
)

type reportRepository struct {
	BaseRepository
}

func NewReportRepository(base BaseRepository) repository.ReportRepository {
	return &reportRepository{base}
}

func (r *reportRepository) PatientsByDiagnosis(ctx context.Context, term string) ([]*model.Customer, error) {
	query := `
		SELECT ` + prefixed("c", customerColumns) + `
		FROM customers c
		WHERE EXISTS (
			SELECT 1 FROM recipes r
			LEFT JOIN diagnoses d ON d.recipe_id = r.id
			WHERE r.customer_id = c.id AND (r.diagnosis ILIKE $1 OR d.name ILIKE $1)
		)
		ORDER BY c.name, c.id
	`
	customers := []*model.Customer{}
	if err := r.selectAll(ctx, &customers, query, likeContains(term)); err != nil {
		return nil, fmt.Errorf("failed to list patients by diagnosis: %w", err)
	}
	return customers, nil
}

func (r *reportRepository) MostCommonDiagnoses(ctx context.Context, limit int) ([]model.DiagnosisCount, error) {
	query := `
		SELECT MIN(name) AS diagnosis, COUNT(*) AS count
		FROM diagnoses
		GROUP BY LOWER(name)
		ORDER BY count DESC, diagnosis
		LIMIT $1
	`
	out := []model.DiagnosisCount{}
	if err := r.selectAll(ctx, &out, query, limit); err != nil {
		return nil, fmt.Errorf("failed to count diagnoses: %w", err)
	}
	return out, nil
}

func (r *reportRepository) PatientCountByDiagnosis(ctx context.Context, name string) (int64, error) {
	query := `
		SELECT COUNT(DISTINCT r.customer_id)
		FROM diagnoses d JOIN recipes r ON r.id = d.recipe_id
		WHERE LOWER(d.name) = LOWER($1)
	`
	var n int64
	if err := r.get(ctx, &n, query, name); err != nil {
		return 0, fmt.Errorf("failed to count patients by diagnosis: %w", err)
	}
	return n, nil
}

func (r *reportRepository) PatientCountPerPrimaryDoctor(ctx context.Context) ([]model.DoctorStatistics, error) {
	query := `
		SELECT d.id AS doctor_id, d.name AS doctor_name, COUNT(c.id) AS count
		FROM doctors d LEFT JOIN customers c ON c.primary_doctor_id = d.id
		GROUP BY d.id, d.name
		ORDER BY count DESC, d.name
	`
	return r.doctorStats(ctx, query, "patients per doctor")
}

func (r *reportRepository) VisitsPerDoctor(ctx context.Context) ([]model.DoctorStatistics, error) {
	query := `
		SELECT d.id AS doctor_id, d.name AS doctor_name, COUNT(r.id) AS count
		FROM doctors d LEFT JOIN recipes r ON r.doctor_id = d.id
		GROUP BY d.id, d.name
		ORDER BY count DESC, d.name
	`
	return r.doctorStats(ctx, query, "visits per doctor")
}

func (r *reportRepository) DoctorsBySickLeaves(ctx context.Context) ([]model.DoctorStatistics, error) {
	query := `
		SELECT d.id AS doctor_id, d.name AS doctor_name, COUNT(s.id) AS count
		FROM doctors d
		JOIN recipes r ON r.doctor_id = d.id
		JOIN sick_leaves s ON s.recipe_id = r.id
		GROUP BY d.id, d.name
		ORDER BY count DESC, d.name
	`
	return r.doctorStats(ctx, query, "sick leaves per doctor")
}

func (r *reportRepository) doctorStats(ctx context.Context, query, what string) ([]model.DoctorStatistics, error) {
	out := []model.DoctorStatistics{}
	if err := r.selectAll(ctx, &out, query); err != nil {
		return nil, fmt.Errorf("failed to count %s: %w", what, err)
	}
	return out, nil
}

func (r *reportRepository) SickLeavesByMonth(ctx context.Context) ([]model.MonthlyStatistics, error) {
	query := `
		SELECT EXTRACT(YEAR FROM start_date)::int AS year, EXTRACT(MONTH FROM start_date)::int AS month, COUNT(*) AS count
		FROM sick_leaves
		GROUP BY 1, 2
		ORDER BY 1 DESC, 2 DESC
	`
	out := []model.MonthlyStatistics{}
	if err := r.selectAll(ctx, &out, query); err != nil {
		return nil, fmt.Errorf("failed to count sick leaves by month: %w", err)
	}
	return out, nil
}

func (r *reportRepository) CustomersByInsurance(ctx context.Context, on model.Date, valid bool) ([]*model.Customer, error) {
	cond := `insurance_paid_until >= $1`
	if !valid {
		cond = `(insurance_paid_until IS NULL OR insurance_paid_until < $1)`
	}
	query := `SELECT ` + customerColumns + ` FROM customers WHERE ` + cond + ` ORDER BY name, id`

	customers := []*model.Customer{}
	if err := r.selectAll(ctx, &customers, query, on); err != nil {
		return nil, fmt.Errorf("failed to list customers by insurance: %w", err)
	}
	return customers, nil
}
