package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/pharmacy-api/internal/model"
	"github.com/jwalitptl/pharmacy-api/internal/repository"
)

const doctorColumns = `id, name, license_number, specialty, is_primary_doctor, email, phone, created_at, updated_at`

type doctorRepository struct {
	BaseRepository
}

func NewDoctorRepository(base BaseRepository) repository.DoctorRepository {
	return &doctorRepository{base}
}

func (r *doctorRepository) Create(ctx context.Context, d *model.Doctor) error {
	query := `
		INSERT INTO doctors (` + doctorColumns + `)
		VALUES (:id, :name, :license_number, :specialty, :is_primary_doctor, :email, :phone, :created_at, :updated_at)
	`
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	d.CreatedAt = time.Now().UTC()
	d.UpdatedAt = d.CreatedAt

	if _, err := r.namedExec(ctx, query, d); err != nil {
		return translate(fmt.Errorf("failed to create doctor: %w", err), doctorField(d))
	}
	return nil
}

func (r *doctorRepository) Get(ctx context.Context, id uuid.UUID) (*model.Doctor, error) {
	var d model.Doctor
	if err := r.get(ctx, &d, `SELECT `+doctorColumns+` FROM doctors WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *doctorRepository) GetByEmail(ctx context.Context, email string) (*model.Doctor, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, repository.ErrNotFound
	}
	var d model.Doctor
	if err := r.get(ctx, &d, `SELECT `+doctorColumns+` FROM doctors WHERE LOWER(email) = LOWER($1)`, email); err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *doctorRepository) GetByLicenseNumber(ctx context.Context, license string) (*model.Doctor, error) {
	var d model.Doctor
	if err := r.get(ctx, &d, `SELECT `+doctorColumns+` FROM doctors WHERE license_number = $1`, license); err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *doctorRepository) Update(ctx context.Context, d *model.Doctor) error {
	query := `
		UPDATE doctors
		SET name = $1, license_number = $2, specialty = $3, is_primary_doctor = $4,
			email = $5, phone = $6, updated_at = $7
		WHERE id = $8
	`
	d.UpdatedAt = time.Now().UTC()
	err := r.execAffecting(ctx, query,
		d.Name, d.LicenseNumber, d.Specialty, d.IsPrimaryDoctor, d.Email, d.Phone, d.UpdatedAt, d.ID)
	if errors.Is(err, repository.ErrNotFound) {
		return err
	}
	if err != nil {
		return translate(fmt.Errorf("failed to update doctor: %w", err), doctorField(d))
	}
	return nil
}

func (r *doctorRepository) Delete(ctx context.Context, id uuid.UUID) error {
	err := r.execAffecting(ctx, `DELETE FROM doctors WHERE id = $1`, id)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return translate(fmt.Errorf("failed to delete doctor: %w", err), nil)
	}
	return err
}

func (r *doctorRepository) List(ctx context.Context, f model.DoctorFilter) ([]*model.Doctor, error) {
	var w where
	if f.Specialty != "" {
		w.add("LOWER(specialty) = LOWER(?)", f.Specialty)
	}
	if f.PrimaryOnly {
		w.raw("is_primary_doctor")
	}
	if f.Name != "" {
		w.add(`name ILIKE ?`, likeContains(f.Name))
	}
	p := f.Pagination.Normalize()
	query := `SELECT ` + doctorColumns + ` FROM doctors` + w.String() + ` ORDER BY name, id` + w.page(p.Limit, p.Offset)

	doctors := []*model.Doctor{}
	if err := r.selectAll(ctx, &doctors, query, w.args...); err != nil {
		return nil, fmt.Errorf("failed to list doctors: %w", err)
	}
	return doctors, nil
}

func (r *doctorRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.get(ctx, &n, `SELECT COUNT(*) FROM doctors`); err != nil {
		return 0, fmt.Errorf("failed to count doctors: %w", err)
	}
	return n, nil
}

func (r *doctorRepository) References(ctx context.Context, id uuid.UUID) (model.DoctorRefs, error) {
	query := `
		SELECT
			(SELECT COUNT(*) FROM recipes WHERE doctor_id = $1) AS recipes,
			(SELECT COUNT(*) FROM customers WHERE primary_doctor_id = $1) AS customers
	`
	var refs model.DoctorRefs
	if err := r.get(ctx, &refs, query, id); err != nil {
		return refs, fmt.Errorf("failed to count doctor references: %w", err)
	}
	return refs, nil
}

func doctorField(d *model.Doctor) func(string) string {
	return func(field string) string {
		switch field {
		case "license_number":
			return d.LicenseNumber
		case "email":
			return d.Email
		}
		return ""
	}
}
