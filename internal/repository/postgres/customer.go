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

const customerColumns = `id, name, egn, email, phone, address, date_of_birth, allergies, medical_history,
	insurance_number, insurance_paid_until, active, primary_doctor_id, created_at, updated_at`

type customerRepository struct {
	BaseRepository
}

func NewCustomerRepository(base BaseRepository) repository.CustomerRepository {
	return &customerRepository{base}
}

func (r *customerRepository) Create(ctx context.Context, c *model.Customer) error {
	query := `
		INSERT INTO customers (` + customerColumns + `)
		VALUES (:id, :name, :egn, :email, :phone, :address, :date_of_birth, :allergies, :medical_history,
			:insurance_number, :insurance_paid_until, :active, :primary_doctor_id, :created_at, :updated_at)
	`
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	c.CreatedAt = time.Now().UTC()
	c.UpdatedAt = c.CreatedAt

	if _, err := r.namedExec(ctx, query, c); err != nil {
		return translate(fmt.Errorf("failed to create customer: %w", err), customerField(c))
	}
	return nil
}

func (r *customerRepository) Get(ctx context.Context, id uuid.UUID) (*model.Customer, error) {
	var c model.Customer
	if err := r.get(ctx, &c, `SELECT `+customerColumns+` FROM customers WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *customerRepository) GetByEmail(ctx context.Context, email string) (*model.Customer, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, repository.ErrNotFound
	}
	var c model.Customer
	if err := r.get(ctx, &c, `SELECT `+customerColumns+` FROM customers WHERE LOWER(email) = LOWER($1)`, email); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *customerRepository) Update(ctx context.Context, c *model.Customer) error {
	query := `
		UPDATE customers
		SET name = :name, egn = :egn, email = :email, phone = :phone, address = :address,
			date_of_birth = :date_of_birth, allergies = :allergies, medical_history = :medical_history,
			insurance_number = :insurance_number, insurance_paid_until = :insurance_paid_until,
			active = :active, primary_doctor_id = :primary_doctor_id, updated_at = :updated_at
		WHERE id = :id
	`
	c.UpdatedAt = time.Now().UTC()
	res, err := r.namedExec(ctx, query, c)
	if err != nil {
		return translate(fmt.Errorf("failed to update customer: %w", err), customerField(c))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *customerRepository) Delete(ctx context.Context, id uuid.UUID) error {
	err := r.execAffecting(ctx, `DELETE FROM customers WHERE id = $1`, id)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return translate(fmt.Errorf("failed to delete customer: %w", err), nil)
	}
	return err
}

func customerWhere(f model.CustomerFilter) *where {
	w := &where{}
	if f.Name != "" {
		w.add("name ILIKE ?", likeContains(f.Name))
	}
	if f.Allergy != "" {
		w.add("allergies ILIKE ?", likeContains(f.Allergy))
	}
	if f.PrimaryDoctorID != nil {
		w.add("primary_doctor_id = ?", *f.PrimaryDoctorID)
	}
	if f.ActiveOnly {
		w.raw("active")
	}
	on := f.AgeOn
	if on.IsZero() {
		on = model.Today()
	}
	if f.MinAge != nil {
		w.add("date_of_birth <= ?", model.DateOf(on.AddDate(-*f.MinAge, 0, 0)))
	}
	if f.MaxAge != nil {
		w.add("date_of_birth > ?", model.DateOf(on.AddDate(-(*f.MaxAge + 1), 0, 0)))
	}
	return w
}

func (r *customerRepository) List(ctx context.Context, f model.CustomerFilter) ([]*model.Customer, error) {
	w := customerWhere(f)
	p := f.Pagination.Normalize()
	query := `SELECT ` + customerColumns + ` FROM customers` + w.String() + ` ORDER BY name, id` + w.page(p.Limit, p.Offset)

	customers := []*model.Customer{}
	if err := r.selectAll(ctx, &customers, query, w.args...); err != nil {
		return nil, fmt.Errorf("failed to list customers: %w", err)
	}
	return customers, nil
}

func (r *customerRepository) Count(ctx context.Context, activeOnly bool) (int64, error) {
	query := `SELECT COUNT(*) FROM customers`
	if activeOnly {
		query += ` WHERE active`
	}
	var n int64
	if err := r.get(ctx, &n, query); err != nil {
		return 0, fmt.Errorf("failed to count customers: %w", err)
	}
	return n, nil
}

func (r *customerRepository) CountMatching(ctx context.Context, f model.CustomerFilter) (int64, error) {
	w := customerWhere(f)
	var n int64
	if err := r.get(ctx, &n, `SELECT COUNT(*) FROM customers`+w.String(), w.args...); err != nil {
		return 0, fmt.Errorf("failed to count customers: %w", err)
	}
	return n, nil
}

func customerField(c *model.Customer) func(string) string {
	return func(field string) string {
		switch field {
		case "egn":
			return c.EGN
		case "email":
			return c.Email
		}
		return ""
	}
}
