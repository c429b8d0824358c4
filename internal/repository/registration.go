package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/adilcse/okneppo-sub001/internal/model"
)

// RegistrationRepository handles database operations for registrations
type RegistrationRepository struct {
	db *sql.DB
}

// NewRegistrationRepository creates a new registration repository
func NewRegistrationRepository(db *sql.DB) *RegistrationRepository {
	return &RegistrationRepository{db: db}
}

// Create saves a new registration and fills in its ID
func (r *RegistrationRepository) Create(ctx context.Context, reg *model.Registration) error {
	if reg.Status == "" {
		reg.Status = model.RegistrationStatusPending
	}
	now := time.Now()
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO registrations (name, email, phone, course, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, reg.Name, reg.Email, reg.Phone, reg.Course, reg.Status, now, now)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	reg.ID = id
	return nil
}

// GetByID gets a registration by ID
func (r *RegistrationRepository) GetByID(ctx context.Context, id int64) (*model.Registration, error) {
	var reg model.Registration
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, email, phone, course, status, created_at, updated_at
		FROM registrations
		WHERE id = ?
	`, id).Scan(
		&reg.ID,
		&reg.Name,
		&reg.Email,
		&reg.Phone,
		&reg.Course,
		&reg.Status,
		&reg.CreatedAt,
		&reg.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &reg, nil
}

// MarkCompleted sets a registration's status to completed and reports whether
// this call performed the transition. Completing an already-completed
// registration is a no-op that returns false.
func (r *RegistrationRepository) MarkCompleted(ctx context.Context, id int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE registrations
		SET status = ?, updated_at = ?
		WHERE id = ? AND status <> ?
	`, model.RegistrationStatusCompleted, time.Now(), id, model.RegistrationStatusCompleted)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}
