package repository

import (
	"context"

	"github.com/saeid-a/ConsultBack/internal/models"
)

type DoctorProfileRepository struct {
	db DBTX
}

func NewDoctorProfileRepository(db DBTX) *DoctorProfileRepository {
	return &DoctorProfileRepository{db: db}
}

const doctorProfileColumns = `id, user_id, full_name, specialization, created_at, updated_at`

func (r *DoctorProfileRepository) GetByUserID(ctx context.Context, userID models.UserID) (*models.DoctorProfile, error) {
	query := `SELECT ` + doctorProfileColumns + ` FROM doctor_profiles WHERE user_id = $1`
	return scanDoctorProfile(r.db.QueryRow(ctx, query, userID))
}

func (r *DoctorProfileRepository) GetByID(ctx context.Context, id models.DoctorProfileID) (*models.DoctorProfile, error) {
	query := `SELECT ` + doctorProfileColumns + ` FROM doctor_profiles WHERE id = $1`
	return scanDoctorProfile(r.db.QueryRow(ctx, query, id))
}

// EnsureForUser returns the profile owned by userID, creating an empty one
// when none exists. Concurrent callers converge on the same row.
func (r *DoctorProfileRepository) EnsureForUser(ctx context.Context, userID models.UserID) (*models.DoctorProfile, error) {
	query := `
		INSERT INTO doctor_profiles (user_id, full_name)
		SELECT id, full_name FROM users WHERE id = $1
		ON CONFLICT (user_id) DO NOTHING
	`
	if _, err := r.db.Exec(ctx, query, userID); err != nil {
		return nil, err
	}
	return r.GetByUserID(ctx, userID)
}

func scanDoctorProfile(row interface{ Scan(dest ...any) error }) (*models.DoctorProfile, error) {
	var profile models.DoctorProfile
	err := row.Scan(
		&profile.ID,
		&profile.UserID,
		&profile.FullName,
		&profile.Specialization,
		&profile.CreatedAt,
		&profile.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &profile, nil
}
