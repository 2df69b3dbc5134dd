package repository

import (
	"context"
	"time"

	"github.com/saeid-a/ConsultBack/internal/models"
)

type CreateBookingInput struct {
	PatientID    models.UserID
	DoctorID     models.UserID
	Date         string
	Time         string
	DurationMins int
	Mode         string
}

type BookingRepository struct {
	db DBTX
}

func NewBookingRepository(db DBTX) *BookingRepository {
	return &BookingRepository{db: db}
}

const bookingColumns = `id, patient_id, doctor_id, slot_date, slot_time, duration_mins, mode, status, created_at, updated_at`

// Create inserts a pending booking. ErrUniqueViolation means another active
// booking already holds the slot.
func (r *BookingRepository) Create(ctx context.Context, input CreateBookingInput) (*models.Booking, error) {
	query := `
		INSERT INTO bookings (patient_id, doctor_id, slot_date, slot_time, duration_mins, mode, status)
		VALUES ($1, $2, $3::date, $4, $5, $6, 'pending')
		RETURNING ` + bookingColumns

	booking, err := scanBooking(r.db.QueryRow(
		ctx,
		query,
		input.PatientID,
		input.DoctorID,
		input.Date,
		input.Time,
		input.DurationMins,
		input.Mode,
	))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrUniqueViolation
		}
		return nil, err
	}
	return booking, nil
}

func (r *BookingRepository) GetByID(ctx context.Context, bookingID int64) (*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`
	return scanBooking(r.db.QueryRow(ctx, query, bookingID))
}

func (r *BookingRepository) HasActiveAt(
	ctx context.Context,
	doctorID models.UserID,
	date string,
	clock string,
) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1
			FROM bookings
			WHERE doctor_id = $1
			  AND slot_date = $2::date
			  AND slot_time = $3
			  AND status IN ('pending', 'paid')
		)
	`
	var exists bool
	if err := r.db.QueryRow(ctx, query, doctorID, date, clock).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (r *BookingRepository) ListActiveInRange(
	ctx context.Context,
	doctorID models.UserID,
	from string,
	to string,
) ([]models.Booking, error) {
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE doctor_id = $1
		  AND slot_date BETWEEN $2::date AND $3::date
		  AND status IN ('pending', 'paid')
		ORDER BY slot_date ASC, slot_time ASC
	`
	rows, err := r.db.Query(ctx, query, doctorID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	bookings := make([]models.Booking, 0)
	for rows.Next() {
		booking, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, *booking)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return bookings, nil
}

func scanBooking(row interface{ Scan(dest ...any) error }) (*models.Booking, error) {
	var booking models.Booking
	var date time.Time
	err := row.Scan(
		&booking.ID,
		&booking.PatientID,
		&booking.DoctorID,
		&date,
		&booking.Time,
		&booking.DurationMins,
		&booking.Mode,
		&booking.Status,
		&booking.CreatedAt,
		&booking.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	booking.Date = date.Format(models.DateLayout)
	return &booking, nil
}
