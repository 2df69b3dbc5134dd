package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/saeid-a/ConsultBack/internal/models"
)

type CreateSessionInput struct {
	PatientID       models.UserID
	DoctorID        models.DoctorProfileID
	BookingID       *int64
	ScheduledFor    time.Time
	DurationMinutes int
}

type SessionListFilter struct {
	PatientID *models.UserID
	DoctorID  *models.DoctorProfileID
	Status    string
	Timeframe string
}

type SessionRepository struct {
	db DBTX
}

func NewSessionRepository(db DBTX) *SessionRepository {
	return &SessionRepository{db: db}
}

const sessionColumns = `id, patient_id, doctor_profile_id, booking_id, scheduled_for, duration_minutes, status,
	video_room_id, call_started_at, call_ended_at, cancelled_by, cancelled_at, cancellation_reason,
	created_at, updated_at`

func (r *SessionRepository) Create(
	ctx context.Context,
	input CreateSessionInput,
) (*models.Session, error) {
	query := `
		INSERT INTO consultation_sessions (patient_id, doctor_profile_id, booking_id, scheduled_for, duration_minutes, status)
		VALUES ($1, $2, $3, $4, $5, 'upcoming')
		RETURNING ` + sessionColumns

	session, err := scanSession(r.db.QueryRow(
		ctx,
		query,
		input.PatientID,
		input.DoctorID,
		input.BookingID,
		input.ScheduledFor,
		input.DurationMinutes,
	))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrUniqueViolation
		}
		return nil, err
	}
	return session, nil
}

func (r *SessionRepository) GetByID(ctx context.Context, sessionID int64) (*models.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM consultation_sessions WHERE id = $1`
	return scanSession(r.db.QueryRow(ctx, query, sessionID))
}

func (r *SessionRepository) GetByBookingID(ctx context.Context, bookingID int64) (*models.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM consultation_sessions WHERE booking_id = $1`
	return scanSession(r.db.QueryRow(ctx, query, bookingID))
}

// InsertForBookingIfAbsent creates the session for a booking unless one
// already exists. The unique booking_id column makes concurrent callers
// converge on a single row; created reports whether this call inserted it.
func (r *SessionRepository) InsertForBookingIfAbsent(
	ctx context.Context,
	input CreateSessionInput,
) (*models.Session, bool, error) {
	if input.BookingID == nil {
		return nil, false, fmt.Errorf("booking id is required")
	}

	query := `
		INSERT INTO consultation_sessions (patient_id, doctor_profile_id, booking_id, scheduled_for, duration_minutes, status)
		VALUES ($1, $2, $3, $4, $5, 'upcoming')
		ON CONFLICT (booking_id) DO NOTHING
		RETURNING ` + sessionColumns

	session, err := scanSession(r.db.QueryRow(
		ctx,
		query,
		input.PatientID,
		input.DoctorID,
		input.BookingID,
		input.ScheduledFor,
		input.DurationMinutes,
	))
	if err == nil {
		return session, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, err
	}

	existing, err := r.GetByBookingID(ctx, *input.BookingID)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (r *SessionRepository) DeleteByID(ctx context.Context, sessionID int64) error {
	_, err := r.db.Exec(ctx, `DELETE FROM consultation_sessions WHERE id = $1`, sessionID)
	return err
}

func (r *SessionRepository) List(
	ctx context.Context,
	filter SessionListFilter,
) ([]models.Session, error) {
	args := make([]any, 0, 3)
	whereParts := make([]string, 0, 4)

	if filter.PatientID != nil {
		args = append(args, *filter.PatientID)
		whereParts = append(whereParts, fmt.Sprintf("patient_id = $%d", len(args)))
	}
	if filter.DoctorID != nil {
		args = append(args, *filter.DoctorID)
		whereParts = append(whereParts, fmt.Sprintf("doctor_profile_id = $%d", len(args)))
	}
	if len(whereParts) == 0 {
		return nil, fmt.Errorf("session list requires a patient or doctor filter")
	}

	if status := strings.TrimSpace(filter.Status); status != "" {
		args = append(args, status)
		whereParts = append(whereParts, fmt.Sprintf("status = $%d", len(args)))
	}

	switch strings.TrimSpace(filter.Timeframe) {
	case "upcoming":
		whereParts = append(
			whereParts,
			"(scheduled_for + (duration_minutes * INTERVAL '1 minute')) > NOW()",
		)
	case "past":
		whereParts = append(
			whereParts,
			"(scheduled_for + (duration_minutes * INTERVAL '1 minute')) <= NOW()",
		)
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM consultation_sessions
		WHERE %s
		ORDER BY scheduled_for ASC, id ASC
	`, sessionColumns, strings.Join(whereParts, " AND "))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sessions := make([]models.Session, 0)
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *session)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return sessions, nil
}

func (r *SessionRepository) VideoRoomIDExists(ctx context.Context, roomID string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(
		ctx,
		`SELECT EXISTS (SELECT 1 FROM consultation_sessions WHERE video_room_id = $1)`,
		roomID,
	).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

// AssignVideoRoom sets the room id only when none is stored yet. It returns
// pgx.ErrNoRows when another caller assigned one first and
// ErrUniqueViolation when the id is taken by a different session.
func (r *SessionRepository) AssignVideoRoom(
	ctx context.Context,
	sessionID int64,
	roomID string,
) (*models.Session, error) {
	query := `
		UPDATE consultation_sessions
		SET video_room_id = $2, updated_at = NOW()
		WHERE id = $1 AND video_room_id IS NULL
		RETURNING ` + sessionColumns

	session, err := scanSession(r.db.QueryRow(ctx, query, sessionID, roomID))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrUniqueViolation
		}
		return nil, err
	}
	return session, nil
}

func (r *SessionRepository) MarkInProgress(ctx context.Context, sessionID int64) (*models.Session, error) {
	query := `
		UPDATE consultation_sessions
		SET status = 'in_progress', call_started_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status = 'upcoming'
		RETURNING ` + sessionColumns
	return scanSession(r.db.QueryRow(ctx, query, sessionID))
}

func (r *SessionRepository) Complete(ctx context.Context, sessionID int64) (*models.Session, error) {
	query := `
		UPDATE consultation_sessions
		SET status = 'completed', call_ended_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status IN ('upcoming', 'in_progress')
		RETURNING ` + sessionColumns
	return scanSession(r.db.QueryRow(ctx, query, sessionID))
}

func (r *SessionRepository) Cancel(
	ctx context.Context,
	sessionID int64,
	cancelledBy int64,
	reason *string,
) (*models.Session, error) {
	query := `
		UPDATE consultation_sessions
		SET status = 'cancelled',
		    cancelled_by = $2,
		    cancelled_at = NOW(),
		    cancellation_reason = $3,
		    updated_at = NOW()
		WHERE id = $1 AND status IN ('upcoming', 'in_progress')
		RETURNING ` + sessionColumns
	return scanSession(r.db.QueryRow(ctx, query, sessionID, cancelledBy, reason))
}

func scanSession(row interface{ Scan(dest ...any) error }) (*models.Session, error) {
	var session models.Session
	err := row.Scan(
		&session.ID,
		&session.PatientID,
		&session.DoctorID,
		&session.BookingID,
		&session.ScheduledFor,
		&session.DurationMinutes,
		&session.Status,
		&session.VideoRoomID,
		&session.CallStartedAt,
		&session.CallEndedAt,
		&session.CancelledBy,
		&session.CancelledAt,
		&session.CancellationReason,
		&session.CreatedAt,
		&session.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &session, nil
}
