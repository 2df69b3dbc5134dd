package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/saeid-a/ConsultBack/internal/metrics"
	"github.com/saeid-a/ConsultBack/internal/models"
	"github.com/saeid-a/ConsultBack/internal/repository"
)

// A mismatched or failed first attempt gets exactly one more try.
const maxMaterializeAttempts = 2

type materializeStore interface {
	InsertForBookingIfAbsent(ctx context.Context, input repository.CreateSessionInput) (*models.Session, bool, error)
	DeleteByID(ctx context.Context, sessionID int64) error
}

type bookingReader interface {
	GetByID(ctx context.Context, bookingID int64) (*models.Booking, error)
}

type materializeDirectory interface {
	ResolveProfile(ctx context.Context, doctorUserID models.UserID) (*models.DoctorProfile, error)
	LookupProfile(ctx context.Context, doctorUserID models.UserID) (*models.DoctorProfile, error)
	Participants(ctx context.Context, session *models.Session) (*models.Participant, *models.Participant, error)
}

type MaterializeInput struct {
	BookingID       int64
	PatientID       models.UserID
	DoctorUserID    models.UserID
	ScheduledFor    time.Time
	DurationMinutes int
}

// SessionMaterializer turns a paid booking into its single session row.
type SessionMaterializer struct {
	sessions materializeStore
	bookings bookingReader
	doctors  materializeDirectory
	group    singleflight.Group
	metrics  metrics.Recorder
	log      zerolog.Logger
}

func NewSessionMaterializer(
	sessions materializeStore,
	bookings bookingReader,
	doctors materializeDirectory,
	recorder metrics.Recorder,
	log zerolog.Logger,
) *SessionMaterializer {
	if recorder == nil {
		recorder = metrics.Noop{}
	}
	return &SessionMaterializer{
		sessions: sessions,
		bookings: bookings,
		doctors:  doctors,
		metrics:  recorder,
		log:      log.With().Str("component", "materializer").Logger(),
	}
}

// GetOrCreateFromBooking returns the session for input.BookingID, creating it
// if needed. Concurrent callers in this process share one storage round trip;
// across processes the unique booking_id column makes them converge.
func (m *SessionMaterializer) GetOrCreateFromBooking(
	ctx context.Context,
	input MaterializeInput,
) (*models.SessionDetail, error) {
	if input.BookingID <= 0 || input.PatientID <= 0 || input.DoctorUserID <= 0 {
		return nil, ErrInvalidInput
	}
	if input.ScheduledFor.IsZero() {
		return nil, fmt.Errorf("%w: scheduled_for is required", ErrInvalidInput)
	}
	if input.DurationMinutes < minSessionMinutes || input.DurationMinutes > maxSessionMinutes {
		return nil, fmt.Errorf("%w: duration must be between %d and %d minutes", ErrInvalidInput, minSessionMinutes, maxSessionMinutes)
	}

	key := fmt.Sprintf("%d:%d", input.BookingID, input.PatientID)
	value, err, _ := m.group.Do(key, func() (any, error) {
		return m.materialize(ctx, input)
	})
	if err != nil {
		return nil, err
	}

	shared := value.(*models.SessionDetail)
	detail := *shared
	return &detail, nil
}

// OpenBookingSession is the "open the call screen" path: either party of a
// paid booking gets the booking's session, materializing it on first use.
func (m *SessionMaterializer) OpenBookingSession(
	ctx context.Context,
	actor Actor,
	bookingID int64,
) (*models.SessionDetail, error) {
	if bookingID <= 0 {
		return nil, ErrInvalidInput
	}

	booking, err := m.bookings.GetByID(ctx, bookingID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}

	if err := m.authorizeBookingParty(ctx, booking, actor); err != nil {
		return nil, err
	}
	if booking.Status != models.BookingStatusPaid {
		return nil, ErrBookingNotPaid
	}

	scheduledFor, err := booking.ScheduledFor()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	return m.GetOrCreateFromBooking(ctx, MaterializeInput{
		BookingID:       booking.ID,
		PatientID:       booking.PatientID,
		DoctorUserID:    booking.DoctorID,
		ScheduledFor:    scheduledFor,
		DurationMinutes: booking.DurationMins,
	})
}

func (m *SessionMaterializer) authorizeBookingParty(ctx context.Context, booking *models.Booking, actor Actor) error {
	if actor.ID <= 0 {
		return ErrForbidden
	}
	if actor.Role != models.RoleDoctor && int64(booking.PatientID) == actor.ID {
		return nil
	}
	if actor.Role == models.RolePatient {
		return ErrForbidden
	}
	if int64(booking.DoctorID) == actor.ID {
		return nil
	}

	profile, err := m.doctors.ResolveProfile(ctx, booking.DoctorID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrForbidden
		}
		return err
	}
	if int64(profile.ID) != actor.ID {
		return ErrForbidden
	}
	ok, err := presentsProfileID(ctx, m.doctors, actor.ID, profile.ID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrForbidden
	}
	return nil
}

func (m *SessionMaterializer) materialize(ctx context.Context, input MaterializeInput) (*models.SessionDetail, error) {
	profile, err := m.doctors.ResolveProfile(ctx, input.DoctorUserID)
	if err != nil {
		return nil, err
	}

	bookingID := input.BookingID
	create := repository.CreateSessionInput{
		PatientID:       input.PatientID,
		DoctorID:        profile.ID,
		BookingID:       &bookingID,
		ScheduledFor:    input.ScheduledFor.UTC(),
		DurationMinutes: input.DurationMinutes,
	}

	log := m.log.With().Int64("booking_id", bookingID).Logger()
	var lastErr error
	repaired := false
	for attempt := 1; attempt <= maxMaterializeAttempts; attempt++ {
		session, created, err := m.sessions.InsertForBookingIfAbsent(ctx, create)
		if err != nil {
			lastErr = err
			log.Warn().Err(err).Int("attempt", attempt).Msg("session upsert failed")
			continue
		}

		if session.PatientID == input.PatientID && session.DoctorID == profile.ID {
			outcome := metrics.MaterializationReused
			switch {
			case repaired:
				outcome = metrics.MaterializationRepaired
			case created:
				outcome = metrics.MaterializationCreated
			}
			m.metrics.RecordMaterialization(outcome)
			log.Info().Int64("session_id", session.ID).Str("outcome", outcome).Msg("session materialized")

			patient, doctor, err := m.doctors.Participants(ctx, session)
			if err != nil {
				return nil, err
			}
			return &models.SessionDetail{Session: *session, Patient: patient, Doctor: doctor}, nil
		}

		lastErr = ErrMaterializationCorrupted
		log.Warn().
			Int64("session_id", session.ID).
			Int64("stored_patient_id", int64(session.PatientID)).
			Int64("expected_patient_id", int64(input.PatientID)).
			Int("attempt", attempt).
			Msg("session does not match booking")
		if attempt == maxMaterializeAttempts {
			break
		}
		if err := m.sessions.DeleteByID(ctx, session.ID); err != nil {
			m.metrics.RecordMaterialization(metrics.MaterializationFailed)
			return nil, fmt.Errorf("delete mismatched session %d: %w", session.ID, err)
		}
		repaired = true
	}

	m.metrics.RecordMaterialization(metrics.MaterializationFailed)
	log.Error().Err(lastErr).Msg("session materialization failed")
	if errors.Is(lastErr, ErrMaterializationCorrupted) {
		return nil, ErrMaterializationCorrupted
	}
	return nil, fmt.Errorf("materialize booking %d: %w", bookingID, lastErr)
}
