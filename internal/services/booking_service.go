package services

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/saeid-a/ConsultBack/internal/models"
	"github.com/saeid-a/ConsultBack/internal/repository"
)

type txBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

type doctorResolver interface {
	ResolveProfile(ctx context.Context, doctorUserID models.UserID) (*models.DoctorProfile, error)
}

// BookingService places the checkout hold. Moving a booking to paid is the
// payment collaborator's job.
type BookingService struct {
	db      txBeginner
	guard   *SlotGuard
	doctors doctorResolver
	log     zerolog.Logger
}

func NewBookingService(db txBeginner, guard *SlotGuard, doctors doctorResolver, log zerolog.Logger) *BookingService {
	return &BookingService{
		db:      db,
		guard:   guard,
		doctors: doctors,
		log:     log.With().Str("component", "booking").Logger(),
	}
}

// Reserve verifies the slot and inserts a pending booking under a per-doctor
// advisory lock. A unique violation from the active slot index still maps to
// ErrSlotUnavailable.
func (s *BookingService) Reserve(
	ctx context.Context,
	patientID models.UserID,
	req SlotRequest,
) (*models.Booking, error) {
	if patientID <= 0 || req.DoctorID <= 0 {
		return nil, ErrInvalidInput
	}
	if patientID == req.DoctorID {
		return nil, ErrInvalidInput
	}
	if _, err := s.doctors.ResolveProfile(ctx, req.DoctorID); err != nil {
		return nil, err
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", int64(req.DoctorID)); err != nil {
		return nil, err
	}

	txBookingRepo := repository.NewBookingRepository(tx)
	slot, err := s.guard.WithBookings(txBookingRepo).VerifySlot(ctx, req)
	if err != nil {
		return nil, err
	}

	mode := strings.ToLower(strings.TrimSpace(req.Mode))
	if mode == "" {
		mode = models.ModeVideo
	}
	booking, err := txBookingRepo.Create(ctx, repository.CreateBookingInput{
		PatientID:    patientID,
		DoctorID:     req.DoctorID,
		Date:         slot.Date,
		Time:         slot.Time,
		DurationMins: slot.DurationMins,
		Mode:         mode,
	})
	if err != nil {
		if errors.Is(err, repository.ErrUniqueViolation) {
			return nil, ErrSlotUnavailable
		}
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	s.log.Info().
		Int64("booking_id", booking.ID).
		Int64("doctor_id", int64(booking.DoctorID)).
		Str("date", booking.Date).
		Str("time", booking.Time).
		Msg("booking held")
	return booking, nil
}
