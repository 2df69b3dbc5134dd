package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/saeid-a/ConsultBack/internal/metrics"
	"github.com/saeid-a/ConsultBack/internal/models"
)

type slotGenerator interface {
	Generate(ctx context.Context, doctorID models.UserID, from string, to string) ([]models.GeneratedSlot, error)
}

type activeBookingReader interface {
	HasActiveAt(ctx context.Context, doctorID models.UserID, date string, clock string) (bool, error)
	ListActiveInRange(ctx context.Context, doctorID models.UserID, from string, to string) ([]models.Booking, error)
}

// SlotRequest is the exact slot a patient is trying to check out.
type SlotRequest struct {
	DoctorID     models.UserID
	Date         string
	Time         string
	DurationMins int
	Mode         string
}

// SlotGuard hides taken slots from listings and re-checks a slot right before
// a booking is written. The partial unique index on bookings is what actually
// prevents double booking; this only narrows the window.
type SlotGuard struct {
	generator slotGenerator
	bookings  activeBookingReader
	leadTime  time.Duration
	now       func() time.Time
	metrics   metrics.Recorder
	log       zerolog.Logger
}

func NewSlotGuard(
	generator slotGenerator,
	bookings activeBookingReader,
	leadTime time.Duration,
	recorder metrics.Recorder,
	log zerolog.Logger,
) *SlotGuard {
	if recorder == nil {
		recorder = metrics.Noop{}
	}
	return &SlotGuard{
		generator: generator,
		bookings:  bookings,
		leadTime:  leadTime,
		now:       time.Now,
		metrics:   recorder,
		log:       log.With().Str("component", "slot_guard").Logger(),
	}
}

// WithBookings returns a copy of the guard that reads bookings through
// another reader, typically one bound to an open transaction.
func (g *SlotGuard) WithBookings(bookings activeBookingReader) *SlotGuard {
	clone := *g
	clone.bookings = bookings
	return &clone
}

// AvailableSlots is the generator output minus every slot held by a pending
// or paid booking.
func (g *SlotGuard) AvailableSlots(
	ctx context.Context,
	doctorID models.UserID,
	from string,
	to string,
) ([]models.GeneratedSlot, error) {
	slots, err := g.generator.Generate(ctx, doctorID, from, to)
	if err != nil {
		return nil, err
	}
	if len(slots) == 0 {
		return slots, nil
	}

	active, err := g.bookings.ListActiveInRange(ctx, doctorID, from, to)
	if err != nil {
		return nil, err
	}
	taken := make(map[string]struct{}, len(active))
	for _, booking := range active {
		clock, ok := models.NormalizeClock(booking.Time)
		if !ok {
			continue
		}
		taken[booking.Date+" "+clock] = struct{}{}
	}

	free := make([]models.GeneratedSlot, 0, len(slots))
	for _, slot := range slots {
		if _, ok := taken[slot.Date+" "+slot.Time]; ok {
			continue
		}
		free = append(free, slot)
	}

	g.metrics.RecordSlotsServed(len(free))
	return free, nil
}

// VerifySlot checks that req is still offered, respects the lead time and is
// not held by an active booking.
func (g *SlotGuard) VerifySlot(ctx context.Context, req SlotRequest) (*models.GeneratedSlot, error) {
	if req.DoctorID <= 0 || req.DurationMins <= 0 {
		return nil, ErrInvalidInput
	}
	date, err := models.ParseDate(req.Date)
	if err != nil {
		return nil, fmt.Errorf("%w: date must be YYYY-MM-DD", ErrInvalidInput)
	}
	day := date.Format(models.DateLayout)
	clock, ok := models.NormalizeClock(req.Time)
	if !ok {
		return nil, fmt.Errorf("%w: time must be HH:MM", ErrInvalidInput)
	}
	mode := strings.ToLower(strings.TrimSpace(req.Mode))
	if mode == "" {
		mode = models.ModeVideo
	}

	slots, err := g.generator.Generate(ctx, req.DoctorID, day, day)
	if err != nil {
		return nil, err
	}
	var match *models.GeneratedSlot
	for i := range slots {
		slot := slots[i]
		if slot.Time == clock && slot.DurationMins == req.DurationMins && slot.HasMode(mode) {
			match = &slot
			break
		}
	}
	if match == nil {
		return nil, g.reject("not_offered", req, fmt.Errorf("%w: slot is not offered", ErrSlotUnavailable))
	}

	if g.leadTime > 0 {
		start, err := models.SlotStart(day, clock)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		if start.Before(g.now().UTC().Add(g.leadTime)) {
			return nil, g.reject("lead_time", req, fmt.Errorf("%w: slot starts too soon", ErrSlotUnavailable))
		}
	}

	taken, err := g.bookings.HasActiveAt(ctx, req.DoctorID, day, clock)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, g.reject("booked", req, fmt.Errorf("%w: slot is already booked", ErrSlotUnavailable))
	}

	return match, nil
}

func (g *SlotGuard) reject(reason string, req SlotRequest, err error) error {
	g.metrics.RecordSlotRejected(reason)
	g.log.Debug().
		Int64("doctor_id", int64(req.DoctorID)).
		Str("date", req.Date).
		Str("time", req.Time).
		Str("reason", reason).
		Msg("slot rejected")
	return err
}
