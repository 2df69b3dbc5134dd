package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/saeid-a/ConsultBack/internal/models"
	"github.com/saeid-a/ConsultBack/internal/services"
)

type bookingReserver interface {
	Reserve(ctx context.Context, patientID models.UserID, req services.SlotRequest) (*models.Booking, error)
}

type bookingSessionOpener interface {
	OpenBookingSession(ctx context.Context, actor services.Actor, bookingID int64) (*models.SessionDetail, error)
}

type BookingHandler struct {
	bookings bookingReserver
	sessions bookingSessionOpener
}

func NewBookingHandler(bookings bookingReserver, sessions bookingSessionOpener) *BookingHandler {
	return &BookingHandler{bookings: bookings, sessions: sessions}
}

type reserveSlotRequest struct {
	DoctorID     int64  `json:"doctor_id"`
	Date         string `json:"date"`
	Time         string `json:"time"`
	DurationMins int    `json:"duration_mins"`
	Mode         string `json:"mode"`
}

// Reserve holds a slot as a pending booking for the calling patient.
func (h *BookingHandler) Reserve(c *fiber.Ctx) error {
	actor, err := parseActor(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}
	if actor.Role != models.RolePatient {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Only patients can book slots"})
	}

	var req reserveSlotRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if req.DoctorID <= 0 || req.Date == "" || req.Time == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "doctor_id, date and time are required"})
	}

	booking, err := h.bookings.Reserve(c.Context(), models.UserID(actor.ID), services.SlotRequest{
		DoctorID:     models.UserID(req.DoctorID),
		Date:         req.Date,
		Time:         req.Time,
		DurationMins: req.DurationMins,
		Mode:         req.Mode,
	})
	if err != nil {
		return mapServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"booking": booking})
}

// OpenCall returns the session of a paid booking, creating it on first use.
func (h *BookingHandler) OpenCall(c *fiber.Ctx) error {
	actor, err := parseActor(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}
	bookingID, ok := parseIDParam(c, "id")
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid booking id"})
	}

	session, err := h.sessions.OpenBookingSession(c.Context(), actor, bookingID)
	if err != nil {
		return mapServiceError(c, err)
	}

	return c.JSON(fiber.Map{"session": session})
}
