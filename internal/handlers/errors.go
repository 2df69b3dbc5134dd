package handlers

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/saeid-a/ConsultBack/internal/services"
)

func parseActor(c *fiber.Ctx) (services.Actor, error) {
	userIDStr, ok := c.Locals("user_id").(string)
	if !ok {
		return services.Actor{}, strconv.ErrSyntax
	}
	userID, err := strconv.ParseInt(userIDStr, 10, 64)
	if err != nil || userID <= 0 {
		return services.Actor{}, strconv.ErrSyntax
	}
	role, _ := c.Locals("role").(string)
	return services.Actor{ID: userID, Role: role}, nil
}

func parseIDParam(c *fiber.Ctx, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Params(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// mapServiceError keeps "not authorized", "call already ended" and "room
// exhausted" distinguishable; clients retry on some and stop on others.
func mapServiceError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrInvalidInput):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	case errors.Is(err, services.ErrSessionNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Session not found"})
	case errors.Is(err, services.ErrBookingNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Booking not found"})
	case errors.Is(err, services.ErrDoctorNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Doctor not found"})
	case errors.Is(err, services.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Not found"})
	case errors.Is(err, services.ErrCallEnded):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Call already ended"})
	case errors.Is(err, services.ErrStaleRoom):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Room is no longer valid"})
	case errors.Is(err, services.ErrSlotUnavailable):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Slot is no longer available"})
	case errors.Is(err, services.ErrBookingNotPaid):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Booking is not paid"})
	case errors.Is(err, services.ErrMaterializationCorrupted):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Session could not be prepared for this booking"})
	case errors.Is(err, services.ErrConflict):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrExhausted):
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "Room allocation exhausted"})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to process request"})
	}
}
