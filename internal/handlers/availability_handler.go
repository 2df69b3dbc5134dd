package handlers

import (
	"context"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/saeid-a/ConsultBack/internal/models"
)

const defaultAvailabilityDays = 7

type slotLister interface {
	AvailableSlots(ctx context.Context, doctorID models.UserID, from string, to string) ([]models.GeneratedSlot, error)
}

type AvailabilityHandler struct {
	slots slotLister
	now   func() time.Time
}

func NewAvailabilityHandler(slots slotLister) *AvailabilityHandler {
	return &AvailabilityHandler{slots: slots, now: time.Now}
}

// ListSlots returns bookable slots for a doctor. The range defaults to the
// next week starting today.
func (h *AvailabilityHandler) ListSlots(c *fiber.Ctx) error {
	doctorID, ok := parseIDParam(c, "id")
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid doctor id"})
	}

	from := strings.TrimSpace(c.Query("from"))
	if from == "" {
		from = h.now().UTC().Format(models.DateLayout)
	}
	to := strings.TrimSpace(c.Query("to"))
	if to == "" {
		start, err := models.ParseDate(from)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "from must be YYYY-MM-DD"})
		}
		to = start.AddDate(0, 0, defaultAvailabilityDays-1).Format(models.DateLayout)
	}

	slots, err := h.slots.AvailableSlots(c.Context(), models.UserID(doctorID), from, to)
	if err != nil {
		return mapServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"doctor_id": doctorID,
		"from":      from,
		"to":        to,
		"slots":     slots,
	})
}
