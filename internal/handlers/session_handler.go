package handlers

import (
	"context"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/saeid-a/ConsultBack/internal/models"
	"github.com/saeid-a/ConsultBack/internal/services"
)

type sessionApplicationService interface {
	CreateSession(ctx context.Context, input services.CreateSessionInput) (*models.SessionDetail, error)
	GetSession(ctx context.Context, sessionID int64, actor services.Actor) (*models.SessionDetail, error)
	ListSessions(ctx context.Context, actor services.Actor, query services.SessionQuery) ([]models.Session, error)
	PrepareCall(ctx context.Context, sessionID int64, actor services.Actor) (*models.PreparedCall, error)
	EndCall(ctx context.Context, sessionID int64, actor services.Actor) (*models.Session, error)
	Cancel(ctx context.Context, sessionID int64, actor services.Actor, reason string) (*models.Session, error)
}

type SessionHandler struct {
	service sessionApplicationService
}

func NewSessionHandler(service sessionApplicationService) *SessionHandler {
	return &SessionHandler{service: service}
}

type createSessionRequest struct {
	DoctorID        int64  `json:"doctor_id"`
	PatientID       int64  `json:"patient_id"`
	ScheduledFor    string `json:"scheduled_for"`
	DurationMinutes int    `json:"duration_minutes"`
}

type cancelSessionRequest struct {
	Reason string `json:"reason"`
}

// CreateSession books a session without a checkout. Patients pass the
// doctor's user id; doctors pass the patient's user id.
func (h *SessionHandler) CreateSession(c *fiber.Ctx) error {
	actor, err := parseActor(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	var req createSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	scheduledFor, err := time.Parse(time.RFC3339, strings.TrimSpace(req.ScheduledFor))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "scheduled_for must be a valid RFC3339 timestamp"})
	}

	input := services.CreateSessionInput{
		ScheduledFor:    scheduledFor,
		DurationMinutes: req.DurationMinutes,
	}
	switch actor.Role {
	case models.RolePatient:
		input.PatientID = models.UserID(actor.ID)
		input.DoctorUserID = models.UserID(req.DoctorID)
	case models.RoleDoctor:
		input.PatientID = models.UserID(req.PatientID)
		input.DoctorUserID = models.UserID(actor.ID)
	default:
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}

	detail, err := h.service.CreateSession(c.Context(), input)
	if err != nil {
		return mapServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"session": detail})
}

func (h *SessionHandler) ListSessions(c *fiber.Ctx) error {
	actor, err := parseActor(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}
	if actor.Role != models.RolePatient && actor.Role != models.RoleDoctor {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}

	timeframe := strings.TrimSpace(c.Query("timeframe"))
	if timeframe != "" && timeframe != "upcoming" && timeframe != "past" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "timeframe must be upcoming or past"})
	}

	sessions, err := h.service.ListSessions(c.Context(), actor, services.SessionQuery{
		Status:    strings.TrimSpace(c.Query("status")),
		Timeframe: timeframe,
	})
	if err != nil {
		return mapServiceError(c, err)
	}

	page := parsePositiveInt(c.Query("page"), 1)
	limit := parsePositiveInt(c.Query("limit"), defaultPageLimit)
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	start, end := pageBounds(page, limit, len(sessions))

	return c.JSON(fiber.Map{
		"sessions":   sessions[start:end],
		"pagination": buildPaginationMeta(page, limit, len(sessions)),
	})
}

func (h *SessionHandler) GetSession(c *fiber.Ctx) error {
	actor, err := parseActor(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}
	sessionID, ok := parseIDParam(c, "id")
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid session id"})
	}

	session, err := h.service.GetSession(c.Context(), sessionID, actor)
	if err != nil {
		return mapServiceError(c, err)
	}

	return c.JSON(fiber.Map{"session": session})
}

func (h *SessionHandler) PrepareCall(c *fiber.Ctx) error {
	actor, err := parseActor(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}
	sessionID, ok := parseIDParam(c, "id")
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid session id"})
	}

	call, err := h.service.PrepareCall(c.Context(), sessionID, actor)
	if err != nil {
		return mapServiceError(c, err)
	}

	return c.JSON(fiber.Map{"call": call})
}

func (h *SessionHandler) EndCall(c *fiber.Ctx) error {
	actor, err := parseActor(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}
	sessionID, ok := parseIDParam(c, "id")
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid session id"})
	}

	session, err := h.service.EndCall(c.Context(), sessionID, actor)
	if err != nil {
		return mapServiceError(c, err)
	}

	return c.JSON(fiber.Map{"session": session})
}

func (h *SessionHandler) Cancel(c *fiber.Ctx) error {
	actor, err := parseActor(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}
	sessionID, ok := parseIDParam(c, "id")
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid session id"})
	}

	var req cancelSessionRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
		}
	}

	session, err := h.service.Cancel(c.Context(), sessionID, actor, req.Reason)
	if err != nil {
		return mapServiceError(c, err)
	}

	return c.JSON(fiber.Map{"session": session})
}
