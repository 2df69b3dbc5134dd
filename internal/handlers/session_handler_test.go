package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/saeid-a/ConsultBack/internal/models"
	"github.com/saeid-a/ConsultBack/internal/services"
)

type stubSessionService struct {
	createResult  *models.SessionDetail
	createErr     error
	listResult    []models.Session
	listErr       error
	getResult     *models.SessionDetail
	getErr        error
	prepareResult *models.PreparedCall
	prepareErr    error
	endResult     *models.Session
	endErr        error
	cancelResult  *models.Session
	cancelErr     error

	lastCreateInput services.CreateSessionInput
	lastActor       services.Actor
	lastSessionID   int64
	lastQuery       services.SessionQuery
	lastReason      string
}

func (s *stubSessionService) CreateSession(_ context.Context, input services.CreateSessionInput) (*models.SessionDetail, error) {
	s.lastCreateInput = input
	return s.createResult, s.createErr
}

func (s *stubSessionService) GetSession(_ context.Context, sessionID int64, actor services.Actor) (*models.SessionDetail, error) {
	s.lastSessionID = sessionID
	s.lastActor = actor
	return s.getResult, s.getErr
}

func (s *stubSessionService) ListSessions(_ context.Context, actor services.Actor, query services.SessionQuery) ([]models.Session, error) {
	s.lastActor = actor
	s.lastQuery = query
	return s.listResult, s.listErr
}

func (s *stubSessionService) PrepareCall(_ context.Context, sessionID int64, actor services.Actor) (*models.PreparedCall, error) {
	s.lastSessionID = sessionID
	s.lastActor = actor
	return s.prepareResult, s.prepareErr
}

func (s *stubSessionService) EndCall(_ context.Context, sessionID int64, actor services.Actor) (*models.Session, error) {
	s.lastSessionID = sessionID
	s.lastActor = actor
	return s.endResult, s.endErr
}

func (s *stubSessionService) Cancel(_ context.Context, sessionID int64, actor services.Actor, reason string) (*models.Session, error) {
	s.lastSessionID = sessionID
	s.lastActor = actor
	s.lastReason = reason
	return s.cancelResult, s.cancelErr
}

func newSessionTestApp(handler *SessionHandler, role string, userID string) *fiber.App {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("role", role)
		c.Locals("user_id", userID)
		return c.Next()
	})
	app.Post("/api/v1/sessions", handler.CreateSession)
	app.Get("/api/v1/sessions", handler.ListSessions)
	app.Get("/api/v1/sessions/:id", handler.GetSession)
	app.Post("/api/v1/sessions/:id/call/prepare", handler.PrepareCall)
	app.Post("/api/v1/sessions/:id/call/end", handler.EndCall)
	app.Post("/api/v1/sessions/:id/cancel", handler.Cancel)
	return app
}

func TestCreateSessionAsPatientUsesDoctorFromBody(t *testing.T) {
	service := &stubSessionService{
		createResult: &models.SessionDetail{
			Session: models.Session{ID: 91, PatientID: 42, DoctorID: 100, Status: models.SessionStatusUpcoming, DurationMinutes: 30},
		},
	}
	app := newSessionTestApp(&SessionHandler{service: service}, models.RolePatient, "42")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions", strings.NewReader(`{
		"doctor_id": 7,
		"scheduled_for": "2026-03-15T09:00:00Z",
		"duration_minutes": 30
	}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	if service.lastCreateInput.PatientID != 42 {
		t.Fatalf("expected patient 42, got %d", service.lastCreateInput.PatientID)
	}
	if service.lastCreateInput.DoctorUserID != 7 {
		t.Fatalf("expected doctor 7, got %d", service.lastCreateInput.DoctorUserID)
	}
	want := time.Date(2026, 3, 15, 9, 0, 0, 0, time.UTC)
	if !service.lastCreateInput.ScheduledFor.Equal(want) {
		t.Fatalf("expected %v, got %v", want, service.lastCreateInput.ScheduledFor)
	}
}

func TestCreateSessionAsDoctorUsesPatientFromBody(t *testing.T) {
	service := &stubSessionService{createResult: &models.SessionDetail{}}
	app := newSessionTestApp(&SessionHandler{service: service}, models.RoleDoctor, "10")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions", strings.NewReader(`{
		"patient_id": 42,
		"scheduled_for": "2026-03-15T09:00:00Z",
		"duration_minutes": 45
	}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	if service.lastCreateInput.PatientID != 42 || service.lastCreateInput.DoctorUserID != 10 {
		t.Fatalf("unexpected parties: %+v", service.lastCreateInput)
	}
}

func TestCreateSessionRejectsBadTimestamp(t *testing.T) {
	service := &stubSessionService{}
	app := newSessionTestApp(&SessionHandler{service: service}, models.RolePatient, "42")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions", strings.NewReader(`{
		"doctor_id": 7,
		"scheduled_for": "tomorrow",
		"duration_minutes": 30
	}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestListSessionsPassesFilters(t *testing.T) {
	service := &stubSessionService{listResult: []models.Session{{ID: 1}, {ID: 2}}}
	app := newSessionTestApp(&SessionHandler{service: service}, models.RoleDoctor, "10")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions?status=upcoming&timeframe=past", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if service.lastActor.ID != 10 || service.lastActor.Role != models.RoleDoctor {
		t.Fatalf("unexpected actor: %+v", service.lastActor)
	}
	if service.lastQuery.Status != "upcoming" || service.lastQuery.Timeframe != "past" {
		t.Fatalf("unexpected query: %+v", service.lastQuery)
	}

	var body struct {
		Sessions []models.Session `json:"sessions"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Sessions) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(body.Sessions))
	}
}

func TestListSessionsRejectsUnknownTimeframe(t *testing.T) {
	app := newSessionTestApp(&SessionHandler{service: &stubSessionService{}}, models.RolePatient, "42")

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/sessions?timeframe=soon", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestPrepareCallReturnsRoom(t *testing.T) {
	service := &stubSessionService{
		prepareResult: &models.PreparedCall{SessionID: 5, VideoRoomID: "room_abc123def456", Status: models.SessionStatusUpcoming},
	}
	app := newSessionTestApp(&SessionHandler{service: service}, models.RolePatient, "42")

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/api/v1/sessions/5/call/prepare", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if service.lastSessionID != 5 {
		t.Fatalf("expected session 5, got %d", service.lastSessionID)
	}

	var body struct {
		Call models.PreparedCall `json:"call"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Call.VideoRoomID != "room_abc123def456" {
		t.Fatalf("unexpected room id %q", body.Call.VideoRoomID)
	}
}

func TestCancelPassesReason(t *testing.T) {
	service := &stubSessionService{cancelResult: &models.Session{ID: 5, Status: models.SessionStatusCancelled}}
	app := newSessionTestApp(&SessionHandler{service: service}, models.RoleDoctor, "10")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/5/cancel", strings.NewReader(`{"reason":"doctor unavailable"}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if service.lastReason != "doctor unavailable" {
		t.Fatalf("unexpected reason %q", service.lastReason)
	}
}

func TestEndCallWithoutBody(t *testing.T) {
	service := &stubSessionService{endResult: &models.Session{ID: 5, Status: models.SessionStatusCompleted}}
	app := newSessionTestApp(&SessionHandler{service: service}, models.RolePatient, "42")

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/api/v1/sessions/5/call/end", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestSessionErrorsMapToStatus(t *testing.T) {
	cases := []struct {
		err     error
		status  int
		message string
	}{
		{services.ErrForbidden, http.StatusForbidden, "Forbidden"},
		{services.ErrSessionNotFound, http.StatusNotFound, "Session not found"},
		{services.ErrCallEnded, http.StatusConflict, "Call already ended"},
		{services.ErrRoomAllocationExhausted, http.StatusServiceUnavailable, "Room allocation exhausted"},
		{services.ErrInvalidStatus, http.StatusBadRequest, ""},
		{fmt.Errorf("boom"), http.StatusInternalServerError, "Failed to process request"},
	}

	for _, tc := range cases {
		service := &stubSessionService{prepareErr: tc.err}
		app := newSessionTestApp(&SessionHandler{service: service}, models.RolePatient, "42")

		resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/api/v1/sessions/5/call/prepare", nil))
		if err != nil {
			t.Fatalf("app.Test: %v", err)
		}

		var body map[string]string
		_ = json.NewDecoder(resp.Body).Decode(&body)
		resp.Body.Close()

		if resp.StatusCode != tc.status {
			t.Fatalf("%v: expected %d, got %d", tc.err, tc.status, resp.StatusCode)
		}
		if tc.message != "" && body["error"] != tc.message {
			t.Fatalf("%v: expected %q, got %q", tc.err, tc.message, body["error"])
		}
	}
}

func TestSessionRoutesRequireValidUserID(t *testing.T) {
	app := newSessionTestApp(&SessionHandler{service: &stubSessionService{}}, models.RolePatient, "not-a-number")

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/sessions/5", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestListSessionsPaginates(t *testing.T) {
	all := make([]models.Session, 0, 5)
	for i := 1; i <= 5; i++ {
		all = append(all, models.Session{ID: int64(i)})
	}
	service := &stubSessionService{listResult: all}
	app := newSessionTestApp(&SessionHandler{service: service}, models.RolePatient, "42")

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/sessions?page=2&limit=2", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	var body struct {
		Sessions   []models.Session `json:"sessions"`
		Pagination paginationMeta   `json:"pagination"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Sessions) != 2 || body.Sessions[0].ID != 3 {
		t.Fatalf("unexpected page: %+v", body.Sessions)
	}
	if body.Pagination.Total != 5 || body.Pagination.TotalPages != 3 {
		t.Fatalf("unexpected pagination: %+v", body.Pagination)
	}
}
