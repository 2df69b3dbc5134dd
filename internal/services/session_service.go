package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/saeid-a/ConsultBack/internal/metrics"
	"github.com/saeid-a/ConsultBack/internal/models"
	"github.com/saeid-a/ConsultBack/internal/repository"
)

const (
	minSessionMinutes  = 5
	maxSessionMinutes  = 480
	roomIDPrefix       = "room_"
	roomIDLength       = 12
	roomIDAlphabet     = "abcdefghijklmnopqrstuvwxyz0123456789"
	maxRoomIDAttempts  = 10
	maxCancelReasonLen = 500
)

type sessionStore interface {
	Create(ctx context.Context, input repository.CreateSessionInput) (*models.Session, error)
	GetByID(ctx context.Context, sessionID int64) (*models.Session, error)
	List(ctx context.Context, filter repository.SessionListFilter) ([]models.Session, error)
	VideoRoomIDExists(ctx context.Context, roomID string) (bool, error)
	AssignVideoRoom(ctx context.Context, sessionID int64, roomID string) (*models.Session, error)
	MarkInProgress(ctx context.Context, sessionID int64) (*models.Session, error)
	Complete(ctx context.Context, sessionID int64) (*models.Session, error)
	Cancel(ctx context.Context, sessionID int64, cancelledBy int64, reason *string) (*models.Session, error)
}

type sessionDirectory interface {
	ResolveProfile(ctx context.Context, doctorUserID models.UserID) (*models.DoctorProfile, error)
	LookupProfile(ctx context.Context, doctorUserID models.UserID) (*models.DoctorProfile, error)
	ProfileByID(ctx context.Context, id models.DoctorProfileID) (*models.DoctorProfile, error)
	OwnerOf(ctx context.Context, profileID models.DoctorProfileID) (models.UserID, error)
	Participants(ctx context.Context, session *models.Session) (*models.Participant, *models.Participant, error)
}

type CreateSessionInput struct {
	PatientID       models.UserID
	DoctorUserID    models.UserID
	ScheduledFor    time.Time
	DurationMinutes int
}

type SessionQuery struct {
	Status    string
	Timeframe string
}

// SessionService owns every status change of a consultation session.
// Transitions are compare-and-swap updates, so concurrent callers never
// move a session backwards.
type SessionService struct {
	sessions  sessionStore
	doctors   sessionDirectory
	metrics   metrics.Recorder
	log       zerolog.Logger
	now       func() time.Time
	newRoomID func() (string, error)
}

func NewSessionService(
	sessions sessionStore,
	doctors sessionDirectory,
	recorder metrics.Recorder,
	log zerolog.Logger,
) *SessionService {
	if recorder == nil {
		recorder = metrics.Noop{}
	}
	return &SessionService{
		sessions:  sessions,
		doctors:   doctors,
		metrics:   recorder,
		log:       log.With().Str("component", "session").Logger(),
		now:       time.Now,
		newRoomID: randomRoomID,
	}
}

func (s *SessionService) CreateSession(ctx context.Context, input CreateSessionInput) (*models.SessionDetail, error) {
	if input.PatientID <= 0 || input.DoctorUserID <= 0 || input.PatientID == input.DoctorUserID {
		return nil, ErrInvalidInput
	}
	if input.DurationMinutes < minSessionMinutes || input.DurationMinutes > maxSessionMinutes {
		return nil, fmt.Errorf("%w: duration must be between %d and %d minutes", ErrInvalidInput, minSessionMinutes, maxSessionMinutes)
	}
	if input.ScheduledFor.IsZero() || input.ScheduledFor.Before(s.now()) {
		return nil, fmt.Errorf("%w: scheduled_for must not be in the past", ErrInvalidInput)
	}

	profile, err := s.doctors.ResolveProfile(ctx, input.DoctorUserID)
	if err != nil {
		return nil, err
	}

	session, err := s.sessions.Create(ctx, repository.CreateSessionInput{
		PatientID:       input.PatientID,
		DoctorID:        profile.ID,
		ScheduledFor:    input.ScheduledFor.UTC(),
		DurationMinutes: input.DurationMinutes,
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordCallTransition(session.Status)
	return s.detail(ctx, session)
}

func (s *SessionService) GetSession(ctx context.Context, sessionID int64, actor Actor) (*models.SessionDetail, error) {
	session, _, err := s.loadForParty(ctx, sessionID, actor)
	if err != nil {
		return nil, err
	}
	return s.detail(ctx, session)
}

// ListSessions lists the actor's own sessions. A doctor without a profile has
// no sessions yet.
func (s *SessionService) ListSessions(ctx context.Context, actor Actor, query SessionQuery) ([]models.Session, error) {
	status := strings.TrimSpace(query.Status)
	if status != "" && !models.IsKnownSessionStatus(status) {
		return nil, ErrInvalidStatus
	}
	filter := repository.SessionListFilter{Status: status, Timeframe: query.Timeframe}

	switch actor.Role {
	case models.RolePatient:
		patientID := models.UserID(actor.ID)
		filter.PatientID = &patientID
	case models.RoleDoctor:
		profile, err := s.doctorProfileFor(ctx, actor.ID)
		if err != nil {
			if errors.Is(err, ErrDoctorNotFound) {
				return []models.Session{}, nil
			}
			return nil, err
		}
		filter.DoctorID = &profile.ID
	default:
		return nil, ErrForbidden
	}

	return s.sessions.List(ctx, filter)
}

// PrepareCall issues the video room id on first use and moves the session to
// in_progress. Repeated calls return the same room and leave timestamps alone.
func (s *SessionService) PrepareCall(ctx context.Context, sessionID int64, actor Actor) (*models.PreparedCall, error) {
	session, role, err := s.loadForParty(ctx, sessionID, actor)
	if err != nil {
		return nil, err
	}
	if session.IsTerminal() {
		return nil, ErrCallEnded
	}

	if session.VideoRoomID == nil {
		session, err = s.assignRoom(ctx, session)
		if err != nil {
			return nil, err
		}
	}

	if session.Status != models.SessionStatusInProgress {
		started, err := s.sessions.MarkInProgress(ctx, session.ID)
		switch {
		case err == nil:
			session = started
			s.metrics.RecordCallTransition(models.SessionStatusInProgress)
			s.log.Info().
				Int64("session_id", session.ID).
				Str("by", role).
				Msg("call started")
		case errors.Is(err, pgx.ErrNoRows):
			session, err = s.reload(ctx, session.ID)
			if err != nil {
				return nil, err
			}
			if session.IsTerminal() {
				return nil, ErrCallEnded
			}
		default:
			return nil, err
		}
	}

	return &models.PreparedCall{
		SessionID:       session.ID,
		VideoRoomID:     *session.VideoRoomID,
		Status:          session.Status,
		ScheduledFor:    session.ScheduledFor,
		DurationMinutes: session.DurationMinutes,
	}, nil
}

// EndCall completes the session. Ending a session that already reached a
// terminal state returns it unchanged.
func (s *SessionService) EndCall(ctx context.Context, sessionID int64, actor Actor) (*models.Session, error) {
	session, role, err := s.loadForParty(ctx, sessionID, actor)
	if err != nil {
		return nil, err
	}
	if session.IsTerminal() {
		return session, nil
	}

	ended, err := s.sessions.Complete(ctx, session.ID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return s.reload(ctx, session.ID)
		}
		return nil, err
	}

	s.metrics.RecordCallTransition(models.SessionStatusCompleted)
	s.log.Info().Int64("session_id", ended.ID).Str("by", role).Msg("call ended")
	return ended, nil
}

// Cancel is a no-op for sessions that are already completed or cancelled.
func (s *SessionService) Cancel(ctx context.Context, sessionID int64, actor Actor, reason string) (*models.Session, error) {
	reason = strings.TrimSpace(reason)
	if len(reason) > maxCancelReasonLen {
		return nil, fmt.Errorf("%w: reason is too long", ErrInvalidInput)
	}

	session, role, err := s.loadForParty(ctx, sessionID, actor)
	if err != nil {
		return nil, err
	}
	if session.IsTerminal() {
		return session, nil
	}

	var reasonPtr *string
	if reason != "" {
		reasonPtr = &reason
	}
	cancelled, err := s.sessions.Cancel(ctx, session.ID, actor.ID, reasonPtr)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return s.reload(ctx, session.ID)
		}
		return nil, err
	}

	s.metrics.RecordCallTransition(models.SessionStatusCancelled)
	s.log.Info().Int64("session_id", cancelled.ID).Str("by", role).Msg("session cancelled")
	return cancelled, nil
}

// AuthorizeRoom admits actor into the signaling room only when roomID is the
// session's current room and the call is still open.
func (s *SessionService) AuthorizeRoom(ctx context.Context, sessionID int64, roomID string, actor Actor) (string, error) {
	session, role, err := s.loadForParty(ctx, sessionID, actor)
	if err != nil {
		return "", err
	}
	if session.IsTerminal() {
		return "", ErrCallEnded
	}
	if session.VideoRoomID == nil || *session.VideoRoomID != roomID {
		return "", ErrStaleRoom
	}
	return role, nil
}

// doctorProfileFor reads id as a doctor user id first and as a profile id
// only when no profile is owned by that user id, matching sessionParty.
func (s *SessionService) doctorProfileFor(ctx context.Context, id int64) (*models.DoctorProfile, error) {
	profile, err := s.doctors.LookupProfile(ctx, models.UserID(id))
	if err == nil {
		return profile, nil
	}
	if !errors.Is(err, ErrDoctorNotFound) {
		return nil, err
	}
	return s.doctors.ProfileByID(ctx, models.DoctorProfileID(id))
}

func (s *SessionService) assignRoom(ctx context.Context, session *models.Session) (*models.Session, error) {
	for attempt := 0; attempt < maxRoomIDAttempts; attempt++ {
		roomID, err := s.newRoomID()
		if err != nil {
			return nil, err
		}

		exists, err := s.sessions.VideoRoomIDExists(ctx, roomID)
		if err != nil {
			return nil, err
		}
		if exists {
			continue
		}

		updated, err := s.sessions.AssignVideoRoom(ctx, session.ID, roomID)
		switch {
		case err == nil:
			return updated, nil
		case errors.Is(err, repository.ErrUniqueViolation):
			continue
		case errors.Is(err, pgx.ErrNoRows):
			// Another caller assigned a room first.
			current, err := s.reload(ctx, session.ID)
			if err != nil {
				return nil, err
			}
			if current.VideoRoomID != nil {
				return current, nil
			}
		default:
			return nil, err
		}
	}

	s.log.Error().Int64("session_id", session.ID).Msg("room id allocation exhausted")
	return nil, ErrRoomAllocationExhausted
}

func (s *SessionService) loadForParty(ctx context.Context, sessionID int64, actor Actor) (*models.Session, string, error) {
	if sessionID <= 0 {
		return nil, "", ErrInvalidInput
	}
	session, err := s.reload(ctx, sessionID)
	if err != nil {
		return nil, "", err
	}
	role, err := sessionParty(ctx, s.doctors, session, actor)
	if err != nil {
		return nil, "", err
	}
	return session, role, nil
}

func (s *SessionService) reload(ctx context.Context, sessionID int64) (*models.Session, error) {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return session, nil
}

func (s *SessionService) detail(ctx context.Context, session *models.Session) (*models.SessionDetail, error) {
	patient, doctor, err := s.doctors.Participants(ctx, session)
	if err != nil {
		return nil, err
	}
	return &models.SessionDetail{Session: *session, Patient: patient, Doctor: doctor}, nil
}

func randomRoomID() (string, error) {
	var b strings.Builder
	b.Grow(len(roomIDPrefix) + roomIDLength)
	b.WriteString(roomIDPrefix)

	limit := big.NewInt(int64(len(roomIDAlphabet)))
	for i := 0; i < roomIDLength; i++ {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", err
		}
		b.WriteByte(roomIDAlphabet[n.Int64()])
	}
	return b.String(), nil
}
