package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/saeid-a/ConsultBack/internal/metrics"
	"github.com/saeid-a/ConsultBack/internal/models"
	"github.com/saeid-a/ConsultBack/internal/repository"
)

const (
	testPatientID   models.UserID          = 1
	testOtherUserID models.UserID          = 2
	testDoctorID    models.UserID          = 10
	testProfileID   models.DoctorProfileID = 100
)

type memUsers struct {
	users map[models.UserID]*models.User
}

func (m *memUsers) GetByID(_ context.Context, id models.UserID) (*models.User, error) {
	user, ok := m.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *user
	return &copied, nil
}

type memProfiles struct {
	mu       sync.Mutex
	byID     map[models.DoctorProfileID]*models.DoctorProfile
	nextID   models.DoctorProfileID
	ensured  int
	ensureFn func(models.UserID) error
}

func (m *memProfiles) GetByUserID(_ context.Context, userID models.UserID) (*models.DoctorProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, profile := range m.byID {
		if profile.UserID == userID {
			copied := *profile
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (m *memProfiles) GetByID(_ context.Context, id models.DoctorProfileID) (*models.DoctorProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	profile, ok := m.byID[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *profile
	return &copied, nil
}

func (m *memProfiles) EnsureForUser(ctx context.Context, userID models.UserID) (*models.DoctorProfile, error) {
	m.mu.Lock()
	m.ensured++
	if m.ensureFn != nil {
		if err := m.ensureFn(userID); err != nil {
			m.mu.Unlock()
			return nil, err
		}
	}
	exists := false
	for _, profile := range m.byID {
		if profile.UserID == userID {
			exists = true
		}
	}
	if !exists {
		m.nextID++
		m.byID[m.nextID] = &models.DoctorProfile{ID: m.nextID, UserID: userID}
	}
	m.mu.Unlock()
	return m.GetByUserID(ctx, userID)
}

type memSessions struct {
	mu        sync.Mutex
	rows      map[int64]*models.Session
	nextID    int64
	insertErr []error
	// beforeInsert may rewrite the stored row for a booking before the
	// insert-if-absent lookup, to simulate inconsistent data.
	beforeInsert func(m *memSessions, input repository.CreateSessionInput)
	deleted      []int64
	inserts      int
}

func newMemSessions() *memSessions {
	return &memSessions{rows: make(map[int64]*models.Session)}
}

func (m *memSessions) put(session models.Session) *models.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	if session.ID == 0 {
		session.ID = m.nextID
	}
	if session.Status == "" {
		session.Status = models.SessionStatusUpcoming
	}
	m.rows[session.ID] = &session
	copied := session
	return &copied
}

func (m *memSessions) Create(_ context.Context, input repository.CreateSessionInput) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertLocked(input), nil
}

func (m *memSessions) insertLocked(input repository.CreateSessionInput) *models.Session {
	m.nextID++
	now := time.Now().UTC()
	session := &models.Session{
		ID:              m.nextID,
		PatientID:       input.PatientID,
		DoctorID:        input.DoctorID,
		BookingID:       input.BookingID,
		ScheduledFor:    input.ScheduledFor,
		DurationMinutes: input.DurationMinutes,
		Status:          models.SessionStatusUpcoming,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	m.rows[session.ID] = session
	copied := *session
	return &copied
}

func (m *memSessions) GetByID(_ context.Context, id int64) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.rows[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *session
	return &copied, nil
}

func (m *memSessions) List(_ context.Context, filter repository.SessionListFilter) ([]models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Session, 0)
	for _, session := range m.rows {
		if filter.PatientID != nil && session.PatientID != *filter.PatientID {
			continue
		}
		if filter.DoctorID != nil && session.DoctorID != *filter.DoctorID {
			continue
		}
		if filter.Status != "" && session.Status != filter.Status {
			continue
		}
		out = append(out, *session)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memSessions) VideoRoomIDExists(_ context.Context, roomID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, session := range m.rows {
		if session.VideoRoomID != nil && *session.VideoRoomID == roomID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memSessions) AssignVideoRoom(_ context.Context, id int64, roomID string) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.rows[id]
	if !ok || session.VideoRoomID != nil {
		return nil, pgx.ErrNoRows
	}
	for _, other := range m.rows {
		if other.VideoRoomID != nil && *other.VideoRoomID == roomID {
			return nil, repository.ErrUniqueViolation
		}
	}
	session.VideoRoomID = &roomID
	copied := *session
	return &copied, nil
}

func (m *memSessions) transition(id int64, allowed []string, apply func(*models.Session)) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.rows[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	for _, status := range allowed {
		if session.Status == status {
			apply(session)
			copied := *session
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (m *memSessions) MarkInProgress(_ context.Context, id int64) (*models.Session, error) {
	return m.transition(id, []string{models.SessionStatusUpcoming}, func(s *models.Session) {
		now := time.Now().UTC()
		s.Status = models.SessionStatusInProgress
		s.CallStartedAt = &now
	})
}

func (m *memSessions) Complete(_ context.Context, id int64) (*models.Session, error) {
	allowed := []string{models.SessionStatusUpcoming, models.SessionStatusInProgress}
	return m.transition(id, allowed, func(s *models.Session) {
		now := time.Now().UTC()
		s.Status = models.SessionStatusCompleted
		s.CallEndedAt = &now
	})
}

func (m *memSessions) Cancel(_ context.Context, id int64, cancelledBy int64, reason *string) (*models.Session, error) {
	allowed := []string{models.SessionStatusUpcoming, models.SessionStatusInProgress}
	return m.transition(id, allowed, func(s *models.Session) {
		now := time.Now().UTC()
		s.Status = models.SessionStatusCancelled
		s.CancelledBy = &cancelledBy
		s.CancelledAt = &now
		s.CancellationReason = reason
	})
}

func (m *memSessions) InsertForBookingIfAbsent(
	_ context.Context,
	input repository.CreateSessionInput,
) (*models.Session, bool, error) {
	if m.beforeInsert != nil {
		m.beforeInsert(m, input)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.inserts++
	if len(m.insertErr) > 0 {
		err := m.insertErr[0]
		m.insertErr = m.insertErr[1:]
		if err != nil {
			return nil, false, err
		}
	}

	for _, session := range m.rows {
		if session.BookingID != nil && *session.BookingID == *input.BookingID {
			copied := *session
			return &copied, false, nil
		}
	}
	return m.insertLocked(input), true, nil
}

func (m *memSessions) DeleteByID(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rows, id)
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *memSessions) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

func strPtr(v string) *string { return &v }

func newTestDirectory() (*DoctorDirectory, *memUsers, *memProfiles) {
	users := &memUsers{users: map[models.UserID]*models.User{
		testPatientID:   {ID: testPatientID, Email: "pat@example.com", FullName: strPtr("Pat Doe"), Role: models.RolePatient},
		testOtherUserID: {ID: testOtherUserID, Email: "other@example.com", Role: models.RolePatient},
		testDoctorID:    {ID: testDoctorID, Email: "doc@example.com", Role: models.RoleDoctor},
	}}
	profiles := &memProfiles{
		byID: map[models.DoctorProfileID]*models.DoctorProfile{
			testProfileID: {ID: testProfileID, UserID: testDoctorID, FullName: strPtr("Dr. Rivera")},
		},
		nextID: testProfileID,
	}
	return NewDoctorDirectory(users, profiles), users, profiles
}

func newTestSessionService(store *memSessions) *SessionService {
	directory, _, _ := newTestDirectory()
	return NewSessionService(store, directory, metrics.Noop{}, zerolog.Nop())
}

// testCrossedDoctorID is a second doctor whose user id equals testProfileID.
const (
	testCrossedDoctorID  models.UserID          = models.UserID(testProfileID)
	testCrossedProfileID models.DoctorProfileID = 101
)

func addCrossedDoctor(users *memUsers, profiles *memProfiles) {
	users.users[testCrossedDoctorID] = &models.User{ID: testCrossedDoctorID, Email: "second@example.com", Role: models.RoleDoctor}
	profiles.mu.Lock()
	defer profiles.mu.Unlock()
	profiles.byID[testCrossedProfileID] = &models.DoctorProfile{ID: testCrossedProfileID, UserID: testCrossedDoctorID}
	profiles.nextID = testCrossedProfileID
}
