package models

import "time"

const (
	SessionStatusUpcoming          = "upcoming"
	SessionStatusInProgress        = "in_progress"
	SessionStatusCompleted         = "completed"
	SessionStatusCancelled         = "cancelled"
	SessionStatusCancelledByDoctor = "cancelled_by_doctor"
)

// Session is a consultation call. DoctorID is the doctor profile id, not the
// doctor's user id.
type Session struct {
	ID                 int64           `json:"id"`
	PatientID          UserID          `json:"patient_id"`
	DoctorID           DoctorProfileID `json:"doctor_profile_id"`
	BookingID          *int64          `json:"booking_id,omitempty"`
	ScheduledFor       time.Time       `json:"scheduled_for"`
	DurationMinutes    int             `json:"duration_minutes"`
	Status             string          `json:"status"`
	VideoRoomID        *string         `json:"video_room_id,omitempty"`
	CallStartedAt      *time.Time      `json:"call_started_at,omitempty"`
	CallEndedAt        *time.Time      `json:"call_ended_at,omitempty"`
	CancelledBy        *int64          `json:"cancelled_by,omitempty"`
	CancelledAt        *time.Time      `json:"cancelled_at,omitempty"`
	CancellationReason *string         `json:"cancellation_reason,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

func (s *Session) IsCancelled() bool {
	return s.Status == SessionStatusCancelled || s.Status == SessionStatusCancelledByDoctor
}

// IsTerminal reports whether no further transition is allowed.
func (s *Session) IsTerminal() bool {
	return s.Status == SessionStatusCompleted || s.IsCancelled()
}

func IsKnownSessionStatus(status string) bool {
	switch status {
	case SessionStatusUpcoming, SessionStatusInProgress, SessionStatusCompleted,
		SessionStatusCancelled, SessionStatusCancelledByDoctor:
		return true
	}
	return false
}

type Participant struct {
	UserID          UserID           `json:"user_id"`
	DoctorProfileID *DoctorProfileID `json:"doctor_profile_id,omitempty"`
	DisplayName     string           `json:"display_name"`
}

type SessionDetail struct {
	Session
	Patient *Participant `json:"patient,omitempty"`
	Doctor  *Participant `json:"doctor,omitempty"`
}

// PreparedCall is what a participant needs to join the signaling room.
type PreparedCall struct {
	SessionID       int64     `json:"session_id"`
	VideoRoomID     string    `json:"video_room_id"`
	Status          string    `json:"status"`
	ScheduledFor    time.Time `json:"scheduled_for"`
	DurationMinutes int       `json:"duration_minutes"`
}
