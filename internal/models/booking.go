package models

import "time"

const (
	BookingStatusPending   = "pending"
	BookingStatusPaid      = "paid"
	BookingStatusCancelled = "cancelled"
	BookingStatusFailed    = "failed"
	BookingStatusRefunded  = "refunded"
)

// Booking is written by checkout and moved through payment states by the
// payment collaborator. DoctorID is the doctor's user id.
type Booking struct {
	ID           int64     `json:"id"`
	PatientID    UserID    `json:"patient_id"`
	DoctorID     UserID    `json:"doctor_id"`
	Date         string    `json:"date"`
	Time         string    `json:"time"`
	DurationMins int       `json:"duration_mins"`
	Mode         string    `json:"mode"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// IsActive reports whether the booking still holds its slot.
func (b *Booking) IsActive() bool {
	return IsActiveBookingStatus(b.Status)
}

func (b *Booking) ScheduledFor() (time.Time, error) {
	return SlotStart(b.Date, b.Time)
}

func IsActiveBookingStatus(status string) bool {
	return status == BookingStatusPending || status == BookingStatusPaid
}
