package models

import "strconv"

// UserID identifies an account in the users table. Patients and doctors both
// authenticate as users.
type UserID int64

// DoctorProfileID identifies a row in doctor_profiles. Sessions reference the
// doctor through this id; bookings and schedules use the owning UserID.
type DoctorProfileID int64

func (id UserID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

func (id DoctorProfileID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

const (
	RolePatient = "patient"
	RoleDoctor  = "doctor"
)
