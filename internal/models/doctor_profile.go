package models

import "time"

type DoctorProfile struct {
	ID             DoctorProfileID `json:"id"`
	UserID         UserID          `json:"user_id"`
	FullName       *string         `json:"full_name"`
	Specialization *string         `json:"specialization"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}
