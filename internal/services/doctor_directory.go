package services

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/saeid-a/ConsultBack/internal/models"
)

type userReader interface {
	GetByID(ctx context.Context, id models.UserID) (*models.User, error)
}

type doctorProfileStore interface {
	GetByUserID(ctx context.Context, userID models.UserID) (*models.DoctorProfile, error)
	GetByID(ctx context.Context, id models.DoctorProfileID) (*models.DoctorProfile, error)
	EnsureForUser(ctx context.Context, userID models.UserID) (*models.DoctorProfile, error)
}

// DoctorDirectory is the only place a doctor's user id is turned into a
// doctor profile id and back.
type DoctorDirectory struct {
	users    userReader
	profiles doctorProfileStore
}

func NewDoctorDirectory(users userReader, profiles doctorProfileStore) *DoctorDirectory {
	return &DoctorDirectory{users: users, profiles: profiles}
}

// ResolveProfile returns the profile owned by the doctor account, creating
// it on first use.
func (d *DoctorDirectory) ResolveProfile(ctx context.Context, doctorUserID models.UserID) (*models.DoctorProfile, error) {
	if doctorUserID <= 0 {
		return nil, ErrInvalidInput
	}

	user, err := d.users.GetByID(ctx, doctorUserID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDoctorNotFound
		}
		return nil, err
	}
	if user.Role != models.RoleDoctor {
		return nil, ErrDoctorNotFound
	}

	profile, err := d.profiles.GetByUserID(ctx, doctorUserID)
	if err == nil {
		return profile, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	profile, err = d.profiles.EnsureForUser(ctx, doctorUserID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDoctorNotFound
		}
		return nil, err
	}
	return profile, nil
}

// LookupProfile is ResolveProfile without lazy creation.
func (d *DoctorDirectory) LookupProfile(ctx context.Context, doctorUserID models.UserID) (*models.DoctorProfile, error) {
	profile, err := d.profiles.GetByUserID(ctx, doctorUserID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDoctorNotFound
		}
		return nil, err
	}
	return profile, nil
}

func (d *DoctorDirectory) ProfileByID(ctx context.Context, id models.DoctorProfileID) (*models.DoctorProfile, error) {
	profile, err := d.profiles.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDoctorNotFound
		}
		return nil, err
	}
	return profile, nil
}

func (d *DoctorDirectory) OwnerOf(ctx context.Context, id models.DoctorProfileID) (models.UserID, error) {
	profile, err := d.ProfileByID(ctx, id)
	if err != nil {
		return 0, err
	}
	return profile.UserID, nil
}

// Participants builds the display identities for both sides of a session.
// Missing accounts yield a participant with an empty name rather than an error.
func (d *DoctorDirectory) Participants(
	ctx context.Context,
	session *models.Session,
) (*models.Participant, *models.Participant, error) {
	patient := &models.Participant{UserID: session.PatientID}
	user, err := d.users.GetByID(ctx, session.PatientID)
	switch {
	case err == nil:
		patient.DisplayName = user.DisplayName()
	case !errors.Is(err, pgx.ErrNoRows):
		return nil, nil, err
	}

	profileID := session.DoctorID
	doctor := &models.Participant{DoctorProfileID: &profileID}
	profile, err := d.profiles.GetByID(ctx, session.DoctorID)
	switch {
	case err == nil:
		doctor.UserID = profile.UserID
		if profile.FullName != nil && *profile.FullName != "" {
			doctor.DisplayName = *profile.FullName
		} else if owner, err := d.users.GetByID(ctx, profile.UserID); err == nil {
			doctor.DisplayName = owner.DisplayName()
		}
	case !errors.Is(err, pgx.ErrNoRows):
		return nil, nil, err
	}

	return patient, doctor, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows) || errors.Is(err, ErrNotFound)
}
