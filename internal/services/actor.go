package services

import (
	"context"

	"github.com/saeid-a/ConsultBack/internal/models"
)

// Actor is the authenticated caller. Doctors may present either their user id
// or their doctor profile id in ID, depending on which app issued the token.
type Actor struct {
	ID   int64
	Role string
}

type profileOwnerResolver interface {
	OwnerOf(ctx context.Context, profileID models.DoctorProfileID) (models.UserID, error)
	LookupProfile(ctx context.Context, doctorUserID models.UserID) (*models.DoctorProfile, error)
}

// sessionParty returns the role the actor plays in session, or ErrForbidden.
// An actor without a role may match either side.
func sessionParty(
	ctx context.Context,
	owners profileOwnerResolver,
	session *models.Session,
	actor Actor,
) (string, error) {
	if actor.ID <= 0 {
		return "", ErrForbidden
	}

	if actor.Role != models.RoleDoctor && int64(session.PatientID) == actor.ID {
		return models.RolePatient, nil
	}
	if actor.Role == models.RolePatient {
		return "", ErrForbidden
	}

	owner, err := owners.OwnerOf(ctx, session.DoctorID)
	if err != nil {
		if isNotFound(err) {
			return "", ErrForbidden
		}
		return "", err
	}
	if int64(owner) == actor.ID {
		return models.RoleDoctor, nil
	}
	if int64(session.DoctorID) != actor.ID {
		return "", ErrForbidden
	}

	ok, err := presentsProfileID(ctx, owners, actor.ID, session.DoctorID)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrForbidden
	}
	return models.RoleDoctor, nil
}

type profileLookup interface {
	LookupProfile(ctx context.Context, doctorUserID models.UserID) (*models.DoctorProfile, error)
}

// presentsProfileID reports whether id, which equals profileID, can be read
// as that profile id. User and profile ids share a numeric range, so an id
// that is the user id of another doctor's profile belongs to that doctor.
func presentsProfileID(
	ctx context.Context,
	profiles profileLookup,
	id int64,
	profileID models.DoctorProfileID,
) (bool, error) {
	owned, err := profiles.LookupProfile(ctx, models.UserID(id))
	if err != nil {
		if isNotFound(err) {
			return true, nil
		}
		return false, err
	}
	return owned.ID == profileID, nil
}
