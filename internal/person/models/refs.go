package models

import (
	"time"

	id "eap/pkg/domain"
)

// Profile is the demographic record a person exclusively owns.
type Profile struct {
	ID          id.ProfileID
	FirstName   string
	LastName    string
	DateOfBirth *time.Time
	Email       string
	Phone       string
	CreatedAt   time.Time
}

// Account is the authentication identity linked to a person. Accounts created
// by the factory start inactive until the owner completes enrollment.
type Account struct {
	ID        id.AccountID
	Email     string
	Active    bool
	CreatedAt time.Time
}

// Organization is an EAP operator or a client company.
type Organization struct {
	ID     id.OrganizationID
	Name   string
	Active bool
}

// MinorAgeThreshold is the age below which a child dependent needs a guardian.
const MinorAgeThreshold = 18

// AgeAt returns completed years between dob and t.
func AgeAt(dob, t time.Time) int {
	years := t.Year() - dob.Year()
	if t.Month() < dob.Month() || (t.Month() == dob.Month() && t.Day() < dob.Day()) {
		years--
	}
	return years
}

type SessionStatus string

const (
	SessionScheduled  SessionStatus = "scheduled"
	SessionInProgress SessionStatus = "in_progress"
	SessionCompleted  SessionStatus = "completed"
	SessionCancelled  SessionStatus = "cancelled"
)

// IsOpen reports whether a session still binds its participants.
func (s SessionStatus) IsOpen() bool {
	return s == SessionScheduled || s == SessionInProgress
}

// ServiceSession is the slice of a scheduled session the person core reads.
// Scheduling itself lives elsewhere.
type ServiceSession struct {
	ID         id.SessionID
	PersonID   id.PersonID
	ProviderID *id.PersonID
	Status     SessionStatus
	StartsAt   time.Time
	EndsAt     *time.Time
}
