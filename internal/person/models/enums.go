package models

// Status is the person lifecycle state.
// Transitions: active -> inactive|suspended, inactive|suspended -> active,
// suspended -> inactive.
type Status string

const (
	StatusActive    Status = "active"
	StatusInactive  Status = "inactive"
	StatusSuspended Status = "suspended"
)

func (s Status) IsValid() bool {
	return s == StatusActive || s == StatusInactive || s == StatusSuspended
}

// CanTransitionTo reports whether a move from s to next is a real transition.
func (s Status) CanTransitionTo(next Status) bool {
	if !next.IsValid() || s == next {
		return false
	}
	switch s {
	case StatusActive:
		return next == StatusInactive || next == StatusSuspended
	case StatusInactive:
		return next == StatusActive
	case StatusSuspended:
		return next == StatusActive || next == StatusInactive
	}
	return false
}

type EmploymentStatus string

const (
	EmploymentActive     EmploymentStatus = "active"
	EmploymentInactive   EmploymentStatus = "inactive"
	EmploymentOnLeave    EmploymentStatus = "on_leave"
	EmploymentTerminated EmploymentStatus = "terminated"
)

func (s EmploymentStatus) IsValid() bool {
	switch s {
	case EmploymentActive, EmploymentInactive, EmploymentOnLeave, EmploymentTerminated:
		return true
	}
	return false
}

// StaffPosition is the job a platform staff member holds at the EAP operator.
type StaffPosition string

const (
	StaffPositionAdministrator  StaffPosition = "administrator"
	StaffPositionCaseManager    StaffPosition = "case_manager"
	StaffPositionAccountManager StaffPosition = "account_manager"
	StaffPositionCoordinator    StaffPosition = "coordinator"
	StaffPositionSupport        StaffPosition = "support"
)

func (p StaffPosition) IsValid() bool {
	switch p {
	case StaffPositionAdministrator, StaffPositionCaseManager, StaffPositionAccountManager,
		StaffPositionCoordinator, StaffPositionSupport:
		return true
	}
	return false
}

type Relationship string

const (
	RelationshipSpouse          Relationship = "spouse"
	RelationshipChild           Relationship = "child"
	RelationshipDomesticPartner Relationship = "domestic_partner"
	RelationshipParent          Relationship = "parent"
	RelationshipOther           Relationship = "other"
)

func (r Relationship) IsValid() bool {
	switch r {
	case RelationshipSpouse, RelationshipChild, RelationshipDomesticPartner, RelationshipParent, RelationshipOther:
		return true
	}
	return false
}

type ProviderCategory string

const (
	ProviderCounselor    ProviderCategory = "counselor"
	ProviderPsychologist ProviderCategory = "psychologist"
	ProviderPsychiatrist ProviderCategory = "psychiatrist"
	ProviderSocialWorker ProviderCategory = "social_worker"
	ProviderCoach        ProviderCategory = "coach"
	ProviderOther        ProviderCategory = "other"
)

func (c ProviderCategory) IsValid() bool {
	switch c {
	case ProviderCounselor, ProviderPsychologist, ProviderPsychiatrist, ProviderSocialWorker,
		ProviderCoach, ProviderOther:
		return true
	}
	return false
}
