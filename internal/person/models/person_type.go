package models

// PersonType is the role discriminator. A record's primary type comes from its
// primary role; a dual-role record also reports a secondary type.
type PersonType string

const (
	PersonTypePlatformStaff   PersonType = "platform_staff"
	PersonTypeClientEmployee  PersonType = "client_employee"
	PersonTypeDependent       PersonType = "dependent"
	PersonTypeServiceProvider PersonType = "service_provider"
)

func (t PersonType) IsValid() bool {
	switch t {
	case PersonTypePlatformStaff, PersonTypeClientEmployee, PersonTypeDependent, PersonTypeServiceProvider:
		return true
	}
	return false
}

func (t PersonType) String() string { return string(t) }

// allowedPairs is the single source of truth for dual-role composition.
// The relation is symmetric; Dependent never pairs with anything.
var allowedPairs = map[PersonType]map[PersonType]bool{
	PersonTypePlatformStaff: {
		PersonTypeClientEmployee:  true,
		PersonTypeServiceProvider: true,
	},
	PersonTypeClientEmployee: {
		PersonTypePlatformStaff:   true,
		PersonTypeServiceProvider: true,
	},
	PersonTypeServiceProvider: {
		PersonTypePlatformStaff:  true,
		PersonTypeClientEmployee: true,
	},
}

// IsAllowedPair reports whether primary may carry secondary as a second role.
func IsAllowedPair(primary, secondary PersonType) bool {
	return allowedPairs[primary][secondary]
}
