package domain

import dErrors "medvault/pkg/domain-errors"

// Role identifies which of the four parties an actor acts as. The role comes
// from the authenticated call context supplied by the identity service; the
// core never re-derives it from client input.
type Role string

const (
	RoleDataEntry     Role = "data_entry"
	RoleClinician     Role = "clinician"
	RoleSubject       Role = "subject"
	RoleAdministrator Role = "administrator"
)

var validRoles = map[Role]bool{
	RoleDataEntry:     true,
	RoleClinician:     true,
	RoleSubject:       true,
	RoleAdministrator: true,
}

// ParseRole constructs a Role from external input.
//
// Errors: returns CodeInvalidInput when the value is empty or unsupported.
func ParseRole(s string) (Role, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "role cannot be empty")
	}
	r := Role(s)
	if !r.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid role")
	}
	return r, nil
}

func (r Role) IsValid() bool { return validRoles[r] }

func (r Role) String() string { return string(r) }
