// Package policy is the single authorization matrix for record and actor
// operations. It is pure and total: every (role, action, ownership) input has
// an answer and nothing here touches storage or context.
package policy

import (
	"medvault/pkg/domain"
	dErrors "medvault/pkg/domain-errors"
)

// Action is one entry of the fixed action set the matrix covers.
type Action string

const (
	ActionCreate            Action = "create"
	ActionVerify            Action = "verify"
	ActionEditAndVerify     Action = "editAndVerify"
	ActionRequestCorrection Action = "requestCorrection"
	ActionApproveCorrection Action = "approveCorrection"
	ActionRejectCorrection  Action = "rejectCorrection"
	ActionViewOwn           Action = "viewOwn"
	ActionViewAll           Action = "viewAll"
	ActionManageActors      Action = "manageActors"
)

// Ownership carries the resource facts a rule may depend on. Zero values mean
// "no resource involved" (create, viewAll, manageActors).
type Ownership struct {
	SubjectID    domain.ActorID
	ClinicianID  domain.ActorID
	EnteredBy    domain.ActorID
	RecordStatus domain.RecordStatus
}

// Allowed evaluates the matrix. Callers wanting an error use Authorize.
func Allowed(caller domain.Identity, action Action, res Ownership) bool {
	// Unverified actors hold no permissions regardless of role.
	if !caller.Active() {
		return false
	}

	switch action {
	case ActionCreate:
		return caller.Role == domain.RoleDataEntry || caller.Role == domain.RoleAdministrator

	case ActionVerify, ActionEditAndVerify:
		if caller.Role == domain.RoleAdministrator {
			// Administrators override the clinician ownership check.
			return true
		}
		return caller.Role == domain.RoleClinician && res.ClinicianID == caller.ActorID

	case ActionRequestCorrection:
		return caller.Role == domain.RoleSubject &&
			res.SubjectID == caller.ActorID &&
			res.RecordStatus == domain.RecordStatusVerified

	case ActionApproveCorrection, ActionRejectCorrection:
		if caller.Role == domain.RoleAdministrator {
			return true
		}
		return caller.Role == domain.RoleClinician && res.ClinicianID == caller.ActorID

	case ActionViewOwn:
		switch caller.Role {
		case domain.RoleSubject:
			return res.SubjectID == caller.ActorID && res.RecordStatus == domain.RecordStatusVerified
		case domain.RoleClinician:
			return res.ClinicianID == caller.ActorID
		case domain.RoleDataEntry:
			return res.EnteredBy == caller.ActorID
		case domain.RoleAdministrator:
			return true
		}
		return false

	case ActionViewAll, ActionManageActors:
		return caller.Role == domain.RoleAdministrator
	}

	// Unknown action: deny. Keeps the function total without a panic path.
	return false
}

// Authorize translates a denial into the coded error callers surface. The
// message names the action and nothing else; the caller never learns which
// rule matched.
func Authorize(caller domain.Identity, action Action, res Ownership) error {
	if Allowed(caller, action, res) {
		return nil
	}
	return dErrors.New(dErrors.CodeForbidden, "not authorized for "+string(action))
}

// Scope is the viewOwn filter for list queries, expressed as which record
// column the caller's id must match. ScopeAll means no filter.
type Scope string

const (
	ScopeAll       Scope = "all"
	ScopeSubject   Scope = "subject"
	ScopeClinician Scope = "clinician"
	ScopeEnteredBy Scope = "entered_by"
	ScopeNone      Scope = "none"
)

// ListScope maps a caller to the record filter its role is entitled to.
// Subjects additionally only see verified records; stores apply that status
// filter when the scope is ScopeSubject.
func ListScope(caller domain.Identity) Scope {
	if !caller.Active() {
		return ScopeNone
	}
	switch caller.Role {
	case domain.RoleAdministrator:
		return ScopeAll
	case domain.RoleSubject:
		return ScopeSubject
	case domain.RoleClinician:
		return ScopeClinician
	case domain.RoleDataEntry:
		return ScopeEnteredBy
	}
	return ScopeNone
}
