// Package policy centralises permission decisions for the grading pipeline.
// Handlers gate routes by role, but every service-level decision that depends
// on the target entity funnels through Evaluate so the rules live in one place.
package policy

import "github.com/kkian481718/CEGAS/internal/models"

// Actions subject to policy evaluation.
const (
	ActionGrade      = "grade"
	ActionAssign     = "assign"
	ActionDistribute = "distribute"
	ActionReopen     = "reopen"
	ActionManageUser = "manage_user"
)

// Actor is the authenticated principal performing an action.
type Actor struct {
	ID   uint
	Role string
}

// IsAdmin reports whether the actor holds the admin role.
func (a Actor) IsAdmin() bool {
	return a.Role == models.RoleAdmin
}

// Target carries the entity attributes a decision may depend on.
type Target struct {
	SubmissionAssignee *uint
}

// Evaluate returns true when the actor may perform the action on the target.
//
// Admins may do everything. Graders may grade only submissions currently
// assigned to them; assignment management, distribution, reopen, and user
// management are admin-only.
func Evaluate(actor Actor, action string, target Target) bool {
	if actor.IsAdmin() {
		return true
	}

	switch action {
	case ActionGrade:
		return target.SubmissionAssignee != nil && *target.SubmissionAssignee == actor.ID
	default:
		return false
	}
}
