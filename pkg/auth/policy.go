package auth

import (
	"github.com/google/uuid"

	"github.com/isassess/isassess/pkg/apperr"
	"github.com/isassess/isassess/pkg/model"
)

// Principal is the authenticated caller of a request.
type Principal struct {
	UserID uuid.UUID  `json:"id"`
	Email  string     `json:"email"`
	Role   model.Role `json:"role"`
}

type Action string

const (
	ActionView                 Action = "view"
	ActionCreateApplication    Action = "application:create"
	ActionUpdateApplication    Action = "application:update"
	ActionChangeAppStatus      Action = "application:change_status"
	ActionDeactivateApp        Action = "application:deactivate"
	ActionCreateDepartment     Action = "department:create"
	ActionMapDepartments       Action = "department:map"
	ActionAssignDeptUsers      Action = "department:assign_users"
	ActionChangeDeptStatus     Action = "department:change_status"
	ActionManageQuestionnaires Action = "questionnaire:manage"
	ActionUploadEvidence       Action = "evidence:upload"
	ActionManageUsers          Action = "user:manage"
	ActionEditComment          Action = "comment:edit"
)

var roleLevel = map[model.Role]int{
	model.RoleUser:      0,
	model.RoleModerator: 1,
	model.RoleManager:   1,
	model.RoleAdmin:     2,
}

var requiredLevel = map[Action]int{
	ActionView:                 0,
	ActionCreateApplication:    1,
	ActionUpdateApplication:    1,
	ActionChangeAppStatus:      2,
	ActionDeactivateApp:        2,
	ActionCreateDepartment:     1,
	ActionMapDepartments:       2,
	ActionAssignDeptUsers:      2,
	ActionChangeDeptStatus:     1,
	ActionManageQuestionnaires: 1,
	ActionUploadEvidence:       1,
	ActionManageUsers:          2,
}

// Resource carries the ownership facts some actions depend on.
type Resource struct {
	AuthorID uuid.UUID
}

// Authorize is the single permission check of the service. Comment edits are
// reserved to the comment's author regardless of role.
func Authorize(p Principal, action Action, res *Resource) error {
	level, ok := roleLevel[p.Role]
	if !ok {
		return apperr.Forbidden("unknown role %q", p.Role)
	}

	if action == ActionEditComment {
		if res == nil || res.AuthorID != p.UserID {
			return apperr.Forbidden("only the author can edit this comment")
		}
		return nil
	}

	required, ok := requiredLevel[action]
	if !ok {
		return apperr.Forbidden("unknown action %q", action)
	}
	if level < required {
		return apperr.Forbidden("role %s may not perform %s", p.Role, action)
	}
	return nil
}
