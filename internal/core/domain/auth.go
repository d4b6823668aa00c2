package domain

import "strings"

type Role string

const (
	RoleAdmin   Role = "admin"
	RoleTeacher Role = "teacher"
	RoleStudent Role = "student"
)

type Action string

const (
	ActionViewResults    Action = "results.view"
	ActionUpload         Action = "documents.upload"
	ActionDeleteDocument Action = "documents.delete"
	ActionCheckQueue     Action = "check.queue"
	ActionCheckAll       Action = "check.all"
	ActionCompare        Action = "compare.pair"
	ActionManageUsers    Action = "users.manage"
)

var rolePermissions = map[Role][]Action{
	RoleTeacher: {ActionViewResults, ActionUpload, ActionDeleteDocument, ActionCheckQueue, ActionCheckAll, ActionCompare},
	RoleStudent: {ActionViewResults, ActionUpload, ActionCheckQueue, ActionCompare},
}

// HasPermission reports whether role may perform action. Unknown roles can
// only view results.
func HasPermission(role Role, action Action) bool {
	role = Role(strings.ToLower(strings.TrimSpace(string(role))))
	if role == RoleAdmin {
		return true
	}
	allowed, ok := rolePermissions[role]
	if !ok {
		return action == ActionViewResults
	}
	for _, a := range allowed {
		if a == action {
			return true
		}
	}
	return false
}

type User struct {
	ID       string `json:"_id,omitempty"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
	FullName string `json:"full_name,omitempty"`
	Role     Role   `json:"role,omitempty"`
	MSV      string `json:"msv,omitempty"`
}

type Credentials struct {
	Username string `validate:"required"`
	Password string `validate:"required"`
}

type PasswordChange struct {
	OldPassword string `json:"old_password" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=6,nefield=OldPassword"`
}
