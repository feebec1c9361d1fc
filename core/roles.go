package core

import "strings"

// Roles, as issued in the `roles` claim of the auth backend's tokens.
const (
	// Admin
	RoleAdmin          = "admin:"
	RoleAdminOwner     = "admin:owner"
	RoleAdminPrincipal = "admin:principal"

	// Teacher
	RoleTeacher = "teacher:"

	// Student
	RoleStudent = "student:"
)

var AllRoles = []string{RoleAdmin, RoleAdminOwner, RoleAdminPrincipal, RoleTeacher, RoleStudent}

// HasRolePrefix reports whether any of roles starts with prefix, eg. "admin:principal" has prefix "admin:".
func HasRolePrefix(roles []string, prefix string) bool {
	for _, role := range roles {
		if strings.HasPrefix(role, prefix) {
			return true
		}
	}
	return false
}

// CanAuthor reports whether roles may author quizzes and see answer keys.
func CanAuthor(roles []string) bool {
	return HasRolePrefix(roles, RoleAdmin) || HasRolePrefix(roles, RoleTeacher)
}
