package auth

// Role is the account role carried in the session token.
type Role string

const (
	RoleSuperAdmin  Role = "SUPERADMIN"
	RoleSchoolAdmin Role = "SCHOOL_ADMIN"
	RoleTeacher     Role = "TEACHER"
	RoleStudent     Role = "STUDENT"
	RoleParent      Role = "PARENT"
	RoleStaff       Role = "STAFF"
)

// Roles lists every known role.
var Roles = []Role{RoleSuperAdmin, RoleSchoolAdmin, RoleTeacher, RoleStudent, RoleParent, RoleStaff}

// ParseRole returns the role named by s; unknown names are rejected.
func ParseRole(s string) (Role, bool) {
	for _, r := range Roles {
		if string(r) == s {
			return r, true
		}
	}
	return "", false
}

// Admin reports whether the role may manage school data.
func (r Role) Admin() bool {
	return r == RoleSuperAdmin || r == RoleSchoolAdmin
}

// AdminRoles are the roles allowed to write school resources.
var AdminRoles = []Role{RoleSuperAdmin, RoleSchoolAdmin}
