// Package portal routes console requests to the section each role may see.
package portal

import (
	"strings"

	"schoolinfo/internal/auth"
)

// dashboards maps every role to its console base path; "" means the role has no console section.
var dashboards = map[auth.Role]string{
	auth.RoleSchoolAdmin: "/dashboardxzx",
	auth.RoleTeacher:     "/dashboard/teacher",
	auth.RoleStudent:     "/dashboard/student",
	auth.RoleSuperAdmin:  "",
	auth.RoleParent:      "",
	auth.RoleStaff:       "",
}

// DashboardFor returns the base path of the role's console section.
func DashboardFor(r auth.Role) (string, bool) {
	base := dashboards[r]
	return base, base != ""
}

// under reports whether path is prefix itself or a sub-path of it.
func under(path, prefix string) bool {
	prefix = strings.TrimSuffix(prefix, "/")
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}
