// Package domain defines the plan catalog: which resources each role is
// billed for, and the package-to-limit mapping.
package domain

import "errors"

var (
	ErrPackageNotFound = errors.New("package_not_found")
	ErrUnknownRole     = errors.New("unknown_role")
)

// Role is the position of an account in the tenant hierarchy.
type Role string

const (
	RoleParent        Role = "parent"
	RoleChild         Role = "child"
	RoleDistrictAdmin Role = "district_admin"
	RoleSchoolAdmin   Role = "school_admin"
	RoleTeacher       Role = "teacher"
	RoleCounselor     Role = "counselor"
	RoleSocialWorker  Role = "social_worker"
	RoleStudent       Role = "student"
	RoleEmployerAdmin Role = "employer_admin"
	RoleSupervisor    Role = "supervisor"
	RoleHR            Role = "hr"
	RoleEmployee      Role = "employee"
)

// IsSchoolStaff reports whether the role counts toward a school's staff pool.
func (r Role) IsSchoolStaff() bool {
	switch r {
	case RoleTeacher, RoleCounselor, RoleSocialWorker:
		return true
	default:
		return false
	}
}

// IsEmployerStaff reports whether the role counts toward an employer's staff pool.
func (r Role) IsEmployerStaff() bool {
	switch r {
	case RoleSupervisor, RoleHR:
		return true
	default:
		return false
	}
}

// IsPayer reports whether accounts of this role can own a subscription.
func (r Role) IsPayer() bool {
	switch r {
	case RoleParent, RoleDistrictAdmin, RoleSchoolAdmin, RoleEmployerAdmin:
		return true
	default:
		return false
	}
}

// Limit keys used in package limit sets. Flat keys carry one counter per
// billing owner; per-sub-key limits apply to each sub-key independently.
const (
	LimitChildren          = "children"
	LimitSchools           = "schools"
	LimitStaff             = "staff"
	LimitStudentsPerStaff  = "students_per_staff"
	LimitStaffPerSchool    = "staff_per_school"
	LimitEmployeesPerStaff = "employees_per_staff"
)

// LimitSet maps a limit key to its maximum value.
type LimitSet map[string]int64

// Get returns the limit for key and whether it is configured.
func (ls LimitSet) Get(key string) (int64, bool) {
	if ls == nil {
		return 0, false
	}
	v, ok := ls[key]
	return v, ok
}

// Package is an immutable catalog entry.
type Package struct {
	Role        Role     `json:"role" mapstructure:"role"`
	ID          string   `json:"id" mapstructure:"id"`
	DisplayName string   `json:"display_name" mapstructure:"display_name"`
	PriceCents  int64    `json:"price_cents" mapstructure:"price_cents"`
	Limits      LimitSet `json:"limits" mapstructure:"limits"`
}

// limitKeysByRole lists the limit keys a role's packages may carry.
var limitKeysByRole = map[Role][]string{
	RoleParent:        {LimitChildren},
	RoleSchoolAdmin:   {LimitStaff, LimitStudentsPerStaff},
	RoleDistrictAdmin: {LimitSchools, LimitStaffPerSchool, LimitStudentsPerStaff},
	RoleEmployerAdmin: {LimitStaff, LimitEmployeesPerStaff},
}

// LimitKeysForRole returns the limit keys valid for a payer role.
func LimitKeysForRole(role Role) ([]string, error) {
	keys, ok := limitKeysByRole[role]
	if !ok {
		return nil, ErrUnknownRole
	}
	out := make([]string, len(keys))
	copy(out, keys)
	return out, nil
}

// ScopedLimitKey reports whether the limit key applies per sub-key rather
// than as one counter per tenant.
func ScopedLimitKey(key string) bool {
	switch key {
	case LimitStudentsPerStaff, LimitStaffPerSchool, LimitEmployeesPerStaff:
		return true
	default:
		return false
	}
}
