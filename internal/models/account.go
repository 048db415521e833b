// internal/models/account.go
package models

import (
	"database/sql"
	"strings"
)

// Account is the canonical login identity record. Role profiles (students,
// teachers, staff) link to it by best-effort email matching only; there is no
// foreign key, which the recipient resolver has to work around.
type Account struct {
	ID       int64          `json:"id"`
	Role     string         `json:"role"`
	Email    string         `json:"email"`
	FCMToken sql.NullString `json:"fcmToken"`
	SchoolID int64          `json:"schoolId"`
}

// Roles
const (
	RoleStudent          = "Student"
	RoleTeacher          = "Teacher"
	RoleStaff            = "Staff"
	RoleDriver           = "Driver"
	RoleAccountant       = "Accountant"
	RoleLibrarian        = "Librarian"
	RoleTransportManager = "TransportManager"
	RoleAdmin            = "Admin"
)

// Broad role-hint sentinels: any account role is acceptable.
const (
	HintDirect = "DIRECT"
	HintAll    = "All"
	HintClass  = "Class"
)

// staffVariants are the roles a "Staff" hint accepts in addition to Staff
// itself.
var staffVariants = []string{
	RoleStaff,
	RoleDriver,
	RoleAccountant,
	RoleLibrarian,
	RoleTransportManager,
}

// IsBroadHint reports whether hint is one of the accept-any-role sentinels.
func IsBroadHint(hint string) bool {
	switch hint {
	case HintDirect, HintAll, HintClass:
		return true
	}
	return false
}

// IsStaffVariant reports whether role is one of the staff-family roles.
func IsStaffVariant(role string) bool {
	for _, v := range staffVariants {
		if strings.EqualFold(role, v) {
			return true
		}
	}
	return false
}

// RoleAccepts reports whether an account with accountRole satisfies the given
// role hint, per the direct-probe acceptance rule.
func RoleAccepts(hint, accountRole string) bool {
	if IsBroadHint(hint) {
		return true
	}
	if strings.EqualFold(hint, accountRole) {
		return true
	}
	if strings.EqualFold(hint, RoleStaff) && IsStaffVariant(accountRole) {
		return true
	}
	return false
}
