package models

import "strings"

type Role string

const (
	RoleUser       Role = "USER"
	RoleAdmin      Role = "ADMIN"
	RoleSubAdmin   Role = "SUB_ADMIN"
	RoleSuperAdmin Role = "SUPER_ADMIN"
)

// ParseRole accepts the canonical upper-case names only.
func ParseRole(s string) (Role, bool) {
	switch r := Role(strings.TrimSpace(s)); r {
	case RoleUser, RoleAdmin, RoleSubAdmin, RoleSuperAdmin:
		return r, true
	}
	return "", false
}

func (r Role) IsStaff() bool {
	return r == RoleAdmin || r == RoleSubAdmin
}

// Namespace groups roles whose emails must be unique together.
// Admins and sub-admins share one namespace.
func (r Role) Namespace() AccountKind {
	switch r {
	case RoleAdmin, RoleSubAdmin:
		return KindStaff
	case RoleSuperAdmin:
		return KindSuperAdmin
	default:
		return KindUser
	}
}

type AccountKind string

const (
	KindUser       AccountKind = "user"
	KindStaff      AccountKind = "staff"
	KindSuperAdmin AccountKind = "superadmin"
)

type Category string

const (
	CategoryTech    Category = "TECH"
	CategoryNonTech Category = "NON_TECH"
	CategoryAll     Category = "ALL"
)

func ParseCategory(s string) (Category, bool) {
	switch c := Category(strings.TrimSpace(s)); c {
	case CategoryTech, CategoryNonTech, CategoryAll:
		return c, true
	}
	return "", false
}

// EventCategory reports whether c can be stamped on an event. ALL only scopes staff.
func (c Category) EventCategory() bool {
	return c == CategoryTech || c == CategoryNonTech
}
