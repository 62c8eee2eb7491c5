package identity

import (
	"slices"
	"strings"
	"time"
)

// Role is the marketplace role carried in access tokens.
type Role string

const (
	RoleClient  Role = "client"
	RoleLawyer  Role = "lawyer"
	RoleStudent Role = "student"
	RoleAdvisor Role = "advisor"
)

// Roles lists every valid role in display order.
var Roles = []Role{RoleClient, RoleLawyer, RoleStudent, RoleAdvisor}

// ParseRole returns the Role for s (case-insensitive) and whether it is valid.
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	return r, r.Valid()
}

// Valid reports whether r is one of Roles.
func (r Role) Valid() bool {
	return slices.Contains(Roles, r)
}

// Specializations are the practice areas a lawyer may declare.
var Specializations = []string{
	"Criminal Lawyer",
	"Civil Lawyer",
	"Family Court",
	"Corporate/Business Lawyer",
	"Constitutional Lawyer",
	"Environmental Lawyer",
	"Labour and Employment Lawyer",
	"Property/Real Estate Lawyer",
	"Tax Lawyer",
	"Medical/Healthcare Lawyer",
	"Cyber Lawyer",
	"Education Lawyer",
	"Human Rights Lawyer",
	"Administrative Lawyer",
	"International Lawyer",
	"Intellectual Property (IP) Lawyer",
	"Other",
}

// ValidSpecialization reports whether s is a known specialization.
func ValidSpecialization(s string) bool {
	return slices.Contains(Specializations, s)
}

// Profile is free-form public profile data.
type Profile struct {
	Bio      string
	Location string
}

// User is the public user record. It never carries credentials.
type User struct {
	ID             string
	Name           string
	Email          string
	Role           Role
	Specialization *string
	Profile        Profile
	Phone          *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// UserAuth pairs a user with its stored password hash for login checks.
type UserAuth struct {
	User         User
	PasswordHash string
}
