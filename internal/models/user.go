package models

import (
	"strings"

	"scalerrs-portal-api/internal/records"
)

// Role is the caller's portal role.
type Role string

const (
	RoleAdmin  Role = "Admin"
	RoleTeam   Role = "Team Member"
	RoleClient Role = "Client"
)

// ParseRole maps header and table spellings onto a Role. Unknown values are treated as clients.
func ParseRole(raw string) Role {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "admin":
		return RoleAdmin
	case "team member", "team", "staff":
		return RoleTeam
	default:
		return RoleClient
	}
}

// IsStaff reports whether the role may see every client.
func (r Role) IsStaff() bool {
	return r == RoleAdmin || r == RoleTeam
}

// User represents a portal login from the Users table
type User struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Email     string   `json:"email"`
	Role      Role     `json:"role"`
	ClientIDs []string `json:"clientIds"`
	Password  string   `json:"-"`
}

// UserFromRecord normalizes a Users row.
func UserFromRecord(r records.Record) User {
	return User{
		ID:        r.ID,
		Name:      r.String("Name"),
		Email:     strings.ToLower(r.String("Email")),
		Role:      ParseRole(r.String("Role")),
		ClientIDs: r.Strings("Client Record ID"),
		Password:  r.String("Password"),
	}
}
