package models

import (
	"strings"
	"time"
)

// Role is the authorization role carried by a user and its tokens.
type Role string

const (
	RoleAluno     Role = "aluno"
	RoleProfessor Role = "professor"
)

// NormalizeRole lowercases and trims a raw role value. It is applied once, at
// registration and token issuance; everything downstream compares normalized roles.
func NormalizeRole(raw string) Role {
	return Role(strings.ToLower(strings.TrimSpace(raw)))
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleAluno || r == RoleProfessor
}

// User is a registered account.
type User struct {
	ID           string    `bson:"-" json:"id"`
	Name         string    `bson:"name" json:"name"`
	Email        string    `bson:"email" json:"email"`
	PasswordHash string    `bson:"passwordHash" json:"-"`
	Role         Role      `bson:"role" json:"role"`
	CreatedAt    time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time `bson:"updatedAt" json:"updatedAt"`
}

// Principal is the authenticated caller, resolved from a bearer token.
type Principal struct {
	UserID string
	Name   string
	Email  string
	Role   Role
}

// IsProfessor reports whether the principal holds the professor role.
func (p Principal) IsProfessor() bool {
	return p.Role == RoleProfessor
}
