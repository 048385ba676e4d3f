package models

import "strings"

// Role represents a user's role within a tenant.
type Role string

const (
	RoleOwner   Role = "owner"
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleMember  Role = "member"
	RoleAuditor Role = "auditor"
)

// ParseRole parses a role name (case-insensitive). Returns false if unknown.
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	switch r {
	case RoleOwner, RoleAdmin, RoleManager, RoleMember, RoleAuditor:
		return r, true
	}
	return "", false
}

// UserRecord is one user row in tenants.yaml.
type UserRecord struct {
	Phone      string `yaml:"phone"`
	Role       Role   `yaml:"role"`
	Department string `yaml:"department"`
}

// TenantRecord is one tenant block in tenants.yaml. Tenants own departments,
// departments own users; a phone maps to exactly one tenant.
type TenantRecord struct {
	ID    string       `yaml:"id"`
	Name  string       `yaml:"name,omitempty"`
	Users []UserRecord `yaml:"users"`
}

// TenantsFile is the root of data/tenants/tenants.yaml.
type TenantsFile struct {
	Tenants []TenantRecord `yaml:"tenants"`
}

// Membership is the resolved (tenant, role, department) tuple for a phone,
// produced by the tenancy directory's reverse index.
type Membership struct {
	TenantID   string
	Role       Role
	Department string
}
