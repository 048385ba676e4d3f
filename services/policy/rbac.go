// Package policy implements the static role-based access matrix over
// role x operation x search scope. Decisions are pure lookups against the
// current tenancy snapshot; callers audit the outcomes.
package policy

import (
	"go.uber.org/zap"

	"github.com/recallhq/memvault/models"
	"github.com/recallhq/memvault/services/tenancy"
)

// Permission identifies an operation subject to the access matrix.
type Permission string

const (
	PermMemoryCreate Permission = "memory:create"
	PermMemoryRead   Permission = "memory:read"
	PermMemoryDelete Permission = "memory:delete"
	PermSearchSelf   Permission = "search:self"
	PermSearchDept   Permission = "search:department"
	PermSearchTenant Permission = "search:tenant"
	PermAuditRead    Permission = "audit:read"
	PermTenantAdmin  Permission = "tenant:admin"
)

// SearchScope identifies the fan-out boundary of a search.
type SearchScope string

const (
	ScopeSelf       SearchScope = "self"
	ScopeDepartment SearchScope = "department"
	ScopeTenant     SearchScope = "tenant"
)

// rolePermissions is the static permission matrix. Users with no tenancy
// record get defaultPermissions instead.
var rolePermissions = map[models.Role]map[Permission]bool{
	models.RoleOwner: {
		PermMemoryCreate: true, PermMemoryRead: true, PermMemoryDelete: true,
		PermSearchSelf: true, PermSearchDept: true, PermSearchTenant: true,
		PermAuditRead: true, PermTenantAdmin: true,
	},
	models.RoleAdmin: {
		PermMemoryCreate: true, PermMemoryRead: true, PermMemoryDelete: true,
		PermSearchSelf: true, PermSearchDept: true, PermSearchTenant: true,
		PermAuditRead: true, PermTenantAdmin: true,
	},
	models.RoleManager: {
		PermMemoryCreate: true, PermMemoryRead: true, PermMemoryDelete: true,
		PermSearchSelf: true, PermSearchDept: true,
	},
	models.RoleMember: {
		PermMemoryCreate: true, PermMemoryRead: true, PermMemoryDelete: true,
		PermSearchSelf: true,
	},
	models.RoleAuditor: {
		PermMemoryCreate: true, PermMemoryRead: true,
		PermSearchSelf: true, PermSearchDept: true, PermSearchTenant: true,
		PermAuditRead: true,
	},
}

// defaultPermissions is the minimal set for phones with no tenancy record:
// they can keep their own memories and search themselves, nothing more.
var defaultPermissions = map[Permission]bool{
	PermMemoryCreate: true,
	PermMemoryRead:   true,
	PermSearchSelf:   true,
}

// scopeRoles maps each cross-user search scope to its permitted role set.
var scopeRoles = map[SearchScope]map[models.Role]bool{
	ScopeDepartment: {
		models.RoleOwner: true, models.RoleAdmin: true,
		models.RoleManager: true, models.RoleAuditor: true,
	},
	ScopeTenant: {
		models.RoleOwner: true, models.RoleAdmin: true, models.RoleAuditor: true,
	},
}

// AccessPolicy answers permission questions for phones by resolving their
// role through the tenancy directory.
type AccessPolicy struct {
	dir    *tenancy.Directory
	logger *zap.Logger
}

// NewAccessPolicy creates an AccessPolicy bound to a tenancy directory.
func NewAccessPolicy(dir *tenancy.Directory, logger *zap.Logger) *AccessPolicy {
	return &AccessPolicy{dir: dir, logger: logger}
}

// CanPerform reports whether the phone may perform the operation. Phones
// with no tenancy record get the minimal default set.
func (p *AccessPolicy) CanPerform(phone string, perm Permission) bool {
	membership, ok := p.dir.Lookup(phone)
	if !ok {
		return defaultPermissions[perm]
	}
	perms, known := rolePermissions[membership.Role]
	if !known {
		return defaultPermissions[perm]
	}
	return perms[perm]
}

// CanSearch reports whether the phone may search at the given scope, and
// the role the decision was made for. Self scope is always allowed; the
// cross-user scopes require the caller's role to be in the scope's
// permitted role set.
func (p *AccessPolicy) CanSearch(phone string, scope SearchScope) (bool, models.Role) {
	membership, ok := p.dir.Lookup(phone)
	if scope == ScopeSelf {
		if !ok {
			return true, ""
		}
		return true, membership.Role
	}
	if !ok {
		return false, ""
	}
	allowed := scopeRoles[scope][membership.Role]
	if !allowed {
		p.logger.Debug("search scope denied",
			zap.String("phone", phone),
			zap.String("scope", string(scope)),
			zap.String("role", string(membership.Role)))
	}
	return allowed, membership.Role
}
