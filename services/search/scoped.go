// Package search fans searches out across self, department, and tenant
// scopes under the access policy. Cross-owner searches are read-only
// against other owners' directories and never decrypt their secret tiers.
// Every call produces exactly one audit entry, success or denial.
package search

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/recallhq/memvault/models"
	"github.com/recallhq/memvault/services"
	"github.com/recallhq/memvault/services/audit"
	"github.com/recallhq/memvault/services/policy"
	"github.com/recallhq/memvault/services/tenancy"
	"github.com/recallhq/memvault/services/vault"
)

// Caps bound scoped search fan-out.
type Caps struct {
	PerContact int // max hits kept per contact before merging
	Global     int // max hits returned after merging
}

// DefaultCaps returns the default fan-out caps.
func DefaultCaps() Caps {
	return Caps{PerContact: 3, Global: 10}
}

// Engine performs RBAC-scoped searches.
type Engine struct {
	vault  *vault.Vault
	dir    *tenancy.Directory
	policy *policy.AccessPolicy
	audit  *audit.Service
	caps   Caps
	logger *zap.Logger
}

// NewEngine creates a scoped search engine.
func NewEngine(v *vault.Vault, dir *tenancy.Directory, pol *policy.AccessPolicy, auditTrail *audit.Service, caps Caps, logger *zap.Logger) *Engine {
	if caps.PerContact <= 0 || caps.Global <= 0 {
		caps = DefaultCaps()
	}
	return &Engine{vault: v, dir: dir, policy: pol, audit: auditTrail, caps: caps, logger: logger}
}

// SearchSelf searches the caller's own vault. Always permitted.
func (e *Engine) SearchSelf(ctx context.Context, req vault.SearchRequest) ([]vault.SearchResult, error) {
	results, err := e.vault.Search(ctx, req)
	hits := len(results)
	membership, _ := e.dir.Lookup(req.Owner)
	e.audit.Record(models.NewAuditEntry(models.AuditActionMemorySearch, req.Owner,
		fmt.Sprintf("self search %q: %d hits", req.Query, hits)).
		WithTenant(membership.TenantID, membership.Department).
		WithRequest("", req.SessionToken))
	return results, err
}

// SearchDepartment fans the query out across the caller's department.
// Requires a role permitted at department scope. Records from other
// departments never surface, even when the fan-out set is stale against a
// newer snapshot.
func (e *Engine) SearchDepartment(ctx context.Context, caller, query string) ([]vault.SearchResult, error) {
	return e.searchScope(ctx, caller, query, policy.ScopeDepartment)
}

// SearchTenant fans the query out across the caller's whole tenant.
// Requires a role permitted at tenant scope.
func (e *Engine) SearchTenant(ctx context.Context, caller, query string) ([]vault.SearchResult, error) {
	return e.searchScope(ctx, caller, query, policy.ScopeTenant)
}

func (e *Engine) searchScope(ctx context.Context, caller, query string, scope policy.SearchScope) ([]vault.SearchResult, error) {
	action := models.AuditActionDepartmentSearch
	if scope == policy.ScopeTenant {
		action = models.AuditActionTenantSearch
	}

	allowed, role := e.policy.CanSearch(caller, scope)
	if !allowed {
		e.audit.Record(models.NewAuditEntry(models.AuditActionAccessDenied, caller,
			fmt.Sprintf("%s search %q denied for role %q", scope, query, role)))
		return nil, services.ErrScopeNotPermitted.
			WithDetail("scope", string(scope)).
			WithDetail("role", string(role))
	}

	// One snapshot for the lookup and the fan-out, so a concurrent reload
	// cannot split the view.
	snap := e.dir.Snapshot()
	membership, ok := snap.Lookup(caller)
	if !ok {
		// Role was resolvable a moment ago but the snapshot moved on.
		// Treat as an empty scope, not an error.
		e.recordScopeAudit(action, caller, query, models.Membership{}, 0)
		return nil, nil
	}

	var phones []string
	if scope == policy.ScopeDepartment {
		phones = snap.PhonesInDepartment(caller)
	} else {
		phones = snap.PhonesInTenant(caller)
	}

	var merged []vault.SearchResult
	for _, phone := range phones {
		// Fetch the contact's full ranked result set and apply the
		// per-contact cap only after scope filtering. Capping first would
		// let out-of-scope records (stale department tags after a
		// reassignment) crowd in-scope matches out of the window.
		results, err := e.vault.Search(ctx, vault.SearchRequest{
			Owner: phone,
			Query: query,
			Limit: -1,
		})
		if err != nil {
			e.logger.Warn("scoped search fan-out failed for contact",
				zap.String("caller", caller),
				zap.String("contact", phone),
				zap.Error(err))
			continue
		}
		kept := 0
		for _, r := range results {
			// Scope isolation: only records filed under the caller's tenant
			// (and department, at department scope) may surface.
			if r.Record.TenantID != membership.TenantID {
				continue
			}
			if scope == policy.ScopeDepartment && r.Record.DepartmentID != membership.Department {
				continue
			}
			merged = append(merged, r)
			kept++
			if kept == e.caps.PerContact {
				break
			}
		}
	}

	sort.SliceStable(merged, func(i, j int) bool {
		if merged[i].Score != merged[j].Score {
			return merged[i].Score > merged[j].Score
		}
		return merged[i].Record.Timestamp.After(merged[j].Record.Timestamp)
	})
	if len(merged) > e.caps.Global {
		merged = merged[:e.caps.Global]
	}

	e.recordScopeAudit(action, caller, query, membership, len(merged))
	return merged, nil
}

func (e *Engine) recordScopeAudit(action models.AuditAction, caller, query string, m models.Membership, hits int) {
	e.audit.Record(models.NewAuditEntry(action, caller,
		fmt.Sprintf("query %q: %d hits", query, hits)).
		WithTenant(m.TenantID, m.Department))
}
