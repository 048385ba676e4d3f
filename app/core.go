// Package app wires the vault core together. Core is the central
// dependency-injection point and the surface the transport/bot layer calls;
// it owns no scheduler and is safe under concurrent invocation.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/recallhq/memvault/config"
	"github.com/recallhq/memvault/models"
	"github.com/recallhq/memvault/services"
	"github.com/recallhq/memvault/services/audit"
	"github.com/recallhq/memvault/services/encryption"
	"github.com/recallhq/memvault/services/policy"
	"github.com/recallhq/memvault/services/search"
	"github.com/recallhq/memvault/services/session"
	"github.com/recallhq/memvault/services/tenancy"
	"github.com/recallhq/memvault/services/vault"
)

// VoiceAuthResult is the outcome reported by the external voice
// authentication service.
type VoiceAuthResult struct {
	Authenticated bool
	Confidence    float64
}

// Core holds all wired components of the vault core.
type Core struct {
	Config *config.Config
	Logger *zap.Logger

	Tenancy  *tenancy.Directory
	Policy   *policy.AccessPolicy
	Sessions *session.Manager
	Gate     *encryption.Gate
	Vault    *vault.Vault
	Search   *search.Engine
	Audit    *audit.Service
}

// NewCore creates and wires all components and starts the audit writer.
func NewCore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Core, error) {
	c := &Core{Config: cfg, Logger: logger}

	masterKey, err := cfg.MasterKey()
	if err != nil {
		return nil, services.WrapConfig("decoding master key", err)
	}
	c.Gate, err = encryption.NewGate(masterKey, logger)
	if err != nil {
		return nil, err
	}

	c.Tenancy, err = tenancy.NewDirectory(cfg.TenantsFile(), logger)
	if err != nil {
		return nil, err
	}
	c.Policy = policy.NewAccessPolicy(c.Tenancy, logger)
	c.Sessions = session.NewManager(cfg.Session.TTL, logger)

	c.Audit = audit.NewService(audit.Config{
		Dir:        cfg.AuditDir(),
		BufferSize: cfg.Audit.BufferSize,
	}, logger)
	if err := c.Audit.Start(); err != nil {
		return nil, fmt.Errorf("starting audit service: %w", err)
	}

	c.Vault = vault.NewVault(cfg.ContactsDir(), c.Gate, c.Sessions, c.Audit, logger)
	c.Search = search.NewEngine(c.Vault, c.Tenancy, c.Policy, c.Audit, search.Caps{
		PerContact: cfg.Search.PerContactCap,
		Global:     cfg.Search.GlobalCap,
	}, logger)

	logger.Info("vault core initialized",
		zap.String("data_dir", cfg.DataDir),
		zap.Int("tenancy_users", c.Tenancy.Snapshot().UserCount()))
	return c, nil
}

// Close drains the audit queue and stops the core.
func (c *Core) Close() error {
	return c.Audit.Stop(c.Config.Audit.StopTimeout)
}

// --- Exposed collaborator surface ---

// Store stores a memory for its owner, tagging it with the owner's tenancy
// when the request does not carry one.
func (c *Core) Store(ctx context.Context, req vault.StoreRequest) (string, error) {
	if !c.Policy.CanPerform(req.Owner, policy.PermMemoryCreate) {
		c.Audit.Record(models.NewAuditEntry(models.AuditActionAccessDenied, req.Owner,
			"store denied by access policy"))
		return "", services.ErrPermissionRequired.WithDetail("permission", string(policy.PermMemoryCreate))
	}
	if req.TenantID == "" {
		if m, ok := c.Tenancy.Lookup(req.Owner); ok {
			req.TenantID = m.TenantID
			req.DepartmentID = m.Department
		}
	}
	return c.Vault.Store(ctx, req)
}

// SearchSelf searches the caller's own memories.
func (c *Core) SearchSelf(ctx context.Context, req vault.SearchRequest) ([]vault.SearchResult, error) {
	return c.Search.SearchSelf(ctx, req)
}

// SearchDepartment searches across the caller's department under RBAC.
func (c *Core) SearchDepartment(ctx context.Context, caller, query string) ([]vault.SearchResult, error) {
	return c.Search.SearchDepartment(ctx, caller, query)
}

// SearchTenant searches across the caller's tenant under RBAC.
func (c *Core) SearchTenant(ctx context.Context, caller, query string) ([]vault.SearchResult, error) {
	return c.Search.SearchTenant(ctx, caller, query)
}

// Get retrieves one memory in cleartext, subject to the access policy and
// session gating.
func (c *Core) Get(ctx context.Context, owner, id, sessionToken string) (*models.MemoryRecord, error) {
	if !c.Policy.CanPerform(owner, policy.PermMemoryRead) {
		c.Audit.Record(models.NewAuditEntry(models.AuditActionAccessDenied, owner,
			"get denied by access policy"))
		return nil, services.ErrPermissionRequired.WithDetail("permission", string(policy.PermMemoryRead))
	}
	return c.Vault.Get(ctx, owner, id, sessionToken)
}

// Delete soft-deletes a memory (index tombstone only).
func (c *Core) Delete(ctx context.Context, owner, id string) error {
	if !c.Policy.CanPerform(owner, policy.PermMemoryDelete) {
		c.Audit.Record(models.NewAuditEntry(models.AuditActionAccessDenied, owner,
			"delete denied by access policy"))
		return services.ErrPermissionRequired.WithDetail("permission", string(policy.PermMemoryDelete))
	}
	return c.Vault.Delete(ctx, owner, id)
}

// CanPerform exposes the permission matrix.
func (c *Core) CanPerform(phone string, perm policy.Permission) bool {
	return c.Policy.CanPerform(phone, perm)
}

// CanSearch exposes the search scope matrix.
func (c *Core) CanSearch(phone string, scope policy.SearchScope) (bool, models.Role) {
	return c.Policy.CanSearch(phone, scope)
}

// CompleteVoiceChallenge consumes the external voice authentication outcome
// and creates an elevated session on success. Failures are audited as
// auth_failure and surfaced as access_denied errors.
func (c *Core) CompleteVoiceChallenge(owner string, result VoiceAuthResult) (string, error) {
	if !result.Authenticated || result.Confidence < c.Config.Session.VoiceConfidenceMin {
		c.Audit.Record(models.NewAuditEntry(models.AuditActionAuthFailure, owner,
			fmt.Sprintf("voice challenge failed (confidence %.2f)", result.Confidence)))
		return "", services.ErrVoiceAuthFailed.WithDetail("confidence", result.Confidence)
	}
	return c.CreateSession(owner), nil
}

// CreateSession starts a fresh elevated window for the owner.
func (c *Core) CreateSession(owner string) string {
	s := c.Sessions.Create(owner)
	c.Audit.Record(models.NewAuditEntry(models.AuditActionSessionCreated, owner,
		"elevated session created").WithRequest("", s.Token))
	return s.Token
}

// ValidateSession reports whether a session token is still live.
func (c *Core) ValidateSession(token string) bool {
	return c.Sessions.Validate(token)
}

// InvalidateAll logs the owner out of every elevated session.
func (c *Core) InvalidateAll(owner string) int {
	removed := c.Sessions.InvalidateAll(owner)
	c.Audit.Record(models.NewAuditEntry(models.AuditActionSessionInvalidated, owner,
		fmt.Sprintf("invalidated %d sessions", removed)))
	return removed
}

// Log records a custom audit entry from the boundary layer. Fire-and-forget.
func (c *Core) Log(action models.AuditAction, user, details string) string {
	return c.Audit.Log(action, user, details)
}

// ReloadTenancy rebuilds the tenancy snapshot from disk.
func (c *Core) ReloadTenancy() error {
	if err := c.Tenancy.Reload(); err != nil {
		return err
	}
	c.Audit.Record(models.NewAuditEntry(models.AuditActionTenancyReloaded, "system",
		fmt.Sprintf("tenancy reloaded: %d users", c.Tenancy.Snapshot().UserCount())))
	return nil
}

// RotateAuditLogs archives audit files older than the retention window.
func (c *Core) RotateAuditLogs() (int, error) {
	archived, err := c.Audit.RotateLogs(c.Config.Audit.RetentionDays)
	if err != nil {
		return 0, err
	}
	c.Audit.Record(models.NewAuditEntry(models.AuditActionLogsRotated, "system",
		fmt.Sprintf("archived %d audit files", archived)))
	return archived, nil
}
