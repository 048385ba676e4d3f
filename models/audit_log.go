package models

import (
	"time"

	"github.com/google/uuid"
)

// AuditAction represents the type of action being audited.
type AuditAction string

const (
	AuditActionMemoryStored       AuditAction = "memory_stored"
	AuditActionMemoryAccessed     AuditAction = "memory_accessed"
	AuditActionMemoryDeleted      AuditAction = "memory_deleted"
	AuditActionMemorySearch       AuditAction = "memory_search"
	AuditActionDepartmentSearch   AuditAction = "department_search"
	AuditActionTenantSearch       AuditAction = "tenant_search"
	AuditActionSessionCreated     AuditAction = "session_created"
	AuditActionSessionInvalidated AuditAction = "session_invalidated"
	AuditActionAuthFailure        AuditAction = "auth_failure"
	AuditActionAccessDenied       AuditAction = "access_denied"
	AuditActionSuspiciousActivity AuditAction = "suspicious_activity"
	AuditActionTenancyReloaded    AuditAction = "tenancy_reloaded"
	AuditActionLogsRotated        AuditAction = "logs_rotated"
)

// SecuritySensitive reports whether the action should additionally be
// surfaced synchronously as a warning for operational visibility.
func (a AuditAction) SecuritySensitive() bool {
	switch a {
	case AuditActionAuthFailure, AuditActionAccessDenied, AuditActionSuspiciousActivity:
		return true
	}
	return false
}

// AuditEntry is one line of the daily audit log. Immutable once written.
// Field names are part of the on-disk JSONL format and must not change.
type AuditEntry struct {
	ID           string      `json:"id"`
	Timestamp    time.Time   `json:"timestamp"`
	Action       AuditAction `json:"action"`
	User         string      `json:"user"`
	TenantID     string      `json:"tenant_id,omitempty"`
	DepartmentID string      `json:"department_id,omitempty"`
	Sensitivity  string      `json:"sensitivity,omitempty"`
	Details      string      `json:"details"`
	IPAddress    string      `json:"ip_address,omitempty"`
	SessionID    string      `json:"session_id,omitempty"`
}

// NewAuditEntry creates an entry stamped with a fresh id and the current time.
func NewAuditEntry(action AuditAction, user, details string) *AuditEntry {
	return &AuditEntry{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Action:    action,
		User:      user,
		Details:   details,
	}
}

// WithTenant sets the tenant and department scope.
func (e *AuditEntry) WithTenant(tenantID, departmentID string) *AuditEntry {
	e.TenantID = tenantID
	e.DepartmentID = departmentID
	return e
}

// WithSensitivity records the tier involved in the access decision.
func (e *AuditEntry) WithSensitivity(tier CategoryTier) *AuditEntry {
	e.Sensitivity = string(tier)
	return e
}

// WithRequest sets caller request metadata.
func (e *AuditEntry) WithRequest(ipAddress, sessionID string) *AuditEntry {
	e.IPAddress = ipAddress
	e.SessionID = sessionID
	return e
}
