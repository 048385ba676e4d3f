// Package vault implements per-owner tiered memory storage. Each owner has
// an append-only markdown file per category tier, a chronological file per
// calendar day (intentional denormalization for fast by-date browsing), and
// an index.json holding entry summaries and stats. SECRET and ULTRA_SECRET
// content is sealed through the encryption gate before it touches disk and
// its preview is always empty, so no plaintext ever leaks into the index.
//
// Delete is a soft delete: it removes the index entry only. The underlying
// markdown line remains on disk and is not compacted.
package vault

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/recallhq/memvault/models"
	"github.com/recallhq/memvault/services"
	"github.com/recallhq/memvault/services/audit"
	"github.com/recallhq/memvault/services/encryption"
	"github.com/recallhq/memvault/services/session"
	"github.com/recallhq/memvault/utils"
)

const (
	previewMaxRunes = 100

	cacheMaxOwners = 256
	cacheTTL       = 30 * time.Second
)

// Vault stores, retrieves, and searches one process's memory records.
type Vault struct {
	contactsDir string
	gate        *encryption.Gate
	sessions    *session.Manager
	audit       *audit.Service
	logger      *zap.Logger

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
	cache   *indexCache
}

// NewVault creates a Vault rooted at contactsDir.
func NewVault(contactsDir string, gate *encryption.Gate, sessions *session.Manager, auditTrail *audit.Service, logger *zap.Logger) *Vault {
	return &Vault{
		contactsDir: contactsDir,
		gate:        gate,
		sessions:    sessions,
		audit:       auditTrail,
		logger:      logger,
		locks:       make(map[string]*sync.Mutex),
		cache:       newIndexCache(cacheMaxOwners, cacheTTL),
	}
}

// StoreRequest describes a memory to store.
type StoreRequest struct {
	Owner        string              `validate:"required"`
	Content      string              `validate:"required"`
	Tier         models.CategoryTier `validate:"required"`
	Timestamp    time.Time           // zero means now
	TenantID     string
	DepartmentID string
}

// newMemoryID generates a short unique memory id.
func newMemoryID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

// Store appends a memory to the tier's category file and that day's
// chronological file, then updates the owner's index under the owner lock.
// Secret tiers are sealed first. Returns the new id. Audit logging is
// fire-and-forget and never fails the store.
func (v *Vault) Store(ctx context.Context, req StoreRequest) (string, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return "", services.NewDomainError(services.ErrorTypeValidation, "invalid store request", err)
	}
	if !req.Tier.Valid() {
		return "", services.ErrInvalidTier.WithDetail("tier", string(req.Tier))
	}
	if req.Tier == models.TierChronological {
		// The chronological view is derived from every store; it is not a
		// tier content can be filed under directly.
		return "", services.ErrInvalidTier.WithDetail("reason", "CHRONOLOGICAL is a derived view")
	}

	ts := req.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	id := newMemoryID()

	stored := req.Content
	encrypted := req.Tier.RequiresSession()
	if encrypted {
		sealed, err := v.gate.Seal(req.Content, req.Owner, req.Tier)
		if err != nil {
			return "", err
		}
		stored = sealed
	}

	preview := ""
	if !encrypted {
		preview = makePreview(req.Content)
	}

	mu := v.ownerLock(req.Owner)
	mu.Lock()
	defer mu.Unlock()

	line := formatLine(id, ts, stored)
	if err := appendLine(v.categoryFile(req.Owner, req.Tier), line); err != nil {
		return "", err
	}
	chronoLine := fmt.Sprintf("- [%s] (%s) [%s] %s\n",
		ts.Format(time.RFC3339), id, req.Tier, escapeContent(stored))
	if err := appendLine(v.chronologicalFile(req.Owner, ts), chronoLine); err != nil {
		return "", err
	}

	ix, err := v.readIndex(req.Owner)
	if err != nil {
		return "", err
	}
	ix.Append(models.IndexEntry{
		ID:             id,
		Category:       req.Tier,
		Timestamp:      ts,
		ContentPreview: preview,
		Encrypted:      encrypted,
		TenantID:       req.TenantID,
		DepartmentID:   req.DepartmentID,
		UserPhone:      req.Owner,
	})
	if err := v.writeIndex(req.Owner, ix); err != nil {
		return "", err
	}

	v.audit.Record(models.NewAuditEntry(models.AuditActionMemoryStored, req.Owner,
		fmt.Sprintf("stored memory %s", id)).
		WithTenant(req.TenantID, req.DepartmentID).
		WithSensitivity(req.Tier))

	v.logger.Debug("memory stored",
		zap.String("owner", req.Owner),
		zap.String("id", id),
		zap.String("tier", string(req.Tier)),
		zap.Bool("encrypted", encrypted))
	return id, nil
}

// Get returns one memory in cleartext. Secret tiers require a valid
// elevated session for the owner; otherwise the call fails with an
// access_denied error and the denial is audited.
func (v *Vault) Get(ctx context.Context, owner, id, sessionToken string) (*models.MemoryRecord, error) {
	if owner == "" {
		return nil, services.ErrEmptyPhone
	}
	ix, err := v.loadIndexForRead(owner)
	if err != nil {
		return nil, err
	}
	entry := ix.Find(id)
	if entry == nil {
		return nil, services.ErrMemoryNotFound.WithDetail("id", id)
	}

	var sess *models.ElevatedSession
	if entry.Category.RequiresSession() {
		s, ok := v.sessions.Get(sessionToken)
		if !ok || s.OwnerPhone != owner {
			v.audit.Record(models.NewAuditEntry(models.AuditActionAccessDenied, owner,
				fmt.Sprintf("get %s denied: no valid elevated session", id)).
				WithTenant(entry.TenantID, entry.DepartmentID).
				WithSensitivity(entry.Category).
				WithRequest("", sessionToken))
			return nil, services.ErrSessionRequired.WithDetail("id", id)
		}
		sess = s
	}

	content, err := readEntryContent(v.categoryFile(owner, entry.Category), id)
	if err != nil {
		return nil, err
	}
	if entry.Encrypted {
		content, err = v.gate.Unseal(content, owner, entry.Category, sess)
		if err != nil {
			return nil, err
		}
	}

	v.audit.Record(models.NewAuditEntry(models.AuditActionMemoryAccessed, owner,
		fmt.Sprintf("accessed memory %s", id)).
		WithTenant(entry.TenantID, entry.DepartmentID).
		WithSensitivity(entry.Category).
		WithRequest("", sessionToken))

	return &models.MemoryRecord{
		ID:           entry.ID,
		OwnerPhone:   owner,
		Tier:         entry.Category,
		Timestamp:    entry.Timestamp,
		Content:      content,
		Preview:      entry.ContentPreview,
		Encrypted:    entry.Encrypted,
		TenantID:     entry.TenantID,
		DepartmentID: entry.DepartmentID,
	}, nil
}

// Delete removes the index entry for a memory. Soft delete only: the
// markdown line stays on disk. Returns not_found if the id is unknown or
// already deleted.
func (v *Vault) Delete(ctx context.Context, owner, id string) error {
	if owner == "" {
		return services.ErrEmptyPhone
	}

	mu := v.ownerLock(owner)
	mu.Lock()
	defer mu.Unlock()

	ix, err := v.readIndex(owner)
	if err != nil {
		return err
	}
	entry := ix.Find(id)
	if entry == nil {
		return services.ErrMemoryNotFound.WithDetail("id", id)
	}
	tier := entry.Category
	tenantID, deptID := entry.TenantID, entry.DepartmentID
	ix.Remove(id)
	if err := v.writeIndex(owner, ix); err != nil {
		return err
	}

	v.audit.Record(models.NewAuditEntry(models.AuditActionMemoryDeleted, owner,
		fmt.Sprintf("deleted memory %s (index tombstone)", id)).
		WithTenant(tenantID, deptID).
		WithSensitivity(tier))
	return nil
}

// Stats returns the owner's index statistics.
func (v *Vault) Stats(owner string) (models.IndexStats, error) {
	ix, err := v.loadIndexForRead(owner)
	if err != nil {
		return models.IndexStats{}, err
	}
	return ix.Stats, nil
}

// CacheStats exposes index cache counters.
func (v *Vault) CacheStats() CacheStats {
	return v.cache.Stats()
}

// makePreview produces the indexed summary for non-secret content: the
// first previewMaxRunes runes, flattened to one line.
func makePreview(content string) string {
	flat := strings.Join(strings.Fields(content), " ")
	runes := []rune(flat)
	if len(runes) <= previewMaxRunes {
		return flat
	}
	return string(runes[:previewMaxRunes])
}
