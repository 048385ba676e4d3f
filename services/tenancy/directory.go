// Package tenancy maps phone numbers to organizational identity. The
// directory holds an immutable snapshot built wholesale from tenants.yaml;
// Reload builds a fresh snapshot and swaps it atomically so in-flight
// readers keep the snapshot they started with.
package tenancy

import (
	"fmt"
	"os"
	"sort"
	"sync/atomic"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/recallhq/memvault/models"
	"github.com/recallhq/memvault/services"
)

// Snapshot is an immutable view of the tenancy file. Never mutated after
// construction.
type Snapshot struct {
	phoneIndex  map[string]models.Membership
	tenantUsers map[string][]string // tenant id -> phones
	deptUsers   map[string][]string // tenant id + "/" + department -> phones
	tenantIDs   []string
}

// Lookup resolves a phone to its membership tuple.
func (s *Snapshot) Lookup(phone string) (models.Membership, bool) {
	m, ok := s.phoneIndex[phone]
	return m, ok
}

// PhonesInTenant returns all phones in the caller's tenant, including the
// caller. Empty when the phone has no tenancy record.
func (s *Snapshot) PhonesInTenant(phone string) []string {
	m, ok := s.phoneIndex[phone]
	if !ok {
		return nil
	}
	return append([]string(nil), s.tenantUsers[m.TenantID]...)
}

// PhonesInDepartment returns all phones in the caller's department,
// including the caller. Empty when the phone has no tenancy record.
func (s *Snapshot) PhonesInDepartment(phone string) []string {
	m, ok := s.phoneIndex[phone]
	if !ok {
		return nil
	}
	return append([]string(nil), s.deptUsers[m.TenantID+"/"+m.Department]...)
}

// TenantIDs returns the ids of all known tenants, sorted.
func (s *Snapshot) TenantIDs() []string {
	return append([]string(nil), s.tenantIDs...)
}

// UserCount returns the number of phones with a tenancy record.
func (s *Snapshot) UserCount() int {
	return len(s.phoneIndex)
}

// Directory is the reloadable phone -> (tenant, role, department) mapping.
// Safe for concurrent use; Reload swaps the snapshot pointer atomically.
type Directory struct {
	path   string
	logger *zap.Logger
	snap   atomic.Pointer[Snapshot]
}

// NewDirectory loads the tenancy file at path and returns a ready directory.
// A missing file yields an empty snapshot: every caller then falls back to
// the default permission set.
func NewDirectory(path string, logger *zap.Logger) (*Directory, error) {
	d := &Directory{path: path, logger: logger}
	if err := d.Reload(); err != nil {
		return nil, err
	}
	return d, nil
}

// Snapshot returns the current snapshot. Callers doing multi-step reads
// (lookup + fan-out) should hold one snapshot for consistency.
func (d *Directory) Snapshot() *Snapshot {
	return d.snap.Load()
}

// Reload rebuilds the snapshot from the tenancy file and swaps it in.
// On failure the previous snapshot stays active.
func (d *Directory) Reload() error {
	snap, err := loadSnapshot(d.path)
	if err != nil {
		return err
	}
	d.snap.Store(snap)
	d.logger.Info("tenancy snapshot loaded",
		zap.String("path", d.path),
		zap.Int("tenants", len(snap.tenantIDs)),
		zap.Int("users", len(snap.phoneIndex)))
	return nil
}

// Lookup resolves a phone against the current snapshot.
func (d *Directory) Lookup(phone string) (models.Membership, bool) {
	return d.Snapshot().Lookup(phone)
}

// PhonesInTenant resolves the tenant fan-out set against the current snapshot.
func (d *Directory) PhonesInTenant(phone string) []string {
	return d.Snapshot().PhonesInTenant(phone)
}

// PhonesInDepartment resolves the department fan-out set against the current snapshot.
func (d *Directory) PhonesInDepartment(phone string) []string {
	return d.Snapshot().PhonesInDepartment(phone)
}

func loadSnapshot(path string) (*Snapshot, error) {
	snap := &Snapshot{
		phoneIndex:  make(map[string]models.Membership),
		tenantUsers: make(map[string][]string),
		deptUsers:   make(map[string][]string),
	}

	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return snap, nil
	}
	if err != nil {
		return nil, services.WrapStorage("reading tenancy file", err)
	}

	var file models.TenantsFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, services.WrapConfig("parsing tenancy file", err)
	}

	for _, tenant := range file.Tenants {
		if tenant.ID == "" {
			return nil, services.ErrTenancyInvalid.WithDetail("reason", "tenant with empty id")
		}
		if _, dup := snap.tenantUsers[tenant.ID]; dup {
			return nil, services.ErrTenancyInvalid.WithDetail("reason", fmt.Sprintf("duplicate tenant id %q", tenant.ID))
		}
		snap.tenantUsers[tenant.ID] = []string{}
		snap.tenantIDs = append(snap.tenantIDs, tenant.ID)

		for _, user := range tenant.Users {
			if user.Phone == "" {
				return nil, services.ErrTenancyInvalid.WithDetail("reason", fmt.Sprintf("tenant %q has user with empty phone", tenant.ID))
			}
			role, ok := models.ParseRole(string(user.Role))
			if !ok {
				return nil, services.ErrTenancyInvalid.WithDetail("reason", fmt.Sprintf("unknown role %q for %s", user.Role, user.Phone))
			}
			if _, dup := snap.phoneIndex[user.Phone]; dup {
				return nil, services.ErrTenancyInvalid.WithDetail("reason", fmt.Sprintf("phone %s appears more than once", user.Phone))
			}
			snap.phoneIndex[user.Phone] = models.Membership{
				TenantID:   tenant.ID,
				Role:       role,
				Department: user.Department,
			}
			snap.tenantUsers[tenant.ID] = append(snap.tenantUsers[tenant.ID], user.Phone)
			deptKey := tenant.ID + "/" + user.Department
			snap.deptUsers[deptKey] = append(snap.deptUsers[deptKey], user.Phone)
		}
	}
	sort.Strings(snap.tenantIDs)

	return snap, nil
}
