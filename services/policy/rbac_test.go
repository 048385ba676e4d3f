package policy

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/recallhq/memvault/models"
	"github.com/recallhq/memvault/services/tenancy"
)

// phonesByRole covers one user per role plus a phone with no record.
const testTenants = `
tenants:
  - id: acme
    users:
      - {phone: "+1owner", role: owner, department: hq}
      - {phone: "+1admin", role: admin, department: hq}
      - {phone: "+1manager", role: manager, department: finance}
      - {phone: "+1member", role: member, department: finance}
      - {phone: "+1auditor", role: auditor, department: hq}
`

func testPolicy(t *testing.T) *AccessPolicy {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tenants.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testTenants), 0o640))
	dir, err := tenancy.NewDirectory(path, zap.NewNop())
	require.NoError(t, err)
	return NewAccessPolicy(dir, zap.NewNop())
}

func TestCanSearch_DepartmentScope(t *testing.T) {
	p := testPolicy(t)

	tests := []struct {
		phone   string
		allowed bool
	}{
		{"+1owner", true},
		{"+1admin", true},
		{"+1manager", true},
		{"+1auditor", true},
		{"+1member", false},
		{"+1unknown", false},
	}
	for _, tt := range tests {
		allowed, _ := p.CanSearch(tt.phone, ScopeDepartment)
		assert.Equal(t, tt.allowed, allowed, "phone %s", tt.phone)
	}
}

func TestCanSearch_TenantScope(t *testing.T) {
	p := testPolicy(t)

	tests := []struct {
		phone   string
		allowed bool
	}{
		{"+1owner", true},
		{"+1admin", true},
		{"+1auditor", true},
		{"+1manager", false},
		{"+1member", false},
		{"+1unknown", false},
	}
	for _, tt := range tests {
		allowed, _ := p.CanSearch(tt.phone, ScopeTenant)
		assert.Equal(t, tt.allowed, allowed, "phone %s", tt.phone)
	}
}

func TestCanSearch_SelfAlwaysAllowed(t *testing.T) {
	p := testPolicy(t)
	for _, phone := range []string{"+1owner", "+1member", "+1unknown"} {
		allowed, _ := p.CanSearch(phone, ScopeSelf)
		assert.True(t, allowed, "phone %s", phone)
	}
}

func TestCanSearch_ReturnsRole(t *testing.T) {
	p := testPolicy(t)
	_, role := p.CanSearch("+1manager", ScopeDepartment)
	assert.Equal(t, models.RoleManager, role)
}

func TestCanPerform_DefaultSetForUnknownPhone(t *testing.T) {
	p := testPolicy(t)

	assert.True(t, p.CanPerform("+1unknown", PermMemoryCreate))
	assert.True(t, p.CanPerform("+1unknown", PermMemoryRead))
	assert.True(t, p.CanPerform("+1unknown", PermSearchSelf))

	assert.False(t, p.CanPerform("+1unknown", PermMemoryDelete))
	assert.False(t, p.CanPerform("+1unknown", PermSearchDept))
	assert.False(t, p.CanPerform("+1unknown", PermSearchTenant))
	assert.False(t, p.CanPerform("+1unknown", PermAuditRead))
	assert.False(t, p.CanPerform("+1unknown", PermTenantAdmin))
}

func TestCanPerform_Matrix(t *testing.T) {
	p := testPolicy(t)

	tests := []struct {
		phone string
		perm  Permission
		want  bool
	}{
		{"+1owner", PermTenantAdmin, true},
		{"+1admin", PermAuditRead, true},
		{"+1auditor", PermAuditRead, true},
		{"+1auditor", PermMemoryDelete, false},
		{"+1auditor", PermTenantAdmin, false},
		{"+1manager", PermMemoryDelete, true},
		{"+1manager", PermAuditRead, false},
		{"+1member", PermMemoryCreate, true},
		{"+1member", PermSearchDept, false},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s/%s", tt.phone, tt.perm), func(t *testing.T) {
			assert.Equal(t, tt.want, p.CanPerform(tt.phone, tt.perm))
		})
	}
}
