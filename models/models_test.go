package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTier(t *testing.T) {
	tests := []struct {
		in   string
		want CategoryTier
		ok   bool
	}{
		{"GENERAL", TierGeneral, true},
		{"general", TierGeneral, true},
		{" ultra_secret ", TierUltraSecret, true},
		{"SECRET", TierSecret, true},
		{"bogus", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseTier(tt.in)
		assert.Equal(t, tt.ok, ok, "input %q", tt.in)
		if ok {
			assert.Equal(t, tt.want, got)
		}
	}
}

func TestTierOrdering(t *testing.T) {
	assert.Less(t, TierGeneral.Rank(), TierConfidential.Rank())
	assert.Less(t, TierConfidential.Rank(), TierSecret.Rank())
	assert.Less(t, TierSecret.Rank(), TierUltraSecret.Rank())
}

func TestTierRequiresSession(t *testing.T) {
	assert.False(t, TierGeneral.RequiresSession())
	assert.False(t, TierConfidential.RequiresSession())
	assert.True(t, TierSecret.RequiresSession())
	assert.True(t, TierUltraSecret.RequiresSession())
}

func TestUserIndex_AppendUpdatesStats(t *testing.T) {
	ix := NewUserIndex()
	t1 := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	t2 := time.Date(2026, 8, 2, 10, 0, 0, 0, time.UTC)

	ix.Append(IndexEntry{ID: "a", Category: TierGeneral, Timestamp: t2})
	ix.Append(IndexEntry{ID: "b", Category: TierSecret, Timestamp: t1})

	assert.Equal(t, 2, ix.Stats.Total)
	assert.Equal(t, 1, ix.Stats.ByCategory["GENERAL"])
	assert.Equal(t, 1, ix.Stats.ByCategory["SECRET"])
	require.NotNil(t, ix.Stats.FirstMemory)
	require.NotNil(t, ix.Stats.LastMemory)
	assert.Equal(t, t1, *ix.Stats.FirstMemory)
	assert.Equal(t, t2, *ix.Stats.LastMemory)
}

func TestUserIndex_RemoveIsTombstone(t *testing.T) {
	ix := NewUserIndex()
	ix.Append(IndexEntry{ID: "a", Category: TierGeneral, Timestamp: time.Now()})

	assert.True(t, ix.Remove("a"))
	assert.Nil(t, ix.Find("a"))
	assert.Equal(t, 0, ix.Stats.Total)
	assert.Equal(t, 0, ix.Stats.ByCategory["GENERAL"])

	assert.False(t, ix.Remove("a"), "second remove finds nothing")
}

func TestElevatedSession_ValidAt(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	s := NewElevatedSession("+15550001", now, DefaultSessionTTL)

	assert.True(t, s.ValidAt(now.Add(9*time.Minute+59*time.Second)))
	assert.False(t, s.ValidAt(now.Add(10*time.Minute+1*time.Second)))
	assert.NotEmpty(t, s.Token)
}

func TestAuditEntry_Builders(t *testing.T) {
	e := NewAuditEntry(AuditActionMemoryStored, "+15550001", "stored memory abc").
		WithTenant("acme", "finance").
		WithSensitivity(TierSecret).
		WithRequest("10.0.0.1", "sess-1")

	assert.NotEmpty(t, e.ID)
	assert.Equal(t, "acme", e.TenantID)
	assert.Equal(t, "finance", e.DepartmentID)
	assert.Equal(t, "SECRET", e.Sensitivity)
	assert.Equal(t, "10.0.0.1", e.IPAddress)
	assert.Equal(t, "sess-1", e.SessionID)
}

func TestAuditAction_SecuritySensitive(t *testing.T) {
	assert.True(t, AuditActionAuthFailure.SecuritySensitive())
	assert.True(t, AuditActionAccessDenied.SecuritySensitive())
	assert.True(t, AuditActionSuspiciousActivity.SecuritySensitive())
	assert.False(t, AuditActionMemoryStored.SecuritySensitive())
}
