package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKeyHex = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func TestNew_Defaults(t *testing.T) {
	t.Setenv("MEMVAULT_MASTER_KEY", testKeyHex)
	t.Setenv("MEMVAULT_DATA_DIR", t.TempDir())

	cfg, err := New()
	require.NoError(t, err)

	assert.Equal(t, 10*time.Minute, cfg.Session.TTL)
	assert.Equal(t, 30, cfg.Audit.RetentionDays)
	assert.Equal(t, 10000, cfg.Audit.BufferSize)
	assert.Equal(t, 3, cfg.Search.PerContactCap)
	assert.Equal(t, 10, cfg.Search.GlobalCap)
	assert.Equal(t, "info", cfg.Observability.LogLevel)
}

func TestNew_RequiresMasterKey(t *testing.T) {
	t.Setenv("MEMVAULT_MASTER_KEY", "")
	_, err := New()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "master key")
}

func TestMasterKey_Decoding(t *testing.T) {
	cfg := &Config{MasterKeyHex: testKeyHex}
	key, err := cfg.MasterKey()
	require.NoError(t, err)
	assert.Len(t, key, 32)

	cfg.MasterKeyHex = "abcd"
	_, err = cfg.MasterKey()
	assert.Error(t, err, "short key rejected")

	cfg.MasterKeyHex = "zz"
	_, err = cfg.MasterKey()
	assert.Error(t, err, "non-hex rejected")
}

func TestNew_EnvOverrides(t *testing.T) {
	t.Setenv("MEMVAULT_MASTER_KEY", testKeyHex)
	t.Setenv("MEMVAULT_SESSION_TTL", "5m")
	t.Setenv("MEMVAULT_AUDIT_RETENTION_DAYS", "7")

	cfg, err := New()
	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute, cfg.Session.TTL)
	assert.Equal(t, 7, cfg.Audit.RetentionDays)
}

func TestPaths(t *testing.T) {
	cfg := &Config{DataDir: "data"}
	assert.True(t, strings.HasSuffix(cfg.ContactsDir(), "contacts"))
	assert.True(t, strings.HasSuffix(cfg.AuditDir(), "audit"))
	assert.True(t, strings.HasSuffix(cfg.TenantsFile(), "tenants.yaml"))
}

func TestValidate_Bounds(t *testing.T) {
	base := func() *Config {
		return &Config{
			DataDir:      "data",
			MasterKeyHex: testKeyHex,
			Session:      SessionConfig{TTL: time.Minute, VoiceConfidenceMin: 0.8},
			Audit:        AuditConfig{BufferSize: 10, RetentionDays: 30},
			Search:       SearchConfig{PerContactCap: 3, GlobalCap: 10},
			Observability: ObservabilityConfig{
				LogLevel: "info", LogFormat: "json",
			},
		}
	}

	require.NoError(t, base().Validate())

	c := base()
	c.Session.VoiceConfidenceMin = 1.5
	assert.Error(t, c.Validate())

	c = base()
	c.Audit.RetentionDays = 0
	assert.Error(t, c.Validate())

	c = base()
	c.Search.GlobalCap = 0
	assert.Error(t, c.Validate())
}
