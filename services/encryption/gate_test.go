package encryption

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/recallhq/memvault/models"
	"github.com/recallhq/memvault/services"
)

func testGate(t *testing.T) *Gate {
	t.Helper()
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}
	g, err := NewGate(key, zap.NewNop())
	require.NoError(t, err)
	return g
}

func liveSession(owner string) *models.ElevatedSession {
	return models.NewElevatedSession(owner, time.Now(), models.DefaultSessionTTL)
}

func TestNewGate_RejectsBadKey(t *testing.T) {
	_, err := NewGate([]byte("short"), zap.NewNop())
	require.Error(t, err)
	assert.True(t, services.IsConfigError(err))
}

func TestSealUnseal_RoundTrip(t *testing.T) {
	g := testGate(t)
	sess := liveSession("+15550001")

	for _, tier := range []models.CategoryTier{models.TierSecret, models.TierUltraSecret} {
		sealed, err := g.Seal("Budget $50k", "+15550001", tier)
		require.NoError(t, err)
		assert.True(t, IsSealed(sealed))
		assert.NotContains(t, sealed, "Budget")

		plain, err := g.Unseal(sealed, "+15550001", tier, sess)
		require.NoError(t, err)
		assert.Equal(t, "Budget $50k", plain)
	}
}

func TestUnseal_SessionGating(t *testing.T) {
	g := testGate(t)
	sealed, err := g.Seal("secret", "+15550001", models.TierSecret)
	require.NoError(t, err)

	t.Run("nil session", func(t *testing.T) {
		_, err := g.Unseal(sealed, "+15550001", models.TierSecret, nil)
		assert.True(t, services.IsAccessDenied(err))
	})

	t.Run("expired session", func(t *testing.T) {
		expired := models.NewElevatedSession("+15550001", time.Now().Add(-time.Hour), models.DefaultSessionTTL)
		_, err := g.Unseal(sealed, "+15550001", models.TierSecret, expired)
		assert.True(t, services.IsAccessDenied(err))
	})

	t.Run("session for another owner", func(t *testing.T) {
		_, err := g.Unseal(sealed, "+15550001", models.TierSecret, liveSession("+15550002"))
		assert.True(t, services.IsAccessDenied(err))
	})
}

func TestUnseal_TamperFailsIntegrity(t *testing.T) {
	g := testGate(t)
	sealed, err := g.Seal("secret", "+15550001", models.TierSecret)
	require.NoError(t, err)

	blob, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(sealed, SealedPrefix))
	require.NoError(t, err)
	blob[len(blob)-1] ^= 0xFF
	tampered := SealedPrefix + base64.StdEncoding.EncodeToString(blob)

	_, err = g.Unseal(tampered, "+15550001", models.TierSecret, liveSession("+15550001"))
	require.Error(t, err)
	assert.True(t, services.IsIntegrityError(err), "tamper must never return garbage")
}

func TestUnseal_TierIsBound(t *testing.T) {
	g := testGate(t)
	sealed, err := g.Seal("secret", "+15550001", models.TierSecret)
	require.NoError(t, err)

	// Ciphertext written for SECRET cannot be replayed as ULTRA_SECRET.
	_, err = g.Unseal(sealed, "+15550001", models.TierUltraSecret, liveSession("+15550001"))
	require.Error(t, err)
	assert.True(t, services.IsIntegrityError(err))
}

func TestUnseal_OwnerIsBound(t *testing.T) {
	g := testGate(t)
	sealed, err := g.Seal("secret", "+15550001", models.TierSecret)
	require.NoError(t, err)

	// A different owner derives a different key.
	_, err = g.Unseal(sealed, "+15550002", models.TierSecret, liveSession("+15550002"))
	require.Error(t, err)
	assert.True(t, services.IsIntegrityError(err))
}

func TestUnseal_MalformedBlob(t *testing.T) {
	g := testGate(t)
	sess := liveSession("+15550001")

	for name, input := range map[string]string{
		"no tag":      "plaintext",
		"bad base64":  SealedPrefix + "!!!",
		"too short":   SealedPrefix + base64.StdEncoding.EncodeToString([]byte{0x01, 0x02}),
		"bad version": SealedPrefix + base64.StdEncoding.EncodeToString(make([]byte, 64)),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := g.Unseal(input, "+15550001", models.TierSecret, sess)
			require.Error(t, err)
			assert.True(t, services.IsIntegrityError(err))
		})
	}
}

func TestSeal_NoncesDiffer(t *testing.T) {
	g := testGate(t)
	a, err := g.Seal("same content", "+15550001", models.TierSecret)
	require.NoError(t, err)
	b, err := g.Seal("same content", "+15550001", models.TierSecret)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}
