// Package encryption seals and unseals secret-tier memory content with
// authenticated encryption. Keys are derived per owner and per tier with
// HKDF-SHA256 from a process master key; the tier participates in both the
// derivation info and the AEAD associated data, so ciphertext written for
// one tier can never be replayed as another.
package encryption

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	"github.com/recallhq/memvault/models"
	"github.com/recallhq/memvault/services"
)

// SealedPrefix tags sealed content so storage code can detect it without
// decrypting. Part of the on-disk format.
const SealedPrefix = "ENC::"

// keySize is the size of derived AEAD keys.
const keySize = chacha20poly1305.KeySize

// blobVersion is prepended to every sealed blob and included in the AAD,
// so tampering with the version byte fails authentication.
const blobVersion byte = 0x01

// hkdfInfoMemory is the HKDF info domain tag for memory content keys.
// Changing it invalidates all existing ciphertext.
var hkdfInfoMemory = []byte("memvault.memory.v1")

// Gate performs seal/unseal for the vault.
type Gate struct {
	master []byte
	logger *zap.Logger
}

// NewGate creates a Gate from a 32-byte master key.
func NewGate(masterKey []byte, logger *zap.Logger) (*Gate, error) {
	if len(masterKey) != keySize {
		return nil, services.ErrConfigInvalid.WithDetail("reason", "master key must be 32 bytes")
	}
	key := make([]byte, keySize)
	copy(key, masterKey)
	return &Gate{master: key, logger: logger}, nil
}

// IsSealed reports whether content carries the sealed tag.
func IsSealed(content string) bool {
	return strings.HasPrefix(content, SealedPrefix)
}

// deriveKey derives the per-owner, per-tier content key. The owner phone
// and tier are folded into the HKDF info for domain separation.
func (g *Gate) deriveKey(owner string, tier models.CategoryTier) ([]byte, error) {
	info := make([]byte, 0, len(hkdfInfoMemory)+len(owner)+len(tier)+2)
	info = append(info, hkdfInfoMemory...)
	info = append(info, '|')
	info = append(info, owner...)
	info = append(info, '|')
	info = append(info, tier...)

	key := make([]byte, keySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, g.master, nil, info), key); err != nil {
		return nil, services.WrapStorage("deriving content key", err)
	}
	return key, nil
}

// aad binds a blob to its tier and format version.
func aad(tier models.CategoryTier) []byte {
	return append([]byte{blobVersion}, tier...)
}

// Seal encrypts plaintext for the owner at the given tier and returns the
// tagged, base64-encoded blob: ENC::base64(version || nonce || ct+tag).
func (g *Gate) Seal(plaintext, owner string, tier models.CategoryTier) (string, error) {
	key, err := g.deriveKey(owner, tier)
	if err != nil {
		return "", err
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return "", services.WrapStorage("constructing AEAD", err)
	}

	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return "", services.WrapStorage("generating nonce", err)
	}

	blob := make([]byte, 0, 1+len(nonce)+len(plaintext)+chacha20poly1305.Overhead)
	blob = append(blob, blobVersion)
	blob = append(blob, nonce...)
	blob = aead.Seal(blob, nonce, []byte(plaintext), aad(tier))

	return SealedPrefix + base64.StdEncoding.EncodeToString(blob), nil
}

// Unseal decrypts a sealed blob. The session gates access: a nil or expired
// session fails with an access_denied error before any key derivation. An
// authentication failure (tamper or corruption) fails with an integrity
// error and never returns garbage plaintext.
func (g *Gate) Unseal(sealed, owner string, tier models.CategoryTier, sess *models.ElevatedSession) (string, error) {
	if sess == nil {
		return "", services.ErrSessionRequired.WithDetail("tier", string(tier))
	}
	if !sess.ValidAt(time.Now()) {
		return "", services.ErrSessionExpired.WithDetail("tier", string(tier))
	}
	if sess.OwnerPhone != owner {
		return "", services.ErrAccessDenied.WithDetail("reason", "session owner mismatch")
	}

	if !IsSealed(sealed) {
		return "", services.ErrSealedFormat.WithDetail("reason", "missing sealed tag")
	}
	blob, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(sealed, SealedPrefix))
	if err != nil {
		return "", services.ErrSealedFormat.WithDetail("reason", "invalid base64")
	}
	if len(blob) < 1+chacha20poly1305.NonceSizeX+chacha20poly1305.Overhead {
		return "", services.ErrSealedFormat.WithDetail("reason", "blob too short")
	}
	if blob[0] != blobVersion {
		return "", services.ErrSealedFormat.WithDetail("reason", "unknown blob version")
	}

	key, err := g.deriveKey(owner, tier)
	if err != nil {
		return "", err
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return "", services.WrapStorage("constructing AEAD", err)
	}

	nonce := blob[1 : 1+chacha20poly1305.NonceSizeX]
	ciphertext := blob[1+chacha20poly1305.NonceSizeX:]
	plaintext, err := aead.Open(nil, nonce, ciphertext, aad(tier))
	if err != nil {
		g.logger.Warn("ciphertext authentication failed",
			zap.String("owner", owner),
			zap.String("tier", string(tier)))
		return "", services.ErrCiphertextTampered
	}
	return string(plaintext), nil
}
