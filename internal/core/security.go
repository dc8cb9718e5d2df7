// AngelaMos | 2026
// security.go

package core

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
	argonKeyLen  = 32
	saltLength   = 16

	argonPrefix  = "$argon2id$"
	sha256Prefix = "sha256:"
)

// Hasher turns a plaintext password into a storable digest and checks
// candidates against it. Implementations are pure and safe for concurrent
// use.
type Hasher interface {
	Hash(password string) (string, error)
	Verify(digest, candidate string) bool
}

// NewHasher returns the hasher used for new digests. Verification of
// existing digests always goes through the prefix of the stored value, so
// switching kinds never locks out existing accounts.
func NewHasher(kind string) (Hasher, error) {
	switch kind {
	case "argon2id", "":
		return Argon2Hasher{}, nil
	case "sha256":
		return SHA256Hasher{}, nil
	default:
		return nil, fmt.Errorf("unknown password hasher %q", kind)
	}
}

// SHA256Hasher produces an unsalted, deterministic digest. The same
// password always yields the same digest.
type SHA256Hasher struct{}

func (SHA256Hasher) Hash(password string) (string, error) {
	sum := sha256.Sum256([]byte(password))
	return sha256Prefix + hex.EncodeToString(sum[:]), nil
}

func (SHA256Hasher) Verify(digest, candidate string) bool {
	return verifyDigest(digest, candidate)
}

// Argon2Hasher produces salted argon2id digests in the PHC string format.
type Argon2Hasher struct{}

func (Argon2Hasher) Hash(password string) (string, error) {
	return HashPassword(password)
}

func (Argon2Hasher) Verify(digest, candidate string) bool {
	return verifyDigest(digest, candidate)
}

func verifyDigest(digest, candidate string) bool {
	switch {
	case strings.HasPrefix(digest, sha256Prefix):
		sum := sha256.Sum256([]byte(candidate))
		want := sha256Prefix + hex.EncodeToString(sum[:])
		return subtle.ConstantTimeCompare([]byte(want), []byte(digest)) == 1
	case strings.HasPrefix(digest, argonPrefix):
		valid, err := VerifyPassword(candidate, digest)
		return err == nil && valid
	default:
		return false
	}
}

func HashPassword(password string) (string, error) {
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	hash := argon2.IDKey(
		[]byte(password),
		salt,
		argonTime,
		argonMemory,
		argonThreads,
		argonKeyLen,
	)

	b64Salt := base64.RawStdEncoding.EncodeToString(salt)
	b64Hash := base64.RawStdEncoding.EncodeToString(hash)

	encoded := fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		argonMemory,
		argonTime,
		argonThreads,
		b64Salt,
		b64Hash,
	)

	return encoded, nil
}

func VerifyPassword(password, encodedHash string) (bool, error) {
	params, salt, hash, err := decodeHash(encodedHash)
	if err != nil {
		return false, err
	}

	otherHash := argon2.IDKey(
		[]byte(password),
		salt,
		params.time,
		params.memory,
		params.threads,
		params.keyLen,
	)

	if subtle.ConstantTimeCompare(hash, otherHash) == 1 {
		return true, nil
	}

	return false, nil
}

var (
	dummyArgonDigest  string
	dummySHA256Digest string
)

func init() {
	const dummyPassword = "dummy_password_for_timing_attack_prevention"

	hash, err := HashPassword(dummyPassword)
	if err != nil {
		panic(fmt.Sprintf("security: failed to generate dummy hash: %v", err))
	}
	dummyArgonDigest = hash

	//nolint:errcheck // sha256 hashing cannot fail
	dummySHA256Digest, _ = SHA256Hasher{}.Hash(dummyPassword)
}

// VerifyTimingSafe always performs a full verification, against a dummy
// digest of the hasher's own kind when none is stored, so an unknown
// username costs the same as a wrong password.
func VerifyTimingSafe(h Hasher, candidate string, digest *string) bool {
	if digest == nil || *digest == "" {
		dummy := dummyArgonDigest
		if _, ok := h.(SHA256Hasher); ok {
			dummy = dummySHA256Digest
		}
		_ = h.Verify(dummy, candidate)
		return false
	}

	return h.Verify(*digest, candidate)
}

type argonParams struct {
	memory  uint32
	time    uint32
	threads uint8
	keyLen  uint32
}

func decodeHash(encodedHash string) (*argonParams, []byte, []byte, error) {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 {
		return nil, nil, nil, fmt.Errorf("invalid hash format")
	}

	if parts[1] != "argon2id" {
		return nil, nil, nil, fmt.Errorf("unsupported algorithm: %s", parts[1])
	}

	var version int
	_, err := fmt.Sscanf(parts[2], "v=%d", &version)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("invalid version: %w", err)
	}

	if version != argon2.Version {
		return nil, nil, nil, fmt.Errorf("incompatible version: %d", version)
	}

	params := &argonParams{}
	_, err = fmt.Sscanf(
		parts[3],
		"m=%d,t=%d,p=%d",
		&params.memory,
		&params.time,
		&params.threads,
	)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("invalid params: %w", err)
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return nil, nil, nil, fmt.Errorf("decode salt: %w", err)
	}

	hash, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return nil, nil, nil, fmt.Errorf("decode hash: %w", err)
	}

	//nolint:gosec // G115: hash length is always small (32 bytes for Argon2id)
	params.keyLen = uint32(len(hash))

	return params, salt, hash, nil
}

func GenerateSecureToken(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("generate random bytes: %w", err)
	}
	return base64.URLEncoding.EncodeToString(bytes), nil
}

// ConstantTimeEqual compares two secrets without leaking their common
// prefix length.
func ConstantTimeEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
