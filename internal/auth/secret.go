// Package auth guards the administrative API: it checks the configured admin
// secret and issues the signed bearer tokens that authorize room management.
package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

var (
	// ErrAdminDisabled is returned when no admin secret is configured.
	ErrAdminDisabled = errors.New("admin access disabled")
	// ErrInvalidCredential is returned when a login secret does not match.
	ErrInvalidCredential = errors.New("invalid credential")
	// ErrInvalidHash is returned for a malformed argon2id hash.
	ErrInvalidHash = errors.New("invalid argon2id hash")
)

// Argon2id parameters used by HashSecret.
const (
	Memory      = 64 * 1024
	Iterations  = 3
	Parallelism = 2
	SaltLength  = 16
	KeyLength   = 32
)

const hashPrefix = "$argon2id$"

// Secret is the configured admin secret, either plain text or an argon2id
// hash produced by HashSecret.
type Secret struct {
	value string
	hash  *argonHash
}

// NewSecret wraps the configured value. An empty value disables admin access.
// A value carrying the argon2id prefix is parsed up front and rejected with
// ErrInvalidHash when malformed.
func NewSecret(configured string) (Secret, error) {
	secret := Secret{value: strings.TrimSpace(configured)}
	if !strings.HasPrefix(secret.value, hashPrefix) {
		return secret, nil
	}

	parsed, err := parseHash(secret.value)
	if err != nil {
		return Secret{}, err
	}
	secret.hash = parsed
	return secret, nil
}

// Enabled reports whether a secret is configured.
func (s Secret) Enabled() bool {
	return s.value != ""
}

// Hashed reports whether the configured value is an argon2id hash.
func (s Secret) Hashed() bool {
	return s.hash != nil
}

// Verify checks candidate against the configured secret in constant time.
func (s Secret) Verify(candidate string) error {
	if !s.Enabled() {
		return ErrAdminDisabled
	}

	if s.hash != nil {
		if !s.hash.matches(candidate) {
			return ErrInvalidCredential
		}
		return nil
	}

	if subtle.ConstantTimeCompare([]byte(candidate), []byte(s.value)) != 1 {
		return ErrInvalidCredential
	}
	return nil
}

// HashSecret returns an encoded argon2id hash of secret with a random salt.
func HashSecret(secret string) (string, error) {
	salt := make([]byte, SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	hash := argon2.IDKey([]byte(secret), salt, Iterations, Memory, Parallelism, KeyLength)

	b64Salt := base64.RawStdEncoding.EncodeToString(salt)
	b64Hash := base64.RawStdEncoding.EncodeToString(hash)

	return fmt.Sprintf("%sv=%d$m=%d,t=%d,p=%d$%s$%s",
		hashPrefix, argon2.Version, Memory, Iterations, Parallelism, b64Salt, b64Hash), nil
}

type argonHash struct {
	memory      uint32
	iterations  uint32
	parallelism uint8
	salt        []byte
	key         []byte
}

func (h *argonHash) matches(candidate string) bool {
	comparison := argon2.IDKey([]byte(candidate), h.salt, h.iterations, h.memory, h.parallelism, uint32(len(h.key)))
	return subtle.ConstantTimeCompare(h.key, comparison) == 1
}

func parseHash(encoded string) (*argonHash, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 {
		return nil, fmt.Errorf("%w: expected 6 fields, got %d", ErrInvalidHash, len(parts))
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return nil, fmt.Errorf("%w: version: %v", ErrInvalidHash, err)
	}
	if version != argon2.Version {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrInvalidHash, version)
	}

	h := &argonHash{}
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &h.memory, &h.iterations, &h.parallelism); err != nil {
		return nil, fmt.Errorf("%w: parameters: %v", ErrInvalidHash, err)
	}
	// argon2.IDKey panics on a zero thread count and derives nothing useful
	// from zero memory or passes
	if h.memory == 0 || h.iterations == 0 || h.parallelism == 0 {
		return nil, fmt.Errorf("%w: m, t and p must be positive", ErrInvalidHash)
	}

	var err error
	if h.salt, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil {
		return nil, fmt.Errorf("%w: salt: %v", ErrInvalidHash, err)
	}
	if len(h.salt) == 0 {
		return nil, fmt.Errorf("%w: empty salt", ErrInvalidHash)
	}
	if h.key, err = base64.RawStdEncoding.DecodeString(parts[5]); err != nil {
		return nil, fmt.Errorf("%w: key: %v", ErrInvalidHash, err)
	}
	if len(h.key) == 0 {
		return nil, fmt.Errorf("%w: empty key", ErrInvalidHash)
	}
	return h, nil
}
