package access

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/argon2"
)

// Access tokens let non-SSO clients (WebDAV agents, scripts) authenticate
// with HTTP basic auth. Only the argon2id hash is stored; the plaintext
// token is handed out once at generation time.

const (
	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
	argonKeyLen  = 32
	argonSaltLen = 16
)

// RegenerateToken issues a fresh access token for the user, replacing any
// previous one, and returns the plaintext token.
func (s *Store) RegenerateToken(ctx context.Context, username string) (string, error) {
	st, err := s.lockUser(username)
	if err != nil {
		return "", err
	}
	defer st.mu.Unlock()

	token := uuid.NewString()
	hash, err := hashToken(token)
	if err != nil {
		return "", err
	}

	snap := st.snap.Load()
	user := snap.User()
	user.TokenHash = &hash
	if err := s.repo.SaveUser(ctx, &user); err != nil {
		return "", err
	}
	st.snap.Store(snap.withUser(user))
	return token, nil
}

// RevokeToken removes the user's access token.
func (s *Store) RevokeToken(ctx context.Context, username string) error {
	st, err := s.lockUser(username)
	if err != nil {
		return err
	}
	defer st.mu.Unlock()

	snap := st.snap.Load()
	user := snap.User()
	user.TokenHash = nil
	if err := s.repo.SaveUser(ctx, &user); err != nil {
		return err
	}
	st.snap.Store(snap.withUser(user))
	return nil
}

// VerifyToken checks the presented token against the user's stored hash.
// Users without a token always fail verification.
func (s *Store) VerifyToken(username, token string) bool {
	snap, ok := s.Snapshot(username)
	if !ok {
		return false
	}
	user := snap.User()
	if user.TokenHash == nil {
		return false
	}
	return verifyTokenHash(*user.TokenHash, token)
}

func hashToken(token string) (string, error) {
	salt := make([]byte, argonSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	key := argon2.IDKey([]byte(token), salt, argonTime, argonMemory, argonThreads, argonKeyLen)
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, argonMemory, argonTime, argonThreads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

func verifyTokenHash(encoded, token string) bool {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return false
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return false
	}

	var memory, time uint32
	var threads uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &time, &threads); err != nil {
		return false
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false
	}

	computed := argon2.IDKey([]byte(token), salt, time, memory, threads, uint32(len(key)))
	return subtle.ConstantTimeCompare(computed, key) == 1
}
