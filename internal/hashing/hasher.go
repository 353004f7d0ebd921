package hashing

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
)

var ErrInvalidSalt = errors.New("invalid salt encoding")

const saltBytes = 16 // 128 bits per issuance

// codeRange covers [100000, 999999]: always six digits, never truncated
// by a leading zero.
var codeRange = big.NewInt(900000)

// GenerateCode produces a uniformly random 6-digit numeric passcode
// using crypto/rand.
func GenerateCode() (string, error) {
	n, err := rand.Int(rand.Reader, codeRange)
	if err != nil {
		return "", fmt.Errorf("failed to generate code: %w", err)
	}
	return fmt.Sprintf("%d", n.Int64()+100000), nil
}

// GenerateSalt produces a fresh random per-record salt, base64-encoded.
func GenerateSalt() (string, error) {
	raw := make([]byte, saltBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// HashCode computes HMAC-SHA256 over the code with the decoded salt as
// the HMAC key, returned hex-encoded. The salt-as-key orientation is
// load-bearing: stored hashes from earlier deployments verify only if
// issuance and verification agree on it.
func HashCode(code, salt string) (string, error) {
	key, err := base64.RawURLEncoding.DecodeString(salt)
	if err != nil {
		return "", ErrInvalidSalt
	}

	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(code))
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// VerifyCode recomputes the HMAC for a submitted code and compares it
// against the stored hash in constant time.
func VerifyCode(code, salt, storedHash string) (bool, error) {
	candidate, err := HashCode(code, salt)
	if err != nil {
		return false, err
	}
	return subtle.ConstantTimeCompare([]byte(candidate), []byte(storedHash)) == 1, nil
}

// HashTarget returns the SHA-256 hex digest of a target identifier.
// Used as the store key component and in audit/event records so that
// plaintext emails and phone numbers stay out of shared systems.
func HashTarget(target string) string {
	sum := sha256.Sum256([]byte(target))
	return hex.EncodeToString(sum[:])
}
