package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Codes rotate every hour. Validation additionally accepts the previous
// window so a code generated just before the boundary still verifies.
const windowMs = 3_600_000

const codeLen = 16

const keyPrefix = "totp_"

var ErrMalformedKey = errors.New("malformed TOTP key")

// GenerateCode derives the code for a device at the window containing now,
// shifted by offset windows. The code is the first 16 hex characters of
// HMAC-SHA256(secret, "<browserId>:<windowIndex+offset>").
func GenerateCode(browserID, secret string, offset int, now time.Time) string {
	windowIndex := now.UnixMilli()/windowMs + int64(offset)

	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%s:%d", browserID, windowIndex)

	return hex.EncodeToString(mac.Sum(nil))[:codeLen]
}

// ValidateCode checks the code against the current and the previous window.
func ValidateCode(browserID, secret, code string, now time.Time) bool {
	for _, offset := range []int{0, -1} {
		expected := GenerateCode(browserID, secret, offset, now)
		if constantTimeEqual(expected, code) {
			return true
		}
	}
	return false
}

// constantTimeEqual compares two strings without leaking the mismatch
// position. A length mismatch returns false before any byte comparison.
func constantTimeEqual(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// NewSecret returns 256 random bits, hex-encoded.
func NewSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate device secret: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// FormatKey builds the wire form totp_<browserId>_<code>.
func FormatKey(browserID, code string) string {
	return keyPrefix + browserID + "_" + code
}

// IsTOTPKey reports whether a candidate credential is in TOTP form.
func IsTOTPKey(raw string) bool {
	return strings.HasPrefix(raw, keyPrefix)
}

// ParseKey splits totp_<browserId>_<code>. The code is the segment after
// the final underscore; the browser id is everything in between and must
// parse as a UUID (uuid.Parse, so braced, urn-prefixed, bare-hex and
// uppercase forms pass as well as the canonical one). The code must be 16
// lowercase hex characters.
func ParseKey(raw string) (browserID, code string, err error) {
	if !strings.HasPrefix(raw, keyPrefix) {
		return "", "", ErrMalformedKey
	}

	rest := raw[len(keyPrefix):]
	sep := strings.LastIndex(rest, "_")
	if sep <= 0 || sep == len(rest)-1 {
		return "", "", ErrMalformedKey
	}

	browserID = rest[:sep]
	code = rest[sep+1:]

	if _, err := uuid.Parse(browserID); err != nil {
		return "", "", ErrMalformedKey
	}
	if len(code) != codeLen || !isLowerHex(code) {
		return "", "", ErrMalformedKey
	}

	return browserID, code, nil
}

func isLowerHex(s string) bool {
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
