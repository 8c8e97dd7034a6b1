package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testBrowserID = "550e8400-e29b-41d4-a716-446655440000"

func TestValidateCode_AcceptsCurrentAndPreviousWindow(t *testing.T) {
	secret, err := NewSecret()
	require.NoError(t, err)

	now := time.Date(2025, time.March, 10, 12, 30, 0, 0, time.UTC)

	current := GenerateCode(testBrowserID, secret, 0, now)
	previous := GenerateCode(testBrowserID, secret, -1, now)

	assert.True(t, ValidateCode(testBrowserID, secret, current, now))
	assert.True(t, ValidateCode(testBrowserID, secret, previous, now))
	assert.False(t, ValidateCode(testBrowserID, secret, GenerateCode(testBrowserID, secret, -2, now), now))
	assert.False(t, ValidateCode(testBrowserID, secret, "0123456789abcdef", now))
}

func TestValidateCode_RejectsAlteredCode(t *testing.T) {
	secret, err := NewSecret()
	require.NoError(t, err)

	now := time.Now()
	code := GenerateCode(testBrowserID, secret, 0, now)

	last := code[len(code)-1]
	altered := byte('0')
	if last == '0' {
		altered = '1'
	}
	tampered := code[:len(code)-1] + string(altered)

	assert.False(t, ValidateCode(testBrowserID, secret, tampered, now))
}

func TestValidateCode_LengthMismatchIsFalse(t *testing.T) {
	secret, err := NewSecret()
	require.NoError(t, err)

	now := time.Now()
	code := GenerateCode(testBrowserID, secret, 0, now)

	assert.False(t, ValidateCode(testBrowserID, secret, code[:8], now))
	assert.False(t, ValidateCode(testBrowserID, secret, code+"00", now))
	assert.False(t, ValidateCode(testBrowserID, secret, "", now))
}

func TestGenerateCode_StableWithinWindow(t *testing.T) {
	secret, err := NewSecret()
	require.NoError(t, err)

	base := time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)

	a := GenerateCode(testBrowserID, secret, 0, base)
	b := GenerateCode(testBrowserID, secret, 0, base.Add(59*time.Minute))
	c := GenerateCode(testBrowserID, secret, 0, base.Add(61*time.Minute))

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 16)
}

func TestParseKey_RoundTrip(t *testing.T) {
	secret, err := NewSecret()
	require.NoError(t, err)

	code := GenerateCode(testBrowserID, secret, 0, time.Now())
	raw := FormatKey(testBrowserID, code)

	gotID, gotCode, err := ParseKey(raw)
	require.NoError(t, err)
	assert.Equal(t, testBrowserID, gotID)
	assert.Equal(t, code, gotCode)
}

func TestParseKey_Malformed(t *testing.T) {
	tt := []struct {
		desc string
		raw  string
	}{
		{"missing prefix", testBrowserID + "_0123456789abcdef"},
		{"no separator", "totp_" + testBrowserID},
		{"empty code", "totp_" + testBrowserID + "_"},
		{"non-uuid browser id", "totp_not-a-uuid_0123456789abcdef"},
		{"code too short", "totp_" + testBrowserID + "_abcdef"},
		{"code not hex", "totp_" + testBrowserID + "_0123456789abcdeg"},
		{"uppercase code", "totp_" + testBrowserID + "_0123456789ABCDEF"},
		{"empty", ""},
		{"prefix only", "totp_"},
	}

	for _, tc := range tt {
		t.Run(tc.desc, func(t *testing.T) {
			_, _, err := ParseKey(tc.raw)
			assert.ErrorIs(t, err, ErrMalformedKey)
		})
	}
}

func TestNewSecret_Format(t *testing.T) {
	a, err := NewSecret()
	require.NoError(t, err)
	b, err := NewSecret()
	require.NoError(t, err)

	assert.Len(t, a, 64)
	assert.NotEqual(t, a, b)
	assert.Equal(t, strings.ToLower(a), a)
}

func TestIsTOTPKey(t *testing.T) {
	assert.True(t, IsTOTPKey("totp_whatever"))
	assert.False(t, IsTOTPKey("gw_live_abcdef"))
	assert.False(t, IsTOTPKey(""))
}
