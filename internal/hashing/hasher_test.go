package hashing

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateCodeIsAlwaysSixDigits(t *testing.T) {
	for i := 0; i < 200; i++ {
		code, err := GenerateCode()
		require.NoError(t, err)
		require.Len(t, code, 6)

		n, err := strconv.Atoi(code)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, 100000)
		assert.LessOrEqual(t, n, 999999)
	}
}

func TestGenerateSaltIsFreshPerCall(t *testing.T) {
	a, err := GenerateSalt()
	require.NoError(t, err)
	b, err := GenerateSalt()
	require.NoError(t, err)

	assert.NotEmpty(t, a)
	assert.NotEqual(t, a, b)
}

func TestHashCodeRoundTrip(t *testing.T) {
	salt, err := GenerateSalt()
	require.NoError(t, err)

	hash, err := HashCode("123456", salt)
	require.NoError(t, err)
	assert.Len(t, hash, 64) // hex-encoded SHA-256

	ok, err := VerifyCode("123456", salt, hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = VerifyCode("123457", salt, hash)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHashCodeSaltChangesDigest(t *testing.T) {
	saltA, err := GenerateSalt()
	require.NoError(t, err)
	saltB, err := GenerateSalt()
	require.NoError(t, err)

	hashA, err := HashCode("123456", saltA)
	require.NoError(t, err)
	hashB, err := HashCode("123456", saltB)
	require.NoError(t, err)

	assert.NotEqual(t, hashA, hashB, "same code under different salts must not collide")
}

func TestHashCodeRejectsBadSalt(t *testing.T) {
	_, err := HashCode("123456", "not base64!!")
	assert.ErrorIs(t, err, ErrInvalidSalt)
}

func TestHashTargetIsStable(t *testing.T) {
	a := HashTarget("user@example.com")
	b := HashTarget("user@example.com")
	c := HashTarget("other@example.com")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
}
