package encryption

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"otp-service/internal/config"
)

func localManager() *EncryptionManager {
	return NewEncryptionManager(&config.Config{
		Environment: "test",
		KMS:         config.KMSConfig{Enabled: false},
	}, nil)
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	em := localManager()
	ctx := context.Background()

	data, err := em.EncryptTarget(ctx, "user@example.com")
	require.NoError(t, err)
	assert.NotEmpty(t, data.EncryptedValue)
	assert.NotEmpty(t, data.EncryptedDEK)
	assert.NotContains(t, data.EncryptedValue, "user@example.com")

	plaintext, err := em.DecryptTarget(ctx, data)
	require.NoError(t, err)
	assert.Equal(t, "user@example.com", plaintext)
}

func TestDecryptSurvivesCacheClear(t *testing.T) {
	em := localManager()
	ctx := context.Background()

	data, err := em.EncryptTarget(ctx, "+14155550123")
	require.NoError(t, err)

	em.ClearCache()

	plaintext, err := em.DecryptTarget(ctx, data)
	require.NoError(t, err)
	assert.Equal(t, "+14155550123", plaintext)
}

func TestCiphertextIsFreshPerCall(t *testing.T) {
	em := localManager()
	ctx := context.Background()

	a, err := em.EncryptTarget(ctx, "user@example.com")
	require.NoError(t, err)
	b, err := em.EncryptTarget(ctx, "user@example.com")
	require.NoError(t, err)

	assert.NotEqual(t, a.EncryptedValue, b.EncryptedValue)
}

func TestDecryptRejectsTamperedCiphertext(t *testing.T) {
	em := localManager()
	ctx := context.Background()

	data, err := em.EncryptTarget(ctx, "user@example.com")
	require.NoError(t, err)

	em.ClearCache()
	data.EncryptedValue = "bm90LXJlYWwtY2lwaGVydGV4dC1hdC1hbGwtaGVyZQ=="

	_, err = em.DecryptTarget(ctx, data)
	assert.ErrorIs(t, err, ErrDecryptionFailed)
}
