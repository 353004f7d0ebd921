package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestChallengeExpiredBoundary(t *testing.T) {
	expiresAt := time.Date(2026, 3, 14, 10, 5, 0, 0, time.UTC)
	c := &Challenge{ExpiresAt: expiresAt}

	assert.False(t, c.Expired(expiresAt.Add(-time.Nanosecond)))
	assert.True(t, c.Expired(expiresAt), "invalid at exactly the expiry instant")
	assert.True(t, c.Expired(expiresAt.Add(time.Second)))
}

func TestChannelValid(t *testing.T) {
	assert.True(t, ChannelEmail.Valid())
	assert.True(t, ChannelSMS.Valid())
	assert.False(t, Channel("push").Valid())
	assert.False(t, Channel("").Valid())
}

func TestParseChannel(t *testing.T) {
	assert.Equal(t, ChannelEmail, ParseChannel("email", ""))
	assert.Equal(t, ChannelSMS, ParseChannel("phone", ""))
	assert.Equal(t, ChannelSMS, ParseChannel("sms", ""))

	// Empty channel is inferred from the target shape
	assert.Equal(t, ChannelEmail, ParseChannel("", "user@example.com"))
	assert.Equal(t, ChannelSMS, ParseChannel("", "+14155550123"))

	// Unknown names pass through and fail Valid()
	assert.False(t, ParseChannel("fax", "").Valid())
}

func TestVerifyResultString(t *testing.T) {
	assert.Equal(t, "verified", Verified.String())
	assert.Equal(t, "not_found", VerifyNotFound.String())
	assert.Equal(t, "expired", VerifyExpired.String())
	assert.Equal(t, "too_many_attempts", VerifyTooManyAttempts.String())
	assert.Equal(t, "invalid_code", VerifyInvalidCode.String())
	assert.Equal(t, "unknown", VerifyUnknown.String())
}
