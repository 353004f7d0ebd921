package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBypassCodeActive(t *testing.T) {
	cfg := &Config{Environment: "development", OTP: OTPConfig{DevBypassCode: "424242"}}
	assert.True(t, cfg.BypassCodeActive())

	cfg.Environment = "production"
	assert.False(t, cfg.BypassCodeActive(), "bypass never fires in production")

	cfg.Environment = "development"
	cfg.OTP.DevBypassCode = ""
	assert.False(t, cfg.BypassCodeActive())
}

func TestGetEnvDuration(t *testing.T) {
	t.Setenv("TEST_DURATION", "90s")
	assert.Equal(t, 90*time.Second, getEnvDuration("TEST_DURATION", time.Minute))

	t.Setenv("TEST_DURATION", "300")
	assert.Equal(t, 300*time.Second, getEnvDuration("TEST_DURATION", time.Minute), "bare seconds accepted")

	t.Setenv("TEST_DURATION", "garbage")
	assert.Equal(t, time.Minute, getEnvDuration("TEST_DURATION", time.Minute))
}

func TestGetEnvList(t *testing.T) {
	t.Setenv("TEST_LIST", "a, b ,c,,")
	assert.Equal(t, []string{"a", "b", "c"}, getEnvList("TEST_LIST", ""))

	assert.Equal(t, []string{"localhost:9042"}, getEnvList("TEST_LIST_MISSING", "localhost:9042"))
}

func TestGetServerAddress(t *testing.T) {
	cfg := &Config{Server: ServerConfig{Host: "0.0.0.0", Port: 8080}}
	assert.Equal(t, "0.0.0.0:8080", cfg.GetServerAddress())
}
