package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"otp-service/internal/config"
	"otp-service/internal/gateway"
	"otp-service/internal/model"
	"otp-service/internal/service"
	"otp-service/internal/util"
)

type stubStore struct {
	mu         sync.Mutex
	challenges map[string]*model.Challenge
}

func newStubStore() *stubStore {
	return &stubStore{challenges: make(map[string]*model.Challenge)}
}

func (s *stubStore) Put(_ context.Context, c *model.Challenge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *c
	s.challenges[c.Target] = &cp
	return nil
}

func (s *stubStore) Get(_ context.Context, target string) (*model.Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.challenges[target]
	if !ok {
		return nil, model.ErrChallengeNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *stubStore) Delete(_ context.Context, target string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.challenges, target)
	return nil
}

func (s *stubStore) IncrementAttempts(_ context.Context, target string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.challenges[target]
	if !ok {
		return 0, model.ErrChallengeNotFound
	}
	c.Attempts++
	return c.Attempts, nil
}

type stubSender struct {
	mu       sync.Mutex
	lastBody string
}

func (s *stubSender) Name() string { return "stub" }

func (s *stubSender) Send(_ context.Context, _ string, msg gateway.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastBody = msg.Body
	return nil
}

// The email body carries hex colors with six-digit runs, so the code is
// anchored by its markup position; SMS bodies start with the code.
var (
	htmlCodePattern = regexp.MustCompile(`>(\d{6})<`)
	smsCodePattern  = regexp.MustCompile(`^\d{6}`)
)

func (s *stubSender) lastCode() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m := htmlCodePattern.FindStringSubmatch(s.lastBody); m != nil {
		return m[1]
	}
	return smsCodePattern.FindString(s.lastBody)
}

func newTestServer(t *testing.T) (http.Handler, *stubSender) {
	t.Helper()

	cfg := &config.Config{
		Environment: "test",
		OTP: config.OTPConfig{
			TTL:            5 * time.Minute,
			MaxAttempts:    5,
			ResendCooldown: 60 * time.Second,
			HourlyLimit:    10,
		},
	}

	sender := &stubSender{}
	gw := gateway.NewNotificationGateway()
	gw.Register(model.ChannelEmail, sender)
	gw.Register(model.ChannelSMS, sender)

	svc := service.NewOTPService(cfg, newStubStore(), nil, gw, nil, nil)
	router := NewRouter(NewOTPHandler(svc), util.Get())
	return router, sender
}

func postJSON(t *testing.T, h http.Handler, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	raw, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestSendOTPEndpoint(t *testing.T) {
	router, sender := newTestServer(t)

	rec := postJSON(t, router, "/api/v1/send-otp", map[string]string{
		"target":  "user@example.com",
		"channel": "email",
	})

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		OK        bool `json:"ok"`
		Delivered bool `json:"delivered"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.OK)
	assert.True(t, resp.Delivered)
	assert.Len(t, sender.lastCode(), 6)
}

func TestSendOTPPhoneChannelAlias(t *testing.T) {
	router, sender := newTestServer(t)

	rec := postJSON(t, router, "/api/v1/send-otp", map[string]string{
		"target":  "+14155550123",
		"channel": "phone",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, sender.lastCode(), 6)
}

func TestSendOTPRejectsBadChannel(t *testing.T) {
	router, _ := newTestServer(t)

	rec := postJSON(t, router, "/api/v1/send-otp", map[string]string{
		"target":  "user@example.com",
		"channel": "fax",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSendOTPRejectsMalformedBody(t *testing.T) {
	router, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/send-otp", bytes.NewReader([]byte("{broken")))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestVerifyOTPEndToEnd(t *testing.T) {
	router, sender := newTestServer(t)

	rec := postJSON(t, router, "/api/v1/send-otp", map[string]string{
		"target":  "user@example.com",
		"channel": "email",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	code := sender.lastCode()

	rec = postJSON(t, router, "/api/v1/verify-otp", map[string]string{
		"target": "user@example.com",
		"otp":    code,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Success bool `json:"success"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)

	// Same code again: the challenge was consumed
	rec = postJSON(t, router, "/api/v1/verify-otp", map[string]string{
		"target": "user@example.com",
		"otp":    code,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "No pending OTP")
}

func TestVerifyOTPWrongCode(t *testing.T) {
	router, sender := newTestServer(t)

	rec := postJSON(t, router, "/api/v1/send-otp", map[string]string{
		"target":  "user@example.com",
		"channel": "email",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	wrong := "000000"
	if wrong == sender.lastCode() {
		wrong = "000001"
	}

	rec = postJSON(t, router, "/api/v1/verify-otp", map[string]string{
		"target": "user@example.com",
		"otp":    wrong,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid OTP")
}

func TestVerifyOTPRejectsEmptyCode(t *testing.T) {
	router, sender := newTestServer(t)

	rec := postJSON(t, router, "/api/v1/send-otp", map[string]string{
		"target":  "user@example.com",
		"channel": "email",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	code := sender.lastCode()

	// Missing and blank codes are caller errors, rejected before the
	// service runs
	for _, body := range []map[string]string{
		{"target": "user@example.com"},
		{"target": "user@example.com", "otp": "   "},
	} {
		rec = postJSON(t, router, "/api/v1/verify-otp", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "otp is required")
	}

	// No attempt was burned: the real code still verifies
	rec = postJSON(t, router, "/api/v1/verify-otp", map[string]string{
		"target": "user@example.com",
		"otp":    code,
	})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestVerifyOTPTooManyAttempts(t *testing.T) {
	router, sender := newTestServer(t)

	rec := postJSON(t, router, "/api/v1/send-otp", map[string]string{
		"target":  "user@example.com",
		"channel": "email",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	code := sender.lastCode()

	wrong := "000000"
	if wrong == code {
		wrong = "000001"
	}

	for i := 0; i < 5; i++ {
		rec = postJSON(t, router, "/api/v1/verify-otp", map[string]string{
			"target": "user@example.com",
			"otp":    wrong,
		})
		require.Equal(t, http.StatusBadRequest, rec.Code)
	}

	rec = postJSON(t, router, "/api/v1/verify-otp", map[string]string{
		"target": "user@example.com",
		"otp":    code,
	})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), "Too many attempts")
}

func TestHealthEndpoint(t *testing.T) {
	router, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
}

func TestUnknownRouteReturnsJSON404(t *testing.T) {
	router, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/nope", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "endpoint not found")
}
