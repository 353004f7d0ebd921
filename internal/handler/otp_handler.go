package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"otp-service/internal/model"
	"otp-service/internal/service"
	"otp-service/internal/util"
)

// OTPHandler exposes passcode issuance and verification over HTTP.
type OTPHandler struct {
	service *service.OTPService
}

func NewOTPHandler(svc *service.OTPService) *OTPHandler {
	return &OTPHandler{service: svc}
}

func (h *OTPHandler) RegisterRoutes(r chi.Router) {
	r.Post("/send-otp", h.SendOTP)
	r.Post("/verify-otp", h.VerifyOTP)
}

// ===================== REQUEST / RESPONSE =====================

type sendOTPRequest struct {
	Target  string `json:"target"`
	Channel string `json:"channel"`
}

type sendOTPResponse struct {
	OK        bool `json:"ok"`
	Delivered bool `json:"delivered"`
}

type verifyOTPRequest struct {
	Target string `json:"target"`
	OTP    string `json:"otp"`
}

type verifyOTPResponse struct {
	Success bool `json:"success"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// ===================== HANDLERS =====================

// SendOTP issues a fresh passcode and delivers it over the requested
// channel. Delivery failure is not an error: the code is stored and the
// response carries delivered=false.
func (h *OTPHandler) SendOTP(w http.ResponseWriter, r *http.Request) {
	var req sendOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.service.RequestOTP(r.Context(), req.Target, model.ParseChannel(req.Channel, req.Target))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidTarget), errors.Is(err, service.ErrInvalidChannel):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrCooldownActive), errors.Is(err, service.ErrHourlyLimitExceeded):
			writeError(w, http.StatusTooManyRequests, err.Error())
		default:
			util.Error("Failed to issue passcode", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	writeJSON(w, http.StatusOK, sendOTPResponse{OK: true, Delivered: result.Delivered})
}

// VerifyOTP checks a submitted code. Every rejection reason maps to its
// own message so clients can show a precise prompt.
func (h *OTPHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req verifyOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.OTP) == "" {
		writeError(w, http.StatusBadRequest, "otp is required")
		return
	}

	result, err := h.service.VerifyOTP(r.Context(), req.Target, req.OTP)
	if err != nil {
		if errors.Is(err, service.ErrInvalidTarget) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		util.Error("Failed to verify passcode", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	switch result {
	case model.Verified:
		writeJSON(w, http.StatusOK, verifyOTPResponse{Success: true})
	case model.VerifyNotFound:
		writeError(w, http.StatusBadRequest, "No pending OTP")
	case model.VerifyExpired:
		writeError(w, http.StatusBadRequest, "OTP expired")
	case model.VerifyTooManyAttempts:
		writeError(w, http.StatusTooManyRequests, "Too many attempts")
	case model.VerifyInvalidCode:
		writeError(w, http.StatusBadRequest, "Invalid OTP")
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// ===================== HELPERS =====================

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		util.Error("Failed to encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
