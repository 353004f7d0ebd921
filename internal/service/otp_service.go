package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"otp-service/internal/config"
	"otp-service/internal/gateway"
	"otp-service/internal/hashing"
	"otp-service/internal/model"
	"otp-service/internal/util"
)

// ===================== ERRORS =====================

var (
	ErrInvalidTarget       = errors.New("target must not be empty")
	ErrInvalidChannel      = errors.New("unknown delivery channel")
	ErrCooldownActive      = errors.New("a code was sent recently, wait before requesting another")
	ErrHourlyLimitExceeded = errors.New("hourly code limit reached for this target")
)

// IssueResult reports the outcome of a code request. The challenge is
// stored even when delivery fails, so a retry after the cooldown can
// succeed without invalidating support flows that read Delivered.
type IssueResult struct {
	Delivered bool
	Provider  string
	ExpiresAt time.Time
}

// ===================== SERVICE =====================

// OTPService issues and verifies single-use 6-digit passcodes. At most
// one challenge is pending per target; requesting a new code replaces
// the old one and resets its attempt counter.
type OTPService struct {
	store    model.CredentialStore
	throttle model.AttemptThrottle
	gateway  *gateway.NotificationGateway
	events   model.EventSink
	audit    model.AuditSink
	config   *config.Config

	// injectable for expiry tests
	now func() time.Time
}

func NewOTPService(
	cfg *config.Config,
	store model.CredentialStore,
	throttle model.AttemptThrottle,
	gw *gateway.NotificationGateway,
	events model.EventSink,
	audit model.AuditSink,
) *OTPService {
	return &OTPService{
		store:    store,
		throttle: throttle,
		gateway:  gw,
		events:   events,
		audit:    audit,
		config:   cfg,
		now:      time.Now,
	}
}

// ===================== ISSUANCE =====================

// RequestOTP generates, stores and delivers a fresh passcode for the
// target. Any previously pending challenge for the same target is
// replaced and its attempt count starts over.
func (s *OTPService) RequestOTP(ctx context.Context, target string, channel model.Channel) (*IssueResult, error) {
	target = strings.TrimSpace(target)
	if target == "" {
		return nil, ErrInvalidTarget
	}
	if !channel.Valid() {
		return nil, ErrInvalidChannel
	}

	// The cooldown must only stick when a challenge actually gets stored.
	// If the hourly cap or any later step rejects the request, the lock is
	// released so the caller is not blocked with nothing to verify.
	issued := false
	if s.throttle != nil {
		acquired, err := s.throttle.AcquireCooldown(ctx, target, s.config.OTP.ResendCooldown)
		if err != nil {
			return nil, err
		}
		if !acquired {
			return nil, ErrCooldownActive
		}
		defer func() {
			if !issued {
				if err := s.throttle.ReleaseCooldown(ctx, target); err != nil {
					util.Warn("Failed to release resend cooldown",
						zap.String("target", util.MaskTarget(target)),
						zap.Error(err))
				}
			}
		}()

		count, err := s.throttle.IncrementHourly(ctx, target)
		if err != nil {
			return nil, err
		}
		if count > s.config.OTP.HourlyLimit {
			return nil, ErrHourlyLimitExceeded
		}
	}

	code, err := hashing.GenerateCode()
	if err != nil {
		return nil, err
	}
	salt, err := hashing.GenerateSalt()
	if err != nil {
		return nil, err
	}
	codeHash, err := hashing.HashCode(code, salt)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	challenge := &model.Challenge{
		Target:    target,
		CodeHash:  codeHash,
		Salt:      salt,
		Channel:   channel,
		ExpiresAt: now.Add(s.config.OTP.TTL),
		Attempts:  0,
		CreatedAt: now,
	}

	if err := s.store.Put(ctx, challenge); err != nil {
		return nil, err
	}
	issued = true

	provider := s.gateway.Provider(channel)
	delivered := true
	if err := s.gateway.Deliver(ctx, channel, target, code); err != nil {
		// The challenge stays valid: the user may still receive a delayed
		// message, and the client is told delivery is unconfirmed.
		delivered = false
		util.Warn("Passcode delivery failed",
			zap.String("target", util.MaskTarget(target)),
			zap.String("channel", channel.String()),
			zap.Error(err))
	}

	s.emit(ctx, target, &model.SecurityEvent{
		Type:     model.EventOTPRequested,
		Channel:  channel,
		Outcome:  deliveryOutcome(delivered),
		Provider: provider,
	})

	util.Info("Passcode issued",
		zap.String("target", util.MaskTarget(target)),
		zap.String("channel", channel.String()),
		zap.Bool("delivered", delivered),
		zap.Time("expires_at", challenge.ExpiresAt))

	return &IssueResult{
		Delivered: delivered,
		Provider:  provider,
		ExpiresAt: challenge.ExpiresAt,
	}, nil
}

func deliveryOutcome(delivered bool) string {
	if delivered {
		return "delivered"
	}
	return "delivery_failed"
}

// ===================== VERIFICATION =====================

// VerifyOTP checks a submitted code against the pending challenge.
// Checks run in a fixed order: existence, expiry, attempt exhaustion,
// then the hash comparison. A correct code consumes the challenge; a
// wrong one burns an attempt.
func (s *OTPService) VerifyOTP(ctx context.Context, target, code string) (model.VerifyResult, error) {
	target = strings.TrimSpace(target)
	if target == "" {
		return model.VerifyUnknown, ErrInvalidTarget
	}

	if s.config.BypassCodeActive() && code == s.config.OTP.DevBypassCode {
		_ = s.store.Delete(ctx, target)
		util.Warn("Bypass code accepted",
			zap.String("target", util.MaskTarget(target)))
		return model.Verified, nil
	}

	challenge, err := s.store.Get(ctx, target)
	if err != nil {
		if errors.Is(err, model.ErrChallengeNotFound) {
			s.emitVerify(ctx, target, model.VerifyNotFound, 0, "")
			return model.VerifyNotFound, nil
		}
		return model.VerifyUnknown, err
	}

	if challenge.Expired(s.now().UTC()) {
		if err := s.store.Delete(ctx, target); err != nil {
			return model.VerifyUnknown, err
		}
		s.emitVerify(ctx, target, model.VerifyExpired, challenge.Attempts, challenge.Channel.String())
		return model.VerifyExpired, nil
	}

	if challenge.Attempts >= s.config.OTP.MaxAttempts {
		if err := s.store.Delete(ctx, target); err != nil {
			return model.VerifyUnknown, err
		}
		s.emitVerify(ctx, target, model.VerifyTooManyAttempts, challenge.Attempts, challenge.Channel.String())
		return model.VerifyTooManyAttempts, nil
	}

	match, err := hashing.VerifyCode(code, challenge.Salt, challenge.CodeHash)
	if err != nil {
		return model.VerifyUnknown, err
	}

	if !match {
		attempts, err := s.store.IncrementAttempts(ctx, target)
		if err != nil && !errors.Is(err, model.ErrChallengeNotFound) {
			return model.VerifyUnknown, err
		}
		if attempts >= s.config.OTP.MaxAttempts {
			s.emit(ctx, target, &model.SecurityEvent{
				Type:     model.EventOTPLocked,
				Channel:  challenge.Channel,
				Outcome:  model.VerifyTooManyAttempts.String(),
				Attempts: attempts,
			})
		}
		s.emitVerify(ctx, target, model.VerifyInvalidCode, attempts, challenge.Channel.String())
		return model.VerifyInvalidCode, nil
	}

	// Single use: the challenge is consumed before success is reported.
	if err := s.store.Delete(ctx, target); err != nil {
		return model.VerifyUnknown, err
	}

	s.emit(ctx, target, &model.SecurityEvent{
		Type:     model.EventOTPVerified,
		Channel:  challenge.Channel,
		Outcome:  model.Verified.String(),
		Attempts: challenge.Attempts,
	})

	util.Info("Passcode verified",
		zap.String("target", util.MaskTarget(target)),
		zap.String("channel", challenge.Channel.String()))

	return model.Verified, nil
}

// ===================== OBSERVABILITY =====================

func (s *OTPService) emitVerify(ctx context.Context, target string, result model.VerifyResult, attempts int, channel string) {
	eventType := model.EventOTPRejected
	if result == model.Verified {
		eventType = model.EventOTPVerified
	}
	s.emit(ctx, target, &model.SecurityEvent{
		Type:     eventType,
		Channel:  model.Channel(channel),
		Outcome:  result.String(),
		Attempts: attempts,
	})
}

// emit publishes a security event and records the audit row. Both are
// best-effort: observability never fails the request path.
func (s *OTPService) emit(ctx context.Context, target string, event *model.SecurityEvent) {
	event.EventID = uuid.New().String()
	event.TargetHash = hashing.HashTarget(target)
	event.OccurredAt = s.now().UTC()

	if s.events != nil {
		s.events.Publish(ctx, event)
	}
	if s.audit != nil {
		if err := s.audit.RecordOutcome(ctx, target, event); err != nil {
			util.Warn("Audit record failed",
				zap.String("event_type", event.Type),
				zap.Error(err))
		}
	}
}
