package model

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Channel identifies the delivery route for a passcode.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

func (c Channel) String() string {
	return string(c)
}

// Valid reports whether the channel is one the gateway can deliver on.
func (c Channel) Valid() bool {
	return c == ChannelEmail || c == ChannelSMS
}

// ParseChannel normalizes a caller-supplied channel name. "phone" is the
// public API spelling for the SMS route. An empty name is inferred from
// the target: addresses with an @ go to email, everything else to SMS.
func ParseChannel(name, target string) Channel {
	switch name {
	case "email":
		return ChannelEmail
	case "phone", "sms":
		return ChannelSMS
	case "":
		if strings.Contains(target, "@") {
			return ChannelEmail
		}
		return ChannelSMS
	default:
		return Channel(name)
	}
}

// -------------------- CHALLENGE MODEL --------------------

// Challenge is the single pending passcode record for a target.
// Only the salted HMAC of the code is ever stored; the plaintext code
// exists in memory during issuance and in the outbound message body.
type Challenge struct {
	Target    string    `json:"target"`
	CodeHash  string    `json:"code_hash"`
	Salt      string    `json:"salt"`
	Channel   Channel   `json:"channel"`
	ExpiresAt time.Time `json:"expires_at"`
	Attempts  int       `json:"attempts"`
	CreatedAt time.Time `json:"created_at"`
}

// Expired reports whether the challenge is invalid at the given instant.
// A challenge is unusable at exactly ExpiresAt, not only after it.
func (c *Challenge) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// -------------------- VERIFICATION RESULT --------------------

// VerifyResult is the verdict of a single verification attempt.
type VerifyResult int

const (
	VerifyUnknown VerifyResult = iota
	Verified
	VerifyNotFound
	VerifyExpired
	VerifyTooManyAttempts
	VerifyInvalidCode
)

func (r VerifyResult) String() string {
	switch r {
	case Verified:
		return "verified"
	case VerifyNotFound:
		return "not_found"
	case VerifyExpired:
		return "expired"
	case VerifyTooManyAttempts:
		return "too_many_attempts"
	case VerifyInvalidCode:
		return "invalid_code"
	default:
		return "unknown"
	}
}

// -------------------- SECURITY EVENT MODEL --------------------

// Event types emitted by the verification service.
const (
	EventOTPRequested = "otp.requested"
	EventOTPVerified  = "otp.verified"
	EventOTPRejected  = "otp.rejected"
	EventOTPLocked    = "otp.locked"
)

// SecurityEvent is the observability record for one issuance or
// verification outcome. It carries only the hashed target.
type SecurityEvent struct {
	EventID    string    `json:"event_id"`
	Type       string    `json:"type"`
	TargetHash string    `json:"target_hash"`
	Channel    Channel   `json:"channel"`
	Outcome    string    `json:"outcome"`
	Attempts   int       `json:"attempts"`
	Provider   string    `json:"provider"`
	OccurredAt time.Time `json:"occurred_at"`
}

// -------------------- STORE & SINK INTERFACES --------------------

// ErrChallengeNotFound is returned by CredentialStore.Get when no pending
// challenge exists for the target.
var ErrChallengeNotFound = errors.New("no pending challenge for target")

// CredentialStore is the external record store holding at most one pending
// challenge per target. Put replaces any existing record. IncrementAttempts
// must be atomic at the store so that racing wrong-code submissions
// serialize instead of losing increments.
type CredentialStore interface {
	Put(ctx context.Context, challenge *Challenge) error
	Get(ctx context.Context, target string) (*Challenge, error)
	Delete(ctx context.Context, target string) error
	IncrementAttempts(ctx context.Context, target string) (int, error)
}

// AttemptThrottle limits how often codes may be issued for one target.
// ReleaseCooldown undoes AcquireCooldown when issuance fails after the
// lock was taken, so a rejected request does not block the next one.
type AttemptThrottle interface {
	AcquireCooldown(ctx context.Context, target string, ttl time.Duration) (bool, error)
	ReleaseCooldown(ctx context.Context, target string) error
	IncrementHourly(ctx context.Context, target string) (int, error)
}

// EventSink receives security events; implementations are best-effort and
// must never fail the request path.
type EventSink interface {
	Publish(ctx context.Context, event *SecurityEvent)
}

// AuditSink records verification outcomes durably for investigation.
type AuditSink interface {
	RecordOutcome(ctx context.Context, target string, event *SecurityEvent) error
}
