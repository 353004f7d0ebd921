package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"otp-service/internal/client"
	"otp-service/internal/hashing"
	"otp-service/internal/model"
	"otp-service/internal/util"
)

const (
	challengePrefix = "otp:challenge:"

	fieldTarget    = "target"
	fieldCodeHash  = "code_hash"
	fieldSalt      = "salt"
	fieldChannel   = "channel"
	fieldExpiresAt = "expires_at"
	fieldAttempts  = "attempts"
	fieldCreatedAt = "created_at"

	opTimeout = 5 * time.Second

	// Keys outlive the logical expiry so a late verification still gets a
	// distinct "expired" verdict before the store garbage-collects it.
	expiryGrace = time.Hour
)

// incrementAttemptsScript bumps the attempts field only if the challenge
// still exists. HINCRBY on a missing key would resurrect it as a bare
// counter with no TTL.
const incrementAttemptsScript = `
if redis.call('EXISTS', KEYS[1]) == 1 then
  return redis.call('HINCRBY', KEYS[1], 'attempts', 1)
end
return -1
`

// ChallengeStore is the Redis-backed CredentialStore. One hash per target,
// replaced wholesale on re-issue, attempts bumped atomically server-side.
type ChallengeStore struct {
	client *client.RedisClient
}

func NewChallengeStore(client *client.RedisClient) *ChallengeStore {
	return &ChallengeStore{client: client}
}

var _ model.CredentialStore = (*ChallengeStore)(nil)

func challengeKey(target string) string {
	return challengePrefix + hashing.HashTarget(target)
}

// Put stores a challenge, replacing any pending one for the same target.
func (s *ChallengeStore) Put(ctx context.Context, challenge *model.Challenge) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	key := challengeKey(challenge.Target)
	ttl := time.Until(challenge.ExpiresAt) + expiryGrace

	err := s.client.HSetWithExpire(ctx, key, ttl,
		fieldTarget, challenge.Target,
		fieldCodeHash, challenge.CodeHash,
		fieldSalt, challenge.Salt,
		fieldChannel, challenge.Channel.String(),
		fieldExpiresAt, strconv.FormatInt(challenge.ExpiresAt.UnixMilli(), 10),
		fieldAttempts, strconv.Itoa(challenge.Attempts),
		fieldCreatedAt, strconv.FormatInt(challenge.CreatedAt.UnixMilli(), 10),
	)
	if err != nil {
		util.Error("Failed to store challenge",
			zap.String("target", util.MaskTarget(challenge.Target)),
			zap.Error(err))
		return fmt.Errorf("failed to store challenge: %w", err)
	}

	util.Debug("Challenge stored",
		zap.String("target", util.MaskTarget(challenge.Target)),
		zap.Time("expires_at", challenge.ExpiresAt))
	return nil
}

// Get fetches the pending challenge for a target, or ErrChallengeNotFound.
func (s *ChallengeStore) Get(ctx context.Context, target string) (*model.Challenge, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	fields, err := s.client.HGetAll(ctx, challengeKey(target))
	if err != nil {
		util.Error("Failed to fetch challenge",
			zap.String("target", util.MaskTarget(target)),
			zap.Error(err))
		return nil, fmt.Errorf("failed to fetch challenge: %w", err)
	}
	if len(fields) == 0 {
		return nil, model.ErrChallengeNotFound
	}

	return parseChallenge(target, fields)
}

// Delete removes the pending challenge. Deleting an absent record is not
// an error: expiry, exhaustion, and success races all converge on "gone".
func (s *ChallengeStore) Delete(ctx context.Context, target string) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if err := s.client.Del(ctx, challengeKey(target)); err != nil {
		util.Error("Failed to delete challenge",
			zap.String("target", util.MaskTarget(target)),
			zap.Error(err))
		return fmt.Errorf("failed to delete challenge: %w", err)
	}
	return nil
}

// IncrementAttempts atomically bumps the failed-attempt counter and
// returns the new value. Two racing wrong submissions each observe a
// distinct count; the caller never read-modify-writes.
func (s *ChallengeStore) IncrementAttempts(ctx context.Context, target string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := s.client.Eval(ctx, incrementAttemptsScript, []string{challengeKey(target)})
	if err != nil {
		util.Error("Failed to increment challenge attempts",
			zap.String("target", util.MaskTarget(target)),
			zap.Error(err))
		return 0, fmt.Errorf("failed to increment challenge attempts: %w", err)
	}

	count, ok := res.(int64)
	if !ok {
		return 0, fmt.Errorf("unexpected increment result type %T", res)
	}
	if count < 0 {
		return 0, model.ErrChallengeNotFound
	}

	util.Debug("Challenge attempts incremented",
		zap.String("target", util.MaskTarget(target)),
		zap.Int("attempts", int(count)))
	return int(count), nil
}

func parseChallenge(target string, fields map[string]string) (*model.Challenge, error) {
	expiresMs, err := strconv.ParseInt(fields[fieldExpiresAt], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("corrupt challenge record: bad expires_at: %w", err)
	}
	createdMs, err := strconv.ParseInt(fields[fieldCreatedAt], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("corrupt challenge record: bad created_at: %w", err)
	}
	attempts, err := strconv.Atoi(fields[fieldAttempts])
	if err != nil {
		return nil, fmt.Errorf("corrupt challenge record: bad attempts: %w", err)
	}

	return &model.Challenge{
		Target:    target,
		CodeHash:  fields[fieldCodeHash],
		Salt:      fields[fieldSalt],
		Channel:   model.Channel(fields[fieldChannel]),
		ExpiresAt: time.UnixMilli(expiresMs).UTC(),
		Attempts:  attempts,
		CreatedAt: time.UnixMilli(createdMs).UTC(),
	}, nil
}
