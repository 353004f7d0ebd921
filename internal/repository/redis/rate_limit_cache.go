package redis

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"otp-service/internal/client"
	"otp-service/internal/hashing"
	"otp-service/internal/model"
	"otp-service/internal/util"
)

const (
	cooldownPrefix    = "otp:cooldown:"
	hourlyCountPrefix = "otp:hourly:"
)

// RateLimitCache throttles issuance per target: a short cooldown between
// consecutive sends plus a fixed-window hourly cap. Verification attempts
// are throttled by the challenge's own attempt counter, not here.
type RateLimitCache struct {
	client *client.RedisClient
}

func NewRateLimitCache(client *client.RedisClient) *RateLimitCache {
	return &RateLimitCache{client: client}
}

var _ model.AttemptThrottle = (*RateLimitCache)(nil)

// AcquireCooldown takes the per-target resend lock. Returns false while a
// previous send is still cooling down.
func (c *RateLimitCache) AcquireCooldown(ctx context.Context, target string, ttl time.Duration) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	key := cooldownPrefix + hashing.HashTarget(target)
	acquired, err := c.client.SetNX(ctx, key, "locked", ttl)
	if err != nil {
		util.Error("Failed to acquire resend cooldown",
			zap.String("target", util.MaskTarget(target)),
			zap.Error(err))
		return false, fmt.Errorf("failed to acquire resend cooldown: %w", err)
	}

	if !acquired {
		util.Debug("Resend cooldown active",
			zap.String("target", util.MaskTarget(target)))
	}
	return acquired, nil
}

// ReleaseCooldown drops the resend lock after a failed issuance. Without
// this a request rejected for the hourly cap would still hold the
// cooldown with no challenge to show for it.
func (c *RateLimitCache) ReleaseCooldown(ctx context.Context, target string) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	key := cooldownPrefix + hashing.HashTarget(target)
	if err := c.client.Del(ctx, key); err != nil {
		util.Error("Failed to release resend cooldown",
			zap.String("target", util.MaskTarget(target)),
			zap.Error(err))
		return fmt.Errorf("failed to release resend cooldown: %w", err)
	}
	return nil
}

// IncrementHourly bumps the fixed-window issuance counter for a target
// and returns the new count.
func (c *RateLimitCache) IncrementHourly(ctx context.Context, target string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	key := hourlyCountPrefix + hashing.HashTarget(target)
	count, err := c.client.IncrWithExpire(ctx, key, time.Hour)
	if err != nil {
		util.Error("Failed to increment hourly issuance counter",
			zap.String("target", util.MaskTarget(target)),
			zap.Error(err))
		return 0, fmt.Errorf("failed to increment hourly issuance counter: %w", err)
	}

	return int(count), nil
}

// Reset clears all throttling state for a target. Used by support tooling
// after a verified account-recovery escalation.
func (c *RateLimitCache) Reset(ctx context.Context, target string) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	hash := hashing.HashTarget(target)
	keys := []string{
		cooldownPrefix + hash,
		hourlyCountPrefix + hash,
	}

	if err := c.client.Del(ctx, keys...); err != nil {
		util.Error("Failed to reset issuance throttle",
			zap.String("target", util.MaskTarget(target)),
			zap.Error(err))
		return fmt.Errorf("failed to reset issuance throttle: %w", err)
	}
	return nil
}
