// Copyright (c) 2026 Solterra. All rights reserved.
// Author: platform@solterra.group

package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/solterra/solterra-api/internal/platform/constants"
)

// RedisThrottleRepository implements ThrottleRepository using Redis.
//
// Counters live exclusively in Redis: they must expire on their own and are
// hit on every login attempt, so they stay off the primary database.
type RedisThrottleRepository struct {
	client *redis.Client
}

// NewThrottleRepository creates a new Redis-backed ThrottleRepository.
func NewThrottleRepository(client *redis.Client) *RedisThrottleRepository {
	return &RedisThrottleRepository{client: client}
}

/*
RecordFailure increments the failed-login counter for the identifier.

Description: The expiry is armed only when the key is created, so the lockout
window is anchored at the first failure rather than sliding with each one.

Parameters:
  - context: context.Context
  - identifier: string
  - window: time.Duration

Returns:
  - int64: Failure count within the current window
  - error: Execution errors
*/
func (repository *RedisThrottleRepository) RecordFailure(context context.Context, identifier string, window time.Duration) (int64, error) {
	key := constants.RedisPrefixLockout + identifier

	count, err := repository.client.Incr(context, key).Result()
	if err != nil {
		return 0, fmt.Errorf("redis_throttle_record_failure_failed: %w", err)
	}

	if count == 1 {
		if err := repository.client.Expire(context, key, window).Err(); err != nil {
			return count, fmt.Errorf("redis_throttle_expire_failed: %w", err)
		}
	}

	return count, nil
}

/*
Failures returns the current failed-login count for the identifier.

Parameters:
  - context: context.Context
  - identifier: string

Returns:
  - int64: Failure count, zero when absent
  - error: Execution errors
*/
func (repository *RedisThrottleRepository) Failures(context context.Context, identifier string) (int64, error) {
	key := constants.RedisPrefixLockout + identifier

	count, err := repository.client.Get(context, key).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("redis_throttle_failures_failed: %w", err)
	}

	return count, nil
}

/*
ClearFailures removes the failed-login counter.

Parameters:
  - context: context.Context
  - identifier: string

Returns:
  - error: Execution errors
*/
func (repository *RedisThrottleRepository) ClearFailures(context context.Context, identifier string) error {
	key := constants.RedisPrefixLockout + identifier

	if err := repository.client.Del(context, key).Err(); err != nil {
		return fmt.Errorf("redis_throttle_clear_failed: %w", err)
	}

	return nil
}

/*
MarkResend arms the resend cooldown for the principal if not already armed.

Description: SETNX gives the check-and-arm a single atomic step, so two
concurrent resend requests cannot both pass the cooldown.

Parameters:
  - context: context.Context
  - principalID: string
  - cooldown: time.Duration

Returns:
  - bool: Whether the resend is allowed
  - error: Execution errors
*/
func (repository *RedisThrottleRepository) MarkResend(context context.Context, principalID string, cooldown time.Duration) (bool, error) {
	key := constants.RedisPrefixResendCooldown + principalID

	allowed, err := repository.client.SetNX(context, key, 1, cooldown).Result()
	if err != nil {
		return false, fmt.Errorf("redis_throttle_mark_resend_failed: %w", err)
	}

	return allowed, nil
}
