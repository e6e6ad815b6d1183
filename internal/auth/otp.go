// Copyright (c) 2026 Solterra. All rights reserved.
// Author: platform@solterra.group

package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/solterra/solterra-api/internal/audit"
	"github.com/solterra/solterra-api/internal/notify"
	"github.com/solterra/solterra-api/internal/platform/apperr"
	"github.com/solterra/solterra-api/internal/platform/obs"
	"github.com/solterra/solterra-api/internal/platform/sec"
	"github.com/solterra/solterra-api/pkg/uuid"
)

// recentChallengeDepth is how many recent challenges Verify inspects when
// classifying a stale code as consumed rather than merely wrong.
const recentChallengeDepth = 3

// OTPConfig carries the tunable passcode parameters.
type OTPConfig struct {
	// Digits is the passcode length.
	Digits int
	// TTL is the challenge lifetime.
	TTL time.Duration
	// MaxAttempts is the verification attempt budget per challenge.
	MaxAttempts int
	// ResendCooldown is the minimum gap between delivery requests.
	ResendCooldown time.Duration
}

// OTPManager issues, delivers, and verifies one-time passcodes.
//
// # Invariants
//
//   - At most one live challenge per principal; issuing supersedes.
//   - Plaintext codes are never stored, only SHA-256 hashes.
//   - A consumed challenge never verifies again.
type OTPManager struct {
	challenges ChallengeRepository
	throttle   ThrottleRepository
	sender     notify.CodeSender
	recorder   audit.Recorder
	config     OTPConfig
}

// NewOTPManager constructs a new [OTPManager].
func NewOTPManager(
	challenges ChallengeRepository,
	throttle ThrottleRepository,
	sender notify.CodeSender,
	recorder audit.Recorder,
	config OTPConfig,
) *OTPManager {
	return &OTPManager{
		challenges: challenges,
		throttle:   throttle,
		sender:     sender,
		recorder:   recorder,
		config:     config,
	}
}

/*
Issue creates a fresh challenge for the principal and delivers its code.

Description: Any prior live challenge is superseded first, so at most one
challenge can verify at any instant. Delivery failure after the sender's
bounded retries surfaces ErrDeliveryFailed, but the challenge stays live; the
principal may request a resend without restarting the login flow.

Parameters:
  - context: context.Context
  - principal: *Principal (delivery target)

Returns:
  - error: ErrDeliveryFailed or storage failures
*/
func (manager *OTPManager) Issue(context context.Context, principal *Principal) error {
	code, err := sec.GenerateNumericCode(manager.config.Digits)
	if err != nil {
		return fmt.Errorf("otp_manager_generate_failed: %w", err)
	}

	now := time.Now()
	challenge := &Challenge{
		ID:          uuid.New(),
		PrincipalID: principal.ID,
		CodeHash:    sec.HashToken(code),
		IssuedAt:    now,
		ExpiresAt:   now.Add(manager.config.TTL),
		Attempts:    0,
		Consumed:    false,
	}

	if err := manager.challenges.Supersede(context, challenge); err != nil {
		return fmt.Errorf("otp_manager_persist_failed: %w", err)
	}

	manager.recorder.Record(context, audit.Event{
		Action:      audit.ActionOTPIssued,
		PrincipalID: principal.ID,
	})

	if err := manager.sender.SendCode(context, principal.Email, code, manager.config.TTL); err != nil {
		// The challenge stays live; only the delivery is reported failed.
		return errors.Join(ErrDeliveryFailed, err)
	}

	return nil
}

/*
Resend issues a fresh challenge after the cooldown gate.

Description: Plaintext codes are never stored, so a resend supersedes the
current challenge with a brand-new code rather than re-sending the old one.
The cooldown prevents a principal-targeted delivery flood.

Parameters:
  - context: context.Context
  - principal: *Principal

Returns:
  - error: apperr.RateLimited, ErrDeliveryFailed, or storage failures
*/
func (manager *OTPManager) Resend(context context.Context, principal *Principal) error {
	allowed, err := manager.throttle.MarkResend(context, principal.ID, manager.config.ResendCooldown)
	if err != nil {
		return fmt.Errorf("otp_manager_cooldown_failed: %w", err)
	}
	if !allowed {
		return apperr.RateLimited(int(manager.config.ResendCooldown.Seconds()))
	}

	if err := manager.Issue(context, principal); err != nil {
		return err
	}

	manager.recorder.Record(context, audit.Event{
		Action:      audit.ActionOTPResent,
		PrincipalID: principal.ID,
	})

	return nil
}

/*
Verify checks a presented code against the principal's current challenge.

Description: The checks run in a fixed order. No challenge at all means
ErrNoActiveChallenge. A consumed or superseded challenge whose hash matches
the presented code means ErrOTPConsumed, so a replayed or stale code is named
as such rather than reported as a mismatch. Expiry is judged against the
stored timestamp at call time. The attempt budget is enforced before the hash
comparison, so an exhausted challenge rejects even the correct code.
Consumption is a compare-and-swap: of two concurrent correct submissions,
exactly one succeeds and the other observes ErrOTPConsumed.

Parameters:
  - context: context.Context
  - principalID: string
  - code: string

Returns:
  - error: nil on success, otherwise one of the passcode error taxonomy
*/
func (manager *OTPManager) Verify(context context.Context, principalID, code string) error {
	challenges, err := manager.challenges.RecentByPrincipal(context, principalID, recentChallengeDepth)
	if err != nil {
		return fmt.Errorf("otp_manager_lookup_failed: %w", err)
	}

	if len(challenges) == 0 {
		obs.IncOTPVerification("no_challenge")
		return ErrNoActiveChallenge
	}

	codeHash := sec.HashToken(code)
	current := challenges[0]

	// ── 1. Consumed / Superseded ──────────────────────────────────────────
	if current.Consumed {
		if manager.matchesAnyConsumed(challenges, codeHash) {
			obs.IncOTPVerification("consumed")
			return manager.reject(context, principalID, ErrOTPConsumed, "replayed code")
		}
		obs.IncOTPVerification("no_challenge")
		return ErrNoActiveChallenge
	}

	// ── 2. Expiry ─────────────────────────────────────────────────────────
	if time.Now().After(current.ExpiresAt) {
		// Dead challenge; retire it so it cannot linger half-live.
		if _, err := manager.challenges.Consume(context, current.ID); err != nil {
			return fmt.Errorf("otp_manager_expire_failed: %w", err)
		}
		obs.IncOTPVerification("expired")
		return manager.reject(context, principalID, ErrOTPExpired, "expired code")
	}

	// ── 3. Attempt Budget ─────────────────────────────────────────────────
	// Enforced before the comparison: an exhausted challenge rejects even
	// the correct code.
	if current.Attempts >= manager.config.MaxAttempts {
		obs.IncOTPVerification("attempts_exceeded")
		return manager.reject(context, principalID, ErrOTPAttemptsExceeded, "attempt budget exhausted")
	}

	// ── 4. Comparison ─────────────────────────────────────────────────────
	if !sec.TokensEqual(codeHash, current.CodeHash) {
		if _, err := manager.challenges.IncrementAttempts(context, current.ID); err != nil {
			return fmt.Errorf("otp_manager_increment_failed: %w", err)
		}
		if manager.matchesAnyConsumed(challenges, codeHash) {
			obs.IncOTPVerification("consumed")
			return manager.reject(context, principalID, ErrOTPConsumed, "superseded code")
		}
		obs.IncOTPVerification("mismatch")
		return manager.reject(context, principalID, ErrOTPMismatch, "code mismatch")
	}

	// ── 5. Consumption (CAS) ──────────────────────────────────────────────
	won, err := manager.challenges.Consume(context, current.ID)
	if err != nil {
		return fmt.Errorf("otp_manager_consume_failed: %w", err)
	}
	if !won {
		obs.IncOTPVerification("consumed")
		return manager.reject(context, principalID, ErrOTPConsumed, "lost consumption race")
	}

	obs.IncOTPVerification("success")
	manager.recorder.Record(context, audit.Event{
		Action:      audit.ActionOTPVerified,
		PrincipalID: principalID,
	})

	return nil
}

/*
Sweep removes expired challenge rows.

Description: Storage hygiene only; expiry is always judged at verify time.

Parameters:
  - context: context.Context

Returns:
  - int64: Number of rows removed
  - error: Persistence failures
*/
func (manager *OTPManager) Sweep(context context.Context) (int64, error) {
	return manager.challenges.DeleteExpired(context, time.Now())
}

// matchesAnyConsumed reports whether the code hash matches any consumed
// challenge in the recent window.
func (manager *OTPManager) matchesAnyConsumed(challenges []*Challenge, codeHash string) bool {
	for _, challenge := range challenges {
		if challenge.Consumed && sec.TokensEqual(codeHash, challenge.CodeHash) {
			return true
		}
	}
	return false
}

func (manager *OTPManager) reject(context context.Context, principalID string, rejection error, detail string) error {
	manager.recorder.Record(context, audit.Event{
		Action:      audit.ActionOTPRejected,
		PrincipalID: principalID,
		Detail:      detail,
	})
	return rejection
}
