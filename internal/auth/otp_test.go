// Copyright (c) 2026 Solterra. All rights reserved.
// Author: platform@solterra.group

package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solterra/solterra-api/internal/audit"
	"github.com/solterra/solterra-api/internal/auth"
)

func newOTPFixture(ttl time.Duration, maxAttempts int) (*auth.OTPManager, *fakeSender, *auth.Principal) {
	sender := &fakeSender{}
	manager := auth.NewOTPManager(newFakeChallengeRepo(), newFakeThrottleRepo(), sender, audit.Nop{}, auth.OTPConfig{
		Digits:         6,
		TTL:            ttl,
		MaxAttempts:    maxAttempts,
		ResendCooldown: time.Minute,
	})
	principal := &auth.Principal{ID: "p-1", Email: "agent@solterra.group"}
	return manager, sender, principal
}

/*
TestOTP_IssueAndVerify verifies the happy path: the delivered code verifies
exactly once.
*/
func TestOTP_IssueAndVerify(t *testing.T) {
	ctx := context.Background()
	manager, sender, principal := newOTPFixture(10*time.Minute, 5)

	require.NoError(t, manager.Issue(ctx, principal))

	code := sender.lastCode()
	require.Len(t, code, 6)

	assert.NoError(t, manager.Verify(ctx, principal.ID, code))
}

/*
TestOTP_ConsumedCannotVerifyTwice verifies single use: the second submission
of a correct, already-consumed code fails as consumed.
*/
func TestOTP_ConsumedCannotVerifyTwice(t *testing.T) {
	ctx := context.Background()
	manager, sender, principal := newOTPFixture(10*time.Minute, 5)

	require.NoError(t, manager.Issue(ctx, principal))
	code := sender.lastCode()

	require.NoError(t, manager.Verify(ctx, principal.ID, code))
	assert.ErrorIs(t, manager.Verify(ctx, principal.ID, code), auth.ErrOTPConsumed)
}

/*
TestOTP_IssueSupersedes verifies the one-live-challenge invariant: after a
second issue, the first code is dead and reports as consumed.
*/
func TestOTP_IssueSupersedes(t *testing.T) {
	ctx := context.Background()
	manager, sender, principal := newOTPFixture(10*time.Minute, 5)

	require.NoError(t, manager.Issue(ctx, principal))
	oldCode := sender.lastCode()

	require.NoError(t, manager.Issue(ctx, principal))
	newCode := sender.lastCode()
	require.NotEqual(t, oldCode, newCode)

	// Old code is superseded, new code still works.
	assert.ErrorIs(t, manager.Verify(ctx, principal.ID, oldCode), auth.ErrOTPConsumed)
	assert.NoError(t, manager.Verify(ctx, principal.ID, newCode))
}

/*
TestOTP_NoActiveChallenge verifies the empty-state failure.
*/
func TestOTP_NoActiveChallenge(t *testing.T) {
	ctx := context.Background()
	manager, _, principal := newOTPFixture(10*time.Minute, 5)

	assert.ErrorIs(t, manager.Verify(ctx, principal.ID, "123456"), auth.ErrNoActiveChallenge)
}

/*
TestOTP_Expired verifies that expiry is judged at verify time.
*/
func TestOTP_Expired(t *testing.T) {
	ctx := context.Background()
	// Negative TTL: the challenge is born expired.
	manager, sender, principal := newOTPFixture(-time.Minute, 5)

	require.NoError(t, manager.Issue(ctx, principal))

	assert.ErrorIs(t, manager.Verify(ctx, principal.ID, sender.lastCode()), auth.ErrOTPExpired)
}

/*
TestOTP_MismatchIncrementsAttempts verifies the attempt budget: wrong codes
burn attempts, and once exhausted even the correct code is rejected without
being checked.
*/
func TestOTP_MismatchIncrementsAttempts(t *testing.T) {
	ctx := context.Background()
	manager, sender, principal := newOTPFixture(10*time.Minute, 2)

	require.NoError(t, manager.Issue(ctx, principal))
	code := sender.lastCode()

	wrong := "000000"
	if wrong == code {
		wrong = "000001"
	}

	assert.ErrorIs(t, manager.Verify(ctx, principal.ID, wrong), auth.ErrOTPMismatch)
	assert.ErrorIs(t, manager.Verify(ctx, principal.ID, wrong), auth.ErrOTPMismatch)

	// Budget exhausted: the correct code no longer verifies.
	assert.ErrorIs(t, manager.Verify(ctx, principal.ID, code), auth.ErrOTPAttemptsExceeded)
}

/*
TestOTP_DeliveryFailureKeepsChallengeLive verifies that a failed delivery
surfaces the retryable error without invalidating the challenge.
*/
func TestOTP_DeliveryFailureKeepsChallengeLive(t *testing.T) {
	ctx := context.Background()
	challenges := newFakeChallengeRepo()
	sender := &fakeSender{fail: true}
	manager := auth.NewOTPManager(challenges, newFakeThrottleRepo(), sender, audit.Nop{}, auth.OTPConfig{
		Digits:         6,
		TTL:            10 * time.Minute,
		MaxAttempts:    5,
		ResendCooldown: time.Minute,
	})
	principal := &auth.Principal{ID: "p-1", Email: "agent@solterra.group"}

	assert.ErrorIs(t, manager.Issue(ctx, principal), auth.ErrDeliveryFailed)

	// The challenge exists and is still live.
	recent, err := challenges.RecentByPrincipal(ctx, principal.ID, 1)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.True(t, recent[0].Live(time.Now()))
}

/*
TestOTP_ResendCooldown verifies that the second immediate resend is throttled.
*/
func TestOTP_ResendCooldown(t *testing.T) {
	ctx := context.Background()
	manager, sender, principal := newOTPFixture(10*time.Minute, 5)

	require.NoError(t, manager.Issue(ctx, principal))
	require.NoError(t, manager.Resend(ctx, principal))
	require.Len(t, sender.codes, 2)

	err := manager.Resend(ctx, principal)
	require.Error(t, err)
	assert.NotErrorIs(t, err, auth.ErrDeliveryFailed)
	assert.Len(t, sender.codes, 2)
}
