// Copyright (c) 2026 Solterra. All rights reserved.
// Author: platform@solterra.group

package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solterra/solterra-api/internal/access"
	"github.com/solterra/solterra-api/internal/audit"
	"github.com/solterra/solterra-api/internal/auth"
	"github.com/solterra/solterra-api/internal/platform/sec"
)

const testTicketSecret = "0123456789abcdef0123456789abcdef"

type flowFixture struct {
	flow        *auth.Flow
	sessions    *auth.SessionManager
	credentials *auth.CredentialService
	principals  *fakePrincipalRepo
	sender      *fakeSender
}

func newFlowFixture(t *testing.T) *flowFixture {
	t.Helper()

	principals := newFakePrincipalRepo()
	sessionRepo := newFakeSessionRepo()
	challenges := newFakeChallengeRepo()
	throttle := newFakeThrottleRepo()
	sender := &fakeSender{}

	tickets, err := sec.NewTicketService(testTicketSecret, "solterra.group")
	require.NoError(t, err)

	sessions := auth.NewSessionManager(sessionRepo, principals, audit.Nop{}, time.Hour)
	credentials := auth.NewCredentialService(principals, sessionRepo, audit.Nop{})
	passcodes := auth.NewOTPManager(challenges, throttle, sender, audit.Nop{}, auth.OTPConfig{
		Digits:         6,
		TTL:            10 * time.Minute,
		MaxAttempts:    5,
		ResendCooldown: time.Minute,
	})

	flow := auth.NewFlow(principals, credentials, passcodes, sessions, throttle, tickets, audit.Nop{}, 3, 15*time.Minute)

	return &flowFixture{
		flow:        flow,
		sessions:    sessions,
		credentials: credentials,
		principals:  principals,
		sender:      sender,
	}
}

func (f *flowFixture) addPrincipal(t *testing.T, email, password string, otpRequired, mustChange bool) *auth.Principal {
	t.Helper()

	hash, err := sec.HashPassword(password)
	require.NoError(t, err)

	principal := &auth.Principal{
		ID:                 "p-" + email,
		Email:              email,
		PasswordHash:       hash,
		Role:               access.RoleSalesSpecialist,
		OTPRequired:        otpRequired,
		MustChangePassword: mustChange,
	}
	require.NoError(t, f.principals.Create(context.Background(), principal))
	return principal
}

/*
TestFlow_PasswordOnly verifies the shortest path: valid credentials with no
second factor and no forced rotation end authenticated with a live session.
*/
func TestFlow_PasswordOnly(t *testing.T) {
	ctx := context.Background()
	fixture := newFlowFixture(t)
	fixture.addPrincipal(t, "agent@solterra.group", "Current1!", false, false)

	result, err := fixture.flow.Begin(ctx, "agent@solterra.group", "Current1!", "ua", "10.0.0.1")
	require.NoError(t, err)

	assert.Equal(t, auth.StatusAuthenticated, result.Status)
	require.NotEmpty(t, result.Token)

	identity, err := fixture.sessions.Validate(ctx, result.Token)
	require.NoError(t, err)
	assert.Equal(t, "p-agent@solterra.group", identity.PrincipalID)
}

/*
TestFlow_EnumerationResistance verifies that a wrong password for an existing
email and a completely unknown email produce the identical failure.
*/
func TestFlow_EnumerationResistance(t *testing.T) {
	ctx := context.Background()
	fixture := newFlowFixture(t)
	fixture.addPrincipal(t, "agent@solterra.group", "Current1!", false, false)

	_, wrongPasswordErr := fixture.flow.Begin(ctx, "agent@solterra.group", "WrongPass1!", "ua", "10.0.0.1")
	_, unknownEmailErr := fixture.flow.Begin(ctx, "ghost@solterra.group", "WrongPass1!", "ua", "10.0.0.1")

	require.Error(t, wrongPasswordErr)
	require.Error(t, unknownEmailErr)
	assert.Equal(t, wrongPasswordErr, unknownEmailErr)
	assert.ErrorIs(t, wrongPasswordErr, auth.ErrLoginFailed)
}

/*
TestFlow_DisabledPrincipal verifies that a disabled principal's correct
credentials fail identically to any other credential failure.
*/
func TestFlow_DisabledPrincipal(t *testing.T) {
	ctx := context.Background()
	fixture := newFlowFixture(t)
	principal := fixture.addPrincipal(t, "agent@solterra.group", "Current1!", false, false)
	principal.Disabled = true
	require.NoError(t, fixture.principals.Update(ctx, principal))

	_, err := fixture.flow.Begin(ctx, "agent@solterra.group", "Current1!", "ua", "10.0.0.1")
	assert.ErrorIs(t, err, auth.ErrLoginFailed)
}

/*
TestFlow_SecondFactor verifies the passcode branch end to end: Begin hands
back a continuation ticket, VerifyOTP with the delivered code authenticates.
*/
func TestFlow_SecondFactor(t *testing.T) {
	ctx := context.Background()
	fixture := newFlowFixture(t)
	fixture.addPrincipal(t, "agent@solterra.group", "Current1!", true, false)

	begin, err := fixture.flow.Begin(ctx, "agent@solterra.group", "Current1!", "ua", "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, auth.StatusOTPRequired, begin.Status)
	require.NotEmpty(t, begin.Ticket)
	assert.Empty(t, begin.Token)

	code := fixture.sender.lastCode()
	require.NotEmpty(t, code)

	verified, err := fixture.flow.VerifyOTP(ctx, begin.Ticket, code, "ua", "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, auth.StatusAuthenticated, verified.Status)

	_, err = fixture.sessions.Validate(ctx, verified.Token)
	assert.NoError(t, err)
}

/*
TestFlow_ForcedRotation verifies the forced password change: no session is
issued at the parked state, rotation completes the flow, and the old
password is dead afterwards.
*/
func TestFlow_ForcedRotation(t *testing.T) {
	ctx := context.Background()
	fixture := newFlowFixture(t)
	principal := fixture.addPrincipal(t, "agent@solterra.group", "Current1!", false, true)

	begin, err := fixture.flow.Begin(ctx, "agent@solterra.group", "Current1!", "ua", "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, auth.StatusPasswordChangeRequired, begin.Status)
	require.NotEmpty(t, begin.Ticket)
	assert.Empty(t, begin.Token)

	// No session may exist while the flow is parked at the rotation state.
	active, err := fixture.sessions.ActiveSessions(ctx, principal.ID)
	require.NoError(t, err)
	assert.Empty(t, active)

	done, err := fixture.flow.CompleteForcedRotation(ctx, begin.Ticket, "Current1!", "Rotated9$", "ua", "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, auth.StatusAuthenticated, done.Status)
	require.NotEmpty(t, done.Token)

	_, err = fixture.sessions.Validate(ctx, done.Token)
	require.NoError(t, err)

	// The old password no longer opens the flow; the new one does, without
	// a forced change this time.
	_, err = fixture.flow.Begin(ctx, "agent@solterra.group", "Current1!", "ua", "10.0.0.1")
	assert.ErrorIs(t, err, auth.ErrLoginFailed)

	again, err := fixture.flow.Begin(ctx, "agent@solterra.group", "Rotated9$", "ua", "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, auth.StatusAuthenticated, again.Status)
}

/*
TestFlow_SecondFactorThenForcedRotation verifies state ordering when both
gates apply: the passcode comes first, then the rotation.
*/
func TestFlow_SecondFactorThenForcedRotation(t *testing.T) {
	ctx := context.Background()
	fixture := newFlowFixture(t)
	fixture.addPrincipal(t, "agent@solterra.group", "Current1!", true, true)

	begin, err := fixture.flow.Begin(ctx, "agent@solterra.group", "Current1!", "ua", "10.0.0.1")
	require.NoError(t, err)
	require.Equal(t, auth.StatusOTPRequired, begin.Status)

	verified, err := fixture.flow.VerifyOTP(ctx, begin.Ticket, fixture.sender.lastCode(), "ua", "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, auth.StatusPasswordChangeRequired, verified.Status)
	assert.Empty(t, verified.Token)

	done, err := fixture.flow.CompleteForcedRotation(ctx, verified.Ticket, "Current1!", "Rotated9$", "ua", "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, auth.StatusAuthenticated, done.Status)
}

/*
TestFlow_TicketStageMismatch verifies that a passcode-stage ticket cannot be
replayed against the rotation endpoint.
*/
func TestFlow_TicketStageMismatch(t *testing.T) {
	ctx := context.Background()
	fixture := newFlowFixture(t)
	fixture.addPrincipal(t, "agent@solterra.group", "Current1!", true, false)

	begin, err := fixture.flow.Begin(ctx, "agent@solterra.group", "Current1!", "ua", "10.0.0.1")
	require.NoError(t, err)

	_, err = fixture.flow.CompleteForcedRotation(ctx, begin.Ticket, "Current1!", "Rotated9$", "ua", "10.0.0.1")
	assert.ErrorIs(t, err, auth.ErrTicketInvalid)
}

/*
TestFlow_Lockout verifies that after the failure threshold, even the correct
password is rejected with the same generic failure.
*/
func TestFlow_Lockout(t *testing.T) {
	ctx := context.Background()
	fixture := newFlowFixture(t)
	fixture.addPrincipal(t, "agent@solterra.group", "Current1!", false, false)

	for i := 0; i < 3; i++ {
		_, err := fixture.flow.Begin(ctx, "agent@solterra.group", "WrongPass1!", "ua", "10.0.0.1")
		assert.ErrorIs(t, err, auth.ErrLoginFailed)
	}

	_, err := fixture.flow.Begin(ctx, "agent@solterra.group", "Current1!", "ua", "10.0.0.1")
	assert.ErrorIs(t, err, auth.ErrLoginFailed)
}
