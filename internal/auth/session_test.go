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
)

func newSessionFixture(t *testing.T, ttl time.Duration) (*auth.SessionManager, *auth.Principal) {
	t.Helper()

	principals := newFakePrincipalRepo()
	principal := &auth.Principal{
		ID:    "p-1",
		Email: "agent@solterra.group",
		Role:  access.RoleDirector,
	}
	require.NoError(t, principals.Create(context.Background(), principal))

	return auth.NewSessionManager(newFakeSessionRepo(), principals, audit.Nop{}, ttl), principal
}

/*
TestSession_IssueAndValidate verifies the round trip: an issued token
resolves to the identity with the role snapshot taken at issuance.
*/
func TestSession_IssueAndValidate(t *testing.T) {
	ctx := context.Background()
	manager, principal := newSessionFixture(t, time.Hour)

	token, session, err := manager.Issue(ctx, principal, "ua", "10.0.0.1")
	require.NoError(t, err)
	require.NotEmpty(t, token)
	require.NotNil(t, session)

	identity, err := manager.Validate(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, principal.ID, identity.PrincipalID)
	assert.Equal(t, principal.Email, identity.Email)
	assert.Equal(t, access.RoleDirector, identity.Role)
	assert.Equal(t, session.ID, identity.SessionID)
}

/*
TestSession_UnknownToken verifies that a token with no record fails as
not found.
*/
func TestSession_UnknownToken(t *testing.T) {
	ctx := context.Background()
	manager, _ := newSessionFixture(t, time.Hour)

	_, err := manager.Validate(ctx, "never-issued")
	assert.ErrorIs(t, err, auth.ErrSessionNotFound)
}

/*
TestSession_RevokeThenValidate verifies that a revocation is observed by the
immediately following validation, and that revoke is idempotent.
*/
func TestSession_RevokeThenValidate(t *testing.T) {
	ctx := context.Background()
	manager, principal := newSessionFixture(t, time.Hour)

	token, _, err := manager.Issue(ctx, principal, "ua", "10.0.0.1")
	require.NoError(t, err)

	require.NoError(t, manager.Revoke(ctx, token))

	_, err = manager.Validate(ctx, token)
	assert.ErrorIs(t, err, auth.ErrSessionRevoked)

	// Revoking again is a silent no-op.
	require.NoError(t, manager.Revoke(ctx, token))
	_, err = manager.Validate(ctx, token)
	assert.ErrorIs(t, err, auth.ErrSessionRevoked)
}

/*
TestSession_Expired verifies timestamp-based expiry at validation time.
*/
func TestSession_Expired(t *testing.T) {
	ctx := context.Background()
	// Negative TTL: the session is born expired.
	manager, principal := newSessionFixture(t, -time.Minute)

	token, _, err := manager.Issue(ctx, principal, "ua", "10.0.0.1")
	require.NoError(t, err)

	_, err = manager.Validate(ctx, token)
	assert.ErrorIs(t, err, auth.ErrSessionExpired)
}

/*
TestSession_RevokeAll verifies bulk revocation across a principal's sessions.
*/
func TestSession_RevokeAll(t *testing.T) {
	ctx := context.Background()
	manager, principal := newSessionFixture(t, time.Hour)

	tokenOne, _, err := manager.Issue(ctx, principal, "ua", "10.0.0.1")
	require.NoError(t, err)
	tokenTwo, _, err := manager.Issue(ctx, principal, "ua", "10.0.0.2")
	require.NoError(t, err)

	revoked, err := manager.RevokeAll(ctx, principal.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, revoked)

	_, err = manager.Validate(ctx, tokenOne)
	assert.ErrorIs(t, err, auth.ErrSessionRevoked)
	_, err = manager.Validate(ctx, tokenTwo)
	assert.ErrorIs(t, err, auth.ErrSessionRevoked)
}

/*
TestSession_DisabledPrincipal verifies that disabling a principal kills its
sessions at validation time even without explicit revocation.
*/
func TestSession_DisabledPrincipal(t *testing.T) {
	ctx := context.Background()

	principals := newFakePrincipalRepo()
	principal := &auth.Principal{ID: "p-1", Email: "agent@solterra.group", Role: access.RoleDataEditor}
	require.NoError(t, principals.Create(ctx, principal))

	manager := auth.NewSessionManager(newFakeSessionRepo(), principals, audit.Nop{}, time.Hour)

	token, _, err := manager.Issue(ctx, principal, "ua", "10.0.0.1")
	require.NoError(t, err)

	principal.Disabled = true
	require.NoError(t, principals.Update(ctx, principal))

	_, err = manager.Validate(ctx, token)
	assert.ErrorIs(t, err, auth.ErrSessionRevoked)
}

/*
TestSession_ActiveSessionsAndSweep verifies session transparency listing and
expired-row cleanup.
*/
func TestSession_ActiveSessionsAndSweep(t *testing.T) {
	ctx := context.Background()

	principals := newFakePrincipalRepo()
	principal := &auth.Principal{ID: "p-1", Email: "agent@solterra.group", Role: access.RoleAdmin}
	require.NoError(t, principals.Create(ctx, principal))

	sessions := newFakeSessionRepo()
	live := auth.NewSessionManager(sessions, principals, audit.Nop{}, time.Hour)
	expired := auth.NewSessionManager(sessions, principals, audit.Nop{}, -time.Minute)

	_, _, err := live.Issue(ctx, principal, "ua", "10.0.0.1")
	require.NoError(t, err)
	_, _, err = expired.Issue(ctx, principal, "ua", "10.0.0.2")
	require.NoError(t, err)

	active, err := live.ActiveSessions(ctx, principal.ID)
	require.NoError(t, err)
	assert.Len(t, active, 1)

	removed, err := live.Sweep(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, removed)
}
