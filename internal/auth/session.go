// Copyright (c) 2026 Solterra. All rights reserved.
// Author: platform@solterra.group

package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/solterra/solterra-api/internal/audit"
	"github.com/solterra/solterra-api/internal/platform/apperr"
	"github.com/solterra/solterra-api/internal/platform/obs"
	"github.com/solterra/solterra-api/internal/platform/sec"
	"github.com/solterra/solterra-api/pkg/uuid"
)

// SessionManager issues, validates, and revokes sessions.
//
// # Token Handling
//
// The opaque token exists in exactly two places: the client's cookie and,
// hashed, the session row. Validation and revocation always read current
// store state; there is no caching layer that could serve a stale
// non-revoked result.
type SessionManager struct {
	sessions   SessionRepository
	principals PrincipalRepository
	recorder   audit.Recorder
	ttl        time.Duration
}

// NewSessionManager constructs a new [SessionManager].
func NewSessionManager(sessions SessionRepository, principals PrincipalRepository, recorder audit.Recorder, ttl time.Duration) *SessionManager {
	return &SessionManager{
		sessions:   sessions,
		principals: principals,
		recorder:   recorder,
		ttl:        ttl,
	}
}

/*
Issue creates a session for the principal and returns the opaque token.

Description: The role is snapshotted into the session record at issuance and
never re-derived per request. The returned token is the only copy of the
plaintext; the store holds its hash.

Parameters:
  - context: context.Context
  - principal: *Principal
  - userAgent: string
  - ipAddress: string

Returns:
  - string: Opaque session token for cookie transport
  - *Session: Persisted session record
  - error: Persistence failures
*/
func (manager *SessionManager) Issue(context context.Context, principal *Principal, userAgent, ipAddress string) (string, *Session, error) {
	token, err := sec.GenerateSecureToken(SessionTokenLength)
	if err != nil {
		return "", nil, fmt.Errorf("session_manager_token_failed: %w", err)
	}

	now := time.Now()
	session := &Session{
		ID:          uuid.New(),
		PrincipalID: principal.ID,
		TokenHash:   sec.HashToken(token),
		Role:        principal.Role,
		UserAgent:   userAgent,
		IPAddress:   ipAddress,
		IssuedAt:    now,
		ExpiresAt:   now.Add(manager.ttl),
		IsRevoked:   false,
	}

	if err := manager.sessions.Create(context, session); err != nil {
		return "", nil, fmt.Errorf("session_manager_persist_failed: %w", err)
	}

	obs.IncSessionIssued()
	manager.recorder.Record(context, audit.Event{
		Action:      audit.ActionSessionIssued,
		PrincipalID: principal.ID,
		Detail:      session.ID,
	})

	return token, session, nil
}

/*
Validate resolves an opaque token into the identity it authenticates.

Description: Classification order is fixed: unknown token, revoked, expired,
then disabled principal (reported as revoked). There is no sliding-expiration
renewal; a session lives exactly its issued TTL.

Parameters:
  - context: context.Context
  - token: string

Returns:
  - *sec.Identity: Principal id, email, role snapshot, session id
  - error: ErrSessionNotFound, ErrSessionRevoked, ErrSessionExpired, or storage failures
*/
func (manager *SessionManager) Validate(context context.Context, token string) (*sec.Identity, error) {
	session, err := manager.sessions.FindByTokenHash(context, sec.HashToken(token))
	if err != nil {
		if apperr.IsAppError(err) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("session_manager_lookup_failed: %w", err)
	}

	if session.IsRevoked {
		return nil, ErrSessionRevoked
	}

	if time.Now().After(session.ExpiresAt) {
		return nil, ErrSessionExpired
	}

	principal, err := manager.principals.FindByID(context, session.PrincipalID)
	if err != nil {
		if apperr.IsAppError(err) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("session_manager_principal_failed: %w", err)
	}

	// A disabled principal's sessions are dead even before the sweeper or
	// an explicit revocation reaches them.
	if principal.Disabled {
		return nil, ErrSessionRevoked
	}

	return &sec.Identity{
		PrincipalID: session.PrincipalID,
		Email:       principal.Email,
		Role:        session.Role,
		SessionID:   session.ID,
	}, nil
}

/*
Revoke marks the session for the given token revoked.

Description: Idempotent; revoking an unknown or already-revoked token is a
silent no-op. Effective immediately for subsequent Validate calls.

Parameters:
  - context: context.Context
  - token: string

Returns:
  - error: Persistence failures
*/
func (manager *SessionManager) Revoke(context context.Context, token string) error {
	if err := manager.sessions.Revoke(context, sec.HashToken(token)); err != nil {
		return fmt.Errorf("session_manager_revoke_failed: %w", err)
	}
	return nil
}

/*
RevokeByID revokes a single session owned by the principal.

Parameters:
  - context: context.Context
  - principalID: string
  - sessionID: string

Returns:
  - error: apperr.NotFound if no owned session matches, or persistence failures
*/
func (manager *SessionManager) RevokeByID(context context.Context, principalID, sessionID string) error {
	if err := manager.sessions.RevokeByID(context, principalID, sessionID); err != nil {
		return err
	}

	manager.recorder.Record(context, audit.Event{
		Action:      audit.ActionSessionRevoked,
		PrincipalID: principalID,
		Detail:      sessionID,
	})

	return nil
}

/*
RevokeAll revokes every session owned by the principal.

Description: Used after password rotation and as the compromise response.

Parameters:
  - context: context.Context
  - principalID: string

Returns:
  - int64: Number of sessions newly revoked
  - error: Persistence failures
*/
func (manager *SessionManager) RevokeAll(context context.Context, principalID string) (int64, error) {
	revoked, err := manager.sessions.RevokeAllForPrincipal(context, principalID)
	if err != nil {
		return 0, fmt.Errorf("session_manager_revoke_all_failed: %w", err)
	}

	manager.recorder.Record(context, audit.Event{
		Action:      audit.ActionSessionsRevokedAll,
		PrincipalID: principalID,
		Detail:      fmt.Sprintf("revoked %d sessions", revoked),
	})

	return revoked, nil
}

/*
ActiveSessions returns the principal's live sessions, newest first.

Parameters:
  - context: context.Context
  - principalID: string

Returns:
  - []*Session: Live sessions
  - error: Database retrieval failures
*/
func (manager *SessionManager) ActiveSessions(context context.Context, principalID string) ([]*Session, error) {
	return manager.sessions.ListActiveForPrincipal(context, principalID, time.Now())
}

/*
Sweep removes expired session rows.

Description: Storage hygiene only. Expiry is always judged at validation
time, so a missed sweep never extends a session's life.

Parameters:
  - context: context.Context

Returns:
  - int64: Number of rows removed
  - error: Persistence failures
*/
func (manager *SessionManager) Sweep(context context.Context) (int64, error) {
	return manager.sessions.DeleteExpired(context, time.Now())
}
