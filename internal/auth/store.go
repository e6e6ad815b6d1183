// Copyright (c) 2026 Solterra. All rights reserved.
// Author: platform@solterra.group

package auth

import (
	"context"
	"time"
)

// # Principal Data Access

// PrincipalRepository defines the data access contract for principals.
type PrincipalRepository interface {

	/*
		FindByID returns the principal with the given ID.

		Parameters:
		  - context: context.Context
		  - id: string

		Returns:
		  - *Principal: Hydrated entity
		  - error: apperr.NotFound or database retrieval failures
	*/
	FindByID(context context.Context, id string) (*Principal, error)

	/*
		FindByEmail returns the principal with the given email.

		Parameters:
		  - context: context.Context
		  - email: string

		Returns:
		  - *Principal: Hydrated entity
		  - error: apperr.NotFound or database retrieval failures
	*/
	FindByEmail(context context.Context, email string) (*Principal, error)

	/*
		Create persists a brand-new principal to the storage.

		Parameters:
		  - context: context.Context
		  - principal: *Principal

		Returns:
		  - error: Persistence failures
	*/
	Create(context context.Context, principal *Principal) error

	/*
		Update persists changes to mutable profile and flag fields
		(display name, role, otprequired, disabled).

		Parameters:
		  - context: context.Context
		  - principal: *Principal

		Returns:
		  - error: Persistence failures
	*/
	Update(context context.Context, principal *Principal) error

	/*
		UpdatePassword replaces the password hash, clears the
		mustchangepassword flag, and bumps updatedat in one statement.

		Parameters:
		  - context: context.Context
		  - principalID: string
		  - newHash: string

		Returns:
		  - error: Persistence failures
	*/
	UpdatePassword(context context.Context, principalID, newHash string) error

	/*
		List returns a page of principals ordered by creation time,
		plus the total count for pagination metadata.

		Parameters:
		  - context: context.Context
		  - limit: int
		  - offset: int

		Returns:
		  - []*Principal: Page of entities
		  - int: Total row count
		  - error: Database retrieval failures
	*/
	List(context context.Context, limit, offset int) ([]*Principal, int, error)

	/*
		Count returns the total number of principals. Used at startup to
		decide whether the bootstrap administrator must be created.

		Parameters:
		  - context: context.Context

		Returns:
		  - int: Row count
		  - error: Database retrieval failures
	*/
	Count(context context.Context) (int, error)
}

// # Session Data Access

// SessionRepository defines the data access contract for sessions.
//
// Reads always hit current store state. The repository returns raw rows and
// never interprets expiry or revocation; that classification belongs to
// [SessionManager] so the three failure kinds stay distinguishable.
type SessionRepository interface {

	/*
		Create persists a new session record.

		Parameters:
		  - context: context.Context
		  - session: *Session

		Returns:
		  - error: Persistence failures
	*/
	Create(context context.Context, session *Session) error

	/*
		FindByTokenHash returns the session whose tokenhash matches,
		regardless of its expiry or revocation state.

		Parameters:
		  - context: context.Context
		  - tokenHash: string

		Returns:
		  - *Session: Hydrated entity
		  - error: apperr.NotFound or database retrieval failures
	*/
	FindByTokenHash(context context.Context, tokenHash string) (*Session, error)

	/*
		Revoke marks the session with the given token hash revoked.
		Idempotent: revoking an already-revoked session is a no-op.

		Parameters:
		  - context: context.Context
		  - tokenHash: string

		Returns:
		  - error: Persistence failures
	*/
	Revoke(context context.Context, tokenHash string) error

	/*
		RevokeByID marks one session revoked, scoped to its owner so a
		principal can only revoke sessions it owns.

		Parameters:
		  - context: context.Context
		  - principalID: string
		  - sessionID: string

		Returns:
		  - error: apperr.NotFound if no owned session matches, or persistence failures
	*/
	RevokeByID(context context.Context, principalID, sessionID string) error

	/*
		RevokeAllForPrincipal marks every session owned by the principal
		revoked in a single statement.

		Parameters:
		  - context: context.Context
		  - principalID: string

		Returns:
		  - int64: Number of sessions newly revoked
		  - error: Persistence failures
	*/
	RevokeAllForPrincipal(context context.Context, principalID string) (int64, error)

	/*
		RevokeOthers marks every session owned by the principal revoked
		except the one identified by keepSessionID.

		Parameters:
		  - context: context.Context
		  - principalID: string
		  - keepSessionID: string

		Returns:
		  - int64: Number of sessions newly revoked
		  - error: Persistence failures
	*/
	RevokeOthers(context context.Context, principalID, keepSessionID string) (int64, error)

	/*
		ListActiveForPrincipal returns the principal's live sessions
		(not revoked, not expired at the given instant), newest first.

		Parameters:
		  - context: context.Context
		  - principalID: string
		  - now: time.Time

		Returns:
		  - []*Session: Live sessions
		  - error: Database retrieval failures
	*/
	ListActiveForPrincipal(context context.Context, principalID string, now time.Time) ([]*Session, error)

	/*
		DeleteExpired removes sessions whose expiresat precedes the cutoff.
		Storage hygiene only; expiry is judged at validation time.

		Parameters:
		  - context: context.Context
		  - before: time.Time

		Returns:
		  - int64: Number of rows removed
		  - error: Persistence failures
	*/
	DeleteExpired(context context.Context, before time.Time) (int64, error)
}

// # Challenge Data Access

// ChallengeRepository defines the data access contract for passcode challenges.
type ChallengeRepository interface {

	/*
		Supersede atomically consumes every unconsumed challenge owned by the
		new challenge's principal and inserts the new one, inside a single
		transaction. Guarantees at most one live challenge per principal.

		Parameters:
		  - context: context.Context
		  - challenge: *Challenge

		Returns:
		  - error: Persistence failures
	*/
	Supersede(context context.Context, challenge *Challenge) error

	/*
		RecentByPrincipal returns the principal's most recent challenges,
		newest first, up to limit rows. The head of the slice is the current
		challenge; older rows are consulted only to classify stale codes.

		Parameters:
		  - context: context.Context
		  - principalID: string
		  - limit: int

		Returns:
		  - []*Challenge: Recent challenges, possibly empty
		  - error: Database retrieval failures
	*/
	RecentByPrincipal(context context.Context, principalID string, limit int) ([]*Challenge, error)

	/*
		Consume marks the challenge consumed via compare-and-swap. Exactly
		one of two concurrent callers wins; the loser observes false.

		Parameters:
		  - context: context.Context
		  - id: string

		Returns:
		  - bool: Whether this call performed the consumption
		  - error: Persistence failures
	*/
	Consume(context context.Context, id string) (bool, error)

	/*
		IncrementAttempts atomically increments the attempt counter and
		returns the new value.

		Parameters:
		  - context: context.Context
		  - id: string

		Returns:
		  - int: Attempt count after the increment
		  - error: Persistence failures
	*/
	IncrementAttempts(context context.Context, id string) (int, error)

	/*
		DeleteExpired removes challenges whose expiresat precedes the cutoff.

		Parameters:
		  - context: context.Context
		  - before: time.Time

		Returns:
		  - int64: Number of rows removed
		  - error: Persistence failures
	*/
	DeleteExpired(context context.Context, before time.Time) (int64, error)
}

// # Throttle Data Access

// ThrottleRepository defines the volatile counters guarding the login flow:
// failed-credential lockout windows and passcode resend cooldowns.
type ThrottleRepository interface {

	/*
		RecordFailure increments the failed-login counter for the identifier
		and arms the lockout window on the first failure.

		Parameters:
		  - context: context.Context
		  - identifier: string (normalized email)
		  - window: time.Duration

		Returns:
		  - int64: Failure count within the current window
		  - error: Store connectivity failures
	*/
	RecordFailure(context context.Context, identifier string, window time.Duration) (int64, error)

	/*
		Failures returns the current failed-login count for the identifier.
		A missing counter reads as zero.

		Parameters:
		  - context: context.Context
		  - identifier: string

		Returns:
		  - int64: Failure count, zero when absent
		  - error: Store connectivity failures
	*/
	Failures(context context.Context, identifier string) (int64, error)

	/*
		ClearFailures removes the failed-login counter after a successful
		credential check.

		Parameters:
		  - context: context.Context
		  - identifier: string

		Returns:
		  - error: Store connectivity failures
	*/
	ClearFailures(context context.Context, identifier string) error

	/*
		MarkResend arms the resend cooldown for the principal if it is not
		already armed.

		Parameters:
		  - context: context.Context
		  - principalID: string
		  - cooldown: time.Duration

		Returns:
		  - bool: Whether the resend is allowed (cooldown was not armed)
		  - error: Store connectivity failures
	*/
	MarkResend(context context.Context, principalID string, cooldown time.Duration) (bool, error)
}
