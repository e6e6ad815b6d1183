// Copyright (c) 2026 Solterra. All rights reserved.
// Author: platform@solterra.group

// PostgreSQL implementations of the auth data access contracts.
//
// # Error Mapping
//
// Storage-specific errors (like pgx.ErrNoRows) are mapped to domain-friendly
// [apperr.AppError] types to avoid leaking storage implementation details.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/solterra/solterra-api/internal/platform/apperr"
)

// isUniqueViolation reports whether err is a Postgres unique-constraint
// violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

// # Principal Repository

// PostgresPrincipalRepository implements PrincipalRepository using pgx.
type PostgresPrincipalRepository struct {
	pool *pgxpool.Pool
}

// NewPrincipalRepository creates a new PostgreSQL implementation of the PrincipalRepository.
func NewPrincipalRepository(pool *pgxpool.Pool) *PostgresPrincipalRepository {
	return &PostgresPrincipalRepository{pool: pool}
}

const principalColumns = `id, email, displayname, passwordhash, role, otprequired, mustchangepassword, disabled, createdat, updatedat`

func scanPrincipal(row pgx.Row) (*Principal, error) {
	principal := &Principal{}
	err := row.Scan(
		&principal.ID,
		&principal.Email,
		&principal.DisplayName,
		&principal.PasswordHash,
		&principal.Role,
		&principal.OTPRequired,
		&principal.MustChangePassword,
		&principal.Disabled,
		&principal.CreatedAt,
		&principal.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return principal, nil
}

/*
Create persists a new principal record into the iam.principal table.

Parameters:
  - context: context.Context
  - principal: *Principal (Entity to persist)

Returns:
  - error: apperr.Conflict on a duplicate email, or connectivity errors
*/
func (repository *PostgresPrincipalRepository) Create(context context.Context, principal *Principal) error {
	const query = `
		INSERT INTO iam.principal (
			id, email, displayname, passwordhash, role, otprequired, mustchangepassword, disabled, createdat, updatedat
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	now := time.Now()
	if principal.CreatedAt.IsZero() {
		principal.CreatedAt = now
	}
	principal.UpdatedAt = now

	_, err := repository.pool.Exec(context, query,
		principal.ID,
		principal.Email,
		principal.DisplayName,
		principal.PasswordHash,
		principal.Role,
		principal.OTPRequired,
		principal.MustChangePassword,
		principal.Disabled,
		principal.CreatedAt,
		principal.UpdatedAt,
	)

	if err != nil {
		// Concurrent creates race past any prior existence check; the
		// principal_email_unique index is the authority.
		if isUniqueViolation(err) {
			return apperr.Conflict("Email is already registered")
		}
		return fmt.Errorf("postgres_principal_repo_create_failed: %w", err)
	}

	return nil
}

/*
FindByID retrieves a principal record by its primary key.

Parameters:
  - context: context.Context
  - id: string

Returns:
  - *Principal: Hydrated entity
  - error: apperr.NotFound or database errors
*/
func (repository *PostgresPrincipalRepository) FindByID(context context.Context, id string) (*Principal, error) {
	const query = `
		SELECT ` + principalColumns + `
		FROM iam.principal
		WHERE id = $1`

	principal, err := scanPrincipal(repository.pool.QueryRow(context, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("Principal")
		}
		return nil, fmt.Errorf("postgres_principal_repo_find_by_id_failed: %w", err)
	}

	return principal, nil
}

/*
FindByEmail retrieves a principal record by its unique email address.

Parameters:
  - context: context.Context
  - email: string

Returns:
  - *Principal: Hydrated entity
  - error: apperr.NotFound or database errors
*/
func (repository *PostgresPrincipalRepository) FindByEmail(context context.Context, email string) (*Principal, error) {
	const query = `
		SELECT ` + principalColumns + `
		FROM iam.principal
		WHERE lower(email) = lower($1)`

	principal, err := scanPrincipal(repository.pool.QueryRow(context, query, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("Principal")
		}
		return nil, fmt.Errorf("postgres_principal_repo_find_by_email_failed: %w", err)
	}

	return principal, nil
}

/*
Update persists changes to mutable profile and flag fields.

Parameters:
  - context: context.Context
  - principal: *Principal

Returns:
  - error: Persistence failures
*/
func (repository *PostgresPrincipalRepository) Update(context context.Context, principal *Principal) error {
	const query = `
		UPDATE iam.principal
		SET displayname = $2, role = $3, otprequired = $4, disabled = $5, updatedat = $6
		WHERE id = $1`

	principal.UpdatedAt = time.Now()

	tag, err := repository.pool.Exec(context, query,
		principal.ID,
		principal.DisplayName,
		principal.Role,
		principal.OTPRequired,
		principal.Disabled,
		principal.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres_principal_repo_update_failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("Principal")
	}

	return nil
}

/*
UpdatePassword replaces the password hash and clears mustchangepassword.

Description: Single-statement update so a crash can never leave a new hash
with a stale rotation flag.

Parameters:
  - context: context.Context
  - principalID: string
  - newHash: string

Returns:
  - error: Persistence failures
*/
func (repository *PostgresPrincipalRepository) UpdatePassword(context context.Context, principalID, newHash string) error {
	const query = `
		UPDATE iam.principal
		SET passwordhash = $2, mustchangepassword = FALSE, updatedat = $3
		WHERE id = $1`

	tag, err := repository.pool.Exec(context, query, principalID, newHash, time.Now())
	if err != nil {
		return fmt.Errorf("postgres_principal_repo_update_password_failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("Principal")
	}

	return nil
}

/*
List returns a page of principals ordered by creation time.

Parameters:
  - context: context.Context
  - limit: int
  - offset: int

Returns:
  - []*Principal: Page of entities
  - int: Total row count
  - error: Database retrieval failures
*/
func (repository *PostgresPrincipalRepository) List(context context.Context, limit, offset int) ([]*Principal, int, error) {
	const countQuery = `SELECT COUNT(*) FROM iam.principal`
	const query = `
		SELECT ` + principalColumns + `
		FROM iam.principal
		ORDER BY createdat ASC
		LIMIT $1 OFFSET $2`

	var total int
	if err := repository.pool.QueryRow(context, countQuery).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("postgres_principal_repo_count_failed: %w", err)
	}

	rows, err := repository.pool.Query(context, query, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("postgres_principal_repo_list_failed: %w", err)
	}
	defer rows.Close()

	principals := make([]*Principal, 0, limit)
	for rows.Next() {
		principal, err := scanPrincipal(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("postgres_principal_repo_scan_failed: %w", err)
		}
		principals = append(principals, principal)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("postgres_principal_repo_rows_failed: %w", err)
	}

	return principals, total, nil
}

/*
Count returns the total number of principals.

Parameters:
  - context: context.Context

Returns:
  - int: Row count
  - error: Database retrieval failures
*/
func (repository *PostgresPrincipalRepository) Count(context context.Context) (int, error) {
	const query = `SELECT COUNT(*) FROM iam.principal`

	var total int
	if err := repository.pool.QueryRow(context, query).Scan(&total); err != nil {
		return 0, fmt.Errorf("postgres_principal_repo_count_failed: %w", err)
	}

	return total, nil
}

// # Session Repository

// PostgresSessionRepository implements SessionRepository using pgx.
type PostgresSessionRepository struct {
	pool *pgxpool.Pool
}

// NewSessionRepository creates a new PostgreSQL implementation of the SessionRepository.
func NewSessionRepository(pool *pgxpool.Pool) *PostgresSessionRepository {
	return &PostgresSessionRepository{pool: pool}
}

const sessionColumns = `id, principalid, tokenhash, role, useragent, ipaddress, issuedat, expiresat, isrevoked`

func scanSession(row pgx.Row) (*Session, error) {
	session := &Session{}
	err := row.Scan(
		&session.ID,
		&session.PrincipalID,
		&session.TokenHash,
		&session.Role,
		&session.UserAgent,
		&session.IPAddress,
		&session.IssuedAt,
		&session.ExpiresAt,
		&session.IsRevoked,
	)
	if err != nil {
		return nil, err
	}
	return session, nil
}

/*
Create persists a new session record into the iam.session table.

Parameters:
  - context: context.Context
  - session: *Session

Returns:
  - error: Persistence failures
*/
func (repository *PostgresSessionRepository) Create(context context.Context, session *Session) error {
	const query = `
		INSERT INTO iam.session (
			id, principalid, tokenhash, role, useragent, ipaddress, issuedat, expiresat, isrevoked
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := repository.pool.Exec(context, query,
		session.ID,
		session.PrincipalID,
		session.TokenHash,
		session.Role,
		session.UserAgent,
		session.IPAddress,
		session.IssuedAt,
		session.ExpiresAt,
		session.IsRevoked,
	)
	if err != nil {
		return fmt.Errorf("postgres_session_repo_create_failed: %w", err)
	}

	return nil
}

/*
FindByTokenHash retrieves a session by its hashed token, regardless of state.

Parameters:
  - context: context.Context
  - tokenHash: string

Returns:
  - *Session: Hydrated entity
  - error: apperr.NotFound or database errors
*/
func (repository *PostgresSessionRepository) FindByTokenHash(context context.Context, tokenHash string) (*Session, error) {
	const query = `
		SELECT ` + sessionColumns + `
		FROM iam.session
		WHERE tokenhash = $1`

	session, err := scanSession(repository.pool.QueryRow(context, query, tokenHash))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("Session")
		}
		return nil, fmt.Errorf("postgres_session_repo_find_failed: %w", err)
	}

	return session, nil
}

/*
Revoke marks the session with the given token hash revoked. Idempotent.

Parameters:
  - context: context.Context
  - tokenHash: string

Returns:
  - error: Persistence failures
*/
func (repository *PostgresSessionRepository) Revoke(context context.Context, tokenHash string) error {
	const query = `
		UPDATE iam.session
		SET isrevoked = TRUE
		WHERE tokenhash = $1`

	if _, err := repository.pool.Exec(context, query, tokenHash); err != nil {
		return fmt.Errorf("postgres_session_repo_revoke_failed: %w", err)
	}

	return nil
}

/*
RevokeByID marks one session revoked, scoped to its owner.

Parameters:
  - context: context.Context
  - principalID: string
  - sessionID: string

Returns:
  - error: apperr.NotFound if no owned session matches, or persistence failures
*/
func (repository *PostgresSessionRepository) RevokeByID(context context.Context, principalID, sessionID string) error {
	const query = `
		UPDATE iam.session
		SET isrevoked = TRUE
		WHERE id = $1 AND principalid = $2`

	tag, err := repository.pool.Exec(context, query, sessionID, principalID)
	if err != nil {
		return fmt.Errorf("postgres_session_repo_revoke_by_id_failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("Session")
	}

	return nil
}

/*
RevokeAllForPrincipal marks every session owned by the principal revoked.

Parameters:
  - context: context.Context
  - principalID: string

Returns:
  - int64: Number of sessions newly revoked
  - error: Persistence failures
*/
func (repository *PostgresSessionRepository) RevokeAllForPrincipal(context context.Context, principalID string) (int64, error) {
	const query = `
		UPDATE iam.session
		SET isrevoked = TRUE
		WHERE principalid = $1 AND isrevoked = FALSE`

	tag, err := repository.pool.Exec(context, query, principalID)
	if err != nil {
		return 0, fmt.Errorf("postgres_session_repo_revoke_all_failed: %w", err)
	}

	return tag.RowsAffected(), nil
}

/*
RevokeOthers marks every session owned by the principal revoked except one.

Parameters:
  - context: context.Context
  - principalID: string
  - keepSessionID: string

Returns:
  - int64: Number of sessions newly revoked
  - error: Persistence failures
*/
func (repository *PostgresSessionRepository) RevokeOthers(context context.Context, principalID, keepSessionID string) (int64, error) {
	const query = `
		UPDATE iam.session
		SET isrevoked = TRUE
		WHERE principalid = $1 AND id <> $2 AND isrevoked = FALSE`

	tag, err := repository.pool.Exec(context, query, principalID, keepSessionID)
	if err != nil {
		return 0, fmt.Errorf("postgres_session_repo_revoke_others_failed: %w", err)
	}

	return tag.RowsAffected(), nil
}

/*
ListActiveForPrincipal returns the principal's live sessions, newest first.

Parameters:
  - context: context.Context
  - principalID: string
  - now: time.Time

Returns:
  - []*Session: Live sessions
  - error: Database retrieval failures
*/
func (repository *PostgresSessionRepository) ListActiveForPrincipal(context context.Context, principalID string, now time.Time) ([]*Session, error) {
	const query = `
		SELECT ` + sessionColumns + `
		FROM iam.session
		WHERE principalid = $1 AND isrevoked = FALSE AND expiresat > $2
		ORDER BY issuedat DESC`

	rows, err := repository.pool.Query(context, query, principalID, now)
	if err != nil {
		return nil, fmt.Errorf("postgres_session_repo_list_active_failed: %w", err)
	}
	defer rows.Close()

	sessions := []*Session{}
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres_session_repo_scan_failed: %w", err)
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres_session_repo_rows_failed: %w", err)
	}

	return sessions, nil
}

/*
DeleteExpired removes sessions whose expiresat precedes the cutoff.

Parameters:
  - context: context.Context
  - before: time.Time

Returns:
  - int64: Number of rows removed
  - error: Persistence failures
*/
func (repository *PostgresSessionRepository) DeleteExpired(context context.Context, before time.Time) (int64, error) {
	const query = `DELETE FROM iam.session WHERE expiresat < $1`

	tag, err := repository.pool.Exec(context, query, before)
	if err != nil {
		return 0, fmt.Errorf("postgres_session_repo_delete_expired_failed: %w", err)
	}

	return tag.RowsAffected(), nil
}

// # Challenge Repository

// PostgresChallengeRepository implements ChallengeRepository using pgx.
type PostgresChallengeRepository struct {
	pool *pgxpool.Pool
}

// NewChallengeRepository creates a new PostgreSQL implementation of the ChallengeRepository.
func NewChallengeRepository(pool *pgxpool.Pool) *PostgresChallengeRepository {
	return &PostgresChallengeRepository{pool: pool}
}

const challengeColumns = `id, principalid, codehash, issuedat, expiresat, attempts, consumed`

func scanChallenge(row pgx.Row) (*Challenge, error) {
	challenge := &Challenge{}
	err := row.Scan(
		&challenge.ID,
		&challenge.PrincipalID,
		&challenge.CodeHash,
		&challenge.IssuedAt,
		&challenge.ExpiresAt,
		&challenge.Attempts,
		&challenge.Consumed,
	)
	if err != nil {
		return nil, err
	}
	return challenge, nil
}

/*
Supersede consumes any live challenges for the principal and inserts the new
one inside a single transaction.

Description: The transaction keeps the one-live-challenge invariant even when
two issue calls race; row updates and the insert commit or roll back together.

Parameters:
  - context: context.Context
  - challenge: *Challenge

Returns:
  - error: Persistence failures
*/
func (repository *PostgresChallengeRepository) Supersede(context context.Context, challenge *Challenge) error {
	const consumeQuery = `
		UPDATE iam.challenge
		SET consumed = TRUE
		WHERE principalid = $1 AND consumed = FALSE`
	const insertQuery = `
		INSERT INTO iam.challenge (
			id, principalid, codehash, issuedat, expiresat, attempts, consumed
		) VALUES ($1, $2, $3, $4, $5, $6, $7)`

	transaction, err := repository.pool.Begin(context)
	if err != nil {
		return fmt.Errorf("postgres_challenge_repo_begin_failed: %w", err)
	}
	defer func() { _ = transaction.Rollback(context) }()

	if _, err := transaction.Exec(context, consumeQuery, challenge.PrincipalID); err != nil {
		return fmt.Errorf("postgres_challenge_repo_supersede_failed: %w", err)
	}

	_, err = transaction.Exec(context, insertQuery,
		challenge.ID,
		challenge.PrincipalID,
		challenge.CodeHash,
		challenge.IssuedAt,
		challenge.ExpiresAt,
		challenge.Attempts,
		challenge.Consumed,
	)
	if err != nil {
		return fmt.Errorf("postgres_challenge_repo_insert_failed: %w", err)
	}

	if err := transaction.Commit(context); err != nil {
		return fmt.Errorf("postgres_challenge_repo_commit_failed: %w", err)
	}

	return nil
}

/*
RecentByPrincipal returns the principal's most recent challenges, newest first.

Parameters:
  - context: context.Context
  - principalID: string
  - limit: int

Returns:
  - []*Challenge: Recent challenges, possibly empty
  - error: Database retrieval failures
*/
func (repository *PostgresChallengeRepository) RecentByPrincipal(context context.Context, principalID string, limit int) ([]*Challenge, error) {
	const query = `
		SELECT ` + challengeColumns + `
		FROM iam.challenge
		WHERE principalid = $1
		ORDER BY issuedat DESC
		LIMIT $2`

	rows, err := repository.pool.Query(context, query, principalID, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres_challenge_repo_recent_failed: %w", err)
	}
	defer rows.Close()

	challenges := []*Challenge{}
	for rows.Next() {
		challenge, err := scanChallenge(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres_challenge_repo_scan_failed: %w", err)
		}
		challenges = append(challenges, challenge)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres_challenge_repo_rows_failed: %w", err)
	}

	return challenges, nil
}

/*
Consume marks the challenge consumed via compare-and-swap.

Description: The WHERE consumed = FALSE guard makes concurrent double-submits
race safely; only the caller whose UPDATE changed a row wins.

Parameters:
  - context: context.Context
  - id: string

Returns:
  - bool: Whether this call performed the consumption
  - error: Persistence failures
*/
func (repository *PostgresChallengeRepository) Consume(context context.Context, id string) (bool, error) {
	const query = `
		UPDATE iam.challenge
		SET consumed = TRUE
		WHERE id = $1 AND consumed = FALSE`

	tag, err := repository.pool.Exec(context, query, id)
	if err != nil {
		return false, fmt.Errorf("postgres_challenge_repo_consume_failed: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}

/*
IncrementAttempts atomically increments the attempt counter.

Parameters:
  - context: context.Context
  - id: string

Returns:
  - int: Attempt count after the increment
  - error: Persistence failures
*/
func (repository *PostgresChallengeRepository) IncrementAttempts(context context.Context, id string) (int, error) {
	const query = `
		UPDATE iam.challenge
		SET attempts = attempts + 1
		WHERE id = $1
		RETURNING attempts`

	var attempts int
	if err := repository.pool.QueryRow(context, query, id).Scan(&attempts); err != nil {
		return 0, fmt.Errorf("postgres_challenge_repo_increment_failed: %w", err)
	}

	return attempts, nil
}

/*
DeleteExpired removes challenges whose expiresat precedes the cutoff.

Parameters:
  - context: context.Context
  - before: time.Time

Returns:
  - int64: Number of rows removed
  - error: Persistence failures
*/
func (repository *PostgresChallengeRepository) DeleteExpired(context context.Context, before time.Time) (int64, error) {
	const query = `DELETE FROM iam.challenge WHERE expiresat < $1`

	tag, err := repository.pool.Exec(context, query, before)
	if err != nil {
		return 0, fmt.Errorf("postgres_challenge_repo_delete_expired_failed: %w", err)
	}

	return tag.RowsAffected(), nil
}
