// Copyright (c) 2026 Solterra. All rights reserved.
// Author: platform@solterra.group

package auth_test

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/solterra/solterra-api/internal/auth"
	"github.com/solterra/solterra-api/internal/platform/apperr"
)

// In-memory repository fakes. They mirror the store contracts closely enough
// for the managers' concurrency semantics (CAS consumption, idempotent
// revocation) to be exercised without a database.

// # Principal Fake

type fakePrincipalRepo struct {
	mu         sync.Mutex
	principals map[string]*auth.Principal
}

func newFakePrincipalRepo() *fakePrincipalRepo {
	return &fakePrincipalRepo{principals: map[string]*auth.Principal{}}
}

func (r *fakePrincipalRepo) FindByID(_ context.Context, id string) (*auth.Principal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if principal, ok := r.principals[id]; ok {
		clone := *principal
		return &clone, nil
	}
	return nil, apperr.NotFound("Principal")
}

func (r *fakePrincipalRepo) FindByEmail(_ context.Context, email string) (*auth.Principal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, principal := range r.principals {
		if strings.EqualFold(principal.Email, email) {
			clone := *principal
			return &clone, nil
		}
	}
	return nil, apperr.NotFound("Principal")
}

func (r *fakePrincipalRepo) Create(_ context.Context, principal *auth.Principal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.principals {
		if strings.EqualFold(existing.Email, principal.Email) {
			return apperr.Conflict("Email is already registered")
		}
	}
	clone := *principal
	r.principals[principal.ID] = &clone
	return nil
}

func (r *fakePrincipalRepo) Update(_ context.Context, principal *auth.Principal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.principals[principal.ID]
	if !ok {
		return apperr.NotFound("Principal")
	}
	stored.DisplayName = principal.DisplayName
	stored.Role = principal.Role
	stored.OTPRequired = principal.OTPRequired
	stored.Disabled = principal.Disabled
	stored.UpdatedAt = time.Now()
	return nil
}

func (r *fakePrincipalRepo) UpdatePassword(_ context.Context, principalID, newHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	principal, ok := r.principals[principalID]
	if !ok {
		return apperr.NotFound("Principal")
	}
	principal.PasswordHash = newHash
	principal.MustChangePassword = false
	principal.UpdatedAt = time.Now()
	return nil
}

func (r *fakePrincipalRepo) List(_ context.Context, limit, offset int) ([]*auth.Principal, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := make([]*auth.Principal, 0, len(r.principals))
	for _, principal := range r.principals {
		clone := *principal
		all = append(all, &clone)
	}
	total := len(all)
	if offset >= total {
		return []*auth.Principal{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (r *fakePrincipalRepo) Count(_ context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.principals), nil
}

// # Session Fake

type fakeSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]*auth.Session // keyed by session id
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: map[string]*auth.Session{}}
}

func (r *fakeSessionRepo) Create(_ context.Context, session *auth.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *session
	r.sessions[session.ID] = &clone
	return nil
}

func (r *fakeSessionRepo) FindByTokenHash(_ context.Context, tokenHash string) (*auth.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, session := range r.sessions {
		if session.TokenHash == tokenHash {
			clone := *session
			return &clone, nil
		}
	}
	return nil, apperr.NotFound("Session")
}

func (r *fakeSessionRepo) Revoke(_ context.Context, tokenHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, session := range r.sessions {
		if session.TokenHash == tokenHash {
			session.IsRevoked = true
		}
	}
	return nil
}

func (r *fakeSessionRepo) RevokeByID(_ context.Context, principalID, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[sessionID]
	if !ok || session.PrincipalID != principalID {
		return apperr.NotFound("Session")
	}
	session.IsRevoked = true
	return nil
}

func (r *fakeSessionRepo) RevokeAllForPrincipal(_ context.Context, principalID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var revoked int64
	for _, session := range r.sessions {
		if session.PrincipalID == principalID && !session.IsRevoked {
			session.IsRevoked = true
			revoked++
		}
	}
	return revoked, nil
}

func (r *fakeSessionRepo) RevokeOthers(_ context.Context, principalID, keepSessionID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var revoked int64
	for _, session := range r.sessions {
		if session.PrincipalID == principalID && session.ID != keepSessionID && !session.IsRevoked {
			session.IsRevoked = true
			revoked++
		}
	}
	return revoked, nil
}

func (r *fakeSessionRepo) ListActiveForPrincipal(_ context.Context, principalID string, now time.Time) ([]*auth.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	live := []*auth.Session{}
	for _, session := range r.sessions {
		if session.PrincipalID == principalID && !session.IsRevoked && session.ExpiresAt.After(now) {
			clone := *session
			live = append(live, &clone)
		}
	}
	return live, nil
}

func (r *fakeSessionRepo) DeleteExpired(_ context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var removed int64
	for id, session := range r.sessions {
		if session.ExpiresAt.Before(before) {
			delete(r.sessions, id)
			removed++
		}
	}
	return removed, nil
}

// # Challenge Fake

type fakeChallengeRepo struct {
	mu         sync.Mutex
	challenges []*auth.Challenge // append order == issue order
}

func newFakeChallengeRepo() *fakeChallengeRepo {
	return &fakeChallengeRepo{}
}

func (r *fakeChallengeRepo) Supersede(_ context.Context, challenge *auth.Challenge) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.challenges {
		if existing.PrincipalID == challenge.PrincipalID && !existing.Consumed {
			existing.Consumed = true
		}
	}
	clone := *challenge
	r.challenges = append(r.challenges, &clone)
	return nil
}

func (r *fakeChallengeRepo) RecentByPrincipal(_ context.Context, principalID string, limit int) ([]*auth.Challenge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	recent := []*auth.Challenge{}
	for i := len(r.challenges) - 1; i >= 0 && len(recent) < limit; i-- {
		if r.challenges[i].PrincipalID == principalID {
			clone := *r.challenges[i]
			recent = append(recent, &clone)
		}
	}
	return recent, nil
}

func (r *fakeChallengeRepo) Consume(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, challenge := range r.challenges {
		if challenge.ID == id {
			if challenge.Consumed {
				return false, nil
			}
			challenge.Consumed = true
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeChallengeRepo) IncrementAttempts(_ context.Context, id string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, challenge := range r.challenges {
		if challenge.ID == id {
			challenge.Attempts++
			return challenge.Attempts, nil
		}
	}
	return 0, apperr.NotFound("Challenge")
}

func (r *fakeChallengeRepo) DeleteExpired(_ context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.challenges[:0]
	var removed int64
	for _, challenge := range r.challenges {
		if challenge.ExpiresAt.Before(before) {
			removed++
			continue
		}
		kept = append(kept, challenge)
	}
	r.challenges = kept
	return removed, nil
}

// # Throttle Fake

type fakeThrottleRepo struct {
	mu       sync.Mutex
	failures map[string]int64
	resends  map[string]bool
}

func newFakeThrottleRepo() *fakeThrottleRepo {
	return &fakeThrottleRepo{failures: map[string]int64{}, resends: map[string]bool{}}
}

func (r *fakeThrottleRepo) RecordFailure(_ context.Context, identifier string, _ time.Duration) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures[identifier]++
	return r.failures[identifier], nil
}

func (r *fakeThrottleRepo) Failures(_ context.Context, identifier string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.failures[identifier], nil
}

func (r *fakeThrottleRepo) ClearFailures(_ context.Context, identifier string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.failures, identifier)
	return nil
}

func (r *fakeThrottleRepo) MarkResend(_ context.Context, principalID string, _ time.Duration) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.resends[principalID] {
		return false, nil
	}
	r.resends[principalID] = true
	return true, nil
}

func farFuture() time.Time {
	return time.Now().Add(24 * time.Hour)
}

// # Sender Fake

type fakeSender struct {
	mu    sync.Mutex
	codes []string
	fail  bool
}

func (s *fakeSender) SendCode(_ context.Context, _ string, code string, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return context.DeadlineExceeded
	}
	s.codes = append(s.codes, code)
	return nil
}

func (s *fakeSender) lastCode() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.codes) == 0 {
		return ""
	}
	return s.codes[len(s.codes)-1]
}
