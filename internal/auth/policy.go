// Copyright (c) 2026 Solterra. All rights reserved.
// Author: platform@solterra.group

package auth

import (
	"context"
	"fmt"
	"unicode"

	"github.com/solterra/solterra-api/internal/audit"
	"github.com/solterra/solterra-api/internal/platform/sec"
)

// # Password Policy

// Strength is the advisory password strength band. Used only for UI
// feedback, never for gating.
type Strength string

const (
	StrengthWeak   Strength = "weak"
	StrengthMedium Strength = "medium"
	StrengthStrong Strength = "strong"
)

// Rule names reported in violation lists, in the fixed evaluation order.
const (
	RuleMinLength = "min_length"
	RuleUppercase = "uppercase"
	RuleLowercase = "lowercase"
	RuleDigit     = "digit"
	RuleSpecial   = "special"
)

// MinPasswordLength is the policy's length floor.
const MinPasswordLength = 8

// PolicyResult is the outcome of a password policy check.
type PolicyResult struct {
	Valid      bool     `json:"valid"`
	Violations []string `json:"violations"`
}

// policyRules lists every rule in evaluation order. The fixed order keeps
// violation lists deterministic.
var policyRules = []struct {
	name  string
	check func(password string) bool
}{
	{RuleMinLength, func(password string) bool { return len(password) >= MinPasswordLength }},
	{RuleUppercase, func(password string) bool { return containsClass(password, unicode.IsUpper) }},
	{RuleLowercase, func(password string) bool { return containsClass(password, unicode.IsLower) }},
	{RuleDigit, func(password string) bool { return containsClass(password, unicode.IsDigit) }},
	{RuleSpecial, func(password string) bool {
		return containsClass(password, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
	}},
}

func containsClass(password string, class func(rune) bool) bool {
	for _, r := range password {
		if class(r) {
			return true
		}
	}
	return false
}

/*
ValidatePassword checks a candidate password against every policy rule.

Description: Rules are checked independently; a short all-lowercase password
reports every violated rule, not just the first.

Parameters:
  - password: string

Returns:
  - PolicyResult: Valid flag plus ordered violation names
*/
func ValidatePassword(password string) PolicyResult {
	violations := []string{}
	for _, rule := range policyRules {
		if !rule.check(password) {
			violations = append(violations, rule.name)
		}
	}
	return PolicyResult{Valid: len(violations) == 0, Violations: violations}
}

/*
PasswordStrength bands a candidate password by how many rules it satisfies.

Parameters:
  - password: string

Returns:
  - Strength: weak (<=2 rules), medium (3-4), strong (all 5)
*/
func PasswordStrength(password string) Strength {
	satisfied := 0
	for _, rule := range policyRules {
		if rule.check(password) {
			satisfied++
		}
	}

	switch {
	case satisfied <= 2:
		return StrengthWeak
	case satisfied <= 4:
		return StrengthMedium
	default:
		return StrengthStrong
	}
}

// # Credential Rotation

// CredentialService orchestrates password rotation.
//
// Rotation is the only path that mutates a principal's password hash. On
// success it clears the forced-rotation flag and revokes the principal's
// other live sessions so a stolen password stops working everywhere at once.
type CredentialService struct {
	principals PrincipalRepository
	sessions   SessionRepository
	recorder   audit.Recorder
}

// NewCredentialService constructs a new [CredentialService].
func NewCredentialService(principals PrincipalRepository, sessions SessionRepository, recorder audit.Recorder) *CredentialService {
	return &CredentialService{
		principals: principals,
		sessions:   sessions,
		recorder:   recorder,
	}
}

/*
Rotate replaces a principal's password after verifying the current one.

Description: Checks run in a fixed order so the caller always learns the
earliest failure: current-password verification, then policy, then reuse.
On success the new hash is persisted, mustchangepassword clears, and every
session other than keepSessionID is revoked (all of them when keepSessionID
is empty, as in the forced-rotation flow where no session exists yet).

Parameters:
  - context: context.Context
  - principalID: string
  - currentPassword: string
  - newPassword: string
  - keepSessionID: string (empty revokes every session)

Returns:
  - error: ErrInvalidCredentials, PasswordPolicyViolation, ErrPasswordReuse, or storage failures
*/
func (service *CredentialService) Rotate(context context.Context, principalID, currentPassword, newPassword, keepSessionID string) error {
	principal, err := service.principals.FindByID(context, principalID)
	if err != nil {
		return err
	}

	// bcrypt's comparison is constant-time over the hash.
	if !sec.CheckPasswordHash(currentPassword, principal.PasswordHash) {
		service.recorder.Record(context, audit.Event{
			Action:      audit.ActionPasswordRejected,
			PrincipalID: principalID,
			Detail:      "current password mismatch",
		})
		return ErrInvalidCredentials
	}

	if result := ValidatePassword(newPassword); !result.Valid {
		service.recorder.Record(context, audit.Event{
			Action:      audit.ActionPasswordRejected,
			PrincipalID: principalID,
			Detail:      "policy violation",
		})
		return PasswordPolicyViolation(result.Violations)
	}

	if newPassword == currentPassword {
		service.recorder.Record(context, audit.Event{
			Action:      audit.ActionPasswordRejected,
			PrincipalID: principalID,
			Detail:      "password reuse",
		})
		return ErrPasswordReuse
	}

	newHash, err := sec.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("credential_service_hash_failed: %w", err)
	}

	if err := service.principals.UpdatePassword(context, principalID, newHash); err != nil {
		return fmt.Errorf("credential_service_persist_failed: %w", err)
	}

	// A rotated password invalidates every other session for the principal.
	var revoked int64
	if keepSessionID == "" {
		revoked, err = service.sessions.RevokeAllForPrincipal(context, principalID)
	} else {
		revoked, err = service.sessions.RevokeOthers(context, principalID, keepSessionID)
	}
	if err != nil {
		return fmt.Errorf("credential_service_revoke_failed: %w", err)
	}

	service.recorder.Record(context, audit.Event{
		Action:      audit.ActionPasswordRotated,
		PrincipalID: principalID,
		Detail:      fmt.Sprintf("revoked %d other sessions", revoked),
	})

	return nil
}
