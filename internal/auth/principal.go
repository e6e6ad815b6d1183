// Copyright (c) 2026 Solterra. All rights reserved.
// Author: platform@solterra.group

/*
Package auth implements the identity, credential, and session lifecycle layer.

It defines the core domain entities (Principal, Session, Challenge) and the
services that move a login attempt through its states: credential check,
one-time passcode verification, forced password rotation, session issuance.

# Architecture

This layer is the "Truth" of the system. Entities defined here have no
transport dependencies and encapsulate all business rules related to identity.
*/
package auth

import (
	"time"

	"github.com/solterra/solterra-api/internal/access"
)

// # Domain Entities

// Principal represents a staff member of the Solterra platform.
//
// Principals are provisioned by administrators; there is no self-service
// registration. Role is resolved once at session issuance and snapshotted
// into the session record, never re-derived per request.
type Principal struct {
	ID                 string      `json:"id"`
	Email              string      `json:"email"`
	DisplayName        string      `json:"display_name"`
	PasswordHash       string      `json:"-"` // Explicitly omitted from JSON for security.
	Role               access.Role `json:"role"`
	OTPRequired        bool        `json:"otp_required"`
	MustChangePassword bool        `json:"must_change_password"`
	Disabled           bool        `json:"disabled"`
	CreatedAt          time.Time   `json:"created_at"`
	UpdatedAt          time.Time   `json:"updated_at"`
}

// Session represents an active authenticated session.
//
// The opaque token handed to the client is never stored; only its SHA-256
// hash is. Role is the snapshot taken at issuance.
type Session struct {
	ID          string      `json:"id"`
	PrincipalID string      `json:"principal_id"`
	TokenHash   string      `json:"-"` // Hashed value of the session token. Omitted for security.
	Role        access.Role `json:"role"`
	UserAgent   string      `json:"user_agent"`
	IPAddress   string      `json:"ip_address"`
	IssuedAt    time.Time   `json:"issued_at"`
	ExpiresAt   time.Time   `json:"expires_at"`
	IsRevoked   bool        `json:"is_revoked"`
}

// Challenge represents a one-time passcode challenge.
//
// At most one live (non-expired, non-consumed) challenge exists per principal;
// issuing a new one supersedes any prior live challenge.
type Challenge struct {
	ID          string    `json:"id"`
	PrincipalID string    `json:"principal_id"`
	CodeHash    string    `json:"-"` // Hashed passcode. Plaintext is never stored.
	IssuedAt    time.Time `json:"issued_at"`
	ExpiresAt   time.Time `json:"expires_at"`
	Attempts    int       `json:"attempts"`
	Consumed    bool      `json:"consumed"`
}

// Live reports whether the challenge can still accept verification attempts
// at the given instant.
func (c *Challenge) Live(now time.Time) bool {
	return !c.Consumed && now.Before(c.ExpiresAt)
}

// # Field Identifiers

// Global field names for validation and payload mapping in the auth domain.
const (
	FieldEmail           = "email"
	FieldPassword        = "password"
	FieldCode            = "code"
	FieldTicket          = "ticket"
	FieldCurrentPassword = "current_password"
	FieldNewPassword     = "new_password"
	FieldDisplayName     = "display_name"
	FieldRole            = "role"
	FieldStatus          = "status"
	FieldSessionID       = "session_id"
	FieldMessage         = "message"
	FieldStrength        = "strength"
	FieldViolations      = "violations"
	FieldTempPassword    = "temp_password"
	FieldDisabled        = "disabled"
)
