// Copyright (c) 2026 Solterra. All rights reserved.
// Author: platform@solterra.group

package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/solterra/solterra-api/internal/audit"
	"github.com/solterra/solterra-api/internal/platform/apperr"
	"github.com/solterra/solterra-api/internal/platform/obs"
	"github.com/solterra/solterra-api/internal/platform/sec"
)

// # Login Flow States

// State names the position of a login attempt in its lifecycle.
type State string

const (
	StateAwaitingCredentials    State = "awaiting_credentials"
	StateCredentialsValid       State = "credentials_valid"
	StateAwaitingOTP            State = "awaiting_otp"
	StateOTPVerified            State = "otp_verified"
	StateAwaitingPasswordChange State = "awaiting_password_change"
	StateAuthenticated          State = "authenticated"
)

// Status values returned to clients. A status names the next step the client
// must take, never the internal state that produced it.
const (
	StatusAuthenticated          = "authenticated"
	StatusOTPRequired            = "otp_required"
	StatusPasswordChangeRequired = "password_change_required"
)

// FlowResult is the outcome of a login-flow step.
//
// Ticket carries the principal across the multi-request flow when the next
// step is a passcode or a forced rotation; Token and Session are set only
// once the flow reaches its terminal authenticated state.
type FlowResult struct {
	Status  string
	Ticket  string
	Token   string
	Session *Session
}

// ErrTicketInvalid rejects a missing, malformed, expired, or wrong-stage
// login ticket.
var ErrTicketInvalid = &apperr.AppError{
	Code:       "TICKET_INVALID",
	Message:    "Login step is invalid or has expired. Sign in again.",
	HTTPStatus: 401,
}

// Flow orchestrates the end-to-end login state machine.
//
// # States
//
// awaiting_credentials -> credentials_valid -> awaiting_otp (when the
// principal requires a second factor) -> otp_verified ->
// awaiting_password_change (when rotation is forced) -> authenticated.
//
// Every credential-stage failure collapses to the single generic
// ErrLoginFailed and returns the attempt to awaiting_credentials; the
// response never reveals whether the email exists, the password was wrong,
// or a second factor was required. A session is issued only at the terminal
// state: a principal in awaiting_password_change holds a short-lived rotation
// ticket, never a session.
type Flow struct {
	principals  PrincipalRepository
	credentials *CredentialService
	passcodes   *OTPManager
	sessions    *SessionManager
	throttle    ThrottleRepository
	tickets     *sec.TicketService
	recorder    audit.Recorder

	lockoutThreshold int64
	lockoutWindow    time.Duration
}

// NewFlow constructs the login flow orchestrator.
func NewFlow(
	principals PrincipalRepository,
	credentials *CredentialService,
	passcodes *OTPManager,
	sessions *SessionManager,
	throttle ThrottleRepository,
	tickets *sec.TicketService,
	recorder audit.Recorder,
	lockoutThreshold int,
	lockoutWindow time.Duration,
) *Flow {
	return &Flow{
		principals:       principals,
		credentials:      credentials,
		passcodes:        passcodes,
		sessions:         sessions,
		throttle:         throttle,
		tickets:          tickets,
		recorder:         recorder,
		lockoutThreshold: int64(lockoutThreshold),
		lockoutWindow:    lockoutWindow,
	}
}

// # Transitions

/*
Begin runs the credential stage of a login attempt.

Description: Every failure in this stage (unknown email, disabled principal,
wrong password, lockout) produces the identical ErrLoginFailed. On success
the attempt advances to whichever state the principal's flags require; a
session is issued immediately only when neither a second factor nor a forced
rotation stands in the way.

When the next step is a passcode and delivery fails, the returned result is
still populated alongside ErrDeliveryFailed: the challenge is live and the
ticket lets the client request a resend.

Parameters:
  - context: context.Context
  - email: string
  - password: string
  - userAgent: string
  - ipAddress: string

Returns:
  - *FlowResult: Next step for the client
  - error: ErrLoginFailed, ErrDeliveryFailed, or internal failures
*/
func (flow *Flow) Begin(context context.Context, email, password, userAgent, ipAddress string) (*FlowResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	// ── 1. Lockout Gate ───────────────────────────────────────────────────
	failures, err := flow.throttle.Failures(context, email)
	if err != nil {
		return nil, fmt.Errorf("flow_lockout_check_failed: %w", err)
	}
	if failures >= flow.lockoutThreshold {
		obs.IncLogin("locked")
		flow.recorder.Record(context, audit.Event{
			Action: audit.ActionLoginLocked,
			Detail: "credential stage lockout",
		})
		// Identical response to any other credential failure.
		return nil, ErrLoginFailed
	}

	// ── 2. Credential Check ───────────────────────────────────────────────
	principal, err := flow.principals.FindByEmail(context, email)
	if err != nil {
		if apperr.IsAppError(err) {
			return nil, flow.credentialFailure(context, email, "unknown email")
		}
		return nil, fmt.Errorf("flow_principal_lookup_failed: %w", err)
	}

	if principal.Disabled {
		return nil, flow.credentialFailure(context, email, "disabled principal")
	}

	if !sec.CheckPasswordHash(password, principal.PasswordHash) {
		return nil, flow.credentialFailure(context, email, "password mismatch")
	}

	if err := flow.throttle.ClearFailures(context, email); err != nil {
		return nil, fmt.Errorf("flow_lockout_clear_failed: %w", err)
	}

	obs.IncLogin("success")
	flow.recorder.Record(context, audit.Event{
		Action:      audit.ActionLoginSucceeded,
		PrincipalID: principal.ID,
	})

	// ── 3. Second Factor ──────────────────────────────────────────────────
	if principal.OTPRequired {
		ticket, err := flow.tickets.Issue(principal.ID, principal.Email, sec.StageOTP, TicketTTLOTP)
		if err != nil {
			return nil, fmt.Errorf("flow_ticket_issue_failed: %w", err)
		}

		result := &FlowResult{Status: StatusOTPRequired, Ticket: ticket}
		if err := flow.passcodes.Issue(context, principal); err != nil {
			if errors.Is(err, ErrDeliveryFailed) {
				// Challenge is live; hand back the ticket so the client
				// can ask for a resend.
				return result, ErrDeliveryFailed
			}
			return nil, err
		}

		return result, nil
	}

	// ── 4. Forced Rotation ────────────────────────────────────────────────
	if principal.MustChangePassword {
		return flow.rotationRequired(principal)
	}

	// ── 5. Terminal: Session Issuance ─────────────────────────────────────
	return flow.authenticate(context, principal, userAgent, ipAddress)
}

/*
VerifyOTP runs the passcode stage of a login attempt.

Description: The ticket issued by Begin proves the credential stage already
passed; the raw principal id never travels through the client. Passcode
failures are specific (expired, mismatch, exceeded, consumed) since the
caller has proven partial knowledge.

Parameters:
  - context: context.Context
  - ticket: string (stage "otp")
  - code: string
  - userAgent: string
  - ipAddress: string

Returns:
  - *FlowResult: Next step for the client
  - error: ErrTicketInvalid, the passcode taxonomy, or internal failures
*/
func (flow *Flow) VerifyOTP(context context.Context, ticket, code, userAgent, ipAddress string) (*FlowResult, error) {
	claims, err := flow.tickets.Verify(ticket, sec.StageOTP)
	if err != nil {
		return nil, ErrTicketInvalid
	}

	if err := flow.passcodes.Verify(context, claims.PrincipalID, code); err != nil {
		return nil, err
	}

	principal, err := flow.principals.FindByID(context, claims.PrincipalID)
	if err != nil {
		return nil, err
	}
	if principal.Disabled {
		return nil, ErrLoginFailed
	}

	if principal.MustChangePassword {
		return flow.rotationRequired(principal)
	}

	return flow.authenticate(context, principal, userAgent, ipAddress)
}

/*
ResendOTP issues a fresh passcode for an in-flight login attempt.

Parameters:
  - context: context.Context
  - ticket: string (stage "otp")

Returns:
  - error: ErrTicketInvalid, apperr.RateLimited, ErrDeliveryFailed, or internal failures
*/
func (flow *Flow) ResendOTP(context context.Context, ticket string) error {
	claims, err := flow.tickets.Verify(ticket, sec.StageOTP)
	if err != nil {
		return ErrTicketInvalid
	}

	principal, err := flow.principals.FindByID(context, claims.PrincipalID)
	if err != nil {
		return err
	}
	if principal.Disabled {
		return ErrLoginFailed
	}

	return flow.passcodes.Resend(context, principal)
}

/*
CompleteForcedRotation finishes a login attempt parked at the forced
password-change state.

Description: The rotation-stage ticket is the only proof the client holds;
no session exists yet. Rotation revokes every prior session for the
principal, then the flow reaches its terminal state and a session is issued.

Parameters:
  - context: context.Context
  - ticket: string (stage "password_change")
  - currentPassword: string
  - newPassword: string
  - userAgent: string
  - ipAddress: string

Returns:
  - *FlowResult: Authenticated result with session token
  - error: ErrTicketInvalid, the rotation taxonomy, or internal failures
*/
func (flow *Flow) CompleteForcedRotation(context context.Context, ticket, currentPassword, newPassword, userAgent, ipAddress string) (*FlowResult, error) {
	claims, err := flow.tickets.Verify(ticket, sec.StagePasswordChange)
	if err != nil {
		return nil, ErrTicketInvalid
	}

	if err := flow.credentials.Rotate(context, claims.PrincipalID, currentPassword, newPassword, ""); err != nil {
		return nil, err
	}

	principal, err := flow.principals.FindByID(context, claims.PrincipalID)
	if err != nil {
		return nil, err
	}
	if principal.Disabled {
		return nil, ErrLoginFailed
	}

	return flow.authenticate(context, principal, userAgent, ipAddress)
}

// # Internals

// credentialFailure records a failed credential attempt and returns the
// generic stage error. The audit detail carries the true cause; the caller
// never sees it.
func (flow *Flow) credentialFailure(context context.Context, email, detail string) error {
	if _, err := flow.throttle.RecordFailure(context, email, flow.lockoutWindow); err != nil {
		return fmt.Errorf("flow_lockout_record_failed: %w", err)
	}

	obs.IncLogin("failed")
	flow.recorder.Record(context, audit.Event{
		Action: audit.ActionLoginFailed,
		Detail: detail,
	})

	return ErrLoginFailed
}

func (flow *Flow) rotationRequired(principal *Principal) (*FlowResult, error) {
	ticket, err := flow.tickets.Issue(principal.ID, principal.Email, sec.StagePasswordChange, TicketTTLPasswordChange)
	if err != nil {
		return nil, fmt.Errorf("flow_ticket_issue_failed: %w", err)
	}
	return &FlowResult{Status: StatusPasswordChangeRequired, Ticket: ticket}, nil
}

func (flow *Flow) authenticate(context context.Context, principal *Principal, userAgent, ipAddress string) (*FlowResult, error) {
	token, session, err := flow.sessions.Issue(context, principal, userAgent, ipAddress)
	if err != nil {
		return nil, err
	}

	return &FlowResult{
		Status:  StatusAuthenticated,
		Token:   token,
		Session: session,
	}, nil
}
