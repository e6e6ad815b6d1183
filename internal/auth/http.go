// Copyright (c) 2026 Solterra. All rights reserved.
// Author: platform@solterra.group

/*
HTTP delivery layer for the login flow.

The handler acts as a thin mediation layer between the web and domain
services:
  - Protocol: Standard RESTful JSON interface.
  - Security: Handles session cookie injection and login ticket relay.
  - Verification: Enforces strict input validation before passing to [Flow].

This layer is strictly responsible for transport concerns (status codes,
headers, JSON, cookies).
*/
package auth

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/solterra/solterra-api/internal/platform/constants"
	"github.com/solterra/solterra-api/internal/platform/middleware"
	requestutil "github.com/solterra/solterra-api/internal/platform/request"
	"github.com/solterra/solterra-api/internal/platform/respond"
	"github.com/solterra/solterra-api/internal/platform/validate"
)

// # Definitions & Constructors

// Handler implements the login-flow HTTP endpoints.
type Handler struct {
	flow        *Flow
	credentials *CredentialService
	sessions    *SessionManager
}

// NewHandler constructs a new [Handler] with its service dependencies.
func NewHandler(flow *Flow, credentials *CredentialService, sessions *SessionManager) *Handler {
	return &Handler{
		flow:        flow,
		credentials: credentials,
		sessions:    sessions,
	}
}

// Routes returns a [chi.Router] configured with login-flow routes.
//
// # Endpoints
//   - POST /login             : Credential stage; may return a continuation ticket.
//   - POST /verify-otp        : Passcode stage.
//   - POST /resend-otp        : Re-delivers the passcode.
//   - POST /change-password   : Rotation, forced (ticket) or voluntary (session).
//   - POST /password-strength : Advisory policy feedback.
//   - POST /logout            : Revokes the current session.
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()

	// Public endpoints
	router.Post("/login", handler.login)
	router.Post("/verify-otp", handler.verifyOTP)
	router.Post("/resend-otp", handler.resendOTP)
	router.Post("/password-strength", handler.passwordStrength)
	router.Post("/logout", handler.logout)

	// Forced rotation arrives with a ticket and no session, so the endpoint
	// stays public; the voluntary path checks its own identity.
	router.Post("/change-password", handler.changePassword)

	return router
}

// # Request Payloads

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type verifyOTPRequest struct {
	Ticket string `json:"ticket"`
	Code   string `json:"code"`
}

type resendOTPRequest struct {
	Ticket string `json:"ticket"`
}

type changePasswordRequest struct {
	Ticket          string `json:"ticket,omitempty"`
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

type passwordStrengthRequest struct {
	Password string `json:"password"`
}

// # Response Payloads

type flowResponse struct {
	Status    string `json:"status"`
	Ticket    string `json:"ticket,omitempty"`
	Delivered *bool  `json:"delivered,omitempty"`
}

type strengthResponse struct {
	Strength   Strength `json:"strength"`
	Valid      bool     `json:"valid"`
	Violations []string `json:"violations"`
}

/*
Login handles the credential stage of a login attempt.

POST /api/v1/auth/login

Description: On full success the session cookie is set. When a second factor
or forced rotation is pending, the response carries a continuation ticket
instead. Every credential failure maps to the identical 401.

Request:
  - Body: loginRequest (Email, Password)

Response:
  - 200: flowResponse: Status plus optional ticket; cookie on "authenticated".
    When passcode delivery failed, Status is "otp_required" with
    Delivered=false; the challenge is live and /resend-otp applies.
  - 400: ErrInvalidJSON: Bad input or validation failure
  - 401: LOGIN_FAILED: Generic credential-stage failure
*/
func (handler *Handler) login(writer http.ResponseWriter, request *http.Request) {
	var input loginRequest

	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	validator := &validate.Validator{}
	validator.Required(FieldEmail, input.Email).
		Email(FieldEmail, input.Email).
		Required(FieldPassword, input.Password)

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	result, err := handler.flow.Begin(request.Context(), input.Email, input.Password, request.UserAgent(), middleware.RealIP(request))
	if err != nil {
		// Delivery failure still advances the flow; the ticket must reach
		// the client so it can request a resend.
		if errors.Is(err, ErrDeliveryFailed) && result != nil {
			delivered := false
			respond.OK(writer, flowResponse{Status: result.Status, Ticket: result.Ticket, Delivered: &delivered})
			return
		}
		respond.Error(writer, request, err)
		return
	}

	handler.finish(writer, result)
}

/*
VerifyOTP handles the passcode stage of a login attempt.

POST /api/v1/auth/verify-otp

Request:
  - Body: verifyOTPRequest (Ticket, Code)

Response:
  - 200: flowResponse: Next step; cookie on "authenticated"
  - 400: ErrInvalidJSON: Bad input or validation failure
  - 401: TICKET_INVALID or the passcode error taxonomy
*/
func (handler *Handler) verifyOTP(writer http.ResponseWriter, request *http.Request) {
	var input verifyOTPRequest

	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	validator := &validate.Validator{}
	validator.Required(FieldTicket, input.Ticket).
		Required(FieldCode, input.Code)

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	result, err := handler.flow.VerifyOTP(request.Context(), input.Ticket, input.Code, request.UserAgent(), middleware.RealIP(request))
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	handler.finish(writer, result)
}

/*
ResendOTP re-delivers the passcode for an in-flight login attempt.

POST /api/v1/auth/resend-otp

Request:
  - Body: resendOTPRequest (Ticket)

Response:
  - 200: flowResponse: Status "otp_required"
  - 401: TICKET_INVALID
  - 429: RATE_LIMITED: Cooldown still armed
  - 503: DELIVERY_FAILED
*/
func (handler *Handler) resendOTP(writer http.ResponseWriter, request *http.Request) {
	var input resendOTPRequest

	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	validator := &validate.Validator{}
	validator.Required(FieldTicket, input.Ticket)

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.flow.ResendOTP(request.Context(), input.Ticket); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, flowResponse{Status: StatusOTPRequired})
}

/*
ChangePassword rotates the caller's password.

POST /api/v1/auth/change-password

Description: Two modes share the endpoint. With a rotation-stage ticket the
call completes a forced rotation mid-login and ends authenticated with a
cookie. With an authenticated session (and no ticket) it is a voluntary
rotation; the current session survives, all others are revoked.

Request:
  - Body: changePasswordRequest (Ticket?, CurrentPassword, NewPassword)

Response:
  - 200: flowResponse (forced mode) or empty object (voluntary mode)
  - 401: TICKET_INVALID, INVALID_CREDENTIALS, or missing session
  - 422: PASSWORD_POLICY_VIOLATION (with violations) or PASSWORD_REUSE
*/
func (handler *Handler) changePassword(writer http.ResponseWriter, request *http.Request) {
	var input changePasswordRequest

	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	validator := &validate.Validator{}
	validator.Required(FieldCurrentPassword, input.CurrentPassword).
		Required(FieldNewPassword, input.NewPassword)

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	// Forced mode: rotation ticket, no session yet.
	if input.Ticket != "" {
		result, err := handler.flow.CompleteForcedRotation(request.Context(), input.Ticket, input.CurrentPassword, input.NewPassword, request.UserAgent(), middleware.RealIP(request))
		if err != nil {
			respond.Error(writer, request, err)
			return
		}
		handler.finish(writer, result)
		return
	}

	// Voluntary mode: authenticated caller rotating its own password.
	identity, err := requestutil.RequiredIdentity(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.credentials.Rotate(request.Context(), identity.PrincipalID, input.CurrentPassword, input.NewPassword, identity.SessionID); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, struct{}{})
}

/*
PasswordStrength returns advisory policy feedback for a candidate password.

POST /api/v1/auth/password-strength

Description: Advisory only; nothing here gates any flow.

Request:
  - Body: passwordStrengthRequest (Password)

Response:
  - 200: strengthResponse
*/
func (handler *Handler) passwordStrength(writer http.ResponseWriter, request *http.Request) {
	var input passwordStrengthRequest

	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	result := ValidatePassword(input.Password)
	respond.OK(writer, strengthResponse{
		Strength:   PasswordStrength(input.Password),
		Valid:      result.Valid,
		Violations: result.Violations,
	})
}

/*
Logout revokes the caller's current session.

POST /api/v1/auth/logout

Description: Idempotent; a missing or already-dead cookie still returns 200.
The cookie is cleared either way.

Response:
  - 200: Empty object
*/
func (handler *Handler) logout(writer http.ResponseWriter, request *http.Request) {
	if cookie, err := request.Cookie(constants.SessionCookieName); err == nil && cookie.Value != "" {
		if err := handler.sessions.Revoke(request.Context(), cookie.Value); err != nil {
			respond.Error(writer, request, err)
			return
		}
	}

	clearSessionCookie(writer)
	respond.OK(writer, struct{}{})
}

// # Cookie Handling

// finish writes the flow result, setting the session cookie when the flow
// reached its terminal state.
func (handler *Handler) finish(writer http.ResponseWriter, result *FlowResult) {
	if result.Status == StatusAuthenticated {
		setSessionCookie(writer, result.Token, result.Session.ExpiresAt)
	}
	respond.OK(writer, flowResponse{Status: result.Status, Ticket: result.Ticket})
}

func setSessionCookie(writer http.ResponseWriter, token string, expiresAt time.Time) {
	http.SetCookie(writer, &http.Cookie{
		Name:     constants.SessionCookieName,
		Value:    token,
		Path:     constants.SessionCookiePath,
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
	})
}

func clearSessionCookie(writer http.ResponseWriter) {
	http.SetCookie(writer, &http.Cookie{
		Name:     constants.SessionCookieName,
		Value:    "",
		Path:     constants.SessionCookiePath,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
	})
}

// Compile-time check that SessionManager satisfies the middleware contract.
var _ middleware.SessionValidator = (*SessionManager)(nil)
