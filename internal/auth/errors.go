// Copyright (c) 2026 Solterra. All rights reserved.
// Author: platform@solterra.group

package auth

import (
	"net/http"

	"github.com/solterra/solterra-api/internal/platform/apperr"
)

// # Error Taxonomy
//
// The credential stage exposes exactly one error (ErrLoginFailed) regardless
// of the underlying cause, so responses never reveal whether an email exists,
// a password was wrong, or a second factor was required. Post-credential
// stages (passcode, password policy) return specific errors: the caller has
// already proven partial knowledge.

var (
	// ErrLoginFailed is the single generic credential-stage failure.
	ErrLoginFailed = &apperr.AppError{
		Code:       "LOGIN_FAILED",
		Message:    "Invalid login credentials",
		HTTPStatus: http.StatusUnauthorized,
	}

	// ErrOTPExpired means the passcode's time window has passed.
	ErrOTPExpired = &apperr.AppError{
		Code:       "OTP_EXPIRED",
		Message:    "Verification code has expired. Request a new one.",
		HTTPStatus: http.StatusUnauthorized,
	}

	// ErrOTPMismatch means the presented passcode did not match.
	ErrOTPMismatch = &apperr.AppError{
		Code:       "OTP_MISMATCH",
		Message:    "Verification code is incorrect",
		HTTPStatus: http.StatusUnauthorized,
	}

	// ErrOTPAttemptsExceeded means the challenge burned all its attempts.
	// Returned without checking the presented code.
	ErrOTPAttemptsExceeded = &apperr.AppError{
		Code:       "OTP_ATTEMPTS_EXCEEDED",
		Message:    "Too many incorrect attempts. Request a new code.",
		HTTPStatus: http.StatusUnauthorized,
	}

	// ErrOTPConsumed means the passcode was already used or superseded.
	ErrOTPConsumed = &apperr.AppError{
		Code:       "OTP_CONSUMED",
		Message:    "Verification code has already been used",
		HTTPStatus: http.StatusUnauthorized,
	}

	// ErrNoActiveChallenge means no live passcode challenge exists.
	ErrNoActiveChallenge = &apperr.AppError{
		Code:       "NO_ACTIVE_CHALLENGE",
		Message:    "No active verification code. Request a new one.",
		HTTPStatus: http.StatusUnauthorized,
	}

	// ErrDeliveryFailed means the passcode could not be delivered after
	// bounded retries. The challenge itself stays live; the principal may
	// request a resend.
	ErrDeliveryFailed = &apperr.AppError{
		Code:       "DELIVERY_FAILED",
		Message:    "Could not deliver the verification code. Try resending.",
		HTTPStatus: http.StatusServiceUnavailable,
	}

	// ErrSessionNotFound means the token matches no session record.
	ErrSessionNotFound = &apperr.AppError{
		Code:       "SESSION_NOT_FOUND",
		Message:    "Session is invalid",
		HTTPStatus: http.StatusUnauthorized,
	}

	// ErrSessionExpired means the session's time window has passed.
	ErrSessionExpired = &apperr.AppError{
		Code:       "SESSION_EXPIRED",
		Message:    "Session has expired",
		HTTPStatus: http.StatusUnauthorized,
	}

	// ErrSessionRevoked means the session was explicitly revoked.
	ErrSessionRevoked = &apperr.AppError{
		Code:       "SESSION_REVOKED",
		Message:    "Session has been revoked",
		HTTPStatus: http.StatusUnauthorized,
	}

	// ErrInvalidCredentials means the current password check failed during
	// rotation. Distinct from ErrLoginFailed: the caller is already past the
	// credential stage.
	ErrInvalidCredentials = &apperr.AppError{
		Code:       "INVALID_CREDENTIALS",
		Message:    "Current password is incorrect",
		HTTPStatus: http.StatusUnauthorized,
	}

	// ErrPasswordReuse means the new password equals the current one.
	ErrPasswordReuse = &apperr.AppError{
		Code:       "PASSWORD_REUSE",
		Message:    "New password must differ from the current password",
		HTTPStatus: http.StatusUnprocessableEntity,
	}
)

// PasswordPolicyViolation builds the policy failure error carrying the
// ordered list of violated rule names as field details.
func PasswordPolicyViolation(violations []string) *apperr.AppError {
	details := make([]apperr.FieldError, 0, len(violations))
	for _, rule := range violations {
		details = append(details, apperr.FieldError{Field: FieldNewPassword, Message: rule})
	}
	return &apperr.AppError{
		Code:       "PASSWORD_POLICY_VIOLATION",
		Message:    "Password does not meet the strength policy",
		HTTPStatus: http.StatusUnprocessableEntity,
		Details:    details,
	}
}
