// Copyright (c) 2026 Solterra. All rights reserved.
// Author: platform@solterra.group

/*
Package audit records security-relevant authentication events.

Every transition that changes a principal's security posture (login, passcode
verification, forced rotation, session revocation, administrative changes) is
recorded here with enough context to reconstruct the timeline later.

Recorded events NEVER contain secrets: no passwords, no passcodes, no session
tokens. Identifiers and outcomes only.
*/
package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/solterra/solterra-api/internal/platform/ctxutil"
)

// Action identifies what happened.
type Action string

// Audit actions emitted by the auth flows.
const (
	ActionLoginSucceeded     Action = "login_succeeded"
	ActionLoginFailed        Action = "login_failed"
	ActionLoginLocked        Action = "login_locked"
	ActionOTPIssued          Action = "otp_issued"
	ActionOTPResent          Action = "otp_resent"
	ActionOTPVerified        Action = "otp_verified"
	ActionOTPRejected        Action = "otp_rejected"
	ActionPasswordRotated    Action = "password_rotated"
	ActionPasswordRejected   Action = "password_rejected"
	ActionSessionIssued      Action = "session_issued"
	ActionSessionRevoked     Action = "session_revoked"
	ActionSessionsRevokedAll Action = "sessions_revoked_all"
	ActionPrincipalCreated   Action = "principal_created"
	ActionPrincipalUpdated   Action = "principal_updated"
	ActionPrincipalDisabled  Action = "principal_disabled"
)

// Event is a single audit record.
type Event struct {
	Action      Action
	PrincipalID string
	ActorID     string // who performed the action, when not the principal itself
	Detail      string
	OccurredAt  time.Time
}

// Recorder persists audit events.
//
// The interface lets flows stay ignorant of the sink: production uses the
// structured log stream, tests use [Nop].
type Recorder interface {
	Record(ctx context.Context, event Event)
}

// LogRecorder writes audit events to the structured log under a fixed
// "audit" marker so they can be filtered downstream.
type LogRecorder struct {
	logger *slog.Logger
}

// NewLogRecorder creates a Recorder backed by the given logger.
func NewLogRecorder(logger *slog.Logger) *LogRecorder {
	return &LogRecorder{logger: logger}
}

// Record implements Recorder.
func (r *LogRecorder) Record(ctx context.Context, event Event) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	attrs := []any{
		slog.String("audit_action", string(event.Action)),
		slog.Time("occurred_at", event.OccurredAt),
	}
	if event.PrincipalID != "" {
		attrs = append(attrs, slog.String("principal_id", event.PrincipalID))
	}
	if event.ActorID != "" {
		attrs = append(attrs, slog.String("actor_id", event.ActorID))
	}
	if event.Detail != "" {
		attrs = append(attrs, slog.String("detail", event.Detail))
	}
	if requestID := ctxutil.GetRequestID(ctx); requestID != "" {
		attrs = append(attrs, slog.String("request_id", requestID))
	}

	r.logger.Info("audit", attrs...)
}

// Nop discards all events. Intended for tests.
type Nop struct{}

// Record implements Recorder.
func (Nop) Record(context.Context, Event) {}
