// Copyright (c) 2026 Solterra. All rights reserved.
// Author: platform@solterra.group

package auth

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/solterra/solterra-api/internal/access"
	"github.com/solterra/solterra-api/internal/audit"
	"github.com/solterra/solterra-api/internal/platform/apperr"
	"github.com/solterra/solterra-api/internal/platform/sec"
	"github.com/solterra/solterra-api/pkg/pagination"
	"github.com/solterra/solterra-api/pkg/uuid"
)

// AdminService implements administrative principal management.
//
// Principals are provisioned here with a generated temporary password and a
// forced rotation flag; the temporary password is returned exactly once, to
// the administrator, and never stored in plaintext.
type AdminService struct {
	principals PrincipalRepository
	sessions   *SessionManager
	recorder   audit.Recorder
	logger     *slog.Logger
}

// NewAdminService constructs a new [AdminService].
func NewAdminService(principals PrincipalRepository, sessions *SessionManager, recorder audit.Recorder, logger *slog.Logger) *AdminService {
	return &AdminService{
		principals: principals,
		sessions:   sessions,
		recorder:   recorder,
		logger:     logger,
	}
}

// CreatePrincipalInput holds the data required to provision a principal.
type CreatePrincipalInput struct {
	Email       string
	DisplayName string
	Role        access.Role
	OTPRequired bool
}

/*
CreatePrincipal provisions a new principal with a temporary password.

Description: The generated password is returned to the calling administrator
for out-of-band handover. mustchangepassword is set, so the principal's first
login is forced through rotation before any session is issued.

Parameters:
  - context: context.Context
  - actorID: string (administrator performing the action)
  - input: CreatePrincipalInput

Returns:
  - *Principal: Created entity
  - string: One-time temporary password
  - error: apperr.Conflict if the email exists, validation or storage failures
*/
func (service *AdminService) CreatePrincipal(context context.Context, actorID string, input CreatePrincipalInput) (*Principal, string, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))

	if !input.Role.Valid() {
		return nil, "", apperr.ValidationError("Unknown role", apperr.FieldError{Field: FieldRole, Message: "unknown role"})
	}

	if _, err := service.principals.FindByEmail(context, email); err == nil {
		return nil, "", apperr.Conflict("Email is already registered")
	}

	tempPassword, err := sec.GenerateSecureToken(TempPasswordLength)
	if err != nil {
		return nil, "", fmt.Errorf("admin_service_temp_password_failed: %w", err)
	}

	passwordHash, err := sec.HashPassword(tempPassword)
	if err != nil {
		return nil, "", fmt.Errorf("admin_service_hash_failed: %w", err)
	}

	principal := &Principal{
		ID:                 uuid.New(),
		Email:              email,
		DisplayName:        input.DisplayName,
		PasswordHash:       passwordHash,
		Role:               input.Role,
		OTPRequired:        input.OTPRequired,
		MustChangePassword: true,
	}

	if err := service.principals.Create(context, principal); err != nil {
		// The repository reports a duplicate email as Conflict when a
		// concurrent create wins the race against the lookup above.
		if apperr.IsAppError(err) {
			return nil, "", err
		}
		return nil, "", fmt.Errorf("admin_service_create_failed: %w", err)
	}

	service.recorder.Record(context, audit.Event{
		Action:      audit.ActionPrincipalCreated,
		PrincipalID: principal.ID,
		ActorID:     actorID,
		Detail:      string(principal.Role),
	})

	return principal, tempPassword, nil
}

// UpdatePrincipalInput holds optional mutations; nil fields are untouched.
type UpdatePrincipalInput struct {
	DisplayName *string
	Role        *access.Role
	OTPRequired *bool
	Disabled    *bool
}

/*
UpdatePrincipal applies partial mutations to a principal.

Description: Disabling a principal also revokes every live session it owns,
so lockout takes effect immediately rather than at next validation.

Parameters:
  - context: context.Context
  - actorID: string
  - principalID: string
  - input: UpdatePrincipalInput

Returns:
  - *Principal: Updated entity
  - error: apperr.NotFound, validation, or storage failures
*/
func (service *AdminService) UpdatePrincipal(context context.Context, actorID, principalID string, input UpdatePrincipalInput) (*Principal, error) {
	principal, err := service.principals.FindByID(context, principalID)
	if err != nil {
		return nil, err
	}

	if input.DisplayName != nil {
		principal.DisplayName = *input.DisplayName
	}
	if input.Role != nil {
		if !input.Role.Valid() {
			return nil, apperr.ValidationError("Unknown role", apperr.FieldError{Field: FieldRole, Message: "unknown role"})
		}
		principal.Role = *input.Role
	}
	if input.OTPRequired != nil {
		principal.OTPRequired = *input.OTPRequired
	}

	wasDisabled := principal.Disabled
	if input.Disabled != nil {
		principal.Disabled = *input.Disabled
	}

	if err := service.principals.Update(context, principal); err != nil {
		return nil, err
	}

	if !wasDisabled && principal.Disabled {
		if _, err := service.sessions.RevokeAll(context, principalID); err != nil {
			return nil, err
		}
		service.recorder.Record(context, audit.Event{
			Action:      audit.ActionPrincipalDisabled,
			PrincipalID: principalID,
			ActorID:     actorID,
		})
	} else {
		service.recorder.Record(context, audit.Event{
			Action:      audit.ActionPrincipalUpdated,
			PrincipalID: principalID,
			ActorID:     actorID,
		})
	}

	return principal, nil
}

/*
ListPrincipals returns a page of principals with pagination metadata.

Parameters:
  - context: context.Context
  - params: pagination.Params

Returns:
  - []*Principal: Page of entities
  - pagination.Meta: Page metadata
  - error: Database retrieval failures
*/
func (service *AdminService) ListPrincipals(context context.Context, params pagination.Params) ([]*Principal, pagination.Meta, error) {
	principals, total, err := service.principals.List(context, params.Limit, params.Offset())
	if err != nil {
		return nil, pagination.Meta{}, err
	}

	return principals, pagination.NewMeta(params.Page, params.Limit, total), nil
}

/*
EnsureBootstrapAdmin creates the first administrator on an empty deployment.

Description: Runs at startup. A no-op when any principal already exists or
when no bootstrap email is configured. The bootstrap account is created with
mustchangepassword set, so the configured password works exactly once.

Parameters:
  - context: context.Context
  - email: string (empty disables bootstrap)
  - password: string

Returns:
  - error: Storage failures
*/
func (service *AdminService) EnsureBootstrapAdmin(context context.Context, email, password string) error {
	if email == "" {
		return nil
	}

	count, err := service.principals.Count(context)
	if err != nil {
		return fmt.Errorf("admin_service_bootstrap_count_failed: %w", err)
	}
	if count > 0 {
		return nil
	}

	passwordHash, err := sec.HashPassword(password)
	if err != nil {
		return fmt.Errorf("admin_service_bootstrap_hash_failed: %w", err)
	}

	principal := &Principal{
		ID:                 uuid.New(),
		Email:              strings.ToLower(strings.TrimSpace(email)),
		DisplayName:        "Administrator",
		PasswordHash:       passwordHash,
		Role:               access.RoleAdmin,
		OTPRequired:        false,
		MustChangePassword: true,
	}

	if err := service.principals.Create(context, principal); err != nil {
		return fmt.Errorf("admin_service_bootstrap_create_failed: %w", err)
	}

	service.logger.Warn("bootstrap administrator created",
		slog.String("email", principal.Email),
	)
	service.recorder.Record(context, audit.Event{
		Action:      audit.ActionPrincipalCreated,
		PrincipalID: principal.ID,
		Detail:      "bootstrap",
	})

	return nil
}
