// Copyright (c) 2026 Solterra. All rights reserved.
// Author: platform@solterra.group

package auth

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/solterra/solterra-api/internal/access"
	"github.com/solterra/solterra-api/internal/platform/middleware"
	requestutil "github.com/solterra/solterra-api/internal/platform/request"
	"github.com/solterra/solterra-api/internal/platform/respond"
	"github.com/solterra/solterra-api/internal/platform/validate"
	"github.com/solterra/solterra-api/pkg/pagination"
)

// IAMHandler implements the authenticated identity-and-access endpoints:
// permission introspection, session transparency, and administrative
// principal management.
type IAMHandler struct {
	admin    *AdminService
	sessions *SessionManager
}

// NewIAMHandler constructs a new [IAMHandler].
func NewIAMHandler(admin *AdminService, sessions *SessionManager) *IAMHandler {
	return &IAMHandler{admin: admin, sessions: sessions}
}

// Routes returns a [chi.Router] configured with IAM routes.
//
// # Endpoints
//   - GET    /permissions               : Caller's effective grants.
//   - GET    /sessions                  : Caller's live sessions.
//   - DELETE /sessions                  : Revokes every session of the caller.
//   - DELETE /sessions/{sessionID}      : Revokes one session of the caller.
//   - GET    /principals                : Lists principals (user management, read).
//   - POST   /principals                : Provisions a principal (user management, create).
//   - PATCH  /principals/{principalID}  : Mutates a principal (user management, update).
func (handler *IAMHandler) Routes() chi.Router {
	router := chi.NewRouter()
	router.Use(middleware.RequireAuth)

	router.Get("/permissions", handler.permissions)
	router.Get("/sessions", handler.listSessions)
	router.Delete("/sessions", handler.revokeAllSessions)
	router.Delete("/sessions/{sessionID}", handler.revokeSession)

	router.Group(func(r chi.Router) {
		r.With(middleware.RequirePermission(access.ResourceUserManagement, access.PermRead)).
			Get("/principals", handler.listPrincipals)
		r.With(middleware.RequirePermission(access.ResourceUserManagement, access.PermCreate)).
			Post("/principals", handler.createPrincipal)
		r.With(middleware.RequirePermission(access.ResourceUserManagement, access.PermUpdate)).
			Patch("/principals/{principalID}", handler.updatePrincipal)
	})

	return router
}

// # Response Payloads

type permissionsResponse struct {
	Role      access.Role         `json:"role"`
	Resources map[string][]string `json:"resources"`
}

type createPrincipalResponse struct {
	Principal    *Principal `json:"principal"`
	TempPassword string     `json:"temp_password"`
}

/*
Permissions returns the caller's effective grants across every resource.

GET /api/v1/iam/permissions

Description: Resources with an empty grant are omitted; the UI uses this map
to decide which modules to render.

Response:
  - 200: permissionsResponse
*/
func (handler *IAMHandler) permissions(writer http.ResponseWriter, request *http.Request) {
	identity, err := requestutil.RequiredIdentity(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	resources := map[string][]string{}
	for _, resource := range access.AccessibleResources(identity.Role) {
		resources[string(resource)] = access.Grants(identity.Role, resource).Names()
	}

	respond.OK(writer, permissionsResponse{Role: identity.Role, Resources: resources})
}

/*
ListSessions returns the caller's live sessions, newest first.

GET /api/v1/iam/sessions

Response:
  - 200: []Session
*/
func (handler *IAMHandler) listSessions(writer http.ResponseWriter, request *http.Request) {
	identity, err := requestutil.RequiredIdentity(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	sessions, err := handler.sessions.ActiveSessions(request.Context(), identity.PrincipalID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, sessions)
}

/*
RevokeSession revokes one of the caller's sessions.

DELETE /api/v1/iam/sessions/{sessionID}

Description: Ownership-scoped; a caller can never revoke another principal's
session through this endpoint.

Response:
  - 204: Revoked
  - 404: NOT_FOUND: No owned session with that id
*/
func (handler *IAMHandler) revokeSession(writer http.ResponseWriter, request *http.Request) {
	identity, err := requestutil.RequiredIdentity(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	sessionID := requestutil.Param(request, "sessionID")
	if err := handler.sessions.RevokeByID(request.Context(), identity.PrincipalID, sessionID); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.NoContent(writer)
}

/*
RevokeAllSessions revokes every session of the caller, including the current
one. The compromise-response button.

DELETE /api/v1/iam/sessions

Response:
  - 204: Revoked
*/
func (handler *IAMHandler) revokeAllSessions(writer http.ResponseWriter, request *http.Request) {
	identity, err := requestutil.RequiredIdentity(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	if _, err := handler.sessions.RevokeAll(request.Context(), identity.PrincipalID); err != nil {
		respond.Error(writer, request, err)
		return
	}

	clearSessionCookie(writer)
	respond.NoContent(writer)
}

/*
ListPrincipals returns a page of principals.

GET /api/v1/iam/principals?page=N&limit=M

Response:
  - 200: Paginated []Principal
*/
func (handler *IAMHandler) listPrincipals(writer http.ResponseWriter, request *http.Request) {
	params := pagination.FromRequest(request)

	principals, meta, err := handler.admin.ListPrincipals(request.Context(), params)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Paginated(writer, principals, meta)
}

type createPrincipalRequest struct {
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
	OTPRequired bool   `json:"otp_required"`
}

/*
CreatePrincipal provisions a new principal.

POST /api/v1/iam/principals

Description: The response carries the generated temporary password exactly
once, for out-of-band handover by the administrator.

Request:
  - Body: createPrincipalRequest (Email, DisplayName, Role, OTPRequired)

Response:
  - 201: createPrincipalResponse
  - 400: ErrInvalidJSON: Bad input or validation failure
  - 409: CONFLICT: Email already registered
*/
func (handler *IAMHandler) createPrincipal(writer http.ResponseWriter, request *http.Request) {
	identity, err := requestutil.RequiredIdentity(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var input createPrincipalRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	validator := &validate.Validator{}
	validator.Required(FieldEmail, input.Email).
		Email(FieldEmail, input.Email).
		Required(FieldDisplayName, input.DisplayName).
		MaxLen(FieldDisplayName, input.DisplayName, 120).
		Required(FieldRole, input.Role)

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	principal, tempPassword, err := handler.admin.CreatePrincipal(request.Context(), identity.PrincipalID, CreatePrincipalInput{
		Email:       input.Email,
		DisplayName: input.DisplayName,
		Role:        access.Role(input.Role),
		OTPRequired: input.OTPRequired,
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Created(writer, createPrincipalResponse{Principal: principal, TempPassword: tempPassword})
}

type updatePrincipalRequest struct {
	DisplayName *string `json:"display_name,omitempty"`
	Role        *string `json:"role,omitempty"`
	OTPRequired *bool   `json:"otp_required,omitempty"`
	Disabled    *bool   `json:"disabled,omitempty"`
}

/*
UpdatePrincipal applies partial mutations to a principal.

PATCH /api/v1/iam/principals/{principalID}

Description: Absent fields are untouched. Setting disabled revokes every
live session of the target immediately.

Request:
  - Body: updatePrincipalRequest

Response:
  - 200: Principal
  - 400: ErrInvalidJSON or unknown role
  - 404: NOT_FOUND
*/
func (handler *IAMHandler) updatePrincipal(writer http.ResponseWriter, request *http.Request) {
	identity, err := requestutil.RequiredIdentity(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var input updatePrincipalRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	domainInput := UpdatePrincipalInput{
		DisplayName: input.DisplayName,
		OTPRequired: input.OTPRequired,
		Disabled:    input.Disabled,
	}
	if input.Role != nil {
		role := access.Role(*input.Role)
		domainInput.Role = &role
	}

	principal, err := handler.admin.UpdatePrincipal(request.Context(), identity.PrincipalID, requestutil.Param(request, "principalID"), domainInput)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, principal)
}
