// Copyright (c) 2026 Solterra. All rights reserved.
// Author: platform@solterra.group

package middleware

import (
	"context"
	"net/http"

	"github.com/solterra/solterra-api/internal/access"
	"github.com/solterra/solterra-api/internal/platform/apperr"
	"github.com/solterra/solterra-api/internal/platform/constants"
	"github.com/solterra/solterra-api/internal/platform/ctxutil"
	"github.com/solterra/solterra-api/internal/platform/respond"
	"github.com/solterra/solterra-api/internal/platform/sec"
)

// SessionValidator resolves an opaque session token into an identity.
//
// # Why an interface?
//
// Defining SessionValidator here decouples the middleware from the session
// manager implementation, allowing us to easily inject fakes during unit
// testing. Validation always reads current store state; the middleware adds
// no caching, so a revocation is observed by the very next request.
type SessionValidator interface {
	Validate(ctx context.Context, token string) (*sec.Identity, error)
}

// Authenticate resolves the session cookie into a request identity.
//
// # Flow
//  1. Check for the session cookie.
//  2. If absent, the request proceeds as anonymous.
//  3. If present, validate the opaque token against the session store.
//  4. Inject [*sec.Identity] into the request context for downstream use.
//
// A present-but-invalid cookie (SESSION_NOT_FOUND, SESSION_EXPIRED,
// SESSION_REVOKED) is expired and the request proceeds as anonymous. The
// browser replays the cookie on every path, including /login, so a hard
// rejection here would lock a revoked principal out of re-authenticating
// until the cookie ages out. The authenticated surface stays guarded by
// [RequireAuth] and [RequirePermission].
func Authenticate(validator SessionValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			cookie, err := request.Cookie(constants.SessionCookieName)

			// ── 1. Anonymous Access ───────────────────────────────────────────
			if err != nil || cookie.Value == "" {
				next.ServeHTTP(writer, request)
				return
			}

			// ── 2. Session Validation ─────────────────────────────────────────
			identity, err := validator.Validate(request.Context(), cookie.Value)
			if err != nil {
				if apperr.IsAppError(err) {
					expireSessionCookie(writer)
					next.ServeHTTP(writer, request)
					return
				}
				respond.Error(writer, request, err)
				return
			}

			// ── 3. Context Injection ──────────────────────────────────────────
			ctx := ctxutil.WithIdentity(request.Context(), identity)
			next.ServeHTTP(writer, request.WithContext(ctx))
		})
	}
}

// expireSessionCookie instructs the browser to drop a dead session cookie so
// it stops being replayed.
func expireSessionCookie(writer http.ResponseWriter) {
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

// RequireAuth blocks requests that are not authenticated.
//
// # Usage
//
// Must be registered in the router AFTER [Authenticate].
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		identity := ctxutil.GetIdentity(request.Context())
		if identity == nil {
			respond.Error(writer, request, apperr.Unauthorized("Authentication required"))
			return
		}
		next.ServeHTTP(writer, request)
	})
}

// RequirePermission blocks requests whose role does not hold the permission
// on the resource.
//
// # Usage
//
// Must be registered in the router AFTER [Authenticate]. It automatically
// implies [RequireAuth] so you don't need to mount both.
//
// # Flow
//  1. Check if [*sec.Identity] exists in context (implies AuthN).
//  2. Consult the permission matrix with the session's role snapshot.
//  3. If the grant is absent, abort with HTTP 403 Forbidden.
//
// The matrix fails closed, so an unknown role stored in a stale session can
// never satisfy this check.
func RequirePermission(resource access.Resource, permission access.Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			identity := ctxutil.GetIdentity(request.Context())

			// ── 1. Authentication Check ───────────────────────────────────────
			if identity == nil {
				respond.Error(writer, request, apperr.Unauthorized("Authentication required"))
				return
			}

			// ── 2. Authorization Check ────────────────────────────────────────
			if !access.HasPermission(identity.Role, resource, permission) {
				respond.Error(writer, request, apperr.Forbidden("Insufficient permissions"))
				return
			}

			next.ServeHTTP(writer, request)
		})
	}
}
