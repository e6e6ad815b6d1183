// Copyright (c) 2026 Solterra. All rights reserved.
// Author: platform@solterra.group

package middleware_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solterra/solterra-api/internal/access"
	"github.com/solterra/solterra-api/internal/platform/apperr"
	"github.com/solterra/solterra-api/internal/platform/constants"
	"github.com/solterra/solterra-api/internal/platform/ctxutil"
	"github.com/solterra/solterra-api/internal/platform/middleware"
	"github.com/solterra/solterra-api/internal/platform/sec"
)

type stubValidator struct {
	identity *sec.Identity
	err      error
}

func (v *stubValidator) Validate(_ context.Context, _ string) (*sec.Identity, error) {
	return v.identity, v.err
}

// echoIdentity records whether the downstream handler ran and what identity
// it observed.
func echoIdentity(ran *bool, observed **sec.Identity) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		*ran = true
		*observed = ctxutil.GetIdentity(request.Context())
		writer.WriteHeader(http.StatusOK)
	})
}

func sessionCookie(value string) *http.Cookie {
	return &http.Cookie{Name: constants.SessionCookieName, Value: value}
}

/*
TestAuthenticate covers the cookie-to-identity resolution, in particular
that a dead cookie downgrades to anonymous instead of walling off the
public routes.
*/
func TestAuthenticate(t *testing.T) {
	t.Run("no cookie passes through as anonymous", func(t *testing.T) {
		var ran bool
		var observed *sec.Identity
		handler := middleware.Authenticate(&stubValidator{})(echoIdentity(&ran, &observed))

		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.True(t, ran)
		assert.Nil(t, observed)
		assert.Equal(t, http.StatusOK, recorder.Code)
	})

	t.Run("valid cookie injects identity", func(t *testing.T) {
		var ran bool
		var observed *sec.Identity
		validator := &stubValidator{identity: &sec.Identity{
			PrincipalID: "p-1",
			Email:       "agent@solterra.group",
			Role:        access.RoleDirector,
			SessionID:   "s-1",
		}}
		handler := middleware.Authenticate(validator)(echoIdentity(&ran, &observed))

		request := httptest.NewRequest(http.MethodGet, "/", nil)
		request.AddCookie(sessionCookie("token"))
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, request)

		assert.True(t, ran)
		require.NotNil(t, observed)
		assert.Equal(t, "p-1", observed.PrincipalID)
		assert.Equal(t, access.RoleDirector, observed.Role)
	})

	t.Run("revoked cookie downgrades to anonymous and expires it", func(t *testing.T) {
		var ran bool
		var observed *sec.Identity
		validator := &stubValidator{err: apperr.Unauthorized("Session has been revoked")}
		handler := middleware.Authenticate(validator)(echoIdentity(&ran, &observed))

		request := httptest.NewRequest(http.MethodGet, "/", nil)
		request.AddCookie(sessionCookie("stale"))
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, request)

		assert.True(t, ran)
		assert.Nil(t, observed)
		assert.Equal(t, http.StatusOK, recorder.Code)

		cookies := recorder.Result().Cookies()
		require.Len(t, cookies, 1)
		assert.Equal(t, constants.SessionCookieName, cookies[0].Name)
		assert.Empty(t, cookies[0].Value)
		assert.Negative(t, cookies[0].MaxAge)
	})

	t.Run("store failure stays an internal error", func(t *testing.T) {
		var ran bool
		var observed *sec.Identity
		validator := &stubValidator{err: errors.New("connection refused")}
		handler := middleware.Authenticate(validator)(echoIdentity(&ran, &observed))

		request := httptest.NewRequest(http.MethodGet, "/", nil)
		request.AddCookie(sessionCookie("token"))
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, request)

		assert.False(t, ran)
		assert.Equal(t, http.StatusInternalServerError, recorder.Code)
	})
}
