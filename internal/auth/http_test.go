// Copyright (c) 2026 Solterra. All rights reserved.
// Author: platform@solterra.group

package auth_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solterra/solterra-api/internal/auth"
	"github.com/solterra/solterra-api/internal/platform/constants"
	"github.com/solterra/solterra-api/internal/platform/middleware"
)

// newAuthRouter wires the login-flow handler behind the session middleware
// the way the server mounts it.
func newAuthRouter(fixture *flowFixture) http.Handler {
	handler := auth.NewHandler(fixture.flow, fixture.credentials, fixture.sessions)

	router := chi.NewRouter()
	router.Use(middleware.Authenticate(fixture.sessions))
	router.Mount("/auth", handler.Routes())
	return router
}

/*
TestLogin_StaleCookieStartsFreshFlow verifies that a cookie pointing at a
revoked session does not block re-authentication: the browser replays it on
POST /auth/login, and the login must still run with the submitted
credentials.
*/
func TestLogin_StaleCookieStartsFreshFlow(t *testing.T) {
	ctx := context.Background()
	fixture := newFlowFixture(t)
	principal := fixture.addPrincipal(t, "agent@solterra.group", "Current1!", false, false)

	first, err := fixture.flow.Begin(ctx, "agent@solterra.group", "Current1!", "ua", "10.0.0.1")
	require.NoError(t, err)
	require.Equal(t, auth.StatusAuthenticated, first.Status)

	// Revoked out of band, e.g. by an administrator on another device.
	_, err = fixture.sessions.RevokeAll(ctx, principal.ID)
	require.NoError(t, err)

	router := newAuthRouter(fixture)

	body := strings.NewReader(`{"email":"agent@solterra.group","password":"Current1!"}`)
	request := httptest.NewRequest(http.MethodPost, "/auth/login", body)
	request.Header.Set("Content-Type", "application/json")
	request.AddCookie(&http.Cookie{Name: constants.SessionCookieName, Value: first.Token})

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, request)

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), auth.StatusAuthenticated)

	// A fresh session cookie replaces the stale one.
	var fresh *http.Cookie
	for _, cookie := range recorder.Result().Cookies() {
		if cookie.Name == constants.SessionCookieName && cookie.Value != "" {
			fresh = cookie
		}
	}
	require.NotNil(t, fresh)

	identity, err := fixture.sessions.Validate(ctx, fresh.Value)
	require.NoError(t, err)
	assert.Equal(t, principal.ID, identity.PrincipalID)
}
