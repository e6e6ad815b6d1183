// Copyright (c) 2026 Solterra. All rights reserved.
// Author: platform@solterra.group

package auth_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solterra/solterra-api/internal/access"
	"github.com/solterra/solterra-api/internal/audit"
	"github.com/solterra/solterra-api/internal/auth"
	"github.com/solterra/solterra-api/internal/platform/apperr"
)

// blindLookupPrincipalRepo never finds a principal by email, which stands in
// for the window between an existence check and a competing insert.
type blindLookupPrincipalRepo struct {
	*fakePrincipalRepo
}

func (r *blindLookupPrincipalRepo) FindByEmail(_ context.Context, _ string) (*auth.Principal, error) {
	return nil, apperr.NotFound("Principal")
}

func newAdminService(principals auth.PrincipalRepository) *auth.AdminService {
	sessions := auth.NewSessionManager(newFakeSessionRepo(), principals, audit.Nop{}, time.Hour)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return auth.NewAdminService(principals, sessions, audit.Nop{}, logger)
}

/*
TestCreatePrincipal_DuplicateEmail verifies that a duplicate email surfaces
as 409 Conflict both when the existence check catches it and when a
concurrent create slips past the check and hits the unique index.
*/
func TestCreatePrincipal_DuplicateEmail(t *testing.T) {
	ctx := context.Background()
	input := auth.CreatePrincipalInput{
		Email: "agent@solterra.group",
		Role:  access.RoleSalesSpecialist,
	}

	t.Run("caught by the existence check", func(t *testing.T) {
		service := newAdminService(newFakePrincipalRepo())

		_, _, err := service.CreatePrincipal(ctx, "actor", input)
		require.NoError(t, err)

		_, _, err = service.CreatePrincipal(ctx, "actor", input)
		appError := apperr.As(err)
		require.NotNil(t, appError)
		assert.Equal(t, "CONFLICT", appError.Code)
		assert.Equal(t, http.StatusConflict, appError.HTTPStatus)
	})

	t.Run("caught by the unique constraint", func(t *testing.T) {
		repo := &blindLookupPrincipalRepo{fakePrincipalRepo: newFakePrincipalRepo()}
		service := newAdminService(repo)

		_, _, err := service.CreatePrincipal(ctx, "actor", input)
		require.NoError(t, err)

		_, _, err = service.CreatePrincipal(ctx, "actor", input)
		appError := apperr.As(err)
		require.NotNil(t, appError)
		assert.Equal(t, "CONFLICT", appError.Code)
		assert.Equal(t, http.StatusConflict, appError.HTTPStatus)
	})
}
