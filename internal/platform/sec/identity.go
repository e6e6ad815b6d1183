// Copyright (c) 2026 Solterra. All rights reserved.
// Author: platform@solterra.group

package sec

import "github.com/solterra/solterra-api/internal/access"

// Identity is the resolved per-request identity of an authenticated principal.
//
// # Role Snapshot
//
// The role is the snapshot embedded in the session record at issuance time,
// never re-derived per request, so a role change only takes effect on the
// next login.
type Identity struct {
	PrincipalID string      `json:"principal_id"`
	Email       string      `json:"email"`
	Role        access.Role `json:"role"`
	SessionID   string      `json:"-"`
}
