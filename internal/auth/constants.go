// Copyright (c) 2026 Solterra. All rights reserved.
// Author: platform@solterra.group

package auth

import "time"

// # Authentication Constraints

const (
	// SessionTokenLength is the byte length of the random session token.
	// 32 bytes of entropy keeps the token unguessable for the session TTL.
	SessionTokenLength = 32

	// TicketTTLOTP is how long a login ticket issued at the passcode stage
	// remains valid. Slightly longer than the passcode itself so the ticket
	// never expires first.
	TicketTTLOTP = 15 * time.Minute

	// TicketTTLPasswordChange is how long a forced-rotation ticket remains
	// valid. Kept short: the principal has already proven both factors.
	TicketTTLPasswordChange = 10 * time.Minute

	// TempPasswordLength is the byte length of the random temporary password
	// generated for newly provisioned principals.
	TempPasswordLength = 12

	// SweepInterval is how often expired session and challenge rows are
	// removed. Expiry itself is judged at check time; the sweeper is only
	// storage hygiene.
	SweepInterval = 1 * time.Hour
)
