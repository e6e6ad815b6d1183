// Copyright (c) 2026 Solterra. All rights reserved.
// Author: platform@solterra.group

// Package sec provides cryptographic primitives and token management.
//
// # Architecture
//
// This package isolates security-sensitive code (hashing, ticket signing,
// random token generation) from the domain logic. It is injected into the
// application layer via small interfaces defined on the consumer side.
package sec

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// # Login Stages

// Stage names a pending step in the multi-request login flow that a ticket
// authorizes the holder to complete.
type Stage string

const (
	// StageOTP allows the holder to verify or re-request a one-time passcode.
	StageOTP Stage = "otp"

	// StagePasswordChange allows the holder to complete a forced password
	// rotation before a session is issued.
	StagePasswordChange Stage = "password_change"
)

// TicketClaims is the payload embedded inside a signed login ticket.
//
// # Why a signed ticket?
//
// Login spans several HTTP requests (credentials, then OTP, then possibly a
// forced password change). Instead of server-side pending-login state or a
// raw principal id in request bodies, the server hands the client a short-
// lived HMAC-signed ticket binding the principal to exactly one pending
// stage. A ticket for the OTP stage cannot be replayed against the password
// change endpoint, and tampering breaks the signature.
type TicketClaims struct {
	jwt.RegisteredClaims

	// Custom claims are abbreviated to keep the ticket payload small.
	PrincipalID string `json:"pid"`
	Email       string `json:"eml"`
	Stage       Stage  `json:"stg"`
}

// TicketService signs and verifies login-flow continuation tickets using
// HS256 with a process-wide secret.
type TicketService struct {
	secret []byte
	issuer string
}

// NewTicketService creates a new TicketService.
//
// The secret must be a high-entropy value shared by all replicas; rotating it
// invalidates every in-flight login attempt but no issued session.
func NewTicketService(secret, issuer string) (*TicketService, error) {
	if len(secret) < 32 {
		return nil, fmt.Errorf("sec: ticket secret must be at least 32 bytes")
	}
	return &TicketService{secret: []byte(secret), issuer: issuer}, nil
}

// Issue creates a signed ticket for the given principal and pending stage.
func (service *TicketService) Issue(principalID, email string, stage Stage, timeToLive time.Duration) (string, error) {
	currentTime := time.Now()
	claims := TicketClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   principalID,
			Issuer:    service.issuer,
			IssuedAt:  jwt.NewNumericDate(currentTime),
			ExpiresAt: jwt.NewNumericDate(currentTime.Add(timeToLive)),
		},
		PrincipalID: principalID,
		Email:       email,
		Stage:       stage,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedTicket, err := token.SignedString(service.secret)
	if err != nil {
		return "", fmt.Errorf("sec: failed to sign ticket: %w", err)
	}

	return signedTicket, nil
}

// Verify checks the signature and validity of a ticket and asserts that it
// was issued for the expected stage.
func (service *TicketService) Verify(ticketString string, expectedStage Stage) (*TicketClaims, error) {
	token, err := jwt.ParseWithClaims(ticketString, &TicketClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("sec: unexpected signing method: %v", token.Header["alg"])
		}
		return service.secret, nil
	})

	if err != nil {
		return nil, fmt.Errorf("sec: invalid ticket: %w", err)
	}

	claims, ok := token.Claims.(*TicketClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("sec: invalid ticket claims")
	}

	if claims.Stage != expectedStage {
		return nil, fmt.Errorf("sec: ticket stage %q does not authorize %q", claims.Stage, expectedStage)
	}

	return claims, nil
}
