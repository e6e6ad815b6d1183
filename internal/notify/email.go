// Copyright (c) 2026 Solterra. All rights reserved.
// Author: platform@solterra.group

/*
Package notify delivers one-time passcodes to principals.

Delivery is a hard dependency of the login flow: if the passcode cannot be
handed to the principal, the flow reports DELIVERY_FAILED and the caller may
retry. The SMTP sender therefore retries transient failures itself before
giving up.

Two implementations exist:

  - SMTPSender: production delivery over SMTP.
  - LogSender: development fallback that writes the code to the log when no
    SMTP host is configured.
*/
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"time"
)

// CodeSender delivers a one-time passcode to a recipient address.
type CodeSender interface {
	SendCode(ctx context.Context, recipient string, code string, expiresIn time.Duration) error
}

// Delivery tuning.
const (
	maxAttempts  = 3
	retryBackoff = 500 * time.Millisecond
	sendTimeout  = 10 * time.Second
)

// SMTPSender delivers passcodes over SMTP.
type SMTPSender struct {
	host     string
	port     int
	username string
	password string
	from     string
	logger   *slog.Logger
}

// NewSMTPSender creates a production passcode sender.
//
// # Parameters
//   - host, port: SMTP endpoint.
//   - username, password: SMTP credentials; empty username disables auth.
//   - from: Envelope sender address.
//   - logger: Structured logger for delivery events.
func NewSMTPSender(host string, port int, username, password, from string, logger *slog.Logger) *SMTPSender {
	return &SMTPSender{
		host:     host,
		port:     port,
		username: username,
		password: password,
		from:     from,
		logger:   logger,
	}
}

// SendCode implements CodeSender with bounded retries.
//
// Each attempt gets its own deadline. Only after all attempts fail does the
// error surface to the caller; the login flow maps it to DELIVERY_FAILED.
func (s *SMTPSender) SendCode(ctx context.Context, recipient string, code string, expiresIn time.Duration) error {
	message := buildMessage(s.from, recipient, code, expiresIn)
	addr := fmt.Sprintf("%s:%d", s.host, s.port)

	var auth smtp.Auth
	if s.username != "" {
		auth = smtp.PlainAuth("", s.username, s.password, s.host)
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("notify: delivery cancelled: %w", err)
		}

		lastErr = sendWithTimeout(ctx, addr, auth, s.from, recipient, message)
		if lastErr == nil {
			s.logger.Info("passcode delivered",
				slog.String("recipient", recipient),
				slog.Int("attempt", attempt),
			)
			return nil
		}

		s.logger.Warn("passcode delivery attempt failed",
			slog.String("recipient", recipient),
			slog.Int("attempt", attempt),
			slog.Any("error", lastErr),
		)

		if attempt < maxAttempts {
			select {
			case <-time.After(retryBackoff * time.Duration(attempt)):
			case <-ctx.Done():
				return fmt.Errorf("notify: delivery cancelled: %w", ctx.Err())
			}
		}
	}

	return fmt.Errorf("notify: delivery failed after %d attempts: %w", maxAttempts, lastErr)
}

// sendWithTimeout runs a single smtp.SendMail call under its own deadline.
// net/smtp has no context support, so the call runs in a goroutine and the
// caller abandons it on timeout.
func sendWithTimeout(ctx context.Context, addr string, auth smtp.Auth, from, recipient string, message []byte) error {
	sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- smtp.SendMail(addr, auth, from, []string{recipient}, message)
	}()

	select {
	case err := <-done:
		return err
	case <-sendCtx.Done():
		return fmt.Errorf("notify: smtp send timed out: %w", sendCtx.Err())
	}
}

func buildMessage(from, recipient, code string, expiresIn time.Duration) []byte {
	body := fmt.Sprintf(
		"From: %s\r\nTo: %s\r\nSubject: Your Solterra verification code\r\n\r\n"+
			"Your verification code is: %s\r\n\r\n"+
			"It expires in %d minutes. If you did not request this code, contact your administrator.\r\n",
		from, recipient, code, int(expiresIn.Minutes()),
	)
	return []byte(body)
}

// LogSender writes the passcode to the structured log instead of sending it.
// Used in development when no SMTP host is configured. Never enable in
// production: the code appears in plaintext in the log stream.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender creates a development passcode sender.
func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

// SendCode implements CodeSender.
func (s *LogSender) SendCode(_ context.Context, recipient string, code string, expiresIn time.Duration) error {
	s.logger.Warn("DEV passcode delivery",
		slog.String("recipient", recipient),
		slog.String("code", code),
		slog.Duration("expires_in", expiresIn),
	)
	return nil
}
