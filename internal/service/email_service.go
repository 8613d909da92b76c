package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/resend/resend-go/v2"
)

// EmailService sends transactional emails.
type EmailService interface {
	SendVerificationLink(ctx context.Context, toEmail, link, idempotencyKey string) error
	SendVerificationCode(ctx context.Context, toEmail, code, idempotencyKey string) error
	SendPasswordReset(ctx context.Context, toEmail, link, idempotencyKey string) error
}

// NoopEmailService is used when email delivery is disabled.
type NoopEmailService struct{}

func (s *NoopEmailService) SendVerificationLink(ctx context.Context, toEmail, link, idempotencyKey string) error {
	log.Printf("[EmailService] noop send verification link to=%s", toEmail)
	return nil
}

func (s *NoopEmailService) SendVerificationCode(ctx context.Context, toEmail, code, idempotencyKey string) error {
	log.Printf("[EmailService] noop send verification code to=%s", toEmail)
	return nil
}

func (s *NoopEmailService) SendPasswordReset(ctx context.Context, toEmail, link, idempotencyKey string) error {
	log.Printf("[EmailService] noop send password reset to=%s", toEmail)
	return nil
}

// ResendEmailService sends emails via Resend REST API.
type ResendEmailService struct {
	from   string
	client *resend.Client
}

func NewResendEmailService(apiKey, from string) (*ResendEmailService, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("resend api key is required")
	}
	if from == "" {
		return nil, fmt.Errorf("email from is required")
	}
	return &ResendEmailService{
		from:   from,
		client: resend.NewClient(apiKey),
	}, nil
}

func (s *ResendEmailService) SendVerificationLink(ctx context.Context, toEmail, link, idempotencyKey string) error {
	if toEmail == "" || link == "" {
		return fmt.Errorf("toEmail and link are required")
	}
	return s.send(ctx, &resend.SendEmailRequest{
		From:    s.from,
		To:      []string{toEmail},
		Subject: "Verify your email",
		Text:    fmt.Sprintf("Welcome! Confirm your email address by opening this link: %s", link),
		Html:    fmt.Sprintf("<p>Welcome!</p><p>Confirm your email address by clicking <a href=%q>this link</a>.</p>", link),
	}, idempotencyKey)
}

func (s *ResendEmailService) SendVerificationCode(ctx context.Context, toEmail, code, idempotencyKey string) error {
	if toEmail == "" || code == "" {
		return fmt.Errorf("toEmail and code are required")
	}
	return s.send(ctx, &resend.SendEmailRequest{
		From:    s.from,
		To:      []string{toEmail},
		Subject: "Your verification code",
		Text:    fmt.Sprintf("Your verification code is %s. It expires in 10 minutes.", code),
		Html:    fmt.Sprintf("<p>Your verification code is <strong>%s</strong>.</p><p>It expires in 10 minutes.</p>", code),
	}, idempotencyKey)
}

func (s *ResendEmailService) SendPasswordReset(ctx context.Context, toEmail, link, idempotencyKey string) error {
	if toEmail == "" || link == "" {
		return fmt.Errorf("toEmail and link are required")
	}
	return s.send(ctx, &resend.SendEmailRequest{
		From:    s.from,
		To:      []string{toEmail},
		Subject: "Reset your password",
		Text:    fmt.Sprintf("A password reset was requested for your account. Open this link to choose a new password: %s\nIf you did not request this, ignore this email.", link),
		Html:    fmt.Sprintf("<p>A password reset was requested for your account.</p><p>Click <a href=%q>this link</a> to choose a new password.</p><p>If you did not request this, ignore this email.</p>", link),
	}, idempotencyKey)
}

func (s *ResendEmailService) send(ctx context.Context, params *resend.SendEmailRequest, idempotencyKey string) error {
	options := &resend.SendEmailOptions{}
	if strings.TrimSpace(idempotencyKey) != "" {
		options.IdempotencyKey = strings.TrimSpace(idempotencyKey)
	}

	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		_, err := s.client.Emails.SendWithOptions(ctx, params, options)
		if err == nil {
			return nil
		}
		lastErr = err

		if wait, ok := resendRetryDelay(err, attempt); ok {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
				continue
			}
		}

		return fmt.Errorf("resend send failed: %w", err)
	}

	return fmt.Errorf("resend send failed after retries: %w", lastErr)
}

func resendRetryDelay(err error, attempt int) (time.Duration, bool) {
	var rateLimitErr *resend.RateLimitError
	if errors.As(err, &rateLimitErr) {
		if seconds, convErr := strconv.Atoi(strings.TrimSpace(rateLimitErr.RetryAfter)); convErr == nil && seconds > 0 {
			if seconds > 30 {
				seconds = 30
			}
			return time.Duration(seconds) * time.Second, true
		}
		return time.Duration(attempt+1) * time.Second, true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && (netErr.Timeout() || netErr.Temporary()) {
		return time.Duration(attempt+1) * 500 * time.Millisecond, true
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "timeout") || strings.Contains(msg, "temporar") {
		return time.Duration(attempt+1) * 500 * time.Millisecond, true
	}

	return 0, false
}
