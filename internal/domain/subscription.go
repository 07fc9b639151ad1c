package domain

import (
	"fmt"
	"strings"
	"time"
)

// Subscription is one registered browser/device push endpoint. The
// p256dh and auth secrets are base64url as delivered by the client's
// PushManager registration.
type Subscription struct {
	ID         string
	UserID     string
	Endpoint   string
	P256dh     string
	Auth       string
	IsActive   bool
	LastUsedAt *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (s *Subscription) Validate() error {
	if strings.TrimSpace(s.Endpoint) == "" {
		return fmt.Errorf("%w: subscription endpoint is required", ErrValidation)
	}
	if !strings.HasPrefix(s.Endpoint, "https://") {
		return fmt.Errorf("%w: subscription endpoint must use HTTPS", ErrValidation)
	}
	if strings.TrimSpace(s.P256dh) == "" {
		return fmt.Errorf("%w: subscription p256dh key is required", ErrValidation)
	}
	if strings.TrimSpace(s.Auth) == "" {
		return fmt.Errorf("%w: subscription auth secret is required", ErrValidation)
	}
	return nil
}
