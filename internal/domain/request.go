package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// DefaultNotificationType classifies requests that carry no explicit type.
const DefaultNotificationType = "system"

// SendRequest is one notification-send invocation. It fans out to every
// active subscription of the addressed user and is immutable for the
// lifetime of the invocation.
type SendRequest struct {
	UserID         string         `json:"user_id"`
	Title          string         `json:"title"`
	Body           string         `json:"body"`
	Data           map[string]any `json:"data,omitempty"`
	Type           string         `json:"type,omitempty"`
	NotificationID string         `json:"notification_id,omitempty"`
}

func (r *SendRequest) Validate() error {
	if strings.TrimSpace(r.UserID) == "" {
		return fmt.Errorf("%w: user_id is required", ErrValidation)
	}
	if strings.TrimSpace(r.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrValidation)
	}
	if strings.TrimSpace(r.Body) == "" {
		return fmt.Errorf("%w: body is required", ErrValidation)
	}
	return nil
}

// Payload renders the JSON document a client receives after decrypting
// the push message. Data passes through verbatim.
func (r SendRequest) Payload() ([]byte, error) {
	notificationType := strings.TrimSpace(r.Type)
	if notificationType == "" {
		notificationType = DefaultNotificationType
	}

	doc := map[string]any{
		"title": r.Title,
		"body":  r.Body,
		"type":  notificationType,
	}
	if strings.TrimSpace(r.NotificationID) != "" {
		doc["notification_id"] = r.NotificationID
	}
	if len(r.Data) > 0 {
		doc["data"] = r.Data
	}

	payload, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal push payload: %w", err)
	}
	return payload, nil
}
