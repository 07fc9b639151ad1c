package queue

import (
	"fmt"

	"github.com/webpushd/webpushd/internal/domain"
)

// PushMessage is the broker payload for asynchronous send processing.
// It mirrors the synchronous invocation request plus a correlation id.
type PushMessage struct {
	UserID         string         `json:"user_id"`
	Title          string         `json:"title"`
	Body           string         `json:"body"`
	Data           map[string]any `json:"data,omitempty"`
	Type           string         `json:"type,omitempty"`
	NotificationID string         `json:"notification_id,omitempty"`
	CorrelationID  string         `json:"correlation_id,omitempty"`
}

func (m PushMessage) Validate() error {
	return m.SendRequest().Validate()
}

// SendRequest converts the broker payload into the domain request.
func (m PushMessage) SendRequest() *domain.SendRequest {
	return &domain.SendRequest{
		UserID:         m.UserID,
		Title:          m.Title,
		Body:           m.Body,
		Data:           m.Data,
		Type:           m.Type,
		NotificationID: m.NotificationID,
	}
}

// FromSendRequest wraps a domain request for publishing.
func FromSendRequest(req *domain.SendRequest, correlationID string) (PushMessage, error) {
	if req == nil {
		return PushMessage{}, fmt.Errorf("send request is required")
	}

	return PushMessage{
		UserID:         req.UserID,
		Title:          req.Title,
		Body:           req.Body,
		Data:           req.Data,
		Type:           req.Type,
		NotificationID: req.NotificationID,
		CorrelationID:  correlationID,
	}, nil
}
