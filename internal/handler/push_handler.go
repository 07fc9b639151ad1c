package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/webpushd/webpushd/internal/domain"
	"github.com/webpushd/webpushd/internal/observability"
	"github.com/webpushd/webpushd/internal/queue"
)

// DeliveryService runs a synchronous fan-out for one send request.
type DeliveryService interface {
	Send(ctx context.Context, req *domain.SendRequest) (*domain.DeliveryReport, error)
}

type PushHandler struct {
	deliveries DeliveryService
	publisher  queue.Publisher
}

func NewPushHandler(deliveries DeliveryService, publisher queue.Publisher) (*PushHandler, error) {
	if deliveries == nil {
		return nil, fmt.Errorf("delivery service is required")
	}
	return &PushHandler{deliveries: deliveries, publisher: publisher}, nil
}

func RegisterPushRoutes(router fiber.Router, deliveries DeliveryService, publisher queue.Publisher) error {
	h, err := NewPushHandler(deliveries, publisher)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Post("/push/send", h.SendPush)
	v1.Post("/push/enqueue", h.EnqueuePush)

	return nil
}

type sendPushRequest struct {
	UserID         string         `json:"user_id"`
	Title          string         `json:"title"`
	Body           string         `json:"body"`
	Data           map[string]any `json:"data"`
	Type           string         `json:"type"`
	NotificationID string         `json:"notification_id"`
}

func (r sendPushRequest) toDomain() *domain.SendRequest {
	return &domain.SendRequest{
		UserID:         strings.TrimSpace(r.UserID),
		Title:          r.Title,
		Body:           r.Body,
		Data:           r.Data,
		Type:           r.Type,
		NotificationID: r.NotificationID,
	}
}

// SendPush runs the fan-out synchronously and returns the aggregate
// report. Per-subscription failures surface in the results array, not
// as an HTTP error.
func (h *PushHandler) SendPush(c *fiber.Ctx) error {
	var req sendPushRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	ctx := observability.WithCorrelationID(c.Context(), requestCorrelationID(c))
	report, err := h.deliveries.Send(ctx, req.toDomain())
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(report)
}

// EnqueuePush validates and publishes the request for asynchronous
// processing by the worker.
func (h *PushHandler) EnqueuePush(c *fiber.Ctx) error {
	if h.publisher == nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, "queue is not configured")
	}

	var req sendPushRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	sendReq := req.toDomain()
	if err := sendReq.Validate(); err != nil {
		return toHTTPError(err)
	}

	correlationID := requestCorrelationID(c)
	msg, err := queue.FromSendRequest(sendReq, correlationID)
	if err != nil {
		return toHTTPError(err)
	}

	if err := h.publisher.Publish(c.Context(), msg); err != nil {
		return fmt.Errorf("failed to enqueue send request: %w", err)
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"status":        "queued",
		"user_id":       sendReq.UserID,
		"correlationId": correlationID,
	})
}

func requestCorrelationID(c *fiber.Ctx) string {
	if v := strings.TrimSpace(c.Get("X-Correlation-ID")); v != "" {
		return v
	}
	return uuid.NewString()
}

func toHTTPError(err error) error {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrConfiguration):
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	return err
}
