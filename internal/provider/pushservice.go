package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	defaultPushTimeout = 10 * time.Second

	// messageTTL is the TTL header value: how long the push service may
	// hold an undelivered message.
	messageTTL = 86400

	urgency = "normal"
)

// PushServiceProvider POSTs encrypted messages to W3C Push API service
// endpoints and classifies the responses. It never retries; retry
// policy belongs to the caller.
type PushServiceProvider struct {
	client *resty.Client
}

func NewPushServiceProvider(timeout time.Duration) *PushServiceProvider {
	if timeout <= 0 {
		timeout = defaultPushTimeout
	}

	client := resty.New()
	client.SetTimeout(timeout)
	client.SetRetryCount(0)

	return &PushServiceProvider{client: client}
}

func NewPushServiceProviderWithClient(client *resty.Client) (*PushServiceProvider, error) {
	if client == nil {
		return nil, fmt.Errorf("resty client is required")
	}

	if client.GetClient().Timeout == 0 {
		client.SetTimeout(defaultPushTimeout)
	}
	client.SetRetryCount(0)

	return &PushServiceProvider{client: client}, nil
}

func (p *PushServiceProvider) Deliver(ctx context.Context, d Delivery) (*Response, error) {
	if p == nil || p.client == nil {
		return nil, fmt.Errorf("provider is not initialized")
	}
	if strings.TrimSpace(d.Endpoint) == "" {
		return nil, fmt.Errorf("delivery endpoint is required")
	}
	if len(d.Body) == 0 {
		return nil, fmt.Errorf("delivery body is required")
	}
	if strings.TrimSpace(d.Authorization) == "" {
		return nil, fmt.Errorf("delivery authorization is required")
	}

	response, err := p.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/octet-stream").
		SetHeader("Content-Encoding", "aes128gcm").
		SetHeader("Content-Length", strconv.Itoa(len(d.Body))).
		SetHeader("TTL", strconv.Itoa(messageTTL)).
		SetHeader("Urgency", urgency).
		SetHeader("Authorization", d.Authorization).
		SetBody(d.Body).
		Post(d.Endpoint)
	if err != nil {
		return nil, &DeliveryError{
			Message:   "push service request failed",
			Transient: !errors.Is(err, context.Canceled),
			Cause:     err,
		}
	}
	if response == nil {
		return nil, &DeliveryError{
			Message:   "push service returned empty response",
			Transient: true,
		}
	}

	statusCode := response.StatusCode()
	if statusCode == http.StatusOK || statusCode == http.StatusCreated {
		return &Response{StatusCode: statusCode}, nil
	}

	gone := statusCode == http.StatusNotFound || statusCode == http.StatusGone

	return nil, &DeliveryError{
		StatusCode: statusCode,
		Message:    deliveryErrorMessage(statusCode, strings.TrimSpace(response.String())),
		Gone:       gone,
		Transient:  !gone,
	}
}

func deliveryErrorMessage(statusCode int, body string) string {
	base := fmt.Sprintf("push service returned status %d", statusCode)
	if body == "" {
		return base
	}
	return fmt.Sprintf("%s: %s", base, body)
}
