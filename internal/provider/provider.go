package provider

import "context"

// Delivery carries everything needed for one push-service POST: the
// framed aes128gcm body and the VAPID authorization value.
type Delivery struct {
	Endpoint      string
	Body          []byte
	Authorization string
}

// Response stores push service call metadata.
type Response struct {
	StatusCode int
}

// Provider is the outbound push delivery port.
type Provider interface {
	Deliver(ctx context.Context, d Delivery) (*Response, error)
}
