package queue

import "context"

const (
	// SendQueue carries pending notification-send requests.
	SendQueue = "webpush.send"
	// SendDLQ receives messages rejected as malformed.
	SendDLQ = "dlq.webpush.send"

	dlxExchangeName = "webpush.dlx"
	sendRoutingKey  = "send"
)

// Publisher publishes send requests to the work queue.
type Publisher interface {
	Publish(ctx context.Context, msg PushMessage) error
	Close() error
}

// MessageHandler handles a consumed queue message.
type MessageHandler func(ctx context.Context, msg PushMessage) error

// Consumer consumes send requests from the work queue.
type Consumer interface {
	Consume(ctx context.Context, handler MessageHandler) error
	Close() error
}
