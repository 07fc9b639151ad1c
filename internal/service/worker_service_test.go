package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/webpushd/webpushd/internal/domain"
	"github.com/webpushd/webpushd/internal/queue"
)

type fakeSender struct {
	mu       sync.Mutex
	err      error
	requests []*domain.SendRequest
}

func (s *fakeSender) Send(_ context.Context, req *domain.SendRequest) (*domain.DeliveryReport, error) {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.mu.Unlock()

	if s.err != nil {
		return nil, s.err
	}

	report := domain.NewDeliveryReport()
	report.SentCount = 1
	report.Finalize()
	return report, nil
}

// fakeConsumer feeds queued messages to the handler once, then blocks
// until context cancellation like a live broker subscription.
type fakeConsumer struct {
	messages   []queue.PushMessage
	deliverErr chan error
	once       sync.Once
}

func (c *fakeConsumer) Consume(ctx context.Context, handler queue.MessageHandler) error {
	c.once.Do(func() {
		for _, msg := range c.messages {
			if err := handler(ctx, msg); err != nil {
				c.deliverErr <- err
			}
		}
		close(c.deliverErr)
	})

	<-ctx.Done()
	return nil
}

func (c *fakeConsumer) Close() error { return nil }

func TestNewWorkerServiceValidation(t *testing.T) {
	t.Parallel()

	sender := &fakeSender{}
	consumer := &fakeConsumer{deliverErr: make(chan error, 1)}

	if _, err := NewWorkerService(nil, consumer, 1, zap.NewNop()); err == nil {
		t.Fatal("expected error for nil sender")
	}
	if _, err := NewWorkerService(sender, nil, 1, zap.NewNop()); err == nil {
		t.Fatal("expected error for nil consumer")
	}

	workers, err := NewWorkerService(sender, consumer, 0, nil)
	if err != nil {
		t.Fatalf("NewWorkerService() unexpected error: %v", err)
	}
	if workers.concurrency != minWorkerConcurrency {
		t.Fatalf("concurrency = %d, want %d", workers.concurrency, minWorkerConcurrency)
	}
}

func TestWorkerServiceProcessesQueuedMessages(t *testing.T) {
	t.Parallel()

	sender := &fakeSender{}
	consumer := &fakeConsumer{
		messages: []queue.PushMessage{
			{UserID: "user-1", Title: "Order shipped", Body: "On the way", CorrelationID: "corr-1"},
		},
		deliverErr: make(chan error, 1),
	}

	workers, err := NewWorkerService(sender, consumer, 1, zap.NewNop())
	if err != nil {
		t.Fatalf("NewWorkerService() unexpected error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- workers.Start(ctx) }()

	for handlerErr := range consumer.deliverErr {
		t.Errorf("handler returned error: %v", handlerErr)
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Start() unexpected error: %v", err)
	}

	if len(sender.requests) != 1 {
		t.Fatalf("Send calls = %d, want 1", len(sender.requests))
	}
	if sender.requests[0].UserID != "user-1" {
		t.Fatalf("UserID = %q, want user-1", sender.requests[0].UserID)
	}
}

func TestWorkerServiceDropsInvalidMessages(t *testing.T) {
	t.Parallel()

	sender := &fakeSender{err: domain.ErrValidation}
	workers, err := NewWorkerService(sender, &fakeConsumer{deliverErr: make(chan error, 1)}, 1, zap.NewNop())
	if err != nil {
		t.Fatalf("NewWorkerService() unexpected error: %v", err)
	}

	msg := queue.PushMessage{UserID: "user-1"}
	if err := workers.processMessage(context.Background(), msg); err != nil {
		t.Fatalf("validation failure should be dropped, got %v", err)
	}
}

func TestWorkerServiceRequeuesOnSendFailure(t *testing.T) {
	t.Parallel()

	sender := &fakeSender{err: errors.New("database down")}
	workers, err := NewWorkerService(sender, &fakeConsumer{deliverErr: make(chan error, 1)}, 1, zap.NewNop())
	if err != nil {
		t.Fatalf("NewWorkerService() unexpected error: %v", err)
	}

	msg := queue.PushMessage{UserID: "user-1", Title: "t", Body: "b"}
	if err := workers.processMessage(context.Background(), msg); err == nil {
		t.Fatal("send failure must propagate so the message is requeued")
	}
}
