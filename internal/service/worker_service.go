package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/webpushd/webpushd/internal/domain"
	"github.com/webpushd/webpushd/internal/observability"
	"github.com/webpushd/webpushd/internal/queue"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const minWorkerConcurrency = 1

// Sender runs one fan-out invocation for a send request.
type Sender interface {
	Send(ctx context.Context, req *domain.SendRequest) (*domain.DeliveryReport, error)
}

// WorkerService consumes queued send requests and runs deliveries.
type WorkerService struct {
	deliveries  Sender
	consumer    queue.Consumer
	logger      *zap.Logger
	concurrency int
}

func NewWorkerService(
	deliveries Sender,
	consumer queue.Consumer,
	concurrency int,
	logger *zap.Logger,
) (*WorkerService, error) {
	if deliveries == nil {
		return nil, fmt.Errorf("delivery service is required")
	}
	if consumer == nil {
		return nil, fmt.Errorf("queue consumer is required")
	}
	if concurrency < minWorkerConcurrency {
		concurrency = minWorkerConcurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &WorkerService{
		deliveries:  deliveries,
		consumer:    consumer,
		logger:      logger,
		concurrency: concurrency,
	}, nil
}

// Start consumes the send queue until context cancellation.
func (s *WorkerService) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	g, groupCtx := errgroup.WithContext(ctx)
	for i := 0; i < s.concurrency; i++ {
		workerID := i + 1

		g.Go(func() error {
			s.logger.Info("worker started", zap.Int("workerId", workerID))

			err := s.consumer.Consume(groupCtx, s.processMessage)
			if err != nil {
				s.logger.Error("worker stopped with error",
					zap.Int("workerId", workerID),
					zap.Error(err),
				)
				return err
			}

			s.logger.Info("worker stopped", zap.Int("workerId", workerID))
			return nil
		})
	}

	return g.Wait()
}

func (s *WorkerService) processMessage(ctx context.Context, msg queue.PushMessage) error {
	if msg.CorrelationID != "" {
		ctx = observability.WithCorrelationID(ctx, msg.CorrelationID)
	}
	logger := observability.WithContextLogger(s.logger, ctx).With(zap.String("userId", msg.UserID))

	report, err := s.deliveries.Send(ctx, msg.SendRequest())
	if err != nil {
		if errors.Is(err, domain.ErrValidation) {
			// Consumer validation should have caught this; drop rather
			// than requeue a message that can never succeed.
			logger.Warn("dropping invalid send request", zap.Error(err))
			return nil
		}
		// Listing/config failures nack the message so the broker
		// redelivers it.
		return fmt.Errorf("failed to process send request: %w", err)
	}

	logger.Info("send request processed",
		zap.Bool("success", report.Success),
		zap.Int("sent", report.SentCount),
		zap.Int("failed", report.FailedCount),
		zap.Int("removed", report.RemovedCount),
	)
	return nil
}
