package service

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/webpushd/webpushd/internal/domain"
	"github.com/webpushd/webpushd/internal/observability"
	"github.com/webpushd/webpushd/internal/provider"
	"github.com/webpushd/webpushd/internal/ratelimit"
	"github.com/webpushd/webpushd/internal/repository"
	"github.com/webpushd/webpushd/internal/webpush"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const minFanoutConcurrency = 1

// DeliveryService fans one send request out to every active
// subscription of the addressed user: sign, encrypt, deliver, classify,
// and apply store bookkeeping per subscription. Subscriptions are
// processed independently; one failure never aborts the rest.
type DeliveryService struct {
	subscriptions repository.SubscriptionRepository
	signer        *webpush.VAPIDSigner
	provider      provider.Provider
	rateLimiter   ratelimit.RateLimiter
	logger        *zap.Logger
	metrics       *observability.Metrics
	concurrency   int
	now           func() time.Time
}

func NewDeliveryService(
	subscriptions repository.SubscriptionRepository,
	signer *webpush.VAPIDSigner,
	pushProvider provider.Provider,
	rateLimiter ratelimit.RateLimiter,
	concurrency int,
	logger *zap.Logger,
) (*DeliveryService, error) {
	if subscriptions == nil {
		return nil, fmt.Errorf("subscription repository is required")
	}
	if signer == nil {
		return nil, fmt.Errorf("vapid signer is required")
	}
	if pushProvider == nil {
		return nil, fmt.Errorf("push provider is required")
	}
	if concurrency < minFanoutConcurrency {
		concurrency = minFanoutConcurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &DeliveryService{
		subscriptions: subscriptions,
		signer:        signer,
		provider:      pushProvider,
		rateLimiter:   rateLimiter,
		logger:        logger,
		concurrency:   concurrency,
		now:           time.Now,
	}, nil
}

func (s *DeliveryService) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}

// Send runs one fan-out invocation. Request validation failures and
// subscription listing failures abort the invocation; everything after
// that is attempt-local and lands in the per-subscription results.
func (s *DeliveryService) Send(ctx context.Context, req *domain.SendRequest) (*domain.DeliveryReport, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if req == nil {
		return nil, fmt.Errorf("%w: send request is required", domain.ErrValidation)
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	subscriptions, err := s.subscriptions.ListActive(ctx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}

	report := domain.NewDeliveryReport()
	if len(subscriptions) == 0 {
		report.Finalize()
		return report, nil
	}

	payload, err := req.Payload()
	if err != nil {
		return nil, err
	}

	var mu sync.Mutex
	g := new(errgroup.Group)
	g.SetLimit(s.concurrency)

	for i := range subscriptions {
		sub := subscriptions[i]
		g.Go(func() error {
			outcome := s.deliverOne(ctx, sub, payload)

			mu.Lock()
			report.Results = append(report.Results, outcome.result)
			if outcome.result.Success {
				report.SentCount++
			} else {
				report.FailedCount++
			}
			if outcome.removed {
				report.RemovedCount++
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	report.Finalize()
	return report, nil
}

type attemptOutcome struct {
	result  domain.DeliveryResult
	removed bool
}

func (s *DeliveryService) deliverOne(ctx context.Context, sub domain.Subscription, payload []byte) attemptOutcome {
	logger := observability.WithContextLogger(s.logger, ctx).With(
		zap.String("subscriptionId", sub.ID),
		zap.String("endpoint", sub.Endpoint),
	)

	outcome := attemptOutcome{
		result: domain.DeliveryResult{SubscriptionID: sub.ID, Endpoint: sub.Endpoint},
	}

	if s.metrics != nil {
		s.metrics.IncDeliveryInFlight()
		defer s.metrics.DecDeliveryInFlight()
	}

	fail := func(reason string, err error) attemptOutcome {
		outcome.result.Error = err.Error()
		if s.metrics != nil {
			s.metrics.IncPushFailed(reason)
		}
		logger.Warn("push delivery failed", zap.String("reason", reason), zap.Error(err))
		return outcome
	}

	if err := sub.Validate(); err != nil {
		return fail("invalid_subscription", err)
	}

	token, err := s.signer.Sign(sub.Endpoint)
	if err != nil {
		return fail("auth", fmt.Errorf("vapid authentication failed: %w", err))
	}

	msg, err := webpush.Encrypt(payload, sub.P256dh, sub.Auth)
	if err != nil {
		return fail("encrypt", fmt.Errorf("payload encryption failed: %w", err))
	}

	if s.rateLimiter != nil {
		if host := endpointHost(sub.Endpoint); host != "" {
			if err := s.rateLimiter.Wait(ctx, host); err != nil {
				return fail("rate_limited", fmt.Errorf("rate limiter wait failed: %w", err))
			}
		}
	}

	sendStart := s.now()
	_, deliverErr := s.provider.Deliver(ctx, provider.Delivery{
		Endpoint:      sub.Endpoint,
		Body:          msg.Body(),
		Authorization: s.signer.AuthorizationHeader(token),
	})
	if s.metrics != nil {
		s.metrics.ObservePushSendDuration(s.now().Sub(sendStart))
	}

	if deliverErr == nil {
		outcome.result.Success = true
		if s.metrics != nil {
			s.metrics.IncPushSent()
		}
		// Bookkeeping is best-effort: the delivery already succeeded.
		if err := s.subscriptions.MarkUsed(ctx, sub.ID); err != nil {
			logger.Warn("failed to mark subscription used", zap.Error(err))
		}
		return outcome
	}

	outcome.result.Error = deliverErr.Error()

	if provider.IsGone(deliverErr) {
		if s.metrics != nil {
			s.metrics.IncPushFailed("gone")
		}
		logger.Info("pruning dead subscription", zap.Error(deliverErr))

		if err := s.subscriptions.Remove(ctx, sub.ID); err != nil {
			logger.Warn("failed to remove dead subscription", zap.Error(err))
		} else {
			outcome.removed = true
			if s.metrics != nil {
				s.metrics.IncSubscriptionRemoved()
			}
		}
		return outcome
	}

	reason := "permanent"
	if provider.IsTransient(deliverErr) {
		reason = "transient"
	}
	if s.metrics != nil {
		s.metrics.IncPushFailed(reason)
	}
	logger.Warn("push delivery failed", zap.String("reason", reason), zap.Error(deliverErr))

	return outcome
}

func endpointHost(endpoint string) string {
	parsed, err := url.Parse(endpoint)
	if err != nil {
		return ""
	}
	return strings.ToLower(parsed.Host)
}
