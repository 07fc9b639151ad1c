package repository

import (
	"context"
	"time"

	"github.com/webpushd/webpushd/internal/domain"
	"gorm.io/gorm"
)

// SubscriptionRepository is the store port the delivery pipeline reads
// and mutates. Remove is idempotent; both mutations are best-effort
// from the orchestrator's point of view.
type SubscriptionRepository interface {
	ListActive(ctx context.Context, userID string) ([]domain.Subscription, error)
	Remove(ctx context.Context, id string) error
	MarkUsed(ctx context.Context, id string) error
}

type GormSubscriptionRepo struct {
	db *gorm.DB
}

func NewGormSubscriptionRepo(db *gorm.DB) *GormSubscriptionRepo {
	return &GormSubscriptionRepo{db: db}
}

func (r *GormSubscriptionRepo) ListActive(ctx context.Context, userID string) ([]domain.Subscription, error) {
	var models []SubscriptionModel
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND is_active = ?", userID, true).
		Order("created_at ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	subscriptions := make([]domain.Subscription, 0, len(models))
	for i := range models {
		subscriptions = append(subscriptions, *subscriptionModelToDomain(&models[i]))
	}

	return subscriptions, nil
}

func (r *GormSubscriptionRepo) Remove(ctx context.Context, id string) error {
	// Deleting an already-removed row is a no-op: concurrent invocations
	// may race on pruning the same dead subscription.
	return r.db.WithContext(ctx).
		Where("id = ?", id).
		Delete(&SubscriptionModel{}).Error
}

func (r *GormSubscriptionRepo) MarkUsed(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).
		Model(&SubscriptionModel{}).
		Where("id = ?", id).
		Update("last_used_at", time.Now().UTC())
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}
