package repository

import (
	"time"

	"github.com/google/uuid"
	"github.com/webpushd/webpushd/internal/domain"
	"gorm.io/gorm"
)

// SubscriptionModel is the persistence model for push_subscriptions.
type SubscriptionModel struct {
	ID         string `gorm:"type:uuid;primaryKey"`
	UserID     string `gorm:"type:varchar(36);not null;index"`
	Endpoint   string `gorm:"type:text;not null"`
	P256dh     string `gorm:"type:text;not null"`
	Auth       string `gorm:"type:text;not null"`
	IsActive   bool   `gorm:"not null;default:true"`
	LastUsedAt *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (SubscriptionModel) TableName() string {
	return "push_subscriptions"
}

func (m *SubscriptionModel) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}

func subscriptionModelToDomain(m *SubscriptionModel) *domain.Subscription {
	if m == nil {
		return nil
	}

	return &domain.Subscription{
		ID:         m.ID,
		UserID:     m.UserID,
		Endpoint:   m.Endpoint,
		P256dh:     m.P256dh,
		Auth:       m.Auth,
		IsActive:   m.IsActive,
		LastUsedAt: m.LastUsedAt,
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}
}
