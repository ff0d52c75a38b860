// internal/services/subscription_service.go
package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/hugoapp/hugo-backend/internal/models"
)

// SubscriptionService mirrors provider-side subscription state. Unlike the
// transaction ledger there are no terminal states here, but the same
// idempotent-apply principle holds: replayed updates converge on the same row,
// keyed by the provider's subscription id.
type SubscriptionService struct {
	db *gorm.DB
}

func NewSubscriptionService(db *gorm.DB) *SubscriptionService {
	return &SubscriptionService{db: db}
}

// ApplyUpdate upserts the local mirror of a provider subscription. userID is
// only needed the first time a subscription is seen; later updates keep the
// existing owner.
func (s *SubscriptionService) ApplyUpdate(externalID string, userID *uuid.UUID, priceRef string, status models.SubscriptionStatus, currentPeriodEnd *time.Time) error {
	var subscription models.Subscription
	err := s.db.Where("external_subscription_id = ?", externalID).First(&subscription).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		if userID == nil {
			logrus.WithField("external_subscription_id", externalID).
				Warn("Subscription update for unknown subscription without owner metadata; skipped")
			return ErrNotFound
		}

		subscription = models.Subscription{
			UserID:                 *userID,
			ExternalSubscriptionID: externalID,
			PriceRef:               priceRef,
			Status:                 status,
			CurrentPeriodEnd:       currentPeriodEnd,
		}
		if err := s.db.Create(&subscription).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				// Concurrent first delivery; the other writer won, re-apply as update.
				return s.ApplyUpdate(externalID, userID, priceRef, status, currentPeriodEnd)
			}
			return fmt.Errorf("failed to create subscription: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load subscription: %w", err)
	}

	updates := map[string]interface{}{
		"status": status,
	}
	if priceRef != "" {
		updates["price_ref"] = priceRef
	}
	if currentPeriodEnd != nil {
		updates["current_period_end"] = currentPeriodEnd
	}

	if err := s.db.Model(&subscription).Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to update subscription: %w", err)
	}

	return nil
}

// ApplyDeleted marks a subscription canceled. Deleting twice is a no-op.
func (s *SubscriptionService) ApplyDeleted(externalID string, canceledAt time.Time) error {
	res := s.db.Model(&models.Subscription{}).
		Where("external_subscription_id = ? AND status <> ?", externalID, models.SubscriptionStatusCanceled).
		Updates(map[string]interface{}{
			"status":      models.SubscriptionStatusCanceled,
			"canceled_at": canceledAt,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to cancel subscription: %w", res.Error)
	}

	if res.RowsAffected == 0 {
		logrus.WithField("external_subscription_id", externalID).
			Debug("Subscription delete was a no-op (already canceled or unknown)")
	}

	return nil
}
