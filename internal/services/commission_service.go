// internal/services/commission_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/hugoapp/hugo-backend/internal/events"
	"github.com/hugoapp/hugo-backend/internal/metrics"
	"github.com/hugoapp/hugo-backend/internal/models"
	"github.com/hugoapp/hugo-backend/internal/utils"
)

// CommissionService converts affiliate clicks into commission records tied to
// succeeded transactions. The conversion row is the primary effect and the
// single source of truth; the click latch and campaign counter are
// denormalized secondary effects maintained best-effort.
type CommissionService struct {
	db        *gorm.DB
	publisher *events.Publisher
}

type TrackClickRequest struct {
	CampaignID  uuid.UUID `json:"campaign_id" validate:"required"`
	VisitorKey  string    `json:"visitor_key" validate:"max=128"`
	LandingPath string    `json:"landing_path" validate:"max=512"`
	Referrer    string    `json:"referrer" validate:"max=1024"`
}

type CommissionResult struct {
	ConversionID     uuid.UUID                     `json:"conversion_id"`
	CommissionAmount int64                         `json:"commission_amount"`
	PayoutStatus     models.CommissionPayoutStatus `json:"payout_status"`
}

func NewCommissionService(db *gorm.DB, publisher *events.Publisher) *CommissionService {
	return &CommissionService{
		db:        db,
		publisher: publisher,
	}
}

// TrackClick records one referral event against an active campaign. Clicks are
// append-only; conversion state is maintained by CalculateCommission.
func (s *CommissionService) TrackClick(req *TrackClickRequest, clientIP, userAgent string) (*models.Click, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	var campaign models.Campaign
	if err := s.db.First(&campaign, "id = ?", req.CampaignID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load campaign: %w", err)
	}

	if !campaign.IsActive {
		return nil, ErrCampaignInactive
	}

	if req.VisitorKey == "" {
		// Fall back to a fingerprint so repeat visits stay correlated.
		req.VisitorKey = utils.HashString(clientIP + userAgent)
	}

	click := &models.Click{
		CampaignID:  campaign.ID,
		AffiliateID: campaign.AffiliateID,
		VisitorKey:  req.VisitorKey,
		LandingPath: req.LandingPath,
		Referrer:    req.Referrer,
		ClientIP:    clientIP,
		UserAgent:   userAgent,
	}

	if err := s.db.Create(click).Error; err != nil {
		return nil, fmt.Errorf("failed to record click: %w", err)
	}

	return click, nil
}

// CalculateCommission turns a click plus a succeeded transaction into exactly
// one conversion. Retried deliveries are safe: the converted latch rejects
// replays up front, and the unique click_id constraint on conversions is the
// backstop when two calls race past that check.
func (s *CommissionService) CalculateCommission(clickID, transactionID uuid.UUID) (*CommissionResult, error) {
	var click models.Click
	if err := s.db.First(&click, "id = ?", clickID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load click: %w", err)
	}
	if click.Converted {
		return nil, ErrAlreadyConverted
	}

	var campaign models.Campaign
	if err := s.db.First(&campaign, "id = ?", click.CampaignID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load campaign: %w", err)
	}
	if !campaign.IsActive {
		return nil, ErrCampaignInactive
	}
	if campaign.LimitReached() {
		return nil, ErrConversionLimitReached
	}

	var transaction models.Transaction
	if err := s.db.First(&transaction, "id = ?", transactionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load transaction: %w", err)
	}
	if transaction.Status != models.TransactionStatusSucceeded {
		return nil, ErrTransactionNotSucceeded
	}

	amount, rateBps, err := commissionAmount(&campaign, transaction.GrossAmount)
	if err != nil {
		return nil, err
	}

	// Bounds check is mandatory and runs before anything is persisted: a
	// commission can never be zero, negative, or exceed the underlying sale.
	if amount <= 0 || amount > transaction.GrossAmount {
		return nil, ErrInvalidCommission
	}

	conversion := &models.Conversion{
		ClickID:           click.ID,
		CampaignID:        campaign.ID,
		TransactionID:     transaction.ID,
		CommissionAmount:  amount,
		CommissionRateBps: rateBps,
		PayoutStatus:      models.CommissionPayoutStatusPending,
	}

	// Primary effect. A failure here aborts the whole operation: nothing has
	// been paid yet.
	if err := s.db.Create(conversion).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrAlreadyConverted
		}
		return nil, fmt.Errorf("failed to persist conversion: %w", err)
	}

	metrics.ConversionsTotal.Inc()

	// Secondary effects from here on must not roll back the recorded
	// conversion; re-running the whole operation would trip the unique
	// click_id constraint, which is a detectable degraded state rather than
	// a financial error.
	now := time.Now()
	clickUpdate := s.db.Model(&models.Click{}).
		Where("id = ? AND converted = ?", click.ID, false).
		Updates(map[string]interface{}{
			"converted":     true,
			"conversion_id": conversion.ID,
			"converted_at":  now,
		})
	if clickUpdate.Error != nil {
		logrus.WithError(clickUpdate.Error).WithFields(logrus.Fields{
			"click_id":      click.ID,
			"conversion_id": conversion.ID,
		}).Warn("Failed to latch click after conversion; conversion row remains authoritative")
	}

	counterUpdate := s.db.Model(&models.Campaign{}).Where("id = ?", campaign.ID)
	if campaign.MaxConversions != nil {
		counterUpdate = counterUpdate.Where("total_conversions < ?", *campaign.MaxConversions)
	}
	if err := counterUpdate.UpdateColumn("total_conversions", gorm.Expr("total_conversions + 1")).Error; err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"campaign_id":   campaign.ID,
			"conversion_id": conversion.ID,
		}).Warn("Failed to increment campaign conversion counter")
	}

	s.publisher.Publish(context.Background(), events.EventCommissionCreated, conversion.ID.String(), conversion)

	logrus.WithFields(logrus.Fields{
		"conversion_id":     conversion.ID,
		"click_id":          click.ID,
		"campaign_id":       campaign.ID,
		"transaction_id":    transaction.ID,
		"commission_amount": amount,
	}).Info("Commission recorded")

	return &CommissionResult{
		ConversionID:     conversion.ID,
		CommissionAmount: amount,
		PayoutStatus:     conversion.PayoutStatus,
	}, nil
}

// commissionAmount computes the commission and the rate snapshot for the
// conversion record. Unknown commission types hard-fail: money is never
// silently zeroed for a type the engine does not understand.
func commissionAmount(campaign *models.Campaign, grossAmount int64) (int64, int64, error) {
	switch campaign.CommissionType {
	case models.CommissionTypePercentage:
		return roundBps(grossAmount, campaign.RateBps), campaign.RateBps, nil
	case models.CommissionTypeFixed:
		return campaign.FixedAmount, 0, nil
	default:
		return 0, 0, ErrUnknownCommissionType
	}
}
