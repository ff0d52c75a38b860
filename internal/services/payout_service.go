// internal/services/payout_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/hugoapp/hugo-backend/internal/config"
	"github.com/hugoapp/hugo-backend/internal/database"
	"github.com/hugoapp/hugo-backend/internal/events"
	"github.com/hugoapp/hugo-backend/internal/metrics"
	"github.com/hugoapp/hugo-backend/internal/models"
	"github.com/hugoapp/hugo-backend/internal/utils"
)

// PayoutService computes withdrawable balances and opens payout requests
// against the external payout rail. The invariant it protects: the sum of a
// seller's non-failed payouts never exceeds the seller_net accumulated from
// succeeded (and, for escrow sales, released) transactions.
type PayoutService struct {
	db        *gorm.DB
	config    *config.Config
	provider  PayoutProvider
	publisher *events.Publisher
}

type BalanceSummary struct {
	TotalEarned      int64  `json:"total_earned"`
	HeldInEscrow     int64  `json:"held_in_escrow"`
	PaidOut          int64  `json:"paid_out"`
	AvailableBalance int64  `json:"available_balance"`
	Currency         string `json:"currency"`
}

type PayoutResult struct {
	PayoutID uuid.UUID           `json:"payout_id"`
	Amount   int64               `json:"amount"`
	Status   models.PayoutStatus `json:"status"`
}

func NewPayoutService(db *gorm.DB, cfg *config.Config, provider PayoutProvider, publisher *events.Publisher) *PayoutService {
	return &PayoutService{
		db:        db,
		config:    cfg,
		provider:  provider,
		publisher: publisher,
	}
}

// AvailableBalance is Σ seller_net over succeeded transactions whose escrow
// (if any) has been released, minus Σ amount over non-failed payouts.
func (s *PayoutService) AvailableBalance(sellerID uuid.UUID) (*BalanceSummary, error) {
	return s.availableBalance(s.db, sellerID)
}

func (s *PayoutService) availableBalance(db *gorm.DB, sellerID uuid.UUID) (*BalanceSummary, error) {
	var earned int64
	err := db.Model(&models.Transaction{}).
		Joins("LEFT JOIN escrows ON escrows.transaction_id = transactions.id").
		Where("transactions.seller_id = ? AND transactions.status = ?", sellerID, models.TransactionStatusSucceeded).
		Where("transactions.uses_escrow = ? OR escrows.status = ?", false, models.EscrowStatusReleased).
		Select("COALESCE(SUM(transactions.seller_net), 0)").
		Scan(&earned).Error
	if err != nil {
		return nil, fmt.Errorf("failed to sum settled earnings: %w", err)
	}

	var held int64
	err = db.Model(&models.Escrow{}).
		Joins("JOIN transactions ON transactions.id = escrows.transaction_id").
		Where("transactions.seller_id = ? AND transactions.status = ?", sellerID, models.TransactionStatusSucceeded).
		Where("escrows.status <> ?", models.EscrowStatusReleased).
		Select("COALESCE(SUM(escrows.held_amount), 0)").
		Scan(&held).Error
	if err != nil {
		return nil, fmt.Errorf("failed to sum held escrow: %w", err)
	}

	var paidOut int64
	err = db.Model(&models.Payout{}).
		Where("seller_id = ? AND status <> ?", sellerID, models.PayoutStatusFailed).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&paidOut).Error
	if err != nil {
		return nil, fmt.Errorf("failed to sum payouts: %w", err)
	}

	return &BalanceSummary{
		TotalEarned:      earned,
		HeldInEscrow:     held,
		PaidOut:          paidOut,
		AvailableBalance: earned - paidOut,
		Currency:         s.config.Payment.DefaultCurrency,
	}, nil
}

// CreatePayout opens a withdrawal for the seller. A nil requestedAmount
// defaults to the full available balance. The seller row stays locked from the
// balance read through the payout insert, so concurrent requests serialize and
// the loser re-reads a balance that already includes the winner's pending
// payout. If the external transfer succeeds but the local row cannot be
// written, the inconsistency is surfaced as a reconciliation alert and never
// retried with a second external request.
func (s *PayoutService) CreatePayout(sellerID uuid.UUID, requestedAmount *int64) (*PayoutResult, error) {
	var payout *models.Payout

	err := database.WithTransaction(s.db, func(tx *gorm.DB) error {
		var seller models.User
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&seller, "id = ?", sellerID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("failed to load seller: %w", err)
		}

		if !seller.HasPayoutDestination() {
			return ErrNoPayoutDestination
		}

		balance, err := s.availableBalance(tx, sellerID)
		if err != nil {
			return err
		}

		amount := balance.AvailableBalance
		if requestedAmount != nil {
			amount = *requestedAmount
		}

		if amount <= 0 || amount > balance.AvailableBalance {
			return ErrInsufficientBalance
		}
		if amount < s.config.Payment.MinimumPayout {
			return fmt.Errorf("payout below minimum of %d minor units: %w", s.config.Payment.MinimumPayout, ErrInsufficientBalance)
		}

		externalID, err := s.provider.CreateTransfer(amount, s.config.Payment.DefaultCurrency, seller.StripeAccountID, map[string]string{
			"seller_id": sellerID.String(),
		})
		if err != nil {
			metrics.PayoutsTotal.WithLabelValues("provider_error").Inc()
			return fmt.Errorf("%w: transfer: %v", ErrProviderRejected, err)
		}

		payout = &models.Payout{
			SellerID:         sellerID,
			Amount:           amount,
			Currency:         s.config.Payment.DefaultCurrency,
			Status:           models.PayoutStatusPending,
			ExternalPayoutID: externalID,
		}

		if err := tx.Create(payout).Error; err != nil {
			// The transfer is already committed externally. Surface on a
			// separate session, never retry.
			s.raiseReconciliationAlert(sellerID, externalID, amount, err)
			return ErrReconciliationRequired
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.PayoutsTotal.WithLabelValues("created").Inc()
	s.publisher.Publish(context.Background(), events.EventPayoutCreated, payout.ID.String(), payout)

	logrus.WithFields(logrus.Fields{
		"payout_id":          payout.ID,
		"seller_id":          sellerID,
		"amount":             payout.Amount,
		"external_payout_id": payout.ExternalPayoutID,
	}).Info("Payout created")

	return &PayoutResult{
		PayoutID: payout.ID,
		Amount:   payout.Amount,
		Status:   payout.Status,
	}, nil
}

// OpenAlerts lists unresolved reconciliation alerts for operator review.
func (s *PayoutService) OpenAlerts(params utils.PaginationParams) ([]models.ReconciliationAlert, int64, error) {
	query := s.db.Model(&models.ReconciliationAlert{}).Where("status = ?", models.AlertStatusOpen)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count alerts: %w", err)
	}

	var alerts []models.ReconciliationAlert
	query = utils.ApplySort(query, params, []string{"created_at"})
	query = utils.ApplyPagination(query, params)
	if err := query.Find(&alerts).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list alerts: %w", err)
	}

	return alerts, total, nil
}

// ResolveAlert closes an open reconciliation alert. Resolving an already
// resolved alert is a conflict so operators notice double handling.
func (s *PayoutService) ResolveAlert(alertID, actor uuid.UUID) error {
	now := time.Now()
	res := s.db.Model(&models.ReconciliationAlert{}).
		Where("id = ? AND status = ?", alertID, models.AlertStatusOpen).
		Updates(map[string]interface{}{
			"status":      models.AlertStatusResolved,
			"resolved_by": actor,
			"resolved_at": now,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to resolve alert: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		var alert models.ReconciliationAlert
		if err := s.db.First(&alert, "id = ?", alertID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("failed to load alert: %w", err)
		}
		return ErrConflictingState
	}
	return nil
}

func (s *PayoutService) raiseReconciliationAlert(sellerID uuid.UUID, externalID string, amount int64, cause error) {
	metrics.ReconciliationAlertsTotal.Inc()

	alert := &models.ReconciliationAlert{
		ResourceType: "payout",
		ExternalRef:  externalID,
		Message:      "external transfer committed but local payout row could not be written",
		Details: models.JSONB{
			"seller_id": sellerID.String(),
			"amount":    amount,
			"cause":     cause.Error(),
		},
		Status: models.AlertStatusOpen,
	}

	if err := s.db.Create(alert).Error; err != nil {
		// Last resort: the log line is the only surviving record.
		logrus.WithError(err).WithFields(logrus.Fields{
			"seller_id":          sellerID,
			"external_payout_id": externalID,
			"amount":             amount,
			"cause":              cause,
		}).Error("Failed to persist reconciliation alert; manual payout reconciliation required")
		return
	}

	logrus.WithFields(logrus.Fields{
		"alert_id":           alert.ID,
		"seller_id":          sellerID,
		"external_payout_id": externalID,
		"amount":             amount,
	}).Error("Reconciliation alert raised for unrecorded external payout")
}
