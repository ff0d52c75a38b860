// internal/services/ledger_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/hugoapp/hugo-backend/internal/config"
	"github.com/hugoapp/hugo-backend/internal/database"
	"github.com/hugoapp/hugo-backend/internal/events"
	"github.com/hugoapp/hugo-backend/internal/metrics"
	"github.com/hugoapp/hugo-backend/internal/models"
	"github.com/hugoapp/hugo-backend/internal/utils"
)

// LedgerService owns the transaction state machine: pending → succeeded|failed,
// terminal states immutable. All transitions are conditional updates guarded on
// the current status, so concurrent or replayed applies cannot overwrite a
// terminal state.
type LedgerService struct {
	db        *gorm.DB
	config    *config.Config
	provider  PaymentProvider
	publisher *events.Publisher
}

type CheckoutRequest struct {
	ItemID        uuid.UUID `json:"item_id" validate:"required"`
	PaymentMethod string    `json:"payment_method" validate:"required"`
	UsesEscrow    bool      `json:"uses_escrow"`
}

type CheckoutResponse struct {
	TransactionID uuid.UUID `json:"transaction_id"`
	ClientSecret  string    `json:"client_secret"`
	GrossAmount   int64     `json:"gross_amount"`
	SellerNet     int64     `json:"seller_net"`
	Currency      string    `json:"currency"`
}

func NewLedgerService(db *gorm.DB, cfg *config.Config, provider PaymentProvider, publisher *events.Publisher) *LedgerService {
	return &LedgerService{
		db:        db,
		config:    cfg,
		provider:  provider,
		publisher: publisher,
	}
}

// CreateTransaction opens a checkout: validates the purchase, computes the fee
// split, opens the provider charge and persists the pending transaction (plus
// its escrow when requested) in one database transaction. A failed escrow
// write rolls the transaction row back, so a pending escrow-using transaction
// without its escrow is never observable.
func (s *LedgerService) CreateTransaction(buyerID uuid.UUID, req *CheckoutRequest) (*CheckoutResponse, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	var item models.Item
	if err := s.db.Preload("Seller").First(&item, "id = ?", req.ItemID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load item: %w", err)
	}

	if !item.Purchasable() {
		return nil, ErrItemUnavailable
	}
	if item.SellerID == buyerID {
		return nil, ErrSelfPurchase
	}

	// Fee math runs before any external charge; a bad configuration rejects
	// the checkout with nothing persisted.
	fees, err := ComputeFees(item.PriceAmount, item.Seller.EarnerCategory, s.config.Payment.ProcessorRateBps, s.config.Payment.ProcessorFixedFee)
	if err != nil {
		return nil, err
	}

	currency := item.Currency
	if currency == "" {
		currency = s.config.Payment.DefaultCurrency
	}

	intent, err := s.provider.CreateIntent(item.PriceAmount, currency, req.PaymentMethod, map[string]string{
		"buyer_id": buyerID.String(),
		"item_id":  item.ID.String(),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: charge: %v", ErrProviderRejected, err)
	}

	transaction := &models.Transaction{
		BuyerID:          buyerID,
		SellerID:         item.SellerID,
		ItemID:           item.ID,
		GrossAmount:      item.PriceAmount,
		Currency:         currency,
		PlatformFee:      fees.PlatformFee,
		ProcessorFee:     fees.ProcessorFee,
		SellerNet:        fees.SellerNet,
		PaymentMethod:    req.PaymentMethod,
		PaymentReference: intent.ID,
		Status:           models.TransactionStatusPending,
		UsesEscrow:       req.UsesEscrow,
	}

	err = database.WithTransaction(s.db, func(tx *gorm.DB) error {
		if err := tx.Create(transaction).Error; err != nil {
			return fmt.Errorf("failed to create transaction: %w", err)
		}

		if req.UsesEscrow {
			escrow := &models.Escrow{
				TransactionID: transaction.ID,
				HeldAmount:    fees.SellerNet,
				Status:        models.EscrowStatusHeld,
			}
			if err := tx.Create(escrow).Error; err != nil {
				return fmt.Errorf("failed to create escrow: %w", err)
			}
		}

		return nil
	})
	if err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"payment_reference": intent.ID,
			"buyer_id":          buyerID,
		}).Error("Checkout persistence failed after charge was opened; intent left unconfirmed")
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"transaction_id":    transaction.ID,
		"payment_reference": intent.ID,
		"gross_amount":      item.PriceAmount,
		"seller_net":        fees.SellerNet,
		"uses_escrow":       req.UsesEscrow,
	}).Info("Transaction created")

	return &CheckoutResponse{
		TransactionID: transaction.ID,
		ClientSecret:  intent.ClientSecret,
		GrossAmount:   item.PriceAmount,
		SellerNet:     fees.SellerNet,
		Currency:      currency,
	}, nil
}

// MarkSucceeded transitions the transaction with the given payment reference
// from pending to succeeded. Re-applying the same terminal transition is a
// no-op; a conflicting transition fails with ErrConflictingState and is logged
// for manual review, never overwritten.
func (s *LedgerService) MarkSucceeded(paymentReference string) error {
	now := time.Now()
	res := s.db.Model(&models.Transaction{}).
		Where("payment_reference = ? AND status = ?", paymentReference, models.TransactionStatusPending).
		Updates(map[string]interface{}{
			"status":       models.TransactionStatusSucceeded,
			"processed_at": now,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to mark transaction succeeded: %w", res.Error)
	}

	if res.RowsAffected == 0 {
		return s.resolveNoopTransition(paymentReference, models.TransactionStatusSucceeded)
	}

	metrics.TransactionTransitionsTotal.WithLabelValues(string(models.TransactionStatusSucceeded)).Inc()
	s.afterSucceeded(paymentReference)
	return nil
}

// MarkFailed transitions the transaction from pending to failed, with the same
// idempotency rules as MarkSucceeded.
func (s *LedgerService) MarkFailed(paymentReference, reason string) error {
	now := time.Now()
	res := s.db.Model(&models.Transaction{}).
		Where("payment_reference = ? AND status = ?", paymentReference, models.TransactionStatusPending).
		Updates(map[string]interface{}{
			"status":         models.TransactionStatusFailed,
			"failure_reason": reason,
			"processed_at":   now,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to mark transaction failed: %w", res.Error)
	}

	if res.RowsAffected == 0 {
		return s.resolveNoopTransition(paymentReference, models.TransactionStatusFailed)
	}

	metrics.TransactionTransitionsTotal.WithLabelValues(string(models.TransactionStatusFailed)).Inc()

	var transaction models.Transaction
	if err := s.db.Where("payment_reference = ?", paymentReference).First(&transaction).Error; err == nil {
		s.publisher.Publish(context.Background(), events.EventTransactionFailed, transaction.ID.String(), transaction)
	}

	logrus.WithFields(logrus.Fields{
		"payment_reference": paymentReference,
		"reason":            reason,
	}).Info("Transaction marked failed")
	return nil
}

// resolveNoopTransition decides whether a zero-row conditional update was a
// replay (same terminal state, fine) or a conflict (other terminal state).
func (s *LedgerService) resolveNoopTransition(paymentReference string, target models.TransactionStatus) error {
	var transaction models.Transaction
	if err := s.db.Where("payment_reference = ?", paymentReference).First(&transaction).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to load transaction: %w", err)
	}

	if transaction.Status == target {
		logrus.WithFields(logrus.Fields{
			"payment_reference": paymentReference,
			"status":            target,
		}).Debug("Duplicate terminal transition ignored")
		return nil
	}

	logrus.WithFields(logrus.Fields{
		"transaction_id":    transaction.ID,
		"payment_reference": paymentReference,
		"current_status":    transaction.Status,
		"requested_status":  target,
	}).Error("Conflicting terminal transition rejected; manual review required")
	return ErrConflictingState
}

// afterSucceeded performs the denormalized secondary effects of a successful
// sale: inventory decrement, sales counter, event publish. These are
// best-effort; the transaction row is already the source of truth.
func (s *LedgerService) afterSucceeded(paymentReference string) {
	var transaction models.Transaction
	if err := s.db.Where("payment_reference = ?", paymentReference).First(&transaction).Error; err != nil {
		logrus.WithError(err).WithField("payment_reference", paymentReference).
			Warn("Failed to load transaction for post-success effects")
		return
	}

	res := s.db.Model(&models.Item{}).
		Where("id = ? AND inventory_count > 0", transaction.ItemID).
		Updates(map[string]interface{}{
			"inventory_count": gorm.Expr("inventory_count - 1"),
			"sales_count":     gorm.Expr("sales_count + 1"),
		})
	if res.Error != nil {
		logrus.WithError(res.Error).WithField("item_id", transaction.ItemID).
			Warn("Failed to decrement item inventory")
	}

	s.publisher.Publish(context.Background(), events.EventTransactionSucceeded, transaction.ID.String(), transaction)

	logrus.WithFields(logrus.Fields{
		"transaction_id":    transaction.ID,
		"payment_reference": paymentReference,
		"seller_net":        transaction.SellerNet,
	}).Info("Transaction marked succeeded")
}

// GetByPaymentReference looks a transaction up by its idempotency anchor.
func (s *LedgerService) GetByPaymentReference(paymentReference string) (*models.Transaction, error) {
	var transaction models.Transaction
	if err := s.db.Preload("Escrow").Where("payment_reference = ?", paymentReference).First(&transaction).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load transaction: %w", err)
	}
	return &transaction, nil
}

// GetPaymentHistory lists transactions where the user is buyer or seller.
func (s *LedgerService) GetPaymentHistory(userID uuid.UUID, params utils.PaginationParams) ([]models.Transaction, int64, error) {
	query := s.db.Model(&models.Transaction{}).
		Where("buyer_id = ? OR seller_id = ?", userID, userID).
		Preload("Item")

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count transactions: %w", err)
	}

	allowedSortFields := []string{"created_at", "gross_amount", "status"}
	query = utils.ApplySort(query, params, allowedSortFields)
	query = utils.ApplyPagination(query, params)

	var transactions []models.Transaction
	if err := query.Find(&transactions).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch transactions: %w", err)
	}

	return transactions, total, nil
}
