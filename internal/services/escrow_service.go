// internal/services/escrow_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/hugoapp/hugo-backend/internal/events"
	"github.com/hugoapp/hugo-backend/internal/models"
)

// EscrowService owns the holdback state machine: held → released, and
// held → disputed → released. Held funds never count toward the seller's
// withdrawable balance until release.
type EscrowService struct {
	db        *gorm.DB
	storage   *StorageService
	publisher *events.Publisher
}

func NewEscrowService(db *gorm.DB, storage *StorageService, publisher *events.Publisher) *EscrowService {
	return &EscrowService{
		db:        db,
		storage:   storage,
		publisher: publisher,
	}
}

// Release moves a held escrow to released, making the held amount eligible for
// payout. The parent transaction must already be succeeded; a pending or
// failed parent rejects the release with ErrInvalidEscrowState. The held
// amount itself is immutable.
func (s *EscrowService) Release(escrowID, actor uuid.UUID) (*models.Escrow, error) {
	var escrow models.Escrow
	if err := s.db.Preload("Transaction").First(&escrow, "id = ?", escrowID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load escrow: %w", err)
	}

	if escrow.Transaction.Status != models.TransactionStatusSucceeded {
		return nil, ErrInvalidEscrowState
	}

	now := time.Now()
	res := s.db.Model(&models.Escrow{}).
		Where("id = ? AND status = ?", escrowID, models.EscrowStatusHeld).
		Updates(map[string]interface{}{
			"status":      models.EscrowStatusReleased,
			"released_by": actor,
			"released_at": now,
		})
	if res.Error != nil {
		return nil, fmt.Errorf("failed to release escrow: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		// Lost the race or escrow already left held; preserve current state.
		return nil, ErrInvalidEscrowState
	}

	escrow.Status = models.EscrowStatusReleased
	escrow.ReleasedBy = &actor
	escrow.ReleasedAt = &now

	s.publisher.Publish(context.Background(), events.EventEscrowReleased, escrow.ID.String(), escrow)

	logrus.WithFields(logrus.Fields{
		"escrow_id":      escrow.ID,
		"transaction_id": escrow.TransactionID,
		"held_amount":    escrow.HeldAmount,
		"released_by":    actor,
	}).Info("Escrow released")

	return &escrow, nil
}

// OpenDispute freezes a held escrow until external resolution. Optional
// evidence is stored privately and linked on the escrow row.
func (s *EscrowService) OpenDispute(escrowID uuid.UUID, reason string, evidence multipart.File, evidenceHeader *multipart.FileHeader) (*models.Escrow, error) {
	var escrow models.Escrow
	if err := s.db.First(&escrow, "id = ?", escrowID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load escrow: %w", err)
	}

	evidenceKey := ""
	if evidence != nil && evidenceHeader != nil {
		if s.storage == nil {
			return nil, fmt.Errorf("evidence storage is not configured")
		}
		result, err := s.storage.UploadEvidence(evidence, evidenceHeader)
		if err != nil {
			return nil, fmt.Errorf("failed to store dispute evidence: %w", err)
		}
		evidenceKey = result.Key
	}

	res := s.db.Model(&models.Escrow{}).
		Where("id = ? AND status = ?", escrowID, models.EscrowStatusHeld).
		Updates(map[string]interface{}{
			"status":         models.EscrowStatusDisputed,
			"dispute_reason": reason,
			"evidence_key":   evidenceKey,
		})
	if res.Error != nil {
		return nil, fmt.Errorf("failed to open dispute: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrInvalidEscrowState
	}

	escrow.Status = models.EscrowStatusDisputed
	escrow.DisputeReason = reason
	escrow.EvidenceKey = evidenceKey

	s.publisher.Publish(context.Background(), events.EventEscrowDisputed, escrow.ID.String(), escrow)

	logrus.WithFields(logrus.Fields{
		"escrow_id":      escrow.ID,
		"transaction_id": escrow.TransactionID,
		"reason":         reason,
	}).Info("Escrow dispute opened")

	return &escrow, nil
}

// GetByID returns an escrow with its parent transaction loaded. Handlers use
// the parent's buyer and seller to decide who may act on the escrow.
func (s *EscrowService) GetByID(escrowID uuid.UUID) (*models.Escrow, error) {
	var escrow models.Escrow
	if err := s.db.Preload("Transaction").First(&escrow, "id = ?", escrowID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load escrow: %w", err)
	}
	return &escrow, nil
}

// GetByTransaction returns the escrow paired with a transaction, if any.
func (s *EscrowService) GetByTransaction(transactionID uuid.UUID) (*models.Escrow, error) {
	var escrow models.Escrow
	if err := s.db.Preload("Transaction").Where("transaction_id = ?", transactionID).First(&escrow).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load escrow: %w", err)
	}
	return &escrow, nil
}
