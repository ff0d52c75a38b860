// internal/handlers/affiliate.go
package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/hugoapp/hugo-backend/internal/services"
	"github.com/hugoapp/hugo-backend/internal/utils"
)

type AffiliateHandler struct {
	commissions *services.CommissionService
}

func NewAffiliateHandler(commissions *services.CommissionService) *AffiliateHandler {
	return &AffiliateHandler{commissions: commissions}
}

// TrackClick records a referral click. Public endpoint; the visitor key is
// optional and falls back to a client fingerprint.
func (h *AffiliateHandler) TrackClick(c *gin.Context) {
	var req services.TrackClickRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body", err.Error())
		return
	}

	click, err := h.commissions.TrackClick(&req, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.CreatedResponse(c, gin.H{
		"click_id":    click.ID,
		"visitor_key": click.VisitorKey,
	})
}

type calculateCommissionRequest struct {
	ClickID       uuid.UUID `json:"click_id" binding:"required"`
	TransactionID uuid.UUID `json:"transaction_id" binding:"required"`
}

// CalculateCommission attributes a succeeded transaction to a tracked click
// and records the resulting commission. Safe to retry: replays return 409.
func (h *AffiliateHandler) CalculateCommission(c *gin.Context) {
	var req calculateCommissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body", err.Error())
		return
	}

	result, err := h.commissions.CalculateCommission(req.ClickID, req.TransactionID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.CreatedResponse(c, result)
}
