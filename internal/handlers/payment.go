// internal/handlers/payment.go
package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/hugoapp/hugo-backend/internal/services"
	"github.com/hugoapp/hugo-backend/internal/utils"
)

type PaymentHandler struct {
	ledger  *services.LedgerService
	payouts *services.PayoutService
}

func NewPaymentHandler(ledger *services.LedgerService, payouts *services.PayoutService) *PaymentHandler {
	return &PaymentHandler{
		ledger:  ledger,
		payouts: payouts,
	}
}

// Checkout opens a purchase: POST /api/v1/payments/checkout
func (h *PaymentHandler) Checkout(c *gin.Context) {
	userID, exists := utils.GetUserIDFromContext(c)
	if !exists {
		utils.UnauthorizedResponse(c, "")
		return
	}

	buyerID, err := uuid.Parse(userID)
	if err != nil {
		utils.BadRequestResponse(c, "Invalid user ID", nil)
		return
	}

	var req services.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body", err.Error())
		return
	}

	response, err := h.ledger.CreateTransaction(buyerID, &req)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.CreatedResponse(c, response)
}

// GetTransaction returns one transaction by payment reference, visible only
// to its buyer, seller, or an admin.
func (h *PaymentHandler) GetTransaction(c *gin.Context) {
	reference := c.Param("reference")
	if reference == "" {
		utils.BadRequestResponse(c, "Payment reference is required", nil)
		return
	}

	transaction, err := h.ledger.GetByPaymentReference(reference)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	userID, _ := utils.GetUserIDFromContext(c)
	role, _ := utils.GetUserRoleFromContext(c)
	if role != "admin" && transaction.BuyerID.String() != userID && transaction.SellerID.String() != userID {
		utils.ForbiddenResponse(c, "")
		return
	}

	utils.SuccessResponse(c, transaction)
}

// GetPaymentHistory lists the caller's transactions (as buyer or seller).
func (h *PaymentHandler) GetPaymentHistory(c *gin.Context) {
	userID, exists := utils.GetUserIDFromContext(c)
	if !exists {
		utils.UnauthorizedResponse(c, "")
		return
	}

	uid, err := uuid.Parse(userID)
	if err != nil {
		utils.BadRequestResponse(c, "Invalid user ID", nil)
		return
	}

	params := utils.GetPaginationParams(c)
	transactions, total, err := h.ledger.GetPaymentHistory(uid, params)
	if err != nil {
		utils.InternalErrorResponse(c, "")
		return
	}

	result := utils.CreatePaginationResult(transactions, total, params)
	utils.PaginatedResponse(c, result)
}

// GetBalance returns the caller's earnings and withdrawable balance.
func (h *PaymentHandler) GetBalance(c *gin.Context) {
	userID, exists := utils.GetUserIDFromContext(c)
	if !exists {
		utils.UnauthorizedResponse(c, "")
		return
	}

	sellerID, err := uuid.Parse(userID)
	if err != nil {
		utils.BadRequestResponse(c, "Invalid user ID", nil)
		return
	}

	balance, err := h.payouts.AvailableBalance(sellerID)
	if err != nil {
		utils.InternalErrorResponse(c, "")
		return
	}

	utils.SuccessResponse(c, balance)
}

type payoutRequest struct {
	Amount *int64 `json:"amount"`
}

// RequestPayout opens a withdrawal of the caller's available balance.
// A missing amount withdraws everything available.
func (h *PaymentHandler) RequestPayout(c *gin.Context) {
	userID, exists := utils.GetUserIDFromContext(c)
	if !exists {
		utils.UnauthorizedResponse(c, "")
		return
	}

	sellerID, err := uuid.Parse(userID)
	if err != nil {
		utils.BadRequestResponse(c, "Invalid user ID", nil)
		return
	}

	var req payoutRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		utils.BadRequestResponse(c, "Invalid request body", err.Error())
		return
	}

	result, err := h.payouts.CreatePayout(sellerID, req.Amount)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.CreatedResponse(c, result)
}
