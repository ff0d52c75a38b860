// internal/handlers/escrow.go
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/hugoapp/hugo-backend/internal/models"
	"github.com/hugoapp/hugo-backend/internal/services"
	"github.com/hugoapp/hugo-backend/internal/utils"
)

type EscrowHandler struct {
	escrow  *services.EscrowService
	storage *services.StorageService
}

func NewEscrowHandler(escrow *services.EscrowService, storage *services.StorageService) *EscrowHandler {
	return &EscrowHandler{
		escrow:  escrow,
		storage: storage,
	}
}

// authorizeActor loads the escrow and rejects callers who are neither a party
// to the parent transaction nor an admin. On failure the response has already
// been written.
func (h *EscrowHandler) authorizeActor(c *gin.Context, escrowID uuid.UUID) (*models.Escrow, uuid.UUID, bool) {
	userID, exists := utils.GetUserIDFromContext(c)
	if !exists {
		utils.UnauthorizedResponse(c, "")
		return nil, uuid.Nil, false
	}
	actor, err := uuid.Parse(userID)
	if err != nil {
		utils.BadRequestResponse(c, "Invalid user ID", nil)
		return nil, uuid.Nil, false
	}

	escrow, err := h.escrow.GetByID(escrowID)
	if err != nil {
		respondServiceError(c, err)
		return nil, uuid.Nil, false
	}

	role, _ := utils.GetUserRoleFromContext(c)
	if role != "admin" && escrow.Transaction.BuyerID != actor && escrow.Transaction.SellerID != actor {
		utils.ForbiddenResponse(c, "")
		return nil, uuid.Nil, false
	}

	return escrow, actor, true
}

// Release moves a held escrow to released: POST /api/v1/escrows/:id/release
// Only the buyer, the seller, or an admin may release.
func (h *EscrowHandler) Release(c *gin.Context) {
	escrowID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid escrow ID", nil)
		return
	}

	_, actor, ok := h.authorizeActor(c, escrowID)
	if !ok {
		return
	}

	escrow, err := h.escrow.Release(escrowID, actor)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, escrow)
}

// OpenDispute freezes a held escrow. Multipart form: a required "reason"
// field plus an optional "evidence" file. Only the buyer, the seller, or an
// admin may dispute.
func (h *EscrowHandler) OpenDispute(c *gin.Context) {
	escrowID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid escrow ID", nil)
		return
	}

	if _, _, ok := h.authorizeActor(c, escrowID); !ok {
		return
	}

	reason := c.PostForm("reason")
	if reason == "" {
		utils.BadRequestResponse(c, "Dispute reason is required", nil)
		return
	}

	file, header, err := c.Request.FormFile("evidence")
	if err != nil && !errors.Is(err, http.ErrMissingFile) {
		utils.BadRequestResponse(c, "Invalid evidence file", nil)
		return
	}
	if file != nil {
		defer file.Close()
	}

	escrow, err := h.escrow.OpenDispute(escrowID, reason, file, header)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, escrow)
}

// Evidence returns a fetchable link to a dispute's stored evidence file.
func (h *EscrowHandler) Evidence(c *gin.Context) {
	escrowID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid escrow ID", nil)
		return
	}

	escrow, _, ok := h.authorizeActor(c, escrowID)
	if !ok {
		return
	}

	if escrow.EvidenceKey == "" {
		utils.NotFoundResponse(c, "Evidence")
		return
	}

	if h.storage == nil {
		utils.InternalErrorResponse(c, "Evidence storage is not configured")
		return
	}

	link, err := h.storage.EvidenceLink(escrow.EvidenceKey)
	if err != nil {
		utils.InternalErrorResponse(c, "")
		return
	}

	utils.SuccessResponse(c, gin.H{"evidence_url": link})
}

// GetByTransaction returns the escrow attached to a transaction, visible only
// to the transaction's buyer, seller, or an admin.
func (h *EscrowHandler) GetByTransaction(c *gin.Context) {
	transactionID, err := uuid.Parse(c.Param("transaction_id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid transaction ID", nil)
		return
	}

	escrow, err := h.escrow.GetByTransaction(transactionID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	userID, _ := utils.GetUserIDFromContext(c)
	role, _ := utils.GetUserRoleFromContext(c)
	if role != "admin" && escrow.Transaction.BuyerID.String() != userID && escrow.Transaction.SellerID.String() != userID {
		utils.ForbiddenResponse(c, "")
		return
	}

	utils.SuccessResponse(c, escrow)
}
