// internal/handlers/admin.go
package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/hugoapp/hugo-backend/internal/services"
	"github.com/hugoapp/hugo-backend/internal/utils"
)

// AdminHandler exposes the operator surface: reconciliation alerts raised when
// an external transfer committed but the local ledger write failed.
type AdminHandler struct {
	payouts *services.PayoutService
}

func NewAdminHandler(payouts *services.PayoutService) *AdminHandler {
	return &AdminHandler{payouts: payouts}
}

// ListReconciliationAlerts lists open alerts, newest first.
func (h *AdminHandler) ListReconciliationAlerts(c *gin.Context) {
	params := utils.GetPaginationParams(c)
	alerts, total, err := h.payouts.OpenAlerts(params)
	if err != nil {
		utils.InternalErrorResponse(c, "")
		return
	}

	result := utils.CreatePaginationResult(alerts, total, params)
	utils.PaginatedResponse(c, result)
}

// ResolveReconciliationAlert closes an alert after manual reconciliation.
func (h *AdminHandler) ResolveReconciliationAlert(c *gin.Context) {
	alertID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid alert ID", nil)
		return
	}

	userID, exists := utils.GetUserIDFromContext(c)
	if !exists {
		utils.UnauthorizedResponse(c, "")
		return
	}
	actor, err := uuid.Parse(userID)
	if err != nil {
		utils.BadRequestResponse(c, "Invalid user ID", nil)
		return
	}

	if err := h.payouts.ResolveAlert(alertID, actor); err != nil {
		respondServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"resolved": true})
}
