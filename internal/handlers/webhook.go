// internal/handlers/webhook.go
package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/hugoapp/hugo-backend/internal/services"
	"github.com/hugoapp/hugo-backend/internal/utils"
)

// Stripe caps event payloads well below this; anything larger is garbage.
const maxWebhookBody = 1 << 20

type WebhookHandler struct {
	webhooks *services.WebhookService
}

func NewWebhookHandler(webhooks *services.WebhookService) *WebhookHandler {
	return &WebhookHandler{webhooks: webhooks}
}

// HandleStripeWebhook receives provider event deliveries. Only a signature
// failure produces a non-200: every verified event is acknowledged so the
// provider stops retrying, even when applying it failed (that failure is
// logged and surfaced to operators instead).
func (h *WebhookHandler) HandleStripeWebhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		utils.BadRequestResponse(c, "Failed to read request body", nil)
		return
	}

	signature := c.GetHeader("Stripe-Signature")

	if err := h.webhooks.Process(c.Request.Context(), payload, signature); err != nil {
		if errors.Is(err, services.ErrInvalidSignature) {
			utils.BadRequestResponse(c, "Invalid webhook signature", nil)
			return
		}
		utils.InternalErrorResponse(c, "")
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}
