// internal/handlers/errors.go
package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/hugoapp/hugo-backend/internal/services"
	"github.com/hugoapp/hugo-backend/internal/utils"
)

// respondServiceError maps settlement error categories onto HTTP statuses:
// validation 400, state conflicts 409, lookups 404, provider trouble 502,
// reconciliation 500. Unknown errors fall through to a generic 500 with the
// detail kept out of the response body.
func respondServiceError(c *gin.Context, err error) {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		utils.ValidationErrorResponse(c, utils.GetValidationErrors(err))
		return
	}

	switch {
	case errors.Is(err, services.ErrNotFound):
		utils.NotFoundResponse(c, "Resource")

	case errors.Is(err, services.ErrSelfPurchase),
		errors.Is(err, services.ErrItemUnavailable),
		errors.Is(err, services.ErrInvalidFeeConfiguration),
		errors.Is(err, services.ErrInvalidCommission),
		errors.Is(err, services.ErrUnknownCommissionType):
		utils.BadRequestResponse(c, err.Error(), nil)

	case errors.Is(err, services.ErrConflictingState),
		errors.Is(err, services.ErrAlreadyConverted),
		errors.Is(err, services.ErrCampaignInactive),
		errors.Is(err, services.ErrConversionLimitReached),
		errors.Is(err, services.ErrTransactionNotSucceeded),
		errors.Is(err, services.ErrInvalidEscrowState),
		errors.Is(err, services.ErrInsufficientBalance),
		errors.Is(err, services.ErrNoPayoutDestination):
		utils.ConflictResponse(c, err.Error())

	case errors.Is(err, services.ErrReconciliationRequired):
		utils.InternalErrorResponse(c, "Payout recorded externally but not locally; support has been alerted")

	case errors.Is(err, services.ErrProviderRejected):
		utils.BadGatewayResponse(c, "")

	default:
		utils.InternalErrorResponse(c, "")
	}
}
