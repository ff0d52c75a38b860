// internal/services/errors.go
package services

import "errors"

// Settlement failure modes. Handlers map these onto HTTP statuses; the webhook
// boundary converts all of them except ErrInvalidSignature into an
// acknowledge-and-log.
var (
	// Validation failures: rejected synchronously, nothing persisted.
	ErrInvalidFeeConfiguration = errors.New("fee configuration yields negative seller net")
	ErrSelfPurchase            = errors.New("buyer and seller must differ")
	ErrItemUnavailable         = errors.New("item is not available for purchase")
	ErrInvalidCommission       = errors.New("commission amount out of bounds")
	ErrUnknownCommissionType   = errors.New("unknown commission type")

	// Conflict failures: state-machine precondition violated, original state preserved.
	ErrConflictingState        = errors.New("conflicting terminal state transition")
	ErrAlreadyConverted        = errors.New("click already converted")
	ErrCampaignInactive        = errors.New("campaign is not active")
	ErrConversionLimitReached  = errors.New("campaign conversion limit reached")
	ErrTransactionNotSucceeded = errors.New("transaction has not succeeded")
	ErrInvalidEscrowState      = errors.New("escrow is not in a valid state for this transition")
	ErrInsufficientBalance     = errors.New("insufficient balance for payout")
	ErrNoPayoutDestination     = errors.New("seller has no configured payout destination")

	// Lookup failures.
	ErrNotFound = errors.New("record not found")

	// External / reconciliation failures.
	ErrInvalidSignature       = errors.New("webhook signature verification failed")
	ErrProviderRejected       = errors.New("payment provider rejected the request")
	ErrReconciliationRequired = errors.New("external effect committed but local persistence failed; operator reconciliation required")
)
