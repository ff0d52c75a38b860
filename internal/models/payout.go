// internal/models/payout.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// Payout is a withdrawal request against accumulated seller net. The sum of a
// seller's non-failed payouts never exceeds the sum of seller_net across that
// seller's succeeded (and, for escrow sales, released) transactions.
type Payout struct {
	BaseModel
	SellerID         uuid.UUID    `json:"seller_id" gorm:"type:uuid;not null;index"`
	Amount           int64        `json:"amount" gorm:"not null"`
	Currency         string       `json:"currency" gorm:"size:3;default:'usd'"`
	Status           PayoutStatus `json:"status" gorm:"type:varchar(20);default:'pending';index"`
	ExternalPayoutID string       `json:"external_payout_id" gorm:"size:255;index"`
	FailureReason    string       `json:"failure_reason,omitempty" gorm:"type:text"`
	CompletedAt      *time.Time   `json:"completed_at"`

	Seller User `json:"seller,omitempty" gorm:"foreignKey:SellerID"`
}

// Subscription mirrors provider-side recurring billing state. Rows are
// upserted idempotently from webhook deliveries keyed on the provider's
// subscription id.
type Subscription struct {
	BaseModel
	UserID                 uuid.UUID          `json:"user_id" gorm:"type:uuid;not null;index"`
	ExternalSubscriptionID string             `json:"external_subscription_id" gorm:"size:255;uniqueIndex;not null"`
	PriceRef               string             `json:"price_ref" gorm:"size:255"`
	Status                 SubscriptionStatus `json:"status" gorm:"type:varchar(20);default:'active';index"`
	CurrentPeriodEnd       *time.Time         `json:"current_period_end"`
	CanceledAt             *time.Time         `json:"canceled_at"`

	User User `json:"user,omitempty" gorm:"foreignKey:UserID"`
}
