// internal/models/common.go
package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Base model with common fields
type BaseModel struct {
	ID        uuid.UUID      `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

// JSONB type for PostgreSQL
type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}

	return json.Unmarshal(bytes, j)
}

// Enums
type UserStatus string

const (
	UserStatusActive    UserStatus = "active"
	UserStatusSuspended UserStatus = "suspended"
	UserStatusBanned    UserStatus = "banned"
)

// EarnerCategory determines the platform fee rate applied to a seller's sales.
type EarnerCategory string

const (
	EarnerCategoryCreator    EarnerCategory = "creator"
	EarnerCategoryVendor     EarnerCategory = "vendor"
	EarnerCategoryDeveloper  EarnerCategory = "developer"
	EarnerCategoryAdvertiser EarnerCategory = "advertiser"
	EarnerCategoryAffiliate  EarnerCategory = "affiliate"
	EarnerCategoryInfluencer EarnerCategory = "influencer"
)

type ItemStatus string

const (
	ItemStatusDraft     ItemStatus = "draft"
	ItemStatusActive    ItemStatus = "active"
	ItemStatusSoldOut   ItemStatus = "sold_out"
	ItemStatusSuspended ItemStatus = "suspended"
)

type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusSucceeded TransactionStatus = "succeeded"
	TransactionStatusFailed    TransactionStatus = "failed"
)

type EscrowStatus string

const (
	EscrowStatusHeld     EscrowStatus = "held"
	EscrowStatusReleased EscrowStatus = "released"
	EscrowStatusDisputed EscrowStatus = "disputed"
)

type CommissionType string

const (
	CommissionTypePercentage CommissionType = "percentage"
	CommissionTypeFixed      CommissionType = "fixed"
)

type CommissionPayoutStatus string

const (
	CommissionPayoutStatusPending CommissionPayoutStatus = "pending"
	CommissionPayoutStatusPaid    CommissionPayoutStatus = "paid"
)

type PayoutStatus string

const (
	PayoutStatusPending   PayoutStatus = "pending"
	PayoutStatusCompleted PayoutStatus = "completed"
	PayoutStatusFailed    PayoutStatus = "failed"
)

type SubscriptionStatus string

const (
	SubscriptionStatusActive   SubscriptionStatus = "active"
	SubscriptionStatusPastDue  SubscriptionStatus = "past_due"
	SubscriptionStatusCanceled SubscriptionStatus = "canceled"
)

type AlertStatus string

const (
	AlertStatusOpen     AlertStatus = "open"
	AlertStatusResolved AlertStatus = "resolved"
)
