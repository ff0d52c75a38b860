// internal/models/transaction.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// Transaction is one purchase attempt. All amounts are integer minor currency
// units and satisfy SellerNet = GrossAmount - PlatformFee - ProcessorFee.
type Transaction struct {
	BaseModel
	BuyerID          uuid.UUID         `json:"buyer_id" gorm:"type:uuid;not null;index"`
	SellerID         uuid.UUID         `json:"seller_id" gorm:"type:uuid;not null;index"`
	ItemID           uuid.UUID         `json:"item_id" gorm:"type:uuid;not null;index"`
	GrossAmount      int64             `json:"gross_amount" gorm:"not null"`
	Currency         string            `json:"currency" gorm:"size:3;default:'usd'"`
	PlatformFee      int64             `json:"platform_fee" gorm:"not null"`
	ProcessorFee     int64             `json:"processor_fee" gorm:"not null"`
	SellerNet        int64             `json:"seller_net" gorm:"not null"`
	PaymentMethod    string            `json:"payment_method" gorm:"size:50"`
	PaymentReference string            `json:"payment_reference" gorm:"size:255;uniqueIndex"`
	Status           TransactionStatus `json:"status" gorm:"type:varchar(20);default:'pending';index"`
	UsesEscrow       bool              `json:"uses_escrow" gorm:"default:false"`
	FailureReason    string            `json:"failure_reason,omitempty" gorm:"type:text"`
	ProcessedAt      *time.Time        `json:"processed_at"`

	// Relationships
	Buyer  User    `json:"buyer,omitempty" gorm:"foreignKey:BuyerID"`
	Seller User    `json:"seller,omitempty" gorm:"foreignKey:SellerID"`
	Item   Item    `json:"item,omitempty" gorm:"foreignKey:ItemID"`
	Escrow *Escrow `json:"escrow,omitempty" gorm:"foreignKey:TransactionID"`
}

// Escrow is an optional holdback tied 1:1 to an escrow-using transaction.
// HeldAmount equals the parent transaction's SellerNet at creation and is
// immutable thereafter.
type Escrow struct {
	BaseModel
	TransactionID uuid.UUID    `json:"transaction_id" gorm:"type:uuid;not null;uniqueIndex"`
	HeldAmount    int64        `json:"held_amount" gorm:"not null"`
	Status        EscrowStatus `json:"status" gorm:"type:varchar(20);default:'held';index"`
	ReleasedBy    *uuid.UUID   `json:"released_by" gorm:"type:uuid"`
	ReleasedAt    *time.Time   `json:"released_at"`
	DisputeReason string       `json:"dispute_reason,omitempty" gorm:"type:text"`
	EvidenceKey   string       `json:"evidence_key,omitempty" gorm:"size:512"`

	Transaction Transaction `json:"transaction,omitempty" gorm:"foreignKey:TransactionID"`
}
