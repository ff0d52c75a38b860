// internal/models/affiliate.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// Campaign is an affiliate's offer on one item. Rates are basis points so
// commission math stays in integers (1000 bps = 10%).
type Campaign struct {
	BaseModel
	AffiliateID      uuid.UUID      `json:"affiliate_id" gorm:"type:uuid;not null;index"`
	ItemID           uuid.UUID      `json:"item_id" gorm:"type:uuid;not null;index"`
	CommissionType   CommissionType `json:"commission_type" gorm:"type:varchar(20);not null"`
	RateBps          int64          `json:"rate_bps" gorm:"default:0"`
	FixedAmount      int64          `json:"fixed_amount" gorm:"default:0"`
	IsActive         bool           `json:"is_active" gorm:"default:true;index"`
	MaxConversions   *int64         `json:"max_conversions"`
	TotalConversions int64          `json:"total_conversions" gorm:"default:0"`

	// Relationships
	Affiliate User    `json:"affiliate,omitempty" gorm:"foreignKey:AffiliateID"`
	Item      Item    `json:"item,omitempty" gorm:"foreignKey:ItemID"`
	Clicks    []Click `json:"clicks,omitempty" gorm:"foreignKey:CampaignID"`
}

// LimitReached reports whether the campaign has used up its conversion quota.
func (c *Campaign) LimitReached() bool {
	return c.MaxConversions != nil && c.TotalConversions >= *c.MaxConversions
}

// Click is a single affiliate referral event. Converted is a one-way latch:
// a click converts at most once, enforced by the unique click_id on Conversion.
type Click struct {
	BaseModel
	CampaignID   uuid.UUID  `json:"campaign_id" gorm:"type:uuid;not null;index"`
	AffiliateID  uuid.UUID  `json:"affiliate_id" gorm:"type:uuid;not null;index"`
	VisitorKey   string     `json:"visitor_key" gorm:"size:128;index"`
	LandingPath  string     `json:"landing_path" gorm:"size:512"`
	Referrer     string     `json:"referrer" gorm:"size:1024"`
	ClientIP     string     `json:"client_ip" gorm:"size:64"`
	UserAgent    string     `json:"user_agent" gorm:"size:1024"`
	Converted    bool       `json:"converted" gorm:"default:false;index"`
	ConversionID *uuid.UUID `json:"conversion_id" gorm:"type:uuid"`
	ConvertedAt  *time.Time `json:"converted_at"`

	Campaign Campaign `json:"campaign,omitempty" gorm:"foreignKey:CampaignID"`
}

// Conversion is the commission record created exactly once per click and tied
// to exactly one succeeded transaction. The unique index on ClickID is the
// authoritative idempotency backstop for retried conversion triggers.
type Conversion struct {
	BaseModel
	ClickID           uuid.UUID              `json:"click_id" gorm:"type:uuid;not null;uniqueIndex"`
	CampaignID        uuid.UUID              `json:"campaign_id" gorm:"type:uuid;not null;index"`
	TransactionID     uuid.UUID              `json:"transaction_id" gorm:"type:uuid;not null;index"`
	CommissionAmount  int64                  `json:"commission_amount" gorm:"not null"`
	CommissionRateBps int64                  `json:"commission_rate_bps" gorm:"not null"` // snapshot at calculation time
	PayoutStatus      CommissionPayoutStatus `json:"payout_status" gorm:"type:varchar(20);default:'pending';index"`

	Campaign    Campaign    `json:"campaign,omitempty" gorm:"foreignKey:CampaignID"`
	Transaction Transaction `json:"transaction,omitempty" gorm:"foreignKey:TransactionID"`
}
