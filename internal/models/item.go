// internal/models/item.go
package models

import (
	"github.com/google/uuid"
	"github.com/lib/pq"
)

type Item struct {
	BaseModel
	SellerID       uuid.UUID      `json:"seller_id" gorm:"type:uuid;not null;index"`
	Title          string         `json:"title" gorm:"size:255;not null"`
	Description    string         `json:"description" gorm:"type:text"`
	Category       string         `json:"category" gorm:"size:100;index"`
	PriceAmount    int64          `json:"price_amount" gorm:"not null"` // minor currency units
	Currency       string         `json:"currency" gorm:"size:3;default:'usd'"`
	InventoryCount int            `json:"inventory_count" gorm:"default:0"`
	Status         ItemStatus     `json:"status" gorm:"type:varchar(20);default:'draft';index"`
	Tags           pq.StringArray `json:"tags" gorm:"type:text[]"`
	SalesCount     int64          `json:"sales_count" gorm:"default:0"`

	// Relationships
	Seller       User          `json:"seller,omitempty" gorm:"foreignKey:SellerID"`
	Transactions []Transaction `json:"transactions,omitempty" gorm:"foreignKey:ItemID"`
	Campaigns    []Campaign    `json:"campaigns,omitempty" gorm:"foreignKey:ItemID"`
}

// Purchasable reports whether a checkout may be opened against the item.
func (i *Item) Purchasable() bool {
	return i.Status == ItemStatusActive && i.InventoryCount > 0
}
