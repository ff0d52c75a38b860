// internal/models/user.go
package models

import (
	"time"

	"golang.org/x/crypto/bcrypt"
)

type User struct {
	BaseModel
	Username        string         `json:"username" gorm:"uniqueIndex;size:50;not null"`
	Email           string         `json:"email" gorm:"uniqueIndex;size:255;not null"`
	PasswordHash    string         `json:"-" gorm:"size:255;not null"`
	EarnerCategory  EarnerCategory `json:"earner_category" gorm:"type:varchar(20);default:'vendor'"`
	Status          UserStatus     `json:"status" gorm:"type:varchar(20);default:'active'"`
	ProfileData     JSONB          `json:"profile_data" gorm:"type:jsonb"`
	StripeAccountID string         `json:"-" gorm:"size:255"`
	EmailVerifiedAt *time.Time     `json:"email_verified_at"`
	LastLoginAt     *time.Time     `json:"last_login_at"`

	// Relationships
	Items     []Item        `json:"items,omitempty" gorm:"foreignKey:SellerID"`
	Purchases []Transaction `json:"purchases,omitempty" gorm:"foreignKey:BuyerID"`
	Sales     []Transaction `json:"sales,omitempty" gorm:"foreignKey:SellerID"`
	Payouts   []Payout      `json:"payouts,omitempty" gorm:"foreignKey:SellerID"`
}

// HasPayoutDestination reports whether the user can receive external payouts.
func (u *User) HasPayoutDestination() bool {
	return u.StripeAccountID != ""
}

func (u *User) SetPassword(password string) error {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hashedPassword)
	return nil
}

func (u *User) CheckPassword(password string) error {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password))
}
