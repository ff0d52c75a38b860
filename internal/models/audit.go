// internal/models/audit.go
package models

import (
	"time"

	"github.com/google/uuid"
)

type AuditLog struct {
	BaseModel
	UserID       *uuid.UUID `json:"user_id" gorm:"type:uuid;index"`
	Action       string     `json:"action" gorm:"size:100;not null;index"`
	ResourceType string     `json:"resource_type" gorm:"size:50;not null;index"`
	ResourceID   *uuid.UUID `json:"resource_id" gorm:"type:uuid;index"`
	NewValues    JSONB      `json:"new_values" gorm:"type:jsonb"`
	IPAddress    string     `json:"ip_address" gorm:"size:45"`
	UserAgent    string     `json:"user_agent" gorm:"type:text"`

	// Relationships
	User *User `json:"user,omitempty" gorm:"foreignKey:UserID"`
}

// ReconciliationAlert records a state where an external side effect committed
// but the matching local write failed (e.g. a payout accepted by the provider
// with no local row). Alerts are surfaced to operators and never auto-retried:
// retrying the external call risks double payment.
type ReconciliationAlert struct {
	BaseModel
	ResourceType string      `json:"resource_type" gorm:"size:50;not null;index"`
	ExternalRef  string      `json:"external_ref" gorm:"size:255;not null;index"`
	Message      string      `json:"message" gorm:"type:text;not null"`
	Details      JSONB       `json:"details" gorm:"type:jsonb"`
	Status       AlertStatus `json:"status" gorm:"type:varchar(20);default:'open';index"`
	ResolvedBy   *uuid.UUID  `json:"resolved_by" gorm:"type:uuid"`
	ResolvedAt   *time.Time  `json:"resolved_at"`
}
