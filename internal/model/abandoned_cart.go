package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// AbandonedCartStatus is the lifecycle state of an abandoned-cart record.
type AbandonedCartStatus string

const (
	AbandonedCartActive    AbandonedCartStatus = "ACTIVE"
	AbandonedCartAbandoned AbandonedCartStatus = "ABANDONED"
	AbandonedCartConverted AbandonedCartStatus = "CONVERTED"
	AbandonedCartArchived  AbandonedCartStatus = "ARCHIVED"
)

// EmailLogEntry records one reminder e-mail sent by the reminder jobs.
type EmailLogEntry struct {
	Kind   string    `json:"kind"`
	SentAt time.Time `json:"sentAt"`
}

// AbandonedCart is the persisted snapshot of a live cart used by reminder campaigns.
type AbandonedCart struct {
	SchemaVersion  int                 `json:"schemaVersion" db:"schema_version"`
	ID             string              `json:"id" db:"id"`
	OwnerKey       string              `json:"ownerKey" db:"owner_key" validate:"required"`
	Items          []CartItem          `json:"items" db:"items" validate:"dive"`
	TotalAmount    decimal.Decimal     `json:"totalAmount" db:"total_amount"`
	CustomerEmail  string              `json:"customerEmail,omitempty" db:"customer_email" validate:"omitempty,email"`
	CustomerName   string              `json:"customerName,omitempty" db:"customer_name"`
	Status         AbandonedCartStatus `json:"status" db:"status" validate:"oneof=ACTIVE ABANDONED CONVERTED ARCHIVED"`
	LastActivityAt time.Time           `json:"lastActivityAt" db:"last_activity_at"`
	OrderID        *string             `json:"orderId,omitempty" db:"order_id"`
	ConvertedAt    *time.Time          `json:"convertedAt,omitempty" db:"converted_at"`
	EmailHistory   []EmailLogEntry     `json:"emailHistory" db:"email_history"`
	CreatedAt      time.Time           `json:"createdAt" db:"created_at"`
	UpdatedAt      time.Time           `json:"updatedAt" db:"updated_at"`
}
