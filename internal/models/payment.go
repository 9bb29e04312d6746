package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"document-billing-backend/internal/domain"
)

// Payment is one payment attempt or settlement against an invoice, owned by
// the company and weakly referencing the invoice. ProviderIntentID doubles as
// the reconciliation idempotency key.
type Payment struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	CompanyID uuid.UUID  `gorm:"type:uuid;index;not null" json:"company_id"`
	InvoiceID *uuid.UUID `gorm:"type:uuid;index" json:"invoice_id,omitempty"`

	Amount       float64              `gorm:"not null" json:"amount"`
	Currency     string               `gorm:"not null" json:"currency"`
	Status       domain.PaymentStatus `gorm:"index;default:'pending'" json:"status"`
	RefundAmount float64              `gorm:"default:0" json:"refund_amount"`

	ProviderIntentID string `gorm:"uniqueIndex" json:"provider_intent_id"`
	ProviderChargeID string `json:"provider_charge_id,omitempty"`

	AppliedAt     *time.Time `json:"applied_at,omitempty"`
	FailureReason string     `json:"failure_reason,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// WebhookReceipt is the durable "seen" record for an inbound provider event.
// It is written before the event is acknowledged, even when reconciliation
// later fails logically, so redelivery storms cannot build up.
type WebhookReceipt struct {
	ID              uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Provider        string         `gorm:"index:ux_webhook_provider_event,unique;not null" json:"provider"`
	ProviderEventID string         `gorm:"index:ux_webhook_provider_event,unique;not null" json:"provider_event_id"`
	EventType       string         `gorm:"index" json:"event_type"`
	Payload         datatypes.JSON `json:"payload"`
	ProcessedAt     *time.Time     `json:"processed_at,omitempty"`
	ProcessingError string         `json:"processing_error,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
}
