package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"document-billing-backend/internal/domain"
)

// Invoice carries both the rendered document snapshot and the derived ledger
// fields. Monetary columns are derived exclusively by the ledger service;
// handlers never write them directly.
type Invoice struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CompanyID uuid.UUID `gorm:"type:uuid;index;not null" json:"company_id"`
	Number    string    `gorm:"uniqueIndex" json:"number"`

	TemplateID *uuid.UUID `gorm:"type:uuid;index" json:"template_id,omitempty"`
	ContactID  *uuid.UUID `gorm:"type:uuid;index" json:"contact_id,omitempty"`
	ProjectID  *uuid.UUID `gorm:"type:uuid;index" json:"project_id,omitempty"`

	Status          domain.InvoiceStatus `gorm:"index;default:'draft'" json:"status"`
	Currency        string               `gorm:"default:'USD'" json:"currency"`
	TemplateVersion int                  `json:"template_version"`

	LineItems []InvoiceLineItem `gorm:"foreignKey:InvoiceID" json:"line_items,omitempty"`

	// Derived ledger fields, discount applied before tax.
	TaxRate        float64 `gorm:"default:0" json:"tax_rate"`
	DiscountRate   float64 `gorm:"default:0" json:"discount_rate"`
	Subtotal       float64 `gorm:"default:0" json:"subtotal"`
	DiscountAmount float64 `gorm:"default:0" json:"discount_amount"`
	TaxAmount      float64 `gorm:"default:0" json:"tax_amount"`
	Total          float64 `gorm:"default:0" json:"total"`
	AmountPaid     float64 `gorm:"default:0" json:"amount_paid"`
	AmountDue      float64 `gorm:"default:0" json:"amount_due"`
	// Overpaid is flagged, never silently clipped, when AmountPaid > Total.
	Overpaid bool `gorm:"default:false" json:"overpaid"`

	DueDate *time.Time `json:"due_date,omitempty"`

	RenderedSections datatypes.JSON `json:"rendered_sections,omitempty"`
	MergeFieldValues datatypes.JSON `json:"merge_field_values,omitempty"`

	Token     *string    `gorm:"uniqueIndex" json:"-"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	SentAt    *time.Time `json:"sent_at,omitempty"`
	ViewedAt  *time.Time `json:"viewed_at,omitempty"`

	Version int `gorm:"default:1" json:"version"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// InvoiceLineItem is one billable line. Amount is always quantity*unit_price
// rounded to currency precision; Order is unique within the invoice.
type InvoiceLineItem struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	InvoiceID   uuid.UUID `gorm:"type:uuid;index;not null" json:"invoice_id"`
	Description string    `json:"description"`
	Quantity    float64   `gorm:"not null" json:"quantity"`
	UnitPrice   float64   `gorm:"not null" json:"unit_price"`
	Amount      float64   `gorm:"not null" json:"amount"`
	Order       int       `gorm:"column:order_index;not null" json:"order"`
}
