package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"document-billing-backend/internal/domain"
)

// Contract is one instantiated, company-scoped document. RenderedSections and
// MergeFieldValues are the immutable snapshot taken at send time; they are
// re-renderable only while the contract is still draft.
type Contract struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CompanyID uuid.UUID `gorm:"type:uuid;index;not null" json:"company_id"`
	Number    string    `gorm:"uniqueIndex" json:"number"`

	// Weak references, never ownership.
	TemplateID *uuid.UUID `gorm:"type:uuid;index" json:"template_id,omitempty"`
	ContactID  *uuid.UUID `gorm:"type:uuid;index" json:"contact_id,omitempty"`
	ProjectID  *uuid.UUID `gorm:"type:uuid;index" json:"project_id,omitempty"`

	Status          domain.ContractStatus `gorm:"index;default:'draft'" json:"status"`
	Currency        string                `gorm:"default:'USD'" json:"currency"`
	TemplateVersion int                   `json:"template_version"`

	RenderedSections datatypes.JSON `json:"rendered_sections,omitempty"`
	MergeFieldValues datatypes.JSON `json:"merge_field_values,omitempty"`

	// At most one active token per contract; valid only before ExpiresAt.
	Token     *string    `gorm:"uniqueIndex" json:"-"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	SentAt    *time.Time `json:"sent_at,omitempty"`
	ViewedAt  *time.Time `json:"viewed_at,omitempty"`

	// Client side of the signature. A contract is "signed" only once the
	// provider countersignature is present as well.
	SignerName     string     `json:"signer_name,omitempty"`
	SignerEmail    string     `json:"signer_email,omitempty"`
	SignerIP       string     `json:"signer_ip,omitempty"`
	ClientSignedAt *time.Time `json:"client_signed_at,omitempty"`

	ProviderSignedBy string     `json:"provider_signed_by,omitempty"`
	ProviderSignedAt *time.Time `json:"provider_signed_at,omitempty"`

	// Optimistic concurrency counter; every write checks and increments it.
	Version int `gorm:"default:1" json:"version"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ClientSigned reports whether the client half of the signature is captured.
func (c *Contract) ClientSigned() bool { return c.ClientSignedAt != nil }

// RenderedSection is one section of the frozen snapshot stored on a document.
type RenderedSection struct {
	Order   int                   `json:"order"`
	Type    domain.SectionType    `json:"type"`
	Content domain.SectionContent `json:"content"`
}
