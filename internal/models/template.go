package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"document-billing-backend/internal/domain"
)

const (
	TemplateKindContract = "contract"
	TemplateKindInvoice  = "invoice"
)

// ContractTemplate is a reusable contract blueprint owned by a company.
// Sections and merge fields are attached via TemplateKindContract.
type ContractTemplate struct {
	ID        uuid.UUID             `gorm:"type:uuid;primaryKey" json:"id"`
	CompanyID uuid.UUID             `gorm:"type:uuid;index;not null" json:"company_id"`
	Name      string                `gorm:"not null" json:"name"`
	Status    domain.TemplateStatus `gorm:"index;default:'active'" json:"status"`
	Version   int                   `gorm:"default:1" json:"version"`

	DefaultCurrency string `gorm:"default:'USD'" json:"default_currency"`
	DefaultTTLDays  int    `gorm:"default:30" json:"default_ttl_days"`

	Sections    []TemplateSection `gorm:"foreignKey:TemplateID;references:ID" json:"sections,omitempty"`
	MergeFields []MergeField      `gorm:"foreignKey:TemplateID;references:ID" json:"merge_fields,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// InvoiceTemplate is a reusable invoice blueprint: sections for the rendered
// document plus default pricing.
type InvoiceTemplate struct {
	ID        uuid.UUID             `gorm:"type:uuid;primaryKey" json:"id"`
	CompanyID uuid.UUID             `gorm:"type:uuid;index;not null" json:"company_id"`
	Name      string                `gorm:"not null" json:"name"`
	Status    domain.TemplateStatus `gorm:"index;default:'active'" json:"status"`
	Version   int                   `gorm:"default:1" json:"version"`

	DefaultCurrency     string  `gorm:"default:'USD'" json:"default_currency"`
	DefaultTaxRate      float64 `gorm:"default:0" json:"default_tax_rate"`
	DefaultDiscountRate float64 `gorm:"default:0" json:"default_discount_rate"`
	DefaultDueDays      int     `gorm:"default:30" json:"default_due_days"`

	Sections    []TemplateSection `gorm:"foreignKey:TemplateID;references:ID" json:"sections,omitempty"`
	MergeFields []MergeField      `gorm:"foreignKey:TemplateID;references:ID" json:"merge_fields,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TemplateSection is one ordered section of a template. Content is the JSON
// form of domain.SectionContent; Order is unique within one template.
type TemplateSection struct {
	ID           uuid.UUID          `gorm:"type:uuid;primaryKey" json:"id"`
	TemplateID   uuid.UUID          `gorm:"type:uuid;index:idx_section_owner;not null" json:"template_id"`
	TemplateKind string             `gorm:"index:idx_section_owner;not null" json:"template_kind"`
	Type         domain.SectionType `gorm:"not null" json:"type"`
	Order        int                `gorm:"column:order_index;not null" json:"order"`
	Content      datatypes.JSON     `json:"content"`
}

// DecodeContent unmarshals the opaque content into its tagged variant.
func (s *TemplateSection) DecodeContent() (domain.SectionContent, error) {
	var c domain.SectionContent
	if err := json.Unmarshal(s.Content, &c); err != nil {
		return c, &domain.ValidationError{Field: "content", Reason: err.Error()}
	}
	return c, nil
}

// MergeField declares one substitution slot of a template. Key is unique
// within the owning template.
type MergeField struct {
	ID           uuid.UUID                 `gorm:"type:uuid;primaryKey" json:"id"`
	TemplateID   uuid.UUID                 `gorm:"type:uuid;index:idx_field_owner;not null" json:"template_id"`
	TemplateKind string                    `gorm:"index:idx_field_owner;not null" json:"template_kind"`
	Key          string                    `gorm:"not null" json:"key"`
	Label        string                    `json:"label"`
	Kind         domain.MergeFieldKind     `gorm:"not null" json:"kind"`
	Category     domain.MergeFieldCategory `gorm:"not null" json:"category"`
	Optional     bool                      `gorm:"default:false" json:"optional"`
}
