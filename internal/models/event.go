package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"document-billing-backend/internal/domain"
)

// ContractEvent is an immutable audit record. The auto-incremented Seq breaks
// ordering ties between events created in the same instant; rows are never
// updated or deleted.
type ContractEvent struct {
	Seq        uint64           `gorm:"primaryKey;autoIncrement" json:"seq"`
	ContractID uuid.UUID        `gorm:"type:uuid;index;not null" json:"contract_id"`
	EventType  string           `gorm:"index;not null" json:"event_type"`
	Data       datatypes.JSON   `json:"data,omitempty"`
	ActorType  domain.ActorType `json:"actor_type"`
	ActorID    string           `json:"actor_id"`
	IP         string           `json:"ip,omitempty"`
	UserAgent  string           `json:"user_agent,omitempty"`
	CreatedAt  time.Time        `json:"created_at"`
}

// InvoiceEvent mirrors ContractEvent for the invoice trail.
type InvoiceEvent struct {
	Seq       uint64           `gorm:"primaryKey;autoIncrement" json:"seq"`
	InvoiceID uuid.UUID        `gorm:"type:uuid;index;not null" json:"invoice_id"`
	EventType string           `gorm:"index;not null" json:"event_type"`
	Data      datatypes.JSON   `json:"data,omitempty"`
	ActorType domain.ActorType `json:"actor_type"`
	ActorID   string           `json:"actor_id"`
	IP        string           `json:"ip,omitempty"`
	UserAgent string           `json:"user_agent,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}
