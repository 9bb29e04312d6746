package repository

import (
	"document-billing-backend/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// EventRepository is strictly append-only: it exposes Create and ordered
// reads, nothing that could update or delete a row.
type EventRepository struct {
	db *gorm.DB
}

func NewEventRepository(db *gorm.DB) *EventRepository {
	return &EventRepository{db: db}
}

// WithTx returns a repository bound to the given transaction.
func (r *EventRepository) WithTx(tx *gorm.DB) *EventRepository {
	return &EventRepository{db: tx}
}

func (r *EventRepository) AppendContractEvent(ev *models.ContractEvent) error {
	return r.db.Create(ev).Error
}

func (r *EventRepository) AppendInvoiceEvent(ev *models.InvoiceEvent) error {
	return r.db.Create(ev).Error
}

// ListContractEvents returns the trail ordered by creation time, ties broken
// by insertion sequence.
func (r *EventRepository) ListContractEvents(contractID uuid.UUID) ([]models.ContractEvent, error) {
	var out []models.ContractEvent
	err := r.db.
		Where("contract_id = ?", contractID).
		Order("created_at ASC, seq ASC").
		Find(&out).Error
	return out, err
}

func (r *EventRepository) ListInvoiceEvents(invoiceID uuid.UUID) ([]models.InvoiceEvent, error) {
	var out []models.InvoiceEvent
	err := r.db.
		Where("invoice_id = ?", invoiceID).
		Order("created_at ASC, seq ASC").
		Find(&out).Error
	return out, err
}
