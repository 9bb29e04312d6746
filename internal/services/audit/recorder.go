package audit

import (
	"encoding/json"
	"time"

	"document-billing-backend/internal/domain"
	"document-billing-backend/internal/models"
	"document-billing-backend/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Recorder appends audit events for both document kinds. Every state
// transition, successful or rejected, goes through here before the owning
// operation is considered durable.
type Recorder struct {
	events *repository.EventRepository
}

func NewRecorder(events *repository.EventRepository) *Recorder {
	return &Recorder{events: events}
}

// WithTx returns a recorder that appends through the given transaction.
func (r *Recorder) WithTx(tx *gorm.DB) *Recorder {
	return &Recorder{events: r.events.WithTx(tx)}
}

func (r *Recorder) Contract(contractID uuid.UUID, eventType string, actor domain.Actor, data map[string]interface{}) error {
	payload, _ := json.Marshal(data)
	return r.events.AppendContractEvent(&models.ContractEvent{
		ContractID: contractID,
		EventType:  eventType,
		Data:       payload,
		ActorType:  actor.Type,
		ActorID:    actor.ID,
		IP:         actor.IP,
		UserAgent:  actor.UserAgent,
		CreatedAt:  time.Now().UTC(),
	})
}

func (r *Recorder) Invoice(invoiceID uuid.UUID, eventType string, actor domain.Actor, data map[string]interface{}) error {
	payload, _ := json.Marshal(data)
	return r.events.AppendInvoiceEvent(&models.InvoiceEvent{
		InvoiceID: invoiceID,
		EventType: eventType,
		Data:      payload,
		ActorType: actor.Type,
		ActorID:   actor.ID,
		IP:        actor.IP,
		UserAgent: actor.UserAgent,
		CreatedAt: time.Now().UTC(),
	})
}
