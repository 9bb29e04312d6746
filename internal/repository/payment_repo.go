package repository

import (
	"errors"
	"time"

	"document-billing-backend/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PaymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// WithTx returns a repository bound to the given transaction.
func (r *PaymentRepository) WithTx(tx *gorm.DB) *PaymentRepository {
	return &PaymentRepository{db: tx}
}

func (r *PaymentRepository) Create(p *models.Payment) error {
	return r.db.Create(p).Error
}

func (r *PaymentRepository) Save(p *models.Payment) error {
	return r.db.Save(p).Error
}

// GetByIntentID looks a payment up by its reconciliation identity. Returns
// (nil, nil) when no payment with that key exists yet.
func (r *PaymentRepository) GetByIntentID(intentID string) (*models.Payment, error) {
	var p models.Payment
	err := r.db.First(&p, "provider_intent_id = ?", intentID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PaymentRepository) ListByInvoice(invoiceID uuid.UUID) ([]models.Payment, error) {
	var out []models.Payment
	err := r.db.Where("invoice_id = ?", invoiceID).Order("created_at ASC").Find(&out).Error
	return out, err
}

// InsertReceipt records a provider event as durably seen. The unique
// (provider, provider_event_id) index makes redeliveries no-ops; the return
// value reports whether this delivery was the first.
func (r *PaymentRepository) InsertReceipt(rec *models.WebhookReceipt) (bool, error) {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	res := r.db.Clauses(clause.OnConflict{DoNothing: true}).Create(rec)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// MarkReceiptProcessed stamps the outcome of reconciling a seen event. A
// logical failure is recorded here, never retried by the provider.
func (r *PaymentRepository) MarkReceiptProcessed(id uuid.UUID, processingErr string) error {
	now := time.Now().UTC()
	return r.db.Model(&models.WebhookReceipt{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"processed_at":     now,
			"processing_error": processingErr,
		}).Error
}

func (r *PaymentRepository) GetReceipt(provider, providerEventID string) (*models.WebhookReceipt, error) {
	var rec models.WebhookReceipt
	err := r.db.First(&rec, "provider = ? AND provider_event_id = ?", provider, providerEventID).Error
	if err != nil {
		return nil, err
	}
	return &rec, nil
}
