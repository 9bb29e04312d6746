package repository

import (
	"time"

	"document-billing-backend/internal/domain"
	"document-billing-backend/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type InvoiceRepository struct {
	db *gorm.DB
}

func NewInvoiceRepository(db *gorm.DB) *InvoiceRepository {
	return &InvoiceRepository{db: db}
}

func (r *InvoiceRepository) DB() *gorm.DB {
	return r.db
}

// WithTx returns a repository bound to the given transaction.
func (r *InvoiceRepository) WithTx(tx *gorm.DB) *InvoiceRepository {
	return &InvoiceRepository{db: tx}
}

func (r *InvoiceRepository) Create(inv *models.Invoice) error {
	return r.db.Create(inv).Error
}

func (r *InvoiceRepository) GetByID(companyID, id uuid.UUID) (*models.Invoice, error) {
	var inv models.Invoice
	err := r.db.First(&inv, "id = ? AND company_id = ?", id, companyID).Error
	if err != nil {
		return nil, err
	}
	if err := r.loadLines(&inv); err != nil {
		return nil, err
	}
	return &inv, nil
}

// GetUnscoped loads an invoice by id alone; used by webhook reconciliation
// where the provider event carries no company context.
func (r *InvoiceRepository) GetUnscoped(id uuid.UUID) (*models.Invoice, error) {
	var inv models.Invoice
	err := r.db.First(&inv, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	if err := r.loadLines(&inv); err != nil {
		return nil, err
	}
	return &inv, nil
}

func (r *InvoiceRepository) GetByToken(token string) (*models.Invoice, error) {
	var inv models.Invoice
	err := r.db.First(&inv, "token = ?", token).Error
	if err != nil {
		return nil, err
	}
	if err := r.loadLines(&inv); err != nil {
		return nil, err
	}
	return &inv, nil
}

func (r *InvoiceRepository) loadLines(inv *models.Invoice) error {
	return r.db.
		Where("invoice_id = ?", inv.ID).
		Order("order_index ASC").
		Find(&inv.LineItems).Error
}

// SaveWithVersion mirrors ContractRepository.SaveWithVersion: a guarded
// check-and-increment on the invoice's version column.
func (r *InvoiceRepository) SaveWithVersion(inv *models.Invoice) error {
	prev := inv.Version
	inv.Version = prev + 1
	res := r.db.Model(&models.Invoice{}).
		Where("id = ? AND version = ?", inv.ID, prev).
		Select("*").
		Omit("id", "created_at", "LineItems").
		Updates(inv)
	if res.Error != nil {
		inv.Version = prev
		return res.Error
	}
	if res.RowsAffected == 0 {
		inv.Version = prev
		return &domain.ConflictError{Entity: "invoice", ID: inv.ID.String()}
	}
	return nil
}

// ReplaceLineItems swaps the draft invoice's lines in one transaction. The
// ledger service enforces the draft-only rule before calling this.
func (r *InvoiceRepository) ReplaceLineItems(invoiceID uuid.UUID, items []models.InvoiceLineItem) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("invoice_id = ?", invoiceID).
			Delete(&models.InvoiceLineItem{}).Error; err != nil {
			return err
		}
		if len(items) == 0 {
			return nil
		}
		for i := range items {
			items[i].InvoiceID = invoiceID
			if items[i].ID == uuid.Nil {
				items[i].ID = uuid.New()
			}
		}
		return tx.Create(&items).Error
	})
}

func (r *InvoiceRepository) List(companyID uuid.UUID, status string) ([]models.Invoice, error) {
	q := r.db.Where("company_id = ?", companyID).Order("created_at DESC")
	if status != "" && status != "all" {
		q = q.Where("status = ?", status)
	}
	var out []models.Invoice
	err := q.Find(&out).Error
	return out, err
}

// ListOverdueCandidates feeds the advisory sweep: unpaid invoices whose due
// date has passed.
func (r *InvoiceRepository) ListOverdueCandidates(now time.Time, limit int) ([]models.Invoice, error) {
	var out []models.Invoice
	err := r.db.
		Where("status IN ? AND due_date IS NOT NULL AND due_date < ? AND amount_due > 0",
			[]domain.InvoiceStatus{domain.InvoiceSent, domain.InvoiceViewed, domain.InvoicePartiallyPaid}, now).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// NextNumber produces a per-company sequential document number.
func (r *InvoiceRepository) NextNumber(companyID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.Model(&models.Invoice{}).
		Where("company_id = ?", companyID).
		Count(&count).Error
	return count + 1, err
}
