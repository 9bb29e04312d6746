package repository

import (
	"document-billing-backend/internal/domain"
	"document-billing-backend/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type TemplateRepository struct {
	db *gorm.DB
}

func NewTemplateRepository(db *gorm.DB) *TemplateRepository {
	return &TemplateRepository{db: db}
}

func (r *TemplateRepository) DB() *gorm.DB {
	return r.db
}

// CreateContractTemplate persists the template with its sections and merge
// fields in one transaction.
func (r *TemplateRepository) CreateContractTemplate(t *models.ContractTemplate) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Sections", "MergeFields").Create(t).Error; err != nil {
			return err
		}
		return createTemplateChildren(tx, t.ID, models.TemplateKindContract, t.Sections, t.MergeFields)
	})
}

func (r *TemplateRepository) CreateInvoiceTemplate(t *models.InvoiceTemplate) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Sections", "MergeFields").Create(t).Error; err != nil {
			return err
		}
		return createTemplateChildren(tx, t.ID, models.TemplateKindInvoice, t.Sections, t.MergeFields)
	})
}

func createTemplateChildren(tx *gorm.DB, templateID uuid.UUID, kind string, sections []models.TemplateSection, fields []models.MergeField) error {
	for i := range sections {
		sections[i].TemplateID = templateID
		sections[i].TemplateKind = kind
		if sections[i].ID == uuid.Nil {
			sections[i].ID = uuid.New()
		}
	}
	for i := range fields {
		fields[i].TemplateID = templateID
		fields[i].TemplateKind = kind
		if fields[i].ID == uuid.Nil {
			fields[i].ID = uuid.New()
		}
	}
	if len(sections) > 0 {
		if err := tx.Create(&sections).Error; err != nil {
			return err
		}
	}
	if len(fields) > 0 {
		if err := tx.Create(&fields).Error; err != nil {
			return err
		}
	}
	return nil
}

// GetContractTemplate loads a company's template with ordered sections and
// declared merge fields, retired or not.
func (r *TemplateRepository) GetContractTemplate(companyID, id uuid.UUID) (*models.ContractTemplate, error) {
	var t models.ContractTemplate
	err := r.db.First(&t, "id = ? AND company_id = ?", id, companyID).Error
	if err != nil {
		return nil, err
	}
	if err := r.loadChildren(t.ID, models.TemplateKindContract, &t.Sections, &t.MergeFields); err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *TemplateRepository) GetInvoiceTemplate(companyID, id uuid.UUID) (*models.InvoiceTemplate, error) {
	var t models.InvoiceTemplate
	err := r.db.First(&t, "id = ? AND company_id = ?", id, companyID).Error
	if err != nil {
		return nil, err
	}
	if err := r.loadChildren(t.ID, models.TemplateKindInvoice, &t.Sections, &t.MergeFields); err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *TemplateRepository) loadChildren(templateID uuid.UUID, kind string, sections *[]models.TemplateSection, fields *[]models.MergeField) error {
	if err := r.db.
		Where("template_id = ? AND template_kind = ?", templateID, kind).
		Order("order_index ASC").
		Find(sections).Error; err != nil {
		return err
	}
	return r.db.
		Where("template_id = ? AND template_kind = ?", templateID, kind).
		Order("key ASC").
		Find(fields).Error
}

// ListAvailableContractTemplates is the "available for new documents" view:
// active templates only. Retired ones stay readable by id for provenance.
func (r *TemplateRepository) ListAvailableContractTemplates(companyID uuid.UUID) ([]models.ContractTemplate, error) {
	var out []models.ContractTemplate
	err := r.db.
		Where("company_id = ? AND status = ?", companyID, domain.TemplateActive).
		Order("name ASC").
		Find(&out).Error
	return out, err
}

func (r *TemplateRepository) ListAvailableInvoiceTemplates(companyID uuid.UUID) ([]models.InvoiceTemplate, error) {
	var out []models.InvoiceTemplate
	err := r.db.
		Where("company_id = ? AND status = ?", companyID, domain.TemplateActive).
		Order("name ASC").
		Find(&out).Error
	return out, err
}

// RetireContractTemplate flips the template out of the available view.
func (r *TemplateRepository) RetireContractTemplate(companyID, id uuid.UUID) error {
	res := r.db.Model(&models.ContractTemplate{}).
		Where("id = ? AND company_id = ?", id, companyID).
		Update("status", domain.TemplateRetired)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *TemplateRepository) RetireInvoiceTemplate(companyID, id uuid.UUID) error {
	res := r.db.Model(&models.InvoiceTemplate{}).
		Where("id = ? AND company_id = ?", id, companyID).
		Update("status", domain.TemplateRetired)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ReplaceContractSections swaps the template's sections and merge fields and
// bumps its version. Documents already rendered keep their snapshot.
func (r *TemplateRepository) ReplaceContractSections(companyID, id uuid.UUID, sections []models.TemplateSection, fields []models.MergeField) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.ContractTemplate{}).
			Where("id = ? AND company_id = ? AND status = ?", id, companyID, domain.TemplateActive).
			Update("version", gorm.Expr("version + 1"))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return replaceChildren(tx, id, models.TemplateKindContract, sections, fields)
	})
}

func (r *TemplateRepository) ReplaceInvoiceSections(companyID, id uuid.UUID, sections []models.TemplateSection, fields []models.MergeField) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.InvoiceTemplate{}).
			Where("id = ? AND company_id = ? AND status = ?", id, companyID, domain.TemplateActive).
			Update("version", gorm.Expr("version + 1"))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return replaceChildren(tx, id, models.TemplateKindInvoice, sections, fields)
	})
}

func replaceChildren(tx *gorm.DB, templateID uuid.UUID, kind string, sections []models.TemplateSection, fields []models.MergeField) error {
	if err := tx.Where("template_id = ? AND template_kind = ?", templateID, kind).
		Delete(&models.TemplateSection{}).Error; err != nil {
		return err
	}
	if err := tx.Where("template_id = ? AND template_kind = ?", templateID, kind).
		Delete(&models.MergeField{}).Error; err != nil {
		return err
	}
	return createTemplateChildren(tx, templateID, kind, sections, fields)
}
