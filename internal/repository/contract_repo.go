package repository

import (
	"time"

	"document-billing-backend/internal/domain"
	"document-billing-backend/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ContractRepository struct {
	db *gorm.DB
}

func NewContractRepository(db *gorm.DB) *ContractRepository {
	return &ContractRepository{db: db}
}

func (r *ContractRepository) DB() *gorm.DB {
	return r.db
}

// WithTx returns a repository bound to the given transaction.
func (r *ContractRepository) WithTx(tx *gorm.DB) *ContractRepository {
	return &ContractRepository{db: tx}
}

func (r *ContractRepository) Create(c *models.Contract) error {
	return r.db.Create(c).Error
}

func (r *ContractRepository) GetByID(companyID, id uuid.UUID) (*models.Contract, error) {
	var c models.Contract
	err := r.db.First(&c, "id = ? AND company_id = ?", id, companyID).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// GetByToken resolves public token access without company scoping; the token
// itself is the capability.
func (r *ContractRepository) GetByToken(token string) (*models.Contract, error) {
	var c models.Contract
	err := r.db.First(&c, "token = ?", token).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// SaveWithVersion writes the contract back only if nobody else won the race:
// the UPDATE is guarded by the version the caller read, and bumps it. A zero
// row count means a lost race and surfaces as ConflictError.
func (r *ContractRepository) SaveWithVersion(c *models.Contract) error {
	prev := c.Version
	c.Version = prev + 1
	res := r.db.Model(&models.Contract{}).
		Where("id = ? AND version = ?", c.ID, prev).
		Select("*").
		Omit("id", "created_at").
		Updates(c)
	if res.Error != nil {
		c.Version = prev
		return res.Error
	}
	if res.RowsAffected == 0 {
		c.Version = prev
		return &domain.ConflictError{Entity: "contract", ID: c.ID.String()}
	}
	return nil
}

func (r *ContractRepository) List(companyID uuid.UUID, status string) ([]models.Contract, error) {
	q := r.db.Where("company_id = ?", companyID).Order("created_at DESC")
	if status != "" && status != "all" {
		q = q.Where("status = ?", status)
	}
	var out []models.Contract
	err := q.Find(&out).Error
	return out, err
}

// ListExpiryCandidates feeds the advisory sweep: sent/viewed contracts whose
// token lifetime has lapsed.
func (r *ContractRepository) ListExpiryCandidates(now time.Time, limit int) ([]models.Contract, error) {
	var out []models.Contract
	err := r.db.
		Where("status IN ? AND expires_at IS NOT NULL AND expires_at < ?",
			[]domain.ContractStatus{domain.ContractSent, domain.ContractViewed}, now).
		Limit(limit).
		Find(&out).Error
	return out, err
}
