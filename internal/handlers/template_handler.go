package handler

import (
	"encoding/json"
	"net/http"

	"document-billing-backend/internal/domain"
	"document-billing-backend/internal/models"
	"document-billing-backend/internal/repository"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type TemplateHandler struct {
	templates *repository.TemplateRepository
}

func NewTemplateHandler(templates *repository.TemplateRepository) *TemplateHandler {
	return &TemplateHandler{templates: templates}
}

type sectionInput struct {
	Type    string          `json:"type"`
	Order   int             `json:"order"`
	Content json.RawMessage `json:"content"`
}

type mergeFieldInput struct {
	Key      string `json:"key"`
	Label    string `json:"label"`
	Kind     string `json:"kind"`
	Category string `json:"category"`
	Optional bool   `json:"optional"`
}

func buildSections(inputs []sectionInput) ([]models.TemplateSection, error) {
	out := make([]models.TemplateSection, 0, len(inputs))
	seen := make(map[int]bool, len(inputs))
	for _, in := range inputs {
		if seen[in.Order] {
			return nil, &domain.ValidationError{Field: "order", Reason: "duplicate section order"}
		}
		seen[in.Order] = true
		s := models.TemplateSection{
			ID:      uuid.New(),
			Type:    domain.SectionType(in.Type),
			Order:   in.Order,
			Content: []byte(in.Content),
		}
		content, err := s.DecodeContent()
		if err != nil {
			return nil, err
		}
		if content.Type != s.Type {
			return nil, &domain.ValidationError{Field: "type", Reason: "section type does not match content"}
		}
		if err := content.Validate(); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func buildMergeFields(inputs []mergeFieldInput) ([]models.MergeField, error) {
	out := make([]models.MergeField, 0, len(inputs))
	for _, in := range inputs {
		if in.Key == "" {
			return nil, &domain.ValidationError{Field: "key", Reason: "merge field key is required"}
		}
		out = append(out, models.MergeField{
			ID:       uuid.New(),
			Key:      in.Key,
			Label:    in.Label,
			Kind:     domain.MergeFieldKind(in.Kind),
			Category: domain.MergeFieldCategory(in.Category),
			Optional: in.Optional,
		})
	}
	return out, nil
}

func (h *TemplateHandler) CreateContractTemplate(c *gin.Context) {
	company, ok := companyID(c)
	if !ok {
		return
	}
	var payload struct {
		Name        string            `json:"name" binding:"required"`
		Currency    string            `json:"currency"`
		TTLDays     int               `json:"ttl_days"`
		Sections    []sectionInput    `json:"sections"`
		MergeFields []mergeFieldInput `json:"merge_fields"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	sections, err := buildSections(payload.Sections)
	if err != nil {
		respondError(c, err)
		return
	}
	fields, err := buildMergeFields(payload.MergeFields)
	if err != nil {
		respondError(c, err)
		return
	}
	tpl := &models.ContractTemplate{
		ID:              uuid.New(),
		CompanyID:       company,
		Name:            payload.Name,
		Status:          domain.TemplateActive,
		Version:         1,
		DefaultCurrency: payload.Currency,
		DefaultTTLDays:  payload.TTLDays,
		Sections:        sections,
		MergeFields:     fields,
	}
	if tpl.DefaultCurrency == "" {
		tpl.DefaultCurrency = "USD"
	}
	if tpl.DefaultTTLDays <= 0 {
		tpl.DefaultTTLDays = 30
	}
	if err := h.templates.CreateContractTemplate(tpl); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, tpl)
}

func (h *TemplateHandler) CreateInvoiceTemplate(c *gin.Context) {
	company, ok := companyID(c)
	if !ok {
		return
	}
	var payload struct {
		Name         string            `json:"name" binding:"required"`
		Currency     string            `json:"currency"`
		TaxRate      float64           `json:"tax_rate"`
		DiscountRate float64           `json:"discount_rate"`
		DueDays      int               `json:"due_days"`
		Sections     []sectionInput    `json:"sections"`
		MergeFields  []mergeFieldInput `json:"merge_fields"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	sections, err := buildSections(payload.Sections)
	if err != nil {
		respondError(c, err)
		return
	}
	fields, err := buildMergeFields(payload.MergeFields)
	if err != nil {
		respondError(c, err)
		return
	}
	tpl := &models.InvoiceTemplate{
		ID:                  uuid.New(),
		CompanyID:           company,
		Name:                payload.Name,
		Status:              domain.TemplateActive,
		Version:             1,
		DefaultCurrency:     payload.Currency,
		DefaultTaxRate:      payload.TaxRate,
		DefaultDiscountRate: payload.DiscountRate,
		DefaultDueDays:      payload.DueDays,
		Sections:            sections,
		MergeFields:         fields,
	}
	if tpl.DefaultCurrency == "" {
		tpl.DefaultCurrency = "USD"
	}
	if tpl.DefaultDueDays <= 0 {
		tpl.DefaultDueDays = 30
	}
	if err := h.templates.CreateInvoiceTemplate(tpl); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, tpl)
}

func (h *TemplateHandler) ListContractTemplates(c *gin.Context) {
	company, ok := companyID(c)
	if !ok {
		return
	}
	templates, err := h.templates.ListAvailableContractTemplates(company)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"templates": templates})
}

func (h *TemplateHandler) ListInvoiceTemplates(c *gin.Context) {
	company, ok := companyID(c)
	if !ok {
		return
	}
	templates, err := h.templates.ListAvailableInvoiceTemplates(company)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"templates": templates})
}

func (h *TemplateHandler) GetContractTemplate(c *gin.Context) {
	company, ok := companyID(c)
	if !ok {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid template id"})
		return
	}
	tpl, err := h.templates.GetContractTemplate(company, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tpl)
}

func (h *TemplateHandler) UpdateContractTemplate(c *gin.Context) {
	company, ok := companyID(c)
	if !ok {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid template id"})
		return
	}
	var payload struct {
		Sections    []sectionInput    `json:"sections"`
		MergeFields []mergeFieldInput `json:"merge_fields"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	sections, err := buildSections(payload.Sections)
	if err != nil {
		respondError(c, err)
		return
	}
	fields, err := buildMergeFields(payload.MergeFields)
	if err != nil {
		respondError(c, err)
		return
	}
	if err := h.templates.ReplaceContractSections(company, id, sections, fields); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "template updated"})
}

func (h *TemplateHandler) RetireContractTemplate(c *gin.Context) {
	company, ok := companyID(c)
	if !ok {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid template id"})
		return
	}
	if err := h.templates.RetireContractTemplate(company, id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "template retired"})
}

func (h *TemplateHandler) RetireInvoiceTemplate(c *gin.Context) {
	company, ok := companyID(c)
	if !ok {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid template id"})
		return
	}
	if err := h.templates.RetireInvoiceTemplate(company, id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "template retired"})
}
