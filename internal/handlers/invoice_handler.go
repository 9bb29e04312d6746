package handler

import (
	"net/http"
	"time"

	"document-billing-backend/internal/repository"
	"document-billing-backend/internal/services/ledger"
	"document-billing-backend/internal/services/reconciliation"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type InvoiceHandler struct {
	svc    *ledger.Service
	recon  *reconciliation.ReconciliationService
	events *repository.EventRepository
}

func NewInvoiceHandler(svc *ledger.Service, recon *reconciliation.ReconciliationService, events *repository.EventRepository) *InvoiceHandler {
	return &InvoiceHandler{svc: svc, recon: recon, events: events}
}

type lineInput struct {
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	Order       int     `json:"order"`
}

func toLines(in []lineInput) []ledger.LineInput {
	out := make([]ledger.LineInput, 0, len(in))
	for _, l := range in {
		out = append(out, ledger.LineInput{
			Description: l.Description,
			Quantity:    l.Quantity,
			UnitPrice:   l.UnitPrice,
			Order:       l.Order,
		})
	}
	return out
}

func (h *InvoiceHandler) Create(c *gin.Context) {
	company, ok := companyID(c)
	if !ok {
		return
	}
	var payload struct {
		TemplateID   *uuid.UUID  `json:"template_id"`
		ContactID    *uuid.UUID  `json:"contact_id"`
		ProjectID    *uuid.UUID  `json:"project_id"`
		Currency     string      `json:"currency"`
		TaxRate      float64     `json:"tax_rate"`
		DiscountRate float64     `json:"discount_rate"`
		DueDate      *time.Time  `json:"due_date"`
		Lines        []lineInput `json:"line_items"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	inv, err := h.svc.CreateDraft(company, ledger.CreateInput{
		TemplateID:   payload.TemplateID,
		ContactID:    payload.ContactID,
		ProjectID:    payload.ProjectID,
		Currency:     payload.Currency,
		TaxRate:      payload.TaxRate,
		DiscountRate: payload.DiscountRate,
		DueDate:      payload.DueDate,
		Lines:        toLines(payload.Lines),
	}, userActor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, inv)
}

func (h *InvoiceHandler) Get(c *gin.Context) {
	company, ok := companyID(c)
	if !ok {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid invoice id"})
		return
	}
	inv, err := h.svc.Get(company, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, inv)
}

func (h *InvoiceHandler) List(c *gin.Context) {
	company, ok := companyID(c)
	if !ok {
		return
	}
	invoices, err := h.svc.List(company, c.Query("status"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"invoices": invoices})
}

// UpdateLines replaces the draft's line items; sent invoices are frozen.
func (h *InvoiceHandler) UpdateLines(c *gin.Context) {
	company, ok := companyID(c)
	if !ok {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid invoice id"})
		return
	}
	var payload struct {
		Lines []lineInput `json:"line_items" binding:"required"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	inv, err := h.svc.UpdateDraftLines(company, id, toLines(payload.Lines), userActor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, inv)
}

func (h *InvoiceHandler) Send(c *gin.Context) {
	company, ok := companyID(c)
	if !ok {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid invoice id"})
		return
	}
	var payload struct {
		Recipient string       `json:"recipient" binding:"required"`
		Context   ContextInput `json:"context"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	ctx, err := payload.Context.ToContext()
	if err != nil {
		respondError(c, err)
		return
	}
	inv, err := h.svc.Send(company, id, ctx, payload.Recipient, userActor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, inv)
}

func (h *InvoiceHandler) Cancel(c *gin.Context) {
	company, ok := companyID(c)
	if !ok {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid invoice id"})
		return
	}
	inv, err := h.svc.Cancel(company, id, userActor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, inv)
}

func (h *InvoiceHandler) ListPayments(c *gin.Context) {
	if _, ok := companyID(c); !ok {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid invoice id"})
		return
	}
	payments, err := h.recon.ListPayments(id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payments": payments})
}

func (h *InvoiceHandler) ListEvents(c *gin.Context) {
	if _, ok := companyID(c); !ok {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid invoice id"})
		return
	}
	events, err := h.events.ListInvoiceEvents(id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

func (h *InvoiceHandler) ViewByToken(c *gin.Context) {
	inv, err := h.svc.ViewByToken(c.Param("token"), clientActor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"number":            inv.Number,
		"status":            inv.Status,
		"currency":          inv.Currency,
		"line_items":        inv.LineItems,
		"subtotal":          inv.Subtotal,
		"discount_amount":   inv.DiscountAmount,
		"tax_amount":        inv.TaxAmount,
		"total":             inv.Total,
		"amount_paid":       inv.AmountPaid,
		"amount_due":        inv.AmountDue,
		"due_date":          inv.DueDate,
		"rendered_sections": inv.RenderedSections,
	})
}
