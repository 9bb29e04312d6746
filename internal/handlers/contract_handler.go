package handler

import (
	"net/http"

	"document-billing-backend/internal/repository"
	"document-billing-backend/internal/services/lifecycle"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type ContractHandler struct {
	svc    *lifecycle.Service
	events *repository.EventRepository
}

func NewContractHandler(svc *lifecycle.Service, events *repository.EventRepository) *ContractHandler {
	return &ContractHandler{svc: svc, events: events}
}

func (h *ContractHandler) Create(c *gin.Context) {
	company, ok := companyID(c)
	if !ok {
		return
	}
	var payload struct {
		TemplateID *uuid.UUID `json:"template_id"`
		ContactID  *uuid.UUID `json:"contact_id"`
		ProjectID  *uuid.UUID `json:"project_id"`
		Currency   string     `json:"currency"`
		Number     string     `json:"number"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	contract, err := h.svc.CreateDraft(company, lifecycle.CreateInput{
		TemplateID: payload.TemplateID,
		ContactID:  payload.ContactID,
		ProjectID:  payload.ProjectID,
		Currency:   payload.Currency,
		Number:     payload.Number,
	}, userActor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, contract)
}

func (h *ContractHandler) Get(c *gin.Context) {
	company, ok := companyID(c)
	if !ok {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid contract id"})
		return
	}
	contract, err := h.svc.Get(company, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, contract)
}

func (h *ContractHandler) List(c *gin.Context) {
	company, ok := companyID(c)
	if !ok {
		return
	}
	contracts, err := h.svc.List(company, c.Query("status"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"contracts": contracts})
}

func (h *ContractHandler) Render(c *gin.Context) {
	company, ok := companyID(c)
	if !ok {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid contract id"})
		return
	}
	var payload ContextInput
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	ctx, err := payload.ToContext()
	if err != nil {
		respondError(c, err)
		return
	}
	contract, err := h.svc.Render(company, id, ctx, userActor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, contract)
}

func (h *ContractHandler) Send(c *gin.Context) {
	company, ok := companyID(c)
	if !ok {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid contract id"})
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
	contract, err := h.svc.Send(company, id, ctx, payload.Recipient, userActor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, contract)
}

func (h *ContractHandler) Countersign(c *gin.Context) {
	company, ok := companyID(c)
	if !ok {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid contract id"})
		return
	}
	var payload struct {
		SignedBy string `json:"signed_by" binding:"required"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	contract, err := h.svc.Countersign(company, id, payload.SignedBy, userActor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, contract)
}

func (h *ContractHandler) Cancel(c *gin.Context) {
	company, ok := companyID(c)
	if !ok {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid contract id"})
		return
	}
	contract, err := h.svc.Cancel(company, id, userActor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, contract)
}

// ListEvents is the read-only audit export for compliance and support.
func (h *ContractHandler) ListEvents(c *gin.Context) {
	if _, ok := companyID(c); !ok {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid contract id"})
		return
	}
	events, err := h.events.ListContractEvents(id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

// ViewByToken is the unauthenticated recipient access to the rendered
// document.
func (h *ContractHandler) ViewByToken(c *gin.Context) {
	contract, err := h.svc.ViewByToken(c.Param("token"), clientActor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"number":            contract.Number,
		"status":            contract.Status,
		"rendered_sections": contract.RenderedSections,
		"expires_at":        contract.ExpiresAt,
	})
}

func (h *ContractHandler) Sign(c *gin.Context) {
	var payload struct {
		Name  string `json:"name" binding:"required"`
		Email string `json:"email"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	contract, err := h.svc.SubmitSignature(c.Param("token"), lifecycle.SignaturePayload{
		Name:  payload.Name,
		Email: payload.Email,
	}, clientActor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": contract.Status, "client_signed_at": contract.ClientSignedAt})
}

func (h *ContractHandler) Decline(c *gin.Context) {
	var payload struct {
		Reason string `json:"reason"`
	}
	_ = c.ShouldBindJSON(&payload)
	contract, err := h.svc.DeclineByToken(c.Param("token"), payload.Reason, clientActor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": contract.Status})
}
