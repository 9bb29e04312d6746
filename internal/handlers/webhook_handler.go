package handler

import (
	"encoding/json"
	"io"
	"net/http"

	"document-billing-backend/internal/services/reconciliation"

	"github.com/gin-gonic/gin"
)

// WebhookHandler is the payment provider ingress. Delivery is acknowledged
// once the event is durably recorded as seen; reconciliation itself runs on
// the queue worker, so a slow invoice lock never stalls the provider.
type WebhookHandler struct {
	svc   *reconciliation.ReconciliationService
	queue *reconciliation.Queue
}

func NewWebhookHandler(svc *reconciliation.ReconciliationService, queue *reconciliation.Queue) *WebhookHandler {
	return &WebhookHandler{svc: svc, queue: queue}
}

const maxWebhookBody = 1 << 20 // 1MB

func (h *WebhookHandler) HandlePayment(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}

	var evt reconciliation.WebhookEvent
	if err := json.Unmarshal(body, &evt); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid webhook payload"})
		return
	}
	if evt.Provider == "" {
		evt.Provider = c.Param("provider")
	}
	evt.Raw = body

	if evt.Key() == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "event carries no payment identity"})
		return
	}

	receipt, first, err := h.svc.Ingest(evt)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if first {
		h.queue.Enqueue(receipt.ID, evt)
	}
	// Always 200 once the receipt is durable; a logical reconciliation
	// failure is reviewed from the receipt, not redelivered forever.
	c.JSON(http.StatusOK, gin.H{"received": true, "duplicate": !first})
}

// HandleBatch accepts a provider's event list in one delivery.
func (h *WebhookHandler) HandleBatch(c *gin.Context) {
	var payload struct {
		Events []reconciliation.WebhookEvent `json:"events"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	accepted, duplicates := 0, 0
	for _, evt := range payload.Events {
		if evt.Provider == "" {
			evt.Provider = c.Param("provider")
		}
		if evt.Key() == "" {
			continue
		}
		receipt, first, err := h.svc.Ingest(evt)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if first {
			h.queue.Enqueue(receipt.ID, evt)
			accepted++
		} else {
			duplicates++
		}
	}
	c.JSON(http.StatusOK, gin.H{"accepted": accepted, "duplicates": duplicates})
}
