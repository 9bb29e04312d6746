package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"document-billing-backend/internal/domain"
	"document-billing-backend/internal/models"
	"document-billing-backend/internal/repository"
	"document-billing-backend/internal/services/audit"
	"document-billing-backend/internal/services/collaborators"
	"document-billing-backend/internal/services/ledger"
	"document-billing-backend/internal/services/reconciliation"
	"document-billing-backend/internal/services/render"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupWebhookRouter(t *testing.T) (*gin.Engine, *ledger.Service, *repository.InvoiceRepository) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open("file:webhook_"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(
		&models.InvoiceTemplate{}, &models.TemplateSection{}, &models.MergeField{},
		&models.Invoice{}, &models.InvoiceLineItem{}, &models.InvoiceEvent{},
		&models.Payment{}, &models.WebhookReceipt{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	invoices := repository.NewInvoiceRepository(db)
	payments := repository.NewPaymentRepository(db)
	recorder := audit.NewRecorder(repository.NewEventRepository(db))
	led := ledger.NewService(
		invoices,
		repository.NewTemplateRepository(db),
		recorder,
		collaborators.NewDispatcher(collaborators.NoopPDFGenerator{}, collaborators.LogEmailSender{}),
		30,
	)
	svc := reconciliation.NewReconciliationService(invoices, payments, recorder)
	h := NewWebhookHandler(svc, reconciliation.NewQueue(svc, payments))

	r := gin.New()
	r.POST("/webhooks/payments/:provider", h.HandlePayment)
	r.POST("/webhooks/payments/:provider/batch", h.HandleBatch)
	return r, led, invoices
}

func issueInvoice(t *testing.T, led *ledger.Service) *models.Invoice {
	t.Helper()
	companyID := uuid.New()
	actor := domain.Actor{Type: domain.ActorUser, ID: "u1"}
	inv, err := led.CreateDraft(companyID, ledger.CreateInput{
		Currency: "USD",
		Lines:    []ledger.LineInput{{Description: "Work", Quantity: 1, UnitPrice: 209, Order: 0}},
	}, actor)
	if err != nil {
		t.Fatalf("create invoice: %v", err)
	}
	inv, err = led.Send(companyID, inv.ID, render.NewContext("", "", ""), "client@example.com", actor)
	if err != nil {
		t.Fatalf("send invoice: %v", err)
	}
	return inv
}

func postJSON(t *testing.T, r *gin.Engine, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	b, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func waitForStatus(t *testing.T, invoices *repository.InvoiceRepository, id uuid.UUID, want domain.InvoiceStatus) *models.Invoice {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		inv, err := invoices.GetUnscoped(id)
		if err != nil {
			t.Fatalf("reload: %v", err)
		}
		if inv.Status == want {
			return inv
		}
		if time.Now().After(deadline) {
			t.Fatalf("invoice stuck in %s, want %s", inv.Status, want)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestWebhookAppliesPayment(t *testing.T) {
	r, led, invoices := setupWebhookRouter(t)
	inv := issueInvoice(t, led)

	w := postJSON(t, r, "/webhooks/payments/stripe", map[string]interface{}{
		"event_id":          "evt_1",
		"payment_intent_id": "pi_1",
		"invoice_id":        inv.ID,
		"amount":            209,
		"currency":          "USD",
		"status":            "succeeded",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Received  bool `json:"received"`
		Duplicate bool `json:"duplicate"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Received || resp.Duplicate {
		t.Fatalf("resp = %+v", resp)
	}

	got := waitForStatus(t, invoices, inv.ID, domain.InvoicePaid)
	if got.AmountDue != 0 {
		t.Fatalf("amount due = %v", got.AmountDue)
	}
}

func TestWebhookRedeliveryFlagged(t *testing.T) {
	r, led, invoices := setupWebhookRouter(t)
	inv := issueInvoice(t, led)

	payload := map[string]interface{}{
		"event_id":          "evt_1",
		"payment_intent_id": "pi_1",
		"invoice_id":        inv.ID,
		"amount":            209,
		"currency":          "USD",
		"status":            "succeeded",
	}
	if w := postJSON(t, r, "/webhooks/payments/stripe", payload); w.Code != http.StatusOK {
		t.Fatalf("first delivery: %d", w.Code)
	}
	waitForStatus(t, invoices, inv.ID, domain.InvoicePaid)

	w := postJSON(t, r, "/webhooks/payments/stripe", payload)
	if w.Code != http.StatusOK {
		t.Fatalf("redelivery status %d", w.Code)
	}
	var resp struct {
		Duplicate bool `json:"duplicate"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Duplicate {
		t.Fatalf("redelivery not flagged as duplicate")
	}

	got, err := invoices.GetUnscoped(inv.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got.AmountPaid != 209 {
		t.Fatalf("amount paid = %v", got.AmountPaid)
	}
}

func TestWebhookRejectsGarbage(t *testing.T) {
	r, _, _ := setupWebhookRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/payments/stripe", bytes.NewReader([]byte("not json")))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestWebhookRejectsMissingIdentity(t *testing.T) {
	r, _, _ := setupWebhookRouter(t)

	w := postJSON(t, r, "/webhooks/payments/stripe", map[string]interface{}{
		"amount":   50,
		"currency": "USD",
		"status":   "succeeded",
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestWebhookBatch(t *testing.T) {
	r, led, invoices := setupWebhookRouter(t)
	inv := issueInvoice(t, led)

	event := func(id string, amount float64) map[string]interface{} {
		return map[string]interface{}{
			"event_id":          "evt_" + id,
			"payment_intent_id": id,
			"invoice_id":        inv.ID,
			"amount":            amount,
			"currency":          "USD",
			"status":            "succeeded",
		}
	}
	w := postJSON(t, r, "/webhooks/payments/stripe/batch", map[string]interface{}{
		"events": []interface{}{event("pi_1", 100), event("pi_2", 109), event("pi_1", 100)},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Accepted   int `json:"accepted"`
		Duplicates int `json:"duplicates"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Accepted != 2 || resp.Duplicates != 1 {
		t.Fatalf("resp = %+v", resp)
	}

	got := waitForStatus(t, invoices, inv.ID, domain.InvoicePaid)
	if got.AmountPaid != 209 {
		t.Fatalf("amount paid = %v", got.AmountPaid)
	}
}
