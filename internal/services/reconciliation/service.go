package reconciliation

import (
	"encoding/json"
	"time"

	"document-billing-backend/internal/domain"
	"document-billing-backend/internal/models"
	"document-billing-backend/internal/repository"
	"document-billing-backend/internal/services/audit"
	"document-billing-backend/internal/services/ledger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// WebhookEvent is the provider-reported payment event after transport
// decoding. RefundAmount is cumulative for the intent, the way providers
// report it, which makes refund redeliveries naturally idempotent.
type WebhookEvent struct {
	Provider     string               `json:"provider"`
	EventID      string               `json:"event_id"`
	IntentID     string               `json:"payment_intent_id"`
	InvoiceID    *uuid.UUID           `json:"invoice_id,omitempty"`
	Amount       float64              `json:"amount"`
	Currency     string               `json:"currency"`
	Status       domain.PaymentStatus `json:"status"`
	RefundAmount float64              `json:"refund_amount,omitempty"`
	Raw          json.RawMessage      `json:"-"`
}

// Key is the reconciliation identity: the provider payment-intent id, or the
// event's own id when the provider supplies none.
func (e WebhookEvent) Key() string {
	if e.IntentID != "" {
		return e.IntentID
	}
	return e.EventID
}

// ReconciliationService applies payment events to invoice ledgers exactly
// once per distinct payment identity, no matter how many times the provider
// delivers them.
type ReconciliationService struct {
	invoices *repository.InvoiceRepository
	payments *repository.PaymentRepository
	audit    *audit.Recorder
	now      func() time.Time
}

func NewReconciliationService(
	invoices *repository.InvoiceRepository,
	payments *repository.PaymentRepository,
	recorder *audit.Recorder,
) *ReconciliationService {
	return &ReconciliationService{
		invoices: invoices,
		payments: payments,
		audit:    recorder,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *ReconciliationService) SetClock(now func() time.Time) { s.now = now }

// Ingest durably records the delivery before anything else happens to it.
// The second return reports whether this was the first delivery of the
// provider event; redeliveries are acknowledged without re-enqueueing.
func (s *ReconciliationService) Ingest(evt WebhookEvent) (*models.WebhookReceipt, bool, error) {
	eventID := evt.EventID
	if eventID == "" {
		eventID = evt.Key() + ":" + string(evt.Status)
	}
	payload := []byte(evt.Raw)
	if payload == nil {
		payload, _ = json.Marshal(evt)
	}
	rec := &models.WebhookReceipt{
		Provider:        evt.Provider,
		ProviderEventID: eventID,
		EventType:       string(evt.Status),
		Payload:         datatypes.JSON(payload),
		CreatedAt:       s.now(),
	}
	inserted, err := s.payments.InsertReceipt(rec)
	if err != nil {
		return nil, false, err
	}
	if !inserted {
		prev, err := s.payments.GetReceipt(evt.Provider, eventID)
		if err != nil {
			return nil, false, err
		}
		return prev, false, nil
	}
	return rec, true, nil
}

// Apply reconciles one event against its target invoice. Re-applying an
// already-applied key is a no-op that still succeeds and still leaves a
// distinguishable audit entry, so webhook retries are observable without
// double-booking money.
func (s *ReconciliationService) Apply(evt WebhookEvent) error {
	if evt.Key() == "" {
		return &domain.ReconciliationError{IntentID: "", Reason: "event carries no payment identity"}
	}

	payment, err := s.payments.GetByIntentID(evt.Key())
	if err != nil {
		return err
	}

	invoiceID := evt.InvoiceID
	if invoiceID == nil && payment != nil {
		invoiceID = payment.InvoiceID
	}
	if invoiceID == nil {
		return &domain.ReconciliationError{IntentID: evt.Key(), Reason: "unknown payment identity: no invoice reference"}
	}
	inv, err := s.invoices.GetUnscoped(*invoiceID)
	if err != nil {
		return &domain.ReconciliationError{IntentID: evt.Key(), Reason: "target invoice not found"}
	}
	if evt.Currency != "" && evt.Currency != inv.Currency {
		return &domain.ValidationError{Field: "currency", Reason: "event currency does not match invoice"}
	}

	switch evt.Status {
	case domain.PaymentSucceeded:
		return s.applySucceeded(evt, payment, inv)
	case domain.PaymentFailed:
		return s.applyFailed(evt, payment, inv)
	case domain.PaymentRefunded:
		return s.applyRefund(evt, payment, inv)
	case domain.PaymentPending, domain.PaymentProcessing:
		return s.upsertRecord(evt, payment, inv)
	default:
		return &domain.ValidationError{Field: "status", Reason: "unknown payment status"}
	}
}

func (s *ReconciliationService) applySucceeded(evt WebhookEvent, payment *models.Payment, inv *models.Invoice) error {
	if payment != nil && payment.Status == domain.PaymentSucceeded {
		// Idempotent skip: the money was booked on a previous delivery.
		return s.audit.Invoice(inv.ID, "payment_duplicate", domain.SystemActor(), map[string]interface{}{
			"payment_intent_id": evt.Key(),
		})
	}
	if !inv.Status.Payable() {
		return &domain.ReconciliationError{IntentID: evt.Key(), Reason: "invoice is not payable in status " + string(inv.Status)}
	}
	if evt.Amount <= 0 {
		return &domain.ValidationError{Field: "amount", Reason: "must be positive"}
	}

	now := s.now()
	if payment == nil {
		payment = &models.Payment{
			ID:               uuid.New(),
			CompanyID:        inv.CompanyID,
			InvoiceID:        &inv.ID,
			Currency:         inv.Currency,
			ProviderIntentID: evt.Key(),
		}
	}
	payment.Status = domain.PaymentSucceeded
	payment.Amount = evt.Amount
	payment.AppliedAt = &now

	paid := decimal.NewFromFloat(inv.AmountPaid).Add(decimal.NewFromFloat(evt.Amount))
	ledger.SyncPaid(inv, paid)
	inv.Status = ledger.PaymentStatus(inv, paid)

	// The ledger write, the payment record, and the audit event land in one
	// transaction; a booking never becomes durable without its trail.
	return s.invoices.DB().Transaction(func(tx *gorm.DB) error {
		if err := s.invoices.WithTx(tx).SaveWithVersion(inv); err != nil {
			return err
		}
		if err := s.payments.WithTx(tx).Save(payment); err != nil {
			return err
		}
		return s.audit.WithTx(tx).Invoice(inv.ID, "payment_applied", domain.SystemActor(), map[string]interface{}{
			"payment_intent_id": evt.Key(),
			"amount":            evt.Amount,
			"amount_paid":       inv.AmountPaid,
			"status":            inv.Status,
		})
	})
}

// applyFailed updates the payment record only; the ledger is never touched.
func (s *ReconciliationService) applyFailed(evt WebhookEvent, payment *models.Payment, inv *models.Invoice) error {
	if payment != nil && payment.Status == domain.PaymentFailed {
		return s.audit.Invoice(inv.ID, "payment_duplicate", domain.SystemActor(), map[string]interface{}{
			"payment_intent_id": evt.Key(),
		})
	}
	if payment != nil && payment.Status == domain.PaymentSucceeded {
		// Out-of-order delivery: money already booked, a stale failure must
		// not unbook it.
		return s.audit.Invoice(inv.ID, "payment_stale_failure", domain.SystemActor(), map[string]interface{}{
			"payment_intent_id": evt.Key(),
		})
	}
	if payment == nil {
		payment = &models.Payment{
			ID:               uuid.New(),
			CompanyID:        inv.CompanyID,
			InvoiceID:        &inv.ID,
			Amount:           evt.Amount,
			Currency:         inv.Currency,
			ProviderIntentID: evt.Key(),
		}
	}
	payment.Status = domain.PaymentFailed
	payment.FailureReason = "provider reported failure"
	return s.invoices.DB().Transaction(func(tx *gorm.DB) error {
		if err := s.payments.WithTx(tx).Save(payment); err != nil {
			return err
		}
		return s.audit.WithTx(tx).Invoice(inv.ID, "payment_failed", domain.SystemActor(), map[string]interface{}{
			"payment_intent_id": evt.Key(),
			"amount":            evt.Amount,
		})
	})
}

// applyRefund decrements amount_paid by the refund delta. RefundAmount is
// cumulative per intent, so a redelivered refund computes a zero delta and
// books nothing twice. A refund exceeding recorded payments clamps the
// ledger at zero and surfaces ReconciliationError: that is upstream data
// inconsistency, not something to absorb silently.
func (s *ReconciliationService) applyRefund(evt WebhookEvent, payment *models.Payment, inv *models.Invoice) error {
	if payment == nil || payment.AppliedAt == nil {
		return &domain.ReconciliationError{IntentID: evt.Key(), Reason: "refund for a payment that was never applied"}
	}

	cumulative := evt.RefundAmount
	if cumulative == 0 {
		cumulative = payment.Amount
	}
	if cumulative > payment.Amount {
		return &domain.ReconciliationError{IntentID: evt.Key(), Reason: "refund exceeds original payment amount"}
	}
	delta := decimal.NewFromFloat(cumulative).Sub(decimal.NewFromFloat(payment.RefundAmount))
	if !delta.IsPositive() {
		return s.audit.Invoice(inv.ID, "payment_duplicate", domain.SystemActor(), map[string]interface{}{
			"payment_intent_id": evt.Key(),
			"refund_amount":     cumulative,
		})
	}

	paid := decimal.NewFromFloat(inv.AmountPaid).Sub(delta)
	var reconcileErr error
	if paid.IsNegative() {
		paid = decimal.Zero
		reconcileErr = &domain.ReconciliationError{IntentID: evt.Key(), Reason: "refund exceeds recorded payments"}
	}
	ledger.SyncPaid(inv, paid)
	inv.Status = ledger.PaymentStatus(inv, paid)

	payment.RefundAmount = cumulative
	if cumulative >= payment.Amount {
		payment.Status = domain.PaymentRefunded
	}

	if err := s.invoices.DB().Transaction(func(tx *gorm.DB) error {
		if err := s.invoices.WithTx(tx).SaveWithVersion(inv); err != nil {
			return err
		}
		if err := s.payments.WithTx(tx).Save(payment); err != nil {
			return err
		}
		return s.audit.WithTx(tx).Invoice(inv.ID, "payment_refunded", domain.SystemActor(), map[string]interface{}{
			"payment_intent_id": evt.Key(),
			"refund_amount":     cumulative,
			"amount_paid":       inv.AmountPaid,
			"status":            inv.Status,
		})
	}); err != nil {
		return err
	}
	return reconcileErr
}

func (s *ReconciliationService) upsertRecord(evt WebhookEvent, payment *models.Payment, inv *models.Invoice) error {
	if payment != nil {
		if payment.Status == domain.PaymentSucceeded || payment.Status == domain.PaymentRefunded {
			// Stale delivery behind the settled state.
			return nil
		}
		payment.Status = evt.Status
		return s.payments.Save(payment)
	}
	return s.payments.Create(&models.Payment{
		ID:               uuid.New(),
		CompanyID:        inv.CompanyID,
		InvoiceID:        &inv.ID,
		Amount:           evt.Amount,
		Currency:         inv.Currency,
		Status:           evt.Status,
		ProviderIntentID: evt.Key(),
	})
}

func (s *ReconciliationService) ListPayments(invoiceID uuid.UUID) ([]models.Payment, error) {
	return s.payments.ListByInvoice(invoiceID)
}
