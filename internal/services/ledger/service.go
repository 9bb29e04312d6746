package ledger

import (
	"fmt"
	"time"

	"document-billing-backend/internal/domain"
	"document-billing-backend/internal/models"
	"document-billing-backend/internal/repository"
	"document-billing-backend/internal/services/audit"
	"document-billing-backend/internal/services/collaborators"
	"document-billing-backend/internal/services/render"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Service owns the invoice lifecycle and the deterministic derivation of its
// monetary fields. Line items mutate only while the invoice is draft; once
// sent they are frozen the same way a contract's rendered snapshot is.
type Service struct {
	invoices   *repository.InvoiceRepository
	templates  *repository.TemplateRepository
	audit      *audit.Recorder
	resolver   *render.Resolver
	renderer   *render.Renderer
	dispatcher *collaborators.Dispatcher
	ttl        time.Duration
	now        func() time.Time
}

func NewService(
	invoices *repository.InvoiceRepository,
	templates *repository.TemplateRepository,
	recorder *audit.Recorder,
	dispatcher *collaborators.Dispatcher,
	ttlDays int,
) *Service {
	return &Service{
		invoices:   invoices,
		templates:  templates,
		audit:      recorder,
		resolver:   render.NewResolver(),
		renderer:   render.NewRenderer(),
		dispatcher: dispatcher,
		ttl:        time.Duration(ttlDays) * 24 * time.Hour,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) SetClock(now func() time.Time) { s.now = now }

// saveAndAudit commits the transition and its audit event in one transaction;
// neither becomes durable without the other.
func (s *Service) saveAndAudit(inv *models.Invoice, event string, actor domain.Actor, data map[string]interface{}) error {
	return s.invoices.DB().Transaction(func(tx *gorm.DB) error {
		if err := s.invoices.WithTx(tx).SaveWithVersion(inv); err != nil {
			return err
		}
		return s.audit.WithTx(tx).Invoice(inv.ID, event, actor, data)
	})
}

type LineInput struct {
	Description string
	Quantity    float64
	UnitPrice   float64
	Order       int
}

type CreateInput struct {
	TemplateID   *uuid.UUID
	ContactID    *uuid.UUID
	ProjectID    *uuid.UUID
	Currency     string
	TaxRate      float64
	DiscountRate float64
	DueDate      *time.Time
	Lines        []LineInput
}

func buildLines(lines []LineInput) ([]models.InvoiceLineItem, error) {
	seen := make(map[int]bool, len(lines))
	out := make([]models.InvoiceLineItem, 0, len(lines))
	for _, l := range lines {
		if l.Quantity <= 0 {
			return nil, &domain.ValidationError{Field: "quantity", Reason: "must be positive"}
		}
		if l.UnitPrice < 0 {
			return nil, &domain.ValidationError{Field: "unit_price", Reason: "must not be negative"}
		}
		if seen[l.Order] {
			return nil, &domain.ValidationError{Field: "order", Reason: fmt.Sprintf("duplicate line order %d", l.Order)}
		}
		seen[l.Order] = true
		out = append(out, models.InvoiceLineItem{
			ID:          uuid.New(),
			Description: l.Description,
			Quantity:    l.Quantity,
			UnitPrice:   l.UnitPrice,
			Amount:      LineAmount(l.Quantity, l.UnitPrice).InexactFloat64(),
			Order:       l.Order,
		})
	}
	return out, nil
}

func (s *Service) CreateDraft(companyID uuid.UUID, in CreateInput, actor domain.Actor) (*models.Invoice, error) {
	if in.TaxRate < 0 || in.DiscountRate < 0 || in.DiscountRate > 1 {
		return nil, &domain.ValidationError{Field: "rates", Reason: "tax and discount rates must be sane fractions"}
	}
	items, err := buildLines(in.Lines)
	if err != nil {
		return nil, err
	}

	inv := &models.Invoice{
		ID:           uuid.New(),
		CompanyID:    companyID,
		ContactID:    in.ContactID,
		ProjectID:    in.ProjectID,
		Status:       domain.InvoiceDraft,
		Currency:     in.Currency,
		TaxRate:      in.TaxRate,
		DiscountRate: in.DiscountRate,
		DueDate:      in.DueDate,
	}
	if in.TemplateID != nil {
		tpl, err := s.templates.GetInvoiceTemplate(companyID, *in.TemplateID)
		if err != nil {
			return nil, err
		}
		if tpl.Status != domain.TemplateActive {
			return nil, &domain.ValidationError{Field: "template_id", Reason: "template is retired"}
		}
		inv.TemplateID = &tpl.ID
		inv.TemplateVersion = tpl.Version
		if inv.Currency == "" {
			inv.Currency = tpl.DefaultCurrency
		}
		if inv.DueDate == nil {
			due := s.now().AddDate(0, 0, tpl.DefaultDueDays)
			inv.DueDate = &due
		}
	}
	if inv.Currency == "" {
		inv.Currency = "USD"
	}

	seq, err := s.invoices.NextNumber(companyID)
	if err != nil {
		return nil, err
	}
	inv.Number = fmt.Sprintf("INV-%05d", seq)

	applyTotals(inv, ComputeTotals(items, inv.DiscountRate, inv.TaxRate))
	for i := range items {
		items[i].InvoiceID = inv.ID
	}
	inv.LineItems = items

	if err := s.invoices.DB().Transaction(func(tx *gorm.DB) error {
		if err := s.invoices.WithTx(tx).Create(inv); err != nil {
			return err
		}
		return s.audit.WithTx(tx).Invoice(inv.ID, "created", actor, map[string]interface{}{
			"number": inv.Number,
			"total":  inv.Total,
		})
	}); err != nil {
		return nil, err
	}
	return inv, nil
}

// UpdateDraftLines replaces the line items and re-derives totals. Once the
// invoice has been sent the lines are frozen and any revision takes a new
// invoice.
func (s *Service) UpdateDraftLines(companyID, id uuid.UUID, lines []LineInput, actor domain.Actor) (*models.Invoice, error) {
	inv, err := s.invoices.GetByID(companyID, id)
	if err != nil {
		return nil, err
	}
	if inv.Status != domain.InvoiceDraft {
		s.rejected(inv, actor, "update_lines")
		return nil, &domain.StateError{Entity: "invoice", Current: string(inv.Status), Attempted: "update line items"}
	}
	items, err := buildLines(lines)
	if err != nil {
		return nil, err
	}
	applyTotals(inv, ComputeTotals(items, inv.DiscountRate, inv.TaxRate))
	if err := s.invoices.DB().Transaction(func(tx *gorm.DB) error {
		repo := s.invoices.WithTx(tx)
		if err := repo.ReplaceLineItems(inv.ID, items); err != nil {
			return err
		}
		if err := repo.SaveWithVersion(inv); err != nil {
			return err
		}
		return s.audit.WithTx(tx).Invoice(inv.ID, "lines_updated", actor, map[string]interface{}{"total": inv.Total})
	}); err != nil {
		return nil, err
	}
	inv.LineItems = items
	return inv, nil
}

// Send freezes the invoice: snapshot rendered (when a template is attached),
// token minted, lines locked.
func (s *Service) Send(companyID, id uuid.UUID, ctx render.Context, recipient string, actor domain.Actor) (*models.Invoice, error) {
	inv, err := s.invoices.GetByID(companyID, id)
	if err != nil {
		return nil, err
	}
	if inv.Status != domain.InvoiceDraft {
		s.rejected(inv, actor, "send")
		return nil, &domain.StateError{Entity: "invoice", Current: string(inv.Status), Attempted: "send"}
	}
	if len(inv.LineItems) == 0 {
		return nil, &domain.ValidationError{Field: "line_items", Reason: "cannot send an empty invoice"}
	}
	if inv.TemplateID != nil {
		if err := s.renderInto(inv, ctx); err != nil {
			return nil, err
		}
	}

	now := s.now()
	token := uuid.NewString()
	expires := now.Add(s.ttl)
	inv.Status = domain.InvoiceSent
	inv.Token = &token
	inv.ExpiresAt = &expires
	inv.SentAt = &now
	if inv.DueDate == nil {
		due := now.AddDate(0, 0, 30)
		inv.DueDate = &due
	}

	if err := s.saveAndAudit(inv, "sent", actor, map[string]interface{}{
		"recipient": recipient,
		"total":     inv.Total,
	}); err != nil {
		return nil, err
	}

	s.dispatcher.Enqueue(collaborators.Job{
		Kind: "email", DocumentID: inv.ID, Category: "invoice_sent",
		Recipient: recipient, Token: token,
	})
	s.dispatcher.Enqueue(collaborators.Job{
		Kind: "pdf", DocumentID: inv.ID,
		Sections: inv.RenderedSections, Values: inv.MergeFieldValues,
	})
	return inv, nil
}

func (s *Service) renderInto(inv *models.Invoice, ctx render.Context) error {
	tpl, err := s.templates.GetInvoiceTemplate(inv.CompanyID, *inv.TemplateID)
	if err != nil {
		return err
	}
	if ctx.Currency == "" {
		ctx.Currency = inv.Currency
	}
	// Invoice-category values derived from the ledger are always available
	// to the resolver.
	ctx.Set(domain.CategoryContract, "invoice_number", domain.TextValue(inv.Number))
	ctx.Set(domain.CategoryContract, "invoice_subtotal", domain.CurrencyValue(decimal.NewFromFloat(inv.Subtotal)))
	ctx.Set(domain.CategoryContract, "invoice_total", domain.CurrencyValue(decimal.NewFromFloat(inv.Total)))
	if inv.DueDate != nil {
		ctx.Set(domain.CategoryContract, "invoice_due_date", domain.DateValue(*inv.DueDate))
	}

	values, err := s.resolver.Resolve(tpl.MergeFields, ctx)
	if err != nil {
		return err
	}
	sections, err := s.renderer.Render(tpl.Sections, values)
	if err != nil {
		return err
	}
	inv.RenderedSections, err = render.MarshalSections(sections)
	if err != nil {
		return err
	}
	inv.MergeFieldValues, err = render.MarshalValues(values)
	if err != nil {
		return err
	}
	inv.TemplateVersion = tpl.Version
	return nil
}

// ViewByToken is the public invoice page access. A lapsed token refuses
// access before anything else; the invoice itself stays open on the ledger
// and collectable through other channels. Overdue is evaluated lazily here
// the same way contract expiry is.
func (s *Service) ViewByToken(token string, actor domain.Actor) (*models.Invoice, error) {
	inv, err := s.invoices.GetByToken(token)
	if err != nil {
		return nil, err
	}
	if inv.ExpiresAt != nil && s.now().After(*inv.ExpiresAt) {
		s.rejected(inv, actor, "view")
		return nil, &domain.StateError{Entity: "invoice", Current: string(inv.Status), Attempted: "view"}
	}
	if _, err := s.evaluateOverdue(inv, actor); err != nil {
		return nil, err
	}
	if inv.Status == domain.InvoiceSent {
		now := s.now()
		inv.Status = domain.InvoiceViewed
		inv.ViewedAt = &now
		if err := s.saveAndAudit(inv, "viewed", actor, nil); err != nil {
			return nil, err
		}
	}
	return inv, nil
}

// Cancel withdraws an invoice that has not collected money yet.
func (s *Service) Cancel(companyID, id uuid.UUID, actor domain.Actor) (*models.Invoice, error) {
	inv, err := s.invoices.GetByID(companyID, id)
	if err != nil {
		return nil, err
	}
	if inv.Status.Terminal() || inv.AmountPaid > 0 {
		s.rejected(inv, actor, "cancel")
		return nil, &domain.StateError{Entity: "invoice", Current: string(inv.Status), Attempted: "cancel"}
	}
	inv.Status = domain.InvoiceCancelled
	if err := s.saveAndAudit(inv, "cancelled", actor, nil); err != nil {
		return nil, err
	}
	return inv, nil
}

// evaluateOverdue flips the invoice to overdue when the due date has lapsed
// with money still owed. Advisory: re-run on every access and by the sweep.
func (s *Service) evaluateOverdue(inv *models.Invoice, actor domain.Actor) (bool, error) {
	switch inv.Status {
	case domain.InvoiceSent, domain.InvoiceViewed, domain.InvoicePartiallyPaid:
	default:
		return false, nil
	}
	if inv.DueDate == nil || !s.now().After(*inv.DueDate) || inv.AmountDue <= 0 {
		return false, nil
	}
	inv.Status = domain.InvoiceOverdue
	if err := s.saveAndAudit(inv, "overdue", actor, map[string]interface{}{"amount_due": inv.AmountDue}); err != nil {
		return false, err
	}
	return true, nil
}

// SweepOverdue is the cron entry point.
func (s *Service) SweepOverdue(limit int) (int, error) {
	candidates, err := s.invoices.ListOverdueCandidates(s.now(), limit)
	if err != nil {
		return 0, err
	}
	flipped := 0
	for i := range candidates {
		changed, err := s.evaluateOverdue(&candidates[i], domain.SystemActor())
		if err != nil {
			return flipped, err
		}
		if changed {
			flipped++
		}
	}
	return flipped, nil
}

func (s *Service) rejected(inv *models.Invoice, actor domain.Actor, attempted string) {
	_ = s.audit.Invoice(inv.ID, "rejected", actor, map[string]interface{}{
		"attempted": attempted,
		"status":    inv.Status,
	})
}

func (s *Service) Get(companyID, id uuid.UUID) (*models.Invoice, error) {
	return s.invoices.GetByID(companyID, id)
}

func (s *Service) List(companyID uuid.UUID, status string) ([]models.Invoice, error) {
	return s.invoices.List(companyID, status)
}
