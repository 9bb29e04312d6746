package ledger

import (
	"errors"
	"testing"
	"time"

	"document-billing-backend/internal/domain"
	"document-billing-backend/internal/models"
	"document-billing-backend/internal/repository"
	"document-billing-backend/internal/services/audit"
	"document-billing-backend/internal/services/collaborators"
	"document-billing-backend/internal/services/render"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func render0() render.Context { return render.NewContext("", "", "") }

func setupService(t *testing.T) (*Service, *repository.EventRepository) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:ledger_"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(
		&models.InvoiceTemplate{}, &models.TemplateSection{}, &models.MergeField{},
		&models.Invoice{}, &models.InvoiceLineItem{}, &models.InvoiceEvent{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	events := repository.NewEventRepository(db)
	svc := NewService(
		repository.NewInvoiceRepository(db),
		repository.NewTemplateRepository(db),
		audit.NewRecorder(events),
		collaborators.NewDispatcher(collaborators.NoopPDFGenerator{}, collaborators.LogEmailSender{}),
		30,
	)
	return svc, events
}

func sampleLines() []LineInput {
	return []LineInput{
		{Description: "Design", Quantity: 2, UnitPrice: 50, Order: 0},
		{Description: "Development", Quantity: 1, UnitPrice: 100, Order: 1},
	}
}

func actor() domain.Actor {
	return domain.Actor{Type: domain.ActorUser, ID: "u1"}
}

func TestCreateDraftDerivesTotals(t *testing.T) {
	svc, _ := setupService(t)
	companyID := uuid.New()

	inv, err := svc.CreateDraft(companyID, CreateInput{
		Currency:     "USD",
		TaxRate:      0.10,
		DiscountRate: 0.05,
		Lines:        sampleLines(),
	}, actor())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if inv.Number != "INV-00001" {
		t.Fatalf("number = %q", inv.Number)
	}
	if inv.Status != domain.InvoiceDraft {
		t.Fatalf("status = %s", inv.Status)
	}
	if inv.Subtotal != 200 || inv.DiscountAmount != 10 || inv.TaxAmount != 19 || inv.Total != 209 {
		t.Fatalf("totals: subtotal %v discount %v tax %v total %v",
			inv.Subtotal, inv.DiscountAmount, inv.TaxAmount, inv.Total)
	}
	if inv.AmountDue != 209 || inv.AmountPaid != 0 {
		t.Fatalf("due %v paid %v", inv.AmountDue, inv.AmountPaid)
	}
}

func TestCreateDraftRejectsBadLines(t *testing.T) {
	svc, _ := setupService(t)
	companyID := uuid.New()

	var valErr *domain.ValidationError
	_, err := svc.CreateDraft(companyID, CreateInput{
		Lines: []LineInput{{Quantity: 0, UnitPrice: 10}},
	}, actor())
	if !errors.As(err, &valErr) {
		t.Fatalf("zero quantity: want ValidationError, got %v", err)
	}

	_, err = svc.CreateDraft(companyID, CreateInput{
		Lines: []LineInput{
			{Quantity: 1, UnitPrice: 10, Order: 0},
			{Quantity: 1, UnitPrice: 20, Order: 0},
		},
	}, actor())
	if !errors.As(err, &valErr) {
		t.Fatalf("duplicate order: want ValidationError, got %v", err)
	}
}

func TestUpdateDraftLinesRecomputes(t *testing.T) {
	svc, _ := setupService(t)
	companyID := uuid.New()

	inv, err := svc.CreateDraft(companyID, CreateInput{Lines: sampleLines()}, actor())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	inv, err = svc.UpdateDraftLines(companyID, inv.ID, []LineInput{
		{Description: "Design", Quantity: 1, UnitPrice: 75, Order: 0},
	}, actor())
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if inv.Total != 75 || inv.AmountDue != 75 || len(inv.LineItems) != 1 {
		t.Fatalf("total %v due %v lines %d", inv.Total, inv.AmountDue, len(inv.LineItems))
	}
}

func TestLinesFreezeAfterSend(t *testing.T) {
	svc, _ := setupService(t)
	companyID := uuid.New()

	inv, err := svc.CreateDraft(companyID, CreateInput{Lines: sampleLines()}, actor())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.Send(companyID, inv.ID, render0(), "client@example.com", actor()); err != nil {
		t.Fatalf("send: %v", err)
	}

	_, err = svc.UpdateDraftLines(companyID, inv.ID, sampleLines(), actor())
	var stateErr *domain.StateError
	if !errors.As(err, &stateErr) {
		t.Fatalf("want StateError, got %v", err)
	}
}

func TestSendRequiresLines(t *testing.T) {
	svc, _ := setupService(t)
	companyID := uuid.New()

	inv, err := svc.CreateDraft(companyID, CreateInput{}, actor())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	_, err = svc.Send(companyID, inv.ID, render0(), "client@example.com", actor())
	var valErr *domain.ValidationError
	if !errors.As(err, &valErr) {
		t.Fatalf("want ValidationError, got %v", err)
	}
}

func TestViewByTokenOnce(t *testing.T) {
	svc, events := setupService(t)
	companyID := uuid.New()

	inv, err := svc.CreateDraft(companyID, CreateInput{Lines: sampleLines()}, actor())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	inv, err = svc.Send(companyID, inv.ID, render0(), "client@example.com", actor())
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if inv.Token == nil {
		t.Fatalf("no token minted")
	}

	viewer := domain.Actor{Type: domain.ActorClient, IP: "203.0.113.9"}
	for i := 0; i < 3; i++ {
		got, err := svc.ViewByToken(*inv.Token, viewer)
		if err != nil {
			t.Fatalf("view %d: %v", i, err)
		}
		if got.Status != domain.InvoiceViewed {
			t.Fatalf("view %d: status %s", i, got.Status)
		}
	}

	trail, err := events.ListInvoiceEvents(inv.ID)
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	viewed := 0
	for _, ev := range trail {
		if ev.EventType == "viewed" {
			viewed++
		}
	}
	if viewed != 1 {
		t.Fatalf("viewed events = %d", viewed)
	}
}

func TestOverdueEvaluatedOnAccess(t *testing.T) {
	svc, events := setupService(t)
	companyID := uuid.New()

	due := time.Now().UTC().Add(24 * time.Hour)
	inv, err := svc.CreateDraft(companyID, CreateInput{Lines: sampleLines(), DueDate: &due}, actor())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	inv, err = svc.Send(companyID, inv.ID, render0(), "client@example.com", actor())
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	svc.SetClock(func() time.Time { return due.Add(48 * time.Hour) })
	got, err := svc.ViewByToken(*inv.Token, domain.Actor{Type: domain.ActorClient})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	if got.Status != domain.InvoiceOverdue {
		t.Fatalf("status = %s", got.Status)
	}

	trail, err := events.ListInvoiceEvents(inv.ID)
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	found := false
	for _, ev := range trail {
		if ev.EventType == "overdue" {
			found = true
		}
	}
	if !found {
		t.Fatalf("no overdue event in trail")
	}
}

func TestTokenExpiryBlocksAccess(t *testing.T) {
	svc, events := setupService(t)
	companyID := uuid.New()

	inv, err := svc.CreateDraft(companyID, CreateInput{Lines: sampleLines()}, actor())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	inv, err = svc.Send(companyID, inv.ID, render0(), "client@example.com", actor())
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	svc.SetClock(func() time.Time { return inv.ExpiresAt.Add(time.Hour) })
	_, err = svc.ViewByToken(*inv.Token, domain.Actor{Type: domain.ActorClient})
	var stateErr *domain.StateError
	if !errors.As(err, &stateErr) {
		t.Fatalf("want StateError, got %v", err)
	}

	// Only the token access is refused; the invoice stays on the ledger in
	// its current status.
	got, err := svc.Get(companyID, inv.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != domain.InvoiceSent {
		t.Fatalf("status = %s", got.Status)
	}
	if got.ViewedAt != nil {
		t.Fatalf("viewed_at set on refused access")
	}

	trail, err := events.ListInvoiceEvents(inv.ID)
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	rejected := 0
	for _, ev := range trail {
		if ev.EventType == "rejected" {
			rejected++
		}
	}
	if rejected != 1 {
		t.Fatalf("rejected events = %d", rejected)
	}
}

func TestCancelBlockedOncePaid(t *testing.T) {
	svc, _ := setupService(t)
	companyID := uuid.New()

	inv, err := svc.CreateDraft(companyID, CreateInput{Lines: sampleLines()}, actor())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.Send(companyID, inv.ID, render0(), "client@example.com", actor()); err != nil {
		t.Fatalf("send: %v", err)
	}

	// Simulate money already collected.
	fresh, err := svc.Get(companyID, inv.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	SyncPaid(fresh, decimal.NewFromInt(100))
	if err := svc.invoices.SaveWithVersion(fresh); err != nil {
		t.Fatalf("save: %v", err)
	}

	_, err = svc.Cancel(companyID, inv.ID, actor())
	var stateErr *domain.StateError
	if !errors.As(err, &stateErr) {
		t.Fatalf("want StateError, got %v", err)
	}
}

func TestCancelDraft(t *testing.T) {
	svc, _ := setupService(t)
	companyID := uuid.New()

	inv, err := svc.CreateDraft(companyID, CreateInput{Lines: sampleLines()}, actor())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	got, err := svc.Cancel(companyID, inv.ID, actor())
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if got.Status != domain.InvoiceCancelled {
		t.Fatalf("status = %s", got.Status)
	}
}
