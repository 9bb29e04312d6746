package repository

import (
	"errors"
	"testing"

	"document-billing-backend/internal/domain"
	"document-billing-backend/internal/models"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:repo_"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(
		&models.ContractTemplate{}, &models.InvoiceTemplate{},
		&models.TemplateSection{}, &models.MergeField{},
		&models.Contract{}, &models.Invoice{}, &models.InvoiceLineItem{},
		&models.Payment{}, &models.WebhookReceipt{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestSaveWithVersionDetectsLostRace(t *testing.T) {
	db := setupDB(t)
	repo := NewContractRepository(db)
	companyID := uuid.New()

	c := &models.Contract{ID: uuid.New(), CompanyID: companyID, Number: "CTR-1", Status: domain.ContractDraft, Version: 1}
	if err := repo.Create(c); err != nil {
		t.Fatalf("create: %v", err)
	}

	// Two readers load the same version.
	first, err := repo.GetByID(companyID, c.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	second, err := repo.GetByID(companyID, c.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}

	first.Status = domain.ContractSent
	if err := repo.SaveWithVersion(first); err != nil {
		t.Fatalf("first save: %v", err)
	}

	second.Status = domain.ContractCancelled
	err = repo.SaveWithVersion(second)
	var conflict *domain.ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("want ConflictError, got %v", err)
	}

	// The loser's in-memory version is restored so it can re-read and retry.
	if second.Version != 1 {
		t.Fatalf("loser version = %d", second.Version)
	}
	got, err := repo.GetByID(companyID, c.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != domain.ContractSent || got.Version != 2 {
		t.Fatalf("winner lost: status %s version %d", got.Status, got.Version)
	}
}

func TestRetiredTemplateLeavesAvailableView(t *testing.T) {
	db := setupDB(t)
	repo := NewTemplateRepository(db)
	companyID := uuid.New()

	tpl := &models.ContractTemplate{ID: uuid.New(), CompanyID: companyID, Name: "NDA", Status: domain.TemplateActive, Version: 1}
	if err := repo.CreateContractTemplate(tpl); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := repo.RetireContractTemplate(companyID, tpl.ID); err != nil {
		t.Fatalf("retire: %v", err)
	}

	available, err := repo.ListAvailableContractTemplates(companyID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(available) != 0 {
		t.Fatalf("retired template still listed: %d", len(available))
	}

	// Still readable by id for documents already issued from it.
	got, err := repo.GetContractTemplate(companyID, tpl.ID)
	if err != nil {
		t.Fatalf("get retired: %v", err)
	}
	if got.Status != domain.TemplateRetired {
		t.Fatalf("status = %s", got.Status)
	}
}

func TestReplaceSectionsBumpsVersion(t *testing.T) {
	db := setupDB(t)
	repo := NewTemplateRepository(db)
	companyID := uuid.New()

	tpl := &models.ContractTemplate{
		ID: uuid.New(), CompanyID: companyID, Name: "NDA",
		Status: domain.TemplateActive, Version: 1,
		Sections: []models.TemplateSection{
			{Type: domain.SectionParagraph, Order: 0, Content: []byte(`{"type":"paragraph","paragraph":{"text":"v1"}}`)},
		},
	}
	if err := repo.CreateContractTemplate(tpl); err != nil {
		t.Fatalf("create: %v", err)
	}

	err := repo.ReplaceContractSections(companyID, tpl.ID, []models.TemplateSection{
		{Type: domain.SectionParagraph, Order: 0, Content: []byte(`{"type":"paragraph","paragraph":{"text":"v2"}}`)},
		{Type: domain.SectionParagraph, Order: 1, Content: []byte(`{"type":"paragraph","paragraph":{"text":"appendix"}}`)},
	}, nil)
	if err != nil {
		t.Fatalf("replace: %v", err)
	}

	got, err := repo.GetContractTemplate(companyID, tpl.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Version != 2 {
		t.Fatalf("version = %d", got.Version)
	}
	if len(got.Sections) != 2 {
		t.Fatalf("sections = %d", len(got.Sections))
	}

	// Retired templates refuse content edits.
	if err := repo.RetireContractTemplate(companyID, tpl.ID); err != nil {
		t.Fatalf("retire: %v", err)
	}
	err = repo.ReplaceContractSections(companyID, tpl.ID, nil, nil)
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("edit retired: got %v", err)
	}
}

func TestInsertReceiptDeduplicates(t *testing.T) {
	db := setupDB(t)
	repo := NewPaymentRepository(db)

	rec := &models.WebhookReceipt{Provider: "stripe", ProviderEventID: "evt_1", EventType: "succeeded"}
	inserted, err := repo.InsertReceipt(rec)
	if err != nil || !inserted {
		t.Fatalf("first insert: %v %v", inserted, err)
	}

	dup := &models.WebhookReceipt{Provider: "stripe", ProviderEventID: "evt_1", EventType: "succeeded"}
	inserted, err = repo.InsertReceipt(dup)
	if err != nil {
		t.Fatalf("second insert: %v", err)
	}
	if inserted {
		t.Fatalf("duplicate reported as inserted")
	}

	// A different provider with the same event id is distinct.
	other := &models.WebhookReceipt{Provider: "paypal", ProviderEventID: "evt_1", EventType: "succeeded"}
	inserted, err = repo.InsertReceipt(other)
	if err != nil || !inserted {
		t.Fatalf("other provider: %v %v", inserted, err)
	}
}
