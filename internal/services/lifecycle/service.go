package lifecycle

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
	"gorm.io/gorm"
)

// Service owns every contract status transition. All writes go through the
// contract repository's version-guarded save, so concurrent transitions on
// one contract serialize: the loser sees ConflictError and can retry after
// re-reading.
type Service struct {
	contracts  *repository.ContractRepository
	templates  *repository.TemplateRepository
	audit      *audit.Recorder
	resolver   *render.Resolver
	renderer   *render.Renderer
	dispatcher *collaborators.Dispatcher
	ttl        time.Duration
	now        func() time.Time
}

func NewService(
	contracts *repository.ContractRepository,
	templates *repository.TemplateRepository,
	recorder *audit.Recorder,
	dispatcher *collaborators.Dispatcher,
	ttlDays int,
) *Service {
	return &Service{
		contracts:  contracts,
		templates:  templates,
		audit:      recorder,
		resolver:   render.NewResolver(),
		renderer:   render.NewRenderer(),
		dispatcher: dispatcher,
		ttl:        time.Duration(ttlDays) * 24 * time.Hour,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the time source; used by tests for expiry paths.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

// saveAndAudit commits the transition and its audit event in one transaction;
// neither becomes durable without the other.
func (s *Service) saveAndAudit(c *models.Contract, event string, actor domain.Actor, data map[string]interface{}) error {
	return s.contracts.DB().Transaction(func(tx *gorm.DB) error {
		if err := s.contracts.WithTx(tx).SaveWithVersion(c); err != nil {
			return err
		}
		return s.audit.WithTx(tx).Contract(c.ID, event, actor, data)
	})
}

type CreateInput struct {
	TemplateID *uuid.UUID
	ContactID  *uuid.UUID
	ProjectID  *uuid.UUID
	Currency   string
	Number     string
}

// CreateDraft instantiates a contract. The referenced template must still be
// in the available view; retired templates only serve already-issued
// documents.
func (s *Service) CreateDraft(companyID uuid.UUID, in CreateInput, actor domain.Actor) (*models.Contract, error) {
	c := &models.Contract{
		ID:        uuid.New(),
		CompanyID: companyID,
		Number:    in.Number,
		ContactID: in.ContactID,
		ProjectID: in.ProjectID,
		Status:    domain.ContractDraft,
		Currency:  in.Currency,
	}
	if c.Currency == "" {
		c.Currency = "USD"
	}
	if in.TemplateID != nil {
		tpl, err := s.templates.GetContractTemplate(companyID, *in.TemplateID)
		if err != nil {
			return nil, err
		}
		if tpl.Status != domain.TemplateActive {
			return nil, &domain.ValidationError{Field: "template_id", Reason: "template is retired"}
		}
		c.TemplateID = &tpl.ID
		c.TemplateVersion = tpl.Version
		if c.Currency == "" {
			c.Currency = tpl.DefaultCurrency
		}
	}
	if c.Number == "" {
		c.Number = fmt.Sprintf("CTR-%s", c.ID.String()[:8])
	}
	if err := s.contracts.DB().Transaction(func(tx *gorm.DB) error {
		if err := s.contracts.WithTx(tx).Create(c); err != nil {
			return err
		}
		return s.audit.WithTx(tx).Contract(c.ID, "created", actor, map[string]interface{}{"number": c.Number})
	}); err != nil {
		return nil, err
	}
	return c, nil
}

// Render produces the draft's snapshot. Re-rendering is permitted only while
// the contract is still draft; past that the stored snapshot is frozen even
// if the source template changes.
func (s *Service) Render(companyID, id uuid.UUID, ctx render.Context, actor domain.Actor) (*models.Contract, error) {
	c, err := s.contracts.GetByID(companyID, id)
	if err != nil {
		return nil, err
	}
	if c.Status != domain.ContractDraft {
		s.rejected(c, actor, "render")
		return nil, &domain.StateError{Entity: "contract", Current: string(c.Status), Attempted: "render"}
	}
	if err := s.renderInto(c, ctx); err != nil {
		return nil, err
	}
	if err := s.saveAndAudit(c, "rendered", actor, map[string]interface{}{"template_version": c.TemplateVersion}); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Service) renderInto(c *models.Contract, ctx render.Context) error {
	if c.TemplateID == nil {
		return &domain.ValidationError{Field: "template_id", Reason: "contract has no template to render"}
	}
	tpl, err := s.templates.GetContractTemplate(c.CompanyID, *c.TemplateID)
	if err != nil {
		return err
	}
	if ctx.Currency == "" {
		ctx.Currency = c.Currency
	}
	values, err := s.resolver.Resolve(tpl.MergeFields, ctx)
	if err != nil {
		return err
	}
	sections, err := s.renderer.Render(tpl.Sections, values)
	if err != nil {
		return err
	}
	c.RenderedSections, err = render.MarshalSections(sections)
	if err != nil {
		return err
	}
	c.MergeFieldValues, err = render.MarshalValues(values)
	if err != nil {
		return err
	}
	c.TemplateVersion = tpl.Version
	return nil
}

// Send moves draft to sent: it requires a complete render, mints the access
// token with its expiry, and notifies the email collaborator only after the
// transition is recorded.
func (s *Service) Send(companyID, id uuid.UUID, ctx render.Context, recipient string, actor domain.Actor) (*models.Contract, error) {
	c, err := s.contracts.GetByID(companyID, id)
	if err != nil {
		return nil, err
	}
	if c.Status != domain.ContractDraft {
		s.rejected(c, actor, "send")
		return nil, &domain.StateError{Entity: "contract", Current: string(c.Status), Attempted: "send"}
	}
	if err := s.renderInto(c, ctx); err != nil {
		return nil, err
	}

	now := s.now()
	token := uuid.NewString()
	expires := now.Add(s.ttl)
	c.Status = domain.ContractSent
	c.Token = &token
	c.ExpiresAt = &expires
	c.SentAt = &now

	if err := s.saveAndAudit(c, "sent", actor, map[string]interface{}{
		"recipient":  recipient,
		"expires_at": expires,
	}); err != nil {
		return nil, err
	}

	s.dispatcher.Enqueue(collaborators.Job{
		Kind: "email", DocumentID: c.ID, Category: "contract_sent",
		Recipient: recipient, Token: token,
	})
	s.dispatcher.Enqueue(collaborators.Job{
		Kind: "pdf", DocumentID: c.ID,
		Sections: c.RenderedSections, Values: c.MergeFieldValues,
	})
	return c, nil
}

// ViewByToken handles public token access. The first access before expiry
// moves sent to viewed and emits exactly one viewed event; repeated views are
// idempotent. Expiry is evaluated lazily on this access.
func (s *Service) ViewByToken(token string, actor domain.Actor) (*models.Contract, error) {
	c, err := s.contracts.GetByToken(token)
	if err != nil {
		return nil, err
	}
	if err := s.expireIfLapsed(c, actor, "view"); err != nil {
		return nil, err
	}
	switch c.Status {
	case domain.ContractSent:
		now := s.now()
		c.Status = domain.ContractViewed
		c.ViewedAt = &now
		if err := s.saveAndAudit(c, "viewed", actor, nil); err != nil {
			return nil, err
		}
	case domain.ContractViewed, domain.ContractSigned:
		// Idempotent: no transition, no duplicate event.
	default:
		s.rejected(c, actor, "view")
		return nil, &domain.StateError{Entity: "contract", Current: string(c.Status), Attempted: "view"}
	}
	return c, nil
}

type SignaturePayload struct {
	Name  string
	Email string
}

// SubmitSignature captures the client half of the signature via the public
// token. The contract reads as signed only once the provider countersignature
// is present as well; until then it stays viewed with partial signature
// fields populated.
func (s *Service) SubmitSignature(token string, sig SignaturePayload, actor domain.Actor) (*models.Contract, error) {
	c, err := s.contracts.GetByToken(token)
	if err != nil {
		return nil, err
	}
	if err := s.expireIfLapsed(c, actor, "sign"); err != nil {
		return nil, err
	}
	if c.Status != domain.ContractSent && c.Status != domain.ContractViewed {
		s.rejected(c, actor, "sign")
		return nil, &domain.StateError{Entity: "contract", Current: string(c.Status), Attempted: "sign"}
	}
	if sig.Name == "" {
		return nil, &domain.ValidationError{Field: "name", Reason: "signer name is required"}
	}
	if c.ClientSigned() {
		s.rejected(c, actor, "sign")
		return nil, &domain.StateError{Entity: "contract", Current: string(c.Status), Attempted: "sign again"}
	}

	now := s.now()
	if c.Status == domain.ContractSent {
		// The signing access is itself the first view.
		c.Status = domain.ContractViewed
		c.ViewedAt = &now
	}
	c.SignerName = sig.Name
	c.SignerEmail = sig.Email
	c.SignerIP = actor.IP
	c.ClientSignedAt = &now

	completed := c.ProviderSignedAt != nil
	if completed {
		c.Status = domain.ContractSigned
	}
	event := "client_signed"
	if completed {
		event = "signed"
	}
	if err := s.saveAndAudit(c, event, actor, map[string]interface{}{
		"signer_name":  sig.Name,
		"signer_email": sig.Email,
	}); err != nil {
		return nil, err
	}
	return c, nil
}

// Countersign records the provider side. When the client signature is already
// captured this completes the contract.
func (s *Service) Countersign(companyID, id uuid.UUID, signedBy string, actor domain.Actor) (*models.Contract, error) {
	c, err := s.contracts.GetByID(companyID, id)
	if err != nil {
		return nil, err
	}
	if err := s.expireIfLapsed(c, actor, "countersign"); err != nil {
		return nil, err
	}
	if c.Status.Terminal() || c.Status == domain.ContractDraft {
		s.rejected(c, actor, "countersign")
		return nil, &domain.StateError{Entity: "contract", Current: string(c.Status), Attempted: "countersign"}
	}

	now := s.now()
	c.ProviderSignedBy = signedBy
	c.ProviderSignedAt = &now
	completed := c.ClientSigned()
	if completed {
		c.Status = domain.ContractSigned
	}
	event := "provider_signed"
	if completed {
		event = "signed"
	}
	if err := s.saveAndAudit(c, event, actor, map[string]interface{}{"signed_by": signedBy}); err != nil {
		return nil, err
	}
	return c, nil
}

// DeclineByToken is the recipient's explicit rejection, permitted while
// non-terminal.
func (s *Service) DeclineByToken(token string, reason string, actor domain.Actor) (*models.Contract, error) {
	c, err := s.contracts.GetByToken(token)
	if err != nil {
		return nil, err
	}
	if err := s.expireIfLapsed(c, actor, "decline"); err != nil {
		return nil, err
	}
	return s.close(c, domain.ContractDeclined, "declined", map[string]interface{}{"reason": reason}, actor)
}

// Cancel is the company's withdrawal of a sent or viewed contract.
func (s *Service) Cancel(companyID, id uuid.UUID, actor domain.Actor) (*models.Contract, error) {
	c, err := s.contracts.GetByID(companyID, id)
	if err != nil {
		return nil, err
	}
	return s.close(c, domain.ContractCancelled, "cancelled", nil, actor)
}

func (s *Service) close(c *models.Contract, to domain.ContractStatus, event string, data map[string]interface{}, actor domain.Actor) (*models.Contract, error) {
	if c.Status != domain.ContractSent && c.Status != domain.ContractViewed {
		s.rejected(c, actor, event)
		return nil, &domain.StateError{Entity: "contract", Current: string(c.Status), Attempted: event}
	}
	c.Status = to
	if err := s.saveAndAudit(c, event, actor, data); err != nil {
		return nil, err
	}
	return c, nil
}

// ExpireLapsed is the advisory sweep entry point; the same lazy check runs on
// every token access.
func (s *Service) ExpireLapsed(limit int) (int, error) {
	candidates, err := s.contracts.ListExpiryCandidates(s.now(), limit)
	if err != nil {
		return 0, err
	}
	expired := 0
	for i := range candidates {
		if err := s.expireIfLapsed(&candidates[i], domain.SystemActor(), "sweep"); err != nil {
			if _, ok := err.(*domain.StateError); ok {
				expired++
				continue
			}
			return expired, err
		}
	}
	return expired, nil
}

// expireIfLapsed fails closed: when the token lifetime has lapsed the access
// itself transitions the contract to expired and the attempted operation is
// rejected.
func (s *Service) expireIfLapsed(c *models.Contract, actor domain.Actor, attempted string) error {
	if c.Status != domain.ContractSent && c.Status != domain.ContractViewed {
		return nil
	}
	if c.ExpiresAt == nil || !s.now().After(*c.ExpiresAt) {
		return nil
	}
	c.Status = domain.ContractExpired
	if err := s.saveAndAudit(c, "expired", actor, map[string]interface{}{"attempted": attempted}); err != nil {
		return err
	}
	return &domain.StateError{Entity: "contract", Current: string(domain.ContractExpired), Attempted: attempted}
}

// rejected audits a refused transition attempt; rejections are part of the
// trail too.
func (s *Service) rejected(c *models.Contract, actor domain.Actor, attempted string) {
	_ = s.audit.Contract(c.ID, "rejected", actor, map[string]interface{}{
		"attempted": attempted,
		"status":    c.Status,
	})
}

func (s *Service) Get(companyID, id uuid.UUID) (*models.Contract, error) {
	return s.contracts.GetByID(companyID, id)
}

func (s *Service) List(companyID uuid.UUID, status string) ([]models.Contract, error) {
	return s.contracts.List(companyID, status)
}
