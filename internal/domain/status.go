package domain

// Status enums shared by models, services, and handlers. Kept as typed
// strings so they read naturally in JSON columns and API payloads.

type ContractStatus string

const (
	ContractDraft     ContractStatus = "draft"
	ContractSent      ContractStatus = "sent"
	ContractViewed    ContractStatus = "viewed"
	ContractSigned    ContractStatus = "signed"
	ContractDeclined  ContractStatus = "declined"
	ContractExpired   ContractStatus = "expired"
	ContractCancelled ContractStatus = "cancelled"
)

// Terminal reports whether the status admits no further transitions.
func (s ContractStatus) Terminal() bool {
	switch s {
	case ContractSigned, ContractDeclined, ContractExpired, ContractCancelled:
		return true
	}
	return false
}

type InvoiceStatus string

const (
	InvoiceDraft         InvoiceStatus = "draft"
	InvoiceSent          InvoiceStatus = "sent"
	InvoiceViewed        InvoiceStatus = "viewed"
	InvoicePaid          InvoiceStatus = "paid"
	InvoicePartiallyPaid InvoiceStatus = "partially_paid"
	InvoiceOverdue       InvoiceStatus = "overdue"
	InvoiceCancelled     InvoiceStatus = "cancelled"
)

// Terminal reports whether the invoice can still move. Paid invoices are not
// terminal: a refund may revert them to partially_paid or sent.
func (s InvoiceStatus) Terminal() bool {
	return s == InvoiceCancelled
}

// Payable reports whether payments may still be applied.
func (s InvoiceStatus) Payable() bool {
	return s != InvoiceDraft && s != InvoiceCancelled
}

type PaymentStatus string

const (
	PaymentPending    PaymentStatus = "pending"
	PaymentProcessing PaymentStatus = "processing"
	PaymentSucceeded  PaymentStatus = "succeeded"
	PaymentFailed     PaymentStatus = "failed"
	PaymentRefunded   PaymentStatus = "refunded"
)

// TemplateStatus is the explicit retirement lifecycle of a template. Retired
// templates stay readable for documents already issued from them but are
// excluded from new-document creation.
type TemplateStatus string

const (
	TemplateActive  TemplateStatus = "active"
	TemplateRetired TemplateStatus = "retired"
)

type ActorType string

const (
	ActorUser   ActorType = "user"
	ActorClient ActorType = "client"
	ActorSystem ActorType = "system"
)

// Actor identifies who triggered a transition, plus the request metadata the
// audit trail keeps.
type Actor struct {
	Type      ActorType
	ID        string
	IP        string
	UserAgent string
}

// SystemActor is used for time-driven transitions (expiry, overdue sweeps).
func SystemActor() Actor {
	return Actor{Type: ActorSystem, ID: "system"}
}
