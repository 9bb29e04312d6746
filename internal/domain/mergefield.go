package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// MergeFieldCategory drives resolution order: system fields resolve first,
// contract/invoice fields last, so a later category may reference an
// earlier-resolved value but never the other way around.
type MergeFieldCategory string

const (
	CategorySystem   MergeFieldCategory = "system"
	CategoryCompany  MergeFieldCategory = "company"
	CategoryClient   MergeFieldCategory = "client"
	CategoryProject  MergeFieldCategory = "project"
	CategoryContract MergeFieldCategory = "contract"
)

// CategoryOrder lists the categories in resolution order.
var CategoryOrder = []MergeFieldCategory{
	CategorySystem, CategoryCompany, CategoryClient, CategoryProject, CategoryContract,
}

type MergeFieldKind string

const (
	FieldText     MergeFieldKind = "text"
	FieldDate     MergeFieldKind = "date"
	FieldCurrency MergeFieldKind = "currency"
)

// FieldValue is a raw, unformatted merge-field value supplied by the caller's
// context bundle. Exactly the branch matching Kind is meaningful.
type FieldValue struct {
	Kind   MergeFieldKind
	Text   string
	Date   time.Time
	Amount decimal.Decimal
}

func TextValue(s string) FieldValue {
	return FieldValue{Kind: FieldText, Text: s}
}

func DateValue(t time.Time) FieldValue {
	return FieldValue{Kind: FieldDate, Date: t}
}

func CurrencyValue(d decimal.Decimal) FieldValue {
	return FieldValue{Kind: FieldCurrency, Amount: d}
}
