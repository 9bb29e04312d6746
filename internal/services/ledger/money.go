package ledger

import (
	"document-billing-backend/internal/domain"
	"document-billing-backend/internal/models"

	"github.com/shopspring/decimal"
)

// Totals are the derived monetary fields of an invoice. The ordering is
// fixed: discount applies to the subtotal first, then tax applies to the
// discounted subtotal.
type Totals struct {
	Subtotal       decimal.Decimal
	DiscountAmount decimal.Decimal
	TaxAmount      decimal.Decimal
	Total          decimal.Decimal
}

func round2(d decimal.Decimal) decimal.Decimal { return d.Round(2) }

// ComputeTotals derives the invoice totals from its line items:
//
//	discount_amount = subtotal * discount_rate
//	taxable         = subtotal - discount_amount
//	tax_amount      = taxable * tax_rate
//	total           = taxable + tax_amount
func ComputeTotals(items []models.InvoiceLineItem, discountRate, taxRate float64) Totals {
	subtotal := decimal.Zero
	for _, it := range items {
		subtotal = subtotal.Add(decimal.NewFromFloat(it.Amount))
	}
	discount := round2(subtotal.Mul(decimal.NewFromFloat(discountRate)))
	taxable := subtotal.Sub(discount)
	tax := round2(taxable.Mul(decimal.NewFromFloat(taxRate)))
	return Totals{
		Subtotal:       subtotal,
		DiscountAmount: discount,
		TaxAmount:      tax,
		Total:          taxable.Add(tax),
	}
}

// LineAmount is always quantity * unit_price rounded to currency precision.
func LineAmount(quantity, unitPrice float64) decimal.Decimal {
	return round2(decimal.NewFromFloat(quantity).Mul(decimal.NewFromFloat(unitPrice)))
}

// applyTotals writes the derived fields back onto the invoice, keeping the
// amount_due invariant: amount_due == max(total - amount_paid, 0). An
// amount_paid above total is flagged as overpayment, never clipped.
func applyTotals(inv *models.Invoice, t Totals) {
	inv.Subtotal = t.Subtotal.InexactFloat64()
	inv.DiscountAmount = t.DiscountAmount.InexactFloat64()
	inv.TaxAmount = t.TaxAmount.InexactFloat64()
	inv.Total = t.Total.InexactFloat64()
	SyncPaid(inv, decimal.NewFromFloat(inv.AmountPaid))
}

// SyncPaid updates amount_paid and its derived fields.
func SyncPaid(inv *models.Invoice, paid decimal.Decimal) {
	total := decimal.NewFromFloat(inv.Total)
	due := total.Sub(paid)
	if due.IsNegative() {
		due = decimal.Zero
	}
	inv.AmountPaid = paid.InexactFloat64()
	inv.AmountDue = due.InexactFloat64()
	inv.Overpaid = paid.GreaterThan(total)
}

// PaymentStatus derives the invoice status after a ledger mutation. A full
// refund reverts toward the unpaid-equivalent status, respecting whether the
// invoice was already viewed.
func PaymentStatus(inv *models.Invoice, paid decimal.Decimal) domain.InvoiceStatus {
	total := decimal.NewFromFloat(inv.Total)
	switch {
	case total.IsPositive() && paid.GreaterThanOrEqual(total):
		return domain.InvoicePaid
	case paid.IsPositive():
		return domain.InvoicePartiallyPaid
	default:
		if inv.ViewedAt != nil {
			return domain.InvoiceViewed
		}
		return domain.InvoiceSent
	}
}
