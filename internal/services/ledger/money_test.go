package ledger

import (
	"testing"
	"time"

	"document-billing-backend/internal/domain"
	"document-billing-backend/internal/models"

	"github.com/shopspring/decimal"
)

func sampleItems() []models.InvoiceLineItem {
	return []models.InvoiceLineItem{
		{Quantity: 2, UnitPrice: 50, Amount: LineAmount(2, 50).InexactFloat64(), Order: 0},
		{Quantity: 1, UnitPrice: 100, Amount: LineAmount(1, 100).InexactFloat64(), Order: 1},
	}
}

func TestComputeTotalsDiscountBeforeTax(t *testing.T) {
	// 2 x $50 + 1 x $100 with 5% discount then 10% tax.
	totals := ComputeTotals(sampleItems(), 0.05, 0.10)

	checks := []struct {
		name string
		got  decimal.Decimal
		want string
	}{
		{"subtotal", totals.Subtotal, "200"},
		{"discount", totals.DiscountAmount, "10"},
		{"tax", totals.TaxAmount, "19"},
		{"total", totals.Total, "209"},
	}
	for _, c := range checks {
		if !c.got.Equal(decimal.RequireFromString(c.want)) {
			t.Fatalf("%s = %s, want %s", c.name, c.got, c.want)
		}
	}
}

func TestComputeTotalsNoRates(t *testing.T) {
	totals := ComputeTotals(sampleItems(), 0, 0)
	if !totals.Total.Equal(decimal.NewFromInt(200)) {
		t.Fatalf("total = %s", totals.Total)
	}
	if !totals.DiscountAmount.IsZero() || !totals.TaxAmount.IsZero() {
		t.Fatalf("unexpected discount %s or tax %s", totals.DiscountAmount, totals.TaxAmount)
	}
}

func TestLineAmountRounds(t *testing.T) {
	if got := LineAmount(3, 0.333); !got.Equal(decimal.RequireFromString("1")) {
		t.Fatalf("amount = %s", got)
	}
	if got := LineAmount(1.5, 19.99); !got.Equal(decimal.RequireFromString("29.99")) {
		t.Fatalf("amount = %s", got)
	}
}

func TestSyncPaidKeepsAmountDueInvariant(t *testing.T) {
	inv := &models.Invoice{Total: 209}

	SyncPaid(inv, decimal.NewFromInt(100))
	if inv.AmountDue != 109 || inv.Overpaid {
		t.Fatalf("after $100: due %v overpaid %v", inv.AmountDue, inv.Overpaid)
	}

	SyncPaid(inv, decimal.NewFromInt(209))
	if inv.AmountDue != 0 || inv.Overpaid {
		t.Fatalf("after $209: due %v overpaid %v", inv.AmountDue, inv.Overpaid)
	}

	// Overpayment is flagged, never clipped.
	SyncPaid(inv, decimal.NewFromInt(250))
	if inv.AmountDue != 0 || !inv.Overpaid || inv.AmountPaid != 250 {
		t.Fatalf("after $250: due %v paid %v overpaid %v", inv.AmountDue, inv.AmountPaid, inv.Overpaid)
	}
}

func TestPaymentStatusDerivation(t *testing.T) {
	inv := &models.Invoice{Total: 209}

	if got := PaymentStatus(inv, decimal.NewFromInt(100)); got != domain.InvoicePartiallyPaid {
		t.Fatalf("partial payment status = %s", got)
	}
	if got := PaymentStatus(inv, decimal.NewFromInt(209)); got != domain.InvoicePaid {
		t.Fatalf("full payment status = %s", got)
	}

	// A full refund reverts toward the unpaid-equivalent status.
	if got := PaymentStatus(inv, decimal.Zero); got != domain.InvoiceSent {
		t.Fatalf("refunded unviewed status = %s", got)
	}
	now := time.Now()
	inv.ViewedAt = &now
	if got := PaymentStatus(inv, decimal.Zero); got != domain.InvoiceViewed {
		t.Fatalf("refunded viewed status = %s", got)
	}
}
