package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	id "lodger/pkg/domain"
	dErrors "lodger/pkg/domain-errors"
)

func newTestInvoice(t *testing.T, draft bool) *Invoice {
	t.Helper()
	now := time.Now().UTC()
	inv, err := NewInvoice(
		id.InvoiceID(uuid.New()), id.UserID(uuid.New()), id.UserID(uuid.New()),
		id.PropertyID(uuid.New()), nil,
		decimal.NewFromInt(1200), now.AddDate(0, 0, 14), "June rent", CategoryRent, draft, now,
	)
	if err != nil {
		t.Fatalf("NewInvoice: %v", err)
	}
	return inv
}

func TestNewInvoiceValidation(t *testing.T) {
	now := time.Now().UTC()

	_, err := NewInvoice(id.InvoiceID(uuid.New()), id.UserID(uuid.New()), id.UserID(uuid.New()),
		id.PropertyID(uuid.New()), nil, decimal.Zero, now, "x", CategoryRent, false, now)
	if !dErrors.HasCode(err, dErrors.CodeValidation) {
		t.Fatalf("expected validation error for zero amount, got %v", err)
	}

	_, err = NewInvoice(id.InvoiceID(uuid.New()), id.UserID(uuid.New()), id.UserID(uuid.New()),
		id.PropertyID(uuid.New()), nil, decimal.NewFromInt(100), now, "x", "utilities", false, now)
	if !dErrors.HasCode(err, dErrors.CodeValidation) {
		t.Fatalf("expected validation error for bad category, got %v", err)
	}
}

func TestInvoiceEffectiveStatus(t *testing.T) {
	inv := newTestInvoice(t, false)

	if got := inv.EffectiveStatus(inv.DueDate.AddDate(0, 0, -1)); got != InvoiceStatusDue {
		t.Fatalf("expected due before the due date, got %s", got)
	}
	if got := inv.EffectiveStatus(inv.DueDate.AddDate(0, 0, 1)); got != InvoiceStatusOverdue {
		t.Fatalf("expected overdue after the due date, got %s", got)
	}

	// Only due invoices derive overdue.
	now := time.Now().UTC()
	if err := inv.MarkProcessing(now); err != nil {
		t.Fatalf("MarkProcessing: %v", err)
	}
	if got := inv.EffectiveStatus(inv.DueDate.AddDate(0, 0, 1)); got != InvoiceStatusProcessing {
		t.Fatalf("expected processing to stay processing, got %s", got)
	}
}

func TestInvoiceLifecycle(t *testing.T) {
	now := time.Now().UTC()
	inv := newTestInvoice(t, true)

	if inv.Status != InvoiceStatusDraft {
		t.Fatalf("expected draft, got %s", inv.Status)
	}
	if err := inv.MarkProcessing(now); !dErrors.HasCode(err, dErrors.CodeInvalidState) {
		t.Fatalf("draft invoice must not be payable, got %v", err)
	}
	if err := inv.Issue(now); err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if err := inv.MarkProcessing(now); err != nil {
		t.Fatalf("MarkProcessing: %v", err)
	}
	if err := inv.MarkPaid(now); err != nil {
		t.Fatalf("MarkPaid: %v", err)
	}
	if inv.PaidDate == nil {
		t.Fatal("expected paid date to be set")
	}
	if inv.IsEditable() {
		t.Fatal("paid invoice must not be editable")
	}
	if err := inv.ReopenToDue(now); err != nil {
		t.Fatalf("ReopenToDue: %v", err)
	}
	if inv.Status != InvoiceStatusDue || inv.PaidDate != nil {
		t.Fatal("expected reopened invoice to be due with no paid date")
	}
	if err := inv.Cancel(now); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if err := inv.Cancel(now); !dErrors.HasCode(err, dErrors.CodeInvalidState) {
		t.Fatalf("expected cancel of cancelled invoice to fail, got %v", err)
	}
}

func TestPaymentLifecycle(t *testing.T) {
	now := time.Now().UTC()
	inv := newTestInvoice(t, false)
	expires := now.Add(time.Hour)

	p := NewCardPayment(id.PaymentID(uuid.New()), inv, "cs_123", "https://pay.example/cs_123", &expires, now)
	if !p.SessionValid(now) {
		t.Fatal("expected fresh session to be valid")
	}
	if p.SessionValid(now.Add(2 * time.Hour)) {
		t.Fatal("expected expired session to be invalid")
	}

	if err := p.Complete(now); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if p.SessionValid(now) {
		t.Fatal("completed payment must not reuse its session")
	}
	if err := p.Complete(now); !dErrors.HasCode(err, dErrors.CodeInvalidState) {
		t.Fatalf("expected double-complete to fail, got %v", err)
	}

	q := NewCardPayment(id.PaymentID(uuid.New()), inv, "cs_456", "", nil, now)
	if err := q.Fail("card declined", now); err != nil {
		t.Fatalf("Fail: %v", err)
	}
	if q.Status != PaymentStatusFailed || q.FailureReason != "card declined" {
		t.Fatal("expected failed payment with reason")
	}

	m := NewManualPayment(id.PaymentID(uuid.New()), inv, now)
	if m.Status != PaymentStatusCompleted || m.Method != MethodManual || m.CompletedAt == nil {
		t.Fatal("expected manual payment to be recorded completed")
	}
}
