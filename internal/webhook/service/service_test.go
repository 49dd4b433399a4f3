package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	id "lodger/pkg/domain"

	billingmodels "lodger/internal/billing/models"
	invoicestore "lodger/internal/billing/store/invoice"
	paymentstore "lodger/internal/billing/store/payment"
	eventstore "lodger/internal/webhook/store/event"
)

type reconcilerFixture struct {
	events   *eventstore.InMemory
	invoices *invoicestore.InMemory
	payments *paymentstore.InMemory
	svc      *Reconciler

	tenantID   id.UserID
	landlordID id.UserID
}

func newReconcilerFixture(t *testing.T) *reconcilerFixture {
	t.Helper()
	f := &reconcilerFixture{
		events:     eventstore.NewInMemory(),
		invoices:   invoicestore.NewInMemory(),
		payments:   paymentstore.NewInMemory(),
		tenantID:   id.UserID(uuid.New()),
		landlordID: id.UserID(uuid.New()),
	}
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	f.svc = New(f.events, f.payments, f.invoices, logger)
	return f
}

// seedProcessing creates a due invoice with a pending card payment and
// flips the invoice to processing, mirroring a completed checkout start.
func (f *reconcilerFixture) seedProcessing(t *testing.T, externalID string) (*billingmodels.Invoice, *billingmodels.Payment) {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC()

	inv, err := billingmodels.NewInvoice(
		id.InvoiceID(uuid.New()), f.tenantID, f.landlordID, id.PropertyID(uuid.New()), nil,
		decimal.NewFromInt(1400), now.AddDate(0, 0, 7), "Rent", billingmodels.CategoryRent, false, now)
	if err != nil {
		t.Fatalf("NewInvoice: %v", err)
	}
	if err := f.invoices.Create(ctx, inv); err != nil {
		t.Fatalf("create invoice: %v", err)
	}

	expires := now.Add(24 * time.Hour)
	p := billingmodels.NewCardPayment(id.PaymentID(uuid.New()), inv, externalID,
		"https://checkout.example/"+externalID, &expires, now)
	if err := f.payments.Create(ctx, p); err != nil {
		t.Fatalf("create payment: %v", err)
	}

	if err := inv.MarkProcessing(now); err != nil {
		t.Fatalf("MarkProcessing: %v", err)
	}
	if err := f.invoices.Update(ctx, inv); err != nil {
		t.Fatalf("update invoice: %v", err)
	}
	return inv, p
}

func completedEvent(eventID, sessionID string) *IncomingEvent {
	raw := json.RawMessage(fmt.Sprintf(
		`{"id":%q,"type":%q,"data":{"object":{"id":%q}}}`, eventID, EventCheckoutCompleted, sessionID))
	return &IncomingEvent{ID: eventID, Type: EventCheckoutCompleted, ObjectID: sessionID, Raw: raw}
}

func TestSettlePayment(t *testing.T) {
	f := newReconcilerFixture(t)
	ctx := context.Background()

	inv, p := f.seedProcessing(t, "cs_live_001")

	if err := f.svc.Process(ctx, completedEvent("evt_001", "cs_live_001")); err != nil {
		t.Fatalf("Process: %v", err)
	}

	got, err := f.payments.FindByID(ctx, p.ID)
	if err != nil {
		t.Fatalf("find payment: %v", err)
	}
	if got.Status != billingmodels.PaymentStatusCompleted || got.CompletedAt == nil {
		t.Fatalf("expected completed payment, got %s", got.Status)
	}

	gotInv, err := f.invoices.FindByID(ctx, inv.ID)
	if err != nil {
		t.Fatalf("find invoice: %v", err)
	}
	if gotInv.Status != billingmodels.InvoiceStatusPaid || gotInv.PaidDate == nil {
		t.Fatalf("expected paid invoice, got %s", gotInv.Status)
	}

	rec, err := f.events.Find(ctx, "evt_001")
	if err != nil {
		t.Fatalf("find event: %v", err)
	}
	if rec.ProcessedAt == nil {
		t.Fatal("expected event stamped as processed")
	}
}

func TestSettlePaymentRedelivery(t *testing.T) {
	f := newReconcilerFixture(t)
	ctx := context.Background()

	inv, p := f.seedProcessing(t, "cs_live_002")

	// The processor retries until acknowledged; every delivery of the
	// same event must land on the same final state.
	for i := 0; i < 5; i++ {
		if err := f.svc.Process(ctx, completedEvent("evt_002", "cs_live_002")); err != nil {
			t.Fatalf("Process delivery %d: %v", i+1, err)
		}
	}

	got, err := f.payments.FindByID(ctx, p.ID)
	if err != nil {
		t.Fatalf("find payment: %v", err)
	}
	first := got.CompletedAt
	if got.Status != billingmodels.PaymentStatusCompleted || first == nil {
		t.Fatalf("expected completed payment, got %s", got.Status)
	}

	gotInv, err := f.invoices.FindByID(ctx, inv.ID)
	if err != nil {
		t.Fatalf("find invoice: %v", err)
	}
	if gotInv.Status != billingmodels.InvoiceStatusPaid {
		t.Fatalf("expected paid invoice, got %s", gotInv.Status)
	}
}

func TestSettleAlreadyCompletedPayment(t *testing.T) {
	f := newReconcilerFixture(t)
	ctx := context.Background()

	inv, _ := f.seedProcessing(t, "cs_live_003")

	if err := f.svc.Process(ctx, completedEvent("evt_003", "cs_live_003")); err != nil {
		t.Fatalf("Process: %v", err)
	}
	// A distinct event for the same session arrives later, e.g. the
	// payment_intent.succeeded after checkout.session.completed.
	evt := &IncomingEvent{
		ID: "evt_004", Type: EventPaymentSucceeded, ObjectID: "cs_live_003",
		Raw: json.RawMessage(`{"id":"evt_004"}`),
	}
	if err := f.svc.Process(ctx, evt); err != nil {
		t.Fatalf("Process second event: %v", err)
	}

	gotInv, err := f.invoices.FindByID(ctx, inv.ID)
	if err != nil {
		t.Fatalf("find invoice: %v", err)
	}
	if gotInv.Status != billingmodels.InvoiceStatusPaid {
		t.Fatalf("expected invoice to stay paid, got %s", gotInv.Status)
	}
}

func TestSettleUnknownPayment(t *testing.T) {
	f := newReconcilerFixture(t)
	ctx := context.Background()

	if err := f.svc.Process(ctx, completedEvent("evt_005", "cs_unknown")); err != nil {
		t.Fatalf("expected unknown payment to be acknowledged, got %v", err)
	}
	if _, err := f.events.Find(ctx, "evt_005"); err != nil {
		t.Fatalf("expected event recorded despite unknown payment: %v", err)
	}
}

func TestFailPaymentReopensInvoice(t *testing.T) {
	f := newReconcilerFixture(t)
	ctx := context.Background()

	inv, p := f.seedProcessing(t, "cs_live_006")

	evt := &IncomingEvent{
		ID: "evt_006", Type: EventPaymentFailed, ObjectID: "cs_live_006",
		Raw: json.RawMessage(`{"id":"evt_006"}`),
	}
	if err := f.svc.Process(ctx, evt); err != nil {
		t.Fatalf("Process: %v", err)
	}

	got, err := f.payments.FindByID(ctx, p.ID)
	if err != nil {
		t.Fatalf("find payment: %v", err)
	}
	if got.Status != billingmodels.PaymentStatusFailed || got.FailureReason == "" {
		t.Fatalf("expected failed payment with reason, got %s", got.Status)
	}

	gotInv, err := f.invoices.FindByID(ctx, inv.ID)
	if err != nil {
		t.Fatalf("find invoice: %v", err)
	}
	if gotInv.Status != billingmodels.InvoiceStatusDue {
		t.Fatalf("expected invoice reopened to due, got %s", gotInv.Status)
	}
}

func TestRefundReopensInvoice(t *testing.T) {
	f := newReconcilerFixture(t)
	ctx := context.Background()

	inv, p := f.seedProcessing(t, "cs_live_007")
	if err := f.svc.Process(ctx, completedEvent("evt_007", "cs_live_007")); err != nil {
		t.Fatalf("settle: %v", err)
	}

	evt := &IncomingEvent{
		ID: "evt_008", Type: EventChargeRefunded, ObjectID: "cs_live_007",
		Raw: json.RawMessage(`{"id":"evt_008"}`),
	}
	if err := f.svc.Process(ctx, evt); err != nil {
		t.Fatalf("Process refund: %v", err)
	}

	// The payment remains completed as the historical record of the
	// charge; only the invoice's obligation reopens.
	got, err := f.payments.FindByID(ctx, p.ID)
	if err != nil {
		t.Fatalf("find payment: %v", err)
	}
	if got.Status != billingmodels.PaymentStatusCompleted {
		t.Fatalf("expected payment to stay completed, got %s", got.Status)
	}

	gotInv, err := f.invoices.FindByID(ctx, inv.ID)
	if err != nil {
		t.Fatalf("find invoice: %v", err)
	}
	if gotInv.Status != billingmodels.InvoiceStatusDue || gotInv.PaidDate != nil {
		t.Fatalf("expected invoice reopened to due, got %s", gotInv.Status)
	}
}

func TestUnknownEventTypeAcknowledged(t *testing.T) {
	f := newReconcilerFixture(t)
	ctx := context.Background()

	evt := &IncomingEvent{
		ID: "evt_009", Type: "customer.created", ObjectID: "cus_001",
		Raw: json.RawMessage(`{"id":"evt_009"}`),
	}
	if err := f.svc.Process(ctx, evt); err != nil {
		t.Fatalf("expected unhandled type to be acknowledged, got %v", err)
	}
	if _, err := f.events.Find(ctx, "evt_009"); err != nil {
		t.Fatalf("expected event recorded: %v", err)
	}
}
