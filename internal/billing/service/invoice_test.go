package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	id "lodger/pkg/domain"
	dErrors "lodger/pkg/domain-errors"

	"lodger/internal/billing/models"
	invoicestore "lodger/internal/billing/store/invoice"
	paymentstore "lodger/internal/billing/store/payment"
	leasemodels "lodger/internal/lease/models"
	leasestore "lodger/internal/lease/store/lease"
	occupancystore "lodger/internal/lease/store/occupancy"
)

type billingFixture struct {
	invoices    *invoicestore.InMemory
	payments    *paymentstore.InMemory
	leases      *leasestore.InMemory
	occupancies *occupancystore.InMemory
	svc         *InvoiceService

	landlordID id.UserID
	tenantID   id.UserID
	propertyID id.PropertyID
}

func newBillingFixture(t *testing.T) *billingFixture {
	t.Helper()
	f := &billingFixture{
		invoices:    invoicestore.NewInMemory(),
		payments:    paymentstore.NewInMemory(),
		leases:      leasestore.NewInMemory(),
		occupancies: occupancystore.NewInMemory(),
		landlordID:  id.UserID(uuid.New()),
		tenantID:    id.UserID(uuid.New()),
		propertyID:  id.PropertyID(uuid.New()),
	}
	f.svc = NewInvoiceService(f.invoices, f.payments, f.occupancies, f.leases)
	return f
}

// seedOccupancy records an active occupancy so invoices may target the tenant.
func (f *billingFixture) seedOccupancy(t *testing.T) {
	t.Helper()
	now := time.Now().UTC()
	err := f.occupancies.Create(context.Background(), &leasemodels.Occupancy{
		ID:         id.OccupancyID(uuid.New()),
		TenantID:   f.tenantID,
		PropertyID: f.propertyID,
		RentAmount: decimal.NewFromInt(1000),
		Status:     leasemodels.OccupancyStatusActive,
		StartDate:  now.AddDate(0, -1, 0),
		CreatedAt:  now,
		UpdatedAt:  now,
	})
	if err != nil {
		t.Fatalf("seed occupancy: %v", err)
	}
}

// seedActiveLease records an active lease for the recurring run.
func (f *billingFixture) seedActiveLease(t *testing.T, tenantID id.UserID, rent int64) *leasemodels.Lease {
	t.Helper()
	now := time.Now().UTC()
	l, err := leasemodels.NewLease(
		id.LeaseID(uuid.New()), tenantID, f.landlordID, f.propertyID, nil,
		now.AddDate(0, -1, 0), now.AddDate(1, 0, 0),
		decimal.NewFromInt(rent), decimal.NewFromInt(rent), "seeded", now,
	)
	if err != nil {
		t.Fatalf("seed lease: %v", err)
	}
	if err := l.Accept(now); err != nil {
		t.Fatalf("activate seeded lease: %v", err)
	}
	if err := f.leases.Create(context.Background(), l); err != nil {
		t.Fatalf("store seeded lease: %v", err)
	}
	return l
}

func (f *billingFixture) createCommand() *CreateInvoiceCommand {
	return &CreateInvoiceCommand{
		LandlordID:  f.landlordID,
		TenantID:    f.tenantID,
		PropertyID:  f.propertyID,
		Amount:      decimal.NewFromInt(150),
		DueDate:     time.Now().UTC().AddDate(0, 0, 14),
		Description: "water damage repair",
		Category:    models.CategoryOther,
	}
}

func (f *billingFixture) mustCreate(t *testing.T) *models.Invoice {
	t.Helper()
	inv, err := f.svc.Create(context.Background(), f.createCommand())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return inv
}

func assertCode(t *testing.T, err error, code dErrors.Code) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error with code %s, got nil", code)
	}
	if !dErrors.HasCode(err, code) {
		t.Fatalf("expected code %s, got: %v", code, err)
	}
}

func TestCreateInvoice(t *testing.T) {
	f := newBillingFixture(t)
	f.seedOccupancy(t)

	inv := f.mustCreate(t)
	if inv.Status != models.InvoiceStatusDue {
		t.Fatalf("expected due invoice, got %s", inv.Status)
	}
}

func TestCreateInvoiceRequiresOccupancy(t *testing.T) {
	f := newBillingFixture(t)

	_, err := f.svc.Create(context.Background(), f.createCommand())
	assertCode(t, err, dErrors.CodeValidation)
}

func TestCreateDraftInvoiceHiddenFromTenant(t *testing.T) {
	f := newBillingFixture(t)
	f.seedOccupancy(t)
	ctx := context.Background()

	cmd := f.createCommand()
	cmd.Draft = true
	draft, err := f.svc.Create(ctx, cmd)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if draft.Status != models.InvoiceStatusDraft {
		t.Fatalf("expected draft, got %s", draft.Status)
	}

	tenantView, err := f.svc.ListForTenant(ctx, f.tenantID)
	if err != nil {
		t.Fatalf("ListForTenant: %v", err)
	}
	if len(tenantView) != 0 {
		t.Fatalf("expected draft hidden from tenant, got %d invoices", len(tenantView))
	}

	landlordView, err := f.svc.ListForLandlord(ctx, f.landlordID)
	if err != nil {
		t.Fatalf("ListForLandlord: %v", err)
	}
	if len(landlordView) != 1 {
		t.Fatalf("expected landlord to see the draft, got %d invoices", len(landlordView))
	}
}

func TestUpdateInvoice(t *testing.T) {
	f := newBillingFixture(t)
	f.seedOccupancy(t)
	ctx := context.Background()

	inv := f.mustCreate(t)
	amount := decimal.NewFromInt(200)
	updated, err := f.svc.Update(ctx, f.landlordID, inv.ID, &UpdateInvoiceCommand{Amount: &amount})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if !updated.Amount.Equal(amount) {
		t.Fatalf("expected updated amount, got %s", updated.Amount)
	}
}

func TestUpdateInvoiceWrongLandlord(t *testing.T) {
	f := newBillingFixture(t)
	f.seedOccupancy(t)

	inv := f.mustCreate(t)
	amount := decimal.NewFromInt(200)
	_, err := f.svc.Update(context.Background(), id.UserID(uuid.New()), inv.ID, &UpdateInvoiceCommand{Amount: &amount})
	assertCode(t, err, dErrors.CodeForbidden)
}

func TestIssueDraftInvoice(t *testing.T) {
	f := newBillingFixture(t)
	f.seedOccupancy(t)
	ctx := context.Background()

	cmd := f.createCommand()
	cmd.Draft = true
	draft, err := f.svc.Create(ctx, cmd)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	issued, err := f.svc.Update(ctx, f.landlordID, draft.ID, &UpdateInvoiceCommand{Issue: true})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if issued.Status != models.InvoiceStatusDue {
		t.Fatalf("expected due after issue, got %s", issued.Status)
	}
}

func TestDeleteInvoice(t *testing.T) {
	f := newBillingFixture(t)
	f.seedOccupancy(t)
	ctx := context.Background()

	inv := f.mustCreate(t)
	if err := f.svc.Delete(ctx, f.landlordID, inv.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	_, err := f.svc.Get(ctx, inv.ID)
	assertCode(t, err, dErrors.CodeNotFound)
}

func TestDeletePaidInvoiceRejected(t *testing.T) {
	f := newBillingFixture(t)
	f.seedOccupancy(t)
	ctx := context.Background()

	inv := f.mustCreate(t)
	if _, err := f.svc.MarkPaidManually(ctx, f.landlordID, inv.ID); err != nil {
		t.Fatalf("MarkPaidManually: %v", err)
	}
	err := f.svc.Delete(ctx, f.landlordID, inv.ID)
	assertCode(t, err, dErrors.CodeInvalidState)
}

func TestMarkPaidManually(t *testing.T) {
	f := newBillingFixture(t)
	f.seedOccupancy(t)
	ctx := context.Background()

	inv := f.mustCreate(t)
	paid, err := f.svc.MarkPaidManually(ctx, f.landlordID, inv.ID)
	if err != nil {
		t.Fatalf("MarkPaidManually: %v", err)
	}
	if paid.Status != models.InvoiceStatusPaid || paid.PaidDate == nil {
		t.Fatal("expected paid invoice with paid date")
	}

	payments, err := f.payments.ListByTenant(ctx, f.tenantID)
	if err != nil {
		t.Fatalf("ListByTenant: %v", err)
	}
	if len(payments) != 1 {
		t.Fatalf("expected one manual payment, got %d", len(payments))
	}
	p := payments[0]
	if p.Method != models.MethodManual || p.Status != models.PaymentStatusCompleted {
		t.Fatalf("expected completed manual payment, got %s/%s", p.Method, p.Status)
	}
	if !p.Amount.Equal(inv.Amount) {
		t.Fatalf("expected payment amount %s, got %s", inv.Amount, p.Amount)
	}

	// Settled invoices cannot be settled twice.
	_, err = f.svc.MarkPaidManually(ctx, f.landlordID, inv.ID)
	assertCode(t, err, dErrors.CodeInvalidState)
}

func TestGenerateRecurring(t *testing.T) {
	f := newBillingFixture(t)
	ctx := context.Background()

	f.seedActiveLease(t, f.tenantID, 1200)
	otherTenant := id.UserID(uuid.New())
	f.seedActiveLease(t, otherTenant, 950)

	result, err := f.svc.GenerateRecurring(ctx, f.landlordID, time.March, 2026)
	if err != nil {
		t.Fatalf("GenerateRecurring: %v", err)
	}
	if len(result.Created) != 2 || len(result.Skipped) != 0 {
		t.Fatalf("expected 2 created and 0 skipped, got %d/%d", len(result.Created), len(result.Skipped))
	}

	wantDue := time.Date(2026, time.April, 1, 0, 0, 0, 0, time.UTC)
	for _, inv := range result.Created {
		if !inv.DueDate.Equal(wantDue) {
			t.Fatalf("expected due date %s, got %s", wantDue, inv.DueDate)
		}
		if inv.Category != models.CategoryRent || inv.Status != models.InvoiceStatusDue {
			t.Fatalf("expected due rent invoice, got %s/%s", inv.Category, inv.Status)
		}
		if inv.LeaseID == nil {
			t.Fatal("expected invoice to reference its lease")
		}
	}

	// Second run for the same period creates nothing.
	again, err := f.svc.GenerateRecurring(ctx, f.landlordID, time.March, 2026)
	if err != nil {
		t.Fatalf("GenerateRecurring: %v", err)
	}
	if len(again.Created) != 0 || len(again.Skipped) != 2 {
		t.Fatalf("expected idempotent rerun, got %d created %d skipped", len(again.Created), len(again.Skipped))
	}

	// A different period invoices again.
	next, err := f.svc.GenerateRecurring(ctx, f.landlordID, time.April, 2026)
	if err != nil {
		t.Fatalf("GenerateRecurring: %v", err)
	}
	if len(next.Created) != 2 {
		t.Fatalf("expected new period to invoice, got %d created", len(next.Created))
	}
}

func TestGenerateRecurringDecemberRollsYear(t *testing.T) {
	f := newBillingFixture(t)
	f.seedActiveLease(t, f.tenantID, 1200)

	result, err := f.svc.GenerateRecurring(context.Background(), f.landlordID, time.December, 2026)
	if err != nil {
		t.Fatalf("GenerateRecurring: %v", err)
	}
	wantDue := time.Date(2027, time.January, 1, 0, 0, 0, 0, time.UTC)
	if len(result.Created) != 1 || !result.Created[0].DueDate.Equal(wantDue) {
		t.Fatalf("expected due date %s, got %+v", wantDue, result.Created)
	}
}

func TestGenerateRecurringValidation(t *testing.T) {
	f := newBillingFixture(t)

	_, err := f.svc.GenerateRecurring(context.Background(), f.landlordID, time.Month(13), 2026)
	assertCode(t, err, dErrors.CodeValidation)
}
