package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	id "lodger/pkg/domain"
	dErrors "lodger/pkg/domain-errors"
	"lodger/pkg/requestcontext"

	billingmetrics "lodger/internal/billing/metrics"
	"lodger/internal/billing/models"
	leasemodels "lodger/internal/lease/models"
	"lodger/internal/sentinel"
)

// InvoiceService owns invoice lifecycle: creation against a current
// occupancy, landlord edits, the recurring rent run, and the manual
// cash-payment fallback.
type InvoiceService struct {
	invoices    InvoiceStore
	payments    PaymentStore
	occupancies OccupancyDirectory
	leases      LeaseDirectory
	tx          StoreTx
	metrics     *billingmetrics.Metrics
}

func NewInvoiceService(invoices InvoiceStore, payments PaymentStore, occupancies OccupancyDirectory, leases LeaseDirectory, opts ...Option) *InvoiceService {
	cfg := buildConfig(opts)
	return &InvoiceService{
		invoices:    invoices,
		payments:    payments,
		occupancies: occupancies,
		leases:      leases,
		tx:          cfg.tx,
		metrics:     cfg.metrics,
	}
}

// Create issues an invoice to a tenant with a pending or active occupancy
// on the property. Draft invoices stay hidden from the tenant until issued.
func (s *InvoiceService) Create(ctx context.Context, cmd *CreateInvoiceCommand) (*models.Invoice, error) {
	if cmd.LandlordID.IsNil() || cmd.TenantID.IsNil() || cmd.PropertyID.IsNil() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "landlord, tenant and property are required")
	}

	occ, err := s.occupancies.FindCurrent(ctx, cmd.TenantID, cmd.PropertyID)
	if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load occupancy")
	}
	if occ == nil {
		return nil, dErrors.New(dErrors.CodeValidation, "tenant does not occupy this property")
	}

	now := requestcontext.Now(ctx)
	inv, err := models.NewInvoice(
		id.InvoiceID(uuid.New()), cmd.TenantID, cmd.LandlordID, cmd.PropertyID, cmd.UnitID,
		cmd.Amount, cmd.DueDate, cmd.Description, cmd.Category, cmd.Draft, now,
	)
	if err != nil {
		return nil, err
	}
	if err := s.invoices.Create(ctx, inv); err != nil {
		if errors.Is(err, sentinel.ErrDuplicate) {
			return nil, dErrors.New(dErrors.CodeConflict, "conflicting invoice already exists")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create invoice")
	}

	if s.metrics != nil {
		s.metrics.IncrementInvoiceCreated(string(inv.Category))
	}
	return inv, nil
}

// Update edits a draft or due invoice. Anything a payment has touched is frozen.
func (s *InvoiceService) Update(ctx context.Context, landlordID id.UserID, invoiceID id.InvoiceID, cmd *UpdateInvoiceCommand) (*models.Invoice, error) {
	var invoice *models.Invoice
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		now := requestcontext.Now(txCtx)

		inv, err := s.lockInvoice(txCtx, invoiceID)
		if err != nil {
			return err
		}
		if inv.LandlordID != landlordID {
			return dErrors.New(dErrors.CodeForbidden, "invoice belongs to a different landlord")
		}
		if !inv.IsEditable() {
			return dErrors.New(dErrors.CodeInvalidState, "invoice is no longer editable")
		}

		if cmd.Amount != nil {
			if !cmd.Amount.IsPositive() {
				return dErrors.New(dErrors.CodeValidation, "invoice amount must be positive")
			}
			inv.Amount = *cmd.Amount
		}
		if cmd.DueDate != nil {
			if cmd.DueDate.IsZero() {
				return dErrors.New(dErrors.CodeValidation, "invoice due date is required")
			}
			inv.DueDate = *cmd.DueDate
		}
		if cmd.Description != nil {
			inv.Description = *cmd.Description
		}
		if cmd.Issue {
			if err := inv.Issue(now); err != nil {
				return err
			}
		}
		inv.UpdatedAt = now

		if err := s.invoices.Update(txCtx, inv); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update invoice")
		}
		invoice = inv
		return nil
	})
	if err != nil {
		return nil, err
	}
	return invoice, nil
}

// Delete removes a draft or due invoice.
func (s *InvoiceService) Delete(ctx context.Context, landlordID id.UserID, invoiceID id.InvoiceID) error {
	return s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		inv, err := s.lockInvoice(txCtx, invoiceID)
		if err != nil {
			return err
		}
		if inv.LandlordID != landlordID {
			return dErrors.New(dErrors.CodeForbidden, "invoice belongs to a different landlord")
		}
		if !inv.IsEditable() {
			return dErrors.New(dErrors.CodeInvalidState, "invoice is no longer deletable")
		}
		if err := s.invoices.Delete(txCtx, inv.ID); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete invoice")
		}
		return nil
	})
}

// GenerateRecurring issues next month's rent invoice for every active
// lease of the landlord. The run is idempotent per billing period: leases
// already invoiced land in Skipped, and each lease commits independently
// so one failure never blocks the batch.
func (s *InvoiceService) GenerateRecurring(ctx context.Context, landlordID id.UserID, month time.Month, year int) (*GenerationResult, error) {
	if month < time.January || month > time.December {
		return nil, dErrors.New(dErrors.CodeValidation, "month must be between 1 and 12")
	}
	if year < 2000 || year > 2200 {
		return nil, dErrors.New(dErrors.CodeValidation, "year is out of range")
	}

	leases, err := s.leases.ListActiveByLandlord(ctx, landlordID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list active leases")
	}

	// Rent for a period falls due on the first of the following month.
	dueDate := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
	period := fmt.Sprintf("%s %d", month, year)

	result := &GenerationResult{Created: []*models.Invoice{}, Skipped: []SkippedInvoice{}}
	for _, lease := range leases {
		inv, err := s.generateForLease(ctx, lease, dueDate, period)
		switch {
		case err == nil && inv == nil:
			result.Skipped = append(result.Skipped, SkippedInvoice{
				LeaseID:  lease.ID,
				TenantID: lease.TenantID,
				Reason:   "rent already invoiced for " + period,
			})
		case err != nil:
			result.Skipped = append(result.Skipped, SkippedInvoice{
				LeaseID:  lease.ID,
				TenantID: lease.TenantID,
				Reason:   "generation failed: " + err.Error(),
			})
		default:
			result.Created = append(result.Created, inv)
			if s.metrics != nil {
				s.metrics.IncrementInvoiceCreated(string(models.CategoryRent))
			}
		}
	}
	return result, nil
}

// generateForLease creates one rent invoice in its own transaction.
// Returns (nil, nil) when the period is already invoiced.
func (s *InvoiceService) generateForLease(ctx context.Context, lease *leasemodels.Lease, dueDate time.Time, period string) (*models.Invoice, error) {
	var invoice *models.Invoice
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		now := requestcontext.Now(txCtx)

		_, err := s.invoices.FindRentForPeriod(txCtx, lease.TenantID, lease.PropertyID, dueDate)
		if err == nil {
			return nil
		}
		if !errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check existing invoice")
		}

		inv, err := models.NewInvoice(
			id.InvoiceID(uuid.New()), lease.TenantID, lease.LandlordID, lease.PropertyID, lease.UnitID,
			lease.RentAmount, dueDate, "Rent for "+period, models.CategoryRent, false, now,
		)
		if err != nil {
			return err
		}
		leaseID := lease.ID
		inv.LeaseID = &leaseID

		if err := s.invoices.Create(txCtx, inv); err != nil {
			// A concurrent run won the period; treat it as already invoiced.
			if errors.Is(err, sentinel.ErrDuplicate) {
				return nil
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create invoice")
		}
		invoice = inv
		return nil
	})
	if err != nil {
		return nil, err
	}
	return invoice, nil
}

// MarkPaidManually settles a due invoice with a completed manual payment,
// atomically. The cash-in-hand fallback when no card payment happens.
func (s *InvoiceService) MarkPaidManually(ctx context.Context, landlordID id.UserID, invoiceID id.InvoiceID) (*models.Invoice, error) {
	var invoice *models.Invoice
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		now := requestcontext.Now(txCtx)

		inv, err := s.lockInvoice(txCtx, invoiceID)
		if err != nil {
			return err
		}
		if inv.LandlordID != landlordID {
			return dErrors.New(dErrors.CodeForbidden, "invoice belongs to a different landlord")
		}
		if err := inv.MarkPaid(now); err != nil {
			return err
		}

		p := models.NewManualPayment(id.PaymentID(uuid.New()), inv, now)
		if err := s.payments.Create(txCtx, p); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record manual payment")
		}
		if err := s.invoices.Update(txCtx, inv); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update invoice")
		}
		invoice = inv
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.IncrementPaymentSettled("manual")
	}
	return invoice, nil
}

// Get returns the invoice by id.
func (s *InvoiceService) Get(ctx context.Context, invoiceID id.InvoiceID) (*models.Invoice, error) {
	inv, err := s.invoices.FindByID(ctx, invoiceID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "invoice not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load invoice")
	}
	return inv, nil
}

// ListForTenant returns the tenant's invoices. Drafts stay hidden.
func (s *InvoiceService) ListForTenant(ctx context.Context, tenantID id.UserID) ([]*models.Invoice, error) {
	all, err := s.invoices.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list invoices")
	}
	out := make([]*models.Invoice, 0, len(all))
	for _, inv := range all {
		if inv.Status != models.InvoiceStatusDraft {
			out = append(out, inv)
		}
	}
	return out, nil
}

// ListForLandlord returns all invoices issued by the landlord.
func (s *InvoiceService) ListForLandlord(ctx context.Context, landlordID id.UserID) ([]*models.Invoice, error) {
	out, err := s.invoices.ListByLandlord(ctx, landlordID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list invoices")
	}
	return out, nil
}

// ListAll returns every invoice. Admin surface.
func (s *InvoiceService) ListAll(ctx context.Context) ([]*models.Invoice, error) {
	out, err := s.invoices.ListAll(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list invoices")
	}
	return out, nil
}

func (s *InvoiceService) lockInvoice(ctx context.Context, invoiceID id.InvoiceID) (*models.Invoice, error) {
	inv, err := s.invoices.FindByIDForUpdate(ctx, invoiceID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "invoice not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load invoice")
	}
	return inv, nil
}
