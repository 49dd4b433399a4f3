package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	id "lodger/pkg/domain"
	dErrors "lodger/pkg/domain-errors"
	"lodger/pkg/requestcontext"

	billingmetrics "lodger/internal/billing/metrics"
	"lodger/internal/billing/models"
	"lodger/internal/billing/processor"
	"lodger/internal/sentinel"
)

// PaymentService initiates checkout sessions against the external payment
// processor. Settlement happens through webhooks, never here.
type PaymentService struct {
	invoices  InvoiceStore
	payments  PaymentStore
	processor processor.Processor
	tx        StoreTx
	metrics   *billingmetrics.Metrics
	logger    *slog.Logger
}

func NewPaymentService(invoices InvoiceStore, payments PaymentStore, proc processor.Processor, logger *slog.Logger, opts ...Option) *PaymentService {
	cfg := buildConfig(opts)
	return &PaymentService{
		invoices:  invoices,
		payments:  payments,
		processor: proc,
		tx:        cfg.tx,
		metrics:   cfg.metrics,
		logger:    logger,
	}
}

// Initiate opens (or reuses) a checkout session for the tenant's invoice.
// A pending payment with a still-valid session is returned as-is; a stale
// session is expired and replaced. The processor call happens outside any
// database transaction, so a processor failure leaves the invoice payable.
func (s *PaymentService) Initiate(ctx context.Context, tenantID id.UserID, invoiceID id.InvoiceID) (*models.Payment, error) {
	now := requestcontext.Now(ctx)

	inv, err := s.invoices.FindByID(ctx, invoiceID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "invoice not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load invoice")
	}
	if inv.TenantID != tenantID {
		return nil, dErrors.New(dErrors.CodeForbidden, "invoice belongs to a different tenant")
	}
	if inv.Status != models.InvoiceStatusDue && inv.Status != models.InvoiceStatusProcessing {
		return nil, dErrors.New(dErrors.CodeInvalidState, "invoice is not payable")
	}

	existing, err := s.payments.FindPendingByInvoice(ctx, invoiceID)
	if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load pending payment")
	}
	if existing != nil && existing.SessionValid(now) {
		if s.metrics != nil {
			s.metrics.IncrementSessionReused()
		}
		return existing, nil
	}
	if existing != nil {
		s.retireStalePayment(ctx, existing)
	}

	// Processor call stays outside the transaction below.
	session, err := s.processor.CreateCheckoutSession(ctx, processor.CheckoutParams{
		InvoiceID:   inv.ID,
		TenantID:    inv.TenantID,
		Amount:      inv.Amount,
		Description: inv.Description,
	})
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeExternal) {
			return nil, err
		}
		return nil, dErrors.Wrap(err, dErrors.CodeExternal, "payment processor call failed")
	}

	var payment *models.Payment
	var orphanSessionID string
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		txNow := requestcontext.Now(txCtx)

		locked, err := s.invoices.FindByIDForUpdate(txCtx, invoiceID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "invoice not found")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load invoice")
		}
		if locked.Status != models.InvoiceStatusDue && locked.Status != models.InvoiceStatusProcessing {
			return dErrors.New(dErrors.CodeInvalidState, "invoice is not payable")
		}

		// A concurrent Initiate may have inserted a pending payment between
		// the pre-transaction lookup and this point; the invoice row lock
		// serializes us behind it. Reuse its session and discard ours.
		pending, err := s.payments.FindPendingByInvoice(txCtx, invoiceID)
		if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load pending payment")
		}
		if pending != nil {
			if pending.SessionValid(txNow) {
				payment = pending
				orphanSessionID = session.ID
				return nil
			}
			if err := pending.Fail("checkout session expired", txNow); err != nil {
				return err
			}
			if err := s.payments.Update(txCtx, pending); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to retire stale payment")
			}
		}

		expiresAt := session.ExpiresAt
		p := models.NewCardPayment(id.PaymentID(uuid.New()), locked, session.ID, session.URL, &expiresAt, txNow)
		if err := s.payments.Create(txCtx, p); err != nil {
			if errors.Is(err, sentinel.ErrDuplicate) {
				return dErrors.New(dErrors.CodeConflict, "payment for this session already exists")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record payment")
		}
		if locked.Status == models.InvoiceStatusDue {
			if err := locked.MarkProcessing(txNow); err != nil {
				return err
			}
			if err := s.invoices.Update(txCtx, locked); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update invoice")
			}
		}
		payment = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	if orphanSessionID != "" {
		if err := s.processor.ExpireSession(ctx, orphanSessionID); err != nil {
			s.logger.WarnContext(ctx, "failed to expire orphaned checkout session",
				"error", err, "external_id", orphanSessionID)
		}
		if s.metrics != nil {
			s.metrics.IncrementSessionReused()
		}
		return payment, nil
	}

	if s.metrics != nil {
		s.metrics.IncrementPaymentInitiated()
	}
	return payment, nil
}

// retireStalePayment expires the processor session (best effort) and marks
// the stale pending payment failed so it stops matching future lookups.
func (s *PaymentService) retireStalePayment(ctx context.Context, stale *models.Payment) {
	if stale.ExternalID != "" {
		if err := s.processor.ExpireSession(ctx, stale.ExternalID); err != nil {
			s.logger.WarnContext(ctx, "failed to expire stale checkout session",
				"error", err, "payment_id", stale.ID, "external_id", stale.ExternalID)
		}
	}
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := stale.Fail("checkout session expired", requestcontext.Now(txCtx)); err != nil {
			return err
		}
		return s.payments.Update(txCtx, stale)
	})
	if err != nil {
		s.logger.WarnContext(ctx, "failed to retire stale payment",
			"error", err, "payment_id", stale.ID)
	}
}

// Get returns the payment by id.
func (s *PaymentService) Get(ctx context.Context, paymentID id.PaymentID) (*models.Payment, error) {
	p, err := s.payments.FindByID(ctx, paymentID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "payment not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load payment")
	}
	return p, nil
}

// HistoryForTenant returns the tenant's payments, newest first.
func (s *PaymentService) HistoryForTenant(ctx context.Context, tenantID id.UserID) ([]*models.Payment, error) {
	out, err := s.payments.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list payments")
	}
	return out, nil
}

// HistoryForLandlord returns payments against the landlord's invoices.
func (s *PaymentService) HistoryForLandlord(ctx context.Context, landlordID id.UserID) ([]*models.Payment, error) {
	out, err := s.payments.ListByLandlord(ctx, landlordID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list payments")
	}
	return out, nil
}
