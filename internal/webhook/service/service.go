// Package service reconciles external payment processor events with
// payments and invoices. Event ids are deduplicated through a database
// unique constraint; redelivered events become no-ops.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	id "lodger/pkg/domain"
	dErrors "lodger/pkg/domain-errors"
	"lodger/pkg/requestcontext"

	billingmodels "lodger/internal/billing/models"
	"lodger/internal/sentinel"
	webhookmodels "lodger/internal/webhook/models"
)

// Event types the reconciler understands. Anything else is acknowledged
// and ignored so the processor stops redelivering.
const (
	EventCheckoutCompleted = "checkout.session.completed"
	EventPaymentSucceeded  = "payment_intent.succeeded"
	EventPaymentFailed     = "payment_intent.payment_failed"
	EventChargeRefunded    = "charge.refunded"
)

// IncomingEvent is one verified, parsed processor event.
type IncomingEvent struct {
	ID       string
	Type     string
	ObjectID string
	Raw      json.RawMessage
}

// EventStore records processed event ids atomically.
type EventStore interface {
	Record(ctx context.Context, evt *webhookmodels.ProcessedEvent) error
	MarkProcessed(ctx context.Context, eventID string, processedAt time.Time) error
}

// PaymentStore locks and updates payments by their processor session id.
type PaymentStore interface {
	FindByExternalIDForUpdate(ctx context.Context, externalID string) (*billingmodels.Payment, error)
	Update(ctx context.Context, p *billingmodels.Payment) error
}

// InvoiceStore locks and updates the invoices payments settle.
type InvoiceStore interface {
	FindByIDForUpdate(ctx context.Context, invoiceID id.InvoiceID) (*billingmodels.Invoice, error)
	Update(ctx context.Context, inv *billingmodels.Invoice) error
}

// Reconciler applies processor events to local billing state.
type Reconciler struct {
	events   EventStore
	payments PaymentStore
	invoices InvoiceStore
	tx       StoreTx
	metrics  metricsRecorder
	logger   *slog.Logger
}

type metricsRecorder interface {
	IncrementEvent(eventType, outcome string)
}

func New(events EventStore, payments PaymentStore, invoices InvoiceStore, logger *slog.Logger, opts ...Option) *Reconciler {
	cfg := buildConfig(opts)
	r := &Reconciler{
		events:   events,
		payments: payments,
		invoices: invoices,
		tx:       cfg.tx,
		logger:   logger,
	}
	if cfg.metrics != nil {
		r.metrics = cfg.metrics
	}
	return r
}

// Process records the event and applies its effect. A duplicate event id
// is a successful no-op. Once the event is recorded, handler failures are
// logged and swallowed; the processor must not redeliver an event we have
// accepted. Only a failure to record the event itself is returned.
func (r *Reconciler) Process(ctx context.Context, evt *IncomingEvent) error {
	now := requestcontext.Now(ctx)

	err := r.events.Record(ctx, &webhookmodels.ProcessedEvent{
		EventID:    evt.ID,
		EventType:  evt.Type,
		ReceivedAt: now,
		Payload:    evt.Raw,
	})
	if errors.Is(err, sentinel.ErrDuplicate) {
		r.logger.InfoContext(ctx, "duplicate webhook event ignored", "event_id", evt.ID, "event_type", evt.Type)
		r.record(evt.Type, "duplicate")
		return nil
	}
	if err != nil {
		r.record(evt.Type, "record_failed")
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record webhook event")
	}

	if err := r.dispatch(ctx, evt); err != nil {
		// The event is recorded; surfacing an error would trigger a
		// redelivery that the dedup would then drop. Log and move on.
		r.logger.ErrorContext(ctx, "webhook event handling failed",
			"error", err, "event_id", evt.ID, "event_type", evt.Type)
		r.record(evt.Type, "failed")
		return nil
	}

	if err := r.events.MarkProcessed(ctx, evt.ID, requestcontext.Now(ctx)); err != nil {
		r.logger.WarnContext(ctx, "failed to stamp processed event", "error", err, "event_id", evt.ID)
	}
	r.record(evt.Type, "processed")
	return nil
}

func (r *Reconciler) dispatch(ctx context.Context, evt *IncomingEvent) error {
	switch evt.Type {
	case EventCheckoutCompleted, EventPaymentSucceeded:
		return r.settlePayment(ctx, evt)
	case EventPaymentFailed:
		return r.failPayment(ctx, evt)
	case EventChargeRefunded:
		return r.reopenInvoice(ctx, evt)
	default:
		r.logger.InfoContext(ctx, "unhandled webhook event type", "event_id", evt.ID, "event_type", evt.Type)
		return nil
	}
}

// settlePayment completes the payment and settles its invoice in one
// transaction. A payment we do not know is logged and acknowledged; the
// processor's view and ours reconcile when the payment record lands.
func (r *Reconciler) settlePayment(ctx context.Context, evt *IncomingEvent) error {
	return r.tx.RunInTx(ctx, func(txCtx context.Context) error {
		now := requestcontext.Now(txCtx)

		p, err := r.payments.FindByExternalIDForUpdate(txCtx, evt.ObjectID)
		if errors.Is(err, sentinel.ErrNotFound) {
			r.logger.WarnContext(txCtx, "webhook references unknown payment",
				"event_id", evt.ID, "external_id", evt.ObjectID)
			return nil
		}
		if err != nil {
			return err
		}
		if p.Status == billingmodels.PaymentStatusCompleted {
			return nil
		}
		if err := p.Complete(now); err != nil {
			return err
		}
		if err := r.payments.Update(txCtx, p); err != nil {
			return err
		}

		inv, err := r.invoices.FindByIDForUpdate(txCtx, p.InvoiceID)
		if err != nil {
			return err
		}
		if inv.Status == billingmodels.InvoiceStatusPaid {
			return nil
		}
		if err := inv.MarkPaid(now); err != nil {
			return err
		}
		return r.invoices.Update(txCtx, inv)
	})
}

// failPayment fails the payment and returns its invoice to due.
func (r *Reconciler) failPayment(ctx context.Context, evt *IncomingEvent) error {
	return r.tx.RunInTx(ctx, func(txCtx context.Context) error {
		now := requestcontext.Now(txCtx)

		p, err := r.payments.FindByExternalIDForUpdate(txCtx, evt.ObjectID)
		if errors.Is(err, sentinel.ErrNotFound) {
			r.logger.WarnContext(txCtx, "webhook references unknown payment",
				"event_id", evt.ID, "external_id", evt.ObjectID)
			return nil
		}
		if err != nil {
			return err
		}
		if p.Status != billingmodels.PaymentStatusPending {
			return nil
		}
		if err := p.Fail("payment failed at processor", now); err != nil {
			return err
		}
		if err := r.payments.Update(txCtx, p); err != nil {
			return err
		}

		inv, err := r.invoices.FindByIDForUpdate(txCtx, p.InvoiceID)
		if err != nil {
			return err
		}
		if inv.Status != billingmodels.InvoiceStatusProcessing {
			return nil
		}
		return r.updateReopened(txCtx, inv, now)
	})
}

// reopenInvoice handles a refund: the payment stays completed as a
// historical record, but the invoice's obligation reopens.
func (r *Reconciler) reopenInvoice(ctx context.Context, evt *IncomingEvent) error {
	return r.tx.RunInTx(ctx, func(txCtx context.Context) error {
		now := requestcontext.Now(txCtx)

		p, err := r.payments.FindByExternalIDForUpdate(txCtx, evt.ObjectID)
		if errors.Is(err, sentinel.ErrNotFound) {
			r.logger.WarnContext(txCtx, "refund references unknown payment",
				"event_id", evt.ID, "external_id", evt.ObjectID)
			return nil
		}
		if err != nil {
			return err
		}

		inv, err := r.invoices.FindByIDForUpdate(txCtx, p.InvoiceID)
		if err != nil {
			return err
		}
		if inv.Status != billingmodels.InvoiceStatusPaid {
			return nil
		}
		return r.updateReopened(txCtx, inv, now)
	})
}

func (r *Reconciler) updateReopened(ctx context.Context, inv *billingmodels.Invoice, now time.Time) error {
	if err := inv.ReopenToDue(now); err != nil {
		return err
	}
	return r.invoices.Update(ctx, inv)
}

func (r *Reconciler) record(eventType, outcome string) {
	if r.metrics != nil {
		r.metrics.IncrementEvent(eventType, outcome)
	}
}
