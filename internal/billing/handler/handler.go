package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	id "lodger/pkg/domain"
	dErrors "lodger/pkg/domain-errors"
	"lodger/pkg/platform/httputil"
	"lodger/pkg/requestcontext"

	"lodger/internal/billing/models"
	"lodger/internal/billing/service"
	"lodger/internal/platform/middleware"
)

// InvoiceService defines the invoice operations the handler exposes.
type InvoiceService interface {
	Create(ctx context.Context, cmd *service.CreateInvoiceCommand) (*models.Invoice, error)
	Update(ctx context.Context, landlordID id.UserID, invoiceID id.InvoiceID, cmd *service.UpdateInvoiceCommand) (*models.Invoice, error)
	Delete(ctx context.Context, landlordID id.UserID, invoiceID id.InvoiceID) error
	GenerateRecurring(ctx context.Context, landlordID id.UserID, month time.Month, year int) (*service.GenerationResult, error)
	MarkPaidManually(ctx context.Context, landlordID id.UserID, invoiceID id.InvoiceID) (*models.Invoice, error)
	Get(ctx context.Context, invoiceID id.InvoiceID) (*models.Invoice, error)
	ListForTenant(ctx context.Context, tenantID id.UserID) ([]*models.Invoice, error)
	ListForLandlord(ctx context.Context, landlordID id.UserID) ([]*models.Invoice, error)
	ListAll(ctx context.Context) ([]*models.Invoice, error)
}

// PaymentService defines the payment operations the handler exposes.
type PaymentService interface {
	Initiate(ctx context.Context, tenantID id.UserID, invoiceID id.InvoiceID) (*models.Payment, error)
	HistoryForTenant(ctx context.Context, tenantID id.UserID) ([]*models.Payment, error)
	HistoryForLandlord(ctx context.Context, landlordID id.UserID) ([]*models.Payment, error)
}

type Handler struct {
	invoices InvoiceService
	payments PaymentService
	logger   *slog.Logger
}

func New(invoices InvoiceService, payments PaymentService, logger *slog.Logger) *Handler {
	return &Handler{invoices: invoices, payments: payments, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/billing/invoices", h.HandleCreateInvoice)
	r.Get("/billing/invoices", h.HandleListInvoices)
	r.Get("/billing/invoices/{id}", h.HandleGetInvoice)
	r.Put("/billing/invoices/{id}", h.HandleUpdateInvoice)
	r.Delete("/billing/invoices/{id}", h.HandleDeleteInvoice)
	r.Post("/billing/invoices/generate", h.HandleGenerateInvoices)
	r.Post("/billing/invoices/{id}/mark-paid", h.HandleMarkPaid)
	r.Post("/billing/payments/initiate", h.HandleInitiatePayment)
	r.Get("/billing/payments", h.HandleListPayments)
}

// HandleCreateInvoice issues an invoice to an occupying tenant.
func (h *Handler) HandleCreateInvoice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	actor, ok := requireRole(w, ctx, middleware.RoleLandlord)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[CreateInvoiceRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	cmd, err := req.ToCommand(actor.UserID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	inv, err := h.invoices.Create(ctx, cmd)
	if err != nil {
		h.logger.ErrorContext(ctx, "create invoice failed", "error", err, "request_id", requestID)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, toInvoiceResponse(inv, requestcontext.Now(ctx)))
}

// HandleListInvoices returns the caller's invoices: tenants see invoices
// issued to them (drafts excluded), landlords see invoices they issued,
// admins see everything.
func (h *Handler) HandleListInvoices(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	actor, ok := middleware.GetActor(ctx)
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	var (
		invoices []*models.Invoice
		err      error
	)
	switch actor.Role {
	case middleware.RoleTenant:
		invoices, err = h.invoices.ListForTenant(ctx, actor.UserID)
	case middleware.RoleAdmin:
		invoices, err = h.invoices.ListAll(ctx)
	default:
		invoices, err = h.invoices.ListForLandlord(ctx, actor.UserID)
	}
	if err != nil {
		h.logger.ErrorContext(ctx, "list invoices failed", "error", err, "request_id", requestID)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, toInvoiceListResponse(invoices, requestcontext.Now(ctx)))
}

// HandleGetInvoice returns one invoice. Drafts are invisible to tenants.
func (h *Handler) HandleGetInvoice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	actor, ok := middleware.GetActor(ctx)
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}
	invoiceID, ok := invoiceIDParam(w, r)
	if !ok {
		return
	}

	inv, err := h.invoices.Get(ctx, invoiceID)
	if err != nil {
		h.logger.ErrorContext(ctx, "get invoice failed", "error", err, "request_id", requestID, "invoice_id", invoiceID)
		httputil.WriteError(w, err)
		return
	}
	if actor.Role != middleware.RoleAdmin && actor.UserID != inv.TenantID && actor.UserID != inv.LandlordID {
		httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "not a party to this invoice"))
		return
	}
	// Unissued drafts do not exist from the tenant's point of view.
	if inv.Status == models.InvoiceStatusDraft && actor.UserID == inv.TenantID && actor.Role == middleware.RoleTenant {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "invoice not found"))
		return
	}

	httputil.WriteJSON(w, http.StatusOK, toInvoiceResponse(inv, requestcontext.Now(ctx)))
}

// HandleUpdateInvoice edits a draft or due invoice.
func (h *Handler) HandleUpdateInvoice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	actor, ok := requireRole(w, ctx, middleware.RoleLandlord)
	if !ok {
		return
	}
	invoiceID, ok := invoiceIDParam(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[UpdateInvoiceRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	inv, err := h.invoices.Update(ctx, actor.UserID, invoiceID, req.ToCommand())
	if err != nil {
		h.logger.ErrorContext(ctx, "update invoice failed", "error", err, "request_id", requestID, "invoice_id", invoiceID)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, toInvoiceResponse(inv, requestcontext.Now(ctx)))
}

// HandleDeleteInvoice removes a draft or due invoice.
func (h *Handler) HandleDeleteInvoice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	actor, ok := requireRole(w, ctx, middleware.RoleLandlord)
	if !ok {
		return
	}
	invoiceID, ok := invoiceIDParam(w, r)
	if !ok {
		return
	}

	if err := h.invoices.Delete(ctx, actor.UserID, invoiceID); err != nil {
		h.logger.ErrorContext(ctx, "delete invoice failed", "error", err, "request_id", requestID, "invoice_id", invoiceID)
		httputil.WriteError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleGenerateInvoices runs the recurring rent generation for the
// calling landlord's active leases.
func (h *Handler) HandleGenerateInvoices(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	actor, ok := requireRole(w, ctx, middleware.RoleLandlord)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[GenerateInvoicesRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	result, err := h.invoices.GenerateRecurring(ctx, actor.UserID, time.Month(req.Month), req.Year)
	if err != nil {
		h.logger.ErrorContext(ctx, "generate invoices failed", "error", err, "request_id", requestID)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, result)
}

// HandleMarkPaid records a manual settlement for a due invoice.
func (h *Handler) HandleMarkPaid(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	actor, ok := requireRole(w, ctx, middleware.RoleLandlord)
	if !ok {
		return
	}
	invoiceID, ok := invoiceIDParam(w, r)
	if !ok {
		return
	}

	inv, err := h.invoices.MarkPaidManually(ctx, actor.UserID, invoiceID)
	if err != nil {
		h.logger.ErrorContext(ctx, "mark invoice paid failed", "error", err, "request_id", requestID, "invoice_id", invoiceID)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, toInvoiceResponse(inv, requestcontext.Now(ctx)))
}

// HandleInitiatePayment opens (or reuses) a checkout session.
func (h *Handler) HandleInitiatePayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	actor, ok := requireRole(w, ctx, middleware.RoleTenant)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[InitiatePaymentRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	invoiceID, err := id.ParseInvoiceID(req.InvoiceID)
	if err != nil || invoiceID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid invoice_id"))
		return
	}

	p, err := h.payments.Initiate(ctx, actor.UserID, invoiceID)
	if err != nil {
		h.logger.ErrorContext(ctx, "initiate payment failed", "error", err, "request_id", requestID, "invoice_id", invoiceID)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, toPaymentResponse(p))
}

// HandleListPayments returns payment history for the caller.
func (h *Handler) HandleListPayments(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	actor, ok := middleware.GetActor(ctx)
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	var (
		payments []*models.Payment
		err      error
	)
	if actor.Role == middleware.RoleTenant {
		payments, err = h.payments.HistoryForTenant(ctx, actor.UserID)
	} else {
		payments, err = h.payments.HistoryForLandlord(ctx, actor.UserID)
	}
	if err != nil {
		h.logger.ErrorContext(ctx, "list payments failed", "error", err, "request_id", requestID)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, toPaymentListResponse(payments))
}

func invoiceIDParam(w http.ResponseWriter, r *http.Request) (id.InvoiceID, bool) {
	invoiceID, err := id.ParseInvoiceID(chi.URLParam(r, "id"))
	if err != nil || invoiceID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid invoice id"))
		return id.InvoiceID{}, false
	}
	return invoiceID, true
}

// requireRole enforces the actor's role. Admins pass every gate.
func requireRole(w http.ResponseWriter, ctx context.Context, role middleware.Role) (middleware.Actor, bool) {
	actor, ok := middleware.GetActor(ctx)
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return middleware.Actor{}, false
	}
	if actor.Role != role && actor.Role != middleware.RoleAdmin {
		httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "insufficient role"))
		return middleware.Actor{}, false
	}
	return actor, true
}
