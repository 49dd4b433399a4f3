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

	"lodger/internal/lease/models"
	"lodger/internal/lease/service"
	"lodger/internal/platform/middleware"
)

// Service defines the lease operations the handler exposes.
// Returns domain objects, not HTTP response DTOs.
type Service interface {
	Create(ctx context.Context, cmd *service.CreateLeaseCommand) (*models.Lease, error)
	Accept(ctx context.Context, tenantID id.UserID, leaseID id.LeaseID) (*models.Lease, error)
	Reject(ctx context.Context, tenantID id.UserID, leaseID id.LeaseID, reason string) (*models.Lease, error)
	Terminate(ctx context.Context, actorID id.UserID, leaseID id.LeaseID, reason string) (*models.Lease, error)
	Renew(ctx context.Context, landlordID id.UserID, leaseID id.LeaseID, cmd *service.RenewLeaseCommand) (*models.Lease, error)
	Delete(ctx context.Context, landlordID id.UserID, leaseID id.LeaseID) error
	Get(ctx context.Context, leaseID id.LeaseID) (*models.Lease, error)
	ListForLandlord(ctx context.Context, landlordID id.UserID) ([]*models.Lease, error)
	ListForTenant(ctx context.Context, tenantID id.UserID) ([]*models.Lease, error)
	InviteOccupant(ctx context.Context, landlordID id.UserID, cmd *service.InviteOccupantCommand) (*models.Occupancy, error)
	ExpireDue(ctx context.Context, now time.Time) (int, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/leases", h.HandleCreateLease)
	r.Get("/leases", h.HandleListLeases)
	r.Get("/leases/{id}", h.HandleGetLease)
	r.Delete("/leases/{id}", h.HandleDeleteLease)
	r.Post("/leases/{id}/accept", h.HandleAcceptLease)
	r.Post("/leases/{id}/reject", h.HandleRejectLease)
	r.Post("/leases/{id}/terminate", h.HandleTerminateLease)
	r.Post("/leases/{id}/renew", h.HandleRenewLease)
	r.Post("/occupancies/invite", h.HandleInviteOccupant)
	r.Post("/admin/leases/expire", h.HandleExpireDue)
}

// HandleCreateLease creates a pending lease offer for a tenant.
func (h *Handler) HandleCreateLease(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	actor, ok := requireRole(w, ctx, middleware.RoleLandlord)
	if !ok {
		return
	}

	req, ok := httputil.DecodeAndPrepare[CreateLeaseRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	cmd, err := req.ToCommand(actor.UserID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	lease, err := h.service.Create(ctx, cmd)
	if err != nil {
		h.logger.ErrorContext(ctx, "create lease failed", "error", err, "request_id", requestID)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, toLeaseResponse(lease))
}

// HandleListLeases returns the caller's leases: tenants see leases they
// hold, landlords see leases they issued.
func (h *Handler) HandleListLeases(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	actor, ok := middleware.GetActor(ctx)
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	var (
		leases []*models.Lease
		err    error
	)
	switch actor.Role {
	case middleware.RoleTenant:
		leases, err = h.service.ListForTenant(ctx, actor.UserID)
	default:
		leases, err = h.service.ListForLandlord(ctx, actor.UserID)
	}
	if err != nil {
		h.logger.ErrorContext(ctx, "list leases failed", "error", err, "request_id", requestID)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, toLeaseListResponse(leases))
}

// HandleGetLease returns one lease. Only the lease's parties and admins
// may read it.
func (h *Handler) HandleGetLease(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	actor, ok := middleware.GetActor(ctx)
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}
	leaseID, ok := leaseIDParam(w, r)
	if !ok {
		return
	}

	lease, err := h.service.Get(ctx, leaseID)
	if err != nil {
		h.logger.ErrorContext(ctx, "get lease failed", "error", err, "request_id", requestID, "lease_id", leaseID)
		httputil.WriteError(w, err)
		return
	}
	if actor.Role != middleware.RoleAdmin && actor.UserID != lease.TenantID && actor.UserID != lease.LandlordID {
		httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "not a party to this lease"))
		return
	}

	httputil.WriteJSON(w, http.StatusOK, toLeaseResponse(lease))
}

// HandleAcceptLease activates a pending lease for the calling tenant.
func (h *Handler) HandleAcceptLease(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	actor, ok := requireRole(w, ctx, middleware.RoleTenant)
	if !ok {
		return
	}
	leaseID, ok := leaseIDParam(w, r)
	if !ok {
		return
	}

	lease, err := h.service.Accept(ctx, actor.UserID, leaseID)
	if err != nil {
		h.logger.ErrorContext(ctx, "accept lease failed", "error", err, "request_id", requestID, "lease_id", leaseID)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, toLeaseResponse(lease))
}

// HandleRejectLease declines a pending lease for the calling tenant.
func (h *Handler) HandleRejectLease(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	actor, ok := requireRole(w, ctx, middleware.RoleTenant)
	if !ok {
		return
	}
	leaseID, ok := leaseIDParam(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[ReasonRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	lease, err := h.service.Reject(ctx, actor.UserID, leaseID, req.Reason)
	if err != nil {
		h.logger.ErrorContext(ctx, "reject lease failed", "error", err, "request_id", requestID, "lease_id", leaseID)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, toLeaseResponse(lease))
}

// HandleTerminateLease ends an active lease. Either party may call it.
func (h *Handler) HandleTerminateLease(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	actor, ok := middleware.GetActor(ctx)
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}
	leaseID, ok := leaseIDParam(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[ReasonRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	lease, err := h.service.Terminate(ctx, actor.UserID, leaseID, req.Reason)
	if err != nil {
		h.logger.ErrorContext(ctx, "terminate lease failed", "error", err, "request_id", requestID, "lease_id", leaseID)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, toLeaseResponse(lease))
}

// HandleRenewLease offers a renewal continuing an active lease.
func (h *Handler) HandleRenewLease(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	actor, ok := requireRole(w, ctx, middleware.RoleLandlord)
	if !ok {
		return
	}
	leaseID, ok := leaseIDParam(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[RenewLeaseRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	renewal, err := h.service.Renew(ctx, actor.UserID, leaseID, req.ToCommand())
	if err != nil {
		h.logger.ErrorContext(ctx, "renew lease failed", "error", err, "request_id", requestID, "lease_id", leaseID)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, toLeaseResponse(renewal))
}

// HandleDeleteLease removes a pending lease offer.
func (h *Handler) HandleDeleteLease(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	actor, ok := requireRole(w, ctx, middleware.RoleLandlord)
	if !ok {
		return
	}
	leaseID, ok := leaseIDParam(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(ctx, actor.UserID, leaseID); err != nil {
		h.logger.ErrorContext(ctx, "delete lease failed", "error", err, "request_id", requestID, "lease_id", leaseID)
		httputil.WriteError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleInviteOccupant creates an active occupancy without a lease.
func (h *Handler) HandleInviteOccupant(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	actor, ok := requireRole(w, ctx, middleware.RoleLandlord)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[InviteOccupantRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	cmd, err := req.ToCommand()
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	occ, err := h.service.InviteOccupant(ctx, actor.UserID, cmd)
	if err != nil {
		h.logger.ErrorContext(ctx, "invite occupant failed", "error", err, "request_id", requestID)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, toOccupancyResponse(occ))
}

// HandleExpireDue runs the expiry sweep on demand. Admin only; the
// background job covers the steady state.
func (h *Handler) HandleExpireDue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	if _, ok := requireRole(w, ctx, middleware.RoleAdmin); !ok {
		return
	}

	n, err := h.service.ExpireDue(ctx, requestcontext.Now(ctx))
	if err != nil {
		h.logger.ErrorContext(ctx, "expire sweep failed", "error", err, "request_id", requestID)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]int{"expired": n})
}

func leaseIDParam(w http.ResponseWriter, r *http.Request) (id.LeaseID, bool) {
	leaseID, err := id.ParseLeaseID(chi.URLParam(r, "id"))
	if err != nil || leaseID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid lease id"))
		return id.LeaseID{}, false
	}
	return leaseID, true
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
