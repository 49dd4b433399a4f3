package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	id "lodger/pkg/domain"
	dErrors "lodger/pkg/domain-errors"
	"lodger/pkg/requestcontext"

	"lodger/internal/lease/models"
	"lodger/internal/sentinel"
)

const defaultRenewalHorizon = 30 * 24 * time.Hour

// LeaseService orchestrates the lease lifecycle and keeps the occupancy
// projection mirrored. Every transition that touches both entities runs
// inside a single transaction.
type LeaseService struct {
	leases         LeaseStore
	occupancies    OccupancyStore
	properties     PropertyDirectory
	tx             StoreTx
	metrics        metricsRecorder
	renewalHorizon time.Duration
}

// metricsRecorder keeps the service nil-safe when metrics are not wired.
type metricsRecorder interface {
	IncrementTransition(transition string)
	AddExpired(n int)
}

func New(leases LeaseStore, occupancies OccupancyStore, properties PropertyDirectory, opts ...Option) *LeaseService {
	cfg := &serviceConfig{renewalHorizon: defaultRenewalHorizon}
	for _, opt := range opts {
		opt(cfg)
	}
	tx := cfg.tx
	if tx == nil {
		tx = newInMemoryStoreTx()
	}
	s := &LeaseService{
		leases:         leases,
		occupancies:    occupancies,
		properties:     properties,
		tx:             tx,
		renewalHorizon: cfg.renewalHorizon,
	}
	if cfg.metrics != nil {
		s.metrics = cfg.metrics
	}
	return s
}

// Create validates a landlord's lease offer and inserts the pending lease
// together with its pending occupancy row.
func (s *LeaseService) Create(ctx context.Context, cmd *CreateLeaseCommand) (*models.Lease, error) {
	if cmd.LandlordID.IsNil() || cmd.TenantID.IsNil() || cmd.PropertyID.IsNil() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "landlord, tenant and property are required")
	}

	prop, err := s.properties.Get(ctx, cmd.PropertyID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "property not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load property")
	}
	if prop.LandlordID != cmd.LandlordID {
		return nil, dErrors.New(dErrors.CodeForbidden, "property is not owned by this landlord")
	}
	if cmd.UnitID != nil && len(prop.UnitIDs) > 0 && !prop.HasUnit(*cmd.UnitID) {
		return nil, dErrors.New(dErrors.CodeValidation, "unit does not belong to this property")
	}

	var lease *models.Lease
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		now := requestcontext.Now(txCtx)

		occupied, err := s.leases.FindActiveForUnit(txCtx, cmd.PropertyID, cmd.UnitID)
		if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check unit availability")
		}
		if occupied != nil && occupied.TenantID != cmd.TenantID {
			return dErrors.New(dErrors.CodeConflict, "unit already has an active tenant")
		}

		l, err := models.NewLease(
			id.LeaseID(uuid.New()), cmd.TenantID, cmd.LandlordID, cmd.PropertyID, cmd.UnitID,
			cmd.StartDate, cmd.EndDate, cmd.RentAmount, cmd.SecurityDeposit, cmd.Terms, now,
		)
		if err != nil {
			return err
		}
		if err := s.leases.Create(txCtx, l); err != nil {
			if errors.Is(err, sentinel.ErrDuplicate) {
				return dErrors.New(dErrors.CodeConflict, "conflicting lease already exists")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create lease")
		}
		if err := s.upsertPendingOccupancy(txCtx, l, now); err != nil {
			return err
		}
		lease = l
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.recordTransition("created")
	return lease, nil
}

// Accept activates a pending lease on behalf of its tenant. The occupancy
// projection flips to active in the same transaction, and if the lease is a
// renewal the previous lease retires to renewed.
func (s *LeaseService) Accept(ctx context.Context, tenantID id.UserID, leaseID id.LeaseID) (*models.Lease, error) {
	var lease *models.Lease
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		now := requestcontext.Now(txCtx)

		l, err := s.lockLease(txCtx, leaseID)
		if err != nil {
			return err
		}
		if l.TenantID != tenantID {
			return dErrors.New(dErrors.CodeForbidden, "lease belongs to a different tenant")
		}
		// The previous lease must leave the active state before the
		// renewal enters it; the unique active-lease index checks per
		// statement.
		if l.IsRenewal && l.PreviousLeaseID != nil {
			if err := s.retirePreviousLease(txCtx, *l.PreviousLeaseID, now); err != nil {
				return err
			}
		}
		// The unit may have been taken since the offer was made.
		occupied, err := s.leases.FindActiveForUnit(txCtx, l.PropertyID, l.UnitID)
		if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check unit availability")
		}
		if occupied != nil && occupied.ID != l.ID {
			return dErrors.New(dErrors.CodeConflict, "unit already has an active tenant")
		}
		if err := l.Accept(now); err != nil {
			return err
		}
		if err := s.leases.Update(txCtx, l); err != nil {
			if errors.Is(err, sentinel.ErrDuplicate) {
				return dErrors.New(dErrors.CodeConflict, "unit already has an active tenant")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update lease")
		}
		if err := s.activateOccupancy(txCtx, l, now); err != nil {
			return err
		}
		lease = l
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.recordTransition("accepted")
	return lease, nil
}

// Reject declines a pending lease on behalf of its tenant.
func (s *LeaseService) Reject(ctx context.Context, tenantID id.UserID, leaseID id.LeaseID, reason string) (*models.Lease, error) {
	var lease *models.Lease
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		now := requestcontext.Now(txCtx)

		l, err := s.lockLease(txCtx, leaseID)
		if err != nil {
			return err
		}
		if l.TenantID != tenantID {
			return dErrors.New(dErrors.CodeForbidden, "lease belongs to a different tenant")
		}
		if err := l.Reject(reason, now); err != nil {
			return err
		}
		if err := s.leases.Update(txCtx, l); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update lease")
		}
		if err := s.deactivateOccupancy(txCtx, l, now, now); err != nil {
			return err
		}
		lease = l
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.recordTransition("rejected")
	return lease, nil
}

// Terminate ends an active lease. Either party to the lease may terminate.
func (s *LeaseService) Terminate(ctx context.Context, actorID id.UserID, leaseID id.LeaseID, reason string) (*models.Lease, error) {
	var lease *models.Lease
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		now := requestcontext.Now(txCtx)

		l, err := s.lockLease(txCtx, leaseID)
		if err != nil {
			return err
		}
		if actorID != l.TenantID && actorID != l.LandlordID {
			return dErrors.New(dErrors.CodeForbidden, "only the lease's landlord or tenant may terminate")
		}
		if err := l.Terminate(reason, now); err != nil {
			return err
		}
		if err := s.leases.Update(txCtx, l); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update lease")
		}
		if err := s.deactivateOccupancy(txCtx, l, now, now); err != nil {
			return err
		}
		lease = l
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.recordTransition("terminated")
	return lease, nil
}

// Renew offers a new pending lease continuing an active one. The original
// lease stays active until the renewal is accepted.
func (s *LeaseService) Renew(ctx context.Context, landlordID id.UserID, leaseID id.LeaseID, cmd *RenewLeaseCommand) (*models.Lease, error) {
	var renewal *models.Lease
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		now := requestcontext.Now(txCtx)

		original, err := s.lockLease(txCtx, leaseID)
		if err != nil {
			return err
		}
		if original.LandlordID != landlordID {
			return dErrors.New(dErrors.CodeForbidden, "lease belongs to a different landlord")
		}
		if !original.Renewable(now, s.renewalHorizon) {
			return dErrors.New(dErrors.CodeInvalidState, "lease is not active or not yet within its renewal window")
		}
		if !cmd.StartDate.After(original.EndDate) {
			return dErrors.New(dErrors.CodeValidation, "renewal must start after the current lease ends")
		}

		previousID := original.ID
		l, err := models.NewLease(
			id.LeaseID(uuid.New()), original.TenantID, original.LandlordID,
			original.PropertyID, original.UnitID,
			cmd.StartDate, cmd.EndDate, cmd.RentAmount, cmd.SecurityDeposit, cmd.Terms, now,
		)
		if err != nil {
			return err
		}
		l.IsRenewal = true
		l.PreviousLeaseID = &previousID

		if err := s.leases.Create(txCtx, l); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create renewal lease")
		}
		renewal = l
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.recordTransition("renewal_offered")
	return renewal, nil
}

// Delete removes a never-accepted lease. The occupancy row goes with it
// only when no other lease references the same tenant and property.
func (s *LeaseService) Delete(ctx context.Context, landlordID id.UserID, leaseID id.LeaseID) error {
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		l, err := s.lockLease(txCtx, leaseID)
		if err != nil {
			return err
		}
		if l.LandlordID != landlordID {
			return dErrors.New(dErrors.CodeForbidden, "lease belongs to a different landlord")
		}
		if !l.IsDeletable() {
			return dErrors.New(dErrors.CodeInvalidState, "only pending leases may be deleted")
		}
		if err := s.leases.Delete(txCtx, l.ID); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete lease")
		}

		remaining, err := s.leases.CountForTenantProperty(txCtx, l.TenantID, l.PropertyID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to count remaining leases")
		}
		if remaining > 0 {
			return nil
		}
		occ, err := s.occupancies.FindByTenantAndUnit(txCtx, l.TenantID, l.PropertyID, l.UnitID)
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil
		}
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load occupancy")
		}
		if err := s.occupancies.Delete(txCtx, occ.ID); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete occupancy")
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.recordTransition("deleted")
	return nil
}

// Get returns the lease by id.
func (s *LeaseService) Get(ctx context.Context, leaseID id.LeaseID) (*models.Lease, error) {
	l, err := s.leases.FindByID(ctx, leaseID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "lease not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load lease")
	}
	return l, nil
}

// ListForLandlord returns all leases owned by the landlord.
func (s *LeaseService) ListForLandlord(ctx context.Context, landlordID id.UserID) ([]*models.Lease, error) {
	leases, err := s.leases.ListByLandlord(ctx, landlordID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list leases")
	}
	return leases, nil
}

// ListForTenant returns all leases held by the tenant.
func (s *LeaseService) ListForTenant(ctx context.Context, tenantID id.UserID) ([]*models.Lease, error) {
	leases, err := s.leases.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list leases")
	}
	return leases, nil
}

// ExpireDue flips active leases whose end date has passed to expired,
// deactivating their occupancies. Each lease commits independently so one
// failure does not block the sweep. Returns the number expired.
func (s *LeaseService) ExpireDue(ctx context.Context, now time.Time) (int, error) {
	due, err := s.leases.ListActiveEndingBefore(ctx, now)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list expiring leases")
	}

	expired := 0
	for _, candidate := range due {
		err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
			l, err := s.lockLease(txCtx, candidate.ID)
			if err != nil {
				return err
			}
			// Re-check under lock: a concurrent terminate/renew may have won.
			if !l.IsActive() || !l.EndDate.Before(now) {
				return nil
			}
			if err := l.Expire(now); err != nil {
				return err
			}
			if err := s.leases.Update(txCtx, l); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update lease")
			}
			if err := s.deactivateOccupancy(txCtx, l, l.EndDate, now); err != nil {
				return err
			}
			expired++
			return nil
		})
		if err != nil {
			return expired, err
		}
	}

	if s.metrics != nil && expired > 0 {
		s.metrics.AddExpired(expired)
	}
	return expired, nil
}

// InviteOccupant creates an active occupancy directly, without a lease.
func (s *LeaseService) InviteOccupant(ctx context.Context, landlordID id.UserID, cmd *InviteOccupantCommand) (*models.Occupancy, error) {
	owns, err := s.properties.Owns(ctx, landlordID, cmd.PropertyID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "property not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load property")
	}
	if !owns {
		return nil, dErrors.New(dErrors.CodeForbidden, "property is not owned by this landlord")
	}
	if cmd.RentAmount.IsNegative() {
		return nil, dErrors.New(dErrors.CodeValidation, "rent amount cannot be negative")
	}

	var occ *models.Occupancy
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		now := requestcontext.Now(txCtx)

		existing, err := s.occupancies.FindByTenantAndUnit(txCtx, cmd.TenantID, cmd.PropertyID, cmd.UnitID)
		if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load occupancy")
		}
		if existing != nil && existing.Occupying() {
			return dErrors.New(dErrors.CodeConflict, "tenant already occupies this unit")
		}

		o := &models.Occupancy{
			ID:         id.OccupancyID(uuid.New()),
			TenantID:   cmd.TenantID,
			PropertyID: cmd.PropertyID,
			UnitID:     cmd.UnitID,
			RentAmount: cmd.RentAmount,
			Status:     models.OccupancyStatusActive,
			StartDate:  cmd.StartDate,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if existing != nil {
			o.ID = existing.ID
			o.CreatedAt = existing.CreatedAt
			if err := s.occupancies.Update(txCtx, o); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update occupancy")
			}
		} else if err := s.occupancies.Create(txCtx, o); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create occupancy")
		}
		occ = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return occ, nil
}

// lockLease loads the lease under a row lock and translates store errors.
func (s *LeaseService) lockLease(ctx context.Context, leaseID id.LeaseID) (*models.Lease, error) {
	l, err := s.leases.FindByIDForUpdate(ctx, leaseID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "lease not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load lease")
	}
	return l, nil
}

// upsertPendingOccupancy inserts the pending projection for a new lease.
// An existing active occupancy is left untouched; inactive or pending rows
// are refreshed with the new lease's terms.
func (s *LeaseService) upsertPendingOccupancy(ctx context.Context, l *models.Lease, now time.Time) error {
	existing, err := s.occupancies.FindByTenantAndUnit(ctx, l.TenantID, l.PropertyID, l.UnitID)
	if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load occupancy")
	}
	if existing == nil {
		occ := models.OccupancyFromLease(id.OccupancyID(uuid.New()), l, now)
		if err := s.occupancies.Create(ctx, occ); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create occupancy")
		}
		return nil
	}
	if existing.Status == models.OccupancyStatusActive {
		return nil
	}
	existing.Status = models.OccupancyStatusPending
	existing.RentAmount = l.RentAmount
	existing.StartDate = l.StartDate
	existing.EndDate = nil
	existing.UpdatedAt = now
	if err := s.occupancies.Update(ctx, existing); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update occupancy")
	}
	return nil
}

// activateOccupancy mirrors a lease acceptance into the projection.
func (s *LeaseService) activateOccupancy(ctx context.Context, l *models.Lease, now time.Time) error {
	existing, err := s.occupancies.FindByTenantAndUnit(ctx, l.TenantID, l.PropertyID, l.UnitID)
	if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load occupancy")
	}
	if existing == nil {
		occ := models.OccupancyFromLease(id.OccupancyID(uuid.New()), l, now)
		occ.Activate(l, now)
		if err := s.occupancies.Create(ctx, occ); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create occupancy")
		}
		return nil
	}
	existing.Activate(l, now)
	if err := s.occupancies.Update(ctx, existing); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update occupancy")
	}
	return nil
}

// deactivateOccupancy mirrors a reject/terminate/expire into the projection.
// A missing row is not an error; not every lease reached acceptance.
func (s *LeaseService) deactivateOccupancy(ctx context.Context, l *models.Lease, endDate, now time.Time) error {
	existing, err := s.occupancies.FindByTenantAndUnit(ctx, l.TenantID, l.PropertyID, l.UnitID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil
	}
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load occupancy")
	}
	existing.Deactivate(endDate, now)
	if err := s.occupancies.Update(ctx, existing); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update occupancy")
	}
	return nil
}

// retirePreviousLease moves the renewed-from lease out of active.
func (s *LeaseService) retirePreviousLease(ctx context.Context, previousID id.LeaseID, now time.Time) error {
	prev, err := s.leases.FindByIDForUpdate(ctx, previousID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil
	}
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load previous lease")
	}
	if !prev.IsActive() {
		return nil
	}
	if err := prev.MarkRenewed(now); err != nil {
		return err
	}
	if err := s.leases.Update(ctx, prev); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update previous lease")
	}
	return nil
}

func (s *LeaseService) recordTransition(transition string) {
	if s.metrics != nil {
		s.metrics.IncrementTransition(transition)
	}
}
