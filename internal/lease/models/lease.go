package models

import (
	"time"

	"github.com/shopspring/decimal"

	id "lodger/pkg/domain"
	dErrors "lodger/pkg/domain-errors"
)

// Lease is the contractual agreement between a landlord and a tenant for a
// property (optionally a specific unit). The lease owns the authoritative
// lifecycle; the occupancy projection mirrors it.
type Lease struct {
	ID              id.LeaseID      `json:"id"`
	TenantID        id.UserID       `json:"tenant_id"`
	LandlordID      id.UserID       `json:"landlord_id"`
	PropertyID      id.PropertyID   `json:"property_id"`
	UnitID          *id.UnitID      `json:"unit_id,omitempty"`
	StartDate       time.Time       `json:"start_date"`
	EndDate         time.Time       `json:"end_date"`
	RentAmount      decimal.Decimal `json:"rent_amount"`
	SecurityDeposit decimal.Decimal `json:"security_deposit"`
	Terms           string          `json:"terms,omitempty"`
	Status          LeaseStatus     `json:"status"`

	IsRenewal       bool        `json:"is_renewal"`
	PreviousLeaseID *id.LeaseID `json:"previous_lease_id,omitempty"`

	AcceptedAt        *time.Time `json:"accepted_at,omitempty"`
	RejectionReason   string     `json:"rejection_reason,omitempty"`
	TerminatedAt      *time.Time `json:"terminated_at,omitempty"`
	TerminationReason string     `json:"termination_reason,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewLease constructs a pending lease, validating the date and amount invariants.
func NewLease(leaseID id.LeaseID, tenantID, landlordID id.UserID, propertyID id.PropertyID, unitID *id.UnitID,
	start, end time.Time, rent, deposit decimal.Decimal, terms string, now time.Time) (*Lease, error) {
	if !end.After(start) {
		return nil, dErrors.New(dErrors.CodeValidation, "lease end date must be after start date")
	}
	if rent.IsNegative() || rent.IsZero() {
		return nil, dErrors.New(dErrors.CodeValidation, "rent amount must be positive")
	}
	if deposit.IsNegative() {
		return nil, dErrors.New(dErrors.CodeValidation, "security deposit cannot be negative")
	}
	return &Lease{
		ID:              leaseID,
		TenantID:        tenantID,
		LandlordID:      landlordID,
		PropertyID:      propertyID,
		UnitID:          unitID,
		StartDate:       start,
		EndDate:         end,
		RentAmount:      rent,
		SecurityDeposit: deposit,
		Terms:           terms,
		Status:          LeaseStatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

func (l *Lease) transition(target LeaseStatus, now time.Time) error {
	if !l.Status.CanTransition(target) {
		return dErrors.New(dErrors.CodeInvalidState,
			"lease cannot move from "+string(l.Status)+" to "+string(target))
	}
	l.Status = target
	l.UpdatedAt = now
	return nil
}

// Accept activates a pending lease and stamps the acceptance time.
func (l *Lease) Accept(now time.Time) error {
	if err := l.transition(LeaseStatusActive, now); err != nil {
		return err
	}
	l.AcceptedAt = &now
	return nil
}

// Reject declines a pending lease.
func (l *Lease) Reject(reason string, now time.Time) error {
	if err := l.transition(LeaseStatusRejected, now); err != nil {
		return err
	}
	l.RejectionReason = reason
	return nil
}

// Terminate ends an active lease with a reason.
func (l *Lease) Terminate(reason string, now time.Time) error {
	if err := l.transition(LeaseStatusTerminated, now); err != nil {
		return err
	}
	l.TerminatedAt = &now
	l.TerminationReason = reason
	return nil
}

// Expire marks an active lease whose end date has passed.
func (l *Lease) Expire(now time.Time) error {
	return l.transition(LeaseStatusExpired, now)
}

// MarkRenewed retires an active lease whose renewal has been accepted.
func (l *Lease) MarkRenewed(now time.Time) error {
	return l.transition(LeaseStatusRenewed, now)
}

// IsActive reports whether the lease is currently in force.
func (l *Lease) IsActive() bool {
	return l.Status == LeaseStatusActive
}

// IsDeletable reports whether the lease may be physically removed.
// Only never-accepted leases qualify; anything that was active is
// status-transitioned instead.
func (l *Lease) IsDeletable() bool {
	return l.Status == LeaseStatusPending
}

// Renewable reports whether a renewal may be offered against this lease:
// it must be active and within horizon of its end date, or already past it.
func (l *Lease) Renewable(now time.Time, horizon time.Duration) bool {
	if !l.IsActive() {
		return false
	}
	return !now.Before(l.EndDate.Add(-horizon))
}

// SameUnit reports whether the lease covers the given unit, treating
// a nil unit as the whole property.
func (l *Lease) SameUnit(unitID *id.UnitID) bool {
	if l.UnitID == nil || unitID == nil {
		return l.UnitID == nil && unitID == nil
	}
	return *l.UnitID == *unitID
}
