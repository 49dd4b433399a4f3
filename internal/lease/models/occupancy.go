package models

import (
	"time"

	"github.com/shopspring/decimal"

	id "lodger/pkg/domain"
)

// Occupancy is the denormalized "who occupies what" projection derived from
// lease state. It is mutated only as a side effect of lease transitions,
// except for the direct invite flow which creates one without a lease.
type Occupancy struct {
	ID         id.OccupancyID  `json:"id"`
	TenantID   id.UserID       `json:"tenant_id"`
	PropertyID id.PropertyID   `json:"property_id"`
	UnitID     *id.UnitID      `json:"unit_id,omitempty"`
	RentAmount decimal.Decimal `json:"rent_amount"`
	Status     OccupancyStatus `json:"status"`
	StartDate  time.Time       `json:"start_date"`
	EndDate    *time.Time      `json:"end_date,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// OccupancyFromLease builds the pending projection row for a new lease.
func OccupancyFromLease(occupancyID id.OccupancyID, l *Lease, now time.Time) *Occupancy {
	return &Occupancy{
		ID:         occupancyID,
		TenantID:   l.TenantID,
		PropertyID: l.PropertyID,
		UnitID:     l.UnitID,
		RentAmount: l.RentAmount,
		Status:     OccupancyStatusPending,
		StartDate:  l.StartDate,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Activate mirrors a lease acceptance: the occupancy takes the lease's
// dates and rent and becomes active.
func (o *Occupancy) Activate(l *Lease, now time.Time) {
	o.RentAmount = l.RentAmount
	o.StartDate = l.StartDate
	o.EndDate = nil
	o.Status = OccupancyStatusActive
	o.UpdatedAt = now
}

// Deactivate mirrors a lease rejection, termination, or expiry.
func (o *Occupancy) Deactivate(endDate time.Time, now time.Time) {
	o.Status = OccupancyStatusInactive
	o.EndDate = &endDate
	o.UpdatedAt = now
}

// Occupying reports whether the occupancy still grants (or will grant) access.
func (o *Occupancy) Occupying() bool {
	return o.Status == OccupancyStatusPending || o.Status == OccupancyStatusActive
}
