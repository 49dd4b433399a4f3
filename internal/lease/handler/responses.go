package handler

import (
	"time"

	"github.com/shopspring/decimal"

	"lodger/internal/lease/models"
)

// LeaseResponse is the HTTP shape of a lease.
type LeaseResponse struct {
	ID                string          `json:"id"`
	TenantID          string          `json:"tenant_id"`
	LandlordID        string          `json:"landlord_id"`
	PropertyID        string          `json:"property_id"`
	UnitID            string          `json:"unit_id,omitempty"`
	Status            string          `json:"status"`
	StartDate         time.Time       `json:"start_date"`
	EndDate           time.Time       `json:"end_date"`
	RentAmount        decimal.Decimal `json:"rent_amount"`
	SecurityDeposit   decimal.Decimal `json:"security_deposit"`
	Terms             string          `json:"terms,omitempty"`
	IsRenewal         bool            `json:"is_renewal"`
	PreviousLeaseID   string          `json:"previous_lease_id,omitempty"`
	AcceptedAt        *time.Time      `json:"accepted_at,omitempty"`
	RejectionReason   string          `json:"rejection_reason,omitempty"`
	TerminatedAt      *time.Time      `json:"terminated_at,omitempty"`
	TerminationReason string          `json:"termination_reason,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

type LeaseListResponse struct {
	Leases []*LeaseResponse `json:"leases"`
	Count  int              `json:"count"`
}

// OccupancyResponse is the HTTP shape of an occupancy.
type OccupancyResponse struct {
	ID         string          `json:"id"`
	TenantID   string          `json:"tenant_id"`
	PropertyID string          `json:"property_id"`
	UnitID     string          `json:"unit_id,omitempty"`
	RentAmount decimal.Decimal `json:"rent_amount"`
	Status     string          `json:"status"`
	StartDate  time.Time       `json:"start_date"`
	EndDate    *time.Time      `json:"end_date,omitempty"`
}

func toLeaseResponse(l *models.Lease) *LeaseResponse {
	res := &LeaseResponse{
		ID:                l.ID.String(),
		TenantID:          l.TenantID.String(),
		LandlordID:        l.LandlordID.String(),
		PropertyID:        l.PropertyID.String(),
		Status:            string(l.Status),
		StartDate:         l.StartDate,
		EndDate:           l.EndDate,
		RentAmount:        l.RentAmount,
		SecurityDeposit:   l.SecurityDeposit,
		Terms:             l.Terms,
		IsRenewal:         l.IsRenewal,
		AcceptedAt:        l.AcceptedAt,
		RejectionReason:   l.RejectionReason,
		TerminatedAt:      l.TerminatedAt,
		TerminationReason: l.TerminationReason,
		CreatedAt:         l.CreatedAt,
		UpdatedAt:         l.UpdatedAt,
	}
	if l.UnitID != nil {
		res.UnitID = l.UnitID.String()
	}
	if l.PreviousLeaseID != nil {
		res.PreviousLeaseID = l.PreviousLeaseID.String()
	}
	return res
}

func toLeaseListResponse(leases []*models.Lease) *LeaseListResponse {
	out := make([]*LeaseResponse, 0, len(leases))
	for _, l := range leases {
		out = append(out, toLeaseResponse(l))
	}
	return &LeaseListResponse{Leases: out, Count: len(out)}
}

func toOccupancyResponse(o *models.Occupancy) *OccupancyResponse {
	res := &OccupancyResponse{
		ID:         o.ID.String(),
		TenantID:   o.TenantID.String(),
		PropertyID: o.PropertyID.String(),
		RentAmount: o.RentAmount,
		Status:     string(o.Status),
		StartDate:  o.StartDate,
		EndDate:    o.EndDate,
	}
	if o.UnitID != nil {
		res.UnitID = o.UnitID.String()
	}
	return res
}
