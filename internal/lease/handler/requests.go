package handler

import (
	"time"

	"github.com/shopspring/decimal"

	id "lodger/pkg/domain"
	dErrors "lodger/pkg/domain-errors"
	s "lodger/pkg/string"

	"lodger/internal/lease/service"
)

// CreateLeaseRequest is the landlord's lease offer payload.
type CreateLeaseRequest struct {
	TenantID        string          `json:"tenant_id"`
	PropertyID      string          `json:"property_id"`
	UnitID          string          `json:"unit_id,omitempty"`
	StartDate       time.Time       `json:"start_date"`
	EndDate         time.Time       `json:"end_date"`
	RentAmount      decimal.Decimal `json:"rent_amount"`
	SecurityDeposit decimal.Decimal `json:"security_deposit"`
	Terms           string          `json:"terms"`
}

func (r *CreateLeaseRequest) Normalize() {
	s.TrimStrings(&r.TenantID, &r.PropertyID, &r.UnitID, &r.Terms)
}

func (r *CreateLeaseRequest) Validate() error {
	if r.TenantID == "" {
		return dErrors.New(dErrors.CodeValidation, "tenant_id is required")
	}
	if r.PropertyID == "" {
		return dErrors.New(dErrors.CodeValidation, "property_id is required")
	}
	if r.StartDate.IsZero() || r.EndDate.IsZero() {
		return dErrors.New(dErrors.CodeValidation, "start_date and end_date are required")
	}
	return nil
}

// ToCommand converts the request into a service command for the given landlord.
func (r *CreateLeaseRequest) ToCommand(landlordID id.UserID) (*service.CreateLeaseCommand, error) {
	tenantID, err := id.ParseUserID(r.TenantID)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeValidation, "invalid tenant_id")
	}
	propertyID, err := id.ParsePropertyID(r.PropertyID)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeValidation, "invalid property_id")
	}
	var unitID *id.UnitID
	if r.UnitID != "" {
		u, err := id.ParseUnitID(r.UnitID)
		if err != nil {
			return nil, dErrors.New(dErrors.CodeValidation, "invalid unit_id")
		}
		unitID = &u
	}
	return &service.CreateLeaseCommand{
		LandlordID:      landlordID,
		TenantID:        tenantID,
		PropertyID:      propertyID,
		UnitID:          unitID,
		StartDate:       r.StartDate,
		EndDate:         r.EndDate,
		RentAmount:      r.RentAmount,
		SecurityDeposit: r.SecurityDeposit,
		Terms:           r.Terms,
	}, nil
}

// ReasonRequest carries rejection and termination reasons.
type ReasonRequest struct {
	Reason string `json:"reason"`
}

func (r *ReasonRequest) Normalize() {
	s.TrimStrings(&r.Reason)
}

func (r *ReasonRequest) Validate() error {
	if r.Reason == "" {
		return dErrors.New(dErrors.CodeValidation, "reason is required")
	}
	return nil
}

// RenewLeaseRequest carries the terms of a renewal offer.
type RenewLeaseRequest struct {
	StartDate       time.Time       `json:"start_date"`
	EndDate         time.Time       `json:"end_date"`
	RentAmount      decimal.Decimal `json:"rent_amount"`
	SecurityDeposit decimal.Decimal `json:"security_deposit"`
	Terms           string          `json:"terms"`
}

func (r *RenewLeaseRequest) Normalize() {
	s.TrimStrings(&r.Terms)
}

func (r *RenewLeaseRequest) Validate() error {
	if r.StartDate.IsZero() || r.EndDate.IsZero() {
		return dErrors.New(dErrors.CodeValidation, "start_date and end_date are required")
	}
	return nil
}

func (r *RenewLeaseRequest) ToCommand() *service.RenewLeaseCommand {
	return &service.RenewLeaseCommand{
		StartDate:       r.StartDate,
		EndDate:         r.EndDate,
		RentAmount:      r.RentAmount,
		SecurityDeposit: r.SecurityDeposit,
		Terms:           r.Terms,
	}
}

// InviteOccupantRequest creates an occupancy without a lease.
type InviteOccupantRequest struct {
	TenantID   string          `json:"tenant_id"`
	PropertyID string          `json:"property_id"`
	UnitID     string          `json:"unit_id,omitempty"`
	RentAmount decimal.Decimal `json:"rent_amount"`
	StartDate  time.Time       `json:"start_date"`
}

func (r *InviteOccupantRequest) Normalize() {
	s.TrimStrings(&r.TenantID, &r.PropertyID, &r.UnitID)
}

func (r *InviteOccupantRequest) Validate() error {
	if r.TenantID == "" {
		return dErrors.New(dErrors.CodeValidation, "tenant_id is required")
	}
	if r.PropertyID == "" {
		return dErrors.New(dErrors.CodeValidation, "property_id is required")
	}
	if r.StartDate.IsZero() {
		return dErrors.New(dErrors.CodeValidation, "start_date is required")
	}
	return nil
}

func (r *InviteOccupantRequest) ToCommand() (*service.InviteOccupantCommand, error) {
	tenantID, err := id.ParseUserID(r.TenantID)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeValidation, "invalid tenant_id")
	}
	propertyID, err := id.ParsePropertyID(r.PropertyID)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeValidation, "invalid property_id")
	}
	var unitID *id.UnitID
	if r.UnitID != "" {
		u, err := id.ParseUnitID(r.UnitID)
		if err != nil {
			return nil, dErrors.New(dErrors.CodeValidation, "invalid unit_id")
		}
		unitID = &u
	}
	return &service.InviteOccupantCommand{
		TenantID:   tenantID,
		PropertyID: propertyID,
		UnitID:     unitID,
		RentAmount: r.RentAmount,
		StartDate:  r.StartDate,
	}, nil
}
