package service

import (
	"time"

	"github.com/shopspring/decimal"

	id "lodger/pkg/domain"
)

// CreateLeaseCommand carries a landlord's lease offer.
type CreateLeaseCommand struct {
	LandlordID      id.UserID
	TenantID        id.UserID
	PropertyID      id.PropertyID
	UnitID          *id.UnitID
	StartDate       time.Time
	EndDate         time.Time
	RentAmount      decimal.Decimal
	SecurityDeposit decimal.Decimal
	Terms           string
}

// RenewLeaseCommand carries the terms of a renewal offer against an
// existing active lease.
type RenewLeaseCommand struct {
	StartDate       time.Time
	EndDate         time.Time
	RentAmount      decimal.Decimal
	SecurityDeposit decimal.Decimal
	Terms           string
}

// InviteOccupantCommand creates an occupancy directly, without a lease,
// for tenants onboarded outside the formal offer flow.
type InviteOccupantCommand struct {
	TenantID   id.UserID
	PropertyID id.PropertyID
	UnitID     *id.UnitID
	RentAmount decimal.Decimal
	StartDate  time.Time
}
