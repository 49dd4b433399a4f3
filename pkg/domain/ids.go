// Package domain provides type-safe identifiers to prevent mixing up IDs at compile time.
package domain

import (
	"github.com/google/uuid"

	dErrors "lodger/pkg/domain-errors"
)

// Distinct ID types - compiler prevents passing a UserID where a LeaseID is expected.
type (
	UserID      uuid.UUID
	PropertyID  uuid.UUID
	UnitID      uuid.UUID
	LeaseID     uuid.UUID
	OccupancyID uuid.UUID
	InvoiceID   uuid.UUID
	PaymentID   uuid.UUID
)

// Parse functions - use at trust boundaries (handlers, API inputs).

func ParseUserID(s string) (UserID, error) {
	id, err := parseUUID(s, "user ID")
	return UserID(id), err
}

func ParsePropertyID(s string) (PropertyID, error) {
	id, err := parseUUID(s, "property ID")
	return PropertyID(id), err
}

func ParseUnitID(s string) (UnitID, error) {
	id, err := parseUUID(s, "unit ID")
	return UnitID(id), err
}

func ParseLeaseID(s string) (LeaseID, error) {
	id, err := parseUUID(s, "lease ID")
	return LeaseID(id), err
}

func ParseOccupancyID(s string) (OccupancyID, error) {
	id, err := parseUUID(s, "occupancy ID")
	return OccupancyID(id), err
}

func ParseInvoiceID(s string) (InvoiceID, error) {
	id, err := parseUUID(s, "invoice ID")
	return InvoiceID(id), err
}

func ParsePaymentID(s string) (PaymentID, error) {
	id, err := parseUUID(s, "payment ID")
	return PaymentID(id), err
}

// String methods - for logging and debugging.

func (id UserID) String() string      { return uuid.UUID(id).String() }
func (id PropertyID) String() string  { return uuid.UUID(id).String() }
func (id UnitID) String() string      { return uuid.UUID(id).String() }
func (id LeaseID) String() string     { return uuid.UUID(id).String() }
func (id OccupancyID) String() string { return uuid.UUID(id).String() }
func (id InvoiceID) String() string   { return uuid.UUID(id).String() }
func (id PaymentID) String() string   { return uuid.UUID(id).String() }

// IsNil checks - used for service-layer validation.

func (id UserID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }
func (id PropertyID) IsNil() bool  { return uuid.UUID(id) == uuid.Nil }
func (id UnitID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }
func (id LeaseID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id OccupancyID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id InvoiceID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
func (id PaymentID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }

// parseUUID is the shared validation logic.
// Nil UUIDs are allowed here; use IsNil() at the service layer for business
// validation so store lookups can still return proper "not found" errors.
func parseUUID(s, label string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeBadRequest, label+" cannot be empty")
	}
	parsed, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeBadRequest, "invalid "+label+" format")
	}
	return parsed, nil
}
