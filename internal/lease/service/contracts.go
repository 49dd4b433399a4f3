package service

import (
	"context"
	"time"

	id "lodger/pkg/domain"

	"lodger/internal/lease/models"
	"lodger/internal/property"
)

// LeaseStore is the lease persistence contract.
type LeaseStore interface {
	Create(ctx context.Context, l *models.Lease) error
	FindByID(ctx context.Context, leaseID id.LeaseID) (*models.Lease, error)
	// FindByIDForUpdate locks the row for the enclosing transaction.
	FindByIDForUpdate(ctx context.Context, leaseID id.LeaseID) (*models.Lease, error)
	Update(ctx context.Context, l *models.Lease) error
	Delete(ctx context.Context, leaseID id.LeaseID) error
	FindActiveForUnit(ctx context.Context, propertyID id.PropertyID, unitID *id.UnitID) (*models.Lease, error)
	ListByLandlord(ctx context.Context, landlordID id.UserID) ([]*models.Lease, error)
	ListByTenant(ctx context.Context, tenantID id.UserID) ([]*models.Lease, error)
	ListActiveEndingBefore(ctx context.Context, cutoff time.Time) ([]*models.Lease, error)
	CountForTenantProperty(ctx context.Context, tenantID id.UserID, propertyID id.PropertyID) (int, error)
}

// OccupancyStore is the occupancy projection persistence contract.
type OccupancyStore interface {
	Create(ctx context.Context, o *models.Occupancy) error
	Update(ctx context.Context, o *models.Occupancy) error
	Delete(ctx context.Context, occupancyID id.OccupancyID) error
	FindByTenantAndUnit(ctx context.Context, tenantID id.UserID, propertyID id.PropertyID, unitID *id.UnitID) (*models.Occupancy, error)
	FindCurrent(ctx context.Context, tenantID id.UserID, propertyID id.PropertyID) (*models.Occupancy, error)
}

// PropertyDirectory answers ownership questions about properties.
type PropertyDirectory interface {
	Get(ctx context.Context, propertyID id.PropertyID) (*property.Property, error)
	Owns(ctx context.Context, landlordID id.UserID, propertyID id.PropertyID) (bool, error)
}
