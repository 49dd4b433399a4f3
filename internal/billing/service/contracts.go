package service

import (
	"context"
	"time"

	id "lodger/pkg/domain"

	"lodger/internal/billing/models"
	leasemodels "lodger/internal/lease/models"
)

// InvoiceStore is the invoice persistence contract.
type InvoiceStore interface {
	Create(ctx context.Context, inv *models.Invoice) error
	FindByID(ctx context.Context, invoiceID id.InvoiceID) (*models.Invoice, error)
	// FindByIDForUpdate locks the row for the enclosing transaction.
	FindByIDForUpdate(ctx context.Context, invoiceID id.InvoiceID) (*models.Invoice, error)
	Update(ctx context.Context, inv *models.Invoice) error
	Delete(ctx context.Context, invoiceID id.InvoiceID) error
	ListByTenant(ctx context.Context, tenantID id.UserID) ([]*models.Invoice, error)
	ListByLandlord(ctx context.Context, landlordID id.UserID) ([]*models.Invoice, error)
	ListAll(ctx context.Context) ([]*models.Invoice, error)
	FindRentForPeriod(ctx context.Context, tenantID id.UserID, propertyID id.PropertyID, dueDate time.Time) (*models.Invoice, error)
}

// PaymentStore is the payment persistence contract.
type PaymentStore interface {
	Create(ctx context.Context, p *models.Payment) error
	Update(ctx context.Context, p *models.Payment) error
	FindByID(ctx context.Context, paymentID id.PaymentID) (*models.Payment, error)
	FindPendingByInvoice(ctx context.Context, invoiceID id.InvoiceID) (*models.Payment, error)
	ListByTenant(ctx context.Context, tenantID id.UserID) ([]*models.Payment, error)
	ListByLandlord(ctx context.Context, landlordID id.UserID) ([]*models.Payment, error)
}

// OccupancyDirectory answers whether a tenant currently occupies (or is
// moving into) a property. Invoices may only target such tenants.
type OccupancyDirectory interface {
	FindCurrent(ctx context.Context, tenantID id.UserID, propertyID id.PropertyID) (*leasemodels.Occupancy, error)
}

// LeaseDirectory lists the active leases recurring rent is generated from.
type LeaseDirectory interface {
	ListActiveByLandlord(ctx context.Context, landlordID id.UserID) ([]*leasemodels.Lease, error)
}
