package service

import (
	"time"

	"github.com/shopspring/decimal"

	id "lodger/pkg/domain"

	"lodger/internal/billing/models"
)

// CreateInvoiceCommand carries a landlord's one-off or rent invoice.
type CreateInvoiceCommand struct {
	LandlordID  id.UserID
	TenantID    id.UserID
	PropertyID  id.PropertyID
	UnitID      *id.UnitID
	Amount      decimal.Decimal
	DueDate     time.Time
	Description string
	Category    models.InvoiceCategory
	Draft       bool
}

// UpdateInvoiceCommand mutates an editable invoice. Nil fields are left
// unchanged; Issue moves a draft to due after applying the changes.
type UpdateInvoiceCommand struct {
	Amount      *decimal.Decimal
	DueDate     *time.Time
	Description *string
	Issue       bool
}

// SkippedInvoice reports a lease the recurring run did not invoice.
type SkippedInvoice struct {
	LeaseID  id.LeaseID `json:"lease_id"`
	TenantID id.UserID  `json:"tenant_id"`
	Reason   string     `json:"reason"`
}

// GenerationResult summarizes one recurring invoice run.
type GenerationResult struct {
	Created []*models.Invoice `json:"created"`
	Skipped []SkippedInvoice  `json:"skipped"`
}
