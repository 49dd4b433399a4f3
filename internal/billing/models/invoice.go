package models

import (
	"time"

	"github.com/shopspring/decimal"

	id "lodger/pkg/domain"
	dErrors "lodger/pkg/domain-errors"
)

// InvoiceStatus is the stored invoice state. Overdue is never stored; it
// is derived at read time from a due invoice's due date.
type InvoiceStatus string

const (
	InvoiceStatusDraft      InvoiceStatus = "draft"
	InvoiceStatusDue        InvoiceStatus = "due"
	InvoiceStatusProcessing InvoiceStatus = "processing"
	InvoiceStatusPaid       InvoiceStatus = "paid"
	InvoiceStatusCancelled  InvoiceStatus = "cancelled"

	// InvoiceStatusOverdue appears only in API responses, never in storage.
	InvoiceStatusOverdue InvoiceStatus = "overdue"
)

// InvoiceCategory distinguishes recurring rent from one-off charges.
type InvoiceCategory string

const (
	CategoryRent  InvoiceCategory = "rent"
	CategoryOther InvoiceCategory = "other"
)

func ValidInvoiceCategory(c InvoiceCategory) bool {
	return c == CategoryRent || c == CategoryOther
}

// Invoice is a billing obligation from a landlord to a tenant.
type Invoice struct {
	ID          id.InvoiceID    `json:"id"`
	TenantID    id.UserID       `json:"tenant_id"`
	LandlordID  id.UserID       `json:"landlord_id"`
	PropertyID  id.PropertyID   `json:"property_id"`
	UnitID      *id.UnitID      `json:"unit_id,omitempty"`
	LeaseID     *id.LeaseID     `json:"lease_id,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
	DueDate     time.Time       `json:"due_date"`
	Description string          `json:"description"`
	Category    InvoiceCategory `json:"category"`
	Status      InvoiceStatus   `json:"status"`
	PaidDate    *time.Time      `json:"paid_date,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// NewInvoice validates and builds an invoice. Draft invoices are hidden
// from tenants until the landlord issues them.
func NewInvoice(invoiceID id.InvoiceID, tenantID, landlordID id.UserID, propertyID id.PropertyID, unitID *id.UnitID,
	amount decimal.Decimal, dueDate time.Time, description string, category InvoiceCategory, draft bool, now time.Time) (*Invoice, error) {
	if !amount.IsPositive() {
		return nil, dErrors.New(dErrors.CodeValidation, "invoice amount must be positive")
	}
	if dueDate.IsZero() {
		return nil, dErrors.New(dErrors.CodeValidation, "invoice due date is required")
	}
	if !ValidInvoiceCategory(category) {
		return nil, dErrors.New(dErrors.CodeValidation, "invalid invoice category")
	}
	status := InvoiceStatusDue
	if draft {
		status = InvoiceStatusDraft
	}
	return &Invoice{
		ID:          invoiceID,
		TenantID:    tenantID,
		LandlordID:  landlordID,
		PropertyID:  propertyID,
		UnitID:      unitID,
		Amount:      amount,
		DueDate:     dueDate,
		Description: description,
		Category:    category,
		Status:      status,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// EffectiveStatus derives the externally visible status: a due invoice
// past its due date reads as overdue.
func (i *Invoice) EffectiveStatus(now time.Time) InvoiceStatus {
	if i.Status == InvoiceStatusDue && i.DueDate.Before(now) {
		return InvoiceStatusOverdue
	}
	return i.Status
}

// IsEditable reports whether a landlord may still update or delete the
// invoice. Once a payment touches it the invoice is frozen.
func (i *Invoice) IsEditable() bool {
	return i.Status == InvoiceStatusDraft || i.Status == InvoiceStatusDue
}

// Payable reports whether a tenant may initiate payment.
func (i *Invoice) Payable() bool {
	return i.Status == InvoiceStatusDue
}

// Issue moves a draft invoice to due.
func (i *Invoice) Issue(now time.Time) error {
	if i.Status != InvoiceStatusDraft {
		return dErrors.New(dErrors.CodeInvalidState, "only draft invoices can be issued")
	}
	i.Status = InvoiceStatusDue
	i.UpdatedAt = now
	return nil
}

// MarkProcessing reserves the invoice while an external payment is in flight.
func (i *Invoice) MarkProcessing(now time.Time) error {
	if i.Status != InvoiceStatusDue {
		return dErrors.New(dErrors.CodeInvalidState, "invoice is not payable")
	}
	i.Status = InvoiceStatusProcessing
	i.UpdatedAt = now
	return nil
}

// MarkPaid settles the invoice.
func (i *Invoice) MarkPaid(now time.Time) error {
	if i.Status != InvoiceStatusDue && i.Status != InvoiceStatusProcessing {
		return dErrors.New(dErrors.CodeInvalidState, "invoice cannot be settled from "+string(i.Status))
	}
	i.Status = InvoiceStatusPaid
	paid := now
	i.PaidDate = &paid
	i.UpdatedAt = now
	return nil
}

// ReopenToDue returns the invoice to due after a failed payment or a refund.
func (i *Invoice) ReopenToDue(now time.Time) error {
	if i.Status != InvoiceStatusProcessing && i.Status != InvoiceStatusPaid {
		return dErrors.New(dErrors.CodeInvalidState, "invoice cannot be reopened from "+string(i.Status))
	}
	i.Status = InvoiceStatusDue
	i.PaidDate = nil
	i.UpdatedAt = now
	return nil
}

// Cancel voids an unpaid invoice.
func (i *Invoice) Cancel(now time.Time) error {
	if !i.IsEditable() {
		return dErrors.New(dErrors.CodeInvalidState, "only draft or due invoices can be cancelled")
	}
	i.Status = InvoiceStatusCancelled
	i.UpdatedAt = now
	return nil
}
