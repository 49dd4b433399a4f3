package handler

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	id "lodger/pkg/domain"
	dErrors "lodger/pkg/domain-errors"
	s "lodger/pkg/string"

	"lodger/internal/billing/models"
	"lodger/internal/billing/service"
)

// CreateInvoiceRequest is the landlord's invoice payload.
type CreateInvoiceRequest struct {
	TenantID    string          `json:"tenant_id"`
	PropertyID  string          `json:"property_id"`
	UnitID      string          `json:"unit_id,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
	DueDate     time.Time       `json:"due_date"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Draft       bool            `json:"draft,omitempty"`
}

func (r *CreateInvoiceRequest) Normalize() {
	s.TrimStrings(&r.TenantID, &r.PropertyID, &r.UnitID, &r.Description, &r.Category)
	r.Category = strings.ToLower(r.Category)
	if r.Category == "" {
		r.Category = string(models.CategoryOther)
	}
}

func (r *CreateInvoiceRequest) Validate() error {
	if r.TenantID == "" {
		return dErrors.New(dErrors.CodeValidation, "tenant_id is required")
	}
	if r.PropertyID == "" {
		return dErrors.New(dErrors.CodeValidation, "property_id is required")
	}
	if r.DueDate.IsZero() {
		return dErrors.New(dErrors.CodeValidation, "due_date is required")
	}
	if !models.ValidInvoiceCategory(models.InvoiceCategory(r.Category)) {
		return dErrors.New(dErrors.CodeValidation, "category must be rent or other")
	}
	return nil
}

func (r *CreateInvoiceRequest) ToCommand(landlordID id.UserID) (*service.CreateInvoiceCommand, error) {
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
	return &service.CreateInvoiceCommand{
		LandlordID:  landlordID,
		TenantID:    tenantID,
		PropertyID:  propertyID,
		UnitID:      unitID,
		Amount:      r.Amount,
		DueDate:     r.DueDate,
		Description: r.Description,
		Category:    models.InvoiceCategory(r.Category),
		Draft:       r.Draft,
	}, nil
}

// UpdateInvoiceRequest edits an editable invoice; omitted fields keep
// their values. Issue moves a draft to due.
type UpdateInvoiceRequest struct {
	Amount      *decimal.Decimal `json:"amount,omitempty"`
	DueDate     *time.Time       `json:"due_date,omitempty"`
	Description *string          `json:"description,omitempty"`
	Issue       bool             `json:"issue,omitempty"`
}

func (r *UpdateInvoiceRequest) Normalize() {
	if r.Description != nil {
		d := strings.TrimSpace(*r.Description)
		r.Description = &d
	}
}

func (r *UpdateInvoiceRequest) Validate() error {
	if r.Amount == nil && r.DueDate == nil && r.Description == nil && !r.Issue {
		return dErrors.New(dErrors.CodeValidation, "no fields to update")
	}
	return nil
}

func (r *UpdateInvoiceRequest) ToCommand() *service.UpdateInvoiceCommand {
	return &service.UpdateInvoiceCommand{
		Amount:      r.Amount,
		DueDate:     r.DueDate,
		Description: r.Description,
		Issue:       r.Issue,
	}
}

// GenerateInvoicesRequest selects the billing period for the recurring run.
type GenerateInvoicesRequest struct {
	Month int `json:"month"`
	Year  int `json:"year"`
}

func (r *GenerateInvoicesRequest) Validate() error {
	if r.Month < 1 || r.Month > 12 {
		return dErrors.New(dErrors.CodeValidation, "month must be between 1 and 12")
	}
	if r.Year == 0 {
		return dErrors.New(dErrors.CodeValidation, "year is required")
	}
	return nil
}

// InitiatePaymentRequest starts checkout for an invoice.
type InitiatePaymentRequest struct {
	InvoiceID string `json:"invoice_id"`
}

func (r *InitiatePaymentRequest) Normalize() {
	r.InvoiceID = strings.TrimSpace(r.InvoiceID)
}

func (r *InitiatePaymentRequest) Validate() error {
	if r.InvoiceID == "" {
		return dErrors.New(dErrors.CodeValidation, "invoice_id is required")
	}
	return nil
}
