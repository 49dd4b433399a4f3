package handler

import (
	"time"

	"github.com/shopspring/decimal"

	"lodger/internal/billing/models"
)

// InvoiceResponse is the HTTP shape of an invoice. Status is the derived
// status: due invoices past their due date read as overdue.
type InvoiceResponse struct {
	ID          string          `json:"id"`
	TenantID    string          `json:"tenant_id"`
	LandlordID  string          `json:"landlord_id"`
	PropertyID  string          `json:"property_id"`
	UnitID      string          `json:"unit_id,omitempty"`
	LeaseID     string          `json:"lease_id,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
	DueDate     time.Time       `json:"due_date"`
	Description string          `json:"description,omitempty"`
	Category    string          `json:"category"`
	Status      string          `json:"status"`
	PaidDate    *time.Time      `json:"paid_date,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

type InvoiceListResponse struct {
	Invoices []*InvoiceResponse `json:"invoices"`
	Count    int                `json:"count"`
}

// PaymentResponse is the HTTP shape of a payment. SessionURL is where the
// tenant completes checkout while the payment is pending.
type PaymentResponse struct {
	ID               string          `json:"id"`
	TenantID         string          `json:"tenant_id"`
	InvoiceID        string          `json:"invoice_id"`
	Amount           decimal.Decimal `json:"amount"`
	Method           string          `json:"method"`
	Status           string          `json:"status"`
	SessionURL       string          `json:"session_url,omitempty"`
	SessionExpiresAt *time.Time      `json:"session_expires_at,omitempty"`
	FailureReason    string          `json:"failure_reason,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	CompletedAt      *time.Time      `json:"completed_at,omitempty"`
}

type PaymentListResponse struct {
	Payments []*PaymentResponse `json:"payments"`
	Count    int                `json:"count"`
}

func toInvoiceResponse(inv *models.Invoice, now time.Time) *InvoiceResponse {
	res := &InvoiceResponse{
		ID:          inv.ID.String(),
		TenantID:    inv.TenantID.String(),
		LandlordID:  inv.LandlordID.String(),
		PropertyID:  inv.PropertyID.String(),
		Amount:      inv.Amount,
		DueDate:     inv.DueDate,
		Description: inv.Description,
		Category:    string(inv.Category),
		Status:      string(inv.EffectiveStatus(now)),
		PaidDate:    inv.PaidDate,
		CreatedAt:   inv.CreatedAt,
		UpdatedAt:   inv.UpdatedAt,
	}
	if inv.UnitID != nil {
		res.UnitID = inv.UnitID.String()
	}
	if inv.LeaseID != nil {
		res.LeaseID = inv.LeaseID.String()
	}
	return res
}

func toInvoiceListResponse(invoices []*models.Invoice, now time.Time) *InvoiceListResponse {
	out := make([]*InvoiceResponse, 0, len(invoices))
	for _, inv := range invoices {
		out = append(out, toInvoiceResponse(inv, now))
	}
	return &InvoiceListResponse{Invoices: out, Count: len(out)}
}

func toPaymentResponse(p *models.Payment) *PaymentResponse {
	return &PaymentResponse{
		ID:               p.ID.String(),
		TenantID:         p.TenantID.String(),
		InvoiceID:        p.InvoiceID.String(),
		Amount:           p.Amount,
		Method:           string(p.Method),
		Status:           string(p.Status),
		SessionURL:       p.SessionURL,
		SessionExpiresAt: p.SessionExpiresAt,
		FailureReason:    p.FailureReason,
		CreatedAt:        p.CreatedAt,
		CompletedAt:      p.CompletedAt,
	}
}

func toPaymentListResponse(payments []*models.Payment) *PaymentListResponse {
	out := make([]*PaymentResponse, 0, len(payments))
	for _, p := range payments {
		out = append(out, toPaymentResponse(p))
	}
	return &PaymentListResponse{Payments: out, Count: len(out)}
}
