package models

import (
	"time"

	"github.com/shopspring/decimal"

	id "lodger/pkg/domain"
	dErrors "lodger/pkg/domain-errors"
)

// PaymentStatus tracks a payment attempt's lifecycle.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
)

// PaymentMethod records how the tenant paid.
type PaymentMethod string

const (
	MethodCard   PaymentMethod = "card"
	MethodManual PaymentMethod = "manual"
)

// Payment is one attempt to settle an invoice. Card payments reference an
// external checkout session; manual payments are recorded already completed.
type Payment struct {
	ID               id.PaymentID    `json:"id"`
	TenantID         id.UserID       `json:"tenant_id"`
	LandlordID       id.UserID       `json:"landlord_id"`
	InvoiceID        id.InvoiceID    `json:"invoice_id"`
	Amount           decimal.Decimal `json:"amount"`
	Method           PaymentMethod   `json:"method"`
	Status           PaymentStatus   `json:"status"`
	ExternalID       string          `json:"external_id,omitempty"`
	SessionURL       string          `json:"session_url,omitempty"`
	SessionExpiresAt *time.Time      `json:"session_expires_at,omitempty"`
	FailureReason    string          `json:"failure_reason,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	CompletedAt      *time.Time      `json:"completed_at,omitempty"`
}

// NewCardPayment records a pending payment bound to a checkout session.
func NewCardPayment(paymentID id.PaymentID, inv *Invoice, externalID, sessionURL string, sessionExpiresAt *time.Time, now time.Time) *Payment {
	return &Payment{
		ID:               paymentID,
		TenantID:         inv.TenantID,
		LandlordID:       inv.LandlordID,
		InvoiceID:        inv.ID,
		Amount:           inv.Amount,
		Method:           MethodCard,
		Status:           PaymentStatusPending,
		ExternalID:       externalID,
		SessionURL:       sessionURL,
		SessionExpiresAt: sessionExpiresAt,
		CreatedAt:        now,
	}
}

// NewManualPayment records a cash or bank-transfer payment, already settled.
func NewManualPayment(paymentID id.PaymentID, inv *Invoice, now time.Time) *Payment {
	completed := now
	return &Payment{
		ID:          paymentID,
		TenantID:    inv.TenantID,
		LandlordID:  inv.LandlordID,
		InvoiceID:   inv.ID,
		Amount:      inv.Amount,
		Method:      MethodManual,
		Status:      PaymentStatusCompleted,
		CreatedAt:   now,
		CompletedAt: &completed,
	}
}

// Complete settles a pending payment.
func (p *Payment) Complete(now time.Time) error {
	if p.Status != PaymentStatusPending {
		return dErrors.New(dErrors.CodeInvalidState, "payment is not pending")
	}
	p.Status = PaymentStatusCompleted
	completed := now
	p.CompletedAt = &completed
	return nil
}

// Fail marks a pending payment failed.
func (p *Payment) Fail(reason string, now time.Time) error {
	if p.Status != PaymentStatusPending {
		return dErrors.New(dErrors.CodeInvalidState, "payment is not pending")
	}
	p.Status = PaymentStatusFailed
	p.FailureReason = reason
	p.CompletedAt = nil
	return nil
}

// SessionValid reports whether the checkout session can still be reused.
func (p *Payment) SessionValid(now time.Time) bool {
	if p.Status != PaymentStatusPending || p.ExternalID == "" {
		return false
	}
	return p.SessionExpiresAt == nil || p.SessionExpiresAt.After(now)
}
