// Package processor is the boundary to the external payment provider.
// Everything behind the Processor interface runs outside database
// transactions; callers must persist results afterwards.
package processor

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	id "lodger/pkg/domain"
)

// CheckoutParams describes the payment to collect.
type CheckoutParams struct {
	InvoiceID   id.InvoiceID
	TenantID    id.UserID
	Amount      decimal.Decimal
	Currency    string
	Description string
}

// CheckoutSession is the provider's hosted payment session. The session id
// comes back later on webhooks as the payment's external id.
type CheckoutSession struct {
	ID        string
	URL       string
	ExpiresAt time.Time
}

// Processor creates and expires hosted checkout sessions.
type Processor interface {
	CreateCheckoutSession(ctx context.Context, params CheckoutParams) (*CheckoutSession, error)
	ExpireSession(ctx context.Context, sessionID string) error
}
