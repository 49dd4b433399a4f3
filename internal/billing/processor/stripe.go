package processor

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	dErrors "lodger/pkg/domain-errors"
	"lodger/pkg/platform/circuit"
)

const defaultTimeout = 10 * time.Second

// StripeClient talks to a Stripe-compatible checkout API: form-encoded
// POSTs authenticated with a bearer secret key. A circuit breaker fails
// fast when the provider is down so request handlers do not pile up on a
// dead upstream.
type StripeClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	breaker    *circuit.Breaker
	logger     *slog.Logger
}

// StripeOption configures the client.
type StripeOption func(*StripeClient)

// WithHTTPClient overrides the HTTP client. Used by tests.
func WithHTTPClient(c *http.Client) StripeOption {
	return func(s *StripeClient) {
		if c != nil {
			s.httpClient = c
		}
	}
}

// WithBreaker overrides the circuit breaker.
func WithBreaker(b *circuit.Breaker) StripeOption {
	return func(s *StripeClient) {
		if b != nil {
			s.breaker = b
		}
	}
}

// NewStripeClient builds a client for the given API base URL and secret key.
func NewStripeClient(baseURL, apiKey string, logger *slog.Logger, opts ...StripeOption) *StripeClient {
	c := &StripeClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: defaultTimeout},
		breaker:    circuit.New("payment-processor"),
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type sessionPayload struct {
	ID        string `json:"id"`
	URL       string `json:"url"`
	ExpiresAt int64  `json:"expires_at"`
	Status    string `json:"status"`
}

type errorPayload struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// CreateCheckoutSession opens a hosted checkout session for the invoice.
// Amounts go over the wire in minor units.
func (c *StripeClient) CreateCheckoutSession(ctx context.Context, params CheckoutParams) (*CheckoutSession, error) {
	currency := params.Currency
	if currency == "" {
		currency = "usd"
	}
	form := url.Values{}
	form.Set("amount", params.Amount.Shift(2).Truncate(0).String())
	form.Set("currency", currency)
	form.Set("description", params.Description)
	form.Set("client_reference_id", params.InvoiceID.String())
	form.Set("metadata[tenant_id]", params.TenantID.String())

	var payload sessionPayload
	if err := c.do(ctx, "/v1/checkout/sessions", form, &payload); err != nil {
		return nil, err
	}
	if payload.ID == "" {
		return nil, dErrors.New(dErrors.CodeExternal, "payment processor returned no session id")
	}
	return &CheckoutSession{
		ID:        payload.ID,
		URL:       payload.URL,
		ExpiresAt: time.Unix(payload.ExpiresAt, 0).UTC(),
	}, nil
}

// ExpireSession invalidates a previously created session.
func (c *StripeClient) ExpireSession(ctx context.Context, sessionID string) error {
	var payload sessionPayload
	return c.do(ctx, "/v1/checkout/sessions/"+url.PathEscape(sessionID)+"/expire", url.Values{}, &payload)
}

func (c *StripeClient) do(ctx context.Context, path string, form url.Values, out any) error {
	if !c.breaker.Allow() {
		return dErrors.New(dErrors.CodeExternal, "payment processor unavailable")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "build processor request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.recordFailure()
		return dErrors.Wrap(err, dErrors.CodeExternal, "payment processor request failed")
	}
	defer resp.Body.Close() //nolint:errcheck // response body

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		c.recordFailure()
		return dErrors.Wrap(err, dErrors.CodeExternal, "read processor response")
	}

	if resp.StatusCode >= 500 {
		c.recordFailure()
		return dErrors.New(dErrors.CodeExternal,
			fmt.Sprintf("payment processor error: status %d", resp.StatusCode))
	}
	if resp.StatusCode >= 400 {
		// Client errors are ours, not the provider's; the circuit stays closed.
		c.breaker.RecordSuccess()
		var ep errorPayload
		if json.Unmarshal(body, &ep) == nil && ep.Error.Message != "" {
			return dErrors.New(dErrors.CodeExternal, "payment processor rejected request: "+ep.Error.Message)
		}
		return dErrors.New(dErrors.CodeExternal,
			fmt.Sprintf("payment processor rejected request: status %d", resp.StatusCode))
	}

	if c.breaker.RecordSuccess() {
		c.logger.Info("payment processor circuit closed", "breaker", c.breaker.Name())
	}
	if err := json.Unmarshal(body, out); err != nil {
		return dErrors.Wrap(err, dErrors.CodeExternal, "decode processor response")
	}
	return nil
}

func (c *StripeClient) recordFailure() {
	if c.breaker.RecordFailure() {
		c.logger.Warn("payment processor circuit opened", "breaker", c.breaker.Name())
	}
}
