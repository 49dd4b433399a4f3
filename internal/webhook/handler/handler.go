// Package handler receives payment processor webhook deliveries.
// The endpoint is unauthenticated; deliveries are verified with an
// HMAC-SHA256 signature over the raw body instead.
package handler

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	dErrors "lodger/pkg/domain-errors"
	"lodger/pkg/platform/httputil"

	"lodger/internal/webhook/service"
)

// SignatureHeader carries the hex HMAC-SHA256 of the request body.
const SignatureHeader = "X-Signature"

const maxBodyBytes = 1 << 20

// Reconciler applies a verified processor event.
type Reconciler interface {
	Process(ctx context.Context, evt *service.IncomingEvent) error
}

type metricsRecorder interface {
	IncrementSignatureFailure()
}

type Handler struct {
	secret     []byte
	reconciler Reconciler
	metrics    metricsRecorder
	logger     *slog.Logger
}

// Option configures the handler.
type Option func(*Handler)

// WithMetrics attaches Prometheus metrics. Nil-safe when omitted.
func WithMetrics(m metricsRecorder) Option {
	return func(h *Handler) {
		if m != nil {
			h.metrics = m
		}
	}
}

func New(secret []byte, reconciler Reconciler, logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{secret: secret, reconciler: reconciler, logger: logger}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/webhooks/payments", h.HandlePaymentEvent)
}

// eventEnvelope is the slice of the processor payload we act on. The
// full body is kept verbatim in the event record.
type eventEnvelope struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object struct {
			ID string `json:"id"`
		} `json:"object"`
	} `json:"data"`
}

// HandlePaymentEvent verifies, parses, and reconciles one delivery.
// The signature is checked before any state is touched; a duplicate
// delivery is acknowledged with 200 so the processor stops retrying.
func (h *Handler) HandlePaymentEvent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "failed to read request body"))
		return
	}

	if !h.verifySignature(body, r.Header.Get(SignatureHeader)) {
		h.logger.WarnContext(ctx, "webhook signature verification failed", "remote_addr", r.RemoteAddr)
		if h.metrics != nil {
			h.metrics.IncrementSignatureFailure()
		}
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "invalid webhook signature"))
		return
	}

	var env eventEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "malformed event payload"))
		return
	}
	if env.ID == "" || env.Type == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "event id and type are required"))
		return
	}

	evt := &service.IncomingEvent{
		ID:       env.ID,
		Type:     env.Type,
		ObjectID: env.Data.Object.ID,
		Raw:      json.RawMessage(body),
	}
	if err := h.reconciler.Process(ctx, evt); err != nil {
		h.logger.ErrorContext(ctx, "failed to process webhook event", "error", err, "event_id", env.ID)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]string{"received": env.ID})
}

// verifySignature compares the provided hex digest against the HMAC of
// the body. An unset secret rejects every delivery.
func (h *Handler) verifySignature(body []byte, signature string) bool {
	if len(h.secret) == 0 || signature == "" {
		return false
	}
	provided, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, h.secret)
	mac.Write(body)
	return hmac.Equal(provided, mac.Sum(nil))
}
