package handler

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	id "lodger/pkg/domain"

	billingmodels "lodger/internal/billing/models"
	invoicestore "lodger/internal/billing/store/invoice"
	paymentstore "lodger/internal/billing/store/payment"
	"lodger/internal/webhook/service"
	eventstore "lodger/internal/webhook/store/event"
)

const webhookSecret = "webhook-handler-test-secret"

type HandlerSuite struct {
	suite.Suite
	router   http.Handler
	invoices *invoicestore.InMemory
	payments *paymentstore.InMemory
	events   *eventstore.InMemory

	invoiceID id.InvoiceID
	paymentID id.PaymentID
	sessionID string
}

func (s *HandlerSuite) SetupTest() {
	s.invoices = invoicestore.NewInMemory()
	s.payments = paymentstore.NewInMemory()
	s.events = eventstore.NewInMemory()
	s.sessionID = "cs_test_suite_001"

	ctx := context.Background()
	now := time.Now().UTC()

	inv, err := billingmodels.NewInvoice(
		id.InvoiceID(uuid.New()), id.UserID(uuid.New()), id.UserID(uuid.New()),
		id.PropertyID(uuid.New()), nil,
		decimal.NewFromInt(950), now.AddDate(0, 0, 5), "Rent", billingmodels.CategoryRent, false, now)
	s.Require().NoError(err)
	s.Require().NoError(s.invoices.Create(ctx, inv))
	s.invoiceID = inv.ID

	expires := now.Add(24 * time.Hour)
	p := billingmodels.NewCardPayment(id.PaymentID(uuid.New()), inv, s.sessionID,
		"https://checkout.example/"+s.sessionID, &expires, now)
	s.Require().NoError(s.payments.Create(ctx, p))
	s.paymentID = p.ID

	s.Require().NoError(inv.MarkProcessing(now))
	s.Require().NoError(s.invoices.Update(ctx, inv))

	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	reconciler := service.New(s.events, s.payments, s.invoices, logger)

	h := New([]byte(webhookSecret), reconciler, logger)
	r := chi.NewRouter()
	h.Register(r)
	s.router = r
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func (s *HandlerSuite) deliver(body []byte, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/payments", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if signature != "" {
		req.Header.Set(SignatureHeader, signature)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *HandlerSuite) eventBody(eventID, eventType, objectID string) []byte {
	return fmt.Appendf(nil, `{"id":%q,"type":%q,"data":{"object":{"id":%q}}}`, eventID, eventType, objectID)
}

func (s *HandlerSuite) TestCheckoutCompletedSettlesInvoice() {
	body := s.eventBody("evt_100", service.EventCheckoutCompleted, s.sessionID)

	rec := s.deliver(body, sign(webhookSecret, body))
	s.Equal(http.StatusOK, rec.Code)

	inv, err := s.invoices.FindByID(context.Background(), s.invoiceID)
	s.Require().NoError(err)
	s.Equal(billingmodels.InvoiceStatusPaid, inv.Status)

	p, err := s.payments.FindByID(context.Background(), s.paymentID)
	s.Require().NoError(err)
	s.Equal(billingmodels.PaymentStatusCompleted, p.Status)
}

func (s *HandlerSuite) TestRedeliveryIsAcknowledged() {
	body := s.eventBody("evt_101", service.EventCheckoutCompleted, s.sessionID)

	for i := 0; i < 3; i++ {
		rec := s.deliver(body, sign(webhookSecret, body))
		s.Equal(http.StatusOK, rec.Code, "delivery %d", i+1)
	}

	inv, err := s.invoices.FindByID(context.Background(), s.invoiceID)
	s.Require().NoError(err)
	s.Equal(billingmodels.InvoiceStatusPaid, inv.Status)
}

func (s *HandlerSuite) TestMissingSignatureRejected() {
	body := s.eventBody("evt_102", service.EventCheckoutCompleted, s.sessionID)

	rec := s.deliver(body, "")
	s.Equal(http.StatusUnauthorized, rec.Code)

	inv, err := s.invoices.FindByID(context.Background(), s.invoiceID)
	s.Require().NoError(err)
	s.Equal(billingmodels.InvoiceStatusProcessing, inv.Status)
}

func (s *HandlerSuite) TestWrongSignatureRejected() {
	body := s.eventBody("evt_103", service.EventCheckoutCompleted, s.sessionID)

	rec := s.deliver(body, sign("some-other-secret", body))
	s.Equal(http.StatusUnauthorized, rec.Code)
}

func (s *HandlerSuite) TestTamperedBodyRejected() {
	body := s.eventBody("evt_104", service.EventCheckoutCompleted, s.sessionID)
	signature := sign(webhookSecret, body)
	tampered := s.eventBody("evt_104", service.EventCheckoutCompleted, "cs_attacker")

	rec := s.deliver(tampered, signature)
	s.Equal(http.StatusUnauthorized, rec.Code)
}

func (s *HandlerSuite) TestMalformedPayloadRejected() {
	body := []byte(`{"id":`)

	rec := s.deliver(body, sign(webhookSecret, body))
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *HandlerSuite) TestMissingEventIDRejected() {
	body := []byte(`{"type":"checkout.session.completed","data":{"object":{"id":"cs_x"}}}`)

	rec := s.deliver(body, sign(webhookSecret, body))
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *HandlerSuite) TestPaymentFailedReopensInvoice() {
	body := s.eventBody("evt_105", service.EventPaymentFailed, s.sessionID)

	rec := s.deliver(body, sign(webhookSecret, body))
	s.Equal(http.StatusOK, rec.Code)

	inv, err := s.invoices.FindByID(context.Background(), s.invoiceID)
	s.Require().NoError(err)
	s.Equal(billingmodels.InvoiceStatusDue, inv.Status)

	p, err := s.payments.FindByID(context.Background(), s.paymentID)
	s.Require().NoError(err)
	s.Equal(billingmodels.PaymentStatusFailed, p.Status)
}

func (s *HandlerSuite) TestUnknownEventTypeAcknowledged() {
	body := s.eventBody("evt_106", "customer.created", "cus_001")

	rec := s.deliver(body, sign(webhookSecret, body))
	s.Equal(http.StatusOK, rec.Code)
}
