package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	id "lodger/pkg/domain"

	"lodger/internal/billing/processor"
	"lodger/internal/billing/service"
	invoicestore "lodger/internal/billing/store/invoice"
	paymentstore "lodger/internal/billing/store/payment"
	leasemodels "lodger/internal/lease/models"
	leasestore "lodger/internal/lease/store/lease"
	occupancystore "lodger/internal/lease/store/occupancy"
	"lodger/internal/platform/middleware"
)

const signingKey = "billing-handler-test-key"

type HandlerSuite struct {
	suite.Suite
	router http.Handler
	proc   *processor.Fake

	landlordID id.UserID
	tenantID   id.UserID
	propertyID id.PropertyID
}

func (s *HandlerSuite) SetupTest() {
	s.landlordID = id.UserID(uuid.New())
	s.tenantID = id.UserID(uuid.New())
	s.propertyID = id.PropertyID(uuid.New())

	invoices := invoicestore.NewInMemory()
	payments := paymentstore.NewInMemory()
	leases := leasestore.NewInMemory()
	occupancies := occupancystore.NewInMemory()
	s.proc = processor.NewFake()

	now := time.Now().UTC()
	s.Require().NoError(occupancies.Create(context.Background(), &leasemodels.Occupancy{
		ID:         id.OccupancyID(uuid.New()),
		TenantID:   s.tenantID,
		PropertyID: s.propertyID,
		RentAmount: decimal.NewFromInt(1100),
		Status:     leasemodels.OccupancyStatusActive,
		StartDate:  now.AddDate(0, -2, 0),
		CreatedAt:  now,
		UpdatedAt:  now,
	}))

	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	invoiceSvc := service.NewInvoiceService(invoices, payments, occupancies, leases)
	paymentSvc := service.NewPaymentService(invoices, payments, s.proc, logger)

	h := New(invoiceSvc, paymentSvc, logger)
	r := chi.NewRouter()
	r.Use(middleware.RequireAuth(signingKey, logger))
	h.Register(r)
	s.router = r
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) token(userID id.UserID, role middleware.Role) string {
	claims := jwt.MapClaims{
		"sub":  userID.String(),
		"role": string(role),
		"exp":  time.Now().Add(time.Hour).Unix(),
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(signingKey))
	s.Require().NoError(err)
	return raw
}

func (s *HandlerSuite) do(method, path string, body any, userID id.UserID, role middleware.Role) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		s.Require().NoError(json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.token(userID, role))
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *HandlerSuite) createBody() *CreateInvoiceRequest {
	return &CreateInvoiceRequest{
		TenantID:    s.tenantID.String(),
		PropertyID:  s.propertyID.String(),
		Amount:      decimal.NewFromInt(250),
		DueDate:     time.Now().UTC().AddDate(0, 0, 10),
		Description: "broken window",
		Category:    "other",
	}
}

func (s *HandlerSuite) createInvoice() *InvoiceResponse {
	rec := s.do(http.MethodPost, "/billing/invoices", s.createBody(), s.landlordID, middleware.RoleLandlord)
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())

	var res InvoiceResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &res))
	return &res
}

func (s *HandlerSuite) TestCreateInvoice() {
	res := s.createInvoice()
	s.Equal("due", res.Status)
	s.Equal("other", res.Category)
}

func (s *HandlerSuite) TestCreateInvoiceTenantForbidden() {
	rec := s.do(http.MethodPost, "/billing/invoices", s.createBody(), s.tenantID, middleware.RoleTenant)
	s.Equal(http.StatusForbidden, rec.Code)
}

func (s *HandlerSuite) TestCreateInvoiceUnknownOccupancy() {
	body := s.createBody()
	body.TenantID = uuid.New().String()

	rec := s.do(http.MethodPost, "/billing/invoices", body, s.landlordID, middleware.RoleLandlord)
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *HandlerSuite) TestOverdueDerivedInResponse() {
	body := s.createBody()
	body.DueDate = time.Now().UTC().AddDate(0, 0, -3)

	rec := s.do(http.MethodPost, "/billing/invoices", body, s.landlordID, middleware.RoleLandlord)
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())

	var res InvoiceResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &res))
	s.Equal("overdue", res.Status)
}

func (s *HandlerSuite) TestUpdateInvoice() {
	inv := s.createInvoice()
	amount := decimal.NewFromInt(300)

	rec := s.do(http.MethodPut, "/billing/invoices/"+inv.ID,
		&UpdateInvoiceRequest{Amount: &amount}, s.landlordID, middleware.RoleLandlord)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

	var res InvoiceResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &res))
	s.True(amount.Equal(res.Amount))
}

func (s *HandlerSuite) TestUpdateInvoiceNoFields() {
	inv := s.createInvoice()

	rec := s.do(http.MethodPut, "/billing/invoices/"+inv.ID,
		&UpdateInvoiceRequest{}, s.landlordID, middleware.RoleLandlord)
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *HandlerSuite) TestDeleteInvoice() {
	inv := s.createInvoice()

	rec := s.do(http.MethodDelete, "/billing/invoices/"+inv.ID, nil, s.landlordID, middleware.RoleLandlord)
	s.Require().Equal(http.StatusNoContent, rec.Code)

	rec = s.do(http.MethodGet, "/billing/invoices/"+inv.ID, nil, s.landlordID, middleware.RoleLandlord)
	s.Equal(http.StatusNotFound, rec.Code)
}

func (s *HandlerSuite) TestDraftHiddenFromTenant() {
	body := s.createBody()
	body.Draft = true

	rec := s.do(http.MethodPost, "/billing/invoices", body, s.landlordID, middleware.RoleLandlord)
	s.Require().Equal(http.StatusCreated, rec.Code)
	var draft InvoiceResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &draft))

	rec = s.do(http.MethodGet, "/billing/invoices/"+draft.ID, nil, s.tenantID, middleware.RoleTenant)
	s.Equal(http.StatusNotFound, rec.Code)

	rec = s.do(http.MethodGet, "/billing/invoices", nil, s.tenantID, middleware.RoleTenant)
	s.Require().Equal(http.StatusOK, rec.Code)
	var list InvoiceListResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &list))
	s.Equal(0, list.Count)
}

func (s *HandlerSuite) TestMarkPaid() {
	inv := s.createInvoice()

	rec := s.do(http.MethodPost, "/billing/invoices/"+inv.ID+"/mark-paid", nil, s.landlordID, middleware.RoleLandlord)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

	var res InvoiceResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &res))
	s.Equal("paid", res.Status)
	s.NotNil(res.PaidDate)
}

func (s *HandlerSuite) TestInitiatePayment() {
	inv := s.createInvoice()

	rec := s.do(http.MethodPost, "/billing/payments/initiate",
		&InitiatePaymentRequest{InvoiceID: inv.ID}, s.tenantID, middleware.RoleTenant)
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())

	var res PaymentResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &res))
	s.Equal("pending", res.Status)
	s.NotEmpty(res.SessionURL)

	// The invoice is reserved while checkout is in flight.
	rec = s.do(http.MethodGet, "/billing/invoices/"+inv.ID, nil, s.tenantID, middleware.RoleTenant)
	s.Require().Equal(http.StatusOK, rec.Code)
	var got InvoiceResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &got))
	s.Equal("processing", got.Status)
}

func (s *HandlerSuite) TestInitiatePaymentLandlordForbidden() {
	inv := s.createInvoice()

	rec := s.do(http.MethodPost, "/billing/payments/initiate",
		&InitiatePaymentRequest{InvoiceID: inv.ID}, s.landlordID, middleware.RoleLandlord)
	s.Equal(http.StatusForbidden, rec.Code)
}

func (s *HandlerSuite) TestListPayments() {
	inv := s.createInvoice()
	rec := s.do(http.MethodPost, "/billing/payments/initiate",
		&InitiatePaymentRequest{InvoiceID: inv.ID}, s.tenantID, middleware.RoleTenant)
	s.Require().Equal(http.StatusCreated, rec.Code)

	rec = s.do(http.MethodGet, "/billing/payments", nil, s.tenantID, middleware.RoleTenant)
	s.Require().Equal(http.StatusOK, rec.Code)

	var list PaymentListResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &list))
	s.Equal(1, list.Count)
}

func (s *HandlerSuite) TestGenerateInvoicesValidation() {
	rec := s.do(http.MethodPost, "/billing/invoices/generate",
		&GenerateInvoicesRequest{Month: 13, Year: 2026}, s.landlordID, middleware.RoleLandlord)
	s.Equal(http.StatusBadRequest, rec.Code)
}
