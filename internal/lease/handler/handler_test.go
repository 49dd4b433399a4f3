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

	"lodger/internal/lease/service"
	leasestore "lodger/internal/lease/store/lease"
	occupancystore "lodger/internal/lease/store/occupancy"
	"lodger/internal/platform/middleware"
	"lodger/internal/property"
)

const signingKey = "handler-test-signing-key"

type HandlerSuite struct {
	suite.Suite
	router http.Handler

	landlordID id.UserID
	tenantID   id.UserID
	propertyID id.PropertyID
}

func (s *HandlerSuite) SetupTest() {
	s.landlordID = id.UserID(uuid.New())
	s.tenantID = id.UserID(uuid.New())
	s.propertyID = id.PropertyID(uuid.New())

	properties := property.NewInMemory()
	s.Require().NoError(properties.Create(context.Background(), &property.Property{
		ID:         s.propertyID,
		LandlordID: s.landlordID,
		Name:       "Main Street 4",
	}))

	svc := service.New(
		leasestore.NewInMemory(),
		occupancystore.NewInMemory(),
		property.NewDirectory(properties),
	)
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))

	h := New(svc, logger)
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

func (s *HandlerSuite) createBody() *CreateLeaseRequest {
	start := time.Now().UTC().Truncate(time.Hour)
	return &CreateLeaseRequest{
		TenantID:        s.tenantID.String(),
		PropertyID:      s.propertyID.String(),
		StartDate:       start,
		EndDate:         start.AddDate(1, 0, 0),
		RentAmount:      decimal.NewFromInt(1500),
		SecurityDeposit: decimal.NewFromInt(3000),
		Terms:           "twelve months",
	}
}

func (s *HandlerSuite) createLease() *LeaseResponse {
	rec := s.do(http.MethodPost, "/leases", s.createBody(), s.landlordID, middleware.RoleLandlord)
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())

	var res LeaseResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &res))
	return &res
}

func (s *HandlerSuite) TestAuthRequired() {
	req := httptest.NewRequest(http.MethodGet, "/leases", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	s.Equal(http.StatusUnauthorized, rec.Code)
}

func (s *HandlerSuite) TestCreateLease() {
	res := s.createLease()

	s.Equal("pending", res.Status)
	s.Equal(s.tenantID.String(), res.TenantID)
	s.Equal(s.landlordID.String(), res.LandlordID)
	s.True(decimal.NewFromInt(1500).Equal(res.RentAmount))
}

func (s *HandlerSuite) TestCreateLeaseRequiresLandlordRole() {
	rec := s.do(http.MethodPost, "/leases", s.createBody(), s.tenantID, middleware.RoleTenant)
	s.Equal(http.StatusForbidden, rec.Code)
}

func (s *HandlerSuite) TestCreateLeaseRejectsBadDates() {
	body := s.createBody()
	body.EndDate = body.StartDate.AddDate(0, 0, -1)

	rec := s.do(http.MethodPost, "/leases", body, s.landlordID, middleware.RoleLandlord)
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *HandlerSuite) TestAcceptLease() {
	lease := s.createLease()

	rec := s.do(http.MethodPost, "/leases/"+lease.ID+"/accept", nil, s.tenantID, middleware.RoleTenant)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

	var res LeaseResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &res))
	s.Equal("active", res.Status)
	s.NotNil(res.AcceptedAt)
}

func (s *HandlerSuite) TestAcceptLeaseWrongTenant() {
	lease := s.createLease()

	rec := s.do(http.MethodPost, "/leases/"+lease.ID+"/accept", nil, id.UserID(uuid.New()), middleware.RoleTenant)
	s.Equal(http.StatusForbidden, rec.Code)
}

func (s *HandlerSuite) TestRejectLease() {
	lease := s.createLease()

	rec := s.do(http.MethodPost, "/leases/"+lease.ID+"/reject",
		&ReasonRequest{Reason: "found another place"}, s.tenantID, middleware.RoleTenant)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

	var res LeaseResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &res))
	s.Equal("rejected", res.Status)
	s.Equal("found another place", res.RejectionReason)
}

func (s *HandlerSuite) TestRejectLeaseRequiresReason() {
	lease := s.createLease()

	rec := s.do(http.MethodPost, "/leases/"+lease.ID+"/reject",
		&ReasonRequest{}, s.tenantID, middleware.RoleTenant)
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *HandlerSuite) TestTerminateLease() {
	lease := s.createLease()
	s.do(http.MethodPost, "/leases/"+lease.ID+"/accept", nil, s.tenantID, middleware.RoleTenant)

	rec := s.do(http.MethodPost, "/leases/"+lease.ID+"/terminate",
		&ReasonRequest{Reason: "property sold"}, s.landlordID, middleware.RoleLandlord)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

	var res LeaseResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &res))
	s.Equal("terminated", res.Status)
	s.Equal("property sold", res.TerminationReason)
}

func (s *HandlerSuite) TestTerminatePendingLeaseConflicts() {
	lease := s.createLease()

	rec := s.do(http.MethodPost, "/leases/"+lease.ID+"/terminate",
		&ReasonRequest{Reason: "changed mind"}, s.landlordID, middleware.RoleLandlord)
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *HandlerSuite) TestRenewLease() {
	lease := s.createLease()
	s.do(http.MethodPost, "/leases/"+lease.ID+"/accept", nil, s.tenantID, middleware.RoleTenant)

	// Lease runs a year; the default 30 day renewal window has not opened.
	body := &RenewLeaseRequest{
		StartDate:  lease.EndDate.AddDate(0, 0, 1),
		EndDate:    lease.EndDate.AddDate(1, 0, 1),
		RentAmount: decimal.NewFromInt(1600),
	}
	rec := s.do(http.MethodPost, "/leases/"+lease.ID+"/renew", body, s.landlordID, middleware.RoleLandlord)
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *HandlerSuite) TestDeleteLease() {
	lease := s.createLease()

	rec := s.do(http.MethodDelete, "/leases/"+lease.ID, nil, s.landlordID, middleware.RoleLandlord)
	s.Require().Equal(http.StatusNoContent, rec.Code)

	rec = s.do(http.MethodGet, "/leases/"+lease.ID, nil, s.landlordID, middleware.RoleLandlord)
	s.Equal(http.StatusNotFound, rec.Code)
}

func (s *HandlerSuite) TestGetLeaseHiddenFromStrangers() {
	lease := s.createLease()

	rec := s.do(http.MethodGet, "/leases/"+lease.ID, nil, id.UserID(uuid.New()), middleware.RoleTenant)
	s.Equal(http.StatusForbidden, rec.Code)

	// Admins can read any lease.
	rec = s.do(http.MethodGet, "/leases/"+lease.ID, nil, id.UserID(uuid.New()), middleware.RoleAdmin)
	s.Equal(http.StatusOK, rec.Code)
}

func (s *HandlerSuite) TestListLeasesByRole() {
	s.createLease()

	rec := s.do(http.MethodGet, "/leases", nil, s.tenantID, middleware.RoleTenant)
	s.Require().Equal(http.StatusOK, rec.Code)

	var res LeaseListResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &res))
	s.Equal(1, res.Count)

	rec = s.do(http.MethodGet, "/leases", nil, id.UserID(uuid.New()), middleware.RoleTenant)
	s.Require().Equal(http.StatusOK, rec.Code)
	res = LeaseListResponse{}
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &res))
	s.Equal(0, res.Count)
}

func (s *HandlerSuite) TestInviteOccupant() {
	body := &InviteOccupantRequest{
		TenantID:   s.tenantID.String(),
		PropertyID: s.propertyID.String(),
		RentAmount: decimal.NewFromInt(800),
		StartDate:  time.Now().UTC(),
	}
	rec := s.do(http.MethodPost, "/occupancies/invite", body, s.landlordID, middleware.RoleLandlord)
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())

	var res OccupancyResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &res))
	s.Equal("active", res.Status)
}

func (s *HandlerSuite) TestExpireSweepAdminOnly() {
	rec := s.do(http.MethodPost, "/admin/leases/expire", nil, s.landlordID, middleware.RoleLandlord)
	s.Equal(http.StatusForbidden, rec.Code)

	rec = s.do(http.MethodPost, "/admin/leases/expire", nil, id.UserID(uuid.New()), middleware.RoleAdmin)
	s.Equal(http.StatusOK, rec.Code)
}
