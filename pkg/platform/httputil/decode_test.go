package httputil

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"

	dErrors "lodger/pkg/domain-errors"
)

type fakeRequest struct {
	Name string `json:"name"`
}

func (r *fakeRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
}

func (r *fakeRequest) Validate() error {
	if r.Name == "" {
		return dErrors.New(dErrors.CodeValidation, "name is required")
	}
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func TestDecodeAndPrepare(t *testing.T) {
	req := httptest.NewRequest("POST", "/", strings.NewReader(`{"name":"  unit 4b  "}`))
	rec := httptest.NewRecorder()

	decoded, ok := DecodeAndPrepare[fakeRequest](rec, req, testLogger(), req.Context(), "req-1")
	if !ok {
		t.Fatalf("expected decode to succeed")
	}
	if decoded.Name != "unit 4b" {
		t.Fatalf("expected normalized name, got %q", decoded.Name)
	}
}

func TestDecodeAndPrepareValidationFailure(t *testing.T) {
	req := httptest.NewRequest("POST", "/", strings.NewReader(`{"name":"   "}`))
	rec := httptest.NewRecorder()

	_, ok := DecodeAndPrepare[fakeRequest](rec, req, testLogger(), req.Context(), "req-2")
	if ok {
		t.Fatalf("expected validation failure")
	}
	if rec.Code != 400 {
		t.Fatalf("expected 400, got %d", rec.Code)
	}

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid error body: %v", err)
	}
	if body["error"] != string(dErrors.CodeValidation) {
		t.Fatalf("unexpected error code %q", body["error"])
	}
}

func TestDecodeMalformedBody(t *testing.T) {
	req := httptest.NewRequest("POST", "/", strings.NewReader(`{`))
	rec := httptest.NewRecorder()

	_, ok := DecodeJSON[fakeRequest](rec, req, testLogger(), req.Context(), "req-3")
	if ok {
		t.Fatalf("expected decode failure")
	}
	if rec.Code != 400 {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestWriteErrorStatusMapping(t *testing.T) {
	cases := []struct {
		code   dErrors.Code
		status int
	}{
		{dErrors.CodeNotFound, 404},
		{dErrors.CodeValidation, 400},
		{dErrors.CodeInvalidState, 400},
		{dErrors.CodeForbidden, 403},
		{dErrors.CodeConflict, 409},
		{dErrors.CodeExternal, 502},
		{dErrors.CodeInternal, 500},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		WriteError(rec, dErrors.New(tc.code, "boom"))
		if rec.Code != tc.status {
			t.Fatalf("code %s: expected %d, got %d", tc.code, tc.status, rec.Code)
		}
	}
}
