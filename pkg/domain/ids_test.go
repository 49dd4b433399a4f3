package domain

import (
	"testing"

	"github.com/google/uuid"

	dErrors "lodger/pkg/domain-errors"
)

func TestParseLeaseID(t *testing.T) {
	raw := uuid.New()
	id, err := ParseLeaseID(raw.String())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id.String() != raw.String() {
		t.Fatalf("expected round trip, got %s", id.String())
	}
}

func TestParseEmptyID(t *testing.T) {
	_, err := ParseInvoiceID("")
	if err == nil {
		t.Fatalf("expected error for empty id")
	}
	if !dErrors.HasCode(err, dErrors.CodeBadRequest) {
		t.Fatalf("expected bad_request code, got %v", err)
	}
}

func TestParseMalformedID(t *testing.T) {
	_, err := ParseUserID("not-a-uuid")
	if err == nil {
		t.Fatalf("expected error for malformed id")
	}
}

func TestIsNil(t *testing.T) {
	var zero PaymentID
	if !zero.IsNil() {
		t.Fatalf("zero value should be nil")
	}
	if PaymentID(uuid.New()).IsNil() {
		t.Fatalf("random id should not be nil")
	}
}
