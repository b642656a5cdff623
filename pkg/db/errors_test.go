package db

import (
	"errors"
	"testing"
)

func TestIsUniqueViolation(t *testing.T) {
	pgErr := errors.New(`duplicate key value violates unique constraint "payments_provider_ref_key"`)
	if !IsUniqueViolation(pgErr, "provider_ref") {
		t.Fatal("postgres duplicate key not recognized")
	}

	sqliteErr := errors.New("UNIQUE constraint failed: payments.provider_ref")
	if !IsUniqueViolation(sqliteErr, "provider_ref") {
		t.Fatal("sqlite unique constraint not recognized")
	}

	// Constraint name matches even when the driver message is unfamiliar.
	namedErr := errors.New("constraint violation on payments_provider_ref_key")
	if !IsUniqueViolation(namedErr, "provider_ref") {
		t.Fatal("constraint name match not recognized")
	}

	if IsUniqueViolation(errors.New("connection reset by peer"), "provider_ref") {
		t.Fatal("unrelated error misclassified")
	}
	if IsUniqueViolation(nil, "provider_ref") {
		t.Fatal("nil error misclassified")
	}
}
