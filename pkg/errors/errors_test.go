package errors

import (
	"fmt"
	"net/http"
	"testing"
)

func TestMetadataForKnownCodes(t *testing.T) {
	cases := map[Code]int{
		CodeValidation:    http.StatusBadRequest,
		CodeNotFound:      http.StatusNotFound,
		CodeStateConflict: http.StatusConflict,
		CodeUnavailable:   http.StatusServiceUnavailable,
		CodeDependency:    http.StatusServiceUnavailable,
	}
	for code, status := range cases {
		if got := MetadataFor(code).HTTPStatus; got != status {
			t.Fatalf("code %s: expected status %d, got %d", code, status, got)
		}
	}
}

func TestMetadataForUnknownCodeFallsBack(t *testing.T) {
	if got := MetadataFor(Code("NOPE")).HTTPStatus; got != http.StatusInternalServerError {
		t.Fatalf("expected internal fallback, got %d", got)
	}
}

func TestWrapPreservesChain(t *testing.T) {
	cause := fmt.Errorf("socket closed")
	err := Wrap(CodeDependency, cause, "provider verify failed")

	typed := As(err)
	if typed == nil {
		t.Fatal("expected typed error")
	}
	if typed.Code() != CodeDependency {
		t.Fatalf("expected dependency code, got %s", typed.Code())
	}
	dump := Dump(err)
	if len(dump.Chain) != 2 {
		t.Fatalf("expected 2 chain entries, got %d", len(dump.Chain))
	}
}

func TestAsReturnsNilForPlainErrors(t *testing.T) {
	if As(fmt.Errorf("plain")) != nil {
		t.Fatal("expected nil for untyped error")
	}
}
