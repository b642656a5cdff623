package checkout

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseMetadataNestedCustomerWins(t *testing.T) {
	meta := ParseMetadata(json.RawMessage(`{
		"email": "flat@example.com",
		"customer": {"email": "Nested@Example.com", "name": "Ada"},
		"package": "standard",
		"totalAmount": "175000.50"
	}`))

	if meta.Email != "nested@example.com" {
		t.Fatalf("expected nested email, got %q", meta.Email)
	}
	if meta.Name != "Ada" {
		t.Fatalf("expected nested name, got %q", meta.Name)
	}
	if meta.PackageSlug != "standard" {
		t.Fatalf("expected legacy package slug, got %q", meta.PackageSlug)
	}
	if !meta.TotalAmount.Equal(decimal.RequireFromString("175000.50")) {
		t.Fatalf("unexpected total %s", meta.TotalAmount)
	}
}

func TestParseMetadataNumericTotal(t *testing.T) {
	meta := ParseMetadata(json.RawMessage(`{"totalAmount": 150000}`))
	if !meta.TotalAmount.Equal(decimal.RequireFromString("150000")) {
		t.Fatalf("unexpected total %s", meta.TotalAmount)
	}
}

func TestParseMetadataAddonShapes(t *testing.T) {
	meta := ParseMetadata(json.RawMessage(`{
		"wordCount": 8000,
		"addons": ["cover-design", {"slug": "formatting", "wordCount": 10000}, {"id": "abc"}, {}, 42]
	}`))

	if len(meta.Addons) != 3 {
		t.Fatalf("expected 3 addon selections, got %d", len(meta.Addons))
	}
	// Bare strings inherit the top-level word count.
	if meta.Addons[0].Slug != "cover-design" || meta.Addons[0].WordCount == nil || *meta.Addons[0].WordCount != 8000 {
		t.Fatalf("unexpected first addon %+v", meta.Addons[0])
	}
	if meta.Addons[1].WordCount == nil || *meta.Addons[1].WordCount != 10000 {
		t.Fatalf("addon-level word count must win, got %+v", meta.Addons[1])
	}
	if meta.Addons[2].ID != "abc" {
		t.Fatalf("unexpected third addon %+v", meta.Addons[2])
	}
}

func TestParseMetadataMalformed(t *testing.T) {
	for _, raw := range []json.RawMessage{nil, json.RawMessage(``), json.RawMessage(`not json`), json.RawMessage(`[1,2]`)} {
		meta := ParseMetadata(raw)
		if meta.Email != "" || len(meta.Addons) != 0 {
			t.Fatalf("expected zero metadata for %q, got %+v", raw, meta)
		}
	}
}
