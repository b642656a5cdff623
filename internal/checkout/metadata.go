package checkout

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

// AddonSelection references one catalog addon chosen at checkout, by id or
// slug, with an optional word count for per-word pricing.
type AddonSelection struct {
	ID        string
	Slug      string
	WordCount *int
}

// Metadata is the materializer's view of checkout metadata recorded on a
// payment. Checkout payloads come from the storefront and are never trusted:
// parsing is best-effort and unknown or malformed fields degrade to zero
// values instead of failing the payment.
type Metadata struct {
	Email string
	Name  string
	Phone string

	Locale string

	PackageID   string
	PackageSlug string
	PackageTier string

	BookSize          string
	PaperType         string
	Lamination        string
	IncludeCover      *bool
	IncludeFormatting *bool

	TotalAmount decimal.Decimal

	Addons []AddonSelection
}

type rawCustomer struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

type rawAddon struct {
	ID        string `json:"id"`
	Slug      string `json:"slug"`
	WordCount *int   `json:"wordCount"`
}

type rawMetadata struct {
	Customer *rawCustomer `json:"customer"`
	Email    string       `json:"email"`
	Name     string       `json:"name"`
	Phone    string       `json:"phone"`

	Locale string `json:"locale"`

	PackageID   string `json:"packageId"`
	PackageSlug string `json:"packageSlug"`
	PackageTier string `json:"packageTier"`
	Package     string `json:"package"`

	BookSize          string `json:"bookSize"`
	PaperType         string `json:"paperType"`
	Lamination        string `json:"lamination"`
	IncludeCover      *bool  `json:"includeCover"`
	IncludeFormatting *bool  `json:"includeFormatting"`

	TotalAmount json.RawMessage   `json:"totalAmount"`
	WordCount   *int              `json:"wordCount"`
	Addons      []json.RawMessage `json:"addons"`
}

// ParseMetadata decodes checkout metadata. A nil, empty, or malformed payload
// yields a zero Metadata rather than an error.
func ParseMetadata(raw json.RawMessage) Metadata {
	var decoded rawMetadata
	if len(raw) == 0 || json.Unmarshal(raw, &decoded) != nil {
		return Metadata{}
	}

	meta := Metadata{
		Email:             strings.ToLower(strings.TrimSpace(decoded.Email)),
		Name:              strings.TrimSpace(decoded.Name),
		Phone:             strings.TrimSpace(decoded.Phone),
		Locale:            strings.TrimSpace(decoded.Locale),
		PackageID:         strings.TrimSpace(decoded.PackageID),
		PackageSlug:       strings.TrimSpace(decoded.PackageSlug),
		PackageTier:       strings.TrimSpace(decoded.PackageTier),
		BookSize:          strings.TrimSpace(decoded.BookSize),
		PaperType:         strings.TrimSpace(decoded.PaperType),
		Lamination:        strings.TrimSpace(decoded.Lamination),
		IncludeCover:      decoded.IncludeCover,
		IncludeFormatting: decoded.IncludeFormatting,
		TotalAmount:       parseAmount(decoded.TotalAmount),
	}

	// Nested customer object wins over flat fields.
	if decoded.Customer != nil {
		if email := strings.ToLower(strings.TrimSpace(decoded.Customer.Email)); email != "" {
			meta.Email = email
		}
		if name := strings.TrimSpace(decoded.Customer.Name); name != "" {
			meta.Name = name
		}
		if phone := strings.TrimSpace(decoded.Customer.Phone); phone != "" {
			meta.Phone = phone
		}
	}

	// Legacy storefront builds send the package slug under "package".
	if meta.PackageSlug == "" {
		meta.PackageSlug = strings.TrimSpace(decoded.Package)
	}

	for _, entry := range decoded.Addons {
		if selection, ok := parseAddon(entry, decoded.WordCount); ok {
			meta.Addons = append(meta.Addons, selection)
		}
	}

	return meta
}

// parseAddon accepts either an object or a bare slug string.
func parseAddon(entry json.RawMessage, fallbackWordCount *int) (AddonSelection, bool) {
	var slug string
	if err := json.Unmarshal(entry, &slug); err == nil {
		slug = strings.TrimSpace(slug)
		if slug == "" {
			return AddonSelection{}, false
		}
		return AddonSelection{Slug: slug, WordCount: fallbackWordCount}, true
	}

	var decoded rawAddon
	if err := json.Unmarshal(entry, &decoded); err != nil {
		return AddonSelection{}, false
	}
	selection := AddonSelection{
		ID:        strings.TrimSpace(decoded.ID),
		Slug:      strings.TrimSpace(decoded.Slug),
		WordCount: decoded.WordCount,
	}
	if selection.WordCount == nil {
		selection.WordCount = fallbackWordCount
	}
	if selection.ID == "" && selection.Slug == "" {
		return AddonSelection{}, false
	}
	return selection, true
}

// parseAmount accepts numbers and numeric strings.
func parseAmount(raw json.RawMessage) decimal.Decimal {
	if len(raw) == 0 {
		return decimal.Zero
	}
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		if parsed, err := decimal.NewFromString(strings.TrimSpace(asString)); err == nil {
			return parsed
		}
		return decimal.Zero
	}
	var asNumber decimal.Decimal
	if err := json.Unmarshal(raw, &asNumber); err == nil {
		return asNumber
	}
	return decimal.Zero
}
