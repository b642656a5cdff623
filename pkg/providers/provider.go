package providers

import (
	"context"
	"encoding/json"

	"github.com/shopspring/decimal"

	"github.com/dextasynergyservices/bookprinta-sub000/pkg/enums"
)

// InitializeParams is the canonical input for opening a checkout session with
// an online provider. Amount is in major currency units; adapters that talk
// minor units convert at their own boundary.
type InitializeParams struct {
	Email       string
	Amount      decimal.Decimal
	Currency    string
	Reference   string
	CallbackURL string
	Metadata    map[string]any
}

// InitializeResult is the canonical response of a provider initialize call.
type InitializeResult struct {
	AuthorizationURL string
	Reference        string
	AccessCode       string
}

// VerifyResult is the canonical response of a provider verify call. Amount is
// normalized to major currency units.
type VerifyResult struct {
	Verified   bool
	Status     string
	Amount     decimal.Decimal
	Currency   string
	PayerEmail string

	// Metadata is the checkout metadata echoed back by the gateway, when the
	// gateway supports echoing it. Raw is the full provider response body.
	Metadata json.RawMessage
	Raw      json.RawMessage
}

// Adapter is the uniform surface the orchestrator sees for every online
// gateway. Available is computed from credential presence at construction and
// is not re-checked per call.
type Adapter interface {
	Provider() enums.PaymentProvider
	Available() bool
	Initialize(ctx context.Context, params InitializeParams) (*InitializeResult, error)
	Verify(ctx context.Context, reference string) (*VerifyResult, error)
	VerifyWebhookSignature(payload []byte, signature string) bool
	RecognizesReference(reference string) bool
}
