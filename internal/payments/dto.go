package payments

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dextasynergyservices/bookprinta-sub000/pkg/enums"
)

// InitializeInput starts one checkout attempt against an online gateway.
type InitializeInput struct {
	Provider enums.PaymentProvider
	Type     enums.PaymentType
	Email    string
	Amount   decimal.Decimal
	Currency string

	// Required for payment types tied to an existing order.
	OrderID *uuid.UUID
	UserID  *uuid.UUID

	Metadata map[string]any
}

// InitializeOutput carries what the storefront needs to send the buyer to
// the gateway.
type InitializeOutput struct {
	Provider         enums.PaymentProvider `json:"provider"`
	Reference        string                `json:"reference"`
	AuthorizationURL string                `json:"authorizationUrl"`
	AccessCode       string                `json:"accessCode,omitempty"`
}

// WebhookEvent is one provider webhook delivery, already signature-checked
// and normalized by the controller.
type WebhookEvent struct {
	EventID   string
	Kind      string
	Reference string
	Raw       json.RawMessage
}

// VerifyOutput is the callback-page view of a payment reference.
type VerifyOutput struct {
	Reference string              `json:"reference"`
	Provider  enums.PaymentProvider `json:"provider"`
	Status    enums.PaymentStatus `json:"status"`
	Processed bool                `json:"processed"`

	// AwaitingWebhook is set when the gateway reports the charge as still in
	// flight; the webhook will finish the job.
	AwaitingWebhook bool `json:"awaitingWebhook"`

	OrderNumber string `json:"orderNumber,omitempty"`
	SignupURL   string `json:"signupUrl,omitempty"`
}

// BankTransferInput is a buyer's claim that an offline transfer was made.
type BankTransferInput struct {
	Email    string
	Name     string
	Phone    string
	Amount   decimal.Decimal
	Currency string

	Type    enums.PaymentType
	OrderID *uuid.UUID
	UserID  *uuid.UUID

	Metadata map[string]any

	ReceiptData     []byte
	ReceiptFilename string
}

// DecisionInput resolves an awaiting bank transfer.
type DecisionInput struct {
	PaymentID uuid.UUID
	AdminID   uuid.UUID
	Note      *string
}
