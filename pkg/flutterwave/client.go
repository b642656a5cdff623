package flutterwave

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dextasynergyservices/bookprinta-sub000/pkg/config"
	"github.com/dextasynergyservices/bookprinta-sub000/pkg/enums"
	pkgerrors "github.com/dextasynergyservices/bookprinta-sub000/pkg/errors"
	"github.com/dextasynergyservices/bookprinta-sub000/pkg/logger"
	"github.com/dextasynergyservices/bookprinta-sub000/pkg/providers"
)

// ReferencePrefix marks references generated for Flutterwave checkouts.
const ReferencePrefix = "flw"

// Client talks to the Flutterwave v3 API. Unlike Paystack, Flutterwave uses
// major currency units on the wire, so no shifting happens here.
type Client struct {
	httpClient *http.Client
	baseURL    string
	secretKey  string
	secretHash string
	logger     *logger.Logger
}

func NewClient(cfg config.FlutterwaveConfig, logg *logger.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		secretKey:  strings.TrimSpace(cfg.SecretKey),
		secretHash: strings.TrimSpace(cfg.SecretHash),
		logger:     logg,
	}
}

// Provider implements providers.Adapter.
func (c *Client) Provider() enums.PaymentProvider {
	return enums.PaymentProviderFlutterwave
}

// Available requires both the API key and the webhook hash, since a gateway
// we cannot receive webhooks for should not be offered at checkout.
func (c *Client) Available() bool {
	return c != nil && c.secretKey != "" && c.secretHash != ""
}

type paymentRequest struct {
	TxRef       string          `json:"tx_ref"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	RedirectURL string          `json:"redirect_url,omitempty"`
	Customer    customer        `json:"customer"`
	Meta        map[string]any  `json:"meta,omitempty"`
}

type customer struct {
	Email string `json:"email"`
}

type paymentResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    struct {
		Link string `json:"link"`
	} `json:"data"`
}

// Initialize opens a Flutterwave hosted payment page.
func (c *Client) Initialize(ctx context.Context, params providers.InitializeParams) (*providers.InitializeResult, error) {
	if !c.Available() {
		return nil, pkgerrors.New(pkgerrors.CodeUnavailable, "flutterwave is not configured")
	}

	payload := paymentRequest{
		TxRef:       params.Reference,
		Amount:      params.Amount,
		Currency:    params.Currency,
		RedirectURL: params.CallbackURL,
		Customer:    customer{Email: params.Email},
		Meta:        params.Metadata,
	}

	raw, err := c.send(ctx, http.MethodPost, "/payments", payload)
	if err != nil {
		return nil, err
	}

	var resp paymentResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode flutterwave payment response")
	}
	if resp.Status != "success" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("flutterwave initialize rejected: %s", resp.Message))
	}

	return &providers.InitializeResult{
		AuthorizationURL: resp.Data.Link,
		Reference:        params.Reference,
	}, nil
}

type verifyResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    struct {
		Status   string          `json:"status"`
		Amount   decimal.Decimal `json:"amount"`
		Currency string          `json:"currency"`
		Meta     json.RawMessage `json:"meta"`
		Customer struct {
			Email string `json:"email"`
		} `json:"customer"`
	} `json:"data"`
}

// Verify resolves a transaction by its tx_ref.
func (c *Client) Verify(ctx context.Context, reference string) (*providers.VerifyResult, error) {
	if !c.Available() {
		return nil, pkgerrors.New(pkgerrors.CodeUnavailable, "flutterwave is not configured")
	}

	path := "/transactions/verify_by_reference?tx_ref=" + url.QueryEscape(reference)
	raw, err := c.send(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	var resp verifyResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode flutterwave verify response")
	}
	if resp.Status != "success" {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("flutterwave does not recognize reference: %s", resp.Message))
	}

	return &providers.VerifyResult{
		Verified:   resp.Data.Status == "successful",
		Status:     resp.Data.Status,
		Amount:     resp.Data.Amount,
		Currency:   resp.Data.Currency,
		PayerEmail: resp.Data.Customer.Email,
		Metadata:   resp.Data.Meta,
		Raw:        raw,
	}, nil
}

// VerifyWebhookSignature checks the verif-hash header, which Flutterwave
// sends as the literal configured secret hash rather than a body digest.
func (c *Client) VerifyWebhookSignature(_ []byte, signature string) bool {
	if c == nil || c.secretHash == "" || signature == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(c.secretHash), []byte(signature)) == 1
}

func (c *Client) RecognizesReference(reference string) bool {
	return strings.HasPrefix(reference, ReferencePrefix+"_")
}

func (c *Client) send(ctx context.Context, method, path string, payload any) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode flutterwave request")
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build flutterwave request")
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "call flutterwave")
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil && c.logger != nil {
			c.logger.Warn(req.Context(), "closing flutterwave response body failed")
		}
	}()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read flutterwave response")
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "flutterwave resource not found")
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("flutterwave returned status %d", resp.StatusCode))
	}
	return raw, nil
}
