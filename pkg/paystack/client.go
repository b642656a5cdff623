package paystack

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dextasynergyservices/bookprinta-sub000/pkg/config"
	"github.com/dextasynergyservices/bookprinta-sub000/pkg/enums"
	pkgerrors "github.com/dextasynergyservices/bookprinta-sub000/pkg/errors"
	"github.com/dextasynergyservices/bookprinta-sub000/pkg/logger"
	"github.com/dextasynergyservices/bookprinta-sub000/pkg/providers"
)

// ReferencePrefix marks references generated for Paystack checkouts.
const ReferencePrefix = "ps"

// Client talks to the Paystack transaction API. Amounts cross this boundary
// in major units; Paystack itself deals in kobo.
type Client struct {
	httpClient *http.Client
	baseURL    string
	secretKey  string
	logger     *logger.Logger
}

// NewClient builds the Paystack adapter. Missing credentials leave the client
// constructed but unavailable, so the registry can hide the gateway.
func NewClient(cfg config.PaystackConfig, logg *logger.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		secretKey:  strings.TrimSpace(cfg.SecretKey),
		logger:     logg,
	}
}

// Provider implements providers.Adapter.
func (c *Client) Provider() enums.PaymentProvider {
	return enums.PaymentProviderPaystack
}

// Available reports whether credentials were present at construction.
func (c *Client) Available() bool {
	return c != nil && c.secretKey != ""
}

type initializeRequest struct {
	Email       string         `json:"email"`
	Amount      int64          `json:"amount"`
	Currency    string         `json:"currency,omitempty"`
	Reference   string         `json:"reference"`
	CallbackURL string         `json:"callback_url,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

type initializeResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    struct {
		AuthorizationURL string `json:"authorization_url"`
		AccessCode       string `json:"access_code"`
		Reference        string `json:"reference"`
	} `json:"data"`
}

// Initialize opens a Paystack checkout session.
func (c *Client) Initialize(ctx context.Context, params providers.InitializeParams) (*providers.InitializeResult, error) {
	if !c.Available() {
		return nil, pkgerrors.New(pkgerrors.CodeUnavailable, "paystack is not configured")
	}

	payload := initializeRequest{
		Email:       params.Email,
		Amount:      params.Amount.Shift(2).IntPart(),
		Currency:    params.Currency,
		Reference:   params.Reference,
		CallbackURL: params.CallbackURL,
		Metadata:    params.Metadata,
	}

	var resp initializeResponse
	if err := c.post(ctx, "/transaction/initialize", payload, &resp); err != nil {
		return nil, err
	}
	if !resp.Status {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("paystack initialize rejected: %s", resp.Message))
	}

	return &providers.InitializeResult{
		AuthorizationURL: resp.Data.AuthorizationURL,
		Reference:        resp.Data.Reference,
		AccessCode:       resp.Data.AccessCode,
	}, nil
}

type verifyResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    struct {
		Status   string          `json:"status"`
		Amount   int64           `json:"amount"`
		Currency string          `json:"currency"`
		Metadata json.RawMessage `json:"metadata"`
		Customer struct {
			Email string `json:"email"`
		} `json:"customer"`
	} `json:"data"`
}

// Verify resolves a transaction by reference. The kobo amount is shifted to
// major units before it leaves the adapter.
func (c *Client) Verify(ctx context.Context, reference string) (*providers.VerifyResult, error) {
	if !c.Available() {
		return nil, pkgerrors.New(pkgerrors.CodeUnavailable, "paystack is not configured")
	}

	raw, err := c.get(ctx, "/transaction/verify/"+reference)
	if err != nil {
		return nil, err
	}

	var resp verifyResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode paystack verify response")
	}
	if !resp.Status {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("paystack does not recognize reference: %s", resp.Message))
	}

	return &providers.VerifyResult{
		Verified:   resp.Data.Status == "success",
		Status:     resp.Data.Status,
		Amount:     decimal.NewFromInt(resp.Data.Amount).Shift(-2),
		Currency:   resp.Data.Currency,
		PayerEmail: resp.Data.Customer.Email,
		Metadata:   resp.Data.Metadata,
		Raw:        raw,
	}, nil
}

// VerifyWebhookSignature checks the X-Paystack-Signature header, an
// HMAC-SHA512 of the raw body keyed with the secret key.
func (c *Client) VerifyWebhookSignature(payload []byte, signature string) bool {
	if c == nil || c.secretKey == "" || signature == "" {
		return false
	}
	mac := hmac.New(sha512.New, []byte(c.secretKey))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// RecognizesReference reports whether the reference carries the local
// Paystack prefix.
func (c *Client) RecognizesReference(reference string) bool {
	return strings.HasPrefix(reference, ReferencePrefix+"_")
}

func (c *Client) post(ctx context.Context, path string, payload any, dest any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode paystack request")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build paystack request")
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Content-Type", "application/json")

	raw, err := c.do(req)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode paystack response")
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build paystack request")
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	return c.do(req)
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "call paystack")
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil && c.logger != nil {
			c.logger.Warn(req.Context(), "closing paystack response body failed")
		}
	}()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read paystack response")
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "paystack resource not found")
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("paystack returned status %d", resp.StatusCode))
	}
	return raw, nil
}
