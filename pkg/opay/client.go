package opay

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

// ReferencePrefix marks references generated for OPay wallet checkouts.
const ReferencePrefix = "op"

const successCode = "00000"

// Client talks to the OPay cashier API. OPay deals in minor units and keys
// creation calls with the public key, status calls with an HMAC of the body.
type Client struct {
	httpClient *http.Client
	baseURL    string
	merchantID string
	publicKey  string
	secretKey  string
	logger     *logger.Logger
}

func NewClient(cfg config.OPayConfig, logg *logger.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		merchantID: strings.TrimSpace(cfg.MerchantID),
		publicKey:  strings.TrimSpace(cfg.PublicKey),
		secretKey:  strings.TrimSpace(cfg.SecretKey),
		logger:     logg,
	}
}

// Provider implements providers.Adapter.
func (c *Client) Provider() enums.PaymentProvider {
	return enums.PaymentProviderOPay
}

// Available requires the full credential set since create and status calls
// authenticate differently.
func (c *Client) Available() bool {
	return c != nil && c.merchantID != "" && c.publicKey != "" && c.secretKey != ""
}

type cashierAmount struct {
	Total    int64  `json:"total"`
	Currency string `json:"currency"`
}

type cashierUser struct {
	UserEmail string `json:"userEmail"`
}

type createRequest struct {
	Reference   string        `json:"reference"`
	Amount      cashierAmount `json:"amount"`
	ReturnURL   string        `json:"returnUrl,omitempty"`
	CallbackURL string        `json:"callbackUrl,omitempty"`
	UserInfo    cashierUser   `json:"userInfo"`
	Product     struct {
		Name string `json:"name"`
	} `json:"product"`
	ExpireAt int `json:"expireAt,omitempty"`
}

type createResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Data    struct {
		CashierURL string `json:"cashierUrl"`
		OrderNo    string `json:"orderNo"`
		Reference  string `json:"reference"`
	} `json:"data"`
}

// Initialize opens an OPay cashier session.
func (c *Client) Initialize(ctx context.Context, params providers.InitializeParams) (*providers.InitializeResult, error) {
	if !c.Available() {
		return nil, pkgerrors.New(pkgerrors.CodeUnavailable, "opay is not configured")
	}

	payload := createRequest{
		Reference: params.Reference,
		Amount: cashierAmount{
			Total:    params.Amount.Shift(2).IntPart(),
			Currency: params.Currency,
		},
		ReturnURL:   params.CallbackURL,
		UserInfo:    cashierUser{UserEmail: params.Email},
		ExpireAt:    30,
	}
	payload.Product.Name = productName(params.Metadata)

	raw, err := c.send(ctx, "/api/v1/international/cashier/create", payload, "Bearer "+c.publicKey)
	if err != nil {
		return nil, err
	}

	var resp createResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode opay create response")
	}
	if resp.Code != successCode {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("opay create rejected: %s", resp.Message))
	}

	return &providers.InitializeResult{
		AuthorizationURL: resp.Data.CashierURL,
		Reference:        params.Reference,
		AccessCode:       resp.Data.OrderNo,
	}, nil
}

type statusRequest struct {
	Reference string `json:"reference"`
}

type statusResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Data    struct {
		Status string        `json:"status"`
		Amount cashierAmount `json:"amount"`
	} `json:"data"`
}

// Verify queries cashier status for a reference. OPay reports SUCCESS,
// PENDING, FAIL or CLOSE.
func (c *Client) Verify(ctx context.Context, reference string) (*providers.VerifyResult, error) {
	if !c.Available() {
		return nil, pkgerrors.New(pkgerrors.CodeUnavailable, "opay is not configured")
	}

	body, err := json.Marshal(statusRequest{Reference: reference})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode opay status request")
	}

	raw, err := c.sendRaw(ctx, "/api/v1/international/cashier/status", body, "Bearer "+c.sign(body))
	if err != nil {
		return nil, err
	}

	var resp statusResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode opay status response")
	}
	if resp.Code != successCode {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("opay does not recognize reference: %s", resp.Message))
	}

	return &providers.VerifyResult{
		Verified:   resp.Data.Status == "SUCCESS",
		Status:     strings.ToLower(resp.Data.Status),
		Amount:     decimal.NewFromInt(resp.Data.Amount.Total).Shift(-2),
		Currency:   resp.Data.Amount.Currency,
		PayerEmail: "",
		Raw:        raw,
	}, nil
}

// VerifyWebhookSignature checks an HMAC-SHA512 hex digest of the raw body
// keyed with the secret key.
func (c *Client) VerifyWebhookSignature(payload []byte, signature string) bool {
	if c == nil || c.secretKey == "" || signature == "" {
		return false
	}
	return hmac.Equal([]byte(c.sign(payload)), []byte(signature))
}

func (c *Client) RecognizesReference(reference string) bool {
	return strings.HasPrefix(reference, ReferencePrefix+"_")
}

func (c *Client) sign(payload []byte) string {
	mac := hmac.New(sha512.New, []byte(c.secretKey))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func (c *Client) send(ctx context.Context, path string, payload any, authorization string) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode opay request")
	}
	return c.sendRaw(ctx, path, body, authorization)
}

func (c *Client) sendRaw(ctx context.Context, path string, body []byte, authorization string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build opay request")
	}
	req.Header.Set("Authorization", authorization)
	req.Header.Set("MerchantId", c.merchantID)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "call opay")
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil && c.logger != nil {
			c.logger.Warn(req.Context(), "closing opay response body failed")
		}
	}()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read opay response")
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("opay returned status %d", resp.StatusCode))
	}
	return raw, nil
}

func productName(metadata map[string]any) string {
	if metadata != nil {
		if name, ok := metadata["packageName"].(string); ok && name != "" {
			return name
		}
	}
	return "Book publishing order"
}
