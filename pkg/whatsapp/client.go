package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dextasynergyservices/bookprinta-sub000/pkg/config"
	pkgerrors "github.com/dextasynergyservices/bookprinta-sub000/pkg/errors"
	"github.com/dextasynergyservices/bookprinta-sub000/pkg/logger"
)

// Client sends messages through the WhatsApp Cloud API.
type Client struct {
	httpClient    *http.Client
	baseURL       string
	accessToken   string
	phoneNumberID string
	logger        *logger.Logger
}

func NewClient(cfg config.WhatsAppConfig, logg *logger.Logger) *Client {
	return &Client{
		httpClient:    &http.Client{Timeout: 30 * time.Second},
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		accessToken:   strings.TrimSpace(cfg.AccessToken),
		phoneNumberID: strings.TrimSpace(cfg.PhoneNumberID),
		logger:        logg,
	}
}

func (c *Client) Available() bool {
	return c != nil && c.accessToken != "" && c.phoneNumberID != ""
}

type textBody struct {
	Body string `json:"body"`
}

type sendRequest struct {
	MessagingProduct string   `json:"messaging_product"`
	To               string   `json:"to"`
	Type             string   `json:"type"`
	Text             textBody `json:"text"`
}

// SendText delivers a plain text message to a phone number in international
// format without the leading plus.
func (c *Client) SendText(ctx context.Context, to, body string) error {
	if !c.Available() {
		return pkgerrors.New(pkgerrors.CodeUnavailable, "whatsapp is not configured")
	}
	if to == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "recipient phone number is required")
	}

	payload := sendRequest{
		MessagingProduct: "whatsapp",
		To:               strings.TrimPrefix(to, "+"),
		Type:             "text",
		Text:             textBody{Body: body},
	}

	encoded, err := json.Marshal(payload)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode whatsapp request")
	}

	url := fmt.Sprintf("%s/%s/messages", c.baseURL, c.phoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(encoded))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build whatsapp request")
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "call whatsapp")
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil && c.logger != nil {
			c.logger.Warn(req.Context(), "closing whatsapp response body failed")
		}
	}()

	if resp.StatusCode >= http.StatusBadRequest {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("whatsapp returned status %d: %s", resp.StatusCode, string(raw)))
	}
	return nil
}
