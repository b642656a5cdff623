package sendgrid

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

const defaultBaseURL = "https://api.sendgrid.com"

// Client sends transactional mail through the SendGrid v3 API.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	apiKey      string
	defaultFrom string
	logger      *logger.Logger
}

func NewClient(cfg config.SendgridConfig, logg *logger.Logger) *Client {
	return &Client{
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		baseURL:     defaultBaseURL,
		apiKey:      strings.TrimSpace(cfg.APIKey),
		defaultFrom: cfg.DefaultFrom,
		logger:      logg,
	}
}

func (c *Client) Available() bool {
	return c != nil && c.apiKey != ""
}

// Message is a single transactional mail.
type Message struct {
	To       string
	Subject  string
	HTMLBody string
	TextBody string
}

type address struct {
	Email string `json:"email"`
}

type content struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type personalization struct {
	To []address `json:"to"`
}

type sendRequest struct {
	Personalizations []personalization `json:"personalizations"`
	From             address           `json:"from"`
	Subject          string            `json:"subject"`
	Content          []content         `json:"content"`
}

// Send delivers a message. SendGrid answers 202 on acceptance.
func (c *Client) Send(ctx context.Context, msg Message) error {
	if !c.Available() {
		return pkgerrors.New(pkgerrors.CodeUnavailable, "sendgrid is not configured")
	}
	if msg.To == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "recipient email is required")
	}

	payload := sendRequest{
		Personalizations: []personalization{{To: []address{{Email: msg.To}}}},
		From:             address{Email: c.defaultFrom},
		Subject:          msg.Subject,
	}
	if msg.TextBody != "" {
		payload.Content = append(payload.Content, content{Type: "text/plain", Value: msg.TextBody})
	}
	if msg.HTMLBody != "" {
		payload.Content = append(payload.Content, content{Type: "text/html", Value: msg.HTMLBody})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode sendgrid request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v3/mail/send", bytes.NewReader(body))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build sendgrid request")
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "call sendgrid")
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil && c.logger != nil {
			c.logger.Warn(req.Context(), "closing sendgrid response body failed")
		}
	}()

	if resp.StatusCode >= http.StatusBadRequest {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("sendgrid returned status %d: %s", resp.StatusCode, string(raw)))
	}
	return nil
}
