package cloudinary

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/dextasynergyservices/bookprinta-sub000/pkg/config"
	pkgerrors "github.com/dextasynergyservices/bookprinta-sub000/pkg/errors"
	"github.com/dextasynergyservices/bookprinta-sub000/pkg/logger"
)

// allowedMimeTypes are the receipt formats we accept for bank transfer
// submissions.
var allowedMimeTypes = map[string]struct{}{
	"image/jpeg":      {},
	"image/png":       {},
	"image/webp":      {},
	"application/pdf": {},
}

// Client uploads files to Cloudinary using signed uploads.
type Client struct {
	httpClient  *http.Client
	cloudName   string
	apiKey      string
	apiSecret   string
	maxUploadMB int
	logger      *logger.Logger
	now         func() time.Time
}

func NewClient(cfg config.CloudinaryConfig, logg *logger.Logger) *Client {
	return &Client{
		httpClient:  &http.Client{Timeout: 60 * time.Second},
		cloudName:   strings.TrimSpace(cfg.CloudName),
		apiKey:      strings.TrimSpace(cfg.APIKey),
		apiSecret:   strings.TrimSpace(cfg.APISecret),
		maxUploadMB: cfg.MaxUploadMB,
		logger:      logg,
		now:         time.Now,
	}
}

func (c *Client) Available() bool {
	return c != nil && c.cloudName != "" && c.apiKey != "" && c.apiSecret != ""
}

// DetectMimeType sniffs the content rather than trusting the client-supplied
// Content-Type header.
func DetectMimeType(data []byte) string {
	return mimetype.Detect(data).String()
}

// IsAllowedMimeType reports whether a sniffed MIME type is an accepted
// receipt format.
func IsAllowedMimeType(mime string) bool {
	// mimetype appends charset parameters for some types.
	if idx := strings.Index(mime, ";"); idx >= 0 {
		mime = strings.TrimSpace(mime[:idx])
	}
	_, ok := allowedMimeTypes[mime]
	return ok
}

// IsWithinSizeLimit reports whether the payload fits the configured cap.
func (c *Client) IsWithinSizeLimit(size int64) bool {
	if c == nil || c.maxUploadMB <= 0 {
		return false
	}
	return size <= int64(c.maxUploadMB)*1024*1024
}

type uploadResponse struct {
	SecureURL string `json:"secure_url"`
	PublicID  string `json:"public_id"`
	Error     struct {
		Message string `json:"message"`
	} `json:"error"`
}

// UploadResult holds the stored file location.
type UploadResult struct {
	SecureURL string
	PublicID  string
}

// Upload sends a signed upload to the auto resource endpoint. The folder
// keeps receipts separate from other assets in the account.
func (c *Client) Upload(ctx context.Context, data []byte, filename, folder string) (*UploadResult, error) {
	if !c.Available() {
		return nil, pkgerrors.New(pkgerrors.CodeUnavailable, "cloudinary is not configured")
	}

	timestamp := strconv.FormatInt(c.now().Unix(), 10)
	params := map[string]string{
		"timestamp": timestamp,
		"folder":    folder,
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for key, value := range params {
		if err := writer.WriteField(key, value); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "write upload field")
		}
	}
	if err := writer.WriteField("api_key", c.apiKey); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "write upload field")
	}
	if err := writer.WriteField("signature", c.signature(params)); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "write upload field")
	}
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create upload part")
	}
	if _, err := part.Write(data); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "write upload part")
	}
	if err := writer.Close(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "finalize upload body")
	}

	url := fmt.Sprintf("https://api.cloudinary.com/v1_1/%s/auto/upload", c.cloudName)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build upload request")
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "call cloudinary")
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil && c.logger != nil {
			c.logger.Warn(req.Context(), "closing cloudinary response body failed")
		}
	}()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read cloudinary response")
	}

	var decoded uploadResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode cloudinary response")
	}
	if resp.StatusCode >= http.StatusBadRequest || decoded.SecureURL == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("cloudinary upload failed: %s", decoded.Error.Message))
	}

	return &UploadResult{SecureURL: decoded.SecureURL, PublicID: decoded.PublicID}, nil
}

// signature implements Cloudinary's signed-upload scheme: SHA1 of the sorted
// query string with the API secret appended.
func (c *Client) signature(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for key := range params {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, key := range keys {
		pairs = append(pairs, key+"="+params[key])
	}

	sum := sha1.Sum([]byte(strings.Join(pairs, "&") + c.apiSecret))
	return hex.EncodeToString(sum[:])
}
