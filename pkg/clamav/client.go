package clamav

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/dextasynergyservices/bookprinta-sub000/pkg/config"
	pkgerrors "github.com/dextasynergyservices/bookprinta-sub000/pkg/errors"
	"github.com/dextasynergyservices/bookprinta-sub000/pkg/logger"
)

// chunkSize for the INSTREAM protocol. clamd's default StreamMaxLength is
// far above receipt sizes, so a single limit check upstream is enough.
const chunkSize = 2048

// Mode controls whether uploads are scanned before storage.
type Mode string

const (
	ModeOff     Mode = "off"     // skip scanning entirely
	ModeEnforce Mode = "enforce" // reject infected or unscannable files
	ModeLog     Mode = "log"     // scan and log, never reject
)

// ScanResult reports the outcome of a single buffer scan.
type ScanResult struct {
	Clean     bool
	Signature string
}

// Client speaks the clamd INSTREAM protocol over TCP.
type Client struct {
	address string
	timeout time.Duration
	mode    Mode
	logger  *logger.Logger

	dial func(ctx context.Context, network, address string) (net.Conn, error)
}

func NewClient(cfg config.ScannerConfig, mode string, logg *logger.Logger) *Client {
	dialer := &net.Dialer{}
	return &Client{
		address: cfg.Address,
		timeout: cfg.Timeout,
		mode:    Mode(strings.ToLower(strings.TrimSpace(mode))),
		logger:  logg,
		dial:    dialer.DialContext,
	}
}

// Enabled reports whether scans will actually run.
func (c *Client) Enabled() bool {
	return c != nil && (c.mode == ModeEnforce || c.mode == ModeLog)
}

// Enforcing reports whether an infected result should block the upload.
func (c *Client) Enforcing() bool {
	return c != nil && c.mode == ModeEnforce
}

// ScanBuffer streams the buffer to clamd. When scanning is off the buffer is
// treated as clean without opening a connection.
func (c *Client) ScanBuffer(ctx context.Context, data []byte) (*ScanResult, error) {
	if !c.Enabled() {
		return &ScanResult{Clean: true}, nil
	}

	conn, err := c.dial(ctx, "tcp", c.address)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "dial clamav")
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil && c.logger != nil {
			c.logger.Warn(ctx, "closing clamav connection failed")
		}
	}()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	} else if c.timeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(c.timeout))
	}

	if _, err := conn.Write([]byte("zINSTREAM\x00")); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "start clamav stream")
	}

	for offset := 0; offset < len(data); offset += chunkSize {
		end := offset + chunkSize
		if end > len(data) {
			end = len(data)
		}
		chunk := data[offset:end]

		size := make([]byte, 4)
		binary.BigEndian.PutUint32(size, uint32(len(chunk)))
		if _, err := conn.Write(size); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "write clamav chunk header")
		}
		if _, err := conn.Write(chunk); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "write clamav chunk")
		}
	}

	// Zero-length chunk terminates the stream.
	if _, err := conn.Write([]byte{0, 0, 0, 0}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "terminate clamav stream")
	}

	reply := make([]byte, 512)
	n, err := conn.Read(reply)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read clamav reply")
	}

	return parseReply(reply[:n])
}

func parseReply(reply []byte) (*ScanResult, error) {
	text := strings.TrimSpace(string(bytes.TrimRight(reply, "\x00")))
	switch {
	case strings.HasSuffix(text, "OK"):
		return &ScanResult{Clean: true}, nil
	case strings.HasSuffix(text, "FOUND"):
		signature := strings.TrimSuffix(text, " FOUND")
		if idx := strings.LastIndex(signature, ": "); idx >= 0 {
			signature = signature[idx+2:]
		}
		return &ScanResult{Clean: false, Signature: signature}, nil
	default:
		return nil, pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("unexpected clamav reply: %s", text))
	}
}
