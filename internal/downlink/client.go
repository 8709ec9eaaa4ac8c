package downlink

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// PriorityNormal is the downlink queue priority used for operator commands.
const PriorityNormal = "NORMAL"

// maxErrorBody bounds how much of an error response is kept for diagnosis.
const maxErrorBody = 4 << 10

// Frame is one downlink to push.
type Frame struct {
	ApplicationID  string
	DeviceID       string
	Payload        []byte
	CorrelationIDs []string
}

// Client pushes downlinks through The Things Stack v3 Application Server API.
type Client struct {
	apiKey     string
	httpClient *http.Client
	baseURL    string
	fPort      int
	priority   string
}

// ClientConfig configures a Client.
type ClientConfig struct {
	// BaseURL is the cluster URL, e.g. https://nam1.cloud.thethings.network.
	BaseURL  string
	APIKey   string
	FPort    int
	Priority string
	Timeout  time.Duration
}

// NewClient creates a downlink client.
func NewClient(cfg ClientConfig) *Client {
	priority := cfg.Priority
	if priority == "" {
		priority = PriorityNormal
	}
	return &Client{
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		fPort:      cfg.FPort,
		priority:   priority,
	}
}

// HasCredential reports whether an API key is configured.
func (c *Client) HasCredential() bool {
	return c.apiKey != ""
}

type pushRequest struct {
	Downlinks []downlinkMessage `json:"downlinks"`
}

type downlinkMessage struct {
	FRMPayload     string   `json:"frm_payload"`
	FPort          int      `json:"f_port"`
	Priority       string   `json:"priority"`
	CorrelationIDs []string `json:"correlation_ids,omitempty"`
}

// Push appends one frame to the device's downlink queue. The payload is
// base64 encoded as the API requires. There are no retries.
func (c *Client) Push(ctx context.Context, f Frame) error {
	if c.apiKey == "" {
		return ErrMissingCredential
	}

	body, err := json.Marshal(pushRequest{
		Downlinks: []downlinkMessage{{
			FRMPayload:     base64.StdEncoding.EncodeToString(f.Payload),
			FPort:          c.fPort,
			Priority:       c.priority,
			CorrelationIDs: f.CorrelationIDs,
		}},
	})
	if err != nil {
		return fmt.Errorf("encode push request: %w", err)
	}

	u := fmt.Sprintf("%s/api/v3/as/applications/%s/devices/%s/down/push",
		c.baseURL, url.PathEscape(f.ApplicationID), url.PathEscape(f.DeviceID))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("downlink push request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &UpstreamError{Status: resp.StatusCode, Body: string(b)}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
