// Package spsp implements the client side of Simple Payment Setup Protocol
// discovery: resolving a payment pointer or receiver URL into a destination
// account and shared secret. Serving SPSP endpoints is out of scope.
package spsp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	ipr "github.com/interledger-go/ipr"
)

// ContentType is negotiated on every query.
const ContentType = "application/spsp4+json"

// DefaultTimeout bounds a discovery round-trip when the caller's context
// carries no deadline.
const DefaultTimeout = 10 * time.Second

// AssetInfo describes the receiver's asset.
type AssetInfo struct {
	Code  string `json:"code"`
	Scale uint8  `json:"scale"`
}

// BalanceBounds is the optional invoice-style balance block.
type BalanceBounds struct {
	Maximum string `json:"maximum"`
	Current string `json:"current"`
}

// Response is a successful discovery result.
type Response struct {
	DestinationAccount string
	SharedSecret       []byte
	ContentType        string
	BalanceBounds      *BalanceBounds
	AssetInfo          *AssetInfo
}

// wireResponse is the on-the-wire shape; the shared secret travels base64.
type wireResponse struct {
	DestinationAccount string         `json:"destination_account"`
	SharedSecret       string         `json:"shared_secret"`
	Balance            *BalanceBounds `json:"balance,omitempty"`
	AssetInfo          *AssetInfo     `json:"asset_info,omitempty"`
}

// Client queries SPSP receiver endpoints.
type Client struct {
	httpClient *http.Client
}

// Option configures the client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient creates a discovery client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ResolvePointer expands a payment pointer ("$host/path") into its HTTPS
// receiver URL. Plain URLs pass through unchanged.
func ResolvePointer(identifier string) (string, error) {
	if !strings.HasPrefix(identifier, "$") {
		return identifier, nil
	}
	rest := strings.TrimPrefix(identifier, "$")
	if rest == "" {
		return "", ipr.NewValidationError("empty payment pointer")
	}
	if !strings.Contains(rest, "/") {
		rest += "/.well-known/pay"
	}
	return "https://" + rest, nil
}

// Query resolves identifier and fetches the receiver's payment details.
func (c *Client) Query(ctx context.Context, identifier string) (*Response, error) {
	endpoint, err := ResolvePointer(identifier)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, ipr.NewValidationError("invalid receiver endpoint %q: %v", endpoint, err)
	}
	req.Header.Set("Accept", ContentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, ipr.NewUpstreamError("spsp query "+endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, ipr.NewUpstreamError("spsp query "+endpoint,
			fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	var wire wireResponse
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, ipr.NewUpstreamError("spsp query "+endpoint, err)
	}
	if wire.DestinationAccount == "" {
		return nil, ipr.NewValidationError("spsp response from %s is missing destination_account", endpoint)
	}
	if wire.SharedSecret == "" {
		return nil, ipr.NewValidationError("spsp response from %s is missing shared_secret", endpoint)
	}
	secret, err := base64.StdEncoding.DecodeString(wire.SharedSecret)
	if err != nil {
		return nil, ipr.NewValidationError("spsp shared_secret from %s is not base64: %v", endpoint, err)
	}

	return &Response{
		DestinationAccount: wire.DestinationAccount,
		SharedSecret:       secret,
		ContentType:        resp.Header.Get("Content-Type"),
		BalanceBounds:      wire.Balance,
		AssetInfo:          wire.AssetInfo,
	}, nil
}
