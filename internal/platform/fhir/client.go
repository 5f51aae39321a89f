package fhir

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal bearer-authenticated FHIR read/search client.
// One Client is constructed per /app request from an untrusted token
// response and discarded when the request completes.
type Client struct {
	base  string
	token string
	http  *http.Client
}

// NewClient creates a client for the given FHIR base URL and bearer
// token. The timeout bounds every outbound call; a timeout is a fatal
// error for the request that triggered the call.
func NewClient(base, token string, timeout time.Duration) *Client {
	return &Client{
		base:  strings.TrimSuffix(base, "/"),
		token: token,
		http:  &http.Client{Timeout: timeout},
	}
}

// Read fetches a single resource by type and id.
func (c *Client) Read(ctx context.Context, resourceType, id string) (json.RawMessage, error) {
	u := fmt.Sprintf("%s/%s/%s", c.base, resourceType, url.PathEscape(id))
	raw, err := c.get(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("read %s/%s: %w", resourceType, id, err)
	}
	if rt := ResourceTypeOf(raw); rt != resourceType {
		return nil, fmt.Errorf("read %s/%s: server returned %q", resourceType, id, rt)
	}
	return raw, nil
}

// Search runs a search for the given resource type and returns the
// result Bundle. Entry order is the server's order.
func (c *Client) Search(ctx context.Context, resourceType string, params url.Values) (*Bundle, error) {
	u := fmt.Sprintf("%s/%s", c.base, resourceType)
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	raw, err := c.get(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", resourceType, err)
	}

	var bundle Bundle
	if err := json.Unmarshal(raw, &bundle); err != nil {
		return nil, fmt.Errorf("search %s: malformed bundle: %w", resourceType, err)
	}
	if bundle.ResourceType != "Bundle" {
		return nil, fmt.Errorf("search %s: server returned %q", resourceType, bundle.ResourceType)
	}
	return &bundle, nil
}

func (c *Client) get(ctx context.Context, u string) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", ClientAccept)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, truncate(string(body), 200))
	}
	return body, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
