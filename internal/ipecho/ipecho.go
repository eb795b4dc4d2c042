// Package ipecho resolves the caller's public IPv4 address through an
// external echo service.
package ipecho

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

const DefaultEndpoint = "https://checkip.amazonaws.com"

// Client queries one echo endpoint.
type Client struct {
	endpoint string
	http     *http.Client
}

func New() *Client {
	return &Client{
		endpoint: DefaultEndpoint,
		http:     &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) WithEndpoint(endpoint string) *Client {
	c.endpoint = endpoint
	return c
}

// PublicIPv4 returns the caller's public address as seen by the echo
// service. A response that is not a valid IPv4 address is an error.
func (c *Client) PublicIPv4(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("query %s: %w", c.endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("query %s: status %d", c.endpoint, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	addr := strings.TrimSpace(string(body))
	ip := net.ParseIP(addr)
	if ip == nil || ip.To4() == nil {
		return "", fmt.Errorf("echo service returned %q, not an IPv4 address", addr)
	}
	return ip.To4().String(), nil
}
