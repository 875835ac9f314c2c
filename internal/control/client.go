package control

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"
)

// Client is a control socket client.
type Client struct {
	socketPath string
	httpClient *http.Client
}

// NewClient creates a new control client.
func NewClient(socketPath string) *Client {
	transport := &http.Transport{
		DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, "unix", socketPath)
		},
	}

	return &Client{
		socketPath: socketPath,
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   10 * time.Second,
		},
	}
}

// Status retrieves the agent status.
func (c *Client) Status(ctx context.Context) (*StatusResponse, error) {
	resp, err := c.get(ctx, "/status")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var status StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return &status, nil
}

// Pairings retrieves the current pairing records.
func (c *Client) Pairings(ctx context.Context) (*PairingsResponse, error) {
	resp, err := c.get(ctx, "/pairings")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var pairings PairingsResponse
	if err := json.NewDecoder(resp.Body).Decode(&pairings); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return &pairings, nil
}

// Sessions retrieves the currently active sessions.
func (c *Client) Sessions(ctx context.Context) (*SessionsResponse, error) {
	resp, err := c.get(ctx, "/sessions")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var sessions SessionsResponse
	if err := json.NewDecoder(resp.Body).Decode(&sessions); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return &sessions, nil
}

// CreateInvite asks the daemon to mint a fresh invite code.
func (c *Client) CreateInvite(ctx context.Context, req CreateInviteRequest) (*CreateInviteResponse, error) {
	resp, err := c.post(ctx, "/invites", req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out CreateInviteResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &out, nil
}

// RevokePairing asks the daemon to revoke a pairing record.
func (c *Client) RevokePairing(ctx context.Context, operatorID string) error {
	resp, err := c.post(ctx, "/revoke", RevokeRequest{OperatorID: operatorID})
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// post performs a POST request with a JSON body to the control socket.
func (c *Client) post(ctx context.Context, path string, body any) (*http.Response, error) {
	url := "http://localhost" + path

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		resp.Body.Close()
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	return resp, nil
}

// get performs a GET request to the control socket.
func (c *Client) get(ctx context.Context, path string) (*http.Response, error) {
	// Use a dummy host since we're connecting via Unix socket
	url := "http://localhost" + path

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	return resp, nil
}

// Close closes the client.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}
