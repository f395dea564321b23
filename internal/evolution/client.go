// Package evolution is a minimal client for the Evolution API WhatsApp
// gateway: instance provisioning, QR pairing and connection state.
package evolution

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

type CreateInstanceRequest struct {
	InstanceName string `json:"instanceName"`
	Token        string `json:"token"`
	QRCode       bool   `json:"qrcode"`
	Integration  string `json:"integration,omitempty"`
}

// ConnectResponse carries the pairing QR code. The gateway has returned the
// base64 image at both the top level and nested under qrcode across versions.
type ConnectResponse struct {
	Base64 string `json:"base64,omitempty"`
	QRCode *struct {
		Base64 string `json:"base64"`
	} `json:"qrcode,omitempty"`
}

// QR returns the pairing image regardless of which shape the gateway used.
func (r *ConnectResponse) QR() string {
	if r.Base64 != "" {
		return r.Base64
	}
	if r.QRCode != nil {
		return r.QRCode.Base64
	}
	return ""
}

type ConnectionStateResponse struct {
	Instance struct {
		State string `json:"state"`
	} `json:"instance"`
}

// CreateInstance registers a new messaging instance with the gateway.
func (c *Client) CreateInstance(ctx context.Context, req CreateInstanceRequest) error {
	body, err := json.Marshal(req)
	if err != nil {
		return err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/instance/create", bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("apikey", c.apiKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("evolution create instance: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("evolution create instance: status %d: %s", resp.StatusCode, msg)
	}
	return nil
}

// Connect requests the pairing QR code for an instance.
func (c *Client) Connect(ctx context.Context, instanceName string) (*ConnectResponse, error) {
	var out ConnectResponse
	if err := c.get(ctx, "/instance/connect/"+instanceName, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ConnectionState reports whether the instance is paired.
func (c *Client) ConnectionState(ctx context.Context, instanceName string) (*ConnectionStateResponse, error) {
	var out ConnectionStateResponse
	if err := c.get(ctx, "/instance/connectionState/"+instanceName, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	httpReq.Header.Set("apikey", c.apiKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("evolution %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("evolution %s: status %d: %s", path, resp.StatusCode, msg)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
