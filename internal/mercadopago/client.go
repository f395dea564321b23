// Package mercadopago verifies payment status against the Mercado Pago API.
// Webhook bodies are never trusted for approval state; every delivery is
// re-checked here before an order is touched.
package mercadopago

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrNoCredential is returned when no access token is configured. There is
// no point letting the gateway retry in that case.
var ErrNoCredential = errors.New("mercado pago access token not configured")

type Client struct {
	baseURL     string
	accessToken string
	http        *http.Client
}

func NewClient(baseURL, accessToken string) *Client {
	return &Client{
		baseURL:     baseURL,
		accessToken: accessToken,
		http:        &http.Client{Timeout: 15 * time.Second},
	}
}

// Payment is the slice of the gateway's payment resource this system needs.
// ExternalReference echoes back whatever was supplied at payment initiation;
// we set it to the internal order id.
type Payment struct {
	ID                json.Number `json:"id"`
	Status            string      `json:"status"`
	ExternalReference string      `json:"external_reference"`
}

// GetPayment fetches the authoritative status of a payment.
func (c *Client) GetPayment(ctx context.Context, paymentID string) (*Payment, error) {
	if c.accessToken == "" {
		return nil, ErrNoCredential
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/payments/"+paymentID, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("mercado pago get payment: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("mercado pago get payment: status %d: %s", resp.StatusCode, msg)
	}

	var p Payment
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return nil, fmt.Errorf("mercado pago get payment: decode: %w", err)
	}
	return &p, nil
}
