package gateway

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/lshigami/Quokkas/config"
)

// PaymentStatus is the provider-side state of a payment.
type PaymentStatus string

const (
	StatusCreated    PaymentStatus = "created"
	StatusAuthorized PaymentStatus = "authorized"
	StatusCaptured   PaymentStatus = "captured"
	StatusFailed     PaymentStatus = "failed"
	StatusUnknown    PaymentStatus = "unknown"
)

// Settled reports whether the status authorizes access (money is ours).
func (s PaymentStatus) Settled() bool {
	return s == StatusCaptured || s == StatusAuthorized
}

// Client talks to the payment provider's REST API. All calls are synchronous
// and bounded by the configured timeout; transport errors are returned as-is
// so callers can distinguish "retry" from "declined".
type Client struct {
	httpClient    *http.Client
	baseURL       string
	keyID         string
	keySecret     string
	webhookSecret string
}

func NewClient(cfg *config.Config) *Client {
	timeout := cfg.Gateway.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		httpClient:    &http.Client{Timeout: timeout},
		baseURL:       cfg.Gateway.BaseURL,
		keyID:         cfg.Gateway.KeyID,
		keySecret:     cfg.Gateway.KeySecret,
		webhookSecret: cfg.Gateway.WebhookSecret,
	}
}

// CreateOrderParams are the fields sent when opening a provider order.
// Receipt carries the application's correlation token because the provider
// does not round-trip foreign identifiers natively.
type CreateOrderParams struct {
	AmountPaise int64             `json:"amount"`
	Currency    string            `json:"currency"`
	Receipt     string            `json:"receipt"`
	Notes       map[string]string `json:"notes,omitempty"`
}

// Order is the provider's view of an opened order.
type Order struct {
	ID          string `json:"id"`
	AmountPaise int64  `json:"amount"`
	Currency    string `json:"currency"`
	Receipt     string `json:"receipt"`
	Status      string `json:"status"`
}

type paymentEnvelope struct {
	ID          string `json:"id"`
	OrderID     string `json:"order_id"`
	AmountPaise int64  `json:"amount"`
	Status      string `json:"status"`
}

// CreateOrder opens an order at the provider.
func (c *Client) CreateOrder(ctx context.Context, params CreateOrderParams) (*Order, error) {
	payload, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("failed to encode order request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/orders", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create order request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.keyID, c.keySecret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send order request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read order response: %w", err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("order request rejected with status %d: %s", resp.StatusCode, string(body))
	}

	var order Order
	if err := json.Unmarshal(body, &order); err != nil {
		return nil, fmt.Errorf("failed to parse order response: %w", err)
	}
	if order.ID == "" {
		return nil, fmt.Errorf("order response missing id")
	}
	return &order, nil
}

// VerifySignature checks the redirect-callback signature: an HMAC-SHA256 of
// "<orderID>|<paymentID>" under the key secret, hex encoded.
func (c *Client) VerifySignature(orderID, paymentID, signature string) bool {
	mac := hmac.New(sha256.New, []byte(c.keySecret))
	mac.Write([]byte(orderID + "|" + paymentID))
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// VerifyWebhookSignature checks the webhook signature over the raw body plus
// the timestamp header, byte-for-byte, before any parsing happens.
func (c *Client) VerifyWebhookSignature(rawBody []byte, signature, timestamp string) bool {
	mac := hmac.New(sha256.New, []byte(c.webhookSecret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(rawBody)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// QueryPaymentStatus fetches the provider's current view of a payment.
// Transport errors are returned so callers never mistake a timeout for a
// declined payment.
func (c *Client) QueryPaymentStatus(ctx context.Context, paymentID string) (PaymentStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/payments/"+paymentID, nil)
	if err != nil {
		return StatusUnknown, fmt.Errorf("failed to create payment query: %w", err)
	}
	req.SetBasicAuth(c.keyID, c.keySecret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return StatusUnknown, fmt.Errorf("failed to query payment status: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return StatusUnknown, fmt.Errorf("failed to read payment status response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return StatusUnknown, fmt.Errorf("payment query rejected with status %d: %s", resp.StatusCode, string(body))
	}

	var payment paymentEnvelope
	if err := json.Unmarshal(body, &payment); err != nil {
		return StatusUnknown, fmt.Errorf("failed to parse payment status response: %w", err)
	}

	switch PaymentStatus(payment.Status) {
	case StatusCreated, StatusAuthorized, StatusCaptured, StatusFailed:
		return PaymentStatus(payment.Status), nil
	default:
		return StatusUnknown, nil
	}
}
