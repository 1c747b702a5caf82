// Package payments wraps the KoraPay hosted-checkout API: initializing a
// charge and verifying webhook signatures. The engine never sees card
// details; it only hands the client a checkout URL and later consumes the
// provider's webhook.
package payments

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

const defaultBaseURL = "https://api.korapay.com/merchant/api/v1"

var ErrSignatureInvalid = errors.New("webhook signature missing or invalid")

type Client struct {
	secretKey     string
	webhookSecret string
	baseURL       string
	client        *http.Client
}

func NewClient(secretKey, webhookSecret string) *Client {
	return &Client{
		secretKey:     secretKey,
		webhookSecret: webhookSecret,
		baseURL:       defaultBaseURL,
		client:        &http.Client{Timeout: 15 * time.Second},
	}
}

// NewClientWithBaseURL exists for tests that point the client at a local
// server.
func NewClientWithBaseURL(secretKey, webhookSecret, baseURL string) *Client {
	c := NewClient(secretKey, webhookSecret)
	c.baseURL = baseURL
	return c
}

type Customer struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

type ChargeRequest struct {
	Amount      int64             `json:"amount"` // minor units
	Currency    string            `json:"currency"`
	Reference   string            `json:"reference"`
	RedirectURL string            `json:"redirect_url,omitempty"`
	Customer    Customer          `json:"customer"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

type Charge struct {
	CheckoutURL string
	Reference   string
}

// InitializeCharge creates a hosted-checkout session and returns the URL to
// redirect the customer to. Failures here are safe to retry: no local state
// has been written yet.
func (c *Client) InitializeCharge(ctx context.Context, req ChargeRequest) (*Charge, error) {
	b, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/charges/initialize", bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.secretKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("korapay initialize charge failed: %s", resp.Status)
	}

	var out struct {
		Data struct {
			CheckoutURL string `json:"checkout_url"`
			Reference   string `json:"reference"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	if out.Data.CheckoutURL == "" {
		return nil, errors.New("korapay: empty checkout url")
	}

	ref := out.Data.Reference
	if ref == "" {
		ref = req.Reference
	}
	return &Charge{CheckoutURL: out.Data.CheckoutURL, Reference: ref}, nil
}

// VerifyWebhookSignature checks the hex HMAC-SHA256 of the raw request body
// against the shared webhook secret. The body must be the exact bytes read
// off the wire; re-serialized JSON would break the digest.
func (c *Client) VerifyWebhookSignature(rawBody []byte, signature string) error {
	if signature == "" {
		return ErrSignatureInvalid
	}

	mac := hmac.New(sha256.New, []byte(c.webhookSecret))
	mac.Write(rawBody)
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return ErrSignatureInvalid
	}
	return nil
}
