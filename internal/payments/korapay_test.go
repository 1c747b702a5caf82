package payments

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInitializeCharge(t *testing.T) {
	var gotAuth string
	var gotBody ChargeRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/charges/initialize", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":true,"data":{"checkout_url":"https://checkout.example/abc","reference":"NXW-abc"}}`))
	}))
	defer server.Close()

	client := NewClientWithBaseURL("sk_test_123", "whsec", server.URL)
	charge, err := client.InitializeCharge(context.Background(), ChargeRequest{
		Amount:    150000,
		Currency:  "NGN",
		Reference: "NXW-abc",
		Customer:  Customer{Email: "ada@campus.edu", Name: "Ada"},
	})

	require.NoError(t, err)
	require.Equal(t, "Bearer sk_test_123", gotAuth)
	require.Equal(t, int64(150000), gotBody.Amount)
	require.Equal(t, "NGN", gotBody.Currency)
	require.Equal(t, "https://checkout.example/abc", charge.CheckoutURL)
	require.Equal(t, "NXW-abc", charge.Reference)
}

func TestInitializeChargeProviderError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"status":false,"message":"Invalid key"}`))
	}))
	defer server.Close()

	client := NewClientWithBaseURL("sk_bad", "whsec", server.URL)
	_, err := client.InitializeCharge(context.Background(), ChargeRequest{Amount: 1000, Currency: "NGN"})

	require.Error(t, err)
}

func TestInitializeChargeEmptyCheckoutURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":true,"data":{}}`))
	}))
	defer server.Close()

	client := NewClientWithBaseURL("sk_test", "whsec", server.URL)
	_, err := client.InitializeCharge(context.Background(), ChargeRequest{Amount: 1000, Currency: "NGN"})

	require.Error(t, err)
}

func TestVerifyWebhookSignature(t *testing.T) {
	client := NewClient("sk_test", "whsec_topsecret")
	body := []byte(`{"event":"charge.success"}`)

	mac := hmac.New(sha256.New, []byte("whsec_topsecret"))
	mac.Write(body)
	good := hex.EncodeToString(mac.Sum(nil))

	require.NoError(t, client.VerifyWebhookSignature(body, good))

	require.ErrorIs(t, client.VerifyWebhookSignature(body, ""), ErrSignatureInvalid)
	require.ErrorIs(t, client.VerifyWebhookSignature(body, "deadbeef"), ErrSignatureInvalid)
	require.ErrorIs(t, client.VerifyWebhookSignature([]byte(`{"event":"tampered"}`), good), ErrSignatureInvalid)
}
