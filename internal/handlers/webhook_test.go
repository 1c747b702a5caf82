package handlers

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nexgo-app/nexgo-engine/internal/models"
	"github.com/nexgo-app/nexgo-engine/internal/payments"
)

type mockVerifier struct {
	err error
}

func (m *mockVerifier) VerifyWebhookSignature(rawBody []byte, signature string) error {
	return m.err
}

type mockCreditor struct {
	calls     int
	userID    int64
	amount    int64
	reference string
	duplicate bool
	err       error
}

func (m *mockCreditor) ApplyPaymentCredit(ctx context.Context, userID, amount int64, reference string) (bool, error) {
	m.calls++
	m.userID = userID
	m.amount = amount
	m.reference = reference
	return m.duplicate, m.err
}

func successBody(reference string, amount, userID int64) []byte {
	return []byte(fmt.Sprintf(
		`{"event":"charge.success","data":{"reference":"%s","amount":%d,"metadata":{"user_id":%d}}}`,
		reference, amount, userID))
}

func TestProcessWebhookBadSignature(t *testing.T) {
	verifier := &mockVerifier{err: payments.ErrSignatureInvalid}
	creditor := &mockCreditor{}

	status, _ := processWebhook(context.Background(), successBody("NXW-1", 5000, 7), "bad", verifier, creditor)

	require.Equal(t, http.StatusUnauthorized, status)
	require.Zero(t, creditor.calls, "an unverified body must never reach the wallet")
}

func TestProcessWebhookMalformedBody(t *testing.T) {
	creditor := &mockCreditor{}

	status, _ := processWebhook(context.Background(), []byte("{not json"), "sig", &mockVerifier{}, creditor)

	require.Equal(t, http.StatusBadRequest, status)
	require.Zero(t, creditor.calls)
}

func TestProcessWebhookIgnoresOtherEvents(t *testing.T) {
	creditor := &mockCreditor{}
	body := []byte(`{"event":"charge.failed","data":{"reference":"NXW-2","amount":5000,"metadata":{"user_id":7}}}`)

	status, resp := processWebhook(context.Background(), body, "sig", &mockVerifier{}, creditor)

	require.Equal(t, http.StatusOK, status)
	require.Equal(t, true, resp["received"])
	require.Zero(t, creditor.calls)
}

func TestProcessWebhookValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing reference", `{"event":"charge.success","data":{"amount":5000,"metadata":{"user_id":7}}}`},
		{"missing amount", `{"event":"charge.success","data":{"reference":"NXW-3","metadata":{"user_id":7}}}`},
		{"missing user id", `{"event":"charge.success","data":{"reference":"NXW-3","amount":5000,"metadata":{}}}`},
		{"zero amount", `{"event":"charge.success","data":{"reference":"NXW-3","amount":0,"metadata":{"user_id":7}}}`},
		{"negative amount", `{"event":"charge.success","data":{"reference":"NXW-3","amount":-100,"metadata":{"user_id":7}}}`},
		{"amount above ceiling", `{"event":"charge.success","data":{"reference":"NXW-3","amount":10000001,"metadata":{"user_id":7}}}`},
		{"non-numeric amount", `{"event":"charge.success","data":{"reference":"NXW-3","amount":"lots","metadata":{"user_id":7}}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			creditor := &mockCreditor{}
			status, _ := processWebhook(context.Background(), []byte(tt.body), "sig", &mockVerifier{}, creditor)
			require.Equal(t, http.StatusBadRequest, status)
			require.Zero(t, creditor.calls)
		})
	}
}

func TestProcessWebhookCredits(t *testing.T) {
	creditor := &mockCreditor{}

	status, resp := processWebhook(context.Background(), successBody("NXW-4", 250000, 42), "sig", &mockVerifier{}, creditor)

	require.Equal(t, http.StatusOK, status)
	require.Equal(t, true, resp["credited"])
	require.Equal(t, 1, creditor.calls)
	require.Equal(t, int64(42), creditor.userID)
	require.Equal(t, int64(250000), creditor.amount)
	require.Equal(t, "NXW-4", creditor.reference)
}

func TestProcessWebhookDuplicate(t *testing.T) {
	creditor := &mockCreditor{duplicate: true}

	status, resp := processWebhook(context.Background(), successBody("NXW-5", 5000, 7), "sig", &mockVerifier{}, creditor)

	require.Equal(t, http.StatusOK, status)
	require.Equal(t, true, resp["duplicate"])
	require.NotContains(t, resp, "credited")
}

func TestProcessWebhookWalletNotFound(t *testing.T) {
	creditor := &mockCreditor{err: models.ErrWalletNotFound}

	status, _ := processWebhook(context.Background(), successBody("NXW-6", 5000, 999), "sig", &mockVerifier{}, creditor)

	require.Equal(t, http.StatusNotFound, status)
}

func TestProcessWebhookStoreError(t *testing.T) {
	creditor := &mockCreditor{err: context.DeadlineExceeded}

	status, _ := processWebhook(context.Background(), successBody("NXW-7", 5000, 7), "sig", &mockVerifier{}, creditor)

	require.Equal(t, http.StatusInternalServerError, status)
}
