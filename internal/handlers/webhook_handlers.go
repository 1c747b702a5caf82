package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/nexgo-app/nexgo-engine/internal/models"
)

// maxWebhookAmount is the sanity ceiling for a single external credit, in
// minor units.
const maxWebhookAmount = 10_000_000

// signatureHeader carries the provider's hex HMAC-SHA256 of the raw body.
const signatureHeader = "X-Provider-Signature"

// signatureVerifier matches the payments client's webhook check.
type signatureVerifier interface {
	VerifyWebhookSignature(rawBody []byte, signature string) error
}

// paymentCreditor applies one external credit. duplicate=true means the
// reference was already processed and nothing was mutated.
type paymentCreditor interface {
	ApplyPaymentCredit(ctx context.Context, userID, amount int64, reference string) (duplicate bool, err error)
}

type webhookPayload struct {
	Event string `json:"event"`
	Data  struct {
		Reference string      `json:"reference"`
		Amount    json.Number `json:"amount"`
		Metadata  struct {
			UserID json.Number `json:"user_id"`
		} `json:"metadata"`
	} `json:"data"`
}

// PaymentWebhook is the handler for POST /webhooks/payment. The provider
// delivers at-least-once, so every outcome that counts as "handled",
// duplicates and uninteresting event types included, must answer 2xx or
// the provider will retry forever.
func (h *Handlers) PaymentWebhook(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read request body"})
		return
	}

	status, resp := processWebhook(c.Request.Context(), raw, c.GetHeader(signatureHeader), h.Payments, h)
	c.JSON(status, resp)
}

// processWebhook runs the full ingest pipeline over the raw body. The
// signature check comes first and is absolute: an unsigned or mis-signed
// request never reaches parsing.
func processWebhook(ctx context.Context, raw []byte, signature string, verifier signatureVerifier, store paymentCreditor) (int, gin.H) {
	if err := verifier.VerifyWebhookSignature(raw, signature); err != nil {
		logrus.Warn("Webhook rejected: bad signature")
		return http.StatusUnauthorized, gin.H{"error": "invalid signature"}
	}

	var payload webhookPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return http.StatusBadRequest, gin.H{"error": "malformed webhook body"}
	}

	if payload.Event != "charge.success" {
		return http.StatusOK, gin.H{"received": true}
	}

	reference := payload.Data.Reference
	amount, amountErr := payload.Data.Amount.Int64()
	userID, userErr := payload.Data.Metadata.UserID.Int64()

	if reference == "" || amountErr != nil || userErr != nil || userID <= 0 ||
		amount <= 0 || amount > maxWebhookAmount {
		return http.StatusBadRequest, gin.H{"error": "missing or invalid webhook data"}
	}

	duplicate, err := store.ApplyPaymentCredit(ctx, userID, amount, reference)
	if err != nil {
		if errors.Is(err, models.ErrWalletNotFound) {
			logrus.WithField("user_id", userID).Error("Webhook credit failed: wallet not found")
			return http.StatusNotFound, gin.H{"error": "wallet not found"}
		}
		logrus.WithFields(logrus.Fields{
			"reference": reference,
			"user_id":   userID,
		}).WithError(err).Error("Webhook credit failed")
		return http.StatusInternalServerError, gin.H{"error": "internal error"}
	}

	if duplicate {
		logrus.WithField("reference", reference).Info("Webhook duplicate ignored")
		return http.StatusOK, gin.H{"received": true, "duplicate": true}
	}

	return http.StatusOK, gin.H{"received": true, "credited": true}
}

// ApplyPaymentCredit credits a wallet from a confirmed provider charge.
// The ledger row's UNIQUE reference makes the existence check and the
// credit one serializable unit: a replayed reference hits the index, the
// transaction rolls back, and the balance is untouched.
func (h *Handlers) ApplyPaymentCredit(ctx context.Context, userID, amount int64, reference string) (bool, error) {
	tx, err := h.DB.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	label := "KoraPay " + reference
	if err := h.CreditWallet(tx, userID, amount, label, "💳", &reference); err != nil {
		if errors.Is(err, models.ErrDuplicateReference) {
			return true, nil
		}
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, err
	}

	logrus.WithFields(logrus.Fields{
		"user_id":   userID,
		"amount":    amount,
		"reference": reference,
	}).Info("Wallet credited from payment webhook")

	h.invalidateWalletCache(userID)
	h.publishWalletEvent(userID, amount, label)

	return false, nil
}
