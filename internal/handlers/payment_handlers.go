package handlers

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/nexgo-app/nexgo-engine/internal/payments"
)

// contactableEmail returns an address the payment provider will accept.
// KoraPay rejects malformed addresses and test-only TLDs, so those fall
// back to a synthetic address keyed by user ID.
func contactableEmail(email string, userID int64) string {
	if !strings.Contains(email, "@") || strings.HasSuffix(email, ".test") {
		return fmt.Sprintf("nexgo-user-%d@nexgo.app", userID)
	}
	return email
}

// InitiatePaymentInput defines the JSON for POST /v1/payments/initialize.
type InitiatePaymentInput struct {
	Amount int64 `json:"amount" binding:"required,gt=0"`
}

// InitiatePayment is the handler for POST /v1/payments/initialize. It
// creates a hosted-checkout session for wallet funding and returns the
// checkout URL plus the reference the webhook will later carry back.
func (h *Handlers) InitiatePayment(c *gin.Context) {
	userIDRaw, _ := c.Get("userID")
	userID := userIDRaw.(int64)

	var input InitiatePaymentInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid amount"})
		return
	}

	var (
		email    string
		fullName sql.NullString
	)
	err := h.DB.QueryRow("SELECT email, full_name FROM users WHERE id = ?", userID).Scan(&email, &fullName)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch user"})
		return
	}

	name := fullName.String
	if name == "" {
		name = "NexGo User"
	}

	reference := "NXW-" + uuid.NewString()

	charge, err := h.Payments.InitializeCharge(c.Request.Context(), payments.ChargeRequest{
		Amount:      input.Amount,
		Currency:    "NGN",
		Reference:   reference,
		RedirectURL: "https://nexgo.app",
		Customer: payments.Customer{
			Email: contactableEmail(email, userID),
			Name:  name,
		},
		Metadata: map[string]string{
			"user_id": strconv.FormatInt(userID, 10),
			"type":    "wallet_funding",
		},
	})
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"user_id":   userID,
			"reference": reference,
		}).WithError(err).Error("Payment initialization failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": "payment initialization failed"})
		return
	}

	logrus.WithFields(logrus.Fields{
		"user_id":   userID,
		"amount":    input.Amount,
		"reference": charge.Reference,
	}).Info("Payment initialized")

	c.JSON(http.StatusOK, gin.H{
		"checkout_url": charge.CheckoutURL,
		"reference":    charge.Reference,
	})
}
