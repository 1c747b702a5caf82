package handlers

import (
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/nexgo-app/nexgo-engine/internal/models"
)

// otpTTL is how long a delivery code stays valid after issuance.
const otpTTL = 25 * time.Minute

// GenerateOTP returns a 6-digit numeric code from crypto/rand. Leading
// zeros are kept, so the keyspace is the full 000000–999999.
func GenerateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// HashOTP hashes a code for storage. Only the hash ever touches the
// database; the plaintext is shown to the student once and then gone.
func HashOTP(code string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckOTP compares a submitted code against the stored hash.
func CheckOTP(hash, code string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(code)) == nil
}

// VerifyOTPInput defines the JSON for an OTP verification attempt.
type VerifyOTPInput struct {
	Code string `json:"code" binding:"required,len=6"`
}

// VerifyDeliveryOTP is the handler for POST /v1/orders/:id/verify-otp.
// A wrong or expired code is reported and the rider may retry; a match
// consumes the code, so the delivered transition can be applied exactly
// once per delivery cycle.
func (h *Handlers) VerifyDeliveryOTP(c *gin.Context) {
	userIDRaw, _ := c.Get("userID")
	riderID := userIDRaw.(int64)
	orderID := c.Param("id")

	var input VerifyOTPInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "A 6-digit code is required"})
		return
	}

	var (
		status    string
		assigned  sql.NullInt64
		otpHash   sql.NullString
		expiresAt sql.NullTime
	)
	err := h.DB.QueryRow(`
		SELECT status, rider_id, delivery_otp_hash, otp_expires_at
		FROM orders WHERE id = ?`, orderID).
		Scan(&status, &assigned, &otpHash, &expiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch order"})
		return
	}

	if !assigned.Valid || assigned.Int64 != riderID {
		c.JSON(http.StatusForbidden, gin.H{"error": "This delivery is assigned to another rider"})
		return
	}

	if status != models.OrderOutForDelivery ||
		!otpHash.Valid ||
		!expiresAt.Valid || time.Now().After(expiresAt.Time) ||
		!CheckOTP(otpHash.String, input.Code) {
		c.JSON(http.StatusConflict, gin.H{"error": models.ErrExpiredOrMismatchedOTP.Error(), "verified": false})
		return
	}

	// Single use: clearing the hash and stamping the verification is one
	// conditional update, so a concurrent second attempt loses.
	result, err := h.DB.Exec(`
		UPDATE orders
		SET delivery_otp_hash = NULL, otp_expires_at = NULL, otp_verified_at = ?, updated_at = ?
		WHERE id = ? AND delivery_otp_hash IS NOT NULL`,
		time.Now(), time.Now(), orderID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record verification"})
		return
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		c.JSON(http.StatusConflict, gin.H{"error": models.ErrExpiredOrMismatchedOTP.Error(), "verified": false})
		return
	}

	logrus.WithFields(logrus.Fields{
		"order_id": orderID,
		"rider_id": riderID,
	}).Info("Delivery OTP verified")

	c.JSON(http.StatusOK, gin.H{"verified": true})
}
