package handlers

import (
	"time"

	"github.com/sirupsen/logrus"
)

// SweepExpiredOTPs clears delivery codes whose window has passed. Expiry is
// already enforced at verification time; this sweep is hygiene so stale
// hashes do not sit in the orders table indefinitely.
func (h *Handlers) SweepExpiredOTPs() {
	result, err := h.DB.Exec(`
		UPDATE orders
		SET delivery_otp_hash = NULL, otp_expires_at = NULL
		WHERE delivery_otp_hash IS NOT NULL AND otp_expires_at < ?`, time.Now())
	if err != nil {
		logrus.WithError(err).Error("OTP sweep failed")
		return
	}
	if rows, _ := result.RowsAffected(); rows > 0 {
		logrus.WithField("cleared", rows).Info("Swept expired delivery codes")
	}
}
