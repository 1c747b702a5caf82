package handlers

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/nexgo-app/nexgo-engine/internal/models"
)

// disputeWindow is how long after placement a delivered order stays
// disputable.
const disputeWindow = 30 * time.Minute

// disputeEligibility applies the filing rules in order, so the caller gets
// the most specific reason: wrong state, already disputed, window closed.
func disputeEligibility(status string, alreadyDisputed bool, age time.Duration) error {
	if status != models.OrderDelivered {
		return models.ErrNotDisputable
	}
	if alreadyDisputed {
		return models.ErrAlreadyDisputed
	}
	if age > disputeWindow {
		return models.ErrDisputeWindowClosed
	}
	return nil
}

// FileDisputeInput defines the JSON for POST /v1/orders/:id/dispute.
type FileDisputeInput struct {
	Reason string `json:"reason" binding:"required"`
}

// FileDispute is the handler for POST /v1/orders/:id/dispute. Eligibility
// is time-bounded by wall clock at the moment of the call; the final update
// re-checks state so a concurrent dispute can't double-file.
func (h *Handlers) FileDispute(c *gin.Context) {
	userIDRaw, _ := c.Get("userID")
	studentID := userIDRaw.(int64)
	orderID := c.Param("id")

	var input FileDisputeInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "A dispute reason is required"})
		return
	}

	var (
		status      string
		orderNumber string
		disputedAt  sql.NullTime
		createdAt   time.Time
	)
	err := h.DB.QueryRow(`
		SELECT status, order_number, disputed_at, created_at
		FROM orders WHERE id = ? AND student_id = ?`, orderID, studentID).
		Scan(&status, &orderNumber, &disputedAt, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch order"})
		return
	}

	if err := disputeEligibility(status, disputedAt.Valid, time.Since(createdAt)); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}

	now := time.Now()
	result, err := h.DB.Exec(`
		UPDATE orders
		SET status = ?, dispute_reason = ?, disputed_at = ?, updated_at = ?
		WHERE id = ? AND status = ? AND disputed_at IS NULL`,
		models.OrderUnderReview, input.Reason, now, now,
		orderID, models.OrderDelivered)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to file dispute"})
		return
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		c.JSON(http.StatusConflict, gin.H{"error": models.ErrAlreadyDisputed.Error()})
		return
	}

	logrus.WithFields(logrus.Fields{
		"order_number": orderNumber,
		"student_id":   studentID,
	}).Info("Dispute filed")

	id, _ := strconv.ParseInt(orderID, 10, 64)
	h.publishOrderEvent(id, orderNumber, models.OrderUnderReview)

	c.JSON(http.StatusOK, gin.H{"message": "Dispute filed. The order is now under review.", "status": models.OrderUnderReview})
}

// CancelOrderInput defines the JSON for POST /v1/orders/:id/cancel.
type CancelOrderInput struct {
	Reason string `json:"reason"`
}

// CancelOrder is the handler for POST /v1/orders/:id/cancel.
func (h *Handlers) CancelOrder(c *gin.Context) {
	userIDRaw, _ := c.Get("userID")
	actorID := userIDRaw.(int64)
	roleRaw, _ := c.Get("userRole")
	role := roleRaw.(string)

	var input CancelOrderInput
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	h.cancelOrder(c, c.Param("id"), actorID, role, input.Reason)
}

// cancelOrder performs cancel-and-refund as one transaction: the
// compare-and-set that records the cancel and the credit that refunds the
// student commit together or not at all. A second concurrent call finds
// the status already moved and fails cleanly, which is what makes the
// operation safe against double submits.
func (h *Handlers) cancelOrder(c *gin.Context, orderID string, actorID int64, role, reason string) {
	tx, err := h.DB.BeginTx(c, nil)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to start transaction"})
		return
	}
	defer tx.Rollback()

	var (
		currentStatus string
		orderNumber   string
		studentID     int64
		ownerID       int64
		totalAmount   int64
		paymentMethod string
	)
	err = tx.QueryRow(`
		SELECT o.status, o.order_number, o.student_id, r.owner_id, o.total_amount, o.payment_method
		FROM orders o
		JOIN restaurants r ON o.restaurant_id = r.id
		WHERE o.id = ?
		FOR UPDATE`, orderID).
		Scan(&currentStatus, &orderNumber, &studentID, &ownerID, &totalAmount, &paymentMethod)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch order"})
		return
	}

	switch role {
	case models.RoleStudent:
		if studentID != actorID {
			c.JSON(http.StatusForbidden, gin.H{"error": "This order belongs to another student"})
			return
		}
	case models.RoleVendor:
		if ownerID != actorID {
			c.JSON(http.StatusForbidden, gin.H{"error": "This order belongs to another restaurant"})
			return
		}
	default:
		c.JSON(http.StatusForbidden, gin.H{"error": "This action is not available for your role"})
		return
	}

	if !CancellableBy(role, currentStatus) {
		c.JSON(http.StatusConflict, gin.H{"error": "Cannot cancel this order"})
		return
	}

	if reason == "" {
		reason = "Cancelled by " + role
	}

	result, err := tx.Exec(`
		UPDATE orders
		SET status = ?, cancelled_by = ?, cancellation_reason = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		models.OrderCancelled, actorID, reason, time.Now(),
		orderID, currentStatus)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to cancel order"})
		return
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		c.JSON(http.StatusConflict, gin.H{"error": models.ErrInvalidTransition.Error()})
		return
	}

	// Transfer-paid orders cancelled before payment confirmation have had
	// no debit, so there is nothing to put back.
	var refunded int64
	if paymentMethod == models.PaymentWallet {
		if err := h.CreditWallet(tx, studentID, totalAmount, "Refund "+orderNumber, "↩️", nil); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to refund wallet"})
			return
		}
		refunded = totalAmount
	}

	if err := tx.Commit(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to commit transaction"})
		return
	}

	logrus.WithFields(logrus.Fields{
		"order_number": orderNumber,
		"actor_id":     actorID,
		"role":         role,
		"refunded":     refunded,
	}).Info("Order cancelled")

	if refunded > 0 {
		h.invalidateWalletCache(studentID)
		h.publishWalletEvent(studentID, refunded, "Refund "+orderNumber)
	}
	id, _ := strconv.ParseInt(orderID, 10, 64)
	h.publishOrderEvent(id, orderNumber, models.OrderCancelled)

	c.JSON(http.StatusOK, gin.H{
		"message":  "Order cancelled",
		"refunded": refunded,
		"status":   models.OrderCancelled,
	})
}
