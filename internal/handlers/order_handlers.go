package handlers

import (
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-sql-driver/mysql"
	"github.com/sirupsen/logrus"

	"github.com/nexgo-app/nexgo-engine/internal/models"
)

// deliveryFee is the flat campus delivery fee in minor units (₦150).
const deliveryFee = 15000

// newOrderNumber builds the external-facing order number: base36 of the
// current millisecond clock plus four random base36 characters, so two
// checkouts landing in the same millisecond still get distinct numbers.
// The UNIQUE index on orders.order_number is the final guard.
func newOrderNumber() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(36*36*36*36))
	if err != nil {
		return "", err
	}
	ts := strconv.FormatInt(time.Now().UnixMilli(), 36)
	suffix := strconv.FormatInt(n.Int64(), 36)
	for len(suffix) < 4 {
		suffix = "0" + suffix
	}
	return "NX-" + strings.ToUpper(ts+suffix), nil
}

//
// --- Order Placement ---
//

// PlaceOrderItem is one cart line at checkout.
type PlaceOrderItem struct {
	MenuItemID int64  `json:"menuItemId" binding:"required"`
	Name       string `json:"name" binding:"required"`
	Price      int64  `json:"price" binding:"required,gt=0"`
	Quantity   int    `json:"quantity" binding:"required,gt=0"`
}

// PlaceOrderInput defines the JSON for POST /v1/orders.
type PlaceOrderInput struct {
	RestaurantID     int64            `json:"restaurantId" binding:"required"`
	DeliveryAddress  string           `json:"deliveryAddress" binding:"required"`
	PaymentMethod    string           `json:"paymentMethod" binding:"required,oneof=wallet transfer"`
	PaymentReference string           `json:"paymentReference"`
	Items            []PlaceOrderItem `json:"items" binding:"required,min=1,dive"`
}

// PlaceOrder is the handler for POST /v1/orders. For wallet payment the
// order insert and the debit are one transaction: an insufficient balance
// rolls back everything, so no order row can exist without its debit.
func (h *Handlers) PlaceOrder(c *gin.Context) {
	userIDRaw, _ := c.Get("userID")
	studentID := userIDRaw.(int64)

	var input PlaceOrderInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var subtotal int64
	for _, item := range input.Items {
		subtotal += item.Price * int64(item.Quantity)
	}
	total := subtotal + deliveryFee

	tx, err := h.DB.BeginTx(c, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to start transaction"})
		return
	}
	defer tx.Rollback()

	now := time.Now()

	var payRef *string
	if input.PaymentMethod == models.PaymentTransfer && input.PaymentReference != "" {
		payRef = &input.PaymentReference
	}

	var (
		orderID     int64
		orderNumber string
	)
	for attempt := 0; attempt < 3; attempt++ {
		num, err := newOrderNumber()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate order number"})
			return
		}

		result, err := tx.Exec(`
			INSERT INTO orders
			(order_number, student_id, restaurant_id, total_amount, delivery_fee,
			 payment_method, payment_reference, status, delivery_address, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			num, studentID, input.RestaurantID, total, deliveryFee,
			input.PaymentMethod, payRef, models.OrderPending, input.DeliveryAddress, now, now)
		if err != nil {
			var mysqlErr *mysql.MySQLError
			if errors.As(err, &mysqlErr) && mysqlErr.Number == mysqlDuplicateEntry {
				continue
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create order"})
			return
		}
		orderID, _ = result.LastInsertId()
		orderNumber = num
		break
	}
	if orderNumber == "" {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create order"})
		return
	}

	itemQuery := `
		INSERT INTO order_items (order_id, menu_item_id, name, price, quantity, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`
	for _, item := range input.Items {
		if _, err := tx.Exec(itemQuery, orderID, item.MenuItemID, item.Name, item.Price, item.Quantity, now); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save order item"})
			return
		}
	}

	if input.PaymentMethod == models.PaymentWallet {
		err := h.DebitWallet(tx, studentID, total, "NexChow "+orderNumber, "🍽️")
		if err != nil {
			switch {
			case errors.Is(err, models.ErrInsufficientFunds):
				c.JSON(http.StatusPaymentRequired, gin.H{"error": "Insufficient wallet balance"})
			case errors.Is(err, models.ErrWalletNotFound):
				c.JSON(http.StatusNotFound, gin.H{"error": "Wallet not found"})
			default:
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to deduct from wallet"})
			}
			return
		}
	}

	if err := tx.Commit(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to commit transaction"})
		return
	}

	logrus.WithFields(logrus.Fields{
		"order_id":       orderID,
		"order_number":   orderNumber,
		"student_id":     studentID,
		"total_amount":   total,
		"payment_method": input.PaymentMethod,
	}).Info("Order placed")

	if input.PaymentMethod == models.PaymentWallet {
		h.invalidateWalletCache(studentID)
		h.publishWalletEvent(studentID, -total, "NexChow "+orderNumber)
	}
	h.publishOrderEvent(orderID, orderNumber, models.OrderPending)

	c.JSON(http.StatusCreated, gin.H{
		"orderId":     orderID,
		"orderNumber": orderNumber,
		"status":      models.OrderPending,
		"totalAmount": total,
	})
}

//
// --- Order Transitions ---
//

// TransitionOrderInput defines the JSON for PATCH /v1/orders/:id/status.
type TransitionOrderInput struct {
	Status string `json:"status" binding:"required"`
	Reason string `json:"reason"`
}

// TransitionOrder is the handler for PATCH /v1/orders/:id/status. Legality
// depends on both the current status and the caller's role; the final
// UPDATE is a compare-and-set on the previous status so two concurrent
// attempts from the same state can never both succeed.
func (h *Handlers) TransitionOrder(c *gin.Context) {
	userIDRaw, _ := c.Get("userID")
	actorID := userIDRaw.(int64)
	roleRaw, _ := c.Get("userRole")
	role := roleRaw.(string)
	orderID := c.Param("id")

	var input TransitionOrderInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// Cancellation always travels the refund path so a cancel can never be
	// recorded without its credit.
	if input.Status == models.OrderCancelled {
		h.cancelOrder(c, orderID, actorID, role, input.Reason)
		return
	}

	tx, err := h.DB.BeginTx(c, nil)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to start transaction"})
		return
	}
	defer tx.Rollback()

	var (
		currentStatus string
		orderNumber   string
		ownerID       int64
		riderID       sql.NullInt64
		otpVerified   sql.NullTime
	)
	err = tx.QueryRow(`
		SELECT o.status, o.order_number, r.owner_id, o.rider_id, o.otp_verified_at
		FROM orders o
		JOIN restaurants r ON o.restaurant_id = r.id
		WHERE o.id = ?
		FOR UPDATE`, orderID).
		Scan(&currentStatus, &orderNumber, &ownerID, &riderID, &otpVerified)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch order"})
		return
	}

	// Actor scoping: the role table says what moves exist, this says who
	// may make them for this particular order.
	switch role {
	case models.RoleVendor:
		if ownerID != actorID {
			c.JSON(http.StatusForbidden, gin.H{"error": "This order belongs to another restaurant"})
			return
		}
	case models.RoleRider:
		if riderID.Valid && riderID.Int64 != actorID {
			c.JSON(http.StatusForbidden, gin.H{"error": "This delivery is assigned to another rider"})
			return
		}
		if input.Status == models.OrderDelivered && !riderID.Valid {
			c.JSON(http.StatusForbidden, gin.H{"error": "This delivery is assigned to another rider"})
			return
		}
	}

	if !TransitionAllowed(role, currentStatus, input.Status) {
		c.JSON(http.StatusConflict, gin.H{
			"error": fmt.Sprintf("cannot move order from %s to %s", currentStatus, input.Status),
		})
		return
	}

	now := time.Now()
	var (
		result sql.Result
		otp    string
	)

	switch input.Status {
	case models.OrderOutForDelivery:
		// Picking up the order claims it for this rider and issues a fresh
		// delivery code; only the hash is stored.
		otp, err = GenerateOTP()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate delivery code"})
			return
		}
		otpHash, err := HashOTP(otp)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate delivery code"})
			return
		}
		result, err = tx.Exec(`
			UPDATE orders
			SET status = ?, rider_id = ?, delivery_otp_hash = ?, otp_expires_at = ?,
			    otp_verified_at = NULL, updated_at = ?
			WHERE id = ? AND status = ?`,
			models.OrderOutForDelivery, actorID, otpHash, now.Add(otpTTL), now,
			orderID, currentStatus)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update order status"})
			return
		}

	case models.OrderDelivered:
		if !otpVerified.Valid {
			c.JSON(http.StatusConflict, gin.H{"error": models.ErrOTPNotVerified.Error()})
			return
		}
		// Consuming otp_verified_at closes this delivery cycle.
		result, err = tx.Exec(`
			UPDATE orders
			SET status = ?, otp_verified_at = NULL, updated_at = ?
			WHERE id = ? AND status = ? AND otp_verified_at IS NOT NULL`,
			models.OrderDelivered, now, orderID, currentStatus)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update order status"})
			return
		}

	default:
		result, err = tx.Exec(`
			UPDATE orders SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
			input.Status, now, orderID, currentStatus)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update order status"})
			return
		}
	}

	rows, err := result.RowsAffected()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check update result"})
		return
	}
	if rows == 0 {
		c.JSON(http.StatusConflict, gin.H{"error": models.ErrInvalidTransition.Error()})
		return
	}

	if err := tx.Commit(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to commit transaction"})
		return
	}

	logrus.WithFields(logrus.Fields{
		"order_number": orderNumber,
		"from":         currentStatus,
		"to":           input.Status,
		"actor_id":     actorID,
		"role":         role,
	}).Info("Order transitioned")

	id, _ := strconv.ParseInt(orderID, 10, 64)
	h.publishOrderEvent(id, orderNumber, input.Status)

	resp := gin.H{"orderNumber": orderNumber, "status": input.Status}
	if otp != "" {
		// Returned exactly once; the UI relays it to the student.
		resp["deliveryOtp"] = otp
	}
	c.JSON(http.StatusOK, resp)
}

//
// --- Order Retrieval ---
//

// GetMyOrders is the handler for GET /v1/orders. The view is scoped by
// role: students see their own orders, vendors their restaurants' orders,
// riders their assigned deliveries plus unclaimed ready ones.
func (h *Handlers) GetMyOrders(c *gin.Context) {
	userIDRaw, _ := c.Get("userID")
	userID := userIDRaw.(int64)
	roleRaw, _ := c.Get("userRole")
	role := roleRaw.(string)

	const baseSelect = `
		SELECT id, order_number, student_id, restaurant_id, rider_id, total_amount,
		       delivery_fee, payment_method, status, delivery_address, disputed_at, created_at
		FROM orders `

	var (
		rows *sql.Rows
		err  error
	)
	switch role {
	case models.RoleVendor:
		rows, err = h.DB.Query(baseSelect+`
			WHERE restaurant_id IN (SELECT id FROM restaurants WHERE owner_id = ?)
			ORDER BY created_at DESC LIMIT 50`, userID)
	case models.RoleRider:
		rows, err = h.DB.Query(baseSelect+`
			WHERE rider_id = ? OR (status = ? AND rider_id IS NULL)
			ORDER BY created_at DESC LIMIT 50`, userID, models.OrderReady)
	default:
		rows, err = h.DB.Query(baseSelect+`
			WHERE student_id = ? ORDER BY created_at DESC LIMIT 50`, userID)
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch orders"})
		return
	}
	defer rows.Close()

	orders := []models.Order{}
	for rows.Next() {
		var o models.Order
		if err := rows.Scan(&o.ID, &o.OrderNumber, &o.StudentID, &o.RestaurantID, &o.RiderID,
			&o.TotalAmount, &o.DeliveryFee, &o.PaymentMethod, &o.Status, &o.DeliveryAddress,
			&o.DisputedAt, &o.CreatedAt); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to scan order"})
			return
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read orders"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"orders": orders})
}
