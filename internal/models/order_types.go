package models

import (
	"database/sql"
	"time"
)

// Order statuses. The legal edges between them live in the handlers
// package's transition table.
const (
	OrderPending        = "Pending"
	OrderAccepted       = "accepted"
	OrderPreparing      = "preparing"
	OrderReady          = "ready"
	OrderOutForDelivery = "out_for_delivery"
	OrderDelivered      = "delivered"
	OrderCancelled      = "cancelled"
	OrderUnderReview    = "under_review"
)

// Payment methods accepted at checkout.
const (
	PaymentWallet   = "wallet"
	PaymentTransfer = "transfer"
)

// Order is the model for the 'orders' table. Status only ever moves along
// the transition table's edges, enforced by compare-and-set updates.
type Order struct {
	ID               int64          `json:"id" db:"id"`
	OrderNumber      string         `json:"orderNumber" db:"order_number"`
	StudentID        int64          `json:"studentId" db:"student_id"`
	RestaurantID     int64          `json:"restaurantId" db:"restaurant_id"`
	RiderID          sql.NullInt64  `json:"riderId,omitempty" db:"rider_id"`
	TotalAmount      int64          `json:"totalAmount" db:"total_amount"` // minor units
	DeliveryFee      int64          `json:"deliveryFee" db:"delivery_fee"`
	PaymentMethod    string         `json:"paymentMethod" db:"payment_method"`
	PaymentReference sql.NullString `json:"paymentReference,omitempty" db:"payment_reference"`
	Status           string         `json:"status" db:"status"`
	DeliveryAddress  string         `json:"deliveryAddress" db:"delivery_address"`

	CancelledBy        sql.NullInt64  `json:"cancelledBy,omitempty" db:"cancelled_by"`
	CancellationReason sql.NullString `json:"cancellationReason,omitempty" db:"cancellation_reason"`

	DisputeReason sql.NullString `json:"disputeReason,omitempty" db:"dispute_reason"`
	DisputedAt    sql.NullTime   `json:"disputedAt,omitempty" db:"disputed_at"`

	// OTP state for the current delivery cycle. The hash itself is never
	// serialized.
	DeliveryOTPHash sql.NullString `json:"-" db:"delivery_otp_hash"`
	OTPExpiresAt    sql.NullTime   `json:"-" db:"otp_expires_at"`
	OTPVerifiedAt   sql.NullTime   `json:"-" db:"otp_verified_at"`

	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// OrderItem is the model for the 'order_items' table. Items are a snapshot
// of the cart at checkout; price changes on the menu never touch them.
type OrderItem struct {
	ID         int64     `json:"id" db:"id"`
	OrderID    int64     `json:"orderId" db:"order_id"`
	MenuItemID int64     `json:"menuItemId" db:"menu_item_id"`
	Name       string    `json:"name" db:"name"`
	Price      int64     `json:"price" db:"price"` // unit price, minor units
	Quantity   int       `json:"quantity" db:"quantity"`
	CreatedAt  time.Time `json:"createdAt" db:"created_at"`
}
