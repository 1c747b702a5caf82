package models

import (
	"database/sql"
	"time"
)

// Dispatch statuses. Simpler two-actor lifecycle than food orders: the
// rider claims a Pending dispatch and walks it to Delivered, then Done.
const (
	DispatchPending   = "Pending"
	DispatchInTransit = "In Transit"
	DispatchDelivered = "Delivered"
	DispatchDone      = "Done"
)

// Dispatch is the model for the 'dispatches' table (campus package sends).
// No payment step is involved; the fee is settled off-ledger on handoff.
type Dispatch struct {
	ID                 int64         `json:"id" db:"id"`
	DispatchNumber     string        `json:"dispatchNumber" db:"dispatch_number"`
	StudentID          int64         `json:"studentId" db:"student_id"`
	RiderID            sql.NullInt64 `json:"riderId,omitempty" db:"rider_id"`
	PickupLocation     string        `json:"pickupLocation" db:"pickup_location"`
	DropoffLocation    string        `json:"dropoffLocation" db:"dropoff_location"`
	PackageDescription string        `json:"packageDescription" db:"package_description"`
	Fee                int64         `json:"fee" db:"fee"`
	Status             string        `json:"status" db:"status"`
	CreatedAt          time.Time     `json:"createdAt" db:"created_at"`
	UpdatedAt          time.Time     `json:"updatedAt" db:"updated_at"`
}

// ShuttleRoute is the model for the 'shuttle_routes' table (NexTrip).
type ShuttleRoute struct {
	ID           int64  `json:"id" db:"id"`
	FromLocation string `json:"fromLocation" db:"from_location"`
	ToLocation   string `json:"toLocation" db:"to_location"`
	Price        int64  `json:"price" db:"price"` // minor units
}
