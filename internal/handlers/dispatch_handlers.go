package handlers

import (
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-sql-driver/mysql"
	"github.com/sirupsen/logrus"

	"github.com/nexgo-app/nexgo-engine/internal/models"
)

// dispatchFee is the flat package-send fee in minor units (₦500), settled
// off-ledger on handoff.
const dispatchFee = 50000

// newDispatchNumber builds a short tracking ID like DP-4821. Collisions are
// handled by the UNIQUE index plus a retry in the insert loop.
func newDispatchNumber() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(9000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("DP-%d", n.Int64()+1000), nil
}

// CreateDispatchInput defines the JSON for POST /v1/dispatches.
type CreateDispatchInput struct {
	PickupLocation     string `json:"pickupLocation" binding:"required"`
	DropoffLocation    string `json:"dropoffLocation" binding:"required"`
	PackageDescription string `json:"packageDescription"`
}

// CreateDispatch is the handler for POST /v1/dispatches.
func (h *Handlers) CreateDispatch(c *gin.Context) {
	userIDRaw, _ := c.Get("userID")
	studentID := userIDRaw.(int64)

	var input CreateDispatchInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Pickup and dropoff locations are required"})
		return
	}

	now := time.Now()
	var (
		dispatchID     int64
		dispatchNumber string
	)
	for attempt := 0; attempt < 3; attempt++ {
		num, err := newDispatchNumber()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate dispatch number"})
			return
		}

		result, err := h.DB.Exec(`
			INSERT INTO dispatches
			(dispatch_number, student_id, pickup_location, dropoff_location,
			 package_description, fee, status, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			num, studentID, input.PickupLocation, input.DropoffLocation,
			input.PackageDescription, dispatchFee, models.DispatchPending, now, now)
		if err != nil {
			var mysqlErr *mysql.MySQLError
			if errors.As(err, &mysqlErr) && mysqlErr.Number == mysqlDuplicateEntry {
				continue
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create dispatch"})
			return
		}
		dispatchID, _ = result.LastInsertId()
		dispatchNumber = num
		break
	}
	if dispatchNumber == "" {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create dispatch"})
		return
	}

	logrus.WithFields(logrus.Fields{
		"dispatch_number": dispatchNumber,
		"student_id":      studentID,
	}).Info("Dispatch requested")

	h.publishDispatchEvent(dispatchID, dispatchNumber, models.DispatchPending)

	c.JSON(http.StatusCreated, gin.H{
		"dispatchId":     dispatchID,
		"dispatchNumber": dispatchNumber,
		"status":         models.DispatchPending,
		"fee":            dispatchFee,
	})
}

// TransitionDispatchInput defines the JSON for PATCH /v1/dispatches/:id/status.
type TransitionDispatchInput struct {
	Status string `json:"status" binding:"required"`
}

// TransitionDispatch is the handler for PATCH /v1/dispatches/:id/status.
// The first advance (Pending → In Transit) claims the job: the conditional
// update only matches while rider_id is still NULL, so two riders accepting
// at once resolve to exactly one winner.
func (h *Handlers) TransitionDispatch(c *gin.Context) {
	userIDRaw, _ := c.Get("userID")
	riderID := userIDRaw.(int64)
	dispatchID := c.Param("id")

	var input TransitionDispatchInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var (
		currentStatus  string
		dispatchNumber string
		assigned       sql.NullInt64
	)
	err := h.DB.QueryRow(`
		SELECT status, dispatch_number, rider_id FROM dispatches WHERE id = ?`, dispatchID).
		Scan(&currentStatus, &dispatchNumber, &assigned)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Dispatch not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch dispatch"})
		return
	}

	if assigned.Valid && assigned.Int64 != riderID {
		c.JSON(http.StatusForbidden, gin.H{"error": "This dispatch is assigned to another rider"})
		return
	}

	if !DispatchTransitionAllowed(currentStatus, input.Status) {
		c.JSON(http.StatusConflict, gin.H{
			"error": fmt.Sprintf("cannot move dispatch from %s to %s", currentStatus, input.Status),
		})
		return
	}

	var result sql.Result
	now := time.Now()
	if currentStatus == models.DispatchPending {
		result, err = h.DB.Exec(`
			UPDATE dispatches SET status = ?, rider_id = ?, updated_at = ?
			WHERE id = ? AND status = ? AND rider_id IS NULL`,
			input.Status, riderID, now, dispatchID, currentStatus)
	} else {
		result, err = h.DB.Exec(`
			UPDATE dispatches SET status = ?, updated_at = ?
			WHERE id = ? AND status = ? AND rider_id = ?`,
			input.Status, now, dispatchID, currentStatus, riderID)
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update dispatch"})
		return
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		c.JSON(http.StatusConflict, gin.H{"error": models.ErrInvalidTransition.Error()})
		return
	}

	logrus.WithFields(logrus.Fields{
		"dispatch_number": dispatchNumber,
		"from":            currentStatus,
		"to":              input.Status,
		"rider_id":        riderID,
	}).Info("Dispatch transitioned")

	id, _ := strconv.ParseInt(dispatchID, 10, 64)
	h.publishDispatchEvent(id, dispatchNumber, input.Status)

	c.JSON(http.StatusOK, gin.H{"dispatchNumber": dispatchNumber, "status": input.Status})
}

// GetMyDispatches is the handler for GET /v1/dispatches. Students see their
// own requests; riders see their claimed jobs plus unclaimed pending ones.
func (h *Handlers) GetMyDispatches(c *gin.Context) {
	userIDRaw, _ := c.Get("userID")
	userID := userIDRaw.(int64)
	roleRaw, _ := c.Get("userRole")
	role := roleRaw.(string)

	const baseSelect = `
		SELECT id, dispatch_number, student_id, rider_id, pickup_location,
		       dropoff_location, package_description, fee, status, created_at
		FROM dispatches `

	var (
		rows *sql.Rows
		err  error
	)
	if role == models.RoleRider {
		rows, err = h.DB.Query(baseSelect+`
			WHERE rider_id = ? OR (status = ? AND rider_id IS NULL)
			ORDER BY created_at DESC LIMIT 50`, userID, models.DispatchPending)
	} else {
		rows, err = h.DB.Query(baseSelect+`
			WHERE student_id = ? ORDER BY created_at DESC LIMIT 50`, userID)
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch dispatches"})
		return
	}
	defer rows.Close()

	dispatches := []models.Dispatch{}
	for rows.Next() {
		var d models.Dispatch
		if err := rows.Scan(&d.ID, &d.DispatchNumber, &d.StudentID, &d.RiderID, &d.PickupLocation,
			&d.DropoffLocation, &d.PackageDescription, &d.Fee, &d.Status, &d.CreatedAt); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to scan dispatch"})
			return
		}
		dispatches = append(dispatches, d)
	}
	if err := rows.Err(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read dispatches"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"dispatches": dispatches})
}
