package handlers

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/nexgo-app/nexgo-engine/internal/models"
)

// BookTripInput defines the JSON for POST /v1/trips/book.
type BookTripInput struct {
	RouteID int64 `json:"routeId" binding:"required"`
}

// GetShuttleRoutes is the handler for GET /v1/trips/routes.
func (h *Handlers) GetShuttleRoutes(c *gin.Context) {
	rows, err := h.DB.Query(`
		SELECT id, from_location, to_location, price
		FROM shuttle_routes ORDER BY from_location, to_location`)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch routes"})
		return
	}
	defer rows.Close()

	routes := []models.ShuttleRoute{}
	for rows.Next() {
		var r models.ShuttleRoute
		if err := rows.Scan(&r.ID, &r.FromLocation, &r.ToLocation, &r.Price); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to scan route"})
			return
		}
		routes = append(routes, r)
	}
	if err := rows.Err(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read routes"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"routes": routes})
}

// BookTrip is the handler for POST /v1/trips/book. The fare is debited from the
// student's wallet inside one transaction with the booking insert, so a
// booking row never exists without its matching ledger entry.
func (h *Handlers) BookTrip(c *gin.Context) {
	userIDRaw, _ := c.Get("userID")
	studentID := userIDRaw.(int64)

	var input BookTripInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Route ID is required"})
		return
	}

	var route models.ShuttleRoute
	err := h.DB.QueryRow(`
		SELECT id, from_location, to_location, price
		FROM shuttle_routes WHERE id = ?`, input.RouteID).
		Scan(&route.ID, &route.FromLocation, &route.ToLocation, &route.Price)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Route not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch route"})
		return
	}

	tx, err := h.DB.BeginTx(c, nil)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to start transaction"})
		return
	}
	defer tx.Rollback()

	label := fmt.Sprintf("NexTrip %s → %s", route.FromLocation, route.ToLocation)
	if err := h.DebitWallet(tx, studentID, route.Price, label, "🚌"); err != nil {
		if errors.Is(err, models.ErrInsufficientFunds) {
			c.JSON(http.StatusPaymentRequired, gin.H{"error": models.ErrInsufficientFunds.Error()})
			return
		}
		if errors.Is(err, models.ErrWalletNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": models.ErrWalletNotFound.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to charge wallet"})
		return
	}

	result, err := tx.Exec(`
		INSERT INTO shuttle_bookings (student_id, route_id, fare, created_at)
		VALUES (?, ?, ?, ?)`, studentID, route.ID, route.Price, time.Now())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record booking"})
		return
	}

	if err := tx.Commit(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to commit booking"})
		return
	}

	bookingID, _ := result.LastInsertId()

	logrus.WithFields(logrus.Fields{
		"booking_id": bookingID,
		"student_id": studentID,
		"route_id":   route.ID,
		"fare":       route.Price,
	}).Info("Shuttle trip booked")

	h.invalidateWalletCache(studentID)
	h.publishWalletEvent(studentID, -route.Price, label)

	c.JSON(http.StatusCreated, gin.H{
		"bookingId": bookingID,
		"route":     route,
		"fare":      route.Price,
	})
}
