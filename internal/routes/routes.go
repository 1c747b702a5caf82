package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nexgo-app/nexgo-engine/internal/handlers"
	"github.com/nexgo-app/nexgo-engine/internal/middleware"
	"github.com/nexgo-app/nexgo-engine/internal/models"
)

// CORSMiddleware tells the browser it is safe for the NexGo frontend to call
// this API with credentials.
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "http://localhost:5173")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

func SetupRouter(h *handlers.Handlers) *gin.Engine {
	router := gin.Default()

	router.Use(CORSMiddleware())

	// Webhooks authenticate with an HMAC signature, not a bearer token, so
	// they live outside the /v1 auth group.
	router.POST("/webhooks/payment", h.PaymentWebhook)

	v1 := router.Group("/v1")
	{
		v1.GET("/ping", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"message": "pong!"})
		})

		// --- Protected Routes (Login Required) ---
		auth := v1.Group("/")
		auth.Use(middleware.AuthMiddleware(h.DB, h.Cfg.JWTSecret))
		{
			// --- Wallet Routes ---
			auth.POST("/wallet", h.CreateWallet)
			auth.GET("/wallet", h.GetMyWallet)
			auth.POST("/wallet/topup", h.TopUpWallet)

			// --- Payment Routes ---
			auth.POST("/payments/initialize", h.InitiatePayment)

			// --- Order Routes ---
			// Placement is student-only; the other order routes are shared
			// across roles and scoped inside the handlers, because what a
			// vendor, rider and student may do to the same order differs
			// per transition rather than per route.
			auth.GET("/orders", h.GetMyOrders)
			auth.PATCH("/orders/:id/status", h.TransitionOrder)
			auth.POST("/orders/:id/cancel", h.CancelOrder)

			student := auth.Group("/")
			student.Use(middleware.RequireRole(models.RoleStudent))
			{
				student.POST("/orders", h.PlaceOrder)
				student.POST("/orders/:id/dispute", h.FileDispute)
				student.POST("/dispatches", h.CreateDispatch)
				student.GET("/trips/routes", h.GetShuttleRoutes)
				student.POST("/trips/book", h.BookTrip)
			}

			rider := auth.Group("/")
			rider.Use(middleware.RequireRole(models.RoleRider))
			{
				rider.POST("/orders/:id/verify-otp", h.VerifyDeliveryOTP)
				rider.PATCH("/dispatches/:id/status", h.TransitionDispatch)
			}

			auth.GET("/dispatches", h.GetMyDispatches)
		}
	}

	return router
}
