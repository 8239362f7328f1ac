package routes

import (
	"net/http"
	"strings"
	"time"

	"cardpresent/handlers"
	"cardpresent/middleware"
	"cardpresent/utils"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RegisterPaymentRoutes registers configuration, eligibility and payment endpoints.
func RegisterPaymentRoutes(r *gin.Engine, hb *handlers.HandlerBundle) {
	api := r.Group("/api/payments")
	{
		api.Use(middleware.JWTAuthMerchantMiddleware(hb.AuthCache))
		api.GET("/configuration", hb.GetConfigurationHandler)
		api.POST("/eligibility", hb.CheckEligibilityHandler)
		api.POST("", hb.StartPaymentHandler)
		api.POST("/cancel", hb.CancelPaymentHandler)
		api.GET("/state", hb.PaymentStateHandler)
		api.GET("/intents/:id/receipt", hb.GetReceiptHandler)
		api.GET("/attempts", hb.ListAttemptsHandler)
		api.GET("/attempts/:id", hb.GetAttemptHandler)
	}
}

// RegisterReaderRoutes registers card reader management endpoints.
func RegisterReaderRoutes(r *gin.Engine, hb *handlers.HandlerBundle) {
	api := r.Group("/api/readers")
	{
		api.Use(middleware.JWTAuthMerchantMiddleware(hb.AuthCache))
		api.POST("/connect", hb.ConnectReaderHandler)
		api.POST("/disconnect", hb.DisconnectReaderHandler)
		api.GET("/status", hb.ReaderStatusHandler)
	}
}

// RegisterHealthRoute registers a health-check endpoint.
func RegisterHealthRoute(r *gin.Engine) {
	r.GET("/health", func(c *gin.Context) {
		status := utils.GetHealthStatus()
		if status.CheckedAt.IsZero() || status.Healthy() {
			c.JSON(http.StatusOK, gin.H{"status": "ok", "dependencies": status})
			return
		}
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "dependencies": status})
	})
}

// RegisterMetricsRoute exposes Prometheus metrics.
func RegisterMetricsRoute(r *gin.Engine) {
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

func corsOrigins(raw string) []string {
	var origins []string
	for _, o := range strings.Split(raw, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}

// RegisterRoutes centralizes registration of all endpoints and middleware.
func RegisterRoutes(r *gin.Engine, hb *handlers.HandlerBundle, allowedOrigins string) {
	origins := corsOrigins(allowedOrigins)
	r.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Authorization", "Content-Type", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: len(origins) != 1 || origins[0] != "*",
		MaxAge:           12 * time.Hour,
	}))
	if hb.Metrics != nil {
		r.Use(hb.Metrics)
	}

	RegisterHealthRoute(r)
	RegisterMetricsRoute(r)
	RegisterPaymentRoutes(r, hb)
	RegisterReaderRoutes(r, hb)
}
