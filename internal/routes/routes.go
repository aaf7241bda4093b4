package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/uplinepay/backend/internal/handlers"
	"github.com/uplinepay/backend/internal/middleware"
)

// RegisterPartnerRoutes registers partner network routes
func RegisterPartnerRoutes(router *gin.Engine, partnerHandler *handlers.PartnerHandler, rateLimiter *middleware.RateLimiter) {
	partnerGroup := router.Group("/api/partners")
	partnerGroup.Use(rateLimiter.IPRateLimiterMiddleware())
	{
		partnerGroup.GET("/:id", partnerHandler.GetPartner)
		partnerGroup.GET("/:id/upline", partnerHandler.GetUpline)
		partnerGroup.GET("/:id/downline", partnerHandler.GetDownline)
	}

	// Structural mutations get the stricter write budget
	writeGroup := router.Group("/api/partners")
	writeGroup.Use(rateLimiter.WriteRateLimiterMiddleware())
	{
		writeGroup.POST("", partnerHandler.CreatePartner)
		writeGroup.PUT("/:id/metrics", partnerHandler.UpdateMetrics)
		writeGroup.POST("/:id/move", partnerHandler.MovePartner)
		writeGroup.POST("/:id/deactivate", partnerHandler.DeactivatePartner)
	}

	router.GET("/api/hierarchy/validate", rateLimiter.IPRateLimiterMiddleware(), partnerHandler.ValidateHierarchy)
}

// RegisterTransactionRoutes registers transaction and commission routes
func RegisterTransactionRoutes(router *gin.Engine, transactionHandler *handlers.TransactionHandler, rateLimiter *middleware.RateLimiter) {
	txGroup := router.Group("/api/transactions")
	txGroup.Use(rateLimiter.IPRateLimiterMiddleware())
	{
		txGroup.POST("", rateLimiter.WriteRateLimiterMiddleware(), transactionHandler.CreateTransaction)
		txGroup.GET("/:id/distribution", transactionHandler.GetDistribution)
	}

	router.GET("/api/jobs/:id", rateLimiter.IPRateLimiterMiddleware(), transactionHandler.GetJob)
}

// RegisterFraudRoutes registers fraud analysis and alert routes
func RegisterFraudRoutes(router *gin.Engine, fraudHandler *handlers.FraudHandler, rateLimiter *middleware.RateLimiter) {
	fraudGroup := router.Group("/api/fraud")
	fraudGroup.Use(rateLimiter.IPRateLimiterMiddleware())
	{
		fraudGroup.POST("/partners/:id/analyze", fraudHandler.AnalyzePartner)
		fraudGroup.POST("/partners/:id/scan", fraudHandler.ScheduleScan)
		fraudGroup.GET("/partners/:id/alerts", fraudHandler.ListAlerts)
		fraudGroup.PUT("/alerts/:id/status", fraudHandler.UpdateAlertStatus)
	}
}
