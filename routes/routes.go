package routes

import (
	"discount-service/controllers"
	"discount-service/middleware"

	"github.com/gin-gonic/gin"
)

// RegisterDiscountRoutes sets up all discount-related routes.
func RegisterDiscountRoutes(r *gin.Engine, dc *controllers.DiscountController) {
	discounts := r.Group("/discounts")
	discounts.Use(middleware.AuthMiddleware())

	// Authenticated routes
	discounts.GET("/validate/:code", dc.ValidateCode)
	discounts.PATCH("/:id/use", dc.RecordUsage)
	discounts.GET("/:id", dc.GetDiscount) // admin may read cross-tenant

	// Owner-only routes
	ownerRoutes := discounts.Group("")
	ownerRoutes.Use(middleware.OwnerOnly())
	ownerRoutes.POST("", dc.CreateDiscount)
	ownerRoutes.GET("", dc.ListDiscounts)
	ownerRoutes.PUT("/:id", dc.UpdateDiscount)
	ownerRoutes.DELETE("/:id", dc.DeleteDiscount)
	ownerRoutes.PATCH("/bulk/status", dc.BulkStatus)
	ownerRoutes.GET("/stats/summary", dc.Stats)
	ownerRoutes.GET("/:id/presign-upload", dc.PresignImageUpload)
}
