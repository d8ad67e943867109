package controllers

import (
	"net/http"
	"strconv"
	"time"

	"discount-service/middleware"
	"discount-service/models"
	"discount-service/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// DiscountController handles HTTP requests for discount operations.
type DiscountController struct {
	discountService services.DiscountService
}

// NewDiscountController creates a new DiscountController.
func NewDiscountController(discountService services.DiscountService) *DiscountController {
	return &DiscountController{discountService: discountService}
}

func respondError(ctx *gin.Context, svcErr *services.ServiceError) {
	body := gin.H{
		"success": false,
		"message": svcErr.Message,
		"code":    svcErr.Code,
	}
	if len(svcErr.Details) > 0 {
		body["details"] = svcErr.Details
	}
	ctx.JSON(svcErr.StatusCode, body)
}

func respondOK(ctx *gin.Context, status int, message string, data interface{}) {
	ctx.JSON(status, gin.H{
		"success": true,
		"message": message,
		"data":    data,
	})
}

func parseID(ctx *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "Invalid discount id",
			"code":    services.CodeValidationFailure,
		})
		return uuid.Nil, false
	}
	return id, true
}

// CreateDiscount handles POST /discounts (owner only).
func (dc *DiscountController) CreateDiscount(ctx *gin.Context) {
	var req models.CreateDiscountRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "Invalid request",
			"code":    services.CodeValidationFailure,
			"details": gin.H{"error": err.Error()},
		})
		return
	}

	ownerID, err := middleware.GetUserID(ctx)
	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Unauthorized"})
		return
	}

	view, svcErr := dc.discountService.CreateDiscount(ctx.Request.Context(), ownerID, &req)
	if svcErr != nil {
		respondError(ctx, svcErr)
		return
	}
	respondOK(ctx, http.StatusCreated, "Discount created", view)
}

// GetDiscount handles GET /discounts/:id (owner or admin).
func (dc *DiscountController) GetDiscount(ctx *gin.Context) {
	id, ok := parseID(ctx)
	if !ok {
		return
	}

	requesterID, err := middleware.GetUserID(ctx)
	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Unauthorized"})
		return
	}
	role := ctx.GetString("role")

	view, svcErr := dc.discountService.GetDiscount(ctx.Request.Context(), requesterID, role, id)
	if svcErr != nil {
		respondError(ctx, svcErr)
		return
	}
	respondOK(ctx, http.StatusOK, "Discount found", view)
}

// UpdateDiscount handles PUT /discounts/:id (owner only).
func (dc *DiscountController) UpdateDiscount(ctx *gin.Context) {
	id, ok := parseID(ctx)
	if !ok {
		return
	}

	var req models.UpdateDiscountRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "Invalid request",
			"code":    services.CodeValidationFailure,
			"details": gin.H{"error": err.Error()},
		})
		return
	}

	ownerID, err := middleware.GetUserID(ctx)
	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Unauthorized"})
		return
	}

	view, svcErr := dc.discountService.UpdateDiscount(ctx.Request.Context(), ownerID, id, &req)
	if svcErr != nil {
		respondError(ctx, svcErr)
		return
	}
	respondOK(ctx, http.StatusOK, "Discount updated", view)
}

// DeleteDiscount handles DELETE /discounts/:id (owner only).
func (dc *DiscountController) DeleteDiscount(ctx *gin.Context) {
	id, ok := parseID(ctx)
	if !ok {
		return
	}

	ownerID, err := middleware.GetUserID(ctx)
	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Unauthorized"})
		return
	}

	if svcErr := dc.discountService.DeleteDiscount(ctx.Request.Context(), ownerID, id); svcErr != nil {
		respondError(ctx, svcErr)
		return
	}
	respondOK(ctx, http.StatusOK, "Discount deleted", nil)
}

// ListDiscounts handles GET /discounts (owner only).
func (dc *DiscountController) ListDiscounts(ctx *gin.Context) {
	ownerID, err := middleware.GetUserID(ctx)
	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Unauthorized"})
		return
	}

	page, limit := parsePaginationParams(ctx)
	q := &models.ListDiscountsQuery{
		Search: ctx.Query("search"),
		Status: ctx.Query("status"),
		Type:   ctx.Query("type"),
		SortBy: ctx.Query("sort_by"),
		Order:  ctx.Query("order"),
		Page:   page,
		Limit:  limit,
	}

	views, total, svcErr := dc.discountService.ListDiscounts(ctx.Request.Context(), ownerID, q)
	if svcErr != nil {
		respondError(ctx, svcErr)
		return
	}

	totalPages := (total + int64(limit) - 1) / int64(limit)
	respondOK(ctx, http.StatusOK, "Discounts listed", gin.H{
		"discounts": views,
		"meta": gin.H{
			"page":        page,
			"limit":       limit,
			"total":       total,
			"total_pages": totalPages,
		},
	})
}

// ValidateCode handles GET /discounts/validate/:code (authenticated,
// owner-scoped, read-only).
func (dc *DiscountController) ValidateCode(ctx *gin.Context) {
	code := ctx.Param("code")

	ownerID, err := middleware.GetUserID(ctx)
	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Unauthorized"})
		return
	}

	orderAmount, err := strconv.ParseFloat(ctx.DefaultQuery("orderAmount", "0"), 64)
	if err != nil || orderAmount < 0 {
		ctx.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "Invalid orderAmount",
			"code":    services.CodeValidationFailure,
		})
		return
	}

	resp, svcErr := dc.discountService.ValidateCode(ctx.Request.Context(), ownerID, code, orderAmount)
	if svcErr != nil {
		respondError(ctx, svcErr)
		return
	}
	respondOK(ctx, http.StatusOK, "Discount code is valid", resp)
}

// RecordUsage handles PATCH /discounts/:id/use (authenticated).
func (dc *DiscountController) RecordUsage(ctx *gin.Context) {
	id, ok := parseID(ctx)
	if !ok {
		return
	}

	var req models.RecordUsageRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "Invalid request",
			"code":    services.CodeValidationFailure,
			"details": gin.H{"error": err.Error()},
		})
		return
	}

	resp, svcErr := dc.discountService.RecordUsage(ctx.Request.Context(), id, &req)
	if svcErr != nil {
		respondError(ctx, svcErr)
		return
	}
	respondOK(ctx, http.StatusOK, "Discount usage recorded", resp)
}

// BulkStatus handles PATCH /discounts/bulk/status (owner only).
func (dc *DiscountController) BulkStatus(ctx *gin.Context) {
	var req models.BulkStatusRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "Invalid request",
			"code":    services.CodeValidationFailure,
			"details": gin.H{"error": err.Error()},
		})
		return
	}

	ownerID, err := middleware.GetUserID(ctx)
	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Unauthorized"})
		return
	}

	updated, svcErr := dc.discountService.BulkUpdateStatus(ctx.Request.Context(), ownerID, &req)
	if svcErr != nil {
		respondError(ctx, svcErr)
		return
	}
	respondOK(ctx, http.StatusOK, "Status updated", gin.H{"updated": updated, "status": req.Status})
}

// Stats handles GET /discounts/stats/summary (owner only).
func (dc *DiscountController) Stats(ctx *gin.Context) {
	ownerID, err := middleware.GetUserID(ctx)
	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Unauthorized"})
		return
	}

	stats, svcErr := dc.discountService.Stats(ctx.Request.Context(), ownerID)
	if svcErr != nil {
		respondError(ctx, svcErr)
		return
	}
	respondOK(ctx, http.StatusOK, "Stats computed", stats)
}

// PresignImageUpload handles GET /discounts/:id/presign-upload (owner only).
func (dc *DiscountController) PresignImageUpload(ctx *gin.Context) {
	id, ok := parseID(ctx)
	if !ok {
		return
	}

	filename := ctx.Query("filename")
	if filename == "" {
		ctx.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "filename query parameter is required",
			"code":    services.CodeValidationFailure,
		})
		return
	}
	contentType := ctx.DefaultQuery("contentType", "image/jpeg")

	expiresSec, err := strconv.Atoi(ctx.DefaultQuery("expires", "900"))
	if err != nil || expiresSec <= 0 || expiresSec > 3600 {
		expiresSec = 900
	}

	ownerID, err := middleware.GetUserID(ctx)
	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Unauthorized"})
		return
	}

	uploadURL, key, publicURL, svcErr := dc.discountService.PresignImageUpload(
		ctx.Request.Context(), ownerID, id, filename, contentType, time.Duration(expiresSec)*time.Second)
	if svcErr != nil {
		respondError(ctx, svcErr)
		return
	}
	respondOK(ctx, http.StatusOK, "Upload URL generated", gin.H{
		"upload_url": uploadURL,
		"method":     "PUT",
		"key":        key,
		"public_url": publicURL,
		"expires_in": expiresSec,
	})
}

// parsePaginationParams extracts and validates pagination parameters.
func parsePaginationParams(ctx *gin.Context) (int, int) {
	const maxLimit = 100

	page := 1
	limit := 10

	if p, err := strconv.Atoi(ctx.DefaultQuery("page", "1")); err == nil && p > 0 {
		page = p
	}
	if l, err := strconv.Atoi(ctx.DefaultQuery("limit", "10")); err == nil && l > 0 {
		limit = l
		if limit > maxLimit {
			limit = maxLimit
		}
	}
	return page, limit
}
