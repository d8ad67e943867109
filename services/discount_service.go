package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"discount-service/models"
	"discount-service/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const roleAdmin = "admin"

// SNSPublisher publishes raw messages to an SNS topic.
type SNSPublisher interface {
	Publish(ctx context.Context, topicArn string, message []byte) error
}

// AssetStore abstracts the object store holding discount images.
type AssetStore interface {
	PresignUpload(ctx context.Context, key, contentType string, expires time.Duration) (string, error)
	Delete(ctx context.Context, key string) error
	PublicURL(key string) string
}

// CatalogChecker verifies category/product ids against the catalog service.
type CatalogChecker interface {
	CategoryExists(ctx context.Context, id string) (bool, error)
	ProductExists(ctx context.Context, id string) (bool, error)
}

// DiscountCache is a read-through cache for code lookups on the validate path.
type DiscountCache interface {
	Get(ctx context.Context, ownerID, code string) (*models.Discount, bool)
	SetAsync(ownerID string, discount *models.Discount)
	Invalidate(ctx context.Context, ownerID string)
}

// DiscountService defines the interface for discount business logic.
type DiscountService interface {
	CreateDiscount(ctx context.Context, ownerID string, req *models.CreateDiscountRequest) (*models.DiscountView, *ServiceError)
	GetDiscount(ctx context.Context, requesterID, role string, id uuid.UUID) (*models.DiscountView, *ServiceError)
	UpdateDiscount(ctx context.Context, ownerID string, id uuid.UUID, req *models.UpdateDiscountRequest) (*models.DiscountView, *ServiceError)
	DeleteDiscount(ctx context.Context, ownerID string, id uuid.UUID) *ServiceError
	ListDiscounts(ctx context.Context, ownerID string, q *models.ListDiscountsQuery) ([]models.DiscountView, int64, *ServiceError)
	ValidateCode(ctx context.Context, ownerID, code string, orderAmount float64) (*models.ValidateDiscountResponse, *ServiceError)
	RecordUsage(ctx context.Context, id uuid.UUID, req *models.RecordUsageRequest) (*models.RecordUsageResponse, *ServiceError)
	BulkUpdateStatus(ctx context.Context, ownerID string, req *models.BulkStatusRequest) (int64, *ServiceError)
	Stats(ctx context.Context, ownerID string) (*models.DiscountStats, *ServiceError)
	PresignImageUpload(ctx context.Context, ownerID string, id uuid.UUID, filename, contentType string, expires time.Duration) (string, string, string, *ServiceError)
}

type discountServiceImpl struct {
	repo        repository.DiscountRepository
	generator   *CodeGenerator
	assets      AssetStore
	catalog     CatalogChecker
	cache       DiscountCache
	snsClient   SNSPublisher
	snsTopicArn string
	logger      *zap.Logger
	now         func() time.Time
}

// NewDiscountService creates a new DiscountService. Assets, catalog, cache
// and SNS are optional; nil disables the corresponding integration.
func NewDiscountService(
	repo repository.DiscountRepository,
	assets AssetStore,
	catalog CatalogChecker,
	cache DiscountCache,
	snsClient SNSPublisher,
	snsTopicArn string,
	logger *zap.Logger,
) DiscountService {
	return &discountServiceImpl{
		repo:        repo,
		generator:   NewCodeGenerator(repo),
		assets:      assets,
		catalog:     catalog,
		cache:       cache,
		snsClient:   snsClient,
		snsTopicArn: snsTopicArn,
		logger:      logger,
		now:         time.Now,
	}
}

// CreateDiscount validates input, resolves the code and persists the record.
func (s *discountServiceImpl) CreateDiscount(ctx context.Context, ownerID string, req *models.CreateDiscountRequest) (*models.DiscountView, *ServiceError) {
	now := s.now()

	if svcErr := checkDateRange(req.StartDate, req.EndDate, now); svcErr != nil {
		return nil, svcErr
	}

	var code string
	if req.Code != "" {
		code = strings.ToUpper(req.Code)
		exists, err := s.repo.CodeExists(ctx, ownerID, code)
		if err != nil {
			s.logger.Error("Code uniqueness check failed", zap.Error(err))
			return nil, s.createFailure(req.ImageKey, "Failed to create discount")
		}
		if exists {
			return nil, &ServiceError{StatusCode: 409, Code: CodeDuplicateCode, Message: "Discount code already exists"}
		}
	} else {
		generated, svcErr := s.generator.Generate(ctx, ownerID)
		if svcErr != nil {
			return nil, svcErr
		}
		code = generated
	}

	appliesTo := req.AppliesTo
	if appliesTo == "" {
		appliesTo = models.AppliesToAllProducts
	}
	customerType := req.CustomerType
	if customerType == "" {
		customerType = models.CustomerTypeAll
	}

	if svcErr := s.checkCatalogScope(ctx, appliesTo, req.Categories, req.Products); svcErr != nil {
		return nil, svcErr
	}

	discount := &models.Discount{
		Code:             code,
		Name:             req.Name,
		Description:      req.Description,
		Type:             req.Type,
		Value:            req.Value,
		MinOrder:         req.MinOrder,
		MaxDiscount:      req.MaxDiscount,
		StartDate:        req.StartDate,
		EndDate:          req.EndDate,
		UsageLimit:       req.UsageLimit,
		CustomerType:     customerType,
		AppliesTo:        appliesTo,
		Categories:       req.Categories,
		Products:         req.Products,
		OneTimeUse:       req.OneTimeUse,
		CombineWithOther: req.CombineWithOther,
		ExcludeSaleItems: req.ExcludeSaleItems,
		ImageURL:         req.ImageURL,
		ImageKey:         req.ImageKey,
		CreatedBy:        ownerID,
	}
	if discount.ImageKey != "" && discount.ImageURL == "" && s.assets != nil {
		discount.ImageURL = s.assets.PublicURL(discount.ImageKey)
	}

	if err := s.repo.Create(ctx, discount); err != nil {
		if strings.Contains(err.Error(), "duplicate") || strings.Contains(err.Error(), "unique") {
			return nil, &ServiceError{StatusCode: 409, Code: CodeDuplicateCode, Message: "Discount code already exists"}
		}
		s.logger.Error("Failed to create discount", zap.Error(err))
		return nil, s.createFailure(req.ImageKey, "Failed to create discount")
	}

	s.invalidateCache(ctx, ownerID)
	s.logger.Info("Discount created",
		zap.String("code", discount.Code),
		zap.String("owner_id", ownerID),
		zap.String("type", string(discount.Type)),
	)
	return discount.View(now), nil
}

// createFailure cleans up an orphaned uploaded asset and returns an internal
// error. Cleanup failure is logged, never escalated.
func (s *discountServiceImpl) createFailure(imageKey, message string) *ServiceError {
	if imageKey != "" && s.assets != nil {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.assets.Delete(cleanupCtx, imageKey); err != nil {
			s.logger.Warn("Orphaned image cleanup failed", zap.String("key", imageKey), zap.Error(err))
		}
	}
	return internalError(message)
}

// GetDiscount returns a discount to its owner, or to an admin. A stale stored
// status is refreshed opportunistically on this read path.
func (s *discountServiceImpl) GetDiscount(ctx context.Context, requesterID, role string, id uuid.UUID) (*models.DiscountView, *ServiceError) {
	discount, svcErr := s.load(ctx, id)
	if svcErr != nil {
		return nil, svcErr
	}
	if discount.CreatedBy != requesterID && role != roleAdmin {
		return nil, notOwner("You do not own this discount")
	}

	s.refreshIfStale(ctx, discount)
	return discount.View(s.now()), nil
}

// refreshIfStale rewrites the stored derived columns when the date window has
// moved on since the last save. Pause is sticky and never refreshed away.
func (s *discountServiceImpl) refreshIfStale(ctx context.Context, discount *models.Discount) {
	now := s.now()
	derivedStatus := models.EvaluateStatus(now, discount.StartDate, discount.EndDate, discount.Status)
	derivedRemaining := models.ComputeRemainingUses(discount.UsageLimit, discount.UsedCount)
	if derivedStatus == discount.Status && equalRemaining(derivedRemaining, discount.RemainingUses) {
		return
	}
	if err := s.repo.RefreshDerived(ctx, discount.ID, derivedStatus, derivedRemaining); err != nil {
		s.logger.Warn("Derived status refresh failed", zap.String("id", discount.ID.String()), zap.Error(err))
		return
	}
	discount.Status = derivedStatus
	discount.RemainingUses = derivedRemaining
}

func equalRemaining(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// UpdateDiscount applies a partial edit. Owner only; admin has no bypass here.
func (s *discountServiceImpl) UpdateDiscount(ctx context.Context, ownerID string, id uuid.UUID, req *models.UpdateDiscountRequest) (*models.DiscountView, *ServiceError) {
	discount, svcErr := s.load(ctx, id)
	if svcErr != nil {
		return nil, svcErr
	}
	if discount.CreatedBy != ownerID {
		return nil, notOwner("You do not own this discount")
	}

	if req.Code != nil {
		newCode := strings.ToUpper(*req.Code)
		if newCode != discount.Code {
			exists, err := s.repo.CodeExists(ctx, ownerID, newCode)
			if err != nil {
				s.logger.Error("Code uniqueness check failed", zap.Error(err))
				return nil, internalError("Failed to update discount")
			}
			if exists {
				return nil, &ServiceError{StatusCode: 409, Code: CodeDuplicateCode, Message: "Discount code already exists"}
			}
			discount.Code = newCode
		}
	}

	if req.Name != nil {
		discount.Name = *req.Name
	}
	if req.Description != nil {
		discount.Description = *req.Description
	}
	if req.Type != nil {
		discount.Type = *req.Type
	}
	if req.Value != nil {
		discount.Value = *req.Value
	}
	if req.MinOrder != nil {
		discount.MinOrder = *req.MinOrder
	}
	if req.MaxDiscount != nil {
		discount.MaxDiscount = *req.MaxDiscount
	}
	if req.StartDate != nil {
		discount.StartDate = *req.StartDate
	}
	if req.EndDate != nil {
		discount.EndDate = *req.EndDate
	}
	if req.UsageLimit != nil {
		discount.UsageLimit = req.UsageLimit
	}
	if req.Status != nil {
		// Explicit status set is the pause/un-pause switch; the save below
		// re-derives anything that is not paused.
		discount.Status = *req.Status
	}
	if req.CustomerType != nil {
		discount.CustomerType = *req.CustomerType
	}
	if req.AppliesTo != nil {
		discount.AppliesTo = *req.AppliesTo
	}
	if req.Categories != nil {
		discount.Categories = req.Categories
	}
	if req.Products != nil {
		discount.Products = req.Products
	}
	if req.OneTimeUse != nil {
		discount.OneTimeUse = *req.OneTimeUse
	}
	if req.CombineWithOther != nil {
		discount.CombineWithOther = *req.CombineWithOther
	}
	if req.ExcludeSaleItems != nil {
		discount.ExcludeSaleItems = *req.ExcludeSaleItems
	}
	if req.ImageURL != nil {
		discount.ImageURL = *req.ImageURL
	}

	now := s.now()
	if svcErr := checkDateRange(discount.StartDate, discount.EndDate, now); svcErr != nil {
		return nil, svcErr
	}
	if svcErr := s.checkCatalogScope(ctx, discount.AppliesTo, discount.Categories, discount.Products); svcErr != nil {
		return nil, svcErr
	}

	if err := s.repo.Save(ctx, discount); err != nil {
		s.logger.Error("Failed to update discount", zap.String("id", id.String()), zap.Error(err))
		return nil, internalError("Failed to update discount")
	}

	s.invalidateCache(ctx, ownerID)
	return discount.View(now), nil
}

// DeleteDiscount hard-deletes an owned discount and cleans up its image.
func (s *discountServiceImpl) DeleteDiscount(ctx context.Context, ownerID string, id uuid.UUID) *ServiceError {
	discount, svcErr := s.load(ctx, id)
	if svcErr != nil {
		return svcErr
	}
	if discount.CreatedBy != ownerID {
		return notOwner("You do not own this discount")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		s.logger.Error("Failed to delete discount", zap.String("id", id.String()), zap.Error(err))
		return internalError("Failed to delete discount")
	}

	if discount.ImageKey != "" && s.assets != nil {
		if err := s.assets.Delete(ctx, discount.ImageKey); err != nil {
			s.logger.Warn("Image cleanup failed", zap.String("key", discount.ImageKey), zap.Error(err))
		}
	}

	s.invalidateCache(ctx, ownerID)
	s.logger.Info("Discount deleted", zap.String("id", id.String()), zap.String("owner_id", ownerID))
	return nil
}

// ListDiscounts returns the owner's discounts with filters and pagination.
func (s *discountServiceImpl) ListDiscounts(ctx context.Context, ownerID string, q *models.ListDiscountsQuery) ([]models.DiscountView, int64, *ServiceError) {
	discounts, total, err := s.repo.List(ctx, ownerID, q)
	if err != nil {
		s.logger.Error("Failed to list discounts", zap.String("owner_id", ownerID), zap.Error(err))
		return nil, 0, internalError("Failed to list discounts")
	}

	now := s.now()
	views := make([]models.DiscountView, 0, len(discounts))
	for i := range discounts {
		views = append(views, *discounts[i].View(now))
	}
	return views, total, nil
}

// ValidateCode decides redeemability and computes the discount amount.
// Strictly read-only: committing a redemption is RecordUsage's job, so a code
// can be re-validated at several checkout steps without burning uses.
func (s *discountServiceImpl) ValidateCode(ctx context.Context, ownerID, code string, orderAmount float64) (*models.ValidateDiscountResponse, *ServiceError) {
	discount, svcErr := s.lookupCode(ctx, ownerID, code)
	if svcErr != nil {
		return nil, svcErr
	}

	now := s.now()
	if svcErr := checkRedeemable(discount, now); svcErr != nil {
		return nil, svcErr
	}
	if discount.MinOrder > 0 && orderAmount < discount.MinOrder {
		return nil, rejection(CodeBelowMinimum,
			fmt.Sprintf("Minimum order of %.2f required", discount.MinOrder),
			map[string]interface{}{"min_order": discount.MinOrder})
	}

	discountAmount := computeDiscountAmount(discount, orderAmount)
	finalAmount := orderAmount - discountAmount
	if finalAmount < 0 {
		finalAmount = 0
	}

	return &models.ValidateDiscountResponse{
		Discount:       discount.View(now),
		DiscountAmount: discountAmount,
		FinalAmount:    finalAmount,
	}, nil
}

func (s *discountServiceImpl) lookupCode(ctx context.Context, ownerID, code string) (*models.Discount, *ServiceError) {
	normalized := strings.ToUpper(code)
	if s.cache != nil {
		if cached, ok := s.cache.Get(ctx, ownerID, normalized); ok {
			return cached, nil
		}
	}

	discount, err := s.repo.FindByOwnerAndCode(ctx, ownerID, normalized)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("Discount code not found")
		}
		s.logger.Error("Code lookup failed", zap.String("code", normalized), zap.Error(err))
		return nil, internalError("Failed to validate discount code")
	}

	if s.cache != nil {
		s.cache.SetAsync(ownerID, discount)
	}
	return discount, nil
}

// checkRedeemable runs the temporal and limit checks shared by validation and
// the usage ledger, in rejection order.
func checkRedeemable(discount *models.Discount, now time.Time) *ServiceError {
	if now.Before(discount.StartDate) {
		return rejection(CodeNotYetActive, "Discount is not active yet",
			map[string]interface{}{"start_date": discount.StartDate})
	}
	if now.After(discount.EndDate) {
		return rejection(CodeExpired, "Discount has expired",
			map[string]interface{}{"end_date": discount.EndDate})
	}
	if models.EvaluateStatus(now, discount.StartDate, discount.EndDate, discount.Status) != models.DiscountStatusActive {
		return rejection(CodeInactive, "Discount is not active", nil)
	}
	if discount.UsageLimit != nil && discount.UsedCount >= *discount.UsageLimit {
		return rejection(CodeLimitReached, "Discount usage limit reached", nil)
	}
	return nil
}

func computeDiscountAmount(discount *models.Discount, orderAmount float64) float64 {
	switch discount.Type {
	case models.DiscountTypePercentage:
		amount := orderAmount * discount.Value / 100
		if discount.MaxDiscount > 0 && amount > discount.MaxDiscount {
			amount = discount.MaxDiscount
		}
		return amount
	default: // fixed
		return discount.Value
	}
}

// RecordUsage commits one redemption. Validity is re-checked here against
// current stored state, and the increment itself is conditional on the limit,
// so concurrent redemptions near the boundary cannot overshoot.
func (s *discountServiceImpl) RecordUsage(ctx context.Context, id uuid.UUID, req *models.RecordUsageRequest) (*models.RecordUsageResponse, *ServiceError) {
	discount, svcErr := s.load(ctx, id)
	if svcErr != nil {
		return nil, svcErr
	}
	if svcErr := checkRedeemable(discount, s.now()); svcErr != nil {
		return nil, svcErr
	}

	applied, err := s.repo.IncrementUsage(ctx, id, req.OrderAmount)
	if err != nil {
		s.logger.Error("Usage increment failed", zap.String("id", id.String()), zap.Error(err))
		return nil, internalError("Failed to record discount usage")
	}
	if !applied {
		// Lost the race on the last remaining use.
		return nil, rejection(CodeLimitReached, "Discount usage limit reached", nil)
	}

	updated, svcErr := s.load(ctx, id)
	if svcErr != nil {
		return nil, svcErr
	}
	s.refreshIfStale(ctx, updated)

	s.publishRedeemedEvent(ctx, updated, req.OrderID, req.OrderAmount)
	s.invalidateCache(ctx, updated.CreatedBy)

	s.logger.Info("Discount usage recorded",
		zap.String("id", id.String()),
		zap.String("order_id", req.OrderID),
		zap.Int("used_count", updated.UsedCount),
	)
	return &models.RecordUsageResponse{
		UsedCount:        updated.UsedCount,
		RemainingUses:    updated.RemainingUses,
		RevenueGenerated: updated.RevenueGenerated,
	}, nil
}

// BulkUpdateStatus sets the status on a set of discounts. All-or-nothing on
// ownership: one foreign id rejects the whole batch.
func (s *discountServiceImpl) BulkUpdateStatus(ctx context.Context, ownerID string, req *models.BulkStatusRequest) (int64, *ServiceError) {
	ids := make([]uuid.UUID, 0, len(req.IDs))
	for _, raw := range req.IDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			return 0, rejection(CodeValidationFailure, "Invalid discount id: "+raw, nil)
		}
		ids = append(ids, id)
	}

	owned, err := s.repo.CountOwnedBy(ctx, ownerID, ids)
	if err != nil {
		s.logger.Error("Bulk ownership check failed", zap.Error(err))
		return 0, internalError("Failed to update discounts")
	}
	if owned != int64(len(ids)) {
		return 0, notOwner("One or more discounts do not belong to you")
	}

	updated, err := s.repo.BulkUpdateStatus(ctx, ids, req.Status)
	if err != nil {
		s.logger.Error("Bulk status update failed", zap.Error(err))
		return 0, internalError("Failed to update discounts")
	}

	s.invalidateCache(ctx, ownerID)
	s.logger.Info("Bulk status applied",
		zap.String("owner_id", ownerID),
		zap.String("status", string(req.Status)),
		zap.Int64("updated", updated),
	)
	return updated, nil
}

// Stats returns the owner's aggregate discount summary.
func (s *discountServiceImpl) Stats(ctx context.Context, ownerID string) (*models.DiscountStats, *ServiceError) {
	stats, err := s.repo.Stats(ctx, ownerID)
	if err != nil {
		s.logger.Error("Stats aggregation failed", zap.String("owner_id", ownerID), zap.Error(err))
		return nil, internalError("Failed to load discount stats")
	}
	return stats, nil
}

// PresignImageUpload returns a presigned PUT URL for a discount image.
func (s *discountServiceImpl) PresignImageUpload(ctx context.Context, ownerID string, id uuid.UUID, filename, contentType string, expires time.Duration) (string, string, string, *ServiceError) {
	if s.assets == nil {
		return "", "", "", internalError("Image uploads are not configured")
	}

	discount, svcErr := s.load(ctx, id)
	if svcErr != nil {
		return "", "", "", svcErr
	}
	if discount.CreatedBy != ownerID {
		return "", "", "", notOwner("You do not own this discount")
	}

	key := fmt.Sprintf("discounts/%s/%s-%s", id, uuid.NewString(), filename)
	uploadURL, err := s.assets.PresignUpload(ctx, key, contentType, expires)
	if err != nil {
		s.logger.Error("Presign failed", zap.String("key", key), zap.Error(err))
		return "", "", "", internalError("Failed to generate upload URL")
	}
	return uploadURL, key, s.assets.PublicURL(key), nil
}

func (s *discountServiceImpl) load(ctx context.Context, id uuid.UUID) (*models.Discount, *ServiceError) {
	discount, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("Discount not found")
		}
		s.logger.Error("Discount lookup failed", zap.String("id", id.String()), zap.Error(err))
		return nil, internalError("Failed to load discount")
	}
	return discount, nil
}

func (s *discountServiceImpl) invalidateCache(ctx context.Context, ownerID string) {
	if s.cache != nil {
		s.cache.Invalidate(ctx, ownerID)
	}
}

func (s *discountServiceImpl) checkCatalogScope(ctx context.Context, appliesTo models.AppliesTo, categories, products []string) *ServiceError {
	if s.catalog == nil {
		return nil
	}
	switch appliesTo {
	case models.AppliesToSelectedCategories:
		if len(categories) == 0 {
			return rejection(CodeValidationFailure, "At least one category is required", nil)
		}
		for _, id := range categories {
			ok, err := s.catalog.CategoryExists(ctx, id)
			if err != nil {
				s.logger.Error("Category existence check failed", zap.String("category_id", id), zap.Error(err))
				return internalError("Failed to verify categories")
			}
			if !ok {
				return rejection(CodeValidationFailure, "Unknown category: "+id, nil)
			}
		}
	case models.AppliesToSelectedProducts:
		if len(products) == 0 {
			return rejection(CodeValidationFailure, "At least one product is required", nil)
		}
		for _, id := range products {
			ok, err := s.catalog.ProductExists(ctx, id)
			if err != nil {
				s.logger.Error("Product existence check failed", zap.String("product_id", id), zap.Error(err))
				return internalError("Failed to verify products")
			}
			if !ok {
				return rejection(CodeValidationFailure, "Unknown product: "+id, nil)
			}
		}
	}
	return nil
}

func checkDateRange(startDate, endDate, now time.Time) *ServiceError {
	if startDate.After(endDate) {
		return rejection(CodeInvalidDateRange, "Start date must be before end date",
			map[string]interface{}{"start_date": startDate, "end_date": endDate})
	}
	if endDate.Before(now) {
		return rejection(CodeInvalidDateRange, "End date must not be in the past",
			map[string]interface{}{"end_date": endDate})
	}
	return nil
}

// publishRedeemedEvent publishes a discount_redeemed event to SNS; failures
// are logged, never surfaced to the caller.
func (s *discountServiceImpl) publishRedeemedEvent(ctx context.Context, discount *models.Discount, orderID string, orderAmount float64) {
	if s.snsClient == nil || s.snsTopicArn == "" {
		return
	}

	event := models.DiscountRedeemedEvent{
		EventType:    "discount_redeemed",
		DiscountID:   discount.ID.String(),
		DiscountCode: discount.Code,
		OwnerID:      discount.CreatedBy,
		OrderID:      orderID,
		OrderAmount:  orderAmount,
		UsedCount:    discount.UsedCount,
		Timestamp:    time.Now(),
	}

	eventBytes, err := json.Marshal(event)
	if err != nil {
		s.logger.Error("Failed to marshal discount_redeemed event", zap.Error(err))
		return
	}
	if err := s.snsClient.Publish(ctx, s.snsTopicArn, eventBytes); err != nil {
		s.logger.Error("Failed to publish discount_redeemed event", zap.Error(err))
	}
}
