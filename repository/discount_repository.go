package repository

import (
	"context"
	"strings"

	"discount-service/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DiscountRepository defines the interface for discount data access.
type DiscountRepository interface {
	Create(ctx context.Context, discount *models.Discount) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Discount, error)
	FindByOwnerAndCode(ctx context.Context, ownerID, code string) (*models.Discount, error)
	CodeExists(ctx context.Context, ownerID, code string) (bool, error)
	Save(ctx context.Context, discount *models.Discount) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, ownerID string, q *models.ListDiscountsQuery) ([]models.Discount, int64, error)
	CountOwnedBy(ctx context.Context, ownerID string, ids []uuid.UUID) (int64, error)
	BulkUpdateStatus(ctx context.Context, ids []uuid.UUID, status models.DiscountStatus) (int64, error)
	IncrementUsage(ctx context.Context, id uuid.UUID, orderAmount float64) (bool, error)
	RefreshDerived(ctx context.Context, id uuid.UUID, status models.DiscountStatus, remaining *int) error
	Stats(ctx context.Context, ownerID string) (*models.DiscountStats, error)
}

// GormDiscountRepository implements DiscountRepository using GORM.
type GormDiscountRepository struct {
	db *gorm.DB
}

// NewGormDiscountRepository creates a new GormDiscountRepository.
func NewGormDiscountRepository(db *gorm.DB) DiscountRepository {
	return &GormDiscountRepository{db: db}
}

// Create inserts a new discount; the BeforeSave hook derives status and
// remaining uses before the row is written.
func (r *GormDiscountRepository) Create(ctx context.Context, discount *models.Discount) error {
	return r.db.WithContext(ctx).Create(discount).Error
}

// FindByID retrieves a discount by its id.
func (r *GormDiscountRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Discount, error) {
	var discount models.Discount
	if err := r.db.WithContext(ctx).First(&discount, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &discount, nil
}

// FindByOwnerAndCode retrieves a discount by (owner, code). Codes are stored
// uppercased, so the lookup normalizes the same way.
func (r *GormDiscountRepository) FindByOwnerAndCode(ctx context.Context, ownerID, code string) (*models.Discount, error) {
	var discount models.Discount
	err := r.db.WithContext(ctx).
		Where("created_by = ? AND code = ?", ownerID, strings.ToUpper(code)).
		First(&discount).Error
	if err != nil {
		return nil, err
	}
	return &discount, nil
}

// CodeExists reports whether the owner already has a discount with this code.
func (r *GormDiscountRepository) CodeExists(ctx context.Context, ownerID, code string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Discount{}).
		Where("created_by = ? AND code = ?", ownerID, strings.ToUpper(code)).
		Count(&count).Error
	return count > 0, err
}

// Save persists the full record, running the BeforeSave derivation hook.
func (r *GormDiscountRepository) Save(ctx context.Context, discount *models.Discount) error {
	return r.db.WithContext(ctx).Save(discount).Error
}

// Delete hard-deletes a discount.
func (r *GormDiscountRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&models.Discount{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// sortColumns whitelists the sortable fields for List.
var sortColumns = map[string]string{
	"created_at": "created_at",
	"end_date":   "end_date",
	"name":       "name",
	"value":      "value",
	"used_count": "used_count",
}

// List retrieves the owner's discounts with optional search and filters.
func (r *GormDiscountRepository) List(ctx context.Context, ownerID string, q *models.ListDiscountsQuery) ([]models.Discount, int64, error) {
	var discounts []models.Discount
	var total int64

	query := r.db.WithContext(ctx).Model(&models.Discount{}).Where("created_by = ?", ownerID)

	if q.Search != "" {
		pattern := "%" + q.Search + "%"
		query = query.Where("name ILIKE ? OR code ILIKE ? OR description ILIKE ?", pattern, pattern, pattern)
	}
	if q.Status != "" {
		query = query.Where("status = ?", q.Status)
	}
	if q.Type != "" {
		query = query.Where("type = ?", q.Type)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	sortBy, ok := sortColumns[q.SortBy]
	if !ok {
		sortBy = "created_at"
	}
	order := "DESC"
	if strings.EqualFold(q.Order, "asc") {
		order = "ASC"
	}

	offset := (q.Page - 1) * q.Limit
	if err := query.
		Order(sortBy + " " + order).
		Offset(offset).
		Limit(q.Limit).
		Find(&discounts).Error; err != nil {
		return nil, 0, err
	}

	return discounts, total, nil
}

// CountOwnedBy counts how many of the given ids belong to the owner.
func (r *GormDiscountRepository) CountOwnedBy(ctx context.Context, ownerID string, ids []uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Discount{}).
		Where("created_by = ? AND id IN ?", ownerID, ids).
		Count(&count).Error
	return count, err
}

// BulkUpdateStatus sets the status column directly, bypassing the lifecycle
// hook. The date-derived status takes over again on the next individual save.
// Returns the number of rows actually updated, which can be lower than
// len(ids) if a row was deleted since the ownership check.
func (r *GormDiscountRepository) BulkUpdateStatus(ctx context.Context, ids []uuid.UUID, status models.DiscountStatus) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Discount{}).
		Where("id IN ?", ids).
		UpdateColumns(map[string]interface{}{
			"status":     status,
			"updated_at": gorm.Expr("NOW()"),
		})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// IncrementUsage applies one redemption as a single conditional update, so
// concurrent redemptions cannot push used_count past usage_limit. Returns
// false when the condition did not match (limit already exhausted or the row
// is gone).
func (r *GormDiscountRepository) IncrementUsage(ctx context.Context, id uuid.UUID, orderAmount float64) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Discount{}).
		Where("id = ? AND (usage_limit IS NULL OR used_count < usage_limit)", id).
		UpdateColumns(map[string]interface{}{
			"used_count":        gorm.Expr("used_count + 1"),
			"orders_used":       gorm.Expr("orders_used + 1"),
			"revenue_generated": gorm.Expr("revenue_generated + ?", orderAmount),
			"remaining_uses":    gorm.Expr("CASE WHEN usage_limit IS NULL THEN NULL ELSE GREATEST(usage_limit - used_count - 1, 0) END"),
			"updated_at":        gorm.Expr("NOW()"),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// RefreshDerived opportunistically rewrites the stored derived columns after
// a read found them stale. Column-level update; no hooks.
func (r *GormDiscountRepository) RefreshDerived(ctx context.Context, id uuid.UUID, status models.DiscountStatus, remaining *int) error {
	return r.db.WithContext(ctx).
		Model(&models.Discount{}).
		Where("id = ?", id).
		UpdateColumns(map[string]interface{}{
			"status":         status,
			"remaining_uses": remaining,
		}).Error
}

// statsRow is the scan target for the aggregate query.
type statsRow struct {
	Total        int64
	Active       int64
	Upcoming     int64
	Expired      int64
	Paused       int64
	TotalUsage   int64
	TotalRevenue float64
	TotalOrders  int64
}

// Stats aggregates the owner's discounts in a single query.
func (r *GormDiscountRepository) Stats(ctx context.Context, ownerID string) (*models.DiscountStats, error) {
	var row statsRow
	err := r.db.WithContext(ctx).
		Model(&models.Discount{}).
		Select(`COUNT(*) AS total,
			SUM(CASE WHEN status = 'active' THEN 1 ELSE 0 END) AS active,
			SUM(CASE WHEN status = 'upcoming' THEN 1 ELSE 0 END) AS upcoming,
			SUM(CASE WHEN status = 'expired' THEN 1 ELSE 0 END) AS expired,
			SUM(CASE WHEN status = 'paused' THEN 1 ELSE 0 END) AS paused,
			COALESCE(SUM(used_count), 0) AS total_usage,
			COALESCE(SUM(revenue_generated), 0) AS total_revenue,
			COALESCE(SUM(orders_used), 0) AS total_orders`).
		Where("created_by = ?", ownerID).
		Scan(&row).Error
	if err != nil {
		return nil, err
	}

	stats := &models.DiscountStats{
		Total:        row.Total,
		Active:       row.Active,
		Upcoming:     row.Upcoming,
		Expired:      row.Expired,
		Paused:       row.Paused,
		TotalUsage:   row.TotalUsage,
		TotalRevenue: row.TotalRevenue,
		TotalOrders:  row.TotalOrders,
	}
	if row.Total > 0 {
		stats.AverageUsageRate = int(float64(row.Active)/float64(row.Total)*100 + 0.5)
	}
	return stats, nil
}
