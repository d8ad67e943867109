package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DiscountType determines how Value is interpreted.
type DiscountType string

const (
	DiscountTypePercentage DiscountType = "percentage"
	DiscountTypeFixed      DiscountType = "fixed"
)

// DiscountStatus is the lifecycle state of a discount. All states except
// paused are derived from the date window; paused is a manual override.
type DiscountStatus string

const (
	DiscountStatusUpcoming DiscountStatus = "upcoming"
	DiscountStatusActive   DiscountStatus = "active"
	DiscountStatusExpired  DiscountStatus = "expired"
	DiscountStatusPaused   DiscountStatus = "paused"
)

// CustomerType is stored for checkout-side targeting; not enforced here.
type CustomerType string

const (
	CustomerTypeAll       CustomerType = "all"
	CustomerTypeNew       CustomerType = "new"
	CustomerTypeReturning CustomerType = "returning"
	CustomerTypeVIP       CustomerType = "vip"
)

// AppliesTo scopes a discount to parts of the catalog.
type AppliesTo string

const (
	AppliesToAllProducts        AppliesTo = "all_products"
	AppliesToSelectedCategories AppliesTo = "selected_categories"
	AppliesToSelectedProducts   AppliesTo = "selected_products"
)

// Discount represents an owner-scoped discount code stored in Postgres.
// Codes are unique per owner, not globally; two shops may both run "SAVE10".
type Discount struct {
	ID          uuid.UUID    `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Code        string       `gorm:"type:varchar(20);not null;uniqueIndex:idx_discounts_owner_code,priority:2" json:"code"`
	Name        string       `gorm:"type:varchar(120);not null" json:"name"`
	Description string       `gorm:"type:text" json:"description"`
	Type        DiscountType `gorm:"type:varchar(20);not null" json:"type"`
	Value       float64      `gorm:"not null" json:"value"`
	MinOrder    float64      `gorm:"not null;default:0" json:"min_order"`
	MaxDiscount float64      `gorm:"not null;default:0" json:"max_discount"` // 0 = no cap (percentage only)
	StartDate   time.Time    `gorm:"not null" json:"start_date"`
	EndDate     time.Time    `gorm:"not null" json:"end_date"`

	UsageLimit    *int `gorm:"default:null" json:"usage_limit"` // nil = unlimited
	UsedCount     int  `gorm:"not null;default:0" json:"used_count"`
	RemainingUses *int `gorm:"default:null" json:"remaining_uses"` // derived, recomputed on every save

	Status DiscountStatus `gorm:"type:varchar(20);not null;default:'upcoming';index" json:"status"`

	CustomerType CustomerType `gorm:"type:varchar(20);not null;default:'all'" json:"customer_type"`
	AppliesTo    AppliesTo    `gorm:"type:varchar(30);not null;default:'all_products'" json:"applies_to"`
	Categories   []string     `gorm:"serializer:json" json:"categories"`
	Products     []string     `gorm:"serializer:json" json:"products"`

	OneTimeUse       bool `gorm:"not null;default:false" json:"one_time_use"`
	CombineWithOther bool `gorm:"not null;default:false" json:"combine_with_other"`
	ExcludeSaleItems bool `gorm:"not null;default:false" json:"exclude_sale_items"`

	RevenueGenerated float64 `gorm:"not null;default:0" json:"revenue_generated"`
	OrdersUsed       int     `gorm:"not null;default:0" json:"orders_used"`

	ImageURL string `gorm:"type:text" json:"image_url"`
	ImageKey string `gorm:"type:text" json:"-"` // S3 object key backing ImageURL, used for cleanup

	CreatedBy string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_discounts_owner_code,priority:1;index" json:"created_by"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// BeforeSave re-derives status and remaining uses on every persist, so the
// stored fields can never drift from the counters within a saved row.
func (d *Discount) BeforeSave(_ *gorm.DB) error {
	d.ApplyLifecycle(time.Now())
	return nil
}

// CreateDiscountRequest is the payload for creating a discount. Code is
// optional; when omitted the service generates one.
type CreateDiscountRequest struct {
	Name             string       `json:"name" binding:"required,min=1,max=120"`
	Description      string       `json:"description"`
	Code             string       `json:"code" binding:"omitempty,min=1,max=20"`
	Type             DiscountType `json:"type" binding:"required,oneof=percentage fixed"`
	Value            float64      `json:"value" binding:"gte=0"`
	MinOrder         float64      `json:"min_order" binding:"gte=0"`
	MaxDiscount      float64      `json:"max_discount" binding:"gte=0"`
	StartDate        time.Time    `json:"start_date" binding:"required"`
	EndDate          time.Time    `json:"end_date" binding:"required"`
	UsageLimit       *int         `json:"usage_limit" binding:"omitempty,gt=0"`
	CustomerType     CustomerType `json:"customer_type" binding:"omitempty,oneof=all new returning vip"`
	AppliesTo        AppliesTo    `json:"applies_to" binding:"omitempty,oneof=all_products selected_categories selected_products"`
	Categories       []string     `json:"categories"`
	Products         []string     `json:"products"`
	OneTimeUse       bool         `json:"one_time_use"`
	CombineWithOther bool         `json:"combine_with_other"`
	ExcludeSaleItems bool         `json:"exclude_sale_items"`
	ImageURL         string       `json:"image_url"`
	ImageKey         string       `json:"image_key"` // S3 key of a pre-uploaded asset, cleaned up if creation fails
}

// UpdateDiscountRequest carries a partial update; nil fields are left as-is.
type UpdateDiscountRequest struct {
	Name             *string       `json:"name" binding:"omitempty,min=1,max=120"`
	Description      *string       `json:"description"`
	Code             *string       `json:"code" binding:"omitempty,min=1,max=20"`
	Type             *DiscountType `json:"type" binding:"omitempty,oneof=percentage fixed"`
	Value            *float64      `json:"value" binding:"omitempty,gte=0"`
	MinOrder         *float64      `json:"min_order" binding:"omitempty,gte=0"`
	MaxDiscount      *float64      `json:"max_discount" binding:"omitempty,gte=0"`
	StartDate        *time.Time    `json:"start_date"`
	EndDate          *time.Time    `json:"end_date"`
	UsageLimit       *int          `json:"usage_limit" binding:"omitempty,gt=0"`
	Status           *DiscountStatus `json:"status" binding:"omitempty,oneof=upcoming active expired paused"`
	CustomerType     *CustomerType `json:"customer_type" binding:"omitempty,oneof=all new returning vip"`
	AppliesTo        *AppliesTo    `json:"applies_to" binding:"omitempty,oneof=all_products selected_categories selected_products"`
	Categories       []string      `json:"categories"`
	Products         []string      `json:"products"`
	OneTimeUse       *bool         `json:"one_time_use"`
	CombineWithOther *bool         `json:"combine_with_other"`
	ExcludeSaleItems *bool         `json:"exclude_sale_items"`
	ImageURL         *string       `json:"image_url"`
}

// ValidateDiscountResponse is returned by the read-only validate endpoint.
type ValidateDiscountResponse struct {
	Discount       *DiscountView `json:"discount"`
	DiscountAmount float64       `json:"discount_amount"`
	FinalAmount    float64       `json:"final_amount"`
}

// RecordUsageRequest commits one redemption against a discount.
type RecordUsageRequest struct {
	OrderID     string  `json:"order_id" binding:"required"`
	OrderAmount float64 `json:"order_amount" binding:"gte=0"`
}

// RecordUsageResponse reports the counters after a committed redemption.
type RecordUsageResponse struct {
	UsedCount        int     `json:"used_count"`
	RemainingUses    *int    `json:"remaining_uses"`
	RevenueGenerated float64 `json:"revenue_generated"`
}

// BulkStatusRequest applies one status to a set of owned discounts.
type BulkStatusRequest struct {
	IDs    []string       `json:"ids" binding:"required,min=1"`
	Status DiscountStatus `json:"status" binding:"required,oneof=active paused expired"`
}

// ListDiscountsQuery captures the supported list filters.
type ListDiscountsQuery struct {
	Search string
	Status string
	Type   string
	SortBy string
	Order  string
	Page   int
	Limit  int
}

// DiscountStats is the per-owner aggregate summary.
type DiscountStats struct {
	Total            int64   `json:"total"`
	Active           int64   `json:"active"`
	Upcoming         int64   `json:"upcoming"`
	Expired          int64   `json:"expired"`
	Paused           int64   `json:"paused"`
	TotalUsage       int64   `json:"total_usage"`
	TotalRevenue     float64 `json:"total_revenue"`
	TotalOrders      int64   `json:"total_orders"`
	AverageUsageRate int     `json:"average_usage_rate"` // round(active/total*100)
}

// DiscountRedeemedEvent is published to SNS when a redemption is recorded.
type DiscountRedeemedEvent struct {
	EventType      string    `json:"event_type"`
	DiscountID     string    `json:"discount_id"`
	DiscountCode   string    `json:"discount_code"`
	OwnerID        string    `json:"owner_id"`
	OrderID        string    `json:"order_id"`
	OrderAmount    float64   `json:"order_amount"`
	UsedCount      int       `json:"used_count"`
	Timestamp      time.Time `json:"timestamp"`
}
