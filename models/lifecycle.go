package models

import (
	"math"
	"time"
)

// EvaluateStatus derives the lifecycle status from the date window. A paused
// discount stays paused until changed explicitly; the dates never un-pause it.
func EvaluateStatus(now, startDate, endDate time.Time, current DiscountStatus) DiscountStatus {
	if current == DiscountStatusPaused {
		return DiscountStatusPaused
	}
	switch {
	case now.Before(startDate):
		return DiscountStatusUpcoming
	case now.After(endDate):
		return DiscountStatusExpired
	default:
		return DiscountStatusActive
	}
}

// ComputeRemainingUses returns max(0, limit-used), or nil for unlimited.
func ComputeRemainingUses(usageLimit *int, usedCount int) *int {
	if usageLimit == nil {
		return nil
	}
	remaining := *usageLimit - usedCount
	if remaining < 0 {
		remaining = 0
	}
	return &remaining
}

// ApplyLifecycle recomputes the derived fields against the given instant.
// Idempotent; safe to run on every persist.
func (d *Discount) ApplyLifecycle(now time.Time) {
	d.Status = EvaluateStatus(now, d.StartDate, d.EndDate, d.Status)
	d.RemainingUses = ComputeRemainingUses(d.UsageLimit, d.UsedCount)
}

// IsActiveAt reports whether the discount is redeemable at the given instant,
// independent of the stored (possibly stale) status.
func (d *Discount) IsActiveAt(now time.Time) bool {
	if d.Status == DiscountStatusPaused {
		return false
	}
	return !now.Before(d.StartDate) && !now.After(d.EndDate)
}

// DaysRemaining returns ceil(endDate-now) in days; negative once expired.
func (d *Discount) DaysRemaining(now time.Time) int {
	return int(math.Ceil(d.EndDate.Sub(now).Hours() / 24))
}

// UsagePercentage returns round(used/limit*100), or 0 for unlimited discounts.
func (d *Discount) UsagePercentage() int {
	if d.UsageLimit == nil || *d.UsageLimit == 0 {
		return 0
	}
	return int(math.Round(float64(d.UsedCount) / float64(*d.UsageLimit) * 100))
}

// DiscountView is a Discount plus the per-request derived fields returned by
// the API.
type DiscountView struct {
	Discount
	DaysRemaining   int  `json:"days_remaining"`
	UsagePercentage int  `json:"usage_percentage"`
	IsActive        bool `json:"is_active"`
}

// View materializes the derived fields against the given instant.
func (d *Discount) View(now time.Time) *DiscountView {
	return &DiscountView{
		Discount:        *d,
		DaysRemaining:   d.DaysRemaining(now),
		UsagePercentage: d.UsagePercentage(),
		IsActive:        d.IsActiveAt(now),
	}
}
