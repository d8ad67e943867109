package services_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"discount-service/models"
	"discount-service/repository"
	"discount-service/services"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// --- Mock Repository ---

// mockRepo is an in-memory DiscountRepository. IncrementUsage holds the lock
// for the whole check-and-increment, mirroring the conditional SQL update.
type mockRepo struct {
	mu        sync.Mutex
	discounts map[uuid.UUID]*models.Discount
}

func newMockRepo() *mockRepo {
	return &mockRepo{discounts: make(map[uuid.UUID]*models.Discount)}
}

var _ repository.DiscountRepository = (*mockRepo)(nil)

func (m *mockRepo) Create(_ context.Context, d *models.Discount) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	d.ApplyLifecycle(time.Now()) // what the BeforeSave hook does
	stored := *d
	m.discounts[d.ID] = &stored
	return nil
}

func (m *mockRepo) FindByID(_ context.Context, id uuid.UUID) (*models.Discount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.discounts[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *d
	return &cp, nil
}

func (m *mockRepo) FindByOwnerAndCode(_ context.Context, ownerID, code string) (*models.Discount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.discounts {
		if d.CreatedBy == ownerID && d.Code == strings.ToUpper(code) {
			cp := *d
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockRepo) CodeExists(_ context.Context, ownerID, code string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.discounts {
		if d.CreatedBy == ownerID && d.Code == strings.ToUpper(code) {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockRepo) Save(_ context.Context, d *models.Discount) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d.ApplyLifecycle(time.Now())
	stored := *d
	m.discounts[d.ID] = &stored
	return nil
}

func (m *mockRepo) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.discounts[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(m.discounts, id)
	return nil
}

func (m *mockRepo) List(_ context.Context, ownerID string, _ *models.ListDiscountsQuery) ([]models.Discount, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []models.Discount
	for _, d := range m.discounts {
		if d.CreatedBy == ownerID {
			result = append(result, *d)
		}
	}
	return result, int64(len(result)), nil
}

func (m *mockRepo) CountOwnedBy(_ context.Context, ownerID string, ids []uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var count int64
	for _, id := range ids {
		if d, ok := m.discounts[id]; ok && d.CreatedBy == ownerID {
			count++
		}
	}
	return count, nil
}

func (m *mockRepo) BulkUpdateStatus(_ context.Context, ids []uuid.UUID, status models.DiscountStatus) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var updated int64
	for _, id := range ids {
		if d, ok := m.discounts[id]; ok {
			d.Status = status // column update, no lifecycle hook
			updated++
		}
	}
	return updated, nil
}

func (m *mockRepo) IncrementUsage(_ context.Context, id uuid.UUID, orderAmount float64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.discounts[id]
	if !ok {
		return false, nil
	}
	if d.UsageLimit != nil && d.UsedCount >= *d.UsageLimit {
		return false, nil
	}
	d.UsedCount++
	d.OrdersUsed++
	d.RevenueGenerated += orderAmount
	d.RemainingUses = models.ComputeRemainingUses(d.UsageLimit, d.UsedCount)
	return true, nil
}

func (m *mockRepo) RefreshDerived(_ context.Context, id uuid.UUID, status models.DiscountStatus, remaining *int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d, ok := m.discounts[id]; ok {
		d.Status = status
		d.RemainingUses = remaining
	}
	return nil
}

func (m *mockRepo) Stats(_ context.Context, ownerID string) (*models.DiscountStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := &models.DiscountStats{}
	for _, d := range m.discounts {
		if d.CreatedBy != ownerID {
			continue
		}
		stats.Total++
		switch d.Status {
		case models.DiscountStatusActive:
			stats.Active++
		case models.DiscountStatusUpcoming:
			stats.Upcoming++
		case models.DiscountStatusExpired:
			stats.Expired++
		case models.DiscountStatusPaused:
			stats.Paused++
		}
		stats.TotalUsage += int64(d.UsedCount)
		stats.TotalRevenue += d.RevenueGenerated
		stats.TotalOrders += int64(d.OrdersUsed)
	}
	if stats.Total > 0 {
		stats.AverageUsageRate = int(float64(stats.Active)/float64(stats.Total)*100 + 0.5)
	}
	return stats, nil
}

func (m *mockRepo) get(id uuid.UUID) *models.Discount {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *m.discounts[id]
	return &cp
}

// --- Mock SNS Publisher ---

type mockSNSPublisher struct {
	mu        sync.Mutex
	published [][]byte
}

func (m *mockSNSPublisher) Publish(_ context.Context, _ string, message []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, message)
	return nil
}

func (m *mockSNSPublisher) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.published)
}

// --- Helpers ---

const ownerA = "owner-a"
const ownerB = "owner-b"

func newTestService(repo repository.DiscountRepository, sns services.SNSPublisher) services.DiscountService {
	logger, _ := zap.NewDevelopment()
	return services.NewDiscountService(repo, nil, nil, nil, sns, "arn:aws:sns:us-east-1:000000000000:discount-events", logger)
}

func createRequest(code string) *models.CreateDiscountRequest {
	return &models.CreateDiscountRequest{
		Name:      "Summer Sale",
		Code:      code,
		Type:      models.DiscountTypePercentage,
		Value:     10,
		StartDate: time.Now().Add(-time.Hour),
		EndDate:   time.Now().Add(24 * time.Hour),
	}
}

func seedDiscount(t *testing.T, svc services.DiscountService, req *models.CreateDiscountRequest) *models.DiscountView {
	t.Helper()
	view, svcErr := svc.CreateDiscount(context.Background(), ownerA, req)
	assert.Nil(t, svcErr)
	return view
}

// --- Create ---

func TestService_CreateDiscount_GeneratesCode(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo, &mockSNSPublisher{})

	req := createRequest("")
	view := seedDiscount(t, svc, req)

	assert.Len(t, view.Code, 8)
	for _, r := range view.Code {
		assert.Contains(t, "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789", string(r))
	}
	assert.Equal(t, models.DiscountStatusActive, view.Status)
}

func TestService_CreateDiscount_UppercasesCode(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo, &mockSNSPublisher{})

	view := seedDiscount(t, svc, createRequest("save10"))
	assert.Equal(t, "SAVE10", view.Code)
}

func TestService_CreateDiscount_InvalidDateRange(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo, &mockSNSPublisher{})

	req := createRequest("BAD")
	req.StartDate = time.Now().Add(48 * time.Hour)
	req.EndDate = time.Now().Add(24 * time.Hour)

	_, svcErr := svc.CreateDiscount(context.Background(), ownerA, req)
	assert.NotNil(t, svcErr)
	assert.Equal(t, services.CodeInvalidDateRange, svcErr.Code)
}

func TestService_CreateDiscount_EndDateInPast(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo, &mockSNSPublisher{})

	req := createRequest("OLD")
	req.StartDate = time.Now().Add(-48 * time.Hour)
	req.EndDate = time.Now().Add(-24 * time.Hour)

	_, svcErr := svc.CreateDiscount(context.Background(), ownerA, req)
	assert.NotNil(t, svcErr)
	assert.Equal(t, services.CodeInvalidDateRange, svcErr.Code)
}

func TestService_CreateDiscount_DuplicatePerOwner(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo, &mockSNSPublisher{})

	seedDiscount(t, svc, createRequest("SAVE10"))

	_, svcErr := svc.CreateDiscount(context.Background(), ownerA, createRequest("SAVE10"))
	assert.NotNil(t, svcErr)
	assert.Equal(t, services.CodeDuplicateCode, svcErr.Code)

	// A different owner may register the same code.
	_, svcErr = svc.CreateDiscount(context.Background(), ownerB, createRequest("SAVE10"))
	assert.Nil(t, svcErr)
}

func TestService_CreateDiscount_UpcomingWindow(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo, &mockSNSPublisher{})

	req := createRequest("SOON")
	req.StartDate = time.Now().Add(24 * time.Hour)
	req.EndDate = time.Now().Add(48 * time.Hour)

	view := seedDiscount(t, svc, req)
	assert.Equal(t, models.DiscountStatusUpcoming, view.Status)
	assert.False(t, view.IsActive)
}

// --- Validate ---

func TestService_ValidateCode_PercentageClamped(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo, &mockSNSPublisher{})

	req := createRequest("TEN")
	req.Value = 10
	req.MaxDiscount = 5
	seedDiscount(t, svc, req)

	resp, svcErr := svc.ValidateCode(context.Background(), ownerA, "TEN", 100)
	assert.Nil(t, svcErr)
	assert.Equal(t, 5.0, resp.DiscountAmount, "clamped to max discount")
	assert.Equal(t, 95.0, resp.FinalAmount)
}

func TestService_ValidateCode_PercentageNoCap(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo, &mockSNSPublisher{})

	req := createRequest("QUARTER")
	req.Value = 25
	req.MaxDiscount = 0 // no cap
	seedDiscount(t, svc, req)

	resp, svcErr := svc.ValidateCode(context.Background(), ownerA, "QUARTER", 200)
	assert.Nil(t, svcErr)
	assert.Equal(t, 50.0, resp.DiscountAmount)
	assert.Equal(t, 150.0, resp.FinalAmount)
}

func TestService_ValidateCode_FixedFloorsAtZero(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo, &mockSNSPublisher{})

	req := createRequest("TWENTY")
	req.Type = models.DiscountTypeFixed
	req.Value = 20
	seedDiscount(t, svc, req)

	resp, svcErr := svc.ValidateCode(context.Background(), ownerA, "TWENTY", 15)
	assert.Nil(t, svcErr)
	assert.Equal(t, 20.0, resp.DiscountAmount, "fixed value is not clamped")
	assert.Equal(t, 0.0, resp.FinalAmount, "final amount floors at zero")
}

func TestService_ValidateCode_CaseInsensitiveLookup(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo, &mockSNSPublisher{})

	seedDiscount(t, svc, createRequest("SAVE10"))

	resp, svcErr := svc.ValidateCode(context.Background(), ownerA, "save10", 100)
	assert.Nil(t, svcErr)
	assert.Equal(t, "SAVE10", resp.Discount.Code)
}

func TestService_ValidateCode_NotFound(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo, &mockSNSPublisher{})

	_, svcErr := svc.ValidateCode(context.Background(), ownerA, "GHOST", 100)
	assert.NotNil(t, svcErr)
	assert.Equal(t, services.CodeNotFound, svcErr.Code)
}

func TestService_ValidateCode_OwnerScoped(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo, &mockSNSPublisher{})

	seedDiscount(t, svc, createRequest("MINE"))

	_, svcErr := svc.ValidateCode(context.Background(), ownerB, "MINE", 100)
	assert.NotNil(t, svcErr)
	assert.Equal(t, services.CodeNotFound, svcErr.Code, "codes do not leak across owners")
}

func TestService_ValidateCode_NotYetActive(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo, &mockSNSPublisher{})

	req := createRequest("SOON")
	req.StartDate = time.Now().Add(24 * time.Hour)
	req.EndDate = time.Now().Add(48 * time.Hour)
	seedDiscount(t, svc, req)

	_, svcErr := svc.ValidateCode(context.Background(), ownerA, "SOON", 100)
	assert.NotNil(t, svcErr)
	assert.Equal(t, services.CodeNotYetActive, svcErr.Code)
	assert.Contains(t, svcErr.Details, "start_date", "rejection carries the boundary")
}

func TestService_ValidateCode_Expired(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo, &mockSNSPublisher{})

	view := seedDiscount(t, svc, createRequest("BYE"))

	// Move the window into the past behind the service's back.
	stored := repo.get(view.ID)
	stored.StartDate = time.Now().Add(-48 * time.Hour)
	stored.EndDate = time.Now().Add(-24 * time.Hour)
	repo.discounts[view.ID] = stored

	_, svcErr := svc.ValidateCode(context.Background(), ownerA, "BYE", 100)
	assert.NotNil(t, svcErr)
	assert.Equal(t, services.CodeExpired, svcErr.Code)
	assert.Contains(t, svcErr.Details, "end_date")
}

func TestService_ValidateCode_Paused(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo, &mockSNSPublisher{})

	view := seedDiscount(t, svc, createRequest("HOLD"))

	_, svcErr := svc.BulkUpdateStatus(context.Background(), ownerA, &models.BulkStatusRequest{
		IDs:    []string{view.ID.String()},
		Status: models.DiscountStatusPaused,
	})
	assert.Nil(t, svcErr)

	_, valErr := svc.ValidateCode(context.Background(), ownerA, "HOLD", 100)
	assert.NotNil(t, valErr)
	assert.Equal(t, services.CodeInactive, valErr.Code)
}

func TestService_ValidateCode_LimitReached(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo, &mockSNSPublisher{})

	limit := 3
	req := createRequest("LIMITED")
	req.UsageLimit = &limit
	view := seedDiscount(t, svc, req)

	stored := repo.get(view.ID)
	stored.UsedCount = 3
	repo.discounts[view.ID] = stored

	_, svcErr := svc.ValidateCode(context.Background(), ownerA, "LIMITED", 100)
	assert.NotNil(t, svcErr)
	assert.Equal(t, services.CodeLimitReached, svcErr.Code)
}

func TestService_ValidateCode_BelowMinimum(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo, &mockSNSPublisher{})

	req := createRequest("BIGCART")
	req.MinOrder = 100
	seedDiscount(t, svc, req)

	_, svcErr := svc.ValidateCode(context.Background(), ownerA, "BIGCART", 50)
	assert.NotNil(t, svcErr)
	assert.Equal(t, services.CodeBelowMinimum, svcErr.Code)
	assert.Equal(t, 100.0, svcErr.Details["min_order"])
}

func TestService_ValidateCode_NeverMutatesCounters(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo, &mockSNSPublisher{})

	view := seedDiscount(t, svc, createRequest("READONLY"))

	for i := 0; i < 5; i++ {
		_, svcErr := svc.ValidateCode(context.Background(), ownerA, "READONLY", 100)
		assert.Nil(t, svcErr)
	}

	stored := repo.get(view.ID)
	assert.Equal(t, 0, stored.UsedCount, "validation must not consume uses")
	assert.Equal(t, 0.0, stored.RevenueGenerated)
}

// --- Record usage ---

func TestService_RecordUsage_UpdatesCounters(t *testing.T) {
	repo := newMockRepo()
	sns := &mockSNSPublisher{}
	svc := newTestService(repo, sns)

	limit := 10
	req := createRequest("USEME")
	req.UsageLimit = &limit
	view := seedDiscount(t, svc, req)

	resp, svcErr := svc.RecordUsage(context.Background(), view.ID, &models.RecordUsageRequest{
		OrderID:     "order-1",
		OrderAmount: 80,
	})
	assert.Nil(t, svcErr)
	assert.Equal(t, 1, resp.UsedCount)
	assert.Equal(t, 9, *resp.RemainingUses)
	assert.Equal(t, 80.0, resp.RevenueGenerated)
	assert.Equal(t, 1, sns.count(), "publishes a redemption event")
}

func TestService_RecordUsage_ExhaustionKeepsStatusActive(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo, &mockSNSPublisher{})

	limit := 1
	req := createRequest("LASTONE")
	req.UsageLimit = &limit
	view := seedDiscount(t, svc, req)

	resp, svcErr := svc.RecordUsage(context.Background(), view.ID, &models.RecordUsageRequest{
		OrderID:     "order-1",
		OrderAmount: 50,
	})
	assert.Nil(t, svcErr)
	assert.Equal(t, 0, *resp.RemainingUses)

	// Exhaustion shows in remaining uses, never in status.
	stored := repo.get(view.ID)
	assert.Equal(t, models.DiscountStatusActive, stored.Status)
}

func TestService_RecordUsage_LimitReached(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo, &mockSNSPublisher{})

	limit := 1
	req := createRequest("ONCE")
	req.UsageLimit = &limit
	view := seedDiscount(t, svc, req)

	_, svcErr := svc.RecordUsage(context.Background(), view.ID, &models.RecordUsageRequest{OrderID: "o1", OrderAmount: 10})
	assert.Nil(t, svcErr)

	_, svcErr = svc.RecordUsage(context.Background(), view.ID, &models.RecordUsageRequest{OrderID: "o2", OrderAmount: 10})
	assert.NotNil(t, svcErr)
	assert.Equal(t, services.CodeLimitReached, svcErr.Code)
}

func TestService_RecordUsage_NotFound(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo, &mockSNSPublisher{})

	_, svcErr := svc.RecordUsage(context.Background(), uuid.New(), &models.RecordUsageRequest{OrderID: "o1", OrderAmount: 10})
	assert.NotNil(t, svcErr)
	assert.Equal(t, services.CodeNotFound, svcErr.Code)
}

func TestService_RecordUsage_ConcurrentNoOvershoot(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo, &mockSNSPublisher{})

	limit := 1
	req := createRequest("RACE")
	req.UsageLimit = &limit
	view := seedDiscount(t, svc, req)

	const attempts = 8
	var wg sync.WaitGroup
	var mu sync.Mutex
	successes := 0
	limitRejections := 0

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, svcErr := svc.RecordUsage(context.Background(), view.ID, &models.RecordUsageRequest{
				OrderID:     "order",
				OrderAmount: 25,
			})
			mu.Lock()
			defer mu.Unlock()
			if svcErr == nil {
				successes++
			} else if svcErr.Code == services.CodeLimitReached {
				limitRejections++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes, "exactly one redemption wins")
	assert.Equal(t, attempts-1, limitRejections)

	stored := repo.get(view.ID)
	assert.Equal(t, 1, stored.UsedCount, "counter never overshoots the limit")
}

// --- Update / pause stickiness ---

func TestService_UpdateDiscount_PauseSurvivesEdit(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo, &mockSNSPublisher{})

	view := seedDiscount(t, svc, createRequest("PAUSEME"))

	_, svcErr := svc.BulkUpdateStatus(context.Background(), ownerA, &models.BulkStatusRequest{
		IDs:    []string{view.ID.String()},
		Status: models.DiscountStatusPaused,
	})
	assert.Nil(t, svcErr)

	// An unrelated edit triggers a full save; pause must stick.
	name := "Renamed Sale"
	updated, svcErr := svc.UpdateDiscount(context.Background(), ownerA, view.ID, &models.UpdateDiscountRequest{Name: &name})
	assert.Nil(t, svcErr)
	assert.Equal(t, models.DiscountStatusPaused, updated.Status)
	assert.Equal(t, "Renamed Sale", updated.Name)
}

func TestService_UpdateDiscount_UnpauseRederives(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo, &mockSNSPublisher{})

	view := seedDiscount(t, svc, createRequest("RESUME"))

	_, svcErr := svc.BulkUpdateStatus(context.Background(), ownerA, &models.BulkStatusRequest{
		IDs:    []string{view.ID.String()},
		Status: models.DiscountStatusPaused,
	})
	assert.Nil(t, svcErr)

	// Explicitly setting any non-paused status hands control back to the dates.
	status := models.DiscountStatusActive
	updated, svcErr := svc.UpdateDiscount(context.Background(), ownerA, view.ID, &models.UpdateDiscountRequest{Status: &status})
	assert.Nil(t, svcErr)
	assert.Equal(t, models.DiscountStatusActive, updated.Status)
}

func TestService_UpdateDiscount_NotOwner(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo, &mockSNSPublisher{})

	view := seedDiscount(t, svc, createRequest("MINE"))

	name := "Stolen"
	_, svcErr := svc.UpdateDiscount(context.Background(), ownerB, view.ID, &models.UpdateDiscountRequest{Name: &name})
	assert.NotNil(t, svcErr)
	assert.Equal(t, services.CodeNotOwner, svcErr.Code)
}

// --- Get ---

func TestService_GetDiscount_AdminBypass(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo, &mockSNSPublisher{})

	view := seedDiscount(t, svc, createRequest("PEEK"))

	_, svcErr := svc.GetDiscount(context.Background(), "someone-else", "owner", view.ID)
	assert.NotNil(t, svcErr)
	assert.Equal(t, services.CodeNotOwner, svcErr.Code)

	got, svcErr := svc.GetDiscount(context.Background(), "someone-else", "admin", view.ID)
	assert.Nil(t, svcErr)
	assert.Equal(t, "PEEK", got.Code)
}

func TestService_GetDiscount_RefreshesStaleStatus(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo, &mockSNSPublisher{})

	view := seedDiscount(t, svc, createRequest("STALE"))

	// Window elapsed without any write; stored status is stale.
	stored := repo.get(view.ID)
	stored.StartDate = time.Now().Add(-48 * time.Hour)
	stored.EndDate = time.Now().Add(-24 * time.Hour)
	repo.discounts[view.ID] = stored

	got, svcErr := svc.GetDiscount(context.Background(), ownerA, "owner", view.ID)
	assert.Nil(t, svcErr)
	assert.Equal(t, models.DiscountStatusExpired, got.Status)
	assert.False(t, got.IsActive)
	assert.Equal(t, models.DiscountStatusExpired, repo.get(view.ID).Status, "stored row refreshed")
}

// --- Delete ---

func TestService_DeleteDiscount(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo, &mockSNSPublisher{})

	view := seedDiscount(t, svc, createRequest("GONE"))

	svcErr := svc.DeleteDiscount(context.Background(), ownerA, view.ID)
	assert.Nil(t, svcErr)

	_, svcErr = svc.GetDiscount(context.Background(), ownerA, "owner", view.ID)
	assert.NotNil(t, svcErr)
	assert.Equal(t, services.CodeNotFound, svcErr.Code)
}

func TestService_DeleteDiscount_NotOwner(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo, &mockSNSPublisher{})

	view := seedDiscount(t, svc, createRequest("KEEP"))

	svcErr := svc.DeleteDiscount(context.Background(), ownerB, view.ID)
	assert.NotNil(t, svcErr)
	assert.Equal(t, services.CodeNotOwner, svcErr.Code)
}

// --- Bulk status ---

func TestService_BulkUpdateStatus_RejectsForeignIDs(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo, &mockSNSPublisher{})

	mine := seedDiscount(t, svc, createRequest("MINE"))
	theirsView, svcErr := svc.CreateDiscount(context.Background(), ownerB, createRequest("THEIRS"))
	assert.Nil(t, svcErr)

	_, bulkErr := svc.BulkUpdateStatus(context.Background(), ownerA, &models.BulkStatusRequest{
		IDs:    []string{mine.ID.String(), theirsView.ID.String()},
		Status: models.DiscountStatusPaused,
	})
	assert.NotNil(t, bulkErr)
	assert.Equal(t, services.CodeNotOwner, bulkErr.Code)

	// All-or-nothing: the owned discount stays untouched too.
	assert.Equal(t, models.DiscountStatusActive, repo.get(mine.ID).Status)
}

func TestService_BulkUpdateStatus_AppliesToAll(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo, &mockSNSPublisher{})

	a := seedDiscount(t, svc, createRequest("AAA"))
	b := seedDiscount(t, svc, createRequest("BBB"))

	updated, svcErr := svc.BulkUpdateStatus(context.Background(), ownerA, &models.BulkStatusRequest{
		IDs:    []string{a.ID.String(), b.ID.String()},
		Status: models.DiscountStatusPaused,
	})
	assert.Nil(t, svcErr)
	assert.Equal(t, int64(2), updated)
	assert.Equal(t, models.DiscountStatusPaused, repo.get(a.ID).Status)
	assert.Equal(t, models.DiscountStatusPaused, repo.get(b.ID).Status)
}

// vanishingRowRepo drops one row between the ownership check and the status
// update, standing in for a concurrent delete.
type vanishingRowRepo struct {
	*mockRepo
	victim uuid.UUID
}

func (r *vanishingRowRepo) BulkUpdateStatus(ctx context.Context, ids []uuid.UUID, status models.DiscountStatus) (int64, error) {
	r.mu.Lock()
	delete(r.discounts, r.victim)
	r.mu.Unlock()
	return r.mockRepo.BulkUpdateStatus(ctx, ids, status)
}

func TestService_BulkUpdateStatus_ReportsActualRowsUpdated(t *testing.T) {
	base := newMockRepo()
	svc := newTestService(base, &mockSNSPublisher{})

	a := seedDiscount(t, svc, createRequest("AAA"))
	b := seedDiscount(t, svc, createRequest("BBB"))

	racing := &vanishingRowRepo{mockRepo: base, victim: b.ID}
	racingSvc := newTestService(racing, &mockSNSPublisher{})

	updated, svcErr := racingSvc.BulkUpdateStatus(context.Background(), ownerA, &models.BulkStatusRequest{
		IDs:    []string{a.ID.String(), b.ID.String()},
		Status: models.DiscountStatusPaused,
	})
	assert.Nil(t, svcErr)
	assert.Equal(t, int64(1), updated, "deleted row must not count as updated")
}

// --- Stats ---

func TestService_Stats(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo, &mockSNSPublisher{})

	active := seedDiscount(t, svc, createRequest("ACT1"))
	seedDiscount(t, svc, createRequest("ACT2"))
	paused := seedDiscount(t, svc, createRequest("PAU1"))

	upcoming := createRequest("UPC1")
	upcoming.StartDate = time.Now().Add(24 * time.Hour)
	upcoming.EndDate = time.Now().Add(48 * time.Hour)
	seedDiscount(t, svc, upcoming)

	_, svcErr := svc.BulkUpdateStatus(context.Background(), ownerA, &models.BulkStatusRequest{
		IDs:    []string{paused.ID.String()},
		Status: models.DiscountStatusPaused,
	})
	assert.Nil(t, svcErr)

	_, svcErr = svc.RecordUsage(context.Background(), active.ID, &models.RecordUsageRequest{OrderID: "o1", OrderAmount: 40})
	assert.Nil(t, svcErr)

	stats, svcErr := svc.Stats(context.Background(), ownerA)
	assert.Nil(t, svcErr)
	assert.Equal(t, int64(4), stats.Total)
	assert.Equal(t, int64(2), stats.Active)
	assert.Equal(t, int64(1), stats.Paused)
	assert.Equal(t, int64(1), stats.Upcoming)
	assert.Equal(t, int64(1), stats.TotalUsage)
	assert.Equal(t, 40.0, stats.TotalRevenue)
	assert.Equal(t, 50, stats.AverageUsageRate, "round(2/4*100)")
}

func TestService_Stats_EmptyOwner(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo, &mockSNSPublisher{})

	stats, svcErr := svc.Stats(context.Background(), "nobody")
	assert.Nil(t, svcErr)
	assert.Equal(t, int64(0), stats.Total)
	assert.Equal(t, 0, stats.AverageUsageRate, "zero discounts means rate 0")
}
