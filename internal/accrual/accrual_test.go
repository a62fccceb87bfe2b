package accrual

import (
	"database/sql"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/BM-ACADEMY/alpha-sub001/internal/catalog"
	"github.com/BM-ACADEMY/alpha-sub001/internal/money"
	"github.com/BM-ACADEMY/alpha-sub001/internal/repository"
)

// MockSubscriptionRepo implements SubscriptionRepository but only mocks the
// methods the runner touches.
type MockSubscriptionRepo struct {
	mock.Mock
}

func (m *MockSubscriptionRepo) Insert(sub *repository.Subscription) (string, error) {
	return "", nil
}

func (m *MockSubscriptionRepo) GetOne(id string) (*repository.Subscription, bool, error) {
	return nil, false, nil
}

func (m *MockSubscriptionRepo) GetAllByUserId(userID string) ([]repository.Subscription, error) {
	return nil, nil
}

func (m *MockSubscriptionRepo) Activate(id string, lockedPercent decimal.Decimal, start, end time.Time) (bool, error) {
	return false, nil
}

func (m *MockSubscriptionRepo) Reject(id string) (bool, error) {
	return false, nil
}

func (m *MockSubscriptionRepo) DueForAccrual(now time.Time) ([]repository.Subscription, error) {
	args := m.Called(now)
	return args.Get(0).([]repository.Subscription), args.Error(1)
}

func (m *MockSubscriptionRepo) AdvanceCursor(id string, prevCursor, nextCursor time.Time, nextIndex int) (bool, error) {
	args := m.Called(id, prevCursor, nextCursor, nextIndex)
	return args.Bool(0), args.Error(1)
}

func (m *MockSubscriptionRepo) ExpireDue(now time.Time) (int64, error) {
	return 0, nil
}

func (m *MockSubscriptionRepo) SettlementCandidates() ([]repository.Subscription, error) {
	return nil, nil
}

func (m *MockSubscriptionRepo) Settle(sub *repository.Subscription, walletID, reference string) (bool, error) {
	return false, nil
}

type MockPlanRepo struct {
	mock.Mock
}

func (m *MockPlanRepo) Insert(plan *repository.Plan) (string, error) {
	return "", nil
}

func (m *MockPlanRepo) Update(plan *repository.Plan) error {
	return nil
}

func (m *MockPlanRepo) GetOne(id string) (*repository.Plan, bool, error) {
	args := m.Called(id)
	return args.Get(0).(*repository.Plan), args.Bool(1), args.Error(2)
}

func (m *MockPlanRepo) GetAll() ([]repository.Plan, error) {
	return nil, nil
}

// MockAccrualPoster records posted credits, simulating the ledger's
// idempotency-key behavior.
type MockAccrualPoster struct {
	mu     sync.Mutex
	seen   map[string]money.Amount
	posted []string
}

func NewMockAccrualPoster() *MockAccrualPoster {
	return &MockAccrualPoster{seen: make(map[string]money.Amount)}
}

func (m *MockAccrualPoster) CreditAccrual(userID string, currency money.Currency, amount money.Amount, sourceRef, idempotencyKey string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.seen[idempotencyKey]; ok {
		return false, nil
	}

	m.seen[idempotencyKey] = amount
	m.posted = append(m.posted, idempotencyKey)
	return true, nil
}

// fakeConfigRepo backs the catalog snapshot without a database.
type fakeConfigRepo struct {
	configs []repository.PercentageConfig
}

func (f *fakeConfigRepo) Upsert(config *repository.PercentageConfig) error { return nil }

func (f *fakeConfigRepo) GetByKey(category, currency string) (*repository.PercentageConfig, bool, error) {
	for i := range f.configs {
		if f.configs[i].Category == category && f.configs[i].Currency == currency {
			return &f.configs[i], true, nil
		}
	}
	return nil, false, nil
}

func (f *fakeConfigRepo) GetAll() ([]repository.PercentageConfig, error) {
	return f.configs, nil
}

func goldSnapshotter() *catalog.Service {
	return catalog.New(&fakeConfigRepo{configs: []repository.PercentageConfig{{
		Category:      repository.PlanCategoryGold,
		Currency:      "INR",
		ProfitPercent: decimal.NewFromInt(9),
	}}}, nil)
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: true}
}

func activeSubscription() repository.Subscription {
	start := date(2025, time.June, 1)

	return repository.Subscription{
		ID:                  "sub-1",
		UserID:              "user-1",
		PlanID:              "plan-gold",
		CapitalAmount:       10000000, // 100000.00 INR
		Currency:            "INR",
		LockedProfitPercent: decimal.NewFromInt(9),
		LockInDays:          365,
		Cadence:             string(CadenceMonthly),
		LockInStart:         nullTime(start),
		LockInEnd:           nullTime(start.AddDate(0, 0, 365)),
		AccrualCursor:       nullTime(start),
		NextPeriodIndex:     0,
		Status:              repository.SubscriptionStatusActive,
	}
}

func newTestRunner(subRepo *MockSubscriptionRepo, planRepo *MockPlanRepo, poster *MockAccrualPoster, now time.Time) *Runner {
	return NewRunner(&Runner{
		SubscriptionRepo: subRepo,
		PlanRepo:         planRepo,
		Ledger:           poster,
		Catalog:          goldSnapshotter(),
		Logger:           slog.New(slog.NewTextHandler(io.Discard, nil)),
		PoolSize:         2,
		Now:              func() time.Time { return now },
	})
}

func TestRun_PostsOneCreditPerCompletedPeriod(t *testing.T) {
	sub := activeSubscription()
	now := date(2025, time.August, 10)

	subRepo := new(MockSubscriptionRepo)
	subRepo.On("DueForAccrual", now).Return([]repository.Subscription{sub}, nil)
	subRepo.On("AdvanceCursor", "sub-1", date(2025, time.June, 1), date(2025, time.July, 1), 1).Return(true, nil)
	subRepo.On("AdvanceCursor", "sub-1", date(2025, time.July, 1), date(2025, time.August, 1), 2).Return(true, nil)

	planRepo := new(MockPlanRepo)
	planRepo.On("GetOne", "plan-gold").Return(&repository.Plan{ID: "plan-gold", Category: repository.PlanCategoryGold}, true, nil)

	poster := NewMockAccrualPoster()

	runner := newTestRunner(subRepo, planRepo, poster, now)

	require.NoError(t, runner.Run())
	require.Equal(t, []string{"accrual:sub-1:0", "accrual:sub-1:1"}, poster.posted)

	// June has 30 days, July 31; each period is rounded independently.
	require.Equal(t, money.Amount(73973), poster.seen["accrual:sub-1:0"])
	require.Equal(t, money.Amount(76438), poster.seen["accrual:sub-1:1"])

	subRepo.AssertExpectations(t)
}

func TestRun_RerunIsIdempotent(t *testing.T) {
	sub := activeSubscription()
	now := date(2025, time.July, 10)

	subRepo := new(MockSubscriptionRepo)
	subRepo.On("DueForAccrual", now).Return([]repository.Subscription{sub}, nil)
	subRepo.On("AdvanceCursor", "sub-1", date(2025, time.June, 1), date(2025, time.July, 1), 1).Return(true, nil)

	planRepo := new(MockPlanRepo)
	planRepo.On("GetOne", "plan-gold").Return(&repository.Plan{ID: "plan-gold", Category: repository.PlanCategoryGold}, true, nil)

	poster := NewMockAccrualPoster()

	runner := newTestRunner(subRepo, planRepo, poster, now)

	// A crash after the credit but before the cursor advance leaves the
	// cursor behind; the rerun replays the same period against the same
	// idempotency key and the ledger reports a duplicate.
	require.NoError(t, runner.Run())
	require.NoError(t, runner.Run())

	require.Len(t, poster.posted, 1)
}

func TestRun_StopsOnStaleCursor(t *testing.T) {
	sub := activeSubscription()
	now := date(2025, time.September, 10)

	subRepo := new(MockSubscriptionRepo)
	subRepo.On("DueForAccrual", now).Return([]repository.Subscription{sub}, nil)
	// A concurrent run already advanced the cursor; this run must stop
	// after the first failed CAS instead of double-processing.
	subRepo.On("AdvanceCursor", "sub-1", date(2025, time.June, 1), date(2025, time.July, 1), 1).Return(false, nil).Once()

	planRepo := new(MockPlanRepo)
	planRepo.On("GetOne", "plan-gold").Return(&repository.Plan{ID: "plan-gold", Category: repository.PlanCategoryGold}, true, nil)

	poster := NewMockAccrualPoster()

	runner := newTestRunner(subRepo, planRepo, poster, now)

	require.NoError(t, runner.Run())
	require.Len(t, poster.posted, 1)

	subRepo.AssertExpectations(t)
	subRepo.AssertNumberOfCalls(t, "AdvanceCursor", 1)
}

func TestRun_FailsClosedWithoutPercentageConfig(t *testing.T) {
	sub := activeSubscription()
	sub.Currency = "USDT" // no USDT config in the snapshot
	now := date(2025, time.August, 10)

	subRepo := new(MockSubscriptionRepo)
	subRepo.On("DueForAccrual", now).Return([]repository.Subscription{sub}, nil)

	planRepo := new(MockPlanRepo)
	planRepo.On("GetOne", "plan-gold").Return(&repository.Plan{ID: "plan-gold", Category: repository.PlanCategoryGold}, true, nil)

	poster := NewMockAccrualPoster()

	runner := newTestRunner(subRepo, planRepo, poster, now)

	require.NoError(t, runner.Run())
	require.Empty(t, poster.posted)

	subRepo.AssertNotCalled(t, "AdvanceCursor", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
