package catalog

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/BM-ACADEMY/alpha-sub001/internal/cache"
	"github.com/BM-ACADEMY/alpha-sub001/internal/fault"
	"github.com/BM-ACADEMY/alpha-sub001/internal/money"
	"github.com/BM-ACADEMY/alpha-sub001/internal/repository"
)

type MockConfigRepo struct {
	mock.Mock
}

func (m *MockConfigRepo) Upsert(config *repository.PercentageConfig) error {
	return nil
}

func (m *MockConfigRepo) GetByKey(category, currency string) (*repository.PercentageConfig, bool, error) {
	args := m.Called(category, currency)
	return args.Get(0).(*repository.PercentageConfig), args.Bool(1), args.Error(2)
}

func (m *MockConfigRepo) GetAll() ([]repository.PercentageConfig, error) {
	args := m.Called()
	return args.Get(0).([]repository.PercentageConfig), args.Error(1)
}

// memoryStore is an in-process stand-in for the redis cache.
type memoryStore struct {
	values map[string]string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{values: make(map[string]string)}
}

func (s *memoryStore) Get(key string) (string, error) {
	value, ok := s.values[key]
	if !ok {
		return "", cache.ErrMiss
	}
	return value, nil
}

func (s *memoryStore) Set(key string, value string, expiration time.Duration) error {
	s.values[key] = value
	return nil
}

func (s *memoryStore) Delete(key string) error {
	delete(s.values, key)
	return nil
}

func goldINRConfig() *repository.PercentageConfig {
	return &repository.PercentageConfig{
		Category:             repository.PlanCategoryGold,
		Currency:             "INR",
		ProfitPercent:        decimal.NewFromInt(9),
		WithdrawalFeePercent: decimal.NewFromInt(3),
		PlatformFeePercent:   decimal.NewFromInt(2),
	}
}

func TestResolvePercentage_ReadsRepositoryThenCaches(t *testing.T) {
	configRepo := new(MockConfigRepo)
	configRepo.On("GetByKey", repository.PlanCategoryGold, "INR").Return(goldINRConfig(), true, nil).Once()

	store := newMemoryStore()
	svc := New(configRepo, store)

	first, err := svc.ResolvePercentage(repository.PlanCategoryGold, money.CurrencyINR)
	require.NoError(t, err)
	require.True(t, first.Profit.Equal(decimal.NewFromInt(9)))

	// Second resolve is served from the cache; the repository expectation
	// above only allows one call.
	second, err := svc.ResolvePercentage(repository.PlanCategoryGold, money.CurrencyINR)
	require.NoError(t, err)
	require.True(t, second.WithdrawalFee.Equal(decimal.NewFromInt(3)))

	configRepo.AssertExpectations(t)
}

func TestResolvePercentage_FailsClosedOnMissingConfig(t *testing.T) {
	configRepo := new(MockConfigRepo)
	configRepo.On("GetByKey", repository.PlanCategoryStarter, "USDT").
		Return((*repository.PercentageConfig)(nil), false, nil)

	svc := New(configRepo, newMemoryStore())

	_, err := svc.ResolvePercentage(repository.PlanCategoryStarter, money.CurrencyUSDT)
	require.True(t, fault.IsNotFound(err))
}

func TestInvalidate_DropsCachedEntry(t *testing.T) {
	configRepo := new(MockConfigRepo)
	configRepo.On("GetByKey", repository.PlanCategoryGold, "INR").Return(goldINRConfig(), true, nil).Twice()

	store := newMemoryStore()
	svc := New(configRepo, store)

	_, err := svc.ResolvePercentage(repository.PlanCategoryGold, money.CurrencyINR)
	require.NoError(t, err)

	svc.Invalidate(repository.PlanCategoryGold, money.CurrencyINR)

	_, err = svc.ResolvePercentage(repository.PlanCategoryGold, money.CurrencyINR)
	require.NoError(t, err)

	configRepo.AssertExpectations(t)
}

func TestSnapshot_ResolvesWithoutTouchingLiveCatalog(t *testing.T) {
	configRepo := new(MockConfigRepo)
	configRepo.On("GetAll").Return([]repository.PercentageConfig{*goldINRConfig()}, nil).Once()

	svc := New(configRepo, nil)

	snapshot, err := svc.Snapshot()
	require.NoError(t, err)

	percentages, err := snapshot.Resolve(repository.PlanCategoryGold, money.CurrencyINR)
	require.NoError(t, err)
	require.True(t, percentages.Profit.Equal(decimal.NewFromInt(9)))

	_, err = snapshot.Resolve(repository.PlanCategoryDiamond, money.CurrencyUSDT)
	require.True(t, fault.IsNotFound(err))

	configRepo.AssertExpectations(t)
}
