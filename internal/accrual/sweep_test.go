package accrual

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/BM-ACADEMY/alpha-sub001/internal/repository"
)

type MockSweepSubscriptionRepo struct {
	MockSubscriptionRepo
}

func (m *MockSweepSubscriptionRepo) ExpireDue(now time.Time) (int64, error) {
	args := m.Called(now)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockSweepSubscriptionRepo) SettlementCandidates() ([]repository.Subscription, error) {
	args := m.Called()
	return args.Get(0).([]repository.Subscription), args.Error(1)
}

func (m *MockSweepSubscriptionRepo) Settle(sub *repository.Subscription, walletID, reference string) (bool, error) {
	args := m.Called(sub, walletID, reference)
	return args.Bool(0), args.Error(1)
}

type MockSweepWalletRepo struct {
	mock.Mock
}

func (m *MockSweepWalletRepo) GetOrCreate(userID, currency string) (*repository.Wallet, error) {
	args := m.Called(userID, currency)
	return args.Get(0).(*repository.Wallet), args.Error(1)
}

func (m *MockSweepWalletRepo) GetOne(id string) (*repository.Wallet, bool, error) {
	return nil, false, nil
}

func (m *MockSweepWalletRepo) GetAllByUserId(userID string) ([]repository.Wallet, error) {
	return nil, nil
}

func (m *MockSweepWalletRepo) AddCapital(walletID string, amount int64) error {
	return nil
}

type MockSweepActivityRepo struct {
	mock.Mock
}

func (m *MockSweepActivityRepo) Insert(log *repository.ActivityLog) (*repository.ActivityLog, error) {
	args := m.Called(log)
	return log, args.Error(0)
}

func (m *MockSweepActivityRepo) GetAllByEntity(entity, entityID string) ([]repository.ActivityLog, error) {
	return nil, nil
}

func TestSweep_ExpiresAndSettles(t *testing.T) {
	now := date(2026, time.June, 2)
	sub := activeSubscription()
	sub.Status = repository.SubscriptionStatusExpired

	subRepo := new(MockSweepSubscriptionRepo)
	subRepo.On("ExpireDue", now).Return(int64(1), nil)
	subRepo.On("SettlementCandidates").Return([]repository.Subscription{sub}, nil)
	subRepo.On("Settle", mock.Anything, "wallet-1", mock.Anything).Return(true, nil)

	walletRepo := new(MockSweepWalletRepo)
	walletRepo.On("GetOrCreate", "user-1", "INR").Return(&repository.Wallet{ID: "wallet-1"}, nil)

	activityRepo := new(MockSweepActivityRepo)
	activityRepo.On("Insert", mock.MatchedBy(func(log *repository.ActivityLog) bool {
		return log.Entity == repository.ActivityLogSubscriptionEntity &&
			log.Description == repository.ActivityLogSubscriptionSettledDescription
	})).Return(nil)

	sweeper := NewSweeper(&Sweeper{
		SubscriptionRepo: subRepo,
		WalletRepo:       walletRepo,
		ActivityRepo:     activityRepo,
		Logger:           slog.New(slog.NewTextHandler(io.Discard, nil)),
		Now:              func() time.Time { return now },
	})

	require.NoError(t, sweeper.Run())

	subRepo.AssertExpectations(t)
	activityRepo.AssertExpectations(t)
}

func TestSweep_SkipsUnsettledCandidate(t *testing.T) {
	now := date(2026, time.June, 2)
	sub := activeSubscription()
	sub.Status = repository.SubscriptionStatusExpired

	subRepo := new(MockSweepSubscriptionRepo)
	subRepo.On("ExpireDue", now).Return(int64(0), nil)
	subRepo.On("SettlementCandidates").Return([]repository.Subscription{sub}, nil)
	// Concurrent sweep already settled it; no activity is logged.
	subRepo.On("Settle", mock.Anything, "wallet-1", mock.Anything).Return(false, nil)

	walletRepo := new(MockSweepWalletRepo)
	walletRepo.On("GetOrCreate", "user-1", "INR").Return(&repository.Wallet{ID: "wallet-1"}, nil)

	activityRepo := new(MockSweepActivityRepo)

	sweeper := NewSweeper(&Sweeper{
		SubscriptionRepo: subRepo,
		WalletRepo:       walletRepo,
		ActivityRepo:     activityRepo,
		Logger:           slog.New(slog.NewTextHandler(io.Discard, nil)),
		Now:              func() time.Time { return now },
	})

	require.NoError(t, sweeper.Run())

	activityRepo.AssertNotCalled(t, "Insert", mock.Anything)
}
