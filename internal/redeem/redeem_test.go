package redeem

import (
	dctx "context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/BM-ACADEMY/alpha-sub001/internal/fault"
	"github.com/BM-ACADEMY/alpha-sub001/internal/money"
	"github.com/BM-ACADEMY/alpha-sub001/internal/repository"
)

// MockRedeemRepo implements RedeemRepository but only mocks the needed methods.
type MockRedeemRepo struct {
	mock.Mock
}

func (m *MockRedeemRepo) CreateWithHold(req *repository.RedeemRequest) (string, error) {
	args := m.Called(req)
	return args.String(0), args.Error(1)
}

func (m *MockRedeemRepo) GetOne(id string) (*repository.RedeemRequest, bool, error) {
	args := m.Called(id)
	return args.Get(0).(*repository.RedeemRequest), args.Bool(1), args.Error(2)
}

func (m *MockRedeemRepo) GetAllByUserId(userID string) ([]repository.RedeemRequest, error) {
	return nil, nil
}

func (m *MockRedeemRepo) ListByStatus(status string) ([]repository.RedeemRequest, error) {
	return nil, nil
}

func (m *MockRedeemRepo) Approve(id string, withdrawalFee, platformFee, netPayout int64, reference string) (*repository.RedeemRequest, error) {
	args := m.Called(id, withdrawalFee, platformFee, netPayout, reference)
	return args.Get(0).(*repository.RedeemRequest), args.Error(1)
}

func (m *MockRedeemRepo) Reject(id string) (*repository.RedeemRequest, error) {
	args := m.Called(id)
	return args.Get(0).(*repository.RedeemRequest), args.Error(1)
}

type MockWalletRepo struct {
	mock.Mock
}

func (m *MockWalletRepo) GetOrCreate(userID, currency string) (*repository.Wallet, error) {
	args := m.Called(userID, currency)
	return args.Get(0).(*repository.Wallet), args.Error(1)
}

func (m *MockWalletRepo) GetOne(id string) (*repository.Wallet, bool, error) {
	return nil, false, nil
}

func (m *MockWalletRepo) GetAllByUserId(userID string) ([]repository.Wallet, error) {
	return nil, nil
}

func (m *MockWalletRepo) AddCapital(walletID string, amount int64) error {
	return nil
}

type MockActivityRepo struct {
	mock.Mock
}

func (m *MockActivityRepo) Insert(log *repository.ActivityLog) (*repository.ActivityLog, error) {
	return log, nil
}

func (m *MockActivityRepo) GetAllByEntity(entity, entityID string) ([]repository.ActivityLog, error) {
	return nil, nil
}

type MockKyc struct {
	mock.Mock
}

func (m *MockKyc) IsVerified(ctx dctx.Context, userID string) (bool, error) {
	args := m.Called(ctx, userID)
	return args.Bool(0), args.Error(1)
}

func newTestService(redeemRepo *MockRedeemRepo, walletRepo *MockWalletRepo, kycClient *MockKyc) *Service {
	return NewService(&Service{
		RedeemRepo:   redeemRepo,
		WalletRepo:   walletRepo,
		ActivityRepo: new(MockActivityRepo),
		Kyc:          kycClient,
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func TestFees_INRSchedule(t *testing.T) {
	// 10000.00 INR: 3% withdrawal fee, 2% platform fee, 95% net.
	fees := Fees(money.CurrencyINR, money.Amount(1000000))

	require.Equal(t, money.Amount(30000), fees.WithdrawalFee)
	require.Equal(t, money.Amount(20000), fees.PlatformFee)
	require.Equal(t, money.Amount(950000), fees.NetPayout)
}

func TestFees_USDTHasNoFees(t *testing.T) {
	fees := Fees(money.CurrencyUSDT, money.Amount(10000))

	require.Equal(t, money.Amount(0), fees.WithdrawalFee)
	require.Equal(t, money.Amount(0), fees.PlatformFee)
	require.Equal(t, money.Amount(10000), fees.NetPayout)
}

func TestMinimumFor(t *testing.T) {
	require.Equal(t, money.Amount(100000), MinimumFor(money.CurrencyINR))
	require.Equal(t, money.Amount(1000), MinimumFor(money.CurrencyUSDT))
}

func TestSubmit_RejectsBelowMinimum(t *testing.T) {
	svc := newTestService(new(MockRedeemRepo), new(MockWalletRepo), new(MockKyc))

	_, err := svc.Submit(dctx.Background(), "user-1", "999.99", "INR")
	require.True(t, fault.IsValidation(err))

	_, err = svc.Submit(dctx.Background(), "user-1", "9.99", "USDT")
	require.True(t, fault.IsValidation(err))
}

func TestSubmit_RejectsUnsupportedCurrencyAndBadAmount(t *testing.T) {
	svc := newTestService(new(MockRedeemRepo), new(MockWalletRepo), new(MockKyc))

	_, err := svc.Submit(dctx.Background(), "user-1", "1000", "EUR")
	require.True(t, fault.IsValidation(err))

	_, err = svc.Submit(dctx.Background(), "user-1", "1000.005", "INR")
	require.True(t, fault.IsValidation(err))
}

func TestSubmit_RejectsUnverifiedKyc(t *testing.T) {
	kycClient := new(MockKyc)
	kycClient.On("IsVerified", mock.Anything, "user-1").Return(false, nil)

	svc := newTestService(new(MockRedeemRepo), new(MockWalletRepo), kycClient)

	_, err := svc.Submit(dctx.Background(), "user-1", "1000.00", "INR")
	require.True(t, fault.IsValidation(err))
}

func TestSubmit_MapsInsufficientRedeemableToValidation(t *testing.T) {
	kycClient := new(MockKyc)
	kycClient.On("IsVerified", mock.Anything, "user-1").Return(true, nil)

	walletRepo := new(MockWalletRepo)
	walletRepo.On("GetOrCreate", "user-1", "INR").Return(&repository.Wallet{ID: "wallet-1"}, nil)

	redeemRepo := new(MockRedeemRepo)
	redeemRepo.On("CreateWithHold", mock.Anything).Return("", repository.ErrInsufficientRedeemable)

	svc := newTestService(redeemRepo, walletRepo, kycClient)

	_, err := svc.Submit(dctx.Background(), "user-1", "1000.00", "INR")
	require.True(t, fault.IsValidation(err))
	require.ErrorIs(t, err, repository.ErrInsufficientRedeemable)
}

func TestSubmit_MapsSameDayDuplicateToConflict(t *testing.T) {
	kycClient := new(MockKyc)
	kycClient.On("IsVerified", mock.Anything, "user-1").Return(true, nil)

	walletRepo := new(MockWalletRepo)
	walletRepo.On("GetOrCreate", "user-1", "INR").Return(&repository.Wallet{ID: "wallet-1"}, nil)

	redeemRepo := new(MockRedeemRepo)
	redeemRepo.On("CreateWithHold", mock.Anything).Return("", repository.ErrDuplicateSameDay)

	svc := newTestService(redeemRepo, walletRepo, kycClient)

	_, err := svc.Submit(dctx.Background(), "user-1", "1000.00", "INR")
	require.True(t, fault.IsConflict(err))
}

func TestSubmit_CreatesHoldWithRequestedAmount(t *testing.T) {
	kycClient := new(MockKyc)
	kycClient.On("IsVerified", mock.Anything, "user-1").Return(true, nil)

	walletRepo := new(MockWalletRepo)
	walletRepo.On("GetOrCreate", "user-1", "INR").Return(&repository.Wallet{ID: "wallet-1"}, nil)

	created := &repository.RedeemRequest{
		ID:       "req-1",
		WalletID: "wallet-1",
		UserID:   "user-1",
		Amount:   150000,
		Currency: "INR",
		Status:   repository.RedeemStatusPending,
	}

	redeemRepo := new(MockRedeemRepo)
	redeemRepo.On("CreateWithHold", mock.MatchedBy(func(req *repository.RedeemRequest) bool {
		return req.WalletID == "wallet-1" && req.Amount == 150000 && req.Currency == "INR"
	})).Return("req-1", nil)
	redeemRepo.On("GetOne", "req-1").Return(created, true, nil)

	svc := newTestService(redeemRepo, walletRepo, kycClient)

	request, err := svc.Submit(dctx.Background(), "user-1", "1500.00", "INR")
	require.NoError(t, err)
	require.Equal(t, repository.RedeemStatusPending, request.Status)

	redeemRepo.AssertExpectations(t)
}

func TestApprove_AppliesFeeSchedule(t *testing.T) {
	pending := &repository.RedeemRequest{
		ID:       "req-1",
		WalletID: "wallet-1",
		UserID:   "user-1",
		Amount:   1000000,
		Currency: "INR",
		Status:   repository.RedeemStatusPending,
	}

	approved := *pending
	approved.Status = repository.RedeemStatusApproved
	approved.WithdrawalFee = 30000
	approved.PlatformFee = 20000
	approved.NetPayout = 950000

	redeemRepo := new(MockRedeemRepo)
	redeemRepo.On("GetOne", "req-1").Return(pending, true, nil)
	redeemRepo.On("Approve", "req-1", int64(30000), int64(20000), int64(950000), "bank-ref-9").Return(&approved, nil)

	svc := newTestService(redeemRepo, new(MockWalletRepo), new(MockKyc))

	decided, err := svc.Approve(dctx.Background(), "admin-1", "req-1", "bank-ref-9")
	require.NoError(t, err)
	require.Equal(t, repository.RedeemStatusApproved, decided.Status)

	redeemRepo.AssertExpectations(t)
}

func TestApprove_MapsDecidedRequestToConflict(t *testing.T) {
	pending := &repository.RedeemRequest{
		ID:       "req-1",
		Amount:   1000000,
		Currency: "INR",
	}

	redeemRepo := new(MockRedeemRepo)
	redeemRepo.On("GetOne", "req-1").Return(pending, true, nil)
	redeemRepo.On("Approve", "req-1", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return((*repository.RedeemRequest)(nil), repository.ErrRequestNotPending)

	svc := newTestService(redeemRepo, new(MockWalletRepo), new(MockKyc))

	_, err := svc.Approve(dctx.Background(), "admin-1", "req-1", "ref")
	require.True(t, fault.IsConflict(err))
}

func TestReject_ReleasesHold(t *testing.T) {
	pending := &repository.RedeemRequest{
		ID:       "req-1",
		Amount:   1000000,
		Currency: "INR",
	}

	rejected := *pending
	rejected.Status = repository.RedeemStatusRejected

	redeemRepo := new(MockRedeemRepo)
	redeemRepo.On("GetOne", "req-1").Return(pending, true, nil)
	redeemRepo.On("Reject", "req-1").Return(&rejected, nil)

	svc := newTestService(redeemRepo, new(MockWalletRepo), new(MockKyc))

	decided, err := svc.Reject(dctx.Background(), "admin-1", "req-1")
	require.NoError(t, err)
	require.Equal(t, repository.RedeemStatusRejected, decided.Status)
	require.Equal(t, int64(0), decided.WithdrawalFee)
	require.Equal(t, int64(0), decided.PlatformFee)
}

func TestNotFoundRequest(t *testing.T) {
	redeemRepo := new(MockRedeemRepo)
	redeemRepo.On("GetOne", "missing").Return((*repository.RedeemRequest)(nil), false, nil)

	svc := newTestService(redeemRepo, new(MockWalletRepo), new(MockKyc))

	_, err := svc.Approve(dctx.Background(), "admin-1", "missing", "ref")
	require.True(t, fault.IsNotFound(err))

	_, err = svc.Reject(dctx.Background(), "admin-1", "missing")
	require.True(t, fault.IsNotFound(err))
}
