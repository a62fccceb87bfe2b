package ledger

import (
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/BM-ACADEMY/alpha-sub001/internal/money"
	"github.com/BM-ACADEMY/alpha-sub001/internal/repository"
)

type MockWalletRepo struct {
	mock.Mock
}

func (m *MockWalletRepo) GetOrCreate(userID, currency string) (*repository.Wallet, error) {
	args := m.Called(userID, currency)
	return args.Get(0).(*repository.Wallet), args.Error(1)
}

func (m *MockWalletRepo) GetOne(id string) (*repository.Wallet, bool, error) {
	args := m.Called(id)
	return args.Get(0).(*repository.Wallet), args.Bool(1), args.Error(2)
}

func (m *MockWalletRepo) GetAllByUserId(userID string) ([]repository.Wallet, error) {
	return nil, nil
}

func (m *MockWalletRepo) AddCapital(walletID string, amount int64) error {
	return nil
}

type MockLedgerRepo struct {
	mock.Mock
}

func (m *MockLedgerRepo) ApplyCredit(txn *repository.LedgerTransaction) (bool, error) {
	args := m.Called(txn)
	return args.Bool(0), args.Error(1)
}

func (m *MockLedgerRepo) Replay(walletID string) (*repository.ReplayBalances, error) {
	args := m.Called(walletID)
	return args.Get(0).(*repository.ReplayBalances), args.Error(1)
}

func (m *MockLedgerRepo) History(walletID string, page, pageSize int) ([]repository.LedgerTransaction, int, error) {
	return nil, 0, nil
}

func TestCreditAccrual_AppendsTypedTransaction(t *testing.T) {
	walletRepo := new(MockWalletRepo)
	ledgerRepo := new(MockLedgerRepo)
	svc := New(walletRepo, ledgerRepo)

	walletRepo.On("GetOrCreate", "user-1", "INR").Return(&repository.Wallet{ID: "wallet-1"}, nil)
	ledgerRepo.On("ApplyCredit", mock.MatchedBy(func(txn *repository.LedgerTransaction) bool {
		return txn.WalletID == "wallet-1" &&
			txn.Type == repository.LedgerTypeAccrualCredit &&
			txn.Amount == 76438 &&
			txn.IdempotencyKey == "accrual:sub-1:3"
	})).Return(true, nil)

	inserted, err := svc.CreditAccrual("user-1", money.CurrencyINR, money.Amount(76438), "sub-1", "accrual:sub-1:3")

	require.NoError(t, err)
	require.True(t, inserted)
}

func TestCreditAccrual_DuplicateKeyIsNoOp(t *testing.T) {
	walletRepo := new(MockWalletRepo)
	ledgerRepo := new(MockLedgerRepo)
	svc := New(walletRepo, ledgerRepo)

	walletRepo.On("GetOrCreate", "user-1", "INR").Return(&repository.Wallet{ID: "wallet-1"}, nil)
	ledgerRepo.On("ApplyCredit", mock.Anything).Return(false, nil)

	inserted, err := svc.CreditAccrual("user-1", money.CurrencyINR, money.Amount(76438), "sub-1", "accrual:sub-1:3")

	require.NoError(t, err)
	require.False(t, inserted)
}

func TestCreditReferral_RejectsNegativeAmount(t *testing.T) {
	svc := New(new(MockWalletRepo), new(MockLedgerRepo))

	_, err := svc.CreditReferral("referrer-1", money.CurrencyINR, money.Amount(-1), "sub-1", "referral:sub-1:0")

	require.Error(t, err)
}

func TestAudit_ReplayMatchesMaterializedColumns(t *testing.T) {
	walletRepo := new(MockWalletRepo)
	ledgerRepo := new(MockLedgerRepo)
	svc := New(walletRepo, ledgerRepo)

	walletRepo.On("GetOne", "wallet-1").Return(&repository.Wallet{
		ID:               "wallet-1",
		AccruedProfit:    76438,
		ReferralEarnings: 764,
		RedeemedOut:      50000,
	}, true, nil)
	ledgerRepo.On("Replay", "wallet-1").Return(&repository.ReplayBalances{
		AccruedProfit:    76438,
		ReferralEarnings: 764,
		RedeemedOut:      50000,
	}, nil)

	result, err := svc.Audit("wallet-1")

	require.NoError(t, err)
	require.True(t, result.Consistent)
	require.Equal(t, "764.38", result.AccruedProfit.String())
	require.Equal(t, "7.64", result.ReferralEarnings.String())
}

func TestAudit_DetectsDivergedWallet(t *testing.T) {
	walletRepo := new(MockWalletRepo)
	ledgerRepo := new(MockLedgerRepo)
	svc := New(walletRepo, ledgerRepo)

	walletRepo.On("GetOne", "wallet-1").Return(&repository.Wallet{
		ID:            "wallet-1",
		AccruedProfit: 76438,
	}, true, nil)
	ledgerRepo.On("Replay", "wallet-1").Return(&repository.ReplayBalances{
		AccruedProfit: 76400,
	}, nil)

	result, err := svc.Audit("wallet-1")

	require.NoError(t, err)
	require.False(t, result.Consistent)
}
