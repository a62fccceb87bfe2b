package referral

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/BM-ACADEMY/alpha-sub001/internal/money"
	"github.com/BM-ACADEMY/alpha-sub001/internal/repository"
)

type MockEdgeFinder struct {
	mock.Mock
}

func (m *MockEdgeFinder) FindByReferredUser(referredUserID string) (*repository.ReferralEdge, bool, error) {
	args := m.Called(referredUserID)
	return args.Get(0).(*repository.ReferralEdge), args.Bool(1), args.Error(2)
}

type MockCreditPoster struct {
	mock.Mock
}

func (m *MockCreditPoster) CreditReferral(referrerUserID string, currency money.Currency, amount money.Amount, sourceRef, idempotencyKey string) (bool, error) {
	args := m.Called(referrerUserID, currency, amount, sourceRef, idempotencyKey)
	return args.Bool(0), args.Error(1)
}

func newTestDistributor(edges *MockEdgeFinder, poster *MockCreditPoster) *Distributor {
	return NewDistributor(edges, poster, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestDistribute_CreditsOnePercentInSameCurrency(t *testing.T) {
	edges := new(MockEdgeFinder)
	edges.On("FindByReferredUser", "user-referred").Return(&repository.ReferralEdge{
		ReferredUserID: "user-referred",
		ReferrerUserID: "user-referrer",
	}, true, nil)

	poster := new(MockCreditPoster)
	// 1% of 764.38 is 7.64.
	poster.On("CreditReferral", "user-referrer", money.CurrencyUSDT, money.Amount(764), "sub-1", "referral:sub-1:3").
		Return(true, nil)

	d := newTestDistributor(edges, poster)

	err := d.Distribute("user-referred", "sub-1", 3, money.Amount(76438), money.CurrencyUSDT)
	require.NoError(t, err)

	poster.AssertExpectations(t)
}

func TestDistribute_NoEdgeIsNoOp(t *testing.T) {
	edges := new(MockEdgeFinder)
	edges.On("FindByReferredUser", "user-alone").Return((*repository.ReferralEdge)(nil), false, nil)

	poster := new(MockCreditPoster)

	d := newTestDistributor(edges, poster)

	err := d.Distribute("user-alone", "sub-1", 0, money.Amount(100000), money.CurrencyINR)
	require.NoError(t, err)

	poster.AssertNotCalled(t, "CreditReferral", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestDistribute_SkipsZeroBonus(t *testing.T) {
	edges := new(MockEdgeFinder)
	edges.On("FindByReferredUser", "user-referred").Return(&repository.ReferralEdge{
		ReferredUserID: "user-referred",
		ReferrerUserID: "user-referrer",
	}, true, nil)

	poster := new(MockCreditPoster)

	d := newTestDistributor(edges, poster)

	// 1% of 0.00 never reaches the ledger.
	err := d.Distribute("user-referred", "sub-1", 0, money.Amount(0), money.CurrencyINR)
	require.NoError(t, err)

	poster.AssertNotCalled(t, "CreditReferral", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestDistribute_RepeatedDeliveryUsesSameKey(t *testing.T) {
	edges := new(MockEdgeFinder)
	edges.On("FindByReferredUser", "user-referred").Return(&repository.ReferralEdge{
		ReferredUserID: "user-referred",
		ReferrerUserID: "user-referrer",
	}, true, nil)

	poster := new(MockCreditPoster)
	// Second delivery of the same event hits the same idempotency key and
	// reports not-inserted; the distributor treats that as success.
	poster.On("CreditReferral", "user-referrer", money.CurrencyINR, money.Amount(1000), "sub-1", "referral:sub-1:5").
		Return(true, nil).Once()
	poster.On("CreditReferral", "user-referrer", money.CurrencyINR, money.Amount(1000), "sub-1", "referral:sub-1:5").
		Return(false, nil).Once()

	d := newTestDistributor(edges, poster)

	require.NoError(t, d.Distribute("user-referred", "sub-1", 5, money.Amount(100000), money.CurrencyINR))
	require.NoError(t, d.Distribute("user-referred", "sub-1", 5, money.Amount(100000), money.CurrencyINR))

	poster.AssertExpectations(t)
}
