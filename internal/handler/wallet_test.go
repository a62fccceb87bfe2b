package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/BM-ACADEMY/alpha-sub001/internal/context"
	"github.com/BM-ACADEMY/alpha-sub001/internal/errHandler"
	"github.com/BM-ACADEMY/alpha-sub001/internal/repository"
)

// MockWalletRepo implements WalletRepository but only mocks the needed methods.
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
	args := m.Called(userID)
	return args.Get(0).([]repository.Wallet), args.Error(1)
}

func (m *MockWalletRepo) AddCapital(walletID string, amount int64) error {
	return nil
}

func testErrorHandler() *errHandler.ErrorHandler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return errHandler.New("", nil, logger, "http://localhost")
}

func TestHandleWalletSummary(t *testing.T) {
	// Arrange
	mockWalletRepo := new(MockWalletRepo)
	mockWalletRepo.On("GetAllByUserId", "user-1").Return([]repository.Wallet{
		{
			ID:               "wallet-inr",
			UserID:           "user-1",
			Currency:         "INR",
			CapitalPrincipal: 10000000,
			AccruedProfit:    73973,
			ReferralEarnings: 1000,
			RedeemedOut:      0,
			HeldAmount:       50000,
		},
	}, nil)

	h := NewWalletHandler(&WalletHandler{
		WalletRepo: mockWalletRepo,
		ErrHandler: testErrorHandler(),
	})

	req := httptest.NewRequest(http.MethodGet, "/wallet", nil)
	req = context.ContextSetAuthenticatedPrincipal(req, &context.Principal{UserID: "user-1"})
	rec := httptest.NewRecorder()

	// Act
	h.HandleWalletSummary(rec, req)

	// Assert
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Success bool                         `json:"success"`
		Data    []map[string]json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.True(t, body.Success)
	require.Len(t, body.Data, 1)

	wallet := body.Data[0]
	totals := map[string]string{}
	for _, field := range []string{"capital_principal", "total_points", "redeemable_points", "held_amount"} {
		var value string
		require.NoError(t, json.Unmarshal(wallet[field], &value), "field %s", field)
		totals[field] = value
	}

	require.Equal(t, "100000.00", totals["capital_principal"])
	// 100000 + 739.73 + 10.00 - 0
	require.Equal(t, "100749.73", totals["total_points"])
	// surplus 749.73 minus the 500.00 hold
	require.Equal(t, "249.73", totals["redeemable_points"])
	require.Equal(t, "500.00", totals["held_amount"])
}

func TestHandleWalletAudit_NotFound(t *testing.T) {
	mockWalletRepo := new(MockWalletRepo)
	mockWalletRepo.On("GetOne", "missing").Return((*repository.Wallet)(nil), false, nil)

	h := NewWalletHandler(&WalletHandler{
		WalletRepo: mockWalletRepo,
		ErrHandler: testErrorHandler(),
	})

	req := httptest.NewRequest(http.MethodGet, "/admin/wallets/missing/audit", nil)
	req.SetPathValue("id", "missing")
	rec := httptest.NewRecorder()

	h.HandleWalletAudit(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}
