// Package redeem implements the withdrawal workflow: request-time
// validation with a hold against the redeemable balance, then a single
// terminal admin decision that either debits the wallet or releases the
// hold.
package redeem

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/BM-ACADEMY/alpha-sub001/internal/fault"
	"github.com/BM-ACADEMY/alpha-sub001/internal/metrics"
	"github.com/BM-ACADEMY/alpha-sub001/internal/money"
	"github.com/BM-ACADEMY/alpha-sub001/internal/repository"
	"github.com/BM-ACADEMY/alpha-sub001/internal/stream"
	"github.com/shopspring/decimal"
)

// TopicRedeemDecided fans out decisions to the notification worker.
// Delivery is fire-and-forget; the decision itself never waits on it.
const TopicRedeemDecided = "redeem.decided"

type RedeemDecidedEvent struct {
	RequestID           string `json:"request_id"`
	UserID              string `json:"user_id"`
	Status              string `json:"status"`
	Amount              string `json:"amount"`
	WithdrawalFee       string `json:"withdrawal_fee"`
	PlatformFee         string `json:"platform_fee"`
	NetPayout           string `json:"net_payout"`
	Currency            string `json:"currency"`
	SettlementReference string `json:"settlement_reference"`
}

// Minimum request amounts per currency, in minor units.
var minimums = map[money.Currency]money.Amount{
	money.CurrencyINR:  100000, // 1000.00 INR
	money.CurrencyUSDT: 1000,   // 10.00 USDT
}

// Fee schedule. Stable-token withdrawals are fee-free; local currency pays
// a 3% withdrawal fee and a 2% platform fee, both on the requested amount.
var (
	withdrawalFeePercentINR = decimal.NewFromInt(3)
	platformFeePercentINR   = decimal.NewFromInt(2)
)

type FeeBreakdown struct {
	WithdrawalFee money.Amount
	PlatformFee   money.Amount
	NetPayout     money.Amount
}

func Fees(currency money.Currency, amount money.Amount) FeeBreakdown {
	if currency != money.CurrencyINR {
		return FeeBreakdown{NetPayout: amount}
	}

	withdrawalFee := amount.Percent(withdrawalFeePercentINR)
	platformFee := amount.Percent(platformFeePercentINR)

	return FeeBreakdown{
		WithdrawalFee: withdrawalFee,
		PlatformFee:   platformFee,
		NetPayout:     amount - withdrawalFee - platformFee,
	}
}

func MinimumFor(currency money.Currency) money.Amount {
	return minimums[currency]
}

// KycVerifier is the external identity collaborator. The engine never
// stores KYC state.
type KycVerifier interface {
	IsVerified(ctx context.Context, userID string) (bool, error)
}

type Service struct {
	RedeemRepo   repository.RedeemRepository
	WalletRepo   repository.WalletRepository
	ActivityRepo repository.ActivityRepository
	Kyc          KycVerifier
	Producer     stream.Producer
	Logger       *slog.Logger
}

func NewService(s *Service) *Service {
	return s
}

// Submit validates and creates a redemption request. All checks happen
// before creation: a request that cannot pass is refused outright, never
// parked in pending for a later rejection.
func (s *Service) Submit(ctx context.Context, userID, amountValue, currencyCode string) (*repository.RedeemRequest, error) {
	currency, err := money.ParseCurrency(currencyCode)
	if err != nil {
		return nil, fault.Wrap(fault.KindValidation, err)
	}

	amount, err := money.Parse(amountValue)
	if err != nil || !amount.IsPositive() {
		return nil, fault.Wrap(fault.KindValidation, money.ErrInvalidAmount)
	}

	if minimum := MinimumFor(currency); amount < minimum {
		return nil, fault.New(fault.KindValidation, "minimum redemption for %s is %s", currency, minimum)
	}

	verified, err := s.Kyc.IsVerified(ctx, userID)
	if err != nil {
		return nil, fault.Wrap(fault.KindTransient, err)
	}
	if !verified {
		return nil, fault.New(fault.KindValidation, "account must complete KYC verification before redeeming")
	}

	wallet, err := s.WalletRepo.GetOrCreate(userID, currency.String())
	if err != nil {
		return nil, err
	}

	id, err := s.RedeemRepo.CreateWithHold(&repository.RedeemRequest{
		WalletID: wallet.ID,
		UserID:   userID,
		Amount:   int64(amount),
		Currency: currency.String(),
	})
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrInsufficientRedeemable):
			return nil, fault.Wrap(fault.KindValidation, err)
		case errors.Is(err, repository.ErrDuplicateSameDay):
			return nil, fault.Wrap(fault.KindConflict, err)
		default:
			return nil, err
		}
	}

	s.logActivity(userID, id, repository.ActivityLogRedeemRequestedDescription)

	request, _, err := s.RedeemRepo.GetOne(id)
	if err != nil {
		return nil, err
	}

	return request, nil
}

// Approve applies the fee schedule and posts the RedeemDebit. The balance
// is re-validated inside the repository transaction: if the wallet changed
// incompatibly since creation, the decision fails with a conflict instead
// of overdrawing.
func (s *Service) Approve(ctx context.Context, adminID, requestID, settlementReference string) (*repository.RedeemRequest, error) {
	request, found, err := s.RedeemRepo.GetOne(requestID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fault.New(fault.KindNotFound, "redeem request %s not found", requestID)
	}

	currency, err := money.ParseCurrency(request.Currency)
	if err != nil {
		return nil, err
	}

	fees := Fees(currency, money.Amount(request.Amount))

	decided, err := s.RedeemRepo.Approve(requestID,
		int64(fees.WithdrawalFee),
		int64(fees.PlatformFee),
		int64(fees.NetPayout),
		settlementReference,
	)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrRequestNotPending):
			return nil, fault.Wrap(fault.KindConflict, err)
		case errors.Is(err, repository.ErrInsufficientRedeemable):
			return nil, fault.Wrap(fault.KindConflict, err)
		default:
			return nil, err
		}
	}

	metrics.RedeemDecisions.WithLabelValues(repository.RedeemStatusApproved).Inc()
	s.logActivity(adminID, requestID, repository.ActivityLogRedeemApprovedDescription)
	s.publishDecision(decided)

	return decided, nil
}

// Reject releases the hold. The wallet was never debited, so there is
// nothing to reverse in the ledger.
func (s *Service) Reject(ctx context.Context, adminID, requestID string) (*repository.RedeemRequest, error) {
	_, found, err := s.RedeemRepo.GetOne(requestID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fault.New(fault.KindNotFound, "redeem request %s not found", requestID)
	}

	decided, err := s.RedeemRepo.Reject(requestID)
	if err != nil {
		if errors.Is(err, repository.ErrRequestNotPending) {
			return nil, fault.Wrap(fault.KindConflict, err)
		}
		return nil, err
	}

	metrics.RedeemDecisions.WithLabelValues(repository.RedeemStatusRejected).Inc()
	s.logActivity(adminID, requestID, repository.ActivityLogRedeemRejectedDescription)
	s.publishDecision(decided)

	return decided, nil
}

func (s *Service) logActivity(userID, requestID, description string) {
	_, err := s.ActivityRepo.Insert(&repository.ActivityLog{
		UserID:      userID,
		Entity:      repository.ActivityLogRedeemEntity,
		EntityId:    requestID,
		Description: description,
	})
	if err != nil {
		s.Logger.Error("logging redeem activity", "request_id", requestID, "error", err)
	}
}

func (s *Service) publishDecision(request *repository.RedeemRequest) {
	if s.Producer == nil {
		return
	}

	event := &RedeemDecidedEvent{
		RequestID:           request.ID,
		UserID:              request.UserID,
		Status:              request.Status,
		Amount:              money.Amount(request.Amount).String(),
		WithdrawalFee:       money.Amount(request.WithdrawalFee).String(),
		PlatformFee:         money.Amount(request.PlatformFee).String(),
		NetPayout:           money.Amount(request.NetPayout).String(),
		Currency:            request.Currency,
		SettlementReference: request.SettlementReference.String,
	}

	message, err := json.Marshal(event)
	if err != nil {
		s.Logger.Error("encoding redeem.decided event", "request_id", request.ID, "error", err)
		return
	}

	if err := s.Producer.ProduceMessage(TopicRedeemDecided, string(message)); err != nil {
		s.Logger.Error("publishing redeem.decided event", "request_id", request.ID, "error", err)
	}
}
