// Package ledger is the write path for wallet balances. Every credit flows
// through an idempotency-keyed append to the transaction log; the wallet row
// is only ever a materialized view of that log.
package ledger

import (
	"fmt"

	"github.com/BM-ACADEMY/alpha-sub001/internal/money"
	"github.com/BM-ACADEMY/alpha-sub001/internal/repository"
)

type Service struct {
	walletRepo repository.WalletRepository
	ledgerRepo repository.LedgerRepository
}

func New(walletRepo repository.WalletRepository, ledgerRepo repository.LedgerRepository) *Service {
	return &Service{
		walletRepo: walletRepo,
		ledgerRepo: ledgerRepo,
	}
}

// CreditAccrual posts one period's profit to the user's wallet. Re-posting
// with the same idempotency key reports inserted=false and changes nothing.
func (s *Service) CreditAccrual(userID string, currency money.Currency, amount money.Amount, sourceRef, idempotencyKey string) (bool, error) {
	return s.credit(repository.LedgerTypeAccrualCredit, userID, currency, amount, sourceRef, idempotencyKey)
}

// CreditReferral posts a referral bonus to the referrer's wallet, currency
// matched to the referred subscription.
func (s *Service) CreditReferral(referrerUserID string, currency money.Currency, amount money.Amount, sourceRef, idempotencyKey string) (bool, error) {
	return s.credit(repository.LedgerTypeReferralCredit, referrerUserID, currency, amount, sourceRef, idempotencyKey)
}

func (s *Service) credit(ledgerType, userID string, currency money.Currency, amount money.Amount, sourceRef, idempotencyKey string) (bool, error) {
	if amount < 0 {
		// There is no negative-profit model in this domain.
		return false, fmt.Errorf("credit amount must not be negative, got %d", amount)
	}

	wallet, err := s.walletRepo.GetOrCreate(userID, currency.String())
	if err != nil {
		return false, err
	}

	return s.ledgerRepo.ApplyCredit(&repository.LedgerTransaction{
		WalletID:        wallet.ID,
		Type:            ledgerType,
		Amount:          int64(amount),
		Currency:        currency.String(),
		SourceReference: sourceRef,
		IdempotencyKey:  idempotencyKey,
	})
}

// Audit replays the full transaction log for a wallet and compares it with
// the materialized columns. A mismatch means the log and the view have
// diverged; the repository refuses further writes in that state.
type AuditResult struct {
	WalletID         string
	Consistent       bool
	AccruedProfit    money.Amount
	ReferralEarnings money.Amount
	RedeemedOut      money.Amount
}

func (s *Service) Audit(walletID string) (*AuditResult, error) {
	wallet, found, err := s.walletRepo.GetOne(walletID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("wallet %s not found", walletID)
	}

	balances, err := s.ledgerRepo.Replay(walletID)
	if err != nil {
		return nil, err
	}

	return &AuditResult{
		WalletID:   walletID,
		Consistent: balances.AccruedProfit == wallet.AccruedProfit && balances.ReferralEarnings == wallet.ReferralEarnings && balances.RedeemedOut == wallet.RedeemedOut,

		AccruedProfit:    money.Amount(balances.AccruedProfit),
		ReferralEarnings: money.Amount(balances.ReferralEarnings),
		RedeemedOut:      money.Amount(balances.RedeemedOut),
	}, nil
}
