// Package report is the read model over the subscription store and the
// wallet ledger. It never writes, and it tolerates running while an accrual
// batch is mid-flight; rollups are eventually consistent with the scheduler.
package report

import (
	"github.com/BM-ACADEMY/alpha-sub001/internal/money"
	"github.com/BM-ACADEMY/alpha-sub001/internal/repository"
)

type ExpirationRow struct {
	WindowStart string `json:"window_start"`
	Currency    string `json:"currency"`
	Count       int    `json:"count"`
	Capital     string `json:"capital"`
}

type SettlementRow struct {
	Currency string `json:"currency"`
	Count    int    `json:"count"`
	Capital  string `json:"capital"`
}

type CurrencySplitRow struct {
	Currency      string `json:"currency"`
	ActiveCount   int    `json:"active_count"`
	ActiveCapital string `json:"active_capital"`
	AccruedProfit string `json:"accrued_profit"`
	RedeemedOut   string `json:"redeemed_out"`
}

type Service struct {
	ReportRepo repository.ReportRepository
}

func NewService(reportRepo repository.ReportRepository) *Service {
	return &Service{ReportRepo: reportRepo}
}

func (s *Service) Expirations(window string) ([]ExpirationRow, error) {
	buckets, err := s.ReportRepo.ExpirationRollup(window)
	if err != nil {
		return nil, err
	}

	rows := make([]ExpirationRow, len(buckets))
	for i, bucket := range buckets {
		rows[i] = ExpirationRow{
			WindowStart: bucket.Bucket.Format("2006-01-02"),
			Currency:    bucket.Currency,
			Count:       bucket.Count,
			Capital:     money.Amount(bucket.Capital).String(),
		}
	}

	return rows, nil
}

func (s *Service) Settlements() ([]SettlementRow, error) {
	buckets, err := s.ReportRepo.SettlementRollup()
	if err != nil {
		return nil, err
	}

	rows := make([]SettlementRow, len(buckets))
	for i, bucket := range buckets {
		rows[i] = SettlementRow{
			Currency: bucket.Currency,
			Count:    bucket.Count,
			Capital:  money.Amount(bucket.Capital).String(),
		}
	}

	return rows, nil
}

func (s *Service) CurrencySplits() ([]CurrencySplitRow, error) {
	splits, err := s.ReportRepo.CurrencySplits()
	if err != nil {
		return nil, err
	}

	rows := make([]CurrencySplitRow, len(splits))
	for i, split := range splits {
		rows[i] = CurrencySplitRow{
			Currency:      split.Currency,
			ActiveCount:   split.ActiveCount,
			ActiveCapital: money.Amount(split.ActiveCapital).String(),
			AccruedProfit: money.Amount(split.AccruedProfit).String(),
			RedeemedOut:   money.Amount(split.RedeemedOut).String(),
		}
	}

	return rows, nil
}
