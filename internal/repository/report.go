package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// Report queries are pure read models. They tolerate running mid-accrual:
// the rollups are eventually consistent with the scheduler, never
// transactional with it.

type ExpirationBucket struct {
	Bucket   time.Time `db:"bucket"`
	Currency string    `db:"currency"`
	Count    int       `db:"count"`
	Capital  int64     `db:"capital"`
}

type SettlementBucket struct {
	Currency string `db:"currency"`
	Count    int    `db:"count"`
	Capital  int64  `db:"capital"`
}

type CurrencySplit struct {
	Currency      string `db:"currency"`
	ActiveCount   int    `db:"active_count"`
	ActiveCapital int64  `db:"active_capital"`
	AccruedProfit int64  `db:"accrued_profit"`
	RedeemedOut   int64  `db:"redeemed_out"`
}

type ReportRepository interface {
	ExpirationRollup(window string) ([]ExpirationBucket, error)
	SettlementRollup() ([]SettlementBucket, error)
	CurrencySplits() ([]CurrencySplit, error)
}

type ReportRepositoryImpl struct {
	db *sqlx.DB
}

func NewReportRepository(db *sqlx.DB) ReportRepository {
	return &ReportRepositoryImpl{db: db}
}

// ExpirationRollup groups upcoming lock-in expirations by week or month and
// by currency.
func (repo *ReportRepositoryImpl) ExpirationRollup(window string) ([]ExpirationBucket, error) {
	if window != "week" && window != "month" {
		return nil, fmt.Errorf("unsupported rollup window %q", window)
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	var buckets []ExpirationBucket

	// window is validated above; it is never caller-controlled SQL.
	query := fmt.Sprintf(`
        SELECT date_trunc('%s', lock_in_end) AS bucket, currency,
            COUNT(*) AS count, COALESCE(SUM(capital_amount), 0) AS capital
        FROM subscriptions
        WHERE status IN ($1, $2)
        GROUP BY bucket, currency
        ORDER BY bucket, currency`, window)

	err := repo.db.SelectContext(ctx, &buckets, query,
		SubscriptionStatusActive,
		SubscriptionStatusExpired,
	)
	if err != nil {
		return nil, err
	}

	return buckets, nil
}

// SettlementRollup summarizes expired subscriptions that have not yet been
// settled, by currency.
func (repo *ReportRepositoryImpl) SettlementRollup() ([]SettlementBucket, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	var buckets []SettlementBucket

	query := `
        SELECT currency, COUNT(*) AS count, COALESCE(SUM(capital_amount), 0) AS capital
        FROM subscriptions
        WHERE status=$1
        GROUP BY currency
        ORDER BY currency`

	err := repo.db.SelectContext(ctx, &buckets, query, SubscriptionStatusExpired)
	if err != nil {
		return nil, err
	}

	return buckets, nil
}

func (repo *ReportRepositoryImpl) CurrencySplits() ([]CurrencySplit, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	var splits []CurrencySplit

	query := `
        SELECT s.currency,
            COUNT(*) FILTER (WHERE s.status = $1) AS active_count,
            COALESCE(SUM(s.capital_amount) FILTER (WHERE s.status = $1), 0) AS active_capital,
            COALESCE(w.accrued_profit, 0) AS accrued_profit,
            COALESCE(w.redeemed_out, 0) AS redeemed_out
        FROM subscriptions s
        LEFT JOIN (
            SELECT currency, SUM(accrued_profit) AS accrued_profit, SUM(redeemed_out) AS redeemed_out
            FROM wallets GROUP BY currency
        ) w ON w.currency = s.currency
        GROUP BY s.currency, w.accrued_profit, w.redeemed_out
        ORDER BY s.currency`

	err := repo.db.SelectContext(ctx, &splits, query, SubscriptionStatusActive)
	if err != nil {
		return nil, err
	}

	return splits, nil
}
