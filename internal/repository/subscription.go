package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

type Subscription struct {
	ID                  string          `db:"id"`
	UserID              string          `db:"user_id"`
	PlanID              string          `db:"plan_id"`
	CapitalAmount       int64           `db:"capital_amount"`
	Currency            string          `db:"currency"`
	LockedProfitPercent decimal.Decimal `db:"locked_profit_percent"`
	LockInDays          int             `db:"lock_in_days"`
	Cadence             string          `db:"cadence"`
	LockInStart         sql.NullTime    `db:"lock_in_start"`
	LockInEnd           sql.NullTime    `db:"lock_in_end"`
	AccrualCursor       sql.NullTime    `db:"accrual_cursor"`
	NextPeriodIndex     int             `db:"next_period_index"`
	Status              string          `db:"status"`
	SettlementReference sql.NullString  `db:"settlement_reference"`
	SettledAt           sql.NullTime    `db:"settled_at"`
	CreatedAt           time.Time       `db:"created_at"`
	UpdatedAt           sql.NullTime    `db:"updated_at"`
}

const (
	SubscriptionStatusPending  = "pending"
	SubscriptionStatusActive   = "active"
	SubscriptionStatusExpired  = "expired"
	SubscriptionStatusRejected = "rejected"
	SubscriptionStatusSettled  = "settled"
)

type SubscriptionRepository interface {
	Insert(sub *Subscription) (string, error)
	GetOne(id string) (*Subscription, bool, error)
	GetAllByUserId(userID string) ([]Subscription, error)
	Activate(id string, lockedPercent decimal.Decimal, start, end time.Time) (bool, error)
	Reject(id string) (bool, error)
	DueForAccrual(now time.Time) ([]Subscription, error)
	AdvanceCursor(id string, prevCursor, nextCursor time.Time, nextIndex int) (bool, error)
	ExpireDue(now time.Time) (int64, error)
	SettlementCandidates() ([]Subscription, error)
	Settle(sub *Subscription, walletID, reference string) (bool, error)
}

type SubscriptionRepositoryImpl struct {
	db *sqlx.DB
}

func NewSubscriptionRepository(db *sqlx.DB) SubscriptionRepository {
	return &SubscriptionRepositoryImpl{db: db}
}

func (repo *SubscriptionRepositoryImpl) Insert(sub *Subscription) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	var id string

	query := `
		INSERT INTO subscriptions (user_id, plan_id, capital_amount, currency, lock_in_days, cadence)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`

	err := repo.db.GetContext(ctx, &id, query,
		sub.UserID,
		sub.PlanID,
		sub.CapitalAmount,
		sub.Currency,
		sub.LockInDays,
		sub.Cadence,
	)
	if err != nil {
		return "", err
	}

	return id, nil
}

func (repo *SubscriptionRepositoryImpl) GetOne(id string) (*Subscription, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	var sub Subscription

	query := `
        SELECT * FROM subscriptions WHERE id=$1`

	err := repo.db.GetContext(ctx, &sub, query, id)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}

	return &sub, true, nil
}

func (repo *SubscriptionRepositoryImpl) GetAllByUserId(userID string) ([]Subscription, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	var subs []Subscription

	query := `
        SELECT * FROM subscriptions WHERE user_id=$1 ORDER BY created_at DESC`

	err := repo.db.SelectContext(ctx, &subs, query, userID)
	if err != nil {
		return nil, err
	}

	return subs, nil
}

// Activate moves a pending subscription to active, locking in the profit
// percentage and the accrual window. The conditional WHERE makes a repeated
// verification callback a no-op instead of a reset of the accrual cursor.
func (repo *SubscriptionRepositoryImpl) Activate(id string, lockedPercent decimal.Decimal, start, end time.Time) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	query := `
		UPDATE subscriptions
		SET status=$1, locked_profit_percent=$2, lock_in_start=$3, lock_in_end=$4, accrual_cursor=$3, updated_at=NOW()
		WHERE id=$5 AND status=$6`

	result, err := repo.db.ExecContext(ctx, query,
		SubscriptionStatusActive,
		lockedPercent,
		start,
		end,
		id,
		SubscriptionStatusPending,
	)
	if err != nil {
		return false, err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return rows > 0, nil
}

func (repo *SubscriptionRepositoryImpl) Reject(id string) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	query := `
		UPDATE subscriptions SET status=$1, updated_at=NOW() WHERE id=$2 AND status=$3`

	result, err := repo.db.ExecContext(ctx, query,
		SubscriptionStatusRejected,
		id,
		SubscriptionStatusPending,
	)
	if err != nil {
		return false, err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return rows > 0, nil
}

// DueForAccrual returns active subscriptions whose cursor is behind the
// accrual horizon. The horizon is clamped to lock_in_end in SQL so that a
// subscription past its lock-in stops accruing even before the expiration
// sweep has moved it out of active.
func (repo *SubscriptionRepositoryImpl) DueForAccrual(now time.Time) ([]Subscription, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	var subs []Subscription

	query := `
        SELECT * FROM subscriptions
        WHERE status=$1 AND accrual_cursor IS NOT NULL AND accrual_cursor < LEAST($2, lock_in_end)
        ORDER BY accrual_cursor`

	err := repo.db.SelectContext(ctx, &subs, query, SubscriptionStatusActive, now)
	if err != nil {
		return nil, err
	}

	return subs, nil
}

// AdvanceCursor is a compare-and-swap on the accrual cursor. Two concurrent
// runs over the same subscription serialize here: the loser sees zero rows
// affected and stops.
func (repo *SubscriptionRepositoryImpl) AdvanceCursor(id string, prevCursor, nextCursor time.Time, nextIndex int) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	query := `
		UPDATE subscriptions
		SET accrual_cursor=$1, next_period_index=$2, updated_at=NOW()
		WHERE id=$3 AND accrual_cursor=$4 AND status=$5`

	result, err := repo.db.ExecContext(ctx, query,
		nextCursor,
		nextIndex,
		id,
		prevCursor,
		SubscriptionStatusActive,
	)
	if err != nil {
		return false, err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return rows > 0, nil
}

// ExpireDue moves fully-accrued subscriptions past their lock-in end out of
// active. Subscriptions whose cursor has not yet reached lock_in_end are
// left for the accrual job to catch up first.
func (repo *SubscriptionRepositoryImpl) ExpireDue(now time.Time) (int64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	query := `
		UPDATE subscriptions
		SET status=$1, updated_at=NOW()
		WHERE status=$2 AND lock_in_end <= $3 AND accrual_cursor >= lock_in_end`

	result, err := repo.db.ExecContext(ctx, query,
		SubscriptionStatusExpired,
		SubscriptionStatusActive,
		now,
	)
	if err != nil {
		return 0, err
	}

	return result.RowsAffected()
}

func (repo *SubscriptionRepositoryImpl) SettlementCandidates() ([]Subscription, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	var subs []Subscription

	query := `
        SELECT * FROM subscriptions WHERE status=$1 ORDER BY lock_in_end`

	err := repo.db.SelectContext(ctx, &subs, query, SubscriptionStatusExpired)
	if err != nil {
		return nil, err
	}

	return subs, nil
}

// Settle releases the subscription's capital from the wallet principal and
// marks the subscription settled, in one transaction. The released capital
// becomes redeemable surplus; the wallet total is unchanged, so nothing is
// ledgered.
func (repo *SubscriptionRepositoryImpl) Settle(sub *Subscription, walletID, reference string) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, err
	}

	defer tx.Rollback()

	query := `
		UPDATE subscriptions
		SET status=$1, settlement_reference=$2, settled_at=NOW(), updated_at=NOW()
		WHERE id=$3 AND status=$4`

	result, err := tx.ExecContext(ctx, query,
		SubscriptionStatusSettled,
		reference,
		sub.ID,
		SubscriptionStatusExpired,
	)
	if err != nil {
		return false, err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	if rows == 0 {
		return false, nil
	}

	query = `
		UPDATE wallets
		SET capital_principal=capital_principal-$1, updated_at=NOW()
		WHERE id=$2 AND capital_principal >= $1`

	result, err = tx.ExecContext(ctx, query, sub.CapitalAmount, walletID)
	if err != nil {
		return false, err
	}

	rows, err = result.RowsAffected()
	if err != nil {
		return false, err
	}
	if rows == 0 {
		return false, nil
	}

	if err := tx.Commit(); err != nil {
		return false, err
	}

	return true, nil
}
