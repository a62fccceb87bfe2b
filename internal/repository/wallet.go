package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
)

// Wallet is a materialized view over the ledger. The transaction log is the
// source of truth for the profit, referral and redeemed components; the
// capital principal reconciles against the subscription store.
type Wallet struct {
	ID               string       `db:"id"`
	UserID           string       `db:"user_id"`
	Currency         string       `db:"currency"`
	CapitalPrincipal int64        `db:"capital_principal"`
	AccruedProfit    int64        `db:"accrued_profit"`
	ReferralEarnings int64        `db:"referral_earnings"`
	RedeemedOut      int64        `db:"redeemed_out"`
	HeldAmount       int64        `db:"held_amount"`
	CreatedAt        time.Time    `db:"created_at"`
	UpdatedAt        sql.NullTime `db:"updated_at"`
}

// TotalPoints is capital + accrued profit + referral earnings - redeemed out.
func (w *Wallet) TotalPoints() int64 {
	return w.CapitalPrincipal + w.AccruedProfit + w.ReferralEarnings - w.RedeemedOut
}

// RedeemablePoints is the surplus over the locked capital, minus holds for
// pending redemption requests, floored at zero. Capital itself is never
// redeemable.
func (w *Wallet) RedeemablePoints() int64 {
	redeemable := w.TotalPoints() - w.CapitalPrincipal - w.HeldAmount
	if redeemable < 0 {
		return 0
	}
	return redeemable
}

type WalletRepository interface {
	GetOrCreate(userID, currency string) (*Wallet, error)
	GetOne(id string) (*Wallet, bool, error)
	GetAllByUserId(userID string) ([]Wallet, error)
	AddCapital(walletID string, amount int64) error
}

type WalletRepositoryImpl struct {
	db *sqlx.DB
}

func NewWalletRepository(db *sqlx.DB) WalletRepository {
	return &WalletRepositoryImpl{db: db}
}

func (repo *WalletRepositoryImpl) GetOrCreate(userID, currency string) (*Wallet, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	var wallet Wallet

	query := `
		INSERT INTO wallets (user_id, currency)
		VALUES ($1, $2)
		ON CONFLICT (user_id, currency) DO UPDATE SET user_id=EXCLUDED.user_id
		RETURNING *`

	err := repo.db.GetContext(ctx, &wallet, query, userID, currency)
	if err != nil {
		return nil, err
	}

	return &wallet, nil
}

func (repo *WalletRepositoryImpl) GetOne(id string) (*Wallet, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	var wallet Wallet

	query := `
        SELECT * FROM wallets WHERE id=$1`

	err := repo.db.GetContext(ctx, &wallet, query, id)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}

	return &wallet, true, nil
}

func (repo *WalletRepositoryImpl) GetAllByUserId(userID string) ([]Wallet, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	var wallets []Wallet

	query := `
        SELECT * FROM wallets WHERE user_id=$1 ORDER BY currency`

	err := repo.db.SelectContext(ctx, &wallets, query, userID)
	if err != nil {
		return nil, err
	}

	return wallets, nil
}

// AddCapital locks capital into the wallet principal when a subscription is
// activated. Capital moves are not ledgered; they reconcile against the
// subscription store.
func (repo *WalletRepositoryImpl) AddCapital(walletID string, amount int64) error {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	query := `
		UPDATE wallets SET capital_principal=capital_principal+$1, updated_at=NOW() WHERE id=$2`

	_, err := repo.db.ExecContext(ctx, query, amount, walletID)
	return err
}
