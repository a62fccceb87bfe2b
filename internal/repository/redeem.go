package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
)

type RedeemRequest struct {
	ID                  string         `db:"id"`
	WalletID            string         `db:"wallet_id"`
	UserID              string         `db:"user_id"`
	Amount              int64          `db:"amount"`
	Currency            string         `db:"currency"`
	Status              string         `db:"status"`
	WithdrawalFee       int64          `db:"withdrawal_fee"`
	PlatformFee         int64          `db:"platform_fee"`
	NetPayout           int64          `db:"net_payout"`
	SettlementReference sql.NullString `db:"settlement_reference"`
	DecidedAt           sql.NullTime   `db:"decided_at"`
	CreatedAt           time.Time      `db:"created_at"`
	UpdatedAt           sql.NullTime   `db:"updated_at"`
}

const (
	RedeemStatusPending  = "pending"
	RedeemStatusApproved = "approved"
	RedeemStatusRejected = "rejected"
)

var (
	ErrInsufficientRedeemable = errors.New("redeemable balance is insufficient")
	ErrDuplicateSameDay       = errors.New("a redeem request was already submitted today")
	ErrRequestNotPending      = errors.New("redeem request has already been decided")
)

type RedeemRepository interface {
	// CreateWithHold validates against the live wallet under a row lock,
	// places the hold and inserts the request atomically. Two concurrent
	// requests against the same wallet serialize on the lock, so they can
	// never jointly pass the balance check.
	CreateWithHold(req *RedeemRequest) (string, error)
	GetOne(id string) (*RedeemRequest, bool, error)
	GetAllByUserId(userID string) ([]RedeemRequest, error)
	ListByStatus(status string) ([]RedeemRequest, error)
	// Approve re-validates the balance, posts the RedeemDebit, releases the
	// hold and flips the status in a single transaction.
	Approve(id string, withdrawalFee, platformFee, netPayout int64, reference string) (*RedeemRequest, error)
	// Reject releases the hold with no ledger mutation.
	Reject(id string) (*RedeemRequest, error)
}

type RedeemRepositoryImpl struct {
	db *sqlx.DB
}

func NewRedeemRepository(db *sqlx.DB) RedeemRepository {
	return &RedeemRepositoryImpl{db: db}
}

func (repo *RedeemRepositoryImpl) CreateWithHold(req *RedeemRequest) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return "", err
	}

	defer tx.Rollback()

	var wallet Wallet

	query := `
		SELECT * FROM wallets WHERE id=$1 FOR UPDATE`

	err = tx.GetContext(ctx, &wallet, query, req.WalletID)
	if err != nil {
		return "", err
	}

	if wallet.RedeemablePoints() < req.Amount {
		return "", ErrInsufficientRedeemable
	}

	var sameDay int

	query = `
        SELECT COUNT(*) FROM redeem_requests
        WHERE wallet_id=$1 AND created_at::date = NOW()::date`

	err = tx.GetContext(ctx, &sameDay, query, req.WalletID)
	if err != nil {
		return "", err
	}

	if sameDay > 0 {
		return "", ErrDuplicateSameDay
	}

	var id string

	query = `
		INSERT INTO redeem_requests (wallet_id, user_id, amount, currency)
		VALUES ($1, $2, $3, $4)
		RETURNING id`

	err = tx.GetContext(ctx, &id, query,
		req.WalletID,
		req.UserID,
		req.Amount,
		req.Currency,
	)
	if err != nil {
		return "", err
	}

	query = `
		UPDATE wallets SET held_amount=held_amount+$1, updated_at=NOW() WHERE id=$2`

	_, err = tx.ExecContext(ctx, query, req.Amount, req.WalletID)
	if err != nil {
		return "", err
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}

	return id, nil
}

func (repo *RedeemRepositoryImpl) GetOne(id string) (*RedeemRequest, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	var req RedeemRequest

	query := `
        SELECT * FROM redeem_requests WHERE id=$1`

	err := repo.db.GetContext(ctx, &req, query, id)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}

	return &req, true, nil
}

func (repo *RedeemRepositoryImpl) GetAllByUserId(userID string) ([]RedeemRequest, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	var reqs []RedeemRequest

	query := `
        SELECT * FROM redeem_requests WHERE user_id=$1 ORDER BY created_at DESC`

	err := repo.db.SelectContext(ctx, &reqs, query, userID)
	if err != nil {
		return nil, err
	}

	return reqs, nil
}

func (repo *RedeemRepositoryImpl) ListByStatus(status string) ([]RedeemRequest, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	var reqs []RedeemRequest

	query := `
        SELECT * FROM redeem_requests WHERE status=$1 ORDER BY created_at`

	err := repo.db.SelectContext(ctx, &reqs, query, status)
	if err != nil {
		return nil, err
	}

	return reqs, nil
}

func (repo *RedeemRepositoryImpl) Approve(id string, withdrawalFee, platformFee, netPayout int64, reference string) (*RedeemRequest, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}

	defer tx.Rollback()

	var req RedeemRequest

	query := `
		SELECT * FROM redeem_requests WHERE id=$1 FOR UPDATE`

	err = tx.GetContext(ctx, &req, query, id)
	if err != nil {
		return nil, err
	}

	if req.Status != RedeemStatusPending {
		return nil, ErrRequestNotPending
	}

	var wallet Wallet

	query = `
		SELECT * FROM wallets WHERE id=$1 FOR UPDATE`

	err = tx.GetContext(ctx, &wallet, query, req.WalletID)
	if err != nil {
		return nil, err
	}

	if err := verifyReplay(ctx, tx, &wallet); err != nil {
		return nil, err
	}

	// Re-validate at decision time. The hold already reserves this request's
	// amount, so the surplus net of other holds must still cover it.
	surplus := wallet.TotalPoints() - wallet.CapitalPrincipal - (wallet.HeldAmount - req.Amount)
	if surplus < req.Amount {
		return nil, ErrInsufficientRedeemable
	}

	// One RedeemDebit for the full requested amount. Fees are recorded on
	// the request only, never as separate ledger transactions.
	query = `
		INSERT INTO ledger_transactions (wallet_id, type, amount, currency, source_reference, idempotency_key)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (idempotency_key) DO NOTHING
		RETURNING id`

	var ledgerID string

	err = tx.GetContext(ctx, &ledgerID, query,
		req.WalletID,
		LedgerTypeRedeemDebit,
		req.Amount,
		req.Currency,
		req.ID,
		"redeem:"+req.ID,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRequestNotPending
		}
		return nil, err
	}

	query = `
		UPDATE wallets
		SET redeemed_out=redeemed_out+$1, held_amount=held_amount-$1, updated_at=NOW()
		WHERE id=$2`

	_, err = tx.ExecContext(ctx, query, req.Amount, req.WalletID)
	if err != nil {
		return nil, err
	}

	query = `
		UPDATE redeem_requests
		SET status=$1, withdrawal_fee=$2, platform_fee=$3, net_payout=$4, settlement_reference=$5,
			decided_at=NOW(), updated_at=NOW()
		WHERE id=$6`

	_, err = tx.ExecContext(ctx, query,
		RedeemStatusApproved,
		withdrawalFee,
		platformFee,
		netPayout,
		reference,
		req.ID,
	)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	req.Status = RedeemStatusApproved
	req.WithdrawalFee = withdrawalFee
	req.PlatformFee = platformFee
	req.NetPayout = netPayout
	req.SettlementReference = sql.NullString{String: reference, Valid: reference != ""}

	return &req, nil
}

func (repo *RedeemRepositoryImpl) Reject(id string) (*RedeemRequest, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}

	defer tx.Rollback()

	var req RedeemRequest

	query := `
		SELECT * FROM redeem_requests WHERE id=$1 FOR UPDATE`

	err = tx.GetContext(ctx, &req, query, id)
	if err != nil {
		return nil, err
	}

	if req.Status != RedeemStatusPending {
		return nil, ErrRequestNotPending
	}

	query = `
		UPDATE redeem_requests SET status=$1, decided_at=NOW(), updated_at=NOW() WHERE id=$2`

	_, err = tx.ExecContext(ctx, query, RedeemStatusRejected, req.ID)
	if err != nil {
		return nil, err
	}

	// The wallet was never debited; releasing the hold is the whole
	// reversal.
	query = `
		UPDATE wallets SET held_amount=held_amount-$1, updated_at=NOW() WHERE id=$2`

	_, err = tx.ExecContext(ctx, query, req.Amount, req.WalletID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	req.Status = RedeemStatusRejected

	return &req, nil
}
