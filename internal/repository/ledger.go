package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

type LedgerTransaction struct {
	ID              string    `db:"id"`
	WalletID        string    `db:"wallet_id"`
	Type            string    `db:"type"`
	Amount          int64     `db:"amount"`
	Currency        string    `db:"currency"`
	SourceReference string    `db:"source_reference"`
	IdempotencyKey  string    `db:"idempotency_key"`
	CreatedAt       time.Time `db:"created_at"`
}

const (
	LedgerTypeAccrualCredit  = "accrual_credit"
	LedgerTypeReferralCredit = "referral_credit"
	LedgerTypeRedeemDebit    = "redeem_debit"
	LedgerTypeRedeemReversal = "redeem_reversal"
)

// ErrLedgerCorrupt is returned when the materialized wallet columns no
// longer match a replay of the transaction log. The engine refuses to post
// against unknown state; manual intervention is required.
var ErrLedgerCorrupt = errors.New("ledger replay does not match wallet balances")

// ReplayBalances are wallet components reconstructed purely from the
// transaction log.
type ReplayBalances struct {
	AccruedProfit    int64
	ReferralEarnings int64
	RedeemedOut      int64
}

type LedgerRepository interface {
	// ApplyCredit appends a credit transaction and updates the materialized
	// wallet column in one transaction. A reused idempotency key is a no-op
	// and reports inserted=false.
	ApplyCredit(txn *LedgerTransaction) (bool, error)
	Replay(walletID string) (*ReplayBalances, error)
	History(walletID string, page, pageSize int) ([]LedgerTransaction, int, error)
}

type LedgerRepositoryImpl struct {
	db *sqlx.DB
}

func NewLedgerRepository(db *sqlx.DB) LedgerRepository {
	return &LedgerRepositoryImpl{db: db}
}

func (repo *LedgerRepositoryImpl) ApplyCredit(txn *LedgerTransaction) (bool, error) {
	var column string
	switch txn.Type {
	case LedgerTypeAccrualCredit:
		column = "accrued_profit"
	case LedgerTypeReferralCredit:
		column = "referral_earnings"
	default:
		return false, fmt.Errorf("ledger type %q is not a credit", txn.Type)
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, err
	}

	defer tx.Rollback()

	// Pessimistic lock, same as a wallet debit. Serializes concurrent
	// writers per wallet.
	var wallet Wallet

	query := `
		SELECT * FROM wallets WHERE id=$1 FOR UPDATE`

	err = tx.GetContext(ctx, &wallet, query, txn.WalletID)
	if err != nil {
		return false, err
	}

	if err := verifyReplay(ctx, tx, &wallet); err != nil {
		return false, err
	}

	var id string

	query = `
		INSERT INTO ledger_transactions (wallet_id, type, amount, currency, source_reference, idempotency_key)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (idempotency_key) DO NOTHING
		RETURNING id`

	err = tx.GetContext(ctx, &id, query,
		txn.WalletID,
		txn.Type,
		txn.Amount,
		txn.Currency,
		txn.SourceReference,
		txn.IdempotencyKey,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Key already used; nothing to post.
			return false, nil
		}
		return false, err
	}

	query = fmt.Sprintf(`
		UPDATE wallets SET %s=%s+$1, updated_at=NOW() WHERE id=$2`, column, column)

	_, err = tx.ExecContext(ctx, query, txn.Amount, txn.WalletID)
	if err != nil {
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, err
	}

	return true, nil
}

// verifyReplay re-derives the ledger-backed wallet components inside the
// caller's transaction and fails closed on any mismatch.
func verifyReplay(ctx context.Context, tx *sqlx.Tx, wallet *Wallet) error {
	balances, err := replaySums(ctx, tx, wallet.ID)
	if err != nil {
		return err
	}

	if balances.AccruedProfit != wallet.AccruedProfit ||
		balances.ReferralEarnings != wallet.ReferralEarnings ||
		balances.RedeemedOut != wallet.RedeemedOut {
		return fmt.Errorf("%w: wallet %s", ErrLedgerCorrupt, wallet.ID)
	}

	return nil
}

type queryer interface {
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

func replaySums(ctx context.Context, q queryer, walletID string) (*ReplayBalances, error) {
	var rows []struct {
		Type  string `db:"type"`
		Total int64  `db:"total"`
	}

	query := `
        SELECT type, COALESCE(SUM(amount), 0) AS total
        FROM ledger_transactions WHERE wallet_id=$1 GROUP BY type`

	err := q.SelectContext(ctx, &rows, query, walletID)
	if err != nil {
		return nil, err
	}

	balances := &ReplayBalances{}
	for _, row := range rows {
		switch row.Type {
		case LedgerTypeAccrualCredit:
			balances.AccruedProfit = row.Total
		case LedgerTypeReferralCredit:
			balances.ReferralEarnings = row.Total
		case LedgerTypeRedeemDebit:
			balances.RedeemedOut += row.Total
		case LedgerTypeRedeemReversal:
			balances.RedeemedOut -= row.Total
		default:
			return nil, fmt.Errorf("unknown ledger transaction type %q", row.Type)
		}
	}

	return balances, nil
}

func (repo *LedgerRepositoryImpl) Replay(walletID string) (*ReplayBalances, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	return replaySums(ctx, repo.db, walletID)
}

func (repo *LedgerRepositoryImpl) History(walletID string, page, pageSize int) ([]LedgerTransaction, int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	var total int

	query := `
        SELECT COUNT(*) FROM ledger_transactions WHERE wallet_id=$1`

	err := repo.db.GetContext(ctx, &total, query, walletID)
	if err != nil {
		return nil, 0, err
	}

	var txns []LedgerTransaction

	query = `
        SELECT * FROM ledger_transactions
        WHERE wallet_id=$1
        ORDER BY created_at DESC, id
        LIMIT $2 OFFSET $3`

	err = repo.db.SelectContext(ctx, &txns, query, walletID, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, 0, err
	}

	return txns, total, nil
}
