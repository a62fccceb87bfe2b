package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
)

// ReferralEdge links a referred user to their referrer, one level deep. The
// referrer's own referrer is a separate edge that is never walked during
// this user's accrual.
type ReferralEdge struct {
	ReferredUserID string    `db:"referred_user_id"`
	ReferrerUserID string    `db:"referrer_user_id"`
	CreatedAt      time.Time `db:"created_at"`
}

type ReferralRepository interface {
	Insert(edge *ReferralEdge) error
	FindByReferredUser(referredUserID string) (*ReferralEdge, bool, error)
}

type ReferralRepositoryImpl struct {
	db *sqlx.DB
}

func NewReferralRepository(db *sqlx.DB) ReferralRepository {
	return &ReferralRepositoryImpl{db: db}
}

func (repo *ReferralRepositoryImpl) Insert(edge *ReferralEdge) error {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	query := `
		INSERT INTO referral_edges (referred_user_id, referrer_user_id)
		VALUES ($1, $2)
		ON CONFLICT (referred_user_id) DO NOTHING`

	_, err := repo.db.ExecContext(ctx, query, edge.ReferredUserID, edge.ReferrerUserID)
	return err
}

func (repo *ReferralRepositoryImpl) FindByReferredUser(referredUserID string) (*ReferralEdge, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	var edge ReferralEdge

	query := `
        SELECT * FROM referral_edges WHERE referred_user_id=$1`

	err := repo.db.GetContext(ctx, &edge, query, referredUserID)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}

	return &edge, true, nil
}
