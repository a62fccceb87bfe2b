// Every money-moving action (synchronous or asynchronous) is logged here.
// This helps in audit and is used to trace admin decisions and lifecycle
// moves after the fact.
// ...
// Entity and entity_id are polymorphic so the table serves every part of
// the engine.
package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
)

type ActivityRepository interface {
	Insert(log *ActivityLog) (*ActivityLog, error)
	GetAllByEntity(entity, entityID string) ([]ActivityLog, error)
}

type ActivityLog struct {
	ID          string    `db:"id"`
	UserID      string    `db:"user_id"`
	Entity      string    `db:"entity"`
	EntityId    string    `db:"entity_id"`
	Description string    `db:"description"`
	CreatedAt   time.Time `db:"created_at"`
}

const (
	// ActivityLogSubscriptionEntity is used in actions on subscriptions and the subscriptions table
	ActivityLogSubscriptionEntity = "subscription"

	// ActivityLogWalletEntity is used in activities on wallets and the wallets table
	ActivityLogWalletEntity = "wallet"

	// ActivityLogRedeemEntity is used in activities on redeem requests
	ActivityLogRedeemEntity = "redeem_request"

	ActivityLogSubscriptionActivatedDescription = "Subscription activated"
	ActivityLogSubscriptionRejectedDescription  = "Subscription rejected"
	ActivityLogSubscriptionSettledDescription   = "Subscription settled"
	ActivityLogRedeemRequestedDescription       = "Redeem request submitted"
	ActivityLogRedeemApprovedDescription        = "Redeem request approved"
	ActivityLogRedeemRejectedDescription        = "Redeem request rejected"
)

type ActivityRepositoryImpl struct {
	db *sqlx.DB
}

func NewActivityRepository(db *sqlx.DB) ActivityRepository {
	return &ActivityRepositoryImpl{db: db}
}

func (repo *ActivityRepositoryImpl) Insert(log *ActivityLog) (*ActivityLog, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	var inserted ActivityLog

	query := `
		INSERT INTO activity_logs (user_id, entity, entity_id, description)
		VALUES ($1, $2, $3, $4)
		RETURNING id, user_id, entity, entity_id, description, created_at`

	err := repo.db.GetContext(ctx, &inserted, query,
		log.UserID,
		log.Entity,
		log.EntityId,
		log.Description,
	)
	if err != nil {
		return nil, err
	}

	return &inserted, nil
}

func (repo *ActivityRepositoryImpl) GetAllByEntity(entity, entityID string) ([]ActivityLog, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	var logs []ActivityLog

	query := `
        SELECT * FROM activity_logs WHERE entity=$1 AND entity_id=$2 ORDER BY created_at`

	err := repo.db.SelectContext(ctx, &logs, query, entity, entityID)
	if err != nil {
		return nil, err
	}

	return logs, nil
}
