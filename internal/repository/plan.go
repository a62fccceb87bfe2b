package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

type Plan struct {
	ID            string          `db:"id"`
	Name          string          `db:"name"`
	Category      string          `db:"category"`
	Currency      string          `db:"currency"`
	MinimumAmount int64           `db:"minimum_amount"`
	LockInDays    int             `db:"lock_in_days"`
	Cadence       string          `db:"cadence"`
	ProfitPercent decimal.Decimal `db:"profit_percent"`
	CreatedAt     time.Time       `db:"created_at"`
	UpdatedAt     sql.NullTime    `db:"updated_at"`
	DeletedAt     sql.NullTime    `db:"deleted_at"`
}

// Plan categories are a tiered enum; the tiers mirror the marketing names
// used by the surrounding application.
const (
	PlanCategoryStarter = "starter"
	PlanCategorySilver  = "silver"
	PlanCategoryGold    = "gold"
	PlanCategoryDiamond = "diamond"
)

type PlanRepository interface {
	Insert(plan *Plan) (string, error)
	Update(plan *Plan) error
	GetOne(id string) (*Plan, bool, error)
	GetAll() ([]Plan, error)
}

type PlanRepositoryImpl struct {
	db *sqlx.DB
}

func NewPlanRepository(db *sqlx.DB) PlanRepository {
	return &PlanRepositoryImpl{db: db}
}

func (repo *PlanRepositoryImpl) Insert(plan *Plan) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	var id string

	query := `
		INSERT INTO plans (name, category, currency, minimum_amount, lock_in_days, cadence, profit_percent)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`

	err := repo.db.GetContext(ctx, &id, query,
		plan.Name,
		plan.Category,
		plan.Currency,
		plan.MinimumAmount,
		plan.LockInDays,
		plan.Cadence,
		plan.ProfitPercent,
	)
	if err != nil {
		return "", err
	}

	return id, nil
}

// Update edits the plan row only. Subscriptions created before the edit keep
// the rate they locked at purchase time.
func (repo *PlanRepositoryImpl) Update(plan *Plan) error {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	query := `
		UPDATE plans
		SET name=$1, minimum_amount=$2, lock_in_days=$3, cadence=$4, profit_percent=$5, updated_at=NOW()
		WHERE id=$6 AND deleted_at IS NULL`

	result, err := repo.db.ExecContext(ctx, query,
		plan.Name,
		plan.MinimumAmount,
		plan.LockInDays,
		plan.Cadence,
		plan.ProfitPercent,
		plan.ID,
	)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return sql.ErrNoRows
	}

	return nil
}

func (repo *PlanRepositoryImpl) GetOne(id string) (*Plan, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	var plan Plan

	query := `
        SELECT id, name, category, currency, minimum_amount, lock_in_days, cadence, profit_percent, created_at
        FROM plans WHERE id=$1 AND deleted_at IS NULL`

	err := repo.db.GetContext(ctx, &plan, query, id)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}

	return &plan, true, nil
}

func (repo *PlanRepositoryImpl) GetAll() ([]Plan, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	var plans []Plan

	query := `
        SELECT id, name, category, currency, minimum_amount, lock_in_days, cadence, profit_percent, created_at
        FROM plans WHERE deleted_at IS NULL ORDER BY minimum_amount`

	err := repo.db.SelectContext(ctx, &plans, query)
	if err != nil {
		return nil, err
	}

	return plans, nil
}

type PercentageConfig struct {
	ID                   string          `db:"id"`
	Category             string          `db:"category"`
	Currency             string          `db:"currency"`
	ProfitPercent        decimal.Decimal `db:"profit_percent"`
	WithdrawalFeePercent decimal.Decimal `db:"withdrawal_fee_percent"`
	PlatformFeePercent   decimal.Decimal `db:"platform_fee_percent"`
	CreatedAt            time.Time       `db:"created_at"`
	UpdatedAt            sql.NullTime    `db:"updated_at"`
}

type PercentageConfigRepository interface {
	Upsert(config *PercentageConfig) error
	GetByKey(category, currency string) (*PercentageConfig, bool, error)
	GetAll() ([]PercentageConfig, error)
}

type PercentageConfigRepositoryImpl struct {
	db *sqlx.DB
}

func NewPercentageConfigRepository(db *sqlx.DB) PercentageConfigRepository {
	return &PercentageConfigRepositoryImpl{db: db}
}

func (repo *PercentageConfigRepositoryImpl) Upsert(config *PercentageConfig) error {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	query := `
		INSERT INTO percentage_configs (category, currency, profit_percent, withdrawal_fee_percent, platform_fee_percent)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (category, currency)
		DO UPDATE SET profit_percent=EXCLUDED.profit_percent,
			withdrawal_fee_percent=EXCLUDED.withdrawal_fee_percent,
			platform_fee_percent=EXCLUDED.platform_fee_percent,
			updated_at=NOW()`

	_, err := repo.db.ExecContext(ctx, query,
		config.Category,
		config.Currency,
		config.ProfitPercent,
		config.WithdrawalFeePercent,
		config.PlatformFeePercent,
	)

	return err
}

func (repo *PercentageConfigRepositoryImpl) GetByKey(category, currency string) (*PercentageConfig, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	var config PercentageConfig

	query := `
        SELECT id, category, currency, profit_percent, withdrawal_fee_percent, platform_fee_percent, created_at
        FROM percentage_configs WHERE category=$1 AND currency=$2`

	err := repo.db.GetContext(ctx, &config, query, category, currency)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}

	return &config, true, nil
}

func (repo *PercentageConfigRepositoryImpl) GetAll() ([]PercentageConfig, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	var configs []PercentageConfig

	query := `
        SELECT id, category, currency, profit_percent, withdrawal_fee_percent, platform_fee_percent, created_at
        FROM percentage_configs`

	err := repo.db.SelectContext(ctx, &configs, query)
	if err != nil {
		return nil, err
	}

	return configs, nil
}
