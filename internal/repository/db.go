package repository

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	"github.com/BM-ACADEMY/alpha-sub001/assets"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"

	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/lib/pq"
)

const defaultTimeout = 3 * time.Second

// Database interface defines available repositories
type Database interface {
	Plan() PlanRepository
	PercentageConfig() PercentageConfigRepository
	Subscription() SubscriptionRepository
	Wallet() WalletRepository
	Ledger() LedgerRepository
	Redeem() RedeemRepository
	Referral() ReferralRepository
	Report() ReportRepository
	Activity() ActivityRepository

	Close() error
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

// DatabaseImpl implements the Database interface
type DatabaseImpl struct {
	db                   *sqlx.DB
	planRepo             PlanRepository
	percentageConfigRepo PercentageConfigRepository
	subscriptionRepo     SubscriptionRepository
	walletRepo           WalletRepository
	ledgerRepo           LedgerRepository
	redeemRepo           RedeemRepository
	referralRepo         ReferralRepository
	reportRepo           ReportRepository
	activityRepo         ActivityRepository

	mu sync.Mutex
}

// New initializes a database connection and runs migrations if enabled
func New(dsn string, automigrate bool) (Database, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	db, err := sqlx.ConnectContext(ctx, "postgres", "postgres://"+dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxIdleTime(5 * time.Minute)
	db.SetConnMaxLifetime(2 * time.Hour)

	if automigrate {
		iofsDriver, err := iofs.New(assets.EmbeddedFiles, "migrations")
		if err != nil {
			return nil, err
		}

		migrator, err := migrate.NewWithSourceInstance("iofs", iofsDriver, "postgres://"+dsn)
		if err != nil {
			return nil, err
		}

		if err := migrator.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return nil, err
		}
	}

	return &DatabaseImpl{db: db}, nil
}

func (d *DatabaseImpl) Close() error {
	return d.db.Close()
}

func (d *DatabaseImpl) BeginTx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	tx, err := d.db.BeginTxx(ctx, opts)
	if err != nil {
		return nil, err
	}
	return tx, nil
}

func (d *DatabaseImpl) Plan() PlanRepository {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.planRepo == nil {
		d.planRepo = NewPlanRepository(d.db)
	}
	return d.planRepo
}

func (d *DatabaseImpl) PercentageConfig() PercentageConfigRepository {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.percentageConfigRepo == nil {
		d.percentageConfigRepo = NewPercentageConfigRepository(d.db)
	}
	return d.percentageConfigRepo
}

func (d *DatabaseImpl) Subscription() SubscriptionRepository {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.subscriptionRepo == nil {
		d.subscriptionRepo = NewSubscriptionRepository(d.db)
	}
	return d.subscriptionRepo
}

func (d *DatabaseImpl) Wallet() WalletRepository {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.walletRepo == nil {
		d.walletRepo = NewWalletRepository(d.db)
	}
	return d.walletRepo
}

func (d *DatabaseImpl) Ledger() LedgerRepository {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.ledgerRepo == nil {
		d.ledgerRepo = NewLedgerRepository(d.db)
	}
	return d.ledgerRepo
}

func (d *DatabaseImpl) Redeem() RedeemRepository {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.redeemRepo == nil {
		d.redeemRepo = NewRedeemRepository(d.db)
	}
	return d.redeemRepo
}

func (d *DatabaseImpl) Referral() ReferralRepository {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.referralRepo == nil {
		d.referralRepo = NewReferralRepository(d.db)
	}
	return d.referralRepo
}

func (d *DatabaseImpl) Report() ReportRepository {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.reportRepo == nil {
		d.reportRepo = NewReportRepository(d.db)
	}
	return d.reportRepo
}

func (d *DatabaseImpl) Activity() ActivityRepository {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.activityRepo == nil {
		d.activityRepo = NewActivityRepository(d.db)
	}
	return d.activityRepo
}
