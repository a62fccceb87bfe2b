package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/joho/godotenv"

	"github.com/BM-ACADEMY/alpha-sub001/internal/accrual"
	"github.com/BM-ACADEMY/alpha-sub001/internal/cache"
	"github.com/BM-ACADEMY/alpha-sub001/internal/catalog"
	"github.com/BM-ACADEMY/alpha-sub001/internal/config"
	"github.com/BM-ACADEMY/alpha-sub001/internal/env"
	"github.com/BM-ACADEMY/alpha-sub001/internal/errHandler"
	"github.com/BM-ACADEMY/alpha-sub001/internal/helper"
	"github.com/BM-ACADEMY/alpha-sub001/internal/kyc"
	"github.com/BM-ACADEMY/alpha-sub001/internal/ledger"
	"github.com/BM-ACADEMY/alpha-sub001/internal/payment"
	"github.com/BM-ACADEMY/alpha-sub001/internal/redeem"
	"github.com/BM-ACADEMY/alpha-sub001/internal/referral"
	"github.com/BM-ACADEMY/alpha-sub001/internal/report"
	"github.com/BM-ACADEMY/alpha-sub001/internal/repository"
	"github.com/BM-ACADEMY/alpha-sub001/internal/scheduler"
	"github.com/BM-ACADEMY/alpha-sub001/internal/smtp"
	"github.com/BM-ACADEMY/alpha-sub001/internal/stream"
	"github.com/BM-ACADEMY/alpha-sub001/internal/worker"
)

// Essential services and resources are exposed on the application struct so
// routes and background jobs can reach them when they need them.
type Application struct {
	Config       config.Config
	DB           repository.Database
	Logger       *slog.Logger
	Mailer       *smtp.Mailer
	WG           sync.WaitGroup
	Kafka        *stream.KafkaStream
	Cache        *cache.Cache
	Scheduler    *scheduler.Manager
	Worker       *worker.Worker
	errorHandler *errHandler.ErrorHandler
	helper       *helper.HelperRepository

	catalogSvc    *catalog.Service
	ledgerSvc     *ledger.Service
	redeemSvc     *redeem.Service
	reportSvc     *report.Service
	distributor   *referral.Distributor
	paymentClient *payment.Client
}

func NewApplication(ctx context.Context, logger *slog.Logger) (*Application, error) {
	if err := godotenv.Load(); err != nil {
		logger.Error("Error loading .env file", "error", err)
	}

	var cfg config.Config

	// config values are loaded from the .env file
	// Default values are provided for these items and these should strictly be values for development mode only
	// make sure no production-level value is exposed as default value here
	cfg.BaseURL = env.GetString("BASE_URL", "http://localhost:4444")
	cfg.HttpPort = env.GetInt("HTTP_PORT", 4444)

	cfg.Db.Dsn = env.GetString("DB_DSN", "user:pass@localhost:5432/db")
	cfg.Db.Automigrate = env.GetBool("DB_AUTOMIGRATE", true)

	cfg.Jwt.SecretKey = env.GetString("JWT_SECRET_KEY", "ajf5nx3qmp6zquevllxocxqvyz42ypuo")

	// server errors and redemption notices won't be sent via email if
	// NOTIFICATIONS_EMAIL wasn't set in the .env file
	cfg.Notifications.Email = env.GetString("NOTIFICATIONS_EMAIL", "")

	cfg.Smtp.Host = env.GetString("SMTP_HOST", "example.smtp.host")
	cfg.Smtp.Port = env.GetInt("SMTP_PORT", 25)
	cfg.Smtp.Username = env.GetString("SMTP_USERNAME", "example_username")
	cfg.Smtp.Password = env.GetString("SMTP_PASSWORD", "pa55word")
	cfg.Smtp.From = env.GetString("SMTP_FROM", "Example Name <no_reply@example.org>")

	cfg.Kyc.BaseURL = env.GetString("KYC_BASE_URL", "http://localhost:4500")
	cfg.Payment.BaseURL = env.GetString("PAYMENT_BASE_URL", "http://localhost:4600")

	cfg.Accrual.RunIntervalMinutes = env.GetInt("ACCRUAL_RUN_INTERVAL_MINUTES", 15)
	cfg.Accrual.PoolSize = env.GetInt("ACCRUAL_POOL_SIZE", 8)

	cfg.RedisServer = env.GetString("REDIS_SERVER", "localhost:6379")
	cfg.KafkaServers = env.GetString("KAFKA_SERVERS", "localhost:9092")

	db, err := repository.New(cfg.Db.Dsn, cfg.Db.Automigrate)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	mailer, err := smtp.NewMailer(cfg.Smtp.Host, cfg.Smtp.Port, cfg.Smtp.Username, cfg.Smtp.Password, cfg.Smtp.From)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize mailer: %w", err)
	}

	errorHandler := errHandler.New(cfg.Notifications.Email, mailer, logger, cfg.BaseURL)

	kafkaStream := stream.New(cfg.KafkaServers, logger)

	cacheStore := cache.New(cfg.RedisServer, 0)

	app := &Application{
		Config:       cfg,
		DB:           db,
		Logger:       logger,
		Mailer:       mailer,
		Kafka:        kafkaStream,
		Cache:        cacheStore,
		errorHandler: errorHandler,
	}

	app.helper = helper.New(&cfg.BaseURL, &app.WG, errorHandler)

	app.catalogSvc = catalog.New(db.PercentageConfig(), cacheStore)
	app.ledgerSvc = ledger.New(db.Wallet(), db.Ledger())
	app.reportSvc = report.NewService(db.Report())
	app.paymentClient = payment.New(cfg.Payment.BaseURL)

	app.distributor = referral.NewDistributor(db.Referral(), app.ledgerSvc, logger)

	app.redeemSvc = redeem.NewService(&redeem.Service{
		RedeemRepo:   db.Redeem(),
		WalletRepo:   db.Wallet(),
		ActivityRepo: db.Activity(),
		Kyc:          kyc.New(cfg.Kyc.BaseURL),
		Producer:     kafkaStream,
		Logger:       logger,
	})

	app.Worker = worker.New(&worker.Worker{
		KafkaStream:     kafkaStream,
		Distributor:     app.distributor,
		Mailer:          mailer,
		Helper:          app.helper,
		Logger:          logger,
		Ctx:             ctx,
		PayoutDeskEmail: cfg.Notifications.Email,
	})

	if err := app.registerJobs(); err != nil {
		return nil, fmt.Errorf("failed to register scheduled jobs: %w", err)
	}

	return app, nil
}

func (app *Application) registerJobs() error {
	manager, err := scheduler.New(app.Logger)
	if err != nil {
		return err
	}

	runner := accrual.NewRunner(&accrual.Runner{
		SubscriptionRepo: app.DB.Subscription(),
		PlanRepo:         app.DB.Plan(),
		Ledger:           app.ledgerSvc,
		Catalog:          app.catalogSvc,
		Producer:         app.Kafka,
		Logger:           app.Logger,
		PoolSize:         app.Config.Accrual.PoolSize,
	})

	sweeper := accrual.NewSweeper(&accrual.Sweeper{
		SubscriptionRepo: app.DB.Subscription(),
		WalletRepo:       app.DB.Wallet(),
		ActivityRepo:     app.DB.Activity(),
		Logger:           app.Logger,
	})

	interval := time.Duration(app.Config.Accrual.RunIntervalMinutes) * time.Minute

	if err := manager.RegisterInterval("profit-accrual", interval, runner.Run); err != nil {
		return err
	}

	if err := manager.RegisterInterval("expiration-sweep", interval, sweeper.Run); err != nil {
		return err
	}

	app.Scheduler = manager

	return nil
}
