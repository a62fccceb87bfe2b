package app

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/BM-ACADEMY/alpha-sub001/internal/handler"
	"github.com/BM-ACADEMY/alpha-sub001/internal/middleware"
)

func (app *Application) routes() http.Handler {
	mux := http.NewServeMux()

	mid := middleware.New(app.errorHandler, app.Logger, &app.Config)

	healthHandler := handler.NewHealthCheckHandler(app.errorHandler)

	walletHandler := handler.NewWalletHandler(&handler.WalletHandler{
		WalletRepo: app.DB.Wallet(),
		LedgerRepo: app.DB.Ledger(),
		LedgerSvc:  app.ledgerSvc,
		ErrHandler: app.errorHandler,
	})

	subscriptionHandler := handler.NewSubscriptionHandler(&handler.SubscriptionHandler{
		SubscriptionRepo: app.DB.Subscription(),
		PlanRepo:         app.DB.Plan(),
		WalletRepo:       app.DB.Wallet(),
		ReferralRepo:     app.DB.Referral(),
		ActivityRepo:     app.DB.Activity(),
		Catalog:          app.catalogSvc,
		Payment:          app.paymentClient,
		ErrHandler:       app.errorHandler,
		Helper:           app.helper,
	})

	redeemHandler := handler.NewRedeemHandler(&handler.RedeemHandler{
		RedeemSvc:  app.redeemSvc,
		RedeemRepo: app.DB.Redeem(),
		ErrHandler: app.errorHandler,
	})

	planHandler := handler.NewPlanHandler(&handler.PlanHandler{
		PlanRepo:   app.DB.Plan(),
		ConfigRepo: app.DB.PercentageConfig(),
		Catalog:    app.catalogSvc,
		ErrHandler: app.errorHandler,
	})

	reportHandler := handler.NewReportHandler(&handler.ReportHandler{
		ReportSvc:  app.reportSvc,
		ErrHandler: app.errorHandler,
	})

	mux.HandleFunc("GET /status", healthHandler.HandleHealthCheck)
	mux.Handle("GET /metrics", promhttp.Handler())

	// Payment provider callback; authenticated by the provider's payment
	// reference, not a user token.
	mux.HandleFunc("POST /subscriptions/{id}/verification", subscriptionHandler.HandleVerificationCallback)

	authenticated := func(fn http.HandlerFunc) http.Handler {
		return mid.RequireAuthenticatedUser(fn)
	}
	adminOnly := func(fn http.HandlerFunc) http.Handler {
		return mid.RequireAdminUser(fn)
	}

	mux.Handle("GET /plans", authenticated(planHandler.HandleListPlans))

	mux.Handle("POST /subscriptions", authenticated(subscriptionHandler.HandleCreateSubscription))
	mux.Handle("GET /subscriptions", authenticated(subscriptionHandler.HandleListSubscriptions))

	mux.Handle("GET /wallet", authenticated(walletHandler.HandleWalletSummary))
	mux.Handle("GET /wallet/transactions", authenticated(walletHandler.HandleWalletTransactions))

	mux.Handle("POST /redemptions", authenticated(redeemHandler.HandleCreateRedeemRequest))
	mux.Handle("GET /redemptions", authenticated(redeemHandler.HandleListOwnRedeemRequests))

	mux.Handle("GET /admin/redemptions", adminOnly(redeemHandler.HandleAdminListRedeemRequests))
	mux.Handle("POST /admin/redemptions/{id}/approve", adminOnly(redeemHandler.HandleApproveRedeemRequest))
	mux.Handle("POST /admin/redemptions/{id}/reject", adminOnly(redeemHandler.HandleRejectRedeemRequest))

	mux.Handle("POST /admin/plans", adminOnly(planHandler.HandleCreatePlan))
	mux.Handle("PATCH /admin/plans/{id}", adminOnly(planHandler.HandleUpdatePlan))
	mux.Handle("PUT /admin/percentages", adminOnly(planHandler.HandleUpsertPercentages))

	mux.Handle("GET /admin/reports/expirations", adminOnly(reportHandler.HandleExpirationReport))
	mux.Handle("GET /admin/reports/settlements", adminOnly(reportHandler.HandleSettlementReport))
	mux.Handle("GET /admin/reports/currency-split", adminOnly(reportHandler.HandleCurrencySplitReport))

	mux.Handle("GET /admin/wallets/{id}/audit", adminOnly(walletHandler.HandleWalletAudit))

	return mid.LogAccess(mid.RecoverPanic(mid.Authenticate(mux)))
}
