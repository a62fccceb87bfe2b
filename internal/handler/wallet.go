package handler

import (
	"net/http"
	"time"

	"github.com/BM-ACADEMY/alpha-sub001/internal/context"
	"github.com/BM-ACADEMY/alpha-sub001/internal/errHandler"
	"github.com/BM-ACADEMY/alpha-sub001/internal/ledger"
	"github.com/BM-ACADEMY/alpha-sub001/internal/money"
	"github.com/BM-ACADEMY/alpha-sub001/internal/repository"
	"github.com/BM-ACADEMY/alpha-sub001/internal/response"
)

// WalletResponseData exposes every balance as a fixed-point decimal string.
// Integer minor units never cross the API boundary.
type WalletResponseData struct {
	ID               string    `json:"id"`
	Currency         string    `json:"currency"`
	CapitalPrincipal string    `json:"capital_principal"`
	AccruedProfit    string    `json:"accrued_profit"`
	ReferralEarnings string    `json:"referral_earnings"`
	RedeemedOut      string    `json:"redeemed_out"`
	HeldAmount       string    `json:"held_amount"`
	TotalPoints      string    `json:"total_points"`
	RedeemablePoints string    `json:"redeemable_points"`
	CreatedAt        time.Time `json:"created_at"`
}

type LedgerEntryResponseData struct {
	ID              string    `json:"id"`
	Type            string    `json:"type"`
	Amount          string    `json:"amount"`
	Currency        string    `json:"currency"`
	SourceReference string    `json:"source_reference"`
	CreatedAt       time.Time `json:"created_at"`
}

type WalletHandler struct {
	WalletRepo repository.WalletRepository
	LedgerRepo repository.LedgerRepository
	LedgerSvc  *ledger.Service
	ErrHandler *errHandler.ErrorHandler
}

func NewWalletHandler(handler *WalletHandler) *WalletHandler {
	return &WalletHandler{
		WalletRepo: handler.WalletRepo,
		LedgerRepo: handler.LedgerRepo,
		LedgerSvc:  handler.LedgerSvc,
		ErrHandler: handler.ErrHandler,
	}
}

func newWalletResponseData(wallet *repository.Wallet) *WalletResponseData {
	return &WalletResponseData{
		ID:               wallet.ID,
		Currency:         wallet.Currency,
		CapitalPrincipal: money.Amount(wallet.CapitalPrincipal).String(),
		AccruedProfit:    money.Amount(wallet.AccruedProfit).String(),
		ReferralEarnings: money.Amount(wallet.ReferralEarnings).String(),
		RedeemedOut:      money.Amount(wallet.RedeemedOut).String(),
		HeldAmount:       money.Amount(wallet.HeldAmount).String(),
		TotalPoints:      money.Amount(wallet.TotalPoints()).String(),
		RedeemablePoints: money.Amount(wallet.RedeemablePoints()).String(),
		CreatedAt:        wallet.CreatedAt,
	}
}

// HandleWalletSummary returns all of the caller's wallets, one per
// currency held.
func (h *WalletHandler) HandleWalletSummary(w http.ResponseWriter, r *http.Request) {
	principal := context.ContextGetAuthenticatedPrincipal(r)

	wallets, err := h.WalletRepo.GetAllByUserId(principal.UserID)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
		return
	}

	data := make([]*WalletResponseData, 0, len(wallets))
	for i := range wallets {
		data = append(data, newWalletResponseData(&wallets[i]))
	}

	message := "Wallet summary fetched successfully"

	err = response.JSONOkResponse(w, data, message, nil)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
	}
}

func (h *WalletHandler) HandleWalletTransactions(w http.ResponseWriter, r *http.Request) {
	principal := context.ContextGetAuthenticatedPrincipal(r)

	currency, err := money.ParseCurrency(r.URL.Query().Get("currency"))
	if err != nil {
		h.ErrHandler.BadRequest(w, r, err)
		return
	}

	wallet, err := h.WalletRepo.GetOrCreate(principal.UserID, currency.String())
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
		return
	}

	page := retrievePageValues(r)

	entries, total, err := h.LedgerRepo.History(wallet.ID, page.Page, page.PageSize)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
		return
	}

	transactions := make([]*LedgerEntryResponseData, 0, len(entries))
	for i := range entries {
		entry := &entries[i]
		transactions = append(transactions, &LedgerEntryResponseData{
			ID:              entry.ID,
			Type:            entry.Type,
			Amount:          money.Amount(entry.Amount).String(),
			Currency:        entry.Currency,
			SourceReference: entry.SourceReference,
			CreatedAt:       entry.CreatedAt,
		})
	}

	data := map[string]any{
		"Transactions": transactions,
		"Total":        total,
		"Page":         page.Page,
		"PageSize":     page.PageSize,
	}

	message := "Transactions fetched successfully"

	err = response.JSONOkResponse(w, data, message, nil)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
	}
}

// HandleWalletAudit replays a wallet's transaction log and reports whether
// the materialized balances still match. Admin only.
func (h *WalletHandler) HandleWalletAudit(w http.ResponseWriter, r *http.Request) {
	walletID := r.PathValue("id")

	_, found, err := h.WalletRepo.GetOne(walletID)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
		return
	}
	if !found {
		h.ErrHandler.NotFound(w, r)
		return
	}

	result, err := h.LedgerSvc.Audit(walletID)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
		return
	}

	data := map[string]any{
		"WalletId":         result.WalletID,
		"Consistent":       result.Consistent,
		"AccruedProfit":    result.AccruedProfit.String(),
		"ReferralEarnings": result.ReferralEarnings.String(),
		"RedeemedOut":      result.RedeemedOut.String(),
	}

	message := "Wallet audit completed"

	err = response.JSONOkResponse(w, data, message, nil)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
	}
}
