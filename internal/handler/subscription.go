package handler

import (
	dctx "context"
	"errors"
	"net/http"
	"time"

	"github.com/BM-ACADEMY/alpha-sub001/internal/catalog"
	"github.com/BM-ACADEMY/alpha-sub001/internal/context"
	"github.com/BM-ACADEMY/alpha-sub001/internal/errHandler"
	"github.com/BM-ACADEMY/alpha-sub001/internal/fault"
	"github.com/BM-ACADEMY/alpha-sub001/internal/helper"
	"github.com/BM-ACADEMY/alpha-sub001/internal/money"
	"github.com/BM-ACADEMY/alpha-sub001/internal/repository"
	"github.com/BM-ACADEMY/alpha-sub001/internal/request"
	"github.com/BM-ACADEMY/alpha-sub001/internal/response"
	"github.com/BM-ACADEMY/alpha-sub001/internal/validator"
)

var (
	ErrPlanNotFound         = errors.New("plan not found")
	ErrSubscriptionNotFound = errors.New("subscription not found")
	ErrSubscriptionDecided  = errors.New("subscription has already been decided")
	ErrSelfReferral         = errors.New("you cannot refer yourself")
)

// PaymentConfirmer is the external payment collaborator. Capital funds
// never move through the engine; it only records the provider's verdict.
type PaymentConfirmer interface {
	Confirm(ctx dctx.Context, reference string) (bool, error)
}

type SubscriptionResponseData struct {
	ID                  string     `json:"id"`
	PlanID              string     `json:"plan_id"`
	CapitalAmount       string     `json:"capital_amount"`
	Currency            string     `json:"currency"`
	Status              string     `json:"status"`
	LockedProfitPercent string     `json:"locked_profit_percent"`
	LockInDays          int        `json:"lock_in_days"`
	Cadence             string     `json:"cadence"`
	LockInStart         *time.Time `json:"lock_in_start,omitempty"`
	LockInEnd           *time.Time `json:"lock_in_end,omitempty"`
	SettlementReference string     `json:"settlement_reference,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
}

type SubscriptionHandler struct {
	SubscriptionRepo repository.SubscriptionRepository
	PlanRepo         repository.PlanRepository
	WalletRepo       repository.WalletRepository
	ReferralRepo     repository.ReferralRepository
	ActivityRepo     repository.ActivityRepository
	Catalog          *catalog.Service
	Payment          PaymentConfirmer
	ErrHandler       *errHandler.ErrorHandler
	Helper           *helper.HelperRepository
}

func NewSubscriptionHandler(handler *SubscriptionHandler) *SubscriptionHandler {
	return handler
}

func newSubscriptionResponseData(sub *repository.Subscription) *SubscriptionResponseData {
	data := &SubscriptionResponseData{
		ID:                  sub.ID,
		PlanID:              sub.PlanID,
		CapitalAmount:       money.Amount(sub.CapitalAmount).String(),
		Currency:            sub.Currency,
		Status:              sub.Status,
		LockedProfitPercent: sub.LockedProfitPercent.String(),
		LockInDays:          sub.LockInDays,
		Cadence:             sub.Cadence,
		SettlementReference: sub.SettlementReference.String,
		CreatedAt:           sub.CreatedAt,
	}

	if sub.LockInStart.Valid {
		data.LockInStart = &sub.LockInStart.Time
	}
	if sub.LockInEnd.Valid {
		data.LockInEnd = &sub.LockInEnd.Time
	}

	return data
}

// HandleCreateSubscription records a pending subscription. Nothing accrues
// and no capital is credited until the payment provider confirms through
// the verification callback.
func (h *SubscriptionHandler) HandleCreateSubscription(w http.ResponseWriter, r *http.Request) {
	principal := context.ContextGetAuthenticatedPrincipal(r)

	type CreateSubscriptionInput struct {
		PlanID         string              `json:"plan_id"`
		Amount         string              `json:"amount"`
		ReferrerUserID string              `json:"referrer_user_id"`
		Validator      validator.Validator `json:"-"`
	}

	var input CreateSubscriptionInput

	err := request.DecodeJSON(w, r, &input)
	if err != nil {
		h.ErrHandler.BadRequest(w, r, err)
		return
	}

	input.Validator.Check(validator.NotBlank(input.PlanID), "Plan is required")
	input.Validator.Check(validator.NotBlank(input.Amount), "Amount is required")

	if input.Validator.HasErrors() {
		h.ErrHandler.FailedValidation(w, r, input.Validator)
		return
	}

	plan, found, err := h.PlanRepo.GetOne(input.PlanID)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
		return
	}
	if !found {
		response.JSONErrorResponse(w, nil, ErrPlanNotFound.Error(), http.StatusUnprocessableEntity, nil)
		return
	}

	amount, err := money.Parse(input.Amount)
	if err != nil || !amount.IsPositive() {
		input.Validator.AddError("Amount must be a positive decimal with at most two decimal places")
	}

	if err == nil && int64(amount) < plan.MinimumAmount {
		input.Validator.AddError("Amount is below the plan minimum of " + money.Amount(plan.MinimumAmount).String() + " " + plan.Currency)
	}

	if input.ReferrerUserID == principal.UserID {
		input.Validator.AddError(ErrSelfReferral.Error())
	}

	if input.Validator.HasErrors() {
		h.ErrHandler.FailedValidation(w, r, input.Validator)
		return
	}

	sub := &repository.Subscription{
		UserID:              principal.UserID,
		PlanID:              plan.ID,
		CapitalAmount:       int64(amount),
		Currency:            plan.Currency,
		LockedProfitPercent: plan.ProfitPercent,
		LockInDays:          plan.LockInDays,
		Cadence:             plan.Cadence,
		Status:              repository.SubscriptionStatusPending,
	}

	id, err := h.SubscriptionRepo.Insert(sub)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
		return
	}

	// First subscription with a referrer registers the edge; later
	// attempts with a different referrer are silently ignored.
	if input.ReferrerUserID != "" {
		err = h.ReferralRepo.Insert(&repository.ReferralEdge{
			ReferredUserID: principal.UserID,
			ReferrerUserID: input.ReferrerUserID,
		})
		if err != nil {
			h.ErrHandler.ServerError(w, r, err)
			return
		}
	}

	created, _, err := h.SubscriptionRepo.GetOne(id)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
		return
	}

	message := "Subscription created, awaiting payment verification"

	err = response.JSONCreatedResponse(w, newSubscriptionResponseData(created), message)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
	}
}

func (h *SubscriptionHandler) HandleListSubscriptions(w http.ResponseWriter, r *http.Request) {
	principal := context.ContextGetAuthenticatedPrincipal(r)

	subs, err := h.SubscriptionRepo.GetAllByUserId(principal.UserID)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
		return
	}

	data := make([]*SubscriptionResponseData, 0, len(subs))
	for i := range subs {
		data = append(data, newSubscriptionResponseData(&subs[i]))
	}

	message := "Subscriptions fetched successfully"

	err = response.JSONOkResponse(w, data, message, nil)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
	}
}

// HandleVerificationCallback is called by the payment provider once it has
// settled the capital payment. A confirmed payment activates the
// subscription and locks the profit percentage in force right now; anything
// else rejects it. The callback is idempotent: a subscription that already
// left pending is reported as a conflict.
func (h *SubscriptionHandler) HandleVerificationCallback(w http.ResponseWriter, r *http.Request) {
	subscriptionID := r.PathValue("id")

	type VerificationInput struct {
		PaymentReference string              `json:"payment_reference"`
		Validator        validator.Validator `json:"-"`
	}

	var input VerificationInput

	err := request.DecodeJSON(w, r, &input)
	if err != nil {
		h.ErrHandler.BadRequest(w, r, err)
		return
	}

	input.Validator.Check(validator.NotBlank(input.PaymentReference), "Payment reference is required")

	if input.Validator.HasErrors() {
		h.ErrHandler.FailedValidation(w, r, input.Validator)
		return
	}

	sub, found, err := h.SubscriptionRepo.GetOne(subscriptionID)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
		return
	}
	if !found {
		h.ErrHandler.NotFound(w, r)
		return
	}

	if sub.Status != repository.SubscriptionStatusPending {
		h.ErrHandler.DomainError(w, r, fault.Wrap(fault.KindConflict, ErrSubscriptionDecided))
		return
	}

	confirmed, err := h.Payment.Confirm(r.Context(), input.PaymentReference)
	if err != nil {
		h.ErrHandler.DomainError(w, r, fault.Wrap(fault.KindTransient, err))
		return
	}

	if !confirmed {
		if err := h.rejectSubscription(w, r, sub); err != nil {
			return
		}
	} else {
		if err := h.activateSubscription(w, r, sub); err != nil {
			return
		}
	}

	updated, _, err := h.SubscriptionRepo.GetOne(subscriptionID)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
		return
	}

	message := "Subscription " + updated.Status

	err = response.JSONOkResponse(w, newSubscriptionResponseData(updated), message, nil)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
	}
}

func (h *SubscriptionHandler) activateSubscription(w http.ResponseWriter, r *http.Request, sub *repository.Subscription) error {
	plan, found, err := h.PlanRepo.GetOne(sub.PlanID)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
		return err
	}
	if !found {
		h.ErrHandler.ServerError(w, r, ErrPlanNotFound)
		return ErrPlanNotFound
	}

	// The plan's own percentage is the default; an admin override in the
	// percentage catalog wins when one exists for this tier and currency.
	lockedPercent := plan.ProfitPercent

	currency, err := money.ParseCurrency(sub.Currency)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
		return err
	}

	percentages, err := h.Catalog.ResolvePercentage(plan.Category, currency)
	if err == nil {
		lockedPercent = percentages.Profit
	} else if !fault.IsNotFound(err) {
		h.ErrHandler.ServerError(w, r, err)
		return err
	}

	start := time.Now().UTC()
	end := start.AddDate(0, 0, sub.LockInDays)

	activated, err := h.SubscriptionRepo.Activate(sub.ID, lockedPercent, start, end)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
		return err
	}
	if !activated {
		h.ErrHandler.DomainError(w, r, fault.Wrap(fault.KindConflict, ErrSubscriptionDecided))
		return ErrSubscriptionDecided
	}

	wallet, err := h.WalletRepo.GetOrCreate(sub.UserID, sub.Currency)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
		return err
	}

	err = h.WalletRepo.AddCapital(wallet.ID, sub.CapitalAmount)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
		return err
	}

	h.logActivity(sub, repository.ActivityLogSubscriptionActivatedDescription)

	return nil
}

func (h *SubscriptionHandler) rejectSubscription(w http.ResponseWriter, r *http.Request, sub *repository.Subscription) error {
	rejected, err := h.SubscriptionRepo.Reject(sub.ID)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
		return err
	}
	if !rejected {
		h.ErrHandler.DomainError(w, r, fault.Wrap(fault.KindConflict, ErrSubscriptionDecided))
		return ErrSubscriptionDecided
	}

	h.logActivity(sub, repository.ActivityLogSubscriptionRejectedDescription)

	return nil
}

func (h *SubscriptionHandler) logActivity(sub *repository.Subscription, description string) {
	h.Helper.BackgroundTask(nil, func() error {
		_, err := h.ActivityRepo.Insert(&repository.ActivityLog{
			UserID:      sub.UserID,
			Entity:      repository.ActivityLogSubscriptionEntity,
			EntityId:    sub.ID,
			Description: description,
		})

		return err
	})
}
