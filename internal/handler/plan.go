package handler

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/BM-ACADEMY/alpha-sub001/internal/accrual"
	"github.com/BM-ACADEMY/alpha-sub001/internal/catalog"
	"github.com/BM-ACADEMY/alpha-sub001/internal/errHandler"
	"github.com/BM-ACADEMY/alpha-sub001/internal/money"
	"github.com/BM-ACADEMY/alpha-sub001/internal/repository"
	"github.com/BM-ACADEMY/alpha-sub001/internal/request"
	"github.com/BM-ACADEMY/alpha-sub001/internal/response"
	"github.com/BM-ACADEMY/alpha-sub001/internal/validator"
)

type PlanResponseData struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Category      string    `json:"category"`
	Currency      string    `json:"currency"`
	MinimumAmount string    `json:"minimum_amount"`
	LockInDays    int       `json:"lock_in_days"`
	Cadence       string    `json:"cadence"`
	ProfitPercent string    `json:"profit_percent"`
	CreatedAt     time.Time `json:"created_at"`
}

type PlanHandler struct {
	PlanRepo   repository.PlanRepository
	ConfigRepo repository.PercentageConfigRepository
	Catalog    *catalog.Service
	ErrHandler *errHandler.ErrorHandler
}

func NewPlanHandler(handler *PlanHandler) *PlanHandler {
	return handler
}

func newPlanResponseData(plan *repository.Plan) *PlanResponseData {
	return &PlanResponseData{
		ID:            plan.ID,
		Name:          plan.Name,
		Category:      plan.Category,
		Currency:      plan.Currency,
		MinimumAmount: money.Amount(plan.MinimumAmount).String(),
		LockInDays:    plan.LockInDays,
		Cadence:       plan.Cadence,
		ProfitPercent: plan.ProfitPercent.String(),
		CreatedAt:     plan.CreatedAt,
	}
}

func validPlanCategory(category string) bool {
	switch category {
	case repository.PlanCategoryStarter, repository.PlanCategorySilver, repository.PlanCategoryGold, repository.PlanCategoryDiamond:
		return true
	}
	return false
}

func (h *PlanHandler) HandleListPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := h.PlanRepo.GetAll()
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
		return
	}

	data := make([]*PlanResponseData, 0, len(plans))
	for i := range plans {
		data = append(data, newPlanResponseData(&plans[i]))
	}

	message := "Plans fetched successfully"

	err = response.JSONOkResponse(w, data, message, nil)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
	}
}

type PlanInput struct {
	Name          string              `json:"name"`
	Category      string              `json:"category"`
	Currency      string              `json:"currency"`
	MinimumAmount string              `json:"minimum_amount"`
	LockInDays    int                 `json:"lock_in_days"`
	Cadence       string              `json:"cadence"`
	ProfitPercent string              `json:"profit_percent"`
	Validator     validator.Validator `json:"-"`
}

func (input *PlanInput) validate() {
	input.Validator.Check(validator.NotBlank(input.Name), "Name is required")
	input.Validator.Check(validPlanCategory(input.Category), "Category must be one of starter, silver, gold, diamond")

	_, err := money.ParseCurrency(input.Currency)
	input.Validator.Check(err == nil, "Currency must be INR or USDT")

	amount, err := money.Parse(input.MinimumAmount)
	input.Validator.Check(err == nil && amount.IsPositive(), "Minimum amount must be a positive decimal")

	input.Validator.Check(input.LockInDays > 0, "Lock-in days must be positive")
	input.Validator.Check(accrual.Cadence(input.Cadence).Valid(), "Cadence must be one of daily, weekly, monthly")

	percent, err := decimal.NewFromString(input.ProfitPercent)
	input.Validator.Check(err == nil && percent.IsPositive(), "Profit percent must be a positive decimal")
}

func (h *PlanHandler) HandleCreatePlan(w http.ResponseWriter, r *http.Request) {
	var input PlanInput

	err := request.DecodeJSON(w, r, &input)
	if err != nil {
		h.ErrHandler.BadRequest(w, r, err)
		return
	}

	input.validate()

	if input.Validator.HasErrors() {
		h.ErrHandler.FailedValidation(w, r, input.Validator)
		return
	}

	amount, _ := money.Parse(input.MinimumAmount)
	percent, _ := decimal.NewFromString(input.ProfitPercent)

	plan := &repository.Plan{
		Name:          input.Name,
		Category:      input.Category,
		Currency:      input.Currency,
		MinimumAmount: int64(amount),
		LockInDays:    input.LockInDays,
		Cadence:       input.Cadence,
		ProfitPercent: percent,
	}

	id, err := h.PlanRepo.Insert(plan)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
		return
	}

	created, _, err := h.PlanRepo.GetOne(id)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
		return
	}

	message := "Plan created successfully"

	err = response.JSONCreatedResponse(w, newPlanResponseData(created), message)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
	}
}

// HandleUpdatePlan edits the catalog entry. Running subscriptions are not
// touched; their percentage was locked at activation.
func (h *PlanHandler) HandleUpdatePlan(w http.ResponseWriter, r *http.Request) {
	planID := r.PathValue("id")

	plan, found, err := h.PlanRepo.GetOne(planID)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
		return
	}
	if !found {
		h.ErrHandler.NotFound(w, r)
		return
	}

	var input PlanInput

	err = request.DecodeJSON(w, r, &input)
	if err != nil {
		h.ErrHandler.BadRequest(w, r, err)
		return
	}

	input.validate()

	if input.Validator.HasErrors() {
		h.ErrHandler.FailedValidation(w, r, input.Validator)
		return
	}

	amount, _ := money.Parse(input.MinimumAmount)
	percent, _ := decimal.NewFromString(input.ProfitPercent)

	plan.Name = input.Name
	plan.Category = input.Category
	plan.Currency = input.Currency
	plan.MinimumAmount = int64(amount)
	plan.LockInDays = input.LockInDays
	plan.Cadence = input.Cadence
	plan.ProfitPercent = percent

	err = h.PlanRepo.Update(plan)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
		return
	}

	message := "Plan updated successfully"

	err = response.JSONOkResponse(w, newPlanResponseData(plan), message, nil)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
	}
}

// HandleUpsertPercentages replaces the override row for a (category,
// currency) pair and drops the cached copy so the next resolve sees the
// new values. Subscriptions already active keep their locked percentage.
func (h *PlanHandler) HandleUpsertPercentages(w http.ResponseWriter, r *http.Request) {
	type PercentagesInput struct {
		Category             string              `json:"category"`
		Currency             string              `json:"currency"`
		ProfitPercent        string              `json:"profit_percent"`
		WithdrawalFeePercent string              `json:"withdrawal_fee_percent"`
		PlatformFeePercent   string              `json:"platform_fee_percent"`
		Validator            validator.Validator `json:"-"`
	}

	var input PercentagesInput

	err := request.DecodeJSON(w, r, &input)
	if err != nil {
		h.ErrHandler.BadRequest(w, r, err)
		return
	}

	input.Validator.Check(validPlanCategory(input.Category), "Category must be one of starter, silver, gold, diamond")

	currency, err := money.ParseCurrency(input.Currency)
	input.Validator.Check(err == nil, "Currency must be INR or USDT")

	profit, err := decimal.NewFromString(input.ProfitPercent)
	input.Validator.Check(err == nil && profit.IsPositive(), "Profit percent must be a positive decimal")

	withdrawalFee, err := decimal.NewFromString(input.WithdrawalFeePercent)
	input.Validator.Check(err == nil && !withdrawalFee.IsNegative(), "Withdrawal fee percent must be zero or positive")

	platformFee, err := decimal.NewFromString(input.PlatformFeePercent)
	input.Validator.Check(err == nil && !platformFee.IsNegative(), "Platform fee percent must be zero or positive")

	if input.Validator.HasErrors() {
		h.ErrHandler.FailedValidation(w, r, input.Validator)
		return
	}

	err = h.ConfigRepo.Upsert(&repository.PercentageConfig{
		Category:             input.Category,
		Currency:             currency.String(),
		ProfitPercent:        profit,
		WithdrawalFeePercent: withdrawalFee,
		PlatformFeePercent:   platformFee,
	})
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
		return
	}

	h.Catalog.Invalidate(input.Category, currency)

	message := "Percentages updated successfully"

	err = response.JSONOkResponse(w, nil, message, nil)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
	}
}
