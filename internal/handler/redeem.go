package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/BM-ACADEMY/alpha-sub001/internal/context"
	"github.com/BM-ACADEMY/alpha-sub001/internal/errHandler"
	"github.com/BM-ACADEMY/alpha-sub001/internal/money"
	"github.com/BM-ACADEMY/alpha-sub001/internal/redeem"
	"github.com/BM-ACADEMY/alpha-sub001/internal/repository"
	"github.com/BM-ACADEMY/alpha-sub001/internal/request"
	"github.com/BM-ACADEMY/alpha-sub001/internal/response"
	"github.com/BM-ACADEMY/alpha-sub001/internal/validator"
)

var ErrInvalidStatusFilter = errors.New("status must be one of pending, approved, rejected")

type RedeemResponseData struct {
	ID                  string     `json:"id"`
	UserID              string     `json:"user_id"`
	Amount              string     `json:"amount"`
	Currency            string     `json:"currency"`
	Status              string     `json:"status"`
	WithdrawalFee       string     `json:"withdrawal_fee"`
	PlatformFee         string     `json:"platform_fee"`
	NetPayout           string     `json:"net_payout"`
	SettlementReference string     `json:"settlement_reference,omitempty"`
	DecidedAt           *time.Time `json:"decided_at,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
}

type RedeemHandler struct {
	RedeemSvc  *redeem.Service
	RedeemRepo repository.RedeemRepository
	ErrHandler *errHandler.ErrorHandler
}

func NewRedeemHandler(handler *RedeemHandler) *RedeemHandler {
	return handler
}

func newRedeemResponseData(req *repository.RedeemRequest) *RedeemResponseData {
	data := &RedeemResponseData{
		ID:                  req.ID,
		UserID:              req.UserID,
		Amount:              money.Amount(req.Amount).String(),
		Currency:            req.Currency,
		Status:              req.Status,
		WithdrawalFee:       money.Amount(req.WithdrawalFee).String(),
		PlatformFee:         money.Amount(req.PlatformFee).String(),
		NetPayout:           money.Amount(req.NetPayout).String(),
		SettlementReference: req.SettlementReference.String,
		CreatedAt:           req.CreatedAt,
	}

	if req.DecidedAt.Valid {
		data.DecidedAt = &req.DecidedAt.Time
	}

	return data
}

func (h *RedeemHandler) HandleCreateRedeemRequest(w http.ResponseWriter, r *http.Request) {
	principal := context.ContextGetAuthenticatedPrincipal(r)

	type CreateRedeemInput struct {
		Amount    string              `json:"amount"`
		Currency  string              `json:"currency"`
		Validator validator.Validator `json:"-"`
	}

	var input CreateRedeemInput

	err := request.DecodeJSON(w, r, &input)
	if err != nil {
		h.ErrHandler.BadRequest(w, r, err)
		return
	}

	input.Validator.Check(validator.NotBlank(input.Amount), "Amount is required")
	input.Validator.Check(validator.NotBlank(input.Currency), "Currency is required")

	if input.Validator.HasErrors() {
		h.ErrHandler.FailedValidation(w, r, input.Validator)
		return
	}

	req, err := h.RedeemSvc.Submit(r.Context(), principal.UserID, input.Amount, input.Currency)
	if err != nil {
		h.ErrHandler.DomainError(w, r, err)
		return
	}

	message := "Redeem request submitted, points are on hold pending review"

	err = response.JSONCreatedResponse(w, newRedeemResponseData(req), message)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
	}
}

func (h *RedeemHandler) HandleListOwnRedeemRequests(w http.ResponseWriter, r *http.Request) {
	principal := context.ContextGetAuthenticatedPrincipal(r)

	requests, err := h.RedeemRepo.GetAllByUserId(principal.UserID)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
		return
	}

	data := make([]*RedeemResponseData, 0, len(requests))
	for i := range requests {
		data = append(data, newRedeemResponseData(&requests[i]))
	}

	message := "Redeem requests fetched successfully"

	err = response.JSONOkResponse(w, data, message, nil)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
	}
}

func (h *RedeemHandler) HandleAdminListRedeemRequests(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	if status == "" {
		status = repository.RedeemStatusPending
	}

	if status != repository.RedeemStatusPending && status != repository.RedeemStatusApproved && status != repository.RedeemStatusRejected {
		h.ErrHandler.BadRequest(w, r, ErrInvalidStatusFilter)
		return
	}

	requests, err := h.RedeemRepo.ListByStatus(status)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
		return
	}

	data := make([]*RedeemResponseData, 0, len(requests))
	for i := range requests {
		data = append(data, newRedeemResponseData(&requests[i]))
	}

	message := "Redeem requests fetched successfully"

	err = response.JSONOkResponse(w, data, message, nil)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
	}
}

func (h *RedeemHandler) HandleApproveRedeemRequest(w http.ResponseWriter, r *http.Request) {
	principal := context.ContextGetAuthenticatedPrincipal(r)
	requestID := r.PathValue("id")

	type ApproveInput struct {
		SettlementReference string              `json:"settlement_reference"`
		Validator           validator.Validator `json:"-"`
	}

	var input ApproveInput

	err := request.DecodeJSON(w, r, &input)
	if err != nil {
		h.ErrHandler.BadRequest(w, r, err)
		return
	}

	input.Validator.Check(validator.NotBlank(input.SettlementReference), "Settlement reference is required")

	if input.Validator.HasErrors() {
		h.ErrHandler.FailedValidation(w, r, input.Validator)
		return
	}

	req, err := h.RedeemSvc.Approve(r.Context(), principal.UserID, requestID, input.SettlementReference)
	if err != nil {
		h.ErrHandler.DomainError(w, r, err)
		return
	}

	message := "Redeem request approved"

	err = response.JSONOkResponse(w, newRedeemResponseData(req), message, nil)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
	}
}

func (h *RedeemHandler) HandleRejectRedeemRequest(w http.ResponseWriter, r *http.Request) {
	principal := context.ContextGetAuthenticatedPrincipal(r)
	requestID := r.PathValue("id")

	req, err := h.RedeemSvc.Reject(r.Context(), principal.UserID, requestID)
	if err != nil {
		h.ErrHandler.DomainError(w, r, err)
		return
	}

	message := "Redeem request rejected, hold released"

	err = response.JSONOkResponse(w, newRedeemResponseData(req), message, nil)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
	}
}
