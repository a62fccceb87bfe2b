package handler

import (
	"errors"
	"net/http"

	"github.com/BM-ACADEMY/alpha-sub001/internal/errHandler"
	"github.com/BM-ACADEMY/alpha-sub001/internal/report"
	"github.com/BM-ACADEMY/alpha-sub001/internal/response"
)

var ErrInvalidReportWindow = errors.New("window must be week or month")

type ReportHandler struct {
	ReportSvc  *report.Service
	ErrHandler *errHandler.ErrorHandler
}

func NewReportHandler(handler *ReportHandler) *ReportHandler {
	return handler
}

func (h *ReportHandler) HandleExpirationReport(w http.ResponseWriter, r *http.Request) {
	window := r.URL.Query().Get("window")
	if window == "" {
		window = "week"
	}

	if window != "week" && window != "month" {
		h.ErrHandler.BadRequest(w, r, ErrInvalidReportWindow)
		return
	}

	rows, err := h.ReportSvc.Expirations(window)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
		return
	}

	message := "Expiration report fetched successfully"

	err = response.JSONOkResponse(w, rows, message, nil)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
	}
}

func (h *ReportHandler) HandleSettlementReport(w http.ResponseWriter, r *http.Request) {
	rows, err := h.ReportSvc.Settlements()
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
		return
	}

	message := "Settlement report fetched successfully"

	err = response.JSONOkResponse(w, rows, message, nil)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
	}
}

func (h *ReportHandler) HandleCurrencySplitReport(w http.ResponseWriter, r *http.Request) {
	rows, err := h.ReportSvc.CurrencySplits()
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
		return
	}

	message := "Currency split report fetched successfully"

	err = response.JSONOkResponse(w, rows, message, nil)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
	}
}
