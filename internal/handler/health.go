package handler

import (
	"net/http"

	"github.com/BM-ACADEMY/alpha-sub001/internal/errHandler"
	"github.com/BM-ACADEMY/alpha-sub001/internal/response"
	"github.com/BM-ACADEMY/alpha-sub001/internal/version"
)

type healthCheckHandler struct {
	err *errHandler.ErrorHandler
}

func NewHealthCheckHandler(err *errHandler.ErrorHandler) *healthCheckHandler {
	return &healthCheckHandler{
		err: err,
	}
}

func (h *healthCheckHandler) HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	data := map[string]string{
		"Status":  "OK",
		"Version": version.Get(),
	}

	err := response.JSONOkResponse(w, data, "", nil)
	if err != nil {
		h.err.ServerError(w, r, err)
	}
}
