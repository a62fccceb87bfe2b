package handler

import (
	"net/http"
	"strconv"
)

type pageValues struct {
	Page     int
	PageSize int
}

func retrievePageValues(r *http.Request) *pageValues {
	values := &pageValues{
		Page:     1,
		PageSize: 20,
	}

	if pageStr := r.URL.Query().Get("page"); pageStr != "" {
		if parsed, err := strconv.Atoi(pageStr); err == nil && parsed >= 1 {
			values.Page = parsed
		}
	}

	if sizeStr := r.URL.Query().Get("page_size"); sizeStr != "" {
		if parsed, err := strconv.Atoi(sizeStr); err == nil && parsed > 0 && parsed <= 100 {
			values.PageSize = parsed
		}
	}

	return values
}
