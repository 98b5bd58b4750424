package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/youthforge/forge/internal/common"
	"github.com/youthforge/forge/internal/logging"
)

// responder writes JSON responses and maps the sentinel error taxonomy onto
// HTTP status codes.
type responder struct {
	logger logging.Logger
}

func (r responder) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if data == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(data); err != nil {
		r.logger.Error(context.Background(), "writing response", "error", err)
	}
}

type errorBody struct {
	Error string `json:"error"`
}

func (r responder) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, common.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, common.ErrSlugTaken):
		status = http.StatusConflict
	case errors.Is(err, common.ErrInvalidInput),
		errors.Is(err, common.ErrInvalidCommentBody),
		errors.Is(err, common.ErrMediaLimitExceeded):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, common.ErrInvalidToken), errors.Is(err, common.ErrTokenExpired):
		status = http.StatusUnauthorized
	}

	if status == http.StatusInternalServerError {
		r.logger.Error(context.Background(), "request failed", "error", err)
		r.writeJSON(w, status, errorBody{Error: "internal error"})
		return
	}
	r.writeJSON(w, status, errorBody{Error: err.Error()})
}
