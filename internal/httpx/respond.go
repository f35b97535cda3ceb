package httpx

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/danukusuma/go-order-saga/internal/apperr"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}

// writeError maps the error kind onto an HTTP status. Infrastructure
// details stay in the logs, not the response body.
func writeError(w http.ResponseWriter, log *zap.Logger, err error) {
	code := apperr.CodeOf(err)
	switch apperr.KindOf(err) {
	case apperr.Validation:
		writeJSON(w, http.StatusBadRequest, errorBody{Code: code, Error: err.Error()})
	case apperr.NotFound:
		writeJSON(w, http.StatusNotFound, errorBody{Code: code, Error: err.Error()})
	case apperr.Conflict:
		writeJSON(w, http.StatusConflict, errorBody{Code: code, Error: err.Error()})
	case apperr.BusinessRule:
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Code: code, Error: err.Error()})
	default:
		log.Error("request failed", zap.String("code", code), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorBody{Code: code, Error: "internal error"})
	}
}
