package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"

	"course-payments/internal/domain"
)

const kindRateLimited = "rate_limited"

var kindStatus = map[string]int{
	domain.KindValidation:       http.StatusBadRequest,
	domain.KindGateway:          http.StatusBadGateway,
	domain.KindSignatureInvalid: http.StatusBadRequest,
	domain.KindStateConflict:    http.StatusConflict,
	domain.KindNotFound:         http.StatusNotFound,
	domain.KindTransient:        http.StatusServiceUnavailable,
	domain.KindUnauthorized:     http.StatusUnauthorized,
	domain.KindForbidden:        http.StatusForbidden,
	domain.KindInternal:         http.StatusInternalServerError,
	kindRateLimited:             http.StatusTooManyRequests,
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps err onto the external error body. Internal errors never
// leak their message.
func writeError(w http.ResponseWriter, err error) {
	kind := errorKind(err)
	msg := err.Error()
	switch kind {
	case domain.KindInternal:
		msg = "internal error"
	case domain.KindTransient:
		msg = "temporarily unavailable, retry later"
	case domain.KindUnauthorized:
		msg = "unauthorized"
	}
	writeJSON(w, kindStatus[kind], errorBody{Error: errorDetail{Kind: kind, Message: msg}})
}

func errorKind(err error) string {
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		return domain.KindValidation
	}
	return domain.Kind(err)
}
