// Package respond writes JSON bodies and maps domain and token errors to
// HTTP statuses with stable error codes.
package respond

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dom/streamgate/internal/domain"
	"github.com/dom/streamgate/internal/token"
	"github.com/sirupsen/logrus"
)

type ErrorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

type mapping struct {
	err    error
	status int
	code   string
}

// Order matters: auth-layer Unauthorized wraps token errors and must win.
var mappings = []mapping{
	{domain.ErrUnauthorized, http.StatusUnauthorized, "Unauthorized"},
	{token.ErrInvalidSignature, http.StatusUnauthorized, "InvalidSignature"},
	{token.ErrExpired, http.StatusUnauthorized, "Expired"},
	{token.ErrKindMismatch, http.StatusUnauthorized, "KindMismatch"},
	{token.ErrMalformed, http.StatusUnauthorized, "Malformed"},
	{domain.ErrInvalidCredentials, http.StatusUnauthorized, "InvalidCredentials"},
	{domain.ErrEmailTaken, http.StatusConflict, "EmailTaken"},
	{domain.ErrWeakPassword, http.StatusBadRequest, "WeakPassword"},
	{domain.ErrInvalidInput, http.StatusBadRequest, "BadRequest"},
	{domain.ErrInvalidProgress, http.StatusBadRequest, "BadRequest"},
	{domain.ErrRateLimited, http.StatusTooManyRequests, "RateLimited"},
	{domain.ErrVideoNotFound, http.StatusNotFound, "NotFound"},
	{domain.ErrUserNotFound, http.StatusNotFound, "NotFound"},
	{domain.ErrUpstreamUnavailable, http.StatusBadGateway, "BadGateway"},
}

func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.WithError(err).Debug("[respond.JSON] failed to write body")
	}
}

// Error writes err as {"error", "code"}. Unmapped errors become a 500 and
// are logged; their text never reaches the client.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	for _, m := range mappings {
		if errors.Is(err, m.err) {
			JSON(w, m.status, ErrorBody{Error: m.err.Error(), Code: m.code})
			return
		}
	}

	logrus.WithError(err).WithFields(logrus.Fields{
		"method": r.Method,
		"route":  r.URL.Path,
	}).Error("[respond.Error] unhandled error")
	JSON(w, http.StatusInternalServerError, ErrorBody{Error: "internal server error", Code: "Internal"})
}

func BadRequest(w http.ResponseWriter, message string) {
	JSON(w, http.StatusBadRequest, ErrorBody{Error: message, Code: "BadRequest"})
}
