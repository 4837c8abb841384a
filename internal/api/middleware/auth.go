package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/dom/streamgate/internal/api/respond"
	"github.com/dom/streamgate/internal/domain"
	"github.com/dom/streamgate/internal/service"
	"github.com/dom/streamgate/internal/token"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type contextKey string

const (
	UserIDKey contextKey = "userID"
	CallerKey contextKey = "caller"
)

// BearerToken extracts the token from an "Authorization: Bearer" header.
func BearerToken(r *http.Request) (string, bool) {
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// Auth admits requests carrying a valid access token and stores the user id
// in the request context.
func Auth(authService *service.AuthService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			accessToken, ok := BearerToken(r)
			if !ok {
				logrus.WithField("route", r.URL.Path).Debug("[middleware.Auth] missing bearer token")
				respond.Error(w, r, fmt.Errorf("%w: authorization header required", domain.ErrUnauthorized))
				return
			}

			userID, err := authService.Authenticate(accessToken)
			if err != nil {
				logrus.WithFields(logrus.Fields{
					"route": r.URL.Path,
					"cause": token.Code(err),
				}).Warn("[middleware.Auth] access token rejected")
				respond.Error(w, r, err)
				return
			}

			ctx := context.WithValue(r.Context(), UserIDKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Internal admits server-to-server calls carrying an internal token.
func Internal(authService *service.AuthService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			internalToken, ok := BearerToken(r)
			if !ok {
				respond.Error(w, r, fmt.Errorf("%w: authorization header required", domain.ErrUnauthorized))
				return
			}

			caller, err := authService.AuthenticateInternal(internalToken)
			if err != nil {
				logrus.WithFields(logrus.Fields{
					"route": r.URL.Path,
					"cause": token.Code(err),
				}).Warn("[middleware.Internal] internal token rejected")
				respond.Error(w, r, err)
				return
			}

			ctx := context.WithValue(r.Context(), CallerKey, caller)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func GetUserID(ctx context.Context) (uuid.UUID, bool) {
	userID, ok := ctx.Value(UserIDKey).(uuid.UUID)
	return userID, ok
}

func GetCaller(ctx context.Context) (string, bool) {
	caller, ok := ctx.Value(CallerKey).(string)
	return caller, ok
}
