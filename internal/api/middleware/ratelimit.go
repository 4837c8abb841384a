package middleware

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/dom/streamgate/internal/api/respond"
	"github.com/dom/streamgate/internal/domain"
	"github.com/dom/streamgate/internal/repository"
	"github.com/sirupsen/logrus"
)

// RateLimit admits at most limit requests per client IP on route within
// window. A nil counter admits everything, and counter failures fail open.
func RateLimit(counter repository.RateCounter, route string, limit int, window time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if counter == nil || limit <= 0 {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := route + ":" + clientIP(r)

			count, remaining, err := counter.Incr(r.Context(), key, window)
			if err != nil {
				logrus.WithError(err).WithField("route", route).Error("[middleware.RateLimit] counter unavailable, admitting request")
				next.ServeHTTP(w, r)
				return
			}

			if count > int64(limit) {
				retryAfter := int(math.Ceil(remaining.Seconds()))
				if retryAfter < 1 {
					retryAfter = 1
				}
				logrus.WithFields(logrus.Fields{
					"route":     route,
					"client_ip": clientIP(r),
				}).Info("[middleware.RateLimit] request rejected")
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				respond.Error(w, r, domain.ErrRateLimited)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// clientIP relies on chi's RealIP middleware having rewritten RemoteAddr.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
