package middleware

import (
	"net/http"

	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
)

// RequestLogger is chi's access log written through logger.
func RequestLogger(logger *logrus.Logger) func(http.Handler) http.Handler {
	return chiMiddleware.RequestLogger(&chiMiddleware.DefaultLogFormatter{
		Logger:  logger,
		NoColor: true,
	})
}
