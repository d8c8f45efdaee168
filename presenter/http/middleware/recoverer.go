package middleware

import (
	"net/http"

	"github.com/poanetwork/layer-bridge/logging"
	"github.com/poanetwork/layer-bridge/presenter/http/render"
)

// Recoverer turns a handler panic into a JSON 500 response.
func Recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler { //nolint:errorlint
					panic(rec)
				}
				logger := logging.LoggerFromContext(r.Context())
				if err, ok := rec.(error); ok {
					logger = logger.WithError(err)
				} else {
					logger = logger.WithField("recovered", rec)
				}
				logger.Error("recovered error from the http handler")
				render.JSON(w, r, http.StatusInternalServerError, render.ErrorResponse{Error: "internal error"})
			}
		}()
		next.ServeHTTP(w, r)
	})
}
