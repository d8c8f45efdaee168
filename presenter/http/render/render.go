package render

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/poanetwork/layer-bridge/breaker"
	"github.com/poanetwork/layer-bridge/entity"
	"github.com/poanetwork/layer-bridge/logging"
	"github.com/poanetwork/layer-bridge/resilience"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

func JSON(w http.ResponseWriter, r *http.Request, status int, res interface{}) {
	enc := json.NewEncoder(w)

	if pretty, _ := strconv.ParseBool(r.URL.Query().Get("pretty")); pretty {
		enc.SetIndent("", "  ")
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := enc.Encode(res); err != nil {
		logging.LoggerFromContext(r.Context()).WithError(fmt.Errorf("failed to marshal JSON result: %w", err)).Error("request handling failed")
	}
}

func Error(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusCode(err)
	logger := logging.LoggerFromContext(r.Context()).WithError(err).WithField("status", status)
	if status >= http.StatusInternalServerError {
		logger.Error("request handling failed")
	} else {
		logger.Warn("request rejected")
	}
	JSON(w, r, status, ErrorResponse{Error: err.Error()})
}

// StatusCode maps bridge error kinds to HTTP status codes.
func StatusCode(err error) int {
	switch {
	case errors.Is(err, entity.ErrValidation), errors.Is(err, entity.ErrInsufficientFee):
		return http.StatusBadRequest
	case errors.Is(err, entity.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, entity.ErrMessageNotFound), errors.Is(err, entity.ErrSwapNotFound):
		return http.StatusNotFound
	case errors.Is(err, entity.ErrReplayDetected), errors.Is(err, entity.ErrInvalidTransition),
		errors.Is(err, entity.ErrTimelockNotExpired), errors.Is(err, entity.ErrStaleStatus):
		return http.StatusConflict
	case errors.Is(err, breaker.ErrCircuitOpen), errors.Is(err, entity.ErrChainInactive):
		return http.StatusServiceUnavailable
	case errors.Is(err, resilience.ErrTimeout):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}
