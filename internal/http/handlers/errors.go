package handlers

import (
	"errors"
	"net/http"

	"routeengine/internal/domain"
	"routeengine/internal/graph"
	"routeengine/internal/http/middleware"
	"routeengine/internal/utils"

	"github.com/gin-gonic/gin"
)

// ErrorResponse is the payload of every non-2xx answer.
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	Details   any    `json:"details,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

func respondError(c *gin.Context, status int, code, message string, details any) {
	if code == "" {
		code = http.StatusText(status)
	}
	c.JSON(status, ErrorResponse{
		Error:     message,
		Code:      code,
		Details:   details,
		RequestID: middleware.GetRequestID(c),
	})
}

// RespondDomainError maps domain and build errors to HTTP responses.
// Internal failures never leak their cause to the client.
func RespondDomainError(c *gin.Context, err error) {
	if be, ok := graph.IsBuildError(err); ok {
		details := gin.H{"reason": be.Reason, "excludedRoutes": be.Excluded}
		switch be.Reason {
		case graph.ReasonStoreUnavailable:
			respondError(c, http.StatusServiceUnavailable, "store_unavailable", be.Error(), details)
		case graph.ReasonTimeout:
			respondError(c, http.StatusGatewayTimeout, "timeout", be.Error(), details)
		default:
			respondError(c, http.StatusUnprocessableEntity, "build_failed", be.Error(), details)
		}
		return
	}

	switch {
	case domain.IsValidation(err):
		var ve domain.ValidationError
		var details any
		if errors.As(err, &ve) && ve.Field != "" {
			details = gin.H{"field": ve.Field}
		}
		respondError(c, http.StatusBadRequest, "validation_error", err.Error(), details)
	case domain.IsNotFound(err):
		respondError(c, http.StatusNotFound, "not_found", err.Error(), nil)
	case domain.IsConflict(err):
		respondError(c, http.StatusConflict, "conflict", err.Error(), nil)
	case domain.IsUnavailable(err):
		respondError(c, http.StatusServiceUnavailable, "graph_unavailable", err.Error(), nil)
	case domain.IsTimeout(err):
		respondError(c, http.StatusGatewayTimeout, "timeout", err.Error(), nil)
	default:
		if !domain.IsInternal(err) {
			err = domain.InternalError{Msg: "unexpected error", Err: err}
		}
		utils.LogError(middleware.GetRequestID(c), "http", c.FullPath(), err)
		respondError(c, http.StatusInternalServerError, "internal_error", "internal server error", nil)
	}
}
