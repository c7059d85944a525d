package auctionhandler

import (
	"errors"
	"net/http"

	"auctiongate/internal/lifecycle"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// errorEnvelope maps lifecycle errors onto HTTP statuses. Conflicts carry
// the stored state so the caller can refresh.
func errorEnvelope(c *gin.Context, err error) (int, Envelope) {
	var (
		verr *lifecycle.ValidationError
		aerr *lifecycle.AuthorizationError
		terr *lifecycle.InvalidTransitionError
		cerr *lifecycle.ConflictError
	)
	switch {
	case errors.As(err, &verr):
		details := gin.H{}
		if verr.Field != "" {
			details["field"] = verr.Field
		}
		if verr.RequiredMinimum.Valid {
			details["required_minimum"] = verr.RequiredMinimum.Decimal.StringFixed(2)
		}
		return http.StatusUnprocessableEntity, Envelope{Status: "error", Code: "validation_failed", Message: verr.Error(), Details: details}
	case errors.As(err, &aerr):
		return http.StatusForbidden, Envelope{Status: "error", Code: "forbidden", Message: aerr.Error()}
	case errors.As(err, &terr):
		return http.StatusConflict, Envelope{Status: "error", Code: "invalid_transition", Message: terr.Error(), Details: terr.Current}
	case errors.As(err, &cerr):
		return http.StatusConflict, Envelope{Status: "error", Code: "conflict", Message: cerr.Error(),
			Details: gin.H{"current": cerr.Current, "version": cerr.Version}}
	case errors.Is(err, lifecycle.ErrNotFound):
		return http.StatusNotFound, Envelope{Status: "error", Code: "not_found", Message: err.Error()}
	case lifecycle.IsTransient(err):
		zap.L().Warn("request_transient_failure", zap.String("path", c.FullPath()), zap.Error(err))
		return http.StatusServiceUnavailable, Envelope{Status: "error", Code: "unavailable", Message: "temporarily unavailable, retry"}
	default:
		zap.L().Error("request_failed", zap.String("path", c.FullPath()), zap.Error(err))
		return http.StatusInternalServerError, Envelope{Status: "error", Code: "internal", Message: "internal error"}
	}
}

func writeError(c *gin.Context, err error) {
	c.JSON(errorEnvelope(c, err))
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusUnprocessableEntity, Envelope{Status: "error", Code: "invalid_request_body", Message: err.Error()})
}
