package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"finance-tracker/internal/receipt"
	"finance-tracker/internal/service"
)

// Response is the uniform envelope wrapping every API reply. Clients branch
// on the success flag alone.
type Response struct {
	StatusCode int    `json:"statusCode"`
	Data       any    `json:"data"`
	Message    string `json:"message,omitempty"`
	Success    bool   `json:"success"`
}

func respond(c *gin.Context, status int, data any, message string) {
	c.JSON(status, Response{
		StatusCode: status,
		Data:       data,
		Message:    message,
		Success:    status < http.StatusBadRequest,
	})
}

func respondAbort(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, Response{
		StatusCode: status,
		Message:    message,
		Success:    false,
	})
}

// respondError maps the service error taxonomy onto HTTP statuses. Anything
// unrecognized becomes an opaque 500; internals never reach the client.
func (h *Handler) respondError(c *gin.Context, err error) {
	var validation *service.ValidationError
	var draft *receipt.InvalidDraftError

	switch {
	case errors.As(err, &validation):
		respond(c, http.StatusBadRequest, nil, validation.Error())
	case errors.Is(err, receipt.ErrMissingImage):
		respond(c, http.StatusBadRequest, nil, err.Error())
	case errors.Is(err, service.ErrInvalidCredentials):
		respond(c, http.StatusUnauthorized, nil, "invalid credentials")
	case errors.Is(err, service.ErrNotOwner):
		respond(c, http.StatusUnauthorized, nil, "user not authorized")
	case errors.Is(err, service.ErrNotFound):
		respond(c, http.StatusNotFound, nil, "resource not found")
	case errors.Is(err, receipt.ErrParseResponse), errors.As(err, &draft):
		h.logger.WithError(err).Warn("receipt extraction failed")
		respond(c, http.StatusInternalServerError, nil, "failed to extract receipt data")
	default:
		h.logger.WithError(err).Error("request failed")
		respond(c, http.StatusInternalServerError, nil, "internal server error")
	}
}
