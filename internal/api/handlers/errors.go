package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/irfndi/mmm-collinearity/internal/middleware"
	"github.com/irfndi/mmm-collinearity/internal/telemetry"
	"github.com/irfndi/mmm-collinearity/internal/utils"
)

type ErrorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	Field     string `json:"field,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

func newErrorResponse(c *gin.Context, status int, message string) ErrorResponse {
	return ErrorResponse{
		Error:     http.StatusText(status),
		Message:   message,
		RequestID: middleware.GetRequestID(c),
	}
}

// StatusFor maps service errors onto HTTP status codes.
func StatusFor(err error) int {
	switch {
	case utils.IsConfigurationError(err):
		return http.StatusBadRequest
	case utils.IsInsufficientData(err):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (h *AnalysisHandler) respondError(c *gin.Context, err error) {
	status := StatusFor(err)
	resp := newErrorResponse(c, status, err.Error())
	telemetry.RecordError(c.Request.Context(), err, http.StatusText(status))

	var cfgErr *utils.ConfigurationError
	if errors.As(err, &cfgErr) {
		resp.Field = cfgErr.Field
	}

	if status == http.StatusInternalServerError {
		h.logger.WithFields(logrus.Fields{
			"request_id": resp.RequestID,
			"path":       c.FullPath(),
		}).WithError(err).Error("Analysis request failed")
		resp.Message = "internal error"
	}
	c.JSON(status, resp)
}
