package http

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/job-portal/job-portal-server/internal/apperr"
	"github.com/job-portal/job-portal-server/internal/logging"
)

// ErrorResponse is the body written for every failed request.
type ErrorResponse struct {
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	RequestID string    `json:"request_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// WriteError aborts the request with the status and envelope for err.
// Internal errors are logged with their cause; callers only see the message.
func WriteError(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	if kind == apperr.KindInternal || kind == apperr.KindUnavailable {
		logging.FromContext(c.Request.Context()).Error(c.Request.Method+" "+c.FullPath(), err)
	}

	c.AbortWithStatusJSON(kind.HTTPStatus(), ErrorResponse{
		Error:     kind.String(),
		Message:   apperr.MessageOf(err),
		RequestID: c.GetString("request_id"),
		Timestamp: time.Now().UTC(),
	})
}

// BindJSON decodes the request body into dst, writing a 400 on failure.
func BindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		WriteError(c, apperr.Wrap(apperr.KindInvalid, "invalid request body", err))
		return false
	}
	return true
}
