package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/agrihub-davao/chat-backend/internal/http/middleware"
)

// ErrorResponse is the body of every error response.
type ErrorResponse struct {
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	// Stable, machine-readable; see the ErrCode constants.
	Code    string `json:"code" example:"store_unavailable"`
	Message string `json:"message" example:"store unavailable"`
}

func fail(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, ErrorResponse{
		RequestID: middleware.RequestIDOf(c),
		Code:      code,
		Message:   msg,
	})
}

// Fail writes the error envelope for callers outside the package, such as
// the router's NoRoute and NoMethod handlers.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

// failWithCause answers with a client-safe message and attaches cause to the
// request as a private gin error. The access log prints it, scrubbed, and
// raises the line to error level; the client never sees it.
func failWithCause(c *gin.Context, status int, code, msg string, cause error) {
	if cause != nil {
		_ = c.Error(cause).SetType(gin.ErrorTypePrivate)
	}
	fail(c, status, code, msg)
}

func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}

func noContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}
