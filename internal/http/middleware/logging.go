// Package middleware holds the Gin middleware shared by the HTTP layer:
// correlation ids, access logging, panic recovery, session resolution,
// idempotency key checks, rate limiting, metrics and security headers.
//
// The router composes them as
//
//	RequestID → RedactingLogger → Recovery → … → SessionAuth → IdempotencyValidator → RateLimiter
//
// so that every log line and error envelope carries the request id.
package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// HeaderRequestID carries the correlation id in both directions.
const HeaderRequestID = "X-Request-ID"

const (
	ctxKeyRequestID = "requestID"
	ctxKeyLogger    = "logger"

	maxRequestIDLen = 128
)

// RequestID assigns every request a correlation id. A client-supplied
// X-Request-ID is reused when it is short and made of [A-Za-z0-9._:-];
// anything else is replaced by a fresh UUID so that log lines cannot be
// forged through the header. The id is echoed on the response and recorded
// on the active trace span.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(HeaderRequestID)
		if !validRequestID(rid) {
			rid = uuid.NewString()
		}
		c.Set(ctxKeyRequestID, rid)
		c.Header(HeaderRequestID, rid)

		if span := trace.SpanFromContext(c.Request.Context()); span.IsRecording() {
			span.SetAttributes(attribute.String("http.request_id", rid))
		}
		c.Next()
	}
}

func validRequestID(s string) bool {
	if s == "" || len(s) > maxRequestIDLen {
		return false
	}
	for i := 0; i < len(s); i++ {
		switch b := s[i]; {
		case b >= 'a' && b <= 'z', b >= 'A' && b <= 'Z', b >= '0' && b <= '9':
		case b == '-', b == '_', b == '.', b == ':':
		default:
			return false
		}
	}
	return true
}

// RequestIDOf returns the correlation id of the request, or "" when
// RequestID did not run and no X-Request-ID was written.
func RequestIDOf(c *gin.Context) string {
	if v, ok := c.Get(ctxKeyRequestID); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return c.Writer.Header().Get(HeaderRequestID)
}

// Recovery turns a panic into the standard 500 envelope and logs the stack
// through the request-scoped logger. If the handler already started the
// response only the status is recorded.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			LoggerFrom(c).Error().
				Interface("panic", rec).
				Str("stack", string(debug.Stack())).
				Msg("panic recovered")

			if c.Writer.Written() {
				c.AbortWithStatus(http.StatusInternalServerError)
				return
			}
			abortWithError(c, http.StatusInternalServerError, "internal_error", "internal server error")
		}()
		c.Next()
	}
}

// abortWithError writes the {request_id, code, message} envelope shared with
// the handlers package.
func abortWithError(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, gin.H{
		"request_id": RequestIDOf(c),
		"code":       code,
		"message":    msg,
	})
}

// LoggerFrom returns the request-scoped logger installed by RedactingLogger.
// Without one it falls back to the global logger, tagged with the request id
// when known. The result is never nil.
func LoggerFrom(c *gin.Context) *zerolog.Logger {
	if v, ok := c.Get(ctxKeyLogger); ok {
		if lg, ok := v.(*zerolog.Logger); ok {
			return lg
		}
	}
	l := log.Logger
	if rid := RequestIDOf(c); rid != "" {
		l = l.With().Str("request_id", rid).Logger()
	}
	return &l
}

// bindLogger finishes lc with the request id and trace id and stores the
// result for LoggerFrom.
func bindLogger(c *gin.Context, lc zerolog.Context) *zerolog.Logger {
	lc = lc.Str("request_id", RequestIDOf(c))
	if sc := trace.SpanContextFromContext(c.Request.Context()); sc.IsValid() {
		lc = lc.Str("trace_id", sc.TraceID().String())
	}
	l := lc.Logger()
	c.Set(ctxKeyLogger, &l)
	return &l
}
