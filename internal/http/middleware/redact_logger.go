package middleware

import (
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const maxQueryLogLength = 2048

// Participant ids are often e-mail addresses or phone numbers and travel in
// the :peer segment and in ?peer=, so they are scrubbed like any other PII.
// UUIDs go first: the phone pattern would otherwise eat their digit groups.
var (
	uuidPattern  = regexp.MustCompile(`(?i)\b[0-9a-f]{8}-[0-9a-f]{4}-[1-5][0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}\b`)
	emailPattern = regexp.MustCompile(`(?i)\b[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}\b`)
	phonePattern = regexp.MustCompile(`\b(?:\+?\d{1,3}[ .-]?)?(?:\(?\d{2,4}\)?[ .-]?)?\d{3,4}[ .-]?\d{4}\b`)
	tokenParam   = regexp.MustCompile(`(?i)(^|&)(token=)[^&]*`)
)

// RedactOptions adds header names whose values are replaced by "[REDACTED]"
// on top of Authorization, Cookie, Set-Cookie and X-Session-Token.
type RedactOptions struct {
	MaskHeaders []string
}

type redactor struct {
	masked map[string]struct{}
}

func newRedactor(extra []string) *redactor {
	r := &redactor{masked: map[string]struct{}{
		"authorization":   {},
		"cookie":          {},
		"set-cookie":      {},
		"x-session-token": {},
	}}
	for _, h := range extra {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			r.masked[h] = struct{}{}
		}
	}
	return r
}

func (r *redactor) text(s string) string {
	if s == "" {
		return s
	}
	s = uuidPattern.ReplaceAllString(s, "[REDACTED:id]")
	s = emailPattern.ReplaceAllString(s, "[REDACTED:email]")
	return phonePattern.ReplaceAllString(s, "[REDACTED:phone]")
}

// query masks ?token= before pattern scrubbing and caps the result.
func (r *redactor) query(raw string) string {
	s := r.text(tokenParam.ReplaceAllString(raw, "${1}${2}[REDACTED]"))
	if len(s) > maxQueryLogLength {
		s = s[:maxQueryLogLength] + "…"
	}
	return s
}

func (r *redactor) headers(h http.Header) *zerolog.Event {
	d := zerolog.Dict()
	for k, vv := range h {
		if _, ok := r.masked[strings.ToLower(k)]; ok {
			d.Str(k, "[REDACTED]")
			continue
		}
		d.Str(k, r.text(strings.Join(vv, ", ")))
	}
	return d
}

// RedactingLogger is the access logger. Before the handler runs it installs
// the request-scoped logger returned by LoggerFrom (request id, trace id,
// method, route); after it returns it emits one "http_request" line with the
// outcome. Bodies are never logged. Query strings, header values and the raw
// path of unmatched routes are scrubbed of e-mail addresses, phone numbers,
// UUIDs and session tokens.
//
// The line is logged at error level for 5xx or when handlers attached gin
// errors, warn for 4xx and info otherwise.
func RedactingLogger(opts RedactOptions) gin.HandlerFunc {
	rd := newRedactor(opts.MaskHeaders)

	return func(c *gin.Context) {
		start := time.Now()

		path := c.FullPath()
		if path == "" {
			path = rd.text(c.Request.URL.Path)
		}
		lg := bindLogger(c, log.With().
			Str("method", c.Request.Method).
			Str("path", path))

		query := rd.query(c.Request.URL.RawQuery)
		headers := rd.headers(c.Request.Header)

		c.Next()

		status := c.Writer.Status()
		ev := lg.WithLevel(accessLevel(status, len(c.Errors) > 0))
		if len(c.Errors) > 0 {
			ev = ev.Str("errors", rd.text(c.Errors.String()))
		}
		ev.Str("query", query).
			Bool("authenticated", UserID(c) != "").
			Bool("websocket", IsWebsocketUpgrade(c.Request)).
			Int("status", status).
			Int("bytes", c.Writer.Size()).
			Dur("latency", time.Since(start)).
			Dict("headers", headers).
			Msg("http_request")
	}
}

func accessLevel(status int, failed bool) zerolog.Level {
	switch {
	case failed || status >= http.StatusInternalServerError:
		return zerolog.ErrorLevel
	case status >= http.StatusBadRequest:
		return zerolog.WarnLevel
	default:
		return zerolog.InfoLevel
	}
}
