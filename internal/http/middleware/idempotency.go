package middleware

import (
	"context"
	"net/http"
	"regexp"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/agrihub-davao/chat-backend/internal/convkey"
)

// HeaderIdempotencyKey lets a client retry a send without creating a second
// message. Keys are scoped to the sender and the conversation, so one key may
// be reused across conversations.
const HeaderIdempotencyKey = "Idempotency-Key"

const (
	ctxKeyIdempotency = "idempotency"

	defaultIdempotencyKeyLen = 200
)

var defaultIdempotencyPattern = regexp.MustCompile(`^[A-Za-z0-9._~:-]+$`)

// idempotencyMark is what IdempotencyValidator leaves in the context.
type idempotencyMark struct {
	key    string
	replay bool
}

func markOf(c *gin.Context) idempotencyMark {
	v, _ := c.Get(ctxKeyIdempotency)
	m, _ := v.(idempotencyMark)
	return m
}

// IdempotencyKey returns the validated Idempotency-Key of the request.
func IdempotencyKey(c *gin.Context) (string, bool) {
	k := markOf(c).key
	return k, k != ""
}

// IsReplay reports whether a live record already exists for the key, i.e.
// the request repeats a completed send.
func IsReplay(c *gin.Context) bool { return markOf(c).replay }

// IsRateBypass reports whether the rate limiter should let the request
// through without spending a token. Replays are served from the store and
// bypass the limiter.
func IsRateBypass(c *gin.Context) bool { return IsReplay(c) }

// IdempotencyOptions tunes key validation. Zero values select a 200 byte
// limit and the token charset [A-Za-z0-9._~:-].
type IdempotencyOptions struct {
	MaxLen  int
	Pattern *regexp.Regexp
	Now     func() time.Time
}

// IdempotencyLookup reports whether a record for (userID, scope, key) is
// still live at now. scope is the conversation key.
type IdempotencyLookup func(ctx context.Context, userID, scope, key string, now time.Time) (exists bool, err error)

// IdempotencyValidator checks the Idempotency-Key header of POST requests.
// A malformed key is rejected with 400 bad_idempotency_key. A well-formed key
// is stored for IdempotencyKey and, when the session user and :peer form a
// valid conversation, looked up to flag replays. Lookup failures are logged
// and the request continues as a first attempt. Other methods pass through
// untouched.
func IdempotencyValidator(opts IdempotencyOptions, lookup IdempotencyLookup) gin.HandlerFunc {
	maxLen := opts.MaxLen
	if maxLen <= 0 {
		maxLen = defaultIdempotencyKeyLen
	}
	pattern := opts.Pattern
	if pattern == nil {
		pattern = defaultIdempotencyPattern
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return func(c *gin.Context) {
		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" || c.Request.Method != http.MethodPost {
			c.Next()
			return
		}
		if len(key) > maxLen || !pattern.MatchString(key) {
			abortWithError(c, http.StatusBadRequest, "bad_idempotency_key", "invalid Idempotency-Key")
			return
		}

		mark := idempotencyMark{key: key}
		if scope, ok := idempotencyScope(c); ok && lookup != nil {
			found, err := lookup(c.Request.Context(), UserID(c), scope, key, now().UTC())
			if err != nil {
				LoggerFrom(c).Warn().Err(err).Msg("idempotency lookup failed")
			}
			mark.replay = found && err == nil
		}
		c.Set(ctxKeyIdempotency, mark)
		c.Next()
	}
}

// idempotencyScope derives the conversation key of the request. Requests
// without a session or with an invalid peer have no scope; the handler
// reports those errors itself.
func idempotencyScope(c *gin.Context) (string, bool) {
	uid := UserID(c)
	if uid == "" {
		return "", false
	}
	scope, err := convkey.Derive(uid, c.Param("peer"))
	return scope, err == nil
}
