// Message HTTP handlers.
//
// This file exposes REST endpoints for conversation messages:
//   - POST /conversations/{peer}/messages         (send a message to peer)
//   - GET  /conversations/{peer}/messages         (newest-first page)
//   - GET  /conversations/{peer}/messages/search  (rank recent messages)
//
// Handlers are transport-thin:
//   - normalize inputs (line endings, blank-line runs)
//   - delegate to application services (MessageService)
//   - implement conditional responses (ETag) and idempotency semantics
//
// Idempotency:
// If the client supplies an Idempotency-Key header and a previous send
// exists for (user, conversation, key), the handler returns that message with
// 200 and sets `Idempotency-Replayed: true` instead of storing a duplicate.
// The record commits with the message, so concurrent first attempts with the
// same key store one message between them.
package handlers

import (
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/agrihub-davao/chat-backend/internal/domain"
	"github.com/agrihub-davao/chat-backend/internal/http/middleware"
	"github.com/agrihub-davao/chat-backend/internal/repo"
	"github.com/agrihub-davao/chat-backend/internal/search"
	"github.com/agrihub-davao/chat-backend/internal/services"
	"github.com/agrihub-davao/chat-backend/internal/utils"
)

//
// DTOs
//

// SendMessageRequest is the JSON payload for sending a message.
type SendMessageRequest struct {
	// Body is the message text. It must be non-empty after trimming.
	Body string `json:"body" binding:"required" example:"May stock pa po ba kayo ng saging?"`
}

// SendMessageResponse is the JSON envelope for a stored message.
type SendMessageResponse struct {
	Message *domain.Message `json:"message"`
}

// ListMessagesResponse contains a page of messages (newest first) and pagination metadata.
type ListMessagesResponse struct {
	Messages   []domain.Message `json:"messages"`
	Pagination Pagination       `json:"pagination"`
}

// SearchMessagesResponse lists matching message ids, best first.
type SearchMessagesResponse struct {
	Query   string          `json:"query"`
	Results []search.Result `json:"results"`
}

//
// Helpers
//

// nlCollapseRE collapses runs of 3+ newlines to two, preserving paragraphs.
var nlCollapseRE = regexp.MustCompile(`\n{3,}`)

// sanitizeContent normalizes user text for consistent downstream behavior:
//   - converts CRLF/CR to LF,
//   - collapses runs of 3+ LFs to exactly two (paragraph separation),
//   - trims surrounding whitespace.
func sanitizeContent(raw string) string {
	s := strings.ReplaceAll(raw, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = nlCollapseRE.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// replayed answers a repeated send with the stored message.
func replayed(c *gin.Context, m *domain.Message) {
	c.Header(middleware.HeaderIdempotencyReplayed, "true")
	ok(c, http.StatusOK, SendMessageResponse{Message: m})
}

//
// Handlers
//

// SendMessage godoc
// @ID          sendMessage
// @Summary     Send a message
// @Description Appends a message from the session user to the conversation with peer and
// @Description updates the conversation summary in the same transaction. Live subscribers
// @Description of the conversation receive a new snapshot after the commit.
// @Description Supports idempotency via the Idempotency-Key header (same key → same message).
// @Tags        Messages
// @Accept      json
// @Produce     json
// @Param       X-Session-Token  header  string  true   "Session token"
// @Param       Idempotency-Key  header  string  false  "Idempotency key for safe retries (UUID recommended)"
// @Param       peer             path    string  true   "Peer user id"  example(storeB@agrihub.ph)
// @Param       body             body    handlers.SendMessageRequest  true  "Message payload"
// @Success     201  {object}  handlers.SendMessageResponse  "Stored message"
// @Success     200  {object}  handlers.SendMessageResponse  "Replayed message"
// @Failure     400  {object}  handlers.ErrorResponse        "Bad request"
// @Failure     503  {object}  handlers.ErrorResponse        "Store unavailable, nothing was written"
// @Router      /conversations/{peer}/messages [post]
func (h *Handlers) SendMessage(c *gin.Context) {
	ctx := c.Request.Context()
	uid := userID(c)
	peer := c.Param("peer")

	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "body required")
		return
	}

	// A stored record short-circuits the send without opening a transaction.
	idemKey, _ := middleware.IdempotencyKey(c)
	if idemKey != "" {
		if prev, found := h.msgSvc.Replay(ctx, uid, peer, idemKey); found {
			replayed(c, prev)
			return
		}
	}

	m, dup, err := h.msgSvc.SendOnce(ctx, uid, peer, sanitizeContent(req.Body), idemKey, http.StatusCreated)
	if err != nil {
		failService(c, err, ErrCodeSendFailed)
		return
	}
	if dup {
		replayed(c, m)
		return
	}

	ok(c, http.StatusCreated, SendMessageResponse{Message: m})
}

// ListMessages godoc
// @ID          listMessages
// @Summary     List messages of a conversation
// @Description Returns a page of the conversation with peer, newest first.
// @Description Supports weak ETag via If-None-Match and may return 304.
// @Tags        Messages
// @Produce     json
// @Param       X-Session-Token  header  string  true   "Session token"
// @Param       If-None-Match    header  string  false  "Return 304 if ETag matches"
// @Param       peer             path    string  true   "Peer user id"
// @Param       page             query   int     false  "Page number"     minimum(1) default(1)
// @Param       page_size        query   int     false  "Items per page"  minimum(1) maximum(100) default(20)
// @Success     200  {object} handlers.ListMessagesResponse
// @Header      200  {string} ETag "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     400  {object} handlers.ErrorResponse "Invalid participant"
// @Failure     503  {object} handlers.ErrorResponse "Store unavailable"
// @Router      /conversations/{peer}/messages [get]
func (h *Handlers) ListMessages(c *gin.Context) {
	ctx := c.Request.Context()
	uid := userID(c)
	peer := c.Param("peer")

	key, err := h.convSvc.Key(uid, peer)
	if err != nil {
		failService(c, err, ErrCodeBadRequest)
		return
	}
	page, pageSize := clampPagination(c)

	// ETag pre-check (best effort).
	var db *gorm.DB
	if svc, ok := h.msgSvc.(*services.MessageService); ok {
		db = svc.DB
	}
	if db != nil {
		count, maxTS, err := repo.MessagesStats(ctx, db, key)
		if err == nil {
			var ts int64
			if maxTS != nil {
				ts = maxTS.UnixNano()
			}
			etag := fmt.Sprintf(`W/"messages:%s:%d:%d:%d:%d"`, key, count, ts, page, pageSize)
			if notModified(c, etag) {
				return
			}
		}
	}

	items, total, err := h.msgSvc.ListPage(ctx, uid, peer, page, pageSize)
	if err != nil {
		failService(c, err, ErrCodeListFailed)
		return
	}
	ok(c, http.StatusOK, ListMessagesResponse{
		Messages:   items,
		Pagination: newPagination(page, pageSize, total),
	})
}

// SearchMessages godoc
// @ID          searchMessages
// @Summary     Search recent messages of a conversation
// @Description Ranks the most recent messages (the live feed window) by word overlap with q.
// @Tags        Messages
// @Produce     json
// @Param       X-Session-Token  header  string  true   "Session token"
// @Param       peer             path    string  true   "Peer user id"
// @Param       q                query   string  true   "Search text"  example(saging)
// @Param       k                query   int     false  "Max results"  minimum(1) maximum(50) default(10)
// @Success     200  {object} handlers.SearchMessagesResponse
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     503  {object} handlers.ErrorResponse "Store unavailable"
// @Router      /conversations/{peer}/messages/search [get]
func (h *Handlers) SearchMessages(c *gin.Context) {
	q := strings.TrimSpace(c.Query("q"))
	if q == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "q required")
		return
	}
	k := utils.IntParam(c.Query("k"), 10, 1, 50)

	res, err := h.msgSvc.Search(c.Request.Context(), userID(c), c.Param("peer"), q, k)
	if err != nil {
		failService(c, err, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, SearchMessagesResponse{Query: q, Results: res})
}
