// Conversation HTTP handlers.
//
// A conversation is addressed by the peer's id; the server derives the
// shared key from the session user and the peer, so both participants use
// the same resource without knowing the key.
package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/agrihub-davao/chat-backend/internal/repo"
	"github.com/agrihub-davao/chat-backend/internal/services"
)

// ListConversationsResponse wraps a page of conversations and pagination information.
type ListConversationsResponse struct {
	Conversations []services.Conversation `json:"conversations"`
	Pagination    Pagination              `json:"pagination"`
}

// ListConversations godoc
// @ID          listConversations
// @Summary     List conversations (paginated)
// @Description Returns the session user's conversations, most recently active first.
// @Description Supports weak ETag via If-None-Match and may return 304.
// @Tags        Conversations
// @Produce     json
// @Param       X-Session-Token  header  string  true   "Session token"
// @Param       If-None-Match    header  string  false  "Return 304 if ETag matches"  example(W/\"abc123\")
// @Param       page             query   int     false  "Page number"                 minimum(1) default(1)
// @Param       page_size        query   int     false  "Items per page"              minimum(1) maximum(100) default(20)
// @Success     200  {object} handlers.ListConversationsResponse
// @Header      200  {string} ETag "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     401  {object} handlers.ErrorResponse "Unknown or expired session"
// @Failure     503  {object} handlers.ErrorResponse "Store unavailable"
// @Router      /conversations [get]
func (h *Handlers) ListConversations(c *gin.Context) {
	ctx := c.Request.Context()
	uid := userID(c)
	page, pageSize := clampPagination(c)

	// ETag pre-check (best effort).
	var db *gorm.DB
	if svc, ok := h.convSvc.(*services.ConversationService); ok {
		db = svc.DB
	}
	if db != nil {
		count, maxTS, err := repo.SummariesStats(ctx, db, uid)
		if err == nil {
			var ts int64
			if maxTS != nil {
				ts = maxTS.UnixNano()
			}
			etag := fmt.Sprintf(`W/"conversations:%s:%d:%d:%d:%d"`, uid, count, ts, page, pageSize)
			if notModified(c, etag) {
				return
			}
		}
	}

	items, total, err := h.convSvc.ListPage(ctx, uid, page, pageSize)
	if err != nil {
		failService(c, err, ErrCodeListFailed)
		return
	}
	ok(c, http.StatusOK, ListConversationsResponse{
		Conversations: items,
		Pagination:    newPagination(page, pageSize, total),
	})
}

// GetConversation godoc
// @ID          getConversation
// @Summary     Get one conversation
// @Description Returns the summary (latest message, participants, timestamps) of the
// @Description conversation with peer. 404 until the first message has been sent.
// @Tags        Conversations
// @Produce     json
// @Param       X-Session-Token  header  string  true  "Session token"
// @Param       peer             path    string  true  "Peer user id"  example(storeB@agrihub.ph)
// @Success     200  {object} services.Conversation
// @Failure     400  {object} handlers.ErrorResponse "Invalid participant"
// @Failure     404  {object} handlers.ErrorResponse "No messages exchanged yet"
// @Failure     503  {object} handlers.ErrorResponse "Store unavailable"
// @Router      /conversations/{peer} [get]
func (h *Handlers) GetConversation(c *gin.Context) {
	conv, err := h.convSvc.Get(c.Request.Context(), userID(c), c.Param("peer"))
	if err != nil {
		failService(c, err, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, conv)
}
