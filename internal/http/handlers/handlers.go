// Package handlers implements the HTTP endpoints of the conversation API.
//
// Endpoints (relative to the API base path):
//   - POST   /sessions                               (sign in)
//   - GET    /sessions/current                       (current session)
//   - PATCH  /sessions/current                       (update name/role)
//   - DELETE /sessions/current                       (sign out)
//   - GET    /conversations                          (list, paginated, ETag support)
//   - GET    /conversations/{peer}                   (summary of one conversation)
//   - POST   /conversations/{peer}/messages          (send, idempotent)
//   - GET    /conversations/{peer}/messages          (newest first, ETag support)
//   - GET    /conversations/{peer}/messages/search   (rank recent messages)
//   - GET    /conversations/{peer}/feed              (websocket live feed)
//
// Handlers are transport-thin: they validate input, call application services,
// and translate results into HTTP responses (including conditional responses).
// The session user is resolved upstream by middleware.SessionAuth.
package handlers

import (
	"context"
	"math"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/agrihub-davao/chat-backend/internal/domain"
	"github.com/agrihub-davao/chat-backend/internal/feed"
	"github.com/agrihub-davao/chat-backend/internal/http/middleware"
	"github.com/agrihub-davao/chat-backend/internal/search"
	"github.com/agrihub-davao/chat-backend/internal/services"
	"github.com/agrihub-davao/chat-backend/internal/session"
	"github.com/agrihub-davao/chat-backend/internal/utils"
)

//
// Service contracts (context-aware)
//

// SessionService signs users in and out.
type SessionService interface {
	Login(ctx context.Context, in services.SignIn) (string, session.UserSession, error)
	Current(ctx context.Context, token string) (session.UserSession, error)
	Update(ctx context.Context, token string, upd services.SessionUpdate) (session.UserSession, error)
	Logout(ctx context.Context, token string) error
}

// ConversationService reads conversation summaries.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type ConversationService interface {
	// Key derives the conversation key shared by userID and peerID.
	Key(userID, peerID string) (string, error)
	// Get returns the summary of the conversation between userID and peerID.
	Get(ctx context.Context, userID, peerID string) (*services.Conversation, error)
	// ListPage returns a page of userID's conversations and the total count.
	ListPage(ctx context.Context, userID string, page, pageSize int) ([]services.Conversation, int64, error)
}

// MessageService sends, lists and searches messages.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type MessageService interface {
	// Send stores a message and updates the conversation summary atomically.
	Send(ctx context.Context, senderID, peerID, body string) (*domain.Message, error)
	// ListPage returns a page of the conversation, newest first, and the total count.
	ListPage(ctx context.Context, userID, peerID string, page, pageSize int) ([]domain.Message, int64, error)
	// Search ranks the recent messages of the conversation against query.
	Search(ctx context.Context, userID, peerID, query string, k int) ([]search.Result, error)
	// SendOnce is Send with the idempotency record committed in the same
	// transaction; replayed reports that idemKey already held a message.
	SendOnce(ctx context.Context, senderID, peerID, body, idemKey string, status int) (m *domain.Message, replayed bool, err error)
	// Replay returns the message previously created under an idempotency key.
	Replay(ctx context.Context, userID, peerID, idemKey string) (*domain.Message, bool)
}

// FeedService opens live subscriptions to a conversation feed.
type FeedService interface {
	Subscribe(ctx context.Context, key string) (*feed.Subscription, error)
}

//
// Handler wiring
//

// Handlers groups HTTP endpoints for sessions, conversations, messages and
// the live feed. It depends on abstract service interfaces to keep transport
// concerns separate from business logic.
type Handlers struct {
	sessSvc SessionService
	convSvc ConversationService
	msgSvc  MessageService
	feeds   FeedService

	upgrader     websocket.Upgrader
	pingInterval time.Duration
	writeTimeout time.Duration
}

// Option customizes Handlers.
type Option func(*Handlers)

// WithAllowedOrigins restricts websocket upgrades to the given Origin values.
// "*" or an empty list accepts any origin.
func WithAllowedOrigins(origins []string) Option {
	return func(h *Handlers) {
		allowed := make(map[string]struct{}, len(origins))
		for _, o := range origins {
			if o == "*" {
				return
			}
			allowed[o] = struct{}{}
		}
		if len(allowed) == 0 {
			return
		}
		h.upgrader.CheckOrigin = func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true // non-browser clients
			}
			_, ok := allowed[origin]
			return ok
		}
	}
}

// WithPingInterval sets how often the feed socket is pinged.
func WithPingInterval(d time.Duration) Option {
	return func(h *Handlers) {
		if d > 0 {
			h.pingInterval = d
		}
	}
}

// New constructs and returns a Handlers instance bound to the given services.
func New(sessSvc SessionService, convSvc ConversationService, msgSvc MessageService, feeds FeedService, opts ...Option) *Handlers {
	h := &Handlers{
		sessSvc: sessSvc,
		convSvc: convSvc,
		msgSvc:  msgSvc,
		feeds:   feeds,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		pingInterval: 25 * time.Second,
		writeTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// userID returns the session user resolved by middleware.SessionAuth.
func userID(c *gin.Context) string { return middleware.UserID(c) }

//
// DTOs
//

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

func newPagination(page, pageSize int, total int64) Pagination {
	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	return Pagination{
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
	}
}

//
// Helpers
//

// clampPagination parses and bounds page and page_size query params to sane
// defaults and limits, returning (page, pageSize).
func clampPagination(c *gin.Context) (page, pageSize int) {
	page = utils.IntParam(c.Query("page"), 1, 1, math.MaxInt32)
	pageSize = utils.IntParam(c.Query("page_size"), utils.DefaultPageSize, 1, utils.MaxPageSize)
	return
}

// notModified sets etag and reports whether the client already holds it.
func notModified(c *gin.Context, etag string) bool {
	c.Header("ETag", etag)
	if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
		c.Status(http.StatusNotModified)
		return true
	}
	return false
}
