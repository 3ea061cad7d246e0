// Live feed handler.
//
// GET /conversations/{peer}/feed upgrades to a websocket and streams one JSON
// frame per feed snapshot: the newest messages of the conversation, newest
// first, plus the message that triggered the snapshot when known. The first
// frame is sent right after the upgrade. A frame with a non-empty "error"
// means the feed could not be loaded at that moment; the socket stays open
// and the next change delivers a fresh snapshot.
package handlers

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/agrihub-davao/chat-backend/internal/domain"
	"github.com/agrihub-davao/chat-backend/internal/feed"
	"github.com/agrihub-davao/chat-backend/internal/http/middleware"
)

// FeedFrame is one websocket message of the live feed.
type FeedFrame struct {
	Key      string           `json:"key"`
	Messages []domain.Message `json:"messages"`
	Added    *domain.Message  `json:"added,omitempty"`
	Error    string           `json:"error,omitempty"`
	At       time.Time        `json:"at"`
}

func newFeedFrame(s feed.Snapshot) FeedFrame {
	f := FeedFrame{Key: s.Key, Messages: s.Messages, Added: s.Added, At: s.At}
	if s.Err != nil {
		f.Error = "feed unavailable"
	}
	if f.Messages == nil {
		f.Messages = []domain.Message{}
	}
	return f
}

// Feed godoc
// @ID          conversationFeed
// @Summary     Live feed of a conversation (websocket)
// @Description Upgrades to a websocket and pushes a handlers.FeedFrame whenever the
// @Description conversation with peer changes. Browsers may pass the session token as ?token=.
// @Tags        Messages
// @Param       X-Session-Token  header  string  false  "Session token"
// @Param       token            query   string  false  "Session token (websocket clients)"
// @Param       peer             path    string  true   "Peer user id"
// @Success     101  {object}  handlers.FeedFrame  "Switching Protocols"
// @Failure     400  {object}  handlers.ErrorResponse "Invalid participant"
// @Failure     401  {object}  handlers.ErrorResponse "Unknown or expired session"
// @Router      /conversations/{peer}/feed [get]
func (h *Handlers) Feed(c *gin.Context) {
	key, err := h.convSvc.Key(userID(c), c.Param("peer"))
	if err != nil {
		failService(c, err, ErrCodeBadRequest)
		return
	}
	lg := middleware.LoggerFrom(c).With().Str("conversation_key", key).Logger()

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already answered the client.
		lg.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.WithoutCancel(c.Request.Context()))
	defer cancel()

	sub, err := h.feeds.Subscribe(ctx, key)
	if err != nil {
		lg.Error().Err(err).Msg("feed subscribe failed")
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "subscribe failed"),
			time.Now().Add(h.writeTimeout))
		return
	}
	defer sub.Close()

	go h.readPump(conn, cancel)

	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(h.writeTimeout))
			return
		case snap, open := <-sub.C():
			if !open {
				return
			}
			b, err := json.Marshal(newFeedFrame(snap))
			if err != nil {
				lg.Error().Err(err).Msg("feed frame encode failed")
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
				lg.Debug().Err(err).Msg("feed write failed")
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(h.writeTimeout)); err != nil {
				lg.Debug().Err(err).Msg("feed ping failed")
				return
			}
		}
	}
}

// readPump drains client frames so pongs and close frames are processed, and
// cancels the feed when the client goes away or stops answering pings.
func (h *Handlers) readPump(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()

	wait := 2 * h.pingInterval
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(wait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
