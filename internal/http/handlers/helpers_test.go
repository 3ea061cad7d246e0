package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/agrihub-davao/chat-backend/internal/domain"
	"github.com/agrihub-davao/chat-backend/internal/feed"
	"github.com/agrihub-davao/chat-backend/internal/http/middleware"
	"github.com/agrihub-davao/chat-backend/internal/repo"
	"github.com/agrihub-davao/chat-backend/internal/services"
	"github.com/agrihub-davao/chat-backend/internal/session"
)

// ---------- test plumbing ----------

// testEnv wires real services over a temp-file SQLite database, an
// in-memory Badger session store and an in-process feed bus.
type testEnv struct {
	db     *gorm.DB
	msg    *services.MessageService
	conv   *services.ConversationService
	sess   *services.SessionService
	broker *feed.Broker
	h      *Handlers
	r      *gin.Engine
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := repo.OpenSQLite(filepath.Join(t.TempDir(), "handlers.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.Logger = logger.Default.LogMode(logger.Silent)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := newTestDB(t)

	kv, err := session.OpenBadger("")
	if err != nil {
		t.Fatalf("open badger: %v", err)
	}
	t.Cleanup(func() { _ = kv.Close() })
	store := session.NewBadgerStore(kv, time.Hour)

	msgSvc := services.NewMessageService(db, nil)
	broker := feed.NewBroker(feed.NewLocalBus(16), msgSvc.Recent)
	msgSvc.Feed = broker

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = broker.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	env := &testEnv{
		db:     db,
		msg:    msgSvc,
		conv:   services.NewConversationService(db, repo.SummaryStore{}),
		sess:   services.NewSessionService(store),
		broker: broker,
	}
	env.h = New(env.sess, env.conv, env.msg, broker, WithPingInterval(time.Second))

	lookup := func(ctx context.Context, userID, scope, key string, now time.Time) (bool, error) {
		rec, err := repo.GetIdempotency(ctx, db, userID, scope, key, now)
		if errors.Is(err, repo.ErrNotFound) {
			return false, nil
		}
		return err == nil && rec.Live(now), err
	}

	r := gin.New()
	r.Use(middleware.RequestID())
	r.POST("/sessions", env.h.Login)
	authed := r.Group("/", middleware.SessionAuth(store))
	authed.GET("/sessions/current", env.h.CurrentSession)
	authed.PATCH("/sessions/current", env.h.UpdateSession)
	authed.DELETE("/sessions/current", env.h.Logout)
	authed.GET("/conversations", env.h.ListConversations)
	authed.GET("/conversations/:peer", env.h.GetConversation)
	authed.POST("/conversations/:peer/messages",
		middleware.IdempotencyValidator(middleware.IdempotencyOptions{}, lookup), env.h.SendMessage)
	authed.GET("/conversations/:peer/messages", env.h.ListMessages)
	authed.GET("/conversations/:peer/messages/search", env.h.SearchMessages)
	authed.GET("/conversations/:peer/feed", env.h.Feed)
	env.r = r
	return env
}

// do performs a request against the env router.
func (e *testEnv) do(t *testing.T, method, path, token string, body any, hdr map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var rdr *bytes.Reader
	switch b := body.(type) {
	case nil:
		rdr = bytes.NewReader(nil)
	case string:
		rdr = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		rdr = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rdr)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set(middleware.HeaderSessionToken, token)
	}
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	e.r.ServeHTTP(w, req)
	return w
}

// login signs id in and returns the session token.
func (e *testEnv) login(t *testing.T, id, role string) string {
	t.Helper()
	w := e.do(t, http.MethodPost, "/sessions", "", map[string]string{
		"id": id, "display_name": id, "role": role,
	}, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("login %s: status=%d body=%s", id, w.Code, w.Body.String())
	}
	var resp LoginResponse
	decode(t, w, &resp)
	return resp.Token
}

// send posts body from the session of token to peer and returns the message.
func (e *testEnv) send(t *testing.T, token, peer, body string) domain.Message {
	t.Helper()
	w := e.do(t, http.MethodPost, "/conversations/"+peer+"/messages", token, SendMessageRequest{Body: body}, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("send: status=%d body=%s", w.Code, w.Body.String())
	}
	var resp SendMessageResponse
	decode(t, w, &resp)
	return *resp.Message
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
}

func errCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var e ErrorResponse
	decode(t, w, &e)
	return e.Code
}
