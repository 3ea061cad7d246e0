package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/agrihub-davao/chat-backend/internal/config"
	"github.com/agrihub-davao/chat-backend/internal/feed"
	"github.com/agrihub-davao/chat-backend/internal/http/middleware"
	"github.com/agrihub-davao/chat-backend/internal/repo"
	"github.com/agrihub-davao/chat-backend/internal/services"
	"github.com/agrihub-davao/chat-backend/internal/session"
)

// --- test DB helper (pure-Go sqlite, no CGO) ---
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := repo.OpenSQLite(filepath.Join(t.TempDir(), "router.db"))
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
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func newTestDeps(t *testing.T) Deps {
	t.Helper()
	db := newTestDB(t)

	kv, err := session.OpenBadger("")
	if err != nil {
		t.Fatalf("open badger: %v", err)
	}
	t.Cleanup(func() { _ = kv.Close() })

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

	return Deps{
		DB:       db,
		Sessions: session.NewBadgerStore(kv, time.Hour),
		Messages: msgSvc,
		Feeds:    broker,
	}
}

func baseConfig() config.Config {
	return config.Config{
		APIBasePath: "/api/v1",
		RateRPS:     100,
		RateBurst:   10,
		OTEL:        config.OTELConfig{ServiceName: "test-svc"},
	}
}

func newRouter(t *testing.T, cfg config.Config) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterRoutes(r, newTestDeps(t), cfg)
	return r
}

func serve(r *gin.Engine, method, path, token string, body any, hdr map[string]string) *httptest.ResponseRecorder {
	var rdr io.Reader = http.NoBody
	if body != nil {
		raw, _ := json.Marshal(body)
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
	r.ServeHTTP(w, req)
	return w
}

func loginToken(t *testing.T, r *gin.Engine, id, role string) string {
	t.Helper()
	w := serve(r, http.MethodPost, "/api/v1/sessions", "", map[string]string{
		"id": id, "display_name": id, "role": role,
	}, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("login %s: %d %s", id, w.Code, w.Body.String())
	}
	var resp struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil || resp.Token == "" {
		t.Fatalf("login response %q: %v", w.Body.String(), err)
	}
	return resp.Token
}

func messageID(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp struct {
		Message struct {
			ID string `json:"id"`
		} `json:"message"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil || resp.Message.ID == "" {
		t.Fatalf("send response %q: %v", w.Body.String(), err)
	}
	return resp.Message.ID
}

func TestRegisterRoutes_CORSAllowAll_Health_Metrics_Fallbacks(t *testing.T) {
	r := newRouter(t, baseConfig())

	// /health works
	w := serve(r, http.MethodGet, "/health", "", nil, map[string]string{"Origin": "https://shop.example"})
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d", w.Code)
	}
	// Without an allowlist every origin is admitted.
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("AllowAllOrigins expected '*', got %q", got)
	}

	// /metrics is wired
	w = serve(r, http.MethodGet, "/metrics", "", nil, nil)
	if w.Code != http.StatusOK || len(w.Body.Bytes()) == 0 {
		t.Fatalf("GET /metrics bad: code=%d len=%d", w.Code, w.Body.Len())
	}

	// NoRoute → 404
	w = serve(r, http.MethodGet, "/nope", "", nil, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("GET /nope expected 404, got %d", w.Code)
	}

	// NoMethod → 405 (POST /health)
	w = serve(r, http.MethodPost, "/health", "", nil, nil)
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("POST /health expected 405, got %d", w.Code)
	}

	// Swagger is off unless enabled.
	w = serve(r, http.MethodGet, "/swagger/index.html", "", nil, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("swagger should be disabled, got %d", w.Code)
	}
}

func TestRegisterRoutes_CORSWithOrigins_HeaderEcho(t *testing.T) {
	cfg := baseConfig()
	cfg.APIBasePath = "/api/v2"
	cfg.CORS = config.CORSConfig{AllowedOrigins: []string{"https://app.agrihub.ph"}}
	r := newRouter(t, cfg)

	w := serve(r, http.MethodGet, "/health", "", nil, map[string]string{"Origin": "https://app.agrihub.ph"})
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://app.agrihub.ph" {
		t.Fatalf("expected ACAO echo, got %q", got)
	}
	if got := w.Header().Get("Access-Control-Expose-Headers"); !strings.Contains(got, "Idempotency-Replayed") {
		t.Fatalf("replay marker must be readable by browsers, got %q", got)
	}

	// Origins outside the allowlist are refused.
	w = serve(r, http.MethodGet, "/health", "", nil, map[string]string{"Origin": "https://evil.example"})
	if w.Code != http.StatusForbidden {
		t.Fatalf("foreign origin = %d; want 403", w.Code)
	}

	// Preflight for a send with an idempotency key.
	w = serve(r, http.MethodOptions, "/api/v2/conversations/storeB/messages", "", nil, map[string]string{
		"Origin":                         "https://app.agrihub.ph",
		"Access-Control-Request-Method":  "POST",
		"Access-Control-Request-Headers": "X-Session-Token, Idempotency-Key, Content-Type",
	})
	if w.Code != http.StatusNoContent {
		t.Fatalf("preflight = %d", w.Code)
	}

	// Routes live under the configured base path.
	w = serve(r, http.MethodGet, "/api/v2/conversations", "", nil, nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("GET /api/v2/conversations without session = %d", w.Code)
	}
}

func TestRegisterRoutes_SwaggerEnabled(t *testing.T) {
	cfg := baseConfig()
	cfg.SwaggerEnabled = true
	r := newRouter(t, cfg)

	w := serve(r, http.MethodGet, "/swagger/index.html", "", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /swagger/index.html = %d", w.Code)
	}
}

func TestRegisterRoutes_SwaggerFollowsBasePath(t *testing.T) {
	cfg := baseConfig()
	cfg.SwaggerEnabled = true
	cfg.APIBasePath = "/api/v2"
	r := newRouter(t, cfg)

	w := serve(r, http.MethodGet, "/swagger/doc.json", "", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /swagger/doc.json = %d", w.Code)
	}
	var doc struct {
		BasePath string `json:"basePath"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &doc); err != nil {
		t.Fatalf("doc.json: %v", err)
	}
	if doc.BasePath != "/api/v2" {
		t.Fatalf("basePath = %q; want /api/v2", doc.BasePath)
	}
}

func TestRegisterRoutes_SendAndReplayThroughStack(t *testing.T) {
	r := newRouter(t, baseConfig())
	farmer := loginToken(t, r, "farmerA", "Farmer/Supplier")

	hdr := map[string]string{middleware.HeaderIdempotencyKey: "send-1"}
	body := map[string]string{"body": "Hello"}

	w := serve(r, http.MethodPost, "/api/v1/conversations/storeB/messages", farmer, body, hdr)
	if w.Code != http.StatusCreated {
		t.Fatalf("first send: %d %s", w.Code, w.Body.String())
	}
	firstID := messageID(t, w)

	w = serve(r, http.MethodPost, "/api/v1/conversations/storeB/messages", farmer, body, hdr)
	if w.Code != http.StatusOK || w.Header().Get("Idempotency-Replayed") != "true" {
		t.Fatalf("replay: %d %v", w.Code, w.Header())
	}
	if id := messageID(t, w); id != firstID {
		t.Fatalf("replay returned %q, want %q", id, firstID)
	}

	w = serve(r, http.MethodGet, "/api/v1/conversations/storeB/messages", farmer, nil, nil)
	var list struct {
		Messages []struct {
			Body string `json:"body"`
		} `json:"messages"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list.Messages) != 1 {
		t.Fatalf("replay must not store a duplicate, got %d messages", len(list.Messages))
	}

	// Invalid keys are rejected before the handler runs.
	w = serve(r, http.MethodPost, "/api/v1/conversations/storeB/messages", farmer, body,
		map[string]string{middleware.HeaderIdempotencyKey: "has spaces"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad idempotency key: %d", w.Code)
	}
}

func TestRegisterRoutes_RateLimitPerUser(t *testing.T) {
	cfg := baseConfig()
	cfg.RateRPS = 0.001
	cfg.RateBurst = 2
	r := newRouter(t, cfg)

	// Login is keyed by IP; two logins drain that bucket.
	a := loginToken(t, r, "farmerA", "Farmer/Supplier")
	b := loginToken(t, r, "storeB", "Store Owner")
	if w := serve(r, http.MethodPost, "/api/v1/sessions", "", map[string]string{
		"id": "c1", "display_name": "c1", "role": "Consumer",
	}, nil); w.Code != http.StatusTooManyRequests {
		t.Fatalf("third login from same IP: %d", w.Code)
	}

	// Authenticated routes are keyed by user, so each session has its own bucket.
	for i := 0; i < 2; i++ {
		if w := serve(r, http.MethodGet, "/api/v1/conversations", a, nil, nil); w.Code != http.StatusOK {
			t.Fatalf("farmerA request %d: %d", i, w.Code)
		}
	}
	if w := serve(r, http.MethodGet, "/api/v1/conversations", a, nil, nil); w.Code != http.StatusTooManyRequests {
		t.Fatalf("farmerA over budget: %d", w.Code)
	}
	if w := serve(r, http.MethodGet, "/api/v1/conversations", b, nil, nil); w.Code != http.StatusOK {
		t.Fatalf("storeB has its own bucket: %d", w.Code)
	}
}

func TestRegisterRoutes_GzipSkipsFeed(t *testing.T) {
	r := newRouter(t, baseConfig())
	tok := loginToken(t, r, "farmerA", "Farmer/Supplier")
	gz := map[string]string{"Accept-Encoding": "gzip"}

	w := serve(r, http.MethodGet, "/api/v1/conversations", tok, nil, gz)
	if w.Header().Get("Content-Encoding") != "gzip" {
		t.Fatalf("expected gzip on list, headers=%v", w.Header())
	}

	// Self feed fails validation before the upgrade; the response must stay plain.
	w = serve(r, http.MethodGet, "/api/v1/conversations/farmerA/feed", tok, nil, gz)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("self feed: %d", w.Code)
	}
	if w.Header().Get("Content-Encoding") != "" {
		t.Fatalf("feed must not be compressed")
	}
}

func Test_limitBody_Middleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	// tiny cap to trigger MaxBytesReader
	r.Use(limitBody(10))
	r.POST("/echo", func(c *gin.Context) {
		_, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.String(http.StatusRequestEntityTooLarge, "too big")
			return
		}
		c.String(http.StatusOK, "ok")
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/echo", bytes.NewBufferString("0123456789AB")) // 12 bytes
	r.ServeHTTP(w, req)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413 from limitBody, got %d", w.Code)
	}
}

func Test_groupWithPrefix(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	// "/" and "" should mount at root
	root1 := groupWithPrefix(r, "/")
	root1.GET("/one", func(c *gin.Context) { c.String(http.StatusOK, "one") })
	root2 := groupWithPrefix(r, "")
	root2.GET("/two", func(c *gin.Context) { c.String(http.StatusOK, "two") })

	// non-root prefix
	api := groupWithPrefix(r, "/api")
	api.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	for path, want := range map[string]string{"/one": "one", "/two": "two", "/api/ping": "pong"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK || rec.Body.String() != want {
			t.Fatalf("GET %s got %d %q", path, rec.Code, rec.Body.String())
		}
	}
}

// Smoke test that a request traverses otel + request id + security headers pipeline.
func TestPipeline_Smoke(t *testing.T) {
	cfg := baseConfig()
	cfg.Security = config.SecurityConfig{EnableHSTS: true, HSTSMaxAge: time.Hour}
	r := newRouter(t, cfg)

	w := serve(r, http.MethodGet, "/health", "", nil, map[string]string{"X-Forwarded-Proto": "https"})
	if w.Code != http.StatusOK {
		t.Fatalf("pipeline GET /health = %d", w.Code)
	}
	if rid := w.Header().Get("X-Request-ID"); rid == "" {
		t.Fatalf("expected X-Request-ID header to be set")
	}
	if got := w.Header().Get("Strict-Transport-Security"); got == "" {
		t.Fatalf("expected HSTS behind an https proxy")
	}
}

func Test_idempotencyLookup(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	lookup := idempotencyLookup(db)

	hit, err := lookup(ctx, "farmerA", "farmerA_storeB", "k1", time.Now())
	if hit || err != nil {
		t.Fatalf("miss expected, got hit=%v err=%v", hit, err)
	}

	if _, err := repo.CreateIdempotency(ctx, db, "farmerA", "farmerA_storeB", "k1", "m-1", http.StatusCreated, time.Hour); err != nil {
		t.Fatalf("seed: %v", err)
	}
	hit, err = lookup(ctx, "farmerA", "farmerA_storeB", "k1", time.Now())
	if !hit || err != nil {
		t.Fatalf("hit expected, got hit=%v err=%v", hit, err)
	}

	// Expired records are misses.
	hit, err = lookup(ctx, "farmerA", "farmerA_storeB", "k1", time.Now().UTC().Add(2*time.Hour))
	if hit || err != nil {
		t.Fatalf("expired record must miss, got hit=%v err=%v", hit, err)
	}

	// Store failures surface so the validator can log them.
	sqlDB, _ := db.DB()
	_ = sqlDB.Close()
	hit, err = lookup(ctx, "farmerA", "farmerA_storeB", "k1", time.Now())
	if hit || err == nil {
		t.Fatalf("closed db must report an error, got hit=%v err=%v", hit, err)
	}
}
