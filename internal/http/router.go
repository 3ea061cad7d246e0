// Package httpapi builds the Gin engine of the chat API: global middleware,
// health and metrics endpoints, optional Swagger UI and the versioned routes.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/agrihub-davao/chat-backend/docs"
	"github.com/agrihub-davao/chat-backend/internal/config"
	"github.com/agrihub-davao/chat-backend/internal/http/handlers"
	"github.com/agrihub-davao/chat-backend/internal/http/middleware"
	"github.com/agrihub-davao/chat-backend/internal/repo"
	"github.com/agrihub-davao/chat-backend/internal/services"
	"github.com/agrihub-davao/chat-backend/internal/session"
)

// Deps are the long-lived collaborators the routes are built from. The
// feed broker and message service are created by the caller because their
// lifecycle (broker.Run) outlives route registration.
type Deps struct {
	DB       *gorm.DB
	Sessions session.Store
	Messages *services.MessageService
	Feeds    handlers.FeedService
}

// RegisterRoutes mounts everything on r. Global middleware runs in this
// order: tracing, request id, access log, recovery, body limit, gzip (never
// on the feed), metrics, CORS, security headers. The request id must exist
// before the access log binds the request logger, and recovery must sit
// inside the logger so a panic still yields an access line.
//
// Authenticated routes additionally run SessionAuth, then the idempotency
// validator, then the rate limiter, so that replays skip the limiter and
// every bucket is keyed by the session user.
func RegisterRoutes(r *gin.Engine, deps Deps, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	r.Use(
		otelgin.Middleware(cfg.OTEL.ServiceName),
		middleware.RequestID(),
		middleware.RedactingLogger(middleware.RedactOptions{}),
		middleware.Recovery(),
		limitBody(1<<20),
		gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPathsRegexs([]string{`.*/feed$`})),
		middleware.Metrics(),
		middleware.CORS(cfg.CORS.AllowedOrigins),
		middleware.SecurityHeaders(middleware.SecurityOptions{
			EnableHSTS:   cfg.Security.EnableHSTS,
			HSTSMaxAge:   cfg.Security.HSTSMaxAge,
			EnablePolicy: true,
		}),
	)

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	if cfg.SwaggerEnabled {
		docs.SwaggerInfo.BasePath = cfg.APIBasePath
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// Dependency injection: services ← repo/db/session store
	convSvc := services.NewConversationService(deps.DB, repo.SummaryStore{})
	sessSvc := services.NewSessionService(deps.Sessions)
	h := handlers.New(sessSvc, convSvc, deps.Messages, deps.Feeds,
		handlers.WithAllowedOrigins(cfg.CORS.AllowedOrigins),
	)

	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP())

	// Public API
	apiBase := cfg.APIBasePath // e.g. "/api/v1"
	api := groupWithPrefix(r, apiBase)
	{
		// Sign in is the only route without a session.
		api.POST("/sessions", rl.Handler(), h.Login)

		authed := api.Group("",
			middleware.SessionAuth(deps.Sessions),
			middleware.IdempotencyValidator(middleware.IdempotencyOptions{MaxLen: 200}, idempotencyLookup(deps.DB)),
			rl.Handler(),
		)

		// Sessions
		authed.GET("/sessions/current", h.CurrentSession)
		authed.PATCH("/sessions/current", h.UpdateSession)
		authed.DELETE("/sessions/current", h.Logout)

		// Conversations
		authed.GET("/conversations", h.ListConversations)
		authed.GET("/conversations/:peer", h.GetConversation)

		// Messages
		authed.POST("/conversations/:peer/messages", h.SendMessage)
		authed.GET("/conversations/:peer/messages", h.ListMessages)
		authed.GET("/conversations/:peer/messages/search", h.SearchMessages)

		// Live feed
		authed.GET("/conversations/:peer/feed", h.Feed)
	}
}

// idempotencyLookup reports whether key was already used by userID in the
// conversation scope and has not expired.
func idempotencyLookup(db *gorm.DB) middleware.IdempotencyLookup {
	return func(ctx context.Context, userID, scope, key string, now time.Time) (bool, error) {
		rec, err := repo.GetIdempotency(ctx, db, userID, scope, key, now)
		switch {
		case errors.Is(err, repo.ErrNotFound):
			return false, nil
		case err != nil:
			return false, err
		}
		return rec.Live(now), nil
	}
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to error.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
