// Command server runs the AgriHub Davao conversation API.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	_ "github.com/agrihub-davao/chat-backend/docs"
	"github.com/agrihub-davao/chat-backend/internal/config"
	"github.com/agrihub-davao/chat-backend/internal/feed"
	httpapi "github.com/agrihub-davao/chat-backend/internal/http"
	"github.com/agrihub-davao/chat-backend/internal/jobs"
	"github.com/agrihub-davao/chat-backend/internal/observability"
	"github.com/agrihub-davao/chat-backend/internal/repo"
	"github.com/agrihub-davao/chat-backend/internal/services"
	"github.com/agrihub-davao/chat-backend/internal/session"
	"github.com/agrihub-davao/chat-backend/internal/sysutil"
	"github.com/agrihub-davao/chat-backend/internal/utils"
)

// version is set at build time with -ldflags "-X main.version=…".
var version string

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		boot := sysutil.SetupLogger(os.Stderr, "info", false, "agrihub-chat")
		boot.Fatal().Err(err).Msg("invalid configuration")
	}
	lg := sysutil.SetupLogger(os.Stdout, cfg.LogLevel, cfg.LogPretty, cfg.OTEL.ServiceName)
	gin.SetMode(cfg.GinMode)

	if err := run(cfg, lg); err != nil {
		lg.Fatal().Err(err).Msg("server exited with error")
	}
	lg.Info().Msg("server exited")
}

func run(cfg config.Config, lg zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, sysutil.Version(version))
	if err != nil {
		return err
	}
	defer flush(lg, "otel", shutdownOTel)

	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}()

	kv, err := session.OpenBadger(cfg.SessionDir)
	if err != nil {
		return err
	}
	defer kv.Close()

	bus, err := newBus(ctx, cfg, lg)
	if err != nil {
		return err
	}
	defer bus.Close()

	msgSvc := newMessageService(cfg, db)
	broker := feed.NewBroker(bus, msgSvc.Recent)
	msgSvc.Feed = broker

	cronMgr, err := newCron(cfg, lg, db, kv)
	if err != nil {
		return err
	}

	r := gin.New()
	httpapi.RegisterRoutes(r, httpapi.Deps{
		DB:       db,
		Sessions: session.NewBadgerStore(kv, cfg.SessionTTL),
		Messages: msgSvc,
		Feeds:    broker,
	}, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return broker.Run(gctx)
	})

	cronMgr.Start()
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return cronMgr.Stop(sctx)
	})

	g.Go(func() error {
		lg.Info().Str("addr", srv.Addr).Str("base_path", cfg.APIBasePath).Msg("http server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		lg.Info().Msg("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(sctx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func openDB(cfg config.Config) (*gorm.DB, error) {
	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	if cfg.OTEL.Enabled {
		if err := repo.Instrument(db); err != nil {
			return nil, err
		}
	}
	if err := repo.AutoMigrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// newBus returns a Redis-backed bus when REDIS_URL is set and an in-process
// bus otherwise.
func newBus(ctx context.Context, cfg config.Config, lg zerolog.Logger) (feed.Bus, error) {
	if cfg.RedisURL == "" {
		lg.Info().Msg("feed: in-process bus")
		return feed.NewLocalBus(256), nil
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	lg.Info().Str("channel", cfg.FeedChannel).Msg("feed: redis bus")
	return feed.NewRedisBus(client, cfg.FeedChannel), nil
}

func newMessageService(cfg config.Config, db *gorm.DB) *services.MessageService {
	s := services.NewMessageService(db, nil)
	s.MaxBodyRunes = cfg.MaxMessageRunes
	s.Window = cfg.FeedWindow
	s.IdempotencyTTL = cfg.IdempotencyTTL
	s.Locale = utils.ParseLocale(cfg.DisplayLocale)
	if loc, err := time.LoadLocation(cfg.DisplayTimezone); err == nil {
		s.Location = loc
	}
	return s
}

func newCron(cfg config.Config, lg zerolog.Logger, db *gorm.DB, kv *badger.DB) (*jobs.Manager, error) {
	m := jobs.NewManager(lg)
	if err := m.Register(cfg.IdempotencySweep, &jobs.IdempotencySweep{DB: db, Timeout: 30 * time.Second, Log: lg}); err != nil {
		return nil, err
	}
	if cfg.SessionDir != "" {
		if err := m.Register("@every 1h", &jobs.BadgerGC{KV: kv, Log: lg}); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func flush(lg zerolog.Logger, what string, fn observability.ShutdownFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := fn(ctx); err != nil {
		lg.Warn().Err(err).Str("component", what).Msg("shutdown failed")
	}
}
