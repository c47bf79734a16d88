package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/study-assistant/backend/api/handlers"
	"github.com/study-assistant/backend/internal/agent"
	"github.com/study-assistant/backend/internal/config"
	"github.com/study-assistant/backend/internal/db"
	"github.com/study-assistant/backend/internal/ratelimit"
	"github.com/study-assistant/backend/internal/repository"
	"github.com/study-assistant/backend/internal/session"
	"github.com/study-assistant/backend/internal/slogging"
	"github.com/study-assistant/backend/internal/study"
	"github.com/study-assistant/backend/internal/ws"
)

func main() {
	configFile := flag.String("config", os.Getenv("CONFIG_FILE"), "path to YAML configuration file")
	flag.Parse()

	if err := run(*configFile); err != nil {
		fmt.Fprintf(os.Stderr, "server: %v\n", err)
		os.Exit(1)
	}
}

func run(configFile string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}

	if err := slogging.Initialize(slogging.Config{
		Level:            slogging.ParseLogLevel(cfg.Logging.Level),
		IsDev:            cfg.Logging.IsDev,
		LogDir:           cfg.Logging.LogDir,
		FileName:         "server.log",
		MaxAgeDays:       cfg.Logging.MaxAgeDays,
		MaxSizeMB:        cfg.Logging.MaxSizeMB,
		MaxBackups:       cfg.Logging.MaxBackups,
		AlsoLogToConsole: cfg.Logging.AlsoLogToConsole,
	}); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	logger := slogging.Get()
	defer logger.Close()
	// Library code logging through log/slog lands in the same sink.
	slog.SetDefault(logger.GetSlogger())

	if cfg.Database.Driver == db.DriverSQLite {
		if err := os.MkdirAll(filepath.Dir(cfg.Database.DSN), 0o755); err != nil {
			return fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	database, err := db.InitDB(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.CloseDB()

	dialect := db.Dialect{Driver: cfg.Database.Driver}
	sessionRepo := repository.NewSessionRepository(database, dialect)
	resourceRepo := repository.NewResourceRepository(database, dialect)
	summaryRepo := repository.NewSummaryRepository(database, dialect)

	studyAgent, err := agent.NewFromConfig(agent.Config{
		Provider:    cfg.Agent.Provider,
		APIKey:      cfg.Agent.APIKey,
		Model:       cfg.Agent.Model,
		Temperature: cfg.Agent.Temperature,
		Timeout:     cfg.Agent.Timeout,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize agent: %w", err)
	}
	if !studyAgent.Configured() {
		logger.Warn("No agent API key configured; study endpoints will return 503")
	}

	wsService := ws.NewService(sessionRepo, cfg.WebSocket.ValidationTimeout, ws.Options{
		MaxMessageSize: cfg.WebSocket.MaxMessageSize,
		SendBuffer:     cfg.WebSocket.SendBuffer,
		WriteWait:      cfg.WebSocket.WriteWait,
		PongWait:       cfg.WebSocket.PongWait,
		InitTimeout:    cfg.WebSocket.InitTimeout,
		AllowedOrigins: cfg.WebSocket.AllowedOrigins,
	}, prometheus.DefaultRegisterer)
	defer wsService.Close()

	var (
		publisher   ws.Publisher = wsService.Broadcaster()
		relay       *ws.Relay
		redisClient *redis.Client
	)
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()

		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := redisClient.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			return fmt.Errorf("failed to connect to redis at %s: %w", cfg.Redis.Addr, err)
		}

		relay = ws.NewRelay(redisClient, cfg.Redis.EventChannel, wsService.Broadcaster())
		publisher = relay
	}
	limiter := newRateLimiter(cfg.RateLimit, redisClient)

	sessionManager := session.NewManager(sessionRepo, wsService)
	studyService := study.NewService(sessionRepo, resourceRepo, summaryRepo, studyAgent, publisher)

	if !cfg.Logging.IsDev {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(slogging.LoggerMiddleware(), slogging.Recoverer(), corsMiddleware())

	handlers.NewHealthHandler(database, wsService.Registry().ConnectionCount).RegisterRoutes(r)
	handlers.NewWebSocketHandler(wsService.Handler()).RegisterRoutes(r)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	{
		handlers.NewSessionHandler(sessionManager, studyService).RegisterRoutes(api)
		handlers.NewUploadHandler(studyService, cfg.Upload.MaxBytes).RegisterRoutes(api)

		var studyMiddleware []gin.HandlerFunc
		if limiter != nil {
			studyMiddleware = append(studyMiddleware, limiter.Middleware())
		}
		handlers.NewStudyHandler(studyService).RegisterRoutes(api, studyMiddleware...)
	}

	srv := &http.Server{
		Addr:         cfg.ListenAddr(),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting server on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	if relay != nil {
		g.Go(func() error {
			return relay.Run(gctx)
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		// Hijacked WebSocket connections are not tracked by Shutdown.
		wsService.Close()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// newRateLimiter returns nil when rate limiting is disabled. Without a
// Redis client each instance keeps its own window.
func newRateLimiter(cfg config.RateLimitConfig, redisClient *redis.Client) *ratelimit.IPRateLimiter {
	if !cfg.Enabled {
		return nil
	}
	if redisClient == nil {
		slogging.Get().Info("Rate limiting in process: %d requests per %s per IP", cfg.Requests, cfg.Window)
	}
	return ratelimit.NewIPRateLimiter(redisClient, cfg.Requests, cfg.Window)
}

// corsMiddleware returns a permissive CORS middleware for browser clients.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Request-ID")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, DELETE")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
