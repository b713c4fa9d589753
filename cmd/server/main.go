// Package main runs the roster HTTP server with live WebSocket sync and
// graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/classroll/backend/config"
	"github.com/classroll/backend/internal/attendees"
	"github.com/classroll/backend/internal/live"
	"github.com/classroll/backend/internal/middleware"
	"github.com/classroll/backend/internal/store"
	"github.com/classroll/backend/pkg/database"
	"github.com/classroll/backend/pkg/metrics"
	"github.com/classroll/backend/pkg/queue"
	"github.com/classroll/backend/pkg/redis"
	"github.com/classroll/backend/pkg/response"
	"github.com/classroll/backend/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), cfg.Database.MaxConns, logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	// Archiving is optional: without a region and bucket the endpoints
	// report the feature as unconfigured.
	var (
		s3Client *storage.S3
		jobQueue *queue.Queue
	)
	if cfg.AWS.Region != "" && cfg.AWS.ArchivesBucket != "" {
		s3Cfg := storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			ArchivesBucket:       cfg.AWS.ArchivesBucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}
		s3Client, err = storage.NewS3(ctx, s3Cfg, logger)
		if err != nil {
			logger.Warn("archiving disabled", zap.Error(err))
			s3Client = nil
		} else {
			jobQueue = queue.NewQueue(rdb.Client, logger)
		}
	}

	pubsub := live.NewRedisPubSub(rdb.Client, logger)
	hub := live.NewHub(logger, pubsub)
	if err := hub.StartBridge(pubsub); err != nil {
		logger.Fatal("live bridge", zap.Error(err))
	}
	defer hub.Stop()

	repo := store.NewRepository(pool)
	handler := attendees.NewHandler(repo, hub, jobQueue, s3Client, logger)
	bulkLimiter := middleware.NewTokenBucket(cfg.Limits.BulkPerMinute, cfg.Limits.BulkPerMinute)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))
	router.Use(metrics.GinMiddleware())

	router.GET("/health", func(c *gin.Context) {
		hctx := c.Request.Context()
		if err := pool.Ping(hctx); err != nil {
			response.ServiceUnavailable(c, "database unreachable")
			return
		}
		if err := rdb.Healthy(hctx); err != nil {
			response.ServiceUnavailable(c, "redis unreachable")
			return
		}
		response.OK(c, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/attendees")
	{
		api.GET("", handler.List)
		api.POST("", handler.Create)
		api.DELETE("", handler.DeleteAll)
		api.GET("/stats", handler.Stats)
		api.GET("/stats/courses", handler.StatsByCourse)
		api.GET("/options", handler.Options)
		api.GET("/export", handler.Export)
		api.GET("/print", handler.Print)
		api.POST("/import", bulkLimiter.RateLimit(), handler.Import)
		api.PATCH("/:id/presence", handler.SetPresence)
		api.DELETE("/:id", handler.Delete)
		api.POST("/presence/bulk", bulkLimiter.RateLimit(), handler.SetPresenceBulk)
		api.POST("/presence/reset", bulkLimiter.RateLimit(), handler.ResetPresence)
	}
	router.GET("/archives/download-url", handler.ArchiveDownloadURL)

	// Live roster subscription.
	router.GET("/ws", live.ServeWs(hub, logger))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
