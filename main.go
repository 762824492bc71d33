package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"weightloss-ingest/config"
	"weightloss-ingest/database"
	"weightloss-ingest/scheduler"
	"weightloss-ingest/services"
	"weightloss-ingest/storage"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func apiKeyAuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg.APISecretKey == "" || c.Request.URL.Path == "/healthz" {
			c.Next()
			return
		}
		apiKey := c.GetHeader("X-API-KEY")
		if apiKey != cfg.APISecretKey {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: Invalid API Key"})
			return
		}
		c.Next()
	}
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.LogDevelopment {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	logging, err := newLogger(cfg)
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	defer logging.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Setup Storage
	store, err := storage.Open(ctx, cfg)
	if err != nil {
		logging.Fatal("Object store setup failed", zap.Error(err))
	}
	logging.Info("Object store ready", zap.String("driver", cfg.StorageDriver))

	// Setup Database
	connector := services.NewConnector(cfg, logging.With(zap.String("component", "connector")))
	if cfg.DBAutoMigrate {
		if err := migrate(ctx, connector, logging); err != nil {
			logging.Fatal("Database migration failed", zap.Error(err))
		}
	}

	// Setup Pipeline
	pipeline := services.NewPipeline(cfg, store, connector, logging)
	runner := scheduler.NewRunner(pipeline.Run, logging)

	// Setup Cron
	cronScheduler, err := scheduler.NewCron(ctx, cfg.CronSchedule, runner, logging)
	if err != nil {
		logging.Fatal("Invalid cron schedule", zap.String("schedule", cfg.CronSchedule), zap.Error(err))
	}
	cronScheduler.Start()
	logging.Info("Cron scheduler started", zap.String("schedule", cfg.CronSchedule))

	if cfg.WatchInput {
		startWatcher(ctx, cfg, store, runner, logging)
	}
	if cfg.RunOnStart {
		runner.Start(ctx, "startup")
	}

	// Setup Router
	if !cfg.LogDevelopment {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(apiKeyAuthMiddleware(cfg))
	setupRoutes(ctx, router, runner)

	logging.Info("Starting server", zap.String("port", cfg.HTTPPort))
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Fatal("Failed to run server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logging.Info("Shutting down")
	cronCtx := cronScheduler.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Warn("HTTP server shutdown failed", zap.Error(err))
	}
	select {
	case <-cronCtx.Done():
	case <-shutdownCtx.Done():
		logging.Warn("Scheduled run did not finish before shutdown")
	}
	if err := runner.Wait(shutdownCtx); err != nil {
		logging.Warn("Triggered run did not finish before shutdown", zap.Error(err))
	}
}

// migrate legt das Schema über eine eigene Session an.
func migrate(ctx context.Context, connector *services.Connector, logging *zap.Logger) error {
	session, err := connector.Connect(ctx)
	if err != nil {
		return err
	}
	defer session.Close()
	logging.Info("Running database auto-migration...")
	return database.Migrate(session.DB)
}

// watchDir liefert das lokale Eingangsverzeichnis; nur der Dateisystem-Store hat eines.
func watchDir(cfg *config.Config, store storage.ObjectStore) (string, bool) {
	fsStore, ok := store.(*storage.FSStore)
	if !ok {
		return "", false
	}
	return filepath.Join(fsStore.Root(), filepath.FromSlash(cfg.InputPrefix)), true
}

func startWatcher(ctx context.Context, cfg *config.Config, store storage.ObjectStore, runner *scheduler.Runner, logging *zap.Logger) {
	dir, ok := watchDir(cfg, store)
	if !ok {
		logging.Warn("WATCH_INPUT requires STORAGE_DRIVER=fs, watcher disabled", zap.String("driver", cfg.StorageDriver))
		return
	}
	watcher := scheduler.NewWatcher(dir, func() { runner.Start(ctx, "watch") }, logging)
	go func() {
		if err := watcher.Run(ctx); err != nil {
			logging.Error("Directory watcher stopped", zap.Error(err))
		}
	}()
}

func setupRoutes(ctx context.Context, router *gin.Engine, runner *scheduler.Runner) {
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "running": runner.Running()})
	})

	rg := router.Group("/runs")
	rg.POST("", func(c *gin.Context) {
		if !runner.Start(ctx, "http") {
			c.JSON(http.StatusConflict, gin.H{"error": "a run is already in progress"})
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"message": "Run triggered."})
	})
	rg.GET("/last", func(c *gin.Context) {
		report, ok := runner.Last()
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "no run finished yet"})
			return
		}
		c.JSON(http.StatusOK, report)
	})
}
