package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/macrodatos/ingesta/backend/handlers"
	"github.com/macrodatos/ingesta/backend/middleware"
	"github.com/macrodatos/ingesta/ingesta"
	"github.com/macrodatos/ingesta/ingesta/database"
	"github.com/macrodatos/ingesta/ingesta/database/repositories"
	"github.com/macrodatos/ingesta/ingesta/derived"
	"github.com/macrodatos/ingesta/ingesta/jobs"
	"github.com/macrodatos/ingesta/ingesta/logger"
	"github.com/macrodatos/ingesta/ingesta/rawcache"
	"github.com/macrodatos/ingesta/ingesta/storage"
	"github.com/macrodatos/ingesta/ingesta/upsert"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	configPath := "config.toml"
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	customHandler := logger.NewHandler("Ingesta")
	slog.SetDefault(slog.New(customHandler))

	slog.Info("Starting ingestion service",
		slog.String("version", version),
		slog.String("commit", commit))

	cfg, err := ingesta.LoadConfig(configPath)
	if err != nil {
		slog.Error("Failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	slog.Info("Connecting to database...")
	db, err := database.New(ctx, database.DBConfig{
		Host:     cfg.DB.Host,
		Port:     cfg.DB.Port,
		User:     cfg.DB.User,
		Password: cfg.DB.Password,
		Database: cfg.DB.Database,
		PoolSize: cfg.DB.PoolSize,
	})
	if err != nil {
		slog.Error("Failed to connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("Database connected successfully")

	cache, err := rawcache.New(cfg.Cache.DataRawDir, cfg.Cache.HistoricosDir)
	if err != nil {
		slog.Error("Failed to initialize raw cache", slog.String("error", err.Error()))
		os.Exit(1)
	}

	masterRepo := repositories.NewMasterRepository(db.BunDB())
	seriesRepo := repositories.NewSeriesRepository(db.BunDB())
	engine := upsert.NewEngine(masterRepo, seriesRepo)
	derivedRunner := derived.NewRunner(seriesRepo, engine, derived.DefaultRecipes())

	var spaces *storage.SpacesService
	if cfg.Spaces.Enabled {
		spaces, err = storage.NewSpacesService(
			cfg.Spaces.Key, cfg.Spaces.Secret, cfg.Spaces.Region, cfg.Spaces.Bucket, cfg.Spaces.Root)
		if err != nil {
			slog.Error("Failed to initialize Spaces mirror", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	if orphaned, err := jobs.Preflight(ctx, masterRepo, cfg.Jobs); err != nil {
		slog.Warn("Catalog preflight failed", slog.String("error", err.Error()))
	} else if len(orphaned) > 0 {
		slog.Warn("Jobs without an active master", slog.String("jobs", strings.Join(orphaned, ", ")))
	}

	registry := jobs.NewRegistry()
	orchestrator := jobs.NewOrchestrator(cfg, cache, engine, derivedRunner, registry, spaces)

	app := fiber.New(fiber.Config{
		AppName:               "ingesta",
		DisableStartupMessage: true,
		ReadTimeout:           30 * time.Second,
		WriteTimeout:          30 * time.Second,
	})

	app.Use(recover.New())
	app.Use(cors.New())
	app.Use(compress.New())
	app.Use(middleware.LoggingMiddleware())

	jobHandlers := handlers.NewJobHandlers(orchestrator, cfg.Cache.LogsDir)

	app.Get("/health", handlers.HealthCheck(db))
	app.Post("/run", jobHandlers.Run)
	app.Get("/status", jobHandlers.Status)
	app.Get("/logs", jobHandlers.Logs)
	app.Get("/logs/:filename", jobHandlers.LogFile)
	app.Post("/run-single/:name", jobHandlers.RunSingle)
	app.Get("/status-single/:name", jobHandlers.StatusSingle)

	address := fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port)
	go func() {
		if err := app.Listen(address); err != nil {
			slog.Error("HTTP server stopped", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()
	slog.Info("Job-control API listening", slog.String("address", address))

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	slog.Info("Shutting down...")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		slog.Error("Shutdown error", slog.String("error", err.Error()))
	}
}
