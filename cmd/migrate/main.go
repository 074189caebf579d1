package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/macrodatos/ingesta/ingesta"
	"github.com/macrodatos/ingesta/ingesta/database"
	"github.com/macrodatos/ingesta/ingesta/database/repositories"
	"github.com/macrodatos/ingesta/ingesta/logger"
	"github.com/macrodatos/ingesta/ingesta/migration"
)

func main() {
	var (
		configPath  = flag.String("config", "config.toml", "path to config.toml")
		catalogJSON = flag.String("catalog", "", "path to the catalog spreadsheet export (JSON)")
		mongoURI    = flag.String("mongo-uri", "", "legacy MongoDB URI (optional)")
		mongoDB     = flag.String("mongo-db", "series", "legacy MongoDB database name")
	)
	flag.Parse()

	slog.SetDefault(slog.New(logger.NewHandler("Ingesta-Migrate")))

	cfg, err := ingesta.LoadConfig(*configPath)
	if err != nil {
		slog.Error("Failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

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

	if err := migration.CreateSchema(ctx, db.BunDB()); err != nil {
		slog.Error("Schema creation failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	slog.Info("Schema is up to date")

	migrator := migration.NewMigrator(
		repositories.NewCatalogRepository(db.BunDB()),
		repositories.NewMasterRepository(db.BunDB()),
	)

	switch {
	case *catalogJSON != "":
		if err := migrator.ImportFromJSON(ctx, *catalogJSON); err != nil {
			slog.Error("Catalog import failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
	case *mongoURI != "":
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(*mongoURI))
		if err != nil {
			slog.Error("Failed to connect to legacy MongoDB", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer client.Disconnect(ctx)

		migrator.UseMongo(client, *mongoDB)
		if err := migrator.ImportFromMongo(ctx); err != nil {
			slog.Error("Catalog import failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
	default:
		slog.Info("No catalog source given; schema only")
	}

	slog.Info("Migration completed successfully")
}
