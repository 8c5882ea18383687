// Command server runs the ChemVision conversion API.
//
// @title        ChemVision API
// @version      0.1.0
// @description  Chemical structure conversion: name to SMILES, SMILES to name, and image recognition (OCSR).
// @BasePath     /
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/chemvision-backend/internal/catalog"
	"github.com/tbourn/chemvision-backend/internal/config"
	httpapi "github.com/tbourn/chemvision-backend/internal/http"
	"github.com/tbourn/chemvision-backend/internal/observability"
	"github.com/tbourn/chemvision-backend/internal/repo"
	"github.com/tbourn/chemvision-backend/internal/server"
	"github.com/tbourn/chemvision-backend/internal/sysutil"
)

// version is stamped at build time with -ldflags "-X main.version=...";
// APP_VERSION is used when it is empty.
var version string

func main() {
	_ = godotenv.Load()

	cfg := config.MustLoad()
	cfg.Version = sysutil.FirstNonEmpty(version, cfg.Version)

	sysutil.SetLogLevel(cfg.LogLevel)
	log.Logger = sysutil.NewLogger(os.Stdout, cfg.LogPretty || cfg.IsDevelopment(), cfg.OTEL.ServiceName)
	zerolog.DefaultContextLogger = &log.Logger

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = log.Logger.WithContext(ctx)

	if err := run(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}

func run(ctx context.Context, cfg config.Config) error {
	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, observability.Build{
		Version:     cfg.Version,
		Environment: cfg.Environment,
	})
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.ShutdownTimeout)
		defer cancel()
		if err := shutdownOTel(sctx); err != nil {
			log.Warn().Err(err).Msg("otel shutdown")
		}
	}()

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		return err
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	rows, err := catalog.Load(cfg.SeedPath)
	if err != nil {
		return err
	}
	n, err := repo.Bootstrap(ctx, db, rows)
	if err != nil {
		return err
	}
	log.Info().Int64("mappings", n).Str("seed_path", cfg.SeedPath).Msg("name mappings loaded")

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	drainHistory := httpapi.RegisterRoutes(r, db, cfg)

	srv := server.New(cfg, r)
	runErr := server.Run(ctx, srv, cfg.ShutdownTimeout, server.Info{
		Version:     cfg.Version,
		Environment: cfg.Environment,
	})

	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.ShutdownTimeout)
	defer cancel()
	if err := drainHistory(dctx); err != nil {
		log.Warn().Err(err).Msg("history drain")
	}
	return runErr
}
