package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/ngaotu/misa-crm-backend/internal/clock"
	"github.com/ngaotu/misa-crm-backend/internal/config"
	"github.com/ngaotu/misa-crm-backend/internal/core"
	"github.com/ngaotu/misa-crm-backend/internal/customers"
	"github.com/ngaotu/misa-crm-backend/internal/database"
	"github.com/ngaotu/misa-crm-backend/internal/logging"
	"github.com/ngaotu/misa-crm-backend/internal/web"
)

func main() {
	// Overload lets .env win over the shell environment during development.
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("configuration loaded", "config", cfg.String())

	ctx := context.Background()

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(cfg.Database.URL, slog.Default()); err != nil {
			slog.Error("failed to apply migrations", "error", err)
			os.Exit(1)
		}
	}

	pool, err := database.Connect(ctx, cfg.Database, slog.Default())
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	clk := clock.NewRealClock()
	repo, err := customers.NewRepository(pool, core.NewCodeGenerator(clk))
	if err != nil {
		slog.Error("failed to build customer repository", "error", err)
		os.Exit(1)
	}

	for _, d := range core.Registered() {
		slog.Debug("collection registered", "collection", d.Collection, "columns", len(d.Fields), "unique", d.Unique)
	}

	limiter := core.NewImportLimiter(cfg.Import.MaxConcurrent, cfg.Import.MaxWaitTime)
	service := customers.NewService(repo, slog.Default(),
		customers.WithImportLimiter(limiter),
		customers.WithClock(clk),
	)

	server := web.NewServer(service, database.NewReadinessChecker(pool), cfg)

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if status := limiter.Status(); status.Active > 0 {
			slog.Info("waiting for imports to complete", "active", status.Active)
			if err := limiter.WaitForDrain(shutdownCtx); err != nil {
				slog.Warn("imports did not complete in time", "error", err)
			} else {
				slog.Info("all imports completed")
			}
		}

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	slog.Info("server starting", "addr", cfg.Server.Addr())
	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}
