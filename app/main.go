package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/c3toronto/groups-sync/app/api"
	"github.com/c3toronto/groups-sync/app/cfg"
	"github.com/c3toronto/groups-sync/app/database"
	"github.com/c3toronto/groups-sync/app/groups"
	"github.com/c3toronto/groups-sync/app/ingest"
	"github.com/c3toronto/groups-sync/app/planningcenter"
	"github.com/c3toronto/groups-sync/app/snapshot"
)

func main() {
	// .env is optional; real deployments use environment variables
	_ = godotenv.Load()

	appCfg, err := cfg.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}
	if appCfg == nil {
		// Help was shown, exit gracefully
		return
	}

	logLevel := slog.LevelInfo
	if appCfg.Debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	slog.Info("Starting Groups Sync server", "version", appCfg.Version)

	db, err := database.NewConnection(appCfg.DBPath)
	if err != nil {
		slog.Error("Failed to open database", "path", appCfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("Database ready", "path", appCfg.DBPath, "schema_version", version, "dirty", dirty)

	rules, err := groups.LoadRules(appCfg.RulesFile)
	if err != nil {
		slog.Error("Failed to load classification rules", "file", appCfg.RulesFile, "error", err)
		os.Exit(1)
	}
	slog.Info("Classification rules loaded", "file", appCfg.RulesFile,
		"denylist_phrases", len(rules.DenylistPhrases), "public_prefixes", len(rules.PublicPrefixes))

	limiter := planningcenter.NewRateLimiter(appCfg.RateLimitMaxRequests,
		time.Duration(appCfg.RateLimitWindow)*time.Second)
	client := planningcenter.NewClient(appCfg.PCAppID, appCfg.PCSecret, appCfg.PCAPIBase,
		appCfg.UserAgent, limiter)

	store := snapshot.NewStore(appCfg.PublicDir, appCfg.DataDir)
	runRepo := database.NewRunRepository(db)
	coordinator := ingest.NewCoordinator(client, groups.NewTransformer(),
		groups.NewClassifier(rules), store, runRepo)

	apiHandler := api.NewHandler(coordinator, store, runRepo)
	router := api.NewServer(apiHandler, appCfg.APIAccessKey)

	// Trigger endpoints run a full ingestion synchronously, which can
	// take minutes when the upstream rate limit kicks in
	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "port", appCfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// Publish a first snapshot so /groups.json works on a fresh deploy.
	// Failures are logged, not fatal; a webhook or manual trigger retries.
	bootstrapCtx, cancelBootstrap := context.WithCancel(context.Background())
	defer cancelBootstrap()
	go func() {
		if _, err := coordinator.Bootstrap(bootstrapCtx); err != nil {
			slog.Error("Bootstrap ingestion failed", "error", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		slog.Info("Received signal, shutting down", "signal", sig.String())
	case err := <-serverErrChan:
		slog.Error("Server error, shutting down", "error", err)
	}

	cancelBootstrap()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	} else {
		slog.Info("HTTP server stopped")
	}

	slog.Info("Groups Sync server shutdown complete")
}
