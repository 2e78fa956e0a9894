// Package main runs a local e-Boekhouden API emulator for development and
// integration testing.
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/verenigingen/eboekhouden-sync/internal/emulator/api"
	"github.com/verenigingen/eboekhouden-sync/internal/emulator/session"
	"github.com/verenigingen/eboekhouden-sync/internal/emulator/store"
)

const (
	defaultPort   = "8080"
	defaultDBPath = "./data/emulator.db"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	port := os.Getenv("PORT")
	if port == "" {
		port = defaultPort
	}

	dbPath := os.Getenv("EMULATOR_DB_PATH")
	if dbPath == "" {
		dbPath = defaultDBPath
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		slog.Error("failed to create data directory", "error", err, "db_path", dbPath)
		os.Exit(1)
	}

	st, err := store.New(dbPath)
	if err != nil {
		slog.Error("failed to initialize store", "error", err, "db_path", dbPath)
		os.Exit(1)
	}
	defer func() {
		if err := st.Close(); err != nil {
			slog.Error("failed to close store", "error", err)
		}
	}()

	slog.Info("database initialized", "db_path", dbPath)

	if seedFile := os.Getenv("SEED_FILE"); seedFile != "" {
		seed, err := st.LoadSeedFile(seedFile)
		if err != nil {
			slog.Error("failed to load seed file", "error", err, "path", seedFile)
			os.Exit(1)
		}
		slog.Info("seed data loaded",
			"path", seedFile,
			"ledgers", len(seed.Ledgers),
			"relations", len(seed.Relations),
			"mutations", len(seed.Mutations),
		)
	}

	var accessTokens []string
	if v := os.Getenv("EMULATOR_ACCESS_TOKENS"); v != "" {
		accessTokens = strings.Split(v, ",")
	}
	sessions := session.NewManager(st, accessTokens...)

	handler := api.NewRouter(st, sessions, middleware.RealIP, middleware.Logger)

	addr := fmt.Sprintf(":%s", port)
	slog.Info("starting e-Boekhouden API emulator", "addr", addr, "port", port)

	server := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)
		<-sigint

		slog.Info("shutting down server")
		if err := server.Close(); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("server stopped")
}
