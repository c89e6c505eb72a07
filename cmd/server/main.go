// Package main is the entry point for the intra companion backend.
//
// Its job is the usual three steps: read configuration, create the
// logger, start the server. All actual logic lives in internal/.
package main

import (
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/viper"

	"github.com/sakif/intra-rank/internal/server"
)

// loadConfig reads configuration from the environment via viper.
//
// Every key maps to an INTRA_-prefixed variable, e.g. INTRA_PORT,
// INTRA_DB_PATH, INTRA_CLIENT_ID. Defaults match the production
// deployment so a bare binary with just the OAuth credentials set is
// runnable.
func loadConfig() server.Config {
	v := viper.New()
	v.SetEnvPrefix("INTRA")
	v.AutomaticEnv()

	v.SetDefault("port", 8080)
	v.SetDefault("db_path", "data/intra.db")
	v.SetDefault("base_url", "https://api.intra.42.fr")
	v.SetDefault("client_id", "")
	v.SetDefault("client_secret", "")
	v.SetDefault("probe_user_id", 195219)
	v.SetDefault("campuses", "15,55")
	v.SetDefault("lease_ttl", "10m")
	v.SetDefault("sync_interval", "0")
	v.SetDefault("log_level", "info")

	return server.Config{
		Port:         v.GetInt("port"),
		DBPath:       v.GetString("db_path"),
		IntraBaseURL: v.GetString("base_url"),
		ClientID:     v.GetString("client_id"),
		ClientSecret: v.GetString("client_secret"),
		ProbeUserID:  v.GetInt("probe_user_id"),
		Campuses:     parseCampuses(v.GetString("campuses")),
		LeaseTTL:     v.GetDuration("lease_ttl"),
		SyncInterval: v.GetDuration("sync_interval"),
	}
}

// defaultCampuses is used when INTRA_CAMPUSES is unset or unparseable.
var defaultCampuses = []int{15, 55}

// parseCampuses parses a comma-separated campus id list, e.g. "15,55".
//
// Environment variables are strings, so the campus list arrives as one —
// viper's slice getters cannot cast it. Any malformed entry falls back to
// the default list rather than silently syncing nothing.
func parseCampuses(raw string) []int {
	parts := strings.Split(raw, ",")
	ids := make([]int, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		id, err := strconv.Atoi(p)
		if err != nil {
			return defaultCampuses
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return defaultCampuses
	}
	return ids
}

func logLevel() slog.Level {
	switch os.Getenv("INTRA_LOG_LEVEL") {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(),
	}))

	cfg := loadConfig()

	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		logger.Warn("INTRA_CLIENT_ID / INTRA_CLIENT_SECRET not set — token refresh will fail closed")
	}

	// Make sure the database directory exists (like `mkdir -p`).
	if dir := filepath.Dir(cfg.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			logger.Error("failed to create database directory",
				slog.String("dir", dir),
				slog.String("error", err.Error()),
			)
			os.Exit(1)
		}
	}

	srv, err := server.New(cfg, logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start() blocks until the server is shut down (Ctrl+C or SIGTERM).
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
