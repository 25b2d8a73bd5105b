package main

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"nil-match/backend/internal/api"
)

func main() {
	baseDir, err := os.Getwd()
	if err != nil {
		logrus.Fatalf("determine working directory: %v", err)
	}

	envPath := filepath.Join(baseDir, ".env")
	if _, err := os.Stat(envPath); err == nil {
		if err := godotenv.Load(envPath); err != nil {
			logrus.WithError(err).Warn("load .env")
		} else {
			logrus.WithField("path", envPath).Info("loaded environment file")
		}
	}

	if level := strings.TrimSpace(os.Getenv("LOG_LEVEL")); level != "" {
		if parsed, err := logrus.ParseLevel(level); err == nil {
			logrus.SetLevel(parsed)
		}
	}

	dataDir := filepath.Join(baseDir, "data")
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		logrus.Fatalf("create data directory: %v", err)
	}

	cfg := api.Config{
		DBPath:    filepath.Join(dataDir, "nil-match.db"),
		RulesPath: strings.TrimSpace(os.Getenv("NILMATCH_RULES_PATH")),
		AllowedOrigins: []string{
			"http://localhost:5173",
			"http://127.0.0.1:5173",
		},
		SilentDB:           strings.EqualFold(strings.TrimSpace(os.Getenv("NILMATCH_SILENT_DB")), "true"),
		RecomputeOnStartup: true,
	}

	if override := strings.TrimSpace(os.Getenv("NILMATCH_DB_PATH")); override != "" {
		cfg.DBPath = override
	}
	if origins := strings.TrimSpace(os.Getenv("NILMATCH_ALLOWED_ORIGINS")); origins != "" {
		cfg.AllowedOrigins = nil
		if origins != "*" {
			for _, origin := range strings.Split(origins, ",") {
				if trimmed := strings.TrimSpace(origin); trimmed != "" {
					cfg.AllowedOrigins = append(cfg.AllowedOrigins, trimmed)
				}
			}
		}
	}
	if v := strings.TrimSpace(os.Getenv("NILMATCH_PAGE_SIZE")); v != "" {
		if val, err := strconv.Atoi(v); err == nil && val > 0 {
			cfg.DefaultPageSize = val
		}
	}
	if strings.EqualFold(strings.TrimSpace(os.Getenv("NILMATCH_SKIP_STARTUP_RECOMPUTE")), "true") {
		cfg.RecomputeOnStartup = false
	}

	server, err := api.NewServer(cfg)
	if err != nil {
		logrus.Fatalf("create server: %v", err)
	}
	defer server.Close()

	router, err := server.Router()
	if err != nil {
		logrus.Fatalf("configure router: %v", err)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "2000"
	}

	logrus.Infof("starting nil-match backend on :%s", port)
	if err := router.Run(":" + port); err != nil {
		logrus.Fatalf("server exited: %v", err)
	}
}
