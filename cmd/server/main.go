package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/onlygantt/ganttd/internal/config"
	"github.com/onlygantt/ganttd/internal/domain/audit"
	"github.com/onlygantt/ganttd/internal/domain/auth"
	"github.com/onlygantt/ganttd/internal/domain/document"
	"github.com/onlygantt/ganttd/internal/domain/lock"
	"github.com/onlygantt/ganttd/internal/jsonfile"
	"github.com/onlygantt/ganttd/internal/metrics"
	"github.com/onlygantt/ganttd/internal/sqlite"
	"github.com/onlygantt/ganttd/internal/transport"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Log.Level),
	}))

	departmentsDir := filepath.Join(cfg.Storage.DataDir, "departments")
	configDir := filepath.Join(cfg.Storage.DataDir, "config")
	for _, dir := range []string{departmentsDir, configDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			logger.Error("failed to prepare data directory", "dir", dir, "error", err)
			os.Exit(1)
		}
	}

	docStore, err := jsonfile.NewDocumentStore(departmentsDir, cfg.Storage.EnableBackups, logger)
	if err != nil {
		logger.Error("failed to open document store", "error", err)
		os.Exit(1)
	}

	lockStore, err := jsonfile.NewLockStore(filepath.Join(configDir, "locks.json"), logger)
	if err != nil {
		logger.Error("failed to open lock store", "error", err)
		os.Exit(1)
	}
	loaded, expired, err := lockStore.Load(time.Now())
	if err != nil {
		logger.Error("failed to load lock snapshot", "error", err)
		os.Exit(1)
	}
	logger.Info("lock snapshot loaded", "live", loaded, "expired", expired)

	if err := ensureDBDir(cfg.Audit.DBPath); err != nil {
		logger.Error("failed to prepare audit database path", "error", err)
		os.Exit(1)
	}
	db, err := sqlite.New(cfg.Audit.DBPath)
	if err != nil {
		logger.Error("failed to open audit database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := db.RunMigrations(); err != nil {
		logger.Error("failed to run audit migrations", "error", err)
		os.Exit(1)
	}

	lockSvc := lock.NewService(lockStore,
		time.Duration(cfg.Lock.TimeoutMinutes)*time.Minute, logger)
	docSvc := document.NewService(docStore, lockSvc, logger)
	authSvc := auth.NewService(localVerifier, cfg.Admin.User, cfg.Admin.Password,
		time.Duration(cfg.Admin.SessionTTLHours)*time.Hour, logger)
	auditSvc := audit.NewService(sqlite.NewAuditRepository(db), logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	lockSvc.StartSweep(ctx, time.Duration(cfg.Lock.SweepSeconds)*time.Second)

	registry := metrics.NewRegistry()
	metrics.RegisterCoreMetrics(registry)

	server := transport.NewServer(transport.Options{
		Locks:          lockSvc,
		Documents:      docSvc,
		Auth:           authSvc,
		Audit:          auditSvc,
		MaxUploadBytes: cfg.Storage.MaxUploadBytes,
		Logger:         logger,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           server.Router(registry),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
		}
	}()

	waitForShutdown(logger, httpServer, cancel)
}

// localVerifier accepts any non-empty user name. The directory integration
// (LDAP) runs as a separate gateway in production; this process only needs a
// stable name to bind sessions and leases to.
func localVerifier(userID, _ string) (*auth.User, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, auth.ErrInvalidCredentials
	}
	return &auth.User{UserID: userID, DisplayName: userID}, nil
}

func ensureDBDir(path string) error {
	if path == ":memory:" || path == "" {
		return nil
	}
	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func waitForShutdown(logger *slog.Logger, server *http.Server, cancel context.CancelFunc) {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	cancel()

	ctx, cancelTimeout := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelTimeout()

	logger.Info("shutting down")
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}

func parseLogLevel(level string) slog.Level {
	switch level {
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
