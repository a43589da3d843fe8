package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/celerix-dev/viaticos/internal/api"
	"github.com/celerix-dev/viaticos/internal/config"
	"github.com/celerix-dev/viaticos/internal/engine"
	"github.com/celerix-dev/viaticos/internal/logging"
	"github.com/celerix-dev/viaticos/internal/notify"
	"github.com/celerix-dev/viaticos/internal/sheets"
	"github.com/celerix-dev/viaticos/internal/vault"
	"github.com/celerix-dev/viaticos/internal/viaticos"
	"github.com/gin-gonic/gin"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)

	if len(os.Args) > 1 {
		var err error
		switch os.Args[1] {
		case "migrate":
			err = migrate(cfg, os.Args[2:])
		case "seal":
			err = reseal(cfg, true)
		case "unseal":
			err = reseal(cfg, false)
		default:
			err = fmt.Errorf("unknown command %q (want migrate, seal or unseal)", os.Args[1])
		}
		if err != nil {
			logger.Error(context.Background(), "command failed", "command", os.Args[1], "error", err)
			os.Exit(1)
		}
		return
	}

	if err := run(cfg, logger); err != nil {
		logger.Error(context.Background(), "daemon stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger logging.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info(ctx, "starting viaticos daemon", "backend", cfg.Backend, "port", cfg.HTTPPort)

	// 1. Persistence
	persister, closeFn, err := openPersister(ctx, cfg, cfg.Backend)
	if err != nil {
		return err
	}
	defer closeFn()

	kv, err := engine.Open(persister)
	if err != nil {
		return err
	}

	// 2. Remote side
	client := sheets.NewClient(sheets.Options{
		APIKey:            cfg.SheetsAPIKey,
		SheetID:           cfg.SheetID,
		BaseURL:           cfg.SheetsBaseURL,
		Timeout:           cfg.SheetsTimeout,
		RequestsPerSecond: cfg.SheetsRPS,
		Logger:            logger,
	})
	if !client.Configured() {
		logger.Warn(ctx, "Google Sheets API key not set; sync is disabled")
	}

	var opts []viaticos.Option
	if cfg.WebhookURL != "" {
		opts = append(opts, viaticos.WithPusher(sheets.NewWebhook(cfg.WebhookURL, cfg.SheetsTimeout, nil, logger)))
		logger.Info(ctx, "mirroring changes to webhook")
	}

	// 3. Engine
	center := notify.NewCenter(cfg.NotificationTTL)
	defer center.Close()

	store := viaticos.New(kv, client, center, logger, opts...)

	if cfg.SyncOnStart && client.Configured() {
		go func() {
			if err := store.Bootstrap(ctx); err != nil {
				logger.Warn(ctx, "start-up sync failed", "error", err)
			}
		}()
	}

	// 4. HTTP API
	gin.SetMode(gin.ReleaseMode)
	h := &api.Handler{Store: store, Notifications: center, Log: logger}
	router := api.NewRouter(h, api.RouterConfig{
		CORSOrigins: cfg.CORSOrigins,
		RateLimit:   cfg.APIRateLimit,
		Burst:       cfg.APIBurst,
		Logger:      logger,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddress(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info(ctx, "HTTP API listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// 5. Graceful shutdown
	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
	case <-ctx.Done():
		logger.Info(context.Background(), "shutdown signal received, finishing requests")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn(shutdownCtx, "HTTP shutdown incomplete", "error", err)
	}
	return store.Close()
}

// openPersister builds the persister for backend. closeFn releases it.
func openPersister(ctx context.Context, cfg config.Config, backend string) (engine.Persister, func() error, error) {
	switch backend {
	case config.BackendSQLite:
		s, err := engine.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite: %w", err)
		}
		return s, s.Close, nil
	default:
		p, err := engine.NewPersistence(cfg.DataDir)
		if err != nil {
			return nil, nil, fmt.Errorf("open data dir: %w", err)
		}
		if cfg.MasterKey != "" {
			key, err := vault.ParseKey(cfg.MasterKey)
			if err != nil {
				return nil, nil, fmt.Errorf("master key: %w", err)
			}
			if err := p.Seal(key); err != nil {
				return nil, nil, err
			}
		}
		return p, func() error { return nil }, nil
	}
}

// migrate copies every snapshot between the JSON directory and SQLite.
// Usage: viaticosd migrate <json|sqlite> <json|sqlite>
func migrate(cfg config.Config, args []string) error {
	if len(args) != 2 || args[0] == args[1] || !validBackend(args[0]) || !validBackend(args[1]) {
		return errors.New("usage: viaticosd migrate <json|sqlite> <json|sqlite>")
	}
	ctx := context.Background()

	src, closeSrc, err := openPersister(ctx, cfg, args[0])
	if err != nil {
		return err
	}
	defer closeSrc()

	dst, closeDst, err := openPersister(ctx, cfg, args[1])
	if err != nil {
		return err
	}
	defer closeDst()

	n, err := engine.Migrate(src, dst)
	if err != nil {
		return err
	}
	fmt.Printf("Migrated %d keys from %s to %s.\n", n, args[0], args[1])
	return nil
}

func validBackend(name string) bool {
	return name == config.BackendJSON || name == config.BackendSQLite
}

// reseal encrypts the JSON data directory in place with VIATICOS_MASTER_KEY,
// or decrypts it when seal is false.
func reseal(cfg config.Config, seal bool) error {
	if cfg.MasterKey == "" {
		return errors.New("VIATICOS_MASTER_KEY is required")
	}
	key, err := vault.ParseKey(cfg.MasterKey)
	if err != nil {
		return fmt.Errorf("master key: %w", err)
	}

	plain, err := engine.NewPersistence(cfg.DataDir)
	if err != nil {
		return err
	}
	sealed, err := engine.NewPersistence(cfg.DataDir)
	if err != nil {
		return err
	}
	if err := sealed.Seal(key); err != nil {
		return err
	}

	src, dst, verb := plain, sealed, "Sealed"
	if !seal {
		src, dst, verb = sealed, plain, "Unsealed"
	}
	n, err := engine.Migrate(src, dst)
	if err != nil {
		return err
	}
	fmt.Printf("%s %d snapshots in %s.\n", verb, n, cfg.DataDir)
	return nil
}
