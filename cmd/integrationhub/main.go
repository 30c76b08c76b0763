package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container

	externalapiadapter "github.com/ericfisherdev/integrationhub/internal/adapter/driven/externalapi"
	sqliteadapter "github.com/ericfisherdev/integrationhub/internal/adapter/driven/sqlite"
	httphandler "github.com/ericfisherdev/integrationhub/internal/adapter/driving/http"
	"github.com/ericfisherdev/integrationhub/internal/application"
	"github.com/ericfisherdev/integrationhub/internal/config"
	"github.com/ericfisherdev/integrationhub/internal/security"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load configuration (fail fast on invalid env vars).
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.Info("config loaded",
		"environment", cfg.Environment,
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"external_api_url", cfg.ExternalAPIURL,
	)

	// 2. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Open database (dual reader/writer with WAL mode).
	db, err := sqliteadapter.NewDB(cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()
	slog.Info("database opened", "path", cfg.DBPath)

	// 4. Run migrations on writer connection.
	if err := sqliteadapter.RunMigrations(db.Writer); err != nil {
		return err
	}
	slog.Info("migrations complete")

	// 5. Build the credential cipher. Production refuses to start without a
	// persistent key; development falls back to an ephemeral one.
	cipher, err := buildCipher(cfg)
	if err != nil {
		return err
	}

	// 6. Wire adapters.
	clientStore := sqliteadapter.NewClientRepo(db)
	integrationStore := sqliteadapter.NewIntegrationRepo(db)
	externalClient := externalapiadapter.NewClient(
		cfg.ExternalAPIURL,
		cfg.ExternalAPITimeout,
		cfg.ExternalAPIMaxRetries,
		slog.Default(),
	)

	// 7. Create services.
	clientSvc := application.NewClientService(clientStore, cipher, cfg.APIKeyLength)
	relaySvc := application.NewRelayService(clientStore, integrationStore, externalClient, cipher)

	// 8. Create HTTP handler and register routes.
	apiHandler := httphandler.NewHandler(
		clientSvc,
		relaySvc,
		integrationStore,
		db.Reader,
		cfg.Environment,
		slog.Default(),
	)
	handler := httphandler.NewServeMux(apiHandler, slog.Default())

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.Info("http server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server error", "error", err)
		}
	}()

	slog.Info("integrationhub started", "listen_addr", cfg.ListenAddr, "environment", cfg.Environment)

	// 9. Wait for shutdown signal.
	<-ctx.Done()
	slog.Info("shutting down")

	// 10. Graceful shutdown with 10s timeout so in-flight relays can finish.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}

// buildCipher creates the credential cipher from the configured key. Without
// a key, production refuses to start and development gets an ephemeral key
// whose tokens do not survive a restart.
func buildCipher(cfg *config.Config) (*security.Cipher, error) {
	if len(cfg.EncryptionKey) > 0 {
		return security.NewCipher(cfg.EncryptionKey)
	}

	if cfg.IsProduction() {
		return nil, errors.New("INTEGRATIONHUB_ENCRYPTION_KEY is required in production")
	}

	slog.Warn("no encryption key configured, using an ephemeral key; " +
		"stored credentials will be unreadable after restart")
	return security.NewEphemeralCipher()
}
