// Package main is the entry point for the Open Testimony Ingest API.
//
// The Ingest API is the device-facing half of the system: device
// registration, signed video/photo upload, the staff review console, and
// the public video listing/playback surface. It owns the DuckDB store and
// the object store; the bridge process reads the same database and the
// same bucket but never writes media rows directly.
//
// # Application Architecture
//
// main initializes components in the following order:
//
//  1. Configuration: koanf-layered env vars, optional YAML file, struct defaults
//  2. Logging: zerolog, configured from the same layered config
//  3. Database: embedded DuckDB store shared with the bridge
//  4. Object store: S3-compatible blob storage (MinIO in the reference deployment)
//  5. Auth: JWT session issuer, revocation store, Casbin RBAC enforcer
//  6. HTTP server: chi router, added to the supervisor tree
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

	"github.com/tomtom215/opentestimony/internal/audit"
	"github.com/tomtom215/opentestimony/internal/auth"
	"github.com/tomtom215/opentestimony/internal/authz"
	"github.com/tomtom215/opentestimony/internal/bridgehook"
	"github.com/tomtom215/opentestimony/internal/bulkimport"
	"github.com/tomtom215/opentestimony/internal/config"
	"github.com/tomtom215/opentestimony/internal/devices"
	"github.com/tomtom215/opentestimony/internal/ingestapi"
	"github.com/tomtom215/opentestimony/internal/logging"
	"github.com/tomtom215/opentestimony/internal/media"
	"github.com/tomtom215/opentestimony/internal/objectstore"
	"github.com/tomtom215/opentestimony/internal/store"
	"github.com/tomtom215/opentestimony/internal/supervisor"
	"github.com/tomtom215/opentestimony/internal/supervisor/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if err := cfg.Validate(); err != nil {
		logging.Fatal().Err(err).Msg("Invalid configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().Msg("Starting Open Testimony Ingest API")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := store.New(&cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing database")
		}
	}()
	logging.Info().Str("path", cfg.Database.Path).Msg("Database initialized")

	objects, err := objectstore.New(ctx, &cfg.ObjectStore)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize object store")
	}
	logging.Info().Str("bucket", cfg.ObjectStore.Bucket).Msg("Object store initialized")

	ledger := audit.NewLedger(db)
	deviceStore := devices.NewStore(db, ledger)
	mediaStore := media.NewStore(db, ledger)
	hook := bridgehook.New(&cfg.Webhook)
	bulk := bulkimport.NewProcessor(objects, mediaStore, ledger, hook)

	jwtManager, err := auth.NewJWTManager(&cfg.Security)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize JWT manager")
	}
	revocation, err := auth.NewRevocationStore(cfg.Security.SessionStorePath)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize session revocation store")
	}
	userStore := auth.NewUserStore(db, ledger)
	if err := userStore.SeedAdmin(ctx, &cfg.Security); err != nil {
		logging.Fatal().Err(err).Msg("Failed to seed admin user")
	}
	sessions := auth.NewSessionIssuer(userStore, jwtManager, revocation, &cfg.Security, cfg.Server.Environment)
	authenticator := auth.NewSessionAuthenticator(jwtManager, revocation, cfg.Security.SessionCookieName)

	enforcer, err := authz.NewEnforcer(&cfg.Casbin, ledger)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize RBAC enforcer")
	}

	handler := &ingestapi.Handler{
		Devices:  deviceStore,
		Media:    mediaStore,
		Ledger:   ledger,
		Objects:  objects,
		Bulk:     bulk,
		Hook:     hook,
		Users:    userStore,
		Sessions: sessions,
		Enforcer: enforcer,
	}

	router := ingestapi.NewRouter(handler, authenticator, &cfg.Security)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
		IdleTimeout:  60 * time.Second,
	}

	slogLogger := logging.NewSlogLogger()
	tree, err := supervisor.NewSupervisorTree(slogLogger, supervisor.DefaultTreeConfig())
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))
	logging.Info().Str("addr", server.Addr).Msg("HTTP server service added")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree...")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish...")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	if len(unstopped) > 0 {
		logging.Warn().Int("count", len(unstopped)).Msg("Services failed to stop within timeout")
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
		}
	}

	logging.Info().Msg("Ingest API stopped gracefully")
}
