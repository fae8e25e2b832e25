// Package main is the entry point for the Open Testimony AI bridge.
//
// The bridge is the semantic-indexing half of the system: it drains the
// Indexing Job Queue, runs each video through the frame/transcript/
// caption/clip/action/face extraction pipeline, periodically reclusters
// face embeddings, and serves the per-modality search API, the indexing
// status API, and thumbnail retrieval. It shares the Ingest API's DuckDB
// database and object-store bucket but writes only indexing-derived
// tables, never media rows.
//
// # Application Architecture
//
// main initializes components in the following order:
//
//  1. Configuration: koanf-layered env vars, optional YAML file, struct defaults
//  2. Logging: zerolog, configured from the same layered config
//  3. Database: the same embedded DuckDB store the Ingest API writes to
//  4. Model clients: vision/text/transcribe/caption/face HTTP collaborators
//  5. Indexing worker and reclusterer, added to the supervisor tree
//  6. HTTP server: chi router (webhook, search, status, thumbnails, websocket)
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

	"github.com/tomtom215/opentestimony/internal/auth"
	"github.com/tomtom215/opentestimony/internal/bridgeapi"
	"github.com/tomtom215/opentestimony/internal/config"
	"github.com/tomtom215/opentestimony/internal/ffmpegutil"
	"github.com/tomtom215/opentestimony/internal/indexing"
	"github.com/tomtom215/opentestimony/internal/logging"
	"github.com/tomtom215/opentestimony/internal/modelclient"
	"github.com/tomtom215/opentestimony/internal/objectstore"
	"github.com/tomtom215/opentestimony/internal/queue"
	"github.com/tomtom215/opentestimony/internal/search"
	"github.com/tomtom215/opentestimony/internal/store"
	"github.com/tomtom215/opentestimony/internal/supervisor"
	"github.com/tomtom215/opentestimony/internal/supervisor/services"
	"github.com/tomtom215/opentestimony/internal/wsnotify"
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

	logging.Info().Msg("Starting Open Testimony AI bridge")

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

	ffmpeg, err := ffmpegutil.NewHelper(cfg.Indexing.TempDir)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize ffmpeg helper")
	}

	vision := modelclient.NewVisionClient(&cfg.ModelClient)
	text := modelclient.NewTextClient(&cfg.ModelClient)
	transcribe := modelclient.NewTranscribeClient(&cfg.ModelClient)
	caption := modelclient.NewCaptionClient(&cfg.ModelClient)
	face := modelclient.NewFaceClient(&cfg.ModelClient)

	pipeline := indexing.New(db, ffmpeg, objects, indexing.Clients{
		Vision:     vision,
		Text:       text,
		Transcribe: transcribe,
		Caption:    caption,
		Face:       face,
	}, cfg.Indexing, cfg.Database)

	notifier, wake := queueNotifier(cfg)
	q := queue.NewStore(db, notifier)
	worker := indexing.NewWorker(q, pipeline, cfg.Indexing.PollInterval, wake)
	reclusterer := indexing.NewReclusterer(db, cfg.Indexing.FaceHDBSCANMinCluster, cfg.Indexing.FaceClusterSimilarity)

	dispatcher := search.New(db, vision, text, cfg.Database)
	hub := wsnotify.NewHub()

	jwtManager, err := auth.NewJWTManager(&cfg.Security)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize JWT manager")
	}
	authenticator := auth.NewSessionAuthenticator(jwtManager, nil, cfg.Security.SessionCookieName)

	handler := &bridgeapi.Handler{
		Queue:            q,
		Search:           dispatcher,
		Hub:              hub,
		ThumbnailDir:     cfg.Indexing.ThumbnailDir,
		FaceThumbnailDir: cfg.Indexing.FaceThumbnailDir,
		CORSOrigins:      cfg.Security.CORSOrigins,
	}
	router := bridgeapi.NewRouter(handler, authenticator, &cfg.Security)

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

	tree.AddDataService(worker)
	tree.AddDataService(supervisor.NewPeriodicService("face-reclusterer", time.Hour, false, func(ctx context.Context) error {
		clusters, noise, err := reclusterer.Run(ctx)
		if err != nil {
			return err
		}
		logging.Info().Int("clusters", clusters).Int("noise", noise).Msg("Face reclustering pass complete")
		return nil
	}))
	logging.Info().Msg("Indexing worker and face reclusterer added to supervisor tree")

	tree.AddMessagingService(hub)
	logging.Info().Msg("WebSocket notification hub added to supervisor tree")

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

	logging.Info().Msg("Bridge stopped gracefully")
}

// queueNotifier picks the JetStream wakeup transport when configured,
// falling back to an in-process channel (the common case: the webhook
// handler and the indexing worker run in the same binary).
func queueNotifier(cfg *config.Config) (queue.Notifier, <-chan string) {
	if cfg.NATS.Enabled {
		notifier, err := queue.NewNATSNotifier(&cfg.NATS)
		if err != nil {
			logging.Warn().Err(err).Msg("Failed to initialize NATS wakeup notifier, falling back to channel notifier")
		} else {
			return notifier, nil
		}
	}
	chanNotifier := queue.NewChanNotifier()
	return chanNotifier, chanNotifier.C()
}
