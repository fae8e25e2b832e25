//go:build nats

package queue

import (
	"fmt"
	"time"

	"github.com/nats-io/nats-server/v2/server"

	"github.com/tomtom215/opentestimony/internal/config"
)

// embeddedNATS wraps an in-process NATS/JetStream server so a single-node
// deployment doesn't need an external broker just to wake the indexing
// worker. Only NewNATSNotifier constructs one, and only when
// config.NATSConfig.EmbeddedServer is set.
type embeddedNATS struct {
	srv *server.Server
}

// startEmbeddedNATS starts an in-process JetStream-enabled NATS server and
// blocks until it accepts connections or the timeout elapses.
func startEmbeddedNATS(cfg *config.NATSConfig) (*embeddedNATS, error) {
	opts := &server.Options{
		ServerName: "opentestimony-queue",
		JetStream:  true,
		StoreDir:   cfg.StoreDir,
		DontListen: false,
		MaxPayload: 8 * 1024 * 1024,
	}

	ns, err := server.NewServer(opts)
	if err != nil {
		return nil, fmt.Errorf("queue: create embedded nats server: %w", err)
	}

	ns.ConfigureLogger()
	go ns.Start()

	if !ns.ReadyForConnections(10 * time.Second) {
		ns.Shutdown()
		return nil, fmt.Errorf("queue: embedded nats server not ready within timeout")
	}

	return &embeddedNATS{srv: ns}, nil
}

// ClientURL returns the in-process server's connection URL, overriding
// whatever external cfg.URL was configured.
func (e *embeddedNATS) ClientURL() string {
	return e.srv.ClientURL()
}

// Shutdown stops the embedded server, waiting for in-flight work to drain.
func (e *embeddedNATS) Shutdown() {
	e.srv.Shutdown()
	e.srv.WaitForShutdown()
}
