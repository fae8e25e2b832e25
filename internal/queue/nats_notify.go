//go:build nats

package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	natsgo "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/tomtom215/opentestimony/internal/config"
)

// natsNotifier publishes a one-line wakeup message per enqueue/reset onto
// a JetStream stream; the job row itself still carries every fact the
// worker needs, so the message body only needs to carry the media id
// (spec.md §4.3: "webhook-enqueued; exactly-one worker dequeue"). Nothing
// in this tree subscribes to the stream: the bridge passes the worker no
// wake channel when this notifier is in use, so the worker polls.
type natsNotifier struct {
	subject   string
	publisher message.Publisher
	embedded  *embeddedNATS
}

// NewNATSNotifier connects to the configured NATS server, ensures the
// wakeup stream exists, and returns a Notifier backed by it. Callers
// should fall back to NoopNotifier if cfg.Enabled is false. When
// cfg.EmbeddedServer is set, it starts an in-process JetStream server
// first and connects to that instead of cfg.URL, so a single-node
// deployment needs no external broker.
func NewNATSNotifier(cfg *config.NATSConfig) (Notifier, error) {
	natsOpts := []natsgo.Option{
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(10),
		natsgo.ReconnectWait(time.Second),
	}

	var embedded *embeddedNATS
	url := cfg.URL
	if cfg.EmbeddedServer {
		var err error
		embedded, err = startEmbeddedNATS(cfg)
		if err != nil {
			return nil, err
		}
		url = embedded.ClientURL()
	}

	nc, err := natsgo.Connect(url, natsOpts...)
	if err != nil {
		if embedded != nil {
			embedded.Shutdown()
		}
		return nil, fmt.Errorf("queue: connect nats: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		if embedded != nil {
			embedded.Shutdown()
		}
		return nil, fmt.Errorf("queue: jetstream context: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      cfg.StreamName,
		Subjects:  []string{cfg.Subject},
		Retention: jetstream.LimitsPolicy,
		MaxAge:    time.Hour,
		Storage:   jetstream.FileStorage,
	}); err != nil {
		nc.Close()
		if embedded != nil {
			embedded.Shutdown()
		}
		return nil, fmt.Errorf("queue: ensure stream %s: %w", cfg.StreamName, err)
	}

	pub, err := wmNats.NewPublisher(wmNats.PublisherConfig{
		URL:         url,
		NatsOptions: natsOpts,
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			Disabled:      false,
			AutoProvision: false,
			TrackMsgId:    true,
		},
	}, watermill.NewStdLogger(false, false))
	if err != nil {
		nc.Close()
		if embedded != nil {
			embedded.Shutdown()
		}
		return nil, fmt.Errorf("queue: create watermill publisher: %w", err)
	}

	return &natsNotifier{subject: cfg.Subject, publisher: pub, embedded: embedded}, nil
}

// Notify is best-effort: a publish failure just means the worker waits
// out its next poll interval instead of waking early, so the error is
// swallowed rather than surfaced to the HTTP caller that triggered it.
func (n *natsNotifier) Notify(_ context.Context, mediaID string) {
	msg := message.NewMessage(watermill.NewUUID(), []byte(mediaID))
	_ = n.publisher.Publish(n.subject, msg)
}
