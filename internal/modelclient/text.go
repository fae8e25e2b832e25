package modelclient

import (
	"context"
	"net/http"
	"sync"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/opentestimony/internal/config"
)

// TextClient embeds free text (captions, transcripts, search queries) into
// the shared text vector space (spec.md §4.4 step: "encode text"). One
// mutex serializes every call so indexing and search never overlap
// forward passes against the same single-flight model service (spec.md
// §5) — a second, independent lock from VisionClient's, so a search can
// run against the text model while indexing is inside the vision model.
type TextClient struct {
	endpoint string
	client   *http.Client
	cb       *gobreaker.CircuitBreaker[any]
	mu       sync.Mutex
}

// NewTextClient builds a TextClient from ModelClientConfig.
func NewTextClient(cfg *config.ModelClientConfig) *TextClient {
	return &TextClient{
		endpoint: cfg.TextEndpoint,
		client:   &http.Client{Timeout: cfg.RequestTimeout},
		cb:       newBreaker("model-text", cfg),
	}
}

type textEmbedRequest struct {
	Text string `json:"text"`
}

type textEmbedResponse struct {
	Embedding []float32 `json:"embedding"`
}

// Embed returns the text-space embedding for a string. The same client
// embeds transcript segments, frame captions, and user search queries —
// the model service does not distinguish the source.
func (c *TextClient) Embed(ctx context.Context, text string) ([]float32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return execute(c.cb, "model-text", func() ([]float32, error) {
		var resp textEmbedResponse
		if err := postJSON(ctx, c.client, c.endpoint, textEmbedRequest{Text: text}, &resp); err != nil {
			return nil, err
		}
		return resp.Embedding, nil
	})
}
