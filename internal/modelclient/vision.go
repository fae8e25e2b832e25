package modelclient

import (
	"context"
	"encoding/base64"
	"net/http"
	"sync"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/opentestimony/internal/config"
)

// VisionClient embeds individual video frames into the vision vector
// space (spec.md §4.4 step: "encode with vision model"). One mutex
// guards every call: the vision model forward pass holds it for the
// call's duration (spec.md §5 "guarded by one mutual-exclusion lock"),
// so indexing and visual search never submit concurrent forward passes
// to a model service built for single-flight GPU inference.
type VisionClient struct {
	endpoint string
	client   *http.Client
	cb       *gobreaker.CircuitBreaker[any]
	mu       sync.Mutex
}

// NewVisionClient builds a VisionClient from ModelClientConfig.
func NewVisionClient(cfg *config.ModelClientConfig) *VisionClient {
	return &VisionClient{
		endpoint: cfg.VisionEndpoint,
		client:   &http.Client{Timeout: cfg.RequestTimeout},
		cb:       newBreaker("model-vision", cfg),
	}
}

type visionEmbedRequest struct {
	Image string `json:"image,omitempty"` // base64-encoded frame
	Text  string `json:"text,omitempty"`  // query text, routed through the model's text tower
}

type visionEmbedResponse struct {
	Embedding []float32 `json:"embedding"`
}

// Embed returns the vision-space embedding for one frame's JPEG bytes.
func (c *VisionClient) Embed(ctx context.Context, frameJPEG []byte) ([]float32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return execute(c.cb, "model-vision", func() ([]float32, error) {
		var resp visionEmbedResponse
		req := visionEmbedRequest{Image: base64.StdEncoding.EncodeToString(frameJPEG)}
		if err := postJSON(ctx, c.client, c.endpoint, req, &resp); err != nil {
			return nil, err
		}
		return resp.Embedding, nil
	})
}

// EmbedText encodes a search query through the vision model's text tower
// into the same space frame embeddings live in, so a CLIP-style
// text-to-video search can run a nearest-neighbor query directly against
// frame_embeddings without a separate text model.
func (c *VisionClient) EmbedText(ctx context.Context, query string) ([]float32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return execute(c.cb, "model-vision", func() ([]float32, error) {
		var resp visionEmbedResponse
		req := visionEmbedRequest{Text: query}
		if err := postJSON(ctx, c.client, c.endpoint, req, &resp); err != nil {
			return nil, err
		}
		return resp.Embedding, nil
	})
}
