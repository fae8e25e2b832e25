package modelclient

import (
	"context"
	"encoding/base64"
	"net/http"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/opentestimony/internal/config"
)

// CaptionClient produces natural-language descriptions for single frames
// and for action captions over a short clip window of frames (spec.md
// §4.5 steps F "Caption frames" and I "Action captioning").
type CaptionClient struct {
	endpoint string
	client   *http.Client
	cb       *gobreaker.CircuitBreaker[any]
}

// NewCaptionClient builds a CaptionClient from ModelClientConfig.
func NewCaptionClient(cfg *config.ModelClientConfig) *CaptionClient {
	return &CaptionClient{
		endpoint: cfg.CaptionEndpoint,
		client:   &http.Client{Timeout: cfg.RequestTimeout},
		cb:       newBreaker("model-caption", cfg),
	}
}

type captionRequest struct {
	Images []string `json:"images"` // base64-encoded frames; one frame for a still caption, several for an action caption
}

type captionResponse struct {
	Caption string `json:"caption"`
}

// CaptionFrame describes a single frame.
func (c *CaptionClient) CaptionFrame(ctx context.Context, frameJPEG []byte) (string, error) {
	return c.caption(ctx, [][]byte{frameJPEG})
}

// CaptionAction describes the action taking place across an ordered
// window of sampled frames (spec.md §4.5 step I, §4.4 config
// ActionSampleFrames).
func (c *CaptionClient) CaptionAction(ctx context.Context, frames [][]byte) (string, error) {
	return c.caption(ctx, frames)
}

func (c *CaptionClient) caption(ctx context.Context, frames [][]byte) (string, error) {
	return execute(c.cb, "model-caption", func() (string, error) {
		images := make([]string, len(frames))
		for i, f := range frames {
			images[i] = base64.StdEncoding.EncodeToString(f)
		}
		var resp captionResponse
		if err := postJSON(ctx, c.client, c.endpoint, captionRequest{Images: images}, &resp); err != nil {
			return "", err
		}
		return resp.Caption, nil
	})
}
