package modelclient

import (
	"context"
	"encoding/base64"
	"net/http"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/opentestimony/internal/config"
)

// FaceClient detects faces in a frame and returns one embedding per
// detection (spec.md §3 "Embedding rows" / Face: "bbox, score, 512-dim
// vector", §4.5 step J "detect+embed faces"). Confidence and minimum-size
// filtering is the caller's responsibility (spec.md §4.6 config
// FaceMinConfidence/FaceMinPixels), not this client's.
type FaceClient struct {
	endpoint string
	client   *http.Client
	cb       *gobreaker.CircuitBreaker[any]
}

// NewFaceClient builds a FaceClient from ModelClientConfig.
func NewFaceClient(cfg *config.ModelClientConfig) *FaceClient {
	return &FaceClient{
		endpoint: cfg.FaceEndpoint,
		client:   &http.Client{Timeout: cfg.RequestTimeout},
		cb:       newBreaker("model-face", cfg),
	}
}

// Detection is one detected face.
type Detection struct {
	BBoxX     float64
	BBoxY     float64
	BBoxW     float64
	BBoxH     float64
	Score     float64
	Embedding []float32
}

type faceRequest struct {
	Image string `json:"image"`
}

type faceDetection struct {
	BBox      [4]float64 `json:"bbox"` // x, y, w, h
	Score     float64    `json:"score"`
	Embedding []float32  `json:"embedding"`
}

type faceResponse struct {
	Detections []faceDetection `json:"detections"`
}

// Detect returns every face found in a frame, unfiltered.
func (c *FaceClient) Detect(ctx context.Context, frameJPEG []byte) ([]Detection, error) {
	return execute(c.cb, "model-face", func() ([]Detection, error) {
		var resp faceResponse
		req := faceRequest{Image: base64.StdEncoding.EncodeToString(frameJPEG)}
		if err := postJSON(ctx, c.client, c.endpoint, req, &resp); err != nil {
			return nil, err
		}
		out := make([]Detection, len(resp.Detections))
		for i, d := range resp.Detections {
			out[i] = Detection{
				BBoxX: d.BBox[0], BBoxY: d.BBox[1], BBoxW: d.BBox[2], BBoxH: d.BBox[3],
				Score: d.Score, Embedding: d.Embedding,
			}
		}
		return out, nil
	})
}
