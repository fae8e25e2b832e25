// Package bridgehook sends the ingest API's best-effort
// "video-uploaded" notification to the bridge so it can wake its
// indexing poll loop early (spec.md §4.1 Upload step 9).
package bridgehook

import (
	"bytes"
	"context"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/tomtom215/opentestimony/internal/config"
	"github.com/tomtom215/opentestimony/internal/logging"
)

// Notifier posts to the bridge's /hooks/video-uploaded endpoint.
type Notifier struct {
	url    string
	client *http.Client
}

// New builds a Notifier bound to cfg.BridgeURL with a short request
// timeout, matching the teacher's detection.WebhookNotifier pattern of
// a dedicated client rather than the package-level http.DefaultClient.
func New(cfg *config.WebhookConfig) *Notifier {
	return &Notifier{
		url:    cfg.BridgeURL,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

type videoUploadedPayload struct {
	VideoID    string `json:"video_id"`
	ObjectName string `json:"object_name"`
}

// NotifyVideoUploaded posts the hook payload and swallows any failure:
// the upload is already durable by the time this runs, so a dead
// bridge only delays indexing, it never fails the upload (spec.md §4.1
// step 9: "failures are logged and ignored").
func (n *Notifier) NotifyVideoUploaded(ctx context.Context, videoID, objectName string) {
	if n.url == "" {
		return
	}

	body, err := json.Marshal(videoUploadedPayload{VideoID: videoID, ObjectName: objectName})
	if err != nil {
		logging.Warn().Err(err).Msg("bridgehook: marshal payload failed")
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		logging.Warn().Err(err).Msg("bridgehook: build request failed")
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		logging.Warn().Err(err).Str("video_id", videoID).Msg("bridge notification failed (non-fatal)")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		logging.Warn().Int("status", resp.StatusCode).Str("video_id", videoID).Msg("bridge notification returned error status (non-fatal)")
	}
}
