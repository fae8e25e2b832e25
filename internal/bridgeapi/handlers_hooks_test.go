package bridgeapi

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/require"

	"github.com/tomtom215/opentestimony/internal/config"
	"github.com/tomtom215/opentestimony/internal/queue"
	"github.com/tomtom215/opentestimony/internal/store"
	"github.com/tomtom215/opentestimony/internal/wsnotify"
)

func newTestHandler(t *testing.T) *Handler {
	t.Helper()
	dir := t.TempDir()
	db, err := store.New(&config.DatabaseConfig{
		Path:               filepath.Join(dir, "bridgeapi.duckdb"),
		MaxMemory:          "512MB",
		VisionEmbeddingDim: 8,
		TextEmbeddingDim:   8,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return &Handler{
		Queue: queue.NewStore(db, nil),
		Hub:   wsnotify.NewHub(),
	}
}

func postHook(t *testing.T, h *Handler, body videoUploadedHookRequest) *httptest.ResponseRecorder {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/hooks/video-uploaded", bytes.NewReader(b))
	rec := httptest.NewRecorder()
	h.VideoUploadedHook(rec, req)
	return rec
}

func TestVideoUploadedHook_FirstCallQueues(t *testing.T) {
	h := newTestHandler(t)

	rec := postHook(t, h, videoUploadedHookRequest{VideoID: "vid-1", ObjectName: "videos/vid-1.mp4"})

	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"queued"}`, rec.Body.String())

	job, err := h.Queue.Get(context.Background(), "vid-1")
	require.NoError(t, err)
	require.Equal(t, queue.StatusPending, job.Status)
}

func TestVideoUploadedHook_DuplicateCallIsIdempotent(t *testing.T) {
	h := newTestHandler(t)

	postHook(t, h, videoUploadedHookRequest{VideoID: "vid-2", ObjectName: "videos/vid-2.mp4"})
	rec := postHook(t, h, videoUploadedHookRequest{VideoID: "vid-2", ObjectName: "videos/vid-2.mp4"})

	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"already_queued"}`, rec.Body.String())
}

func TestVideoUploadedHook_MissingFieldsReturns400(t *testing.T) {
	h := newTestHandler(t)

	rec := postHook(t, h, videoUploadedHookRequest{VideoID: "vid-3"})

	require.Equal(t, http.StatusBadRequest, rec.Code)
}
