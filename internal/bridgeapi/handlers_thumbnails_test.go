package bridgeapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

func thumbnailRequest(videoID, tsMs string) (*httptest.ResponseRecorder, *http.Request) {
	req := httptest.NewRequest(http.MethodGet, "/thumbnails/"+videoID+"/"+tsMs+".jpg", nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("video_id", videoID)
	rctx.URLParams.Add("ts_ms", tsMs+".jpg")
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	return httptest.NewRecorder(), req
}

func TestThumbnail_ExactMatchServesFile(t *testing.T) {
	dir := t.TempDir()
	videoDir := filepath.Join(dir, "vid-1")
	require.NoError(t, os.MkdirAll(videoDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(videoDir, "5000.jpg"), []byte("exact-frame"), 0o644))

	h := &Handler{ThumbnailDir: dir}

	rec, req := thumbnailRequest("vid-1", "5000")
	h.Thumbnail(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "exact-frame", rec.Body.String())
}

func TestThumbnail_FallsBackToNearest(t *testing.T) {
	dir := t.TempDir()
	videoDir := filepath.Join(dir, "vid-2")
	require.NoError(t, os.MkdirAll(videoDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(videoDir, "1000.jpg"), []byte("near"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(videoDir, "9000.jpg"), []byte("far"), 0o644))

	h := &Handler{ThumbnailDir: dir}

	rec, req := thumbnailRequest("vid-2", "1500")
	h.Thumbnail(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "near", rec.Body.String())
}

func TestThumbnail_NoThumbnailsReturns404(t *testing.T) {
	h := &Handler{ThumbnailDir: t.TempDir()}

	rec, req := thumbnailRequest("vid-missing", "1000")
	h.Thumbnail(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}
