package bridgeapi

import (
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/opentestimony/internal/apierr"
)

// Thumbnail implements GET /thumbnails/{video_id}/{ts_ms}.jpg (spec.md
// §6): serves the exact frame if present, otherwise the nearest
// available timestamp for the same video, since a requested ts_ms
// rarely lands exactly on a sampled frame boundary.
func (h *Handler) Thumbnail(w http.ResponseWriter, r *http.Request) {
	videoID := chi.URLParam(r, "video_id")
	tsParam := strings.TrimSuffix(chi.URLParam(r, "ts_ms"), ".jpg")
	requested, err := strconv.ParseInt(tsParam, 10, 64)
	if err != nil {
		apierr.WriteError(w, r, apierr.Validation("malformed timestamp"))
		return
	}

	dir := filepath.Join(h.ThumbnailDir, videoID)
	exact := filepath.Join(dir, tsParam+".jpg")
	if _, err := os.Stat(exact); err == nil {
		http.ServeFile(w, r, exact)
		return
	}

	entries, err := os.ReadDir(dir)
	if err != nil || len(entries) == 0 {
		apierr.WriteError(w, r, apierr.NotFound("no thumbnails available for this video"))
		return
	}

	var nearest string
	var nearestDiff int64 = -1
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".jpg") {
			continue
		}
		ts, err := strconv.ParseInt(strings.TrimSuffix(e.Name(), ".jpg"), 10, 64)
		if err != nil {
			continue
		}
		diff := ts - requested
		if diff < 0 {
			diff = -diff
		}
		if nearestDiff == -1 || diff < nearestDiff {
			nearestDiff = diff
			nearest = e.Name()
		}
	}
	if nearest == "" {
		apierr.WriteError(w, r, apierr.NotFound("no thumbnails available for this video"))
		return
	}

	http.ServeFile(w, r, filepath.Join(dir, nearest))
}
