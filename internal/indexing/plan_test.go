package indexing

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tomtom215/opentestimony/internal/config"
	"github.com/tomtom215/opentestimony/internal/queue"
	"github.com/tomtom215/opentestimony/internal/store"
)

func newPlanTestQueue(t *testing.T) *queue.Store {
	t.Helper()
	dir := t.TempDir()
	db, err := store.New(&config.DatabaseConfig{
		Path:               filepath.Join(dir, "plan.duckdb"),
		MaxMemory:          "512MB",
		VisionEmbeddingDim: 8,
		TextEmbeddingDim:   8,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return queue.NewStore(db, nil)
}

func TestPlanFor_Pending_RunsEverythingEnabled(t *testing.T) {
	job := &queue.Job{Status: queue.StatusPending}
	p, err := planFor(context.Background(), job, nil, true, true, true)
	require.NoError(t, err)
	require.True(t, p.Visual)
	require.True(t, p.Transcript)
	require.True(t, p.Caption)
	require.True(t, p.Clip)
	require.True(t, p.Action)
	require.True(t, p.Face)
}

func TestPlanFor_Pending_SkipsDisabledOptionalModalities(t *testing.T) {
	job := &queue.Job{Status: queue.StatusPending}
	p, err := planFor(context.Background(), job, nil, false, false, false)
	require.NoError(t, err)
	require.True(t, p.Visual)
	require.True(t, p.Transcript)
	require.False(t, p.Caption)
	require.False(t, p.Clip)
	require.False(t, p.Action)
}

func TestPlanFor_PendingVisual_LeavesTranscriptAndCaptionAlone(t *testing.T) {
	job := &queue.Job{Status: queue.StatusPendingVisual}
	p, err := planFor(context.Background(), job, nil, true, true, true)
	require.NoError(t, err)
	require.True(t, p.Visual)
	require.True(t, p.Clip)
	require.True(t, p.Face)
	require.False(t, p.Transcript)
	require.False(t, p.Caption)
}

func TestPlanFor_PendingFix_OnlyFillsMissingModalities(t *testing.T) {
	q := newPlanTestQueue(t)
	ctx := context.Background()
	require.NoError(t, q.EnqueueFromHook(ctx, "media-1", "videos/d/x.mp4"))

	job, err := q.Get(ctx, "media-1")
	require.NoError(t, err)
	job.Status = queue.StatusPendingFix

	p, err := planFor(ctx, job, q, true, true, true)
	require.NoError(t, err)
	require.True(t, p.Visual)
	require.True(t, p.Transcript)
	require.True(t, p.Caption)
	require.True(t, p.Clip)
	require.True(t, p.Face)
}
