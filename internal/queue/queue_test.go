package queue_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tomtom215/opentestimony/internal/apierr"
	"github.com/tomtom215/opentestimony/internal/config"
	"github.com/tomtom215/opentestimony/internal/queue"
	"github.com/tomtom215/opentestimony/internal/store"
)

type recordingNotifier struct {
	notified []string
}

func (n *recordingNotifier) Notify(_ context.Context, mediaID string) {
	n.notified = append(n.notified, mediaID)
}

func newTestStore(t *testing.T) (*queue.Store, *recordingNotifier) {
	t.Helper()
	dir := t.TempDir()
	db, err := store.New(&config.DatabaseConfig{
		Path:               filepath.Join(dir, "queue.duckdb"),
		MaxMemory:          "512MB",
		VisionEmbeddingDim: 8,
		TextEmbeddingDim:   8,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	notifier := &recordingNotifier{}
	return queue.NewStore(db, notifier), notifier
}

func TestEnqueueFromHook_FirstTimeInsertsPending(t *testing.T) {
	s, notifier := newTestStore(t)
	ctx := context.Background()

	err := s.EnqueueFromHook(ctx, "media-1", "videos/dev-A/clip.mp4")
	require.NoError(t, err)

	job, err := s.Get(ctx, "media-1")
	require.NoError(t, err)
	require.Equal(t, queue.StatusPending, job.Status)
	require.Equal(t, []string{"media-1"}, notifier.notified)
}

func TestEnqueueFromHook_SecondTimeReturnsAlreadyQueued(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.EnqueueFromHook(ctx, "media-1", "videos/dev-A/clip.mp4"))
	err := s.EnqueueFromHook(ctx, "media-1", "videos/dev-A/clip.mp4")
	require.ErrorIs(t, err, queue.ErrAlreadyQueued)
}

func TestSelectNextJob_ClaimsOldestPendingAndMarksProcessing(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.EnqueueFromHook(ctx, "media-1", "videos/dev-A/a.mp4"))

	job, err := s.SelectNextJob(ctx)
	require.NoError(t, err)
	require.NotNil(t, job)
	require.Equal(t, "media-1", job.MediaID)
	require.Equal(t, queue.StatusProcessing, job.Status)

	second, err := s.SelectNextJob(ctx)
	require.NoError(t, err)
	require.Nil(t, second)
}

func TestCompleteThenFail(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.EnqueueFromHook(ctx, "media-1", "videos/dev-A/a.mp4"))
	_, err := s.SelectNextJob(ctx)
	require.NoError(t, err)

	require.NoError(t, s.Complete(ctx, "media-1", queue.ModalityCounts{
		VisualIndexed: true,
		FrameCount:    12,
	}))
	job, err := s.Get(ctx, "media-1")
	require.NoError(t, err)
	require.Equal(t, queue.StatusCompleted, job.Status)
	require.True(t, job.VisualIndexed)
	require.Equal(t, 12, job.FrameCount)

	require.NoError(t, s.ResetPending(ctx, "media-1"))
	_, err = s.SelectNextJob(ctx)
	require.NoError(t, err)

	require.NoError(t, s.Fail(ctx, "media-1", assertionError("model endpoint unreachable")))
	job, err = s.Get(ctx, "media-1")
	require.NoError(t, err)
	require.Equal(t, queue.StatusFailed, job.Status)
	require.True(t, job.ErrorMessage.Valid)
	require.Equal(t, "model endpoint unreachable", job.ErrorMessage.String)
}

type assertionError string

func (e assertionError) Error() string { return string(e) }

func TestResetPendingVisual_RefusesWhileProcessing(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.EnqueueFromHook(ctx, "media-1", "videos/dev-A/a.mp4"))
	_, err := s.SelectNextJob(ctx)
	require.NoError(t, err)

	err = s.ResetPendingVisual(ctx, "media-1")
	var apiErr *apierr.Error
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, apierr.KindConflict, apiErr.Kind)
}

func TestResetPendingVisual_AllowedAfterCompletion(t *testing.T) {
	s, notifier := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.EnqueueFromHook(ctx, "media-1", "videos/dev-A/a.mp4"))
	_, err := s.SelectNextJob(ctx)
	require.NoError(t, err)
	require.NoError(t, s.Complete(ctx, "media-1", queue.ModalityCounts{
		VisualIndexed:     true,
		TranscriptIndexed: true,
		FrameCount:        5,
		TranscriptCount:   3,
	}))

	require.NoError(t, s.ResetPendingVisual(ctx, "media-1"))
	job, err := s.Get(ctx, "media-1")
	require.NoError(t, err)
	require.Equal(t, queue.StatusPendingVisual, job.Status)
	require.False(t, job.VisualIndexed)
	require.Equal(t, 0, job.FrameCount)
	require.Contains(t, notifier.notified, "media-1")
}

func TestResetPendingFix_RefusesWhilePending(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.EnqueueFromHook(ctx, "media-1", "videos/dev-A/a.mp4"))

	err := s.ResetPendingFix(ctx, "media-1")
	var apiErr *apierr.Error
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, apierr.KindConflict, apiErr.Kind)
}

func TestMissingModalities_ReflectsEmptyTables(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.EnqueueFromHook(ctx, "media-1", "videos/dev-A/a.mp4"))

	missing, err := s.MissingModalities(ctx, "media-1")
	require.NoError(t, err)
	require.False(t, missing.VisualIndexed)
	require.False(t, missing.TranscriptIndexed)
	require.Equal(t, 0, missing.FrameCount)
}
