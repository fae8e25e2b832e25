package media_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tomtom215/opentestimony/internal/audit"
	"github.com/tomtom215/opentestimony/internal/config"
	"github.com/tomtom215/opentestimony/internal/media"
	"github.com/tomtom215/opentestimony/internal/store"
)

func newTestStore(t *testing.T) *media.Store {
	t.Helper()
	dir := t.TempDir()
	db, err := store.New(&config.DatabaseConfig{
		Path:               filepath.Join(dir, "media.duckdb"),
		MaxMemory:          "512MB",
		VisionEmbeddingDim: 8,
		TextEmbeddingDim:   8,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return media.NewStore(db, audit.NewLedger(db))
}

func createTestRecord(t *testing.T, s *media.Store, deviceID string, tags []string) string {
	t.Helper()
	id, err := s.Create(context.Background(), media.CreateInput{
		DeviceID:           deviceID,
		ObjectName:         "videos/" + deviceID + "/clip.mp4",
		FileHash:           "deadbeef",
		CapturedAt:         time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC),
		IncidentTags:       tags,
		Source:             media.SourceLive,
		MediaType:          media.TypeVideo,
		VerificationStatus: media.VerificationVerified,
		Envelope:           []byte(`{"version":1}`),
	})
	require.NoError(t, err)
	return id
}

func TestCreateAndGet(t *testing.T) {
	s := newTestStore(t)
	id := createTestRecord(t, s, "dev-A", []string{"incident"})

	rec, err := s.Get(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, "dev-A", rec.DeviceID)
	require.Equal(t, []string{"incident"}, rec.IncidentTags)
	require.Equal(t, media.VerificationVerified, rec.VerificationStatus)
	require.False(t, rec.IsDeleted())
}

func TestList_ExcludesSoftDeleted(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	id := createTestRecord(t, s, "dev-A", nil)
	createTestRecord(t, s, "dev-A", nil)

	require.NoError(t, s.SoftDelete(ctx, id, "admin-1"))

	recs, err := s.List(ctx, media.ListFilter{DeviceID: "dev-A"})
	require.NoError(t, err)
	require.Len(t, recs, 1)
}

func TestList_FilterByTag(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	createTestRecord(t, s, "dev-A", []string{"incident", "night"})
	createTestRecord(t, s, "dev-A", []string{"documentation"})

	recs, err := s.List(ctx, media.ListFilter{TagsContainAll: []string{"incident"}})
	require.NoError(t, err)
	require.Len(t, recs, 1)
}

func TestUpdateAnnotationsByDevice_RejectsOtherDevice(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	id := createTestRecord(t, s, "dev-A", nil)

	_, err := s.UpdateAnnotationsByDevice(ctx, id, "dev-B", media.Annotation{Category: "incident"})
	require.Error(t, err)
}

func TestUpdateAnnotationsByDevice_Success(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	id := createTestRecord(t, s, "dev-A", nil)

	rec, err := s.UpdateAnnotationsByDevice(ctx, id, "dev-A", media.Annotation{
		Category: "incident", Location: "5th & Main", Notes: "crowd dispersal",
	})
	require.NoError(t, err)
	require.Equal(t, "incident", rec.AnnotationCategory)
	require.True(t, rec.AnnotationsUpdatedAt.Valid)
	require.Equal(t, "dev-A", rec.AnnotationsUpdatedBy.String)
}

func TestUpdateAnnotations_RejectsInvalidCategory(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	id := createTestRecord(t, s, "dev-A", nil)

	_, err := s.UpdateAnnotationsByDevice(ctx, id, "dev-A", media.Annotation{Category: "not-a-real-category"})
	require.Error(t, err)
}

func TestReviewQueue_DefaultsToPending(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	createTestRecord(t, s, "dev-A", nil)

	items, err := s.Queue(ctx, media.ListFilter{})
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, media.ReviewPending, items[0].ReviewStatus)
}

func TestSetReviewStatus_FlaggedThenResetToPending(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	id := createTestRecord(t, s, "dev-A", nil)

	rec, err := s.SetReviewStatus(ctx, id, media.ReviewFlagged, "staff-1")
	require.NoError(t, err)
	require.Equal(t, media.ReviewFlagged, rec.ReviewStatus)
	require.Equal(t, "staff-1", rec.ReviewedBy.String)
	require.True(t, rec.ReviewedAt.Valid)

	rec, err = s.SetReviewStatus(ctx, id, media.ReviewPending, "staff-1")
	require.NoError(t, err)
	require.False(t, rec.ReviewedBy.Valid)
	require.False(t, rec.ReviewedAt.Valid)
}

func TestSetReviewStatus_RejectsInvalidStatus(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	id := createTestRecord(t, s, "dev-A", nil)

	_, err := s.SetReviewStatus(ctx, id, "bogus", "staff-1")
	require.Error(t, err)
}

func TestTags_AddListDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	createTestRecord(t, s, "dev-A", []string{"incident"})

	require.NoError(t, s.AddTag(ctx, "documentation"))

	tags, err := s.ListTags(ctx)
	require.NoError(t, err)
	require.Contains(t, tags, "documentation")
	require.Contains(t, tags, "incident")

	affected, err := s.DeleteTag(ctx, "incident", "admin-1")
	require.NoError(t, err)
	require.Equal(t, int64(1), affected)

	tags, err = s.ListTags(ctx)
	require.NoError(t, err)
	require.NotContains(t, tags, "incident")
}

func TestSoftDelete_RemovesFromIntegrityFileCountButKeepsAudit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	id := createTestRecord(t, s, "dev-A", nil)

	report, err := s.IntegrityReport(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, report.TotalFiles)
	require.True(t, report.ChainVerificationResult.Valid)

	require.NoError(t, s.SoftDelete(ctx, id, "admin-1"))

	report, err = s.IntegrityReport(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, report.TotalFiles)
	require.True(t, report.ChainVerificationResult.Valid)

	_, err = s.Get(ctx, id)
	require.Error(t, err)
}
