// Package indexing implements the Indexing Worker and the per-video
// Indexing Pipeline (spec.md §4.4, §4.5): the background loop that
// drains the Indexing Job Queue, and the frame/transcript/caption/clip
// /action/face extraction-and-embedding steps each job runs through.
package indexing

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/tomtom215/opentestimony/internal/config"
	"github.com/tomtom215/opentestimony/internal/ffmpegutil"
	"github.com/tomtom215/opentestimony/internal/logging"
	"github.com/tomtom215/opentestimony/internal/modelclient"
	"github.com/tomtom215/opentestimony/internal/objectstore"
	"github.com/tomtom215/opentestimony/internal/queue"
	"github.com/tomtom215/opentestimony/internal/store"
)

// Pipeline runs the full indexing sequence for one video (spec.md §4.5
// steps A-J; step K, schema auto-migration, already runs at service
// start in internal/store).
type Pipeline struct {
	db       *store.DB
	ffmpeg   *ffmpegutil.Helper
	objStore *objectstore.Store
	vision   *modelclient.VisionClient
	text     *modelclient.TextClient
	transcr  *modelclient.TranscribeClient
	caption  *modelclient.CaptionClient
	face     *modelclient.FaceClient
	cfg      config.IndexingConfig
	dbCfg    config.DatabaseConfig
	assigner *FaceAssigner
}

// Clients bundles the external model collaborators a Pipeline needs.
type Clients struct {
	Vision     *modelclient.VisionClient
	Text       *modelclient.TextClient
	Transcribe *modelclient.TranscribeClient
	Caption    *modelclient.CaptionClient
	Face       *modelclient.FaceClient
}

// New builds a Pipeline.
func New(db *store.DB, ffmpeg *ffmpegutil.Helper, objStore *objectstore.Store, clients Clients, cfg config.IndexingConfig, dbCfg config.DatabaseConfig) *Pipeline {
	return &Pipeline{
		db:       db,
		ffmpeg:   ffmpeg,
		objStore: objStore,
		vision:   clients.Vision,
		text:     clients.Text,
		transcr:  clients.Transcribe,
		caption:  clients.Caption,
		face:     clients.Face,
		cfg:      cfg,
		dbCfg:    dbCfg,
		assigner: NewFaceAssigner(db, cfg.FaceClusterSimilarity),
	}
}

// Run executes job's plan end to end and returns the modality counts to
// record on success. Any error here marks the job failed with the
// worker's caller writing the job row (spec.md §7: "each modality
// commits per batch; a crash mid-pipeline leaves a partial but
// consistent set of embedding rows").
func (p *Pipeline) Run(ctx context.Context, job *queue.Job, q *queue.Store) (queue.ModalityCounts, error) {
	pl, err := planFor(ctx, job, q, p.cfg.CaptioningEnabled, p.cfg.ClipWindowEnabled, p.cfg.ActionCaptionEnabled)
	if err != nil {
		return queue.ModalityCounts{}, fmt.Errorf("indexing: plan: %w", err)
	}

	workDir, err := os.MkdirTemp(p.ffmpeg.TempDir(), "job-*")
	if err != nil {
		return queue.ModalityCounts{}, fmt.Errorf("indexing: work dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	mediaPath := filepath.Join(workDir, "source")
	if err := p.objStore.DownloadToFile(ctx, job.ObjectName, mediaPath); err != nil {
		return queue.ModalityCounts{}, fmt.Errorf("indexing: download %s: %w", job.ObjectName, err)
	}

	// Seed counts from the job's pre-run values so that modalities the
	// plan doesn't touch (e.g. transcript/caption on a pending_visual
	// reindex) keep their existing counts instead of being zeroed out.
	counts := queue.ModalityCounts{
		VisualIndexed:     job.VisualIndexed,
		TranscriptIndexed: job.TranscriptIndexed,
		CaptionIndexed:    job.CaptionIndexed,
		ClipIndexed:       job.ClipIndexed,
		FrameCount:        job.FrameCount,
		TranscriptCount:   job.TranscriptCount,
		CaptionCount:      job.CaptionCount,
		ClipCount:         job.ClipCount,
		ActionCount:       job.ActionCount,
	}
	var frames []ffmpegutil.Frame

	if pl.needsFrames() {
		frames, err = p.ffmpeg.ExtractFrames(ctx, mediaPath, p.cfg.FrameIntervalSec, p.cfg.BlackFrameLumaFloor)
		if err != nil {
			return counts, fmt.Errorf("indexing: extract frames: %w", err)
		}
	}

	if pl.Visual {
		n, err := p.indexVisual(ctx, job.MediaID, frames)
		if err != nil {
			return counts, fmt.Errorf("indexing: visual: %w", err)
		}
		counts.FrameCount = n
		counts.VisualIndexed = n > 0
	}

	if pl.Transcript {
		n, err := p.indexTranscript(ctx, job.MediaID, mediaPath, workDir)
		if err != nil {
			return counts, fmt.Errorf("indexing: transcript: %w", err)
		}
		counts.TranscriptCount = n
		counts.TranscriptIndexed = n > 0
	}

	if pl.Caption {
		n, err := p.indexCaptions(ctx, job.MediaID, frames)
		if err != nil {
			return counts, fmt.Errorf("indexing: caption: %w", err)
		}
		counts.CaptionCount = n
		counts.CaptionIndexed = n > 0
	}

	var clipFrames []ffmpegutil.Frame
	var windows []ffmpegutil.ClipWindow
	if pl.needsClipFrames() {
		clipFrames, err = p.ffmpeg.ExtractClipFrames(ctx, mediaPath, p.cfg.ClipFPS)
		if err != nil {
			return counts, fmt.Errorf("indexing: extract clip frames: %w", err)
		}
		windows = ffmpegutil.SlidingWindows(clipFrames, p.cfg.ClipWindowFrames, p.cfg.ClipWindowStride)
	}

	if pl.Clip {
		n, err := p.indexClipWindows(ctx, job.MediaID, windows)
		if err != nil {
			return counts, fmt.Errorf("indexing: clip: %w", err)
		}
		counts.ClipCount = n
		counts.ClipIndexed = n > 0
	}

	if pl.Action {
		n, err := p.indexActions(ctx, job.MediaID, windows)
		if err != nil {
			return counts, fmt.Errorf("indexing: action: %w", err)
		}
		counts.ActionCount = n
	}

	if pl.Face {
		thumbDir := filepath.Join(p.cfg.FaceThumbnailDir, job.MediaID)
		if err := os.MkdirAll(thumbDir, 0o755); err != nil {
			return counts, fmt.Errorf("indexing: face thumbnail dir: %w", err)
		}
		if err := p.indexFaces(ctx, job.MediaID, frames, thumbDir); err != nil {
			return counts, fmt.Errorf("indexing: face: %w", err)
		}
		if err := p.assigner.AssignForMedia(ctx, job.MediaID); err != nil {
			logging.Warn().Err(err).Str("media_id", job.MediaID).Msg("incremental face cluster assignment failed")
		}
	}

	return counts, nil
}

func newID() string { return uuid.NewString() }
