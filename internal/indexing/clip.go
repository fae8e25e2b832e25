package indexing

import (
	"context"
	"fmt"
	"math"

	"github.com/tomtom215/opentestimony/internal/ffmpegutil"
	"github.com/tomtom215/opentestimony/internal/vectorsql"
)

// indexClipWindows encodes each frame of a clip window, mean-pools and
// normalizes, and inserts one clip_embeddings row per window (spec.md
// §4.5 step G).
func (p *Pipeline) indexClipWindows(ctx context.Context, mediaID string, windows []ffmpegutil.ClipWindow) (int, error) {
	if len(windows) == 0 {
		return 0, nil
	}

	tx, err := p.db.Conn().BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	inserted := 0
	for _, w := range windows {
		pooled, err := p.meanPoolWindow(ctx, w.Frames)
		if err != nil {
			return inserted, fmt.Errorf("pool window %d-%d: %w", w.StartFrame, w.EndFrame, err)
		}

		stmt := fmt.Sprintf(
			"INSERT INTO clip_embeddings (id, media_id, start_ms, end_ms, start_frame, end_frame, num_frames, embedding) VALUES (?, ?, ?, ?, ?, ?, ?, %s)",
			vectorsql.CastLiteral(pooled, p.dbCfg.VisionEmbeddingDim),
		)
		if _, err := tx.ExecContext(ctx, stmt, newID(), mediaID, w.StartMS, w.EndMS, w.StartFrame, w.EndFrame, len(w.Frames)); err != nil {
			return inserted, fmt.Errorf("insert clip embedding: %w", err)
		}
		inserted++
	}

	if err := tx.Commit(); err != nil {
		return inserted, fmt.Errorf("commit: %w", err)
	}
	return inserted, nil
}

// meanPoolWindow encodes every frame in a window and returns the
// L2-normalized mean of their embeddings.
func (p *Pipeline) meanPoolWindow(ctx context.Context, frames []ffmpegutil.Frame) ([]float32, error) {
	var sum []float32
	for _, f := range frames {
		emb, err := p.vision.Embed(ctx, f.JPEG)
		if err != nil {
			return nil, err
		}
		if sum == nil {
			sum = make([]float32, len(emb))
		}
		for i, v := range emb {
			sum[i] += v
		}
	}

	n := float32(len(frames))
	var norm float64
	for i := range sum {
		sum[i] /= n
		norm += float64(sum[i]) * float64(sum[i])
	}
	norm = math.Sqrt(norm)
	if norm > 0 {
		for i := range sum {
			sum[i] = float32(float64(sum[i]) / norm)
		}
	}
	return sum, nil
}
