package indexing

import (
	"context"
	"fmt"

	"github.com/tomtom215/opentestimony/internal/ffmpegutil"
	"github.com/tomtom215/opentestimony/internal/vectorsql"
)

// indexVisual embeds frames in batches of VisualBatchSize and inserts one
// row per frame, flushing each batch's transaction before moving to the
// next (spec.md §4.5 step C). L2 normalization happens model-side; this
// client-side contract assumes the vision model already returns
// normalized vectors, as the embedding services in this deployment do.
func (p *Pipeline) indexVisual(ctx context.Context, mediaID string, frames []ffmpegutil.Frame) (int, error) {
	batchSize := p.cfg.VisualBatchSize
	if batchSize <= 0 {
		batchSize = 16
	}

	inserted := 0
	for start := 0; start < len(frames); start += batchSize {
		end := start + batchSize
		if end > len(frames) {
			end = len(frames)
		}
		batch := frames[start:end]

		type row struct {
			frame ffmpegutil.Frame
			emb   []float32
		}
		rows := make([]row, 0, len(batch))
		for _, f := range batch {
			emb, err := p.vision.Embed(ctx, f.JPEG)
			if err != nil {
				return inserted, fmt.Errorf("embed frame %d: %w", f.Ordinal, err)
			}
			rows = append(rows, row{frame: f, emb: emb})
		}

		tx, err := p.db.Conn().BeginTx(ctx, nil)
		if err != nil {
			return inserted, fmt.Errorf("begin batch tx: %w", err)
		}
		for _, r := range rows {
			stmt := fmt.Sprintf(
				"INSERT INTO frame_embeddings (id, media_id, frame_ordinal, timestamp_ms, embedding) VALUES (?, ?, ?, ?, %s)",
				vectorsql.CastLiteral(r.emb, p.dbCfg.VisionEmbeddingDim),
			)
			if _, err := tx.ExecContext(ctx, stmt, newID(), mediaID, r.frame.Ordinal, r.frame.TimestampMS); err != nil {
				tx.Rollback()
				return inserted, fmt.Errorf("insert frame embedding: %w", err)
			}
		}
		if err := tx.Commit(); err != nil {
			return inserted, fmt.Errorf("commit batch: %w", err)
		}
		inserted += len(rows)
	}

	return inserted, nil
}
