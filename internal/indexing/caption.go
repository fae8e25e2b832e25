package indexing

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/tomtom215/opentestimony/internal/ffmpegutil"
	"github.com/tomtom215/opentestimony/internal/vectorsql"
)

// indexCaptions fans out up to CaptionParallelism concurrent caption
// calls (spec.md §4.5 step F: "External API ... fan out up to N=4
// parallel calls"), then embeds and inserts each non-empty caption. The
// provider distinction (external API vs. local VLM) lives entirely in
// what CaptionEndpoint points at; this side of the pipeline only cares
// that captioning is one HTTP call per frame.
func (p *Pipeline) indexCaptions(ctx context.Context, mediaID string, frames []ffmpegutil.Frame) (int, error) {
	if len(frames) == 0 {
		return 0, nil
	}

	parallelism := p.cfg.CaptionParallelism
	if parallelism <= 0 {
		parallelism = 4
	}

	captions := make([]string, len(frames))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)
	for i, f := range frames {
		i, f := i, f
		g.Go(func() error {
			text, err := p.caption.CaptionFrame(gctx, f.JPEG)
			if err != nil {
				return fmt.Errorf("caption frame %d: %w", f.Ordinal, err)
			}
			captions[i] = text
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	tx, err := p.db.Conn().BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	inserted := 0
	for i, text := range captions {
		if text == "" {
			continue
		}
		emb, err := p.text.Embed(ctx, text)
		if err != nil {
			return inserted, fmt.Errorf("embed caption: %w", err)
		}
		stmt := fmt.Sprintf(
			"INSERT INTO caption_embeddings (id, media_id, frame_ordinal, timestamp_ms, caption_text, embedding) VALUES (?, ?, ?, ?, ?, %s)",
			vectorsql.CastLiteral(emb, p.dbCfg.TextEmbeddingDim),
		)
		if _, err := tx.ExecContext(ctx, stmt, newID(), mediaID, frames[i].Ordinal, frames[i].TimestampMS, text); err != nil {
			return inserted, fmt.Errorf("insert caption embedding: %w", err)
		}
		inserted++
	}

	if err := tx.Commit(); err != nil {
		return inserted, fmt.Errorf("commit: %w", err)
	}
	return inserted, nil
}
