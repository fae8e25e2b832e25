package search

import (
	"context"
	"fmt"
	"time"
)

const modeVisualText = "visual_text"
const modeVisualImage = "visual_image"

// VisualText encodes q through the vision model's text tower and finds
// the nearest frame_embeddings (spec.md §4.7 "Visual (text)").
func (d *Dispatcher) VisualText(ctx context.Context, q string, limit int) (Response, error) {
	return d.visual(ctx, q, modeVisualText, limit, func(ctx context.Context) ([]float32, error) {
		return d.vision.EmbedText(ctx, q)
	})
}

// VisualImage encodes an uploaded image through the vision model and
// finds the nearest frame_embeddings (spec.md §4.7 "Visual (image)").
func (d *Dispatcher) VisualImage(ctx context.Context, imageJPEG []byte, limit int) (Response, error) {
	return d.visual(ctx, "", modeVisualImage, limit, func(ctx context.Context) ([]float32, error) {
		return d.vision.Embed(ctx, imageJPEG)
	})
}

func (d *Dispatcher) visual(ctx context.Context, logText, mode string, limit int, encode func(context.Context) ([]float32, error)) (Response, error) {
	t0 := time.Now()
	emb, err := encode(ctx)
	if err != nil {
		return Response{}, fmt.Errorf("search: encode %s query: %w", mode, err)
	}
	tEncode := time.Now()

	results, err := d.searchVisual(ctx, emb, limit)
	if err != nil {
		return Response{}, err
	}
	tSearch := time.Now()

	d.logQuery(ctx, logText, mode, len(results), tSearch.Sub(t0))

	return Response{
		Query: logText,
		Mode:  mode,
		Timing: Timing{
			EncodeMS: ms(tEncode.Sub(t0)),
			SearchMS: ms(tSearch.Sub(tEncode)),
			TotalMS:  ms(tSearch.Sub(t0)),
		},
		Results: results,
	}, nil
}

func (d *Dispatcher) searchVisual(ctx context.Context, emb []float32, limit int) ([]VisualResult, error) {
	limit = clampLimit(limit)
	q := nnQuery("media_id, timestamp_ms, frame_ordinal", "frame_embeddings", "embedding", emb, d.dbCfg.VisionEmbeddingDim, limit)
	rows, err := d.db.Conn().QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("search: visual query: %w", err)
	}
	defer rows.Close()

	var out []VisualResult
	for rows.Next() {
		var r VisualResult
		if err := rows.Scan(&r.MediaID, &r.TimestampMS, &r.FrameOrdinal, &r.Score); err != nil {
			return nil, fmt.Errorf("search: scan visual row: %w", err)
		}
		out = append(out, r)
	}
	return out, rowsToErr(rows)
}
