package search

import (
	"context"
	"fmt"
	"time"
)

const modeClipVisual = "clip_visual"
const modeActionSemantic = "action_semantic"
const modeActionExact = "action_exact"

// ClipVisual encodes q through the vision model's text tower and finds
// the nearest clip_embeddings, i.e. what a temporal window LOOKS like
// (spec.md §4.7 "Clip (visual)").
func (d *Dispatcher) ClipVisual(ctx context.Context, q string, limit int) (Response, error) {
	t0 := time.Now()
	emb, err := d.vision.EmbedText(ctx, q)
	if err != nil {
		return Response{}, fmt.Errorf("search: encode clip query: %w", err)
	}
	tEncode := time.Now()

	limit = clampLimit(limit)
	query := nnQuery("media_id, start_ms, end_ms, start_frame, end_frame, num_frames", "clip_embeddings", "embedding", emb, d.dbCfg.VisionEmbeddingDim, limit)
	rows, err := d.db.Conn().QueryContext(ctx, query)
	if err != nil {
		return Response{}, fmt.Errorf("search: clip query: %w", err)
	}
	defer rows.Close()

	var results []ClipResult
	for rows.Next() {
		var r ClipResult
		if err := rows.Scan(&r.MediaID, &r.StartMS, &r.EndMS, &r.StartFrame, &r.EndFrame, &r.NumFrames, &r.Score); err != nil {
			return Response{}, fmt.Errorf("search: scan clip row: %w", err)
		}
		results = append(results, r)
	}
	if err := rowsToErr(rows); err != nil {
		return Response{}, err
	}
	tSearch := time.Now()

	d.logQuery(ctx, q, modeClipVisual, len(results), tSearch.Sub(t0))

	return Response{
		Query: q, Mode: modeClipVisual,
		Timing:  Timing{EncodeMS: ms(tEncode.Sub(t0)), SearchMS: ms(tSearch.Sub(tEncode)), TotalMS: ms(tSearch.Sub(t0))},
		Results: results,
	}, nil
}
