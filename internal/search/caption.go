package search

import (
	"context"
	"fmt"
	"time"
)

const modeCaptionSemantic = "caption_semantic"

// CaptionSemantic encodes q through the text model and finds the
// nearest caption_embeddings (spec.md §4.7 "Caption (semantic)").
func (d *Dispatcher) CaptionSemantic(ctx context.Context, q string, limit int) (Response, error) {
	t0 := time.Now()
	emb, err := d.text.Embed(ctx, q)
	if err != nil {
		return Response{}, fmt.Errorf("search: encode caption query: %w", err)
	}
	tEncode := time.Now()

	results, err := d.searchCaptions(ctx, emb, limit)
	if err != nil {
		return Response{}, err
	}
	tSearch := time.Now()

	d.logQuery(ctx, q, modeCaptionSemantic, len(results), tSearch.Sub(t0))

	return Response{
		Query: q, Mode: modeCaptionSemantic,
		Timing:  Timing{EncodeMS: ms(tEncode.Sub(t0)), SearchMS: ms(tSearch.Sub(tEncode)), TotalMS: ms(tSearch.Sub(t0))},
		Results: results,
	}, nil
}

func (d *Dispatcher) searchCaptions(ctx context.Context, emb []float32, limit int) ([]CaptionResult, error) {
	limit = clampLimit(limit)
	query := nnQuery("media_id, timestamp_ms, frame_ordinal, caption_text", "caption_embeddings", "embedding", emb, d.dbCfg.TextEmbeddingDim, limit)
	rows, err := d.db.Conn().QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("search: caption query: %w", err)
	}
	defer rows.Close()

	var out []CaptionResult
	for rows.Next() {
		var r CaptionResult
		if err := rows.Scan(&r.MediaID, &r.TimestampMS, &r.FrameOrdinal, &r.CaptionText, &r.Score); err != nil {
			return nil, fmt.Errorf("search: scan caption row: %w", err)
		}
		out = append(out, r)
	}
	return out, rowsToErr(rows)
}

// CaptionExact runs a case-insensitive substring match over generated
// captions, mirroring transcript exact search for the same reason: a
// reviewer knows the literal phrase used, not its embedding neighborhood.
func (d *Dispatcher) CaptionExact(ctx context.Context, q string, limit int) (Response, error) {
	const mode = "caption_exact"
	t0 := time.Now()
	limit = clampLimit(limit)

	rows, err := d.db.Conn().QueryContext(ctx,
		`SELECT media_id, timestamp_ms, frame_ordinal, caption_text FROM caption_embeddings
		 WHERE caption_text ILIKE ? ORDER BY timestamp_ms LIMIT ?`,
		"%"+q+"%", limit,
	)
	if err != nil {
		return Response{}, fmt.Errorf("search: caption exact query: %w", err)
	}
	defer rows.Close()

	var results []CaptionResult
	for rows.Next() {
		var r CaptionResult
		if err := rows.Scan(&r.MediaID, &r.TimestampMS, &r.FrameOrdinal, &r.CaptionText); err != nil {
			return Response{}, fmt.Errorf("search: scan caption exact row: %w", err)
		}
		results = append(results, r)
	}
	if err := rowsToErr(rows); err != nil {
		return Response{}, err
	}
	tSearch := time.Now()

	d.logQuery(ctx, q, mode, len(results), tSearch.Sub(t0))

	return Response{
		Query: q, Mode: mode,
		Timing:  Timing{SearchMS: ms(tSearch.Sub(t0)), TotalMS: ms(tSearch.Sub(t0))},
		Results: results,
	}, nil
}
