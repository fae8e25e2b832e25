package search

import (
	"context"
	"fmt"
	"time"
)

const modeTranscriptSemantic = "transcript_semantic"
const modeTranscriptExact = "transcript_exact"

// TranscriptSemantic encodes q through the text model and finds the
// nearest transcript_embeddings (spec.md §4.7 "Transcript (semantic)").
func (d *Dispatcher) TranscriptSemantic(ctx context.Context, q string, limit int) (Response, error) {
	t0 := time.Now()
	emb, err := d.text.Embed(ctx, q)
	if err != nil {
		return Response{}, fmt.Errorf("search: encode transcript query: %w", err)
	}
	tEncode := time.Now()

	limit = clampLimit(limit)
	query := nnQuery("media_id, text, start_ms, end_ms", "transcript_embeddings", "embedding", emb, d.dbCfg.TextEmbeddingDim, limit)
	rows, err := d.db.Conn().QueryContext(ctx, query)
	if err != nil {
		return Response{}, fmt.Errorf("search: transcript query: %w", err)
	}
	defer rows.Close()

	var results []TranscriptResult
	for rows.Next() {
		var r TranscriptResult
		if err := rows.Scan(&r.MediaID, &r.SegmentText, &r.StartMS, &r.EndMS, &r.Score); err != nil {
			return Response{}, fmt.Errorf("search: scan transcript row: %w", err)
		}
		results = append(results, r)
	}
	if err := rowsToErr(rows); err != nil {
		return Response{}, err
	}
	tSearch := time.Now()

	d.logQuery(ctx, q, modeTranscriptSemantic, len(results), tSearch.Sub(t0))

	return Response{
		Query: q, Mode: modeTranscriptSemantic,
		Timing:  Timing{EncodeMS: ms(tEncode.Sub(t0)), SearchMS: ms(tSearch.Sub(tEncode)), TotalMS: ms(tSearch.Sub(t0))},
		Results: results,
	}, nil
}

// TranscriptExact runs a case-insensitive substring match over
// transcript segments (spec.md §4.7 "Transcript (exact)... via ILIKE
// %q%"). There is no model encode phase, so encode_ms is always zero.
func (d *Dispatcher) TranscriptExact(ctx context.Context, q string, limit int) (Response, error) {
	t0 := time.Now()
	limit = clampLimit(limit)

	rows, err := d.db.Conn().QueryContext(ctx,
		`SELECT media_id, text, start_ms, end_ms FROM transcript_embeddings
		 WHERE text ILIKE ? ORDER BY start_ms LIMIT ?`,
		"%"+q+"%", limit,
	)
	if err != nil {
		return Response{}, fmt.Errorf("search: transcript exact query: %w", err)
	}
	defer rows.Close()

	var results []TranscriptResult
	for rows.Next() {
		var r TranscriptResult
		if err := rows.Scan(&r.MediaID, &r.SegmentText, &r.StartMS, &r.EndMS); err != nil {
			return Response{}, fmt.Errorf("search: scan transcript exact row: %w", err)
		}
		results = append(results, r)
	}
	if err := rowsToErr(rows); err != nil {
		return Response{}, err
	}
	tSearch := time.Now()

	d.logQuery(ctx, q, modeTranscriptExact, len(results), tSearch.Sub(t0))

	return Response{
		Query: q, Mode: modeTranscriptExact,
		Timing:  Timing{SearchMS: ms(tSearch.Sub(t0)), TotalMS: ms(tSearch.Sub(t0))},
		Results: results,
	}, nil
}
