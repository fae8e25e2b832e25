package search

import (
	"context"
	"fmt"
	"time"
)

// ActionSemantic encodes q through the text model and finds the nearest
// action_embeddings, i.e. described actions happening across a temporal
// window (spec.md §4.7 "Action (semantic)").
func (d *Dispatcher) ActionSemantic(ctx context.Context, q string, limit int) (Response, error) {
	t0 := time.Now()
	emb, err := d.text.Embed(ctx, q)
	if err != nil {
		return Response{}, fmt.Errorf("search: encode action query: %w", err)
	}
	tEncode := time.Now()

	limit = clampLimit(limit)
	query := nnQuery("media_id, start_ms, end_ms, description", "action_embeddings", "embedding", emb, d.dbCfg.TextEmbeddingDim, limit)
	rows, err := d.db.Conn().QueryContext(ctx, query)
	if err != nil {
		return Response{}, fmt.Errorf("search: action query: %w", err)
	}
	defer rows.Close()

	var results []ActionResult
	for rows.Next() {
		var r ActionResult
		if err := rows.Scan(&r.MediaID, &r.StartMS, &r.EndMS, &r.Description, &r.Score); err != nil {
			return Response{}, fmt.Errorf("search: scan action row: %w", err)
		}
		results = append(results, r)
	}
	if err := rowsToErr(rows); err != nil {
		return Response{}, err
	}
	tSearch := time.Now()

	d.logQuery(ctx, q, modeActionSemantic, len(results), tSearch.Sub(t0))

	return Response{
		Query: q, Mode: modeActionSemantic,
		Timing:  Timing{EncodeMS: ms(tEncode.Sub(t0)), SearchMS: ms(tSearch.Sub(tEncode)), TotalMS: ms(tSearch.Sub(t0))},
		Results: results,
	}, nil
}

// ActionExact runs a case-insensitive substring match over action
// descriptions (spec.md §4.7 "Action (exact)").
func (d *Dispatcher) ActionExact(ctx context.Context, q string, limit int) (Response, error) {
	t0 := time.Now()
	limit = clampLimit(limit)

	rows, err := d.db.Conn().QueryContext(ctx,
		`SELECT media_id, start_ms, end_ms, description FROM action_embeddings
		 WHERE description ILIKE ? ORDER BY start_ms LIMIT ?`,
		"%"+q+"%", limit,
	)
	if err != nil {
		return Response{}, fmt.Errorf("search: action exact query: %w", err)
	}
	defer rows.Close()

	var results []ActionResult
	for rows.Next() {
		var r ActionResult
		if err := rows.Scan(&r.MediaID, &r.StartMS, &r.EndMS, &r.Description); err != nil {
			return Response{}, fmt.Errorf("search: scan action exact row: %w", err)
		}
		results = append(results, r)
	}
	if err := rowsToErr(rows); err != nil {
		return Response{}, err
	}
	tSearch := time.Now()

	d.logQuery(ctx, q, modeActionExact, len(results), tSearch.Sub(t0))

	return Response{
		Query: q, Mode: modeActionExact,
		Timing:  Timing{SearchMS: ms(tSearch.Sub(t0)), TotalMS: ms(tSearch.Sub(t0))},
		Results: results,
	}, nil
}
