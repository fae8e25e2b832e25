package search

import (
	"context"
	"fmt"
	"sort"
	"time"
)

const modeCombined = "combined"

// Combined runs the visual-text and caption-semantic searches and merges
// hits that share a (media_id, frame_ordinal) key, keeping the higher
// score as primary and recording both component scores (spec.md §4.7
// Combined).
func (d *Dispatcher) Combined(ctx context.Context, q string, limit int) (Response, error) {
	limit = clampLimit(limit)
	t0 := time.Now()

	visualEmb, err := d.vision.EmbedText(ctx, q)
	if err != nil {
		return Response{}, fmt.Errorf("search: encode combined visual query: %w", err)
	}
	captionEmb, err := d.text.Embed(ctx, q)
	if err != nil {
		return Response{}, fmt.Errorf("search: encode combined caption query: %w", err)
	}
	tEncode := time.Now()

	visualResults, err := d.searchVisual(ctx, visualEmb, limit)
	if err != nil {
		return Response{}, err
	}

	captionResults, err := d.searchCaptions(ctx, captionEmb, limit)
	if err != nil {
		return Response{}, err
	}
	tCaption := time.Now()

	type key struct {
		mediaID string
		frame   int
	}
	merged := make(map[key]*CombinedResult, len(visualResults)+len(captionResults))

	for _, r := range visualResults {
		k := key{r.MediaID, r.FrameOrdinal}
		score := r.Score
		merged[k] = &CombinedResult{
			MediaID: r.MediaID, TimestampMS: r.TimestampMS, FrameOrdinal: r.FrameOrdinal,
			Score: r.Score, Source: "visual", VisualScore: &score,
		}
	}

	for _, r := range captionResults {
		k := key{r.MediaID, r.FrameOrdinal}
		score := r.Score
		if existing, ok := merged[k]; ok {
			existing.CaptionScore = &score
			existing.CaptionText = r.CaptionText
			if r.Score > existing.Score {
				existing.Score = r.Score
				existing.Source = "caption"
			}
			continue
		}
		merged[k] = &CombinedResult{
			MediaID: r.MediaID, TimestampMS: r.TimestampMS, FrameOrdinal: r.FrameOrdinal,
			Score: r.Score, Source: "caption", CaptionScore: &score, CaptionText: r.CaptionText,
		}
	}

	results := make([]CombinedResult, 0, len(merged))
	for _, v := range merged {
		results = append(results, *v)
	}
	sortCombinedByScoreDesc(results)
	if len(results) > limit {
		results = results[:limit]
	}

	tEnd := time.Now()
	d.logQuery(ctx, q, modeCombined, len(results), tEnd.Sub(t0))

	return Response{
		Query: q, Mode: modeCombined,
		Timing: Timing{
			EncodeMS: ms(tEncode.Sub(t0)),
			SearchMS: ms(tCaption.Sub(tEncode)),
			TotalMS:  ms(tEnd.Sub(t0)),
		},
		Results: results,
	}, nil
}

func sortCombinedByScoreDesc(results []CombinedResult) {
	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
}
