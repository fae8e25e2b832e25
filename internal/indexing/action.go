package indexing

import (
	"context"
	"fmt"
	"strings"

	"github.com/tomtom215/opentestimony/internal/ffmpegutil"
	"github.com/tomtom215/opentestimony/internal/vectorsql"
)

const noSignificantAction = "no significant action"

const maxActionSampleFrames = 8

// indexActions samples up to ActionSampleFrames evenly-spaced frames per
// clip window, sends them together for action-focused captioning,
// discards responses that report no action, and embeds and inserts the
// rest (spec.md §4.5 step H).
func (p *Pipeline) indexActions(ctx context.Context, mediaID string, windows []ffmpegutil.ClipWindow) (int, error) {
	if len(windows) == 0 {
		return 0, nil
	}

	sampleN := p.cfg.ActionSampleFrames
	if sampleN <= 0 || sampleN > maxActionSampleFrames {
		sampleN = maxActionSampleFrames
	}

	tx, err := p.db.Conn().BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	inserted := 0
	for _, w := range windows {
		sample := evenSample(w.Frames, sampleN)
		jpegs := make([][]byte, len(sample))
		for i, f := range sample {
			jpegs[i] = f.JPEG
		}

		desc, err := p.caption.CaptionAction(ctx, jpegs)
		if err != nil {
			return inserted, fmt.Errorf("caption action %d-%d: %w", w.StartFrame, w.EndFrame, err)
		}
		if strings.Contains(strings.ToLower(desc), noSignificantAction) || strings.TrimSpace(desc) == "" {
			continue
		}

		emb, err := p.text.Embed(ctx, desc)
		if err != nil {
			return inserted, fmt.Errorf("embed action description: %w", err)
		}

		stmt := fmt.Sprintf(
			"INSERT INTO action_embeddings (id, media_id, start_ms, end_ms, description, embedding) VALUES (?, ?, ?, ?, ?, %s)",
			vectorsql.CastLiteral(emb, p.dbCfg.TextEmbeddingDim),
		)
		if _, err := tx.ExecContext(ctx, stmt, newID(), mediaID, w.StartMS, w.EndMS, desc); err != nil {
			return inserted, fmt.Errorf("insert action embedding: %w", err)
		}
		inserted++
	}

	if err := tx.Commit(); err != nil {
		return inserted, fmt.Errorf("commit: %w", err)
	}
	return inserted, nil
}

// evenSample picks up to n evenly-spaced frames from frames, in order.
func evenSample(frames []ffmpegutil.Frame, n int) []ffmpegutil.Frame {
	if len(frames) <= n {
		return frames
	}
	out := make([]ffmpegutil.Frame, 0, n)
	step := float64(len(frames)-1) / float64(n-1)
	for i := 0; i < n; i++ {
		out = append(out, frames[int(float64(i)*step)])
	}
	return out
}
