package indexing

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/tomtom215/opentestimony/internal/vectorsql"
)

// indexTranscript extracts 16kHz mono audio, runs it through the
// transcription model, embeds each non-empty segment, and inserts one
// row per segment (spec.md §4.5 steps D, E).
func (p *Pipeline) indexTranscript(ctx context.Context, mediaID, mediaPath, workDir string) (int, error) {
	audioPath := filepath.Join(workDir, "audio.wav")
	if err := p.ffmpeg.ExtractAudio(ctx, mediaPath, audioPath); err != nil {
		return 0, fmt.Errorf("extract audio: %w", err)
	}

	segments, err := p.transcr.Transcribe(ctx, audioPath)
	if err != nil {
		return 0, fmt.Errorf("transcribe: %w", err)
	}
	if len(segments) == 0 {
		return 0, nil
	}

	tx, err := p.db.Conn().BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	inserted := 0
	for _, seg := range segments {
		emb, err := p.text.Embed(ctx, seg.Text)
		if err != nil {
			return inserted, fmt.Errorf("embed segment: %w", err)
		}
		stmt := fmt.Sprintf(
			"INSERT INTO transcript_embeddings (id, media_id, text, start_ms, end_ms, embedding) VALUES (?, ?, ?, ?, ?, %s)",
			vectorsql.CastLiteral(emb, p.dbCfg.TextEmbeddingDim),
		)
		if _, err := tx.ExecContext(ctx, stmt, newID(), mediaID, seg.Text, seg.StartMS, seg.EndMS); err != nil {
			return inserted, fmt.Errorf("insert transcript embedding: %w", err)
		}
		inserted++
	}

	if err := tx.Commit(); err != nil {
		return inserted, fmt.Errorf("commit: %w", err)
	}
	return inserted, nil
}
