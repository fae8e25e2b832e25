package media

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/tomtom215/opentestimony/internal/audit"
)

// ListTags returns the union of the catalogue and every tag currently
// in use on a Media Record, catalogue entries first in catalogue order
// (spec.md §4.1 "Tag management").
func (s *Store) ListTags(ctx context.Context) ([]string, error) {
	rows, err := s.db.Conn().QueryContext(ctx, `SELECT tag FROM tag_catalogue ORDER BY seq ASC`)
	if err != nil {
		return nil, fmt.Errorf("media: list catalogue tags: %w", err)
	}
	seen := map[string]bool{}
	var out []string
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			rows.Close()
			return nil, fmt.Errorf("media: scan catalogue tag: %w", err)
		}
		if !seen[tag] {
			seen[tag] = true
			out = append(out, tag)
		}
	}
	rows.Close()

	inUse, err := s.db.Conn().QueryContext(ctx,
		`SELECT DISTINCT unnest(incident_tags) FROM media WHERE deleted_at IS NULL`)
	if err != nil {
		return nil, fmt.Errorf("media: list in-use tags: %w", err)
	}
	defer inUse.Close()
	for inUse.Next() {
		var tag string
		if err := inUse.Scan(&tag); err != nil {
			return nil, fmt.Errorf("media: scan in-use tag: %w", err)
		}
		if !seen[tag] {
			seen[tag] = true
			out = append(out, tag)
		}
	}
	return out, inUse.Err()
}

// AddTag adds a tag to the catalogue idempotently (spec.md §4.1 "Tag
// management" POST /tags).
func (s *Store) AddTag(ctx context.Context, tag string) error {
	var nextSeq int
	err := s.db.Conn().QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) + 1 FROM tag_catalogue`).Scan(&nextSeq)
	if err != nil {
		return fmt.Errorf("media: next tag seq: %w", err)
	}
	_, err = s.db.Conn().ExecContext(ctx,
		`INSERT INTO tag_catalogue (tag, seq) VALUES (?, ?) ON CONFLICT (tag) DO NOTHING`, tag, nextSeq)
	if err != nil {
		return fmt.Errorf("media: add tag: %w", err)
	}
	return nil
}

// DeleteTag removes a tag from the catalogue and from every video's tag
// array, emitting a tag_deleted audit entry with the affected count
// (spec.md §4.1 "Tag management" DELETE /tags).
func (s *Store) DeleteTag(ctx context.Context, tag, actorUserID string) (int64, error) {
	rows, err := s.db.Conn().QueryContext(ctx,
		`SELECT id, incident_tags FROM media WHERE deleted_at IS NULL AND list_contains(incident_tags, ?)`, tag)
	if err != nil {
		return 0, fmt.Errorf("media: find videos with tag: %w", err)
	}
	type affected struct {
		id   string
		tags []string
	}
	var toUpdate []affected
	for rows.Next() {
		var id, tagsJSON string
		if err := rows.Scan(&id, &tagsJSON); err != nil {
			rows.Close()
			return 0, fmt.Errorf("media: scan video tags: %w", err)
		}
		var tags []string
		if err := json.Unmarshal([]byte(tagsJSON), &tags); err != nil {
			rows.Close()
			return 0, fmt.Errorf("media: unmarshal tags: %w", err)
		}
		toUpdate = append(toUpdate, affected{id: id, tags: removeTag(tags, tag)})
	}
	rows.Close()

	for _, a := range toUpdate {
		tagsJSON, err := json.Marshal(a.tags)
		if err != nil {
			return 0, fmt.Errorf("media: marshal tags: %w", err)
		}
		if _, err := s.db.Conn().ExecContext(ctx, `UPDATE media SET incident_tags = ? WHERE id = ?`, string(tagsJSON), a.id); err != nil {
			return 0, fmt.Errorf("media: strip tag from video: %w", err)
		}
	}

	if _, err := s.db.Conn().ExecContext(ctx, `DELETE FROM tag_catalogue WHERE tag = ?`, tag); err != nil {
		return 0, fmt.Errorf("media: delete tag from catalogue: %w", err)
	}

	affectedCount := int64(len(toUpdate))
	_, err = s.ledger.Append(ctx, audit.AppendInput{
		EventType: audit.EventTagDeleted,
		UserID:    actorUserID,
		EventData: map[string]any{"tag": tag, "affected_count": affectedCount},
	})
	if err != nil {
		return 0, fmt.Errorf("media: audit tag deletion: %w", err)
	}

	return affectedCount, nil
}

func removeTag(tags []string, target string) []string {
	out := tags[:0]
	for _, t := range tags {
		if t != target {
			out = append(out, t)
		}
	}
	return out
}
