package media

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/opentestimony/internal/audit"
)

// SoftDelete sets deleted_at/deleted_by, excluding the record from
// every listing and playback path while leaving it in the audit log
// and integrity report (spec.md §3, §4.1 "Soft delete"). The
// object-store blob is left untouched; retention is a separate concern.
func (s *Store) SoftDelete(ctx context.Context, mediaID, actorUserID string) error {
	rec, err := s.Get(ctx, mediaID)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	_, err = s.db.Conn().ExecContext(ctx,
		`UPDATE media SET deleted_at = ?, deleted_by = ? WHERE id = ?`, now, actorUserID, rec.ID)
	if err != nil {
		return fmt.Errorf("media: soft delete: %w", err)
	}

	_, err = s.ledger.Append(ctx, audit.AppendInput{
		EventType: audit.EventVideoDeleted,
		MediaID:   rec.ID,
		DeviceID:  rec.DeviceID,
		UserID:    actorUserID,
		EventData: map[string]any{"object_name": rec.ObjectName},
	})
	if err != nil {
		return fmt.Errorf("media: audit soft delete: %w", err)
	}
	return nil
}
