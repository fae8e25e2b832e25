package media

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/opentestimony/internal/apierr"
	"github.com/tomtom215/opentestimony/internal/audit"
)

// Annotation is the caller-supplied annotation fields (spec.md §4.1
// "Update annotations").
type Annotation struct {
	Category string
	Location string
	Notes    string
}

// UpdateAnnotationsByDevice lets a device update annotations on its own
// record only; any other device id is rejected (spec.md §4.1 "Update
// annotations (device)").
func (s *Store) UpdateAnnotationsByDevice(ctx context.Context, mediaID, deviceID string, a Annotation) (*Record, error) {
	rec, err := s.Get(ctx, mediaID)
	if err != nil {
		return nil, err
	}
	if rec.DeviceID != deviceID {
		return nil, apierr.Auth("device does not own this recording")
	}
	return s.updateAnnotations(ctx, rec, a, deviceID, audit.EventAnnotationUpdate)
}

// UpdateAnnotationsByStaff lets any authenticated staff member update
// annotations on any record (spec.md §4.1 "Update annotations (web)").
func (s *Store) UpdateAnnotationsByStaff(ctx context.Context, mediaID, actorUserID string, a Annotation) (*Record, error) {
	rec, err := s.Get(ctx, mediaID)
	if err != nil {
		return nil, err
	}
	return s.updateAnnotations(ctx, rec, a, actorUserID, audit.EventWebAnnotationEdit)
}

func (s *Store) updateAnnotations(ctx context.Context, rec *Record, a Annotation, actorID string, eventType audit.EventType) (*Record, error) {
	if !AnnotationCategories[a.Category] {
		return nil, apierr.Validation(fmt.Sprintf("invalid annotation category %q", a.Category))
	}

	now := time.Now().UTC()
	_, err := s.db.Conn().ExecContext(ctx,
		`UPDATE media SET annotation_category = ?, annotation_location = ?, annotation_notes = ?,
			annotations_updated_at = ?, annotations_updated_by = ? WHERE id = ?`,
		a.Category, a.Location, a.Notes, now, actorID, rec.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("media: update annotations: %w", err)
	}

	_, err = s.ledger.Append(ctx, audit.AppendInput{
		EventType: eventType,
		MediaID:   rec.ID,
		DeviceID:  rec.DeviceID,
		UserID:    actorID,
		EventData: map[string]any{
			"old": map[string]any{
				"category": rec.AnnotationCategory,
				"location": rec.AnnotationLocation,
				"notes":    rec.AnnotationNotes,
			},
			"new": map[string]any{
				"category": a.Category,
				"location": a.Location,
				"notes":    a.Notes,
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("media: audit annotation update: %w", err)
	}

	return s.Get(ctx, rec.ID)
}
