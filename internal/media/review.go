package media

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/opentestimony/internal/apierr"
	"github.com/tomtom215/opentestimony/internal/audit"
)

// ValidReviewStatuses is the enum accepted by SetReviewStatus.
var ValidReviewStatuses = map[string]bool{
	ReviewPending:  true,
	ReviewReviewed: true,
	ReviewFlagged:  true,
}

// Queue lists Media Records awaiting staff review (spec.md §4.1 "Review
// queue"). Defaults to pending when f.ReviewStatus is unset.
func (s *Store) Queue(ctx context.Context, f ListFilter) ([]*Record, error) {
	if f.ReviewStatus == "" {
		f.ReviewStatus = ReviewPending
	}
	return s.List(ctx, f)
}

// SetReviewStatus transitions a record's review state. Moving to
// reviewed/flagged stamps reviewed_by/reviewed_at; resetting to pending
// clears them. Emits a queue_review audit entry with old and new status
// (spec.md §4.1 "Review queue").
func (s *Store) SetReviewStatus(ctx context.Context, mediaID, newStatus, reviewerUserID string) (*Record, error) {
	if !ValidReviewStatuses[newStatus] {
		return nil, apierr.Validation(fmt.Sprintf("invalid review status %q", newStatus))
	}

	rec, err := s.Get(ctx, mediaID)
	if err != nil {
		return nil, err
	}

	var reviewedBy any
	var reviewedAt any
	if newStatus == ReviewPending {
		reviewedBy, reviewedAt = nil, nil
	} else {
		reviewedBy, reviewedAt = reviewerUserID, time.Now().UTC()
	}

	_, err = s.db.Conn().ExecContext(ctx,
		`UPDATE media SET review_status = ?, reviewed_by = ?, reviewed_at = ? WHERE id = ?`,
		newStatus, reviewedBy, reviewedAt, rec.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("media: set review status: %w", err)
	}

	_, err = s.ledger.Append(ctx, audit.AppendInput{
		EventType: audit.EventQueueReview,
		MediaID:   rec.ID,
		DeviceID:  rec.DeviceID,
		UserID:    reviewerUserID,
		EventData: map[string]any{
			"old_status": rec.ReviewStatus,
			"new_status": newStatus,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("media: audit review transition: %w", err)
	}

	return s.Get(ctx, rec.ID)
}
