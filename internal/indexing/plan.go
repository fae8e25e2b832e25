package indexing

import (
	"context"

	"github.com/tomtom215/opentestimony/internal/queue"
)

// plan says which modalities a run of the pipeline must (re)compute.
// pending runs everything; pending_visual redoes only the visual-derived
// modalities and leaves transcript/caption embeddings alone (spec.md
// §4.3: "drop visual+clip+action embeddings, keep captions+transcripts");
// pending_fix inspects what is already there and fills in only what's
// missing (spec.md §4.3 pending_fix, §7 "pending_fix flow can complete
// it" after a partial failure).
type plan struct {
	Visual     bool
	Transcript bool
	Caption    bool
	Clip       bool
	Action     bool
	Face       bool
}

func planFor(ctx context.Context, job *queue.Job, q *queue.Store, captioningEnabled, clipEnabled, actionEnabled bool) (plan, error) {
	switch job.Status {
	case queue.StatusPending:
		return plan{
			Visual:     true,
			Transcript: true,
			Caption:    captioningEnabled,
			Clip:       clipEnabled,
			Action:     actionEnabled && clipEnabled,
			Face:       true,
		}, nil

	case queue.StatusPendingVisual:
		return plan{
			Visual: true,
			Clip:   clipEnabled,
			Action: actionEnabled && clipEnabled,
			Face:   true,
		}, nil

	case queue.StatusPendingFix:
		counts, err := q.MissingModalities(ctx, job.MediaID)
		if err != nil {
			return plan{}, err
		}
		return plan{
			Visual:     !counts.VisualIndexed,
			Transcript: !counts.TranscriptIndexed,
			Caption:    captioningEnabled && !counts.CaptionIndexed,
			Clip:       clipEnabled && !counts.ClipIndexed,
			Action:     actionEnabled && clipEnabled && !counts.ClipIndexed,
			Face:       !counts.VisualIndexed,
		}, nil

	default:
		return plan{}, nil
	}
}

func (p plan) needsFrames() bool { return p.Visual || p.Caption || p.Face }
func (p plan) needsClipFrames() bool { return p.Clip || p.Action }
