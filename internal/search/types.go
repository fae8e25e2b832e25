package search

// VisualResult is one frame_embeddings match.
type VisualResult struct {
	MediaID      string  `json:"media_id"`
	TimestampMS  int64   `json:"timestamp_ms"`
	FrameOrdinal int     `json:"frame_ordinal"`
	Score        float64 `json:"score"`
}

// TranscriptResult is one transcript_embeddings match.
type TranscriptResult struct {
	MediaID     string  `json:"media_id"`
	SegmentText string  `json:"segment_text"`
	StartMS     int64   `json:"start_ms"`
	EndMS       int64   `json:"end_ms"`
	Score       float64 `json:"score,omitempty"`
}

// CaptionResult is one caption_embeddings match.
type CaptionResult struct {
	MediaID      string  `json:"media_id"`
	TimestampMS  int64   `json:"timestamp_ms"`
	FrameOrdinal int     `json:"frame_ordinal"`
	CaptionText  string  `json:"caption_text"`
	Score        float64 `json:"score"`
}

// ClipResult is one clip_embeddings match.
type ClipResult struct {
	MediaID    string  `json:"media_id"`
	StartMS    int64   `json:"start_ms"`
	EndMS      int64   `json:"end_ms"`
	StartFrame int     `json:"start_frame"`
	EndFrame   int     `json:"end_frame"`
	NumFrames  int     `json:"num_frames"`
	Score      float64 `json:"score"`
}

// ActionResult is one action_embeddings match.
type ActionResult struct {
	MediaID     string  `json:"media_id"`
	StartMS     int64   `json:"start_ms"`
	EndMS       int64   `json:"end_ms"`
	Description string  `json:"description"`
	Score       float64 `json:"score,omitempty"`
}

// CombinedResult merges a visual-text and a caption-semantic hit that
// share a (media_id, frame_ordinal) key, keeping the higher score as
// the primary while recording both component scores (spec.md §4.7
// Combined: "merge by (video_id, frame_num) keeping the higher score as
// primary, recording both component scores").
type CombinedResult struct {
	MediaID      string   `json:"media_id"`
	TimestampMS  int64    `json:"timestamp_ms"`
	FrameOrdinal int      `json:"frame_ordinal"`
	Score        float64  `json:"score"`
	Source       string   `json:"source"`
	VisualScore  *float64 `json:"visual_score"`
	CaptionScore *float64 `json:"caption_score"`
	CaptionText  string   `json:"caption_text,omitempty"`
}

// Response is the envelope every search endpoint returns (spec.md §4.7:
// "every response carries a timing breakdown").
type Response struct {
	Query   string      `json:"query,omitempty"`
	Mode    string      `json:"mode"`
	Timing  Timing      `json:"timing"`
	Results interface{} `json:"results"`
}
