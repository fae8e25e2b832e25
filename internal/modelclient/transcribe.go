package modelclient

import (
	"context"
	"net/http"
	"strings"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/opentestimony/internal/config"
)

// TranscribeClient runs a 16kHz mono WAV through an external Whisper
// model (spec.md §4.5 step D: "Run an external Whisper model over the
// media file").
type TranscribeClient struct {
	endpoint string
	client   *http.Client
	cb       *gobreaker.CircuitBreaker[any]
}

// NewTranscribeClient builds a TranscribeClient from ModelClientConfig.
func NewTranscribeClient(cfg *config.ModelClientConfig) *TranscribeClient {
	return &TranscribeClient{
		endpoint: cfg.TranscribeEndpoint,
		client:   &http.Client{Timeout: cfg.RequestTimeout},
		cb:       newBreaker("model-transcribe", cfg),
	}
}

// Segment is one transcribed span, with timestamps already converted from
// the whisper binding's centiseconds to milliseconds (spec.md §4.5 step D:
// "Timestamps arrive in centiseconds from the whisper binding and must be
// multiplied by 10").
type Segment struct {
	Text    string
	StartMS int64
	EndMS   int64
}

type transcribeRequest struct {
	AudioPath string `json:"audio_path"`
}

type whisperSegment struct {
	Text          string `json:"text"`
	StartCentisec int64  `json:"start_cs"`
	EndCentisec   int64  `json:"end_cs"`
}

type transcribeResponse struct {
	Segments []whisperSegment `json:"segments"`
}

// Transcribe returns non-empty transcript segments with millisecond
// timestamps; whisper segments whose trimmed text is empty are dropped
// (spec.md §4.5 step D: "Skip segments whose trimmed text is empty").
func (c *TranscribeClient) Transcribe(ctx context.Context, audioPath string) ([]Segment, error) {
	return execute(c.cb, "model-transcribe", func() ([]Segment, error) {
		var resp transcribeResponse
		if err := postJSON(ctx, c.client, c.endpoint, transcribeRequest{AudioPath: audioPath}, &resp); err != nil {
			return nil, err
		}

		segments := make([]Segment, 0, len(resp.Segments))
		for _, s := range resp.Segments {
			text := strings.TrimSpace(s.Text)
			if text == "" {
				continue
			}
			segments = append(segments, Segment{
				Text:    text,
				StartMS: s.StartCentisec * 10,
				EndMS:   s.EndCentisec * 10,
			})
		}
		return segments, nil
	})
}
