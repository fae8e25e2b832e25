package ffmpegutil

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
)

// Frame is one sampled frame: its ordinal in sampling order, its
// timestamp in the source media, and the encoded JPEG bytes.
type Frame struct {
	Ordinal     int
	TimestampMS int64
	JPEG        []byte
}

// ExtractFrames samples the video at intervalSec and drops frames whose
// mean luminance falls below lumaFloor, eliminating black frames from
// cuts and fades before they reach the vision model (spec.md §4.5 step
// B: "sample every frame_interval_sec... skip frames with mean
// luminance below threshold to eliminate black frames").
func (h *Helper) ExtractFrames(ctx context.Context, videoPath string, intervalSec float64, lumaFloor float64) ([]Frame, error) {
	if intervalSec <= 0 {
		return nil, fmt.Errorf("ffmpegutil: interval must be positive, got %v", intervalSec)
	}

	outDir, err := os.MkdirTemp(h.tempDir, "frames-*")
	if err != nil {
		return nil, fmt.Errorf("ffmpegutil: frame scratch dir: %w", err)
	}
	defer os.RemoveAll(outDir)

	pattern := filepath.Join(outDir, "frame_%08d.jpg")
	fps := 1.0 / intervalSec
	cmd := exec.CommandContext(ctx, h.ffmpegPath,
		"-i", videoPath,
		"-vf", fmt.Sprintf("fps=%f", fps),
		"-qscale:v", "2",
		"-y",
		pattern,
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("ffmpegutil: extract frames: %w: %s", err, string(out))
	}

	paths, err := filepath.Glob(filepath.Join(outDir, "frame_*.jpg"))
	if err != nil {
		return nil, fmt.Errorf("ffmpegutil: glob frames: %w", err)
	}
	sort.Strings(paths)

	frames := make([]Frame, 0, len(paths))
	ordinal := 0
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("ffmpegutil: read frame %s: %w", p, err)
		}

		luma, err := meanLuminance(data)
		if err != nil {
			return nil, fmt.Errorf("ffmpegutil: decode frame %s: %w", p, err)
		}
		if luma < lumaFloor {
			ordinal++
			continue
		}

		frames = append(frames, Frame{
			Ordinal:     ordinal,
			TimestampMS: int64(float64(ordinal) * intervalSec * 1000),
			JPEG:        data,
		})
		ordinal++
	}

	return frames, nil
}
