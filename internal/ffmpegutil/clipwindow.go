package ffmpegutil

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
)

// ClipWindow groups a run of consecutive clip-rate frames for a single
// clip embedding (spec.md §4.5 step G: "sliding window of
// clip_window_frames with stride clip_window_stride").
type ClipWindow struct {
	StartMS    int64
	EndMS      int64
	StartFrame int
	EndFrame   int
	Frames     []Frame
}

// ExtractClipFrames resamples the video at clipFPS, independent of the
// coarser frame_interval_sec sampling used for visual-frame embeddings,
// since clip windows need a denser, evenly spaced frame rate to capture
// motion.
func (h *Helper) ExtractClipFrames(ctx context.Context, videoPath string, clipFPS float64) ([]Frame, error) {
	if clipFPS <= 0 {
		return nil, fmt.Errorf("ffmpegutil: clip fps must be positive, got %v", clipFPS)
	}

	outDir, err := os.MkdirTemp(h.tempDir, "clip-*")
	if err != nil {
		return nil, fmt.Errorf("ffmpegutil: clip scratch dir: %w", err)
	}
	defer os.RemoveAll(outDir)

	pattern := filepath.Join(outDir, "clip_%08d.jpg")
	cmd := exec.CommandContext(ctx, h.ffmpegPath,
		"-i", videoPath,
		"-vf", fmt.Sprintf("fps=%f", clipFPS),
		"-qscale:v", "2",
		"-y",
		pattern,
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("ffmpegutil: extract clip frames: %w: %s", err, string(out))
	}

	paths, err := filepath.Glob(filepath.Join(outDir, "clip_*.jpg"))
	if err != nil {
		return nil, fmt.Errorf("ffmpegutil: glob clip frames: %w", err)
	}
	sort.Strings(paths)

	intervalMS := 1000.0 / clipFPS
	frames := make([]Frame, len(paths))
	for i, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("ffmpegutil: read clip frame %s: %w", p, err)
		}
		frames[i] = Frame{
			Ordinal:     i,
			TimestampMS: int64(float64(i) * intervalMS),
			JPEG:        data,
		}
	}
	return frames, nil
}

// SlidingWindows groups frames into overlapping windows of windowSize
// frames, advancing by stride frames each time. The final partial
// window, if any, is dropped — it has fewer frames than the model
// expects to mean-pool over.
func SlidingWindows(frames []Frame, windowSize, stride int) []ClipWindow {
	if windowSize <= 0 || stride <= 0 || len(frames) < windowSize {
		return nil
	}

	var windows []ClipWindow
	for start := 0; start+windowSize <= len(frames); start += stride {
		slice := frames[start : start+windowSize]
		windows = append(windows, ClipWindow{
			StartMS:    slice[0].TimestampMS,
			EndMS:      slice[len(slice)-1].TimestampMS,
			StartFrame: slice[0].Ordinal,
			EndFrame:   slice[len(slice)-1].Ordinal,
			Frames:     slice,
		})
	}
	return windows
}
