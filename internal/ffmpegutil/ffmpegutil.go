// Package ffmpegutil shells out to ffmpeg/ffprobe for everything the
// Indexing Pipeline needs from a downloaded media file: frame sampling
// with black-frame skip, audio extraction for transcription, and the
// clip-window resampling used for temporal embeddings (spec.md §4.5
// steps B, D, G).
package ffmpegutil

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// Helper wraps the located ffmpeg/ffprobe binaries and a scratch
// directory for intermediate frame/audio files.
type Helper struct {
	ffmpegPath  string
	ffprobePath string
	tempDir     string
}

// NewHelper locates ffmpeg and ffprobe on PATH and ensures tempDir exists.
func NewHelper(tempDir string) (*Helper, error) {
	ffmpegPath, err := exec.LookPath("ffmpeg")
	if err != nil {
		return nil, fmt.Errorf("ffmpegutil: ffmpeg not found in PATH: %w", err)
	}
	ffprobePath, err := exec.LookPath("ffprobe")
	if err != nil {
		return nil, fmt.Errorf("ffmpegutil: ffprobe not found in PATH: %w", err)
	}
	if err := os.MkdirAll(tempDir, 0o755); err != nil {
		return nil, fmt.Errorf("ffmpegutil: create temp dir: %w", err)
	}
	return &Helper{ffmpegPath: ffmpegPath, ffprobePath: ffprobePath, tempDir: tempDir}, nil
}

// TempDir returns the scratch directory this helper writes under.
func (h *Helper) TempDir() string { return h.tempDir }

// Duration returns the media file's duration in seconds.
func (h *Helper) Duration(ctx context.Context, mediaPath string) (float64, error) {
	cmd := exec.CommandContext(ctx, h.ffprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		mediaPath,
	)
	out, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffmpegutil: probe duration: %w", err)
	}
	d, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		return 0, fmt.Errorf("ffmpegutil: parse duration: %w", err)
	}
	return d, nil
}

// ExtractAudio extracts the audio track as 16kHz mono PCM WAV, the format
// the transcription model expects (spec.md §4.5 step D).
func (h *Helper) ExtractAudio(ctx context.Context, mediaPath, outputPath string) error {
	cmd := exec.CommandContext(ctx, h.ffmpegPath,
		"-i", mediaPath,
		"-vn",
		"-acodec", "pcm_s16le",
		"-ar", "16000",
		"-ac", "1",
		"-y",
		outputPath,
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("ffmpegutil: extract audio: %w: %s", err, string(out))
	}
	return nil
}
