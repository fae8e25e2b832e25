package bulkimport

import (
	"testing"

	"github.com/tomtom215/opentestimony/internal/media"
)

func TestDetectMediaType(t *testing.T) {
	tests := []struct {
		name        string
		filename    string
		contentType string
		want        media.Type
	}{
		{"jpg extension", "photo.jpg", "", media.TypePhoto},
		{"JPEG uppercase extension", "PHOTO.JPEG", "", media.TypePhoto},
		{"heic extension", "capture.heic", "", media.TypePhoto},
		{"mp4 extension", "clip.mp4", "", media.TypeVideo},
		{"no extension, image content-type", "blob", "image/png", media.TypePhoto},
		{"no extension, video content-type", "blob", "video/mp4", media.TypeVideo},
		{"unknown extension, no content-type", "file.xyz", "", media.TypeVideo},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DetectMediaType(tt.filename, tt.contentType)
			if got != tt.want {
				t.Errorf("DetectMediaType(%q, %q) = %q, want %q", tt.filename, tt.contentType, got, tt.want)
			}
		})
	}
}

func TestExtractExif_NonImageBytesIsNonFatal(t *testing.T) {
	result := ExtractExif([]byte("not an image, just plain bytes"))
	if result.Latitude != nil || result.Longitude != nil || result.CapturedAt != nil || result.Raw != nil {
		t.Errorf("expected zero-value ExifResult for undecodable bytes, got %+v", result)
	}
}

func TestExtractExif_EmptyInput(t *testing.T) {
	result := ExtractExif(nil)
	if result.Latitude != nil {
		t.Error("expected nil Latitude for empty input")
	}
}
