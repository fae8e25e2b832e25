// Package bulkimport implements the admin bulk-upload path: per-file
// hash/store, media-type detection by extension, and EXIF-derived
// location/timestamp overrides (spec.md §4.1 "Bulk upload").
package bulkimport

import (
	"bytes"
	"path/filepath"
	"strings"
	"time"

	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/tiff"

	"github.com/tomtom215/opentestimony/internal/media"
)

// ExifResult is whatever could be recovered from a file's EXIF block.
// Any field left at its zero value means extraction did not find it.
type ExifResult struct {
	Latitude   *float64
	Longitude  *float64
	CapturedAt *time.Time
	Raw        map[string]string
}

// ExtractExif parses EXIF GPS (DMS converted to decimal degrees) and
// DateTime out of an image's bytes. Extraction failures are non-fatal:
// a zero-value ExifResult is returned and the caller falls back to the
// device-supplied values (spec.md §4.1 "Bulk upload": "attempt EXIF
// extraction").
func ExtractExif(fileBytes []byte) ExifResult {
	var result ExifResult

	x, err := exif.Decode(bytes.NewReader(fileBytes))
	if err != nil {
		return result
	}

	if lat, lon, err := x.LatLong(); err == nil {
		result.Latitude = &lat
		result.Longitude = &lon
	}

	if dt, err := x.DateTime(); err == nil {
		result.CapturedAt = &dt
	}

	raw := map[string]string{}
	_ = x.Walk(rawWalker(raw))
	if len(raw) > 0 {
		result.Raw = raw
	}

	return result
}

// rawWalker collects every decodable EXIF field into a flat string map,
// matching the original implementation's "raw" passthrough for forensic
// replay; fields whose string form is empty are skipped, and the walk
// never returns an error.
type rawWalker map[string]string

func (w rawWalker) Walk(name exif.FieldName, tag *tiff.Tag) error {
	s := strings.Trim(tag.String(), `"`)
	if s == "" {
		return nil
	}
	w[string(name)] = s
	return nil
}

// DetectMediaType classifies a bulk-uploaded file by extension first,
// falling back to the declared content type (spec.md §4.1 "Bulk
// upload": "detect media type by extension/content-type").
func DetectMediaType(filename, contentType string) media.Type {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".jpg", ".jpeg", ".png", ".heic", ".heif", ".webp", ".tiff", ".bmp", ".gif":
		return media.TypePhoto
	}
	if strings.HasPrefix(contentType, "image/") {
		return media.TypePhoto
	}
	return media.TypeVideo
}
