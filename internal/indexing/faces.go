package indexing

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"

	"golang.org/x/image/draw"

	"github.com/tomtom215/opentestimony/internal/ffmpegutil"
	"github.com/tomtom215/opentestimony/internal/vectorsql"
)

const faceThumbnailSize = 112

// indexFaces runs face detection on every extracted frame, keeps
// detections clearing the confidence and minimum-pixel-size floors,
// saves a 112x112 thumbnail crop per kept face, and inserts one
// face_detections row per face with an unassigned cluster (spec.md
// §4.5 step I).
func (p *Pipeline) indexFaces(ctx context.Context, mediaID string, frames []ffmpegutil.Frame, thumbDir string) error {
	for _, f := range frames {
		detections, err := p.face.Detect(ctx, f.JPEG)
		if err != nil {
			return fmt.Errorf("detect faces in frame %d: %w", f.Ordinal, err)
		}
		if len(detections) == 0 {
			continue
		}

		img, err := jpeg.Decode(bytes.NewReader(f.JPEG))
		if err != nil {
			return fmt.Errorf("decode frame %d: %w", f.Ordinal, err)
		}

		for idx, d := range detections {
			if d.Score < p.cfg.FaceMinConfidence {
				continue
			}
			if int(d.BBoxW) < p.cfg.FaceMinPixels || int(d.BBoxH) < p.cfg.FaceMinPixels {
				continue
			}

			thumbPath := filepath.Join(thumbDir, fmt.Sprintf("%d_%d.jpg", f.TimestampMS, idx))
			thumb := cropAndResizeFace(img, d.BBoxX, d.BBoxY, d.BBoxW, d.BBoxH)
			if err := writeJPEG(thumb, thumbPath); err != nil {
				return fmt.Errorf("save face thumbnail: %w", err)
			}

			stmt := fmt.Sprintf(
				`INSERT INTO face_detections
					(id, media_id, frame_ordinal, timestamp_ms, bbox_x, bbox_y, bbox_w, bbox_h, score, embedding, cluster_id, thumbnail_path)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, %s, NULL, ?)`,
				vectorsql.CastLiteral(d.Embedding, 512),
			)
			if _, err := p.db.Conn().ExecContext(ctx, stmt,
				newID(), mediaID, f.Ordinal, f.TimestampMS, d.BBoxX, d.BBoxY, d.BBoxW, d.BBoxH, d.Score, thumbPath,
			); err != nil {
				return fmt.Errorf("insert face detection: %w", err)
			}
		}
	}
	return nil
}

// cropAndResizeFace crops the bounding box out of img and resamples it to
// a fixed 112x112 thumbnail.
func cropAndResizeFace(img image.Image, x, y, w, h float64) image.Image {
	bounds := img.Bounds()
	rect := image.Rect(
		clampInt(int(x), bounds.Min.X, bounds.Max.X),
		clampInt(int(y), bounds.Min.Y, bounds.Max.Y),
		clampInt(int(x+w), bounds.Min.X, bounds.Max.X),
		clampInt(int(y+h), bounds.Min.Y, bounds.Max.Y),
	)

	cropped := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	draw.Draw(cropped, cropped.Bounds(), img, rect.Min, draw.Src)

	dst := image.NewRGBA(image.Rect(0, 0, faceThumbnailSize, faceThumbnailSize))
	draw.CatmullRom.Scale(dst, dst.Bounds(), cropped, cropped.Bounds(), draw.Over, nil)
	return dst
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func writeJPEG(img image.Image, destPath string) error {
	f, err := os.Create(destPath)
	if err != nil {
		return err
	}
	defer f.Close()
	return jpeg.Encode(f, img, &jpeg.Options{Quality: 90})
}
