package ffmpegutil

import (
	"bytes"
	"image"
	_ "image/jpeg"
)

// meanLuminance decodes a JPEG and returns the mean of its per-pixel
// luma (Rec. 601 grayscale), scaled 0-255. There is no vision-model or
// image library in the corpus that exposes a cheaper black-frame test
// than decoding the frame, so this stays on the standard image package
// rather than routing a throwaway frame through the vision model.
func meanLuminance(jpegBytes []byte) (float64, error) {
	img, _, err := image.Decode(bytes.NewReader(jpegBytes))
	if err != nil {
		return 0, err
	}

	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width == 0 || height == 0 {
		return 0, nil
	}

	var sum int64
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			gray := colorGray(img.At(x, y))
			sum += int64(gray)
		}
	}

	return float64(sum) / float64(width*height), nil
}

func colorGray(c interface{ RGBA() (r, g, b, a uint32) }) uint8 {
	r, g, b, _ := c.RGBA()
	// RGBA returns 16-bit components; downshift to 8-bit before the
	// standard luma weights.
	r8, g8, b8 := r>>8, g>>8, b>>8
	y := (299*r8 + 587*g8 + 114*b8) / 1000
	return uint8(y)
}
