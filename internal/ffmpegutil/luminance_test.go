package ffmpegutil

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"testing"

	"github.com/stretchr/testify/require"
)

func encodeSolid(t *testing.T, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 100}))
	return buf.Bytes()
}

func TestMeanLuminance_BlackFrameIsNearZero(t *testing.T) {
	data := encodeSolid(t, color.Black)
	luma, err := meanLuminance(data)
	require.NoError(t, err)
	require.Less(t, luma, 5.0)
}

func TestMeanLuminance_WhiteFrameIsNearMax(t *testing.T) {
	data := encodeSolid(t, color.White)
	luma, err := meanLuminance(data)
	require.NoError(t, err)
	require.Greater(t, luma, 250.0)
}
