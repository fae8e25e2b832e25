package indexing

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tomtom215/opentestimony/internal/ffmpegutil"
)

func frameRunForCluster(n int) []ffmpegutil.Frame {
	frames := make([]ffmpegutil.Frame, n)
	for i := range frames {
		frames[i] = ffmpegutil.Frame{Ordinal: i, TimestampMS: int64(i * 100)}
	}
	return frames
}

func unit(v []float32) []float32 {
	out := append([]float32(nil), v...)
	normalize(out)
	return out
}

func TestDBSCAN_GroupsTightPointsAndMarksOutlierAsNoise(t *testing.T) {
	points := []([]float32){
		unit([]float32{1, 0, 0}),
		unit([]float32{0.99, 0.01, 0}),
		unit([]float32{0.98, 0.02, 0}),
		unit([]float32{0, 1, 0}),
		unit([]float32{0.01, 0.99, 0}),
		unit([]float32{0.02, 0.98, 0}),
		unit([]float32{-1, -1, -1}),
	}

	labels := dbscan(points, 0.1, 3)

	require.Equal(t, labels[0], labels[1])
	require.Equal(t, labels[1], labels[2])
	require.GreaterOrEqual(t, labels[0], 0)

	require.Equal(t, labels[3], labels[4])
	require.Equal(t, labels[4], labels[5])
	require.GreaterOrEqual(t, labels[3], 0)

	require.NotEqual(t, labels[0], labels[3])
	require.Equal(t, -1, labels[6])
}

func TestEvenSample_PicksFirstAndLast(t *testing.T) {
	frames := frameRunForCluster(10)
	sample := evenSample(frames, 4)
	require.Len(t, sample, 4)
	require.Equal(t, 0, sample[0].Ordinal)
	require.Equal(t, 9, sample[len(sample)-1].Ordinal)
}

func TestEvenSample_ReturnsAllWhenFewerThanN(t *testing.T) {
	frames := frameRunForCluster(3)
	sample := evenSample(frames, 8)
	require.Len(t, sample, 3)
}
