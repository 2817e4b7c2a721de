package statebuf

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHaversineNewYorkToLondon(t *testing.T) {
	// NYC to London is about 5,570 km.
	d := Haversine(40.7128, -74.0060, 51.5074, -0.1278)
	require.InDelta(t, 5_570_000, d, 50_000)
}

func TestHaversineZeroDistance(t *testing.T) {
	d := Haversine(40.7128, -74.0060, 40.7128, -74.0060)
	require.Equal(t, 0.0, d)
}

func TestHaversineShortHop(t *testing.T) {
	// One thousandth of a degree of latitude is ~111 m.
	d := Haversine(40.0000, -74.0000, 40.0010, -74.0000)
	require.InDelta(t, 111, d, 2)
}
