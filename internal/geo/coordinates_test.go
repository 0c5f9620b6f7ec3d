package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHaversineKM(t *testing.T) {
	// Praça Sete to Praça da Liberdade, Belo Horizonte ≈ 0.87km.
	a := Coordinates{Lat: -19.9167, Lng: -43.9345}
	b := Coordinates{Lat: -19.9245, Lng: -43.9352}
	d := HaversineKM(a, b)
	assert.InDelta(t, 0.87, d, 0.02)
	assert.InDelta(t, 0.9, RoundKM(d), 0.0001)

	// Same point is 0.
	assert.InDelta(t, 0, HaversineKM(a, a), 0.000001)

	// Belo Horizonte to São Paulo ≈ 490km.
	sp := Coordinates{Lat: -23.5505, Lng: -46.6333}
	assert.InDelta(t, 490, HaversineKM(a, sp), 10)
}

func TestHaversineKM_Symmetric(t *testing.T) {
	a := Coordinates{Lat: -19.9167, Lng: -43.9345}
	b := Coordinates{Lat: -21.7642, Lng: -43.3496}
	assert.InDelta(t, HaversineKM(a, b), HaversineKM(b, a), 1e-9)
}

func TestFormatDistance(t *testing.T) {
	tests := []struct {
		km   float64
		want string
	}{
		{0.9, "900m"},
		{0.05, "50m"},
		{0, "0m"},
		{1, "1.0 km"},
		{12.34, "12.3 km"},
		{250, "250.0 km"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatDistance(tt.km), "km=%v", tt.km)
	}
}

func TestRoundKM(t *testing.T) {
	assert.InDelta(t, 12.3, RoundKM(12.34), 1e-9)
	assert.InDelta(t, 12.4, RoundKM(12.36), 1e-9)
	assert.InDelta(t, 0, RoundKM(0.04), 1e-9)
}

func TestCoordinatesValid(t *testing.T) {
	assert.True(t, Coordinates{Lat: -19.9, Lng: -43.9}.Valid())
	assert.False(t, Coordinates{Lat: -91, Lng: 0}.Valid())
	assert.False(t, Coordinates{Lat: 0, Lng: 181}.Valid())
}

func TestCoordinatesString(t *testing.T) {
	assert.Equal(t, "-19.9167,-43.9345", Coordinates{Lat: -19.9167, Lng: -43.9345}.String())
}

func TestEWKBRoundTrip(t *testing.T) {
	c := Coordinates{Lat: -19.9167, Lng: -43.9345}
	data, err := c.EWKB()
	require.NoError(t, err)
	require.NotEmpty(t, data)

	got, err := FromEWKB(data)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.InDelta(t, c.Lat, got.Lat, 1e-9)
	assert.InDelta(t, c.Lng, got.Lng, 1e-9)
}

func TestFromEWKB_Empty(t *testing.T) {
	got, err := FromEWKB(nil)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestFromEWKB_Garbage(t *testing.T) {
	_, err := FromEWKB([]byte{0x01, 0x02})
	assert.Error(t, err)
}
