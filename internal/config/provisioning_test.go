package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avydash/avydash/internal/avalanche"
	"github.com/avydash/avydash/internal/config"
	"github.com/avydash/avydash/pkg/geometry"
)

const screenDoc = `
regions:
  - id: fernie-alpine
    name: Fernie Alpine
    band: alp
    polygon: [[0, 40], [120, 40], [120, 140], [0, 140]]
  - id: fernie-treeline
    band: tln
    polygon: [[120, 40], [240, 40], [240, 140], [120, 140]]
`

func TestParseProvisioning_ScreenPolygons(t *testing.T) {
	p, err := config.ParseProvisioning([]byte(screenDoc))
	require.NoError(t, err)

	assert.Equal(t, config.DefaultScreenWidth, p.Width)
	assert.Equal(t, config.DefaultScreenHeight, p.Height)
	assert.Equal(t, 1.0, p.Calibration.ScaleX)
	assert.Equal(t, 240.0, p.Calibration.Width)

	require.Equal(t, 2, p.Regions.Len())
	alpine, ok := p.Regions.Region("fernie-alpine")
	require.True(t, ok)
	assert.Equal(t, "Fernie Alpine", alpine.Name)
	assert.Equal(t, avalanche.BandAlpine, alpine.Band)
	assert.True(t, alpine.Polygon.Contains(geometry.Point{X: 60, Y: 90}))

	treeline, _ := p.Regions.Region("fernie-treeline")
	assert.Equal(t, "fernie-treeline", treeline.Name, "name defaults to id")
}

func TestParseProvisioning_Calibration(t *testing.T) {
	p, err := config.ParseProvisioning([]byte(`
screen: {width: 320, height: 480}
calibration:
  scale_x: 0.08
  scale_y: 0.12
  offset_x: -10
  swap_xy: true
  flip_y: true
` + screenDoc))
	require.NoError(t, err)

	assert.Equal(t, 320, p.Width)
	assert.Equal(t, 0.08, p.Calibration.ScaleX)
	assert.True(t, p.Calibration.SwapXY)
	assert.Equal(t, 480.0, p.Calibration.Height, "flip height defaults to the screen")
}

func TestParseProvisioning_Geographic(t *testing.T) {
	ring := []geometry.LatLon{
		{Lat: 49.5, Lon: -115.5},
		{Lat: 49.5, Lon: -115.0},
		{Lat: 49.0, Lon: -115.0},
		{Lat: 49.0, Lon: -115.5},
	}

	p, err := config.ParseProvisioning([]byte(`
viewport: {min_lat: 49.0, max_lat: 50.0, min_lon: -115.5, max_lon: -114.5}
regions:
  - id: south
    coordinates: [[49.5, -115.5], [49.5, -115.0], [49.0, -115.0], [49.0, -115.5]]
  - id: south-encoded
    polyline: '` + geometry.EncodePolyline(ring) + `'
`))
	require.NoError(t, err)

	for _, id := range []string{"south", "south-encoded"} {
		r, ok := p.Regions.Region(id)
		require.True(t, ok)
		// The lower-left quarter of a 240x360 screen.
		assert.True(t, r.Polygon.Contains(geometry.Point{X: 60, Y: 270}), id)
		assert.False(t, r.Polygon.Contains(geometry.Point{X: 180, Y: 90}), id)
	}
}

func TestParseProvisioning_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"not yaml", "regions: [unterminated"},
		{"no regions", "regions: []"},
		{"no shape", "regions: [{id: a}]"},
		{"geographic without viewport", "regions: [{id: a, coordinates: [[1, 1], [1, 2], [2, 2]]}]"},
		{"coordinate outside viewport", "viewport: {min_lat: 49, max_lat: 50, min_lon: -116, max_lon: -115}\nregions: [{id: a, coordinates: [[49.5, -115.5], [49.5, -114.9], [49.1, -115.5]]}]"},
		{"unknown band", "regions: [{id: a, band: summit, polygon: [[0, 0], [1, 0], [1, 1]]}]"},
		{"degenerate polygon", "regions: [{id: a, polygon: [[0, 0], [1, 0]]}]"},
		{"duplicate id", "regions: [{id: a, polygon: [[0, 0], [1, 0], [1, 1]]}, {id: a, polygon: [[0, 0], [1, 0], [1, 1]]}]"},
		{"zero scale", "calibration: {scale_x: 0, scale_y: 1}\nregions: [{id: a, polygon: [[0, 0], [1, 0], [1, 1]]}]"},
		{"empty viewport", "viewport: {min_lat: 1, max_lat: 1, min_lon: 0, max_lon: 1}\nregions: [{id: a, polygon: [[0, 0], [1, 0], [1, 1]]}]"},
		{"negative screen", "screen: {width: -1, height: 10}\nregions: [{id: a, polygon: [[0, 0], [1, 0], [1, 1]]}]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.ParseProvisioning([]byte(tt.doc))
			require.Error(t, err)

			var cfgErr *config.Error
			require.True(t, errors.As(err, &cfgErr))
			assert.Equal(t, config.ErrProvisioning, cfgErr.Type)
		})
	}
}

func TestParseProvisioning_OutsideViewport(t *testing.T) {
	_, err := config.ParseProvisioning([]byte(`
viewport: {min_lat: 49.0, max_lat: 50.0, min_lon: -115.5, max_lon: -114.5}
regions:
  - id: north
    polyline: '` + geometry.EncodePolyline([]geometry.LatLon{{Lat: 49.5, Lon: -115}, {Lat: 50.5, Lon: -115}, {Lat: 49.5, Lon: -114.8}}) + `'
`))
	require.Error(t, err)
	assert.ErrorIs(t, err, geometry.ErrOutsideViewport)
	assert.Contains(t, err.Error(), "north")
}

func TestLoadProvisioning(t *testing.T) {
	path := filepath.Join(t.TempDir(), "provisioning.yaml")
	require.NoError(t, os.WriteFile(path, []byte(screenDoc), 0o600))

	p, err := config.LoadProvisioning(path)
	require.NoError(t, err)
	assert.Equal(t, 2, p.Regions.Len())

	_, err = config.LoadProvisioning(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
