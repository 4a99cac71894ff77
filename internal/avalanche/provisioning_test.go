package avalanche_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avydash/avydash/internal/avalanche"
	"github.com/avydash/avydash/pkg/geometry"
)

func TestNewProvisioning(t *testing.T) {
	p, err := avalanche.NewProvisioning(fernieRegions())
	require.NoError(t, err)

	assert.Equal(t, 3, p.Len())
	assert.True(t, p.Has("fernie-below"))
	assert.False(t, p.Has("whistler"))

	r, ok := p.Region("fernie-treeline")
	require.True(t, ok)
	assert.Equal(t, "Fernie Treeline", r.Name)

	assert.Equal(t, "fernie-alpine", p.Regions()[0].ID)
	assert.Equal(t, avalanche.BandAlpine, p.Regions()[0].Band)
}

func TestNewProvisioning_DefaultsName(t *testing.T) {
	p, err := avalanche.NewProvisioning([]avalanche.Region{{ID: "kootenay", Polygon: box(0, 0, 1, 1)}})
	require.NoError(t, err)

	r, _ := p.Region("kootenay")
	assert.Equal(t, "kootenay", r.Name)
}

func TestNewProvisioning_Errors(t *testing.T) {
	tests := []struct {
		name    string
		regions []avalanche.Region
		wantErr error
	}{
		{"empty", nil, avalanche.ErrNoSubregions},
		{"missing id", []avalanche.Region{{Polygon: box(0, 0, 1, 1)}}, avalanche.ErrEmptyRegionID},
		{
			"duplicate id",
			[]avalanche.Region{{ID: "a", Polygon: box(0, 0, 1, 1)}, {ID: "a", Polygon: box(1, 1, 2, 2)}},
			avalanche.ErrDuplicateRegionID,
		},
		{
			"degenerate polygon",
			[]avalanche.Region{{ID: "a", Polygon: geometry.Polygon{{X: 0, Y: 0}, {X: 1, Y: 1}}}},
			geometry.ErrDegeneratePolygon,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := avalanche.NewProvisioning(tt.regions)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}
