package geometry

import (
	"math"
	"testing"
)

func TestDecodePolyline(t *testing.T) {
	tests := []struct {
		name     string
		encoded  string
		expected []LatLon
	}{
		{
			name:     "single point",
			encoded:  "_p~iF~ps|U",
			expected: []LatLon{{Lat: 38.5, Lon: -120.2}},
		},
		{
			name:    "three points - Google example",
			encoded: "_p~iF~ps|U_ulLnnqC_mqNvxq`@",
			expected: []LatLon{
				{Lat: 38.5, Lon: -120.2},
				{Lat: 40.7, Lon: -120.95},
				{Lat: 43.252, Lon: -126.453},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodePolyline(tt.encoded)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != len(tt.expected) {
				t.Fatalf("expected %d coordinates, got %d", len(tt.expected), len(got))
			}
			for i := range got {
				if math.Abs(got[i].Lat-tt.expected[i].Lat) > 1e-6 || math.Abs(got[i].Lon-tt.expected[i].Lon) > 1e-6 {
					t.Errorf("coordinate %d: expected %+v, got %+v", i, tt.expected[i], got[i])
				}
			}
		})
	}
}

func TestDecodePolyline_Truncated(t *testing.T) {
	if _, err := DecodePolyline("_p~iF~ps|"); err != ErrTruncatedPolyline {
		t.Errorf("expected ErrTruncatedPolyline, got %v", err)
	}
	if _, err := DecodePolyline("_p~iF"); err != ErrTruncatedPolyline {
		t.Errorf("expected ErrTruncatedPolyline for missing longitude, got %v", err)
	}
}

func TestEncodePolyline_Fernie(t *testing.T) {
	ring := []LatLon{
		{Lat: 49.60, Lon: -115.20},
		{Lat: 49.60, Lon: -114.95},
		{Lat: 49.40, Lon: -114.95},
		{Lat: 49.40, Lon: -115.20},
	}

	decoded, err := DecodePolyline(EncodePolyline(ring))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(decoded) != len(ring) {
		t.Fatalf("expected %d points, got %d", len(ring), len(decoded))
	}
	for i := range ring {
		if math.Abs(decoded[i].Lat-ring[i].Lat) > 1e-5 || math.Abs(decoded[i].Lon-ring[i].Lon) > 1e-5 {
			t.Errorf("point %d drifted: %+v vs %+v", i, decoded[i], ring[i])
		}
	}
}

func TestViewport_Project(t *testing.T) {
	v := Viewport{
		Box:    BoundingBox{MinLat: 49.0, MaxLat: 50.0, MinLon: -116.0, MaxLon: -115.0},
		Screen: Rect{Min: Point{X: 0, Y: 20}, Max: Point{X: 240, Y: 320}},
	}
	if err := v.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	nw := v.Project(LatLon{Lat: 50.0, Lon: -116.0})
	if nw != (Point{X: 0, Y: 20}) {
		t.Errorf("north-west corner projected to %+v", nw)
	}
	se := v.Project(LatLon{Lat: 49.0, Lon: -115.0})
	if se != (Point{X: 240, Y: 320}) {
		t.Errorf("south-east corner projected to %+v", se)
	}
	mid := v.Project(LatLon{Lat: 49.5, Lon: -115.5})
	if math.Abs(mid.X-120) > 1e-9 || math.Abs(mid.Y-170) > 1e-9 {
		t.Errorf("center projected to %+v", mid)
	}

	if !v.Box.Contains(LatLon{Lat: 49.5, Lon: -115.5}) {
		t.Error("box should contain its center")
	}
}

func TestViewport_ValidateEmpty(t *testing.T) {
	v := Viewport{Box: BoundingBox{MinLat: 1, MaxLat: 1, MinLon: 0, MaxLon: 1}}
	if err := v.Validate(); err != ErrEmptyViewport {
		t.Errorf("expected ErrEmptyViewport, got %v", err)
	}
}
