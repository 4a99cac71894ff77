package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/avydash/avydash/internal/avalanche"
	"github.com/avydash/avydash/internal/touch"
	"github.com/avydash/avydash/pkg/geometry"
)

// Default screen size of the reference panel.
const (
	DefaultScreenWidth  = 240
	DefaultScreenHeight = 360
)

var (
	errNoShape       = errors.New("region needs a polygon, coordinates or a polyline")
	errNeedsViewport = errors.New("geographic region needs a viewport")
	errUnknownBand   = errors.New("unknown elevation band")
)

// Provisioning is the per-device setup read from the provisioning file.
type Provisioning struct {
	Regions     *avalanche.Provisioning
	Width       int
	Height      int
	Calibration touch.Profile
}

type provisioningFile struct {
	Screen struct {
		Width  int `yaml:"width"`
		Height int `yaml:"height"`
	} `yaml:"screen"`
	Calibration *touch.Profile `yaml:"calibration"`
	Viewport    *viewportEntry `yaml:"viewport"`
	Regions     []regionEntry  `yaml:"regions"`
}

type viewportEntry struct {
	MinLat float64 `yaml:"min_lat"`
	MaxLat float64 `yaml:"max_lat"`
	MinLon float64 `yaml:"min_lon"`
	MaxLon float64 `yaml:"max_lon"`
}

// regionEntry describes one region. Polygon is in screen pixels as [x, y]
// pairs. Coordinates ([lat, lon] pairs) and Polyline (an encoded polyline)
// are geographic and projected through the viewport.
type regionEntry struct {
	ID          string       `yaml:"id"`
	Name        string       `yaml:"name"`
	Band        string       `yaml:"band"`
	Polygon     [][2]float64 `yaml:"polygon"`
	Coordinates [][2]float64 `yaml:"coordinates"`
	Polyline    string       `yaml:"polyline"`
}

// LoadProvisioning reads and validates a provisioning file.
func LoadProvisioning(path string) (*Provisioning, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &Error{
			Type:    ErrProvisioning,
			Message: "failed to read provisioning file",
			Err:     err,
		}
	}
	return ParseProvisioning(data)
}

// ParseProvisioning validates a provisioning document.
func ParseProvisioning(data []byte) (*Provisioning, error) {
	var f provisioningFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, &Error{Type: ErrProvisioning, Message: "failed to parse provisioning file", Err: err}
	}

	p, err := f.build()
	if err != nil {
		return nil, &Error{Type: ErrProvisioning, Message: "invalid provisioning file", Err: err}
	}
	return p, nil
}

func (f *provisioningFile) build() (*Provisioning, error) {
	w, h := f.Screen.Width, f.Screen.Height
	if w == 0 && h == 0 {
		w, h = DefaultScreenWidth, DefaultScreenHeight
	}
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("screen size %dx%d", w, h)
	}

	profile := touch.IdentityProfile(float64(w), float64(h))
	if f.Calibration != nil {
		profile = *f.Calibration
		if profile.Width == 0 {
			profile.Width = float64(w)
		}
		if profile.Height == 0 {
			profile.Height = float64(h)
		}
	}
	if err := profile.Validate(); err != nil {
		return nil, fmt.Errorf("calibration: %w", err)
	}

	var vp *geometry.Viewport
	if f.Viewport != nil {
		vp = &geometry.Viewport{
			Box: geometry.BoundingBox{
				MinLat: f.Viewport.MinLat,
				MaxLat: f.Viewport.MaxLat,
				MinLon: f.Viewport.MinLon,
				MaxLon: f.Viewport.MaxLon,
			},
			Screen: geometry.Rect{Max: geometry.Point{X: float64(w), Y: float64(h)}},
		}
		if err := vp.Validate(); err != nil {
			return nil, fmt.Errorf("viewport: %w", err)
		}
	}

	regions := make([]avalanche.Region, 0, len(f.Regions))
	for i, entry := range f.Regions {
		r, err := entry.region(vp)
		if err != nil {
			return nil, fmt.Errorf("region %d (%s): %w", i, entry.ID, err)
		}
		regions = append(regions, r)
	}

	prov, err := avalanche.NewProvisioning(regions)
	if err != nil {
		return nil, err
	}

	return &Provisioning{
		Regions:     prov,
		Width:       w,
		Height:      h,
		Calibration: profile,
	}, nil
}

func (s regionEntry) region(vp *geometry.Viewport) (avalanche.Region, error) {
	band := avalanche.Band(s.Band)
	switch band {
	case avalanche.BandNone, avalanche.BandAlpine, avalanche.BandTreeline, avalanche.BandBelowTreeline:
	default:
		return avalanche.Region{}, fmt.Errorf("%w %q", errUnknownBand, s.Band)
	}

	r := avalanche.Region{ID: s.ID, Name: s.Name, Band: band}

	var err error
	switch {
	case len(s.Polygon) > 0:
		r.Polygon = make(geometry.Polygon, len(s.Polygon))
		for i, xy := range s.Polygon {
			r.Polygon[i] = geometry.Point{X: xy[0], Y: xy[1]}
		}

	case len(s.Coordinates) > 0:
		if vp == nil {
			return r, errNeedsViewport
		}
		coords := make([]geometry.LatLon, len(s.Coordinates))
		for i, ll := range s.Coordinates {
			coords[i] = geometry.LatLon{Lat: ll[0], Lon: ll[1]}
		}
		if r.Polygon, err = vp.ProjectRing(coords); err != nil {
			return r, err
		}

	case s.Polyline != "":
		if vp == nil {
			return r, errNeedsViewport
		}
		coords, decodeErr := geometry.DecodePolyline(s.Polyline)
		if decodeErr != nil {
			return r, fmt.Errorf("decoding polyline: %w", decodeErr)
		}
		if r.Polygon, err = vp.ProjectRing(coords); err != nil {
			return r, err
		}

	default:
		return r, errNoShape
	}

	return r, nil
}
