package touch

import (
	"github.com/avydash/avydash/internal/avalanche"
	"github.com/avydash/avydash/pkg/geometry"
)

// Resolver finds the subregion under a touch.
//
// Polygons are tested in provisioning order and the first one containing the
// point wins. Provisioned polygons are expected not to overlap; where they
// do, the earlier region shadows the later one.
type Resolver struct {
	profile geometry.Affine
	regions []avalanche.Region
}

// NewResolver creates a resolver for the provisioned regions.
func NewResolver(regions *avalanche.Provisioning, profile Profile) *Resolver {
	return &Resolver{
		profile: profile.Affine(),
		regions: regions.Regions(),
	}
}

// Resolve calibrates a raw sample and returns the subregion under it.
func (r *Resolver) Resolve(s Sample) (string, bool) {
	return r.ResolvePoint(r.profile.Apply(s.Raw()))
}

// ResolvePoint returns the subregion containing a screen-space point.
// A point outside every polygon is not an error, it just selects nothing.
func (r *Resolver) ResolvePoint(pt geometry.Point) (string, bool) {
	for _, region := range r.regions {
		if region.Polygon.Contains(pt) {
			return region.ID, true
		}
	}
	return "", false
}
