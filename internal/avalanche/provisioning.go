package avalanche

import "fmt"

// Provisioning is the read-only list of regions the device was set up with,
// in the order they are drawn and hit-tested.
type Provisioning struct {
	regions []Region
	index   map[string]int
}

// NewProvisioning validates and indexes the provisioned regions.
func NewProvisioning(regions []Region) (*Provisioning, error) {
	if len(regions) == 0 {
		return nil, ErrNoSubregions
	}

	p := &Provisioning{
		regions: make([]Region, len(regions)),
		index:   make(map[string]int, len(regions)),
	}
	for i, r := range regions {
		if r.ID == "" {
			return nil, fmt.Errorf("region %d: %w", i, ErrEmptyRegionID)
		}
		if _, dup := p.index[r.ID]; dup {
			return nil, fmt.Errorf("region %q: %w", r.ID, ErrDuplicateRegionID)
		}
		if err := r.Polygon.Validate(); err != nil {
			return nil, fmt.Errorf("region %q: %w", r.ID, err)
		}
		if r.Name == "" {
			r.Name = r.ID
		}
		p.regions[i] = r
		p.index[r.ID] = i
	}
	return p, nil
}

// Regions returns the regions in provisioning order. Callers must not modify
// the returned slice.
func (p *Provisioning) Regions() []Region {
	return p.regions
}

// Region looks up a region by id.
func (p *Provisioning) Region(id string) (Region, bool) {
	i, ok := p.index[id]
	if !ok {
		return Region{}, false
	}
	return p.regions[i], true
}

// Has reports whether id was provisioned.
func (p *Provisioning) Has(id string) bool {
	_, ok := p.index[id]
	return ok
}

// Len returns the number of provisioned regions.
func (p *Provisioning) Len() int {
	return len(p.regions)
}
