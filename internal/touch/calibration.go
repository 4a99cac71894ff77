package touch

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/avydash/avydash/pkg/geometry"
)

// Calibration errors.
var (
	ErrInvalidProfile     = errors.New("invalid calibration profile")
	ErrTooFewPoints       = errors.New("calibration needs at least three reference points")
	ErrCollinearReference = errors.New("calibration reference points are collinear")
)

// Profile maps raw controller coordinates to screen pixels.
//
// The raw point is optionally swapped, then scaled and offset per axis, then
// optionally mirrored within the screen.
type Profile struct {
	ScaleX  float64 `yaml:"scale_x" json:"scale_x"`
	ScaleY  float64 `yaml:"scale_y" json:"scale_y"`
	OffsetX float64 `yaml:"offset_x" json:"offset_x"`
	OffsetY float64 `yaml:"offset_y" json:"offset_y"`
	SwapXY  bool    `yaml:"swap_xy" json:"swap_xy"`
	FlipX   bool    `yaml:"flip_x" json:"flip_x"`
	FlipY   bool    `yaml:"flip_y" json:"flip_y"`

	// Screen size in pixels, used by the flips.
	Width  float64 `yaml:"width" json:"width"`
	Height float64 `yaml:"height" json:"height"`
}

// IdentityProfile returns a profile for a controller that already reports
// screen pixels.
func IdentityProfile(width, height float64) Profile {
	return Profile{ScaleX: 1, ScaleY: 1, Width: width, Height: height}
}

// Validate checks that the profile maps onto the screen.
func (p Profile) Validate() error {
	if p.ScaleX == 0 || p.ScaleY == 0 || math.IsNaN(p.ScaleX) || math.IsNaN(p.ScaleY) {
		return fmt.Errorf("%w: zero scale", ErrInvalidProfile)
	}
	if p.FlipX && p.Width <= 0 {
		return fmt.Errorf("%w: flip_x needs width", ErrInvalidProfile)
	}
	if p.FlipY && p.Height <= 0 {
		return fmt.Errorf("%w: flip_y needs height", ErrInvalidProfile)
	}
	return nil
}

// Affine returns the profile as a single transform.
func (p Profile) Affine() geometry.Affine {
	t := geometry.Identity()
	if p.SwapXY {
		t = geometry.Affine{B: 1, D: 1}
	}
	t = t.Then(geometry.ScaleOffset(p.ScaleX, p.ScaleY, p.OffsetX, p.OffsetY))
	if p.FlipX {
		t = t.Then(geometry.Affine{A: -1, C: p.Width - 1, E: 1})
	}
	if p.FlipY {
		t = t.Then(geometry.Affine{A: 1, E: -1, F: p.Height - 1})
	}
	return t
}

// Apply maps a raw controller point to screen space.
func (p Profile) Apply(raw geometry.Point) geometry.Point {
	return p.Affine().Apply(raw)
}

// ReferencePair is a raw reading taken while touching a known screen point.
type ReferencePair struct {
	Raw    geometry.Point `yaml:"raw" json:"raw"`
	Screen geometry.Point `yaml:"screen" json:"screen"`
}

// FitResult is a fitted profile and how well it explains the reference points.
type FitResult struct {
	Profile Profile
	// RMSError is the root mean square distance in pixels between the
	// reference screen points and the fitted mapping of their raw points.
	RMSError float64
}

// FitProfile derives a profile from reference pairs by least squares.
//
// A general affine transform is fitted per screen axis and then reduced to
// the nearest axis-aligned profile: the dominant raw axis of each screen axis
// decides SwapXY, and mirrored axes come out as negative scales.
func FitProfile(pairs []ReferencePair, width, height float64) (FitResult, error) {
	n := len(pairs)
	if n < 3 {
		return FitResult{}, ErrTooFewPoints
	}
	if collinear(pairs) {
		return FitResult{}, ErrCollinearReference
	}

	design := mat.NewDense(n, 3, nil)
	xs := make([]float64, n)
	ys := make([]float64, n)
	for i, pr := range pairs {
		design.Set(i, 0, pr.Raw.X)
		design.Set(i, 1, pr.Raw.Y)
		design.Set(i, 2, 1)
		xs[i] = pr.Screen.X
		ys[i] = pr.Screen.Y
	}

	var qr mat.QR
	qr.Factorize(design)

	cx := mat.NewVecDense(3, nil)
	if err := qr.SolveVecTo(cx, false, mat.NewVecDense(n, xs)); err != nil {
		return FitResult{}, fmt.Errorf("%w: %v", ErrCollinearReference, err)
	}
	cy := mat.NewVecDense(3, nil)
	if err := qr.SolveVecTo(cy, false, mat.NewVecDense(n, ys)); err != nil {
		return FitResult{}, fmt.Errorf("%w: %v", ErrCollinearReference, err)
	}

	a, b, c := cx.AtVec(0), cx.AtVec(1), cx.AtVec(2)
	d, e, f := cy.AtVec(0), cy.AtVec(1), cy.AtVec(2)

	p := Profile{OffsetX: c, OffsetY: f, Width: width, Height: height}
	if math.Abs(b)+math.Abs(d) > math.Abs(a)+math.Abs(e) {
		p.SwapXY = true
		p.ScaleX, p.ScaleY = b, d
	} else {
		p.ScaleX, p.ScaleY = a, e
	}
	if err := p.Validate(); err != nil {
		return FitResult{}, fmt.Errorf("%w: %v", ErrCollinearReference, err)
	}

	var sum float64
	for _, pr := range pairs {
		dist := p.Apply(pr.Raw).Distance(pr.Screen)
		sum += dist * dist
	}

	return FitResult{Profile: p, RMSError: math.Sqrt(sum / float64(n))}, nil
}

// collinear reports whether the raw points span less than a plane, using the
// determinant of their covariance relative to its trace.
func collinear(pairs []ReferencePair) bool {
	var mx, my float64
	for _, pr := range pairs {
		mx += pr.Raw.X
		my += pr.Raw.Y
	}
	mx /= float64(len(pairs))
	my /= float64(len(pairs))

	var sxx, syy, sxy float64
	for _, pr := range pairs {
		dx, dy := pr.Raw.X-mx, pr.Raw.Y-my
		sxx += dx * dx
		syy += dy * dy
		sxy += dx * dy
	}
	trace := sxx + syy
	return trace == 0 || sxx*syy-sxy*sxy <= 1e-9*trace*trace
}
