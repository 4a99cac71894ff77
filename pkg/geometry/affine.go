package geometry

// Affine is a 2-D affine transform:
//
//	x' = A*x + B*y + C
//	y' = D*x + E*y + F
type Affine struct {
	A, B, C float64
	D, E, F float64
}

// Identity returns the transform that leaves points unchanged.
func Identity() Affine {
	return Affine{A: 1, E: 1}
}

// ScaleOffset returns a transform that scales each axis independently and then
// shifts the result.
func ScaleOffset(sx, sy, ox, oy float64) Affine {
	return Affine{A: sx, C: ox, E: sy, F: oy}
}

// Apply maps p through the transform.
func (t Affine) Apply(p Point) Point {
	return Point{
		X: t.A*p.X + t.B*p.Y + t.C,
		Y: t.D*p.X + t.E*p.Y + t.F,
	}
}

// Then returns the transform that applies t first and u second.
func (t Affine) Then(u Affine) Affine {
	return Affine{
		A: u.A*t.A + u.B*t.D,
		B: u.A*t.B + u.B*t.E,
		C: u.A*t.C + u.B*t.F + u.C,
		D: u.D*t.A + u.E*t.D,
		E: u.D*t.B + u.E*t.E,
		F: u.D*t.C + u.E*t.F + u.F,
	}
}
