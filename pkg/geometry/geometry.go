// Package geometry provides the 2-D primitives used to lay out and hit-test the
// forecast map: points, polygons, affine transforms and geographic projection.
package geometry

import (
	"errors"
	"math"
)

// ErrDegeneratePolygon is returned when a polygon has fewer than three distinct vertices.
var ErrDegeneratePolygon = errors.New("polygon needs at least three vertices")

// Point is a position in screen pixel space.
type Point struct {
	X float64
	Y float64
}

// Distance returns the euclidean distance between two points.
func (p Point) Distance(q Point) float64 {
	return math.Hypot(q.X-p.X, q.Y-p.Y)
}

// Rect is an axis-aligned rectangle. Min is inclusive, Max is exclusive.
type Rect struct {
	Min Point
	Max Point
}

// Contains reports whether p lies inside the rectangle.
func (r Rect) Contains(p Point) bool {
	return p.X >= r.Min.X && p.X < r.Max.X &&
		p.Y >= r.Min.Y && p.Y < r.Max.Y
}

// Polygon returns the rectangle as a four-vertex polygon.
func (r Rect) Polygon() Polygon {
	return Polygon{
		{X: r.Min.X, Y: r.Min.Y},
		{X: r.Max.X, Y: r.Min.Y},
		{X: r.Max.X, Y: r.Max.Y},
		{X: r.Min.X, Y: r.Max.Y},
	}
}

// Polygon is a closed ring of vertices. The closing edge from the last vertex
// back to the first is implicit; a repeated closing vertex is tolerated.
type Polygon []Point

// Validate checks that the polygon can enclose an area.
func (pg Polygon) Validate() error {
	if len(pg.ring()) < 3 {
		return ErrDegeneratePolygon
	}
	return nil
}

// ring drops an explicit closing vertex if present.
func (pg Polygon) ring() Polygon {
	if n := len(pg); n > 1 && pg[0] == pg[n-1] {
		return pg[:n-1]
	}
	return pg
}

// Contains reports whether p lies inside the polygon using the crossing-number
// rule with half-open edges.
//
// Edges are evaluated with their endpoints ordered by ascending Y, so two
// polygons sharing an edge compute the identical crossing for it regardless of
// winding. A point on a shared vertical edge belongs to the polygon on its right;
// a point on a shared horizontal edge belongs to the polygon below it in screen
// space (larger Y). Repeated calls with the same input always agree.
func (pg Polygon) Contains(p Point) bool {
	ring := pg.ring()
	n := len(ring)
	if n < 3 {
		return false
	}

	inside := false
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		a, b := ring[j], ring[i]
		if a.Y > b.Y {
			a, b = b, a
		}
		// Half-open in Y: the lower endpoint is included, the upper excluded.
		if p.Y < a.Y || p.Y >= b.Y {
			continue
		}
		xCross := a.X + (p.Y-a.Y)*(b.X-a.X)/(b.Y-a.Y)
		if p.X >= xCross {
			inside = !inside
		}
	}
	return inside
}

// Bounds returns the smallest rectangle enclosing every vertex.
func (pg Polygon) Bounds() Rect {
	if len(pg) == 0 {
		return Rect{}
	}
	r := Rect{Min: pg[0], Max: pg[0]}
	for _, v := range pg[1:] {
		r.Min.X = math.Min(r.Min.X, v.X)
		r.Min.Y = math.Min(r.Min.Y, v.Y)
		r.Max.X = math.Max(r.Max.X, v.X)
		r.Max.Y = math.Max(r.Max.Y, v.Y)
	}
	return r
}

// Centroid returns the area centroid of the polygon, falling back to the vertex
// average for rings with zero area.
func (pg Polygon) Centroid() Point {
	ring := pg.ring()
	if len(ring) == 0 {
		return Point{}
	}

	var area, cx, cy float64
	for i, j := 0, len(ring)-1; i < len(ring); j, i = i, i+1 {
		cross := ring[j].X*ring[i].Y - ring[i].X*ring[j].Y
		area += cross
		cx += (ring[j].X + ring[i].X) * cross
		cy += (ring[j].Y + ring[i].Y) * cross
	}

	if math.Abs(area) < 1e-9 {
		var sx, sy float64
		for _, v := range ring {
			sx += v.X
			sy += v.Y
		}
		n := float64(len(ring))
		return Point{X: sx / n, Y: sy / n}
	}

	area *= 0.5
	return Point{X: cx / (6 * area), Y: cy / (6 * area)}
}
