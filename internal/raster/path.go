// Package raster provides scanline rasterization of filled vector
// shapes into per-pixel coverage, used for drawing sheets onto page
// images and for rasterizing shaped glyph outlines.
package raster

import "math"

// Point represents a 2D point (internal copy to avoid import cycle).
type Point struct {
	X, Y float64
}

// Tolerance is the maximum distance from the true curve when
// flattening beziers into line segments, in device pixels.
const Tolerance = 0.1

// circleK is the control-point offset factor approximating a quarter
// circle with one cubic bezier.
const circleK = 0.5522847498307936

// edge is one line segment of a flattened path, in device
// coordinates. dxdy is precomputed for x-intercept calculation.
type edge struct {
	x0, y0 float64
	x1, y1 float64
	dxdy   float64
}

// Path accumulates filled shapes as a flattened edge list in device
// coordinates. Curves are subdivided on insertion. A Path may hold
// several subpaths; subpaths left open are closed implicitly when the
// next one starts and at fill time.
type Path struct {
	edges   []edge
	start   Point
	current Point
	open    bool

	first                  bool
	xmin, xmax, ymin, ymax float64
}

// NewPath returns an empty path.
func NewPath() *Path {
	return &Path{first: true}
}

// Reset empties the path, keeping allocated edge storage.
func (p *Path) Reset() {
	p.edges = p.edges[:0]
	p.open = false
	p.first = true
}

// MoveTo starts a new subpath at (x, y), implicitly closing any open
// subpath.
func (p *Path) MoveTo(x, y float64) {
	p.closeSubpath()
	p.start = Point{x, y}
	p.current = p.start
	p.open = true
}

// LineTo appends a straight segment to (x, y).
func (p *Path) LineTo(x, y float64) {
	to := Point{x, y}
	p.addEdge(p.current, to)
	p.current = to
}

// QuadTo appends a quadratic bezier to (x, y) with control (cx, cy).
func (p *Path) QuadTo(cx, cy, x, y float64) {
	p.flattenQuadratic(p.current, Point{cx, cy}, Point{x, y})
	p.current = Point{x, y}
}

// CubicTo appends a cubic bezier to (x, y) with controls (c1x, c1y)
// and (c2x, c2y).
func (p *Path) CubicTo(c1x, c1y, c2x, c2y, x, y float64) {
	p.flattenCubic(p.current, Point{c1x, c1y}, Point{c2x, c2y}, Point{x, y})
	p.current = Point{x, y}
}

// Close closes the current subpath back to its starting point.
func (p *Path) Close() {
	p.closeSubpath()
}

// Circle appends a full circle approximated by four cubic beziers.
func (p *Path) Circle(cx, cy, r float64) {
	if r <= 0 {
		return
	}
	k := circleK * r
	p.MoveTo(cx+r, cy)
	p.CubicTo(cx+r, cy+k, cx+k, cy+r, cx, cy+r)
	p.CubicTo(cx-k, cy+r, cx-r, cy+k, cx-r, cy)
	p.CubicTo(cx-r, cy-k, cx-k, cy-r, cx, cy-r)
	p.CubicTo(cx+k, cy-r, cx+r, cy-k, cx+r, cy)
	p.Close()
}

// Rect appends an axis-aligned rectangle.
func (p *Path) Rect(x, y, w, h float64) {
	if w <= 0 || h <= 0 {
		return
	}
	p.MoveTo(x, y)
	p.LineTo(x+w, y)
	p.LineTo(x+w, y+h)
	p.LineTo(x, y+h)
	p.Close()
}

// Empty reports whether the path contributes no edges.
func (p *Path) Empty() bool {
	return len(p.edges) == 0
}

func (p *Path) closeSubpath() {
	if p.open && p.current != p.start {
		p.addEdge(p.current, p.start)
		p.current = p.start
	}
	p.open = false
}

func (p *Path) addEdge(a, b Point) {
	// Horizontal edges never cross a scanline boundary.
	dy := b.Y - a.Y
	if dy > -1e-9 && dy < 1e-9 {
		p.grow(a, b)
		return
	}
	p.edges = append(p.edges, edge{
		x0: a.X, y0: a.Y,
		x1: b.X, y1: b.Y,
		dxdy: (b.X - a.X) / dy,
	})
	p.grow(a, b)
}

func (p *Path) grow(a, b Point) {
	if p.first {
		p.xmin, p.xmax = math.Min(a.X, b.X), math.Max(a.X, b.X)
		p.ymin, p.ymax = math.Min(a.Y, b.Y), math.Max(a.Y, b.Y)
		p.first = false
		return
	}
	p.xmin = math.Min(p.xmin, math.Min(a.X, b.X))
	p.xmax = math.Max(p.xmax, math.Max(a.X, b.X))
	p.ymin = math.Min(p.ymin, math.Min(a.Y, b.Y))
	p.ymax = math.Max(p.ymax, math.Max(a.Y, b.Y))
}

// flattenQuadratic recursively subdivides a quadratic bezier until the
// control point sits within Tolerance of the chord.
func (p *Path) flattenQuadratic(p0, p1, p2 Point) {
	if distanceToLine(p1, p0, p2) < Tolerance {
		p.LineTo(p2.X, p2.Y)
		return
	}
	q0 := lerp(p0, p1, 0.5)
	q1 := lerp(p1, p2, 0.5)
	q2 := lerp(q0, q1, 0.5)
	p.flattenQuadratic(p0, q0, q2)
	p.flattenQuadratic(q2, q1, p2)
}

// flattenCubic recursively subdivides a cubic bezier using de
// Casteljau's algorithm.
func (p *Path) flattenCubic(p0, p1, p2, p3 Point) {
	d1 := distanceToLine(p1, p0, p3)
	d2 := distanceToLine(p2, p0, p3)
	if math.Max(d1, d2) < Tolerance {
		p.LineTo(p3.X, p3.Y)
		return
	}
	q0 := lerp(p0, p1, 0.5)
	q1 := lerp(p1, p2, 0.5)
	q2 := lerp(p2, p3, 0.5)
	r0 := lerp(q0, q1, 0.5)
	r1 := lerp(q1, q2, 0.5)
	s := lerp(r0, r1, 0.5)
	p.flattenCubic(p0, q0, r0, s)
	p.flattenCubic(s, r1, q2, p3)
}

func lerp(a, b Point, t float64) Point {
	return Point{
		X: a.X + (b.X-a.X)*t,
		Y: a.Y + (b.Y-a.Y)*t,
	}
}

// distanceToLine returns the perpendicular distance from p to the
// line through a and b.
func distanceToLine(p, a, b Point) float64 {
	abx, aby := b.X-a.X, b.Y-a.Y
	length := math.Sqrt(abx*abx + aby*aby)
	if length < 1e-10 {
		apx, apy := p.X-a.X, p.Y-a.Y
		return math.Sqrt(apx*apx + apy*apy)
	}
	return math.Abs((p.X-a.X)*aby-(p.Y-a.Y)*abx) / length
}
