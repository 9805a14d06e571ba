package omr

import (
	"fmt"
	"math"
)

// Homography represents a 3x3 projective transformation in row-major
// order:
//
//	| h11  h12  h13 |
//	| h21  h22  h23 |
//	| h31  h32  h33 |
//
// A point maps through the usual homogeneous division:
//
//	x' = (h11*x + h12*y + h13) / w
//	y' = (h21*x + h22*y + h23) / w
//	w  =  h31*x + h32*y + h33
//
// The detector builds one homography per scanned page, mapping layout
// coordinates to pixel coordinates, so that print-time geometry can be
// sampled directly on a skewed scan.
type Homography struct {
	H11, H12, H13 float64
	H21, H22, H23 float64
	H31, H32, H33 float64
}

// HomographyFromMatrix promotes an affine matrix to a homography.
func HomographyFromMatrix(m Matrix) Homography {
	return Homography{
		H11: m.A, H12: m.B, H13: m.C,
		H21: m.D, H22: m.E, H23: m.F,
		H31: 0, H32: 0, H33: 1,
	}
}

// Apply transforms a point through the homography.
func (h Homography) Apply(p Point) Point {
	w := h.H31*p.X + h.H32*p.Y + h.H33
	if math.Abs(w) < 1e-12 {
		w = 1e-12
	}
	return Point{
		X: (h.H11*p.X + h.H12*p.Y + h.H13) / w,
		Y: (h.H21*p.X + h.H22*p.Y + h.H23) / w,
	}
}

// LocalScale returns the average length change the homography applies
// to unit vectors at p. Unlike an affine matrix, a homography has no
// single global scale, so the value is evaluated per point.
func (h Homography) LocalScale(p Point) float64 {
	o := h.Apply(p)
	dx := h.Apply(Point{X: p.X + 1, Y: p.Y}).Sub(o).Length()
	dy := h.Apply(Point{X: p.X, Y: p.Y + 1}).Sub(o).Length()
	return (dx + dy) / 2
}

// Multiply composes two homographies (h * other): other is applied
// first, then h.
func (h Homography) Multiply(other Homography) Homography {
	return Homography{
		H11: h.H11*other.H11 + h.H12*other.H21 + h.H13*other.H31,
		H12: h.H11*other.H12 + h.H12*other.H22 + h.H13*other.H32,
		H13: h.H11*other.H13 + h.H12*other.H23 + h.H13*other.H33,
		H21: h.H21*other.H11 + h.H22*other.H21 + h.H23*other.H31,
		H22: h.H21*other.H12 + h.H22*other.H22 + h.H23*other.H32,
		H23: h.H21*other.H13 + h.H22*other.H23 + h.H23*other.H33,
		H31: h.H31*other.H11 + h.H32*other.H21 + h.H33*other.H31,
		H32: h.H31*other.H12 + h.H32*other.H22 + h.H33*other.H32,
		H33: h.H31*other.H13 + h.H32*other.H23 + h.H33*other.H33,
	}
}

// Adjugate returns the adjugate matrix. For a homography the adjugate
// acts as the inverse: homogeneous coordinates are scale-invariant, so
// the 1/det factor cancels during the perspective division.
func (h Homography) Adjugate() Homography {
	return Homography{
		H11: h.H22*h.H33 - h.H23*h.H32,
		H12: h.H13*h.H32 - h.H12*h.H33,
		H13: h.H12*h.H23 - h.H13*h.H22,
		H21: h.H23*h.H31 - h.H21*h.H33,
		H22: h.H11*h.H33 - h.H13*h.H31,
		H23: h.H13*h.H21 - h.H11*h.H23,
		H31: h.H21*h.H32 - h.H22*h.H31,
		H32: h.H12*h.H31 - h.H11*h.H32,
		H33: h.H11*h.H22 - h.H12*h.H21,
	}
}

// SquareToQuad returns the homography mapping the unit square
// (0,0) (1,0) (1,1) (0,1) onto the quadrilateral q given in the same
// cyclic order: top-left, top-right, bottom-right, bottom-left.
func SquareToQuad(q [4]Point) Homography {
	dx3 := q[0].X - q[1].X + q[2].X - q[3].X
	dy3 := q[0].Y - q[1].Y + q[2].Y - q[3].Y

	if dx3 == 0 && dy3 == 0 {
		// Quadrilateral is a parallelogram: plain affine case.
		return Homography{
			H11: q[1].X - q[0].X, H12: q[3].X - q[0].X, H13: q[0].X,
			H21: q[1].Y - q[0].Y, H22: q[3].Y - q[0].Y, H23: q[0].Y,
			H31: 0, H32: 0, H33: 1,
		}
	}

	dx1 := q[1].X - q[2].X
	dx2 := q[3].X - q[2].X
	dy1 := q[1].Y - q[2].Y
	dy2 := q[3].Y - q[2].Y
	den := dx1*dy2 - dx2*dy1

	h31 := (dx3*dy2 - dx2*dy3) / den
	h32 := (dx1*dy3 - dx3*dy1) / den

	return Homography{
		H11: q[1].X - q[0].X + h31*q[1].X,
		H12: q[3].X - q[0].X + h32*q[3].X,
		H13: q[0].X,
		H21: q[1].Y - q[0].Y + h31*q[1].Y,
		H22: q[3].Y - q[0].Y + h32*q[3].Y,
		H23: q[0].Y,
		H31: h31, H32: h32, H33: 1,
	}
}

// QuadToQuad returns the homography mapping the quadrilateral src onto
// dst. Both are given in cyclic corner order: top-left, top-right,
// bottom-right, bottom-left.
func QuadToQuad(src, dst [4]Point) Homography {
	srcToSquare := SquareToQuad(src).Adjugate()
	return SquareToQuad(dst).Multiply(srcToSquare)
}

// AffineFit computes the least-squares affine transform mapping src
// points onto dst points. It requires at least three non-collinear
// correspondences and is used for affine-mode rectification, where
// skew is assumed to have no perspective component.
func AffineFit(src, dst []Point) (Matrix, error) {
	if len(src) != len(dst) {
		return Identity(), fmt.Errorf("%w: mismatched point counts %d and %d", ErrInvalidParameter, len(src), len(dst))
	}
	if len(src) < 3 {
		return Identity(), fmt.Errorf("%w: affine fit needs at least 3 point pairs, got %d", ErrInvalidParameter, len(src))
	}

	// Normal equations for x' = a*x + b*y + c and y' = d*x + e*y + f.
	// Both share the same 3x3 system matrix.
	var sxx, sxy, syy, sx, sy, n float64
	var bx [3]float64
	var by [3]float64
	for i := range src {
		x, y := src[i].X, src[i].Y
		sxx += x * x
		sxy += x * y
		syy += y * y
		sx += x
		sy += y
		n++
		bx[0] += x * dst[i].X
		bx[1] += y * dst[i].X
		bx[2] += dst[i].X
		by[0] += x * dst[i].Y
		by[1] += y * dst[i].Y
		by[2] += dst[i].Y
	}

	m := [3][3]float64{
		{sxx, sxy, sx},
		{sxy, syy, sy},
		{sx, sy, n},
	}

	abc, ok := solve3(m, bx)
	if !ok {
		return Identity(), fmt.Errorf("%w: degenerate marker geometry for affine fit", ErrInvalidParameter)
	}
	def, _ := solve3(m, by)

	return Matrix{
		A: abc[0], B: abc[1], C: abc[2],
		D: def[0], E: def[1], F: def[2],
	}, nil
}

// solve3 solves a 3x3 linear system by Cramer's rule.
func solve3(m [3][3]float64, b [3]float64) ([3]float64, bool) {
	det := det3(m)
	if math.Abs(det) < 1e-10 {
		return [3]float64{}, false
	}
	var out [3]float64
	for col := 0; col < 3; col++ {
		sub := m
		for row := 0; row < 3; row++ {
			sub[row][col] = b[row]
		}
		out[col] = det3(sub) / det
	}
	return out, true
}

func det3(m [3][3]float64) float64 {
	return m[0][0]*(m[1][1]*m[2][2]-m[1][2]*m[2][1]) -
		m[0][1]*(m[1][0]*m[2][2]-m[1][2]*m[2][0]) +
		m[0][2]*(m[1][0]*m[2][1]-m[1][1]*m[2][0])
}
