package raster

import "math"

// FillRule selects how overlapping subpaths combine.
type FillRule int

// Fill rules.
const (
	NonZero FillRule = iota
	EvenOdd
)

// Filler rasterizes paths into per-pixel coverage. Internal buffers
// grow as needed and are reused across calls; a Filler is not safe
// for concurrent use.
type Filler struct {
	cover []float32
	area  []float32
}

// NewFiller returns an empty filler.
func NewFiller() *Filler {
	return &Filler{}
}

// Fill rasterizes the path clipped to the rectangle [0,w) x [0,h) and
// emits coverage row by row. The emit callback receives the row, the
// x of the first coverage value, and the coverage span; the slice is
// valid only during the call and values are in [0, 1].
//
// For each pixel the filler accumulates the signed vertical extent of
// crossing edges (cover) and its position-weighted share within the
// pixel (area); integrating the running sum left to right yields the
// exact signed area of the path inside each pixel.
func (f *Filler) Fill(p *Path, w, h int, rule FillRule, emit func(y, x int, coverage []float32)) {
	if p.Empty() || w <= 0 || h <= 0 {
		return
	}

	// A trailing open subpath fills as if closed.
	edges := p.edges
	if p.open && p.current != p.start {
		a, b := p.current, p.start
		if dy := b.Y - a.Y; dy > 1e-9 || dy < -1e-9 {
			edges = append(append([]edge(nil), p.edges...), edge{
				x0: a.X, y0: a.Y,
				x1: b.X, y1: b.Y,
				dxdy: (b.X - a.X) / dy,
			})
		}
	}

	xmin := maxInt(int(math.Floor(p.xmin)), 0)
	xmax := minInt(int(math.Floor(p.xmax))+1, w)
	ymin := maxInt(int(math.Floor(p.ymin)), 0)
	ymax := minInt(int(math.Floor(p.ymax))+1, h)
	if xmin >= xmax || ymin >= ymax {
		return
	}

	width := xmax - xmin
	if cap(f.cover) < width {
		f.cover = make([]float32, width)
		f.area = make([]float32, width)
	}
	cover := f.cover[:width]
	area := f.area[:width]

	for y := ymin; y < ymax; y++ {
		for i := range cover {
			cover[i] = 0
			area[i] = 0
		}
		rowTop, rowBot := float64(y), float64(y+1)
		touched := false
		for i := range edges {
			e := &edges[i]
			if math.Min(e.y0, e.y1) >= rowBot || math.Max(e.y0, e.y1) <= rowTop {
				continue
			}
			accumulateEdge(e, rowTop, rowBot, cover, area, xmin, xmax)
			touched = true
		}
		if !touched {
			continue
		}
		integrate(cover, area, rule)
		emit(y, xmin, cover)
	}
}

// accumulateEdge adds one edge's contribution to the cover and area
// buffers for the scanline [rowTop, rowBot). Buffers are indexed by
// x - bboxXMin. Edges spanning several pixel columns are split at
// column boundaries.
func accumulateEdge(e *edge, rowTop, rowBot float64, cover, area []float32, bboxXMin, bboxXMax int) {
	yTop := math.Max(rowTop, math.Min(e.y0, e.y1))
	yBot := math.Min(rowBot, math.Max(e.y0, e.y1))
	if yBot <= yTop {
		return
	}

	sign := float32(1)
	if e.y1 < e.y0 {
		sign = -1
	}

	xAtTop := e.x0 + e.dxdy*(yTop-e.y0)
	xAtBot := e.x0 + e.dxdy*(yBot-e.y0)
	xLeft, xRight := xAtTop, xAtBot
	if xLeft > xRight {
		xLeft, xRight = xRight, xLeft
	}

	pixLeft := int(math.Floor(xLeft))
	pixRight := int(math.Floor(xRight))

	if pixRight < bboxXMin {
		// Entirely left of the buffer: full-height crossing before
		// the first pixel.
		v := sign * float32(yBot-yTop)
		cover[0] += v
		area[0] += v
		return
	}
	if pixLeft >= bboxXMax {
		return
	}

	if pixLeft == pixRight {
		addColumn(e, yTop, yBot, sign, pixLeft, cover, area, bboxXMin, bboxXMax)
		return
	}

	dydx := 1 / e.dxdy
	for pix := pixLeft; pix <= pixRight; pix++ {
		yA := e.y0 + dydx*(float64(pix)-e.x0)
		yB := e.y0 + dydx*(float64(pix+1)-e.x0)
		segTop := math.Max(math.Min(yA, yB), yTop)
		segBot := math.Min(math.Max(yA, yB), yBot)
		if segBot <= segTop {
			continue
		}
		addColumn(e, segTop, segBot, sign, pix, cover, area, bboxXMin, bboxXMax)
	}
}

// addColumn accumulates an edge segment confined to one pixel column.
func addColumn(e *edge, yTop, yBot float64, sign float32, pix int, cover, area []float32, bboxXMin, bboxXMax int) {
	v := sign * float32(yBot-yTop)
	if pix < bboxXMin {
		cover[0] += v
		area[0] += v
		return
	}
	if pix >= bboxXMax {
		return
	}
	yMid := (yTop + yBot) / 2
	xMid := e.x0 + e.dxdy*(yMid-e.y0)
	xFrac := xMid - float64(pix)

	idx := pix - bboxXMin
	cover[idx] += v
	area[idx] += v * float32(1-xFrac)
}

// integrate converts accumulated cover/area into final coverage in
// place, applying the fill rule.
func integrate(cover, area []float32, rule FillRule) {
	var accum float32
	for i := range cover {
		raw := accum + area[i]
		accum += cover[i]
		if raw < 0 {
			raw = -raw
		}
		if rule == EvenOdd {
			mod := raw - 2*float32(int(raw/2))
			if mod > 1 {
				mod = 2 - mod
			}
			cover[i] = mod
			continue
		}
		if raw > 1 {
			raw = 1
		}
		cover[i] = raw
	}
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
