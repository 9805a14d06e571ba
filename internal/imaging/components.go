package imaging

import "image"

// Component is one 4-connected region of ink pixels.
type Component struct {
	// Area is the pixel count.
	Area int

	// CX, CY is the centroid in buffer coordinates.
	CX, CY float64

	// Bounding box, inclusive of Min and Max pixels.
	MinX, MinY, MaxX, MaxY int
}

// Width returns the bounding-box width in pixels.
func (c Component) Width() int {
	return c.MaxX - c.MinX + 1
}

// Height returns the bounding-box height in pixels.
func (c Component) Height() int {
	return c.MaxY - c.MinY + 1
}

// Density is the share of the bounding box covered by ink. A solid
// square approaches 1; thin strokes crossing the window score low.
func (c Component) Density() float64 {
	return float64(c.Area) / float64(c.Width()*c.Height())
}

// Components finds 4-connected regions of pixels darker than
// threshold inside the window, which is clamped to the buffer. The
// scan is iterative flood fill over a visited map sized to the
// window.
func (g *Gray) Components(window image.Rectangle, threshold uint8) []Component {
	r := window.Intersect(g.Bounds())
	if r.Empty() {
		return nil
	}

	w, h := r.Dx(), r.Dy()
	visited := make([]bool, w*h)
	queue := make([]int, 0, 256)
	var out []Component

	dark := func(x, y int) bool {
		return g.pix[y*g.width+x] < threshold
	}

	for sy := r.Min.Y; sy < r.Max.Y; sy++ {
		for sx := r.Min.X; sx < r.Max.X; sx++ {
			idx := (sy-r.Min.Y)*w + (sx - r.Min.X)
			if visited[idx] || !dark(sx, sy) {
				continue
			}

			comp := Component{MinX: sx, MinY: sy, MaxX: sx, MaxY: sy}
			var sumX, sumY int
			queue = append(queue[:0], idx)
			visited[idx] = true

			for len(queue) > 0 {
				cur := queue[len(queue)-1]
				queue = queue[:len(queue)-1]
				cx := cur%w + r.Min.X
				cy := cur/w + r.Min.Y

				comp.Area++
				sumX += cx
				sumY += cy
				if cx < comp.MinX {
					comp.MinX = cx
				}
				if cx > comp.MaxX {
					comp.MaxX = cx
				}
				if cy < comp.MinY {
					comp.MinY = cy
				}
				if cy > comp.MaxY {
					comp.MaxY = cy
				}

				for _, d := range [4][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}} {
					nx, ny := cx+d[0], cy+d[1]
					if nx < r.Min.X || nx >= r.Max.X || ny < r.Min.Y || ny >= r.Max.Y {
						continue
					}
					nidx := (ny-r.Min.Y)*w + (nx - r.Min.X)
					if visited[nidx] || !dark(nx, ny) {
						continue
					}
					visited[nidx] = true
					queue = append(queue, nidx)
				}
			}

			comp.CX = float64(sumX) / float64(comp.Area)
			comp.CY = float64(sumY) / float64(comp.Area)
			out = append(out, comp)
		}
	}
	return out
}
