package scan

import (
	"fmt"
	"image"
	"math"

	omr "github.com/omrkit/omr"
	"github.com/omrkit/omr/internal/imaging"
)

// Marker component qualification bounds. The area band is relative to
// the printed marker size under the estimated page scale; the density
// floor rejects border lines and stray text, which can out-area a
// marker inside a corner window without ever looking like a solid
// square.
const (
	markerAreaLow  = 0.3
	markerAreaHigh = 3.0
	markerAspectLo = 0.5
	markerAspectHi = 2.0
	markerDensity  = 0.5
)

// findMarkers searches the four corner windows for the fiducial
// squares. Results are indexed in layout marker order: top-left,
// top-right, bottom-left, bottom-right.
func findMarkers(page *imaging.Gray, l *omr.Layout, cfg Config) ([4]omr.Point, [4]bool) {
	ink := page.InkThreshold()
	w, h := page.Width(), page.Height()
	ww := int(float64(w) * cfg.WindowFrac)
	wh := int(float64(h) * cfg.WindowFrac)

	scale := float64(w) / l.Dimensions.Width
	side := omr.MarkerSize * scale
	minArea := markerAreaLow * side * side
	maxArea := markerAreaHigh * side * side

	windows := [4]image.Rectangle{
		image.Rect(0, 0, ww, wh),
		image.Rect(w-ww, 0, w, wh),
		image.Rect(0, h-wh, ww, h),
		image.Rect(w-ww, h-wh, w, h),
	}

	var centers [4]omr.Point
	var found [4]bool
	for i, win := range windows {
		comp, ok := bestMarker(page.Components(win, ink), minArea, maxArea)
		if !ok {
			continue
		}
		centers[i] = omr.Point{X: comp.CX, Y: comp.CY}
		found[i] = true
	}
	return centers, found
}

// bestMarker picks the largest component that looks like a solid
// square within the expected size band.
func bestMarker(comps []imaging.Component, minArea, maxArea float64) (imaging.Component, bool) {
	var best imaging.Component
	ok := false
	for _, c := range comps {
		area := float64(c.Area)
		if area < minArea || area > maxArea {
			continue
		}
		aspect := float64(c.Width()) / float64(c.Height())
		if aspect < markerAspectLo || aspect > markerAspectHi {
			continue
		}
		if c.Density() < markerDensity {
			continue
		}
		if !ok || c.Area > best.Area {
			best, ok = c, true
		}
	}
	return best, ok
}

// checkMarkers enforces the geometric minimum for the rectification
// mode and the pairwise spacing consistency of the located markers.
func checkMarkers(l *omr.Layout, centers [4]omr.Point, found [4]bool, cfg Config) error {
	n := 0
	for _, ok := range found {
		if ok {
			n++
		}
	}
	need := 4
	if cfg.Affine {
		need = 3
	}
	if n < need {
		return fmt.Errorf("%w: located %d of 4 markers, need %d", omr.ErrAlignment, n, need)
	}

	var layoutPts, pagePts []omr.Point
	for i, m := range l.Markers {
		if !found[i] {
			continue
		}
		layoutPts = append(layoutPts, omr.Point{X: m.X, Y: m.Y})
		pagePts = append(pagePts, centers[i])
	}
	return checkSpacing(layoutPts, pagePts, cfg.Tolerance)
}

// checkSpacing verifies that every pairwise distance between located
// markers matches the layout under one common scale, within tol.
func checkSpacing(layoutPts, pagePts []omr.Point, tol float64) error {
	var ratios []float64
	for i := 0; i < len(layoutPts); i++ {
		for j := i + 1; j < len(layoutPts); j++ {
			dl := layoutPts[i].Distance(layoutPts[j])
			if dl == 0 {
				continue
			}
			ratios = append(ratios, pagePts[i].Distance(pagePts[j])/dl)
		}
	}
	if len(ratios) == 0 {
		return fmt.Errorf("%w: degenerate marker geometry", omr.ErrAlignment)
	}
	mean := 0.0
	for _, r := range ratios {
		mean += r
	}
	mean /= float64(len(ratios))
	if mean <= 0 {
		return fmt.Errorf("%w: degenerate marker geometry", omr.ErrAlignment)
	}
	for _, r := range ratios {
		if dev := math.Abs(r/mean - 1); dev > tol {
			return fmt.Errorf("%w: marker spacing off by %.1f%%, tolerance %.1f%%",
				omr.ErrAlignment, dev*100, tol*100)
		}
	}
	return nil
}
