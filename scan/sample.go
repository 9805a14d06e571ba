package scan

import (
	"math"

	omr "github.com/omrkit/omr"
	"github.com/omrkit/omr/internal/imaging"
)

// samplePage measures the fill ratio of every bubble on the page, in
// layout order: question options first, then the ID grid rows. The
// flat slice pairs with decodePage, which walks the layout in the
// same order.
func samplePage(page *imaging.Gray, l *omr.Layout, pm pageMap, cfg Config) []float64 {
	ink := page.InkThreshold()
	ratios := make([]float64, 0, bubbleTotal(l))
	for _, q := range l.Questions {
		for _, o := range q.Options {
			ratios = append(ratios, sampleBubble(page, ink, pm, o.X, o.Y, o.Radius, cfg))
		}
	}
	for _, col := range l.StudentID {
		for _, b := range col.Rows {
			ratios = append(ratios, sampleBubble(page, ink, pm, b.X, b.Y, b.Radius, cfg))
		}
	}
	return ratios
}

func bubbleTotal(l *omr.Layout) int {
	n := 0
	for _, q := range l.Questions {
		n += len(q.Options)
	}
	for _, col := range l.StudentID {
		n += len(col.Rows)
	}
	return n
}

func sampleBubble(page *imaging.Gray, ink uint8, pm pageMap, x, y, r float64, cfg Config) float64 {
	center := pm.point(omr.Point{X: x, Y: y})
	radius := pm.radius(omr.Point{X: x, Y: y}, r) * cfg.SampleScale
	return fillRatio(page, ink, center.X, center.Y, radius)
}

// fillRatio returns the fraction of dark pixels inside the disc of
// the given radius. Pixels outside the page count as paper, so a
// bubble mapped off the page reads blank rather than filled.
func fillRatio(page *imaging.Gray, ink uint8, cx, cy, r float64) float64 {
	if r < 1 {
		r = 1
	}
	x0, x1 := int(math.Floor(cx-r)), int(math.Ceil(cx+r))
	y0, y1 := int(math.Floor(cy-r)), int(math.Ceil(cy+r))
	r2 := r * r

	total, dark := 0, 0
	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			dx := float64(x) + 0.5 - cx
			dy := float64(y) + 0.5 - cy
			if dx*dx+dy*dy > r2 {
				continue
			}
			total++
			if page.At(x, y) < ink {
				dark++
			}
		}
	}
	if total == 0 {
		return 0
	}
	return float64(dark) / float64(total)
}

// classify turns the page's fill ratios into filled flags. The
// threshold adapts to the ratio distribution: it is the larger of the
// absolute floor and RelativeFill times the page maximum, so a
// uniformly dark scan does not classify everything as filled and a
// blank page classifies nothing. The low-confidence flag is raised
// when too many ratios crowd the threshold to separate filled from
// empty with margin.
func classify(ratios []float64, cfg Config) (filled []bool, threshold float64, lowConfidence bool) {
	maxRatio := 0.0
	for _, r := range ratios {
		if r > maxRatio {
			maxRatio = r
		}
	}
	threshold = cfg.FillThreshold
	if rel := cfg.RelativeFill * maxRatio; rel > threshold {
		threshold = rel
	}

	filled = make([]bool, len(ratios))
	ambiguous := 0
	for i, r := range ratios {
		filled[i] = r >= threshold && r >= cfg.MinDarkness
		if math.Abs(r-threshold) <= cfg.AmbiguousBand {
			ambiguous++
		}
	}
	if len(ratios) > 0 && float64(ambiguous)/float64(len(ratios)) > cfg.AmbiguousFraction {
		lowConfidence = true
	}
	return filled, threshold, lowConfidence
}
