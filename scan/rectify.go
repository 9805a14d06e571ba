package scan

import (
	"fmt"

	omr "github.com/omrkit/omr"
)

// pageMap carries the layout-point to page-pixel transform for one
// scanned page.
type pageMap struct {
	h omr.Homography
}

// rectify builds the mapping from the located marker centers.
// Perspective mode pins the four layout corners to the four located
// centroids; affine mode least-squares fits whatever markers were
// found, three or more.
func rectify(l *omr.Layout, centers [4]omr.Point, found [4]bool, affine bool) (pageMap, error) {
	if affine {
		var src, dst []omr.Point
		for i, m := range l.Markers {
			if !found[i] {
				continue
			}
			src = append(src, omr.Point{X: m.X, Y: m.Y})
			dst = append(dst, centers[i])
		}
		m, err := omr.AffineFit(src, dst)
		if err != nil {
			return pageMap{}, fmt.Errorf("%w: affine fit: %v", omr.ErrAlignment, err)
		}
		return pageMap{h: omr.HomographyFromMatrix(m)}, nil
	}

	for i, ok := range found {
		if !ok {
			return pageMap{}, fmt.Errorf("%w: marker %d not located", omr.ErrAlignment, i)
		}
	}
	quad, err := l.MarkerQuad()
	if err != nil {
		return pageMap{}, err
	}
	// Located centers are in reading order; the quad is cyclic.
	pixQuad := [4]omr.Point{centers[0], centers[1], centers[3], centers[2]}
	return pageMap{h: omr.QuadToQuad(quad, pixQuad)}, nil
}

// point maps a layout coordinate onto the page.
func (pm pageMap) point(p omr.Point) omr.Point {
	return pm.h.Apply(p)
}

// radius maps a layout length at p onto the page using the local
// scale of the transform.
func (pm pageMap) radius(p omr.Point, r float64) float64 {
	return pm.h.LocalScale(p) * r
}
