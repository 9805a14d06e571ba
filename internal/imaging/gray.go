// Package imaging provides 8-bit grayscale page buffers and the
// binarization and connected-component primitives used by scan
// detection.
package imaging

import "image"

// Gray is a rectangular 8-bit grayscale buffer. 0 is black, 255 is
// white. Out-of-bounds reads return white, matching the paper
// background around a scanned page.
type Gray struct {
	width  int
	height int
	pix    []uint8
}

// NewGray creates a white buffer with the given dimensions.
func NewGray(width, height int) *Gray {
	g := &Gray{
		width:  width,
		height: height,
		pix:    make([]uint8, width*height),
	}
	g.Fill(255)
	return g
}

// Width returns the buffer width in pixels.
func (g *Gray) Width() int {
	return g.width
}

// Height returns the buffer height in pixels.
func (g *Gray) Height() int {
	return g.height
}

// Pix returns the raw pixel data, row-major.
func (g *Gray) Pix() []uint8 {
	return g.pix
}

// At returns the pixel value, white outside the buffer.
func (g *Gray) At(x, y int) uint8 {
	if x < 0 || x >= g.width || y < 0 || y >= g.height {
		return 255
	}
	return g.pix[y*g.width+x]
}

// Set writes a single pixel, ignoring out-of-bounds coordinates.
func (g *Gray) Set(x, y int, v uint8) {
	if x < 0 || x >= g.width || y < 0 || y >= g.height {
		return
	}
	g.pix[y*g.width+x] = v
}

// Fill sets every pixel to v.
func (g *Gray) Fill(v uint8) {
	for i := range g.pix {
		g.pix[i] = v
	}
}

// Blend composites value over the pixel with the given coverage in
// [0, 1]. Used when rasterizing ink onto a page.
func (g *Gray) Blend(x, y int, value uint8, cov float32) {
	if x < 0 || x >= g.width || y < 0 || y >= g.height || cov <= 0 {
		return
	}
	if cov >= 1 {
		g.pix[y*g.width+x] = value
		return
	}
	i := y*g.width + x
	old := float32(g.pix[i])
	g.pix[i] = uint8(old*(1-cov) + float32(value)*cov + 0.5)
}

// Image wraps the buffer as an image.Gray sharing the same backing
// pixels.
func (g *Gray) Image() *image.Gray {
	return &image.Gray{
		Pix:    g.pix,
		Stride: g.width,
		Rect:   image.Rect(0, 0, g.width, g.height),
	}
}

// FromImage converts any image to grayscale using Rec. 601 luma
// weights, with fast paths for the decoded formats scans arrive in.
func FromImage(img image.Image) *Gray {
	b := img.Bounds()
	g := &Gray{
		width:  b.Dx(),
		height: b.Dy(),
		pix:    make([]uint8, b.Dx()*b.Dy()),
	}

	switch src := img.(type) {
	case *image.Gray:
		for y := 0; y < g.height; y++ {
			copy(g.pix[y*g.width:(y+1)*g.width],
				src.Pix[(y+b.Min.Y-src.Rect.Min.Y)*src.Stride+(b.Min.X-src.Rect.Min.X):])
		}
	case *image.YCbCr:
		// JPEG scans: the Y plane is already luma.
		for y := 0; y < g.height; y++ {
			sy := y + b.Min.Y - src.Rect.Min.Y
			for x := 0; x < g.width; x++ {
				sx := x + b.Min.X - src.Rect.Min.X
				g.pix[y*g.width+x] = src.Y[sy*src.YStride+sx]
			}
		}
	case *image.RGBA:
		for y := 0; y < g.height; y++ {
			row := src.Pix[(y+b.Min.Y-src.Rect.Min.Y)*src.Stride:]
			for x := 0; x < g.width; x++ {
				i := (x + b.Min.X - src.Rect.Min.X) * 4
				g.pix[y*g.width+x] = luma(row[i], row[i+1], row[i+2])
			}
		}
	default:
		for y := 0; y < g.height; y++ {
			for x := 0; x < g.width; x++ {
				r, gr, bl, _ := img.At(x+b.Min.X, y+b.Min.Y).RGBA()
				g.pix[y*g.width+x] = luma(uint8(r>>8), uint8(gr>>8), uint8(bl>>8))
			}
		}
	}
	return g
}

func luma(r, g, b uint8) uint8 {
	return uint8((299*uint32(r) + 587*uint32(g) + 114*uint32(b)) / 1000)
}

// Bounds returns the buffer rectangle anchored at the origin.
func (g *Gray) Bounds() image.Rectangle {
	return image.Rect(0, 0, g.width, g.height)
}
