package render

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"io"
	"math"

	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"

	omr "github.com/omrkit/omr"
	"github.com/omrkit/omr/internal/imaging"
	"github.com/omrkit/omr/internal/raster"
)

// DefaultDPI is the raster resolution used when no option overrides it.
const DefaultDPI = 300

// circleK is the control-point distance, as a fraction of the radius,
// that makes four cubic beziers approximate a circle.
const circleK = 0.5522847498307936

// RasterOption configures a RasterPainter.
type RasterOption func(*rasterConfig)

type rasterConfig struct {
	dpi       int
	transform omr.Matrix
}

// WithDPI sets the raster resolution in dots per inch.
func WithDPI(dpi int) RasterOption {
	return func(c *rasterConfig) { c.dpi = dpi }
}

// WithTransform applies an affine transform, in layout point space,
// to everything drawn. Tests use it to produce scaled, shifted, or
// rotated pages for the detector.
func WithTransform(m omr.Matrix) RasterOption {
	return func(c *rasterConfig) { c.transform = m }
}

// RasterPainter draws the sheet onto an in-memory grayscale page,
// white background and black ink, the same form a scanner produces.
type RasterPainter struct {
	page   *imaging.Gray
	m      omr.Matrix
	font   *sheetFont
	filler *raster.Filler
}

// NewRasterPainter creates a white page sized for the given layout
// dimensions at the configured DPI.
func NewRasterPainter(dim omr.Dimensions, opts ...RasterOption) (*RasterPainter, error) {
	cfg := rasterConfig{dpi: DefaultDPI, transform: omr.Identity()}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.dpi <= 0 {
		return nil, fmt.Errorf("%w: dpi %d", omr.ErrInvalidParameter, cfg.dpi)
	}
	if dim.Width <= 0 || dim.Height <= 0 {
		return nil, fmt.Errorf("%w: non-positive page dimensions", omr.ErrInvalidParameter)
	}
	f, err := regular()
	if err != nil {
		return nil, err
	}

	scale := float64(cfg.dpi) / 72
	w := int(math.Ceil(dim.Width * scale))
	h := int(math.Ceil(dim.Height * scale))
	return &RasterPainter{
		page:   imaging.NewGray(w, h),
		m:      omr.Scale(scale, scale).Multiply(cfg.transform),
		font:   f,
		filler: raster.NewFiller(),
	}, nil
}

// Transform returns the layout-point to device-pixel matrix,
// including any configured pre-transform.
func (p *RasterPainter) Transform() omr.Matrix { return p.m }

// Image returns the page as a standard grayscale image sharing the
// painter's pixel buffer.
func (p *RasterPainter) Image() *image.Gray { return p.page.Image() }

// EncodePNG writes the page as a PNG.
func (p *RasterPainter) EncodePNG(w io.Writer) error {
	if err := png.Encode(w, p.page.Image()); err != nil {
		return fmt.Errorf("render: encode png: %w", err)
	}
	return nil
}

// FillRect implements Painter.
func (p *RasterPainter) FillRect(x, y, w, h float64) {
	path := raster.NewPath()
	p.addQuad(path, x, y, w, h)
	p.fill(path, raster.NonZero)
}

// StrokeRect implements Painter. The stroke is centered on the
// rectangle edges and built as an even-odd ring of two rectangles.
func (p *RasterPainter) StrokeRect(x, y, w, h, width float64) {
	half := width / 2
	path := raster.NewPath()
	p.addQuad(path, x-half, y-half, w+width, h+width)
	inw, inh := w-width, h-width
	if inw > 0 && inh > 0 {
		p.addQuad(path, x+half, y+half, inw, inh)
	}
	p.fill(path, raster.EvenOdd)
}

// FillCircle implements Painter.
func (p *RasterPainter) FillCircle(cx, cy, r float64) {
	path := raster.NewPath()
	p.addCircle(path, cx, cy, r)
	p.fill(path, raster.NonZero)
}

// StrokeCircle implements Painter. The outline is an even-odd annulus
// between the outer and inner edge circles.
func (p *RasterPainter) StrokeCircle(cx, cy, r, width float64) {
	half := width / 2
	path := raster.NewPath()
	p.addCircle(path, cx, cy, r+half)
	if r-half > 0 {
		p.addCircle(path, cx, cy, r-half)
	}
	p.fill(path, raster.EvenOdd)
}

// Text implements Painter. Glyph outlines are shaped, transformed,
// and filled like any other shape on the page.
func (p *RasterPainter) Text(x, y, size float64, s string, align Align) {
	if s == "" {
		return
	}
	glyphs, advance := p.font.shapeString(s, size)
	switch align {
	case AlignCenter:
		x -= advance / 2
	case AlignRight:
		x -= advance
	}

	buf := p.font.bufs.Get().(*sfnt.Buffer)
	defer p.font.bufs.Put(buf)

	path := raster.NewPath()
	for _, g := range glyphs {
		segs, err := p.font.glyphSegments(buf, g.gid, size)
		if err != nil {
			continue
		}
		p.appendGlyph(path, segs, x+g.x, y+g.y)
	}
	p.fill(path, raster.NonZero)
}

func (p *RasterPainter) fill(path *raster.Path, rule raster.FillRule) {
	p.filler.Fill(path, p.page.Width(), p.page.Height(), rule, func(y, x int, cov []float32) {
		for i, c := range cov {
			if c > 0 {
				p.page.Blend(x+i, y, 0, c)
			}
		}
	})
}

// addQuad appends the rectangle's four corners transformed through
// the painter matrix, so affine page transforms keep rectangles true
// parallelograms.
func (p *RasterPainter) addQuad(path *raster.Path, x, y, w, h float64) {
	corners := [4]omr.Point{
		{X: x, Y: y},
		{X: x + w, Y: y},
		{X: x + w, Y: y + h},
		{X: x, Y: y + h},
	}
	d := p.m.TransformPoint(corners[0])
	path.MoveTo(d.X, d.Y)
	for _, c := range corners[1:] {
		d = p.m.TransformPoint(c)
		path.LineTo(d.X, d.Y)
	}
	path.Close()
}

// addCircle appends the circle as four cubic beziers whose control
// points pass through the painter matrix, turning circles into the
// proper ellipses under scale or skew.
func (p *RasterPainter) addCircle(path *raster.Path, cx, cy, r float64) {
	k := circleK * r
	quarters := [4][6]float64{
		{cx + r, cy + k, cx + k, cy + r, cx, cy + r},
		{cx - k, cy + r, cx - r, cy + k, cx - r, cy},
		{cx - r, cy - k, cx - k, cy - r, cx, cy - r},
		{cx + k, cy - r, cx + r, cy - k, cx + r, cy},
	}
	start := p.m.TransformPoint(omr.Point{X: cx + r, Y: cy})
	path.MoveTo(start.X, start.Y)
	for _, q := range quarters {
		c1 := p.m.TransformPoint(omr.Point{X: q[0], Y: q[1]})
		c2 := p.m.TransformPoint(omr.Point{X: q[2], Y: q[3]})
		end := p.m.TransformPoint(omr.Point{X: q[4], Y: q[5]})
		path.CubicTo(c1.X, c1.Y, c2.X, c2.Y, end.X, end.Y)
	}
	path.Close()
}

func (p *RasterPainter) appendGlyph(path *raster.Path, segs []sfnt.Segment, ox, oy float64) {
	at := func(pt fixed.Point26_6) omr.Point {
		return p.m.TransformPoint(omr.Point{X: ox + fixedPt(pt.X), Y: oy + fixedPt(pt.Y)})
	}
	for _, seg := range segs {
		switch seg.Op {
		case sfnt.SegmentOpMoveTo:
			d := at(seg.Args[0])
			path.MoveTo(d.X, d.Y)
		case sfnt.SegmentOpLineTo:
			d := at(seg.Args[0])
			path.LineTo(d.X, d.Y)
		case sfnt.SegmentOpQuadTo:
			c := at(seg.Args[0])
			d := at(seg.Args[1])
			path.QuadTo(c.X, c.Y, d.X, d.Y)
		case sfnt.SegmentOpCubeTo:
			c1 := at(seg.Args[0])
			c2 := at(seg.Args[1])
			d := at(seg.Args[2])
			path.CubicTo(c1.X, c1.Y, c2.X, c2.Y, d.X, d.Y)
		}
	}
}

// RenderPNG draws the sheet for the layout and returns PNG bytes.
func RenderPNG(l *omr.Layout, meta SheetMeta, opts ...RasterOption) ([]byte, error) {
	if l == nil {
		return nil, fmt.Errorf("%w: nil layout", omr.ErrInvalidParameter)
	}
	p, err := NewRasterPainter(l.Dimensions, opts...)
	if err != nil {
		return nil, err
	}
	if err := DrawSheet(p, l, meta); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := p.EncodePNG(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
