package render

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/go-text/typesetting/di"
	"github.com/go-text/typesetting/font"
	"github.com/go-text/typesetting/language"
	"github.com/go-text/typesetting/shaping"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"
	"golang.org/x/text/unicode/bidi"
)

// shapedGlyph is one positioned glyph of a shaped string: a glyph
// index in the sheet font plus its offset from the string origin on
// the baseline, in points.
type shapedGlyph struct {
	gid  sfnt.GlyphIndex
	x, y float64
}

// sheetFont bundles the two views of one face that raster text needs:
// the typesetting Font drives HarfBuzz shaping, the sfnt Font yields
// the outlines the scanline filler consumes. The parsed fonts are
// read-only and safe for concurrent use; font.Face and sfnt.Buffer
// are not, so faces are created per call and buffers and shapers are
// pooled.
type sheetFont struct {
	shape   *font.Font
	outline *sfnt.Font

	shapers sync.Pool
	bufs    sync.Pool
}

func newSheetFont(ttf []byte) (*sheetFont, error) {
	face, err := font.ParseTTF(bytes.NewReader(ttf))
	if err != nil {
		return nil, fmt.Errorf("render: parse font: %w", err)
	}
	outline, err := sfnt.Parse(ttf)
	if err != nil {
		return nil, fmt.Errorf("render: parse font outlines: %w", err)
	}
	return &sheetFont{
		shape:   face.Font,
		outline: outline,
		shapers: sync.Pool{New: func() any { return &shaping.HarfbuzzShaper{} }},
		bufs:    sync.Pool{New: func() any { return &sfnt.Buffer{} }},
	}, nil
}

var (
	regularOnce sync.Once
	regularFont *sheetFont
	regularErr  error
)

// regular returns the shared sheet font, the embedded Go Regular face.
func regular() (*sheetFont, error) {
	regularOnce.Do(func() {
		regularFont, regularErr = newSheetFont(goregular.TTF)
	})
	return regularFont, regularErr
}

// textRun is a directional slice of an input string.
type textRun struct {
	text string
	rtl  bool
}

// visualRuns splits s into directional runs in left-to-right display
// order, so mixed-direction header text lays out correctly.
func visualRuns(s string) []textRun {
	var p bidi.Paragraph
	if _, err := p.SetString(s); err != nil {
		return []textRun{{text: s}}
	}
	ordering, err := p.Order()
	if err != nil {
		return []textRun{{text: s}}
	}
	runs := make([]textRun, 0, ordering.NumRuns())
	for i := 0; i < ordering.NumRuns(); i++ {
		run := ordering.Run(i)
		runs = append(runs, textRun{
			text: run.String(),
			rtl:  run.Direction() == bidi.RightToLeft,
		})
	}
	return runs
}

// shapeString lays out s at the given size and returns the positioned
// glyphs and the total advance, both in points.
func (f *sheetFont) shapeString(s string, size float64) ([]shapedGlyph, float64) {
	if s == "" {
		return nil, 0
	}
	var glyphs []shapedGlyph
	var pen float64
	for _, run := range visualRuns(s) {
		glyphs, pen = f.shapeRun(glyphs, pen, run, size)
	}
	return glyphs, pen
}

func (f *sheetFont) shapeRun(glyphs []shapedGlyph, pen float64, run textRun, size float64) ([]shapedGlyph, float64) {
	runes := []rune(run.text)
	if len(runes) == 0 {
		return glyphs, pen
	}
	dir := di.DirectionLTR
	if run.rtl {
		dir = di.DirectionRTL
	}
	input := shaping.Input{
		Text:      runes,
		RunStart:  0,
		RunEnd:    len(runes),
		Direction: dir,
		Face:      font.NewFace(f.shape),
		Size:      fixed.Int26_6(size * 64),
		Script:    runScript(runes),
		Language:  language.NewLanguage("en"),
	}

	shaper := f.shapers.Get().(*shaping.HarfbuzzShaper)
	out := shaper.Shape(input)
	f.shapers.Put(shaper)

	for _, g := range out.Glyphs {
		glyphs = append(glyphs, shapedGlyph{
			gid: sfnt.GlyphIndex(g.GlyphID),
			// Shaping offsets are y-up; the page is y-down.
			x: pen + fixedPt(g.XOffset),
			y: -fixedPt(g.YOffset),
		})
		pen += fixedPt(g.Advance)
	}
	return glyphs, pen
}

// runScript returns the script of the first non-space rune. Runs come
// out of the bidi split single-script for the text sheets carry.
func runScript(runes []rune) language.Script {
	for _, r := range runes {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			continue
		}
		return language.LookupScript(r)
	}
	return language.Latin
}

// glyphSegments loads the outline for gid scaled to the given size.
// Returned coordinates are points with y growing down and the origin
// at the glyph's baseline position.
func (f *sheetFont) glyphSegments(buf *sfnt.Buffer, gid sfnt.GlyphIndex, size float64) ([]sfnt.Segment, error) {
	ppem := fixed.Int26_6(size * 64)
	return f.outline.LoadGlyph(buf, gid, ppem, nil)
}

func fixedPt(v fixed.Int26_6) float64 {
	return float64(v) / 64
}
