package render

import (
	"bytes"
	"fmt"

	"github.com/go-pdf/fpdf"

	omr "github.com/omrkit/omr"
)

// PDFPainter draws the sheet as a single-page vector PDF. The page
// unit is the point and the origin is the top-left corner, matching
// layout coordinates one to one. Text uses the PDF core Helvetica
// font, so the output embeds no font data.
type PDFPainter struct {
	pdf *fpdf.Fpdf
}

// NewPDFPainter creates a painter for one page of the given size.
func NewPDFPainter(dim omr.Dimensions) *PDFPainter {
	pdf := fpdf.NewCustom(&fpdf.InitType{
		UnitStr: "pt",
		Size:    fpdf.SizeType{Wd: dim.Width, Ht: dim.Height},
	})
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()
	pdf.SetFont("Helvetica", "", metaSize)
	return &PDFPainter{pdf: pdf}
}

// FillRect implements Painter.
func (p *PDFPainter) FillRect(x, y, w, h float64) {
	p.pdf.Rect(x, y, w, h, "F")
}

// StrokeRect implements Painter.
func (p *PDFPainter) StrokeRect(x, y, w, h, width float64) {
	p.pdf.SetLineWidth(width)
	p.pdf.Rect(x, y, w, h, "D")
}

// FillCircle implements Painter.
func (p *PDFPainter) FillCircle(cx, cy, r float64) {
	p.pdf.Circle(cx, cy, r, "F")
}

// StrokeCircle implements Painter.
func (p *PDFPainter) StrokeCircle(cx, cy, r, width float64) {
	p.pdf.SetLineWidth(width)
	p.pdf.Circle(cx, cy, r, "D")
}

// Text implements Painter. Alignment uses Helvetica metrics at the
// requested size.
func (p *PDFPainter) Text(x, y, size float64, s string, align Align) {
	p.pdf.SetFontSize(size)
	switch align {
	case AlignCenter:
		x -= p.pdf.GetStringWidth(s) / 2
	case AlignRight:
		x -= p.pdf.GetStringWidth(s)
	}
	p.pdf.Text(x, y, s)
}

// Bytes closes the document and returns the PDF file contents.
func (p *PDFPainter) Bytes() ([]byte, error) {
	if p.pdf.Err() {
		return nil, fmt.Errorf("render: pdf: %w", p.pdf.Error())
	}
	var buf bytes.Buffer
	if err := p.pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render: pdf output: %w", err)
	}
	return buf.Bytes(), nil
}

// RenderPDF draws the sheet for the layout and returns the PDF bytes.
func RenderPDF(l *omr.Layout, meta SheetMeta) ([]byte, error) {
	if l == nil {
		return nil, fmt.Errorf("%w: nil layout", omr.ErrInvalidParameter)
	}
	p := NewPDFPainter(l.Dimensions)
	if err := DrawSheet(p, l, meta); err != nil {
		return nil, err
	}
	return p.Bytes()
}
