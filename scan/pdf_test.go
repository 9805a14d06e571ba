package scan

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/go-pdf/fpdf"

	omr "github.com/omrkit/omr"
)

// buildScanPDF assembles a PDF with one page per entry; each non-nil
// entry is embedded as a full-page PNG, a nil entry stays empty.
func buildScanPDF(t *testing.T, dim omr.Dimensions, pages ...[]byte) []byte {
	t.Helper()
	pdf := fpdf.NewCustom(&fpdf.InitType{
		UnitStr: "pt",
		Size:    fpdf.SizeType{Wd: dim.Width, Ht: dim.Height},
	})
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	opts := fpdf.ImageOptions{ImageType: "PNG"}
	for i, data := range pages {
		pdf.AddPage()
		if data == nil {
			continue
		}
		name := fmt.Sprintf("page%d", i)
		pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(data))
		pdf.ImageOptions(name, 0, 0, dim.Width, dim.Height, false, opts, 0, "")
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		t.Fatalf("pdf output: %v", err)
	}
	return buf.Bytes()
}

func TestPDFRasterizer_RoundTrip(t *testing.T) {
	l := testLayout(t)
	answers := map[string]omr.Selection{
		"Q2": omr.NewSelection("D"),
		"Q6": omr.NewSelection("A", "E"),
	}
	page := renderPage(t, l, "3141", answers)
	doc := buildScanPDF(t, l.Dimensions, pngBlob(t, page))

	src, err := NewPDFRasterizer().Rasterize(context.Background(), doc)
	if err != nil {
		t.Fatalf("Rasterize: %v", err)
	}
	if src.Pages() != 1 {
		t.Fatalf("Pages = %d, want 1", src.Pages())
	}

	det, err := NewDetector(l)
	if err != nil {
		t.Fatalf("NewDetector: %v", err)
	}
	img, err := src.Page(context.Background(), 0)
	if err != nil {
		t.Fatalf("Page(0): %v", err)
	}
	resp, err := det.DetectPage(img)
	if err != nil {
		t.Fatalf("DetectPage: %v", err)
	}
	if resp.StudentID != "3141" {
		t.Errorf("StudentID = %q, want 3141", resp.StudentID)
	}
	sameAnswers(t, resp.Answers, answers)
}

func TestPDFRasterizer_EmptyPage(t *testing.T) {
	l := testLayout(t)
	blob := pngBlob(t, whitePage(40, 60))
	doc := buildScanPDF(t, l.Dimensions, blob, nil)

	src, err := NewPDFRasterizer().Rasterize(context.Background(), doc)
	if err != nil {
		t.Fatalf("Rasterize: %v", err)
	}
	if src.Pages() != 2 {
		t.Fatalf("Pages = %d, want 2", src.Pages())
	}
	if _, err := src.Page(context.Background(), 0); err != nil {
		t.Errorf("Page(0): %v", err)
	}
	if _, err := src.Page(context.Background(), 1); err == nil || !strings.Contains(err.Error(), "no scan image") {
		t.Errorf("empty page err = %v", err)
	}
}

func TestPDFRasterizer_BadInput(t *testing.T) {
	r := NewPDFRasterizer()

	if _, err := r.Rasterize(context.Background(), nil); !errors.Is(err, omr.ErrInvalidParameter) {
		t.Errorf("empty doc err = %v, want ErrInvalidParameter", err)
	}
	if _, err := r.Rasterize(context.Background(), []byte("not a pdf")); err == nil {
		t.Error("garbage doc did not fail")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := r.Rasterize(ctx, []byte("%PDF-1.4")); !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled err = %v, want context.Canceled", err)
	}
}
