package scan

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	omr "github.com/omrkit/omr"
)

// Rasterizer turns an uploaded document into page images. The shipped
// implementation extracts the images a scanner embedded, one per
// page; callers with vector PDFs can plug a full renderer instead.
type Rasterizer interface {
	Rasterize(ctx context.Context, doc []byte) (PageSource, error)
}

// pdfRasterizer pulls embedded page images out of a scanned PDF.
// Scanner output wraps one full-page raster per page, so extracting
// the image stream recovers the original pixels without rendering
// any PDF content.
type pdfRasterizer struct{}

// NewPDFRasterizer returns the pdfcpu-backed Rasterizer.
func NewPDFRasterizer() Rasterizer { return pdfRasterizer{} }

// Rasterize implements Rasterizer. Pages without an embedded image
// yield a decode error from the source, marking just that page.
func (pdfRasterizer) Rasterize(ctx context.Context, doc []byte) (PageSource, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(doc) == 0 {
		return nil, fmt.Errorf("%w: empty document", omr.ErrInvalidParameter)
	}

	conf := model.NewDefaultConfiguration()
	rs := bytes.NewReader(doc)
	count, err := api.PageCount(rs, conf)
	if err != nil {
		return nil, fmt.Errorf("read pdf: %w", err)
	}
	if count == 0 {
		return nil, fmt.Errorf("%w: pdf has no pages", omr.ErrInvalidParameter)
	}

	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	extracted, err := api.ExtractImagesRaw(rs, nil, conf)
	if err != nil {
		return nil, fmt.Errorf("extract pdf images: %w", err)
	}

	// Keep the largest image per page; scanners occasionally embed
	// thumbnails next to the page raster.
	blobs := make([][]byte, count)
	for _, byObj := range extracted {
		for _, img := range byObj {
			if img.PageNr < 1 || img.PageNr > count {
				continue
			}
			data, err := io.ReadAll(img)
			if err != nil {
				continue
			}
			if len(data) > len(blobs[img.PageNr-1]) {
				blobs[img.PageNr-1] = data
			}
		}
	}
	return NewBlobSource(blobs...), nil
}
