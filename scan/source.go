package scan

import (
	"bytes"
	"context"
	"fmt"
	"image"

	// Registered decoders for the page image formats scanners emit.
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/tiff"

	omr "github.com/omrkit/omr"
)

// PageSource yields the page images of one uploaded scan batch.
// Implementations must be safe for concurrent Page calls; the
// pipeline decodes pages from worker goroutines.
type PageSource interface {
	// Pages returns the page count.
	Pages() int

	// Page decodes the zero-based page i.
	Page(ctx context.Context, i int) (image.Image, error)
}

// ImageSource serves pages already decoded in memory.
type ImageSource struct {
	imgs []image.Image
}

// NewImageSource wraps decoded images as a PageSource.
func NewImageSource(imgs ...image.Image) *ImageSource {
	return &ImageSource{imgs: imgs}
}

// Pages implements PageSource.
func (s *ImageSource) Pages() int { return len(s.imgs) }

// Page implements PageSource.
func (s *ImageSource) Page(ctx context.Context, i int) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if i < 0 || i >= len(s.imgs) {
		return nil, fmt.Errorf("%w: page %d of %d", omr.ErrInvalidParameter, i, len(s.imgs))
	}
	if s.imgs[i] == nil {
		return nil, fmt.Errorf("%w: page %d has no image", omr.ErrInvalidParameter, i)
	}
	return s.imgs[i], nil
}

// BlobSource decodes PNG, JPEG, or TIFF page files on demand.
type BlobSource struct {
	blobs [][]byte
}

// NewBlobSource wraps encoded page image files as a PageSource.
func NewBlobSource(blobs ...[]byte) *BlobSource {
	return &BlobSource{blobs: blobs}
}

// Pages implements PageSource.
func (s *BlobSource) Pages() int { return len(s.blobs) }

// Page implements PageSource.
func (s *BlobSource) Page(ctx context.Context, i int) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if i < 0 || i >= len(s.blobs) {
		return nil, fmt.Errorf("%w: page %d of %d", omr.ErrInvalidParameter, i, len(s.blobs))
	}
	if len(s.blobs[i]) == 0 {
		return nil, fmt.Errorf("page %d has no scan image", i)
	}
	img, _, err := image.Decode(bytes.NewReader(s.blobs[i]))
	if err != nil {
		return nil, fmt.Errorf("decode page %d: %w", i, err)
	}
	return img, nil
}
