package scan

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"strings"
	"testing"

	omr "github.com/omrkit/omr"
)

func pngBlob(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}
	return buf.Bytes()
}

func TestImageSource(t *testing.T) {
	img := whitePage(12, 8)
	src := NewImageSource(img, nil)

	if src.Pages() != 2 {
		t.Fatalf("Pages = %d, want 2", src.Pages())
	}
	got, err := src.Page(context.Background(), 0)
	if err != nil {
		t.Fatalf("Page(0): %v", err)
	}
	if got != img {
		t.Error("Page(0) returned a different image")
	}

	if _, err := src.Page(context.Background(), 1); !errors.Is(err, omr.ErrInvalidParameter) {
		t.Errorf("nil page err = %v, want ErrInvalidParameter", err)
	}
	if _, err := src.Page(context.Background(), 2); !errors.Is(err, omr.ErrInvalidParameter) {
		t.Errorf("out of range err = %v, want ErrInvalidParameter", err)
	}
	if _, err := src.Page(context.Background(), -1); !errors.Is(err, omr.ErrInvalidParameter) {
		t.Errorf("negative index err = %v, want ErrInvalidParameter", err)
	}
}

func TestBlobSource(t *testing.T) {
	src := NewBlobSource(pngBlob(t, whitePage(12, 8)))

	if src.Pages() != 1 {
		t.Fatalf("Pages = %d, want 1", src.Pages())
	}
	img, err := src.Page(context.Background(), 0)
	if err != nil {
		t.Fatalf("Page(0): %v", err)
	}
	b := img.Bounds()
	if b.Dx() != 12 || b.Dy() != 8 {
		t.Errorf("decoded %dx%d, want 12x8", b.Dx(), b.Dy())
	}
}

func TestBlobSource_BadInput(t *testing.T) {
	src := NewBlobSource(nil, []byte("not an image"))

	if _, err := src.Page(context.Background(), 0); err == nil || !strings.Contains(err.Error(), "no scan image") {
		t.Errorf("empty blob err = %v", err)
	}
	if _, err := src.Page(context.Background(), 1); err == nil || !strings.Contains(err.Error(), "decode page 1") {
		t.Errorf("garbage blob err = %v", err)
	}
	if _, err := src.Page(context.Background(), 7); !errors.Is(err, omr.ErrInvalidParameter) {
		t.Errorf("out of range err = %v, want ErrInvalidParameter", err)
	}
}

func TestPageSource_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := NewImageSource(whitePage(4, 4)).Page(ctx, 0); !errors.Is(err, context.Canceled) {
		t.Errorf("ImageSource err = %v, want context.Canceled", err)
	}
	if _, err := NewBlobSource([]byte{1}).Page(ctx, 0); !errors.Is(err, context.Canceled) {
		t.Errorf("BlobSource err = %v, want context.Canceled", err)
	}
}
