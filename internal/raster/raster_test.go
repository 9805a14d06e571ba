package raster

import (
	"math"
	"testing"
)

// sumCoverage rasterizes the path and returns total coverage plus a
// dense w x h grid for spot checks.
func sumCoverage(t *testing.T, p *Path, w, h int, rule FillRule) (float64, []float32) {
	t.Helper()
	grid := make([]float32, w*h)
	var sum float64
	NewFiller().Fill(p, w, h, rule, func(y, x int, coverage []float32) {
		for i, c := range coverage {
			if c < 0 || c > 1 {
				t.Fatalf("coverage out of range at (%d,%d): %v", x+i, y, c)
			}
			grid[y*w+x+i] = c
			sum += float64(c)
		}
	})
	return sum, grid
}

func TestFill_AlignedRect(t *testing.T) {
	p := NewPath()
	p.Rect(2, 3, 4, 5)

	sum, grid := sumCoverage(t, p, 10, 12, NonZero)
	if math.Abs(sum-20) > 1e-4 {
		t.Errorf("total coverage = %v, want 20", sum)
	}
	if got := grid[5*10+3]; got != 1 {
		t.Errorf("interior pixel coverage = %v, want 1", got)
	}
	if got := grid[5*10+1]; got != 0 {
		t.Errorf("pixel left of rect = %v, want 0", got)
	}
	if got := grid[5*10+6]; got != 0 {
		t.Errorf("pixel right of rect = %v, want 0", got)
	}
	if got := grid[2*10+3]; got != 0 {
		t.Errorf("pixel above rect = %v, want 0", got)
	}
}

func TestFill_HalfPixelRect(t *testing.T) {
	p := NewPath()
	p.Rect(2.5, 3, 1, 1)

	sum, grid := sumCoverage(t, p, 10, 10, NonZero)
	if math.Abs(sum-1) > 1e-4 {
		t.Errorf("total coverage = %v, want 1", sum)
	}
	if got := grid[3*10+2]; math.Abs(float64(got)-0.5) > 1e-4 {
		t.Errorf("left half pixel = %v, want 0.5", got)
	}
	if got := grid[3*10+3]; math.Abs(float64(got)-0.5) > 1e-4 {
		t.Errorf("right half pixel = %v, want 0.5", got)
	}
}

func TestFill_CircleArea(t *testing.T) {
	p := NewPath()
	p.Circle(10, 10, 6)

	sum, grid := sumCoverage(t, p, 20, 20, NonZero)
	want := math.Pi * 36
	if math.Abs(sum-want) > want*0.02 {
		t.Errorf("circle coverage = %v, want %v within 2%%", sum, want)
	}
	if got := grid[10*20+10]; got < 0.999 {
		t.Errorf("circle center coverage = %v, want about 1", got)
	}
	if got := grid[1*20+1]; got != 0 {
		t.Errorf("far corner coverage = %v, want 0", got)
	}
}

func TestFill_EvenOddAnnulus(t *testing.T) {
	p := NewPath()
	p.Rect(1, 1, 8, 8)
	p.Rect(3, 3, 4, 4)

	nz, _ := sumCoverage(t, p, 12, 12, NonZero)
	if math.Abs(nz-64) > 1e-3 {
		t.Errorf("nonzero coverage = %v, want 64", nz)
	}

	eo, grid := sumCoverage(t, p, 12, 12, EvenOdd)
	if math.Abs(eo-48) > 1e-3 {
		t.Errorf("even-odd coverage = %v, want 48", eo)
	}
	if got := grid[5*12+5]; got != 0 {
		t.Errorf("even-odd hole pixel = %v, want 0", got)
	}
	if got := grid[2*12+2]; got != 1 {
		t.Errorf("even-odd ring pixel = %v, want 1", got)
	}
}

func TestFill_ClippedToCanvas(t *testing.T) {
	p := NewPath()
	p.Rect(-5, -5, 10, 10)

	sum, _ := sumCoverage(t, p, 8, 8, NonZero)
	if math.Abs(sum-25) > 1e-3 {
		t.Errorf("clipped coverage = %v, want 25", sum)
	}
}

func TestFill_ImplicitClose(t *testing.T) {
	// Open triangle: filling treats it as closed.
	p := NewPath()
	p.MoveTo(0, 0)
	p.LineTo(8, 0)
	p.LineTo(0, 8)

	sum, _ := sumCoverage(t, p, 10, 10, NonZero)
	if math.Abs(sum-32) > 0.5 {
		t.Errorf("triangle coverage = %v, want about 32", sum)
	}
}

func TestFill_EmptyAndDegenerate(t *testing.T) {
	var calls int
	emit := func(y, x int, coverage []float32) { calls++ }

	NewFiller().Fill(NewPath(), 10, 10, NonZero, emit)

	p := NewPath()
	p.Rect(0, 0, -3, 5)
	NewFiller().Fill(p, 10, 10, NonZero, emit)

	p2 := NewPath()
	p2.Circle(5, 5, 0)
	NewFiller().Fill(p2, 10, 10, NonZero, emit)

	if calls != 0 {
		t.Errorf("degenerate paths emitted %d rows, want 0", calls)
	}
}

func TestPath_Reset(t *testing.T) {
	p := NewPath()
	p.Circle(5, 5, 3)
	if p.Empty() {
		t.Fatal("path empty after Circle")
	}
	p.Reset()
	if !p.Empty() {
		t.Error("path not empty after Reset")
	}

	p.Rect(1, 1, 2, 2)
	sum, _ := sumCoverage(t, p, 10, 10, NonZero)
	if math.Abs(sum-4) > 1e-4 {
		t.Errorf("coverage after reuse = %v, want 4", sum)
	}
}
