package fisheye

import (
	"errors"
	"image"
	"image/color"
	"math"
	"testing"
)

// TestExtractCenterViewShape verifies the Below view is always square.
func TestExtractCenterViewShape(t *testing.T) {
	src := uniformImage(200, 160, color.NRGBA{R: 50, G: 50, B: 50, A: 255})

	out, err := ExtractCenterView(src, 0.6, 120)
	if err != nil {
		t.Fatalf("ExtractCenterView failed: %v", err)
	}

	if out.Rect.Dx() != 120 || out.Rect.Dy() != 120 {
		t.Errorf("Expected 120x120 output, got %dx%d", out.Rect.Dx(), out.Rect.Dy())
	}
}

// TestExtractCenterViewMask verifies that pixels outside the unit disk are
// exactly black while the disk interior keeps the source color.
func TestExtractCenterViewMask(t *testing.T) {
	src := uniformImage(200, 200, color.NRGBA{R: 255, G: 255, B: 255, A: 255})

	const size = 101
	out, err := ExtractCenterView(src, 0.6, size)
	if err != nil {
		t.Fatalf("ExtractCenterView failed: %v", err)
	}

	norm := func(i int) float64 { return -1 + 2*float64(i)/float64(size-1) }
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			gx, gy := norm(x), norm(y)
			c := out.NRGBAAt(x, y)
			if math.Sqrt(gx*gx+gy*gy) > 1.0 {
				if c.R != 0 || c.G != 0 || c.B != 0 {
					t.Fatalf("Pixel (%d,%d) outside the disk is not black: %+v", x, y, c)
				}
			} else if c.R != 255 || c.G != 255 || c.B != 255 {
				t.Fatalf("Pixel (%d,%d) inside the disk lost the source color: %+v", x, y, c)
			}
		}
	}
}

// TestExtractCenterViewBrightPixel verifies that a single bright pixel near
// the optical center shows up near the center of the output, spread only by
// the bilinear kernel.
func TestExtractCenterViewBrightPixel(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 201, 201))
	for y := 0; y < 201; y++ {
		for x := 0; x < 201; x++ {
			src.SetNRGBA(x, y, color.NRGBA{A: 255})
		}
	}
	src.SetNRGBA(100, 100, color.NRGBA{R: 255, G: 255, B: 255, A: 255})

	const size = 101
	out, err := ExtractCenterView(src, 0.6, size)
	if err != nil {
		t.Fatalf("ExtractCenterView failed: %v", err)
	}

	found := false
	for y := 0; y < size && !found; y++ {
		for x := 0; x < size; x++ {
			if out.NRGBAAt(x, y).R > 0 {
				if math.Abs(float64(x)-size/2) > 3 || math.Abs(float64(y)-size/2) > 3 {
					t.Fatalf("Bright pixel surfaced at (%d,%d), far from the output center", x, y)
				}
				found = true
				break
			}
		}
	}
	if !found {
		t.Errorf("Bright source pixel did not appear in the output")
	}
}

// TestExtractCenterViewValidation verifies parameter rejection.
func TestExtractCenterViewValidation(t *testing.T) {
	src := uniformImage(10, 10, color.NRGBA{A: 255})

	if _, err := ExtractCenterView(src, 0.6, 0); !errors.Is(err, ErrInvalidSize) {
		t.Errorf("Expected ErrInvalidSize for zero output, got %v", err)
	}

	if _, err := ExtractCenterView(src, 0, 10); !errors.Is(err, ErrInvalidFraction) {
		t.Errorf("Expected ErrInvalidFraction for zero fraction, got %v", err)
	}
}
