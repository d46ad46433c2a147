package fisheye

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"testing"

	"gonum.org/v1/gonum/stat"
)

// meanRowIntensity reduces a view to per-row mean channel intensities.
func meanRowIntensity(img *image.NRGBA) []float64 {
	h := img.Rect.Dy()
	w := img.Rect.Dx()
	rows := make([]float64, h)
	for y := 0; y < h; y++ {
		sum := 0.0
		for x := 0; x < w; x++ {
			o := img.PixOffset(x, y)
			sum += float64(img.Pix[o]) + float64(img.Pix[o+1]) + float64(img.Pix[o+2])
		}
		rows[y] = sum / float64(3*w)
	}
	return rows
}

// TestRoomViewsBlackSource runs the full end-to-end scenario: a 1920x1920
// all-black fisheye frame with default parameters must produce exactly the
// five named views, with the documented shapes, all entirely black.
func TestRoomViewsBlackSource(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 1920, 1920))
	for i := 3; i < len(src.Pix); i += 4 {
		src.Pix[i] = 255
	}

	views, err := RoomViews(src, DefaultOptions())
	if err != nil {
		t.Fatalf("RoomViews failed: %v", err)
	}

	if len(views) != 5 {
		t.Fatalf("Expected 5 views, got %d", len(views))
	}

	for _, name := range AllViews() {
		view, ok := views[name]
		if !ok {
			t.Fatalf("Missing view %q", name)
		}

		wantW, wantH := 1080, 810
		if name == Below {
			wantW, wantH = 1080, 1080
		}
		if view.Rect.Dx() != wantW || view.Rect.Dy() != wantH {
			t.Errorf("%s: expected %dx%d, got %dx%d", name, wantW, wantH, view.Rect.Dx(), view.Rect.Dy())
		}

		if mean := stat.Mean(meanRowIntensity(view), nil); mean != 0 {
			t.Errorf("%s: expected an entirely black view, mean intensity %f", name, mean)
		}
	}
}

// TestRoomViewsDeterminism verifies that two identical invocations produce
// bit-identical views.
func TestRoomViewsDeterminism(t *testing.T) {
	src := gradientImage(128, 128)
	opts := Options{FOV: 90, OutputWidth: 40, OutputHeight: 30, ViewAngle: 45, BelowFraction: 0.6}

	first, err := RoomViews(src, opts)
	if err != nil {
		t.Fatalf("RoomViews (first) failed: %v", err)
	}
	second, err := RoomViews(src, opts)
	if err != nil {
		t.Fatalf("RoomViews (second) failed: %v", err)
	}

	for _, name := range AllViews() {
		if !bytes.Equal(first[name].Pix, second[name].Pix) {
			t.Errorf("%s: views differ between identical invocations", name)
		}
	}
}

// TestRoomViewsInvalidOptions verifies that bad parameters fail fast with
// the validation sentinels and never return a partial collection.
func TestRoomViewsInvalidOptions(t *testing.T) {
	src := uniformImage(64, 64, color.NRGBA{A: 255})

	cases := []struct {
		name string
		opts Options
		want error
	}{
		{"fov 180", Options{FOV: 180, OutputWidth: 10, OutputHeight: 10, ViewAngle: 45, BelowFraction: 0.6}, ErrInvalidFOV},
		{"fov 200", Options{FOV: 200, OutputWidth: 10, OutputHeight: 10, ViewAngle: 45, BelowFraction: 0.6}, ErrInvalidFOV},
		{"zero width", Options{FOV: 90, OutputWidth: 0, OutputHeight: 10, ViewAngle: 45, BelowFraction: 0.6}, ErrInvalidSize},
		{"negative height", Options{FOV: 90, OutputWidth: 10, OutputHeight: -5, ViewAngle: 45, BelowFraction: 0.6}, ErrInvalidSize},
		{"zero fraction", Options{FOV: 90, OutputWidth: 10, OutputHeight: 10, ViewAngle: 45, BelowFraction: 0}, ErrInvalidFraction},
	}

	for _, tc := range cases {
		views, err := RoomViews(src, tc.opts)
		if !errors.Is(err, tc.want) {
			t.Errorf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
		if views != nil {
			t.Errorf("%s: expected no partial collection, got %d views", tc.name, len(views))
		}
	}
}

// TestRoomViewsWideFOV verifies the 179 degree scenario completes without a
// numeric failure.
func TestRoomViewsWideFOV(t *testing.T) {
	src := uniformImage(100, 100, color.NRGBA{R: 80, G: 80, B: 80, A: 255})
	opts := Options{FOV: 179, OutputWidth: 100, OutputHeight: 100, ViewAngle: 45, BelowFraction: 0.6}

	if _, err := RoomViews(src, opts); err != nil {
		t.Errorf("RoomViews with fov=179 failed: %v", err)
	}
}

// TestDefaultOptions pins the documented defaults.
func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()
	if opts.FOV != 90 || opts.ViewAngle != 45 || opts.BelowFraction != 0.6 {
		t.Errorf("Unexpected default angles: %+v", opts)
	}
	if opts.OutputWidth != 1080 || opts.OutputHeight != 810 {
		t.Errorf("Unexpected default output size: %dx%d", opts.OutputWidth, opts.OutputHeight)
	}
}

// TestParseViewName verifies both full names and single-letter shortcuts
// normalize case-insensitively.
func TestParseViewName(t *testing.T) {
	cases := []struct {
		in   string
		want ViewName
	}{
		{"N", North},
		{"n", North},
		{"North", North},
		{"NORTH", North},
		{"e", East},
		{"East", East},
		{"S", South},
		{"south", South},
		{"W", West},
		{"WEST", West},
		{"B", Below},
		{"below", Below},
		{" North ", North},
	}

	for _, tc := range cases {
		got, err := ParseViewName(tc.in)
		if err != nil {
			t.Errorf("ParseViewName(%q) failed: %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseViewName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}

	for _, bad := range []string{"", "Q", "Northeast", "NB"} {
		if _, err := ParseViewName(bad); !errors.Is(err, ErrUnknownView) {
			t.Errorf("ParseViewName(%q): expected ErrUnknownView, got %v", bad, err)
		}
	}
}
