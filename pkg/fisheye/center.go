package fisheye

import (
	"image"
	"math"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
)

// ExtractCenterView unwarps the region directly below the camera into a
// square size x size view. The output grid is normalized to [-1, 1] in both
// axes and mapped radially onto the fisheye: radiusFraction controls how
// much of the fisheye radius is included, with smaller values zooming in
// tighter on the nadir point. Unlike the cardinal views this is a plain
// linear radial scaling, not an angle-accurate projection.
//
// Output pixels outside the unit disk are forced to black so the view keeps
// the circular footprint of the physical lens instead of a square crop.
func ExtractCenterView(src image.Image, radiusFraction float64, size int) (*image.NRGBA, error) {
	if size <= 0 {
		return nil, errors.Wrapf(ErrInvalidSize, "output %dx%d", size, size)
	}
	if radiusFraction <= 0 {
		return nil, errors.Wrapf(ErrInvalidFraction, "got %g", radiusFraction)
	}

	nsrc, ok := src.(*image.NRGBA)
	if !ok {
		nsrc = imaging.Clone(src)
	}

	w := nsrc.Rect.Dx()
	h := nsrc.Rect.Dy()
	if w <= 0 || h <= 0 {
		return nil, errors.Wrapf(ErrInvalidSize, "source %dx%d", w, h)
	}

	cx := float64(w) / 2
	cy := float64(h) / 2
	radius := math.Min(cx, cy)

	m := &Map{
		X: make([]float64, size*size),
		Y: make([]float64, size*size),
		W: size,
		H: size,
	}

	// Normalized grid coordinate for index i over [-1, 1] inclusive.
	norm := func(i int) float64 {
		if size == 1 {
			return -1
		}
		return -1 + 2*float64(i)/float64(size-1)
	}

	outside := make([]bool, size*size)
	for y := 0; y < size; y++ {
		gy := norm(y)
		for x := 0; x < size; x++ {
			gx := norm(x)
			rOut := math.Sqrt(gx*gx + gy*gy)
			thetaOut := math.Atan2(gy, gx)
			rFish := rOut * radius * radiusFraction

			i := m.index(x, y)
			m.X[i] = cx + rFish*math.Cos(thetaOut)
			m.Y[i] = cy + rFish*math.Sin(thetaOut)
			outside[i] = rOut > 1.0
		}
	}

	out := resampleNRGBA(nsrc, m)

	// Circular mask applied post-resample.
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			if !outside[m.index(x, y)] {
				continue
			}
			o := out.PixOffset(x, y)
			out.Pix[o] = 0
			out.Pix[o+1] = 0
			out.Pix[o+2] = 0
			out.Pix[o+3] = 0xff
		}
	}

	return out, nil
}
