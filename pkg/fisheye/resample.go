package fisheye

import (
	"image"

	"github.com/disintegration/imaging"
)

// Resample applies a coordinate map to a source image using bilinear
// interpolation, producing the rectified view. Output pixels whose map
// coordinate falls outside the source bounds are filled with black; a NaN
// coordinate is treated the same way. The function is pure: identical
// inputs always produce bit-identical output.
func Resample(src image.Image, m *Map) *image.NRGBA {
	nsrc, ok := src.(*image.NRGBA)
	if !ok {
		nsrc = imaging.Clone(src)
	}
	return resampleNRGBA(nsrc, m)
}

func resampleNRGBA(src *image.NRGBA, m *Map) *image.NRGBA {
	out := image.NewNRGBA(image.Rect(0, 0, m.W, m.H))
	w := src.Rect.Dx()
	h := src.Rect.Dy()

	for y := 0; y < m.H; y++ {
		for x := 0; x < m.W; x++ {
			i := m.index(x, y)
			o := out.PixOffset(x, y)
			r, g, b, in := sampleBilinear(src, w, h, m.X[i], m.Y[i])
			if in {
				out.Pix[o] = r
				out.Pix[o+1] = g
				out.Pix[o+2] = b
			}
			out.Pix[o+3] = 0xff
		}
	}
	return out
}

// sampleBilinear samples the source at a floating-point coordinate by
// weighting the four surrounding pixels. The in result is false when the
// coordinate is outside [0, w-1] x [0, h-1]; the comparisons also reject
// NaN, so numeric-domain garbage degrades to a border pixel instead of
// corrupting the output.
func sampleBilinear(src *image.NRGBA, w, h int, mx, my float64) (r, g, b uint8, in bool) {
	if !(mx >= 0 && my >= 0 && mx <= float64(w-1) && my <= float64(h-1)) {
		return 0, 0, 0, false
	}

	x0 := int(mx)
	y0 := int(my)
	x1 := x0 + 1
	y1 := y0 + 1
	if x1 > w-1 {
		x1 = w - 1
	}
	if y1 > h-1 {
		y1 = h - 1
	}

	fx := mx - float64(x0)
	fy := my - float64(y0)

	w00 := (1 - fx) * (1 - fy)
	w10 := fx * (1 - fy)
	w01 := (1 - fx) * fy
	w11 := fx * fy

	p00 := src.PixOffset(src.Rect.Min.X+x0, src.Rect.Min.Y+y0)
	p10 := src.PixOffset(src.Rect.Min.X+x1, src.Rect.Min.Y+y0)
	p01 := src.PixOffset(src.Rect.Min.X+x0, src.Rect.Min.Y+y1)
	p11 := src.PixOffset(src.Rect.Min.X+x1, src.Rect.Min.Y+y1)

	r = blend(src.Pix[p00], src.Pix[p10], src.Pix[p01], src.Pix[p11], w00, w10, w01, w11)
	g = blend(src.Pix[p00+1], src.Pix[p10+1], src.Pix[p01+1], src.Pix[p11+1], w00, w10, w01, w11)
	b = blend(src.Pix[p00+2], src.Pix[p10+2], src.Pix[p01+2], src.Pix[p11+2], w00, w10, w01, w11)
	return r, g, b, true
}

func blend(v00, v10, v01, v11 uint8, w00, w10, w01, w11 float64) uint8 {
	v := float64(v00)*w00 + float64(v10)*w10 + float64(v01)*w01 + float64(v11)*w11
	return uint8(v + 0.5)
}
