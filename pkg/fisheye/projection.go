package fisheye

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Map holds per-pixel source coordinates for a remap operation. X and Y are
// row-major arrays of length W*H; entry (y*W + x) is the floating-point
// source coordinate sampled for output pixel (x, y). Coordinates may fall
// outside the source bounds; the resampler fills those pixels with the
// border color.
type Map struct {
	X, Y []float64
	W, H int
}

// index returns the array offset for output pixel (x, y).
func (m *Map) index(x, y int) int {
	return y*m.W + x
}

// At returns the source coordinate sampled for output pixel (x, y).
func (m *Map) At(x, y int) (float64, float64) {
	i := m.index(x, y)
	return m.X[i], m.Y[i]
}

// rotationMatrix composes the yaw-then-pitch rotation R = Ry(theta)·Rx(phi).
// Applied to a ray, the pitch acts first (it is the rightmost factor), so a
// camera aimed by (theta, phi) is first tilted by phi off the horizon and
// then swung by theta about the vertical axis.
func rotationMatrix(thetaDeg, phiDeg float64) *mat.Dense {
	t := thetaDeg * math.Pi / 180
	p := phiDeg * math.Pi / 180
	cosT, sinT := math.Cos(t), math.Sin(t)
	cosP, sinP := math.Cos(p), math.Sin(p)

	ry := mat.NewDense(3, 3, []float64{
		cosT, 0, sinT,
		0, 1, 0,
		-sinT, 0, cosT,
	})
	rx := mat.NewDense(3, 3, []float64{
		1, 0, 0,
		0, cosP, -sinP,
		0, sinP, cosP,
	})

	var r mat.Dense
	r.Mul(ry, rx)
	return &r
}

// rotateRay applies a 3x3 rotation to a ray direction.
func rotateRay(r *mat.Dense, v r3.Vector) r3.Vector {
	return r3.Vector{
		X: r.At(0, 0)*v.X + r.At(0, 1)*v.Y + r.At(0, 2)*v.Z,
		Y: r.At(1, 0)*v.X + r.At(1, 1)*v.Y + r.At(1, 2)*v.Z,
		Z: r.At(2, 0)*v.X + r.At(2, 1)*v.Y + r.At(2, 2)*v.Z,
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// PerspectiveMap computes the remap arrays that rectify a fisheye source of
// srcW x srcH pixels into an outW x outH perspective view.
//
// fov is the horizontal field of view of the virtual pinhole camera in
// degrees and must lie strictly inside (0, 180). theta is the azimuth and
// phi the elevation of the aim direction, both in degrees and unrestricted
// (wrap-around is handled by the trigonometry). phi = 0 aims at the horizon;
// phi = 90 aims straight down the nadir.
//
// For every output pixel a unit ray through the pinhole image plane is
// rotated by Ry(theta)·Rx(phi), the angle between the rotated ray and the
// nadir is mapped linearly onto the fisheye radius (equidistant model), and
// the resulting polar coordinate is converted back to source pixels.
func PerspectiveMap(srcW, srcH, outW, outH int, fov, theta, phi float64) (*Map, error) {
	if srcW <= 0 || srcH <= 0 {
		return nil, errors.Wrapf(ErrInvalidSize, "source %dx%d", srcW, srcH)
	}
	if outW <= 0 || outH <= 0 {
		return nil, errors.Wrapf(ErrInvalidSize, "output %dx%d", outW, outH)
	}
	if fov <= 0 || fov >= 180 {
		return nil, errors.Wrapf(ErrInvalidFOV, "got %g", fov)
	}

	cx := float64(srcW) / 2
	cy := float64(srcH) / 2
	radius := math.Min(cx, cy)

	// Rectilinear focal length for the requested horizontal FOV, in output
	// pixel units. fov < 180 keeps the tangent finite.
	f := float64(outW) / (2 * math.Tan(fov*math.Pi/360))

	rot := rotationMatrix(theta, phi)

	m := &Map{
		X: make([]float64, outW*outH),
		Y: make([]float64, outW*outH),
		W: outW,
		H: outH,
	}

	halfW := float64(outW) / 2
	halfH := float64(outH) / 2

	for y := 0; y < outH; y++ {
		// Image rows grow downward; camera-space y grows upward.
		yn := -(float64(y) - halfH) / f
		for x := 0; x < outW; x++ {
			xn := (float64(x) - halfW) / f

			ray := rotateRay(rot, r3.Vector{X: xn, Y: yn, Z: 1}.Normalize())

			// The nadir (-y) is the projection pole. Clamp guards against
			// floating-point drift pushing the cosine past +/-1.
			angleFromNadir := math.Acos(clamp(-ray.Y, -1, 1))
			azimuth := math.Atan2(ray.X, ray.Z)

			rFish := angleFromNadir / (math.Pi / 2) * radius

			i := m.index(x, y)
			m.X[i] = cx + rFish*math.Sin(azimuth)
			m.Y[i] = cy - rFish*math.Cos(azimuth)
		}
	}

	return m, nil
}
