package fisheye

import (
	"image"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// Options controls how RoomViews rectifies a fisheye frame. The zero value
// is not usable; start from DefaultOptions and override fields as needed.
type Options struct {
	// FOV is the horizontal field of view of the cardinal views in degrees,
	// strictly inside (0, 180).
	FOV float64

	// OutputWidth and OutputHeight size the cardinal views in pixels. The
	// Below view is a square of OutputWidth x OutputWidth.
	OutputWidth  int
	OutputHeight int

	// ViewAngle is the elevation of the cardinal views in degrees.
	ViewAngle float64

	// BelowFraction is the fraction of the fisheye radius included in the
	// Below view.
	BelowFraction float64
}

// DefaultOptions returns the standard room-view parameters.
func DefaultOptions() Options {
	return Options{
		FOV:           90,
		OutputWidth:   1080,
		OutputHeight:  810,
		ViewAngle:     45,
		BelowFraction: 0.6,
	}
}

// Validate rejects parameter combinations the map builder cannot compute
// through, per the input-validation error taxonomy.
func (o Options) Validate() error {
	if o.OutputWidth <= 0 || o.OutputHeight <= 0 {
		return errors.Wrapf(ErrInvalidSize, "output %dx%d", o.OutputWidth, o.OutputHeight)
	}
	if o.FOV <= 0 || o.FOV >= 180 {
		return errors.Wrapf(ErrInvalidFOV, "got %g", o.FOV)
	}
	if o.BelowFraction <= 0 {
		return errors.Wrapf(ErrInvalidFraction, "got %g", o.BelowFraction)
	}
	return nil
}

// ViewCollection maps each of the five view names to its rectified image.
type ViewCollection map[ViewName]*image.NRGBA

// cardinalAzimuths is the fixed direction table for the four compass views.
var cardinalAzimuths = []struct {
	name  ViewName
	theta float64
}{
	{North, 0},
	{East, 90},
	{South, 180},
	{West, 270},
}

// RoomViews produces the five rectified views (North, East, South, West,
// Below) from a single fisheye frame. The five computations are independent
// and run concurrently, each reading the same immutable source copy and
// writing its own slot. The result is all-or-nothing: if any view fails the
// whole call fails and no partial collection is returned.
func RoomViews(src image.Image, opts Options) (ViewCollection, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	nsrc, ok := src.(*image.NRGBA)
	if !ok {
		nsrc = imaging.Clone(src)
	}
	srcW := nsrc.Rect.Dx()
	srcH := nsrc.Rect.Dy()
	if srcW <= 0 || srcH <= 0 {
		return nil, errors.Wrapf(ErrInvalidSize, "source %dx%d", srcW, srcH)
	}

	results := make([]*image.NRGBA, len(cardinalAzimuths)+1)
	viewErrs := make([]error, len(cardinalAzimuths)+1)

	var wg sync.WaitGroup
	for i, dir := range cardinalAzimuths {
		wg.Add(1)
		go func(slot int, name ViewName, theta float64) {
			defer wg.Done()
			m, err := PerspectiveMap(srcW, srcH, opts.OutputWidth, opts.OutputHeight, opts.FOV, theta, opts.ViewAngle)
			if err != nil {
				viewErrs[slot] = errors.Wrapf(err, "%s view", name)
				return
			}
			results[slot] = resampleNRGBA(nsrc, m)
		}(i, dir.name, dir.theta)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		slot := len(cardinalAzimuths)
		v, err := ExtractCenterView(nsrc, opts.BelowFraction, opts.OutputWidth)
		if err != nil {
			viewErrs[slot] = errors.Wrap(err, "Below view")
			return
		}
		results[slot] = v
	}()

	wg.Wait()

	if err := multierr.Combine(viewErrs...); err != nil {
		return nil, err
	}

	views := make(ViewCollection, len(results))
	for i, dir := range cardinalAzimuths {
		views[dir.name] = results[i]
	}
	views[Below] = results[len(cardinalAzimuths)]
	return views, nil
}
