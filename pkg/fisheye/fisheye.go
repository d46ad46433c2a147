// Package fisheye converts equidistant fisheye camera frames into rectified
// perspective views. A virtual pinhole camera is aimed at a direction given
// by an azimuth (theta) and an elevation (phi); rays through its image plane
// are mapped back into fisheye coordinates and the source is resampled with
// bilinear interpolation.
//
// The package assumes a ceiling-mounted fisheye whose optical axis points at
// the nadir, with an angle-linear (equidistant) lens model: a ray 90 degrees
// off the nadir lands exactly on the circular image border.
package fisheye

import (
	"strings"

	"github.com/pkg/errors"
)

// Sentinel errors for parameter validation. Callers can distinguish these
// from decode failures with errors.Is.
var (
	// ErrInvalidFOV is returned when the field of view is outside (0, 180)
	// degrees. At 180 the rectilinear focal length degenerates to zero.
	ErrInvalidFOV = errors.New("field of view must be in (0, 180) degrees")

	// ErrInvalidSize is returned for non-positive image dimensions.
	ErrInvalidSize = errors.New("image dimensions must be positive")

	// ErrInvalidFraction is returned for a non-positive radius fraction.
	ErrInvalidFraction = errors.New("radius fraction must be positive")

	// ErrUnknownView is returned when a view name cannot be normalized.
	ErrUnknownView = errors.New("unknown view name")
)

// ViewName identifies one of the five fixed rectified views.
type ViewName string

// The five views produced from a single fisheye frame. The four cardinal
// views share an elevation angle; Below looks straight down the nadir.
const (
	North ViewName = "North"
	East  ViewName = "East"
	South ViewName = "South"
	West  ViewName = "West"
	Below ViewName = "Below"
)

// AllViews returns the five view names in cardinal-then-below order.
func AllViews() []ViewName {
	return []ViewName{North, East, South, West, Below}
}

// ParseViewName normalizes a view name supplied by an external caller.
// Both full names ("North") and single-letter shortcuts ("N") are accepted,
// case-insensitively.
func ParseViewName(s string) (ViewName, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "n", "north":
		return North, nil
	case "e", "east":
		return East, nil
	case "s", "south":
		return South, nil
	case "w", "west":
		return West, nil
	case "b", "below":
		return Below, nil
	}
	return "", errors.Wrapf(ErrUnknownView, "%q (valid: N, S, E, W, B or full names)", s)
}
