// Package imgio holds the codec and transfer adapters around the fisheye
// core: JPEG decode/encode, base64 conversion for LLM payloads, and the
// whole-image rotation used by the rotate processing mode.
package imgio

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"io"
	"os"
	"path/filepath"

	// Register decoders for the formats cameras actually emit.
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
)

// DefaultJPEGQuality is used whenever a caller passes a non-positive
// quality.
const DefaultJPEGQuality = 90

// Sentinel errors separating "bad input file" from "bad parameters" for
// callers of the processing pipeline.
var (
	ErrDecode = errors.New("cannot decode image")
	ErrEncode = errors.New("cannot encode image")
)

// Decode reads an encoded image. It fails explicitly when the bytes are not
// a valid image; it never silently returns a zero-filled frame.
func Decode(r io.Reader) (image.Image, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, errors.Wrap(ErrDecode, err.Error())
	}
	return img, nil
}

// DecodeBytes decodes an in-memory encoded image.
func DecodeBytes(b []byte) (image.Image, error) {
	return Decode(bytes.NewReader(b))
}

// EncodeJPEG encodes an image as JPEG at the given quality (1-100). A
// non-positive quality selects DefaultJPEGQuality.
func EncodeJPEG(img image.Image, quality int) ([]byte, error) {
	if quality <= 0 {
		quality = DefaultJPEGQuality
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return nil, errors.Wrap(ErrEncode, err.Error())
	}
	return buf.Bytes(), nil
}

// ToBase64 encodes an image as JPEG at the default quality and returns the
// base64 text used for embedding in an LLM request payload.
func ToBase64(img image.Image) (string, error) {
	b, err := EncodeJPEG(img, DefaultJPEGQuality)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

// FromBase64 decodes a base64 JPEG back into an image.
func FromBase64(s string) (image.Image, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, errors.Wrap(ErrDecode, err.Error())
	}
	return DecodeBytes(b)
}

// Rotate rotates an image counter-clockwise by the given angle in degrees.
// For angles that are not multiples of 90 the canvas expands to hold the
// rotated frame, with black fill.
func Rotate(img image.Image, angleDeg float64) *image.NRGBA {
	return imaging.Rotate(img, angleDeg, color.NRGBA{A: 255})
}

// Save writes an image to disk; the format follows the file extension, with
// JPEG output at the default quality.
func Save(img image.Image, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrapf(err, "creating directory for %s", path)
	}
	if err := imaging.Save(img, path, imaging.JPEGQuality(DefaultJPEGQuality)); err != nil {
		return errors.Wrapf(ErrEncode, "saving %s: %v", path, err)
	}
	return nil
}

// Load reads an image from disk.
func Load(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", path)
	}
	defer f.Close()
	return Decode(f)
}
