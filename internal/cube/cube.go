// Package cube turns FITS data units into Cube descriptors ready for
// upload as a 3D texture.
//
// Only 32-bit IEEE float samples (BITPIX = -32) are supported. Samples are
// decoded from FITS big-endian order into native little-endian float32
// bytes, and a default display window is derived from the 5th and 95th
// percentiles of the data.
package cube

import (
	"encoding/binary"
	"errors"
	"math"
)

// Ingestion errors. Callers of a load operation always receive one of
// these (possibly wrapped) and never a silently defaulted cube.
var (
	// ErrNotACube is returned when the container holds no parseable
	// primary data unit.
	ErrNotACube = errors.New("cube: not a FITS data cube")

	// ErrUnexpectedExtension is returned when the first data unit is not
	// a primary image.
	ErrUnexpectedExtension = errors.New("cube: first data unit is not a primary image")

	// ErrMissingDimensions is returned when NAXIS1, NAXIS2 or NAXIS3 is
	// absent, not an integer, or not positive.
	ErrMissingDimensions = errors.New("cube: missing or invalid NAXISn dimensions")

	// ErrUnsupportedSampleFormat is returned for any BITPIX other than -32.
	ErrUnsupportedSampleFormat = errors.New("cube: unsupported sample format")

	// ErrShortData is returned when the data unit holds fewer bytes than
	// the dimensions require.
	ErrShortData = errors.New("cube: data unit shorter than declared dimensions")
)

// BytesPerSample is the size of one decoded sample.
const BytesPerSample = 4

// Default percentiles for the automatic display window.
const (
	DefaultLowPercentile  = 5
	DefaultHighPercentile = 95
)

// Cube is a decoded volumetric dataset.
type Cube struct {
	Width, Height, Depth uint32

	// Data holds Width*Height*Depth float32 samples in native
	// little-endian byte order, x fastest, then y, then z.
	Data []byte

	// DeclaredMin and DeclaredMax come from DATAMIN/DATAMAX when the
	// header carries them as floats.
	DeclaredMin, DeclaredMax *float32

	// AutoCut is the [low, high] percentile window over the samples.
	AutoCut [2]float32
}

// Voxels returns the number of samples in the cube.
func (c *Cube) Voxels() int {
	return int(c.Width) * int(c.Height) * int(c.Depth)
}

// Size returns the number of bytes of sample data.
func (c *Cube) Size() int {
	return c.Voxels() * BytesPerSample
}

// Sample returns the sample at (x, y, z). It panics if out of range.
func (c *Cube) Sample(x, y, z int) float32 {
	i := (z*int(c.Height)+y)*int(c.Width) + x
	return math.Float32frombits(binary.LittleEndian.Uint32(c.Data[i*BytesPerSample:]))
}

// Range returns def with each bound replaced by the declared value when
// the header carried one.
func (c *Cube) Range(def [2]float32) [2]float32 {
	r := def
	if c.DeclaredMin != nil {
		r[0] = *c.DeclaredMin
	}
	if c.DeclaredMax != nil {
		r[1] = *c.DeclaredMax
	}
	return r
}
