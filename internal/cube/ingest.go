package cube

import (
	"encoding/binary"
	"fmt"
	"math"
	"math/bits"

	"github.com/gogpu/fitsview/internal/parallel"
	"github.com/gogpu/fitsview/internal/percentile"
)

// decodeChunk is the number of samples decoded per work item.
const decodeChunk = 1 << 18

// Ingestor converts header + raw data unit pairs into Cubes.
// An Ingestor may be used from one goroutine at a time.
type Ingestor struct {
	pool    *parallel.WorkerPool
	lowPct  int
	highPct int
}

// Option configures an Ingestor.
type Option func(*Ingestor)

// WithWorkers sets the number of decode workers. Zero or less uses
// GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(in *Ingestor) {
		in.pool = parallel.NewWorkerPool(n)
	}
}

// WithPercentiles sets the percentiles used for Cube.AutoCut.
func WithPercentiles(low, high int) Option {
	return func(in *Ingestor) {
		in.lowPct, in.highPct = low, high
	}
}

// NewIngestor creates an Ingestor. Call Close to stop its workers.
func NewIngestor(opts ...Option) *Ingestor {
	in := &Ingestor{
		lowPct:  DefaultLowPercentile,
		highPct: DefaultHighPercentile,
	}
	for _, opt := range opts {
		opt(in)
	}
	if in.pool == nil {
		in.pool = parallel.NewWorkerPool(0)
	}
	return in
}

// Close stops the decode workers.
func (in *Ingestor) Close() {
	in.pool.Close()
}

// Ingest validates the header and decodes raw into a Cube.
//
// raw is the primary data unit exactly as stored in the file (big-endian
// samples). It is not modified; the returned Cube owns a fresh buffer.
func (in *Ingestor) Ingest(h Header, raw []byte) (*Cube, error) {
	w, hgt, d, err := dimensions(h)
	if err != nil {
		return nil, err
	}

	bitpix, ok := h.Int(KeyBITPIX)
	if !ok {
		return nil, fmt.Errorf("%w: BITPIX missing", ErrUnsupportedSampleFormat)
	}
	if bitpix != bitpixFloat32 {
		return nil, fmt.Errorf("%w: BITPIX=%d", ErrUnsupportedSampleFormat, bitpix)
	}

	n, ok := voxelCount(w, hgt, d)
	if !ok || n > len(raw)/BytesPerSample {
		return nil, fmt.Errorf("%w: have %d bytes for %dx%dx%d samples", ErrShortData, len(raw), w, hgt, d)
	}

	c := &Cube{
		Width:  uint32(w),
		Height: uint32(hgt),
		Depth:  uint32(d),
		Data:   make([]byte, n*BytesPerSample),
	}

	// The clipper reorders its input, so it gets its own copy of the
	// decoded values and Data stays in voxel order for upload.
	scratch := make([]float32, n)
	in.pool.Range(n, decodeChunk, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			bits := binary.BigEndian.Uint32(raw[i*BytesPerSample:])
			binary.LittleEndian.PutUint32(c.Data[i*BytesPerSample:], bits)
			scratch[i] = math.Float32frombits(bits)
		}
	})
	c.AutoCut[0], c.AutoCut[1] = percentile.Clip(scratch, in.lowPct, in.highPct)

	if v, ok := h.Float(KeyDATAMIN); ok {
		f := float32(v)
		c.DeclaredMin = &f
	}
	if v, ok := h.Float(KeyDATAMAX); ok {
		f := float32(v)
		c.DeclaredMax = &f
	}

	slogger().Debug("cube: ingested",
		"width", c.Width, "height", c.Height, "depth", c.Depth,
		"cut_lo", c.AutoCut[0], "cut_hi", c.AutoCut[1])
	return c, nil
}

// dimensions reads NAXIS1..3, falling back to NAXIS4 for the depth when
// NAXIS3 is 1 (cubes stored with a degenerate third axis).
func dimensions(h Header) (w, hgt, d int, err error) {
	var ok bool
	if w, ok = h.Int(KeyNAXIS1); !ok {
		return 0, 0, 0, fmt.Errorf("%w: %s", ErrMissingDimensions, KeyNAXIS1)
	}
	if hgt, ok = h.Int(KeyNAXIS2); !ok {
		return 0, 0, 0, fmt.Errorf("%w: %s", ErrMissingDimensions, KeyNAXIS2)
	}
	if d, ok = h.Int(KeyNAXIS3); !ok {
		return 0, 0, 0, fmt.Errorf("%w: %s", ErrMissingDimensions, KeyNAXIS3)
	}
	if d == 1 {
		if d4, ok := h.Int(KeyNAXIS4); ok {
			d = d4
		}
	}
	if w <= 0 || hgt <= 0 || d <= 0 || uint64(w) > math.MaxUint32 || uint64(hgt) > math.MaxUint32 || uint64(d) > math.MaxUint32 {
		return 0, 0, 0, fmt.Errorf("%w: %dx%dx%d", ErrMissingDimensions, w, hgt, d)
	}
	return w, hgt, d, nil
}

// voxelCount returns w*h*d, or false if the product or its byte size
// overflows int.
func voxelCount(w, h, d int) (int, bool) {
	hi, n := bits.Mul64(uint64(w), uint64(h)) //nolint:gosec // dimensions are positive
	if hi != 0 {
		return 0, false
	}
	if hi, n = bits.Mul64(n, uint64(d)); hi != 0 { //nolint:gosec // dimensions are positive
		return 0, false
	}
	if n > math.MaxInt/BytesPerSample {
		return 0, false
	}
	return int(n), true
}
