package cube

import (
	"fmt"
	"io"

	"github.com/astrogo/fitsio"
)

// Decode reads a FITS stream and ingests its primary data unit.
func Decode(r io.Reader, in *Ingestor) (*Cube, error) {
	f, err := fitsio.Open(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotACube, err)
	}
	defer f.Close()

	if len(f.HDUs()) == 0 {
		return nil, ErrNotACube
	}
	hdu := f.HDU(0)
	if hdu.Type() != fitsio.IMAGE_HDU {
		return nil, fmt.Errorf("%w: %v", ErrUnexpectedExtension, hdu.Type())
	}
	img, ok := hdu.(fitsio.Image)
	if !ok {
		return nil, ErrUnexpectedExtension
	}

	return in.Ingest(fitsHeader{hdu.Header()}, img.Raw())
}

// fitsHeader adapts a fitsio header to Header.
type fitsHeader struct {
	h *fitsio.Header
}

func (fh fitsHeader) value(key string) any {
	card := fh.h.Get(key)
	if card == nil {
		return nil
	}
	return card.Value
}

func (fh fitsHeader) Int(key string) (int, bool) {
	return MapHeader{key: fh.value(key)}.Int(key)
}

func (fh fitsHeader) Float(key string) (float64, bool) {
	return MapHeader{key: fh.value(key)}.Float(key)
}
