package cube

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"
)

const fitsBlock = 2880

// fitsFile builds a minimal single-HDU FITS stream from header cards and
// a big-endian data unit.
func fitsFile(cards []string, data []byte) []byte {
	var hdr strings.Builder
	for _, c := range append(cards, "END") {
		hdr.WriteString(fmt.Sprintf("%-80s", c))
	}
	out := []byte(hdr.String())
	out = append(out, bytes.Repeat([]byte(" "), pad(len(out)))...)
	out = append(out, data...)
	return append(out, make([]byte, pad(len(data)))...)
}

func pad(n int) int {
	if r := n % fitsBlock; r != 0 {
		return fitsBlock - r
	}
	return 0
}

func card(key, value string) string {
	return fmt.Sprintf("%-8s= %20s", key, value)
}

func TestDecodeFITS(t *testing.T) {
	in := newTestIngestor(t)
	samples := ramp(4 * 3 * 7)
	stream := fitsFile([]string{
		card("SIMPLE", "T"),
		card("BITPIX", "-32"),
		card("NAXIS", "4"),
		card("NAXIS1", "4"),
		card("NAXIS2", "3"),
		card("NAXIS3", "1"),
		card("NAXIS4", "7"),
		card("DATAMIN", "0.5"),
	}, bigEndian(samples))

	c, err := Decode(bytes.NewReader(stream), in)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if c.Width != 4 || c.Height != 3 || c.Depth != 7 {
		t.Errorf("dimensions = (%d,%d,%d), want (4,3,7)", c.Width, c.Height, c.Depth)
	}
	if c.DeclaredMin == nil || *c.DeclaredMin != 0.5 {
		t.Errorf("DeclaredMin = %v, want 0.5", c.DeclaredMin)
	}
	if c.DeclaredMax != nil {
		t.Errorf("DeclaredMax = %v, want nil", *c.DeclaredMax)
	}
	if got := c.Sample(3, 2, 6); got != samples[len(samples)-1] {
		t.Errorf("last sample = %v, want %v", got, samples[len(samples)-1])
	}
}

func TestDecodeFITSUnsupportedBitpix(t *testing.T) {
	in := newTestIngestor(t)
	stream := fitsFile([]string{
		card("SIMPLE", "T"),
		card("BITPIX", "16"),
		card("NAXIS", "3"),
		card("NAXIS1", "2"),
		card("NAXIS2", "2"),
		card("NAXIS3", "2"),
	}, make([]byte, 16))

	_, err := Decode(bytes.NewReader(stream), in)
	if !errors.Is(err, ErrUnsupportedSampleFormat) {
		t.Fatalf("Decode error = %v, want ErrUnsupportedSampleFormat", err)
	}
}

func TestDecodeFITSHugeAxis(t *testing.T) {
	in := newTestIngestor(t)
	stream := fitsFile([]string{
		card("SIMPLE", "T"),
		card("BITPIX", "-32"),
		card("NAXIS", "3"),
		card("NAXIS1", "2305843009213693952"),
		card("NAXIS2", "4"),
		card("NAXIS3", "3"),
	}, make([]byte, 64))

	c, err := Decode(bytes.NewReader(stream), in)
	if err == nil {
		t.Fatalf("Decode succeeded with %dx%dx%d, want error", c.Width, c.Height, c.Depth)
	}
}

func TestDecodeNotFITS(t *testing.T) {
	in := newTestIngestor(t)
	_, err := Decode(strings.NewReader("definitely not a FITS file"), in)
	if !errors.Is(err, ErrNotACube) {
		t.Fatalf("Decode error = %v, want ErrNotACube", err)
	}
}
