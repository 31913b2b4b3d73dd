package cube

// FITS header keywords consumed by the ingestor.
const (
	KeyNAXIS1  = "NAXIS1"
	KeyNAXIS2  = "NAXIS2"
	KeyNAXIS3  = "NAXIS3"
	KeyNAXIS4  = "NAXIS4"
	KeyBITPIX  = "BITPIX"
	KeyDATAMIN = "DATAMIN"
	KeyDATAMAX = "DATAMAX"
)

// bitpixFloat32 is the BITPIX value of IEEE single precision samples.
const bitpixFloat32 = -32

// Header gives typed access to the header cards of a data unit.
//
// Int reports false when the card is absent or not integer-valued. Float
// reports false when the card is absent or not float-valued; an integer
// card is not a float.
type Header interface {
	Int(key string) (int, bool)
	Float(key string) (float64, bool)
}

// MapHeader is a Header backed by a map. Values of type int, int32 and
// int64 are integers; float32 and float64 are floats. Anything else is
// treated as a card of some other type.
type MapHeader map[string]any

// Int implements Header.
func (h MapHeader) Int(key string) (int, bool) {
	switch v := h[key].(type) {
	case int:
		return v, true
	case int32:
		return int(v), true
	case int64:
		return int(v), true
	}
	return 0, false
}

// Float implements Header.
func (h MapHeader) Float(key string) (float64, bool) {
	switch v := h[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	}
	return 0, false
}
