// Package catalog holds the list of known cubes the viewer cycles through
// and loads their bytes from disk.
package catalog

import (
	"errors"
	"path/filepath"
	"strings"
)

// ErrEmpty is returned when a catalog has no entries.
var ErrEmpty = errors.New("catalog: no datasets")

// Entry is one known cube. Range, when set, overrides the display range
// the cube declares in its own header.
type Entry struct {
	Path  string
	Range *[2]float32
}

// Name returns the file name without directory or FITS suffixes.
func (e Entry) Name() string {
	name := filepath.Base(e.Path)
	name = strings.TrimSuffix(name, ".gz")
	for _, ext := range []string{".fits", ".fit", ".fts"} {
		if trimmed, ok := strings.CutSuffix(name, ext); ok {
			return trimmed
		}
	}
	return name
}

func knownRange(lo, hi float32) *[2]float32 {
	return &[2]float32{lo, hi}
}

// Default returns the stock dataset list.
func Default() []Entry {
	const (
		hiLo = -2.451346722e-03
		hiHi = 1.179221552e-02
	)
	return []Entry{
		{Path: "./cubes/cutout-CDS_P_LGLBSHI16.fits", Range: knownRange(0, 1)},
		{Path: "./cubes/cutout-CDS_C_GALFAHI.fits", Range: knownRange(0, 1)},
		{Path: "./cubes/NGC3198_cube.fits", Range: knownRange(hiLo, hiHi)},
		{Path: "./cubes/NGC7331_cube.fits", Range: knownRange(hiLo, hiHi)},
		{Path: "./cubes/CO_21.fits", Range: knownRange(hiLo, hiHi)},
		{Path: "./cubes/DHIGLS_DF_Tb.fits", Range: knownRange(0, 1)},
		{Path: "./cubes/DHIGLS_MG_Tb.fits", Range: knownRange(0, 1)},
		{Path: "./cubes/DHIGLS_PO_Tb.fits", Range: knownRange(0, 1)},
	}
}

// Catalog is a cyclic cursor over entries. Nothing is selected until the
// first call to Next or Select.
type Catalog struct {
	entries []Entry
	index   int
}

// New returns a catalog over a copy of entries.
func New(entries []Entry) *Catalog {
	return &Catalog{entries: append([]Entry(nil), entries...), index: -1}
}

// Len returns the number of entries.
func (c *Catalog) Len() int { return len(c.entries) }

// Entries returns a copy of the entry list.
func (c *Catalog) Entries() []Entry { return append([]Entry(nil), c.entries...) }

// Index returns the selected position, or -1 before the first selection.
func (c *Catalog) Index() int { return c.index }

// Current returns the selected entry.
func (c *Catalog) Current() (Entry, bool) {
	if c.index < 0 || c.index >= len(c.entries) {
		return Entry{}, false
	}
	return c.entries[c.index], true
}

// Next advances to the following entry, wrapping after the last one.
func (c *Catalog) Next() (Entry, error) {
	if len(c.entries) == 0 {
		return Entry{}, ErrEmpty
	}
	c.index = (c.index + 1) % len(c.entries)
	return c.entries[c.index], nil
}

// Select moves the cursor to the entry whose path matches path and reports
// whether one was found. The cursor is unchanged otherwise.
func (c *Catalog) Select(path string) bool {
	clean := filepath.Clean(path)
	for i, e := range c.entries {
		if filepath.Clean(e.Path) == clean {
			c.index = i
			return true
		}
	}
	return false
}

// Lookup returns the entry for path without moving the cursor.
func (c *Catalog) Lookup(path string) (Entry, bool) {
	clean := filepath.Clean(path)
	for _, e := range c.entries {
		if filepath.Clean(e.Path) == clean {
			return e, true
		}
	}
	return Entry{}, false
}

// Resolve rewrites relative entry paths against dir, the way paths in a
// config file are taken relative to the file itself.
func (c *Catalog) Resolve(dir string) {
	for i, e := range c.entries {
		if e.Path != "" && !filepath.IsAbs(e.Path) {
			c.entries[i].Path = filepath.Join(dir, e.Path)
		}
	}
}
