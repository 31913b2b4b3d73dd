package catalog

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/golang/groupcache/lru"
	"github.com/klauspost/compress/gzip"
)

// DefaultCacheEntries is the number of decoded files a Loader keeps.
const DefaultCacheEntries = 2

// ErrTooLarge is returned when a file exceeds the loader's size limit.
var ErrTooLarge = errors.New("catalog: file too large")

var gzipMagic = []byte{0x1f, 0x8b}

// Loader reads cube files from disk, inflating gzip-compressed ones, and
// keeps the most recently used results in memory. It is safe for
// concurrent use.
type Loader struct {
	mu       sync.Mutex
	cache    *lru.Cache
	maxBytes int64
	hits     int
	misses   int
}

// cacheKey identifies one version of a file on disk.
type cacheKey struct {
	path    string
	size    int64
	modTime time.Time
}

// NewLoader returns a Loader caching up to entries files. entries <= 0
// disables caching. maxBytes limits the inflated size; 0 means no limit.
func NewLoader(entries int, maxBytes int64) *Loader {
	l := &Loader{maxBytes: maxBytes}
	if entries > 0 {
		l.cache = lru.New(entries)
		l.cache.OnEvicted = func(key lru.Key, value any) {
			k := key.(cacheKey)
			slogger().Debug("catalog: evicted",
				"path", k.path,
				"size", humanize.Bytes(uint64(len(value.([]byte))))) //nolint:gosec // len is non-negative
		}
	}
	return l
}

// Load returns the contents of path, inflated if it is gzip-compressed.
// The returned slice is shared with the cache and must not be modified.
func (l *Loader) Load(path string) ([]byte, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	key := cacheKey{path: path, size: fi.Size(), modTime: fi.ModTime()}

	if data, ok := l.lookup(key); ok {
		return data, nil
	}

	start := time.Now()
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	defer f.Close()

	data, compressed, err := l.read(f)
	if err != nil {
		return nil, fmt.Errorf("catalog: %s: %w", path, err)
	}

	slogger().Info("catalog: loaded",
		"path", path,
		"size", humanize.Bytes(uint64(len(data))), //nolint:gosec // len is non-negative
		"gzip", compressed,
		"elapsed", time.Since(start))

	l.store(key, data)
	return data, nil
}

// Inflate returns data inflated if it starts with the gzip magic, and data
// itself otherwise. A result over maxBytes fails with ErrTooLarge; 0 means
// no limit.
func Inflate(data []byte, maxBytes int64) ([]byte, error) {
	if !bytes.HasPrefix(data, gzipMagic) {
		if maxBytes > 0 && int64(len(data)) > maxBytes {
			return nil, tooLarge(maxBytes)
		}
		return data, nil
	}
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	defer zr.Close()
	out, err := readAll(zr, maxBytes)
	if err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	return out, nil
}

func (l *Loader) read(r io.Reader) ([]byte, bool, error) {
	br := bufio.NewReader(r)
	magic, err := br.Peek(len(gzipMagic))
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, false, err
	}

	src := io.Reader(br)
	compressed := bytes.Equal(magic, gzipMagic)
	if compressed {
		zr, err := gzip.NewReader(br)
		if err != nil {
			return nil, true, err
		}
		defer zr.Close()
		src = zr
	}

	data, err := readAll(src, l.maxBytes)
	return data, compressed, err
}

// readAll reads src to the end, failing once more than maxBytes arrive.
func readAll(src io.Reader, maxBytes int64) ([]byte, error) {
	if maxBytes > 0 {
		src = io.LimitReader(src, maxBytes+1)
	}
	data, err := io.ReadAll(src)
	if err != nil {
		return nil, err
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return nil, tooLarge(maxBytes)
	}
	return data, nil
}

func tooLarge(maxBytes int64) error {
	return fmt.Errorf("%w: over %s", ErrTooLarge, humanize.Bytes(uint64(maxBytes))) //nolint:gosec // maxBytes > 0
}

func (l *Loader) lookup(key cacheKey) ([]byte, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cache == nil {
		l.misses++
		return nil, false
	}
	v, ok := l.cache.Get(key)
	if !ok {
		l.misses++
		return nil, false
	}
	l.hits++
	return v.([]byte), true
}

func (l *Loader) store(key cacheKey, data []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cache != nil {
		l.cache.Add(key, data)
	}
}

// Stats returns cache hits and misses since the loader was created.
func (l *Loader) Stats() (hits, misses int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.hits, l.misses
}

// Cached returns the number of files currently held.
func (l *Loader) Cached() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cache == nil {
		return 0
	}
	return l.cache.Len()
}

// Purge drops every cached file.
func (l *Loader) Purge() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cache != nil {
		l.cache.Clear()
	}
}
