package fitsview

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/natefinch/lumberjack"

	"github.com/gogpu/fitsview/internal/catalog"
	"github.com/gogpu/fitsview/internal/cube"
)

// ErrConfig is returned for configuration values that cannot be used.
var ErrConfig = errors.New("fitsview: invalid configuration")

// Config is the viewer configuration, usually read from a TOML file:
//
//	[window]
//	title = "fitsview"
//	width = 1280
//	height = 800
//	auto_rotate = true
//
//	[cube]
//	initial = "./cubes/CO_21.fits"
//	low_percentile = 5
//	high_percentile = 95
//
//	[[dataset]]
//	path = "./cubes/NGC3198_cube.fits"
//	min = -0.00245
//	max = 0.0118
type Config struct {
	Window   WindowConfig    `toml:"window"`
	Cube     CubeConfig      `toml:"cube"`
	GPU      GPUConfig       `toml:"gpu"`
	Logging  LogConfig       `toml:"logging"`
	Datasets []DatasetConfig `toml:"dataset"`

	// Unknown lists keys in the file that matched no field. LoadConfig
	// fills it; callers report it once their logger is in place.
	Unknown []string `toml:"-"`
}

// WindowConfig controls the window and what the first frame shows.
type WindowConfig struct {
	Title       string  `toml:"title"`
	Width       int     `toml:"width"`
	Height      int     `toml:"height"`
	Perspective bool    `toml:"perspective"`
	AutoRotate  bool    `toml:"auto_rotate"`
	RotateSpeed float64 `toml:"rotate_speed"` // radians per second
	HUD         bool    `toml:"hud"`
	HUDScale    float64 `toml:"hud_scale"`
}

// CubeConfig controls how cubes are read and ingested.
type CubeConfig struct {
	// Initial is loaded at startup. Empty means the first catalog entry.
	Initial        string `toml:"initial"`
	LowPercentile  int    `toml:"low_percentile"`
	HighPercentile int    `toml:"high_percentile"`

	// Workers decoding samples; 0 uses GOMAXPROCS.
	Workers int `toml:"workers"`

	// CacheEntries is the number of files the loader keeps in memory.
	CacheEntries int `toml:"cache_entries"`

	// MaxBytes caps the inflated file size; 0 means no limit.
	MaxBytes int64 `toml:"max_bytes"`
}

// GPUConfig holds device-related overrides.
type GPUConfig struct {
	// MaxTextureDimension3D overrides the device limit when non-zero and
	// lower than the device's own.
	MaxTextureDimension3D uint32   `toml:"max_texture_dimension_3d"`
	FenceTimeout          Duration `toml:"fence_timeout"`
}

// LogConfig describes where logs go. An empty Logfile logs to stderr.
type LogConfig struct {
	Logfile string `toml:"logfile"`
	MaxSize int    `toml:"max_log_size"` // megabytes
	MaxAge  int    `toml:"max_log_age"`  // days
	Debug   bool   `toml:"debug"`
}

// DatasetConfig is one catalog entry. Min and Max, when both set, override
// the display range the cube declares.
type DatasetConfig struct {
	Path string   `toml:"path"`
	Min  *float64 `toml:"min"`
	Max  *float64 `toml:"max"`
}

// Duration is a time.Duration read from a TOML string such as "5s".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	return Config{
		Window: WindowConfig{
			Title:       "fitsview",
			Width:       1280,
			Height:      800,
			AutoRotate:  true,
			RotateSpeed: 0.5,
			HUD:         true,
			HUDScale:    1,
		},
		Cube: CubeConfig{
			LowPercentile:  cube.DefaultLowPercentile,
			HighPercentile: cube.DefaultHighPercentile,
			CacheEntries:   catalog.DefaultCacheEntries,
		},
		GPU: GPUConfig{
			FenceTimeout: Duration{5 * time.Second},
		},
		Logging: LogConfig{
			MaxSize: 10,
			MaxAge:  7,
		},
	}
}

// LoadConfig reads a TOML file over DefaultConfig. Relative dataset and
// log paths are taken relative to the file's directory.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("fitsview: decode %s: %w", path, err)
	}
	for _, k := range md.Undecoded() {
		cfg.Unknown = append(cfg.Unknown, k.String())
	}

	cfg.resolvePaths(filepath.Dir(path))
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) resolvePaths(dir string) {
	abs := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(dir, p)
	}
	for i := range c.Datasets {
		c.Datasets[i].Path = abs(c.Datasets[i].Path)
	}
	c.Cube.Initial = abs(c.Cube.Initial)
	c.Logging.Logfile = abs(c.Logging.Logfile)
}

// Validate reports the first unusable value.
func (c *Config) Validate() error {
	switch {
	case c.Window.Width <= 0 || c.Window.Height <= 0:
		return fmt.Errorf("%w: window size %dx%d", ErrConfig, c.Window.Width, c.Window.Height)
	case c.Cube.LowPercentile < 0 || c.Cube.LowPercentile > 100,
		c.Cube.HighPercentile < 0 || c.Cube.HighPercentile > 100:
		return fmt.Errorf("%w: percentiles %d/%d outside 0..100", ErrConfig, c.Cube.LowPercentile, c.Cube.HighPercentile)
	case c.Cube.CacheEntries < 0 || c.Cube.MaxBytes < 0:
		return fmt.Errorf("%w: negative loader limits", ErrConfig)
	}
	for i, d := range c.Datasets {
		if d.Path == "" {
			return fmt.Errorf("%w: dataset %d has no path", ErrConfig, i)
		}
		if (d.Min == nil) != (d.Max == nil) {
			return fmt.Errorf("%w: dataset %s sets only one of min/max", ErrConfig, d.Path)
		}
	}
	return nil
}

// Catalog returns the configured datasets, or the stock list when none
// are configured.
func (c *Config) Catalog() []catalog.Entry {
	if len(c.Datasets) == 0 {
		return catalog.Default()
	}
	entries := make([]catalog.Entry, len(c.Datasets))
	for i, d := range c.Datasets {
		entries[i] = catalog.Entry{Path: d.Path}
		if d.Min != nil && d.Max != nil {
			entries[i].Range = &[2]float32{float32(*d.Min), float32(*d.Max)}
		}
	}
	return entries
}

// NewLogger builds a text logger for c. When Logfile is set, output goes
// to a size-rotated file; the returned closer closes it.
func (c LogConfig) NewLogger() (*slog.Logger, io.Closer) {
	level := slog.LevelInfo
	if c.Debug {
		level = slog.LevelDebug
	}

	var (
		w      io.Writer = os.Stderr
		closer io.Closer = io.NopCloser(nil)
	)
	if c.Logfile != "" {
		l := &lumberjack.Logger{
			Filename: c.Logfile,
			MaxSize:  c.MaxSize, // megabytes
			MaxAge:   c.MaxAge,  // days
		}
		w, closer = l, l
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})), closer
}
