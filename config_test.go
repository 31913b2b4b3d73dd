package fitsview

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fitsview.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaultConfigValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("DefaultConfig().Validate() = %v", err)
	}
	if cfg.Cube.LowPercentile != 5 || cfg.Cube.HighPercentile != 95 {
		t.Errorf("percentiles = %d/%d, want 5/95", cfg.Cube.LowPercentile, cfg.Cube.HighPercentile)
	}
	if cfg.GPU.FenceTimeout.Duration != 5*time.Second {
		t.Errorf("FenceTimeout = %v, want 5s", cfg.GPU.FenceTimeout)
	}
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
[window]
width = 640
perspective = true

[cube]
initial = "cubes/first.fits"
low_percentile = 1
high_percentile = 99

[gpu]
fence_timeout = "250ms"

[logging]
logfile = "logs/fitsview.log"

[[dataset]]
path = "cubes/first.fits"
min = -1.0
max = 2.5

[[dataset]]
path = "/abs/second.fits.gz"

[unknown]
key = 1
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	dir := filepath.Dir(path)

	if cfg.Window.Width != 640 || cfg.Window.Height != 800 {
		t.Errorf("window = %dx%d, want 640x800 (height from defaults)", cfg.Window.Width, cfg.Window.Height)
	}
	if !cfg.Window.Perspective || !cfg.Window.AutoRotate {
		t.Errorf("window flags = %+v", cfg.Window)
	}
	if cfg.Cube.LowPercentile != 1 || cfg.Cube.HighPercentile != 99 {
		t.Errorf("percentiles = %d/%d, want 1/99", cfg.Cube.LowPercentile, cfg.Cube.HighPercentile)
	}
	if cfg.GPU.FenceTimeout.Duration != 250*time.Millisecond {
		t.Errorf("FenceTimeout = %v, want 250ms", cfg.GPU.FenceTimeout)
	}
	if want := filepath.Join(dir, "cubes", "first.fits"); cfg.Cube.Initial != want {
		t.Errorf("Initial = %q, want %q", cfg.Cube.Initial, want)
	}
	if want := filepath.Join(dir, "logs", "fitsview.log"); cfg.Logging.Logfile != want {
		t.Errorf("Logfile = %q, want %q", cfg.Logging.Logfile, want)
	}
	if len(cfg.Datasets) != 2 {
		t.Fatalf("len(Datasets) = %d, want 2", len(cfg.Datasets))
	}
	if cfg.Datasets[1].Path != "/abs/second.fits.gz" {
		t.Errorf("absolute path rewritten to %q", cfg.Datasets[1].Path)
	}

	entries := cfg.Catalog()
	if entries[0].Range == nil || *entries[0].Range != [2]float32{-1, 2.5} {
		t.Errorf("entry 0 range = %v, want [-1 2.5]", entries[0].Range)
	}
	if entries[1].Range != nil {
		t.Errorf("entry 1 range = %v, want nil", *entries[1].Range)
	}
	if entries[1].Name() != "second" {
		t.Errorf("entry 1 name = %q, want second", entries[1].Name())
	}
	if len(cfg.Unknown) != 1 || cfg.Unknown[0] != "unknown.key" {
		t.Errorf("Unknown = %v, want [unknown.key]", cfg.Unknown)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want error
	}{
		{"bad toml", "[window\nwidth = 1", nil},
		{"bad duration", "[gpu]\nfence_timeout = \"soon\"", nil},
		{"zero height", "[window]\nheight = 0", ErrConfig},
		{"percentile range", "[cube]\nhigh_percentile = 101", ErrConfig},
		{"negative cache", "[cube]\ncache_entries = -1", ErrConfig},
		{"dataset without path", "[[dataset]]\nmin = 1.0\nmax = 2.0", ErrConfig},
		{"half range", "[[dataset]]\npath = \"a.fits\"\nmin = 1.0", ErrConfig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.body))
			if err == nil {
				t.Fatal("LoadConfig succeeded, want error")
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "none.toml"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("error = %v, want ErrNotExist", err)
	}
}

func TestCatalogDefaultsWhenEmpty(t *testing.T) {
	cfg := DefaultConfig()
	if got := len(cfg.Catalog()); got != 8 {
		t.Errorf("len(Catalog()) = %d, want 8 stock entries", got)
	}
}

func TestDurationText(t *testing.T) {
	var d Duration
	if err := d.UnmarshalText([]byte("1m30s")); err != nil {
		t.Fatalf("UnmarshalText: %v", err)
	}
	if d.Duration != 90*time.Second {
		t.Errorf("Duration = %v, want 1m30s", d.Duration)
	}
	text, err := d.MarshalText()
	if err != nil || string(text) != "1m30s" {
		t.Errorf("MarshalText = %q, %v", text, err)
	}
}

func TestLogConfigNewLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.log")
	l, closer := LogConfig{Logfile: path, MaxSize: 1, Debug: true}.NewLogger()
	l.Debug("hello", "k", 1)
	if err := closer.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(data) == 0 {
		t.Error("log file is empty")
	}

	l, closer = LogConfig{}.NewLogger()
	if l.Enabled(t.Context(), slog.LevelDebug) {
		t.Error("debug enabled without Debug")
	}
	if err := closer.Close(); err != nil {
		t.Errorf("stderr closer: %v", err)
	}
}
