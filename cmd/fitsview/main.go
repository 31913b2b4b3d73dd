// Command fitsview opens a window and renders FITS data cubes as
// rotating volumes.
//
// Usage:
//
//	fitsview [-config fitsview.toml] [-cube path.fits.gz] [-logfile fitsview.log] [-debug] [-perspective]
//
// Keys: A loads the next cube, Enter toggles fullscreen, Escape quits.
// Left-drag rotates the camera, right-drag changes the intensity window.
package main

import (
	"errors"
	"flag"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/gogpu/gogpu"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/fitsview"
	"github.com/gogpu/fitsview/internal/interact"
)

func main() {
	var (
		configPath  = flag.String("config", "", "TOML configuration file")
		cubePath    = flag.String("cube", "", "cube to show first (overrides the config)")
		logfile     = flag.String("logfile", "", "write logs to a rotating file instead of stderr")
		debug       = flag.Bool("debug", false, "enable debug logging")
		perspective = flag.Bool("perspective", false, "start in perspective projection")
	)
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatal(err)
	}
	if *cubePath != "" {
		cfg.Cube.Initial = *cubePath
	}
	if *logfile != "" {
		cfg.Logging.Logfile = *logfile
	}
	cfg.Logging.Debug = cfg.Logging.Debug || *debug
	cfg.Window.Perspective = cfg.Window.Perspective || *perspective

	logger, closer := cfg.Logging.NewLogger()
	defer closer.Close()
	fitsview.SetLogger(logger)
	if len(cfg.Unknown) > 0 {
		logger.Warn("fitsview: unknown config keys", "file", *configPath, "keys", strings.Join(cfg.Unknown, ", "))
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("fitsview: exit", "err", err)
		closer.Close()
		os.Exit(1)
	}
}

func loadConfig(path string) (fitsview.Config, error) {
	if path == "" {
		return fitsview.DefaultConfig(), nil
	}
	return fitsview.LoadConfig(path)
}

func run(cfg fitsview.Config, logger *slog.Logger) error {
	app := gogpu.NewApp(gogpu.DefaultConfig().
		WithTitle(cfg.Window.Title).
		WithSize(cfg.Window.Width, cfg.Window.Height).
		WithContinuousRender(true))

	var (
		viewer  *fitsview.Viewer
		initErr error
		start   = time.Now()
	)
	perform := func(act interact.Action) {
		switch act {
		case interact.ActionQuit:
			logger.Info("fitsview: quit requested")
			app.Quit()
		case interact.ActionToggleFullscreen:
			toggleFullscreen(app, logger)
		}
	}

	app.OnDraw(func(dc *gogpu.Context) {
		w, h := dc.Width(), dc.Height()
		if w <= 0 || h <= 0 || initErr != nil {
			return
		}

		if viewer == nil {
			viewer, initErr = newViewer(app, cfg)
			if initErr != nil {
				logger.Error("fitsview: no usable GPU device", "err", initErr)
				app.Quit()
				return
			}
			logger.Info("fitsview: backend", "name", dc.Backend())
			// A bad initial cube is reported and the placeholder volume stays.
			_ = viewer.LoadInitial()
		}

		viewer.Resize(w, h)
		viewer.Tick(time.Since(start))
		if err := viewer.RenderFrame(surfaceTarget{view: any(dc.SurfaceView())}); err != nil {
			logger.Warn("fitsview: frame", "err", err)
		}
	})

	bindInput(app, func(ev interact.Event) {
		if viewer == nil {
			return
		}
		perform(viewer.HandleEvent(ev))
	})

	app.OnClose(func() {
		if viewer == nil {
			return
		}
		rendered, skipped := viewer.Frames()
		logger.Info("fitsview: closing", "frames", rendered, "skipped", skipped)
		viewer.Close()
	})

	if err := app.Run(); err != nil {
		return err
	}
	return initErr
}

// newViewer creates the viewer on the window's HAL device.
func newViewer(app *gogpu.App, cfg fitsview.Config) (*fitsview.Viewer, error) {
	provider := app.GPUContextProvider()
	if provider == nil {
		return nil, errors.New("no GPU context provider")
	}
	hp, ok := any(provider).(interface {
		HalDevice() any
		HalQueue() any
	})
	if !ok {
		return nil, errors.New("provider does not expose HAL handles")
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok {
		return nil, errors.New("provider HalDevice is not hal.Device")
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok {
		return nil, errors.New("provider HalQueue is not hal.Queue")
	}
	return fitsview.NewViewer(device, queue, cfg)
}

// surfaceTarget adapts the window's current surface view. gogpu presents
// the surface itself after OnDraw returns.
type surfaceTarget struct {
	view any
}

func (s surfaceTarget) AcquireTarget() (hal.TextureView, error) {
	v, ok := s.view.(hal.TextureView)
	if !ok || v == nil {
		return nil, errors.New("surface view unavailable")
	}
	return v, nil
}

func (surfaceTarget) Present() error { return nil }

// toggleFullscreen uses the window's fullscreen switch when the platform
// layer provides one.
func toggleFullscreen(app *gogpu.App, logger *slog.Logger) {
	fs, ok := any(app).(interface{ ToggleFullscreen() })
	if !ok {
		logger.Debug("fitsview: fullscreen not supported by this window")
		return
	}
	fs.ToggleFullscreen()
}
