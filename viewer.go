package fitsview

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/fitsview/internal/catalog"
	"github.com/gogpu/fitsview/internal/cube"
	"github.com/gogpu/fitsview/internal/gpu"
	"github.com/gogpu/fitsview/internal/hud"
	"github.com/gogpu/fitsview/internal/interact"
	"github.com/gogpu/fitsview/internal/params"
)

// ErrClosed is returned by operations on a closed Viewer.
var ErrClosed = errors.New("fitsview: viewer closed")

// defaultMinMax is the declared range used when neither the catalog nor the
// cube header provides one.
var defaultMinMax = [2]float32{0, 1}

// injectedName labels datasets that arrive through the parameter queue.
const injectedName = "injected"

// Notifier receives load failures the user must see. Desktop shells
// usually leave it nil and rely on the log; shells without a visible
// console show an alert.
type Notifier interface {
	Notify(err error)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(err error)

// Notify calls f(err).
func (f NotifierFunc) Notify(err error) { f(err) }

// Option configures a Viewer.
type Option func(*options)

type options struct {
	notifier Notifier
	limits   gputypes.Limits
	format   gputypes.TextureFormat
}

// WithNotifier sets the load failure notifier.
func WithNotifier(n Notifier) Option {
	return func(o *options) { o.notifier = n }
}

// WithLimits sets the device limits volume uploads are checked against.
// Defaults to gputypes.DefaultLimits().
func WithLimits(l gputypes.Limits) Option {
	return func(o *options) { o.limits = l }
}

// WithFormat sets the surface texture format. Defaults to BGRA8Unorm.
func WithFormat(f gputypes.TextureFormat) Option {
	return func(o *options) { o.format = f }
}

// Loaded describes the dataset on screen.
type Loaded struct {
	Name                 string
	Width, Height, Depth uint32
	Bytes                int
	MinMax               [2]float32
	AutoCut              [2]float32
}

// Viewer ties the viewer components together: it owns the GPU state,
// routes input to the HUD and the interaction machine, applies queued
// parameters once per tick and renders frames.
//
// All methods except Inbox must be called from the goroutine that runs the
// event loop. The queue returned by Inbox accepts producers on any
// goroutine.
type Viewer struct {
	cfg Config

	uniforms *gpu.ParameterSet
	volumes  *gpu.VolumeManager
	renderer *gpu.Renderer
	hud      *hud.HUD

	machine *interact.Machine
	ingest  *cube.Ingestor
	catalog *catalog.Catalog
	loader  *catalog.Loader
	inbox   *params.Queue

	notifier Notifier

	width, height uint32
	perspective   bool
	autoRotate    bool
	elapsed       time.Duration
	frame         uint64
	loaded        Loaded
	closed        bool
}

// NewViewer creates the GPU resources for cfg on device and queue.
func NewViewer(device hal.Device, queue hal.Queue, cfg Config, opts ...Option) (*Viewer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := options{
		limits: gputypes.DefaultLimits(),
		format: gputypes.TextureFormatBGRA8Unorm,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if lim := cfg.GPU.MaxTextureDimension3D; lim != 0 && lim < o.limits.MaxTextureDimension3D {
		o.limits.MaxTextureDimension3D = lim
	}

	v := &Viewer{
		cfg:        cfg,
		catalog:    catalog.New(cfg.Catalog()),
		loader:     catalog.NewLoader(cfg.Cube.CacheEntries, cfg.Cube.MaxBytes),
		inbox:      params.New(),
		notifier:   o.notifier,
		autoRotate: cfg.Window.AutoRotate,
	}

	var err error
	if v.uniforms, err = gpu.NewParameterSet(device, queue); err != nil {
		return nil, fmt.Errorf("fitsview: %w", err)
	}
	if v.volumes, err = gpu.NewVolumeManager(device, queue, o.limits); err != nil {
		v.Close()
		return nil, fmt.Errorf("fitsview: %w", err)
	}
	rcfg := gpu.DefaultRendererConfig()
	rcfg.Format = o.format
	rcfg.FenceTimeout = cfg.GPU.FenceTimeout.Duration
	if v.renderer, err = gpu.NewRenderer(device, queue, v.uniforms, v.volumes, rcfg); err != nil {
		v.Close()
		return nil, fmt.Errorf("fitsview: %w", err)
	}
	if cfg.Window.HUD {
		hopts := hud.DefaultOptions()
		hopts.Scale = cfg.Window.HUDScale
		hopts.Format = o.format
		if v.hud, err = hud.New(device, queue, hopts); err != nil {
			v.Close()
			return nil, fmt.Errorf("fitsview: %w", err)
		}
	}

	v.ingest = cube.NewIngestor(
		cube.WithWorkers(cfg.Cube.Workers),
		cube.WithPercentiles(cfg.Cube.LowPercentile, cfg.Cube.HighPercentile),
	)
	v.machine = interact.NewMachine(uniformSink{v.uniforms}, cfg.Window.Width, cfg.Window.Height)

	v.Resize(cfg.Window.Width, cfg.Window.Height)
	v.SetPerspective(cfg.Window.Perspective)

	slogger().Info("fitsview: viewer ready",
		"size", fmt.Sprintf("%dx%d", v.width, v.height),
		"max_3d", o.limits.MaxTextureDimension3D,
		"datasets", v.catalog.Len())
	return v, nil
}

// uniformSink writes interaction results into the shared parameter set.
type uniformSink struct {
	set *gpu.ParameterSet
}

func (s uniformSink) SetCamera(theta, delta float32) error {
	return s.set.Write(gpu.GroupCamera, theta, delta)
}

func (s uniformSink) SetCuts(scale, offset float32) error {
	return s.set.Write(gpu.GroupCuts, scale, offset)
}

// Inbox returns the parameter queue. Producers on any goroutine may queue
// perspective, range and dataset changes; they are applied on the next
// Tick.
func (v *Viewer) Inbox() *params.Queue { return v.inbox }

// Resize records a new window size.
func (v *Viewer) Resize(width, height int) {
	width, height = max(width, 0), max(height, 0)
	v.width, v.height = uint32(width), uint32(height) //nolint:gosec // clamped non-negative
	v.machine.SetViewport(width, height)
	v.write(gpu.GroupViewport, float32(width), float32(height))
}

// SetPerspective switches between perspective and orthographic rays.
func (v *Viewer) SetPerspective(on bool) {
	v.perspective = on
	var flag float32
	if on {
		flag = 1
	}
	v.write(gpu.GroupPerspective, flag)
}

// Perspective reports whether perspective projection is on.
func (v *Viewer) Perspective() bool { return v.perspective }

// SetRange sets the intensity window and makes it the baseline for the
// next window drag. lo <= hi is not enforced.
func (v *Viewer) SetRange(lo, hi float32) {
	v.write(gpu.GroupCuts, lo, hi)
	v.machine.SetCuts(lo, hi)
}

// SetAutoRotate turns the idle rotation on or off.
func (v *Viewer) SetAutoRotate(on bool) { v.autoRotate = on }

// AutoRotate reports whether the idle rotation is on.
func (v *Viewer) AutoRotate() bool { return v.autoRotate }

// HandleEvent routes one input event. Pointer events go to the HUD first;
// an event the HUD consumes never reaches the interaction machine.
//
// Next-dataset requests are carried out here. The returned action is one
// the shell must perform: toggle fullscreen or quit.
func (v *Viewer) HandleEvent(ev interact.Event) interact.Action {
	if v.hud != nil && isPointer(ev.Kind) {
		if consumed, act := v.hud.HandlePointer(ev); consumed {
			switch act {
			case hud.ActionTogglePerspective:
				v.SetPerspective(!v.perspective)
			case hud.ActionNextDataset:
				_ = v.NextDataset()
			}
			return interact.ActionNone
		}
	}

	act := v.machine.Handle(ev)
	if act == interact.ActionNextDataset {
		_ = v.NextDataset()
		return interact.ActionNone
	}
	return act
}

func isPointer(k interact.EventKind) bool {
	return k == interact.PointerDown || k == interact.PointerUp || k == interact.PointerMove
}

// LoadInitial loads the configured initial cube, or the first catalog
// entry when none is configured.
func (v *Viewer) LoadInitial() error {
	if v.cfg.Cube.Initial != "" {
		return v.LoadCube(v.cfg.Cube.Initial)
	}
	return v.NextDataset()
}

// NextDataset advances the catalog and loads the next cube, applying the
// catalog's known range for it.
func (v *Viewer) NextDataset() error {
	e, err := v.catalog.Next()
	if err != nil {
		return v.fail("catalog", err)
	}
	return v.LoadCube(e.Path)
}

// LoadCube reads a FITS file (optionally gzip-compressed) and displays it.
// On failure the previous cube and every uniform are left untouched; the
// error is logged, passed to the Notifier and returned.
func (v *Viewer) LoadCube(path string) error {
	entry, known := v.catalog.Lookup(path)
	if !known {
		entry = catalog.Entry{Path: path}
	}

	data, err := v.loader.Load(path)
	if err != nil {
		return v.fail(entry.Name(), err)
	}
	if err := v.load(entry.Name(), data, entry.Range); err != nil {
		return err
	}
	if known {
		v.catalog.Select(path)
	}
	return nil
}

// LoadBytes displays a FITS stream held in memory, such as one received
// from a file picker.
func (v *Viewer) LoadBytes(data []byte) error {
	return v.load(injectedName, data, nil)
}

func (v *Viewer) load(name string, data []byte, override *[2]float32) error {
	if v.closed {
		return ErrClosed
	}
	start := time.Now()

	data, err := catalog.Inflate(data, v.cfg.Cube.MaxBytes)
	if err != nil {
		return v.fail(name, err)
	}
	c, err := cube.Decode(bytes.NewReader(data), v.ingest)
	if err != nil {
		return v.fail(name, err)
	}
	if _, err := v.volumes.Upload(c.Width, c.Height, c.Depth, c.Data); err != nil {
		return v.fail(name, err)
	}

	// The new volume is bound; only now do the uniforms change.
	minmax := c.Range(defaultMinMax)
	if override != nil {
		minmax = *override
	}
	v.write(gpu.GroupMinMax, minmax[0], minmax[1])
	v.SetRange(c.AutoCut[0], c.AutoCut[1])

	v.loaded = Loaded{
		Name:    name,
		Width:   c.Width,
		Height:  c.Height,
		Depth:   c.Depth,
		Bytes:   c.Size(),
		MinMax:  minmax,
		AutoCut: c.AutoCut,
	}
	slogger().Info("fitsview: cube loaded",
		"name", name,
		"dims", fmt.Sprintf("%dx%dx%d", c.Width, c.Height, c.Depth),
		"size", humanize.Bytes(uint64(c.Size())), //nolint:gosec // size is non-negative
		"cut", c.AutoCut,
		"minmax", minmax,
		"elapsed", time.Since(start))
	return nil
}

func (v *Viewer) fail(name string, err error) error {
	err = fmt.Errorf("fitsview: load %s: %w", name, err)
	slogger().Error("fitsview: load failed", "name", name, "err", err)
	if v.notifier != nil {
		v.notifier.Notify(err)
	}
	return err
}

// Loaded returns the dataset on screen. Name is empty before the first
// successful load.
func (v *Viewer) Loaded() Loaded { return v.loaded }

// Tick advances the viewer to elapsed time since start. It drains the
// parameter queue, applying perspective, then range, then dataset, and
// updates the time and rotation uniforms.
func (v *Viewer) Tick(elapsed time.Duration) {
	if v.closed {
		return
	}
	v.elapsed = elapsed

	b := v.inbox.Drain()
	if b.Perspective != nil {
		v.SetPerspective(*b.Perspective)
	}
	if b.Range != nil {
		v.SetRange(b.Range[0], b.Range[1])
	}
	if b.Data != nil {
		_ = v.LoadBytes(b.Data)
	}

	secs := float32(elapsed.Seconds())
	v.write(gpu.GroupTime, secs)
	if v.autoRotate {
		m := mgl32.HomogRotate3DY(secs * float32(v.cfg.Window.RotateSpeed))
		v.write(gpu.GroupRotation, m[:]...)
	}
}

// RenderFrame draws one frame to surface. A frame without a surface
// target is skipped without error.
func (v *Viewer) RenderFrame(surface gpu.Surface) error {
	if v.closed {
		return ErrClosed
	}
	v.frame++
	info := gpu.FrameInfo{
		Width:   v.width,
		Height:  v.height,
		Elapsed: v.elapsed,
		Frame:   v.frame,
	}

	var overlay gpu.Overlay
	if v.hud != nil {
		cuts := v.uniforms.Values(gpu.GroupCuts)
		v.hud.SetInfo(hud.Info{
			Name:        v.loaded.Name,
			Width:       v.loaded.Width,
			Height:      v.loaded.Height,
			Depth:       v.loaded.Depth,
			Bytes:       v.loaded.Bytes,
			Cuts:        [2]float32{cuts[0], cuts[1]},
			Perspective: v.perspective,
		})
		overlay = v.hud
	}
	return v.renderer.RenderFrame(surface, overlay, info)
}

// Frames returns the number of frames rendered and skipped.
func (v *Viewer) Frames() (rendered, skipped uint64) {
	return v.renderer.Frames(), v.renderer.SkippedFrames()
}

// Machine returns the interaction state.
func (v *Viewer) Machine() *interact.Machine { return v.machine }

// Uniforms returns the shared parameter set.
func (v *Viewer) Uniforms() *gpu.ParameterSet { return v.uniforms }

// Catalog returns the dataset catalog.
func (v *Viewer) Catalog() *catalog.Catalog { return v.catalog }

// write stores values in a group. Arity errors are programming errors in
// this package, so they are logged rather than returned.
func (v *Viewer) write(g gpu.Group, values ...float32) {
	if err := v.uniforms.Write(g, values...); err != nil {
		slogger().Warn("fitsview: uniform write", "group", g, "err", err)
	}
}

// Close releases every GPU resource and stops the decode workers. It is
// safe to call more than once.
func (v *Viewer) Close() {
	if v.closed {
		return
	}
	v.closed = true
	if v.renderer != nil {
		v.renderer.Destroy()
	}
	if v.hud != nil {
		v.hud.Destroy()
	}
	if v.volumes != nil {
		v.volumes.Destroy()
	}
	if v.uniforms != nil {
		v.uniforms.Destroy()
	}
	if v.ingest != nil {
		v.ingest.Close()
	}
	slogger().Debug("fitsview: viewer closed")
}
