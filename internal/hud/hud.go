// Package hud draws the viewer's on-screen panel: dataset details, frame
// rate and two buttons. The panel is rasterized on the CPU with gg and
// composited as a textured quad in the UI pass.
package hud

import (
	_ "embed"
	"errors"
	"fmt"
	"image"

	"github.com/gogpu/gg/text"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/gogpu/fitsview/internal/gpu"
	"github.com/gogpu/fitsview/internal/interact"
)

//go:embed shaders/hud.wgsl
var hudShaderSource string

// DefaultFontSize is the label size in logical pixels.
const DefaultFontSize = 13

// Action is a request triggered by a panel button.
type Action int

// Button actions.
const (
	ActionNone Action = iota
	ActionTogglePerspective
	ActionNextDataset
)

func (a Action) String() string {
	switch a {
	case ActionNone:
		return "none"
	case ActionTogglePerspective:
		return "toggle-perspective"
	case ActionNextDataset:
		return "next-dataset"
	}
	return "unknown"
}

// Options configures a HUD.
type Options struct {
	// Origin is the panel's top-left corner in window pixels.
	Origin image.Point

	// Scale multiplies the panel size, e.g. for HiDPI windows.
	Scale float64

	// Format of the render target.
	Format gputypes.TextureFormat

	// FontSize in logical pixels.
	FontSize float64

	// Lang selects number formatting. Defaults to English.
	Lang language.Tag
}

// DefaultOptions returns the stock panel placement.
func DefaultOptions() Options {
	return Options{
		Origin:   image.Pt(12, 12),
		Scale:    1,
		Format:   gputypes.TextureFormatBGRA8Unorm,
		FontSize: DefaultFontSize,
		Lang:     language.English,
	}
}

// HUD is the UI overlay. It implements gpu.Overlay. Like the renderer it
// belongs to the event loop goroutine.
type HUD struct {
	device hal.Device
	queue  hal.Queue
	opts   Options

	fonts   *text.FontSource
	face    text.Face
	printer *message.Printer

	info  Info
	fps   fpsMeter
	hover int
	dirty bool

	// captured is set while a press that landed on the panel is held;
	// capturedBy is the button that made it.
	captured   bool
	capturedBy interact.Button
	visible    bool

	pipe *pipeline
}

var _ gpu.Overlay = (*HUD)(nil)

// New creates the HUD and its GPU pipeline.
func New(device hal.Device, queue hal.Queue, opts Options) (*HUD, error) {
	def := DefaultOptions()
	if opts.Scale <= 0 {
		opts.Scale = def.Scale
	}
	if opts.Format == gputypes.TextureFormatUndefined {
		opts.Format = def.Format
	}
	if opts.FontSize <= 0 {
		opts.FontSize = def.FontSize
	}
	if opts.Lang == language.Und {
		opts.Lang = def.Lang
	}

	fonts, err := text.NewFontSource(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("hud: load font: %w", err)
	}

	h := &HUD{
		device:  device,
		queue:   queue,
		opts:    opts,
		fonts:   fonts,
		face:    fonts.Face(opts.FontSize),
		printer: message.NewPrinter(opts.Lang),
		fps:     fpsMeter{window: fpsWindow, fps: -1},
		hover:   -1,
		dirty:   true,
		visible: true,
	}

	h.pipe, err = newPipeline(device, queue, opts.Format)
	if err != nil {
		_ = fonts.Close()
		return nil, err
	}
	slogger().Debug("hud: created", "scale", opts.Scale, "format", opts.Format)
	return h, nil
}

// SetInfo replaces the panel contents. The panel is redrawn on the next
// frame only if something changed.
func (h *HUD) SetInfo(info Info) {
	if info == h.info {
		return
	}
	h.info = info
	h.dirty = true
}

// Info returns the panel contents.
func (h *HUD) Info() Info { return h.info }

// SetVisible shows or hides the panel. A hidden panel draws nothing and
// consumes no events.
func (h *HUD) SetVisible(on bool) {
	h.visible = on
	h.captured = false
}

// Visible reports whether the panel is shown.
func (h *HUD) Visible() bool { return h.visible }

// Bounds returns the panel rectangle in window pixels.
func (h *HUD) Bounds() image.Rectangle {
	w := int(float64(panelWidth)*h.opts.Scale + 0.5)
	ht := int(float64(panelHeight)*h.opts.Scale + 0.5)
	return image.Rectangle{Min: h.opts.Origin, Max: h.opts.Origin.Add(image.Pt(w, ht))}
}

// HandlePointer offers a pointer event to the panel. It reports whether
// the panel consumed it and which button, if any, was pressed.
//
// A press inside the panel is consumed together with its release and any
// moves in between. Presses outside, and drags that started outside, pass
// through even when the pointer crosses the panel.
func (h *HUD) HandlePointer(ev interact.Event) (bool, Action) {
	if !h.visible {
		return false, ActionNone
	}
	pt := image.Pt(int(ev.X), int(ev.Y))
	inside := pt.In(h.Bounds())

	switch ev.Kind {
	case interact.PointerDown:
		if !inside {
			return false, ActionNone
		}
		if h.captured {
			// A second button on the panel; the first one still owns the capture.
			return true, ActionNone
		}
		h.captured = true
		h.capturedBy = ev.Button
		if ev.Button != interact.ButtonLeft {
			return true, ActionNone
		}
		if i := h.buttonAt(pt); i >= 0 {
			act := buttons()[i].action
			slogger().Debug("hud: button", "action", act)
			return true, act
		}
		return true, ActionNone

	case interact.PointerUp:
		if h.captured && ev.Button == h.capturedBy {
			h.captured = false
			return true, ActionNone
		}
		return false, ActionNone

	case interact.PointerMove:
		hover := -1
		if inside {
			hover = h.buttonAt(pt)
		}
		if hover != h.hover {
			h.hover = hover
			h.dirty = true
		}
		return h.captured, ActionNone
	}
	return false, ActionNone
}

// buttonAt returns the index of the button under window point pt, or -1.
func (h *HUD) buttonAt(pt image.Point) int {
	local := pt.Sub(h.opts.Origin)
	lx := int(float64(local.X) / h.opts.Scale)
	ly := int(float64(local.Y) / h.opts.Scale)
	for i, b := range buttons() {
		if image.Pt(lx, ly).In(b.rect) {
			return i
		}
	}
	return -1
}

// Encode records the UI pass. It redraws the panel texture when its
// contents changed, then composites it over target.
func (h *HUD) Encode(encoder hal.CommandEncoder, target hal.TextureView, info gpu.FrameInfo) error {
	if h.pipe == nil {
		return errDestroyed
	}
	if !h.visible || info.Width == 0 || info.Height == 0 {
		return nil
	}

	if h.fps.sample(info.Elapsed, info.Frame) {
		h.dirty = true
	}
	if h.dirty {
		img, err := rasterize(h.face, h.printer, h.info, h.fps.fps, h.hover, h.opts.Scale)
		if err != nil {
			return err
		}
		if err := h.pipe.upload(img); err != nil {
			return err
		}
		h.dirty = false
	}

	h.pipe.setRect(ndcRect(h.Bounds(), info.Width, info.Height))

	rp := encoder.BeginRenderPass(&hal.RenderPassDescriptor{
		Label: "hud_pass",
		ColorAttachments: []hal.RenderPassColorAttachment{{
			View:    target,
			LoadOp:  gputypes.LoadOpLoad,
			StoreOp: gputypes.StoreOpStore,
		}},
	})
	h.pipe.record(rp)
	rp.End()
	return nil
}

// Destroy releases the pipeline and font. Safe to call more than once.
func (h *HUD) Destroy() {
	if h.pipe != nil {
		h.pipe.destroy()
		h.pipe = nil
	}
	if h.fonts != nil {
		_ = h.fonts.Close()
		h.fonts = nil
	}
}

var errDestroyed = errors.New("hud: used after Destroy")

// ndcRect converts a window-pixel rectangle to NDC (left, top, right,
// bottom) for a width x height target.
func ndcRect(r image.Rectangle, width, height uint32) [4]float32 {
	w, ht := float32(width), float32(height)
	return [4]float32{
		float32(r.Min.X)/w*2 - 1,
		1 - float32(r.Min.Y)/ht*2,
		float32(r.Max.X)/w*2 - 1,
		1 - float32(r.Max.Y)/ht*2,
	}
}
