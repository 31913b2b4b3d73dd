package hud

import (
	"image"
	"strings"
	"testing"
	"time"

	"github.com/gogpu/gg/text"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/gogpu/fitsview/internal/gpu"
	"github.com/gogpu/fitsview/internal/interact"
)

// createNoopDevice creates a noop device and queue for testing.
func createNoopDevice(t *testing.T) (hal.Device, hal.Queue) {
	t.Helper()
	api := noop.API{}
	instance, err := api.CreateInstance(nil)
	if err != nil {
		t.Fatalf("CreateInstance failed: %v", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	openDev, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() {
		openDev.Device.Destroy()
		instance.Destroy()
	})
	return openDev.Device, openDev.Queue
}

func newTestHUD(t *testing.T, opts Options) (*HUD, hal.Device) {
	t.Helper()
	device, queue := createNoopDevice(t)
	h, err := New(device, queue, opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(h.Destroy)
	return h, device
}

func newTarget(t *testing.T, device hal.Device) hal.TextureView {
	t.Helper()
	tex, err := device.CreateTexture(&hal.TextureDescriptor{
		Label:         "hud_test_target",
		Size:          hal.Extent3D{Width: 640, Height: 480, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        gputypes.TextureFormatBGRA8Unorm,
		Usage:         gputypes.TextureUsageRenderAttachment,
	})
	if err != nil {
		t.Fatalf("CreateTexture: %v", err)
	}
	view, err := device.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Format:        gputypes.TextureFormatBGRA8Unorm,
		Dimension:     gputypes.TextureViewDimension2D,
		Aspect:        gputypes.TextureAspectAll,
		MipLevelCount: 1,
	})
	if err != nil {
		t.Fatalf("CreateTextureView: %v", err)
	}
	t.Cleanup(func() {
		device.DestroyTextureView(view)
		device.DestroyTexture(tex)
	})
	return view
}

func encode(t *testing.T, h *HUD, device hal.Device, target hal.TextureView, info gpu.FrameInfo) {
	t.Helper()
	encoder, err := device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "hud_test"})
	if err != nil {
		t.Fatalf("CreateCommandEncoder: %v", err)
	}
	if err := encoder.BeginEncoding("hud_test"); err != nil {
		t.Fatalf("BeginEncoding: %v", err)
	}
	if err := h.Encode(encoder, target, info); err != nil {
		encoder.DiscardEncoding()
		t.Fatalf("Encode: %v", err)
	}
	cb, err := encoder.EndEncoding()
	if err != nil {
		t.Fatalf("EndEncoding: %v", err)
	}
	device.FreeCommandBuffer(cb)
}

func TestEncodeUploadsPanel(t *testing.T) {
	h, device := newTestHUD(t, DefaultOptions())
	target := newTarget(t, device)

	h.SetInfo(Info{Name: "NGC3198_cube", Width: 64, Height: 64, Depth: 32, Bytes: 64 * 64 * 32 * 4})
	encode(t, h, device, target, gpu.FrameInfo{Width: 640, Height: 480, Frame: 1})

	if h.dirty {
		t.Error("panel still dirty after Encode")
	}
	if h.pipe.texture == nil || h.pipe.bindGroup == nil {
		t.Fatal("panel texture not created")
	}
	if h.pipe.texSize != image.Pt(panelWidth, panelHeight) {
		t.Errorf("texture size = %v, want %dx%d", h.pipe.texSize, panelWidth, panelHeight)
	}
	if h.pipe.lastRect[0] >= h.pipe.lastRect[2] || h.pipe.lastRect[1] <= h.pipe.lastRect[3] {
		t.Errorf("rect = %v, want left<right and top>bottom", h.pipe.lastRect)
	}

	// Unchanged info keeps the texture.
	tex := h.pipe.texture
	h.SetInfo(h.Info())
	if h.dirty {
		t.Error("SetInfo with identical info marked the panel dirty")
	}
	encode(t, h, device, target, gpu.FrameInfo{Width: 640, Height: 480, Frame: 2})
	if h.pipe.texture != tex {
		t.Error("texture recreated without a size change")
	}
}

func TestEncodeHiddenOrEmpty(t *testing.T) {
	h, device := newTestHUD(t, DefaultOptions())
	target := newTarget(t, device)

	encode(t, h, device, target, gpu.FrameInfo{})
	if h.pipe.texture != nil {
		t.Error("zero-size frame uploaded the panel")
	}
	h.SetVisible(false)
	encode(t, h, device, target, gpu.FrameInfo{Width: 640, Height: 480})
	if h.pipe.texture != nil {
		t.Error("hidden panel uploaded")
	}
}

func TestEncodeAfterDestroy(t *testing.T) {
	h, device := newTestHUD(t, DefaultOptions())
	target := newTarget(t, device)
	h.Destroy()
	h.Destroy()

	encoder, err := device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{})
	if err != nil {
		t.Fatal(err)
	}
	if err := h.Encode(encoder, target, gpu.FrameInfo{Width: 1, Height: 1}); err == nil {
		t.Error("Encode after Destroy succeeded")
	}
}

func TestScaledPanel(t *testing.T) {
	opts := DefaultOptions()
	opts.Scale = 2
	h, device := newTestHUD(t, opts)
	target := newTarget(t, device)
	encode(t, h, device, target, gpu.FrameInfo{Width: 640, Height: 480})

	want := image.Pt(2*panelWidth, 2*panelHeight)
	if h.pipe.texSize != want {
		t.Errorf("texture size = %v, want %v", h.pipe.texSize, want)
	}
	if h.Bounds().Size() != want {
		t.Errorf("Bounds = %v, want size %v", h.Bounds(), want)
	}
}

func TestHandlePointer(t *testing.T) {
	h, _ := newTestHUD(t, DefaultOptions())
	origin := DefaultOptions().Origin
	bs := buttons()
	center := func(r image.Rectangle) (float64, float64) {
		c := r.Min.Add(r.Max).Div(2).Add(origin)
		return float64(c.X), float64(c.Y)
	}

	press := func(x, y float64, b interact.Button) (bool, Action) {
		return h.HandlePointer(interact.Event{Kind: interact.PointerDown, Button: b, X: x, Y: y})
	}
	release := func(x, y float64, b interact.Button) bool {
		ok, _ := h.HandlePointer(interact.Event{Kind: interact.PointerUp, Button: b, X: x, Y: y})
		return ok
	}

	x, y := center(bs[0].rect)
	if ok, act := press(x, y, interact.ButtonLeft); !ok || act != ActionTogglePerspective {
		t.Errorf("perspective button = %v %v", ok, act)
	}
	if !release(x, y, interact.ButtonLeft) {
		t.Error("release of captured press not consumed")
	}

	x, y = center(bs[1].rect)
	if ok, act := press(x, y, interact.ButtonLeft); !ok || act != ActionNextDataset {
		t.Errorf("next button = %v %v", ok, act)
	}
	release(x, y, interact.ButtonLeft)

	// Panel background: consumed, no action.
	if ok, act := press(float64(origin.X+2), float64(origin.Y+2), interact.ButtonLeft); !ok || act != ActionNone {
		t.Errorf("panel background = %v %v", ok, act)
	}
	release(0, 0, interact.ButtonLeft)

	// Right click on a button: consumed, no action.
	x, y = center(bs[0].rect)
	if ok, act := press(x, y, interact.ButtonRight); !ok || act != ActionNone {
		t.Errorf("right click on button = %v %v", ok, act)
	}
	release(x, y, interact.ButtonRight)

	// Outside the panel nothing is consumed, even when the drag crosses it.
	if ok, _ := press(500, 400, interact.ButtonLeft); ok {
		t.Error("press outside consumed")
	}
	if ok, _ := h.HandlePointer(interact.Event{Kind: interact.PointerMove, X: x, Y: y}); ok {
		t.Error("move of outside drag consumed")
	}
	if release(x, y, interact.ButtonLeft) {
		t.Error("release of outside drag consumed")
	}
}

func TestHandlePointerReleaseMatchesCapturingButton(t *testing.T) {
	h, _ := newTestHUD(t, DefaultOptions())
	in := h.Bounds().Min.Add(image.Pt(2, 2))
	x, y := float64(in.X), float64(in.Y)

	// A left drag that began outside is still held when the right button
	// lands on the panel.
	if ok, _ := h.HandlePointer(interact.Event{Kind: interact.PointerDown, Button: interact.ButtonRight, X: x, Y: y}); !ok {
		t.Fatal("right press on the panel not consumed")
	}
	if ok, _ := h.HandlePointer(interact.Event{Kind: interact.PointerUp, Button: interact.ButtonLeft, X: x, Y: y}); ok {
		t.Error("left release consumed by a right-button capture")
	}
	if ok, _ := h.HandlePointer(interact.Event{Kind: interact.PointerUp, Button: interact.ButtonRight, X: x, Y: y}); !ok {
		t.Error("right release not consumed")
	}
	if ok, _ := h.HandlePointer(interact.Event{Kind: interact.PointerMove, X: 600, Y: 400}); ok {
		t.Error("move consumed after the capture ended")
	}
}

func TestHandlePointerHidden(t *testing.T) {
	h, _ := newTestHUD(t, DefaultOptions())
	h.SetVisible(false)
	if ok, _ := h.HandlePointer(interact.Event{Kind: interact.PointerDown, X: 20, Y: 20}); ok {
		t.Error("hidden panel consumed a press")
	}
}

func TestHoverMarksDirty(t *testing.T) {
	h, _ := newTestHUD(t, DefaultOptions())
	h.dirty = false
	r := buttons()[1].rect.Add(DefaultOptions().Origin)
	h.HandlePointer(interact.Event{Kind: interact.PointerMove, X: float64(r.Min.X + 1), Y: float64(r.Min.Y + 1)})
	if !h.dirty || h.hover != 1 {
		t.Errorf("hover = %d dirty = %v, want 1 true", h.hover, h.dirty)
	}
	h.dirty = false
	h.HandlePointer(interact.Event{Kind: interact.PointerMove, X: float64(r.Min.X + 2), Y: float64(r.Min.Y + 1)})
	if h.dirty {
		t.Error("moving within the same button redrew the panel")
	}
}

func TestRasterize(t *testing.T) {
	fonts, err := text.NewFontSource(goregular.TTF)
	if err != nil {
		t.Fatal(err)
	}
	defer fonts.Close()
	p := message.NewPrinter(language.English)
	img, err := rasterize(fonts.Face(DefaultFontSize), p, Info{Name: "x"}, -1, -1, 1)
	if err != nil {
		t.Fatalf("rasterize: %v", err)
	}
	if img.Bounds().Size() != image.Pt(panelWidth, panelHeight) {
		t.Fatalf("size = %v", img.Bounds().Size())
	}
	// The panel center is covered by the translucent background.
	if a := img.RGBAAt(panelWidth/2, panelHeight/2).A; a == 0 {
		t.Error("panel background not drawn")
	}
	// Rounded corners leave the outermost pixel clear.
	if a := img.RGBAAt(0, 0).A; a != 0 {
		t.Error("corner fully opaque, rounding missing")
	}
}

func TestLines(t *testing.T) {
	p := message.NewPrinter(language.English)
	got := lines(p, Info{Name: "cube", Width: 1024, Height: 2048, Depth: 3, Bytes: 2_000_000, Cuts: [2]float32{0.5, 2}}, 59.94)
	want := []string{"cube", "1,024 × 2,048 × 3 voxels", "size 2.0 MB", "cuts 0.5 .. 2", "59.9 fps"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, got[i], want[i])
		}
	}
	empty := lines(p, Info{}, -1)
	if empty[0] != "no cube loaded" || empty[2] != "size -" || empty[4] != "- fps" {
		t.Errorf("empty lines = %q", empty)
	}
}

func TestFPSMeter(t *testing.T) {
	m := fpsMeter{window: time.Second, fps: -1}
	if m.sample(0, 0) {
		t.Error("first sample reported a rate")
	}
	if m.sample(500*time.Millisecond, 30) {
		t.Error("rate reported before the window elapsed")
	}
	if !m.sample(2*time.Second, 120) || m.fps != 60 {
		t.Errorf("fps = %v, want 60", m.fps)
	}
	// A restarted counter resets the meter.
	if m.sample(time.Second, 0) || m.fps != -1 {
		t.Errorf("reset fps = %v, want -1", m.fps)
	}
}

func TestNDCRect(t *testing.T) {
	got := ndcRect(image.Rect(0, 0, 100, 50), 200, 100)
	want := [4]float32{-1, 1, 0, 0}
	if got != want {
		t.Errorf("ndcRect = %v, want %v", got, want)
	}
}

func TestActionString(t *testing.T) {
	if ActionTogglePerspective.String() != "toggle-perspective" || Action(42).String() != "unknown" {
		t.Error("Action.String")
	}
}

func TestHUDShaderCompiles(t *testing.T) {
	spirv, err := naga.Compile(hudShaderSource)
	if err != nil {
		if strings.Contains(err.Error(), "not yet implemented") || strings.Contains(err.Error(), "not supported") {
			t.Skipf("Skipping: naga feature not yet implemented: %v", err)
		}
		t.Fatalf("failed to compile hud shader: %v", err)
	}
	if len(spirv) < 4 || spirv[0] != 0x03 || spirv[1] != 0x02 || spirv[2] != 0x23 || spirv[3] != 0x07 {
		t.Error("bad SPIR-V header")
	}
}
