package gpu

import (
	"errors"
	"testing"
	"time"

	"github.com/gogpu/wgpu/hal"
)

type testResources struct {
	device   hal.Device
	queue    hal.Queue
	params   *ParameterSet
	volumes  *VolumeManager
	renderer *Renderer
}

func newTestRenderer(t *testing.T) *testResources {
	t.Helper()
	device, queue, cleanup := createNoopDevice(t)

	params, err := NewParameterSet(device, queue)
	if err != nil {
		cleanup()
		t.Fatalf("NewParameterSet: %v", err)
	}
	volumes, err := NewVolumeManager(device, queue, testLimits(64))
	if err != nil {
		cleanup()
		t.Fatalf("NewVolumeManager: %v", err)
	}
	r, err := NewRenderer(device, queue, params, volumes, DefaultRendererConfig())
	if err != nil {
		cleanup()
		t.Fatalf("NewRenderer: %v", err)
	}
	t.Cleanup(func() {
		r.Destroy()
		volumes.Destroy()
		params.Destroy()
		cleanup()
	})
	return &testResources{device, queue, params, volumes, r}
}

// recordingOverlay records the calls the renderer makes to the UI pass.
type recordingOverlay struct {
	calls  int
	target hal.TextureView
	info   FrameInfo
	err    error
}

func (o *recordingOverlay) Encode(_ hal.CommandEncoder, target hal.TextureView, info FrameInfo) error {
	o.calls++
	o.target = target
	o.info = info
	return o.err
}

func TestRendererRenderFrame(t *testing.T) {
	res := newTestRenderer(t)
	surface := newTestSurface(t, res.device, 320, 200)
	overlay := &recordingOverlay{}

	info := FrameInfo{Width: 320, Height: 200, Elapsed: time.Second, Frame: 1}
	if err := res.renderer.RenderFrame(surface, overlay, info); err != nil {
		t.Fatalf("RenderFrame: %v", err)
	}
	if res.renderer.Frames() != 1 {
		t.Errorf("Frames = %d, want 1", res.renderer.Frames())
	}
	if surface.presented != 1 {
		t.Errorf("presented = %d, want 1", surface.presented)
	}
	if overlay.calls != 1 || overlay.target != surface.view || overlay.info != info {
		t.Errorf("overlay got calls=%d target=%v info=%+v", overlay.calls, overlay.target, overlay.info)
	}
}

func TestRendererSkipsWithoutTarget(t *testing.T) {
	res := newTestRenderer(t)
	surface := newTestSurface(t, res.device, 64, 64)
	surface.acquireErr = errSurfaceLost
	overlay := &recordingOverlay{}

	if err := res.renderer.RenderFrame(surface, overlay, FrameInfo{}); err != nil {
		t.Fatalf("RenderFrame with lost surface returned %v, want nil", err)
	}
	if res.renderer.SkippedFrames() != 1 || res.renderer.Frames() != 0 {
		t.Errorf("skipped=%d frames=%d, want 1/0", res.renderer.SkippedFrames(), res.renderer.Frames())
	}
	if overlay.calls != 0 || surface.presented != 0 {
		t.Error("skipped frame still ran passes or presented")
	}

	// The next frame renders normally once the surface is back.
	surface.acquireErr = nil
	if err := res.renderer.RenderFrame(surface, overlay, FrameInfo{}); err != nil {
		t.Fatalf("RenderFrame after recovery: %v", err)
	}
	if res.renderer.Frames() != 1 {
		t.Errorf("Frames = %d, want 1", res.renderer.Frames())
	}
}

func TestRendererOverlayError(t *testing.T) {
	res := newTestRenderer(t)
	surface := newTestSurface(t, res.device, 64, 64)
	boom := errors.New("boom")

	err := res.renderer.RenderFrame(surface, &recordingOverlay{err: boom}, FrameInfo{})
	if !errors.Is(err, boom) {
		t.Fatalf("RenderFrame error = %v, want wrapped boom", err)
	}
	if surface.presented != 0 {
		t.Error("frame presented despite UI pass failure")
	}
}

func TestRendererRebindsAfterUpload(t *testing.T) {
	res := newTestRenderer(t)
	surface := newTestSurface(t, res.device, 64, 64)

	if err := res.renderer.RenderFrame(surface, nil, FrameInfo{}); err != nil {
		t.Fatalf("RenderFrame: %v", err)
	}
	first := res.renderer.volumetric.bindGroup

	if _, err := res.volumes.Upload(4, 4, 4, floatBytes(64)); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if res.volumes.Retired() != 1 {
		t.Fatalf("Retired = %d, want 1", res.volumes.Retired())
	}

	if err := res.renderer.RenderFrame(surface, nil, FrameInfo{}); err != nil {
		t.Fatalf("RenderFrame: %v", err)
	}
	if res.renderer.volumetric.bindGroup == first {
		t.Error("bind group not rebuilt after volume change")
	}
	if res.renderer.volumetric.generation != res.volumes.Generation() {
		t.Error("bind group generation out of date")
	}
	if res.volumes.Retired() != 0 || len(res.renderer.retiredGroups) != 0 {
		t.Error("retired resources not released after the frame completed")
	}
}

func TestRendererSharesUniformBuffers(t *testing.T) {
	res := newTestRenderer(t)
	// Both passes bind entries built from the same ParameterSet; the
	// selector groups must be a subset of the volumetric groups.
	in := map[Group]bool{}
	for _, g := range volumetricGroups {
		in[g] = true
	}
	for _, g := range selectorGroups {
		if !in[g] {
			t.Errorf("selector group %s not bound by volumetric pass", g)
		}
	}
	for _, g := range selectorGroups {
		if res.params.bindEntry(g).Binding != g.Binding() {
			t.Errorf("%s bound at wrong index", g)
		}
	}
}
