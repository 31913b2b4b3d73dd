package gpu

import (
	"errors"
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"
)

// createNoopDevice creates a noop device and queue for testing.
// Returns the device, queue, and a cleanup function.
func createNoopDevice(t *testing.T) (hal.Device, hal.Queue, func()) {
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
	cleanup := func() {
		openDev.Device.Destroy()
		instance.Destroy()
	}
	return openDev.Device, openDev.Queue, cleanup
}

// testSurface is a Surface backed by an offscreen texture.
type testSurface struct {
	view       hal.TextureView
	acquireErr error
	presented  int
}

func (s *testSurface) AcquireTarget() (hal.TextureView, error) {
	if s.acquireErr != nil {
		return nil, s.acquireErr
	}
	return s.view, nil
}

func (s *testSurface) Present() error {
	s.presented++
	return nil
}

var errSurfaceLost = errors.New("surface lost")

func newTestSurface(t *testing.T, device hal.Device, w, h uint32) *testSurface {
	t.Helper()
	tex, err := device.CreateTexture(&hal.TextureDescriptor{
		Label:         "test_target",
		Size:          hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        gputypes.TextureFormatBGRA8Unorm,
		Usage:         gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageCopySrc,
	})
	if err != nil {
		t.Fatalf("CreateTexture: %v", err)
	}
	view, err := device.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label:         "test_target_view",
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
	return &testSurface{view: view}
}

// testLimits returns default limits with a small 3D texture bound.
func testLimits(max3D uint32) gputypes.Limits {
	l := gputypes.DefaultLimits()
	l.MaxTextureDimension3D = max3D
	return l
}

// floatBytes returns n zeroed float32 samples.
func floatBytes(n int) []byte { return make([]byte, n*volumeBytesPerSample) }
