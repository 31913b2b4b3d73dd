package gpu

import (
	"errors"
	"fmt"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// ErrDeviceLost is returned when a submitted frame does not complete
// within the fence timeout or the fence wait itself fails.
var ErrDeviceLost = errors.New("gpu: device lost")

// Surface is the presentation target of the window.
//
// AcquireTarget fails when the surface is lost or the window is
// minimized; the renderer then skips the frame without drawing.
type Surface interface {
	AcquireTarget() (hal.TextureView, error)
	Present() error
}

// FrameInfo describes the frame being rendered.
type FrameInfo struct {
	Width, Height uint32
	Elapsed       time.Duration
	Frame         uint64
}

// Overlay is the UI pass. Encode records one render pass into encoder that
// loads (does not clear) target. It runs after the volumetric and selector
// passes so the UI stacks on top.
type Overlay interface {
	Encode(encoder hal.CommandEncoder, target hal.TextureView, info FrameInfo) error
}

// RendererConfig controls frame composition.
type RendererConfig struct {
	// Format of the surface texture. Defaults to BGRA8Unorm.
	Format gputypes.TextureFormat

	// ClearColor is the background behind the volume.
	ClearColor gputypes.Color

	// FenceTimeout bounds the wait for a submitted frame. Defaults to 5s.
	FenceTimeout time.Duration
}

// DefaultRendererConfig returns the configuration used by the viewer.
func DefaultRendererConfig() RendererConfig {
	return RendererConfig{
		Format:       gputypes.TextureFormatBGRA8Unorm,
		ClearColor:   gputypes.Color{R: 0.01, G: 0.01, B: 0.01, A: 1},
		FenceTimeout: 5 * time.Second,
	}
}

// Renderer composes the volumetric, selector and UI passes into one
// command buffer per frame.
//
// Frame sequence:
//
//	AcquireTarget -> volumetric (clear) -> selector (load) -> overlay (load) -> submit -> Present
//
// Renderer is not safe for concurrent use; the event loop goroutine owns it.
type Renderer struct {
	device hal.Device
	queue  hal.Queue
	cfg    RendererConfig

	params  *ParameterSet
	volumes *VolumeManager

	quad       *quad
	volumetric *volumetricPass
	selector   *selectorPass

	retiredGroups []hal.BindGroup

	frames  uint64
	skipped uint64
}

// NewRenderer creates the quad and both pipelines. params and volumes are
// borrowed; the caller destroys them after the renderer.
func NewRenderer(device hal.Device, queue hal.Queue, params *ParameterSet, volumes *VolumeManager, cfg RendererConfig) (*Renderer, error) {
	def := DefaultRendererConfig()
	if cfg.Format == gputypes.TextureFormatUndefined {
		cfg.Format = def.Format
	}
	if cfg.FenceTimeout <= 0 {
		cfg.FenceTimeout = def.FenceTimeout
	}

	r := &Renderer{
		device:  device,
		queue:   queue,
		cfg:     cfg,
		params:  params,
		volumes: volumes,
	}

	var err error
	if r.quad, err = newQuad(device, queue); err != nil {
		return nil, err
	}
	if r.volumetric, err = newVolumetricPass(device, cfg.Format); err != nil {
		r.Destroy()
		return nil, err
	}
	if r.selector, err = newSelectorPass(device, params, cfg.Format); err != nil {
		r.Destroy()
		return nil, err
	}

	slogger().Debug("gpu: renderer created", "format", cfg.Format)
	return r, nil
}

// RenderFrame renders and presents one frame. A failed AcquireTarget is not
// an error: the frame is skipped and counted. overlay may be nil.
func (r *Renderer) RenderFrame(surface Surface, overlay Overlay, info FrameInfo) error {
	target, err := surface.AcquireTarget()
	if err != nil || target == nil {
		r.skipped++
		slogger().Debug("gpu: frame skipped, no target", "err", err)
		return nil
	}

	retired, err := r.volumetric.ensureBindGroup(r.params, r.volumes)
	if err != nil {
		return err
	}
	if retired != nil {
		r.retiredGroups = append(r.retiredGroups, retired)
	}

	if err := r.encodeSubmit(target, overlay, info); err != nil {
		return err
	}

	// The fence has signalled: nothing in flight references superseded
	// volumes or bind groups any more.
	r.releaseRetired()
	r.frames++

	if err := surface.Present(); err != nil {
		return fmt.Errorf("present: %w", err)
	}
	return nil
}

func (r *Renderer) encodeSubmit(target hal.TextureView, overlay Overlay, info FrameInfo) error {
	encoder, err := r.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{
		Label: "frame_encoder",
	})
	if err != nil {
		return fmt.Errorf("create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("frame"); err != nil {
		return fmt.Errorf("begin encoding: %w", err)
	}

	rp := encoder.BeginRenderPass(&hal.RenderPassDescriptor{
		Label: "volumetric_pass",
		ColorAttachments: []hal.RenderPassColorAttachment{{
			View:       target,
			LoadOp:     gputypes.LoadOpClear,
			StoreOp:    gputypes.StoreOpStore,
			ClearValue: r.cfg.ClearColor,
		}},
	})
	r.volumetric.record(rp, r.quad)
	rp.End()

	rp = encoder.BeginRenderPass(&hal.RenderPassDescriptor{
		Label: "selector_pass",
		ColorAttachments: []hal.RenderPassColorAttachment{{
			View:    target,
			LoadOp:  gputypes.LoadOpLoad,
			StoreOp: gputypes.StoreOpStore,
		}},
	})
	r.selector.record(rp, r.quad)
	rp.End()

	if overlay != nil {
		if err := overlay.Encode(encoder, target, info); err != nil {
			encoder.DiscardEncoding()
			return fmt.Errorf("ui pass: %w", err)
		}
	}

	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("end encoding: %w", err)
	}
	defer r.device.FreeCommandBuffer(cmdBuf)

	fence, err := r.device.CreateFence()
	if err != nil {
		return fmt.Errorf("create fence: %w", err)
	}
	defer r.device.DestroyFence(fence)

	if err := r.queue.Submit([]hal.CommandBuffer{cmdBuf}, fence, 1); err != nil {
		return fmt.Errorf("submit: %w", err)
	}

	ok, err := r.device.Wait(fence, 1, r.cfg.FenceTimeout)
	if err != nil {
		return fmt.Errorf("%w: wait: %w", ErrDeviceLost, err)
	}
	if !ok {
		return fmt.Errorf("%w: frame did not complete within %v", ErrDeviceLost, r.cfg.FenceTimeout)
	}
	return nil
}

func (r *Renderer) releaseRetired() {
	for _, bg := range r.retiredGroups {
		r.device.DestroyBindGroup(bg)
	}
	r.retiredGroups = r.retiredGroups[:0]
	r.volumes.ReleaseRetired()
}

// Frames returns the number of frames submitted.
func (r *Renderer) Frames() uint64 { return r.frames }

// SkippedFrames returns the number of frames skipped because no target
// could be acquired.
func (r *Renderer) SkippedFrames() uint64 { return r.skipped }

// Destroy releases the renderer's GPU objects. The parameter set and
// volume manager are not touched.
func (r *Renderer) Destroy() {
	for _, bg := range r.retiredGroups {
		r.device.DestroyBindGroup(bg)
	}
	r.retiredGroups = nil
	if r.selector != nil {
		r.selector.destroy()
		r.selector = nil
	}
	if r.volumetric != nil {
		r.volumetric.destroy()
		r.volumetric = nil
	}
	if r.quad != nil {
		r.quad.destroy(r.device)
		r.quad = nil
	}
}
