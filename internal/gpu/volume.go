package gpu

import (
	"errors"
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// Volume upload errors.
var (
	// ErrVolumeTooLarge is returned when any dimension exceeds the
	// device's 3D texture limit. The previously bound volume is kept.
	ErrVolumeTooLarge = errors.New("gpu: volume exceeds maximum 3D texture dimension")

	// ErrVolumeData is returned for empty dimensions or a sample buffer
	// shorter than the dimensions require.
	ErrVolumeData = errors.New("gpu: volume data does not match dimensions")
)

// volumeBytesPerSample is the texel size of the R32Float volume texture.
const volumeBytesPerSample = 4

// Volume is a GPU-resident 3D intensity texture with its sampler.
type Volume struct {
	Width, Height, Depth uint32

	texture hal.Texture
	view    hal.TextureView
	sampler hal.Sampler
}

func (v *Volume) destroy(device hal.Device) {
	if v.sampler != nil {
		device.DestroySampler(v.sampler)
	}
	if v.view != nil {
		device.DestroyTextureView(v.view)
	}
	if v.texture != nil {
		device.DestroyTexture(v.texture)
	}
}

// VolumeManager owns the current volume. Replacing the volume never
// destroys the old texture immediately: it moves to a retire list that
// the renderer releases after its next fence wait, when no submitted frame
// can still sample it.
type VolumeManager struct {
	device hal.Device
	queue  hal.Queue
	limits gputypes.Limits

	current    *Volume
	retired    []*Volume
	generation uint64
}

// NewVolumeManager creates a manager whose current volume is a single
// zero texel, so frames can render before the first cube is loaded.
func NewVolumeManager(device hal.Device, queue hal.Queue, limits gputypes.Limits) (*VolumeManager, error) {
	m := &VolumeManager{device: device, queue: queue, limits: limits}
	if _, err := m.Upload(1, 1, 1, make([]byte, volumeBytesPerSample)); err != nil {
		return nil, fmt.Errorf("placeholder volume: %w", err)
	}
	return m, nil
}

// Upload creates a new volume from native-order float32 samples and makes
// it current. On error the current volume is unchanged.
func (m *VolumeManager) Upload(width, height, depth uint32, data []byte) (*Volume, error) {
	maxDim := m.limits.MaxTextureDimension3D
	if width > maxDim || height > maxDim || depth > maxDim {
		return nil, fmt.Errorf("%w: %dx%dx%d, limit %d", ErrVolumeTooLarge, width, height, depth, maxDim)
	}
	if width == 0 || height == 0 || depth == 0 {
		return nil, fmt.Errorf("%w: %dx%dx%d", ErrVolumeData, width, height, depth)
	}
	need := uint64(width) * uint64(height) * uint64(depth) * volumeBytesPerSample
	if uint64(len(data)) < need {
		return nil, fmt.Errorf("%w: have %d bytes, need %d", ErrVolumeData, len(data), need)
	}

	v, err := m.create(width, height, depth)
	if err != nil {
		return nil, err
	}

	m.queue.WriteTexture(
		&hal.ImageCopyTexture{Texture: v.texture, MipLevel: 0},
		data[:need],
		&hal.ImageDataLayout{
			Offset:       0,
			BytesPerRow:  volumeBytesPerSample * width,
			RowsPerImage: height,
		},
		&hal.Extent3D{Width: width, Height: height, DepthOrArrayLayers: depth},
	)

	if m.current != nil {
		m.retired = append(m.retired, m.current)
	}
	m.current = v
	m.generation++

	slogger().Debug("gpu: volume uploaded",
		"width", width, "height", height, "depth", depth,
		"bytes", need, "generation", m.generation)
	return v, nil
}

func (m *VolumeManager) create(width, height, depth uint32) (*Volume, error) {
	v := &Volume{Width: width, Height: height, Depth: depth}

	tex, err := m.device.CreateTexture(&hal.TextureDescriptor{
		Label: "volume",
		Size: hal.Extent3D{
			Width:              width,
			Height:             height,
			DepthOrArrayLayers: depth,
		},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension3D,
		Format:        gputypes.TextureFormatR32Float,
		Usage:         gputypes.TextureUsageTextureBinding | gputypes.TextureUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("create volume texture: %w", err)
	}
	v.texture = tex

	view, err := m.device.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label:         "volume_view",
		Format:        gputypes.TextureFormatR32Float,
		Dimension:     gputypes.TextureViewDimension3D,
		Aspect:        gputypes.TextureAspectAll,
		MipLevelCount: 1,
	})
	if err != nil {
		v.destroy(m.device)
		return nil, fmt.Errorf("create volume view: %w", err)
	}
	v.view = view

	sampler, err := m.device.CreateSampler(&hal.SamplerDescriptor{
		Label:        "volume_sampler",
		AddressModeU: gputypes.AddressModeRepeat,
		AddressModeV: gputypes.AddressModeRepeat,
		AddressModeW: gputypes.AddressModeRepeat,
		MagFilter:    gputypes.FilterModeNearest,
		MinFilter:    gputypes.FilterModeNearest,
		MipmapFilter: gputypes.FilterModeNearest,
	})
	if err != nil {
		v.destroy(m.device)
		return nil, fmt.Errorf("create volume sampler: %w", err)
	}
	v.sampler = sampler
	return v, nil
}

// Current returns the volume new frames will sample.
func (m *VolumeManager) Current() *Volume { return m.current }

// Generation increases on every successful Upload.
func (m *VolumeManager) Generation() uint64 { return m.generation }

// Retired returns the number of superseded volumes awaiting release.
func (m *VolumeManager) Retired() int { return len(m.retired) }

// Limits returns the device limits uploads are validated against.
func (m *VolumeManager) Limits() gputypes.Limits { return m.limits }

// ReleaseRetired destroys superseded volumes. Call only when no submitted
// work can reference them.
func (m *VolumeManager) ReleaseRetired() {
	for _, v := range m.retired {
		v.destroy(m.device)
	}
	m.retired = m.retired[:0]
}

// Destroy releases the current and retired volumes.
func (m *VolumeManager) Destroy() {
	m.ReleaseRetired()
	if m.current != nil {
		m.current.destroy(m.device)
		m.current = nil
	}
}
