package gpu

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// ErrArity is returned by ParameterSet.Write when the number of values
// does not match the group's declared arity.
var ErrArity = errors.New("gpu: wrong number of values for parameter group")

// errLayout is returned when the group table violates the binding contract.
var errLayout = errors.New("gpu: invalid parameter group layout")

// Group names one semantic uniform group. Every pass that reads a group
// binds the same buffer.
type Group int

// Parameter groups.
const (
	GroupRotation Group = iota
	GroupViewport
	GroupTime
	GroupCamera
	GroupCuts
	GroupPerspective
	GroupMinMax

	groupCount
)

// Reserved bindings of the volumetric pass that are not uniform groups.
const (
	bindingVolume  = 0
	bindingSampler = 1
)

// groupLayout describes one uniform group: its binding index, buffer
// size in bytes and the number of float32 values a write must supply.
type groupLayout struct {
	name    string
	binding uint32
	size    uint64
	arity   int
}

// groupLayouts is the single source of truth for uniform bindings.
//
//	rotation     @2  mat4x4<f32>  64 bytes
//	viewport     @3  (w, h)       16 bytes
//	time         @4  (seconds)    16 bytes
//	camera       @5  (theta, delta)
//	cuts         @6  (scale, offset)
//	perspective  @7  (flag)
//	minmax       @8  (min, max), volumetric pass only
var groupLayouts = [groupCount]groupLayout{
	GroupRotation:    {"rotation", 2, 64, 16},
	GroupViewport:    {"viewport", 3, 16, 2},
	GroupTime:        {"time", 4, 16, 1},
	GroupCamera:      {"camera", 5, 16, 2},
	GroupCuts:        {"cuts", 6, 16, 2},
	GroupPerspective: {"perspective", 7, 16, 1},
	GroupMinMax:      {"minmax", 8, 16, 2},
}

// String returns the group name.
func (g Group) String() string {
	if g < 0 || g >= groupCount {
		return fmt.Sprintf("Group(%d)", int(g))
	}
	return groupLayouts[g].name
}

// Binding returns the shader binding index of the group.
func (g Group) Binding() uint32 { return g.layout().binding }

// Arity returns the number of values a write to the group takes.
func (g Group) Arity() int { return g.layout().arity }

func (g Group) layout() groupLayout {
	if g < 0 || g >= groupCount {
		panic(fmt.Sprintf("gpu: unknown parameter group %d", int(g)))
	}
	return groupLayouts[g]
}

// validateLayouts checks the group table against the binding contract:
// unique bindings outside the texture/sampler slots, 16-byte aligned
// sizes, and arities that fit their buffers.
func validateLayouts() error {
	seen := map[uint32]Group{}
	for g := range groupCount {
		l := groupLayouts[g]
		if l.binding == bindingVolume || l.binding == bindingSampler {
			return fmt.Errorf("%w: %s uses reserved binding %d", errLayout, l.name, l.binding)
		}
		if other, dup := seen[l.binding]; dup {
			return fmt.Errorf("%w: %s and %s share binding %d", errLayout, l.name, other, l.binding)
		}
		seen[l.binding] = g
		if l.size == 0 || l.size%16 != 0 {
			return fmt.Errorf("%w: %s size %d not 16-byte aligned", errLayout, l.name, l.size)
		}
		if l.arity <= 0 || uint64(l.arity)*4 > l.size {
			return fmt.Errorf("%w: %s arity %d does not fit %d bytes", errLayout, l.name, l.arity, l.size)
		}
	}
	return nil
}

// ParameterSet owns one uniform buffer per Group and a CPU copy of the
// last values written to each.
type ParameterSet struct {
	device hal.Device
	queue  hal.Queue

	buffers [groupCount]hal.Buffer
	shadow  [groupCount][16]float32
}

// NewParameterSet creates the uniform buffers and writes their initial
// values: identity rotation, zero time/camera/viewport, perspective off,
// passthrough cuts (1, 0) and min/max (0, 1).
func NewParameterSet(device hal.Device, queue hal.Queue) (*ParameterSet, error) {
	if err := validateLayouts(); err != nil {
		return nil, err
	}

	p := &ParameterSet{device: device, queue: queue}
	for g := range groupCount {
		l := groupLayouts[g]
		buf, err := device.CreateBuffer(&hal.BufferDescriptor{
			Label: "param_" + l.name,
			Size:  l.size,
			Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
		})
		if err != nil {
			p.Destroy()
			return nil, fmt.Errorf("create %s buffer: %w", l.name, err)
		}
		p.buffers[g] = buf
	}

	initial := []struct {
		g      Group
		values []float32
	}{
		{GroupRotation, identity[:]},
		{GroupViewport, []float32{0, 0}},
		{GroupTime, []float32{0}},
		{GroupCamera, []float32{0, 0}},
		{GroupCuts, []float32{1, 0}},
		{GroupPerspective, []float32{0}},
		{GroupMinMax, []float32{0, 1}},
	}
	for _, iv := range initial {
		if err := p.Write(iv.g, iv.values...); err != nil {
			p.Destroy()
			return nil, err
		}
	}

	slogger().Debug("gpu: parameter set allocated", "groups", int(groupCount))
	return p, nil
}

var identity = [16]float32{
	1, 0, 0, 0,
	0, 1, 0, 0,
	0, 0, 1, 0,
	0, 0, 0, 1,
}

// Write replaces the contents of a group's buffer. values must hold
// exactly g.Arity() floats; unused trailing components are zeroed.
// Write panics on an unknown group.
func (p *ParameterSet) Write(g Group, values ...float32) error {
	l := g.layout()
	if len(values) != l.arity {
		return fmt.Errorf("%w: %s takes %d, got %d", ErrArity, l.name, l.arity, len(values))
	}

	var shadow [16]float32
	copy(shadow[:], values)
	p.shadow[g] = shadow

	data := make([]byte, l.size)
	for i, v := range values {
		binary.LittleEndian.PutUint32(data[i*4:], math.Float32bits(v))
	}
	p.queue.WriteBuffer(p.buffers[g], 0, data)
	return nil
}

// Values returns a copy of the last values written to g.
func (p *ParameterSet) Values(g Group) []float32 {
	l := g.layout()
	out := make([]float32, l.arity)
	copy(out, p.shadow[g][:l.arity])
	return out
}

// Buffer returns the uniform buffer backing g.
func (p *ParameterSet) Buffer(g Group) hal.Buffer {
	g.layout()
	return p.buffers[g]
}

// uniformLayoutEntry describes g for a bind group layout.
func uniformLayoutEntry(g Group) gputypes.BindGroupLayoutEntry {
	return gputypes.BindGroupLayoutEntry{
		Binding:    g.Binding(),
		Visibility: gputypes.ShaderStageVertex | gputypes.ShaderStageFragment,
		Buffer: &gputypes.BufferBindingLayout{
			Type: gputypes.BufferBindingTypeUniform,
		},
	}
}

// bindEntry binds g's buffer at its fixed binding index.
func (p *ParameterSet) bindEntry(g Group) gputypes.BindGroupEntry {
	l := g.layout()
	return gputypes.BindGroupEntry{
		Binding: l.binding,
		Resource: gputypes.BufferBinding{
			Buffer: p.buffers[g].NativeHandle(),
			Offset: 0,
			Size:   l.size,
		},
	}
}

// Destroy releases every buffer. Safe to call more than once.
func (p *ParameterSet) Destroy() {
	for g, buf := range p.buffers {
		if buf != nil {
			p.device.DestroyBuffer(buf)
			p.buffers[g] = nil
		}
	}
}
