package gpu

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// quadVertexStride is one vec2<f32> position per vertex (location 0).
const quadVertexStride = 8

// quadVertices span clip space; both full-screen passes ray-cast from the
// interpolated position.
var quadVertices = [4][2]float32{
	{-1, -1},
	{1, -1},
	{1, 1},
	{-1, 1},
}

var quadIndices = [6]uint32{0, 1, 2, 0, 2, 3}

// quad holds the shared full-screen geometry.
type quad struct {
	vertices hal.Buffer
	indices  hal.Buffer
}

func newQuad(device hal.Device, queue hal.Queue) (*quad, error) {
	vdata := make([]byte, len(quadVertices)*quadVertexStride)
	for i, v := range quadVertices {
		binary.LittleEndian.PutUint32(vdata[i*8:], math.Float32bits(v[0]))
		binary.LittleEndian.PutUint32(vdata[i*8+4:], math.Float32bits(v[1]))
	}
	idata := make([]byte, len(quadIndices)*4)
	for i, idx := range quadIndices {
		binary.LittleEndian.PutUint32(idata[i*4:], idx)
	}

	q := &quad{}
	var err error
	q.vertices, err = createBuffer(device, queue, "quad_vertices", vdata,
		gputypes.BufferUsageVertex|gputypes.BufferUsageCopyDst)
	if err != nil {
		return nil, err
	}
	q.indices, err = createBuffer(device, queue, "quad_indices", idata,
		gputypes.BufferUsageIndex|gputypes.BufferUsageCopyDst)
	if err != nil {
		device.DestroyBuffer(q.vertices)
		return nil, err
	}
	return q, nil
}

// draw records the indexed quad into rp.
func (q *quad) draw(rp hal.RenderPassEncoder) {
	rp.SetVertexBuffer(0, q.vertices, 0)
	rp.SetIndexBuffer(q.indices, gputypes.IndexFormatUint32, 0)
	rp.DrawIndexed(uint32(len(quadIndices)), 1, 0, 0, 0)
}

func (q *quad) destroy(device hal.Device) {
	if q.indices != nil {
		device.DestroyBuffer(q.indices)
		q.indices = nil
	}
	if q.vertices != nil {
		device.DestroyBuffer(q.vertices)
		q.vertices = nil
	}
}

// quadVertexLayout describes the position-only vertex format.
func quadVertexLayout() []gputypes.VertexBufferLayout {
	return []gputypes.VertexBufferLayout{
		{
			ArrayStride: quadVertexStride,
			StepMode:    gputypes.VertexStepModeVertex,
			Attributes: []gputypes.VertexAttribute{
				{Format: gputypes.VertexFormatFloat32x2, Offset: 0, ShaderLocation: 0},
			},
		},
	}
}

// createBuffer creates a GPU buffer and uploads data.
func createBuffer(device hal.Device, queue hal.Queue, label string, data []byte, usage gputypes.BufferUsage) (hal.Buffer, error) {
	buf, err := device.CreateBuffer(&hal.BufferDescriptor{
		Label: label,
		Size:  uint64(len(data)),
		Usage: usage,
	})
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", label, err)
	}
	queue.WriteBuffer(buf, 0, data)
	return buf, nil
}
