// Package gpu owns the viewer's GPU state and frame composition.
//
// It is built directly on the gogpu/wgpu HAL (hal.Device / hal.Queue) and
// has three parts:
//
//   - ParameterSet: one uniform buffer per semantic Group (rotation,
//     viewport, time, camera, cuts, perspective, min/max). A single table
//     maps each group to its binding index, size and arity, and is checked
//     once when the set is allocated.
//   - VolumeManager: the R32Float 3D texture holding the current cube,
//     its nearest/repeat sampler, and a retire list for volumes that were
//     replaced while a frame might still reference them.
//   - Renderer: the full-screen quad plus the volumetric and selector
//     pipelines, recording one command buffer per frame and handing the
//     target to an Overlay for the UI pass.
//
// # Binding contract
//
//	@0 volume texture (3D, unfilterable float)
//	@1 sampler (non-filtering)
//	@2 rotation    @3 viewport   @4 time
//	@5 camera      @6 cuts       @7 perspective
//	@8 min/max (volumetric pass only)
//
// The selector pass binds @2, @3, @5 and @7 from the same buffers.
package gpu
