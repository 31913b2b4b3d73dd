package gpu

import _ "embed"

// WGSL sources. The two full-screen passes share camera.wgsl, which is
// prepended to each at pipeline creation.

//go:embed shaders/camera.wgsl
var cameraShaderSource string

//go:embed shaders/volumetric.wgsl
var volumetricShaderSource string

//go:embed shaders/selector.wgsl
var selectorShaderSource string

// VolumetricShader returns the complete WGSL of the volumetric pass.
func VolumetricShader() string { return cameraShaderSource + "\n" + volumetricShaderSource }

// SelectorShader returns the complete WGSL of the selector pass.
func SelectorShader() string { return cameraShaderSource + "\n" + selectorShaderSource }
