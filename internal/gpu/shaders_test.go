package gpu

import (
	"strconv"
	"strings"
	"testing"

	"github.com/gogpu/naga"
)

func TestShaderSourcesEmbedded(t *testing.T) {
	for name, src := range map[string]string{
		"camera":     cameraShaderSource,
		"volumetric": volumetricShaderSource,
		"selector":   selectorShaderSource,
	} {
		if strings.TrimSpace(src) == "" {
			t.Errorf("%s shader source is empty", name)
		}
	}
}

// TestShaderBindings checks that every uniform group appears in the
// volumetric shader at its binding index.
func TestShaderBindings(t *testing.T) {
	src := VolumetricShader()
	for g := range groupCount {
		decl := "@binding(" + strconv.FormatUint(uint64(g.Binding()), 10) + ") var<uniform> " + g.String()
		if !strings.Contains(src, decl) {
			t.Errorf("volumetric shader missing %q", decl)
		}
	}
	for _, g := range selectorGroups {
		decl := "@binding(" + strconv.FormatUint(uint64(g.Binding()), 10) + ") var<uniform> " + g.String()
		if !strings.Contains(SelectorShader(), decl) {
			t.Errorf("selector shader missing %q", decl)
		}
	}
}

func TestShadersCompile(t *testing.T) {
	for name, src := range map[string]string{
		"volumetric": VolumetricShader(),
		"selector":   SelectorShader(),
	} {
		t.Run(name, func(t *testing.T) {
			spirv, err := naga.Compile(src)
			if err != nil {
				if strings.Contains(err.Error(), "not yet implemented") || strings.Contains(err.Error(), "not supported") {
					t.Skipf("Skipping: naga feature not yet implemented: %v", err)
				}
				t.Fatalf("failed to compile %s shader: %v", name, err)
			}
			if len(spirv) < 4 {
				t.Fatal("SPIR-V output too short")
			}
			// SPIR-V magic number 0x07230203, little-endian.
			if spirv[0] != 0x03 || spirv[1] != 0x02 || spirv[2] != 0x23 || spirv[3] != 0x07 {
				t.Errorf("bad SPIR-V magic % x", spirv[:4])
			}
		})
	}
}
