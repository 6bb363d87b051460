//go:build !nogpu

package gpu

import (
	_ "embed"
	"fmt"

	"github.com/gogpu/naga"
)

// Embedded WGSL shader sources.

//go:embed shaders/accumulate.wgsl
var accumulateShaderSource string

//go:embed shaders/tonemap.wgsl
var tonemapShaderSource string

// Shader entry points.
const (
	entryVertex   = "vs_main"
	entrySeeded   = "fs_main"
	entryTextured = "fs_main_textured"
	entryToneMap  = "fs_main"
)

// ValidateShaders compiles every embedded shader to SPIR-V with naga and
// returns the first failure. It needs no device.
func ValidateShaders() error {
	for _, s := range []struct{ name, src string }{
		{"accumulate", accumulateShaderSource},
		{"tonemap", tonemapShaderSource},
	} {
		if s.src == "" {
			return fmt.Errorf("%s shader source is empty", s.name)
		}
		if _, err := naga.Compile(s.src); err != nil {
			return fmt.Errorf("compile %s shader: %w", s.name, err)
		}
	}
	return nil
}
