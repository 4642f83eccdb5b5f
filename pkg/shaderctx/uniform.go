package shaderctx

import "unsafe"

// IntVec4 is a four-lane byte vector, the PICA200 integer-uniform layout.
// LOOP reads lane 0 as the iteration count, lane 1 as the starting value of
// LOOPCOUNT_REG, and lane 2 as the per-iteration increment.
type IntVec4 [4]uint8

// UniformBlock holds the three uniform register files a vertex shader can
// read: 96 float vectors, 4 integer vectors, and 16 booleans. Like UnitState
// its layout is part of the JIT contract, but it is addressed through a
// dedicated pointer argument (UNIFORMS) rather than through UnitState, since
// uniforms are shared across every invocation of a compiled shader and
// outlive any one UnitState.
type UniformBlock struct {
	F [96]Vec4
	I [4]IntVec4
	B [16]bool
}

var zeroUniforms UniformBlock

// FloatUniformOffset returns the byte offset of float uniform index.
func FloatUniformOffset(index int) uintptr {
	return uintptr(index)*unsafe.Sizeof(Vec4{}) + unsafe.Offsetof(zeroUniforms.F)
}

// IntUniformOffset returns the byte offset of integer uniform index.
func IntUniformOffset(index int) uintptr {
	return uintptr(index)*unsafe.Sizeof(IntVec4{}) + unsafe.Offsetof(zeroUniforms.I)
}

// BoolUniformOffset returns the byte offset of boolean uniform index.
func BoolUniformOffset(index int) uintptr {
	return uintptr(index) + unsafe.Offsetof(zeroUniforms.B)
}
